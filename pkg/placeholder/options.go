package placeholder

import (
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-futurism/pkg/attrs"
	"github.com/goliatone/go-futurism/pkg/render"
	rendertemplate "github.com/goliatone/go-futurism/pkg/render/template"
)

// Options are the per-call emission settings.
type Options struct {
	// Extends names the built-in element the placeholder specialises.
	Extends string
	// Eager asks the client to fetch immediately.
	Eager bool
	// BroadcastEach marks every collection item as individually addressable.
	// Ignored for single targets.
	BroadcastEach bool
	// Unless skips deferral and renders the target eagerly.
	Unless bool
	// HTML holds caller markup attributes; entries under the "data" namespace
	// are also replayed to the resolver through the descriptor.
	HTML attrs.Attributes
}

// Block produces the meanwhile content for one node. item is the in-memory
// entity (or the locals of a Partial target) and index its collection
// position, 0 for single targets. A nil Block means there is nothing to show
// and forces eager loading; a Block returning "" leaves the node blank.
type Block func(item any, index int) string

// Option configures an Emitter.
type Option func(*config)

type config struct {
	logger    zerolog.Logger
	fragments render.FragmentRenderer
	markup    rendertemplate.TemplateRenderer
	policy    *bluemonday.Policy
	trusted   bool
}

// WithLogger sets the structured logger. Defaults to zerolog.Nop().
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithFragmentRenderer sets the renderer used when Options.Unless is true.
func WithFragmentRenderer(fragments render.FragmentRenderer) Option {
	return func(cfg *config) {
		if fragments != nil {
			cfg.fragments = fragments
		}
	}
}

// WithMarkupRenderer replaces the engine that serialises nodes. The engine
// must provide the "templates/element" template.
func WithMarkupRenderer(markup rendertemplate.TemplateRenderer) Option {
	return func(cfg *config) {
		if markup != nil {
			cfg.markup = markup
		}
	}
}

// WithContentPolicy sanitises block output with policy. Defaults to
// bluemonday.UGCPolicy().
func WithContentPolicy(policy *bluemonday.Policy) Option {
	return func(cfg *config) {
		if policy != nil {
			cfg.policy = policy
			cfg.trusted = false
		}
	}
}

// WithTrustedContent disables sanitising of block output.
func WithTrustedContent() Option {
	return func(cfg *config) {
		cfg.trusted = true
	}
}
