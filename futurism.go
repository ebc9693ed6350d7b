package futurism

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-futurism/pkg/attrs"
	"github.com/goliatone/go-futurism/pkg/config"
	"github.com/goliatone/go-futurism/pkg/descriptor"
	"github.com/goliatone/go-futurism/pkg/gid"
	"github.com/goliatone/go-futurism/pkg/placeholder"
	"github.com/goliatone/go-futurism/pkg/render"
	"github.com/goliatone/go-futurism/pkg/render/template/gotemplate"
	"github.com/goliatone/go-futurism/pkg/resolver"
	"github.com/goliatone/go-futurism/pkg/signer"
)

// Identifiable is implemented by every domain type that can be deferred.
type Identifiable = gid.Identifiable

// Target is a deferred render target.
type Target = descriptor.Target

// Object targets a single entity, optionally with a partial and locals.
type Object = descriptor.Object

// Partial targets an explicit partial with locals.
type Partial = descriptor.Partial

// Collection targets every item of a slice.
type Collection = descriptor.Collection

// Locals is an ordered set of render locals.
type Locals = descriptor.Locals

// Local is one named render local.
type Local = descriptor.Local

// Options are the per-call emission settings.
type Options = placeholder.Options

// Block produces placeholder content shown until the fragment arrives.
type Block = placeholder.Block

// Node is one emitted placeholder.
type Node = placeholder.Node

// Attributes are caller markup attributes.
type Attributes = attrs.Attributes

// Resolution is a verified descriptor with references located.
type Resolution = resolver.Resolution

// Config is the process-wide protocol configuration.
type Config = config.Config

// Sentinel errors re-exported for errors.Is checks.
var (
	ErrInvalidSignature = signer.ErrInvalidSignature
	ErrUnidentifiable   = gid.ErrUnidentifiable
	ErrDescriptorBuild  = descriptor.ErrDescriptorBuild
	ErrNotFound         = resolver.ErrNotFound
)

// NewLocals builds ordered locals.
func NewLocals(pairs ...Local) Locals {
	return descriptor.NewLocals(pairs...)
}

// Items converts a typed slice into collection items.
func Items[T any](items []T) []any {
	return descriptor.Items(items)
}

// Option configures a Futurism instance.
type Option func(*settings)

type settings struct {
	logger    zerolog.Logger
	fragments render.FragmentRenderer
	templates fs.FS
	policy    *bluemonday.Policy
	trusted   bool
}

// WithLogger sets the logger shared by the emitter and resolver.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithFragmentRenderer sets the renderer used for eager renders and for
// resolved fragments.
func WithFragmentRenderer(fragments render.FragmentRenderer) Option {
	return func(s *settings) {
		s.fragments = fragments
	}
}

// WithTemplates renders fragments from pongo2 templates in fsys. Ignored when
// WithFragmentRenderer is also given.
func WithTemplates(fsys fs.FS) Option {
	return func(s *settings) {
		s.templates = fsys
	}
}

// WithContentPolicy sets the sanitising policy for placeholder content.
func WithContentPolicy(policy *bluemonday.Policy) Option {
	return func(s *settings) {
		s.policy = policy
	}
}

// WithTrustedContent disables sanitising of placeholder content.
func WithTrustedContent() Option {
	return func(s *settings) {
		s.trusted = true
	}
}

// Futurism wires the codec, signer, emitter and resolver around one
// configuration. Both sides must share the configuration for tokens to verify.
type Futurism struct {
	cfg      Config
	codec    *gid.Codec
	signer   *signer.Signer
	emitter  *placeholder.Emitter
	resolver *resolver.Resolver
}

// New builds a Futurism instance. locator must have a resolver registered for
// every entity type that will be deferred.
func New(cfg Config, locator *gid.Locator, options ...Option) (*Futurism, error) {
	if locator == nil {
		return nil, errors.New("futurism: locator is required")
	}
	if locator.App() != cfg.App {
		return nil, fmt.Errorf("futurism: locator app %q does not match config app %q", locator.App(), cfg.App)
	}

	s := settings{logger: zerolog.Nop()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&s)
	}

	msg, err := cfg.Signer()
	if err != nil {
		return nil, fmt.Errorf("futurism: %w", err)
	}
	codec, err := gid.NewCodec(locator, msg)
	if err != nil {
		return nil, fmt.Errorf("futurism: %w", err)
	}

	fragments := s.fragments
	if fragments == nil && s.templates != nil {
		engine, err := gotemplate.New(gotemplate.WithFS(s.templates))
		if err != nil {
			return nil, fmt.Errorf("futurism: templates: %w", err)
		}
		if fragments, err = render.NewTemplateFragments(engine); err != nil {
			return nil, fmt.Errorf("futurism: templates: %w", err)
		}
	}

	emitterOptions := []placeholder.Option{
		placeholder.WithLogger(s.logger),
		placeholder.WithFragmentRenderer(fragments),
		placeholder.WithContentPolicy(s.policy),
	}
	if s.trusted {
		emitterOptions = append(emitterOptions, placeholder.WithTrustedContent())
	}
	emitter, err := placeholder.New(codec, msg, emitterOptions...)
	if err != nil {
		return nil, fmt.Errorf("futurism: %w", err)
	}
	res, err := resolver.New(codec, msg,
		resolver.WithLogger(s.logger),
		resolver.WithFragmentRenderer(fragments),
	)
	if err != nil {
		return nil, fmt.Errorf("futurism: %w", err)
	}

	return &Futurism{cfg: cfg, codec: codec, signer: msg, emitter: emitter, resolver: res}, nil
}

// Futurize renders the placeholder markup for target.
func (f *Futurism) Futurize(ctx context.Context, target Target, opts Options, block Block) (string, error) {
	return f.emitter.Render(ctx, target, opts, block)
}

// Nodes returns the placeholder nodes for target without serialising them.
func (f *Futurism) Nodes(ctx context.Context, target Target, opts Options, block Block) ([]Node, error) {
	return f.emitter.Emit(ctx, target, opts, block)
}

// Resolve verifies the tokens of a placeholder and locates its references.
func (f *Futurism) Resolve(ctx context.Context, signedParams, sgid string) (Resolution, error) {
	return f.resolver.Resolve(ctx, signedParams, sgid)
}

// Render resolves the tokens of a placeholder and renders the fragment.
func (f *Futurism) Render(ctx context.Context, signedParams, sgid string) (string, error) {
	return f.resolver.Render(ctx, signedParams, sgid)
}

// Config returns the configuration the instance was built with.
func (f *Futurism) Config() Config {
	return f.cfg
}

// Codec returns the entity reference codec.
func (f *Futurism) Codec() *gid.Codec {
	return f.codec
}

// Signer returns the message signer.
func (f *Futurism) Signer() *signer.Signer {
	return f.signer
}

// Emitter returns the placeholder emitter.
func (f *Futurism) Emitter() *placeholder.Emitter {
	return f.emitter
}

// Resolver returns the resolver.
func (f *Futurism) Resolver() *resolver.Resolver {
	return f.resolver
}
