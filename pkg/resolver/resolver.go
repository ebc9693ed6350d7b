package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-futurism/internal/naming"
	"github.com/goliatone/go-futurism/pkg/descriptor"
	"github.com/goliatone/go-futurism/pkg/gid"
	"github.com/goliatone/go-futurism/pkg/render"
	"github.com/goliatone/go-futurism/pkg/signer"
)

var (
	// ErrNotFound marks a verified descriptor whose references no longer
	// resolve. It is never returned by Resolve, only by Render.
	ErrNotFound = errors.New("resolver: referenced entity not found")
	// ErrEmptyRequest is returned when neither token is supplied.
	ErrEmptyRequest = errors.New("resolver: signed_params or sgid is required")
	// ErrNoFragmentRenderer is returned by Render when no renderer is configured.
	ErrNoFragmentRenderer = errors.New("resolver: fragment renderer is required")
)

// Resolution is a verified descriptor with every reference located.
type Resolution struct {
	// Partial and Locals are what the fragment renders with. For entity
	// descriptors Partial is the entity's conventional partial and Locals
	// holds the entity under its element name.
	Partial string
	Locals  map[string]any
	// Data is the caller data namespace replayed from emission.
	Data map[string]any
	// Entity is set for entity descriptors whose entity still exists.
	Entity gid.Identifiable
	// Missing lists references that no longer resolve.
	Missing []string
}

// Stale reports whether any reference failed to resolve.
func (r Resolution) Stale() bool {
	return len(r.Missing) > 0
}

// Fragment returns the render input for r.
func (r Resolution) Fragment() render.Fragment {
	return render.Fragment{Partial: r.Partial, Locals: r.Locals}
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the structured logger. Defaults to zerolog.Nop().
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithFragmentRenderer sets the renderer used by Render.
func WithFragmentRenderer(fragments render.FragmentRenderer) Option {
	return func(r *Resolver) {
		if fragments != nil {
			r.fragments = fragments
		}
	}
}

// Resolver is the consuming side of the protocol: it verifies tokens issued
// by the placeholder emitter and turns them back into render input.
type Resolver struct {
	codec     *gid.Codec
	signer    *signer.Signer
	fragments render.FragmentRenderer
	logger    zerolog.Logger
}

// New builds a Resolver verifying with the same codec and signer the emitter
// signs with.
func New(codec *gid.Codec, s *signer.Signer, options ...Option) (*Resolver, error) {
	if codec == nil {
		return nil, errors.New("resolver: codec is required")
	}
	if s == nil {
		return nil, errors.New("resolver: signer is required")
	}
	r := &Resolver{codec: codec, signer: s, logger: zerolog.Nop()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r, nil
}

// Resolve verifies the tokens carried by a placeholder and locates every
// reference they hold. Either token may be empty; when both are present and
// describe an entity they must agree.
//
// Signature failures return signer.ErrInvalidSignature. References that no
// longer resolve are reported in Resolution.Missing, not as errors.
func (r *Resolver) Resolve(ctx context.Context, signedParams, sgid string) (Resolution, error) {
	var (
		d   descriptor.Descriptor
		err error
	)
	switch {
	case signedParams != "":
		d, err = descriptor.Verify(r.signer, signedParams)
		if err != nil {
			r.logger.Warn().Str("token", "signed_params").Msg("resolver: rejected token")
			return Resolution{}, err
		}
		if sgid != "" {
			ref, err := r.codec.VerifySigned(sgid)
			if err != nil {
				r.logger.Warn().Str("token", "sgid").Msg("resolver: rejected token")
				return Resolution{}, err
			}
			if d.Mode() != descriptor.ModeEntity || d.Entity != ref {
				return Resolution{}, fmt.Errorf("resolver: sgid does not match signed_params: %w", signer.ErrInvalidSignature)
			}
		}
	case sgid != "":
		ref, err := r.codec.VerifySigned(sgid)
		if err != nil {
			r.logger.Warn().Str("token", "sgid").Msg("resolver: rejected token")
			return Resolution{}, err
		}
		d = descriptor.Descriptor{Entity: ref}
	default:
		return Resolution{}, ErrEmptyRequest
	}

	res, err := r.materialise(ctx, d)
	if err != nil {
		return Resolution{}, err
	}
	r.logger.Debug().
		Str("mode", d.Mode().String()).
		Str("partial", res.Partial).
		Int("missing", len(res.Missing)).
		Msg("resolver: resolved")
	return res, nil
}

// Render resolves the tokens and renders the resulting fragment. Stale
// references return ErrNotFound.
func (r *Resolver) Render(ctx context.Context, signedParams, sgid string) (string, error) {
	res, err := r.Resolve(ctx, signedParams, sgid)
	if err != nil {
		return "", err
	}
	return r.RenderResolution(ctx, res)
}

// RenderResolution renders an already resolved descriptor.
func (r *Resolver) RenderResolution(ctx context.Context, res Resolution) (string, error) {
	if r.fragments == nil {
		return "", ErrNoFragmentRenderer
	}
	if res.Stale() {
		return "", fmt.Errorf("%w: %v", ErrNotFound, res.Missing)
	}
	return r.fragments.RenderFragment(ctx, res.Fragment())
}

func (r *Resolver) materialise(ctx context.Context, d descriptor.Descriptor) (Resolution, error) {
	var res Resolution

	data, err := r.values(ctx, d.Data, &res.Missing)
	if err != nil {
		return Resolution{}, err
	}
	res.Data = data

	if d.Mode() == descriptor.ModeEntity {
		entity, found, err := r.codec.Decode(ctx, d.Entity)
		if err != nil {
			return Resolution{}, fmt.Errorf("resolver: locate %s: %w", d.Entity, err)
		}
		if !found {
			res.Missing = append(res.Missing, d.Entity.String())
			return res, nil
		}
		res.Entity = entity
		res.Partial = descriptor.PartialPath(entity, entity.TypeName())
		res.Locals = map[string]any{naming.Element(entity.TypeName()): entity}
		return res, nil
	}

	locals, err := r.values(ctx, d.Locals, &res.Missing)
	if err != nil {
		return Resolution{}, err
	}
	res.Partial = d.Partial
	res.Locals = locals
	return res, nil
}

func (r *Resolver) values(ctx context.Context, locals descriptor.Locals, missing *[]string) (map[string]any, error) {
	out := make(map[string]any, locals.Len())
	for _, entry := range locals.Entries() {
		value, err := r.value(ctx, entry.Value, missing)
		if err != nil {
			return nil, fmt.Errorf("resolver: local %s: %w", entry.Name, err)
		}
		out[entry.Name] = value
	}
	return out, nil
}

// value replaces references with located entities and embedded values with
// instantiated ones. Stale references become nil and are recorded in missing.
func (r *Resolver) value(ctx context.Context, value any, missing *[]string) (any, error) {
	switch v := value.(type) {
	case gid.GlobalID:
		if v.App != r.codec.App() {
			return v.String(), nil
		}
		entity, found, err := r.codec.Decode(ctx, v)
		if err != nil {
			return nil, err
		}
		if !found {
			*missing = append(*missing, v.String())
			return nil, nil
		}
		return entity, nil
	case descriptor.Embedded:
		return r.codec.Locator().Instantiate(v.Type, v.Value)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			converted, err := r.value(ctx, item, missing)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			converted, err := r.value(ctx, item, missing)
			if err != nil {
				return nil, fmt.Errorf("%d: %w", i, err)
			}
			out[i] = converted
		}
		return out, nil
	}
	return value, nil
}
