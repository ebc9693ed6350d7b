package placeholder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-futurism/internal/naming"
	"github.com/goliatone/go-futurism/pkg/attrs"
	"github.com/goliatone/go-futurism/pkg/descriptor"
	"github.com/goliatone/go-futurism/pkg/gid"
	"github.com/goliatone/go-futurism/pkg/render"
	"github.com/goliatone/go-futurism/pkg/signer"
)

// ErrNoFragmentRenderer is returned when Options.Unless is set but the emitter
// has no renderer to render the target eagerly.
var ErrNoFragmentRenderer = errors.New("placeholder: fragment renderer is required for unless")

// Emitter turns render targets into placeholder nodes. It holds no mutable
// state after construction and is safe for concurrent use.
type Emitter struct {
	codec   *gid.Codec
	signer  *signer.Signer
	builder *descriptor.Builder
	cfg     config
}

// New builds an Emitter. codec signs entity references (sgid) and s signs
// full descriptors (signed_params).
func New(codec *gid.Codec, s *signer.Signer, options ...Option) (*Emitter, error) {
	if codec == nil {
		return nil, errors.New("placeholder: codec is required")
	}
	if s == nil {
		return nil, errors.New("placeholder: signer is required")
	}

	builder, err := descriptor.NewBuilder(codec)
	if err != nil {
		return nil, fmt.Errorf("placeholder: %w", err)
	}

	cfg := config{logger: zerolog.Nop()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if cfg.markup == nil {
		engine, err := markupEngine()
		if err != nil {
			return nil, fmt.Errorf("placeholder: markup engine: %w", err)
		}
		cfg.markup = engine
	}
	if cfg.policy == nil {
		cfg.policy = bluemonday.UGCPolicy()
	}

	return &Emitter{codec: codec, signer: s, builder: builder, cfg: cfg}, nil
}

// Emit builds the placeholder nodes for target.
//
// Single targets yield one node. Collections yield one node per item in
// order; items that fail to build are skipped and reported together in the
// returned error, next to the nodes that succeeded.
func (e *Emitter) Emit(ctx context.Context, target descriptor.Target, opts Options, block Block) ([]Node, error) {
	target, err := deref(target)
	if err != nil {
		return nil, err
	}

	if opts.Unless {
		nodes, err := e.bypass(ctx, target)
		e.cfg.logger.Debug().
			Str("target", targetKind(target)).
			Bool("bypass", true).
			Int("nodes", len(nodes)).
			Err(err).
			Msg("placeholder: rendered eagerly")
		return nodes, err
	}

	element, err := ResolveElement(opts.Extends)
	if err != nil {
		return nil, err
	}
	data := dataLocals(opts.HTML.Namespace(attrs.DataNamespace))
	eager := opts.Eager || block == nil

	var (
		nodes []Node
		errs  []error
	)
	switch t := target.(type) {
	case descriptor.Collection:
		nodes = make([]Node, 0, len(t.Items))
		for index, item := range t.Items {
			d, err := e.builder.BuildItem(t, index, data)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			node, err := e.node(d, element, opts, eager, opts.BroadcastEach)
			if err != nil {
				errs = append(errs, fmt.Errorf("placeholder: item %d: %w", index, err))
				continue
			}
			node.Index = index
			node.Content = e.content(block, item, index)
			nodes = append(nodes, node)
		}
	default:
		d, err := e.builder.Build(target, data)
		if err != nil {
			return nil, err
		}
		node, err := e.node(d, element, opts, eager, false)
		if err != nil {
			return nil, err
		}
		node.Content = e.content(block, blockItem(target), 0)
		nodes = append(nodes, node)
	}

	err = errors.Join(errs...)
	e.cfg.logger.Debug().
		Str("target", targetKind(target)).
		Str("element", element.Tag).
		Bool("eager", eager).
		Int("nodes", len(nodes)).
		Int("failed", len(errs)).
		Msg("placeholder: emitted")
	return nodes, err
}

// Render emits target and serialises every node. When some collection items
// fail, the markup of the remaining items is returned alongside the error.
func (e *Emitter) Render(ctx context.Context, target descriptor.Target, opts Options, block Block) (string, error) {
	nodes, emitErr := e.Emit(ctx, target, opts, block)
	if emitErr != nil && len(nodes) == 0 {
		return "", emitErr
	}

	var b strings.Builder
	for _, node := range nodes {
		out, err := e.Markup(node)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	return b.String(), emitErr
}

func (e *Emitter) node(d descriptor.Descriptor, element Element, opts Options, eager, broadcastEach bool) (Node, error) {
	var protocol attrs.Attributes

	if d.Mode() != descriptor.ModeEntity || d.Data.Len() > 0 {
		token, err := descriptor.Sign(e.signer, d)
		if err != nil {
			return Node{}, fmt.Errorf("placeholder: sign descriptor: %w", err)
		}
		protocol = append(protocol, attrs.Attr{Name: attrs.SignedParams, Value: token})
	}
	if d.Mode() == descriptor.ModeEntity {
		token, err := e.codec.SignReference(d.Entity)
		if err != nil {
			return Node{}, fmt.Errorf("placeholder: sign reference: %w", err)
		}
		protocol = append(protocol, attrs.Attr{Name: attrs.SGID, Value: token})
	}
	if eager {
		protocol = append(protocol, attrs.Attr{Name: attrs.Eager, Value: true})
	}
	if broadcastEach {
		protocol = append(protocol, attrs.Attr{Name: attrs.BroadcastEach, Value: true})
	}

	return Node{
		Element: element,
		Attributes: attrs.Compose(
			attrs.Attributes{{Name: attrs.DataNamespace, Value: protocol}},
			opts.HTML,
		),
	}, nil
}

func (e *Emitter) content(block Block, item any, index int) string {
	if block == nil {
		return ""
	}
	out := block(item, index)
	if e.cfg.trusted || out == "" {
		return out
	}
	return e.cfg.policy.Sanitize(out)
}

// bypass renders target through the fragment renderer without building any
// descriptor or token. Collection items fail one by one: the nodes of the
// items that rendered come back next to the joined item errors.
func (e *Emitter) bypass(ctx context.Context, target descriptor.Target) ([]Node, error) {
	if e.cfg.fragments == nil {
		return nil, ErrNoFragmentRenderer
	}

	fragments, err := eagerFragments(target)
	if len(fragments) == 0 && err != nil {
		return nil, err
	}
	errs := []error{err}
	nodes := make([]Node, 0, len(fragments))
	for _, f := range fragments {
		out, err := e.cfg.fragments.RenderFragment(ctx, f.Fragment)
		if err != nil {
			errs = append(errs, fmt.Errorf("placeholder: item %d: render %q: %w", f.index, f.Partial, err))
			continue
		}
		nodes = append(nodes, Node{Content: out, Index: f.index, Bypassed: true})
	}
	if len(nodes) == 0 {
		return nil, errors.Join(errs...)
	}
	return nodes, errors.Join(errs...)
}

type eagerFragment struct {
	render.Fragment
	index int
}

// eagerFragments expands a target into the fragments it would have deferred,
// keeping in-memory objects in place of references. Collection items that
// cannot be expanded are skipped and reported in the joined error.
func eagerFragments(target descriptor.Target) ([]eagerFragment, error) {
	switch t := target.(type) {
	case descriptor.Object:
		entity, ok := t.Entity.(gid.Identifiable)
		if !ok || entity == nil {
			return nil, &gid.UnidentifiableError{Type: fmt.Sprintf("%T", t.Entity), Reason: "does not implement Identifiable"}
		}
		partial := strings.TrimSpace(t.Partial)
		if partial == "" {
			partial = descriptor.PartialPath(entity, entity.TypeName())
		}
		locals := map[string]any{naming.Element(entity.TypeName()): entity}
		for _, entry := range t.Locals.Entries() {
			locals[entry.Name] = entry.Value
		}
		return []eagerFragment{{Fragment: render.Fragment{Partial: partial, Locals: locals}}}, nil
	case descriptor.Partial:
		return []eagerFragment{{Fragment: render.Fragment{Partial: t.Name, Locals: t.Locals.Map()}}}, nil
	case descriptor.Collection:
		out := make([]eagerFragment, 0, len(t.Items))
		var errs []error
		for index, item := range t.Items {
			entity, ok := item.(gid.Identifiable)
			if !ok || entity == nil {
				errs = append(errs, fmt.Errorf("placeholder: item %d: %w", index, &gid.UnidentifiableError{
					Type:   fmt.Sprintf("%T", item),
					Reason: "does not implement Identifiable",
				}))
				continue
			}
			name := strings.TrimSpace(t.As)
			if name == "" {
				name = naming.Element(entity.TypeName())
			}
			partial := strings.TrimSpace(t.Partial)
			if partial == "" {
				partial = descriptor.PartialPath(entity, entity.TypeName())
			}
			locals := t.Locals.Map()
			if locals == nil {
				locals = map[string]any{}
			}
			locals[name] = entity
			locals[naming.Counter(name)] = index
			out = append(out, eagerFragment{
				Fragment: render.Fragment{Partial: partial, Locals: locals},
				index:    index,
			})
		}
		return out, errors.Join(errs...)
	}
	return nil, fmt.Errorf("placeholder: unsupported target %T", target)
}

// blockItem is what a content block receives for a single target.
func blockItem(target descriptor.Target) any {
	switch t := target.(type) {
	case descriptor.Object:
		return t.Entity
	case descriptor.Partial:
		return t.Locals.Map()
	}
	return nil
}

func deref(target descriptor.Target) (descriptor.Target, error) {
	switch t := target.(type) {
	case nil:
		return nil, errors.New("placeholder: target is required")
	case *descriptor.Object:
		if t == nil {
			return nil, errors.New("placeholder: target is required")
		}
		return *t, nil
	case *descriptor.Partial:
		if t == nil {
			return nil, errors.New("placeholder: target is required")
		}
		return *t, nil
	case *descriptor.Collection:
		if t == nil {
			return nil, errors.New("placeholder: target is required")
		}
		return *t, nil
	}
	return target, nil
}

func targetKind(target descriptor.Target) string {
	switch target.(type) {
	case descriptor.Object:
		return "object"
	case descriptor.Partial:
		return "partial"
	case descriptor.Collection:
		return "collection"
	}
	return "unknown"
}

// dataLocals converts the caller's data namespace into descriptor locals.
// Nested namespaces become maps.
func dataLocals(data attrs.Attributes) descriptor.Locals {
	var out descriptor.Locals
	for _, attr := range data {
		if !attrs.ValidName(attr.Name) {
			continue
		}
		out = out.With(attr.Name, attrValue(attr.Value))
	}
	return out
}

func attrValue(value any) any {
	nested, ok := value.(attrs.Attributes)
	if !ok {
		return value
	}
	out := make(map[string]any, len(nested))
	for _, attr := range nested {
		out[attr.Name] = attrValue(attr.Value)
	}
	return out
}
