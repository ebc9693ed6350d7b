package descriptor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-futurism/internal/naming"
	"github.com/goliatone/go-futurism/pkg/attrs"
	"github.com/goliatone/go-futurism/pkg/gid"
)

// Encoder turns identifiable entities into references. *gid.Codec satisfies it.
type Encoder interface {
	Encode(obj any) (gid.GlobalID, error)
}

// PartialPather lets an entity override its conventional partial.
type PartialPather interface {
	PartialPath() string
}

// Builder resolves targets into descriptors. It holds no mutable state and is
// safe for concurrent use.
type Builder struct {
	enc Encoder
}

// NewBuilder returns a Builder encoding entities with enc.
func NewBuilder(enc Encoder) (*Builder, error) {
	if enc == nil {
		return nil, errors.New("descriptor: encoder is required")
	}
	return &Builder{enc: enc}, nil
}

// Build resolves an Object or Partial target. data is the caller's data
// namespace; protocol-owned keys are dropped.
func (b *Builder) Build(target Target, data Locals) (Descriptor, error) {
	cleanData, err := b.data(data)
	if err != nil {
		return Descriptor{}, buildError(-1, "data", err)
	}

	switch t := target.(type) {
	case Object:
		return b.object(t, cleanData)
	case *Object:
		if t == nil {
			return Descriptor{}, buildError(-1, "nil target", nil)
		}
		return b.object(*t, cleanData)
	case Partial:
		return b.partial(t.Name, t.Locals, cleanData)
	case *Partial:
		if t == nil {
			return Descriptor{}, buildError(-1, "nil target", nil)
		}
		return b.partial(t.Name, t.Locals, cleanData)
	case Collection, *Collection:
		return Descriptor{}, buildError(-1, "collection targets build per item", nil)
	default:
		return Descriptor{}, buildError(-1, fmt.Sprintf("unsupported target %T", target), nil)
	}
}

// BuildItem builds the descriptor for the item at index of a collection.
// A failure affects only that item.
func (b *Builder) BuildItem(c Collection, index int, data Locals) (Descriptor, error) {
	if index < 0 || index >= len(c.Items) {
		return Descriptor{}, buildError(index, "index out of range", nil)
	}
	cleanData, err := b.data(data)
	if err != nil {
		return Descriptor{}, buildError(index, "data", err)
	}

	item := c.Items[index]
	ref, err := b.enc.Encode(item)
	if err != nil {
		return Descriptor{}, buildError(index, "collection item", err)
	}

	name := strings.TrimSpace(c.As)
	if name == "" {
		name = naming.Element(ref.Type)
	}
	partial := strings.TrimSpace(c.Partial)
	if partial == "" {
		partial = PartialPath(item, ref.Type)
	}

	locals := NewLocals(
		Local{Name: name, Value: ref},
		Local{Name: naming.Counter(name), Value: int64(index)},
	)
	for _, entry := range c.Locals.entries {
		if _, exists := locals.Get(entry.Name); exists {
			continue
		}
		value, err := normalize(b.enc, entry.Value)
		if err != nil {
			return Descriptor{}, buildError(index, "local "+entry.Name, err)
		}
		locals = locals.With(entry.Name, value)
	}

	return Descriptor{Partial: partial, Locals: locals, Data: cleanData}, nil
}

func (b *Builder) object(t Object, data Locals) (Descriptor, error) {
	ref, err := b.enc.Encode(t.Entity)
	partial := strings.TrimSpace(t.Partial)

	if partial == "" && t.Locals.Len() == 0 {
		if err != nil {
			return Descriptor{}, buildError(-1, "entity", err)
		}
		return Descriptor{Entity: ref, Data: data}, nil
	}

	entity, ok := t.Entity.(gid.Identifiable)
	if !ok || isNil(entity) {
		if err == nil {
			err = gid.ErrUnidentifiable
		}
		return Descriptor{}, buildError(-1, "entity", err)
	}
	if err != nil && !isUnsaved(entity) {
		return Descriptor{}, buildError(-1, "entity", err)
	}
	typeName := entity.TypeName()
	if partial == "" {
		partial = PartialPath(entity, typeName)
	}

	locals := NewLocals(Local{Name: naming.Element(typeName), Value: entity})
	for _, entry := range t.Locals.entries {
		if _, exists := locals.Get(entry.Name); exists {
			continue
		}
		locals = locals.With(entry.Name, entry.Value)
	}
	return b.partial(partial, locals, data)
}

func (b *Builder) partial(name string, locals Locals, data Locals) (Descriptor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Descriptor{}, buildError(-1, "partial name is required", nil)
	}

	var out Locals
	for _, entry := range locals.entries {
		if strings.TrimSpace(entry.Name) == "" {
			return Descriptor{}, buildError(-1, "local name is required", nil)
		}
		value, err := normalize(b.enc, entry.Value)
		if err != nil {
			return Descriptor{}, buildError(-1, "local "+entry.Name, err)
		}
		out = out.With(entry.Name, value)
	}
	return Descriptor{Partial: name, Locals: out, Data: data}, nil
}

func (b *Builder) data(data Locals) (Locals, error) {
	var out Locals
	for _, entry := range data.entries {
		if strings.TrimSpace(entry.Name) == "" || attrs.IsReserved(entry.Name) {
			continue
		}
		value, err := normalize(b.enc, entry.Value)
		if err != nil {
			return Locals{}, fmt.Errorf("%s: %w", entry.Name, err)
		}
		out = out.With(entry.Name, value)
	}
	return out, nil
}

// PartialPath returns the partial an item renders with: its own PartialPath
// when it implements PartialPather, the type's conventional path otherwise.
func PartialPath(item any, typeName string) string {
	if pather, ok := item.(PartialPather); ok {
		if path := strings.TrimSpace(pather.PartialPath()); path != "" {
			return path
		}
	}
	return naming.PartialPath(typeName)
}

// isUnsaved reports an entity that has a type but no identifier yet; such
// entities travel by value inside locals.
func isUnsaved(entity gid.Identifiable) bool {
	return entity.TypeName() != "" && entity.ID() == ""
}
