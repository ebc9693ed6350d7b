package descriptor

// Target is what a caller asks to defer: a single object, an explicit
// partial, or a collection. It is resolved once, by the Builder.
type Target interface {
	target()
}

// Object targets one identifiable entity. With no Partial and no Locals it
// builds an entity descriptor; otherwise the object is inserted into Locals
// under its element name (Post -> "post") and Partial defaults to the type's
// conventional partial.
type Object struct {
	Entity  any
	Partial string
	Locals  Locals
}

// Partial targets an explicit partial with locals. Identifiable locals are
// replaced by their references.
type Partial struct {
	Name   string
	Locals Locals
}

// Collection targets every item of Items, in order. Each item builds its own
// partial descriptor with locals {<as>: ref, <as>_counter: index}. As and
// Partial override the names inferred from each item's type; Locals are added
// to every item.
type Collection struct {
	Items   []any
	As      string
	Partial string
	Locals  Locals
}

func (Object) target()     {}
func (Partial) target()    {}
func (Collection) target() {}

// Items converts a typed slice into collection items.
func Items[T any](items []T) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
