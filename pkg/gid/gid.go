package gid

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// Scheme prefixes every textual entity reference.
const Scheme = "gid"

var (
	// ErrUnidentifiable reports an object that cannot be referenced: it does not
	// implement Identifiable or exposes an empty type name or identifier.
	ErrUnidentifiable = errors.New("gid: object is not identifiable")
	// ErrInvalidReference reports a string that is not a well-formed reference.
	ErrInvalidReference = errors.New("gid: invalid reference")
)

// Identifiable is implemented by every domain type that can be referenced.
type Identifiable interface {
	TypeName() string
	ID() string
}

// UnidentifiableError describes why an object could not be referenced.
type UnidentifiableError struct {
	Type   string
	Reason string
}

func (e *UnidentifiableError) Error() string {
	return fmt.Sprintf("gid: %s is not identifiable: %s", e.Type, e.Reason)
}

func (e *UnidentifiableError) Unwrap() error { return ErrUnidentifiable }

// GlobalID is the decoded form of gid://<app>/<Type>/<id>.
type GlobalID struct {
	App  string
	Type string
	ID   string
}

// New validates and returns a reference for obj under app.
func New(app string, obj any) (GlobalID, error) {
	if obj == nil {
		return GlobalID{}, &UnidentifiableError{Type: "<nil>", Reason: "nil object"}
	}
	entity, ok := obj.(Identifiable)
	if !ok {
		return GlobalID{}, &UnidentifiableError{Type: reflect.TypeOf(obj).String(), Reason: "missing TypeName/ID"}
	}
	if isNilPointer(entity) {
		return GlobalID{}, &UnidentifiableError{Type: reflect.TypeOf(obj).String(), Reason: "nil object"}
	}
	typeName := strings.TrimSpace(entity.TypeName())
	if typeName == "" {
		return GlobalID{}, &UnidentifiableError{Type: reflect.TypeOf(obj).String(), Reason: "empty type name"}
	}
	if strings.Contains(typeName, "/") {
		return GlobalID{}, &UnidentifiableError{Type: typeName, Reason: "type name contains '/'"}
	}
	id := entity.ID()
	if id == "" {
		return GlobalID{}, &UnidentifiableError{Type: typeName, Reason: "empty identifier"}
	}
	app = strings.TrimSpace(app)
	if app == "" {
		return GlobalID{}, fmt.Errorf("%w: app is required", ErrInvalidReference)
	}
	return GlobalID{App: app, Type: typeName, ID: id}, nil
}

// Parse decodes a textual reference.
func Parse(raw string) (GlobalID, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != Scheme || u.Host == "" {
		return GlobalID{}, fmt.Errorf("%w: %q", ErrInvalidReference, raw)
	}
	path := strings.TrimPrefix(u.EscapedPath(), "/")
	escapedType, escapedID, ok := strings.Cut(path, "/")
	if !ok || escapedType == "" || escapedID == "" || strings.Contains(escapedID, "/") {
		return GlobalID{}, fmt.Errorf("%w: %q", ErrInvalidReference, raw)
	}
	typeName, err := url.PathUnescape(escapedType)
	if err != nil {
		return GlobalID{}, fmt.Errorf("%w: %q", ErrInvalidReference, raw)
	}
	id, err := url.PathUnescape(escapedID)
	if err != nil {
		return GlobalID{}, fmt.Errorf("%w: %q", ErrInvalidReference, raw)
	}
	return GlobalID{App: u.Host, Type: typeName, ID: id}, nil
}

// IsReference reports whether raw parses as a reference.
func IsReference(raw string) bool {
	if !strings.HasPrefix(raw, Scheme+"://") {
		return false
	}
	_, err := Parse(raw)
	return err == nil
}

// String renders the reference.
func (g GlobalID) String() string {
	if g.IsZero() {
		return ""
	}
	return Scheme + "://" + g.App + "/" + url.PathEscape(g.Type) + "/" + url.PathEscape(g.ID)
}

// IsZero reports whether the reference is empty.
func (g GlobalID) IsZero() bool {
	return g.App == "" && g.Type == "" && g.ID == ""
}

// MarshalText implements encoding.TextMarshaler.
func (g GlobalID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GlobalID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Matches reports whether entity carries the referenced type and identifier.
func (g GlobalID) Matches(entity Identifiable) bool {
	if entity == nil || isNilPointer(entity) {
		return false
	}
	return entity.TypeName() == g.Type && entity.ID() == g.ID
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
