package gid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownType is returned when no resolver is registered for a type.
	ErrUnknownType = errors.New("gid: no resolver registered for type")
	// ErrAppMismatch is returned for references issued by another application.
	ErrAppMismatch = errors.New("gid: reference belongs to another app")
	// ErrReferenceMismatch is returned when a resolver yields an object other
	// than the one referenced.
	ErrReferenceMismatch = errors.New("gid: resolver returned a different object")
)

// Resolver looks an entity up by identifier. A missing entity is reported with
// found == false and a nil error.
type Resolver interface {
	Find(ctx context.Context, id string) (entity Identifiable, found bool, err error)
}

// ResolverFunc adapts a function into a Resolver.
type ResolverFunc func(ctx context.Context, id string) (Identifiable, bool, error)

// Find implements Resolver.
func (f ResolverFunc) Find(ctx context.Context, id string) (Identifiable, bool, error) {
	return f(ctx, id)
}

// Instantiator is optionally implemented by resolvers that can rebuild an
// unsaved entity embedded by value.
type Instantiator interface {
	Instantiate(data json.RawMessage) (Identifiable, error)
}

// Locator maps type names to resolvers. Registration normally happens at
// startup; lookups are safe for concurrent use.
type Locator struct {
	app string

	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewLocator creates an empty locator for references issued under app.
func NewLocator(app string) *Locator {
	return &Locator{
		app:       strings.TrimSpace(app),
		resolvers: make(map[string]Resolver),
	}
}

// App returns the application name references are scoped to.
func (l *Locator) App() string {
	return l.app
}

// Register adds a resolver for typeName. Duplicate names return an error.
func (l *Locator) Register(typeName string, resolver Resolver) error {
	typeName = strings.TrimSpace(typeName)
	if typeName == "" {
		return fmt.Errorf("gid: type name is required")
	}
	if resolver == nil {
		return fmt.Errorf("gid: resolver for %q is required", typeName)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.resolvers[typeName]; exists {
		return fmt.Errorf("gid: resolver for %q already registered", typeName)
	}
	l.resolvers[typeName] = resolver
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (l *Locator) MustRegister(typeName string, resolver Resolver) {
	if err := l.Register(typeName, resolver); err != nil {
		panic(err)
	}
}

// Types returns the sorted list of registered type names.
func (l *Locator) Types() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.resolvers))
	for name := range l.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Locator) resolver(typeName string) (Resolver, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	resolver, ok := l.resolvers[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	return resolver, nil
}

// Locate resolves ref. A reference whose entity no longer exists returns
// found == false with a nil error so callers can tell stale references from
// untrusted ones.
func (l *Locator) Locate(ctx context.Context, ref GlobalID) (Identifiable, bool, error) {
	if ref.App != l.app {
		return nil, false, fmt.Errorf("%w: %q", ErrAppMismatch, ref.App)
	}
	resolver, err := l.resolver(ref.Type)
	if err != nil {
		return nil, false, err
	}

	entity, found, err := resolver.Find(ctx, ref.ID)
	if err != nil {
		return nil, false, fmt.Errorf("gid: find %s: %w", ref, err)
	}
	if !found || entity == nil || isNilPointer(entity) {
		return nil, false, nil
	}
	if !ref.Matches(entity) {
		return nil, false, fmt.Errorf("%w: %s resolved to %s/%s", ErrReferenceMismatch, ref, entity.TypeName(), entity.ID())
	}
	return entity, true, nil
}

// LocateString parses raw and resolves it.
func (l *Locator) LocateString(ctx context.Context, raw string) (Identifiable, bool, error) {
	ref, err := Parse(raw)
	if err != nil {
		return nil, false, err
	}
	return l.Locate(ctx, ref)
}

// Instantiate rebuilds an entity embedded by value.
func (l *Locator) Instantiate(typeName string, data json.RawMessage) (Identifiable, error) {
	resolver, err := l.resolver(typeName)
	if err != nil {
		return nil, err
	}
	inst, ok := resolver.(Instantiator)
	if !ok {
		return nil, fmt.Errorf("gid: resolver for %q cannot instantiate values", typeName)
	}
	entity, err := inst.Instantiate(data)
	if err != nil {
		return nil, fmt.Errorf("gid: instantiate %q: %w", typeName, err)
	}
	return entity, nil
}
