package testsupport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/goliatone/go-futurism/pkg/gid"
	"github.com/goliatone/go-futurism/pkg/signer"
)

// App is the application name fixtures issue references under.
const App = "dummy"

// Secret is the signing secret shared by fixtures.
const Secret = "testsupport-secret-key-base"

// Post is the single-word entity used across contract tests.
type Post struct {
	Key   string `json:"id,omitempty"`
	Title string `json:"title"`
}

func (p *Post) TypeName() string { return "Post" }
func (p *Post) ID() string       { return p.Key }

// ActionItem exercises multi-word type names.
type ActionItem struct {
	Key         string `json:"id,omitempty"`
	Description string `json:"description"`
}

func (a *ActionItem) TypeName() string { return "ActionItem" }
func (a *ActionItem) ID() string       { return a.Key }

// Entity is a non-record identifiable value with a fixed identifier.
type Entity struct{}

func (Entity) TypeName() string { return "Futurism::HelperTest::GlobalIdableEntity" }
func (Entity) ID() string       { return "fake-id" }

// Store is an in-memory table keyed by sequential identifiers. It satisfies
// gid.Resolver and gid.Instantiator.
type Store[T gid.Identifiable] struct {
	mu     sync.RWMutex
	seq    int
	order  []string
	items  map[string]T
	assign func(T, string)
	blank  func() T
}

// NewStore builds a store; assign writes the generated identifier into a new
// entity and blank returns a zero entity for Instantiate.
func NewStore[T gid.Identifiable](assign func(T, string), blank func() T) *Store[T] {
	return &Store[T]{items: make(map[string]T), assign: assign, blank: blank}
}

// Create stores entity under the next identifier.
func (s *Store[T]) Create(entity T) T {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	id := strconv.Itoa(s.seq)
	s.assign(entity, id)
	s.items[id] = entity
	s.order = append(s.order, id)
	return entity
}

// Delete removes an entity, leaving references to it stale.
func (s *Store[T]) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
}

// All returns stored entities in insertion order.
func (s *Store[T]) All() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.items))
	for _, id := range s.order {
		if item, ok := s.items[id]; ok {
			out = append(out, item)
		}
	}
	return out
}

// Find implements gid.Resolver.
func (s *Store[T]) Find(_ context.Context, id string) (gid.Identifiable, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, false, nil
	}
	return item, true, nil
}

// Instantiate implements gid.Instantiator.
func (s *Store[T]) Instantiate(data json.RawMessage) (gid.Identifiable, error) {
	if s.blank == nil {
		return nil, errors.New("testsupport: store cannot instantiate")
	}
	entity := s.blank()
	if err := json.Unmarshal(data, entity); err != nil {
		return nil, fmt.Errorf("testsupport: instantiate: %w", err)
	}
	return entity, nil
}

// Fixture bundles stores, locator, signer and codec configured for tests.
type Fixture struct {
	Posts       *Store[*Post]
	ActionItems *Store[*ActionItem]
	Locator     *gid.Locator
	Signer      *signer.Signer
	Codec       *gid.Codec
}

// NewFixture builds a Fixture. Setup failures abort the test.
func NewFixture(t testing.TB) *Fixture {
	t.Helper()

	fx, err := BuildFixture()
	if err != nil {
		t.Fatalf("testsupport: build fixture: %v", err)
	}
	return fx
}

// BuildFixture returns a Fixture without requiring testing.TB.
func BuildFixture() (*Fixture, error) {
	posts := NewStore(func(p *Post, id string) { p.Key = id }, func() *Post { return &Post{} })
	items := NewStore(func(a *ActionItem, id string) { a.Key = id }, func() *ActionItem { return &ActionItem{} })

	locator := gid.NewLocator(App)
	if err := locator.Register("Post", posts); err != nil {
		return nil, err
	}
	if err := locator.Register("ActionItem", items); err != nil {
		return nil, err
	}
	if err := locator.Register(Entity{}.TypeName(), gid.ResolverFunc(func(_ context.Context, id string) (gid.Identifiable, bool, error) {
		if id != (Entity{}).ID() {
			return nil, false, nil
		}
		return Entity{}, true, nil
	})); err != nil {
		return nil, err
	}

	s, err := signer.New([]byte(Secret))
	if err != nil {
		return nil, err
	}
	codec, err := gid.NewCodec(locator, s)
	if err != nil {
		return nil, err
	}

	return &Fixture{
		Posts:       posts,
		ActionItems: items,
		Locator:     locator,
		Signer:      s,
		Codec:       codec,
	}, nil
}

// Ref returns the textual reference for entity under App.
func Ref(t testing.TB, entity gid.Identifiable) string {
	t.Helper()

	ref, err := gid.New(App, entity)
	if err != nil {
		t.Fatalf("testsupport: reference: %v", err)
	}
	return ref.String()
}
