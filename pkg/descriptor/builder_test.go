package descriptor_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-futurism/pkg/descriptor"
	"github.com/goliatone/go-futurism/pkg/gid"
	"github.com/goliatone/go-futurism/pkg/signer"
	"github.com/goliatone/go-futurism/pkg/testsupport"
)

func newBuilder(t *testing.T) (*descriptor.Builder, *testsupport.Fixture) {
	t.Helper()

	fx := testsupport.NewFixture(t)
	b, err := descriptor.NewBuilder(fx.Codec)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	return b, fx
}

func ref(id string, typeName string) gid.GlobalID {
	return gid.GlobalID{App: testsupport.App, Type: typeName, ID: id}
}

func TestBuild_SingleObjectYieldsEntityDescriptor(t *testing.T) {
	b, fx := newBuilder(t)
	post := fx.Posts.Create(&testsupport.Post{Title: "Lorem"})

	d, err := b.Build(descriptor.Object{Entity: post}, descriptor.Locals{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if d.Mode() != descriptor.ModeEntity {
		t.Fatalf("expected entity mode, got %s", d.Mode())
	}
	if diff := cmp.Diff(descriptor.Descriptor{Entity: ref("1", "Post")}, d); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_ExplicitPartialReplacesEntitiesWithReferences(t *testing.T) {
	b, fx := newBuilder(t)
	post := fx.Posts.Create(&testsupport.Post{Title: "Lorem"})

	d, err := b.Build(descriptor.Partial{
		Name: "posts/card",
		Locals: descriptor.NewLocals(
			descriptor.Local{Name: "post", Value: post},
			descriptor.Local{Name: "highlight", Value: true},
			descriptor.Local{Name: "options", Value: map[string]any{"size": 3, "author": post}},
		),
	}, descriptor.NewLocals(descriptor.Local{Name: "action", Value: "test#click"}))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := descriptor.Descriptor{
		Partial: "posts/card",
		Locals: descriptor.NewLocals(
			descriptor.Local{Name: "post", Value: ref("1", "Post")},
			descriptor.Local{Name: "highlight", Value: true},
			descriptor.Local{Name: "options", Value: map[string]any{"size": int64(3), "author": ref("1", "Post")}},
		),
		Data: descriptor.NewLocals(descriptor.Local{Name: "action", Value: "test#click"}),
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"post", "highlight", "options"}, d.Locals.Names()); diff != "" {
		t.Fatalf("local order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_ObjectWithLocalsInsertsElementName(t *testing.T) {
	b, fx := newBuilder(t)
	item := fx.ActionItems.Create(&testsupport.ActionItem{Description: "Do this"})

	d, err := b.Build(descriptor.Object{
		Entity: item,
		Locals: descriptor.NewLocals(descriptor.Local{Name: "compact", Value: true}),
	}, descriptor.Locals{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := descriptor.Descriptor{
		Partial: "action_items/action_item",
		Locals: descriptor.NewLocals(
			descriptor.Local{Name: "action_item", Value: ref("1", "ActionItem")},
			descriptor.Local{Name: "compact", Value: true},
		),
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_UnsavedEntityTravelsByValue(t *testing.T) {
	b, _ := newBuilder(t)

	d, err := b.Build(descriptor.Object{Entity: &testsupport.Post{Title: "draft"}, Partial: "posts/form"}, descriptor.Locals{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	value, _ := d.Locals.Get("post")
	embedded, ok := value.(descriptor.Embedded)
	if !ok {
		t.Fatalf("expected embedded value, got %T", value)
	}
	if embedded.Type != "Post" || string(embedded.Value) != `{"title":"draft"}` {
		t.Fatalf("unexpected embedded value %+v (%s)", embedded, embedded.Value)
	}
}

func TestBuild_ArbitraryIdentifiableEntityAsLocal(t *testing.T) {
	b, _ := newBuilder(t)

	d, err := b.Build(descriptor.Partial{
		Name:   "posts/form",
		Locals: descriptor.NewLocals(descriptor.Local{Name: "entity", Value: testsupport.Entity{}}),
	}, descriptor.Locals{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	value, _ := d.Locals.Get("entity")
	if got := value.(gid.GlobalID).String(); got != "gid://dummy/Futurism::HelperTest::GlobalIdableEntity/fake-id" {
		t.Fatalf("unexpected reference %q", got)
	}
}

func TestBuild_Errors(t *testing.T) {
	b, _ := newBuilder(t)

	tests := []struct {
		name           string
		target         descriptor.Target
		unidentifiable bool
	}{
		{name: "unsaved entity without partial", target: descriptor.Object{Entity: &testsupport.Post{}}, unidentifiable: true},
		{name: "non identifiable object", target: descriptor.Object{Entity: "post"}, unidentifiable: true},
		{name: "missing partial name", target: descriptor.Partial{}},
		{name: "collection", target: descriptor.Collection{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Build(tc.target, descriptor.Locals{})
			if !errors.Is(err, descriptor.ErrDescriptorBuild) {
				t.Fatalf("expected ErrDescriptorBuild, got %v", err)
			}
			if got := errors.Is(err, gid.ErrUnidentifiable); got != tc.unidentifiable {
				t.Fatalf("errors.Is(err, ErrUnidentifiable) = %v, want %v (%v)", got, tc.unidentifiable, err)
			}
		})
	}
}

func TestBuildItem_CollectionLocalsAndCounters(t *testing.T) {
	b, fx := newBuilder(t)
	fx.ActionItems.Create(&testsupport.ActionItem{Description: "Do this"})
	fx.ActionItems.Create(&testsupport.ActionItem{Description: "Do that"})

	c := descriptor.Collection{Items: descriptor.Items(fx.ActionItems.All())}
	for i := range c.Items {
		d, err := b.BuildItem(c, i, descriptor.Locals{})
		if err != nil {
			t.Fatalf("build item %d: %v", i, err)
		}
		want := descriptor.NewLocals(
			descriptor.Local{Name: "action_item", Value: ref(fx.ActionItems.All()[i].ID(), "ActionItem")},
			descriptor.Local{Name: "action_item_counter", Value: int64(i)},
		)
		if diff := cmp.Diff(want, d.Locals); diff != "" {
			t.Fatalf("item %d locals mismatch (-want +got):\n%s", i, diff)
		}
		if d.Partial != "action_items/action_item" {
			t.Fatalf("unexpected partial %q", d.Partial)
		}
	}
}

func TestBuildItem_AsAndPartialOverrides(t *testing.T) {
	b, fx := newBuilder(t)
	post := fx.Posts.Create(&testsupport.Post{Title: "Lorem"})

	c := descriptor.Collection{
		Items:   []any{post},
		As:      "entry",
		Partial: "feed/entry",
		Locals:  descriptor.NewLocals(descriptor.Local{Name: "entry", Value: "ignored"}, descriptor.Local{Name: "compact", Value: true}),
	}
	d, err := b.BuildItem(c, 0, descriptor.Locals{})
	if err != nil {
		t.Fatalf("build item: %v", err)
	}
	want := descriptor.Descriptor{
		Partial: "feed/entry",
		Locals: descriptor.NewLocals(
			descriptor.Local{Name: "entry", Value: ref("1", "Post")},
			descriptor.Local{Name: "entry_counter", Value: int64(0)},
			descriptor.Local{Name: "compact", Value: true},
		),
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildItem_BadItemFailsOnlyThatItem(t *testing.T) {
	b, fx := newBuilder(t)
	post := fx.Posts.Create(&testsupport.Post{Title: "Lorem"})

	c := descriptor.Collection{Items: []any{post, struct{}{}, post}}

	if _, err := b.BuildItem(c, 0, descriptor.Locals{}); err != nil {
		t.Fatalf("item 0: %v", err)
	}
	_, err := b.BuildItem(c, 1, descriptor.Locals{})
	var buildErr *descriptor.BuildError
	if !errors.As(err, &buildErr) || buildErr.Index != 1 {
		t.Fatalf("expected BuildError for item 1, got %v", err)
	}
	if !errors.Is(err, gid.ErrUnidentifiable) {
		t.Fatalf("expected unidentifiable cause, got %v", err)
	}
	if _, err := b.BuildItem(c, 2, descriptor.Locals{}); err != nil {
		t.Fatalf("item 2: %v", err)
	}
}

func TestBuild_DropsReservedDataKeys(t *testing.T) {
	b, fx := newBuilder(t)
	post := fx.Posts.Create(&testsupport.Post{Title: "Lorem"})

	d, err := b.Build(descriptor.Object{Entity: post}, descriptor.NewLocals(
		descriptor.Local{Name: "controller", Value: "test"},
		descriptor.Local{Name: "sgid", Value: "test"},
		descriptor.Local{Name: "signed_params", Value: "test"},
	))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if diff := cmp.Diff([]string{"controller"}, d.Data.Names()); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_RejectsEmbeddedShapedLocals(t *testing.T) {
	b, _ := newBuilder(t)

	type payload struct {
		Type  string         `json:"_type"`
		Value map[string]any `json:"_value"`
	}

	tests := []struct {
		name  string
		value any
	}{
		{name: "map", value: map[string]any{"_type": "Post", "_value": map[string]any{"title": "x"}}},
		{name: "nested map", value: []any{map[string]any{"_type": "Post", "_value": nil}}},
		{name: "locals", value: descriptor.NewLocals(
			descriptor.Local{Name: "_type", Value: "Post"},
			descriptor.Local{Name: "_value", Value: "x"},
		)},
		{name: "struct", value: payload{Type: "Post", Value: map[string]any{"title": "x"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Build(descriptor.Partial{
				Name:   "posts/card",
				Locals: descriptor.NewLocals(descriptor.Local{Name: "meta", Value: tc.value}),
			}, descriptor.Locals{})
			if !errors.Is(err, descriptor.ErrDescriptorBuild) {
				t.Fatalf("expected ErrDescriptorBuild, got %v", err)
			}
			if !errors.Is(err, descriptor.ErrReservedShape) {
				t.Fatalf("expected ErrReservedShape, got %v", err)
			}
		})
	}

	d, err := b.Build(descriptor.Partial{
		Name: "posts/card",
		Locals: descriptor.NewLocals(descriptor.Local{
			Name:  "meta",
			Value: map[string]any{"_type": "Post", "_value": 1, "extra": true},
		}),
	}, descriptor.Locals{})
	if err != nil {
		t.Fatalf("build map with extra keys: %v", err)
	}
	want := map[string]any{"_type": "Post", "_value": int64(1), "extra": true}
	got, _ := d.Locals.Get("meta")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("meta mismatch (-want +got):\n%s", diff)
	}
}

func TestSignVerify_RoundTrip(t *testing.T) {
	b, fx := newBuilder(t)
	post := fx.Posts.Create(&testsupport.Post{Title: "Lorem"})

	targets := []descriptor.Target{
		descriptor.Object{Entity: post},
		descriptor.Partial{Name: "posts/card", Locals: descriptor.NewLocals(
			descriptor.Local{Name: "post", Value: post},
			descriptor.Local{Name: "ratio", Value: 0.5},
			descriptor.Local{Name: "tags", Value: []string{"a", "b"}},
			descriptor.Local{Name: "draft", Value: &testsupport.Post{Title: "draft"}},
			descriptor.Local{Name: "nothing", Value: nil},
			descriptor.Local{Name: "big", Value: float64(1 << 60)},
		)},
	}

	for _, target := range targets {
		d, err := b.Build(target, descriptor.NewLocals(descriptor.Local{Name: "controller", Value: "test"}))
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		token, err := descriptor.Sign(fx.Signer, d)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		got, err := descriptor.Verify(fx.Signer, token)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if diff := cmp.Diff(d, got); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestVerify_RejectsTamperedAndForeignTokens(t *testing.T) {
	b, fx := newBuilder(t)
	post := fx.Posts.Create(&testsupport.Post{Title: "Lorem"})

	d, err := b.Build(descriptor.Partial{Name: "posts/card", Locals: descriptor.NewLocals(descriptor.Local{Name: "post", Value: post})}, descriptor.Locals{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	token, err := descriptor.Sign(fx.Signer, d)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for i := range token {
		mutated := []byte(token)
		mutated[i] ^= 0x01
		if _, err := descriptor.Verify(fx.Signer, string(mutated)); !errors.Is(err, signer.ErrInvalidSignature) {
			t.Fatalf("flip at %d: expected ErrInvalidSignature, got %v", i, err)
		}
	}

	sgid, err := fx.Codec.Sign(post)
	if err != nil {
		t.Fatalf("sign reference: %v", err)
	}
	if _, err := descriptor.Verify(fx.Signer, sgid); !errors.Is(err, signer.ErrInvalidSignature) {
		t.Fatalf("expected sgid token to be rejected as signed params, got %v", err)
	}

	notDescriptor, err := fx.Signer.Sign(map[string]string{"hello": "world"}, descriptor.PurposeSignedParams)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := descriptor.Verify(fx.Signer, notDescriptor); !errors.Is(err, signer.ErrInvalidSignature) {
		t.Fatalf("expected malformed descriptor to be rejected, got %v", err)
	}
}
