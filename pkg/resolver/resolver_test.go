package resolver_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-futurism/pkg/attrs"
	"github.com/goliatone/go-futurism/pkg/descriptor"
	"github.com/goliatone/go-futurism/pkg/placeholder"
	"github.com/goliatone/go-futurism/pkg/render"
	"github.com/goliatone/go-futurism/pkg/render/template/gotemplate"
	"github.com/goliatone/go-futurism/pkg/resolver"
	"github.com/goliatone/go-futurism/pkg/signer"
	"github.com/goliatone/go-futurism/pkg/testsupport"
)

type harness struct {
	fx       *testsupport.Fixture
	emitter  *placeholder.Emitter
	resolver *resolver.Resolver
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	fx := testsupport.NewFixture(t)
	engine, err := gotemplate.New(gotemplate.WithFS(fstest.MapFS{
		"posts/_post.tpl": {Data: []byte(`<article>{{ post.title }}</article>`)},
		"posts/card.tpl":  {Data: []byte(`<div class="card">{{ post.title }} by {{ author.title }}</div>`)},
	}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	fragments, err := render.NewTemplateFragments(engine)
	if err != nil {
		t.Fatalf("new fragments: %v", err)
	}

	e, err := placeholder.New(fx.Codec, fx.Signer)
	if err != nil {
		t.Fatalf("new emitter: %v", err)
	}
	r, err := resolver.New(fx.Codec, fx.Signer, resolver.WithFragmentRenderer(fragments))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return &harness{fx: fx, emitter: e, resolver: r}
}

func (h *harness) tokens(t *testing.T, target descriptor.Target, opts placeholder.Options) (string, string) {
	t.Helper()

	nodes, err := h.emitter.Emit(context.Background(), target, opts, nil)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	params, _ := nodes[0].SignedParams()
	sgid, _ := nodes[0].SGID()
	return params, sgid
}

func TestResolve_SGID(t *testing.T) {
	h := newHarness(t)
	post := h.fx.Posts.Create(&testsupport.Post{Title: "Lorem"})
	params, sgid := h.tokens(t, descriptor.Object{Entity: post}, placeholder.Options{})

	res, err := h.resolver.Resolve(context.Background(), params, sgid)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := resolver.Resolution{
		Partial: "posts/post",
		Locals:  map[string]any{"post": post},
		Data:    map[string]any{},
		Entity:  post,
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("resolution mismatch (-want +got):\n%s", diff)
	}

	out, err := h.resolver.RenderResolution(context.Background(), res)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "<article>Lorem</article>" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestResolve_SignedParamsMaterialisesLocals(t *testing.T) {
	h := newHarness(t)
	post := h.fx.Posts.Create(&testsupport.Post{Title: "Lorem"})
	author := h.fx.Posts.Create(&testsupport.Post{Title: "Ada"})
	draft := &testsupport.Post{Title: "Draft"}

	params, sgid := h.tokens(t, descriptor.Partial{
		Name: "posts/card",
		Locals: descriptor.NewLocals(
			descriptor.Local{Name: "post", Value: post},
			descriptor.Local{Name: "author", Value: author},
			descriptor.Local{Name: "draft", Value: draft},
			descriptor.Local{Name: "meta", Value: map[string]any{"related": []any{post}, "size": 3}},
		),
	}, placeholder.Options{
		HTML: attrs.Attributes{{Name: "data", Value: attrs.Attributes{{Name: "controller", Value: "card"}}}},
	})
	if sgid != "" {
		t.Fatalf("unexpected sgid for partial target")
	}

	res, err := h.resolver.Resolve(context.Background(), params, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := resolver.Resolution{
		Partial: "posts/card",
		Locals: map[string]any{
			"post":   post,
			"author": author,
			"draft":  draft,
			"meta":   map[string]any{"related": []any{post}, "size": int64(3)},
		},
		Data: map[string]any{"controller": "card"},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("resolution mismatch (-want +got):\n%s", diff)
	}

	out, err := h.resolver.Render(context.Background(), params, "")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != `<div class="card">Lorem by Ada</div>` {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestResolve_StaleReferenceIsNotASignatureFailure(t *testing.T) {
	h := newHarness(t)
	post := h.fx.Posts.Create(&testsupport.Post{Title: "Lorem"})
	params, sgid := h.tokens(t, descriptor.Object{Entity: post}, placeholder.Options{})
	h.fx.Posts.Delete(post.Key)

	res, err := h.resolver.Resolve(context.Background(), params, sgid)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Stale() || res.Entity != nil {
		t.Fatalf("expected stale resolution, got %+v", res)
	}
	if diff := cmp.Diff([]string{"gid://dummy/Post/1"}, res.Missing); diff != "" {
		t.Fatalf("missing mismatch (-want +got):\n%s", diff)
	}

	_, err = h.resolver.Render(context.Background(), params, sgid)
	if !errors.Is(err, resolver.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, signer.ErrInvalidSignature) {
		t.Fatalf("stale reference reported as invalid signature")
	}
}

func TestResolve_StaleLocal(t *testing.T) {
	h := newHarness(t)
	post := h.fx.Posts.Create(&testsupport.Post{Title: "Lorem"})
	params, _ := h.tokens(t, descriptor.Collection{Items: []any{post}}, placeholder.Options{})
	h.fx.Posts.Delete(post.Key)

	res, err := h.resolver.Resolve(context.Background(), params, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if diff := cmp.Diff([]string{"gid://dummy/Post/1"}, res.Missing); diff != "" {
		t.Fatalf("missing mismatch (-want +got):\n%s", diff)
	}
	if v, ok := res.Locals["post"]; !ok || v != nil {
		t.Fatalf("expected nil post local, got %v", v)
	}
	if res.Locals["post_counter"] != int64(0) {
		t.Fatalf("unexpected counter %v", res.Locals["post_counter"])
	}
}

func TestResolve_ForeignAppReferenceStaysAString(t *testing.T) {
	h := newHarness(t)
	params, _ := h.tokens(t, descriptor.Partial{
		Name: "posts/card",
		Locals: descriptor.NewLocals(
			descriptor.Local{Name: "link", Value: "gid://other/X/1"},
			descriptor.Local{Name: "links", Value: []string{"gid://other/X/2"}},
		),
	}, placeholder.Options{})

	res, err := h.resolver.Resolve(context.Background(), params, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := map[string]any{
		"link":  "gid://other/X/1",
		"links": []any{"gid://other/X/2"},
	}
	if diff := cmp.Diff(want, res.Locals); diff != "" {
		t.Fatalf("locals mismatch (-want +got):\n%s", diff)
	}
	if len(res.Missing) != 0 {
		t.Fatalf("unexpected missing references %v", res.Missing)
	}
}

func TestResolve_RejectsUntrustedTokens(t *testing.T) {
	h := newHarness(t)
	first := h.fx.Posts.Create(&testsupport.Post{Title: "A"})
	second := h.fx.Posts.Create(&testsupport.Post{Title: "B"})
	_, firstSGID := h.tokens(t, descriptor.Object{Entity: first}, placeholder.Options{})
	secondParams, _ := h.tokens(t, descriptor.Object{Entity: second}, placeholder.Options{
		HTML: attrs.Attributes{{Name: "data", Value: attrs.Attributes{{Name: "x", Value: "1"}}}},
	})

	tampered := []byte(firstSGID)
	tampered[0] ^= 1

	tests := []struct {
		name   string
		params string
		sgid   string
	}{
		{name: "tampered sgid", sgid: string(tampered)},
		{name: "tampered params", params: string(tampered)},
		{name: "sgid as params", params: firstSGID},
		{name: "mismatched pair", params: secondParams, sgid: firstSGID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.resolver.Resolve(context.Background(), tt.params, tt.sgid)
			if !errors.Is(err, signer.ErrInvalidSignature) {
				t.Fatalf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}

func TestResolve_EmptyRequest(t *testing.T) {
	h := newHarness(t)
	if _, err := h.resolver.Resolve(context.Background(), "", ""); !errors.Is(err, resolver.ErrEmptyRequest) {
		t.Fatalf("expected ErrEmptyRequest, got %v", err)
	}
}

func TestRender_RequiresFragmentRenderer(t *testing.T) {
	fx := testsupport.NewFixture(t)
	r, err := resolver.New(fx.Codec, fx.Signer)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	if _, err := r.RenderResolution(context.Background(), resolver.Resolution{Partial: "posts/post"}); !errors.Is(err, resolver.ErrNoFragmentRenderer) {
		t.Fatalf("expected ErrNoFragmentRenderer, got %v", err)
	}
}
