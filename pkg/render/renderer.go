package render

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-futurism/pkg/render/template"
)

// Fragment is a partial plus the in-memory locals it renders with. Entity
// references have already been resolved back to objects.
type Fragment struct {
	Partial string
	Locals  map[string]any
}

// FragmentRenderer renders fragments eagerly. The placeholder emitter uses it
// for the bypass path; resolvers use it once a descriptor has been verified.
type FragmentRenderer interface {
	RenderFragment(ctx context.Context, fragment Fragment) (string, error)
}

// FragmentRendererFunc adapts a function into a FragmentRenderer.
type FragmentRendererFunc func(ctx context.Context, fragment Fragment) (string, error)

// RenderFragment implements FragmentRenderer.
func (f FragmentRendererFunc) RenderFragment(ctx context.Context, fragment Fragment) (string, error) {
	return f(ctx, fragment)
}

// TemplateFragments renders fragments through a template engine, using the
// partial name as the template name and the locals as the template context.
type TemplateFragments struct {
	templates template.TemplateRenderer
}

// NewTemplateFragments wraps a template engine.
func NewTemplateFragments(templates template.TemplateRenderer) (*TemplateFragments, error) {
	if templates == nil {
		return nil, errors.New("render: template renderer is required")
	}
	return &TemplateFragments{templates: templates}, nil
}

// RenderFragment implements FragmentRenderer.
func (t *TemplateFragments) RenderFragment(ctx context.Context, fragment Fragment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	partial := strings.TrimSpace(fragment.Partial)
	if partial == "" {
		return "", errors.New("render: partial is required")
	}
	locals := fragment.Locals
	if locals == nil {
		locals = map[string]any{}
	}
	out, err := t.templates.RenderTemplate(partial, locals)
	if err != nil {
		return "", fmt.Errorf("render: fragment %q: %w", partial, err)
	}
	return out, nil
}
