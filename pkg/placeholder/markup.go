package placeholder

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/goliatone/go-futurism/pkg/render/template/gotemplate"
)

//go:embed templates/*.tpl
var templatesFS embed.FS

const elementTemplate = "templates/element"

var (
	defaultMarkupOnce sync.Once
	defaultMarkup     *gotemplate.Engine
	defaultMarkupErr  error
)

// markupEngine returns the shared engine serving the embedded templates.
func markupEngine() (*gotemplate.Engine, error) {
	defaultMarkupOnce.Do(func() {
		defaultMarkup, defaultMarkupErr = gotemplate.New(
			gotemplate.WithSetName("futurism-placeholder"),
			gotemplate.WithFS(templatesFS),
		)
	})
	return defaultMarkup, defaultMarkupErr
}

// Markup serialises a node. Attribute values are escaped by the template
// engine; content is written as is. Bypassed nodes are returned unchanged.
func (e *Emitter) Markup(node Node) (string, error) {
	if node.Bypassed {
		return node.Content, nil
	}
	pairs, err := node.Attributes.Flatten()
	if err != nil {
		return "", fmt.Errorf("placeholder: markup: %w", err)
	}
	out, err := e.cfg.markup.RenderTemplate(elementTemplate, map[string]any{
		"tag":     node.Element.Tag,
		"is":      node.Element.Is,
		"attrs":   pairs,
		"content": node.Content,
	})
	if err != nil {
		return "", fmt.Errorf("placeholder: markup: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// TemplatesFS exposes the embedded element template so callers can build a
// custom markup engine around it.
func TemplatesFS() fs.FS {
	return templatesFS
}
