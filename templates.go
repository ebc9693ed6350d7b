package futurism

import (
	"io/fs"

	"github.com/goliatone/go-futurism/pkg/placeholder"
)

// EmbeddedTemplates exposes the built-in placeholder element template so
// callers can reuse or extend it without importing the placeholder package.
func EmbeddedTemplates() fs.FS {
	return placeholder.TemplatesFS()
}
