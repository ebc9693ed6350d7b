// Package template defines the engine-agnostic template seam. The gotemplate
// subpackage provides the pongo2-backed default.
package template
