// Package naming derives local names and partial paths from entity type names.
package naming

import (
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"
)

// Element returns the snake-cased singular element name for a type name, e.g.
// "ActionItem" -> "action_item". Namespaced names ("Admin::Post",
// "admin.Post", "admin/Post") keep only their last segment.
func Element(typeName string) string {
	base := lastSegment(typeName)
	if base == "" {
		return ""
	}
	return inflection.Singular(strcase.ToSnake(base))
}

// Collection returns the pluralised element name, e.g. "action_items".
func Collection(typeName string) string {
	element := Element(typeName)
	if element == "" {
		return ""
	}
	return inflection.Plural(element)
}

// PartialPath returns the conventional partial for a type name, e.g.
// "Post" -> "posts/post".
func PartialPath(typeName string) string {
	element := Element(typeName)
	if element == "" {
		return ""
	}
	return Collection(typeName) + "/" + element
}

// Counter returns the counter local name for an element name.
func Counter(element string) string {
	element = strings.TrimSpace(element)
	if element == "" {
		return ""
	}
	return element + "_counter"
}

func lastSegment(typeName string) string {
	trimmed := strings.TrimSpace(typeName)
	if trimmed == "" {
		return ""
	}
	for _, sep := range []string{"::", ".", "/"} {
		if idx := strings.LastIndex(trimmed, sep); idx >= 0 {
			trimmed = trimmed[idx+len(sep):]
		}
	}
	return strings.TrimSpace(trimmed)
}
