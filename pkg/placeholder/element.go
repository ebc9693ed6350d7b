package placeholder

import (
	"fmt"
	"regexp"
	"strings"
)

// ElementName is the autonomous custom element used for div placeholders.
const ElementName = "futurism-element"

var (
	tagPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

	// customized built-in names that do not follow futurism-<tag>.
	builtinNames = map[string]string{
		"tr": "futurism-table-row",
		"li": "futurism-li",
	}
)

// Element is the markup element a placeholder is emitted as: an autonomous
// custom element, or a built-in Tag specialised through the is attribute.
type Element struct {
	Tag string
	Is  string
}

// ResolveElement maps an extends option to an element. Empty and "div" give
// <futurism-element>; "tr" gives <tr is="futurism-table-row">; any other tag t
// gives <t is="futurism-t">.
func ResolveElement(extends string) (Element, error) {
	tag := strings.ToLower(strings.TrimSpace(extends))
	if tag == "" || tag == "div" {
		return Element{Tag: ElementName}, nil
	}
	if !tagPattern.MatchString(tag) {
		return Element{}, fmt.Errorf("placeholder: invalid extends tag %q", extends)
	}
	if name, ok := builtinNames[tag]; ok {
		return Element{Tag: tag, Is: name}, nil
	}
	return Element{Tag: tag, Is: "futurism-" + tag}, nil
}
