package placeholder

import (
	"github.com/goliatone/go-futurism/pkg/attrs"
)

// Node is one emitted placeholder. Content is the meanwhile markup shown until
// the deferred fragment arrives, or the eagerly rendered fragment when
// Bypassed is set (bypassed nodes carry no element and no attributes).
type Node struct {
	Element    Element
	Attributes attrs.Attributes
	Content    string
	Index      int
	Bypassed   bool
}

// Lookup returns a flattened attribute value, e.g. Lookup("data-sgid").
func (n Node) Lookup(name string) (string, bool) {
	pairs, err := n.Attributes.Flatten()
	if err != nil {
		return "", false
	}
	key := attrs.Normalize(name)
	for _, pair := range pairs {
		if pair.Name == key {
			return pair.Value, true
		}
	}
	return "", false
}

// SignedParams returns the data-signed-params token, if any.
func (n Node) SignedParams() (string, bool) {
	return n.Lookup(attrs.DataNamespace + "-" + attrs.SignedParams)
}

// SGID returns the data-sgid token, if any.
func (n Node) SGID() (string, bool) {
	return n.Lookup(attrs.DataNamespace + "-" + attrs.SGID)
}

// Eager reports whether the node asks for an immediate fetch.
func (n Node) Eager() bool {
	v, ok := n.Lookup(attrs.DataNamespace + "-" + attrs.Eager)
	return ok && v == "true"
}

// BroadcastEach reports whether the node is individually addressable.
func (n Node) BroadcastEach() bool {
	v, ok := n.Lookup(attrs.DataNamespace + "-" + attrs.BroadcastEach)
	return ok && v == "true"
}
