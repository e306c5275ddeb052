package ddoc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Node is any value in a document tree: map[string]interface{},
// []interface{}, string or a scalar.
type Node = interface{}

// Document is a design document. Its tree is treated as immutable once
// constructed. Module caches are not kept here; see Caches.
type Document struct {
	id   string
	root map[string]interface{}
}

// New creates a document. An empty id is replaced by a random one.
func New(id string, root map[string]interface{}) *Document {
	if id == "" {
		id = uuid.NewString()
	}
	if root == nil {
		root = map[string]interface{}{}
	}
	return &Document{
		id:   id,
		root: normalize(root).(map[string]interface{}),
	}
}

// ID returns the document identity.
func (d *Document) ID() string {
	return d.id
}

// Root returns the root mapping.
func (d *Document) Root() map[string]interface{} {
	return d.root
}

// Lookup walks a slash separated path from the root. It does not apply
// require semantics: "." and ".." are ordinary keys here.
func (d *Document) Lookup(path string) (Node, bool) {
	var node Node = d.root
	if path == "" {
		return node, true
	}
	for _, seg := range strings.Split(path, "/") {
		next, ok := Child(node, seg)
		if !ok {
			return nil, false
		}
		node = next
	}
	return node, true
}

// Child returns the named child of a node. Maps are indexed by key and
// arrays by decimal index; every other node has no children.
func Child(node Node, name string) (Node, bool) {
	switch n := node.(type) {
	case map[string]interface{}:
		v, ok := n[name]
		return v, ok
	case []interface{}:
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= len(n) || strconv.Itoa(i) != name {
			return nil, false
		}
		return n[i], true
	}
	return nil, false
}

// TypeOf names a node's type the way JavaScript's typeof would.
func TypeOf(node Node) string {
	switch node.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "number"
	default:
		return "object"
	}
}

func normalize(node Node) Node {
	switch n := node.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(n))
		for k, v := range n {
			out[k] = normalize(v)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(n))
		for k, v := range n {
			out[fmt.Sprint(k)] = normalize(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(n))
		for i, v := range n {
			out[i] = normalize(v)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(n))
		for i, v := range n {
			out[i] = normalize(v)
		}
		return out
	}
	return node
}
