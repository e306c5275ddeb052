// Package resolve maps CommonJS require paths onto a design document tree.
//
// Resolution consumes one path segment per step, strictly left to right,
// and aborts on the first segment that cannot be followed. "." keeps the
// current node, ".." climbs to the parent's node, and any other segment
// descends into the named child.
package resolve

import (
	"strings"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/ddocjs/internal/ddoc"
	"github.com/GriffinCanCode/ddocjs/internal/failure"
)

// Descriptor is a module being resolved or loaded.
type Descriptor struct {
	// Current is the document node reached so far.
	Current ddoc.Node
	// Parent is the enclosing descriptor. It is a back-reference only.
	Parent *Descriptor
	// ID is the slash joined path of the module.
	ID string
	// Exports is what the module makes visible to requirers.
	Exports interface{}
}

// Source returns the module source text, if Current is a string.
func (d *Descriptor) Source() (string, bool) {
	s, ok := d.Current.(string)
	return s, ok
}

// Root returns the descriptor top-level requires start from. It is
// anchored one level deep so that "./name" resolves from the root while
// ".." at the root still fails.
func Root(root ddoc.Node) *Descriptor {
	return &Descriptor{
		Current: root,
		Parent:  &Descriptor{Current: root},
	}
}

// Override returns the descriptor absolute requires restart from. It has
// no parent, so ".." cannot climb above a module's top-level directory.
func Override(root ddoc.Node) *Descriptor {
	return &Descriptor{Current: root}
}

// Split turns a require path into segments.
func Split(path string) []string {
	return strings.Split(path, "/")
}

// Resolve walks segments starting from ctx. When root is non-nil and the
// first segment is a plain name, resolution restarts from root, which makes
// the require absolute within the document.
func Resolve(segments []string, ctx *Descriptor, root *Descriptor) (*Descriptor, error) {
	if ctx == nil {
		ctx = &Descriptor{}
	}

	if len(segments) == 0 {
		if _, ok := ctx.Current.(string); !ok {
			return nil, failure.New(failure.InvalidRequirePath,
				"Must require a JavaScript string, not: "+ddoc.TypeOf(ctx.Current))
		}
		return &Descriptor{
			Current: ctx.Current,
			Parent:  ctx.Parent,
			ID:      ctx.ID,
			Exports: map[string]interface{}{},
		}, nil
	}

	n, rest := segments[0], segments[1:]
	switch n {
	case "..":
		if ctx.Parent == nil || ctx.Parent.Parent == nil {
			return nil, failure.New(failure.InvalidRequirePath, "Object has no parent "+serialize(ctx.Current))
		}
		return Resolve(rest, &Descriptor{
			Current: ctx.Parent.Current,
			Parent:  ctx.Parent.Parent,
			ID:      dirname(ctx.ID),
		}, nil)
	case ".":
		if ctx.Parent == nil {
			return nil, failure.New(failure.InvalidRequirePath, "Object has no parent "+serialize(ctx.Current))
		}
		return Resolve(rest, &Descriptor{
			Current: ctx.Current,
			Parent:  ctx.Parent,
			ID:      ctx.ID,
		}, nil)
	}

	if root != nil {
		ctx = root
	}
	child, ok := ddoc.Child(ctx.Current, n)
	if !ok {
		return nil, failure.Newf(failure.InvalidRequirePath,
			"Object has no property %q. %s", n, serialize(ctx.Current))
	}

	id := n
	if ctx.ID != "" {
		id = ctx.ID + "/" + n
	}
	return Resolve(rest, &Descriptor{
		Current: child,
		Parent:  ctx,
		ID:      id,
	}, nil)
}

func dirname(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[:i]
	}
	return ""
}

// serialize renders a node for diagnostics.
func serialize(node ddoc.Node) string {
	s, err := sonic.ConfigStd.MarshalToString(node)
	if err != nil {
		return "<unserializable " + ddoc.TypeOf(node) + ">"
	}
	return s
}
