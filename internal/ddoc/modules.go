package ddoc

import (
	"sort"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
)

// ModuleIDs lists the slash paths of every string leaf that matches the
// doublestar pattern. An empty pattern matches everything. Ids are sorted.
func (d *Document) ModuleIDs(pattern string) ([]string, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}

	var ids []string
	walk(d.root, "", func(id string) {
		if pattern == "" {
			ids = append(ids, id)
			return
		}
		if ok, _ := doublestar.Match(pattern, id); ok {
			ids = append(ids, id)
		}
	})
	sort.Strings(ids)
	return ids, nil
}

func walk(node Node, prefix string, visit func(string)) {
	join := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "/" + name
	}

	switch n := node.(type) {
	case string:
		if prefix != "" {
			visit(prefix)
		}
	case map[string]interface{}:
		for k, v := range n {
			walk(v, join(k), visit)
		}
	case []interface{}:
		for i, v := range n {
			walk(v, join(strconv.Itoa(i)), visit)
		}
	}
}
