package observer

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Scope is anything paths can be resolved against by name.
type Scope interface {
	Lookup(name string) (any, bool)
}

// bailRE matches characters that cannot appear in a simple path.
var bailRE = regexp.MustCompile(`[^\p{L}\p{N}_.$\x{00B7}]`)

type parsedPath struct {
	path     string
	segments []string
}

// pathCache maps xxhash(path) to its segments.
var pathCache sync.Map

// ParsePath splits a dot-delimited path. It reports false for anything
// that is not a simple path.
func ParsePath(path string) ([]string, bool) {
	key := xxhash.Sum64String(path)
	if v, ok := pathCache.Load(key); ok {
		if p := v.(*parsedPath); p.path == path {
			return p.segments, true
		}
	}
	if path == "" || bailRE.MatchString(path) {
		return nil, false
	}
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, false
		}
	}
	pathCache.Store(key, &parsedPath{path: path, segments: segments})
	return segments, true
}

// GetPath walks segments from root, reading each step the way a property
// access would, so reads inside an evaluation are tracked.
func GetPath(root any, segments []string) any {
	cur := root
	for _, seg := range segments {
		if cur == nil {
			return nil
		}
		cur = getKey(cur, seg)
	}
	return cur
}

func getKey(v any, key string) any {
	switch t := v.(type) {
	case *Object:
		return t.Get(key)
	case *Array:
		if key == "length" {
			return t.Len()
		}
		i, err := strconv.Atoi(key)
		if err != nil {
			return nil
		}
		return t.At(i)
	case *Ref:
		if key == "value" {
			return t.Value()
		}
		return nil
	case Scope:
		val, _ := t.Lookup(key)
		return val
	case map[string]any:
		return t[key]
	}
	return nil
}
