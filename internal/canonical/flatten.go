package canonical

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxFlattenDepth bounds recursion when merging nested objects so that
// adversarial or malformed deeply-nested payloads cannot exhaust the stack.
// Levels beyond the cap are dropped.
const maxFlattenDepth = 16

// AttrBag is a flattened attribute bag: normalized key to scalar, string,
// or array value. Nested objects have been merged into the top level, so a
// bag never contains another bag directly; arrays may still hold bags.
type AttrBag map[string]any

// Has reports whether key is present with a non-nil value.
func (b AttrBag) Has(key string) bool {
	v, ok := b[key]
	return ok && v != nil
}

// NormalizeKey canonicalizes a source key: unicode NFKC fold, lowercase,
// interior spaces to underscores. "Total Fat" becomes "total_fat".
func NormalizeKey(key string) string {
	key = norm.NFKC.String(key)
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.ReplaceAll(key, " ", "_")
}

// Flatten normalizes every key in obj and recursively merges nested object
// values into the top level. The walk is depth-first and later writes win,
// so a child key overwrites an already-flattened parent key of the same
// name. Arrays pass through with their object elements flattened in place.
func Flatten(obj map[string]any) AttrBag {
	bag := make(AttrBag, len(obj))
	flattenInto(bag, obj, 0)
	return bag
}

func flattenInto(bag AttrBag, obj map[string]any, depth int) {
	if depth >= maxFlattenDepth {
		return
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// Scalars and arrays first, nested objects after: a child key must win
	// against a same-named key already flattened at this level.
	for _, key := range keys {
		switch v := obj[key].(type) {
		case map[string]any:
			continue
		case []any:
			bag[NormalizeKey(key)] = flattenElements(v, depth+1)
		default:
			bag[NormalizeKey(key)] = v
		}
	}
	for _, key := range keys {
		if child, ok := obj[key].(map[string]any); ok {
			flattenInto(bag, child, depth+1)
		}
	}
}

// flattenElements normalizes object elements of an array so downstream
// consumers (e.g. an "ingredients" list) see attribute bags, not raw maps.
func flattenElements(arr []any, depth int) []any {
	if depth >= maxFlattenDepth {
		return arr
	}
	out := make([]any, len(arr))
	for i, el := range arr {
		if obj, ok := el.(map[string]any); ok {
			sub := make(AttrBag, len(obj))
			flattenInto(sub, obj, depth)
			out[i] = sub
		} else {
			out[i] = el
		}
	}
	return out
}
