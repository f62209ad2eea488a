package canonical

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_FencedBlock(t *testing.T) {
	text := "Here is the analysis:\n```json\n{\"a\": 1}\n```\nLet me know if you need more."

	parsed, err := Extract(text)
	require.NoError(t, err)
	assert.False(t, parsed.Array)
	require.Len(t, parsed.Bags, 1)
	assert.Equal(t, float64(1), parsed.Bags[0]["a"])
}

func TestExtract_FenceWithoutTag(t *testing.T) {
	parsed, err := Extract("```\n{\"calories\": 120}\n```")
	require.NoError(t, err)
	assert.Equal(t, float64(120), parsed.Bags[0]["calories"])
}

func TestExtract_BraceSpanFallback(t *testing.T) {
	text := `Sure! The nutrition facts are {"calories": 95, "name": "apple"} as requested.`

	parsed, err := Extract(text)
	require.NoError(t, err)
	require.Len(t, parsed.Bags, 1)
	assert.Equal(t, "apple", parsed.Bags[0]["name"])
}

func TestExtract_NoStructuredData(t *testing.T) {
	_, err := Extract("I could not identify any food in this image.")
	assert.True(t, errors.Is(err, ErrNoStructuredData))
}

func TestExtract_MalformedPayload(t *testing.T) {
	_, err := Extract(`{"calories": 95,,}`)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestExtract_ArrayOfObjects(t *testing.T) {
	parsed, err := Extract(`[{"name": "rice"}, {"name": "beans"}]`)
	require.NoError(t, err)
	assert.True(t, parsed.Array)
	require.Len(t, parsed.Bags, 2)
	assert.Equal(t, "rice", parsed.Bags[0]["name"])
	assert.Equal(t, "beans", parsed.Bags[1]["name"])
}

func TestExtract_ArrayNonObjectElementsDropped(t *testing.T) {
	parsed, err := Extract(`[{"name": "rice"}, "stray", 42]`)
	require.NoError(t, err)
	require.Len(t, parsed.Bags, 1)
	assert.Equal(t, "rice", parsed.Bags[0]["name"])
}

func TestExtract_ArrayAllElementsUnusable(t *testing.T) {
	_, err := Extract(`["a", "b", 3]`)
	assert.True(t, errors.Is(err, ErrUnusableShape))
}

func TestExtract_ScalarPayloadUnusable(t *testing.T) {
	_, err := Extract("```json\n\"just a string\"\n```")
	assert.True(t, errors.Is(err, ErrUnusableShape))
}

func TestExtract_EmptyFencePayloadFallsThrough(t *testing.T) {
	// An empty fence is ignored; the brace span outside it is still found.
	text := "```\n```\nresult: {\"a\": 2}"
	parsed, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, float64(2), parsed.Bags[0]["a"])
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Total Fat", "total_fat"},
		{"CALORIES", "calories"},
		{"  Vitamin C ", "vitamin_c"},
		{"saturated fat", "saturated_fat"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeKey(tt.in))
	}
}

func TestFlatten_NestedObjectsMerge(t *testing.T) {
	bag := Flatten(map[string]any{
		"Name": "granola",
		"Macros": map[string]any{
			"Calories": 450,
			"Total Fat": "13.5g",
		},
	})

	assert.Equal(t, "granola", bag["name"])
	assert.Equal(t, 450, bag["calories"])
	assert.Equal(t, "13.5g", bag["total_fat"])
	_, hasParent := bag["macros"]
	assert.False(t, hasParent)
}

func TestFlatten_ChildKeyWinsOnCollision(t *testing.T) {
	bag := Flatten(map[string]any{
		"calories": 100,
		"details": map[string]any{
			"calories": 250,
		},
	})
	assert.Equal(t, 250, bag["calories"])
}

func TestFlatten_ArrayElementsNormalized(t *testing.T) {
	bag := Flatten(map[string]any{
		"Ingredients": []any{
			map[string]any{"Name": "oats", "Calories": 150},
			"loose string",
		},
	})

	arr, ok := bag["ingredients"].([]any)
	require.True(t, ok)
	require.Len(t, arr, 2)

	sub, ok := arr[0].(AttrBag)
	require.True(t, ok)
	assert.Equal(t, "oats", sub["name"])
	assert.Equal(t, 150, sub["calories"])
	assert.Equal(t, "loose string", arr[1])
}

func TestFlatten_DepthBounded(t *testing.T) {
	// Build nesting far beyond the cap; must not panic and must keep
	// levels within the bound.
	leaf := map[string]any{"deep": true}
	obj := leaf
	for i := 0; i < 100; i++ {
		obj = map[string]any{"wrap": obj}
	}

	bag := Flatten(obj)
	_, found := bag["deep"]
	assert.False(t, found)
}

func TestFlatten_WithinDepthBound(t *testing.T) {
	obj := map[string]any{"deep": "yes"}
	for i := 0; i < 10; i++ {
		obj = map[string]any{"wrap": obj}
	}
	bag := Flatten(obj)
	assert.Equal(t, "yes", bag["deep"])
}

func TestExtract_FirstFencePreferred(t *testing.T) {
	text := "```json\n{\"first\": true}\n```\ntext\n```json\n{\"second\": true}\n```"
	parsed, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, true, parsed.Bags[0]["first"])
	assert.NotContains(t, parsed.Bags[0], "second")
}

func TestAttrBag_Has(t *testing.T) {
	bag := AttrBag{"a": 1, "b": nil}
	assert.True(t, bag.Has("a"))
	assert.False(t, bag.Has("b"))
	assert.False(t, bag.Has("missing"))
}

func TestExtract_LargeProseAroundPayload(t *testing.T) {
	text := strings.Repeat("prose ", 500) + `{"name": "salad"}` + strings.Repeat(" trailing", 100)
	parsed, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, "salad", parsed.Bags[0]["name"])
}
