package suggest

import (
	"encoding/json"
	"testing"

	"github.com/bastiangx/typebind/pkg/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(items []Suggestion) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Display("value")
	}
	return out
}

func TestSuggestionDisplay(t *testing.T) {
	s := New([]byte(`{ "value": "Red Sneakers", "id": 7 }`))
	assert.Equal(t, "Red Sneakers", s.Display("value"))
	assert.Equal(t, "7", s.Display("id"))
	assert.Equal(t, "", s.Display("missing"))
	assert.Equal(t, `{"value":"Red Sneakers","id":7}`, s.ID())

	str := New([]byte(`"plain"`))
	assert.Equal(t, "plain", str.Display("value"))
}

func TestSuggestionJSON(t *testing.T) {
	var items []Suggestion
	require.NoError(t, json.Unmarshal([]byte(`[{"value": "a"}, "b"]`), &items))
	require.Len(t, items, 2)
	assert.Equal(t, `{"value":"a"}`, items[0].ID())

	out, err := json.Marshal(items)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"value":"a"},"b"]`, string(out))
}

func TestDecode(t *testing.T) {
	t.Run("array of objects", func(t *testing.T) {
		items, err := Decode([]byte(`[{"value":"red"},{"value":"red shoes"}]`))
		require.NoError(t, err)
		assert.Equal(t, []string{"red", "red shoes"}, values(items))
	})

	t.Run("empty array", func(t *testing.T) {
		items, err := Decode([]byte(`[]`))
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := Decode([]byte(`[{"value":`))
		assert.ErrorIs(t, err, ErrInvalidJSON)
	})

	t.Run("not an array", func(t *testing.T) {
		_, err := Decode([]byte(`{"value":"red"}`))
		assert.ErrorIs(t, err, ErrNotArray)
	})

	t.Run("bad element", func(t *testing.T) {
		_, err := Decode([]byte(`[{"value":"red"}, 3]`))
		assert.ErrorIs(t, err, ErrBadElement)
		assert.Contains(t, err.Error(), "element 1")
	})
}

func TestIndexSearch(t *testing.T) {
	idx := NewIndex(tokenizer.Keys(tokenizer.Whitespace, "value"), tokenizer.Whitespace)
	idx.Add(
		FromValue("Red Sneakers"),
		FromValue("Red Shoes"),
		FromValue("Blue Shoes"),
		FromValue("Reduced Price"),
	)
	require.Equal(t, 4, idx.Len())

	assert.Equal(t, []string{"Red Sneakers", "Red Shoes", "Reduced Price"}, values(idx.Search("red")))
	assert.Equal(t, []string{"Red Shoes"}, values(idx.Search("red shoes")))
	assert.Equal(t, []string{"Red Shoes", "Blue Shoes"}, values(idx.Search("SH")))
	assert.Equal(t, []string{"Red Shoes"}, values(idx.Search("shoes red red")))
	assert.Empty(t, idx.Search("green"))
	assert.Empty(t, idx.Search("   "))
}

func TestIndexAddSkipsDuplicates(t *testing.T) {
	idx := NewIndex(tokenizer.Keys(tokenizer.Whitespace, "value"), tokenizer.Whitespace)
	idx.Add(FromValue("Red"), FromValue("Red"))
	idx.Add(New([]byte(`{"value": "Red"}`)))
	assert.Equal(t, 1, idx.Len())

	idx.Reset()
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Search("red"))
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []Suggestion{FromValue("a")})
	c.Set("b", []Suggestion{FromValue("b")})

	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", []Suggestion{FromValue("c")})

	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, values(got))
	_, ok = c.Get("c")
	assert.True(t, ok)

	stats := c.Stats()
	assert.Equal(t, 2, stats["cacheEntries"])
	assert.Equal(t, 3, stats["cacheHits"])
	assert.Equal(t, 1, stats["cacheMisses"])
}

func TestCacheDisabled(t *testing.T) {
	c := NewCache(0)
	c.Set("a", []Suggestion{FromValue("a")})
	_, ok := c.Get("a")
	assert.False(t, ok)
}
