package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentQuery(t *testing.T) {
	index := NewElement("suggest")
	index.SetValue("products")
	a := NewElement("q1", "typeahead", "form-control")
	b := NewElement("q2", "typeahead")
	doc := NewDocument(index, a, NewElement("other", "form-control"))
	doc.Append(b)

	got := doc.Query("#suggest")
	require.NotNil(t, got)
	assert.Equal(t, "products", got.Value())

	assert.Nil(t, doc.Query("#missing"))
	assert.Equal(t, []Element{a, b}, doc.QueryAll(".typeahead"))
	assert.Empty(t, doc.QueryAll(".nothing"))
}

func TestElementEvents(t *testing.T) {
	el := NewElement("q", "typeahead")

	var events []Event
	off := el.On(EventInput, func(ev Event) { events = append(events, ev) })
	el.On(EventKeyDown, func(ev Event) { events = append(events, ev) })

	el.Type("red")
	el.Press("ArrowDown")
	assert.Equal(t, "red", el.Value())
	assert.Equal(t, []Event{{Type: EventInput}, {Type: EventKeyDown, Key: "ArrowDown"}}, events)

	// SetValue is silent
	el.SetValue("blue")
	assert.Len(t, events, 2)

	off()
	el.Type("green")
	assert.Len(t, events, 2)
	assert.Equal(t, 0, el.Listeners(EventInput))
	assert.Equal(t, 1, el.Listeners(EventKeyDown))
}

func TestElementData(t *testing.T) {
	el := NewElement("q")
	_, ok := el.Data("typeahead")
	assert.False(t, ok)

	el.SetData("typeahead", "suggestions")
	v, ok := el.Data("typeahead")
	assert.True(t, ok)
	assert.Equal(t, "suggestions", v)
}

func TestMemoryMenu(t *testing.T) {
	el := NewElement("q", "typeahead")
	doc := NewDocument(el)
	menu := doc.NewMenu(el).(*MemoryMenu)
	assert.Same(t, menu, doc.MenuFor(el))

	var picked []int
	menu.OnSelect(func(dataset string, i int) {
		assert.Equal(t, "suggestions", dataset)
		picked = append(picked, i)
	})

	menu.Render([]Section{{Name: "suggestions", Options: []Option{
		{Label: "Red", Value: "Red"},
		{Label: "Red Sneakers", Value: "Red Sneakers"},
	}}})
	assert.Equal(t, []string{"Red", "Red Sneakers"}, menu.Values())
	assert.Equal(t, 1, menu.Renders())

	require.NoError(t, menu.Choose("suggestions", 1))
	assert.Equal(t, []int{1}, picked)
	assert.Error(t, menu.Choose("suggestions", 5))
	assert.Error(t, menu.Choose("other", 0))

	menu.Clear()
	assert.Nil(t, menu.Sections())
	assert.Error(t, menu.Choose("suggestions", 0))
}
