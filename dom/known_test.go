package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/marionette/api"
)

func TestKnownElements(t *testing.T) {
	t.Parallel()

	d := parseTest(t)
	known := NewKnownElements()
	main := byID(t, d, "main")

	h := known.Add(main)
	assert.NotEmpty(t, h)
	assert.Equal(t, h, known.Add(byID(t, d, "main")))
	assert.NotEqual(t, h, known.Add(byID(t, d, "txt")))

	el, err := known.Get(h)
	require.NoError(t, err)
	assert.True(t, el.SameAs(main))

	_, err = known.Get("missing")
	assert.True(t, api.IsKind(err, api.NoSuchElement))

	main.Remove()
	_, err = known.Get(h)
	assert.True(t, api.IsKind(err, api.StaleElementReference))

	known.Reset()
	_, err = known.Get(h)
	assert.True(t, api.IsKind(err, api.NoSuchElement))
}

func TestKnownElementsJSON(t *testing.T) {
	t.Parallel()

	d := parseTest(t)
	known := NewKnownElements()
	txt := byID(t, d, "txt")

	out := known.ToJSON(map[string]interface{}{
		"el":   txt,
		"list": []interface{}{1, txt},
		"n":    2,
	})
	m, ok := out.(map[string]interface{})
	require.True(t, ok)
	ref, ok := m["el"].(map[string]interface{})
	require.True(t, ok)
	h, ok := HandleFrom(ref)
	require.True(t, ok)
	assert.Equal(t, []interface{}{1, ref}, m["list"])
	assert.Equal(t, 2, m["n"])

	back, err := known.FromJSON([]interface{}{
		map[string]interface{}{W3CElementKey: h},
		map[string]interface{}{"a": "b"},
	})
	require.NoError(t, err)
	list, ok := back.([]interface{})
	require.True(t, ok)
	el, ok := list[0].(api.Element)
	require.True(t, ok)
	assert.True(t, el.SameAs(txt))
	assert.Equal(t, map[string]interface{}{"a": "b"}, list[1])

	_, err = known.FromJSON(map[string]interface{}{ElementKey: "missing"})
	assert.True(t, api.IsKind(err, api.NoSuchElement))
}

func TestHandleFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   interface{}
		want string
		ok   bool
	}{
		{"string", "abc", "abc", true},
		{"empty string", "", "", false},
		{"reference", map[string]interface{}{ElementKey: "abc"}, "abc", true},
		{"w3c", map[string]interface{}{W3CElementKey: "abc"}, "abc", true},
		{"params", api.Params{ElementKey: "abc"}, "abc", true},
		{"other map", map[string]interface{}{"id": "abc"}, "", false},
		{"number", 3, "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, ok := HandleFrom(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, h)
		})
	}
}
