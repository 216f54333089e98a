package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/marionette/api"
)

func TestElementProperties(t *testing.T) {
	t.Parallel()

	d := parseTest(t)
	main := byID(t, d, "main")

	assert.Equal(t, "div", main.TagName())
	v, ok := main.Attribute("class")
	assert.True(t, ok)
	assert.Equal(t, "box wide", v)
	_, ok = main.Attribute("title")
	assert.False(t, ok)

	assert.Equal(t, "red", main.CSSValue("Color"))
	assert.Equal(t, "", main.CSSValue("margin"))
	assert.True(t, main.Displayed())
	assert.True(t, main.Enabled())
	assert.True(t, main.Selected())

	assert.Equal(t, "First link", byID(t, d, "l1").Text())
	assert.Equal(t, api.Rect{X: 10, Y: 20, Width: 30, Height: 40}, byID(t, d, "box").Rect())

	assert.False(t, byID(t, d, "inner").Displayed())
	assert.False(t, byID(t, d, "secret").Displayed())
	assert.False(t, byID(t, d, "off").Enabled())
}

func TestElementClick(t *testing.T) {
	t.Parallel()

	d := parseTest(t)
	var clicked []string
	d.OnClick(func(el *Element) error {
		id, _ := el.Attribute("id")
		clicked = append(clicked, id)
		return nil
	})

	chk := byID(t, d, "chk")
	assert.False(t, chk.Selected())
	require.NoError(t, chk.Click())
	assert.True(t, chk.Selected())
	require.NoError(t, chk.Click())
	assert.False(t, chk.Selected())
	assert.Equal(t, []string{"chk", "chk"}, clicked)
	assert.True(t, d.ActiveElement().SameAs(chk))

	err := byID(t, d, "off").Click()
	assert.True(t, api.IsKind(err, api.ElementNotInteractable))
}

func TestElementKeys(t *testing.T) {
	t.Parallel()

	d := parseTest(t)
	txt := byID(t, d, "txt")
	require.NoError(t, txt.SendKeys("cd"))
	v, _ := txt.Attribute("value")
	assert.Equal(t, "abcd", v)
	require.NoError(t, txt.Clear())
	v, _ = txt.Attribute("value")
	assert.Equal(t, "", v)

	err := byID(t, d, "ro").SendKeys("x")
	assert.True(t, api.IsKind(err, api.InvalidElementState))
	err = byID(t, d, "main").SendKeys("x")
	assert.True(t, api.IsKind(err, api.ElementNotInteractable))
}

func TestElementSubmit(t *testing.T) {
	t.Parallel()

	d := parseTest(t)
	require.NoError(t, byID(t, d, "in-form").Submit())
	v, _ := byID(t, d, "f").Attribute("data-submitted")
	assert.Equal(t, "true", v)

	err := byID(t, d, "txt").Submit()
	assert.True(t, api.IsKind(err, api.NoSuchElement))
}

func TestElementStale(t *testing.T) {
	t.Parallel()

	d := parseTest(t)
	txt := byID(t, d, "txt")
	same := byID(t, d, "txt")
	assert.True(t, txt.SameAs(same))
	assert.False(t, txt.SameAs(byID(t, d, "chk")))

	txt.Remove()
	assert.False(t, txt.Attached())
	assert.True(t, api.IsKind(txt.Click(), api.StaleElementReference))
	assert.True(t, api.IsKind(txt.SendKeys("x"), api.StaleElementReference))
}
