package sandbox

import (
	"github.com/dop251/goja"

	"github.com/liuxd6825/marionette/api"
)

// ElementRef exposes an element to scripts. Script values holding one are
// handed back as the element itself.
type ElementRef struct {
	el api.Element
}

// Ref wraps el for scripts.
func Ref(el api.Element) *ElementRef {
	return &ElementRef{el: el}
}

// TagName returns the tag name of the element.
func (e *ElementRef) TagName() string { return e.el.TagName() }

// GetAttribute returns the attribute name, or null.
func (e *ElementRef) GetAttribute(name string) interface{} {
	if v, ok := e.el.Attribute(name); ok {
		return v
	}
	return nil
}

// Text returns the text content of the element.
func (e *ElementRef) Text() string { return e.el.Text() }

// Displayed reports whether the element is shown.
func (e *ElementRef) Displayed() bool { return e.el.Displayed() }

// Click clicks the element.
func (e *ElementRef) Click() error { return e.el.Click() }

// SendKeys types text into the element.
func (e *ElementRef) SendKeys(text string) error { return e.el.SendKeys(text) }

// toJS converts a script argument.
func toJS(rt *goja.Runtime, v interface{}) interface{} {
	switch t := v.(type) {
	case api.Element:
		return Ref(t)
	case []interface{}:
		vals := make([]interface{}, len(t))
		for i, e := range t {
			vals[i] = toJS(rt, e)
		}
		return rt.NewArray(vals...)
	case map[string]interface{}:
		obj := rt.NewObject()
		for k, e := range t {
			_ = obj.Set(k, toJS(rt, e))
		}
		return obj
	}
	return v
}

// unwrap converts an exported script value back, replacing element
// objects by their elements.
func unwrap(v interface{}) interface{} {
	switch t := v.(type) {
	case *ElementRef:
		return t.el
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = unwrap(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = unwrap(e)
		}
		return out
	}
	return v
}
