package dom

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	gohtml "golang.org/x/net/html"

	"github.com/liuxd6825/marionette/api"
)

// Ensure Element implements api.Element.
var _ api.Element = &Element{}

// Element is an element node of a Document.
type Element struct {
	doc  *Document
	node *gohtml.Node
}

func (e *Element) sel() *goquery.Selection {
	return e.doc.doc.FindNodes(e.node)
}

// Document returns the document the element belongs to.
func (e *Element) Document() *Document { return e.doc }

// TagName returns the lower case tag name.
func (e *Element) TagName() string {
	return e.node.Data
}

// Attribute returns the value of the attribute name.
func (e *Element) Attribute(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	if a := getHTMLAttr(e.node, name); a != nil {
		return a.Val, true
	}
	return "", false
}

// SetAttribute sets the attribute name to value.
func (e *Element) SetAttribute(name, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setHTMLAttr(e.node, name, value)
}

// Text returns the text content with surrounding white space removed.
func (e *Element) Text() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return strings.TrimSpace(e.sel().Text())
}

// Displayed reports whether neither the element nor an ancestor is
// hidden.
func (e *Element) Displayed() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	if e.node.Data == "input" && strings.EqualFold(attrOr(e.node, "type", ""), "hidden") {
		return false
	}
	for n := e.node; n != nil && n.Type == gohtml.ElementNode; n = n.Parent {
		if getHTMLAttr(n, "hidden") != nil {
			return false
		}
		style := parseStyle(attrOr(n, "style", ""))
		if style["display"] == "none" || style["visibility"] == "hidden" {
			return false
		}
	}
	return true
}

// Enabled reports whether the element has no disabled attribute.
func (e *Element) Enabled() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return getHTMLAttr(e.node, "disabled") == nil
}

// Selected reports whether a checkbox, radio button or option is
// checked. Other elements count as selected.
func (e *Element) Selected() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	switch {
	case e.node.Data == "option":
		return getHTMLAttr(e.node, "selected") != nil
	case e.node.Data == "input" && isCheckable(e.node):
		return getHTMLAttr(e.node, "checked") != nil
	}
	return true
}

// Rect returns the bounding box given by the data-x, data-y, data-width
// and data-height attributes.
func (e *Element) Rect() api.Rect {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	num := func(name string) float64 {
		f, err := strconv.ParseFloat(attrOr(e.node, name, "0"), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return api.Rect{X: num("data-x"), Y: num("data-y"), Width: num("data-width"), Height: num("data-height")}
}

// CSSValue returns the value of property from the style attribute.
func (e *Element) CSSValue(property string) string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return parseStyle(attrOr(e.node, "style", ""))[strings.ToLower(property)]
}

// Click toggles checkable inputs, focuses the element and runs the click
// handler of the document.
func (e *Element) Click() error {
	e.doc.mu.Lock()
	if !e.doc.contains(e.node) {
		e.doc.mu.Unlock()
		return staleError()
	}
	if getHTMLAttr(e.node, "disabled") != nil {
		e.doc.mu.Unlock()
		return api.NewError(api.ElementNotInteractable, "Element is disabled")
	}
	if e.node.Data == "input" && isCheckable(e.node) {
		if getHTMLAttr(e.node, "checked") != nil && strings.EqualFold(attrOr(e.node, "type", ""), "checkbox") {
			removeHTMLAttr(e.node, "checked")
		} else {
			setHTMLAttr(e.node, "checked", "")
		}
	}
	e.doc.active = e.node
	onClick := e.doc.onClick
	e.doc.mu.Unlock()

	if onClick != nil {
		return onClick(e)
	}
	return nil
}

// SendKeys appends text to the value of an editable element.
func (e *Element) SendKeys(text string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if err := e.editable(); err != nil {
		return err
	}
	setHTMLAttr(e.node, "value", attrOr(e.node, "value", "")+text)
	e.doc.active = e.node
	return nil
}

// Clear empties the value of an editable element.
func (e *Element) Clear() error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if err := e.editable(); err != nil {
		return err
	}
	setHTMLAttr(e.node, "value", "")
	return nil
}

// Submit submits the form the element belongs to.
func (e *Element) Submit() error {
	e.doc.mu.Lock()
	form := e.node
	for form != nil && !(form.Type == gohtml.ElementNode && form.Data == "form") {
		form = form.Parent
	}
	if form == nil {
		e.doc.mu.Unlock()
		return api.NewError(api.NoSuchElement, "Element is not in a form, so could not submit")
	}
	setHTMLAttr(form, "data-submitted", "true")
	onClick := e.doc.onClick
	e.doc.mu.Unlock()

	if onClick != nil {
		return onClick(e.doc.element(form))
	}
	return nil
}

// Attached implements api.Element.
func (e *Element) Attached() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.doc.contains(e.node)
}

// SameAs implements api.Element.
func (e *Element) SameAs(other api.Element) bool {
	o, ok := other.(*Element)
	return ok && o.node == e.node
}

// Remove detaches the element from its document.
func (e *Element) Remove() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if e.node.Parent != nil {
		e.node.Parent.RemoveChild(e.node)
	}
}

func (e *Element) editable() error {
	if !e.doc.contains(e.node) {
		return staleError()
	}
	switch e.node.Data {
	case "input", "textarea":
	default:
		return api.NewError(api.ElementNotInteractable, "Element <%s> is not reachable by keyboard", e.node.Data)
	}
	if getHTMLAttr(e.node, "disabled") != nil || getHTMLAttr(e.node, "readonly") != nil {
		return api.NewError(api.InvalidElementState, "Element must be user-editable in order to clear it.")
	}
	return nil
}

func attrOr(n *gohtml.Node, name, def string) string {
	if a := getHTMLAttr(n, name); a != nil {
		return a.Val
	}
	return def
}

func isCheckable(n *gohtml.Node) bool {
	switch strings.ToLower(attrOr(n, "type", "")) {
	case "checkbox", "radio":
		return true
	}
	return false
}

// parseStyle splits a style attribute into lower case properties.
func parseStyle(style string) map[string]string {
	props := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		props[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return props
}
