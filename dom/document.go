// Package dom is a small HTML document model built on goquery. It backs
// the documents of the simulated host and the chrome documents scripts
// run against, and holds the handle arena element references are
// resolved through.
package dom

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	gohtml "golang.org/x/net/html"

	"github.com/liuxd6825/marionette/api"
)

// Ready states of a document.
const (
	StateLoading     = "loading"
	StateInteractive = "interactive"
	StateComplete    = "complete"
)

const maxFrameDepth = 8

// Loader returns the source of the document at url.
type Loader func(url string) (string, error)

// ClickHandler runs after an element received a click.
type ClickHandler func(el *Element) error

// Ensure Document implements api.Document.
var _ api.Document = &Document{}

// Document is a parsed HTML document. It is safe for concurrent use.
type Document struct {
	mu *sync.RWMutex

	doc        *goquery.Document
	url        string
	readyState string
	frames     []*Frame
	active     *gohtml.Node
	onClick    ClickHandler
	unloaded   bool
}

// Parse parses src as the document at url. The documents of iframes are
// read with load, or taken from their srcdoc attribute.
func Parse(url, src string, load Loader) (*Document, error) {
	return parse(url, src, load, 0)
}

func parse(url, src string, load Loader, depth int) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	d := &Document{
		mu:         &sync.RWMutex{},
		doc:        gq,
		url:        url,
		readyState: StateComplete,
	}

	var ferr error
	gq.Find("iframe, frame, browser").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		f, err := d.loadFrame(s, load, depth)
		if err != nil {
			ferr = err
			return false
		}
		d.frames = append(d.frames, f)
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	return d, nil
}

func (d *Document) loadFrame(s *goquery.Selection, load Loader, depth int) (*Frame, error) {
	f := &Frame{el: d.element(s.Get(0))}
	_, f.remote = s.Attr("remote")
	if depth >= maxFrameDepth {
		return nil, fmt.Errorf("frames of %s nested deeper than %d", d.url, maxFrameDepth)
	}

	src, url := "", s.AttrOr("src", "about:blank")
	switch srcdoc, ok := s.Attr("srcdoc"); {
	case ok:
		src, url = srcdoc, "about:srcdoc"
	case load != nil && url != "about:blank":
		var err error
		if src, err = load(url); err != nil {
			return nil, fmt.Errorf("loading frame %s of %s: %w", url, d.url, err)
		}
	}
	doc, err := parse(url, src, load, depth+1)
	if err != nil {
		return nil, err
	}
	f.doc = doc
	return f, nil
}

func (d *Document) element(n *gohtml.Node) *Element {
	return &Element{doc: d, node: n}
}

// OnClick sets the function called after an element of d is clicked.
func (d *Document) OnClick(fn ClickHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClick = fn
}

// Title returns the text of the title element, or the title attribute
// of the top element as chrome documents have it.
func (d *Document) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if t := d.doc.Find("title").First(); t.Length() > 0 {
		return strings.TrimSpace(t.Text())
	}
	return d.doc.Find("body").Children().First().AttrOr("title", "")
}

// URL returns the address of the document.
func (d *Document) URL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.url
}

// Source serializes the document.
func (d *Document) Source() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	src, err := goquery.OuterHtml(d.doc.Selection)
	if err != nil {
		return ""
	}
	return src
}

// ReadyState returns the load state of the document.
func (d *Document) ReadyState() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readyState
}

// SetReadyState changes the load state of the document.
func (d *Document) SetReadyState(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readyState = s
}

// Frames implements api.Document.
func (d *Document) Frames() []api.Frame {
	d.mu.RLock()
	defer d.mu.RUnlock()

	frames := make([]api.Frame, 0, len(d.frames))
	for _, f := range d.frames {
		frames = append(frames, f)
	}
	return frames
}

// ChildFrames returns the frames of the document.
func (d *Document) ChildFrames() []*Frame {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Frame(nil), d.frames...)
}

// ActiveElement returns the focused element, or the body.
func (d *Document) ActiveElement() api.Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.active != nil && d.contains(d.active) {
		return d.element(d.active)
	}
	if body := d.doc.Find("body"); body.Length() > 0 {
		return d.element(body.Get(0))
	}
	return nil
}

// QuerySelector returns the first element matching the CSS selector.
func (d *Document) QuerySelector(selector string) (*Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := d.doc.Find(selector).First()
	if s.Length() == 0 {
		return nil, false
	}
	return d.element(s.Get(0)), true
}

// FindElements implements api.Document.
func (d *Document) FindElements(using, value string, root api.Element) ([]api.Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	scope := d.doc.Selection
	if root != nil {
		el, ok := root.(*Element)
		if !ok || el.doc != d {
			return nil, api.NewError(api.NoSuchElement, "Element does not belong to %s", d.url)
		}
		if !d.contains(el.node) {
			return nil, staleError()
		}
		scope = d.doc.FindNodes(el.node)
	}

	sel, err := find(scope, using, value)
	if err != nil {
		return nil, err
	}
	els := make([]api.Element, 0, sel.Length())
	for _, n := range sel.Nodes {
		els = append(els, d.element(n))
	}
	return els, nil
}

// Unload marks the document and the documents of its frames as
// navigated away from. Their elements become stale.
func (d *Document) Unload() {
	d.mu.Lock()
	d.unloaded = true
	frames := d.frames
	d.mu.Unlock()

	for _, f := range frames {
		f.doc.Unload()
	}
}

// contains reports whether n is part of the tree of a loaded d.
func (d *Document) contains(n *gohtml.Node) bool {
	if d.unloaded {
		return false
	}
	root := d.doc.Get(0)
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

func staleError() *api.Error {
	return api.NewError(api.StaleElementReference,
		"The element reference is stale. Either the element is no longer attached to the DOM or the page has been refreshed.")
}

// Frame is an iframe of a Document together with the document it shows.
type Frame struct {
	el     *Element
	doc    *Document
	remote bool
}

// Ensure Frame implements api.Frame.
var _ api.Frame = &Frame{}

// Name returns the name attribute of the frame element.
func (f *Frame) Name() string {
	v, _ := f.el.Attribute("name")
	return v
}

// ElementID returns the id attribute of the frame element.
func (f *Frame) ElementID() string {
	v, _ := f.el.Attribute("id")
	return v
}

// Element returns the frame element.
func (f *Frame) Element() api.Element { return f.el }

// Document returns the document shown in the frame.
func (f *Frame) Document() api.Document { return f.doc }

// Content returns the document shown in the frame.
func (f *Frame) Content() *Document { return f.doc }

// Remote reports whether the frame is marked out-of-process.
func (f *Frame) Remote() bool { return f.remote }
