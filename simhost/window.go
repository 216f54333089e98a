package simhost

import (
	"fmt"
	"sync"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/dom"
)

const defaultOrientation = "portrait-primary"

// Ensure the windows implement the host contracts.
var (
	_ api.Window         = &Window{}
	_ api.ScreenOrienter = &MobileWindow{}
)

// Window is a chrome window of the simulated application.
type Window struct {
	host   *Host
	id     string
	name   string
	typ    string
	chrome *dom.Document

	mu          sync.Mutex
	tabs        []*Tab
	tabless     bool
	content     *Tab
	selected    int
	pos         api.Point
	size        api.Size
	ready       bool
	loaded      bool
	closed      bool
	orientation string
}

// MobileWindow is a window of a device whose screen rotates.
type MobileWindow struct {
	*Window
}

// OpenWindow opens a chrome window described by spec.
func (h *Host) OpenWindow(spec WindowSpec) (*Window, error) {
	chromeSrc := spec.Chrome
	if chromeSrc == "" {
		chromeSrc = `<window title="` + spec.Name + `"></window>`
	}
	chrome, err := dom.Parse("chrome://browser/content/browser.xul", chromeSrc, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing chrome of window %q: %w", spec.Name, err)
	}
	w := &Window{
		host:        h,
		id:          h.newID(),
		name:        spec.Name,
		typ:         spec.Type,
		chrome:      chrome,
		pos:         api.Point{X: spec.X, Y: spec.Y},
		size:        api.Size{Width: spec.Width, Height: spec.Height},
		ready:       !spec.Loading,
		tabless:     len(spec.Tabs) == 0,
		orientation: defaultOrientation,
	}
	if w.tabless {
		url := spec.Content
		if url == "" {
			url = BlankURL
		}
		if w.content, err = newTab(w, url); err != nil {
			return nil, err
		}
	}
	for _, ts := range spec.Tabs {
		t, err := newTab(w, ts.URL)
		if err != nil {
			return nil, err
		}
		w.tabs = append(w.tabs, t)
	}
	h.addWindow(w)
	h.logger.Debugf("simhost:OpenWindow", "wid:%s name:%s tabs:%d", w.id, w.name, len(w.tabs))
	return w, nil
}

func (w *Window) public() api.Window {
	if w.host.fixture.App.Mobile {
		return &MobileWindow{Window: w}
	}
	return w
}

// ID implements api.Window.
func (w *Window) ID() string { return w.id }

// Name implements api.Window.
func (w *Window) Name() string { return w.name }

// Type implements api.Window.
func (w *Window) Type() string { return w.typ }

// Ready implements api.Window.
func (w *Window) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready
}

// SetReady finishes loading the chrome document.
func (w *Window) SetReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ready = true
}

// Document implements api.Window.
func (w *Window) Document() api.Document { return w.chrome }

// Tabs implements api.Window.
func (w *Window) Tabs() []api.Tab {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tabless {
		return nil
	}
	tabs := make([]api.Tab, 0, len(w.tabs))
	for _, t := range w.tabs {
		tabs = append(tabs, t)
	}
	return tabs
}

// Tab returns the tab at index, or the content of a window without
// tabs for index -1.
func (w *Window) Tab(index int) (*Tab, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if index == -1 && w.tabless {
		return w.content, true
	}
	if index < 0 || index >= len(w.tabs) {
		return nil, false
	}
	return w.tabs[index], true
}

// allTabs returns the tabs and the content of a window without tabs.
func (w *Window) allTabs() []*Tab {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tabless {
		return []*Tab{w.content}
	}
	return append([]*Tab(nil), w.tabs...)
}

// SelectedTab implements api.Window.
func (w *Window) SelectedTab() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selected
}

// SelectTab implements api.Window.
func (w *Window) SelectTab(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tabless {
		return fmt.Errorf("window %s has no tabs", w.id)
	}
	if index < 0 || index >= len(w.tabs) {
		return fmt.Errorf("tab index %d out of range [0,%d)", index, len(w.tabs))
	}
	w.selected = index
	return nil
}

// OpenTab opens url in a new tab. The selection is left as it is.
func (w *Window) OpenTab(url string) (*Tab, error) {
	w.mu.Lock()
	tabless := w.tabless
	w.mu.Unlock()
	if tabless {
		return nil, fmt.Errorf("window %s has no tab strip", w.id)
	}

	t, err := newTab(w, url)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.tabs = append(w.tabs, t)
	loaded := w.loaded
	w.mu.Unlock()

	if loaded {
		t.startAgent()
	}
	return t, nil
}

// removeTab drops t and reports whether tabs are left.
func (w *Window) removeTab(t *Tab) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, o := range w.tabs {
		if o != t {
			continue
		}
		w.tabs = append(w.tabs[:i], w.tabs[i+1:]...)
		if w.selected >= len(w.tabs) && w.selected > 0 {
			w.selected--
		}
		break
	}
	return len(w.tabs) > 0
}

// Focus implements api.Window.
func (w *Window) Focus() {
	w.host.raise(w)
}

// Close implements api.Window.
func (w *Window) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return fmt.Errorf("window %s is already closed", w.id)
	}
	w.closed = true
	w.mu.Unlock()

	w.stopAgents()
	w.host.removeWindow(w)
	w.host.logger.Debugf("simhost:Window.Close", "wid:%s", w.id)
	w.host.emit(func(l api.Listener) { l.WindowClosed(w.id) })
	return nil
}

func (w *Window) stopAgents() {
	for _, t := range w.allTabs() {
		t.stopAgent()
	}
}

// Position implements api.Window.
func (w *Window) Position() api.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

// MoveTo implements api.Window.
func (w *Window) MoveTo(p api.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pos = p
	return nil
}

// Size implements api.Window.
func (w *Window) Size() api.Size {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// ResizeTo implements api.Window.
func (w *Window) ResizeTo(s api.Size) error {
	if s.Width <= 0 || s.Height <= 0 {
		return api.NewError(api.InvalidArgument, "Invalid window size %dx%d", s.Width, s.Height)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.size = s
	return nil
}

// Maximize implements api.Window.
func (w *Window) Maximize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pos, w.size = api.Point{}, ScreenSize
	return nil
}

// LoadAgents implements api.Window. Agents already running announce
// themselves again.
func (w *Window) LoadAgents() (int, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return 0, fmt.Errorf("window %s is closed", w.id)
	}
	w.loaded = true
	tabless := w.tabless
	w.mu.Unlock()

	tabs := w.allTabs()
	for _, t := range tabs {
		t.startAgent()
	}
	if tabless {
		return 0, nil
	}
	return len(tabs), nil
}

// UnloadAgents implements api.Window.
func (w *Window) UnloadAgents() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loaded = false
}

func (w *Window) agentsLoaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded
}

// Orientation implements api.ScreenOrienter.
func (m *MobileWindow) Orientation() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orientation
}

// LockOrientation implements api.ScreenOrienter.
func (m *MobileWindow) LockOrientation(o string) bool {
	switch o {
	case "portrait", "landscape":
		o += "-primary"
	case "portrait-primary", "landscape-primary", "portrait-secondary", "landscape-secondary":
	default:
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orientation = o
	return true
}
