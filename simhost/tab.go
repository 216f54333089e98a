package simhost

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/dom"
)

// Ensure Tab implements api.Tab.
var _ api.Tab = &Tab{}

// Tab is a content browser. Loading a page of the other remoteness
// swaps the process backing the tab: the tab gets a new content window
// and a new agent.
type Tab struct {
	host *Host
	win  *Window
	id   string

	unresponsive atomic.Bool

	mu      sync.Mutex
	outerID string
	remote  bool
	process string
	doc     *dom.Document
	history []string
	pos     int
	agent   *agent
	modal   *Dialog
	closed  bool
}

func newTab(w *Window, url string) (*Tab, error) {
	doc, page, err := w.host.parse(url)
	if err != nil {
		return nil, err
	}
	return &Tab{
		host:    w.host,
		win:     w,
		id:      "tab-" + w.host.newID(),
		outerID: w.host.newID(),
		remote:  page.Remote,
		process: w.host.newProcess(page.Remote),
		doc:     doc,
		history: []string{url},
	}, nil
}

// ID implements api.Tab.
func (t *Tab) ID() string { return t.id }

// OuterWindowID implements api.Tab.
func (t *Tab) OuterWindowID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outerID
}

// IsRemote implements api.Tab.
func (t *Tab) IsRemote() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remote
}

// Process implements api.Tab.
func (t *Tab) Process() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.process
}

// Document returns the top-level document shown in the tab.
func (t *Tab) Document() *dom.Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc
}

// Close implements api.Tab. Closing the last tab closes the window.
func (t *Tab) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("tab %s is already closed", t.id)
	}
	t.closed = true
	t.mu.Unlock()

	t.stopAgent()
	if !t.win.removeTab(t) {
		return t.win.Close()
	}
	return nil
}

// Modal implements api.Tab.
func (t *Tab) Modal() (api.Dialog, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.modal == nil || t.modal.Closed() {
		return nil, false
	}
	return t.modal, true
}

// SetUnresponsive makes the agent of the tab refuse messages.
func (t *Tab) SetUnresponsive(v bool) {
	t.unresponsive.Store(v)
}

// FrameID returns the frame of the agent serving the tab.
func (t *Tab) FrameID() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.agent == nil {
		return "", false
	}
	return t.agent.frameID, true
}

// SubFrameIDs returns the frames of the agents serving out-of-process
// frames of the tab.
func (t *Tab) SubFrameIDs() []string {
	t.mu.Lock()
	a := t.agent
	t.mu.Unlock()
	if a == nil {
		return nil
	}
	return a.subFrameIDs()
}

func (t *Tab) setModal(d *Dialog) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modal = d
}

// startAgent starts the agent of the tab, or has the running one
// announce itself again.
func (t *Tab) startAgent() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if a := t.agent; a != nil {
		t.mu.Unlock()
		a.announce()
		return
	}
	a := newAgent(t, t.outerID, nil)
	t.agent = a
	t.mu.Unlock()
	a.start()
}

func (t *Tab) stopAgent() {
	t.mu.Lock()
	a := t.agent
	t.agent = nil
	t.mu.Unlock()
	if a != nil {
		a.close()
	}
}

// show replaces the document of the tab and returns the previous one.
func (t *Tab) show(doc *dom.Document) *dom.Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.doc
	t.doc = doc
	return old
}

// visit records url in the history. Unless push is set, url is already
// at the current position.
func (t *Tab) visit(url string, push bool) {
	if !push {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history[:t.pos+1], url)
	t.pos = len(t.history) - 1
}

// step moves delta entries through the history and returns the url
// there.
func (t *Tab) step(delta int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	to := t.pos + delta
	if to < 0 || to >= len(t.history) {
		return "", false
	}
	t.pos = to
	return t.history[to], true
}

func (t *Tab) currentURL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history[t.pos]
}

// swap moves the tab to a process of the given remoteness showing doc.
// The agent of the previous process goes away and a new one starts.
func (t *Tab) swap(doc *dom.Document, remote bool) {
	process, outerID := t.host.newProcess(remote), t.host.newID()

	t.mu.Lock()
	old, oldDoc := t.agent, t.doc
	t.doc, t.remote, t.process, t.outerID = doc, remote, process, outerID
	t.agent = nil
	t.mu.Unlock()

	t.host.logger.Debugf("simhost:Tab.swap", "tab:%s remote:%t process:%s", t.id, remote, process)
	oldDoc.Unload()
	t.host.emit(func(l api.Listener) { l.RemotenessChanged(t.id) })
	if old != nil {
		old.close()
	}
	if t.win.agentsLoaded() {
		t.startAgent()
	}
}
