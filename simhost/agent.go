package simhost

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/dom"
	"github.com/liuxd6825/marionette/log"
	"github.com/liuxd6825/marionette/sandbox"
)

const (
	mailboxSize  = 64
	pollInterval = 100 * time.Millisecond
)

// errPending is returned by handlers that answer later, or never.
var errPending = errors.New("reply pending")

// okReply is returned by handlers answering with a plain success.
type okReply struct{}

var replyOK = okReply{} //nolint:gochecknoglobals

// Ensure agent implements api.Agent.
var _ api.Agent = &agent{}

// agent serves the content of a tab, or of an out-of-process frame in
// it. Messages are handled one at a time on the loop goroutine; work that
// waits (polls, scripts) is resumed through the task queue.
type agent struct {
	host    *Host
	tab     *Tab
	frameID string
	logger  *log.Logger
	// frame is the out-of-process frame a sub agent serves. It is nil for
	// the agent of a tab.
	frame *dom.Frame

	ctx     context.Context
	cancel  context.CancelFunc
	mailbox chan *api.Message
	tasks   *notifier
	closed  chan struct{}
	once    sync.Once

	mu   sync.Mutex
	subs []*agent

	// Owned by the loop goroutine.
	cur      *dom.Document
	elements *dom.KnownElements
	sandbox  *sandbox.Sandbox
	scripts  map[string]context.CancelFunc
	polls    map[string]int
	pollSeq  int
	clickID  string
	testName string
}

func newAgent(t *Tab, frameID string, frame *dom.Frame) *agent {
	ctx, cancel := context.WithCancel(context.Background())
	return &agent{
		host:     t.host,
		tab:      t,
		frameID:  frameID,
		logger:   t.host.logger.With("fid", frameID),
		frame:    frame,
		ctx:      ctx,
		cancel:   cancel,
		mailbox:  make(chan *api.Message, mailboxSize),
		tasks:    newNotifier(),
		closed:   make(chan struct{}),
		elements: dom.NewKnownElements(),
		scripts:  make(map[string]context.CancelFunc),
		polls:    make(map[string]int),
	}
}

// FrameID implements api.Agent.
func (a *agent) FrameID() string { return a.frameID }

// Send implements api.Agent.
func (a *agent) Send(m *api.Message) error {
	if a.isClosed() {
		return api.ErrAgentClosed
	}
	if a.tab.unresponsive.Load() {
		return api.ErrAgentUnresponsive
	}
	select {
	case a.mailbox <- m:
		return nil
	default:
		return api.ErrAgentUnresponsive
	}
}

// top returns the document the agent serves.
func (a *agent) top() *dom.Document {
	if a.frame != nil {
		return a.frame.Content()
	}
	return a.tab.Document()
}

func (a *agent) start() {
	a.cur = a.top()
	go a.loop()
	a.register()
	a.adopt(a.cur)
}

func (a *agent) register() {
	reg := api.Registration{FrameID: a.frameID, WindowID: a.tab.win.id, Agent: a}
	if a.frame == nil && !a.tab.win.tabless {
		reg.Tab = a.tab
	}
	a.logger.Debugf("simhost:agent.register", "wid:%s sub:%t", reg.WindowID, a.frame != nil)
	a.host.emit(func(l api.Listener) { l.Registered(reg) })
}

// announce registers the agent and its sub agents again.
func (a *agent) announce() {
	a.register()
	for _, s := range a.subAgents() {
		s.announce()
	}
}

// adopt routes the clicks of doc and its in-process frames to the agent
// and starts sub agents for its out-of-process frames.
func (a *agent) adopt(doc *dom.Document) {
	doc.OnClick(a.onClick)
	for _, f := range doc.ChildFrames() {
		if !f.Remote() {
			a.adopt(f.Content())
			continue
		}
		s := newAgent(a.tab, a.host.newID(), f)
		a.mu.Lock()
		a.subs = append(a.subs, s)
		a.mu.Unlock()
		s.start()
	}
}

func (a *agent) subAgents() []*agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*agent(nil), a.subs...)
}

func (a *agent) takeSubs() []*agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	subs := a.subs
	a.subs = nil
	return subs
}

// sub returns the agent serving frame.
func (a *agent) sub(frame *dom.Frame) (*agent, bool) {
	for _, s := range a.subAgents() {
		if s.frame == frame {
			return s, true
		}
	}
	return nil, false
}

func (a *agent) subFrameIDs() []string {
	var ids []string
	for _, s := range a.subAgents() {
		ids = append(ids, s.frameID)
		ids = append(ids, s.subFrameIDs()...)
	}
	return ids
}

func (a *agent) isClosed() bool {
	select {
	case <-a.closed:
		return true
	default:
		return false
	}
}

// close stops the agent and its sub agents. The frames are reported
// closed.
func (a *agent) close() {
	a.once.Do(func() {
		close(a.closed)
		a.cancel()
		for _, s := range a.takeSubs() {
			s.close()
		}
		a.logger.Debugf("simhost:agent.close", "closed")
		a.host.emit(func(l api.Listener) { l.FrameClosed(a.frameID) })
	})
}

func (a *agent) loop() {
	for {
		if a.isClosed() {
			return
		}
		select {
		case <-a.closed:
			return
		case m := <-a.mailbox:
			// Work queued before m arrived goes first.
			if !a.runTasks() {
				return
			}
			a.handle(m)
		case <-a.tasks.wake:
			if !a.runTasks() {
				return
			}
		}
	}
}

// runTasks runs the queued tasks. It reports false once the agent
// closed.
func (a *agent) runTasks() bool {
	for _, fn := range a.tasks.take() {
		if a.isClosed() {
			return false
		}
		fn()
	}
	return !a.isClosed()
}

// post runs fn on the loop goroutine. It may be called from any
// goroutine.
func (a *agent) post(fn func()) {
	a.tasks.push(fn)
}

// later runs fn on the loop goroutine after d.
func (a *agent) later(d time.Duration, fn func()) {
	a.host.clock.AfterFunc(d, func() { a.post(fn) })
}

func (a *agent) handle(m *api.Message) {
	p := m.Params
	if p == nil {
		p = api.Params{}
	}
	if h, ok := controlHandlers[m.Name]; ok {
		h(a, m, p)
		return
	}
	h, ok := commandHandlers[m.Name]
	if !ok {
		a.logger.Warnf("simhost:agent.handle", "unknown message %q", m.Name)
		a.fail(m.CommandID, api.NewError(api.UnknownCommand, "Unknown content command %s", m.Name))
		return
	}
	a.logger.Tracef("simhost:agent.handle", "cmd:%s id:%s", m.Name, m.CommandID)
	v, err := h(a, m.CommandID, p)
	switch {
	case errors.Is(err, errPending):
	case err != nil:
		a.fail(m.CommandID, err)
	default:
		if _, ok := v.(okReply); ok {
			a.ok(m.CommandID)
			return
		}
		a.reply(m.CommandID, v)
	}
}

// send delivers m to the control process.
func (a *agent) send(m *api.Message) {
	if m.FrameID == "" {
		m.FrameID = a.frameID
	}
	a.host.emit(func(l api.Listener) { l.Received(m) })
}

func (a *agent) reply(id string, v interface{}) {
	a.send(&api.Message{Name: api.MsgDone, CommandID: id, Value: v})
}

func (a *agent) ok(id string) {
	a.send(&api.Message{Name: api.MsgOK, CommandID: id})
}

func (a *agent) fail(id string, err error) {
	a.send(&api.Message{Name: api.MsgError, CommandID: id, Error: api.AsError(err)})
}

// poll calls check now and then every pollInterval until it reports that
// it is done or the request id is canceled.
func (a *agent) poll(id string, check func() bool) {
	a.pollSeq++
	seq := a.pollSeq
	a.polls[id] = seq

	var tick func()
	tick = func() {
		if a.polls[id] != seq {
			return
		}
		if check() {
			delete(a.polls, id)
			return
		}
		a.later(pollInterval, tick)
	}
	tick()
}

// waitReady answers id once the document of the agent is loaded.
func (a *agent) waitReady(id string) {
	if id == "" {
		return
	}
	a.poll(id, func() bool {
		if a.top().ReadyState() != dom.StateComplete {
			return false
		}
		a.ok(id)
		return true
	})
}

func (a *agent) cancelRequest(id string) {
	delete(a.polls, id)
	if cancel, ok := a.scripts[id]; ok {
		cancel()
		delete(a.scripts, id)
	}
	if a.clickID == id {
		a.clickID = ""
	}
}

func (a *agent) cancelScripts() {
	for id, cancel := range a.scripts {
		cancel()
		delete(a.scripts, id)
	}
}

func (a *agent) resetSession() {
	a.cancelScripts()
	a.polls = make(map[string]int)
	a.clickID = ""
	a.elements.Reset()
	a.cur = a.top()
}

// element resolves an element reference.
func (a *agent) element(v interface{}) (api.Element, error) {
	h, ok := dom.HandleFrom(v)
	if !ok {
		return nil, api.NewError(api.NoSuchElement, "Element %v is not known", v)
	}
	return a.elements.Get(h)
}

// navigable reports an error for agents that cannot navigate.
func (a *agent) navigable() error {
	if a.frame != nil {
		return api.NewError(api.UnsupportedOperation, "Cannot navigate an out-of-process frame")
	}
	return nil
}

// load navigates the tab to url and answers id once the new document is
// loaded. A load that swaps the process of the tab is answered by the
// agent of the new process.
func (a *agent) load(url string, push bool, id string) error {
	if err := a.navigable(); err != nil {
		return err
	}
	doc, page, err := a.host.parse(url)
	if err != nil {
		a.logger.Debugf("simhost:agent.load", "%v", err)
		return api.NewError(api.UnknownError, "Error loading page")
	}
	a.tab.visit(url, push)
	if page.Remote != a.tab.IsRemote() {
		a.tab.swap(doc, page.Remote)
		return nil
	}
	a.show(doc)
	a.waitReady(id)
	return nil
}

// show replaces the document of the tab in the same process.
func (a *agent) show(doc *dom.Document) {
	old := a.tab.show(doc)
	for _, s := range a.takeSubs() {
		s.close()
	}
	if old != nil {
		old.Unload()
	}
	a.cur = doc
	a.adopt(doc)
}

// onClick is the click handler of the documents of the agent. Clicks
// can come from a script goroutine, so the effect is queued.
func (a *agent) onClick(el *dom.Element) error {
	a.post(func() { a.perform(el) })
	return nil
}

// activate runs act, a click of some sort, and answers id unless the
// click started something that answers instead.
func (a *agent) activate(id string, act func() error) (interface{}, error) {
	a.clickID = id
	if err := act(); err != nil {
		a.clickID = ""
		return nil, err
	}
	a.post(func() {
		if a.clickID == id {
			a.clickID = ""
			a.ok(id)
		}
	})
	return nil, errPending
}

// perform carries out what clicking el does: open a dialog, close the
// frame, or follow a link or form.
func (a *agent) perform(el *dom.Element) {
	id := a.clickID
	for _, kind := range []string{DialogAlert, DialogConfirm, DialogPrompt} {
		if text, ok := el.Attribute("data-" + kind); ok {
			a.clickID = ""
			a.openDialog(kind, text)
			return
		}
	}
	if _, ok := el.Attribute("data-close-frame"); ok && a.frame != nil {
		a.clickID = ""
		a.close()
		return
	}
	target, ok := a.target(el)
	if !ok {
		return
	}
	a.clickID = ""
	if err := a.load(target, true, id); err != nil && id != "" {
		a.fail(id, err)
	}
}

// target returns the loadable page a link or form points to.
func (a *agent) target(el *dom.Element) (string, bool) {
	attr := "href"
	switch strings.ToLower(el.TagName()) {
	case "a":
	case "form":
		attr = "action"
	default:
		return "", false
	}
	ref, ok := el.Attribute(attr)
	if !ok || ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	base, err := url.Parse(el.Document().URL())
	if err != nil {
		return "", false
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", false
	}
	if _, ok := a.host.page(u.String()); !ok {
		return "", false
	}
	return u.String(), true
}

// openDialog shows a tab-modal dialog. Sub agents first have the control
// process switch to their frame.
func (a *agent) openDialog(kind, text string) *Dialog {
	d := newDialog(a.host, kind, text)
	a.tab.setModal(d)
	if a.frame != nil {
		a.send(&api.Message{Name: api.MsgSwitchToModalOrigin})
	}
	a.logger.Debugf("simhost:agent.openDialog", "%s %q", kind, text)
	a.host.emit(func(l api.Listener) { l.DialogOpened(d) })
	return d
}
