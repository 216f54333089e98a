// Package simhost is an in-memory browser application implementing the
// host contracts of the api package. Windows, tabs and documents come
// from a Fixture; every content frame is served by an agent running on
// a goroutine of its own, which exchanges messages with the control
// process the way frame scripts do.
package simhost

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/dom"
	"github.com/liuxd6825/marionette/log"
)

// ScreenSize is the size maximized windows take.
var ScreenSize = api.Size{Width: 1920, Height: 1080} //nolint:gochecknoglobals

// Ensure Host implements api.Host.
var _ api.Host = &Host{}

// Option configures a Host.
type Option func(*Host)

// WithClock sets the clock of polls and script timers.
func WithClock(cl clock.Clock) Option {
	return func(h *Host) { h.clock = cl }
}

// WithLogger sets the logger of the host.
func WithLogger(l *log.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// Host is a simulated browser application.
type Host struct {
	fixture *Fixture
	logger  *log.Logger
	clock   clock.Clock
	notify  *notifier
	cookies *cookieJar

	mu        sync.Mutex
	windows   []*Window
	listeners map[int]api.Listener
	nextSub   int
	nextID    int
	nextProc  int
	pages     map[string]Page
	quitFlags []string
	quit      bool
}

// New starts the application described by f.
func New(f *Fixture, opts ...Option) (*Host, error) {
	h := &Host{
		fixture:   f,
		logger:    log.NewNullLogger(),
		clock:     clock.New(),
		cookies:   newCookieJar(),
		listeners: make(map[int]api.Listener),
		pages:     make(map[string]Page, len(f.Pages)),
	}
	for _, opt := range opts {
		opt(h)
	}
	for url, p := range f.Pages {
		h.pages[url] = p
	}
	h.notify = newNotifier()
	go h.notify.loop()

	for _, spec := range f.Windows {
		if _, err := h.OpenWindow(spec); err != nil {
			h.Close()
			return nil, err
		}
	}
	return h, nil
}

// Info implements api.Host.
func (h *Host) Info() api.AppInfo {
	return h.fixture.App.Info()
}

// Windows implements api.Host.
func (h *Host) Windows() []api.Window {
	h.mu.Lock()
	defer h.mu.Unlock()

	wins := make([]api.Window, 0, len(h.windows))
	for _, w := range h.windows {
		wins = append(wins, w.public())
	}
	return wins
}

// Window returns the open window with the given id.
func (h *Host) Window(id string) (*Window, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, w := range h.windows {
		if w.id == id {
			return w, true
		}
	}
	return nil, false
}

// Subscribe implements api.Host.
func (h *Host) Subscribe(l api.Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSub
	h.nextSub++
	h.listeners[id] = l
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

// Quit implements api.Host. Every window is closed.
func (h *Host) Quit(flags []string) error {
	h.mu.Lock()
	if h.quit {
		h.mu.Unlock()
		return fmt.Errorf("application already quit")
	}
	h.quit, h.quitFlags = true, flags
	wins := append([]*Window(nil), h.windows...)
	h.mu.Unlock()

	h.logger.Infof("simhost:Quit", "flags:%v", flags)
	for _, w := range wins {
		if err := w.Close(); err != nil {
			h.logger.Warnf("simhost:Quit", "closing window %s: %v", w.id, err)
		}
	}
	return nil
}

// Quitted reports whether the application quit and the flags it was
// asked to quit with.
func (h *Host) Quitted() (bool, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.quit, h.quitFlags
}

// Close stops every agent and the delivery of notifications.
func (h *Host) Close() {
	h.mu.Lock()
	wins := append([]*Window(nil), h.windows...)
	h.mu.Unlock()

	for _, w := range wins {
		w.stopAgents()
	}
	h.notify.stop()
}

// AddPage makes url loadable.
func (h *Host) AddPage(url string, p Page) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pages[url] = p
}

// FinishLoad completes the loading of every document at url.
func (h *Host) FinishLoad(url string) {
	h.mu.Lock()
	wins := append([]*Window(nil), h.windows...)
	h.mu.Unlock()

	for _, w := range wins {
		for _, t := range w.allTabs() {
			if d := t.Document(); d.URL() == url {
				d.SetReadyState(dom.StateComplete)
			}
		}
	}
}

func (h *Host) page(url string) (Page, bool) {
	if url == BlankURL || url == "" {
		return Page{Source: blankPage}, true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pages[url]
	return p, ok
}

// parse loads the document at url. Frame sources are read from the
// pages of the host.
func (h *Host) parse(url string) (*dom.Document, Page, error) {
	p, ok := h.page(url)
	if !ok {
		return nil, Page{}, fmt.Errorf("no page at %s", url)
	}
	doc, err := dom.Parse(url, p.Source, func(src string) (string, error) {
		fp, ok := h.page(src)
		if !ok {
			return "", fmt.Errorf("no page at %s", src)
		}
		return fp.Source, nil
	})
	if err != nil {
		return nil, Page{}, err
	}
	if p.Loading {
		doc.SetReadyState(dom.StateInteractive)
	}
	return doc, p, nil
}

// newID issues an outer window id.
func (h *Host) newID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	return strconv.Itoa(h.nextID)
}

// newProcess names a process for content of the given remoteness.
func (h *Host) newProcess(remote bool) string {
	if !remote {
		return "parent"
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextProc++
	return "content-" + strconv.Itoa(h.nextProc)
}

func (h *Host) addWindow(w *Window) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.windows = append([]*Window{w}, h.windows...)
}

func (h *Host) removeWindow(w *Window) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, o := range h.windows {
		if o == w {
			h.windows = append(h.windows[:i], h.windows[i+1:]...)
			return true
		}
	}
	return false
}

// raise makes w the most recently used window.
func (h *Host) raise(w *Window) {
	if h.removeWindow(w) {
		h.addWindow(w)
	}
}

// emit delivers a notification to the listeners subscribed now, in the
// order notifications were emitted.
func (h *Host) emit(fn func(l api.Listener)) {
	h.mu.Lock()
	ls := make([]api.Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		ls = append(ls, l)
	}
	h.mu.Unlock()

	h.notify.push(func() {
		for _, l := range ls {
			fn(l)
		}
	})
}

// notifier runs queued functions in order on one goroutine.
type notifier struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newNotifier() *notifier {
	return &notifier{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

func (n *notifier) push(fn func()) {
	n.mu.Lock()
	n.queue = append(n.queue, fn)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// take removes and returns the queued functions.
func (n *notifier) take() []func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	queue := n.queue
	n.queue = nil
	return queue
}

func (n *notifier) loop() {
	for {
		for _, fn := range n.take() {
			fn()
		}
		select {
		case <-n.wake:
		case <-n.done:
			return
		}
	}
}

func (n *notifier) stop() {
	n.once.Do(func() { close(n.done) })
}
