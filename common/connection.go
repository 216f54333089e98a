/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package common

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/dom"
	"github.com/liuxd6825/marionette/log"
	"github.com/liuxd6825/marionette/metrics"
	"github.com/liuxd6825/marionette/sandbox"
	"github.com/liuxd6825/marionette/wire"
)

const (
	eventBufferSize = 64

	chromeScriptsFile  = "marionetteChromeScripts"
	contentScriptsFile = "marionetteContentScripts"
)

// PacketChannel carries packets to the client.
type PacketChannel interface {
	Send(r *wire.Response) error
	Close() error
}

// Ensure Connection receives host notifications.
var _ api.Listener = &Connection{}

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger of the connection.
func WithLogger(l *log.Logger) Option {
	return func(c *Connection) { c.logger = l }
}

// WithClock sets the clock driving timers and polls.
func WithClock(cl clock.Clock) Option {
	return func(c *Connection) { c.clock = cl }
}

// WithTracer sets the tracer recording a span per command.
func WithTracer(t trace.Tracer) Option {
	return func(c *Connection) { c.tracer = t }
}

// WithMetrics sets the metrics commands are recorded in.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connection) { c.metrics = m }
}

// WithFs sets the filesystem and directory imported scripts are
// stored in.
func WithFs(fs afero.Fs, dir string) Option {
	return func(c *Connection) { c.fs, c.scriptDir = fs, dir }
}

// WithRegistry sets the dispatch table.
func WithRegistry(r *Registry) Option {
	return func(c *Connection) { c.registry = r }
}

// WithOnQuit sets the function called when the client asks the
// application to quit. The application quits once the client
// disconnects.
func WithOnQuit(fn func(flags []string)) Option {
	return func(c *Connection) { c.onQuit = fn }
}

// chromeState is what chrome context commands operate on.
type chromeState struct {
	// mainFrame is the window the session was started in.
	mainFrame api.Window
	// curFrame is the chrome frame switched to, nil at the window
	// document.
	curFrame api.Frame
	elements *dom.KnownElements

	sandbox      *sandbox.Sandbox
	scriptID     CommandID
	cancelScript context.CancelFunc
}

// Connection is the session of one client. All of its state is owned by
// the goroutine running Run; other goroutines only post events.
type Connection struct {
	id       string
	channel  PacketChannel
	host     api.Host
	registry *Registry

	logger    *log.Logger
	clock     clock.Clock
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	fs        afero.Fs
	scriptDir string
	onQuit    func(flags []string)

	ctx       context.Context
	events    chan interface{}
	done      chan struct{}
	closeOnce sync.Once

	tracker  *CorrelationTracker
	timers   *commandTimers
	inflight *commandTrace
	session  *Session
	dialogs  DialogCoordinator
	handles  *TabHandles

	browsers   map[string]*BrowserState
	curBrowser *BrowserState
	chrome     chromeState

	chromeScripts  *ScriptStore
	contentScripts *ScriptStore

	newSessionCommandID  CommandID
	currentFrameElement  interface{}
	previousFrameElement interface{}
	// oopFrameID is the out-of-process frame whose closing fails the
	// command in flight. frameWatch names the action being watched.
	oopFrameID string
	frameWatch string
	quitFlags  []string
}

// NewConnection creates the connection id for a client reachable over ch
// that drives host.
func NewConnection(id string, ch PacketChannel, host api.Host, opts ...Option) *Connection {
	c := &Connection{
		id:       id,
		channel:  ch,
		host:     host,
		logger:   log.NewNullLogger(),
		clock:    clock.New(),
		tracer:   noop.NewTracerProvider().Tracer("marionette"),
		fs:       afero.NewOsFs(),
		ctx:      context.Background(),
		events:   make(chan interface{}, eventBufferSize),
		done:     make(chan struct{}),
		handles:  NewTabHandles(),
		browsers: make(map[string]*BrowserState),
	}
	c.scriptDir = filepath.Join(os.TempDir(), "marionette")
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	c.logger = c.logger.With("conn", id)
	c.tracker = NewCorrelationTracker(c.clock)
	c.timers = newCommandTimers(c.clock, func(kind timerKind, cid CommandID) {
		c.post(timerFired{kind: kind, id: cid})
	})
	c.session = NewSession(DefaultCapabilities(host.Info()))
	c.chrome.elements = dom.NewKnownElements()
	c.chromeScripts = NewScriptStore(c.fs, c.scriptDir, id+chromeScriptsFile)
	c.contentScripts = NewScriptStore(c.fs, c.scriptDir, id+contentScriptsFile)

	return c
}

// ID returns the connection id.
func (c *Connection) ID() string {
	return c.id
}

// Done is closed once the connection stopped.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// SayHello sends the packet that greets a new client.
func (c *Connection) SayHello() {
	c.send(wire.NewHello())
}

// Run processes events until the client goes away or ctx is done.
func (c *Connection) Run(ctx context.Context) error {
	c.ctx = ctx
	unsubscribe := c.host.Subscribe(c)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case ev := <-c.events:
			if c.handleEvent(ev) {
				return nil
			}
		}
	}
}

// Transport hooks.

// OnPacket queues a packet received from the client.
func (c *Connection) OnPacket(data []byte) {
	c.post(packetReceived{data: data})
}

// OnError reports a transport error. The connection keeps running
// until it is closed.
func (c *Connection) OnError(err error) {
	c.post(transportFailed{err: err})
}

// OnClosed reports that the client went away.
func (c *Connection) OnClosed(err error) {
	c.post(transportClosed{err: err})
}

// Host notifications.

// Registered implements api.Listener.
func (c *Connection) Registered(r api.Registration) { c.post(agentRegistered{reg: r}) }

// Received implements api.Listener.
func (c *Connection) Received(m *api.Message) { c.post(agentMessage{msg: m}) }

// DialogOpened implements api.Listener.
func (c *Connection) DialogOpened(d api.Dialog) { c.post(dialogOpened{dialog: d}) }

// DialogClosed implements api.Listener.
func (c *Connection) DialogClosed(d api.Dialog) { c.post(dialogClosed{dialog: d}) }

// WindowClosed implements api.Listener.
func (c *Connection) WindowClosed(windowID string) { c.post(windowClosed{id: windowID}) }

// FrameClosed implements api.Listener.
func (c *Connection) FrameClosed(frameID string) { c.post(frameClosed{id: frameID}) }

// RemotenessChanged implements api.Listener.
func (c *Connection) RemotenessChanged(tabID string) { c.post(remotenessChanged{tabID: tabID}) }

func (c *Connection) post(ev interface{}) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// schedule runs fn on the event loop after d.
func (c *Connection) schedule(d time.Duration, fn func()) {
	c.clock.AfterFunc(d, func() { c.post(deferred{fn: fn}) })
}

// handleEvent processes one event and reports whether the connection
// stopped.
func (c *Connection) handleEvent(ev interface{}) bool {
	switch e := ev.(type) {
	case packetReceived:
		c.dispatch(e.data)
	case transportFailed:
		c.logger.Warnf("Connection:transport", "%v", e.err)
	case transportClosed:
		if e.err != nil && !errors.Is(e.err, context.Canceled) {
			c.logger.Debugf("Connection:transport", "closed: %v", e.err)
		}
		c.shutdown()
		return true
	case agentRegistered:
		c.onRegistered(e.reg)
	case agentMessage:
		c.onAgentMessage(e.msg)
	case dialogOpened:
		c.onDialogOpened(e.dialog)
	case dialogClosed:
		c.dialogs.ClosedDialog(e.dialog)
	case windowClosed:
		c.onWindowClosed(e.id)
	case frameClosed:
		c.onFrameClosed(e.id)
	case remotenessChanged:
		c.onRemotenessChanged(e.tabID)
	case timerFired:
		c.onTimerFired(e.kind, e.id)
	case chromeScriptDone:
		c.onChromeScriptDone(e)
	case emulatorRequest:
		c.onEmulatorRequest(e)
	case deferred:
		e.fn()
	default:
		c.logger.Errorf("Connection:handleEvent", "unexpected event %T", ev)
	}
	return false
}

// shutdown tears the session down after the client went away.
func (c *Connection) shutdown() {
	c.closeOnce.Do(func() {
		c.teardown(nil)
		c.tracker.Reset()
		close(c.done)
		_ = c.channel.Close()

		if c.quitFlags != nil {
			flags := c.quitFlags
			c.quitFlags = nil
			if err := c.host.Quit(flags); err != nil {
				c.logger.Errorf("Connection:shutdown", "quitting: %v", err)
			}
		}
	})
}

func (c *Connection) send(r *wire.Response) {
	if err := c.channel.Send(r); err != nil {
		c.logger.Warnf("Connection:send", "%v", err)
	}
}
