// Package sandbox runs client scripts on a goja runtime.
//
// Scripts run the way the execute commands expect: as a function body
// receiving the arguments (executeScript), as a function body that
// finishes through a callback (executeAsyncScript), or as they are with
// a test harness ending in finish() (executeJSScript).
package sandbox

import (
	"context"
	"errors"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/dop251/goja"

	"github.com/liuxd6825/marionette/api"
)

// EmulatorRequest asks the client to run an emulator command. The
// answer is handed back with Sandbox.Resolve.
type EmulatorRequest struct {
	ID    int64
	Cmd   string
	Shell []interface{}
}

// Options of a script run.
type Options struct {
	Script string
	// Args are the script arguments. Elements among them are exposed to
	// the script as element objects.
	Args []interface{}
	// Async scripts finish by calling marionetteScriptFinished, or finish()
	// when Direct.
	Async bool
	// Direct scripts run as they are instead of as a function body.
	Direct bool
	// Imported is prepended to the script.
	Imported string
	Filename string
	// Globals are defined before the script runs.
	Globals map[string]interface{}

	Log       func(level, msg string)
	Emulator  func(r EmulatorRequest)
	Heartbeat func()
}

// Sandbox is a script execution environment. Globals a run defines stay
// visible to later runs. Runs are serialized.
type Sandbox struct {
	clock clock.Clock

	mu      sync.Mutex
	rt      *goja.Runtime
	results results
	emuID   int64

	curMu sync.Mutex
	cur   *run
}

// New returns an empty sandbox whose timers run on cl.
func New(cl clock.Clock) *Sandbox {
	rt := goja.New()
	rt.SetFieldNameMapper(goja.UncapFieldNameMapper())
	return &Sandbox{clock: cl, rt: rt}
}

type outcome struct {
	value interface{}
	err   error
}

// run is the state of one Run call. Its fields other than mu, pending
// and ended are only touched on the goroutine executing the script.
type run struct {
	sb   *Sandbox
	opts Options

	jobs     chan func()
	ended    chan struct{}
	finished chan outcome
	done     bool

	mu      sync.Mutex
	pending map[int64]goja.Callable
}

// Run executes the script described by opts and returns its result. It
// returns ctx.Err() once ctx is done, interrupting the script if it
// still executes.
func (s *Sandbox) Run(ctx context.Context, opts Options) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &run{
		sb:       s,
		opts:     opts,
		jobs:     make(chan func(), 16),
		ended:    make(chan struct{}),
		finished: make(chan outcome, 1),
		pending:  make(map[int64]goja.Callable),
	}
	s.setCurrent(r)
	defer func() {
		s.setCurrent(nil)
		close(r.ended)
	}()

	s.rt.ClearInterrupt()
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		s.rt.Interrupt(ctx.Err())
		close(interrupted)
	})
	defer func() {
		if !stop() {
			<-interrupted
		}
	}()

	if err := r.define(); err != nil {
		return nil, err
	}
	v, err := s.rt.RunScript(opts.Filename, r.source())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, scriptError(err)
	}

	if !opts.Async {
		if opts.Direct && !isResults(v) {
			return nil, api.NewError(api.Generic, "finish() not called")
		}
		return unwrap(v.Export()), nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case o := <-r.finished:
			return o.value, o.err
		case job := <-r.jobs:
			job()
		}
	}
}

// Resolve hands the result of an emulator command to the callback
// waiting for it. It reports false if no running script waits for id.
func (s *Sandbox) Resolve(id int64, result interface{}) bool {
	s.curMu.Lock()
	r := s.cur
	s.curMu.Unlock()
	if r == nil {
		return false
	}

	r.mu.Lock()
	cb, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.enqueue(func() {
		if _, err := cb(goja.Undefined(), r.sb.rt.ToValue(result)); err != nil {
			r.finish(nil, scriptError(err))
		}
	})
}

func (s *Sandbox) setCurrent(r *run) {
	s.curMu.Lock()
	defer s.curMu.Unlock()
	s.cur = r
}

// source returns the program to evaluate.
func (r *run) source() string {
	script := r.opts.Script
	switch {
	case r.opts.Direct:
	case r.opts.Async:
		script = "__marionetteParams.push(marionetteScriptFinished);\n" +
			"(function() {\n" + script + "\n}).apply(null, __marionetteParams);"
	default:
		script = "(function() {\n" + script + "\n}).apply(null, __marionetteParams);"
	}
	if r.opts.Imported != "" {
		script = r.opts.Imported + "\n" + script
	}
	return script
}

// enqueue schedules fn on the script goroutine. It reports false once
// the run ended.
func (r *run) enqueue(fn func()) bool {
	select {
	case <-r.ended:
		return false
	default:
	}
	select {
	case r.jobs <- fn:
		return true
	case <-r.ended:
		return false
	}
}

// finish ends an async run. Only the first call counts.
func (r *run) finish(v interface{}, err error) {
	if r.done {
		return
	}
	r.done = true

	r.mu.Lock()
	pending := len(r.pending)
	r.pending = make(map[int64]goja.Callable)
	r.mu.Unlock()
	if err == nil && pending > 0 {
		err = api.NewError(api.Generic, "Emulator callback still pending when finish() called")
	}
	r.finished <- outcome{value: v, err: err}
}

func (r *run) heartbeat() {
	if r.opts.Heartbeat != nil {
		r.opts.Heartbeat()
	}
}

func (r *run) log(level, msg string) {
	if r.opts.Log != nil {
		r.opts.Log(level, msg)
	}
}

// scriptError converts a goja error to a JavaScriptError.
func scriptError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if e, ok := interrupted.Value().(error); ok {
			return e
		}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &api.Error{Kind: api.JavaScriptError, Message: ex.Value().String(), Stacktrace: ex.String()}
	}
	return api.NewError(api.JavaScriptError, "%v", err)
}
