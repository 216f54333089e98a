package sandbox

import (
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/liuxd6825/marionette/api"
)

const waitForPollInterval = 100 * time.Millisecond

// Failure is a failed assertion of a test script.
type Failure struct {
	Name string `json:"name"`
	Diag string `json:"diag,omitempty"`
}

type results struct {
	passed   int
	failed   int
	todo     int
	failures []Failure
}

func (r *results) export() map[string]interface{} {
	failures := make([]interface{}, 0, len(r.failures))
	for _, f := range r.failures {
		failures = append(failures, map[string]interface{}{"name": f.Name, "diag": f.Diag})
	}
	return map[string]interface{}{
		"passed":   r.passed,
		"failed":   r.failed,
		"todo":     r.todo,
		"failures": failures,
	}
}

// isResults reports whether v is the object generate_results returns.
func isResults(v goja.Value) bool {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false
	}
	m, ok := v.Export().(map[string]interface{})
	if !ok {
		return false
	}
	_, ok = m["passed"]
	return ok
}

// define installs the globals of the run.
func (r *run) define() error {
	rt := r.sb.rt
	args := make([]interface{}, 0, len(r.opts.Args))
	for _, a := range r.opts.Args {
		args = append(args, toJS(rt, a))
	}

	globals := map[string]interface{}{
		"__marionetteParams":       rt.NewArray(args...),
		"marionetteScriptFinished": r.scriptFinished,
		"returnFunc":               r.scriptFinished,
		"ok":                       r.ok,
		"is":                       r.is,
		"isnot":                    r.isnot,
		"todo":                     r.todoCheck,
		"log":                      r.logMessage,
		"generate_results":         r.generateResults,
		"finish":                   r.finishTest,
		"waitFor":                  r.waitFor,
		"setTimeout":               r.setTimeout,
		"runEmulatorCmd":           r.runEmulatorCmd,
		"runEmulatorShell":         r.runEmulatorShell,
	}
	for k, v := range r.opts.Globals {
		globals[k] = v
	}
	for k, v := range globals {
		if err := rt.Set(k, v); err != nil {
			return api.NewError(api.JavaScriptError, "defining %s: %v", k, err)
		}
	}
	return nil
}

func (r *run) scriptFinished(v goja.Value) {
	var value interface{}
	if v != nil {
		value = unwrap(v.Export())
	}
	r.finish(value, nil)
}

func (r *run) ok(cond bool, name, diag string) {
	res := &r.sb.results
	if cond {
		res.passed++
	} else {
		res.failed++
		res.failures = append(res.failures, Failure{Name: name, Diag: diag})
	}
	r.log("INFO", fmt.Sprintf("%s | %s", passOrFail(cond), name))
	r.heartbeat()
}

func (r *run) is(a, b goja.Value, name string) {
	a, b = orUndefined(a), orUndefined(b)
	r.ok(a.Equals(b), name, fmt.Sprintf("got %s, expected %s", a, b))
}

func (r *run) isnot(a, b goja.Value, name string) {
	a, b = orUndefined(a), orUndefined(b)
	r.ok(!a.Equals(b), name, fmt.Sprintf("got %s, expected something else", a))
}

func (r *run) todoCheck(cond bool, name string) {
	r.sb.results.todo++
	r.log("INFO", fmt.Sprintf("TODO | %s | %s", passOrFail(cond), name))
	r.heartbeat()
}

func (r *run) logMessage(msg, level string) {
	if level == "" {
		level = "INFO"
	}
	r.log(level, msg)
	r.heartbeat()
}

func (r *run) generateResults() map[string]interface{} {
	return r.sb.results.export()
}

// finishTest returns the test results. Async runs end with them.
func (r *run) finishTest() map[string]interface{} {
	res := r.generateResults()
	if r.opts.Async {
		r.finish(res, nil)
	}
	return res
}

// setTimeout runs fn after ms milliseconds unless the run ended by then.
func (r *run) setTimeout(fn goja.Callable, ms int64) {
	r.sb.clock.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
		r.enqueue(func() {
			if _, err := fn(goja.Undefined()); err != nil {
				r.finish(nil, scriptError(err))
			}
		})
	})
}

// waitFor calls callback once test returns true, or once timeout
// milliseconds passed, failing an assertion.
func (r *run) waitFor(callback, test goja.Callable, timeout int64) {
	if timeout <= 0 {
		timeout = 5000
	}
	deadline := r.sb.clock.Now().Add(time.Duration(timeout) * time.Millisecond)

	var poll func()
	poll = func() {
		v, err := test(goja.Undefined())
		if err != nil {
			r.finish(nil, scriptError(err))
			return
		}
		expired := !r.sb.clock.Now().Before(deadline)
		if !v.ToBoolean() && !expired {
			r.sb.clock.AfterFunc(waitForPollInterval, func() { r.enqueue(poll) })
			return
		}
		if expired && !v.ToBoolean() {
			r.ok(false, "waitFor timeout", fmt.Sprintf("condition not met within %dms", timeout))
		}
		if _, err := callback(goja.Undefined()); err != nil {
			r.finish(nil, scriptError(err))
		}
	}
	r.enqueue(poll)
}

func (r *run) runEmulatorCmd(cmd string, cb goja.Value) {
	r.emulator(EmulatorRequest{Cmd: cmd}, cb)
}

func (r *run) runEmulatorShell(args []interface{}, cb goja.Value) {
	if args == nil {
		args = []interface{}{}
	}
	r.emulator(EmulatorRequest{Shell: args}, cb)
}

func (r *run) emulator(req EmulatorRequest, cb goja.Value) {
	req.ID = r.sb.emuID
	r.sb.emuID++
	if fn, ok := goja.AssertFunction(cb); ok {
		r.mu.Lock()
		r.pending[req.ID] = fn
		r.mu.Unlock()
	}
	if r.opts.Emulator != nil {
		r.opts.Emulator(req)
	}
}

func orUndefined(v goja.Value) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	return v
}

func passOrFail(cond bool) string {
	if cond {
		return "TEST-PASS"
	}
	return "TEST-UNEXPECTED-FAIL"
}
