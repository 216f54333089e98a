package simhost

import (
	"context"
	"errors"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/dom"
	"github.com/liuxd6825/marionette/sandbox"
)

type scriptCommand struct {
	async  bool
	direct bool
}

// run executes a content script on its own goroutine. A script still
// running is canceled first and the new one gets a fresh sandbox.
func (sc scriptCommand) run(a *agent, id string, p api.Params) (interface{}, error) {
	async := sc.async || (sc.direct && p.Bool("async"))
	timeout, _ := api.ToInt(p["timeout"])
	if sc.direct && async && timeout <= 0 {
		return nil, api.NewError(api.Timeout, "Please set a timeout")
	}

	args, err := a.elements.FromJSON(p.Slice("args"))
	if err != nil {
		return nil, err
	}
	argv, _ := args.([]interface{})

	fresh, ok := p["newSandbox"].(bool)
	running := len(a.scripts) > 0
	a.cancelScripts()
	if running || a.sandbox == nil || !ok || fresh {
		a.sandbox = sandbox.New(a.host.clock)
	}
	sb := a.sandbox
	ctx, cancel := context.WithCancel(a.ctx)
	a.scripts[id] = cancel

	opts := sandbox.Options{
		Script:   p.StringOr("script", ""),
		Args:     argv,
		Async:    async,
		Direct:   sc.direct,
		Imported: p.StringOr("importedScripts", ""),
		Filename: p.StringOr("filename", "dummy file"),
		Globals:  a.scriptGlobals(ctx, a.cur),
		Log: func(level, msg string) {
			a.send(&api.Message{
				Name:      api.MsgLog,
				CommandID: id,
				Params:    api.Params{"level": level, "message": msg},
			})
		},
		Emulator: func(r sandbox.EmulatorRequest) {
			m := &api.Message{Name: api.MsgRunEmulatorCmd, CommandID: id, Params: api.Params{"emulator_cmd": r.Cmd, "id": r.ID}}
			if r.Shell != nil {
				m.Name, m.Params = api.MsgRunEmulatorShell, api.Params{"emulator_shell": r.Shell, "id": r.ID}
			}
			a.send(m)
		},
		Heartbeat: func() {
			a.send(&api.Message{Name: api.MsgHeartbeat, CommandID: id})
		},
	}

	a.logger.Debugf("simhost:agent.script", "id:%s async:%t direct:%t", id, async, sc.direct)
	go func() {
		v, err := sb.Run(ctx, opts)
		a.post(func() {
			if _, ok := a.scripts[id]; ok {
				cancel()
				delete(a.scripts, id)
			}
		})
		switch {
		case err == nil:
			a.reply(id, a.elements.ToJSON(v))
		case errors.Is(err, context.Canceled):
			a.logger.Debugf("simhost:agent.script", "id:%s canceled", id)
		default:
			a.fail(id, err)
		}
	}()
	return nil, errPending
}

// scriptGlobals are what content scripts see of their window.
func (a *agent) scriptGlobals(ctx context.Context, doc *dom.Document) map[string]interface{} {
	modal := func(kind string) func(text string) interface{} {
		return func(text string) interface{} {
			return a.openDialog(kind, text).wait(ctx)
		}
	}
	return map[string]interface{}{
		"document":             scriptDocument(doc),
		"alert":                modal(DialogAlert),
		"confirm":              modal(DialogConfirm),
		"prompt":               modal(DialogPrompt),
		"__marionetteContext":  "content",
		"__marionetteTestName": a.testName,
	}
}

func scriptDocument(doc *dom.Document) map[string]interface{} {
	return map[string]interface{}{
		"title":      doc.Title(),
		"URL":        doc.URL(),
		"readyState": doc.ReadyState(),
		"location":   map[string]interface{}{"href": doc.URL()},
		"querySelector": func(selector string) interface{} {
			el, ok := doc.QuerySelector(selector)
			if !ok {
				return nil
			}
			return sandbox.Ref(el)
		},
		"getElementById": func(id string) interface{} {
			els, err := doc.FindElements(dom.ByID, id, nil)
			if err != nil || len(els) == 0 {
				return nil
			}
			return sandbox.Ref(els[0])
		},
	}
}
