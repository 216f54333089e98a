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
	"time"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/sandbox"
)

type scriptCommand struct {
	async  bool
	direct bool
	name   string
}

var ( //nolint:gochecknoglobals
	executeScriptCmd      = scriptCommand{name: "executeScript"}
	executeAsyncScriptCmd = scriptCommand{name: "executeAsyncScript", async: true}
	executeJSScriptCmd    = scriptCommand{name: "executeJSScript", direct: true}
)

// scriptTimeout is the timeout of a script command in milliseconds.
func (c *Connection) scriptTimeout(p api.Params) int64 {
	if p.Has("scriptTimeout") {
		if ms, err := p.Int("scriptTimeout"); err == nil && ms > 0 {
			return ms
		}
	}
	return c.session.ScriptTimeout
}

func newSandboxParam(p api.Params) bool {
	if v, ok := p["newSandbox"].(bool); ok {
		return v
	}
	return true
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// armScriptTimers starts the script timer and, if asked for, the
// inactivity timer that heartbeats reset.
func (c *Connection) armScriptTimers(id CommandID, timeout int64, p api.Params) {
	if timeout > 0 {
		c.timers.start(scriptTimer, id, millis(timeout))
	}
	if p.Has("inactivityTimeout") {
		if ms, err := p.Int("inactivityTimeout"); err == nil && ms > 0 {
			c.timers.start(inactivityTimer, id, millis(ms))
		}
	}
}

func (sc scriptCommand) content(c *Connection, id CommandID, p api.Params) error {
	imported, err := c.contentScripts.Scripts()
	if err != nil {
		return api.NewError(api.Generic, "Could not read imported scripts: %v", err)
	}
	timeout := c.scriptTimeout(p)
	params := api.Params{
		"script":          p["script"],
		"args":            p["args"],
		"newSandbox":      newSandboxParam(p),
		"timeout":         timeout,
		"specialPowers":   p["specialPowers"],
		"filename":        p["filename"],
		"line":            p["line"],
		"importedScripts": imported,
	}
	switch {
	case sc.direct:
		params["async"] = p.Bool("async")
		params["inactivityTimeout"] = p["inactivityTimeout"]
	case sc.async:
		params["id"] = string(id)
		params["inactivityTimeout"] = p["inactivityTimeout"]
	}

	c.armScriptTimers(id, timeout, p)
	c.sendAsync(sc.name, params, id, false)
	return nil
}

// chrome runs the script in a sandbox on its own goroutine. The result is
// posted back to the event loop.
func (sc scriptCommand) chrome(c *Connection, id CommandID, p api.Params) error {
	async := sc.async || (sc.direct && p.Bool("async"))
	timeout := c.scriptTimeout(p)
	if sc.direct && async && timeout <= 0 {
		return api.NewError(api.Timeout, "Please set a timeout")
	}

	args, err := c.chrome.elements.FromJSON(p.Slice("args"))
	if err != nil {
		return err
	}
	argv, _ := args.([]interface{})
	imported, err := c.chromeScripts.Scripts()
	if err != nil {
		return api.NewError(api.Generic, "Could not read imported scripts: %v", err)
	}

	running := c.chrome.cancelScript != nil
	c.cancelChromeScript()
	if running || c.chrome.sandbox == nil || newSandboxParam(p) {
		c.chrome.sandbox = sandbox.New(c.clock)
	}
	sb := c.chrome.sandbox
	ctx, cancel := context.WithCancel(c.ctx)
	c.chrome.scriptID, c.chrome.cancelScript = id, cancel
	c.armScriptTimers(id, timeout, p)

	opts := sandbox.Options{
		Script:   p.StringOr("script", ""),
		Args:     argv,
		Async:    async,
		Direct:   sc.direct,
		Imported: imported,
		Filename: p.StringOr("filename", "dummy file"),
		Globals: map[string]interface{}{
			"__marionetteTestName": c.session.TestName,
			"__marionetteContext":  string(ContextChrome),
		},
		Log: func(level, msg string) {
			c.post(deferred{fn: func() { c.appendLog(level, msg) }})
		},
		Emulator: func(r sandbox.EmulatorRequest) {
			c.post(emulatorRequest{id: r.ID, cmd: r.Cmd, shell: r.Shell})
		},
		Heartbeat: func() {
			c.post(deferred{fn: func() {
				if c.tracker.Current() == id {
					c.timers.reset(inactivityTimer)
				}
			}})
		},
	}

	c.logger.Debugf("Connection:executeChrome", "id:%s async:%t direct:%t timeout:%d", id, async, sc.direct, timeout)
	go func() {
		v, err := sb.Run(ctx, opts)
		c.post(chromeScriptDone{id: id, value: v, err: err})
	}()
	return nil
}

func (c *Connection) cancelChromeScript() {
	if c.chrome.cancelScript == nil {
		return
	}
	c.chrome.cancelScript()
	c.chrome.cancelScript = nil
	c.chrome.scriptID = ""
}

func (c *Connection) onChromeScriptDone(e chromeScriptDone) {
	if c.chrome.scriptID == e.id {
		c.cancelChromeScript()
	}
	if e.err != nil {
		if errors.Is(e.err, context.Canceled) {
			c.logger.Debugf("Connection:onChromeScriptDone", "id:%s canceled", e.id)
			return
		}
		c.sendError(api.AsError(e.err), e.id)
		return
	}
	c.sendResponse(c.chrome.elements.ToJSON(e.value), e.id)
}

// emulatorCmdResultChrome delivers the result of an emulator command to the
// script waiting for it.
func emulatorCmdResultChrome(c *Connection, _ CommandID, p api.Params) error {
	if c.chrome.sandbox == nil {
		return nil
	}
	cid, err := api.ToInt(p["id"])
	if err != nil {
		return err
	}
	if !c.chrome.sandbox.Resolve(cid, p["result"]) {
		c.logger.Debugf("Connection:emulatorCmdResult", "no callback for emulator command %d", cid)
	}
	return nil
}

func emulatorCmdResultContent(c *Connection, _ CommandID, p api.Params) error {
	c.sendAsync(api.MsgEmulatorCmdResult, p, OutOfBand, true)
	return nil
}
