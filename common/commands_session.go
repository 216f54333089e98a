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
	"time"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/wire"
)

const windowPollInterval = 100 * time.Millisecond

func getMarionetteID(c *Connection, _ CommandID, _ api.Params) error {
	c.send(wire.NewMarionetteID())
	return nil
}

func sayHello(c *Connection, _ CommandID, _ api.Params) error {
	c.SayHello()
	return nil
}

func newSession(c *Connection, id CommandID, p api.Params) error {
	if c.session.Running() {
		return api.NewError(api.Generic, "Session already running")
	}

	requested := p.Map("capabilities")
	if requested == nil {
		requested = api.Params{}
		for _, k := range []string{"desiredCapabilities", "requiredCapabilities"} {
			if p.Has(k) {
				requested[k] = p[k]
			}
		}
	}
	caps, err := DefaultCapabilities(c.host.Info()).Negotiate(requested)
	if err != nil {
		return err
	}

	session := NewSession(caps)
	session.ID = p.StringOr("session_id", "")
	session.State = SessionStarting
	session.Context = c.session.Context
	session.SearchTimeout = c.session.SearchTimeout
	session.PageTimeout = c.session.PageTimeout
	session.Logs = c.session.Logs
	c.session = session
	c.newSessionCommandID = id
	c.dialogs.Clear()
	c.logger.Infof("Connection:newSession", "starting session %q", session.ID)

	c.waitForWindow(id)
	return nil
}

// waitForWindow starts the session in the most recent window once its
// chrome document is loaded.
func (c *Connection) waitForWindow(id CommandID) {
	if c.session.State != SessionStarting || c.tracker.Current() != id {
		return
	}
	wins := c.host.Windows()
	if len(wins) == 0 || !wins[0].Ready() {
		c.schedule(windowPollInterval, func() { c.waitForWindow(id) })
		return
	}
	if err := c.startBrowser(wins[0], true); err != nil {
		c.sendError(api.AsError(err), id)
	}
}

// startBrowser makes win the driven window and loads agents into it.
// When the window is switched to rather than started with the session,
// the command in flight is answered once its agents registered.
func (c *Connection) startBrowser(win api.Window, newSession bool) error {
	c.chrome.mainFrame = win
	c.chrome.curFrame = nil

	b := NewBrowserState(win, c.handles, c.logger)
	b.newSession = newSession
	c.browsers[win.ID()] = b
	c.curBrowser = b

	n, err := win.LoadAgents()
	if err != nil {
		c.logger.Infof("Connection:startBrowser", "could not load agents into window %s: %v", win.ID(), err)
		if newSession {
			return api.NewError(api.SessionNotCreated, "Could not start a session in window %s: %v", win.ID(), err)
		}
		return err
	}
	if !newSession {
		if n == 0 {
			c.sendOK(c.tracker.Current())
		} else {
			b.frameRegsPending = n
		}
	}
	return nil
}

// answerCapabilities completes newSession.
func (c *Connection) answerCapabilities(id CommandID) {
	if c.session.ID == "" {
		c.session.ID = uuid.NewString()
	}
	c.session.State = SessionReady
	c.sendResponse(c.session.Capabilities, id)
}

func getSessionCapabilities(c *Connection, id CommandID, _ api.Params) error {
	if c.session.ID == "" {
		c.session.ID = uuid.NewString()
	}
	c.sendResponse(c.session.Capabilities, id)
	return nil
}

func deleteSession(c *Connection, id CommandID, _ api.Params) error {
	c.teardown(nil)
	c.sendOK(id)
	return nil
}

// teardown ends the session. A command other than the one tearing down
// that is still in flight is answered with reason.
func (c *Connection) teardown(reason *api.Error) {
	if reason != nil {
		if id := c.tracker.Current(); id != "" {
			c.sendError(reason, id)
		}
	}

	for _, b := range c.browsers {
		for _, fid := range b.KnownFrames() {
			if err := sendToAgent(b, fid, &api.Message{Name: api.MsgDeleteSession, CommandID: string(OutOfBand)}); err != nil {
				c.logger.Debugf("Connection:teardown", "fid:%s: %v", fid, err)
			}
		}
		b.Window().UnloadAgents()
		b.SwitchToGlobal()
		b.Reset()
		b.ClearPendingCommands()
	}
	c.chrome.curFrame = nil
	if c.chrome.mainFrame != nil {
		c.chrome.mainFrame.Focus()
	}
	c.cancelChromeScript()
	c.chrome.sandbox = nil
	c.chrome.elements.Reset()

	if err := c.chromeScripts.Clear(); err != nil {
		c.logger.Warnf("Connection:teardown", "%v", err)
	}
	if err := c.contentScripts.Clear(); err != nil {
		c.logger.Warnf("Connection:teardown", "%v", err)
	}

	c.browsers = make(map[string]*BrowserState)
	c.curBrowser = nil
	c.dialogs.Clear()
	c.timers.stopAll()
	c.newSessionCommandID = ""
	c.currentFrameElement, c.previousFrameElement = nil, nil
	c.frameWatch = ""

	if c.session.State != SessionUninitialized {
		c.session.State = SessionTornDown
	}
	c.session.ID = ""
}

func quitApplication(c *Connection, id CommandID, p api.Params) error {
	flags := make([]string, 0, len(p.Slice("flags")))
	for _, f := range p.Slice("flags") {
		if s, ok := f.(string); ok {
			flags = append(flags, s)
		}
	}
	c.quitFlags = flags
	if c.onQuit != nil {
		c.onQuit(flags)
	}
	c.sendOK(id)
	return nil
}

func setTestNameContent(c *Connection, id CommandID, p api.Params) error {
	c.session.TestName = p.StringOr("value", "")
	c.sendAsync("setTestName", api.Params{"value": p["value"]}, id, false)
	return nil
}

func (c *Connection) appendLog(level, msg string) {
	c.session.Logs = append(c.session.Logs, LogEntry{
		Level:   level,
		Message: msg,
		Time:    c.clock.Now().UTC().Format(time.RFC3339Nano),
	})
}

func logMessage(c *Connection, id CommandID, p api.Params) error {
	c.appendLog(p.StringOr("level", "INFO"), p.StringOr("value", ""))
	c.sendOK(id)
	return nil
}

func getLogs(c *Connection, id CommandID, _ api.Params) error {
	logs := make([]interface{}, 0, len(c.session.Logs))
	for _, l := range c.session.Logs {
		logs = append(logs, []interface{}{l.Level, l.Message, l.Time})
	}
	c.sendResponse(logs, id)
	return nil
}

func setContext(c *Connection, id CommandID, p api.Params) error {
	switch ctx := Context(p.StringOr("value", "")); ctx {
	case ContextChrome, ContextContent:
		c.session.Context = ctx
		c.sendOK(id)
		return nil
	}
	return api.NewError(api.InvalidArgument, "invalid context")
}

func getContext(c *Connection, id CommandID, _ api.Params) error {
	c.sendResponse(string(c.session.Context), id)
	return nil
}

func setScriptTimeout(c *Connection, id CommandID, p api.Params) error {
	ms, err := p.Int("ms")
	if err != nil {
		return err
	}
	c.session.ScriptTimeout = ms
	c.sendOK(id)
	return nil
}

func setSearchTimeout(c *Connection, id CommandID, p api.Params) error {
	ms, err := p.Int("ms")
	if err != nil {
		return err
	}
	c.session.SearchTimeout = null.IntFrom(ms)
	c.sendOK(id)
	return nil
}

func timeouts(c *Connection, id CommandID, p api.Params) error {
	ms, err := p.Int("ms")
	if err != nil {
		return err
	}
	switch p.StringOr("type", "") {
	case "implicit":
		c.session.SearchTimeout = null.IntFrom(ms)
	case "script":
		c.session.ScriptTimeout = ms
	default:
		c.session.PageTimeout = null.IntFrom(ms)
	}
	c.sendOK(id)
	return nil
}

func importScript(c *Connection, id CommandID, p api.Params) error {
	store := c.contentScripts
	if c.session.Chrome() {
		store = c.chromeScripts
	}
	if _, err := store.Import(p.StringOr("script", "")); err != nil {
		return api.NewError(api.Generic, "Could not import script: %v", err)
	}
	c.sendOK(id)
	return nil
}

func clearImportedScripts(c *Connection, id CommandID, _ api.Params) error {
	store := c.contentScripts
	if c.session.Chrome() {
		store = c.chromeScripts
	}
	if err := store.Clear(); err != nil {
		return api.NewError(api.Generic, "Could not clear imported scripts: %v", err)
	}
	c.sendOK(id)
	return nil
}
