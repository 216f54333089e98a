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
	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/wire"
)

func (c *Connection) newSessionParams() api.Params {
	return api.Params{
		"raisesAccessibilityExceptions": c.session.Capabilities["raisesAccessibilityExceptions"],
	}
}

// onRegistered accepts a content agent announcing itself.
func (c *Connection) onRegistered(r api.Registration) {
	b, ok := c.browsers[r.WindowID]
	if !ok {
		c.logger.Debugf("Connection:onRegistered", "fid:%s of undriven window %s", r.FrameID, r.WindowID)
		return
	}

	nullPrevious := b.CurFrameID() == ""
	hadMainContent := b.MainContentID() != ""
	remotenessChange := b.Register(r.FrameID, r.Agent, r.Tab)
	mainContent := !hadMainContent && b.MainContentID() != ""
	c.logger.Debugf("Connection:onRegistered", "fid:%s wid:%s remotenessChange:%t mainContent:%t",
		r.FrameID, r.WindowID, remotenessChange, mainContent)

	if err := r.Agent.Send(&api.Message{
		Name:      api.MsgRegistered,
		CommandID: string(OutOfBand),
		FrameID:   r.FrameID,
		Value: map[string]interface{}{
			"id":               r.FrameID,
			"remotenessChange": remotenessChange,
			"mainContent":      mainContent,
		},
	}); err != nil {
		c.logger.Warnf("Connection:onRegistered", "acknowledging fid:%s: %v", r.FrameID, err)
	}

	if b != c.curBrowser {
		return
	}

	if nullPrevious && b.CurFrameID() != "" {
		id := c.newSessionCommandID
		if id == "" {
			id = OutOfBand
		}
		if !c.sendAsync(api.MsgNewSession, c.newSessionParams(), id, false) {
			return
		}
		if b.newSession && id != OutOfBand {
			b.newSession = false
			c.answerCapabilities(id)
			c.newSessionCommandID = ""
		}
	}

	if r.Tab != nil && b.frameRegsPending > 0 {
		b.frameRegsPending--
		if b.frameRegsPending == 0 {
			c.sendOK(c.tracker.Current())
		}
	}

	if remotenessChange && r.FrameID == b.CurFrameID() {
		c.metrics.RemotenessChange()
		b.FlushPendingCommands()
	}
}

// onAgentMessage handles a message sent by a content agent.
func (c *Connection) onAgentMessage(m *api.Message) {
	c.frameWatch = ""
	id := CommandID(m.CommandID)

	switch m.Name {
	case api.MsgDone:
		c.sendResponse(m.Value, id)
	case api.MsgOK:
		c.sendOK(id)
	case api.MsgError:
		err := m.Error
		if err == nil {
			err = api.NewError(api.UnknownError, "content agent reported an unknown error")
		}
		c.sendError(err, id)
	case api.MsgLog:
		c.appendLog(m.Params.StringOr("level", "INFO"), m.Params.StringOr("message", ""))
	case api.MsgHeartbeat:
		if c.tracker.Current() == id && !c.timers.reset(inactivityTimer) {
			c.logger.Tracef("Connection:onAgentMessage", "heartbeat without inactivity timer")
		}
	case api.MsgListenersAttached:
		b := c.curBrowser
		if b == nil || m.FrameID != b.CurFrameID() {
			return
		}
		c.sendAsync(api.MsgNewSession, c.newSessionParams(), OutOfBand, true)
		b.FlushPendingCommands()
	case api.MsgRunEmulatorCmd:
		cid, _ := api.ToInt(m.Params["id"])
		c.send(wire.NewEmulatorCmd(m.Params.StringOr("emulator_cmd", ""), cid))
	case api.MsgRunEmulatorShell:
		cid, _ := api.ToInt(m.Params["id"])
		c.send(wire.NewEmulatorShell(m.Params.Slice("emulator_shell"), cid))
	case api.MsgSwitchToFrame:
		c.onContentSwitchToFrame(m, id)
	case api.MsgSwitchToModalOrigin:
		if c.curBrowser == nil {
			return
		}
		if err := c.curBrowser.SwitchToModalOrigin(m.FrameID); err != nil {
			c.logger.Warnf("Connection:onAgentMessage", "switching to modal origin %s: %v", m.FrameID, err)
		}
	case api.MsgSwitchedToFrame:
		switch {
		case m.Params.Bool("restorePrevious"):
			c.currentFrameElement = c.previousFrameElement
			if c.curBrowser != nil {
				c.curBrowser.RestorePrevious()
			}
		default:
			if m.Params.Bool("storePrevious") {
				c.previousFrameElement = c.currentFrameElement
			}
			c.currentFrameElement = m.Params["frameValue"]
		}
	default:
		c.logger.Warnf("Connection:onAgentMessage", "unknown message %q from fid:%s", m.Name, m.FrameID)
	}
}

// onContentSwitchToFrame moves the session into the out-of-process
// frame an agent switched to.
func (c *Connection) onContentSwitchToFrame(m *api.Message, id CommandID) {
	b := c.curBrowser
	if b == nil {
		return
	}
	frameID := m.Params.StringOr("frameId", m.FrameID)
	if err := b.SwitchToFrame(frameID); err != nil {
		c.sendError(api.AsError(err), id)
		return
	}
	c.oopFrameID = frameID
	c.sendOK(id)
}

// onDialogOpened releases the command in flight, which cannot complete
// while the dialog is shown.
func (c *Connection) onDialogOpened(d api.Dialog) {
	c.dialogs.Opened(d)

	id := c.tracker.Current()
	if id == "" {
		return
	}
	c.logger.Debugf("Connection:onDialogOpened", "releasing id:%s", id)
	c.metrics.DialogInterrupt()
	c.cancelContentRequest(id)
	c.sendToClient(wire.NewDialogOK(), id)
}

// cancelContentRequest tells the agent, or the chrome sandbox, to stop
// working on id.
func (c *Connection) cancelContentRequest(id CommandID) {
	if c.chrome.cancelScript != nil && c.chrome.scriptID == id {
		c.cancelChromeScript()
		return
	}
	if c.curBrowser != nil {
		c.sendAsync(api.MsgCancelRequest, nil, id, true)
	}
}

func (c *Connection) onTimerFired(kind timerKind, id CommandID) {
	if c.tracker.Current() != id || !c.timers.active(kind) {
		c.logger.Debugf("Connection:onTimerFired", "ignoring %s timer of id:%s", kind, id)
		return
	}
	c.logger.Debugf("Connection:onTimerFired", "%s timeout id:%s", kind, id)
	c.cancelContentRequest(id)
	c.sendError(kind.timeoutError(), id)
}

func (c *Connection) onRemotenessChanged(tabID string) {
	b := c.curBrowser
	if b == nil || b.Tab() == nil || b.Tab().ID() != tabID {
		return
	}
	c.logger.Debugf("Connection:onRemotenessChanged", "tab:%s", tabID)
	b.MarkRemotenessChange()
}

func (c *Connection) onFrameClosed(frameID string) {
	for _, b := range c.browsers {
		wasCurrent := b.Forget(frameID)
		if b != c.curBrowser || !wasCurrent {
			continue
		}
		if c.frameWatch != "" && c.oopFrameID == frameID {
			action := c.frameWatch
			c.frameWatch = ""
			c.sendError(api.NewError(api.FrameSendFailure,
				"The frame closed during the %s, recovering to allow further communications", action),
				c.tracker.Current())
		}
	}
}

func (c *Connection) onWindowClosed(windowID string) {
	b, ok := c.browsers[windowID]
	if !ok {
		return
	}
	delete(c.browsers, windowID)
	if b != c.curBrowser {
		return
	}
	c.curBrowser = nil
	c.chrome.curFrame = nil

	if id := c.tracker.Current(); id != "" {
		c.sendError(api.NewError(api.NoSuchWindow, "Window %s was closed", windowID), id)
	}
	if len(c.host.Windows()) == 0 {
		c.teardown(nil)
	}
}

func (c *Connection) onEmulatorRequest(e emulatorRequest) {
	if e.shell != nil {
		c.send(wire.NewEmulatorShell(e.shell, e.id))
		return
	}
	c.send(wire.NewEmulatorCmd(e.cmd, e.id))
}
