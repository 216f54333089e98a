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
	"errors"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/wire"
)

// commandTrace follows the command in flight until it is answered.
type commandTrace struct {
	id      CommandID
	name    string
	span    trace.Span
	started time.Time
}

func (c *Connection) dispatch(data []byte) {
	req, err := wire.DecodeRequest(data)
	if err != nil {
		c.logger.Warnf("Connection:dispatch", "%v", err)
		c.send(wire.NewError(api.AsError(err)))
		return
	}

	cmd, ok := c.registry.Lookup(req.Name)
	if !ok {
		c.logger.Warnf("Connection:dispatch", "unknown command %q", req.Name)
		c.send(wire.NewError(api.NewError(api.UnknownCommand,
			"Marionette does not recognize the packet type %q", req.Name)))
		return
	}

	params := req.Parameters
	if params == nil {
		params = api.Params{}
	}
	chromeContext := c.session.Chrome()
	c.logger.Debugf("Connection:dispatch", "cmd:%s ctx:%s", req.Name, c.session.Context)
	c.metrics.CommandDispatched(req.Name)

	if cmd.OutOfBand {
		c.invoke(cmd.handler(chromeContext), OutOfBand, params)
		return
	}

	c.supersede()
	id := c.tracker.Next(req.Name)
	_, span := c.tracer.Start(c.ctx, req.Name, trace.WithAttributes(
		attribute.String("marionette.command_id", string(id)),
		attribute.String("marionette.context", string(c.session.Context)),
		attribute.String("marionette.connection", c.id),
	))
	c.inflight = &commandTrace{id: id, name: req.Name, span: span, started: c.clock.Now()}

	c.invoke(cmd.handler(chromeContext), id, params)
}

// invoke runs h, answering its error or panic with id.
func (c *Connection) invoke(h HandlerFunc, id CommandID, p api.Params) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("Connection:invoke", "panic: %v\n%s", r, debug.Stack())
			c.sendError(api.NewError(api.UnknownError, "%v", r), id)
		}
	}()
	if err := h(c, id, p); err != nil {
		c.sendError(api.AsError(err), id)
	}
}

// supersede closes the trace of a command that is replaced by a new one
// before it was answered.
func (c *Connection) supersede() {
	if c.inflight == nil {
		return
	}
	c.logger.Debugf("Connection:supersede", "cmd:%s id:%s", c.inflight.name, c.inflight.id)
	c.timers.stopAll()
	c.cancelChromeScript()
	c.inflight.span.SetStatus(codes.Error, "superseded")
	c.inflight.span.End()
	c.metrics.CommandAnswered(c.inflight.name, "superseded", c.clock.Since(c.inflight.started))
	c.inflight = nil
}

// sendToClient writes the answer to the command id. Answers for a
// command that is not in flight are dropped.
func (c *Connection) sendToClient(r *wire.Response, id CommandID) {
	if id == "" {
		c.logger.Warnf("Connection:sendToClient", "dropping response without command id")
		return
	}
	if id != OutOfBand {
		cmd, err := c.tracker.Accept(id)
		if err != nil {
			c.logger.Debugf("Connection:sendToClient", "dropping response id:%s: %v", id, err)
			c.metrics.StaleResponse(staleReason(err))
			return
		}
		c.timers.stopAll()
		c.frameWatch = ""
		c.finishTrace(cmd, r)
		if c.curBrowser != nil {
			c.curBrowser.ClearPendingCommands()
		}
	}
	c.send(r)
}

func staleReason(err error) string {
	if errors.Is(err, ErrNoCommandInFlight) {
		return "duplicate"
	}
	return "out_of_sync"
}

func (c *Connection) finishTrace(cmd InFlightCommand, r *wire.Response) {
	t := c.inflight
	if t == nil || t.id != cmd.ID {
		return
	}
	c.inflight = nil

	outcome := "ok"
	switch r.Kind {
	case wire.KindError:
		outcome = "error"
		t.span.SetStatus(codes.Error, r.Error.Message)
		t.span.SetAttributes(attribute.Int("marionette.status", r.Error.Status()))
	case wire.KindDialogOK:
		outcome = "dialog"
	}
	t.span.End()
	c.metrics.CommandAnswered(t.name, outcome, c.clock.Since(t.started))
}

func (c *Connection) sendOK(id CommandID) {
	c.sendToClient(wire.NewOK(), id)
}

func (c *Connection) sendResponse(v interface{}, id CommandID) {
	c.sendToClient(wire.NewValue(c.session.ID, v), id)
}

func (c *Connection) sendError(err *api.Error, id CommandID) {
	c.sendToClient(wire.NewError(err), id)
}

// frameSendError is the answer to a command that could not be delivered
// to the agent of frameID.
func frameSendError(err error, frameID string) *api.Error {
	if errors.Is(err, api.ErrAgentClosed) {
		return api.NewError(api.FrameSendNotInitialized,
			"Error sending message to frame (NS_ERROR_NOT_INITIALIZED) %s; frame has closed.", frameID)
	}
	return api.NewError(api.FrameSendFailure,
		"Error sending message to frame (NS_ERROR_FAILURE) %s; frame not responding.", frameID)
}

func sendToAgent(b *BrowserState, frameID string, m *api.Message) error {
	a, ok := b.Agent(frameID)
	if !ok {
		return api.ErrAgentClosed
	}
	return a.Send(m)
}

// sendAsync forwards a command to the agent content commands are
// addressed to. Unless ignoreFailure is set, a failed delivery answers
// id. It reports false when the message could not be sent right away.
func (c *Connection) sendAsync(name string, params api.Params, id CommandID, ignoreFailure bool) bool {
	b := c.curBrowser
	if b == nil {
		if !ignoreFailure {
			c.sendError(api.NewError(api.NoSuchWindow, "No window is being driven"), id)
		}
		return false
	}
	if params == nil {
		params = api.Params{}
	}
	msg := &api.Message{Name: name, CommandID: string(id), Params: params}

	if b.InRemoteFrame() {
		frameID := b.Current()
		msg.FrameID = frameID
		if err := sendToAgent(b, frameID, msg); err != nil {
			c.logger.Debugf("Connection:sendAsync", "cmd:%s fid:%s err:%v", name, frameID, err)
			if !ignoreFailure {
				c.sendError(frameSendError(err, frameID), id)
			}
			return false
		}
		return true
	}

	b.ExecuteWhenReady(func() {
		frameID := b.CurFrameID()
		msg.FrameID = frameID
		if err := sendToAgent(b, frameID, msg); err != nil {
			c.logger.Debugf("Connection:sendAsync", "cmd:%s fid:%s err:%v", name, frameID, err)
			if !ignoreFailure {
				c.sendError(frameSendError(err, frameID), id)
			}
		}
	})
	return true
}

// forward returns a content handler that sends the command parameters
// as they are.
func forward(name string) HandlerFunc {
	return func(c *Connection, id CommandID, p api.Params) error {
		c.sendAsync(name, p, id, false)
		return nil
	}
}
