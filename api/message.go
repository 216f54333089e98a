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

package api

// Messages sent by content agents.
const (
	MsgDone                = "done"
	MsgOK                  = "ok"
	MsgError               = "error"
	MsgLog                 = "log"
	MsgHeartbeat           = "heartbeat"
	MsgListenersAttached   = "listenersAttached"
	MsgSwitchToFrame       = "switchToFrame"
	MsgSwitchedToFrame     = "switchedToFrame"
	MsgSwitchToModalOrigin = "switchToModalOrigin"
	MsgRunEmulatorCmd      = "runEmulatorCmd"
	MsgRunEmulatorShell    = "runEmulatorShell"
)

// Messages sent to content agents, besides forwarded command names.
const (
	MsgRegistered        = "registered"
	MsgNewSession        = "newSession"
	MsgDeleteSession     = "deleteSession"
	MsgSleepSession      = "sleepSession"
	MsgCancelRequest     = "cancelRequest"
	MsgPollForReadyState = "pollForReadyState"
	MsgEmulatorCmdResult = "emulatorCmdResult"
)

// Message travels between the control process and a content agent.
type Message struct {
	Name      string
	CommandID string
	// FrameID is the sending agent's frame, or the frame addressed by a
	// frame switch notification.
	FrameID string
	Params  Params
	Value   interface{}
	Error   *Error
}
