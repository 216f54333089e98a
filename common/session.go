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
	"fmt"

	"gopkg.in/guregu/null.v3"
)

// SessionState is the lifecycle stage of a session.
type SessionState int

// Session states.
const (
	SessionUninitialized SessionState = iota
	SessionStarting
	SessionReady
	SessionTornDown
)

func (s SessionState) String() string {
	switch s {
	case SessionUninitialized:
		return "uninitialized"
	case SessionStarting:
		return "starting"
	case SessionReady:
		return "ready"
	case SessionTornDown:
		return "torn down"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// Context is where commands of kind KindBoth execute.
type Context string

// Command contexts.
const (
	ContextContent Context = "content"
	ContextChrome  Context = "chrome"
)

const defaultScriptTimeout = 10000

// LogEntry is a message recorded with the log command or by a script.
type LogEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// Session is the per connection automation session.
type Session struct {
	ID           string
	State        SessionState
	Capabilities Capabilities
	Context      Context
	TestName     string

	// ScriptTimeout is in milliseconds.
	ScriptTimeout int64
	SearchTimeout null.Int
	PageTimeout   null.Int

	Logs []LogEntry
}

// NewSession returns an uninitialized session in content context.
func NewSession(caps Capabilities) *Session {
	return &Session{
		State:         SessionUninitialized,
		Capabilities:  caps,
		Context:       ContextContent,
		ScriptTimeout: defaultScriptTimeout,
	}
}

// Chrome reports whether commands run in chrome context.
func (s *Session) Chrome() bool {
	return s.Context == ContextChrome
}

// Running reports whether a newSession would conflict with this one.
func (s *Session) Running() bool {
	return s.State == SessionStarting || s.State == SessionReady
}
