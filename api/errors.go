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

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures reported to the client.
type ErrorKind int

// Error kinds. The wire status of each kind is returned by Status.
const (
	UnknownError ErrorKind = iota
	NoSuchElement
	NoSuchFrame
	UnknownCommand
	StaleElementReference
	ElementNotInteractable
	InvalidElementState
	JavaScriptError
	Timeout
	NoSuchWindow
	UnexpectedAlertOpen
	NoSuchAlert
	ScriptTimeout
	InvalidSelector
	FrameSendNotInitialized
	FrameSendFailure
	InvalidArgument
	SessionNotCreated
	UnsupportedOperation
	Generic
)

var statusCodes = map[ErrorKind]int{ //nolint:gochecknoglobals
	NoSuchElement:           7,
	NoSuchFrame:             8,
	UnknownCommand:          9,
	StaleElementReference:   10,
	ElementNotInteractable:  11,
	InvalidElementState:     12,
	UnknownError:            13,
	JavaScriptError:         17,
	Timeout:                 21,
	NoSuchWindow:            23,
	UnexpectedAlertOpen:     26,
	NoSuchAlert:             27,
	ScriptTimeout:           28,
	InvalidSelector:         32,
	FrameSendNotInitialized: 54,
	FrameSendFailure:        55,
	InvalidArgument:         61,
	SessionNotCreated:       71,
	UnsupportedOperation:    405,
	Generic:                 500,
}

var kindNames = map[ErrorKind]string{ //nolint:gochecknoglobals
	UnknownError:            "unknown error",
	NoSuchElement:           "no such element",
	NoSuchFrame:             "no such frame",
	UnknownCommand:          "unknown command",
	StaleElementReference:   "stale element reference",
	ElementNotInteractable:  "element not interactable",
	InvalidElementState:     "invalid element state",
	JavaScriptError:         "javascript error",
	Timeout:                 "timeout",
	NoSuchWindow:            "no such window",
	UnexpectedAlertOpen:     "unexpected alert open",
	NoSuchAlert:             "no such alert",
	ScriptTimeout:           "script timeout",
	InvalidSelector:         "invalid selector",
	FrameSendNotInitialized: "frame send not initialized",
	FrameSendFailure:        "frame send failure",
	InvalidArgument:         "invalid argument",
	SessionNotCreated:       "session not created",
	UnsupportedOperation:    "unsupported operation",
	Generic:                 "error",
}

// Status returns the numeric wire status of k.
func (k ErrorKind) Status() int {
	if s, ok := statusCodes[k]; ok {
		return s
	}
	return statusCodes[UnknownError]
}

func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return kindNames[UnknownError]
}

// KindFromStatus maps a wire status back to its kind.
// Unknown statuses map to UnknownError.
func KindFromStatus(status int) ErrorKind {
	for k, s := range statusCodes {
		if s == status {
			return k
		}
	}
	return UnknownError
}

// Error is a failure that is reported to the client as
// {message, status, stacktrace}.
type Error struct {
	Kind       ErrorKind
	Message    string
	Stacktrace string
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Message
}

// Status returns the wire status of the error.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// AsError converts any error to an *Error. Errors that are not already
// classified become UnknownError carrying err's message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: UnknownError, Message: err.Error()}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Agent send failures.
var (
	// ErrAgentClosed is returned by Agent.Send when the agent's frame has
	// been torn down.
	ErrAgentClosed = errors.New("agent closed")
	// ErrAgentUnresponsive is returned by Agent.Send when the agent exists
	// but cannot accept messages.
	ErrAgentUnresponsive = errors.New("agent not responding")
)
