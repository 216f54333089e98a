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

	"github.com/benbjohnson/clock"

	"github.com/liuxd6825/marionette/api"
)

type timerKind int

const (
	scriptTimer timerKind = iota
	pageTimer
	inactivityTimer
)

func (k timerKind) String() string {
	switch k {
	case scriptTimer:
		return "script"
	case pageTimer:
		return "page"
	case inactivityTimer:
		return "inactivity"
	}
	return "unknown"
}

// timeoutError is the answer to a command whose timer fired.
func (k timerKind) timeoutError() *api.Error {
	switch k {
	case pageTimer:
		return api.NewError(api.Timeout, "Error loading page, timed out")
	case inactivityTimer:
		return api.NewError(api.Timeout, "timed out due to inactivity")
	default:
		return api.NewError(api.ScriptTimeout, "timed out")
	}
}

type armedTimer struct {
	timer    *clock.Timer
	id       CommandID
	duration time.Duration
}

// commandTimers arms the timers of the command in flight. Fired timers
// are posted to the event loop, which checks that the command is still
// current.
type commandTimers struct {
	clock clock.Clock
	fire  func(kind timerKind, id CommandID)
	armed map[timerKind]*armedTimer
}

func newCommandTimers(c clock.Clock, fire func(timerKind, CommandID)) *commandTimers {
	return &commandTimers{
		clock: c,
		fire:  fire,
		armed: make(map[timerKind]*armedTimer),
	}
}

func (ct *commandTimers) start(kind timerKind, id CommandID, d time.Duration) {
	ct.stop(kind)
	ct.armed[kind] = &armedTimer{
		timer:    ct.clock.AfterFunc(d, func() { ct.fire(kind, id) }),
		id:       id,
		duration: d,
	}
}

// reset restarts the timer of kind with its original duration.
func (ct *commandTimers) reset(kind timerKind) bool {
	at, ok := ct.armed[kind]
	if !ok {
		return false
	}
	ct.start(kind, at.id, at.duration)
	return true
}

func (ct *commandTimers) stop(kind timerKind) {
	if at, ok := ct.armed[kind]; ok {
		at.timer.Stop()
		delete(ct.armed, kind)
	}
}

func (ct *commandTimers) stopAll() {
	for kind := range ct.armed {
		ct.stop(kind)
	}
}

func (ct *commandTimers) active(kind timerKind) bool {
	_, ok := ct.armed[kind]
	return ok
}
