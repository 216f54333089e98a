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
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// CommandID correlates a client command with the reply that answers it.
type CommandID string

// OutOfBand is the id of packets that are not answers to the command in
// flight, such as emulator callbacks and notices sent to agents.
const OutOfBand CommandID = "-1"

var (
	// ErrNoCommandInFlight is returned when a reply arrives while no
	// command awaits one, e.g. a duplicate reply.
	ErrNoCommandInFlight = errors.New("no command in flight")
	// ErrOutOfSyncResponse is returned when a reply carries the id of a
	// command that was superseded or already timed out.
	ErrOutOfSyncResponse = errors.New("response does not match the command in flight")
)

// InFlightCommand is the command currently awaiting its reply.
type InFlightCommand struct {
	ID       CommandID
	Name     string
	IssuedAt time.Time
}

// CorrelationTracker holds the single correlation slot of a connection.
type CorrelationTracker struct {
	clock   clock.Clock
	current *InFlightCommand
}

// NewCorrelationTracker returns an empty tracker.
func NewCorrelationTracker(c clock.Clock) *CorrelationTracker {
	return &CorrelationTracker{clock: c}
}

// Next issues a fresh id for the named command and makes it current,
// superseding any command still in flight.
func (t *CorrelationTracker) Next(name string) CommandID {
	t.current = &InFlightCommand{
		ID:       CommandID(uuid.NewString()),
		Name:     name,
		IssuedAt: t.clock.Now(),
	}
	return t.current.ID
}

// Current returns the id of the command in flight, or an empty id.
func (t *CorrelationTracker) Current() CommandID {
	if t.current == nil {
		return ""
	}
	return t.current.ID
}

// InFlight returns the command in flight.
func (t *CorrelationTracker) InFlight() (InFlightCommand, bool) {
	if t.current == nil {
		return InFlightCommand{}, false
	}
	return *t.current, true
}

// Accept claims the slot for a reply carrying id. The OutOfBand id is
// always accepted and leaves the slot untouched.
func (t *CorrelationTracker) Accept(id CommandID) (InFlightCommand, error) {
	if id == OutOfBand {
		return InFlightCommand{ID: OutOfBand}, nil
	}
	if t.current == nil {
		return InFlightCommand{}, ErrNoCommandInFlight
	}
	if t.current.ID != id {
		return InFlightCommand{}, ErrOutOfSyncResponse
	}
	cmd := *t.current
	t.current = nil
	return cmd, nil
}

// Reset empties the slot without answering.
func (t *CorrelationTracker) Reset() {
	t.current = nil
}
