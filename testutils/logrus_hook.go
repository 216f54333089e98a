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

package testutils

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// SimpleLogrusHook records the entries logged at HookedLevels so tests
// can look at what a command or a server logged.
type SimpleLogrusHook struct {
	HookedLevels []logrus.Level

	mu      sync.Mutex
	entries []logrus.Entry
}

var _ logrus.Hook = &SimpleLogrusHook{}

// Levels implements logrus.Hook.
func (h *SimpleLogrusHook) Levels() []logrus.Level {
	return h.HookedLevels
}

// Fire implements logrus.Hook.
func (h *SimpleLogrusHook) Fire(e *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, *e)
	return nil
}

// Drain returns the recorded entries and forgets them.
func (h *SimpleLogrusHook) Drain() []logrus.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := h.entries
	h.entries = []logrus.Entry{}
	return entries
}

// Entries returns a copy of the recorded entries.
func (h *SimpleLogrusHook) Entries() []logrus.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]logrus.Entry{}, h.entries...)
}

// LogContains reports whether one of the entries has the given level and
// a message containing msg.
func LogContains(entries []logrus.Entry, level logrus.Level, msg string) bool {
	for _, e := range entries {
		if e.Level == level && strings.Contains(e.Message, msg) {
			return true
		}
	}
	return false
}
