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
	"github.com/liuxd6825/marionette/log"
)

// FrameManager tracks the content agents of a browser and the frame
// content commands are addressed to. The zero target means the
// top-level content of the selected tab.
type FrameManager struct {
	logger *log.Logger

	agents map[string]api.Agent
	known  []string

	// current is the out-of-process frame commands are sent to.
	current string
	// previous is the target stashed by a modal origin switch.
	previous    string
	hasPrevious bool
}

// NewFrameManager returns a FrameManager at top.
func NewFrameManager(logger *log.Logger) *FrameManager {
	return &FrameManager{
		logger: logger,
		agents: make(map[string]api.Agent),
	}
}

// Register records the agent of frameID.
func (m *FrameManager) Register(frameID string, agent api.Agent) {
	m.logger.Debugf("FrameManager:Register", "fid:%s", frameID)

	m.agents[frameID] = agent
	for _, id := range m.known {
		if id == frameID {
			return
		}
	}
	m.known = append(m.known, frameID)
}

// Agent returns the registered agent of frameID.
func (m *FrameManager) Agent(frameID string) (api.Agent, bool) {
	a, ok := m.agents[frameID]
	return a, ok
}

// Forget drops the agent of a closed frame. Known ids are kept until
// Reset. It reports whether frameID was the current target, in which
// case the manager is back at top.
func (m *FrameManager) Forget(frameID string) bool {
	delete(m.agents, frameID)
	if m.current != frameID {
		return false
	}
	m.logger.Debugf("FrameManager:Forget", "fid:%s current frame closed", frameID)
	m.current = ""
	return true
}

// KnownFrames returns the ids of every frame registered since the last
// Reset, in registration order.
func (m *FrameManager) KnownFrames() []string {
	return append([]string(nil), m.known...)
}

// Current returns the out-of-process frame commands are addressed to.
func (m *FrameManager) Current() string {
	return m.current
}

// InRemoteFrame reports whether commands go to an out-of-process frame
// instead of the top-level content.
func (m *FrameManager) InRemoteFrame() bool {
	return m.current != ""
}

// SwitchToFrame addresses subsequent commands to frameID, which must be
// registered.
func (m *FrameManager) SwitchToFrame(frameID string) error {
	if _, ok := m.agents[frameID]; !ok {
		return api.NewError(api.NoSuchFrame, "Unable to locate frame: %s", frameID)
	}
	m.logger.Debugf("FrameManager:SwitchToFrame", "fid:%s prev:%q", frameID, m.current)
	m.current = frameID
	return nil
}

// SwitchToGlobal returns to the top-level content. The frame that was
// current is told to go dormant.
func (m *FrameManager) SwitchToGlobal() {
	prev := m.current
	m.current = ""
	if prev == "" {
		return
	}
	m.logger.Debugf("FrameManager:SwitchToGlobal", "sleeping fid:%s", prev)
	if a, ok := m.agents[prev]; ok {
		if err := a.Send(&api.Message{Name: api.MsgSleepSession, CommandID: string(OutOfBand)}); err != nil {
			m.logger.Debugf("FrameManager:SwitchToGlobal", "fid:%s err:%v", prev, err)
		}
	}
}

// SwitchToModalOrigin makes frameID, which opened a dialog, current and
// stashes the previous target for RestorePrevious.
func (m *FrameManager) SwitchToModalOrigin(frameID string) error {
	prev := m.current
	if err := m.SwitchToFrame(frameID); err != nil {
		return err
	}
	m.previous, m.hasPrevious = prev, true
	return nil
}

// RestorePrevious returns to the target stashed by SwitchToModalOrigin.
// It reports false when nothing was stashed.
func (m *FrameManager) RestorePrevious() bool {
	if !m.hasPrevious {
		return false
	}
	m.current = m.previous
	m.previous, m.hasPrevious = "", false
	return true
}

// Reset forgets every agent and returns to top.
func (m *FrameManager) Reset() {
	m.agents = make(map[string]api.Agent)
	m.known = nil
	m.current = ""
	m.previous, m.hasPrevious = "", false
}
