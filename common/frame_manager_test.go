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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/marionette/api"
)

func TestFrameManagerSwitching(t *testing.T) {
	t.Parallel()

	m := NewFrameManager(testLogger())
	top, sub := newFakeAgent("10"), newFakeAgent("12")
	m.Register("10", top)
	m.Register("12", sub)
	m.Register("12", sub)
	assert.Equal(t, []string{"10", "12"}, m.KnownFrames())
	assert.False(t, m.InRemoteFrame())

	err := m.SwitchToFrame("13")
	require.Error(t, err)
	assert.True(t, api.IsKind(err, api.NoSuchFrame))

	require.NoError(t, m.SwitchToFrame("12"))
	assert.True(t, m.InRemoteFrame())
	assert.Equal(t, "12", m.Current())

	m.SwitchToGlobal()
	assert.False(t, m.InRemoteFrame())
	sleep := sub.next(t)
	assert.Equal(t, api.MsgSleepSession, sleep.Name)
	assert.Equal(t, string(OutOfBand), sleep.CommandID)

	m.SwitchToGlobal()
	sub.idle(t)
	top.idle(t)
}

func TestFrameManagerForget(t *testing.T) {
	t.Parallel()

	m := NewFrameManager(testLogger())
	m.Register("10", newFakeAgent("10"))
	m.Register("12", newFakeAgent("12"))
	require.NoError(t, m.SwitchToFrame("12"))

	assert.False(t, m.Forget("10"))
	assert.Equal(t, "12", m.Current())
	assert.True(t, m.Forget("12"))
	assert.False(t, m.InRemoteFrame())

	_, ok := m.Agent("12")
	assert.False(t, ok)
	assert.Equal(t, []string{"10", "12"}, m.KnownFrames(), "known frames outlive their agents")

	m.Reset()
	assert.Empty(t, m.KnownFrames())
}

func TestFrameManagerModalOrigin(t *testing.T) {
	t.Parallel()

	m := NewFrameManager(testLogger())
	m.Register("12", newFakeAgent("12"))
	m.Register("14", newFakeAgent("14"))
	assert.False(t, m.RestorePrevious())

	require.NoError(t, m.SwitchToFrame("12"))
	require.NoError(t, m.SwitchToModalOrigin("14"))
	assert.Equal(t, "14", m.Current())
	assert.True(t, m.RestorePrevious())
	assert.Equal(t, "12", m.Current())
	assert.False(t, m.RestorePrevious(), "the stash is used once")

	require.Error(t, m.SwitchToModalOrigin("16"))
	assert.Equal(t, "12", m.Current())
}
