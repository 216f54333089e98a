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

func TestSession(t *testing.T) {
	t.Parallel()

	s := NewSession(DefaultCapabilities(testAppInfo))
	assert.Equal(t, SessionUninitialized, s.State)
	assert.Equal(t, ContextContent, s.Context)
	assert.EqualValues(t, 10000, s.ScriptTimeout)
	assert.False(t, s.SearchTimeout.Valid)
	assert.False(t, s.PageTimeout.Valid)
	assert.False(t, s.Chrome())
	assert.False(t, s.Running())

	s.State = SessionStarting
	assert.True(t, s.Running())
	s.State = SessionTornDown
	assert.False(t, s.Running())
	assert.Equal(t, "torn down", s.State.String())

	s.Context = ContextChrome
	assert.True(t, s.Chrome())
}

func TestTabHandles(t *testing.T) {
	t.Parallel()

	h := NewTabHandles()
	assert.Empty(t, h.Get(nil))

	tab := &fakeTab{id: "tab-1", outer: "10"}
	assert.Equal(t, "10", h.Get(tab))

	tab.swap("11", "content-1", true)
	assert.Equal(t, "10", h.Get(tab), "the handle survives a remoteness change")

	h.Update(tab, "11")
	assert.Equal(t, "11", h.Get(tab))
	h.Remove(tab.ID())
	assert.Equal(t, "11", h.Get(tab), "a removed handle is issued again from the content window")
}

func TestDialogCoordinator(t *testing.T) {
	t.Parallel()

	var dc DialogCoordinator
	_, ok := dc.Active(nil)
	assert.False(t, ok)

	d := &fakeDialog{text: "hi"}
	dc.Opened(d)
	got, ok := dc.Active(nil)
	assert.True(t, ok)
	assert.Same(t, d, got)

	dc.ClosedDialog(&fakeDialog{})
	_, ok = dc.Active(nil)
	assert.True(t, ok, "closing another dialog keeps the active one")

	modal := &fakeDialog{text: "tab modal"}
	fallback := func() (api.Dialog, bool) { return modal, true }
	require.NoError(t, d.Dismiss())
	got, ok = dc.Active(fallback)
	assert.True(t, ok)
	assert.Same(t, modal, got, "a dialog gone without notification is dropped")

	require.NoError(t, modal.Accept())
	_, ok = dc.Active(fallback)
	assert.False(t, ok)

	dc.Opened(d)
	dc.Clear()
	_, ok = dc.Active(nil)
	assert.False(t, ok)
}
