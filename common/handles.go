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

import "github.com/liuxd6825/marionette/api"

// TabHandles maps the permanent key of a tab to the window handle issued
// for it. The handle is the id of the frame that registered as the tab's
// main content, so it follows the tab across remoteness changes.
type TabHandles struct {
	ids map[string]string
}

// NewTabHandles returns an empty arena.
func NewTabHandles() *TabHandles {
	return &TabHandles{ids: make(map[string]string)}
}

// Get returns the handle of tab, recording its current content window
// when none was issued yet. A nil tab has no handle.
func (h *TabHandles) Get(tab api.Tab) string {
	if tab == nil {
		return ""
	}
	if id, ok := h.ids[tab.ID()]; ok {
		return id
	}
	id := tab.OuterWindowID()
	if id != "" {
		h.ids[tab.ID()] = id
	}
	return id
}

// Update binds tab to the handle id.
func (h *TabHandles) Update(tab api.Tab, id string) {
	h.ids[tab.ID()] = id
}

// Remove forgets the handle of the tab with the given key.
func (h *TabHandles) Remove(tabID string) {
	delete(h.ids, tabID)
}
