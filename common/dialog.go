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

// DialogCoordinator holds the modal dialog the session was notified of.
type DialogCoordinator struct {
	current api.Dialog
}

// Opened records d as the active dialog.
func (dc *DialogCoordinator) Opened(d api.Dialog) {
	dc.current = d
}

// ClosedDialog clears the active dialog if it is d.
func (dc *DialogCoordinator) ClosedDialog(d api.Dialog) {
	if dc.current == d {
		dc.current = nil
	}
}

// Active returns the open dialog. A dialog that went away without a
// notification is dropped. When no window-modal dialog is open the
// tab-modal prompt given by fallback is used.
func (dc *DialogCoordinator) Active(fallback func() (api.Dialog, bool)) (api.Dialog, bool) {
	if dc.current != nil {
		if !dc.current.Closed() {
			return dc.current, true
		}
		dc.current = nil
	}
	if fallback == nil {
		return nil, false
	}
	d, ok := fallback()
	if !ok || d == nil || d.Closed() {
		return nil, false
	}
	return d, true
}

// Clear forgets the active dialog.
func (dc *DialogCoordinator) Clear() {
	dc.current = nil
}
