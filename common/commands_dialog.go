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

// activeDialog returns the open window-modal dialog, or the tab-modal
// prompt of the selected tab.
func (c *Connection) activeDialog(action string) (api.Dialog, error) {
	var fallback func() (api.Dialog, bool)
	if c.curBrowser != nil {
		fallback = c.curBrowser.TabModal
	}
	d, ok := c.dialogs.Active(fallback)
	if !ok {
		return nil, api.NewError(api.NoSuchAlert, "No tab modal was open when attempting to %s", action)
	}
	return d, nil
}

func dismissDialog(c *Connection, id CommandID, _ api.Params) error {
	d, err := c.activeDialog("dismiss the dialog")
	if err != nil {
		return err
	}
	if err := d.Dismiss(); err != nil {
		return err
	}
	c.sendOK(id)
	return nil
}

func acceptDialog(c *Connection, id CommandID, _ api.Params) error {
	d, err := c.activeDialog("accept the dialog")
	if err != nil {
		return err
	}
	if err := d.Accept(); err != nil {
		return err
	}
	c.sendOK(id)
	return nil
}

func getTextFromDialog(c *Connection, id CommandID, _ api.Params) error {
	d, err := c.activeDialog("get the dialog text")
	if err != nil {
		return err
	}
	c.sendResponse(d.Text(), id)
	return nil
}

func sendKeysToDialog(c *Connection, id CommandID, p api.Params) error {
	d, err := c.activeDialog("send keys to a dialog")
	if err != nil {
		return err
	}
	if !d.HasInput() {
		return api.NewError(api.ElementNotInteractable, "This prompt does not accept text input")
	}
	if err := d.SendKeys(keys(p)); err != nil {
		return err
	}
	c.sendOK(id)
	return nil
}
