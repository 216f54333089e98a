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
	"regexp"
	"time"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/dom"
)

const framePollInterval = 100 * time.Millisecond

var errorPageURL = regexp.MustCompile(`about:.+(error)|(blocked)\?`) //nolint:gochecknoglobals

// switchToFrameChrome switches between the frames of the chrome document
// and answers once the frame switched to is loaded.
func switchToFrameChrome(c *Connection, id CommandID, p api.Params) error {
	idParam, hasHandle := p["id"], p["element"] != nil
	if idParam == nil && !hasHandle {
		c.chrome.curFrame = nil
		if p.Bool("focus") && c.chrome.mainFrame != nil {
			c.chrome.mainFrame.Focus()
		}
		c.waitForChromeFrame(id)
		return nil
	}

	doc, err := c.chromeDocument()
	if err != nil {
		return err
	}
	var el api.Element
	if hasHandle {
		handle, ok := dom.HandleFrom(p["element"])
		if !ok {
			return api.NewError(api.InvalidArgument, "Invalid element reference: %v", p["element"])
		}
		if el, err = c.chrome.elements.Get(handle); err != nil {
			return err
		}
	}

	frame, ok := api.ResolveFrame(doc.Frames(), idParam, el)
	if !ok || frame == nil {
		return api.NewError(api.NoSuchFrame, "Unable to locate frame: %v", idParam)
	}
	c.chrome.curFrame = frame
	c.waitForChromeFrame(id)
	return nil
}

func (c *Connection) waitForChromeFrame(id CommandID) {
	if c.tracker.Current() != id {
		return
	}
	doc, err := c.chromeDocument()
	if err != nil {
		c.sendError(api.AsError(err), id)
		return
	}
	switch state := doc.ReadyState(); {
	case state == "complete":
		c.sendOK(id)
	case state == "interactive" && errorPageURL.MatchString(doc.URL()):
		c.sendError(api.NewError(api.UnknownError, "Error loading page"), id)
	default:
		c.schedule(framePollInterval, func() { c.waitForChromeFrame(id) })
	}
}

// switchToFrameContent forwards the switch to the agent. Switching to
// top while an out-of-process frame is selected first returns to the
// agent of the tab.
func switchToFrameContent(c *Connection, id CommandID, p api.Params) error {
	if b := c.curBrowser; b != nil && p["id"] == nil && p["element"] == nil && b.InRemoteFrame() {
		b.SwitchToGlobal()
	}
	c.sendAsync("switchToFrame", p, id, false)
	return nil
}

func getActiveFrameChrome(c *Connection, id CommandID, _ api.Params) error {
	if c.chrome.curFrame == nil || c.chrome.curFrame.Element() == nil {
		c.sendResponse(nil, id)
		return nil
	}
	c.sendResponse(c.chrome.elements.Reference(c.chrome.curFrame.Element()), id)
	return nil
}

func getActiveFrameContent(c *Connection, id CommandID, _ api.Params) error {
	c.sendResponse(c.currentFrameElement, id)
	return nil
}
