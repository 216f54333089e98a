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

	"github.com/liuxd6825/marionette/api"
)

// currentWindow returns the chrome window chrome commands operate on.
func (c *Connection) currentWindow() (api.Window, error) {
	if c.curBrowser != nil {
		return c.curBrowser.Window(), nil
	}
	if wins := c.host.Windows(); len(wins) > 0 {
		return wins[0], nil
	}
	return nil, api.NewError(api.NoSuchWindow, "No window is available")
}

// chromeDocument returns the document of the chrome frame switched to.
func (c *Connection) chromeDocument() (api.Document, error) {
	if c.chrome.curFrame != nil {
		return c.chrome.curFrame.Document(), nil
	}
	win, err := c.currentWindow()
	if err != nil {
		return nil, err
	}
	return win.Document(), nil
}

func getChrome(_ *Connection, _ CommandID, _ api.Params) error {
	return api.NewError(api.UnknownError, "Cannot navigate in chrome context")
}

// getContent navigates the selected tab. A recovery action is queued in
// case the load swaps the tab's process, in which case the replacement
// agent polls for the document to be loaded and answers.
func getContent(c *Connection, id CommandID, p api.Params) error {
	b := c.curBrowser
	if b == nil {
		return api.NewError(api.NoSuchWindow, "No window is being driven")
	}

	params := p.Clone()
	if c.session.PageTimeout.Valid {
		params["pageTimeout"] = c.session.PageTimeout.Int64
		c.timers.start(pageTimer, id, time.Duration(c.session.PageTimeout.Int64)*time.Millisecond)
	} else {
		params["pageTimeout"] = nil
	}

	b.QueueCommand(func() {
		frameID := b.CurFrameID()
		err := sendToAgent(b, frameID, &api.Message{
			Name:      api.MsgPollForReadyState,
			CommandID: string(id),
			FrameID:   frameID,
			Params:    params,
		})
		if err != nil {
			c.sendError(frameSendError(err, frameID), id)
		}
	})
	c.sendAsync("get", params, id, false)
	return nil
}

func getCurrentURLChrome(c *Connection, id CommandID, _ api.Params) error {
	doc, err := c.chromeDocument()
	if err != nil {
		return err
	}
	c.sendResponse(doc.URL(), id)
	return nil
}

func getTitleChrome(c *Connection, id CommandID, _ api.Params) error {
	doc, err := c.chromeDocument()
	if err != nil {
		return err
	}
	c.sendResponse(doc.Title(), id)
	return nil
}

func getPageSourceChrome(c *Connection, id CommandID, _ api.Params) error {
	doc, err := c.chromeDocument()
	if err != nil {
		return err
	}
	c.sendResponse(doc.Source(), id)
	return nil
}

// getWindowType answers with the type of the chrome window in either
// context.
func getWindowType(c *Connection, id CommandID, _ api.Params) error {
	win, err := c.currentWindow()
	if err != nil {
		return err
	}
	c.sendResponse(win.Type(), id)
	return nil
}
