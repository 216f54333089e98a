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
	"strings"

	"github.com/liuxd6825/marionette/api"
)

const browserWindowType = "navigator:browser"

var screenOrientations = []string{ //nolint:gochecknoglobals
	"portrait", "landscape",
	"portrait-primary", "landscape-primary",
	"portrait-secondary", "landscape-secondary",
}

// windows returns the windows commands of the session context can see.
// Content context only sees browser windows.
func (c *Connection) windows() []api.Window {
	all := c.host.Windows()
	if c.session.Chrome() {
		return all
	}
	wins := make([]api.Window, 0, len(all))
	for _, w := range all {
		if w.Type() == browserWindowType {
			wins = append(wins, w)
		}
	}
	return wins
}

func (c *Connection) drivenBrowser() (*BrowserState, error) {
	if c.curBrowser == nil {
		return nil, api.NewError(api.NoSuchWindow, "No window is being driven")
	}
	return c.curBrowser, nil
}

func getWindowHandle(c *Connection, id CommandID, _ api.Params) error {
	b, err := c.drivenBrowser()
	if err != nil {
		return err
	}
	if h := b.CurFrameID(); h != "" {
		c.sendResponse(h, id)
		return nil
	}
	c.sendResponse(b.Window().ID(), id)
	return nil
}

func getWindowHandles(c *Connection, id CommandID, _ api.Params) error {
	handles := []string{}
	for _, w := range c.windows() {
		tabs := w.Tabs()
		if tabs == nil {
			handles = append(handles, w.ID())
			continue
		}
		for _, t := range tabs {
			if h := c.handles.Get(t); h != "" {
				handles = append(handles, h)
			}
		}
	}
	c.sendResponse(handles, id)
	return nil
}

func getChromeWindowHandle(c *Connection, id CommandID, _ api.Params) error {
	b, err := c.drivenBrowser()
	if err != nil {
		return err
	}
	c.sendResponse(b.Window().ID(), id)
	return nil
}

func getChromeWindowHandles(c *Connection, id CommandID, _ api.Params) error {
	handles := []string{}
	for _, w := range c.windows() {
		handles = append(handles, w.ID())
	}
	c.sendResponse(handles, id)
	return nil
}

func getWindowPosition(c *Connection, id CommandID, _ api.Params) error {
	win, err := c.currentWindow()
	if err != nil {
		return err
	}
	pos := win.Position()
	c.sendResponse(map[string]interface{}{"x": pos.X, "y": pos.Y}, id)
	return nil
}

func setWindowPosition(c *Connection, id CommandID, p api.Params) error {
	if c.host.Info().Mobile {
		return api.NewError(api.InvalidArgument, "Unable to set the window position on mobile")
	}
	x, errX := p.Int("x")
	y, errY := p.Int("y")
	if errX != nil || errY != nil {
		return api.NewError(api.UnknownError, "x and y arguments should be integers")
	}
	win, err := c.currentWindow()
	if err != nil {
		return err
	}
	if err := win.MoveTo(api.Point{X: int(x), Y: int(y)}); err != nil {
		return err
	}
	c.sendOK(id)
	return nil
}

func getWindowSize(c *Connection, id CommandID, _ api.Params) error {
	win, err := c.currentWindow()
	if err != nil {
		return err
	}
	size := win.Size()
	c.sendResponse(map[string]interface{}{"width": size.Width, "height": size.Height}, id)
	return nil
}

func setWindowSize(c *Connection, id CommandID, p api.Params) error {
	if c.host.Info().Mobile {
		return api.NewError(api.UnsupportedOperation, "Not supported on mobile")
	}
	width, err := p.Int("width")
	if err != nil {
		return err
	}
	height, err := p.Int("height")
	if err != nil {
		return err
	}
	win, err := c.currentWindow()
	if err != nil {
		return err
	}
	if err := win.ResizeTo(api.Size{Width: int(width), Height: int(height)}); err != nil {
		return err
	}
	c.sendOK(id)
	return nil
}

func maximizeWindow(c *Connection, id CommandID, _ api.Params) error {
	if c.host.Info().Mobile {
		return api.NewError(api.UnsupportedOperation, "Not supported for mobile")
	}
	win, err := c.currentWindow()
	if err != nil {
		return err
	}
	if err := win.Maximize(); err != nil {
		return err
	}
	c.sendOK(id)
	return nil
}

// switchToWindow selects a window by name, tab handle or chrome window
// id. Windows that are not driven yet get their agents loaded first.
func switchToWindow(c *Connection, id CommandID, p api.Params) error {
	name := p.StringOr("name", "")
	matches := func(w api.Window, handle string) bool {
		return name == w.Name() || name == w.ID() || (handle != "" && name == handle)
	}

	for _, w := range c.windows() {
		tabs := w.Tabs()
		if tabs == nil {
			if matches(w, "") {
				return c.activateWindow(w, -1, id)
			}
			continue
		}
		for i, t := range tabs {
			if matches(w, c.handles.Get(t)) {
				return c.activateWindow(w, i, id)
			}
		}
	}
	return api.NewError(api.NoSuchWindow, "Unable to locate window %s", name)
}

func (c *Connection) activateWindow(w api.Window, tabIndex int, id CommandID) error {
	c.chrome.sandbox = nil

	b, ok := c.browsers[w.ID()]
	if !ok {
		if tabIndex >= 0 {
			if err := w.SelectTab(tabIndex); err != nil {
				return err
			}
		}
		return c.startBrowser(w, false)
	}

	c.curBrowser = b
	if tabIndex >= 0 {
		if err := b.SwitchToTab(tabIndex); err != nil {
			return api.NewError(api.NoSuchWindow, "%v", err)
		}
	}
	w.Focus()
	c.sendOK(id)
	return nil
}

// openContentWindows counts tabs, and windows without tabs.
func (c *Connection) openContentWindows() int {
	n := 0
	for _, w := range c.windows() {
		if tabs := w.Tabs(); tabs != nil {
			n += len(tabs)
		} else {
			n++
		}
	}
	return n
}

// closeWindow closes the selected tab, or the window if it has no tabs.
// Closing the last one ends the session instead.
func closeWindow(c *Connection, id CommandID, _ api.Params) error {
	if c.openContentWindows() <= 1 {
		c.teardown(nil)
		c.sendOK(id)
		return nil
	}
	b, err := c.drivenBrowser()
	if err != nil {
		return err
	}
	if b.Tab() != nil {
		err = b.CloseTab()
	} else {
		err = b.Window().Close()
	}
	if err != nil {
		return api.NewError(api.UnknownError, "Could not close window: %v", err)
	}
	c.sendOK(id)
	return nil
}

func closeChromeWindow(c *Connection, id CommandID, _ api.Params) error {
	if len(c.windows()) <= 1 {
		c.teardown(nil)
		c.sendOK(id)
		return nil
	}
	win, err := c.currentWindow()
	if err != nil {
		return err
	}
	if err := win.Close(); err != nil {
		return api.NewError(api.UnknownError, "Could not close window: %v", err)
	}
	c.sendOK(id)
	return nil
}

func (c *Connection) screenOrienter() (api.ScreenOrienter, error) {
	win, err := c.currentWindow()
	if err != nil {
		return nil, err
	}
	o, ok := win.(api.ScreenOrienter)
	if !ok {
		return nil, api.NewError(api.UnsupportedOperation, "Screen orientation is not supported by window %s", win.ID())
	}
	return o, nil
}

func getScreenOrientation(c *Connection, id CommandID, _ api.Params) error {
	o, err := c.screenOrienter()
	if err != nil {
		return err
	}
	c.sendResponse(o.Orientation(), id)
	return nil
}

func setScreenOrientation(c *Connection, id CommandID, p api.Params) error {
	or := p.StringOr("orientation", "")
	want := strings.ToLower(or)
	known := false
	for _, v := range screenOrientations {
		if v == want {
			known = true
			break
		}
	}
	if !known {
		return api.NewError(api.Generic, "Unknown screen orientation: %s", or)
	}

	o, err := c.screenOrienter()
	if err != nil {
		return err
	}
	if !o.LockOrientation(want) {
		return api.NewError(api.Generic, "Unable to set screen orientation: %s", or)
	}
	c.sendOK(id)
	return nil
}
