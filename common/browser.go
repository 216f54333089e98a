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
	"fmt"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/log"
)

// BrowserState is the state kept for a chrome window the session drives.
type BrowserState struct {
	*FrameManager

	logger  *log.Logger
	window  api.Window
	handles *TabHandles

	// tab is the selected content browser, nil for windows without tabs
	// or until the first registration selects one.
	tab api.Tab
	// frameID is the main content frame of windows without tabs.
	frameID string

	wasRemote           bool
	lastProcess         string
	hasRemotenessChange bool
	pendingCommands     []func()
	mainContentID       string
	newSession          bool
	frameRegsPending    int
}

// NewBrowserState returns the state of win.
func NewBrowserState(win api.Window, handles *TabHandles, logger *log.Logger) *BrowserState {
	return &BrowserState{
		FrameManager: NewFrameManager(logger.With("window", win.ID())),
		logger:       logger,
		window:       win,
		handles:      handles,
	}
}

// Window returns the chrome window.
func (b *BrowserState) Window() api.Window {
	return b.window
}

// Tab returns the selected tab.
func (b *BrowserState) Tab() api.Tab {
	return b.tab
}

// MainContentID returns the frame that registered as main content.
func (b *BrowserState) MainContentID() string {
	return b.mainContentID
}

// CurFrameID returns the window handle content commands go to when no
// out-of-process frame is selected.
func (b *BrowserState) CurFrameID() string {
	if b.tab != nil {
		return b.handles.Get(b.tab)
	}
	if b.window.Tabs() == nil {
		return b.frameID
	}
	return ""
}

// observeRemoteness compares the selected tab with the last observation
// and latches a detected change until the pending commands are flushed.
func (b *BrowserState) observeRemoteness() bool {
	if b.tab == nil {
		return false
	}
	if b.hasRemotenessChange {
		return true
	}
	remote, process := b.tab.IsRemote(), b.tab.Process()
	b.hasRemotenessChange = remote != b.wasRemote || process != b.lastProcess
	b.wasRemote, b.lastProcess = remote, process
	if b.hasRemotenessChange {
		b.logger.Debugf("BrowserState:observeRemoteness", "tab:%s remote:%t process:%s", b.tab.ID(), remote, process)
	}
	return b.hasRemotenessChange
}

// HasRemotenessChange reports whether content commands must be deferred.
func (b *BrowserState) HasRemotenessChange() bool {
	return b.observeRemoteness()
}

// MarkRemotenessChange defers content commands until the replacement
// agent of the selected tab registers.
func (b *BrowserState) MarkRemotenessChange() {
	b.hasRemotenessChange = true
	if b.tab != nil {
		b.wasRemote, b.lastProcess = b.tab.IsRemote(), b.tab.Process()
	}
}

// ExecuteWhenReady runs action now, or queues it while a remoteness
// change is pending.
func (b *BrowserState) ExecuteWhenReady(action func()) {
	if b.observeRemoteness() {
		b.logger.Debugf("BrowserState:ExecuteWhenReady", "deferring, queued:%d", len(b.pendingCommands)+1)
		b.pendingCommands = append(b.pendingCommands, action)
		return
	}
	action()
}

// FlushPendingCommands runs the queued actions in order once. It does
// nothing unless a remoteness change is pending.
func (b *BrowserState) FlushPendingCommands() {
	if !b.hasRemotenessChange {
		return
	}
	b.hasRemotenessChange = false

	pending := b.pendingCommands
	b.pendingCommands = nil
	b.logger.Debugf("BrowserState:FlushPendingCommands", "running:%d", len(pending))
	for _, action := range pending {
		action()
	}
}

// QueueCommand adds action to the actions run by the next flush, whether
// or not a remoteness change is pending yet.
func (b *BrowserState) QueueCommand(action func()) {
	b.pendingCommands = append(b.pendingCommands, action)
}

// ClearPendingCommands drops queued actions. The remoteness flag is left
// as is.
func (b *BrowserState) ClearPendingCommands() {
	b.pendingCommands = nil
}

// PendingCommands returns the number of queued actions.
func (b *BrowserState) PendingCommands() int {
	return len(b.pendingCommands)
}

// Register records a content agent of the window and reports whether
// it replaces an agent lost to a remoteness change. The agent of the
// selected tab claims the main content slot when there is none yet or
// when a change is pending.
func (b *BrowserState) Register(frameID string, agent api.Agent, tab api.Tab) bool {
	remotenessChange := b.observeRemoteness()
	if b.CurFrameID() == "" || remotenessChange {
		if b.window.Tabs() != nil {
			if b.tab == nil {
				if err := b.SwitchToTab(b.window.SelectedTab()); err != nil {
					b.logger.Warnf("BrowserState:Register", "selecting tab: %v", err)
				}
			}
			if tab != nil && b.tab != nil && tab.ID() == b.tab.ID() {
				b.handles.Update(tab, frameID)
				b.mainContentID = frameID
			}
		} else {
			b.frameID = frameID
			b.mainContentID = frameID
		}
	}
	b.FrameManager.Register(frameID, agent)
	return remotenessChange
}

// SwitchToTab selects the tab at index and takes the remoteness baseline
// from it.
func (b *BrowserState) SwitchToTab(index int) error {
	tabs := b.window.Tabs()
	if tabs == nil {
		b.hasRemotenessChange = false
		return nil
	}
	if index < 0 || index >= len(tabs) {
		return fmt.Errorf("tab index %d out of range [0,%d)", index, len(tabs))
	}
	if err := b.window.SelectTab(index); err != nil {
		return err
	}
	b.tab = tabs[index]
	b.wasRemote, b.lastProcess = b.tab.IsRemote(), b.tab.Process()
	b.hasRemotenessChange = false
	return nil
}

// CloseTab closes the selected tab.
func (b *BrowserState) CloseTab() error {
	if b.tab == nil {
		return nil
	}
	tab := b.tab
	if err := tab.Close(); err != nil {
		return err
	}
	b.handles.Remove(tab.ID())
	b.tab = nil
	return nil
}

// TabModal returns the tab-modal prompt of the selected tab.
func (b *BrowserState) TabModal() (api.Dialog, bool) {
	if b.tab == nil {
		return nil, false
	}
	return b.tab.Modal()
}
