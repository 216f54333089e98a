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

package api

// AppInfo describes the host application.
type AppInfo struct {
	Name            string
	Version         string
	BuildID         string
	AppID           string
	Platform        string
	PlatformName    string
	PlatformVersion string
	Device          string
	Mobile          bool
}

// Point is a position in screen coordinates.
type Point struct {
	X, Y int
}

// Size is a window size in screen pixels.
type Size struct {
	Width, Height int
}

// Rect is an element's bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Host is the browser application the server is embedded in.
type Host interface {
	Info() AppInfo
	// Windows returns the open chrome windows, most recently used first.
	Windows() []Window
	// Subscribe delivers host notifications to l until the returned function
	// is called.
	Subscribe(l Listener) (unsubscribe func())
	// Quit shuts the application down.
	Quit(flags []string) error
}

// Window is a top-level chrome window.
type Window interface {
	ID() string
	Name() string
	Type() string
	// Ready reports whether the chrome document finished loading.
	Ready() bool
	Document() Document
	// Tabs returns the content browsers of the window. Windows without a
	// tab strip return nil.
	Tabs() []Tab
	SelectedTab() int
	SelectTab(index int) error
	Focus()
	Close() error
	Position() Point
	MoveTo(p Point) error
	Size() Size
	ResizeTo(s Size) error
	Maximize() error
	// LoadAgents starts content agents in the window's tabs, and in any tab
	// opened afterwards. It returns the number of registrations the caller
	// should expect from tabs that already exist.
	LoadAgents() (int, error)
	// UnloadAgents stops agents from being started in new tabs.
	UnloadAgents()
}

// ScreenOrienter is implemented by windows of devices with a rotatable
// screen.
type ScreenOrienter interface {
	Orientation() string
	// LockOrientation reports false if the screen cannot be locked to o.
	LockOrientation(o string) bool
}

// Tab is a content browser inside a chrome window.
type Tab interface {
	// ID is a permanent key for the tab, stable across remoteness changes.
	ID() string
	// OuterWindowID is the id of the tab's current content window.
	OuterWindowID() string
	IsRemote() bool
	// Process identifies the worker process currently backing the tab.
	Process() string
	Close() error
	// Modal returns the tab-modal prompt shown in the tab, if any.
	Modal() (Dialog, bool)
}

// Agent is the content-side counterpart of a frame. It runs in a worker
// context of its own and is reachable only through Send.
type Agent interface {
	FrameID() string
	// Send delivers m without waiting for it to be processed. It returns
	// ErrAgentClosed or ErrAgentUnresponsive when m cannot be delivered.
	Send(m *Message) error
}

// Dialog is a modal prompt.
type Dialog interface {
	Text() string
	// Accept clicks the primary button.
	Accept() error
	// Dismiss clicks the secondary button, or the primary one if the dialog
	// has a single button.
	Dismiss() error
	HasInput() bool
	SendKeys(text string) error
	// Closed reports whether the dialog went away, by any means.
	Closed() bool
}

// Document is a loaded document, chrome or content.
type Document interface {
	Title() string
	URL() string
	Source() string
	ReadyState() string
	// Frames returns the document's child navigables in document order.
	Frames() []Frame
	// FindElements locates elements with the given strategy below root, or
	// in the whole document when root is nil.
	FindElements(using, value string, root Element) ([]Element, error)
	ActiveElement() Element
}

// Frame is a child navigable of a document.
type Frame interface {
	Name() string
	ElementID() string
	Element() Element
	Document() Document
}

// Element is a node of a Document.
type Element interface {
	TagName() string
	Attribute(name string) (string, bool)
	Text() string
	Displayed() bool
	Enabled() bool
	Selected() bool
	Rect() Rect
	CSSValue(property string) string
	Click() error
	SendKeys(text string) error
	Clear() error
	Submit() error
	// Attached reports whether the element is still part of its document.
	Attached() bool
	// SameAs reports whether other refers to the same node.
	SameAs(other Element) bool
}

// Registration announces a content agent to the control process.
type Registration struct {
	FrameID  string
	WindowID string
	Agent    Agent
	// Tab is the tab the agent runs in. It is nil for agents of
	// out-of-process sub-frames.
	Tab Tab
}

// Listener receives host notifications. Methods may be called from any
// goroutine and must not block.
type Listener interface {
	Registered(r Registration)
	Received(m *Message)
	DialogOpened(d Dialog)
	DialogClosed(d Dialog)
	WindowClosed(windowID string)
	FrameClosed(frameID string)
	RemotenessChanged(tabID string)
}
