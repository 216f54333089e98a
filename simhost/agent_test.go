package simhost

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/dom"
)

func elementRef(t *testing.T, m *api.Message) map[string]interface{} {
	t.Helper()

	require.Equal(t, api.MsgDone, m.Name, "error: %v", m.Error)
	ref, ok := m.Value.(map[string]interface{})
	require.True(t, ok, "not an element reference: %#v", m.Value)
	require.Contains(t, ref, dom.ElementKey)
	return ref
}

func find(t *testing.T, r *recorder, ag api.Agent, id, elementID string) map[string]interface{} {
	t.Helper()

	return elementRef(t, r.call(t, ag, "findElementContent", id, api.Params{"using": dom.ByID, "value": elementID}))
}

func TestAgentRegistration(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	tab, reg := loadTab(t, h, r)

	assert.Equal(t, windowNamed(t, h, "main").ID(), reg.WindowID)
	assert.Equal(t, tab.OuterWindowID(), reg.Agent.FrameID())
	require.NotNil(t, reg.Tab)
	assert.Equal(t, tab.ID(), reg.Tab.ID())
	fid, ok := tab.FrameID()
	require.True(t, ok)
	assert.Equal(t, reg.FrameID, fid)

	// Loading again has the running agent announce itself.
	_, err := windowNamed(t, h, "main").LoadAgents()
	require.NoError(t, err)
	again := r.next(t, "registered", nil).reg
	assert.Equal(t, reg.FrameID, again.FrameID)

	require.NoError(t, reg.Agent.Send(&api.Message{
		Name:  api.MsgRegistered,
		Value: map[string]interface{}{"id": reg.FrameID, "remotenessChange": true, "mainContent": true},
	}))
	m := r.next(t, "received", func(e event) bool { return e.msg.Name == api.MsgListenersAttached }).msg
	assert.Equal(t, reg.FrameID, m.FrameID)
}

func TestAgentNavigation(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	_, reg := loadTab(t, h, r)
	ag := reg.Agent

	m := r.call(t, ag, "get", "1", api.Params{"url": "http://example.com/", "pageTimeout": 300000})
	require.Equal(t, api.MsgOK, m.Name)
	assert.Equal(t, reg.FrameID, m.FrameID)

	assert.Equal(t, "Example", r.call(t, ag, "getTitle", "2", nil).Value)
	assert.Equal(t, "http://example.com/", r.call(t, ag, "getCurrentUrl", "3", nil).Value)
	assert.Contains(t, r.call(t, ag, "getPageSource", "4", nil).Value, `id="next"`)

	link := find(t, r, ag, "5", "next")
	assert.Equal(t, api.MsgOK, r.call(t, ag, "clickElement", "6", api.Params{"id": link[dom.ElementKey]}).Name)
	assert.Equal(t, "Next", r.call(t, ag, "getTitle", "7", nil).Value)

	stale := r.call(t, ag, "getElementText", "8", api.Params{"id": link[dom.ElementKey]})
	require.Equal(t, api.MsgError, stale.Name)
	assert.Equal(t, api.StaleElementReference, stale.Error.Kind)

	assert.Equal(t, api.MsgOK, r.call(t, ag, "goBack", "9", nil).Name)
	assert.Equal(t, "Example", r.call(t, ag, "getTitle", "10", nil).Value)
	assert.Equal(t, api.MsgOK, r.call(t, ag, "goForward", "11", nil).Name)
	assert.Equal(t, "Next", r.call(t, ag, "getTitle", "12", nil).Value)
	assert.Equal(t, api.MsgOK, r.call(t, ag, "goForward", "13", nil).Name, "nothing to go forward to")
	assert.Equal(t, api.MsgOK, r.call(t, ag, "refresh", "14", nil).Name)
	assert.Equal(t, "Next", r.call(t, ag, "getTitle", "15", nil).Value)

	m = r.call(t, ag, "get", "16", api.Params{"url": "http://example.com/nowhere"})
	require.Equal(t, api.MsgError, m.Name)
	assert.Equal(t, api.UnknownError, m.Error.Kind)
	assert.Equal(t, "Error loading page", m.Error.Message)
}

func TestAgentWaitsForLoad(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	_, reg := loadTab(t, h, r)

	require.NoError(t, reg.Agent.Send(&api.Message{Name: "get", CommandID: "1", Params: api.Params{"url": "http://example.com/slow"}}))
	assert.Equal(t, "Slow", r.call(t, reg.Agent, "getTitle", "2", nil).Value)

	h.FinishLoad("http://example.com/slow")
	assert.Equal(t, api.MsgOK, r.reply(t, "1").Name)
}

func TestAgentCancelRequest(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	_, reg := loadTab(t, h, r)

	require.NoError(t, reg.Agent.Send(&api.Message{Name: "get", CommandID: "1", Params: api.Params{"url": "http://example.com/slow"}}))
	assert.Equal(t, "Slow", r.call(t, reg.Agent, "getTitle", "2", nil).Value)
	require.NoError(t, reg.Agent.Send(&api.Message{Name: api.MsgCancelRequest, CommandID: "1"}))
	assert.Equal(t, "Slow", r.call(t, reg.Agent, "getTitle", "3", nil).Value)

	h.FinishLoad("http://example.com/slow")
	require.NoError(t, reg.Agent.Send(&api.Message{Name: api.MsgPollForReadyState, CommandID: "4"}))
	first := r.next(t, "received", func(e event) bool {
		return e.msg.CommandID == "1" || e.msg.CommandID == "4"
	}).msg
	assert.Equal(t, "4", first.CommandID)
	assert.Equal(t, api.MsgOK, first.Name)

	quiet := time.After(3 * pollInterval)
	for {
		select {
		case e := <-r.events:
			if e.kind == "received" {
				assert.NotEqual(t, "1", e.msg.CommandID, "a canceled request was answered")
			}
		case <-quiet:
			return
		}
	}
}

func TestAgentRemotenessChange(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	tab, reg := loadTab(t, h, r)
	assert.False(t, tab.IsRemote())

	require.NoError(t, reg.Agent.Send(&api.Message{Name: "get", CommandID: "1", Params: api.Params{"url": "http://remote.example.com/"}}))
	assert.Equal(t, tab.ID(), r.next(t, "remotenessChanged", nil).id)
	assert.Equal(t, reg.FrameID, r.next(t, "frameClosed", nil).id)
	next := r.next(t, "registered", nil).reg

	assert.NotEqual(t, reg.FrameID, next.FrameID)
	assert.Equal(t, tab.OuterWindowID(), next.FrameID)
	require.NotNil(t, next.Tab)
	assert.Equal(t, tab.ID(), next.Tab.ID())
	assert.True(t, tab.IsRemote())
	assert.Equal(t, "content-1", tab.Process())

	assert.ErrorIs(t, reg.Agent.Send(&api.Message{Name: "getTitle", CommandID: "2"}), api.ErrAgentClosed)
	assert.Equal(t, api.MsgOK, r.call(t, next.Agent, api.MsgPollForReadyState, "1", nil).Name)
	assert.Equal(t, "Remote", r.call(t, next.Agent, "getTitle", "3", nil).Value)
}

func TestAgentFrames(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	_, reg := loadTab(t, h, r)
	ag := reg.Agent
	require.Equal(t, api.MsgOK, r.call(t, ag, "get", "1", api.Params{"url": "http://example.com/"}).Name)

	m := r.call(t, ag, "switchToFrame", "2", api.Params{"id": "nowhere"})
	require.Equal(t, api.MsgError, m.Name)
	assert.Equal(t, api.NoSuchFrame, m.Error.Kind)

	require.NoError(t, ag.Send(&api.Message{Name: "switchToFrame", CommandID: "3", Params: api.Params{"id": float64(0)}}))
	switched := r.next(t, "received", func(e event) bool { return e.msg.Name == api.MsgSwitchedToFrame }).msg
	assert.Contains(t, switched.Params["frameValue"], dom.ElementKey)
	assert.Equal(t, api.MsgOK, r.reply(t, "3").Name)

	find(t, r, ag, "4", "in")
	assert.Contains(t, r.call(t, ag, "getPageSource", "5", nil).Value, "inside")
	assert.Equal(t, "Example", r.call(t, ag, "getTitle", "6", nil).Value)

	require.NoError(t, ag.Send(&api.Message{Name: "switchToFrame", CommandID: "7"}))
	switched = r.next(t, "received", func(e event) bool { return e.msg.Name == api.MsgSwitchedToFrame }).msg
	assert.Nil(t, switched.Params["frameValue"])
	assert.Equal(t, api.MsgOK, r.reply(t, "7").Name)

	m = r.call(t, ag, "findElementContent", "8", api.Params{"using": dom.ByID, "value": "in"})
	require.Equal(t, api.MsgError, m.Name)
	assert.Equal(t, api.NoSuchElement, m.Error.Kind)

	// By element, the frame is the one of the iframe element.
	frame := find(t, r, ag, "9", "inner")
	require.NoError(t, ag.Send(&api.Message{Name: "switchToFrame", CommandID: "10", Params: api.Params{"element": frame[dom.ElementKey]}}))
	assert.Equal(t, api.MsgOK, r.reply(t, "10").Name)
	find(t, r, ag, "11", "in")
}

func TestAgentRemoteFrame(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	tab, reg := loadTab(t, h, r)
	ag := reg.Agent

	require.NoError(t, ag.Send(&api.Message{Name: "get", CommandID: "1", Params: api.Params{"url": "http://example.com/oop"}}))
	sub := r.next(t, "registered", func(e event) bool { return e.reg.FrameID != reg.FrameID }).reg
	assert.Nil(t, sub.Tab)
	assert.Equal(t, reg.WindowID, sub.WindowID)
	assert.Equal(t, api.MsgOK, r.reply(t, "1").Name)
	assert.Equal(t, []string{sub.FrameID}, tab.SubFrameIDs())

	require.NoError(t, ag.Send(&api.Message{Name: "switchToFrame", CommandID: "2", Params: api.Params{"id": "oop"}}))
	r.next(t, "received", func(e event) bool { return e.msg.Name == api.MsgSwitchedToFrame })
	m := r.message(t, api.MsgSwitchToFrame, "2")
	assert.Equal(t, sub.FrameID, m.Params["frameId"])

	assert.Equal(t, "Inner", r.call(t, sub.Agent, "getTitle", "3", nil).Value)
	find(t, r, sub.Agent, "4", "in")

	m = r.call(t, sub.Agent, "get", "5", api.Params{"url": "http://example.com/"})
	require.Equal(t, api.MsgError, m.Name)
	assert.Equal(t, api.UnsupportedOperation, m.Error.Kind)

	closeButton := find(t, r, sub.Agent, "6", "close")
	require.NoError(t, sub.Agent.Send(&api.Message{Name: "clickElement", CommandID: "7", Params: api.Params{"id": closeButton[dom.ElementKey]}}))
	assert.Equal(t, sub.FrameID, r.next(t, "frameClosed", nil).id)
}

func TestAgentClickOpensDialog(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	tab, reg := loadTab(t, h, r)
	ag := reg.Agent
	require.Equal(t, api.MsgOK, r.call(t, ag, "get", "1", api.Params{"url": "http://example.com/"}).Name)

	button := find(t, r, ag, "2", "alert")
	require.NoError(t, ag.Send(&api.Message{Name: "clickElement", CommandID: "3", Params: api.Params{"id": button[dom.ElementKey]}}))
	d := r.next(t, "dialogOpened", nil).dialog
	assert.Equal(t, "Hello from content", d.Text())

	modal, ok := tab.Modal()
	require.True(t, ok)
	assert.Same(t, d, modal)

	require.NoError(t, d.Accept())
	r.next(t, "dialogClosed", nil)
	_, ok = tab.Modal()
	assert.False(t, ok)
}

func TestAgentElements(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	_, reg := loadTab(t, h, r)
	ag := reg.Agent
	require.Equal(t, api.MsgOK, r.call(t, ag, "get", "1", api.Params{"url": "http://example.com/"}).Name)

	box := find(t, r, ag, "2", "box")[dom.ElementKey]
	assert.Equal(t, "span", r.call(t, ag, "getElementTagName", "3", api.Params{"id": box}).Value)
	assert.Equal(t, "box", r.call(t, ag, "getElementText", "4", api.Params{"id": box}).Value)
	assert.Equal(t, "5", r.call(t, ag, "getElementAttribute", "5", api.Params{"id": box, "name": "data-x"}).Value)
	assert.Nil(t, r.call(t, ag, "getElementAttribute", "6", api.Params{"id": box, "name": "nope"}).Value)
	assert.Equal(t, true, r.call(t, ag, "isElementDisplayed", "7", api.Params{"id": box}).Value)
	assert.Equal(t,
		map[string]interface{}{"x": 5.0, "y": 6.0, "width": 7.0, "height": 8.0},
		r.call(t, ag, "getElementRect", "8", api.Params{"id": box}).Value)
	assert.Equal(t,
		map[string]interface{}{"width": 7.0, "height": 8.0},
		r.call(t, ag, "getElementSize", "9", api.Params{"id": box}).Value)

	input := find(t, r, ag, "10", "name")[dom.ElementKey]
	assert.Equal(t, api.MsgOK, r.call(t, ag, "sendKeysToElement", "11", api.Params{"id": input, "value": []interface{}{"ab", "c"}}).Name)
	m := r.call(t, ag, "executeScript", "12", api.Params{
		"script": "return arguments[0].getAttribute('value');",
		"args":   []interface{}{map[string]interface{}{dom.ElementKey: input}},
	})
	assert.Equal(t, "abc", m.Value)
	assert.Equal(t, api.MsgOK, r.call(t, ag, "clearElement", "13", api.Params{"id": input}).Name)

	all := r.call(t, ag, "findElementsContent", "14", api.Params{"using": dom.ByTagName, "value": "nope"})
	assert.Equal(t, []interface{}{}, all.Value)

	m = r.call(t, ag, "getElementText", "15", api.Params{"id": "unknown"})
	require.Equal(t, api.MsgError, m.Name)
	assert.Equal(t, api.NoSuchElement, m.Error.Kind)

	m = r.call(t, ag, "frobnicate", "16", nil)
	require.Equal(t, api.MsgError, m.Name)
	assert.Equal(t, api.UnknownCommand, m.Error.Kind)
}

func TestAgentActions(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	_, reg := loadTab(t, h, r)
	ag := reg.Agent
	require.Equal(t, api.MsgOK, r.call(t, ag, "get", "1", api.Params{"url": "http://example.com/"}).Name)
	box := find(t, r, ag, "2", "box")[dom.ElementKey]

	m := r.call(t, ag, "actionChain", "3", api.Params{
		"chain":  []interface{}{[]interface{}{"press", box}, []interface{}{"wait", 1}, []interface{}{"release"}},
		"nextId": 4,
	})
	require.Equal(t, api.MsgDone, m.Name, "error: %v", m.Error)
	assert.EqualValues(t, 4, m.Value)

	m = r.call(t, ag, "actionChain", "4", api.Params{"chain": []interface{}{[]interface{}{"release"}}})
	require.Equal(t, api.MsgError, m.Name)
	assert.Equal(t, api.InvalidElementState, m.Error.Kind)

	m = r.call(t, ag, "actionChain", "5", api.Params{"chain": []interface{}{[]interface{}{"pinch"}}})
	require.Equal(t, api.MsgError, m.Name)
	assert.Equal(t, api.UnsupportedOperation, m.Error.Kind)

	m = r.call(t, ag, "multiAction", "6", api.Params{
		"value": []interface{}{
			[]interface{}{[]interface{}{"press", box}, []interface{}{"release"}},
			[]interface{}{[]interface{}{"press", box}, []interface{}{"moveByOffset", 1, 1}, []interface{}{"release"}},
		},
		"maxlen": 3,
	})
	assert.Equal(t, api.MsgOK, m.Name, "error: %v", m.Error)

	assert.Equal(t, api.MsgOK, r.call(t, ag, "singleTap", "7", api.Params{"id": box, "corx": 1, "cory": 1}).Name)
}

func TestAgentCookies(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	_, reg := loadTab(t, h, r)
	ag := reg.Agent

	m := r.call(t, ag, "addCookie", "1", api.Params{"cookie": map[string]interface{}{"name": "a", "value": "b"}})
	require.Equal(t, api.MsgError, m.Name)
	assert.Equal(t, api.InvalidArgument, m.Error.Kind)
	assert.Equal(t, []interface{}{}, r.call(t, ag, "getCookies", "2", nil).Value)

	require.Equal(t, api.MsgOK, r.call(t, ag, "get", "3", api.Params{"url": "http://example.com/"}).Name)
	m = r.call(t, ag, "addCookie", "4", api.Params{"cookie": map[string]interface{}{"name": "a", "value": "b"}})
	assert.Equal(t, api.MsgOK, m.Name, "error: %v", m.Error)
	m = r.call(t, ag, "addCookie", "5", api.Params{"cookie": map[string]interface{}{"name": "c", "value": "d", "domain": "other.org"}})
	require.Equal(t, api.MsgError, m.Name)
	assert.Equal(t, "You may only set cookies for the current domain", m.Error.Message)

	cookies, ok := r.call(t, ag, "getCookies", "6", nil).Value.([]interface{})
	require.True(t, ok)
	require.Len(t, cookies, 1)
	c, ok := cookies[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "a", c["name"])
	assert.Equal(t, "b", c["value"])
	assert.Equal(t, "example.com", c["domain"])
	assert.Equal(t, "/", c["path"])

	assert.Equal(t, api.MsgOK, r.call(t, ag, "deleteCookie", "7", api.Params{"name": "a"}).Name)
	assert.Equal(t, []interface{}{}, r.call(t, ag, "getCookies", "8", nil).Value)
}

func TestAgentScreenshot(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	_, reg := loadTab(t, h, r)
	ag := reg.Agent
	require.Equal(t, api.MsgOK, r.call(t, ag, "get", "1", api.Params{"url": "http://example.com/"}).Name)
	box := find(t, r, ag, "2", "box")[dom.ElementKey]

	decode := func(m *api.Message) (int, int) {
		require.Equal(t, api.MsgDone, m.Name, "error: %v", m.Error)
		s, ok := m.Value.(string)
		require.True(t, ok)
		b, err := base64.StdEncoding.DecodeString(s)
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(bytes.NewReader(b))
		require.NoError(t, err)
		return cfg.Width, cfg.Height
	}

	w, hgt := decode(r.call(t, ag, "takeScreenshot", "3", api.Params{"highlights": []interface{}{box}}))
	assert.Equal(t, 1280, w)
	assert.Equal(t, 800, hgt)

	w, hgt = decode(r.call(t, ag, "takeScreenshot", "4", api.Params{"id": box}))
	assert.Equal(t, 7, w)
	assert.Equal(t, 8, hgt)
}

func TestAgentScripts(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	_, reg := loadTab(t, h, r)
	ag := reg.Agent
	require.Equal(t, api.MsgOK, r.call(t, ag, "get", "1", api.Params{"url": "http://example.com/"}).Name)

	m := r.call(t, ag, "executeScript", "2", api.Params{"script": "return document.title + ' ' + __marionetteContext;", "args": []interface{}{}})
	assert.Equal(t, "Example content", m.Value)

	m = r.call(t, ag, "executeScript", "3", api.Params{"script": "return document.getElementById('box');"})
	ref := elementRef(t, m)
	assert.Equal(t, "span", r.call(t, ag, "getElementTagName", "4", api.Params{"id": ref[dom.ElementKey]}).Value)

	require.Equal(t, api.MsgDone, r.call(t, ag, "executeScript", "5", api.Params{"script": "foo = 7; return 1;", "newSandbox": false}).Name)
	assert.EqualValues(t, 7, r.call(t, ag, "executeScript", "5a", api.Params{"script": "return foo;", "newSandbox": false}).Value)
	m = r.call(t, ag, "executeScript", "5b", api.Params{"script": "return typeof foo;"})
	assert.Equal(t, "undefined", m.Value)

	m = r.call(t, ag, "executeScript", "6", api.Params{"script": "throw new Error('boom');"})
	require.Equal(t, api.MsgError, m.Name)
	assert.Equal(t, api.JavaScriptError, m.Error.Kind)

	m = r.call(t, ag, "executeAsyncScript", "7", api.Params{"script": "marionetteScriptFinished(arguments[0] + 1);", "args": []interface{}{41}})
	assert.EqualValues(t, 42, m.Value)

	m = r.call(t, ag, "executeJSScript", "8", api.Params{"script": "finish();", "async": true})
	require.Equal(t, api.MsgError, m.Name)
	assert.Equal(t, api.Timeout, m.Error.Kind)

	require.NoError(t, ag.Send(&api.Message{Name: "executeScript", CommandID: "9", Params: api.Params{"script": "return confirm('sure?');"}}))
	d := r.next(t, "dialogOpened", nil).dialog
	assert.Equal(t, "sure?", d.Text())
	require.NoError(t, d.Accept())
	assert.Equal(t, true, r.reply(t, "9").Value)
}

func TestAgentSendErrors(t *testing.T) {
	t.Parallel()

	h, r := newTestHost(t, nil)
	tab, reg := loadTab(t, h, r)

	tab.SetUnresponsive(true)
	assert.ErrorIs(t, reg.Agent.Send(&api.Message{Name: "getTitle", CommandID: "1"}), api.ErrAgentUnresponsive)
	tab.SetUnresponsive(false)
	assert.Equal(t, api.MsgDone, r.call(t, reg.Agent, "getTitle", "2", nil).Name)

	require.NoError(t, tab.Close())
	assert.Equal(t, reg.FrameID, r.next(t, "frameClosed", nil).id)
	assert.ErrorIs(t, reg.Agent.Send(&api.Message{Name: "getTitle", CommandID: "3"}), api.ErrAgentClosed)
}
