package simhost

import (
	"strings"
	"time"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/dom"
)

// handlerFunc handles a command forwarded by the control process. It
// returns the value to answer with, replyOK, or errPending when the
// answer comes later.
type handlerFunc func(a *agent, id string, p api.Params) (interface{}, error)

// controlHandlers handle the messages that get no answer.
var controlHandlers = map[string]func(a *agent, m *api.Message, p api.Params){ //nolint:gochecknoglobals
	api.MsgRegistered: func(a *agent, m *api.Message, _ api.Params) {
		v, _ := m.Value.(map[string]interface{})
		if change, _ := v["remotenessChange"].(bool); change {
			a.send(&api.Message{Name: api.MsgListenersAttached})
		}
	},
	api.MsgNewSession:    func(a *agent, _ *api.Message, _ api.Params) { a.resetSession() },
	api.MsgDeleteSession: func(a *agent, _ *api.Message, _ api.Params) { a.resetSession() },
	api.MsgSleepSession:  func(a *agent, _ *api.Message, _ api.Params) { a.cur = a.top() },
	api.MsgCancelRequest: func(a *agent, m *api.Message, _ api.Params) { a.cancelRequest(m.CommandID) },
	api.MsgEmulatorCmdResult: func(a *agent, _ *api.Message, p api.Params) {
		id, err := api.ToInt(p["id"])
		if err != nil || a.sandbox == nil {
			return
		}
		if !a.sandbox.Resolve(id, p["result"]) {
			a.logger.Debugf("simhost:agent.emulatorCmdResult", "no callback for %d", id)
		}
	},
}

// commandHandlers is filled in init, the handlers lead back to the
// agent loop that dispatches to them.
var commandHandlers map[string]handlerFunc //nolint:gochecknoglobals

func init() { //nolint:gochecknoinits
	commandHandlers = map[string]handlerFunc{
		api.MsgPollForReadyState: pollForReadyState,
		"get":                    getURL,
		"getCurrentUrl":          getCurrentURL,
		"getTitle":               getTitle,
		"getPageSource":          getPageSource,
		"goBack":                 historyStep(-1),
		"goForward":              historyStep(1),
		"refresh":                refresh,
		"getAppCacheStatus":      getAppCacheStatus,
		"setTestName":            setTestName,

		"switchToFrame":    switchToFrame,
		"getActiveElement": getActiveElement,

		"findElementContent":  findElements(false),
		"findElementsContent": findElements(true),

		"clickElement":                 clickElement,
		"getElementAttribute":          elementQuery(elementAttribute),
		"getElementText":               elementQuery(func(el api.Element, _ api.Params) interface{} { return el.Text() }),
		"getElementTagName":            elementQuery(elementTagName),
		"isElementDisplayed":           elementQuery(func(el api.Element, _ api.Params) interface{} { return el.Displayed() }),
		"isElementEnabled":             elementQuery(func(el api.Element, _ api.Params) interface{} { return el.Enabled() }),
		"isElementSelected":            elementQuery(func(el api.Element, _ api.Params) interface{} { return el.Selected() }),
		"getElementValueOfCssProperty": elementQuery(elementCSSValue),
		"getElementRect":               elementQuery(elementRect),
		"getElementSize":               elementQuery(elementSize),
		"getElementLocation":           elementQuery(elementLocation),
		"sendKeysToElement":            elementAction(func(el api.Element, p api.Params) error { return el.SendKeys(keys(p)) }),
		"clearElement":                 elementAction(func(el api.Element, _ api.Params) error { return el.Clear() }),
		"submitElement":                submitElement,

		"singleTap":   singleTap,
		"actionChain": actionChain,
		"multiAction": multiAction,

		"addCookie":        addCookie,
		"getCookies":       getCookies,
		"deleteCookie":     deleteCookie,
		"deleteAllCookies": deleteAllCookies,

		"takeScreenshot": takeScreenshot,

		"executeScript":      scriptCommand{}.run,
		"executeAsyncScript": scriptCommand{async: true}.run,
		"executeJSScript":    scriptCommand{direct: true}.run,
	}
}

func pollForReadyState(a *agent, id string, _ api.Params) (interface{}, error) {
	a.waitReady(id)
	return nil, errPending
}

func getURL(a *agent, id string, p api.Params) (interface{}, error) {
	if err := a.load(p.StringOr("url", ""), true, id); err != nil {
		return nil, err
	}
	return nil, errPending
}

func getCurrentURL(a *agent, _ string, _ api.Params) (interface{}, error) {
	return a.top().URL(), nil
}

func getTitle(a *agent, _ string, _ api.Params) (interface{}, error) {
	return a.top().Title(), nil
}

func getPageSource(a *agent, _ string, _ api.Params) (interface{}, error) {
	return a.cur.Source(), nil
}

func historyStep(delta int) handlerFunc {
	return func(a *agent, id string, _ api.Params) (interface{}, error) {
		if err := a.navigable(); err != nil {
			return nil, err
		}
		url, ok := a.tab.step(delta)
		if !ok {
			return replyOK, nil
		}
		if err := a.load(url, false, id); err != nil {
			return nil, err
		}
		return nil, errPending
	}
}

func refresh(a *agent, id string, _ api.Params) (interface{}, error) {
	if err := a.navigable(); err != nil {
		return nil, err
	}
	if err := a.load(a.tab.currentURL(), false, id); err != nil {
		return nil, err
	}
	return nil, errPending
}

// getAppCacheStatus answers UNCACHED, no page uses an application cache.
func getAppCacheStatus(_ *agent, _ string, _ api.Params) (interface{}, error) {
	return 0, nil
}

func setTestName(a *agent, _ string, p api.Params) (interface{}, error) {
	a.testName = p.StringOr("value", "")
	return replyOK, nil
}

// switchToFrame selects a frame of the current document. Switching to
// an out-of-process frame is handed to the control process, which
// forwards later commands to the sub agent serving it.
func switchToFrame(a *agent, id string, p api.Params) (interface{}, error) {
	if p["id"] == nil && p["element"] == nil {
		a.cur = a.top()
		a.switched(nil)
		return replyOK, nil
	}

	var el api.Element
	if p["element"] != nil {
		var err error
		if el, err = a.element(p["element"]); err != nil {
			return nil, err
		}
	}
	f, ok := api.ResolveFrame(a.cur.Frames(), p["id"], el)
	frame, isFrame := f.(*dom.Frame)
	if !ok || !isFrame {
		return nil, api.NewError(api.NoSuchFrame, "Unable to locate frame: %v", p["id"])
	}
	ref := a.elements.Reference(frame.Element())

	if frame.Remote() {
		s, ok := a.sub(frame)
		if !ok {
			return nil, api.NewError(api.NoSuchFrame, "Unable to locate frame: %v", p["id"])
		}
		a.switched(ref)
		a.send(&api.Message{
			Name:      api.MsgSwitchToFrame,
			CommandID: id,
			Params:    api.Params{"frameId": s.frameID},
		})
		return nil, errPending
	}

	doc := frame.Content()
	a.cur = doc
	a.switched(ref)
	a.poll(id, func() bool {
		if doc.ReadyState() != dom.StateComplete {
			return false
		}
		a.ok(id)
		return true
	})
	return nil, errPending
}

// switched tells the control process the frame element switched to.
func (a *agent) switched(frameValue interface{}) {
	a.send(&api.Message{
		Name:   api.MsgSwitchedToFrame,
		Params: api.Params{"frameValue": frameValue},
	})
}

func getActiveElement(a *agent, _ string, _ api.Params) (interface{}, error) {
	el := a.cur.ActiveElement()
	if el == nil {
		return nil, nil
	}
	return a.elements.Reference(el), nil
}

// findElements looks the elements up in the current document until
// something is found or the search timeout passed.
func findElements(all bool) handlerFunc {
	return func(a *agent, id string, p api.Params) (interface{}, error) {
		var root api.Element
		if p["element"] != nil {
			var err error
			if root, err = a.element(p["element"]); err != nil {
				return nil, err
			}
		}
		var wait time.Duration
		if ms, err := api.ToInt(p["searchTimeout"]); err == nil && ms > 0 {
			wait = time.Duration(ms) * time.Millisecond
		}
		deadline := a.host.clock.Now().Add(wait)
		using, value := p.StringOr("using", ""), p.StringOr("value", "")

		a.poll(id, func() bool {
			els, err := a.cur.FindElements(using, value, root)
			if err != nil {
				a.fail(id, err)
				return true
			}
			if len(els) == 0 && a.host.clock.Now().Before(deadline) {
				return false
			}
			switch {
			case all:
				refs := make([]interface{}, 0, len(els))
				for _, el := range els {
					refs = append(refs, a.elements.Reference(el))
				}
				a.reply(id, refs)
			case len(els) == 0:
				a.fail(id, api.NewError(api.NoSuchElement, "Unable to locate element: %s", value))
			default:
				a.reply(id, a.elements.Reference(els[0]))
			}
			return true
		})
		return nil, errPending
	}
}

func elementQuery(get func(el api.Element, p api.Params) interface{}) handlerFunc {
	return func(a *agent, _ string, p api.Params) (interface{}, error) {
		el, err := a.element(p["id"])
		if err != nil {
			return nil, err
		}
		return get(el, p), nil
	}
}

func elementAction(act func(el api.Element, p api.Params) error) handlerFunc {
	return func(a *agent, _ string, p api.Params) (interface{}, error) {
		el, err := a.element(p["id"])
		if err != nil {
			return nil, err
		}
		if err := act(el, p); err != nil {
			return nil, err
		}
		return replyOK, nil
	}
}

func elementAttribute(el api.Element, p api.Params) interface{} {
	if v, ok := el.Attribute(p.StringOr("name", "")); ok {
		return v
	}
	return nil
}

func elementTagName(el api.Element, _ api.Params) interface{} {
	return strings.ToLower(el.TagName())
}

func elementCSSValue(el api.Element, p api.Params) interface{} {
	return el.CSSValue(p.StringOr("propertyName", ""))
}

func elementRect(el api.Element, _ api.Params) interface{} {
	r := el.Rect()
	return map[string]interface{}{"x": r.X, "y": r.Y, "width": r.Width, "height": r.Height}
}

func elementSize(el api.Element, _ api.Params) interface{} {
	r := el.Rect()
	return map[string]interface{}{"width": r.Width, "height": r.Height}
}

func elementLocation(el api.Element, _ api.Params) interface{} {
	r := el.Rect()
	return map[string]interface{}{"x": r.X, "y": r.Y}
}

// keys joins the value of sendKeys, a list of strings or a string.
func keys(p api.Params) string {
	if s, ok := p.String("value"); ok {
		return s
	}
	var sb strings.Builder
	for _, v := range p.Slice("value") {
		if s, ok := v.(string); ok {
			sb.WriteString(s)
		}
	}
	return sb.String()
}

func clickElement(a *agent, id string, p api.Params) (interface{}, error) {
	el, err := a.element(p["id"])
	if err != nil {
		return nil, err
	}
	return a.activate(id, el.Click)
}

func submitElement(a *agent, id string, p api.Params) (interface{}, error) {
	el, err := a.element(p["id"])
	if err != nil {
		return nil, err
	}
	return a.activate(id, el.Submit)
}
