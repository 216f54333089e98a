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
	"time"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/dom"
)

const findPollInterval = 100 * time.Millisecond

func (c *Connection) searchTimeout() interface{} {
	if !c.session.SearchTimeout.Valid {
		return nil
	}
	return c.session.SearchTimeout.Int64
}

// chromeElement resolves the element handle in parameter key.
func (c *Connection) chromeElement(p api.Params, key string) (api.Element, error) {
	handle, ok := dom.HandleFrom(p[key])
	if !ok {
		return nil, api.NewError(api.NoSuchElement, "Element %v is not known", p[key])
	}
	return c.chrome.elements.Get(handle)
}

// keys joins the value of sendKeys commands, which is a list of strings
// or a string.
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

// forwardParams returns a content handler sending only the given
// parameters. Entries of rename map a command parameter to the agent
// parameter it is sent as.
func forwardParams(name string, names []string, rename map[string]string) HandlerFunc {
	return func(c *Connection, id CommandID, p api.Params) error {
		params := make(api.Params, len(names)+len(rename))
		for _, k := range names {
			params[k] = p[k]
		}
		for from, to := range rename {
			params[to] = p[from]
		}
		c.sendAsync(name, params, id, false)
		return nil
	}
}

// unavailableInChrome is the chrome handler of commands that only make
// sense in content.
func unavailableInChrome(name string) HandlerFunc {
	return func(_ *Connection, _ CommandID, _ api.Params) error {
		return api.NewError(api.Generic, "Command '%s' is not available in chrome context", name)
	}
}

// watchFrameClose makes the closing of the selected out-of-process frame
// fail the command in flight.
func (c *Connection) watchFrameClose(action string) {
	b := c.curBrowser
	if b == nil || !b.InRemoteFrame() {
		return
	}
	c.frameWatch = action
	c.oopFrameID = b.Current()
}

// watched forwards the command after arming the frame close watch.
func watched(action string, h HandlerFunc) HandlerFunc {
	return func(c *Connection, id CommandID, p api.Params) error {
		c.watchFrameClose(action)
		return h(c, id, p)
	}
}

func findContent(name, rootKey string) HandlerFunc {
	return func(c *Connection, id CommandID, p api.Params) error {
		c.sendAsync(name, api.Params{
			"value":         p["value"],
			"using":         p["using"],
			"element":       p[rootKey],
			"searchTimeout": c.searchTimeout(),
		}, id, false)
		return nil
	}
}

func findChrome(all bool) HandlerFunc {
	return func(c *Connection, id CommandID, p api.Params) error {
		doc, err := c.chromeDocument()
		if err != nil {
			return err
		}
		var root api.Element
		if p["element"] != nil {
			if root, err = c.chromeElement(p, "element"); err != nil {
				return err
			}
		}
		var wait time.Duration
		if c.session.SearchTimeout.Valid {
			wait = time.Duration(c.session.SearchTimeout.Int64) * time.Millisecond
		}
		c.pollFind(id, findQuery{
			doc:      doc,
			using:    p.StringOr("using", ""),
			value:    p.StringOr("value", ""),
			root:     root,
			all:      all,
			deadline: c.clock.Now().Add(wait),
		})
		return nil
	}
}

type findQuery struct {
	doc          api.Document
	using, value string
	root         api.Element
	all          bool
	deadline     time.Time
}

// pollFind retries the lookup until it finds something or the search
// timeout passed.
func (c *Connection) pollFind(id CommandID, q findQuery) {
	if c.tracker.Current() != id {
		return
	}
	els, err := q.doc.FindElements(q.using, q.value, q.root)
	if err != nil {
		c.sendError(api.AsError(err), id)
		return
	}
	if len(els) == 0 && c.clock.Now().Before(q.deadline) {
		c.schedule(findPollInterval, func() { c.pollFind(id, q) })
		return
	}

	if q.all {
		refs := make([]interface{}, 0, len(els))
		for _, el := range els {
			refs = append(refs, c.chrome.elements.Reference(el))
		}
		c.sendResponse(refs, id)
		return
	}
	if len(els) == 0 {
		c.sendError(api.NewError(api.NoSuchElement, "Unable to locate element: %s", q.value), id)
		return
	}
	c.sendResponse(c.chrome.elements.Reference(els[0]), id)
}

// elementQuery returns a chrome handler answering with a property of the
// element in parameter id.
func elementQuery(get func(el api.Element, p api.Params) interface{}) HandlerFunc {
	return func(c *Connection, id CommandID, p api.Params) error {
		el, err := c.chromeElement(p, "id")
		if err != nil {
			return err
		}
		c.sendResponse(get(el, p), id)
		return nil
	}
}

// elementAction returns a chrome handler acting on the element in
// parameter id.
func elementAction(act func(el api.Element, p api.Params) error) HandlerFunc {
	return func(c *Connection, id CommandID, p api.Params) error {
		el, err := c.chromeElement(p, "id")
		if err != nil {
			return err
		}
		if err := act(el, p); err != nil {
			return err
		}
		c.sendOK(id)
		return nil
	}
}

func elementAttribute(el api.Element, p api.Params) interface{} {
	v, ok := el.Attribute(p.StringOr("name", ""))
	if !ok {
		return nil
	}
	return v
}

func elementText(el api.Element, _ api.Params) interface{} { return el.Text() }

func elementTagName(el api.Element, _ api.Params) interface{} {
	return strings.ToLower(el.TagName())
}

func elementDisplayed(el api.Element, _ api.Params) interface{} { return el.Displayed() }

func elementEnabled(el api.Element, _ api.Params) interface{} { return el.Enabled() }

func elementSelected(el api.Element, _ api.Params) interface{} { return el.Selected() }

func elementCSSValue(el api.Element, p api.Params) interface{} {
	return el.CSSValue(p.StringOr("propertyName", ""))
}

func elementRect(el api.Element, _ api.Params) interface{} { return el.Rect() }

func elementSize(el api.Element, _ api.Params) interface{} {
	r := el.Rect()
	return map[string]interface{}{"width": r.Width, "height": r.Height}
}

func clickElement(el api.Element, _ api.Params) error { return el.Click() }

func clearElement(el api.Element, _ api.Params) error { return el.Clear() }

func sendKeysToElement(el api.Element, p api.Params) error { return el.SendKeys(keys(p)) }
