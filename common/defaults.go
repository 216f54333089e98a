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

// both returns a command that runs chrome in chrome context and content
// otherwise.
func both(name string, chrome, content HandlerFunc, aliases ...string) Command {
	return Command{Name: name, Aliases: aliases, Kind: KindBoth, Chrome: chrome, Content: content}
}

func chromeOnly(name string, h HandlerFunc, aliases ...string) Command {
	return Command{Name: name, Aliases: aliases, Kind: KindChrome, Chrome: h}
}

func contentOnly(name string, h HandlerFunc, aliases ...string) Command {
	return Command{Name: name, Aliases: aliases, Kind: KindContent, Content: h}
}

// elementCommand is a command on the element in parameter id. Content
// context forwards the given parameters.
func elementCommand(name string, chrome HandlerFunc, params ...string) Command {
	return both(name, chrome, forwardParams(name, append([]string{"id"}, params...), nil))
}

// DefaultCommands returns the full command set.
func DefaultCommands() []Command {
	return []Command{
		// session
		{Name: "getMarionetteID", Kind: KindChrome, OutOfBand: true, Chrome: getMarionetteID},
		{Name: "sayHello", Kind: KindChrome, OutOfBand: true, Chrome: sayHello},
		chromeOnly("newSession", newSession),
		chromeOnly("getSessionCapabilities", getSessionCapabilities),
		chromeOnly("deleteSession", deleteSession),
		chromeOnly("quitApplication", quitApplication),
		contentOnly("setTestName", setTestNameContent),
		chromeOnly("log", logMessage),
		chromeOnly("getLogs", getLogs),
		chromeOnly("importScript", importScript),
		chromeOnly("clearImportedScripts", clearImportedScripts),
		contentOnly("getAppCacheStatus", forward("getAppCacheStatus")),

		// context and timeouts
		chromeOnly("setContext", setContext),
		chromeOnly("getContext", getContext),
		chromeOnly("setScriptTimeout", setScriptTimeout),
		chromeOnly("setSearchTimeout", setSearchTimeout),
		chromeOnly("timeouts", timeouts),

		// scripts
		both("executeScript", executeScriptCmd.chrome, executeScriptCmd.content),
		both("executeAsyncScript", executeAsyncScriptCmd.chrome, executeAsyncScriptCmd.content),
		both("executeJSScript", executeJSScriptCmd.chrome, executeJSScriptCmd.content),
		{
			Name:      "emulatorCmdResult",
			Kind:      KindBoth,
			OutOfBand: true,
			Chrome:    emulatorCmdResultChrome,
			Content:   emulatorCmdResultContent,
		},

		// navigation
		both("get", getChrome, getContent, "goUrl"),
		both("getCurrentUrl", getCurrentURLChrome, forward("getCurrentUrl"), "getUrl"),
		both("getTitle", getTitleChrome, forward("getTitle")),
		chromeOnly("getWindowType", getWindowType),
		both("getPageSource", getPageSourceChrome, forward("getPageSource")),
		contentOnly("goBack", forward("goBack")),
		contentOnly("goForward", forward("goForward")),
		contentOnly("refresh", forward("refresh")),

		// windows
		chromeOnly("getWindowHandle", getWindowHandle, "getCurrentWindowHandle", "getWindow"),
		chromeOnly("getWindowHandles", getWindowHandles, "getCurrentWindowHandles", "getWindows"),
		chromeOnly("getChromeWindowHandle", getChromeWindowHandle, "getCurrentChromeWindowHandle"),
		chromeOnly("getChromeWindowHandles", getChromeWindowHandles),
		chromeOnly("getWindowPosition", getWindowPosition),
		chromeOnly("setWindowPosition", setWindowPosition),
		chromeOnly("getWindowSize", getWindowSize),
		chromeOnly("setWindowSize", setWindowSize),
		chromeOnly("maximizeWindow", maximizeWindow),
		chromeOnly("switchToWindow", switchToWindow),
		chromeOnly("close", closeWindow, "closeWindow"),
		chromeOnly("closeChromeWindow", closeChromeWindow),
		chromeOnly("getScreenOrientation", getScreenOrientation),
		chromeOnly("setScreenOrientation", setScreenOrientation),

		// frames
		both("switchToFrame", switchToFrameChrome, switchToFrameContent),
		both("getActiveFrame", getActiveFrameChrome, getActiveFrameContent),

		// elements
		both("findElement", findChrome(false), findContent("findElementContent", "element")),
		both("findElements", findChrome(true), findContent("findElementsContent", "element")),
		contentOnly("findChildElement", findContent("findElementContent", "id")),
		contentOnly("findChildElements", findContent("findElementsContent", "id")),
		contentOnly("getActiveElement", forward("getActiveElement")),
		both("clickElement", elementAction(clickElement),
			watched("click", forwardParams("clickElement", []string{"id"}, nil))),
		elementCommand("getElementAttribute", elementQuery(elementAttribute), "name"),
		elementCommand("getElementText", elementQuery(elementText)),
		elementCommand("getElementTagName", elementQuery(elementTagName)),
		elementCommand("isElementDisplayed", elementQuery(elementDisplayed)),
		elementCommand("isElementEnabled", elementQuery(elementEnabled)),
		elementCommand("isElementSelected", elementQuery(elementSelected)),
		elementCommand("getElementValueOfCssProperty", elementQuery(elementCSSValue), "propertyName"),
		elementCommand("getElementRect", elementQuery(elementRect)),
		elementCommand("getElementSize", elementQuery(elementSize)),
		contentOnly("getElementLocation", forwardParams("getElementLocation", []string{"id"}, nil), "getElementPosition"),
		elementCommand("sendKeysToElement", elementAction(sendKeysToElement), "value"),
		elementCommand("clearElement", elementAction(clearElement)),
		elementCommand("submitElement", unavailableInChrome("submitElement")),

		// interaction
		both("singleTap", unavailableInChrome("singleTap"),
			watched("tap", forwardParams("singleTap", []string{"id"}, map[string]string{"x": "corx", "y": "cory"}))),
		both("actionChain", unavailableInChrome("actionChain"),
			watched("action chain", forwardParams("actionChain", []string{"chain", "nextId"}, nil))),
		both("multiAction", unavailableInChrome("multiAction"),
			watched("multi action chain", forwardParams("multiAction", []string{"value"}, map[string]string{"max_length": "maxlen"}))),

		// cookies
		contentOnly("addCookie", forwardParams("addCookie", []string{"cookie"}, nil)),
		contentOnly("getCookies", forward("getCookies"), "getAllCookies"),
		contentOnly("deleteCookie", forwardParams("deleteCookie", []string{"name"}, nil)),
		contentOnly("deleteAllCookies", forward("deleteAllCookies")),

		// dialogs
		chromeOnly("dismissDialog", dismissDialog),
		chromeOnly("acceptDialog", acceptDialog),
		chromeOnly("getTextFromDialog", getTextFromDialog),
		chromeOnly("sendKeysToDialog", sendKeysToDialog),

		// screenshots
		contentOnly("takeScreenshot",
			forwardParams("takeScreenshot", []string{"id", "highlights", "full"}, nil), "screenShot", "screenshot"),
	}
}

// DefaultRegistry returns the dispatch table of DefaultCommands.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultCommands()...)
	if err != nil {
		panic(api.NewError(api.UnknownError, "invalid default command set: %v", err))
	}
	return r
}
