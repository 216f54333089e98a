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
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/liuxd6825/marionette/api"
)

// Capabilities describe the session to the client.
type Capabilities map[string]interface{}

// DefaultCapabilities returns the capabilities of a session on the host
// described by info.
func DefaultCapabilities(info api.AppInfo) Capabilities {
	device := info.Device
	if device == "" {
		device = "desktop"
	}
	return Capabilities{
		"browserName":     info.Name,
		"browserVersion":  info.Version,
		"platformName":    strings.ToUpper(info.PlatformName),
		"platformVersion": info.PlatformVersion,

		"handlesAlerts":                 false,
		"nativeEvents":                  false,
		"raisesAccessibilityExceptions": false,
		"rotatable":                     info.Mobile,
		"secureSsl":                     false,
		"takesElementScreenshot":        true,
		"takesScreenshot":               true,

		"platform":   strings.ToUpper(info.PlatformName),
		"XULappId":   info.AppID,
		"appBuildId": info.BuildID,
		"device":     device,
		"version":    info.Version,
	}
}

// Negotiate returns caps updated with the client request. Top level
// entries and desiredCapabilities entries override current values.
// Every requiredCapabilities entry must equal its current value,
// otherwise a SessionNotCreated error lists the mismatches.
func (caps Capabilities) Negotiate(requested api.Params) (Capabilities, error) {
	out := make(Capabilities, len(caps))
	for k, v := range caps {
		out[k] = v
	}

	mismatches := make(map[string]string)
	for key, v := range requested {
		switch key {
		case "desiredCapabilities":
			for dk, dv := range requested.Map(key) {
				out[dk] = dv
			}
		case "requiredCapabilities":
			for rk, want := range requested.Map(key) {
				have, ok := caps[rk]
				if ok && capabilityEqual(want, have) {
					continue
				}
				mismatches[rk] = fmt.Sprintf("%s does not equal %s", capabilityString(want, true), capabilityString(have, ok))
			}
		default:
			out[key] = v
		}
	}

	if len(mismatches) == 0 {
		return out, nil
	}
	diff, err := json.Marshal(mismatches)
	if err != nil {
		return nil, err
	}
	return nil, api.NewError(api.SessionNotCreated, "Not all requiredCapabilities could be met %s", diff)
}

func capabilityEqual(a, b interface{}) bool {
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func capabilityString(v interface{}, present bool) string {
	switch {
	case !present:
		return "undefined"
	case v == nil:
		return "null"
	}
	return fmt.Sprintf("%v", v)
}
