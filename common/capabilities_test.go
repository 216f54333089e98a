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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/marionette/api"
)

var testAppInfo = api.AppInfo{ //nolint:gochecknoglobals
	Name:            "Firefox",
	Version:         "38.0a1",
	BuildID:         "20150201030205",
	AppID:           "{ec8030f7-c20a-464f-9b0e-13a3a9e97384}",
	Platform:        "Linux",
	PlatformName:    "linux",
	PlatformVersion: "3.19.0",
}

func TestDefaultCapabilities(t *testing.T) {
	t.Parallel()

	caps := DefaultCapabilities(testAppInfo)
	assert.Equal(t, "Firefox", caps["browserName"])
	assert.Equal(t, "LINUX", caps["platformName"])
	assert.Equal(t, "LINUX", caps["platform"])
	assert.Equal(t, "desktop", caps["device"])
	assert.Equal(t, true, caps["takesScreenshot"])
	assert.Equal(t, false, caps["rotatable"])
	assert.Equal(t, "20150201030205", caps["appBuildId"])

	mobile := testAppInfo
	mobile.Mobile, mobile.Device = true, "phone"
	caps = DefaultCapabilities(mobile)
	assert.Equal(t, true, caps["rotatable"])
	assert.Equal(t, "phone", caps["device"])
}

func TestNegotiateCapabilities(t *testing.T) {
	t.Parallel()

	caps := DefaultCapabilities(testAppInfo)

	t.Run("desired", func(t *testing.T) {
		t.Parallel()

		got, err := caps.Negotiate(api.Params{
			"desiredCapabilities": map[string]interface{}{"secureSsl": true, "custom": "x"},
			"topLevel":            float64(3),
		})
		require.NoError(t, err)
		assert.Equal(t, true, got["secureSsl"])
		assert.Equal(t, "x", got["custom"])
		assert.Equal(t, float64(3), got["topLevel"])
		assert.Equal(t, false, caps["secureSsl"], "the defaults are not modified")
	})
	t.Run("required met", func(t *testing.T) {
		t.Parallel()

		got, err := caps.Negotiate(api.Params{
			"requiredCapabilities": map[string]interface{}{"takesScreenshot": true, "browserName": "Firefox"},
		})
		require.NoError(t, err)
		assert.Equal(t, true, got["takesScreenshot"])
	})
	t.Run("required unmet", func(t *testing.T) {
		t.Parallel()

		_, err := caps.Negotiate(api.Params{
			"requiredCapabilities": map[string]interface{}{"takesScreenshot": false},
		})
		require.Error(t, err)
		assert.True(t, api.IsKind(err, api.SessionNotCreated))
		assert.Equal(t,
			`Not all requiredCapabilities could be met {"takesScreenshot":"false does not equal true"}`,
			err.Error())
	})
	t.Run("required unknown", func(t *testing.T) {
		t.Parallel()

		_, err := caps.Negotiate(api.Params{
			"requiredCapabilities": map[string]interface{}{"teleports": true},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"teleports":"true does not equal undefined"`)
	})
}

func TestCapabilityEqual(t *testing.T) {
	t.Parallel()

	assert.True(t, capabilityEqual(float64(2), 2))
	assert.True(t, capabilityEqual(int64(2), float64(2)))
	assert.False(t, capabilityEqual(float64(2), "2"))
	assert.True(t, capabilityEqual("a", "a"))
	assert.True(t, capabilityEqual(nil, nil))
	assert.Equal(t, "null", capabilityString(nil, true))
}
