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

func noopHandler(_ *Connection, _ CommandID, _ api.Params) error { return nil }

func TestNewRegistryValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmds []Command
		err  string
	}{
		{
			name: "no name",
			cmds: []Command{{Kind: KindChrome, Chrome: noopHandler}},
			err:  "command without name",
		},
		{
			name: "chrome without handler",
			cmds: []Command{{Name: "a", Kind: KindChrome}},
			err:  `chrome command "a" has no chrome handler`,
		},
		{
			name: "chrome with content handler",
			cmds: []Command{{Name: "a", Kind: KindChrome, Chrome: noopHandler, Content: noopHandler}},
			err:  `chrome command "a" has a content handler`,
		},
		{
			name: "content without handler",
			cmds: []Command{{Name: "a", Kind: KindContent}},
			err:  `content command "a" has no content handler`,
		},
		{
			name: "both with one handler",
			cmds: []Command{{Name: "a", Kind: KindBoth, Content: noopHandler}},
			err:  `command "a" needs both a chrome and a content handler`,
		},
		{
			name: "invalid kind",
			cmds: []Command{{Name: "a", Chrome: noopHandler}},
			err:  `command "a" has invalid kind CommandKind(0)`,
		},
		{
			name: "duplicate name",
			cmds: []Command{chromeOnly("a", noopHandler), contentOnly("a", noopHandler)},
			err:  `duplicate command name "a"`,
		},
		{
			name: "alias shadowing a name",
			cmds: []Command{chromeOnly("a", noopHandler), chromeOnly("b", noopHandler, "a")},
			err:  `duplicate command name "a"`,
		},
		{
			name: "empty alias",
			cmds: []Command{chromeOnly("a", noopHandler, "")},
			err:  `command "a" has an empty alias`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewRegistry(tt.cmds...)
			require.Error(t, err)
			assert.EqualError(t, err, tt.err)
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(
		chromeOnly("getWindowHandle", noopHandler, "getWindow"),
		both("getTitle", noopHandler, noopHandler),
	)
	require.NoError(t, err)

	cmd, ok := r.Lookup("getWindow")
	require.True(t, ok)
	assert.Equal(t, "getWindowHandle", cmd.Name)
	byName, _ := r.Lookup("getWindowHandle")
	assert.Same(t, cmd, byName)

	_, ok = r.Lookup("getTitles")
	assert.False(t, ok)
	assert.Equal(t, []string{"getTitle", "getWindow", "getWindowHandle"}, r.Names())
}

func TestCommandHandler(t *testing.T) {
	t.Parallel()

	var called string
	chrome := func(_ *Connection, _ CommandID, _ api.Params) error {
		called = "chrome"
		return nil
	}
	content := func(_ *Connection, _ CommandID, _ api.Params) error {
		called = "content"
		return nil
	}

	tests := []struct {
		cmd    Command
		chrome bool
		want   string
	}{
		{both("x", chrome, content), true, "chrome"},
		{both("x", chrome, content), false, "content"},
		{chromeOnly("x", chrome), false, "chrome"},
		{contentOnly("x", content), true, "content"},
	}
	for _, tt := range tests {
		called = ""
		require.NoError(t, tt.cmd.handler(tt.chrome)(nil, "", nil))
		assert.Equal(t, tt.want, called, "%s command in chrome context:%t", tt.cmd.Kind, tt.chrome)
	}
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	for _, name := range []string{
		"newSession", "deleteSession", "get", "goUrl", "getUrl", "getTitle",
		"switchToFrame", "findElement", "clickElement", "executeScript",
		"acceptDialog", "screenShot", "getWindows", "closeWindow",
	} {
		_, ok := r.Lookup(name)
		assert.True(t, ok, name)
	}

	cmd, ok := r.Lookup("sayHello")
	require.True(t, ok)
	assert.True(t, cmd.OutOfBand)
	cmd, _ = r.Lookup("takeScreenshot")
	assert.Equal(t, KindContent, cmd.Kind)
	cmd, _ = r.Lookup("executeScript")
	assert.Equal(t, KindBoth, cmd.Kind)
}
