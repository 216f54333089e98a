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

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptStore(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	s := NewScriptStore(fs, "/tmp/marionette", "conn0.marionetteContentScripts")

	got, err := s.Scripts()
	require.NoError(t, err)
	assert.Empty(t, got)

	added, err := s.Import("var a = 1;")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.Import("var b = 2;")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.Import("var a = 1;")
	require.NoError(t, err)
	assert.False(t, added, "a script is imported once")

	got, err = s.Scripts()
	require.NoError(t, err)
	assert.Equal(t, "var a = 1;var b = 2;", got)
	exists, err := afero.Exists(fs, "/tmp/marionette/conn0.marionetteContentScripts")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Clear())
	got, err = s.Scripts()
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, s.Clear(), "clearing an empty store")

	added, err = s.Import("var a = 1;")
	require.NoError(t, err)
	assert.True(t, added, "clearing forgets what was imported")
}

func TestScriptStoreReadOnly(t *testing.T) {
	t.Parallel()

	s := NewScriptStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/tmp", "scripts")
	_, err := s.Import("var a = 1;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script store")
}
