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

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsInt(t *testing.T) {
	t.Parallel()

	p := Params{
		"float":   float64(1500.7),
		"string":  " 250 ",
		"number":  json.Number("42"),
		"int":     7,
		"bad":     "soon",
		"null":    nil,
		"boolean": true,
	}

	for key, want := range map[string]int64{"float": 1500, "string": 250, "number": 42, "int": 7} {
		got, err := p.Int(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}
	for _, key := range []string{"bad", "null", "boolean", "missing"} {
		_, err := p.Int(key)
		require.Error(t, err, key)
		assert.True(t, IsKind(err, InvalidArgument), key)
		assert.Equal(t, "Not a Number", err.Error())
	}
}

func TestParamsAccessors(t *testing.T) {
	t.Parallel()

	p := Params{
		"url":    "http://example.test",
		"flag":   true,
		"args":   []interface{}{1.0, "two"},
		"nested": map[string]interface{}{"name": "nav"},
		"nil":    nil,
	}

	s, ok := p.String("url")
	assert.True(t, ok)
	assert.Equal(t, "http://example.test", s)
	assert.Equal(t, "fallback", p.StringOr("flag", "fallback"))
	assert.True(t, p.Bool("flag"))
	assert.False(t, p.Bool("url"))
	assert.Len(t, p.Slice("args"), 2)
	assert.Equal(t, "nav", p.Map("nested").StringOr("name", ""))
	assert.Nil(t, p.Map("url"))
	assert.True(t, p.Has("nil"))
	assert.False(t, p.Has("missing"))

	c := p.Clone()
	c["url"] = "changed"
	assert.Equal(t, "http://example.test", p["url"])
}
