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
	"math"
	"strconv"
	"strings"
)

// Params holds command parameters as decoded from JSON: objects are
// map[string]interface{}, arrays []interface{} and numbers float64.
type Params map[string]interface{}

// Has reports whether key is present, even with a null value.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the string value of key.
func (p Params) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

// StringOr returns the string value of key, or def when key is not a
// string.
func (p Params) StringOr(key, def string) string {
	if s, ok := p.String(key); ok {
		return s
	}
	return def
}

// Bool returns the boolean value of key. Missing keys are false.
func (p Params) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// Int parses the value of key as an integer the way a script engine
// would: numbers are truncated, numeric strings are parsed. It returns an
// InvalidArgument error for anything else.
func (p Params) Int(key string) (int64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, NewError(InvalidArgument, "Not a Number")
	}
	return ToInt(v)
}

// ToInt converts a decoded JSON value to an integer, see Params.Int.
func ToInt(v interface{}) (int64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		if err == nil {
			return i, nil
		}
		if f, err = n.Float64(); err != nil {
			return 0, NewError(InvalidArgument, "Not a Number")
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, NewError(InvalidArgument, "Not a Number")
		}
		f = parsed
	default:
		return 0, NewError(InvalidArgument, "Not a Number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, NewError(InvalidArgument, "Not a Number")
	}
	return int64(f), nil
}

// Slice returns the array value of key.
func (p Params) Slice(key string) []interface{} {
	s, _ := p[key].([]interface{})
	return s
}

// Map returns the object value of key.
func (p Params) Map(key string) Params {
	switch m := p[key].(type) {
	case map[string]interface{}:
		return Params(m)
	case Params:
		return m
	}
	return nil
}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}
