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
	"testing"

	"github.com/stretchr/testify/assert"
)

type testElement struct {
	Element
	id string
}

func (e *testElement) SameAs(other Element) bool {
	o, ok := other.(*testElement)
	return ok && o.id == e.id
}

type testFrame struct {
	Frame
	name, elementID string
	el              *testElement
}

func (f *testFrame) Name() string      { return f.name }
func (f *testFrame) ElementID() string { return f.elementID }
func (f *testFrame) Element() Element  { return f.el }

func TestResolveFrame(t *testing.T) {
	t.Parallel()

	byID := &testFrame{elementID: "panel", el: &testElement{id: "a"}}
	byName := &testFrame{name: "panel", elementID: "devtools", el: &testElement{id: "b"}}
	frames := []Frame{byID, byName}

	tests := []struct {
		name    string
		id      interface{}
		element Element
		want    Frame
		ok      bool
	}{
		{name: "top", ok: true},
		{name: "name before element id", id: "panel", want: byName, ok: true},
		{name: "element id", id: "devtools", want: byName, ok: true},
		{name: "unknown string", id: "nope"},
		{name: "index", id: float64(0), want: byID, ok: true},
		{name: "index out of range", id: float64(2)},
		{name: "negative index", id: float64(-1)},
		{name: "element", element: &testElement{id: "a"}, want: byID, ok: true},
		{name: "element not a frame", element: &testElement{id: "c"}},
		{name: "element wins over id", id: "panel", element: &testElement{id: "a"}, want: byID, ok: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := ResolveFrame(frames, tt.id, tt.element)
			assert.Equal(t, tt.ok, ok)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Same(t, tt.want, got)
		})
	}
}
