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

// ResolveFrame picks the child frame addressed by a frame switch. An
// element selects the frame it is the container of. A string id matches
// frame names before element ids, and a number is an index into frames.
// A nil id without element addresses the top-level document and is
// reported as (nil, true).
func ResolveFrame(frames []Frame, id interface{}, element Element) (Frame, bool) {
	if element != nil {
		for _, f := range frames {
			if el := f.Element(); el != nil && el.SameAs(element) {
				return f, true
			}
		}
		return nil, false
	}

	switch v := id.(type) {
	case nil:
		return nil, true
	case string:
		for _, f := range frames {
			if f.Name() == v {
				return f, true
			}
		}
		for _, f := range frames {
			if f.ElementID() == v {
				return f, true
			}
		}
		return nil, false
	default:
		i, err := ToInt(v)
		if err != nil || i < 0 || i >= int64(len(frames)) {
			return nil, false
		}
		return frames[i], true
	}
}
