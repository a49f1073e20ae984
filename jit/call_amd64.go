/*
Copyright (C) 2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package jit

import (
	"unsafe"

	"github.com/launix-de/loopjit/fault"
)

// Supported reports whether Call can run code on this architecture.
const Supported = true

// Call runs the region with one pointer per argument. The code must
// follow Go's register ABI and return with RET.
func (r *Region) Call(ptrs ...*int64) error {
	if r.fv == nil {
		return fault.New(fault.Platform, "call of released region %s", r.ID)
	}
	if len(ptrs) > MaxArgs {
		return fault.New(fault.Capacity, "%d arguments, at most %d can be passed", len(ptrs), MaxArgs)
	}
	fn := unsafe.Pointer(r.fv) // struct { fnptr }
	switch len(ptrs) {
	case 0:
		(*(*func())(unsafe.Pointer(&fn)))()
	case 1:
		(*(*func(*int64))(unsafe.Pointer(&fn)))(ptrs[0])
	case 2:
		(*(*func(*int64, *int64))(unsafe.Pointer(&fn)))(ptrs[0], ptrs[1])
	case 3:
		(*(*func(*int64, *int64, *int64))(unsafe.Pointer(&fn)))(ptrs[0], ptrs[1], ptrs[2])
	case 4:
		(*(*func(*int64, *int64, *int64, *int64))(unsafe.Pointer(&fn)))(ptrs[0], ptrs[1], ptrs[2], ptrs[3])
	}
	return nil
}
