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

/*
Package jit places machine code into executable memory and calls it.

A region is mapped read/write, filled, and then switched to read/exec
exactly once; it is never writable and executable at the same time.
The code is entered through a Go func value, so it receives its
arguments in Go's internal register ABI:

	RAX, RBX, RCX, RDI = pointer arguments 1..4
	R14 = current g, R15 = GOT base, X15 = zero  (must be preserved)

This is the only package of the module that imports unsafe.
*/
package jit

import (
	"unsafe"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("loopjit.jit")

// MaxArgs is the number of pointer arguments Call can pass.
const MaxArgs = 4

// funcval mirrors the runtime layout a func value points to.
type funcval struct {
	fn unsafe.Pointer
}

// Region is one mapped block of executable code.
type Region struct {
	ID   uuid.UUID
	Size int

	mem []byte
	fv  *funcval
}

// Released reports whether the region has been unmapped.
func (r *Region) Released() bool {
	return r.mem == nil
}

// Entry returns the address of the first instruction.
func (r *Region) Entry() uintptr {
	if r.mem == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(&r.mem[0]))
}
