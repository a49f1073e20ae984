//go:build unix

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

	"github.com/google/uuid"
	"github.com/launix-de/loopjit/fault"
	"golang.org/x/sys/unix"
)

// Map copies code into a fresh anonymous mapping of exactly len(code)
// bytes and makes it executable.
func Map(code []byte) (*Region, error) {
	if len(code) == 0 {
		return nil, fault.New(fault.Platform, "refusing to map empty code")
	}
	mem, err := unix.Mmap(-1, 0, len(code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fault.Wrap(fault.Platform, err, "mmap %d bytes", len(code))
	}
	copy(mem, code)
	// change to PROT_READ|PROT_EXEC
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mem)
		return nil, fault.Wrap(fault.Platform, err, "mprotect %d bytes", len(code))
	}
	r := &Region{
		ID:   uuid.New(),
		Size: len(code),
		mem:  mem,
		fv:   &funcval{fn: unsafe.Pointer(&mem[0])},
	}
	log.Debugf("mapped region %s: %d bytes at %#x", r.ID, r.Size, r.Entry())
	return r, nil
}

// Release unmaps the region. Releasing twice is a no-op.
func (r *Region) Release() error {
	if r.mem == nil {
		return nil
	}
	mem := r.mem
	r.mem = nil
	r.fv = nil
	if err := unix.Munmap(mem); err != nil {
		return fault.Wrap(fault.Platform, err, "munmap region %s", r.ID)
	}
	log.Debugf("released region %s", r.ID)
	return nil
}
