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

package asm

import (
	"fmt"

	"github.com/launix-de/loopjit/fault"
)

// Reg is an amd64 general purpose register in hardware encoding order.
type Reg uint8

const (
	RAX Reg = 0
	RCX Reg = 1
	RDX Reg = 2
	RBX Reg = 3
	RSP Reg = 4
	RBP Reg = 5
	RSI Reg = 6
	RDI Reg = 7
	R8  Reg = 8
	R9  Reg = 9
	R10 Reg = 10
	R11 Reg = 11
	R12 Reg = 12
	R13 Reg = 13
	R14 Reg = 14
	R15 Reg = 15
)

var regNames = [...]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

func (r Reg) String() string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("reg(%d)", uint8(r))
}

// ABI fixes where the escape pointers arrive and which registers the
// generated code may clobber for temporaries.
type ABI struct {
	Name    string
	Args    []Reg
	Scratch []Reg
}

// GoABI is Go's internal register ABI on amd64: the generated code is
// called through a func value, so pointers arrive in RAX, RBX, RCX, RDI.
// R14 (current g) and R15 are never touched.
var GoABI = ABI{
	Name:    "go",
	Args:    []Reg{RAX, RBX, RCX, RDI},
	Scratch: []Reg{R8, R9, R10, R11},
}

// SysVABI is the C calling convention.
var SysVABI = ABI{
	Name:    "sysv",
	Args:    []Reg{RDI, RSI, RDX, RCX},
	Scratch: []Reg{R8, R9, R10, R11},
}

// ABIByName returns GoABI or SysVABI.
func ABIByName(name string) (ABI, error) {
	switch name {
	case "", GoABI.Name:
		return GoABI, nil
	case SysVABI.Name:
		return SysVABI, nil
	}
	return ABI{}, fault.New(fault.Unsupported, "unknown calling convention %q", name)
}

// regPool is a bitmap of free scratch registers.
type regPool struct {
	free uint16
	all  uint16
}

func newRegPool(regs []Reg) regPool {
	var p regPool
	for _, r := range regs {
		p.all |= 1 << r
	}
	p.free = p.all
	return p
}

// alloc picks the lowest free register and marks it used.
func (p *regPool) alloc() (Reg, error) {
	if p.free == 0 {
		return 0, fault.New(fault.Capacity, "no free scratch register")
	}
	bit := p.free & (-p.free)
	p.free &^= bit
	r := Reg(0)
	for b := bit; b > 1; b >>= 1 {
		r++
	}
	return r, nil
}

func (p *regPool) reset() {
	p.free = p.all
}
