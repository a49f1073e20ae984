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

// Package inst holds the bytecode program: instructions, interned names,
// label resolution and the listing printer.
package inst

import "fmt"

type Op uint8

const (
	HALT Op = iota
	LABEL
	ALLOC
	LOAD
	STORE
	PUSH
	JMP
	JZ
	LT
	EQ
	AND
	ADD
	PRINTLN
)

var opNames = [...]string{
	HALT:    "halt",
	LABEL:   "label",
	ALLOC:   "alloc",
	LOAD:    "load",
	STORE:   "store",
	PUSH:    "push",
	JMP:     "jmp",
	JZ:      "jz",
	LT:      "lt",
	EQ:      "eq",
	AND:     "and",
	ADD:     "add",
	PRINTLN: "println",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Named reports whether the operand of o is a variable or label name.
func (o Op) Named() bool {
	switch o {
	case LABEL, ALLOC, LOAD, STORE, JMP, JZ:
		return true
	}
	return false
}

func (o Op) Jump() bool {
	return o == JMP || o == JZ
}

// Binary reports whether o pops two words and pushes one.
func (o Op) Binary() bool {
	switch o {
	case LT, EQ, AND, ADD:
		return true
	}
	return false
}

// Inst is one bytecode instruction. Sym is set for named operands
// (jumps keep the label they were written with), Int for PUSH and Addr
// for jumps once the program is resolved.
type Inst struct {
	Op   Op
	Sym  Symbol
	Int  int64
	Addr int
}

// Program is an ordered instruction sequence plus its symbol table.
// Instruction indices are the addresses used by jumps and loop records.
type Program struct {
	Insts    []Inst
	Syms     *Symbols
	labels   map[Symbol]int
	resolved bool
}

func NewProgram() *Program {
	return &Program{Syms: NewSymbols()}
}

func (p *Program) Len() int {
	return len(p.Insts)
}

func (p *Program) Resolved() bool {
	return p.resolved
}

// Name returns the source name of an instruction's operand.
func (p *Program) Name(in Inst) string {
	return p.Syms.Name(in.Sym)
}

// LabelAt returns the label defined at addr, if addr holds a LABEL.
func (p *Program) LabelAt(addr int) (Symbol, bool) {
	if addr < 0 || addr >= len(p.Insts) || p.Insts[addr].Op != LABEL {
		return 0, false
	}
	return p.Insts[addr].Sym, true
}

// Address returns the instruction index of a resolved label.
func (p *Program) Address(label Symbol) (int, bool) {
	addr, ok := p.labels[label]
	return addr, ok
}

// Builder appends instructions to a program in source order.
type Builder struct {
	prog *Program
}

func NewBuilder() *Builder {
	return &Builder{prog: NewProgram()}
}

func (b *Builder) named(op Op, name string) *Builder {
	b.prog.Insts = append(b.prog.Insts, Inst{Op: op, Sym: b.prog.Syms.Intern(name)})
	return b
}

func (b *Builder) Label(name string) *Builder { return b.named(LABEL, name) }
func (b *Builder) Alloc(name string) *Builder { return b.named(ALLOC, name) }
func (b *Builder) Load(name string) *Builder  { return b.named(LOAD, name) }
func (b *Builder) Store(name string) *Builder { return b.named(STORE, name) }
func (b *Builder) Jmp(label string) *Builder  { return b.named(JMP, label) }
func (b *Builder) Jz(label string) *Builder   { return b.named(JZ, label) }

func (b *Builder) Push(v int64) *Builder {
	b.prog.Insts = append(b.prog.Insts, Inst{Op: PUSH, Int: v})
	return b
}

// Op appends an instruction without operand (halt, lt, eq, and, add, println).
func (b *Builder) Op(op Op) *Builder {
	b.prog.Insts = append(b.prog.Insts, Inst{Op: op})
	return b
}

func (b *Builder) Program() *Program {
	return b.prog
}
