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

// Package interp runs a resolved program and watches its control flow
// for loops.
package interp

import (
	"fmt"
	"io"

	"github.com/launix-de/loopjit/fault"
	"github.com/launix-de/loopjit/inst"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("loopjit.interp")

type Limits struct {
	Stack int
	Vars  int
	Steps int // 0 = unlimited
}

// Binding is one declared variable.
type Binding struct {
	Sym inst.Symbol
	Val int64
}

// Env holds the variables in declaration order.
type Env []Binding

// find returns the index of the most recently declared binding of sym.
func (e Env) find(sym inst.Symbol) int {
	for i := len(e) - 1; i >= 0; i-- {
		if e[i].Sym == sym {
			return i
		}
	}
	return -1
}

func (e Env) Get(sym inst.Symbol) (int64, bool) {
	if i := e.find(sym); i >= 0 {
		return e[i].Val, true
	}
	return 0, false
}

// Set overwrites the visible binding of sym.
func (e Env) Set(sym inst.Symbol, v int64) bool {
	if i := e.find(sym); i >= 0 {
		e[i].Val = v
		return true
	}
	return false
}

func (e Env) Clone() Env {
	return append(Env(nil), e...)
}

// Machine is the bounded stack interpreter. One machine runs one
// program; Run resets all state.
type Machine struct {
	Prog   *inst.Program
	Limits Limits
	Out    io.Writer

	stack   []int64
	env     Env
	jumps   []int
	loops   *LoopTable
	entries map[int]Env
	steps   int
	record  bool
}

func New(prog *inst.Program, lim Limits, out io.Writer) *Machine {
	return &Machine{
		Prog:   prog,
		Limits: lim,
		Out:    out,
		loops:  NewLoopTable(),
	}
}

func (m *Machine) reset(env Env) {
	m.stack = make([]int64, 0, m.Limits.Stack)
	m.env = env
	m.steps = 0
}

// Run executes the program from address 0 until HALT while counting jump
// targets and recording loops.
func (m *Machine) Run() error {
	if !m.Prog.Resolved() {
		return fault.New(fault.Structure, "program is not resolved")
	}
	m.reset(make(Env, 0, m.Limits.Vars))
	m.jumps = make([]int, m.Prog.Len())
	m.entries = make(map[int]Env)
	m.loops.Clear()
	m.record = true
	defer func() { m.record = false }()

	pc, err := m.exec(0, func(int) bool { return true })
	if err != nil {
		return err
	}
	if pc >= m.Prog.Len() {
		return fault.New(fault.Structure, "program ran past its last instruction without halt")
	}
	log.Debugf("halted at %d after %d steps, %d loops", pc, m.steps, m.loops.Len())
	return nil
}

// RunRange interprets [start, end) from start with a copy of env until
// control leaves the range and returns the resulting environment. Jump
// counts and loop records are left untouched.
func (m *Machine) RunRange(start, end int, env Env) (Env, error) {
	if !m.Prog.Resolved() {
		return nil, fault.New(fault.Structure, "program is not resolved")
	}
	if start < 0 || end > m.Prog.Len() || start >= end {
		return nil, fault.New(fault.Structure, "invalid range %d..%d", start, end)
	}
	m.reset(env.Clone())
	pc, err := m.exec(start, func(pc int) bool { return pc >= start && pc < end })
	if err != nil {
		return nil, err
	}
	if pc >= start && pc < end {
		return nil, fault.New(fault.Structure, "range %d..%d halted inside the loop", start, end)
	}
	if len(m.stack) != 0 {
		return nil, fault.New(fault.Structure, "range %d..%d left %d words on the stack", start, end, len(m.stack))
	}
	return m.env, nil
}

// exec runs from pc while inside(pc) holds. It returns the address of
// the HALT it stopped at, or the first address outside.
func (m *Machine) exec(pc int, inside func(int) bool) (int, error) {
	insts := m.Prog.Insts
	for pc < len(insts) && inside(pc) {
		if m.Limits.Steps > 0 && m.steps >= m.Limits.Steps {
			return pc, fault.New(fault.Capacity, "step limit %d reached at %d", m.Limits.Steps, pc)
		}
		m.steps++
		in := insts[pc]
		switch in.Op {
		case inst.HALT:
			return pc, nil
		case inst.LABEL:
			if m.record {
				if _, ok := m.entries[pc]; !ok {
					m.entries[pc] = m.env.Clone()
				}
			}
			pc++
		case inst.ALLOC:
			v, err := m.pop()
			if err != nil {
				return pc, err
			}
			if len(m.env) == m.Limits.Vars {
				return pc, fault.Full("variable environment", m.Limits.Vars)
			}
			m.env = append(m.env, Binding{Sym: in.Sym, Val: v})
			pc++
		case inst.LOAD:
			v, ok := m.env.Get(in.Sym)
			if !ok {
				return pc, fault.New(fault.Unresolved, "load at %d: undeclared variable %q", pc, m.Prog.Name(in))
			}
			if err := m.push(v); err != nil {
				return pc, err
			}
			pc++
		case inst.STORE:
			v, err := m.pop()
			if err != nil {
				return pc, err
			}
			if !m.env.Set(in.Sym, v) {
				return pc, fault.New(fault.Unresolved, "store at %d: undeclared variable %q", pc, m.Prog.Name(in))
			}
			pc++
		case inst.PUSH:
			if err := m.push(in.Int); err != nil {
				return pc, err
			}
			pc++
		case inst.JMP:
			if err := m.jump(pc, in.Addr); err != nil {
				return pc, err
			}
			pc = in.Addr
		case inst.JZ:
			v, err := m.pop()
			if err != nil {
				return pc, err
			}
			if v != 0 {
				pc++
				continue
			}
			if err := m.jump(pc, in.Addr); err != nil {
				return pc, err
			}
			pc = in.Addr
		case inst.LT, inst.EQ, inst.AND, inst.ADD:
			r, err := m.pop()
			if err != nil {
				return pc, err
			}
			l, err := m.pop()
			if err != nil {
				return pc, err
			}
			m.stack = append(m.stack, binary(in.Op, l, r))
			pc++
		case inst.PRINTLN:
			v, err := m.pop()
			if err != nil {
				return pc, err
			}
			if m.Out != nil {
				fmt.Fprintln(m.Out, v)
			}
			pc++
		default:
			return pc, fault.New(fault.Unsupported, "unknown instruction %s at %d", in.Op, pc)
		}
	}
	return pc, nil
}

// binary applies a two-operand instruction. LT and ADD are signed, EQ and
// AND compare or mask the raw 64-bit words.
func binary(op inst.Op, l, r int64) int64 {
	switch op {
	case inst.LT:
		return flag(l < r)
	case inst.EQ:
		return flag(uint64(l) == uint64(r))
	case inst.AND:
		return int64(uint64(l) & uint64(r))
	}
	return l + r
}

func flag(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (m *Machine) jump(from, to int) error {
	if !m.record {
		return nil
	}
	m.jumps[to]++
	if to < from {
		return m.loops.Record(to, from)
	}
	return nil
}

func (m *Machine) push(v int64) error {
	if len(m.stack) == m.Limits.Stack {
		return fault.Full("operand stack", m.Limits.Stack)
	}
	m.stack = append(m.stack, v)
	return nil
}

func (m *Machine) pop() (int64, error) {
	if len(m.stack) == 0 {
		return 0, fault.New(fault.Capacity, "operand stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

// Jumps returns, per address, how often a jump landed there.
func (m *Machine) Jumps() []int {
	return m.jumps
}

func (m *Machine) Loops() *LoopTable {
	return m.loops
}

// Env returns the variable environment as the last run left it.
func (m *Machine) Env() Env {
	return m.env
}

// Entry returns the environment at the first arrival at the LABEL at addr.
func (m *Machine) Entry(addr int) (Env, bool) {
	env, ok := m.entries[addr]
	return env, ok
}

func (m *Machine) Steps() int {
	return m.steps
}
