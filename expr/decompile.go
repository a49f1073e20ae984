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

package expr

import (
	"github.com/launix-de/loopjit/fault"
	"github.com/launix-de/loopjit/inst"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("loopjit.expr")

type Limits struct {
	Exprs   int
	Stmts   int
	Escapes int
}

// Decompiler turns a straight stack-code range back into expressions.
// The arena is reused between calls, so a Body is only valid until the
// next Decompile.
type Decompiler struct {
	Limits Limits

	arena   *Arena
	prog    *inst.Program
	start   int
	cursor  int // instructions below cursor are not consumed yet
	escapes []inst.Symbol
}

func NewDecompiler(lim Limits) *Decompiler {
	return &Decompiler{Limits: lim, arena: NewArena(lim.Exprs)}
}

// Decompile walks [start, end) of a resolved program from the back.
// Every instruction is consumed exactly once: an operator first takes its
// right operand, then its left one, from the instructions before it.
func (d *Decompiler) Decompile(prog *inst.Program, start, end int) (*Body, error) {
	if !prog.Resolved() {
		return nil, fault.New(fault.Structure, "program is not resolved")
	}
	if start < 0 || end > prog.Len() || start >= end {
		return nil, fault.New(fault.Structure, "invalid range %d..%d", start, end)
	}
	d.arena.Reset()
	d.prog = prog
	d.start = start
	d.cursor = end
	d.escapes = make([]inst.Symbol, 0, d.Limits.Escapes)

	ret, err := d.arena.New(Expr{Kind: Ret})
	if err != nil {
		return nil, err
	}
	// built back to front, reversed at the end
	stmts := make([]*Expr, 0, d.Limits.Stmts)
	stmts = append(stmts, ret)
	for d.cursor > start {
		s, err := d.node()
		if err != nil {
			return nil, err
		}
		if len(stmts) == d.Limits.Stmts {
			return nil, fault.Full("statement list", d.Limits.Stmts)
		}
		stmts = append(stmts, s)
	}
	for i, j := 0, len(stmts)-1; i < j; i, j = i+1, j-1 {
		stmts[i], stmts[j] = stmts[j], stmts[i]
	}
	log.Debugf("decompiled %d..%d into %d statements, %d nodes", start, end, len(stmts), d.arena.Len())
	return &Body{Start: start, End: end, Stmts: stmts, Escapes: d.escapes}, nil
}

func (d *Decompiler) node() (*Expr, error) {
	if d.cursor <= d.start {
		return nil, fault.New(fault.Structure, "operand of instruction %d lies before the loop start %d", d.cursor, d.start)
	}
	d.cursor--
	at := d.cursor
	in := d.prog.Insts[at]
	switch in.Op {
	case inst.LABEL:
		return d.arena.New(Expr{Kind: Label, Sym: in.Sym})
	case inst.LOAD:
		if err := d.escape(in.Sym); err != nil {
			return nil, err
		}
		return d.arena.New(Expr{Kind: Load, Sym: in.Sym})
	case inst.STORE:
		if err := d.escape(in.Sym); err != nil {
			return nil, err
		}
		e, err := d.arena.New(Expr{Kind: Store, Sym: in.Sym})
		if err != nil {
			return nil, err
		}
		if e.L, err = d.node(); err != nil {
			return nil, err
		}
		return e, nil
	case inst.PUSH:
		return d.arena.New(Expr{Kind: Int, Int: in.Int})
	case inst.JMP, inst.JZ:
		label, err := d.target(at, in)
		if err != nil {
			return nil, err
		}
		if in.Op == inst.JMP {
			return d.arena.New(Expr{Kind: Jmp, Sym: label})
		}
		e, err := d.arena.New(Expr{Kind: Jz, Sym: label})
		if err != nil {
			return nil, err
		}
		if e.L, err = d.node(); err != nil {
			return nil, err
		}
		return e, nil
	case inst.HALT, inst.ALLOC, inst.PRINTLN:
		return nil, fault.New(fault.Unsupported, "%s at %d cannot be compiled inside a loop", in.Op, at)
	}
	if in.Op.Binary() {
		e, err := d.arena.New(Expr{Kind: binaryKind[in.Op]})
		if err != nil {
			return nil, err
		}
		if e.R, err = d.node(); err != nil {
			return nil, err
		}
		if e.L, err = d.node(); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, fault.New(fault.Unsupported, "unknown instruction %s at %d", in.Op, at)
}

var binaryKind = map[inst.Op]Kind{
	inst.LT:  Lt,
	inst.EQ:  Eq,
	inst.AND: And,
	inst.ADD: Add,
}

// target returns the label a jump lands on. Backward jumps may only
// return to the loop header.
func (d *Decompiler) target(at int, in inst.Inst) (inst.Symbol, error) {
	label, ok := d.prog.LabelAt(in.Addr)
	if !ok {
		return 0, fault.New(fault.Structure, "%s at %d lands on %d, which is no label", in.Op, at, in.Addr)
	}
	if in.Addr < at && in.Addr != d.start {
		return 0, fault.New(fault.Structure, "%s at %d jumps back to %d inside the loop at %d (nested loop)", in.Op, at, in.Addr, d.start)
	}
	return label, nil
}

func (d *Decompiler) escape(sym inst.Symbol) error {
	for _, s := range d.escapes {
		if s == sym {
			return nil
		}
	}
	if len(d.escapes) == d.Limits.Escapes {
		return fault.Full("escape set", d.Limits.Escapes)
	}
	d.escapes = append(d.escapes, sym)
	return nil
}
