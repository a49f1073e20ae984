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
	"math"

	"github.com/launix-de/loopjit/expr"
	"github.com/launix-de/loopjit/fault"
	"github.com/launix-de/loopjit/inst"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("loopjit.asm")

// Generator selects instructions for a decompiled loop body. It knows a
// handful of statement shapes and rejects everything else.
//
// Escapes live in memory behind the argument registers: escape i is
// qword [Args[i]]. Temporaries come from the scratch pool, which is
// refilled before every statement.
type Generator struct {
	ABI   ABI
	Limit int // maximum number of emitted instructions

	syms *inst.Symbols
	args map[inst.Symbol]Reg
	pool regPool
	out  []Instr
}

func NewGenerator(abi ABI, limit int) *Generator {
	return &Generator{ABI: abi, Limit: limit}
}

func (g *Generator) Generate(body *expr.Body, syms *inst.Symbols) ([]Instr, error) {
	if len(body.Escapes) > len(g.ABI.Args) {
		return nil, fault.New(fault.Capacity, "%d escaping variables, the %s convention passes %d", len(body.Escapes), g.ABI.Name, len(g.ABI.Args))
	}
	g.syms = syms
	g.args = make(map[inst.Symbol]Reg, len(body.Escapes))
	for i, sym := range body.Escapes {
		g.args[sym] = g.ABI.Args[i]
	}
	g.pool = newRegPool(g.ABI.Scratch)
	g.out = make([]Instr, 0, g.Limit)
	for _, s := range body.Stmts {
		g.pool.reset()
		if err := g.statement(s); err != nil {
			return nil, err
		}
	}
	log.Debugf("generated %d instructions for %d statements", len(g.out), len(body.Stmts))
	return g.out, nil
}

func (g *Generator) emit(op Op, a, b Operand) error {
	if len(g.out) == g.Limit {
		return fault.Full("assembly list", g.Limit)
	}
	g.out = append(g.out, Instr{Op: op, A: a, B: b})
	return nil
}

func (g *Generator) statement(s *expr.Expr) error {
	switch s.Kind {
	case expr.Ret:
		return g.emit(Ret, Operand{}, Operand{})
	case expr.Label:
		return g.emit(LabelDef, L(s.Sym), Operand{})
	case expr.Jmp:
		return g.emit(Jmp, L(s.Sym), Operand{})
	case expr.Jz:
		return g.branch(s)
	case expr.Store:
		return g.store(s)
	}
	return g.unsupported(s)
}

// branch lowers jz(l, eq(v, 0)) and jz(l, lt(a, b)).
func (g *Generator) branch(s *expr.Expr) error {
	cond := s.L
	switch {
	case cond.Kind == expr.Eq && cond.R.Kind == expr.Int && cond.R.Int == 0:
		v, err := g.value(cond.L)
		if err != nil {
			return err
		}
		if v, err = g.inReg(v); err != nil {
			return err
		}
		if err := g.emit(Test, v, v); err != nil {
			return err
		}
		return g.emit(Jnz, L(s.Sym), Operand{})
	case cond.Kind == expr.Lt:
		a, err := g.value(cond.L)
		if err != nil {
			return err
		}
		b, err := g.value(cond.R)
		if err != nil {
			return err
		}
		// cmp needs a register or memory on the left and at most one memory operand
		if a.Kind == ImmArg {
			if a, err = g.inReg(a); err != nil {
				return err
			}
		}
		if a.Kind == MemArg && b.Kind == MemArg {
			if b, err = g.inReg(b); err != nil {
				return err
			}
		}
		if err := g.emit(Cmp, a, b); err != nil {
			return err
		}
		return g.emit(Jge, L(s.Sym), Operand{})
	}
	return g.unsupported(s)
}

// store lowers store(n, add(load(n), x)) to an add on the variable's memory.
func (g *Generator) store(s *expr.Expr) error {
	v := s.L
	if v.Kind != expr.Add || v.L.Kind != expr.Load || v.L.Sym != s.Sym {
		return g.unsupported(s)
	}
	dst, err := g.value(v.L)
	if err != nil {
		return err
	}
	x, err := g.value(v.R)
	if err != nil {
		return err
	}
	if x.Kind == MemArg {
		if x, err = g.inReg(x); err != nil {
			return err
		}
	}
	return g.emit(Add, dst, x)
}

// value lowers an operand expression.
func (g *Generator) value(e *expr.Expr) (Operand, error) {
	switch e.Kind {
	case expr.Int:
		if e.Int < math.MinInt32 || e.Int > math.MaxInt32 {
			return Operand{}, fault.New(fault.Unsupported, "literal %d does not fit a 32 bit immediate", e.Int)
		}
		return I(int32(e.Int)), nil
	case expr.Load:
		r, ok := g.args[e.Sym]
		if !ok {
			return Operand{}, fault.New(fault.Unresolved, "variable %q is not an escape", g.syms.Name(e.Sym))
		}
		return M(r, 0), nil
	case expr.And:
		a, err := g.value(e.L)
		if err != nil {
			return Operand{}, err
		}
		r, err := g.pool.alloc()
		if err != nil {
			return Operand{}, err
		}
		if err := g.emit(Mov, R(r), a); err != nil {
			return Operand{}, err
		}
		b, err := g.value(e.R)
		if err != nil {
			return Operand{}, err
		}
		if err := g.emit(And, R(r), b); err != nil {
			return Operand{}, err
		}
		return R(r), nil
	}
	return Operand{}, g.unsupported(e)
}

// inReg moves a memory or immediate operand into a scratch register.
func (g *Generator) inReg(o Operand) (Operand, error) {
	if o.Kind == RegArg {
		return o, nil
	}
	r, err := g.pool.alloc()
	if err != nil {
		return Operand{}, err
	}
	if err := g.emit(Mov, R(r), o); err != nil {
		return Operand{}, err
	}
	return R(r), nil
}

func (g *Generator) unsupported(e *expr.Expr) error {
	return fault.New(fault.Unsupported, "no lowering for %s", expr.Format(g.syms, e))
}
