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
	"encoding/hex"
	"fmt"
	"io"
	"maps"

	"github.com/launix-de/loopjit/fault"
	"github.com/launix-de/loopjit/inst"
)

type Limits struct {
	Instrs int // assembly list
	Code   int // bytes
	Labels int
	Relocs int
}

// Code is the linked machine code of one loop body.
type Code struct {
	Bytes  []byte
	Labels map[inst.Symbol]int
	Relocs []Reloc
}

// Dump writes a hex dump of the code.
func (c *Code) Dump(w io.Writer) error {
	_, err := io.WriteString(w, hex.Dump(c.Bytes))
	return err
}

// Encoder serializes instruction lists. The buffers are reused between
// calls; the returned Code is a copy.
type Encoder struct {
	w *Writer
}

func NewEncoder(lim Limits) *Encoder {
	return &Encoder{w: NewWriter(lim.Code, lim.Labels, lim.Relocs)}
}

func (e *Encoder) Encode(list []Instr) (*Code, error) {
	w := e.w
	w.Reset()
	for i, in := range list {
		if err := e.instr(in); err != nil {
			return nil, fmt.Errorf("instruction %d (%s) at byte %d: %w", i, in.Op, w.Pos(), err)
		}
		if err := w.Err(); err != nil {
			return nil, err
		}
	}
	if err := w.ResolveFixups(); err != nil {
		return nil, err
	}
	return &Code{
		Bytes:  append([]byte(nil), w.Bytes()...),
		Labels: maps.Clone(w.labels),
		Relocs: append([]Reloc(nil), w.relocs...),
	}, nil
}

func (e *Encoder) instr(in Instr) error {
	w := e.w
	a, b := in.A, in.B
	switch in.Op {
	case LabelDef:
		if a.Kind == LabelArg && b.Kind == None {
			w.MarkLabel(a.Label)
			return nil
		}
	case Ret:
		if a.Kind == None && b.Kind == None {
			w.emitRet()
			return nil
		}
	case Jmp, Jnz, Jge:
		if a.Kind != LabelArg || b.Kind != None {
			break
		}
		switch in.Op {
		case Jmp:
			w.emitJmp(a.Label)
		case Jnz:
			w.emitJcc(CcNE, a.Label)
		case Jge:
			w.emitJcc(CcGE, a.Label)
		}
		return nil
	case Mov:
		switch {
		case a.Kind == RegArg && b.Kind == RegArg:
			w.emitAluRegReg(opMovRmReg, a.Reg, b.Reg)
			return nil
		case a.Kind == RegArg && b.Kind == MemArg:
			w.emitRegMemOp(opMovRegRm, a.Reg, b.Reg, b.Disp)
			return nil
		case a.Kind == RegArg && b.Kind == ImmArg:
			w.emitImmReg(opMovRmImm, 0, a.Reg, b.Imm)
			return nil
		}
	case And:
		switch {
		case a.Kind == RegArg && b.Kind == ImmArg:
			w.emitImmReg(opGrp1Imm32, extAnd, a.Reg, b.Imm)
			return nil
		case a.Kind == RegArg && b.Kind == RegArg:
			w.emitAluRegReg(opAndRmReg, a.Reg, b.Reg)
			return nil
		case a.Kind == RegArg && b.Kind == MemArg:
			w.emitRegMemOp(opAndRegRm, a.Reg, b.Reg, b.Disp)
			return nil
		}
	case Test:
		if a.Kind == RegArg && b.Kind == RegArg {
			w.emitAluRegReg(opTestRmReg, a.Reg, b.Reg)
			return nil
		}
	case Cmp:
		switch {
		case a.Kind == MemArg && b.Kind == ImmArg:
			w.emitImmMem(opGrp1Imm32, extCmp, a.Reg, a.Disp, b.Imm)
			return nil
		case a.Kind == RegArg && b.Kind == ImmArg:
			w.emitImmReg(opGrp1Imm32, extCmp, a.Reg, b.Imm)
			return nil
		case a.Kind == RegArg && b.Kind == RegArg:
			w.emitAluRegReg(opCmpRmReg, a.Reg, b.Reg)
			return nil
		case a.Kind == MemArg && b.Kind == RegArg:
			w.emitRegMemOp(opCmpRmReg, b.Reg, a.Reg, a.Disp)
			return nil
		case a.Kind == RegArg && b.Kind == MemArg:
			w.emitRegMemOp(opCmpRegRm, a.Reg, b.Reg, b.Disp)
			return nil
		}
	case Add:
		switch {
		case a.Kind == MemArg && b.Kind == ImmArg:
			w.emitImmMem(opGrp1Imm32, extAdd, a.Reg, a.Disp, b.Imm)
			return nil
		case a.Kind == RegArg && b.Kind == ImmArg:
			w.emitImmReg(opGrp1Imm32, extAdd, a.Reg, b.Imm)
			return nil
		case a.Kind == MemArg && b.Kind == RegArg:
			w.emitRegMemOp(opAddRmReg, b.Reg, a.Reg, a.Disp)
			return nil
		case a.Kind == RegArg && b.Kind == RegArg:
			w.emitAluRegReg(opAddRmReg, a.Reg, b.Reg)
			return nil
		}
	}
	return fault.New(fault.Unsupported, "no encoding for %s with operands %s, %s", in.Op, kindName(a.Kind), kindName(b.Kind))
}

func kindName(k OperandKind) string {
	switch k {
	case None:
		return "none"
	case RegArg:
		return "reg"
	case MemArg:
		return "mem"
	case ImmArg:
		return "imm"
	case LabelArg:
		return "label"
	}
	return "?"
}
