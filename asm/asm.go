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

// Package asm lowers decompiled loop bodies to amd64 instructions and
// encodes them into machine code.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/launix-de/loopjit/inst"
)

type Op uint8

const (
	LabelDef Op = iota
	Mov
	Jmp
	Jnz
	Jge
	Test
	Cmp
	And
	Add
	Ret
)

var opNames = [...]string{
	LabelDef: "label",
	Mov:      "mov",
	Jmp:      "jmp",
	Jnz:      "jnz",
	Jge:      "jge",
	Test:     "test",
	Cmp:      "cmp",
	And:      "and",
	Add:      "add",
	Ret:      "ret",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

type OperandKind uint8

const (
	None OperandKind = iota
	RegArg
	MemArg // qword [Reg + Disp]
	ImmArg // sign-extended 32 bit
	LabelArg
)

type Operand struct {
	Kind  OperandKind
	Reg   Reg
	Disp  int32
	Imm   int32
	Label inst.Symbol
}

func R(r Reg) Operand                { return Operand{Kind: RegArg, Reg: r} }
func M(base Reg, disp int32) Operand { return Operand{Kind: MemArg, Reg: base, Disp: disp} }
func I(v int32) Operand              { return Operand{Kind: ImmArg, Imm: v} }
func L(label inst.Symbol) Operand    { return Operand{Kind: LabelArg, Label: label} }

// Instr is one machine instruction in Intel operand order (A is the
// destination).
type Instr struct {
	Op   Op
	A, B Operand
}

func formatOperand(b *strings.Builder, syms *inst.Symbols, o Operand) {
	switch o.Kind {
	case RegArg:
		b.WriteString(o.Reg.String())
	case MemArg:
		b.WriteByte('[')
		b.WriteString(o.Reg.String())
		if o.Disp < 0 {
			fmt.Fprintf(b, " - %d", -int64(o.Disp))
		} else if o.Disp > 0 {
			fmt.Fprintf(b, " + %d", o.Disp)
		}
		b.WriteByte(']')
	case ImmArg:
		fmt.Fprintf(b, "%d", o.Imm)
	case LabelArg:
		b.WriteString(syms.Name(o.Label))
	default:
		b.WriteString("?")
	}
}

// Format renders one instruction in the listing style, e.g.
// "        cmp [rdi], 1000".
func Format(syms *inst.Symbols, in Instr) string {
	var b strings.Builder
	switch in.Op {
	case LabelDef:
		b.WriteString("    ")
		formatOperand(&b, syms, in.A)
		b.WriteByte(':')
		return b.String()
	case Ret:
		return "        ret"
	}
	b.WriteString("        ")
	b.WriteString(in.Op.String())
	if in.A.Kind != None {
		b.WriteByte(' ')
		formatOperand(&b, syms, in.A)
	}
	if in.B.Kind != None {
		b.WriteString(", ")
		formatOperand(&b, syms, in.B)
	}
	return b.String()
}

func WriteListing(w io.Writer, syms *inst.Symbols, list []Instr) error {
	bw := bufio.NewWriter(w)
	for _, in := range list {
		fmt.Fprintln(bw, Format(syms, in))
	}
	return bw.Flush()
}
