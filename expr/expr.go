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

// Package expr rebuilds expression trees from the instructions of a
// loop body.
package expr

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/launix-de/loopjit/fault"
	"github.com/launix-de/loopjit/inst"
)

type Kind uint8

const (
	Ident Kind = iota
	Int
	Ret
	Label
	Load
	Store
	Jmp
	Jz
	Lt
	Eq
	And
	Add
)

var kindNames = [...]string{
	Ident: "ident",
	Int:   "int",
	Ret:   "ret",
	Label: "label",
	Load:  "load",
	Store: "store",
	Jmp:   "jmp",
	Jz:    "jz",
	Lt:    "lt",
	Eq:    "eq",
	And:   "and",
	Add:   "add",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Expr is one node. Sym names the variable or label of Ident, Label,
// Load, Store, Jmp and Jz. Store and Jz keep their operand in L, the
// binary kinds use L and R.
type Expr struct {
	Kind Kind
	Sym  inst.Symbol
	Int  int64
	L, R *Expr
}

// Arena hands out nodes from one fixed-size block. Nodes stay valid until
// the next Reset.
type Arena struct {
	nodes []Expr
}

func NewArena(capacity int) *Arena {
	return &Arena{nodes: make([]Expr, 0, capacity)}
}

func (a *Arena) New(e Expr) (*Expr, error) {
	if len(a.nodes) == cap(a.nodes) {
		return nil, fault.Full("expression arena", cap(a.nodes))
	}
	a.nodes = append(a.nodes, e)
	return &a.nodes[len(a.nodes)-1], nil
}

func (a *Arena) Reset() {
	a.nodes = a.nodes[:0]
}

func (a *Arena) Len() int {
	return len(a.nodes)
}

// Format renders e as a call-style term, e.g. store(x, add(load(x), 29)).
func Format(syms *inst.Symbols, e *Expr) string {
	var b strings.Builder
	format(&b, syms, e)
	return b.String()
}

func format(b *strings.Builder, syms *inst.Symbols, e *Expr) {
	switch e.Kind {
	case Ident:
		b.WriteString(syms.Name(e.Sym))
	case Int:
		fmt.Fprintf(b, "%d", e.Int)
	case Ret:
		b.WriteString("ret()")
	case Label, Load, Jmp:
		fmt.Fprintf(b, "%s(%s)", e.Kind, syms.Name(e.Sym))
	case Store, Jz:
		fmt.Fprintf(b, "%s(%s, ", e.Kind, syms.Name(e.Sym))
		format(b, syms, e.L)
		b.WriteByte(')')
	case Lt, Eq, And, Add:
		fmt.Fprintf(b, "%s(", e.Kind)
		format(b, syms, e.L)
		b.WriteString(", ")
		format(b, syms, e.R)
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "<%s>", e.Kind)
	}
}

// Body is a decompiled loop: its statements in execution order, always
// ending in Ret, and the variables it touches in the order they were
// met walking backward from the end of the loop.
type Body struct {
	Start, End int
	Stmts      []*Expr
	Escapes    []inst.Symbol
}

// Escape returns the argument index of sym.
func (b *Body) Escape(sym inst.Symbol) (int, bool) {
	for i, s := range b.Escapes {
		if s == sym {
			return i, true
		}
	}
	return 0, false
}

func (b *Body) Write(w io.Writer, syms *inst.Symbols) error {
	bw := bufio.NewWriter(w)
	for _, s := range b.Stmts {
		fmt.Fprintln(bw, Format(syms, s))
	}
	return bw.Flush()
}
