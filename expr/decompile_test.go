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
	"bytes"
	"testing"

	"github.com/launix-de/loopjit/fault"
	"github.com/launix-de/loopjit/inst"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = Limits{Exprs: 32, Stmts: 16, Escapes: 8}

func resolved(t *testing.T, p *inst.Program) *inst.Program {
	t.Helper()
	require.NoError(t, p.Resolve(inst.Limits{Insts: 256, Labels: 16}))
	return p
}

func TestDecompileSample(t *testing.T) {
	p := resolved(t, inst.Sample())
	d := NewDecompiler(testLimits)
	body, err := d.Decompile(p, 2, 26)
	require.NoError(t, err)

	var b bytes.Buffer
	require.NoError(t, body.Write(&b, p.Syms))
	assert.Equal(t, `label(while_start)
jz(while_end, lt(load(x), 1000))
jz(if_else, eq(and(load(x), 1), 0))
store(x, add(load(x), 29))
jmp(if_end)
label(if_else)
store(x, add(load(x), -3))
label(if_end)
jmp(while_start)
label(while_end)
ret()
`, b.String())

	x, _ := p.Syms.Lookup("x")
	assert.Equal(t, []inst.Symbol{x}, body.Escapes)
	i, ok := body.Escape(x)
	assert.True(t, ok)
	assert.Equal(t, 0, i)
}

func TestEscapeOrder(t *testing.T) {
	// the last statement is met first, so b comes before a
	p := resolved(t, inst.NewBuilder().
		Push(0).Alloc("a").Push(0).Alloc("b").
		Label("top").
		Load("a").Push(1).Op(inst.ADD).Store("a").
		Load("b").Push(2).Op(inst.ADD).Store("b").
		Jmp("top").
		Op(inst.HALT).
		Program())
	body, err := NewDecompiler(testLimits).Decompile(p, 4, 14)
	require.NoError(t, err)
	a, _ := p.Syms.Lookup("a")
	bSym, _ := p.Syms.Lookup("b")
	assert.Equal(t, []inst.Symbol{bSym, a}, body.Escapes)
	assert.Equal(t, Ret, body.Stmts[len(body.Stmts)-1].Kind)
	assert.Equal(t, Label, body.Stmts[0].Kind)
}

func TestArenaReset(t *testing.T) {
	p := resolved(t, inst.Sample())
	d := NewDecompiler(testLimits)
	_, err := d.Decompile(p, 2, 26)
	require.NoError(t, err)
	n := d.arena.Len()
	_, err = d.Decompile(p, 2, 26)
	require.NoError(t, err)
	assert.Equal(t, n, d.arena.Len())
}

func TestDecompileErrors(t *testing.T) {
	sample := resolved(t, inst.Sample())
	printing := resolved(t, inst.NewBuilder().
		Push(0).Alloc("x").
		Label("top").
		Load("x").Op(inst.PRINTLN).
		Jmp("top").
		Op(inst.HALT).
		Program())
	nested := resolved(t, inst.NewBuilder().
		Push(0).Alloc("x").
		Label("outer").
		Label("inner").
		Jmp("inner").
		Jmp("outer").
		Op(inst.HALT).
		Program())
	for _, tc := range []struct {
		name       string
		prog       *inst.Program
		start, end int
		lim        Limits
		kind       fault.Kind
	}{
		// the first statement of the range needs an operand before start
		{"operand before start", sample, 4, 26, testLimits, fault.Structure},
		{"println", printing, 2, 6, testLimits, fault.Unsupported},
		{"nested loop", nested, 2, 6, testLimits, fault.Structure},
		{"arena", sample, 2, 26, Limits{Exprs: 10, Stmts: 16, Escapes: 8}, fault.Capacity},
		{"statements", sample, 2, 26, Limits{Exprs: 32, Stmts: 4, Escapes: 8}, fault.Capacity},
		{"escapes", sample, 2, 26, Limits{Exprs: 32, Stmts: 16, Escapes: 0}, fault.Capacity},
		{"empty range", sample, 5, 5, testLimits, fault.Structure},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDecompiler(tc.lim).Decompile(tc.prog, tc.start, tc.end)
			require.Error(t, err)
			assert.True(t, fault.Is(err, tc.kind), "%v", err)
		})
	}
}

func TestFormat(t *testing.T) {
	syms := inst.NewSymbols()
	x := syms.Intern("x")
	e := &Expr{Kind: Store, Sym: x, L: &Expr{Kind: Add, L: &Expr{Kind: Load, Sym: x}, R: &Expr{Kind: Int, Int: 29}}}
	assert.Equal(t, "store(x, add(load(x), 29))", Format(syms, e))
	assert.Equal(t, "x", Format(syms, &Expr{Kind: Ident, Sym: x}))
}
