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

package inst

import (
	"bytes"
	"strings"
	"testing"

	"github.com/launix-de/loopjit/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = Limits{Insts: 256, Labels: 16}

func TestResolveSample(t *testing.T) {
	p := Sample()
	require.NoError(t, p.Resolve(testLimits))
	require.True(t, p.Resolved())

	// every jump lands on the LABEL with the same name
	for i, in := range p.Insts {
		if !in.Op.Jump() {
			continue
		}
		target := p.Insts[in.Addr]
		assert.Equal(t, LABEL, target.Op, "jump at %d", i)
		assert.Equal(t, in.Sym, target.Sym, "jump at %d", i)
	}
	assert.Equal(t, 25, p.Insts[6].Addr)  // jz while_end
	assert.Equal(t, 18, p.Insts[12].Addr) // jz if_else
	assert.Equal(t, 23, p.Insts[17].Addr) // jmp if_end
	assert.Equal(t, 2, p.Insts[24].Addr)  // jmp while_start

	addr, ok := p.Address(p.Insts[24].Sym)
	assert.True(t, ok)
	assert.Equal(t, 2, addr)

	// idempotent
	require.NoError(t, p.Resolve(testLimits))

	// x and four labels
	assert.Equal(t, 5, p.Syms.Len())
}

func TestOpClasses(t *testing.T) {
	for _, op := range []Op{LT, EQ, AND, ADD} {
		assert.True(t, op.Binary(), "%s", op)
		assert.False(t, op.Named(), "%s", op)
	}
	for _, op := range []Op{HALT, LABEL, ALLOC, LOAD, STORE, PUSH, JMP, JZ, PRINTLN} {
		assert.False(t, op.Binary(), "%s", op)
	}
	assert.True(t, JZ.Jump())
	assert.False(t, STORE.Jump())
}

func TestResolveErrors(t *testing.T) {
	undefined := NewBuilder().Jmp("nowhere").Op(HALT).Program()
	err := undefined.Resolve(testLimits)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Unresolved))
	assert.Contains(t, err.Error(), "nowhere")

	dup := NewBuilder().Label("a").Label("a").Op(HALT).Program()
	assert.True(t, fault.Is(dup.Resolve(testLimits), fault.Structure))

	long := Sample()
	assert.True(t, fault.Is(long.Resolve(Limits{Insts: 10, Labels: 16}), fault.Capacity))

	labels := Sample()
	assert.True(t, fault.Is(labels.Resolve(Limits{Insts: 256, Labels: 3}), fault.Capacity))
}

func TestBlocks(t *testing.T) {
	p := Sample()
	blocks := p.Blocks()
	assert.Equal(t, []Block{
		{0, 2}, {2, 7}, {7, 13}, {13, 18}, {18, 23}, {23, 25}, {25, 29},
	}, blocks)
}

func TestAnnotatedListing(t *testing.T) {
	p := Sample()
	require.NoError(t, p.Resolve(testLimits))
	jumps := make([]int, p.Len())
	jumps[2] = 7
	var b bytes.Buffer
	require.NoError(t, p.WriteAnnotated(&b, jumps))
	out := b.String()
	assert.Contains(t, out, "  2 -    7 --+    while_start:\n")
	assert.Contains(t, out, "  0 -        |        push        0\n")
	assert.Contains(t, out, " 24 -        |        jmp         while_start\n")
	assert.Equal(t, len(p.Blocks()), strings.Count(out, "\n\n")+1)
}

func TestParseSampleFile(t *testing.T) {
	p, err := ParseFile("testdata/sample.lj")
	require.NoError(t, err)
	want := Sample()
	require.Equal(t, want.Len(), p.Len())
	for i := range want.Insts {
		assert.Equal(t, want.Format(want.Insts[i]), p.Format(p.Insts[i]), "instruction %d", i)
	}
}

func TestListingRoundTrip(t *testing.T) {
	want := Sample()
	var b bytes.Buffer
	require.NoError(t, want.WriteListing(&b))
	p, err := Parse("listing", b.String())
	require.NoError(t, err)
	require.Equal(t, want.Len(), p.Len())
	for i := range want.Insts {
		assert.Equal(t, want.Insts[i].Op, p.Insts[i].Op)
		assert.Equal(t, want.Insts[i].Int, p.Insts[i].Int)
		assert.Equal(t, want.Name(want.Insts[i]), p.Name(p.Insts[i]))
	}
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		src  string
		kind fault.Kind
	}{
		{"push\n", fault.Structure},
		{"load 3\n", fault.Structure},
		{"halt x\n", fault.Structure},
		{"jump x\n", fault.Unsupported},
		{"push 1 2\n", fault.Structure},
	} {
		_, err := Parse("bad", tc.src)
		require.Error(t, err, tc.src)
		assert.True(t, fault.Is(err, tc.kind), "%q: %v", tc.src, err)
	}
}
