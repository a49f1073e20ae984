//go:build unix

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

package jit

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/launix-de/loopjit/asm"
	"github.com/launix-de/loopjit/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, list ...asm.Instr) []byte {
	t.Helper()
	code, err := asm.NewEncoder(asm.Limits{Code: 256, Labels: 4, Relocs: 4}).Encode(list)
	require.NoError(t, err)
	return code.Bytes
}

func requireAMD64(t *testing.T) {
	if !Supported {
		t.Skipf("generated code cannot run on %s", runtime.GOARCH)
	}
}

func TestCallOneArgument(t *testing.T) {
	requireAMD64(t)
	r, err := Map(encode(t,
		asm.Instr{Op: asm.Add, A: asm.M(asm.RAX, 0), B: asm.I(5)},
		asm.Instr{Op: asm.Ret},
	))
	require.NoError(t, err)
	defer r.Release()

	x := int64(37)
	require.NoError(t, r.Call(&x))
	assert.Equal(t, int64(42), x)
	require.NoError(t, r.Call(&x))
	assert.Equal(t, int64(47), x)
}

func TestCallArgumentOrder(t *testing.T) {
	requireAMD64(t)
	// *b += *a; *d += *c
	r, err := Map(encode(t,
		asm.Instr{Op: asm.Mov, A: asm.R(asm.R8), B: asm.M(asm.RAX, 0)},
		asm.Instr{Op: asm.Add, A: asm.M(asm.RBX, 0), B: asm.R(asm.R8)},
		asm.Instr{Op: asm.Mov, A: asm.R(asm.R9), B: asm.M(asm.RCX, 0)},
		asm.Instr{Op: asm.Add, A: asm.M(asm.RDI, 0), B: asm.R(asm.R9)},
		asm.Instr{Op: asm.Ret},
	))
	require.NoError(t, err)
	defer r.Release()

	a, b, c, d := int64(1), int64(10), int64(100), int64(1000)
	require.NoError(t, r.Call(&a, &b, &c, &d))
	assert.Equal(t, []int64{1, 11, 100, 1100}, []int64{a, b, c, d})
}

func TestProtection(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs /proc/self/maps")
	}
	r, err := Map([]byte{0xC3})
	require.NoError(t, err)
	defer r.Release()
	assert.Equal(t, 1, r.Size)
	assert.NotEqual(t, [16]byte{}, [16]byte(r.ID))

	f, err := os.Open("/proc/self/maps")
	require.NoError(t, err)
	defer f.Close()
	entry := r.Entry()
	found := false
	s := bufio.NewScanner(f)
	for s.Scan() {
		var lo, hi uintptr
		var perms string
		if _, err := fmt.Sscanf(s.Text(), "%x-%x %s", &lo, &hi, &perms); err != nil {
			continue
		}
		if entry >= lo && entry < hi {
			found = true
			assert.True(t, strings.HasPrefix(perms, "r-x"), "permissions %s", perms)
		}
	}
	assert.True(t, found)
}

func TestReleaseAndErrors(t *testing.T) {
	_, err := Map(nil)
	assert.True(t, fault.Is(err, fault.Platform))

	r, err := Map([]byte{0xC3})
	require.NoError(t, err)
	require.NoError(t, r.Release())
	assert.True(t, r.Released())
	assert.Zero(t, r.Entry())
	require.NoError(t, r.Release())
	assert.True(t, fault.Is(r.Call(), fault.Platform))
}

func TestTooManyArguments(t *testing.T) {
	requireAMD64(t)
	r, err := Map([]byte{0xC3})
	require.NoError(t, err)
	defer r.Release()
	var v int64
	err = r.Call(&v, &v, &v, &v, &v)
	assert.True(t, fault.Is(err, fault.Capacity))
}
