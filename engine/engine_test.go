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

package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/launix-de/loopjit/fault"
	"github.com/launix-de/loopjit/inst"
	"github.com/launix-de/loopjit/interp"
	"github.com/launix-de/loopjit/jit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	n, err := cfg.CodeBytes()
	require.NoError(t, err)
	assert.Equal(t, 4096, n)
	assert.Equal(t, 4, cfg.Limits.Escapes)
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "loopjit.toml", `
[limits]
stack = 16
code = "64KiB"

[dump]
hex = true

[jit]
verify = true

[log]
verbosity = 2
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Limits.Stack)
	assert.Equal(t, 8, cfg.Limits.Variables) // default kept
	assert.True(t, cfg.Dump.Hex)
	assert.True(t, cfg.Dump.Listing)
	assert.True(t, cfg.JIT.Verify)
	assert.Equal(t, 2, cfg.Log.Verbosity)
	n, err := cfg.CodeBytes()
	require.NoError(t, err)
	assert.Equal(t, 64<<10, n)
}

func TestLoadConfigErrors(t *testing.T) {
	for name, content := range map[string]string{
		"unknown key": "[limits]\nstak = 3\n",
		"bad syntax":  "[limits\n",
		"code size":   "[limits]\ncode = \"lots\"\n",
		"zero stack":  "[limits]\nstack = 0\n",
		"abi":         "[jit]\nabi = \"ms\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "c.toml", content))
			require.Error(t, err)
		})
	}
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestRunSample(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.JIT.Enabled = jit.Supported
	cfg.JIT.Verify = true
	e, err := New(cfg, &out)
	require.NoError(t, err)
	defer e.Close()

	report, err := e.Run(inst.Sample())
	require.NoError(t, err)
	require.Equal(t, []interp.Loop{{Header: 2, Backedge: 24}}, report.Loops)
	require.Len(t, report.Units, 1)

	u := report.Units[0]
	assert.Equal(t, 2, u.Start)
	assert.Equal(t, 26, u.End)
	assert.Len(t, u.Code.Bytes, 57)
	assert.Equal(t, []string{"x"}, names(e.Program(), u.Escapes))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "1017\n"), text)
	assert.Contains(t, text, "\n2 -> 26\n")
	assert.Contains(t, text, "jz(while_end, lt(load(x), 1000))")
	assert.Contains(t, text, "        cmp [rax], 1000\n")

	if !jit.Supported {
		assert.Empty(t, report.Results)
		return
	}
	require.Len(t, report.Results, 1)
	assert.Equal(t, []int64{1017}, report.Results[0].Values)
	assert.Contains(t, text, "\nx = 1017\n")
}

func names(p *inst.Program, syms []inst.Symbol) []string {
	r := make([]string, len(syms))
	for i, s := range syms {
		r[i] = p.Syms.Name(s)
	}
	return r
}

// loop bodies that exercise every lowering rule, compiled, called and
// checked against the interpreter
var roundTrips = []struct {
	name    string
	src     string
	loop    interp.Loop
	escapes []string
	values  []int64
	output  string
	asm     []string
}{
	{
		name: "three escapes",
		src: `
    push 0
    alloc i
    push 0
    alloc s
    push 7
    alloc m
loop:
    load i
    load m
    lt
    jz done
    load i
    load m
    and
    push 0
    eq
    jz odd
    load s
    load i
    add
    store s
    jmp next
odd:
    load s
    push -100
    add
    store s
next:
    load i
    push 1
    add
    store i
    jmp loop
done:
    load s
    println
    halt
`,
		loop:    interp.Loop{Header: 6, Backedge: 32},
		escapes: []string{"i", "s", "m"},
		values:  []int64{7, -600, 7},
		output:  "-600\n",
		asm: []string{
			"        mov r8, [rcx]\n        cmp [rax], r8\n",
			"        mov r8, [rax]\n        and r8, [rcx]\n        test r8, r8\n",
			"        mov r8, [rax]\n        add [rbx], r8\n",
		},
	},
	{
		name: "immediate on the left",
		src: `
    push 5
    alloc n
    push 0
    alloc t
top:
    push 0
    load n
    lt
    jz end
    load t
    push 3
    add
    store t
    load n
    push -1
    add
    store n
    jmp top
end:
    load t
    println
    halt
`,
		loop:    interp.Loop{Header: 4, Backedge: 16},
		escapes: []string{"n", "t"},
		values:  []int64{0, 15},
		output:  "15\n",
		asm: []string{
			"        mov r8, 0\n        cmp r8, [rax]\n",
			"        add [rbx], 3\n",
			"        add [rax], -1\n",
		},
	},
}

func TestRoundTrip(t *testing.T) {
	for _, tc := range roundTrips {
		t.Run(tc.name, func(t *testing.T) {
			prog, err := inst.Parse(tc.name, tc.src)
			require.NoError(t, err)

			var out bytes.Buffer
			cfg := DefaultConfig()
			cfg.Dump = DumpConfig{Asm: true}
			cfg.JIT.Enabled = jit.Supported
			cfg.JIT.Verify = true
			e, err := New(cfg, &out)
			require.NoError(t, err)
			defer e.Close()

			report, err := e.Run(prog)
			require.NoError(t, err)
			require.Equal(t, []interp.Loop{tc.loop}, report.Loops)
			require.Len(t, report.Units, 1)
			assert.Equal(t, tc.escapes, names(prog, report.Units[0].Escapes))

			text := out.String()
			assert.True(t, strings.HasPrefix(text, tc.output), text)
			for _, seq := range tc.asm {
				assert.Contains(t, text, seq)
			}

			if !jit.Supported {
				return
			}
			require.Len(t, report.Results, 1)
			assert.Equal(t, tc.values, report.Results[0].Values)
			for i, name := range tc.escapes {
				assert.Contains(t, text, fmt.Sprintf("\n%s = %d\n", name, tc.values[i]))
			}
		})
	}
}

func TestRunWithoutJIT(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.JIT.Enabled = false
	cfg.Dump = DumpConfig{}
	e, err := New(cfg, &out)
	require.NoError(t, err)

	report, err := e.Run(inst.Sample())
	require.NoError(t, err)
	assert.Len(t, report.Units, 1)
	assert.Empty(t, report.Results)
	assert.Equal(t, "1017\n", out.String())
}

func TestExecuteFromOtherState(t *testing.T) {
	if !jit.Supported {
		t.Skip("generated code cannot run here")
	}
	cfg := DefaultConfig()
	cfg.Dump = DumpConfig{}
	e, err := New(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.Load(inst.Sample()))

	u, err := e.Compile(interp.Loop{Header: 2, Backedge: 24})
	require.NoError(t, err)
	env := interp.Env{{Sym: u.Escapes[0], Val: 990}}
	res, err := e.Execute(u, env)
	require.NoError(t, err)
	assert.Equal(t, []int64{1019}, res.Values)
	require.NoError(t, e.Verify(res, env))

	res.Values[0]++
	assert.True(t, fault.Is(e.Verify(res, env), fault.Structure))

	require.NoError(t, e.Close())
	assert.True(t, res.Region.Released())
}

func TestExecuteRejectsForeignABI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JIT.ABI = "sysv"
	cfg.Dump = DumpConfig{}
	e, err := New(cfg, &bytes.Buffer{})
	require.NoError(t, err)

	report, err := e.Run(inst.Sample())
	assert.True(t, fault.Is(err, fault.Unsupported), "%v", err)
	require.Len(t, report.Units, 1)
	assert.Len(t, report.Units[0].Code.Bytes, 57)
}

func TestCompileWithoutProgram(t *testing.T) {
	e, err := New(DefaultConfig(), &bytes.Buffer{})
	require.NoError(t, err)
	_, err = e.Compile(interp.Loop{Header: 2, Backedge: 24})
	assert.True(t, fault.Is(err, fault.Structure))
}

func TestRunCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limits.Instructions = 10
	e, err := New(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	_, err = e.Run(inst.Sample())
	assert.True(t, fault.Is(err, fault.Capacity))
}

func TestTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	tr, err := CreateTrace(path)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.JIT.Enabled = false
	e, err := New(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	e.Trace = tr
	_, err = e.Run(inst.Sample())
	require.NoError(t, err)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var events []traceEvent
	require.NoError(t, json.Unmarshal(raw, &events))
	var stages []string
	for _, ev := range events {
		if ev.Ph == "B" {
			stages = append(stages, ev.Name)
		}
	}
	assert.Equal(t, []string{"resolve", "interpret", "decompile", "generate", "encode"}, stages)
}
