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

/*
Package engine wires the stages together:

	resolve -> interpret (find loops) -> per loop:
	    decompile -> generate -> encode -> map -> call

Every buffer of the pipeline is owned by one Engine and reused between
compilation units, so an Engine must not be used concurrently.
*/
package engine

import (
	"fmt"
	"io"

	"github.com/dc0d/onexit"
	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/launix-de/loopjit/asm"
	"github.com/launix-de/loopjit/expr"
	"github.com/launix-de/loopjit/fault"
	"github.com/launix-de/loopjit/inst"
	"github.com/launix-de/loopjit/interp"
	"github.com/launix-de/loopjit/jit"
)

// Unit is one compiled loop. Body points into the decompiler's arena and
// is only valid until the next Compile; everything else is owned by the unit.
type Unit struct {
	ID         uuid.UUID
	Loop       interp.Loop
	Start, End int
	Body       *expr.Body
	Escapes    []inst.Symbol
	Asm        []asm.Instr
	Code       *asm.Code
}

// Result is the outcome of calling a unit: the final value of every
// escape, in escape order.
type Result struct {
	Unit   *Unit
	Region *jit.Region
	Values []int64
}

type Report struct {
	Loops   []interp.Loop
	Units   []*Unit
	Results []*Result
}

type Engine struct {
	Config Config
	Out    io.Writer
	Trace  *Tracefile // optional

	abi        asm.ABI
	decompiler *expr.Decompiler
	generator  *asm.Generator
	encoder    *asm.Encoder
	prog       *inst.Program
	machine    *interp.Machine
	regions    []*jit.Region
}

func New(cfg Config, out io.Writer) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	abi, err := asm.ABIByName(cfg.JIT.ABI)
	if err != nil {
		return nil, err
	}
	code, err := cfg.CodeBytes()
	if err != nil {
		return nil, err
	}
	return &Engine{
		Config:     cfg,
		Out:        out,
		abi:        abi,
		decompiler: expr.NewDecompiler(cfg.exprLimits()),
		generator:  asm.NewGenerator(abi, cfg.Limits.Assembly),
		encoder:    asm.NewEncoder(cfg.asmLimits(code)),
	}, nil
}

// Program returns the program of the last Run.
func (e *Engine) Program() *inst.Program {
	return e.prog
}

// Machine returns the interpreter of the last Run.
func (e *Engine) Machine() *interp.Machine {
	return e.machine
}

// Load resolves prog and interprets it, which detects its loops. The
// program's own output goes to Out.
func (e *Engine) Load(prog *inst.Program) error {
	err := e.Trace.Duration("resolve", "pipeline", func() error {
		return prog.Resolve(e.Config.instLimits())
	})
	if err != nil {
		return err
	}
	m := interp.New(prog, e.Config.interpLimits(), e.Out)
	if err := e.Trace.Duration("interpret", "pipeline", m.Run); err != nil {
		return err
	}
	e.prog = prog
	e.machine = m
	log.Infof("interpreted %d instructions (%d symbols) in %d steps, %d loops", prog.Len(), prog.Syms.Len(), m.Steps(), m.Loops().Len())
	return nil
}

// Run loads prog, then compiles every loop in header order and, when the
// JIT is enabled, runs it from the state the interpreter had when it
// first reached the loop header.
func (e *Engine) Run(prog *inst.Program) (*Report, error) {
	if err := e.Load(prog); err != nil {
		return nil, err
	}
	if e.Config.Dump.Listing {
		if err := prog.WriteAnnotated(e.Out, e.machine.Jumps()); err != nil {
			return nil, err
		}
	}
	report := &Report{Loops: e.machine.Loops().All()}
	for _, loop := range report.Loops {
		unit, err := e.Compile(loop)
		if err != nil {
			return report, fmt.Errorf("loop at %d: %w", loop.Header, err)
		}
		report.Units = append(report.Units, unit)
		if !e.Config.JIT.Enabled {
			continue
		}
		env, _ := e.machine.Entry(loop.Header)
		res, err := e.Execute(unit, env)
		if err != nil {
			return report, fmt.Errorf("loop at %d: %w", loop.Header, err)
		}
		report.Results = append(report.Results, res)
		e.printResult(res)
		if e.Config.JIT.Verify {
			if err := e.Verify(res, env); err != nil {
				return report, fmt.Errorf("loop at %d: %w", loop.Header, err)
			}
		}
	}
	return report, nil
}

// Compile turns one detected loop of the loaded program into machine code.
func (e *Engine) Compile(loop interp.Loop) (*Unit, error) {
	if e.prog == nil {
		return nil, fault.New(fault.Structure, "no program loaded")
	}
	prog := e.prog
	start, end, err := loop.Range(prog)
	if err != nil {
		return nil, err
	}
	u := &Unit{ID: uuid.New(), Loop: loop, Start: start, End: end}
	if e.Config.Dump.Exprs || e.Config.Dump.Asm || e.Config.Dump.Hex {
		fmt.Fprintf(e.Out, "\n%d -> %d\n", start, end)
	}

	err = e.Trace.Duration("decompile", "pipeline", func() (err error) {
		u.Body, err = e.decompiler.Decompile(prog, start, end)
		return
	})
	if err != nil {
		return nil, err
	}
	u.Escapes = append([]inst.Symbol(nil), u.Body.Escapes...)
	if e.Config.Dump.Exprs {
		fmt.Fprintln(e.Out)
		if err := u.Body.Write(e.Out, prog.Syms); err != nil {
			return nil, err
		}
	}

	err = e.Trace.Duration("generate", "pipeline", func() (err error) {
		u.Asm, err = e.generator.Generate(u.Body, prog.Syms)
		return
	})
	if err != nil {
		return nil, err
	}
	if e.Config.Dump.Asm {
		fmt.Fprintln(e.Out)
		if err := asm.WriteListing(e.Out, prog.Syms, u.Asm); err != nil {
			return nil, err
		}
	}

	err = e.Trace.Duration("encode", "pipeline", func() (err error) {
		u.Code, err = e.encoder.Encode(u.Asm)
		return
	})
	if err != nil {
		return nil, err
	}
	if e.Config.Dump.Hex {
		fmt.Fprintln(e.Out)
		if err := u.Code.Dump(e.Out); err != nil {
			return nil, err
		}
	}
	log.Infof("compiled loop %d..%d as unit %s: %d statements, %d instructions, %s, %d escapes",
		start, end, u.ID, len(u.Body.Stmts), len(u.Asm), units.BytesSize(float64(len(u.Code.Bytes))), len(u.Escapes))
	return u, nil
}

// Execute maps the unit's code and calls it with one pointer per escape,
// seeded from env. The region stays mapped until Close or process exit.
func (e *Engine) Execute(u *Unit, env interp.Env) (*Result, error) {
	if e.abi.Name != asm.GoABI.Name {
		return nil, fault.New(fault.Unsupported, "code for the %s convention cannot be called in-process", e.abi.Name)
	}
	values := make([]int64, len(u.Escapes))
	ptrs := make([]*int64, len(u.Escapes))
	for i, sym := range u.Escapes {
		v, ok := env.Get(sym)
		if !ok {
			return nil, fault.New(fault.Unresolved, "variable %q has no value when the loop is entered", e.prog.Syms.Name(sym))
		}
		values[i] = v
		ptrs[i] = &values[i]
	}
	var region *jit.Region
	err := e.Trace.Duration("map", "jit", func() (err error) {
		region, err = jit.Map(u.Code.Bytes)
		return
	})
	if err != nil {
		return nil, err
	}
	e.regions = append(e.regions, region)
	onexit.Register(func() { region.Release() })

	if err := e.Trace.Duration("call", "jit", func() error { return region.Call(ptrs...) }); err != nil {
		return nil, err
	}
	log.Infof("unit %s ran in region %s", u.ID, region.ID)
	return &Result{Unit: u, Region: region, Values: values}, nil
}

// Verify interprets the unit's range from env and compares the escapes
// with what the machine code produced.
func (e *Engine) Verify(res *Result, env interp.Env) error {
	u := res.Unit
	oracle := interp.New(e.prog, e.Config.interpLimits(), io.Discard)
	want, err := oracle.RunRange(u.Start, u.End, env)
	if err != nil {
		return err
	}
	for i, sym := range u.Escapes {
		v, _ := want.Get(sym)
		if v != res.Values[i] {
			return fault.New(fault.Structure, "unit %s: %s is %d, the interpreter computes %d",
				u.ID, e.prog.Syms.Name(sym), res.Values[i], v)
		}
	}
	log.Infof("unit %s verified against the interpreter", u.ID)
	return nil
}

func (e *Engine) printResult(res *Result) {
	fmt.Fprintln(e.Out)
	for i, sym := range res.Unit.Escapes {
		fmt.Fprintf(e.Out, "%s = %d\n", e.prog.Syms.Name(sym), res.Values[i])
	}
}

// Close unmaps every region this engine created.
func (e *Engine) Close() error {
	var first error
	for _, r := range e.regions {
		if err := r.Release(); err != nil && first == nil {
			first = err
		}
	}
	e.regions = nil
	return first
}
