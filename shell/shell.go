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

package shell

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/launix-de/loopjit/asm"
	"github.com/launix-de/loopjit/engine"
	"github.com/launix-de/loopjit/fault"
	"github.com/launix-de/loopjit/inst"
	"github.com/launix-de/loopjit/interp"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("loopjit.shell")

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

type command struct {
	args string
	help string
	run  func(s *Shell, w io.Writer, args []string) error
}

var commands map[string]command

// names in help order
var commandNames = []string{"run", "list", "loops", "expr", "asm", "hex", "jit", "verify", "load", "help", "quit"}

func init() {
	commands = map[string]command{
		"run":    {"", "reload the program and run the whole pipeline", (*Shell).run},
		"list":   {"", "print the program with jump counts", (*Shell).list},
		"loops":  {"", "print the detected loops", (*Shell).loops},
		"expr":   {"<header>", "print the decompiled loop", (*Shell).expr},
		"asm":    {"<header>", "print the generated assembly", (*Shell).asm},
		"hex":    {"<header>", "print the encoded machine code", (*Shell).hex},
		"jit":    {"<header> [name=value ...]", "run the compiled loop", (*Shell).jit},
		"verify": {"<header>", "compare the compiled loop with the interpreter", (*Shell).verify},
		"load":   {"<file>", "load a program listing", (*Shell).load},
		"help":   {"", "print this help", (*Shell).help},
		"quit":   {"", "leave the shell", func(*Shell, io.Writer, []string) error { return ErrQuit }},
	}
}

// Shell executes commands against one engine. Commands are serialized,
// so a shell can be shared between the prompt and a file watcher.
type Shell struct {
	Engine *engine.Engine
	Path   string // program listing, "" runs the built-in sample

	mu sync.Mutex
}

func New(e *engine.Engine, path string) *Shell {
	return &Shell{Engine: e, Path: path}
}

// Exec runs one command line and writes its output to w.
func (s *Shell) Exec(line string, w io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, ok := commands[fields[0]]
	if !ok {
		return fault.New(fault.Unsupported, "unknown command %q, try help", fields[0])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.Engine.Out
	s.Engine.Out = w
	defer func() { s.Engine.Out = out }()
	log.Debugf("exec %s", line)
	return cmd.run(s, w, fields[1:])
}

func (s *Shell) program() (*inst.Program, error) {
	if s.Path == "" {
		return inst.Sample(), nil
	}
	return inst.ParseFile(s.Path)
}

// loaded makes sure the engine has interpreted a program. The program's
// own output is not shown for an implicit load.
func (s *Shell) loaded() error {
	if s.Engine.Program() != nil {
		return nil
	}
	prog, err := s.program()
	if err != nil {
		return err
	}
	out := s.Engine.Out
	s.Engine.Out = io.Discard
	defer func() { s.Engine.Out = out }()
	return s.Engine.Load(prog)
}

func (s *Shell) run(w io.Writer, args []string) error {
	prog, err := s.program()
	if err != nil {
		return err
	}
	_, err = s.Engine.Run(prog)
	return err
}

func (s *Shell) list(w io.Writer, args []string) error {
	if err := s.loaded(); err != nil {
		return err
	}
	return s.Engine.Program().WriteAnnotated(w, s.Engine.Machine().Jumps())
}

func (s *Shell) loops(w io.Writer, args []string) error {
	if err := s.loaded(); err != nil {
		return err
	}
	all := s.Engine.Machine().Loops().All()
	if len(all) == 0 {
		fmt.Fprintln(w, "no loops")
	}
	for _, l := range all {
		start, end, err := l.Range(s.Engine.Program())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d <- %d  [%d, %d)\n", l.Header, l.Backedge, start, end)
	}
	return nil
}

func (s *Shell) loop(args []string) (interp.Loop, error) {
	if len(args) == 0 {
		return interp.Loop{}, fault.New(fault.Structure, "missing loop header")
	}
	if err := s.loaded(); err != nil {
		return interp.Loop{}, err
	}
	header, err := strconv.Atoi(args[0])
	if err != nil {
		return interp.Loop{}, fault.Wrap(fault.Structure, err, "loop header %q", args[0])
	}
	l, ok := s.Engine.Machine().Loops().Get(header)
	if !ok {
		return interp.Loop{}, fault.New(fault.Unresolved, "no loop starts at %d", header)
	}
	return l, nil
}

// unit compiles the loop named by args without printing the stage dumps.
func (s *Shell) unit(args []string) (*engine.Unit, error) {
	l, err := s.loop(args)
	if err != nil {
		return nil, err
	}
	dump := s.Engine.Config.Dump
	s.Engine.Config.Dump = engine.DumpConfig{}
	defer func() { s.Engine.Config.Dump = dump }()
	return s.Engine.Compile(l)
}

func (s *Shell) expr(w io.Writer, args []string) error {
	u, err := s.unit(args)
	if err != nil {
		return err
	}
	return u.Body.Write(w, s.Engine.Program().Syms)
}

func (s *Shell) asm(w io.Writer, args []string) error {
	u, err := s.unit(args)
	if err != nil {
		return err
	}
	return asm.WriteListing(w, s.Engine.Program().Syms, u.Asm)
}

func (s *Shell) hex(w io.Writer, args []string) error {
	u, err := s.unit(args)
	if err != nil {
		return err
	}
	return u.Code.Dump(w)
}

// env is the entry snapshot of the loop header, overridden by name=value
// assignments.
func (s *Shell) env(l interp.Loop, assign []string) (interp.Env, error) {
	entry, _ := s.Engine.Machine().Entry(l.Header)
	env := entry.Clone()
	syms := s.Engine.Program().Syms
	for _, a := range assign {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fault.New(fault.Structure, "expected name=value, got %q", a)
		}
		sym, ok := syms.Lookup(name)
		if !ok {
			return nil, fault.New(fault.Unresolved, "unknown variable %q", name)
		}
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fault.Wrap(fault.Structure, err, "value of %s", name)
		}
		if !env.Set(sym, v) {
			env = append(env, interp.Binding{Sym: sym, Val: v})
		}
	}
	return env, nil
}

func (s *Shell) jit(w io.Writer, args []string) error {
	u, err := s.unit(args)
	if err != nil {
		return err
	}
	env, err := s.env(u.Loop, args[1:])
	if err != nil {
		return err
	}
	res, err := s.Engine.Execute(u, env)
	if err != nil {
		return err
	}
	syms := s.Engine.Program().Syms
	for i, sym := range u.Escapes {
		fmt.Fprintf(w, "%s = %d\n", syms.Name(sym), res.Values[i])
	}
	return nil
}

func (s *Shell) verify(w io.Writer, args []string) error {
	u, err := s.unit(args)
	if err != nil {
		return err
	}
	env, err := s.env(u.Loop, args[1:])
	if err != nil {
		return err
	}
	res, err := s.Engine.Execute(u, env)
	if err != nil {
		return err
	}
	if err := s.Engine.Verify(res, env); err != nil {
		return err
	}
	fmt.Fprintf(w, "loop %d ok\n", u.Loop.Header)
	return nil
}

func (s *Shell) load(w io.Writer, args []string) error {
	if len(args) != 1 {
		return fault.New(fault.Structure, "load takes one file name")
	}
	prog, err := inst.ParseFile(args[0])
	if err != nil {
		return err
	}
	if err := s.Engine.Load(prog); err != nil {
		return err
	}
	s.Path = args[0]
	fmt.Fprintf(w, "loaded %s: %d instructions, %d loops\n", args[0], prog.Len(), s.Engine.Machine().Loops().Len())
	return nil
}

func (s *Shell) help(w io.Writer, args []string) error {
	for _, name := range commandNames {
		c := commands[name]
		fmt.Fprintf(w, "  %-28s %s\n", strings.TrimSpace(name+" "+c.args), c.help)
	}
	return nil
}
