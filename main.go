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
	loopjit finds hot loops by interpreting a stack bytecode program and
	compiles them to x86-64 machine code

*/
package main

import "os"
import "fmt"
import "flag"
import "time"
import "strings"
import "syscall"
import "os/signal"
import "crypto/rand"
import "github.com/google/uuid"
import "github.com/fsnotify/fsnotify"
import "github.com/tliron/commonlog"
import "github.com/launix-de/loopjit/engine"
import "github.com/launix-de/loopjit/fault"
import "github.com/launix-de/loopjit/shell"

var log = commonlog.GetLogger("loopjit")

var eng *engine.Engine
var trace *engine.Tracefile

// watch reruns the pipeline whenever filename changes on disk.
func watch(sh *shell.Shell, filename string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fault.Wrap(fault.Platform, err, "watch %s", filename)
	}
	go func() {
		for {
			select {
			case <-watcher.Events:
				// flush all other events
				for {
					time.Sleep(10 * time.Millisecond) // delay a bit, so we don't read empty files
					select {
					case <-watcher.Events:
						// ignore
					default:
						goto to_rerun
					}
				}
			to_rerun:
				fmt.Printf("\n%s changed, rerunning ...\n", filename)
				if err := sh.Exec("run", os.Stdout); err != nil {
					fmt.Println(fault.Describe(err))
				}
				watcher.Add(filename) // text editors rename, so we have to rewatch
			case err := <-watcher.Errors:
				log.Warningf("watch %s: %s", filename, err)
			}
		}
	}()
	if err := watcher.Add(filename); err != nil {
		return fault.Wrap(fault.Platform, err, "watch %s", filename)
	}
	return nil
}

// applyDump overrides the dump selection with a comma separated list.
func applyDump(cfg *engine.DumpConfig, list string) error {
	*cfg = engine.DumpConfig{}
	for _, s := range strings.Split(list, ",") {
		switch strings.TrimSpace(s) {
		case "":
		case "listing":
			cfg.Listing = true
		case "exprs":
			cfg.Exprs = true
		case "asm":
			cfg.Asm = true
		case "hex":
			cfg.Hex = true
		case "all":
			*cfg = engine.DumpConfig{Listing: true, Exprs: true, Asm: true, Hex: true}
		default:
			return fault.New(fault.Structure, "unknown dump stage %q", s)
		}
	}
	return nil
}

func main() {
	fmt.Print(`loopjit Copyright (C) 2026   Carl-Philip Hänsch
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;

`)

	// init random generator for UUIDs
	uuid.SetRand(rand.Reader)

	// parse command line options
	configPath := ""
	flag.StringVar(&configPath, "config", "", "TOML configuration file")
	verbosity := flag.Int("v", 0, "log verbosity (-2 errors .. 2 debug)")
	interactive := flag.Bool("i", false, "start an interactive shell after the run")
	watchFile := flag.Bool("watch", false, "rerun whenever the program file changes")
	tracePath := flag.String("trace", "", "write a chrome://tracing file")
	dump := flag.String("dump", "", "stages to print: listing,exprs,asm,hex or all")
	noJIT := flag.Bool("no-jit", false, "compile loops but do not run them")
	abi := flag.String("abi", "", "calling convention of the generated code: go or sysv")
	program := flag.String("program", "", "program listing (default: built-in sample)")
	flag.Parse()

	cfg := engine.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = engine.LoadConfig(configPath); err != nil {
			fatal(err)
		}
	}
	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			cfg.Log.Verbosity = *verbosity
		case "dump":
			if e := applyDump(&cfg.Dump, *dump); e != nil {
				err = e
			}
		case "no-jit":
			cfg.JIT.Enabled = !*noJIT
		case "abi":
			cfg.JIT.ABI = *abi
		}
	})
	if err != nil {
		fatal(err)
	}
	engine.ConfigureLogging(cfg.Log)

	if eng, err = engine.New(cfg, os.Stdout); err != nil {
		fatal(err)
	}
	if *tracePath != "" {
		if trace, err = engine.CreateTrace(*tracePath); err != nil {
			fatal(err)
		}
		eng.Trace = trace
	}
	sh := shell.New(eng, *program)

	// install exit handler
	cancelChan := make(chan os.Signal, 1)
	signal.Notify(cancelChan, syscall.SIGTERM, syscall.SIGINT)
	go (func() {
		<-cancelChan
		exitroutine()
		os.Exit(1)
	})()

	if err := sh.Exec("run", os.Stdout); err != nil {
		if !*interactive && !*watchFile {
			fatal(err)
		}
		fmt.Println(fault.Describe(err))
	}

	if *watchFile {
		if *program == "" {
			fatal(fault.New(fault.Structure, "-watch needs -program"))
		}
		if err := watch(sh, *program); err != nil {
			fatal(err)
		}
	}

	if *interactive {
		fmt.Print(`

    Type help to show help

`)
		if err := shell.Repl(sh); err != nil {
			fatal(err)
		}
	} else if *watchFile {
		select {} // until the signal handler exits
	}

	// normal shutdown
	exitroutine()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", fault.Describe(err))
	exitroutine()
	os.Exit(1)
}

func exitroutine() {
	if eng != nil {
		if err := eng.Close(); err != nil {
			log.Errorf("releasing code: %s", err)
		}
	}
	if trace != nil {
		trace.Close()
	}
}
