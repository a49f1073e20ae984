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
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/chzyer/readline"
	"github.com/launix-de/loopjit/fault"
)

const newprompt = "\033[32m>\033[0m "
const errprompt = "\033[31m!\033[0m "

func completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, len(commandNames))
	for i, name := range commandNames {
		items[i] = readline.PcItem(name)
	}
	return readline.NewPrefixCompleter(items...)
}

// Repl reads commands from the terminal until quit, EOF or an interrupt
// on an empty line.
func Repl(s *Shell) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".loopjit-history.tmp",
		AutoComplete:      completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fault.Wrap(fault.Platform, err, "terminal")
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				return nil
			}
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return fault.Wrap(fault.Platform, err, "terminal")
		}
		if line == "" {
			continue
		}

		// anti-panic func
		quit := func() (quit bool) {
			defer func() {
				if r := recover(); r != nil {
					fmt.Println("panic:", r, string(debug.Stack()))
				}
			}()
			err := s.Exec(line, os.Stdout)
			if err == ErrQuit {
				return true
			}
			if err != nil {
				fmt.Print(errprompt)
				fmt.Println(fault.Describe(err))
			}
			return false
		}()
		if quit {
			return nil
		}
	}
}
