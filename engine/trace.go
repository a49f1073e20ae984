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

import "io"
import "os"
import "sync"
import "time"
import "encoding/json"
import "github.com/dc0d/onexit"
import "github.com/launix-de/loopjit/fault"

// Tracefile writes chrome://tracing events, one begin/end pair per stage.
type Tracefile struct {
	isFirst bool
	file    io.WriteCloser
	start   time.Time
	closed  bool
	m       sync.Mutex
}

// CreateTrace opens path for tracing and closes it when the process exits.
func CreateTrace(path string) (*Tracefile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fault.Wrap(fault.Platform, err, "trace file %s", path)
	}
	t := NewTrace(f)
	onexit.Register(func() { t.Close() }) // close trace file on exit
	return t, nil
}

func NewTrace(file io.WriteCloser) *Tracefile {
	file.Write([]byte("["))
	result := new(Tracefile)
	result.file = file
	result.isFirst = true
	result.start = time.Now()
	return result
}

func (t *Tracefile) Close() error {
	t.m.Lock()
	defer t.m.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.file.Write([]byte("]"))
	return t.file.Close()
}

// Duration wraps f in a begin/end event pair. A nil trace just runs f.
func (t *Tracefile) Duration(name string, cat string, f func() error) error {
	if t == nil {
		return f()
	}
	t.Event(name, cat, "B")
	defer t.Event(name, cat, "E")
	return f()
}

func (t *Tracefile) Event(name string, cat string, typ string) {
	t.EventFull(name, cat, typ, time.Since(t.start).Microseconds(), 0, os.Getpid())
}

type traceEvent struct {
	Name  string `json:"name"`
	Cat   string `json:"cat"`
	Ph    string `json:"ph"`
	Ts    int64  `json:"ts"`
	Pid   int    `json:"pid"`
	Tid   int    `json:"tid"`
	Scope string `json:"s"`
}

/*
*

	@name string stage
	@cat string comma separated categories (for filtering)
	@typ B/E for begin/end, X for events
	@ts timestamp in microseconds
	@pid process id
	@tid thread id
*/
func (t *Tracefile) EventFull(name string, cat string, typ string, ts int64, tid int, pid int) {
	t.m.Lock()
	defer t.m.Unlock()
	if t.closed {
		return
	}
	if t.isFirst {
		t.isFirst = false
	} else {
		t.file.Write([]byte(",\n"))
	}
	b, _ := json.Marshal(traceEvent{Name: name, Cat: cat, Ph: typ, Ts: ts, Pid: pid, Tid: tid, Scope: "g"})
	t.file.Write(b)
}
