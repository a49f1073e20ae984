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

package interp

import (
	"github.com/google/btree"
	"github.com/launix-de/loopjit/fault"
	"github.com/launix-de/loopjit/inst"
)

// Loop is a detected loop: a header address and the single backward
// jump that returns to it.
type Loop struct {
	Header   int
	Backedge int
}

// Range returns the instruction range [start, end) compiled for the loop.
// The range covers the back-edge and, when present, the exit label that
// directly follows it.
func (l Loop) Range(p *inst.Program) (start, end int, err error) {
	end = l.Backedge + 1
	if _, ok := p.LabelAt(end); ok {
		end++
	}
	if end > p.Len() {
		return 0, 0, fault.New(fault.Structure, "loop %d: range end %d is past the program", l.Header, end)
	}
	return l.Header, end, nil
}

// LoopTable maps loop headers to their back-edge, ordered by header.
type LoopTable struct {
	tree *btree.BTreeG[Loop]
}

func NewLoopTable() *LoopTable {
	return &LoopTable{tree: btree.NewG[Loop](8, func(a, b Loop) bool {
		return a.Header < b.Header
	})}
}

// Record notes a backward jump from origin to header. A header can only
// ever be reached backward from one place.
func (t *LoopTable) Record(header, origin int) error {
	if l, ok := t.tree.Get(Loop{Header: header}); ok {
		if l.Backedge != origin {
			return fault.New(fault.Structure, "loop header %d has two back-edges: %d and %d", header, l.Backedge, origin)
		}
		return nil
	}
	t.tree.ReplaceOrInsert(Loop{Header: header, Backedge: origin})
	return nil
}

func (t *LoopTable) Get(header int) (Loop, bool) {
	return t.tree.Get(Loop{Header: header})
}

func (t *LoopTable) Len() int {
	return t.tree.Len()
}

// All returns the loops in ascending header order.
func (t *LoopTable) All() []Loop {
	loops := make([]Loop, 0, t.tree.Len())
	t.tree.Ascend(func(l Loop) bool {
		loops = append(loops, l)
		return true
	})
	return loops
}

func (t *LoopTable) Clear() {
	t.tree.Clear(false)
}
