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

import "github.com/launix-de/loopjit/fault"

// Limits bounds the size of a program.
type Limits struct {
	Insts  int
	Labels int
}

// Resolve binds every label to its address and rewrites the operand of
// every jump to that address. Resolving twice is a no-op.
func (p *Program) Resolve(lim Limits) error {
	if p.resolved {
		return nil
	}
	if len(p.Insts) > lim.Insts {
		return fault.New(fault.Capacity, "program has %d instructions (capacity %d)", len(p.Insts), lim.Insts)
	}
	labels := make(map[Symbol]int)
	for i, in := range p.Insts {
		if in.Op != LABEL {
			continue
		}
		if prev, ok := labels[in.Sym]; ok {
			return fault.New(fault.Structure, "label %q defined at %d and %d", p.Name(in), prev, i)
		}
		if len(labels) == lim.Labels {
			return fault.Full("label table", lim.Labels)
		}
		labels[in.Sym] = i
	}
	for i := range p.Insts {
		in := &p.Insts[i]
		if !in.Op.Jump() {
			continue
		}
		addr, ok := labels[in.Sym]
		if !ok {
			return fault.New(fault.Unresolved, "%s at %d: undefined label %q", in.Op, i, p.Name(*in))
		}
		in.Addr = addr
	}
	p.labels = labels
	p.resolved = true
	return nil
}
