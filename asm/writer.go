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

package asm

import (
	"encoding/binary"
	"math"

	"github.com/launix-de/loopjit/fault"
	"github.com/launix-de/loopjit/inst"
)

// Reloc is a rel32 field at Pos that must point at Label.
type Reloc struct {
	Pos   int
	Label inst.Symbol
}

// Writer is a bounded code buffer with label and relocation tables. The
// first overflow is kept in err and turns all further emits into no-ops.
type Writer struct {
	buf    []byte
	labels map[inst.Symbol]int
	relocs []Reloc

	maxLabels int
	maxRelocs int
	err       error
}

func NewWriter(code, labels, relocs int) *Writer {
	return &Writer{
		buf:       make([]byte, 0, code),
		labels:    make(map[inst.Symbol]int, labels),
		relocs:    make([]Reloc, 0, relocs),
		maxLabels: labels,
		maxRelocs: relocs,
	}
}

func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.relocs = w.relocs[:0]
	clear(w.labels)
	w.err = nil
}

// Pos is the current write offset.
func (w *Writer) Pos() int {
	return len(w.buf)
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// emitByte appends a single byte.
func (w *Writer) emitByte(b byte) {
	w.emitBytes(b)
}

func (w *Writer) emitBytes(bs ...byte) {
	if w.err != nil {
		return
	}
	if len(w.buf)+len(bs) > cap(w.buf) {
		w.fail(fault.Full("code buffer", cap(w.buf)))
		return
	}
	w.buf = append(w.buf, bs...)
}

// emitU32 appends a little-endian uint32.
func (w *Writer) emitU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.emitBytes(b[:]...)
}

// MarkLabel defines label at the current position.
func (w *Writer) MarkLabel(label inst.Symbol) {
	if w.err != nil {
		return
	}
	if _, ok := w.labels[label]; ok {
		w.fail(fault.New(fault.Structure, "label %d defined twice", label))
		return
	}
	if len(w.labels) == w.maxLabels {
		w.fail(fault.Full("label table", w.maxLabels))
		return
	}
	w.labels[label] = len(w.buf)
}

// AddFixup reserves a rel32 field at the current position that will
// point at label once ResolveFixups runs.
func (w *Writer) AddFixup(label inst.Symbol) {
	if w.err != nil {
		return
	}
	if len(w.relocs) == w.maxRelocs {
		w.fail(fault.Full("relocation table", w.maxRelocs))
		return
	}
	w.relocs = append(w.relocs, Reloc{Pos: len(w.buf), Label: label})
	w.emitU32(0) // placeholder
}

// ResolveFixups patches every relocation with the distance from the end
// of its field to the label.
func (w *Writer) ResolveFixups() error {
	if w.err != nil {
		return w.err
	}
	for _, r := range w.relocs {
		target, ok := w.labels[r.Label]
		if !ok {
			return fault.New(fault.Unresolved, "jump at byte %d to undefined label %d", r.Pos, r.Label)
		}
		disp := int64(target) - int64(r.Pos+4)
		if disp < math.MinInt32 || disp > math.MaxInt32 {
			return fault.New(fault.Unsupported, "jump at byte %d: displacement %d exceeds rel32", r.Pos, disp)
		}
		binary.LittleEndian.PutUint32(w.buf[r.Pos:], uint32(int32(disp)))
	}
	return nil
}
