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

import (
	"bufio"
	"fmt"
	"io"
)

// Format renders one instruction the way the listing shows it.
func (p *Program) Format(in Inst) string {
	switch {
	case in.Op == LABEL:
		return fmt.Sprintf("    %s:", p.Name(in))
	case in.Op == PUSH:
		return fmt.Sprintf("        %-12s%d", in.Op, in.Int)
	case in.Op.Named():
		return fmt.Sprintf("        %-12s%s", in.Op, p.Name(in))
	}
	return "        " + in.Op.String()
}

// WriteListing prints the program one instruction per line. The output
// is accepted by Parse.
func (p *Program) WriteListing(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, in := range p.Insts {
		fmt.Fprintln(bw, p.Format(in))
	}
	return bw.Flush()
}

// Block is the half-open instruction range [Start, End) of a basic block.
type Block struct {
	Start, End int
}

// Blocks splits the program into basic blocks: a block ends before a
// LABEL and right after a jump.
func (p *Program) Blocks() []Block {
	var blocks []Block
	for i := 0; i < len(p.Insts); {
		j := i + 1
		for ; j < len(p.Insts); j++ {
			op := p.Insts[j].Op
			if op == LABEL {
				break
			}
			if op.Jump() {
				j++
				break
			}
		}
		blocks = append(blocks, Block{i, j})
		i = j
	}
	return blocks
}

// WriteAnnotated prints the listing split into basic blocks, each line
// prefixed with its address and the number of jumps that landed there.
func (p *Program) WriteAnnotated(w io.Writer, jumps []int) error {
	bw := bufio.NewWriter(w)
	for _, b := range p.Blocks() {
		fmt.Fprintln(bw)
		for i := b.Start; i < b.End; i++ {
			fmt.Fprintf(bw, "%3d - ", i)
			if i < len(jumps) && jumps[i] != 0 {
				fmt.Fprintf(bw, "%4d --+", jumps[i])
			} else {
				fmt.Fprint(bw, "       |")
			}
			fmt.Fprintln(bw, p.Format(p.Insts[i]))
		}
	}
	return bw.Flush()
}
