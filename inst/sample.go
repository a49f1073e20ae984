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

// Sample returns the built-in demo program:
//
//	x := 0
//	while x < 1000 {
//		if x&1 == 0 { x += 29 } else { x += -3 }
//	}
//	println(x)
func Sample() *Program {
	return NewBuilder().
		Push(0).
		Alloc("x").
		Label("while_start").
		Load("x").
		Push(1000).
		Op(LT).
		Jz("while_end").
		Load("x").
		Push(1).
		Op(AND).
		Push(0).
		Op(EQ).
		Jz("if_else").
		Load("x").
		Push(29).
		Op(ADD).
		Store("x").
		Jmp("if_end").
		Label("if_else").
		Load("x").
		Push(-3).
		Op(ADD).
		Store("x").
		Label("if_end").
		Jmp("while_start").
		Label("while_end").
		Load("x").
		Op(PRINTLN).
		Op(HALT).
		Program()
}
