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

// Symbol is an interned variable or label name. The zero Symbol means
// "no name".
type Symbol uint16

// Symbols interns names once per program so later stages compare ids.
type Symbols struct {
	names []string
	index map[string]Symbol
}

func NewSymbols() *Symbols {
	return &Symbols{names: []string{""}, index: make(map[string]Symbol)}
}

func (s *Symbols) Intern(name string) Symbol {
	if sym, ok := s.index[name]; ok {
		return sym
	}
	sym := Symbol(len(s.names))
	s.names = append(s.names, name)
	s.index[name] = sym
	return sym
}

func (s *Symbols) Lookup(name string) (Symbol, bool) {
	sym, ok := s.index[name]
	return sym, ok
}

func (s *Symbols) Name(sym Symbol) string {
	if int(sym) < len(s.names) {
		return s.names[sym]
	}
	return "?"
}

func (s *Symbols) Len() int {
	return len(s.names) - 1
}
