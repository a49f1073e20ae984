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
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/launix-de/loopjit/fault"
)

// listing grammar: one label definition or instruction per line

type listing struct {
	Lines []*line `( @@ | EOL )*`
}

type line struct {
	Pos   lexer.Position
	Label string  `(  @Ident ":"`
	Inst  *opLine `| @@ ) EOL`
}

type opLine struct {
	Pos  lexer.Position
	Op   string  `@Ident`
	Int  *int64  `( @Int`
	Name *string `| @Ident )?`
}

var listingLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `[#;][^\n]*`},
	{Name: "EOL", Pattern: `\n`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Int", Pattern: `[-+]?[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_.]*`},
	{Name: "Punct", Pattern: `:`},
})

var listingParser = participle.MustBuild[listing](
	participle.Lexer(listingLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

var opByName = map[string]Op{
	"halt":        HALT,
	"alloc":       ALLOC,
	"load":        LOAD,
	"store":       STORE,
	"push":        PUSH,
	"jmp":         JMP,
	"jz":          JZ,
	"lt":          LT,
	"eq":          EQ,
	"and":         AND,
	"add":         ADD,
	"println":     PRINTLN,
	"println_i64": PRINTLN,
}

// Parse reads a textual listing into an unresolved program.
func Parse(filename, src string) (*Program, error) {
	ast, err := listingParser.ParseString(filename, src+"\n")
	if err != nil {
		return nil, fault.Wrap(fault.Structure, err, "parse %s", filename)
	}
	b := NewBuilder()
	for _, l := range ast.Lines {
		if l.Inst == nil {
			b.Label(l.Label)
			continue
		}
		op, ok := opByName[l.Inst.Op]
		if !ok {
			return nil, fault.New(fault.Unsupported, "%s: unknown instruction %q", l.Inst.Pos, l.Inst.Op)
		}
		switch {
		case op == PUSH:
			if l.Inst.Int == nil {
				return nil, fault.New(fault.Structure, "%s: push needs an integer operand", l.Inst.Pos)
			}
			b.Push(*l.Inst.Int)
		case op.Named():
			if l.Inst.Name == nil {
				return nil, fault.New(fault.Structure, "%s: %s needs a name operand", l.Inst.Pos, op)
			}
			b.named(op, *l.Inst.Name)
		default:
			if l.Inst.Int != nil || l.Inst.Name != nil {
				return nil, fault.New(fault.Structure, "%s: %s takes no operand", l.Inst.Pos, op)
			}
			b.Op(op)
		}
	}
	return b.Program(), nil
}

// ParseFile reads a listing from disk.
func ParseFile(filename string) (*Program, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fault.Wrap(fault.Platform, err, "read %s", filename)
	}
	return Parse(filename, string(src))
}
