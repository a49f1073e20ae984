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

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/launix-de/loopjit/asm"
	"github.com/launix-de/loopjit/expr"
	"github.com/launix-de/loopjit/fault"
	"github.com/launix-de/loopjit/inst"
	"github.com/launix-de/loopjit/interp"
)

// Config is the engine configuration, usually read from a TOML file.
type Config struct {
	Limits LimitsConfig `toml:"limits"`
	Dump   DumpConfig   `toml:"dump"`
	JIT    JITConfig    `toml:"jit"`
	Log    LogConfig    `toml:"log"`
}

// LimitsConfig holds the capacity of every fixed-size buffer.
type LimitsConfig struct {
	Stack        int    `toml:"stack"`
	Variables    int    `toml:"variables"`
	Labels       int    `toml:"labels"`
	Instructions int    `toml:"instructions"`
	Expressions  int    `toml:"expressions"`
	Statements   int    `toml:"statements"`
	Escapes      int    `toml:"escapes"`
	Assembly     int    `toml:"assembly"`
	Code         string `toml:"code"` // e.g. "4KiB"
	Relocations  int    `toml:"relocations"`
	Steps        int    `toml:"steps"` // interpreter step limit, 0 = unlimited
}

// DumpConfig selects which stage results are printed.
type DumpConfig struct {
	Listing bool `toml:"listing"`
	Exprs   bool `toml:"exprs"`
	Asm     bool `toml:"asm"`
	Hex     bool `toml:"hex"`
}

type JITConfig struct {
	Enabled bool   `toml:"enabled"`
	ABI     string `toml:"abi"` // "go" or "sysv"; sysv code can be encoded but not called
	Verify  bool   `toml:"verify"`
}

type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

func DefaultConfig() Config {
	return Config{
		Limits: LimitsConfig{
			Stack:        8,
			Variables:    8,
			Labels:       16,
			Instructions: 256,
			Expressions:  64,
			Statements:   32,
			Escapes:      len(asm.GoABI.Args),
			Assembly:     64,
			Code:         "4KiB",
			Relocations:  32,
		},
		Dump: DumpConfig{Listing: true, Exprs: true, Asm: true},
		JIT:  JITConfig{Enabled: true, ABI: asm.GoABI.Name},
	}
}

// LoadConfig overlays the TOML file at path onto the defaults. Unknown
// keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fault.Wrap(fault.Structure, err, "config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fault.New(fault.Structure, "config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	l := c.Limits
	for _, v := range []struct {
		name string
		val  int
	}{
		{"stack", l.Stack}, {"variables", l.Variables}, {"labels", l.Labels},
		{"instructions", l.Instructions}, {"expressions", l.Expressions},
		{"statements", l.Statements}, {"escapes", l.Escapes},
		{"assembly", l.Assembly}, {"relocations", l.Relocations},
	} {
		if v.val <= 0 {
			return fault.New(fault.Structure, "limits.%s must be positive, is %d", v.name, v.val)
		}
	}
	if l.Steps < 0 {
		return fault.New(fault.Structure, "limits.steps must not be negative")
	}
	if _, err := c.CodeBytes(); err != nil {
		return err
	}
	_, err := asm.ABIByName(c.JIT.ABI)
	return err
}

// CodeBytes parses limits.code.
func (c Config) CodeBytes() (int, error) {
	n, err := units.RAMInBytes(c.Limits.Code)
	if err != nil {
		return 0, fault.Wrap(fault.Structure, err, "limits.code %q", c.Limits.Code)
	}
	if n <= 0 || n > 1<<30 {
		return 0, fault.New(fault.Structure, "limits.code %q out of range", c.Limits.Code)
	}
	return int(n), nil
}

func (c Config) instLimits() inst.Limits {
	return inst.Limits{Insts: c.Limits.Instructions, Labels: c.Limits.Labels}
}

func (c Config) interpLimits() interp.Limits {
	return interp.Limits{Stack: c.Limits.Stack, Vars: c.Limits.Variables, Steps: c.Limits.Steps}
}

func (c Config) exprLimits() expr.Limits {
	return expr.Limits{Exprs: c.Limits.Expressions, Stmts: c.Limits.Statements, Escapes: c.Limits.Escapes}
}

func (c Config) asmLimits(code int) asm.Limits {
	return asm.Limits{Instrs: c.Limits.Assembly, Code: code, Labels: c.Limits.Labels, Relocs: c.Limits.Relocations}
}
