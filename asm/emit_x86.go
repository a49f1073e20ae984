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

import "github.com/launix-de/loopjit/inst"

// opcodes of the REX.W forms used by the encoder
const (
	opAddRmReg  byte = 0x01 // ADD r/m64, r64
	opAndRmReg  byte = 0x21 // AND r/m64, r64
	opAndRegRm  byte = 0x23 // AND r64, r/m64
	opCmpRmReg  byte = 0x39 // CMP r/m64, r64
	opCmpRegRm  byte = 0x3B // CMP r64, r/m64
	opGrp1Imm32 byte = 0x81 // ADD/AND/CMP r/m64, imm32 (ModRM.reg selects)
	opTestRmReg byte = 0x85 // TEST r/m64, r64
	opMovRmReg  byte = 0x89 // MOV r/m64, r64
	opMovRegRm  byte = 0x8B // MOV r64, r/m64
	opMovRmImm  byte = 0xC7 // MOV r/m64, imm32 (/0)
)

// ModRM.reg extensions of opGrp1Imm32
const (
	extAdd byte = 0
	extAnd byte = 4
	extCmp byte = 7
)

// Condition code constants for emitJcc
const (
	CcNE byte = 0x05 // JNE / JNZ (ZF=0)
	CcGE byte = 0x0D // JGE       (SF=OF)
)

// emitAluRegReg emits a REX.W ALU op: <opcode> r/m64, r64
// opcode: 0x01=ADD, 0x21=AND, 0x39=CMP, 0x85=TEST, 0x89=MOV
func (w *Writer) emitAluRegReg(opcode byte, dst, src Reg) {
	rex := byte(0x48)
	if src >= 8 {
		rex |= 0x04
	}
	if dst >= 8 {
		rex |= 0x01
	}
	modrm := byte(0xC0) | (byte(src&7) << 3) | byte(dst&7)
	w.emitBytes(rex, opcode, modrm)
}

// emitRegMemOp emits <opcode> reg, [base + disp] with a REX.W prefix.
// reg is either a register or an opcode extension (/0../7).
func (w *Writer) emitRegMemOp(opcode byte, reg, base Reg, disp int32) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x04 // REX.R
	}
	if base >= 8 {
		rex |= 0x01 // REX.B
	}
	baseEnc := byte(base & 7)
	regEnc := byte(reg & 7)

	if disp == 0 && baseEnc != 5 { // RBP/R13 always needs disp
		modrm := (regEnc << 3) | baseEnc
		if baseEnc == 4 { // RSP/R12 needs SIB
			w.emitBytes(rex, opcode, modrm, 0x24)
		} else {
			w.emitBytes(rex, opcode, modrm)
		}
	} else if disp >= -128 && disp <= 127 {
		modrm := 0x40 | (regEnc << 3) | baseEnc
		if baseEnc == 4 {
			w.emitBytes(rex, opcode, modrm, 0x24, byte(int8(disp)))
		} else {
			w.emitBytes(rex, opcode, modrm, byte(int8(disp)))
		}
	} else {
		modrm := 0x80 | (regEnc << 3) | baseEnc
		if baseEnc == 4 {
			w.emitBytes(rex, opcode, modrm, 0x24)
		} else {
			w.emitBytes(rex, opcode, modrm)
		}
		w.emitU32(uint32(disp))
	}
}

// emitImmReg emits <opcode> /ext r64, imm32
func (w *Writer) emitImmReg(opcode, ext byte, dst Reg, imm int32) {
	rex := byte(0x48)
	if dst >= 8 {
		rex |= 0x01 // REX.B
	}
	modrm := byte(0xC0) | (ext << 3) | byte(dst&7)
	w.emitBytes(rex, opcode, modrm)
	w.emitU32(uint32(imm))
}

// emitImmMem emits <opcode> /ext qword [base + disp], imm32
func (w *Writer) emitImmMem(opcode, ext byte, base Reg, disp int32, imm int32) {
	w.emitRegMemOp(opcode, Reg(ext), base, disp)
	w.emitU32(uint32(imm))
}

// emitJcc emits a conditional jump with a rel32 fixup.
func (w *Writer) emitJcc(cc byte, label inst.Symbol) {
	w.emitBytes(0x0F, 0x80|cc) // Jcc rel32
	w.AddFixup(label)
}

// emitJmp emits an unconditional JMP rel32.
func (w *Writer) emitJmp(label inst.Symbol) {
	w.emitByte(0xE9) // JMP rel32
	w.AddFixup(label)
}

func (w *Writer) emitRet() {
	w.emitByte(0xC3)
}
