package gms

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Opcodes of the bytecode-16 instruction set. The opcode lives in the top
// byte of the 4-byte instruction word.
const (
	opConv     = 0x07
	opMul      = 0x08
	opDiv      = 0x09
	opRem      = 0x0A
	opMod      = 0x0B
	opAdd      = 0x0C
	opSub      = 0x0D
	opAnd      = 0x0E
	opOr       = 0x0F
	opXor      = 0x10
	opNeg      = 0x11
	opNot      = 0x12
	opShl      = 0x13
	opShr      = 0x14
	opCmp      = 0x15
	opPop      = 0x45
	opDup      = 0x86
	opPushI    = 0x84
	opCallV    = 0x99
	opRet      = 0x9C
	opExit     = 0x9D
	opPopz     = 0x9E
	opB        = 0xB6
	opBt       = 0xB7
	opBf       = 0xB8
	opPushEnv  = 0xBA
	opPopEnv   = 0xBB
	opPush     = 0xC0
	opPushLoc  = 0xC1
	opPushGlb  = 0xC2
	opPushBltn = 0xC3
	opCall     = 0xD9
	opBreak    = 0xFF
)

// Operand data types carried in the type nibbles.
const (
	typeDouble = 0x0
	typeFloat  = 0x1
	typeInt32  = 0x2
	typeInt64  = 0x3
	typeBool   = 0x4
	typeVar    = 0x5
	typeString = 0x6
	typeInt16  = 0xF
)

// Comparison kinds, stored in bits 8..15 of a cmp instruction.
const (
	cmpLT = 1
	cmpLE = 2
	cmpEQ = 3
	cmpNE = 4
	cmpGE = 5
	cmpGT = 6
)

// Variable scope codes, stored in operand16 of variable instructions.
const (
	scopeSelf     = -1
	scopeOther    = -2
	scopeAll      = -3
	scopeNoone    = -4
	scopeGlobal   = -5
	scopeBuiltin  = -6
	scopeLocal    = -7
	scopeStacktop = -9
	scopeArgument = -15
)

// Variable reference kinds, stored in the top byte of the reference word.
const (
	refPlain = 0
	refArray = 1
)

// popEnvBreak is the magic popenv displacement that drops the current with
// environment without looping.
const popEnvBreak = -0x800000

// Instruction is one decoded bytecode instruction.
type Instruction struct {
	Opcode    byte
	Type1     byte
	Type2     byte
	Operand16 int16
	Operand24 int32 // sign-extended 24-bit displacement / small operand

	// Extension words, valid depending on the opcode and types.
	RefSlot uint32 // variable reference: slot id (24 bits)
	RefKind byte   // variable reference: refPlain or refArray
	FuncID  uint32 // call: FUNC table index
	Real    float64
	Int     int32
	StrID   uint32 // push string: string table index

	Size int // total encoded size in bytes, 4, 8 or 12
}

// CmpKind extracts the relation of a cmp instruction.
func (in *Instruction) CmpKind() int { return int(uint8(in.Operand16 >> 8 & 0xFF)) }

// hasVarRef reports whether the instruction is followed by a variable
// reference word.
func (in *Instruction) hasVarRef() bool {
	switch in.Opcode {
	case opPush, opPushLoc, opPushGlb, opPushBltn:
		return in.Type1 == typeVar
	case opPop:
		return true
	}
	return false
}

// Decode reads one instruction from code at ip. The blob is the contiguous
// bytecode of one entry; ip is a byte offset into it.
func Decode(code []byte, ip int) (Instruction, error) {
	if ip < 0 || ip+4 > len(code) {
		return Instruction{}, fmt.Errorf("gms: instruction fetch out of range at ip=%d", ip)
	}
	word := binary.LittleEndian.Uint32(code[ip:])

	in := Instruction{
		Opcode:    byte(word >> 24),
		Type1:     byte(word>>16) & 0xF,
		Type2:     byte(word>>16) >> 4,
		Operand16: int16(word & 0xFFFF),
		Operand24: signExtend24(word & 0xFFFFFF),
		Size:      4,
	}

	ext := func(n int) ([]byte, error) {
		if ip+4+n > len(code) {
			return nil, fmt.Errorf("gms: truncated operand at ip=%d opcode=0x%02X", ip, in.Opcode)
		}
		in.Size = 4 + n
		return code[ip+4:], nil
	}

	switch {
	case in.hasVarRef():
		b, err := ext(4)
		if err != nil {
			return in, err
		}
		ref := binary.LittleEndian.Uint32(b)
		in.RefSlot = ref & 0xFFFFFF
		in.RefKind = byte(ref >> 24)
	case in.Opcode == opCall:
		b, err := ext(4)
		if err != nil {
			return in, err
		}
		in.FuncID = binary.LittleEndian.Uint32(b)
	case in.Opcode == opPush:
		switch in.Type1 {
		case typeDouble:
			b, err := ext(8)
			if err != nil {
				return in, err
			}
			in.Real = math.Float64frombits(binary.LittleEndian.Uint64(b))
		case typeFloat:
			b, err := ext(4)
			if err != nil {
				return in, err
			}
			in.Real = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case typeInt32, typeBool:
			b, err := ext(4)
			if err != nil {
				return in, err
			}
			in.Int = int32(binary.LittleEndian.Uint32(b))
		case typeInt64:
			b, err := ext(8)
			if err != nil {
				return in, err
			}
			in.Real = float64(int64(binary.LittleEndian.Uint64(b)))
		case typeString:
			b, err := ext(4)
			if err != nil {
				return in, err
			}
			in.StrID = binary.LittleEndian.Uint32(b)
		case typeInt16:
			// inline in operand16
		default:
			return in, fmt.Errorf("gms: push with unknown data type 0x%X at ip=%d", in.Type1, ip)
		}
	}

	return in, nil
}

func signExtend24(v uint32) int32 {
	if v&0x800000 != 0 {
		return int32(v | 0xFF000000)
	}
	return int32(v)
}

var opcodeNames = map[byte]string{
	opConv: "conv", opMul: "mul", opDiv: "div", opRem: "rem", opMod: "mod",
	opAdd: "add", opSub: "sub", opAnd: "and", opOr: "or", opXor: "xor",
	opNeg: "neg", opNot: "not", opShl: "shl", opShr: "shr", opCmp: "cmp",
	opPop: "pop", opDup: "dup", opPushI: "pushi", opCallV: "callv",
	opRet: "ret", opExit: "exit", opPopz: "popz", opB: "b", opBt: "bt",
	opBf: "bf", opPushEnv: "pushenv", opPopEnv: "popenv", opPush: "push",
	opPushLoc: "push.loc", opPushGlb: "push.glb", opPushBltn: "push.bltn",
	opCall: "call", opBreak: "break",
}

func (in *Instruction) String() string {
	name, ok := opcodeNames[in.Opcode]
	if !ok {
		name = fmt.Sprintf("op_%02X", in.Opcode)
	}
	switch in.Opcode {
	case opB, opBt, opBf, opPushEnv:
		return fmt.Sprintf("%s %+d", name, in.Operand24)
	case opPopEnv:
		if in.Operand24 == popEnvBreak {
			return name + " break"
		}
		return fmt.Sprintf("%s %+d", name, in.Operand24)
	case opCall:
		return fmt.Sprintf("%s fn=%d argc=%d", name, in.FuncID, in.Operand16)
	case opCmp:
		return fmt.Sprintf("%s.%d", name, in.CmpKind())
	case opPush:
		switch in.Type1 {
		case typeDouble, typeFloat:
			return fmt.Sprintf("%s %g", name, in.Real)
		case typeInt32, typeBool:
			return fmt.Sprintf("%s %d", name, in.Int)
		case typeString:
			return fmt.Sprintf("%s str:%d", name, in.StrID)
		case typeInt16:
			return fmt.Sprintf("%s %d", name, in.Operand16)
		case typeVar:
			return fmt.Sprintf("%s var:%d scope:%d", name, in.RefSlot, in.Operand16)
		}
	case opPop:
		return fmt.Sprintf("%s var:%d scope:%d", name, in.RefSlot, in.Operand16)
	case opPushI:
		return fmt.Sprintf("%s %d", name, in.Operand16)
	}
	return name
}
