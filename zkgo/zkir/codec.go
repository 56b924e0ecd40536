package zkir

import "fmt"

// Op identifies a decoded instruction mnemonic.
type Op uint8

const (
	// register-register ALU
	OpAdd Op = iota
	OpSub
	OpMul
	OpMulh
	OpMulhu
	OpMulhsu
	OpDiv
	OpDivu
	OpRem
	OpRemu
	OpAnd
	OpAndn
	OpOr
	OpOrn
	OpXor
	OpXnor
	OpSll
	OpSrl
	OpSra
	OpRol
	OpRor
	OpSlt
	OpSltu
	OpMin
	OpMax
	OpMinu
	OpMaxu
	OpClz
	OpCtz
	OpCpop
	OpRev8
	OpCmovz
	OpCmovnz
	// field plane
	OpFadd
	OpFsub
	OpFmul
	OpFneg
	OpFinv
	// register-immediate ALU
	OpAddi
	OpSlti
	OpSltiu
	OpXori
	OpOri
	OpAndi
	OpSlli
	OpSrli
	OpSrai
	// loads and stores
	OpLb
	OpLh
	OpLw
	OpLbu
	OpLhu
	OpSb
	OpSh
	OpSw
	// branches
	OpBeq
	OpBne
	OpBlt
	OpBge
	OpBltu
	OpBgeu
	// upper immediates and jumps
	OpLui
	OpAuipc
	OpJal
	OpJalr
	// ZK plane
	OpRead
	OpWrite
	OpHint
	OpCommit
	OpAssertEq
	OpAssertNe
	OpAssertZero
	OpRangeCheck
	OpDebug
	OpHalt
	// system
	OpEcall
	OpEbreak

	numOps
)

var opNames = [numOps]string{
	"add", "sub", "mul", "mulh", "mulhu", "mulhsu", "div", "divu", "rem", "remu",
	"and", "andn", "or", "orn", "xor", "xnor",
	"sll", "srl", "sra", "rol", "ror",
	"slt", "sltu", "min", "max", "minu", "maxu",
	"clz", "ctz", "cpop", "rev8",
	"cmovz", "cmovnz",
	"fadd", "fsub", "fmul", "fneg", "finv",
	"addi", "slti", "sltiu", "xori", "ori", "andi", "slli", "srli", "srai",
	"lb", "lh", "lw", "lbu", "lhu", "sb", "sh", "sw",
	"beq", "bne", "blt", "bge", "bltu", "bgeu",
	"lui", "auipc", "jal", "jalr",
	"read", "write", "hint", "commit",
	"assert_eq", "assert_ne", "assert_zero", "range_check", "debug", "halt",
	"ecall", "ebreak",
}

func (op Op) String() string {
	if op < numOps {
		return opNames[op]
	}
	return "unknown"
}

var opsByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for i, name := range opNames {
		m[name] = Op(i)
	}
	return m
}()

// OpByName resolves a mnemonic to its Op.
func OpByName(name string) (Op, bool) {
	op, ok := opsByName[name]
	return op, ok
}

// Instruction is a decoded instruction word. Fields not used by the
// instruction's format are zero. Imm carries the sign-extended immediate,
// branch/jump byte offset, raw upper immediate, or shift amount; Bits is the
// RANGE_CHECK width.
type Instruction struct {
	Op   Op
	Rd   uint32
	Rs1  uint32
	Rs2  uint32
	Imm  int32
	Bits uint32
}

func (i Instruction) String() string {
	switch i.Op {
	case OpEcall, OpEbreak, OpHalt:
		return i.Op.String()
	case OpRead, OpHint:
		return fmt.Sprintf("%s %s", i.Op, RegName(i.Rd))
	case OpWrite, OpCommit, OpAssertZero, OpDebug:
		return fmt.Sprintf("%s %s", i.Op, RegName(i.Rs1))
	case OpAssertEq, OpAssertNe:
		return fmt.Sprintf("%s %s, %s", i.Op, RegName(i.Rs1), RegName(i.Rs2))
	case OpRangeCheck:
		return fmt.Sprintf("%s %s, %d", i.Op, RegName(i.Rs1), i.Bits)
	case OpLui, OpAuipc, OpJal:
		return fmt.Sprintf("%s %s, %d", i.Op, RegName(i.Rd), i.Imm)
	case OpBeq, OpBne, OpBlt, OpBge, OpBltu, OpBgeu:
		return fmt.Sprintf("%s %s, %s, %d", i.Op, RegName(i.Rs1), RegName(i.Rs2), i.Imm)
	case OpLb, OpLh, OpLw, OpLbu, OpLhu:
		return fmt.Sprintf("%s %s, %d(%s)", i.Op, RegName(i.Rd), i.Imm, RegName(i.Rs1))
	case OpSb, OpSh, OpSw:
		return fmt.Sprintf("%s %s, %d(%s)", i.Op, RegName(i.Rs2), i.Imm, RegName(i.Rs1))
	case OpClz, OpCtz, OpCpop, OpRev8, OpFneg, OpFinv:
		return fmt.Sprintf("%s %s, %s", i.Op, RegName(i.Rd), RegName(i.Rs1))
	case OpAddi, OpSlti, OpSltiu, OpXori, OpOri, OpAndi, OpSlli, OpSrli, OpSrai, OpJalr:
		return fmt.Sprintf("%s %s, %s, %d", i.Op, RegName(i.Rd), RegName(i.Rs1), i.Imm)
	default:
		return fmt.Sprintf("%s %s, %s, %s", i.Op, RegName(i.Rd), RegName(i.Rs1), RegName(i.Rs2))
	}
}

// DecodeError reports a malformed instruction word. It is surfaced as-is by
// assembler-side tooling; during execution the engine converts it into an
// InvalidInstruction trap.
type DecodeError struct {
	Word   uint32
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid instruction word %08x: %s", e.Word, e.Reason)
}

func decodeErr(word uint32, format string, args ...any) error {
	return &DecodeError{Word: word, Reason: fmt.Sprintf(format, args...)}
}

// R-plane table, indexed by funct (3 bits) and ext (2 bits).
var rPlane = map[[2]uint32]Op{
	{0, 0}: OpAdd, {0, 1}: OpSub, {0, 2}: OpMul, {0, 3}: OpMulh,
	{5, 2}: OpMulhu, {5, 3}: OpMulhsu,
	{6, 0}: OpDiv, {6, 1}: OpDivu, {6, 2}: OpRem, {6, 3}: OpRemu,
	{1, 0}: OpAnd, {1, 1}: OpAndn, {1, 2}: OpOr, {1, 3}: OpOrn,
	{2, 0}: OpXor, {2, 1}: OpXnor,
	{2, 2}: OpSll, {3, 0}: OpSrl, {3, 1}: OpSra, {2, 3}: OpRol, {3, 2}: OpRor,
	{4, 0}: OpSlt, {4, 1}: OpSltu, {4, 2}: OpMin, {4, 3}: OpMax,
	{5, 0}: OpMinu, {5, 1}: OpMaxu,
	{3, 3}: OpClz, {7, 2}: OpCtz, {7, 1}: OpCpop, {7, 0}: OpRev8,
}

var rPlaneRev = func() map[Op][2]uint32 {
	out := make(map[Op][2]uint32, len(rPlane))
	for k, op := range rPlane {
		out[op] = k
	}
	return out
}()

const fieldMarker = 0x3F // bits 29:24 of the field-operation plane

var fieldPlane = [5]Op{OpFadd, OpFsub, OpFmul, OpFneg, OpFinv}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// Decode parses a 30-bit instruction word. Words with nonzero reserved bits
// or unassigned opcode/function combinations are rejected.
func Decode(word uint32) (Instruction, error) {
	if word&0xC000_0000 != 0 {
		return Instruction{}, decodeErr(word, "reserved bits 31:30 set")
	}
	opcode := word & 0xF
	switch opcode {
	case OpcodeR:
		rd := (word >> 4) & 0x1F
		rs1 := (word >> 9) & 0x1F
		rs2 := (word >> 14) & 0x1F
		funct := (word >> 19) & 0x7
		ext := (word >> 22) & 0x3
		marker := (word >> 24) & 0x3F
		switch {
		case funct == 7 && ext == 3: // conditional-move plane
			if marker > 1 {
				return Instruction{}, decodeErr(word, "unassigned cmov function %d", marker)
			}
			op := OpCmovz
			if marker == 1 {
				op = OpCmovnz
			}
			return Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
		case marker == fieldMarker && ext == 0:
			if funct > 4 {
				return Instruction{}, decodeErr(word, "unassigned field operation %d", funct)
			}
			op := fieldPlane[funct]
			if (op == OpFneg || op == OpFinv) && rs2 != 0 {
				return Instruction{}, decodeErr(word, "nonzero rs2 in unary field operation")
			}
			return Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
		case marker == 0:
			op, ok := rPlane[[2]uint32{funct, ext}]
			if !ok {
				return Instruction{}, decodeErr(word, "unassigned funct/ext %d/%d", funct, ext)
			}
			if (op == OpClz || op == OpCtz || op == OpCpop || op == OpRev8) && rs2 != 0 {
				return Instruction{}, decodeErr(word, "nonzero rs2 in unary operation")
			}
			return Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
		default:
			return Instruction{}, decodeErr(word, "reserved bits 29:24 set")
		}
	case OpcodeI:
		rd := (word >> 4) & 0x1F
		rs1 := (word >> 9) & 0x1F
		imm := (word >> 14) & 0x1FFF
		funct := (word >> 27) & 0x7
		switch funct {
		case 0:
			return Instruction{Op: OpAddi, Rd: rd, Rs1: rs1, Imm: signExtend(imm, 13)}, nil
		case 2:
			return Instruction{Op: OpSlti, Rd: rd, Rs1: rs1, Imm: signExtend(imm, 13)}, nil
		case 3:
			return Instruction{Op: OpSltiu, Rd: rd, Rs1: rs1, Imm: signExtend(imm, 13)}, nil
		case 4:
			return Instruction{Op: OpXori, Rd: rd, Rs1: rs1, Imm: signExtend(imm, 13)}, nil
		case 6:
			return Instruction{Op: OpOri, Rd: rd, Rs1: rs1, Imm: signExtend(imm, 13)}, nil
		case 7:
			return Instruction{Op: OpAndi, Rd: rd, Rs1: rs1, Imm: signExtend(imm, 13)}, nil
		case 1:
			if imm >= IntBits {
				return Instruction{}, decodeErr(word, "shift amount %d out of range", imm)
			}
			return Instruction{Op: OpSlli, Rd: rd, Rs1: rs1, Imm: int32(imm)}, nil
		case 5:
			shamt := imm & 0x1F
			switch imm &^ 0x1F {
			case 0:
				if shamt >= IntBits {
					return Instruction{}, decodeErr(word, "shift amount %d out of range", shamt)
				}
				return Instruction{Op: OpSrli, Rd: rd, Rs1: rs1, Imm: int32(shamt)}, nil
			case 1 << 12:
				if shamt >= IntBits {
					return Instruction{}, decodeErr(word, "shift amount %d out of range", shamt)
				}
				return Instruction{Op: OpSrai, Rd: rd, Rs1: rs1, Imm: int32(shamt)}, nil
			default:
				return Instruction{}, decodeErr(word, "reserved shift immediate bits set")
			}
		}
		return Instruction{}, decodeErr(word, "unassigned immediate function %d", funct)
	case OpcodeLoad:
		rd := (word >> 4) & 0x1F
		rs1 := (word >> 9) & 0x1F
		imm := signExtend((word>>14)&0x1FFF, 13)
		funct := (word >> 27) & 0x7
		var op Op
		switch funct {
		case 0:
			op = OpLb
		case 1:
			op = OpLh
		case 2:
			op = OpLw
		case 4:
			op = OpLbu
		case 5:
			op = OpLhu
		default:
			return Instruction{}, decodeErr(word, "unassigned load width %d", funct)
		}
		return Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: imm}, nil
	case OpcodeStore:
		funct := (word >> 4) & 0x7
		rs1 := (word >> 7) & 0x1F
		rs2 := (word >> 12) & 0x1F
		imm := signExtend((word>>17)&0x1FFF, 13)
		var op Op
		switch funct {
		case 0:
			op = OpSb
		case 1:
			op = OpSh
		case 2:
			op = OpSw
		default:
			return Instruction{}, decodeErr(word, "unassigned store width %d", funct)
		}
		return Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: imm}, nil
	case OpcodeBeq, OpcodeBne, OpcodeBlt, OpcodeBge, OpcodeBltu, OpcodeBgeu:
		rs2 := (word >> 4) & 0x1F
		rs1 := (word >> 9) & 0x1F
		imm := signExtend((word>>14)&0xFFFF, 16)
		op := OpBeq + Op(opcode-OpcodeBeq)
		return Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: imm}, nil
	case OpcodeLui, OpcodeAuipc:
		rd := (word >> 4) & 0x1F
		imm := (word >> 9) & 0x1F_FFFF
		op := OpLui
		if opcode == OpcodeAuipc {
			op = OpAuipc
		}
		return Instruction{Op: op, Rd: rd, Imm: int32(imm)}, nil
	case OpcodeJal:
		rd := (word >> 4) & 0x1F
		imm := signExtend((word>>9)&0x1F_FFFF, 21)
		return Instruction{Op: OpJal, Rd: rd, Imm: imm}, nil
	case OpcodeJalr:
		rd := (word >> 4) & 0x1F
		rs1 := (word >> 9) & 0x1F
		imm := (word >> 14) & 0x1FFF
		if funct := (word >> 27) & 0x7; funct != 0 {
			return Instruction{}, decodeErr(word, "unassigned jalr function %d", funct)
		}
		return Instruction{Op: OpJalr, Rd: rd, Rs1: rs1, Imm: signExtend(imm, 13)}, nil
	case OpcodeZK:
		rd := (word >> 7) & 0x1F
		rs1 := (word >> 12) & 0x1F
		imm := (word >> 17) & 0xFF
		fn := (word >> 25) & 0x1F
		if word&0x70 != 0 { // bits 6:4 unused in the Z format
			return Instruction{}, decodeErr(word, "reserved bits 6:4 set")
		}
		mustZero := func(cond bool, what string) error {
			if !cond {
				return decodeErr(word, "nonzero %s field", what)
			}
			return nil
		}
		switch fn {
		case ZKFuncRead, ZKFuncHint:
			if err := mustZero(rs1 == 0 && imm == 0, "operand"); err != nil {
				return Instruction{}, err
			}
			op := OpRead
			if fn == ZKFuncHint {
				op = OpHint
			}
			return Instruction{Op: op, Rd: rd}, nil
		case ZKFuncWrite, ZKFuncCommit, ZKFuncAssertZero, ZKFuncDebug:
			if err := mustZero(rd == 0 && imm == 0, "operand"); err != nil {
				return Instruction{}, err
			}
			var op Op
			switch fn {
			case ZKFuncWrite:
				op = OpWrite
			case ZKFuncCommit:
				op = OpCommit
			case ZKFuncAssertZero:
				op = OpAssertZero
			default:
				op = OpDebug
			}
			return Instruction{Op: op, Rs1: rs1}, nil
		case ZKFuncAssertEq, ZKFuncAssertNe:
			if err := mustZero(imm == 0, "immediate"); err != nil {
				return Instruction{}, err
			}
			op := OpAssertEq
			if fn == ZKFuncAssertNe {
				op = OpAssertNe
			}
			// rs2 travels in the rd slot of the Z format
			return Instruction{Op: op, Rs1: rs1, Rs2: rd}, nil
		case ZKFuncRangeCheck:
			if err := mustZero(rd == 0, "rd"); err != nil {
				return Instruction{}, err
			}
			if imm < 1 || imm > IntBits {
				return Instruction{}, decodeErr(word, "range check width %d out of range", imm)
			}
			return Instruction{Op: OpRangeCheck, Rs1: rs1, Bits: imm}, nil
		case ZKFuncHalt:
			if err := mustZero(rd == 0 && rs1 == 0 && imm == 0, "operand"); err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpHalt}, nil
		default:
			return Instruction{}, decodeErr(word, "unassigned zk function %d", fn)
		}
	case OpcodeSystem:
		rd := (word >> 4) & 0x1F
		rs1 := (word >> 9) & 0x1F
		imm := (word >> 14) & 0x1FFF
		funct := (word >> 27) & 0x7
		if funct != 0 || rd != 0 || rs1 != 0 {
			return Instruction{}, decodeErr(word, "reserved system fields set")
		}
		switch imm {
		case 0:
			return Instruction{Op: OpEcall}, nil
		case 1:
			return Instruction{Op: OpEbreak}, nil
		default:
			return Instruction{}, decodeErr(word, "unassigned system immediate %d", imm)
		}
	}
	// unreachable: all 4-bit opcodes are assigned
	return Instruction{}, decodeErr(word, "unassigned opcode %d", opcode)
}

func encodeR(op Op, rd, rs1, rs2 uint32) uint32 {
	fe := rPlaneRev[op]
	return OpcodeR | rd<<4 | rs1<<9 | rs2<<14 | fe[0]<<19 | fe[1]<<22
}

func encodeI(opcode, rd, rs1 uint32, imm int32, funct uint32) uint32 {
	return opcode | rd<<4 | rs1<<9 | (uint32(imm)&0x1FFF)<<14 | funct<<27
}

func encodeZ(fn, rd, rs1, imm uint32) uint32 {
	return OpcodeZK | rd<<7 | rs1<<12 | (imm&0xFF)<<17 | fn<<25
}

// Encode produces the 30-bit word for a well-formed instruction. It is total
// over instructions that Decode can produce; out-of-range operand values are
// truncated into their fields.
func Encode(i Instruction) uint32 {
	switch i.Op {
	case OpCmovz, OpCmovnz:
		ext2 := uint32(0)
		if i.Op == OpCmovnz {
			ext2 = 1
		}
		return OpcodeR | i.Rd<<4 | i.Rs1<<9 | i.Rs2<<14 | 7<<19 | 3<<22 | ext2<<24
	case OpFadd, OpFsub, OpFmul, OpFneg, OpFinv:
		funct := uint32(i.Op - OpFadd)
		return OpcodeR | i.Rd<<4 | i.Rs1<<9 | i.Rs2<<14 | funct<<19 | fieldMarker<<24
	case OpAddi:
		return encodeI(OpcodeI, i.Rd, i.Rs1, i.Imm, 0)
	case OpSlti:
		return encodeI(OpcodeI, i.Rd, i.Rs1, i.Imm, 2)
	case OpSltiu:
		return encodeI(OpcodeI, i.Rd, i.Rs1, i.Imm, 3)
	case OpXori:
		return encodeI(OpcodeI, i.Rd, i.Rs1, i.Imm, 4)
	case OpOri:
		return encodeI(OpcodeI, i.Rd, i.Rs1, i.Imm, 6)
	case OpAndi:
		return encodeI(OpcodeI, i.Rd, i.Rs1, i.Imm, 7)
	case OpSlli:
		return encodeI(OpcodeI, i.Rd, i.Rs1, i.Imm, 1)
	case OpSrli:
		return encodeI(OpcodeI, i.Rd, i.Rs1, i.Imm, 5)
	case OpSrai:
		return encodeI(OpcodeI, i.Rd, i.Rs1, i.Imm|1<<12, 5)
	case OpLb:
		return encodeI(OpcodeLoad, i.Rd, i.Rs1, i.Imm, 0)
	case OpLh:
		return encodeI(OpcodeLoad, i.Rd, i.Rs1, i.Imm, 1)
	case OpLw:
		return encodeI(OpcodeLoad, i.Rd, i.Rs1, i.Imm, 2)
	case OpLbu:
		return encodeI(OpcodeLoad, i.Rd, i.Rs1, i.Imm, 4)
	case OpLhu:
		return encodeI(OpcodeLoad, i.Rd, i.Rs1, i.Imm, 5)
	case OpSb, OpSh, OpSw:
		funct := uint32(i.Op - OpSb)
		return OpcodeStore | funct<<4 | i.Rs1<<7 | i.Rs2<<12 | (uint32(i.Imm)&0x1FFF)<<17
	case OpBeq, OpBne, OpBlt, OpBge, OpBltu, OpBgeu:
		opcode := OpcodeBeq + uint32(i.Op-OpBeq)
		return opcode | i.Rs2<<4 | i.Rs1<<9 | (uint32(i.Imm)&0xFFFF)<<14
	case OpLui:
		return OpcodeLui | i.Rd<<4 | (uint32(i.Imm)&0x1F_FFFF)<<9
	case OpAuipc:
		return OpcodeAuipc | i.Rd<<4 | (uint32(i.Imm)&0x1F_FFFF)<<9
	case OpJal:
		return OpcodeJal | i.Rd<<4 | (uint32(i.Imm)&0x1F_FFFF)<<9
	case OpJalr:
		return encodeI(OpcodeJalr, i.Rd, i.Rs1, i.Imm, 0)
	case OpRead:
		return encodeZ(ZKFuncRead, i.Rd, 0, 0)
	case OpWrite:
		return encodeZ(ZKFuncWrite, 0, i.Rs1, 0)
	case OpHint:
		return encodeZ(ZKFuncHint, i.Rd, 0, 0)
	case OpCommit:
		return encodeZ(ZKFuncCommit, 0, i.Rs1, 0)
	case OpAssertEq:
		return encodeZ(ZKFuncAssertEq, i.Rs2, i.Rs1, 0)
	case OpAssertNe:
		return encodeZ(ZKFuncAssertNe, i.Rs2, i.Rs1, 0)
	case OpAssertZero:
		return encodeZ(ZKFuncAssertZero, 0, i.Rs1, 0)
	case OpRangeCheck:
		return encodeZ(ZKFuncRangeCheck, 0, i.Rs1, i.Bits)
	case OpDebug:
		return encodeZ(ZKFuncDebug, 0, i.Rs1, 0)
	case OpHalt:
		return encodeZ(ZKFuncHalt, 0, 0, 0)
	case OpEcall:
		return encodeI(OpcodeSystem, 0, 0, 0, 0)
	case OpEbreak:
		return encodeI(OpcodeSystem, 0, 0, 1, 0)
	default:
		return encodeR(i.Op, i.Rd, i.Rs1, i.Rs2)
	}
}
