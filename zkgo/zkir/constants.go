// Package zkir defines the ZKIR instruction set: the 30-bit instruction
// word formats, the register file conventions, the memory layout, the
// syscall table numbers, and the Baby Bear field parameters.
package zkir

// Baby Bear prime: 2^31 - 2^27 + 1. All register and memory values are
// strictly below it.
const Modulus uint32 = 2013265921

// Integer register width in bits. Integer operations reduce modulo 2^IntBits,
// which keeps every result below the field modulus.
const IntBits = 30

// Mask30 is the all-ones mask for the 30-bit integer width.
const Mask30 uint32 = (1 << IntBits) - 1

// Instruction slots are 4 bytes; the word occupies bits 29:0, bits 31:30 are
// reserved zero.
const InstrSize = 4

const NumRegisters = 32

// Register indices with ABI aliases.
const (
	RegZero = 0  // hardwired zero
	RegRV   = 1  // return value
	RegSP   = 2  // stack pointer
	RegFP   = 3  // frame pointer
	RegA0   = 4  // argument 0 / syscall arg+ret
	RegA1   = 5  // argument 1
	RegA2   = 6  // argument 2
	RegA3   = 7  // argument 3 / syscall number
	RegT0   = 8  // temporaries r8-r15
	RegS0   = 16 // callee-saved r16-r23
	RegT8   = 24 // temporaries r24-r27
	RegGP   = 28 // global pointer
	RegTP   = 29 // thread pointer
	RegRA   = 30 // return address
)

var regNames = [NumRegisters]string{
	"zero", "rv", "sp", "fp", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "t10", "t11", "gp", "tp", "ra", "r31",
}

// RegName returns the ABI alias for a register index.
func RegName(reg uint32) string {
	if reg < NumRegisters {
		return regNames[reg]
	}
	return "r?"
}

// Default memory layout. All addresses fit the 30-bit address space.
const (
	CodeBase uint32 = 0x0000_1000
	DataBase uint32 = 0x0100_0000
	HeapBase uint32 = 0x2000_0000
	StackTop uint32 = 0x3FFF_F000

	DefaultStackSize uint32 = 1 << 20
	DefaultHeapSize  uint32 = 1 << 20
)

// Major opcodes (bits 3:0 of the instruction word).
const (
	OpcodeR      = 0x0 // register-register ALU, cmov, field plane
	OpcodeI      = 0x1 // register-immediate ALU
	OpcodeLoad   = 0x2
	OpcodeStore  = 0x3
	OpcodeBeq    = 0x4
	OpcodeBne    = 0x5
	OpcodeBlt    = 0x6
	OpcodeBge    = 0x7
	OpcodeBltu   = 0x8
	OpcodeBgeu   = 0x9
	OpcodeLui    = 0xA
	OpcodeAuipc  = 0xB
	OpcodeJal    = 0xC
	OpcodeJalr   = 0xD
	OpcodeZK     = 0xE // read/write/hint/commit/assert/range_check/debug/halt
	OpcodeSystem = 0xF // ecall/ebreak
)

// Z-plane (OpcodeZK) function codes, bits 29:25.
const (
	ZKFuncRead       = 0x00
	ZKFuncWrite      = 0x01
	ZKFuncHint       = 0x02
	ZKFuncCommit     = 0x03
	ZKFuncAssertEq   = 0x04
	ZKFuncAssertNe   = 0x05
	ZKFuncAssertZero = 0x06
	ZKFuncRangeCheck = 0x07
	ZKFuncDebug      = 0x08
	ZKFuncHalt       = 0x1F
)

// Syscall numbers, passed in a3.
const (
	SysExit            = 0x01
	SysRead            = 0x10
	SysWrite           = 0x11
	SysPoseidon2       = 0x12
	SysSha256          = 0x20
	SysKeccak256       = 0x21
	SysBlake2b         = 0x22
	SysSecp256k1Verify = 0x28
	SysMemcpy          = 0x30
	SysMemset          = 0x31
)

// Poseidon2 permutation width in field elements.
const Poseidon2Width = 12

// Bulk memory syscalls refuse to move more than this many words in one call.
const MaxBulkWords = 4096
