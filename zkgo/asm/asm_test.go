package asm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zkir-project/zkir/zkgo/zkir"
)

const fibSource = `
# fibonacci: reads n, writes fib(n)
	read a0
	addi a1, zero, 0
	addi a2, zero, 1
loop:
	beq a0, zero, done
	add a3, a1, a2
	addi a1, a2, 0
	addi a2, a3, 0
	addi a0, a0, -1
	jal zero, loop
done:
	write a1       ; result
	commit a1
	halt
`

func TestAssembleFibonacci(t *testing.T) {
	prog, err := Assemble(fibSource)
	require.NoError(t, err)

	want := []zkir.Instruction{
		{Op: zkir.OpRead, Rd: zkir.RegA0},
		{Op: zkir.OpAddi, Rd: zkir.RegA1, Imm: 0},
		{Op: zkir.OpAddi, Rd: zkir.RegA2, Imm: 1},
		{Op: zkir.OpBeq, Rs1: zkir.RegA0, Rs2: zkir.RegZero, Imm: 24},
		{Op: zkir.OpAdd, Rd: zkir.RegA3, Rs1: zkir.RegA1, Rs2: zkir.RegA2},
		{Op: zkir.OpAddi, Rd: zkir.RegA1, Rs1: zkir.RegA2, Imm: 0},
		{Op: zkir.OpAddi, Rd: zkir.RegA2, Rs1: zkir.RegA3, Imm: 0},
		{Op: zkir.OpAddi, Rd: zkir.RegA0, Rs1: zkir.RegA0, Imm: -1},
		{Op: zkir.OpJal, Rd: zkir.RegZero, Imm: -20},
		{Op: zkir.OpWrite, Rs1: zkir.RegA1},
		{Op: zkir.OpCommit, Rs1: zkir.RegA1},
		{Op: zkir.OpHalt},
	}
	require.Len(t, prog.Code, len(want))
	for i, inst := range want {
		require.Equal(t, zkir.Encode(inst), prog.Code[i], "instruction %d", i)
	}
}

func TestAssembleOperandForms(t *testing.T) {
	prog, err := Assemble(`
	lui a0, 0x1000
	sw a1, 8(a0)
	lw a2, 8(a0)
	lb a3, -1(sp)
	range_check a0, 16
	assert_eq a0, a1
	cmovz t0, a0, a1
	fadd t1, t0, a0
	finv t2, t1
	srai t3, t2, 5
	jalr ra, t3, 0
	.word 0x12345678
	ebreak
`)
	require.NoError(t, err)

	want := []zkir.Instruction{
		{Op: zkir.OpLui, Rd: zkir.RegA0, Imm: 0x1000},
		{Op: zkir.OpSw, Rs1: zkir.RegA0, Rs2: zkir.RegA1, Imm: 8},
		{Op: zkir.OpLw, Rd: zkir.RegA2, Rs1: zkir.RegA0, Imm: 8},
		{Op: zkir.OpLb, Rd: zkir.RegA3, Rs1: zkir.RegSP, Imm: -1},
		{Op: zkir.OpRangeCheck, Rs1: zkir.RegA0, Bits: 16},
		{Op: zkir.OpAssertEq, Rs1: zkir.RegA0, Rs2: zkir.RegA1},
		{Op: zkir.OpCmovz, Rd: zkir.RegT0, Rs1: zkir.RegA0, Rs2: zkir.RegA1},
		{Op: zkir.OpFadd, Rd: zkir.RegT0 + 1, Rs1: zkir.RegT0, Rs2: zkir.RegA0},
		{Op: zkir.OpFinv, Rd: zkir.RegT0 + 2, Rs1: zkir.RegT0 + 1},
		{Op: zkir.OpSrai, Rd: zkir.RegT0 + 3, Rs1: zkir.RegT0 + 2, Imm: 5},
		{Op: zkir.OpJalr, Rd: zkir.RegRA, Rs1: zkir.RegT0 + 3, Imm: 0},
	}
	require.Len(t, prog.Code, len(want)+2)
	for i, inst := range want {
		require.Equal(t, zkir.Encode(inst), prog.Code[i], "instruction %d", i)
	}
	require.Equal(t, uint32(0x12345678), prog.Code[len(want)])
	require.Equal(t, zkir.Encode(zkir.Instruction{Op: zkir.OpEbreak}), prog.Code[len(want)+1])
}

func TestAssembleNumericRegisters(t *testing.T) {
	a, err := Assemble("add r4, r5, r6\nhalt")
	require.NoError(t, err)
	b, err := Assemble("add a0, a1, a2\nhalt")
	require.NoError(t, err)
	require.Equal(t, a.Code, b.Code)
}

func TestAssembleErrors(t *testing.T) {
	cases := []struct {
		name   string
		src    string
		errMsg string
	}{
		{"unknown mnemonic", "frobnicate a0, a1", "unknown mnemonic"},
		{"unknown register", "add a0, a1, q9", "unknown register"},
		{"wrong operand count", "add a0, a1", "expected 3 operands"},
		{"bad immediate", "addi a0, a1, banana", "bad immediate"},
		{"bad address form", "lw a0, a1", "expected imm(reg)"},
		{"duplicate label", "x:\nhalt\nx:\nhalt", "duplicate label"},
		{"range check width", "range_check a0, 31", "outside 1..30"},
		{"bad word", ".word 0x1_0000_0000", "bad .word"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Assemble(tc.src)
			require.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func TestDisassembleRoundTrip(t *testing.T) {
	prog, err := Assemble(fibSource)
	require.NoError(t, err)

	listing := Disassemble(prog)
	require.Contains(t, listing, "read a0")
	require.Contains(t, listing, "jal zero, -20")
	require.Contains(t, listing, "halt")

	again, err := Assemble(listing)
	require.NoError(t, err)
	require.Equal(t, prog.Code, again.Code)
}

func TestDisassembleInvalidWord(t *testing.T) {
	prog, err := zkir.NewProgram([]uint32{0x8000_0001, zkir.Encode(zkir.Instruction{Op: zkir.OpHalt})}, nil, 0)
	require.NoError(t, err)
	listing := Disassemble(prog)
	require.Contains(t, listing, ".word 0x80000001")

	again, err := Assemble(listing)
	require.NoError(t, err)
	require.Equal(t, prog.Code, again.Code)
}
