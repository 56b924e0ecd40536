package zkir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	cases := []Instruction{
		{Op: OpAdd, Rd: 5, Rs1: 6, Rs2: 7},
		{Op: OpSub, Rd: 1, Rs1: 2, Rs2: 3},
		{Op: OpMul, Rd: 31, Rs1: 31, Rs2: 31},
		{Op: OpMulh, Rd: 4, Rs1: 5, Rs2: 6},
		{Op: OpMulhu, Rd: 4, Rs1: 5, Rs2: 6},
		{Op: OpMulhsu, Rd: 4, Rs1: 5, Rs2: 6},
		{Op: OpDiv, Rd: 8, Rs1: 9, Rs2: 10},
		{Op: OpDivu, Rd: 8, Rs1: 9, Rs2: 10},
		{Op: OpRem, Rd: 8, Rs1: 9, Rs2: 10},
		{Op: OpRemu, Rd: 8, Rs1: 9, Rs2: 10},
		{Op: OpAnd, Rd: 1, Rs1: 2, Rs2: 3},
		{Op: OpAndn, Rd: 1, Rs1: 2, Rs2: 3},
		{Op: OpOr, Rd: 1, Rs1: 2, Rs2: 3},
		{Op: OpOrn, Rd: 1, Rs1: 2, Rs2: 3},
		{Op: OpXor, Rd: 1, Rs1: 2, Rs2: 3},
		{Op: OpXnor, Rd: 1, Rs1: 2, Rs2: 3},
		{Op: OpSll, Rd: 11, Rs1: 12, Rs2: 13},
		{Op: OpSrl, Rd: 11, Rs1: 12, Rs2: 13},
		{Op: OpSra, Rd: 11, Rs1: 12, Rs2: 13},
		{Op: OpRol, Rd: 11, Rs1: 12, Rs2: 13},
		{Op: OpRor, Rd: 11, Rs1: 12, Rs2: 13},
		{Op: OpSlt, Rd: 14, Rs1: 15, Rs2: 16},
		{Op: OpSltu, Rd: 14, Rs1: 15, Rs2: 16},
		{Op: OpMin, Rd: 14, Rs1: 15, Rs2: 16},
		{Op: OpMax, Rd: 14, Rs1: 15, Rs2: 16},
		{Op: OpMinu, Rd: 14, Rs1: 15, Rs2: 16},
		{Op: OpMaxu, Rd: 14, Rs1: 15, Rs2: 16},
		{Op: OpClz, Rd: 17, Rs1: 18},
		{Op: OpCtz, Rd: 17, Rs1: 18},
		{Op: OpCpop, Rd: 17, Rs1: 18},
		{Op: OpRev8, Rd: 17, Rs1: 18},
		{Op: OpCmovz, Rd: 19, Rs1: 20, Rs2: 21},
		{Op: OpCmovnz, Rd: 19, Rs1: 20, Rs2: 21},
		{Op: OpFadd, Rd: 1, Rs1: 2, Rs2: 3},
		{Op: OpFsub, Rd: 1, Rs1: 2, Rs2: 3},
		{Op: OpFmul, Rd: 1, Rs1: 2, Rs2: 3},
		{Op: OpFneg, Rd: 1, Rs1: 2},
		{Op: OpFinv, Rd: 1, Rs1: 2},
		{Op: OpAddi, Rd: 4, Rs1: 5, Imm: 123},
		{Op: OpAddi, Rd: 4, Rs1: 0, Imm: -1},
		{Op: OpAddi, Rd: 4, Rs1: 0, Imm: -4096},
		{Op: OpAddi, Rd: 4, Rs1: 0, Imm: 4095},
		{Op: OpSlti, Rd: 4, Rs1: 5, Imm: -7},
		{Op: OpSltiu, Rd: 4, Rs1: 5, Imm: 7},
		{Op: OpXori, Rd: 4, Rs1: 5, Imm: -1},
		{Op: OpOri, Rd: 4, Rs1: 5, Imm: 0xFF},
		{Op: OpAndi, Rd: 4, Rs1: 5, Imm: 0xFF},
		{Op: OpSlli, Rd: 4, Rs1: 5, Imm: 29},
		{Op: OpSrli, Rd: 4, Rs1: 5, Imm: 0},
		{Op: OpSrai, Rd: 4, Rs1: 5, Imm: 17},
		{Op: OpLb, Rd: 6, Rs1: 2, Imm: -4},
		{Op: OpLh, Rd: 6, Rs1: 2, Imm: 2},
		{Op: OpLw, Rd: 6, Rs1: 2, Imm: 64},
		{Op: OpLbu, Rd: 6, Rs1: 2, Imm: 3},
		{Op: OpLhu, Rd: 6, Rs1: 2, Imm: -2},
		{Op: OpSb, Rs1: 2, Rs2: 6, Imm: -4},
		{Op: OpSh, Rs1: 2, Rs2: 6, Imm: 2},
		{Op: OpSw, Rs1: 2, Rs2: 6, Imm: 64},
		{Op: OpBeq, Rs1: 4, Rs2: 0, Imm: 24},
		{Op: OpBne, Rs1: 4, Rs2: 5, Imm: -24},
		{Op: OpBlt, Rs1: 4, Rs2: 5, Imm: 32764},
		{Op: OpBge, Rs1: 4, Rs2: 5, Imm: -32768},
		{Op: OpBltu, Rs1: 4, Rs2: 5, Imm: 8},
		{Op: OpBgeu, Rs1: 4, Rs2: 5, Imm: -8},
		{Op: OpLui, Rd: 7, Imm: 0x1F_FFFF},
		{Op: OpAuipc, Rd: 7, Imm: 0x12345},
		{Op: OpJal, Rd: 30, Imm: -20},
		{Op: OpJal, Rd: 0, Imm: 1048572},
		{Op: OpJalr, Rd: 30, Rs1: 8, Imm: -8},
		{Op: OpRead, Rd: 4},
		{Op: OpWrite, Rs1: 5},
		{Op: OpHint, Rd: 6},
		{Op: OpCommit, Rs1: 7},
		{Op: OpAssertEq, Rs1: 8, Rs2: 9},
		{Op: OpAssertNe, Rs1: 8, Rs2: 9},
		{Op: OpAssertZero, Rs1: 10},
		{Op: OpRangeCheck, Rs1: 11, Bits: 16},
		{Op: OpRangeCheck, Rs1: 11, Bits: 1},
		{Op: OpRangeCheck, Rs1: 11, Bits: 30},
		{Op: OpDebug, Rs1: 12},
		{Op: OpHalt},
		{Op: OpEcall},
		{Op: OpEbreak},
	}
	for _, tc := range cases {
		t.Run(tc.String(), func(t *testing.T) {
			word := Encode(tc)
			require.Zero(t, word&0xC000_0000, "reserved bits must stay clear")
			got, err := Decode(word)
			require.NoError(t, err)
			require.Equal(t, tc, got)
		})
	}
}

func TestCodecExactWords(t *testing.T) {
	require.Equal(t, uint32(0x0001CC50), Encode(Instruction{Op: OpAdd, Rd: 5, Rs1: 6, Rs2: 7}))
	require.Equal(t, uint32(0x3E00000E), Encode(Instruction{Op: OpHalt}))
	require.Equal(t, uint32(0x7FFC041), Encode(Instruction{Op: OpAddi, Rd: 4, Imm: -1}))
}

func TestDecodeRejectsMalformedWords(t *testing.T) {
	cases := []struct {
		name string
		word uint32
	}{
		{"reserved top bits", 0x8000_0000},
		{"reserved top bits with valid body", 0x4001CC50},
		{"r-plane reserved marker", 0x0100_0000 | 0x1CC50},
		{"unassigned cmov function", Encode(Instruction{Op: OpCmovz, Rd: 1, Rs1: 2, Rs2: 3}) | 2<<24},
		{"unassigned field function", 0x3F00_0000 | 5<<19},
		{"nonzero rs2 in clz", encodeR(OpClz, 1, 2, 3)},
		{"nonzero rs2 in fneg", OpcodeR | 1<<4 | 2<<9 | 3<<14 | 3<<19 | fieldMarker << 24},
		{"slli shamt 30", encodeI(OpcodeI, 1, 2, 30, 1)},
		{"srli shamt 31", encodeI(OpcodeI, 1, 2, 31, 5)},
		{"reserved srli immediate bits", encodeI(OpcodeI, 1, 2, 1<<11|3, 5)},
		{"unassigned load width", encodeI(OpcodeLoad, 1, 2, 0, 3)},
		{"unassigned store width", OpcodeStore | 5<<4},
		{"unassigned jalr funct", encodeI(OpcodeJalr, 1, 2, 0, 4)},
		{"zk reserved low bits", Encode(Instruction{Op: OpHalt}) | 1<<4},
		{"zk read with source operand", encodeZ(ZKFuncRead, 4, 5, 0)},
		{"zk write with rd operand", encodeZ(ZKFuncWrite, 4, 5, 0)},
		{"zk assert_eq with immediate", encodeZ(ZKFuncAssertEq, 4, 5, 9)},
		{"range check width zero", encodeZ(ZKFuncRangeCheck, 0, 5, 0)},
		{"range check width 31", encodeZ(ZKFuncRangeCheck, 0, 5, 31)},
		{"unassigned zk function", encodeZ(0x09, 0, 0, 0)},
		{"halt with operand", encodeZ(ZKFuncHalt, 0, 3, 0)},
		{"system immediate 2", encodeI(OpcodeSystem, 0, 0, 2, 0)},
		{"system with rd", encodeI(OpcodeSystem, 3, 0, 0, 0)},
		{"system with funct", encodeI(OpcodeSystem, 0, 0, 0, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.word)
			require.Error(t, err)
			var derr *DecodeError
			require.ErrorAs(t, err, &derr)
			require.Equal(t, tc.word, derr.Word)
		})
	}
}

func TestImmediateSignExtension(t *testing.T) {
	inst, err := Decode(Encode(Instruction{Op: OpAddi, Rd: 1, Imm: -4096}))
	require.NoError(t, err)
	require.Equal(t, int32(-4096), inst.Imm)

	inst, err = Decode(Encode(Instruction{Op: OpBge, Rs1: 1, Rs2: 2, Imm: -32768}))
	require.NoError(t, err)
	require.Equal(t, int32(-32768), inst.Imm)

	inst, err = Decode(Encode(Instruction{Op: OpJal, Rd: 0, Imm: -1048576}))
	require.NoError(t, err)
	require.Equal(t, int32(-1048576), inst.Imm)

	// upper immediates are raw, not sign-extended
	inst, err = Decode(Encode(Instruction{Op: OpLui, Rd: 1, Imm: 0x1F_FFFF}))
	require.NoError(t, err)
	require.Equal(t, int32(0x1F_FFFF), inst.Imm)
}
