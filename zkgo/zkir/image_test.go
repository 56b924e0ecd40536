package zkir

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProgramRoundTrip(t *testing.T) {
	code := []uint32{
		Encode(Instruction{Op: OpAddi, Rd: RegA0, Imm: 42}),
		Encode(Instruction{Op: OpCommit, Rs1: RegA0}),
		Encode(Instruction{Op: OpHalt}),
	}
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	prog, err := NewProgram(code, data, 16)
	require.NoError(t, err)
	require.Equal(t, uint32(CodeBase), prog.Header.EntryPoint)
	require.Equal(t, uint32(12), prog.Header.CodeSize)

	var buf bytes.Buffer
	n, err := prog.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	require.Equal(t, headerSize+len(code)*InstrSize+len(data), buf.Len())

	loaded, err := LoadProgram(&buf)
	require.NoError(t, err)
	require.Equal(t, prog.Header, loaded.Header)
	require.Equal(t, code, loaded.Code)
	require.Equal(t, data, loaded.Data)
}

func TestLoadProgramRejectsBadHeaders(t *testing.T) {
	valid := func() []byte {
		prog, err := NewProgram([]uint32{Encode(Instruction{Op: OpHalt})}, nil, 0)
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = prog.WriteTo(&buf)
		require.NoError(t, err)
		return buf.Bytes()
	}

	cases := []struct {
		name   string
		mutate func(img []byte)
		errMsg string
	}{
		{"bad magic", func(img []byte) {
			binary.LittleEndian.PutUint32(img[0:], 0xDEADBEEF)
		}, "bad magic"},
		{"bad version", func(img []byte) {
			binary.LittleEndian.PutUint32(img[4:], 0x0001_0000)
		}, "unsupported image version"},
		{"unaligned code size", func(img []byte) {
			binary.LittleEndian.PutUint32(img[16:], 7)
		}, "not a multiple"},
		{"oversized code", func(img []byte) {
			binary.LittleEndian.PutUint32(img[16:], uint32(DataBase))
		}, "overflows the code segment"},
		{"oversized data", func(img []byte) {
			binary.LittleEndian.PutUint32(img[20:], uint32(HeapBase))
		}, "overflows the data segment"},
		{"unaligned entry", func(img []byte) {
			binary.LittleEndian.PutUint32(img[12:], uint32(CodeBase)+2)
		}, "not instruction-aligned"},
		{"entry outside code", func(img []byte) {
			binary.LittleEndian.PutUint32(img[12:], uint32(CodeBase)+4)
		}, "outside code segment"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			img := valid()
			tc.mutate(img)
			_, err := LoadProgram(bytes.NewReader(img))
			require.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func TestLoadProgramTruncated(t *testing.T) {
	prog, err := NewProgram([]uint32{Encode(Instruction{Op: OpHalt})}, []byte{9, 9}, 0)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = prog.WriteTo(&buf)
	require.NoError(t, err)
	img := buf.Bytes()

	_, err = LoadProgram(bytes.NewReader(img[:10]))
	require.ErrorContains(t, err, "image header")
	_, err = LoadProgram(bytes.NewReader(img[:headerSize+2]))
	require.ErrorContains(t, err, "code section")
	_, err = LoadProgram(bytes.NewReader(img[:len(img)-1]))
	require.ErrorContains(t, err, "data section")
}
