package zkir

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// ImageMagic is "ZKIR" read as a little-endian word.
	ImageMagic   uint32 = 0x5A4B4952
	ImageVersion uint32 = 0x0002_0001

	headerSize = 28
)

// Header is the fixed-size program image header. All fields little-endian.
type Header struct {
	Magic      uint32
	Version    uint32
	Flags      uint32
	EntryPoint uint32
	CodeSize   uint32 // bytes, multiple of InstrSize
	DataSize   uint32 // bytes of initialized data
	BSSSize    uint32 // bytes of zero-initialized data
}

// Program is a parsed, validated program image. The engine treats it as
// read-only; Code holds one instruction word per 4-byte slot.
type Program struct {
	Header Header
	Code   []uint32
	Data   []byte
}

func (h Header) validate() error {
	if h.Magic != ImageMagic {
		return fmt.Errorf("bad magic %08x, expected %08x", h.Magic, ImageMagic)
	}
	if h.Version != ImageVersion {
		return fmt.Errorf("unsupported image version %08x", h.Version)
	}
	if h.CodeSize%InstrSize != 0 {
		return fmt.Errorf("code size %d not a multiple of %d", h.CodeSize, InstrSize)
	}
	if uint64(CodeBase)+uint64(h.CodeSize) > uint64(DataBase) {
		return fmt.Errorf("code size %d overflows the code segment", h.CodeSize)
	}
	if uint64(DataBase)+uint64(h.DataSize)+uint64(h.BSSSize) > uint64(HeapBase) {
		return fmt.Errorf("data size %d + bss size %d overflows the data segment", h.DataSize, h.BSSSize)
	}
	if h.EntryPoint%InstrSize != 0 {
		return fmt.Errorf("entry point %08x not instruction-aligned", h.EntryPoint)
	}
	if h.EntryPoint < CodeBase || h.EntryPoint >= CodeBase+h.CodeSize {
		return fmt.Errorf("entry point %08x outside code segment", h.EntryPoint)
	}
	return nil
}

// LoadProgram reads and validates a program image.
func LoadProgram(r io.Reader) (*Program, error) {
	var raw [headerSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	h := Header{
		Magic:      binary.LittleEndian.Uint32(raw[0:]),
		Version:    binary.LittleEndian.Uint32(raw[4:]),
		Flags:      binary.LittleEndian.Uint32(raw[8:]),
		EntryPoint: binary.LittleEndian.Uint32(raw[12:]),
		CodeSize:   binary.LittleEndian.Uint32(raw[16:]),
		DataSize:   binary.LittleEndian.Uint32(raw[20:]),
		BSSSize:    binary.LittleEndian.Uint32(raw[24:]),
	}
	if err := h.validate(); err != nil {
		return nil, fmt.Errorf("invalid image header: %w", err)
	}
	codeBytes := make([]byte, h.CodeSize)
	if _, err := io.ReadFull(r, codeBytes); err != nil {
		return nil, fmt.Errorf("failed to read code section (%d bytes): %w", h.CodeSize, err)
	}
	code := make([]uint32, h.CodeSize/InstrSize)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(codeBytes[i*InstrSize:])
	}
	data := make([]byte, h.DataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read data section (%d bytes): %w", h.DataSize, err)
	}
	return &Program{Header: h, Code: code, Data: data}, nil
}

// NewProgram builds an image around assembled code and initial data, filling
// in the header. Entry defaults to the start of the code segment.
func NewProgram(code []uint32, data []byte, bssSize uint32) (*Program, error) {
	h := Header{
		Magic:      ImageMagic,
		Version:    ImageVersion,
		EntryPoint: CodeBase,
		CodeSize:   uint32(len(code)) * InstrSize,
		DataSize:   uint32(len(data)),
		BSSSize:    bssSize,
	}
	if err := h.validate(); err != nil {
		return nil, fmt.Errorf("invalid program: %w", err)
	}
	return &Program{Header: h, Code: code, Data: data}, nil
}

// WriteTo serializes the image. The header is re-derived from the section
// contents so Code/Data edits cannot go stale.
func (p *Program) WriteTo(w io.Writer) (int64, error) {
	h := p.Header
	h.CodeSize = uint32(len(p.Code)) * InstrSize
	h.DataSize = uint32(len(p.Data))
	if err := h.validate(); err != nil {
		return 0, fmt.Errorf("refusing to write invalid image: %w", err)
	}
	buf := make([]byte, headerSize+len(p.Code)*InstrSize+len(p.Data))
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint32(buf[8:], h.Flags)
	binary.LittleEndian.PutUint32(buf[12:], h.EntryPoint)
	binary.LittleEndian.PutUint32(buf[16:], h.CodeSize)
	binary.LittleEndian.PutUint32(buf[20:], h.DataSize)
	binary.LittleEndian.PutUint32(buf[24:], h.BSSSize)
	for i, word := range p.Code {
		binary.LittleEndian.PutUint32(buf[headerSize+i*InstrSize:], word)
	}
	copy(buf[headerSize+len(p.Code)*InstrSize:], p.Data)
	n, err := w.Write(buf)
	return int64(n), err
}
