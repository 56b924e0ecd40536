package fast

import (
	"encoding/binary"

	"github.com/zkir-project/zkir/zkgo/zkir"
)

// AccessKind classifies one memory access.
type AccessKind uint8

const (
	AccessNone AccessKind = iota
	AccessRead
	AccessWrite
)

func (k AccessKind) String() string {
	switch k {
	case AccessNone:
		return "none"
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	default:
		return "unknown"
	}
}

func (k AccessKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// MemAccess is one entry of the memory access log, appended in program order.
type MemAccess struct {
	Cycle uint64     `json:"cycle"`
	Addr  uint32     `json:"addr"`
	Value uint32     `json:"value"`
	Kind  AccessKind `json:"kind"`
}

// Memory is the machine's address space: an immutable code segment backed by
// the program image, plus sparse word cells for data, heap and stack. Cells
// hold 32-bit containers so subword stores pack bytes.
type Memory struct {
	code     []uint32
	codeBase uint32
	codeEnd  uint32

	dataBase  uint32
	dataEnd   uint32
	heapBase  uint32
	heapEnd   uint32
	stackBase uint32
	stackTop  uint32

	cells map[uint32]uint32
	log   []MemAccess
	cycle uint64
}

// NewMemory lays out the segments for a program and loads its initial data.
func NewMemory(prog *zkir.Program, cfg VMConfig) *Memory {
	m := &Memory{
		code:      prog.Code,
		codeBase:  zkir.CodeBase,
		codeEnd:   zkir.CodeBase + prog.Header.CodeSize,
		dataBase:  zkir.DataBase,
		dataEnd:   zkir.DataBase + prog.Header.DataSize + prog.Header.BSSSize,
		heapBase:  zkir.HeapBase,
		heapEnd:   zkir.HeapBase + cfg.HeapSize,
		stackBase: zkir.StackTop - cfg.StackSize,
		stackTop:  zkir.StackTop,
		cells:     make(map[uint32]uint32),
	}
	for i := 0; i+4 <= len(prog.Data); i += 4 {
		word := binary.LittleEndian.Uint32(prog.Data[i:])
		if word != 0 {
			m.cells[m.dataBase+uint32(i)] = word
		}
	}
	if tail := len(prog.Data) % 4; tail != 0 {
		base := len(prog.Data) - tail
		var word uint32
		for i := 0; i < tail; i++ {
			word |= uint32(prog.Data[base+i]) << (8 * uint(i))
		}
		if word != 0 {
			m.cells[m.dataBase+uint32(base)] = word
		}
	}
	return m
}

// SetCycle stamps subsequent log entries. The step loop advances it.
func (m *Memory) SetCycle(c uint64) {
	m.cycle = c
}

// AccessLog returns the accesses recorded so far, in program order.
func (m *Memory) AccessLog() []MemAccess {
	return m.log
}

func (m *Memory) inCode(addr uint32) bool {
	return addr >= m.codeBase && addr < m.codeEnd
}

// writable reports whether [addr, addr+size) lies inside one mutable segment.
func (m *Memory) writable(addr, size uint32) bool {
	end := addr + size
	switch {
	case addr >= m.dataBase && end <= m.dataEnd:
		return true
	case addr >= m.heapBase && end <= m.heapEnd:
		return true
	case addr >= m.stackBase && end <= m.stackTop:
		return true
	}
	return false
}

func (m *Memory) readable(addr, size uint32) bool {
	if m.writable(addr, size) {
		return true
	}
	return addr >= m.codeBase && addr+size <= m.codeEnd
}

// cell returns the 32-bit container at a 4-aligned address.
func (m *Memory) cell(addr uint32) uint32 {
	if m.inCode(addr) {
		return m.code[(addr-m.codeBase)/4]
	}
	return m.cells[addr]
}

func (m *Memory) record(addr, value uint32, kind AccessKind) {
	m.log = append(m.log, MemAccess{Cycle: m.cycle, Addr: addr, Value: value, Kind: kind})
}

func (m *Memory) outOfBounds(addr uint32) *Trap {
	return &Trap{Cause: TrapOutOfBounds, Addr: addr}
}

func (m *Memory) misaligned(addr uint32) *Trap {
	return &Trap{Cause: TrapMisaligned, Addr: addr}
}

// FetchWord reads an instruction slot. Fetch is not a data access and does
// not enter the log; a pc outside the code segment faults.
func (m *Memory) FetchWord(pc uint32) (uint32, *Trap) {
	if pc%4 != 0 {
		return 0, m.misaligned(pc)
	}
	if !m.inCode(pc) {
		return 0, m.outOfBounds(pc)
	}
	return m.code[(pc-m.codeBase)/4], nil
}

// ReadWord loads a 4-aligned 32-bit container. Word loads at the instruction
// level mask the result to the integer width; syscall providers keep the raw
// container so field elements survive a memory round trip.
func (m *Memory) ReadWord(addr uint32) (uint32, *Trap) {
	if addr%4 != 0 {
		return 0, m.misaligned(addr)
	}
	if !m.readable(addr, 4) {
		return 0, m.outOfBounds(addr)
	}
	v := m.cell(addr)
	m.record(addr, v, AccessRead)
	return v, nil
}

// WriteWord stores a 32-bit container. The code segment is immutable; stores
// into it fault.
func (m *Memory) WriteWord(addr, v uint32) *Trap {
	if addr%4 != 0 {
		return m.misaligned(addr)
	}
	if !m.writable(addr, 4) {
		return m.outOfBounds(addr)
	}
	m.cells[addr] = v
	m.record(addr, v, AccessWrite)
	return nil
}

// ReadByte loads one byte from its containing word.
func (m *Memory) ReadByte(addr uint32) (uint8, *Trap) {
	if !m.readable(addr, 1) {
		return 0, m.outOfBounds(addr)
	}
	b := uint8(m.cell(addr&^3) >> (8 * (addr & 3)))
	m.record(addr, uint32(b), AccessRead)
	return b, nil
}

// WriteByte packs one byte into its containing word.
func (m *Memory) WriteByte(addr uint32, v uint8) *Trap {
	if !m.writable(addr, 1) {
		return m.outOfBounds(addr)
	}
	base := addr &^ 3
	shift := 8 * (addr & 3)
	word := m.cells[base]&^(0xFF<<shift) | uint32(v)<<shift
	m.cells[base] = word
	m.record(addr, uint32(v), AccessWrite)
	return nil
}

// ReadHalf loads a 2-aligned halfword.
func (m *Memory) ReadHalf(addr uint32) (uint16, *Trap) {
	if addr%2 != 0 {
		return 0, m.misaligned(addr)
	}
	if !m.readable(addr, 2) {
		return 0, m.outOfBounds(addr)
	}
	h := uint16(m.cell(addr&^3) >> (8 * (addr & 3)))
	m.record(addr, uint32(h), AccessRead)
	return h, nil
}

// WriteHalf packs a 2-aligned halfword into its containing word.
func (m *Memory) WriteHalf(addr uint32, v uint16) *Trap {
	if addr%2 != 0 {
		return m.misaligned(addr)
	}
	if !m.writable(addr, 2) {
		return m.outOfBounds(addr)
	}
	base := addr &^ 3
	shift := 8 * (addr & 3)
	word := m.cells[base]&^(0xFFFF<<shift) | uint32(v)<<shift
	m.cells[base] = word
	m.record(addr, uint32(v), AccessWrite)
	return nil
}
