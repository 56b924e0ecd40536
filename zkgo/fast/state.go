package fast

import (
	"fmt"

	"github.com/zkir-project/zkir/zkgo/zkir"
)

// Status is the terminal classification of a machine.
type Status uint8

const (
	StatusRunning Status = iota
	StatusHalted
	StatusTrapped
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusHalted:
		return "halted"
	case StatusTrapped:
		return "trapped"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TrapCause enumerates every fault the machine can take. A trap is a terminal
// outcome of a run, never a Go error escaping the engine.
type TrapCause uint8

const (
	TrapNone TrapCause = iota
	TrapMisaligned
	TrapOutOfBounds
	TrapInvalidInstruction
	TrapDivByZero
	TrapAssertionFailed
	TrapRangeCheckFailed
	TrapUnknownSyscall
	TrapInputExhausted
	TrapBreakpoint
	TrapCycleLimitExceeded
)

var trapNames = map[TrapCause]string{
	TrapNone:               "none",
	TrapMisaligned:         "misaligned",
	TrapOutOfBounds:        "out_of_bounds",
	TrapInvalidInstruction: "invalid_instruction",
	TrapDivByZero:          "div_by_zero",
	TrapAssertionFailed:    "assertion_failed",
	TrapRangeCheckFailed:   "range_check_failed",
	TrapUnknownSyscall:     "unknown_syscall",
	TrapInputExhausted:     "input_exhausted",
	TrapBreakpoint:         "breakpoint",
	TrapCycleLimitExceeded: "cycle_limit_exceeded",
}

func (c TrapCause) String() string {
	if name, ok := trapNames[c]; ok {
		return name
	}
	return fmt.Sprintf("trap(%d)", uint8(c))
}

func (c TrapCause) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Trap carries a fault cause plus its location. It implements error so the
// memory and syscall layers can return it through normal error plumbing; the
// step loop converts it into terminal machine state.
type Trap struct {
	Cause  TrapCause `json:"cause"`
	PC     uint32    `json:"pc"`
	Addr   uint32    `json:"addr,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

func (t *Trap) Error() string {
	msg := fmt.Sprintf("trap %s at pc %08x", t.Cause, t.PC)
	if t.Addr != 0 {
		msg += fmt.Sprintf(" addr %08x", t.Addr)
	}
	if t.Detail != "" {
		msg += ": " + t.Detail
	}
	return msg
}

// VMConfig is the immutable machine configuration. The field modulus, the
// integer width and the segment bases are ISA constants; the config sizes the
// variable parts.
type VMConfig struct {
	CycleLimit uint64 `json:"cycleLimit"`
	StackSize  uint32 `json:"stackSize"`
	HeapSize   uint32 `json:"heapSize"`
}

// DefaultCycleLimit bounds runs that never reach HALT.
const DefaultCycleLimit = 1 << 22

func DefaultConfig() VMConfig {
	return VMConfig{
		CycleLimit: DefaultCycleLimit,
		StackSize:  zkir.DefaultStackSize,
		HeapSize:   zkir.DefaultHeapSize,
	}
}

// VMState is the complete architectural state of one machine.
type VMState struct {
	PC        uint32                    `json:"pc"`
	Registers [zkir.NumRegisters]uint32 `json:"registers"`
	Cycle     uint64                    `json:"cycle"`

	Status   Status `json:"status"`
	ExitCode uint32 `json:"exitCode"`
	Trap     *Trap  `json:"trap,omitempty"`

	Memory *Memory `json:"-"`
}

// NewVMState builds the initial state for a program: pc at the entry point,
// sp at the stack top, all other registers zero.
func NewVMState(prog *zkir.Program, cfg VMConfig) *VMState {
	s := &VMState{
		PC:     prog.Header.EntryPoint,
		Status: StatusRunning,
		Memory: NewMemory(prog, cfg),
	}
	s.Registers[zkir.RegSP] = zkir.StackTop
	return s
}

// Reg reads a register. Index 0 is hardwired to zero.
func (s *VMState) Reg(i uint32) uint32 {
	if i == 0 {
		return 0
	}
	return s.Registers[i]
}

// SetReg writes a register, discarding writes to index 0. Values are reduced
// into the field so no register ever holds an out-of-range element.
func (s *VMState) SetReg(i uint32, v uint32) {
	if i == 0 {
		return
	}
	if v >= zkir.Modulus {
		v %= zkir.Modulus
	}
	s.Registers[i] = v
}

func (s *VMState) trap(cause TrapCause, detail string) {
	s.Status = StatusTrapped
	s.Trap = &Trap{Cause: cause, PC: s.PC, Detail: detail}
}

func (s *VMState) trapAt(t *Trap) {
	s.Status = StatusTrapped
	if t.PC == 0 {
		t.PC = s.PC
	}
	s.Trap = t
}
