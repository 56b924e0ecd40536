package fast

import (
	"fmt"
	"math/bits"

	"github.com/ethereum/go-ethereum/log"

	"github.com/zkir-project/zkir/zkgo/zkir"
)

// HexU32 formats lazily, only when the log attribute is rendered.
type HexU32 uint32

func (v HexU32) String() string {
	return fmt.Sprintf("%08x", uint32(v))
}

func (v HexU32) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func mask30(v uint32) uint32 {
	return v & zkir.Mask30
}

// signExtend30 reads a register value as a 30-bit two's complement integer.
func signExtend30(v uint32) int32 {
	return int32(v<<2) >> 2
}

// VM owns one machine: architectural state, IO streams, syscall table and the
// optional trace recorder.
type VM struct {
	state    *VMState
	io       *IOChannel
	syscalls *SyscallTable
	trace    *TraceRecorder
	cfg      VMConfig
	log      log.Logger
}

func NewVM(prog *zkir.Program, cfg VMConfig, io *IOChannel, logger log.Logger) *VM {
	if logger == nil {
		logger = log.Root()
	}
	return &VM{
		state:    NewVMState(prog, cfg),
		io:       io,
		syscalls: DefaultSyscallTable(),
		cfg:      cfg,
		log:      logger,
	}
}

func (vm *VM) State() *VMState { return vm.state }

func (vm *VM) IO() *IOChannel { return vm.io }

// EnableTracing turns on per-cycle trace rows. Must be called before the
// first step.
func (vm *VM) EnableTracing() {
	vm.trace = NewTraceRecorder()
}

func (vm *VM) Trace() *TraceRecorder { return vm.trace }

// SetSyscallTable swaps the provider set, for tests.
func (vm *VM) SetSyscallTable(t *SyscallTable) {
	vm.syscalls = t
}

// Step runs one cycle: limit check, fetch, decode, execute, trace. Any fault
// lands in terminal state; Step on a non-running machine is a no-op.
func (vm *VM) Step() {
	st := vm.state
	if st.Status != StatusRunning {
		return
	}
	if st.Cycle >= vm.cfg.CycleLimit {
		st.trap(TrapCycleLimitExceeded, fmt.Sprintf("cycle limit %d reached", vm.cfg.CycleLimit))
		return
	}
	mem := st.Memory
	mem.SetCycle(st.Cycle)
	logMark := len(mem.log)
	regsBefore := st.Registers
	pc := st.PC

	var disasm string
	word, trap := mem.FetchWord(pc)
	if trap == nil {
		inst, err := zkir.Decode(word)
		if err != nil {
			trap = &Trap{Cause: TrapInvalidInstruction, PC: pc, Detail: err.Error()}
		} else {
			if vm.trace != nil {
				disasm = inst.String()
			}
			trap = vm.execute(inst)
		}
	}
	if trap != nil {
		st.trapAt(trap)
	}
	if vm.trace != nil {
		row := TraceRow{
			Cycle:      st.Cycle,
			PC:         pc,
			Word:       word,
			Disasm:     disasm,
			RegsBefore: regsBefore,
			RegsAfter:  st.Registers,
			Trap:       st.Trap,
		}
		// at most one data access per instruction; syscall bulk traffic
		// stays in the memory access log
		if added := mem.log[logMark:]; len(added) == 1 {
			row.Access = added[0]
		}
		vm.trace.Append(row)
	}
	st.Cycle++
}

// execute applies one decoded instruction. On success it sets the next pc;
// on a trap the architectural state is untouched except for memory side
// effects a syscall made before faulting.
func (vm *VM) execute(i zkir.Instruction) *Trap {
	st := vm.state
	mem := st.Memory
	pc := st.PC
	rr := st.Reg
	wr := st.SetReg

	// dynamic shift and rotate amounts reduce modulo the register width
	dynShamt := func() uint32 { return rr(i.Rs2) % zkir.IntBits }
	divisorCheck := func() *Trap {
		if rr(i.Rs2) == 0 {
			return &Trap{Cause: TrapDivByZero, PC: pc}
		}
		return nil
	}

	switch i.Op {
	case zkir.OpAdd:
		wr(i.Rd, mask30(rr(i.Rs1)+rr(i.Rs2)))
	case zkir.OpSub:
		wr(i.Rd, mask30(rr(i.Rs1)-rr(i.Rs2)))
	case zkir.OpMul:
		wr(i.Rd, mask30(uint32(uint64(rr(i.Rs1))*uint64(rr(i.Rs2)))))
	case zkir.OpMulh:
		prod := int64(signExtend30(rr(i.Rs1))) * int64(signExtend30(rr(i.Rs2)))
		wr(i.Rd, mask30(uint32(prod>>30)))
	case zkir.OpMulhu:
		wr(i.Rd, mask30(uint32(uint64(rr(i.Rs1))*uint64(rr(i.Rs2))>>30)))
	case zkir.OpMulhsu:
		prod := int64(signExtend30(rr(i.Rs1))) * int64(uint64(rr(i.Rs2)))
		wr(i.Rd, mask30(uint32(prod>>30)))
	case zkir.OpDiv:
		if trap := divisorCheck(); trap != nil {
			return trap
		}
		wr(i.Rd, mask30(uint32(signExtend30(rr(i.Rs1))/signExtend30(rr(i.Rs2)))))
	case zkir.OpDivu:
		if trap := divisorCheck(); trap != nil {
			return trap
		}
		wr(i.Rd, mask30(rr(i.Rs1)/rr(i.Rs2)))
	case zkir.OpRem:
		if trap := divisorCheck(); trap != nil {
			return trap
		}
		wr(i.Rd, mask30(uint32(signExtend30(rr(i.Rs1))%signExtend30(rr(i.Rs2)))))
	case zkir.OpRemu:
		if trap := divisorCheck(); trap != nil {
			return trap
		}
		wr(i.Rd, mask30(rr(i.Rs1)%rr(i.Rs2)))
	case zkir.OpAnd:
		wr(i.Rd, mask30(rr(i.Rs1)&rr(i.Rs2)))
	case zkir.OpAndn:
		wr(i.Rd, mask30(rr(i.Rs1)&^rr(i.Rs2)))
	case zkir.OpOr:
		wr(i.Rd, mask30(rr(i.Rs1)|rr(i.Rs2)))
	case zkir.OpOrn:
		wr(i.Rd, mask30(rr(i.Rs1)|^rr(i.Rs2)))
	case zkir.OpXor:
		wr(i.Rd, mask30(rr(i.Rs1)^rr(i.Rs2)))
	case zkir.OpXnor:
		wr(i.Rd, mask30(^(rr(i.Rs1) ^ rr(i.Rs2))))
	case zkir.OpSll:
		wr(i.Rd, mask30(rr(i.Rs1)<<dynShamt()))
	case zkir.OpSrl:
		wr(i.Rd, mask30(mask30(rr(i.Rs1))>>dynShamt()))
	case zkir.OpSra:
		wr(i.Rd, mask30(uint32(signExtend30(rr(i.Rs1))>>dynShamt())))
	case zkir.OpRol:
		v, n := mask30(rr(i.Rs1)), dynShamt()
		wr(i.Rd, mask30(v<<n|v>>(zkir.IntBits-n)))
	case zkir.OpRor:
		v, n := mask30(rr(i.Rs1)), dynShamt()
		wr(i.Rd, mask30(v>>n|v<<(zkir.IntBits-n)))
	case zkir.OpSlt:
		wr(i.Rd, boolReg(signExtend30(rr(i.Rs1)) < signExtend30(rr(i.Rs2))))
	case zkir.OpSltu:
		wr(i.Rd, boolReg(rr(i.Rs1) < rr(i.Rs2)))
	case zkir.OpMin:
		a, b := signExtend30(rr(i.Rs1)), signExtend30(rr(i.Rs2))
		if b < a {
			a = b
		}
		wr(i.Rd, mask30(uint32(a)))
	case zkir.OpMax:
		a, b := signExtend30(rr(i.Rs1)), signExtend30(rr(i.Rs2))
		if b > a {
			a = b
		}
		wr(i.Rd, mask30(uint32(a)))
	case zkir.OpMinu:
		a, b := rr(i.Rs1), rr(i.Rs2)
		if b < a {
			a = b
		}
		wr(i.Rd, a)
	case zkir.OpMaxu:
		a, b := rr(i.Rs1), rr(i.Rs2)
		if b > a {
			a = b
		}
		wr(i.Rd, a)
	case zkir.OpClz:
		v := mask30(rr(i.Rs1))
		if v == 0 {
			wr(i.Rd, zkir.IntBits)
		} else {
			wr(i.Rd, uint32(bits.LeadingZeros32(v)-2))
		}
	case zkir.OpCtz:
		v := mask30(rr(i.Rs1))
		if v == 0 {
			wr(i.Rd, zkir.IntBits)
		} else {
			wr(i.Rd, uint32(bits.TrailingZeros32(v)))
		}
	case zkir.OpCpop:
		wr(i.Rd, uint32(bits.OnesCount32(mask30(rr(i.Rs1)))))
	case zkir.OpRev8:
		wr(i.Rd, mask30(bits.ReverseBytes32(rr(i.Rs1))))
	case zkir.OpCmovz:
		if rr(i.Rs2) == 0 {
			wr(i.Rd, rr(i.Rs1))
		}
	case zkir.OpCmovnz:
		if rr(i.Rs2) != 0 {
			wr(i.Rd, rr(i.Rs1))
		}

	case zkir.OpFadd:
		wr(i.Rd, fieldAdd(rr(i.Rs1), rr(i.Rs2)))
	case zkir.OpFsub:
		wr(i.Rd, fieldSub(rr(i.Rs1), rr(i.Rs2)))
	case zkir.OpFmul:
		wr(i.Rd, fieldMul(rr(i.Rs1), rr(i.Rs2)))
	case zkir.OpFneg:
		wr(i.Rd, fieldNeg(rr(i.Rs1)))
	case zkir.OpFinv:
		a := rr(i.Rs1)
		if a == 0 {
			return &Trap{Cause: TrapDivByZero, PC: pc, Detail: "inverse of zero"}
		}
		wr(i.Rd, fieldInv(a))

	case zkir.OpAddi:
		wr(i.Rd, mask30(rr(i.Rs1)+uint32(i.Imm)))
	case zkir.OpSlti:
		wr(i.Rd, boolReg(signExtend30(rr(i.Rs1)) < i.Imm))
	case zkir.OpSltiu:
		wr(i.Rd, boolReg(rr(i.Rs1) < uint32(i.Imm)))
	case zkir.OpXori:
		wr(i.Rd, mask30(rr(i.Rs1)^uint32(i.Imm)))
	case zkir.OpOri:
		wr(i.Rd, mask30(rr(i.Rs1)|uint32(i.Imm)))
	case zkir.OpAndi:
		wr(i.Rd, mask30(rr(i.Rs1)&uint32(i.Imm)))
	case zkir.OpSlli:
		wr(i.Rd, mask30(rr(i.Rs1)<<uint32(i.Imm)))
	case zkir.OpSrli:
		wr(i.Rd, mask30(mask30(rr(i.Rs1))>>uint32(i.Imm)))
	case zkir.OpSrai:
		wr(i.Rd, mask30(uint32(signExtend30(rr(i.Rs1))>>uint32(i.Imm))))

	case zkir.OpLb:
		b, trap := mem.ReadByte(mask30(rr(i.Rs1) + uint32(i.Imm)))
		if trap != nil {
			return trap
		}
		wr(i.Rd, mask30(uint32(int32(int8(b)))))
	case zkir.OpLh:
		h, trap := mem.ReadHalf(mask30(rr(i.Rs1) + uint32(i.Imm)))
		if trap != nil {
			return trap
		}
		wr(i.Rd, mask30(uint32(int32(int16(h)))))
	case zkir.OpLw:
		v, trap := mem.ReadWord(mask30(rr(i.Rs1) + uint32(i.Imm)))
		if trap != nil {
			return trap
		}
		wr(i.Rd, mask30(v))
	case zkir.OpLbu:
		b, trap := mem.ReadByte(mask30(rr(i.Rs1) + uint32(i.Imm)))
		if trap != nil {
			return trap
		}
		wr(i.Rd, uint32(b))
	case zkir.OpLhu:
		h, trap := mem.ReadHalf(mask30(rr(i.Rs1) + uint32(i.Imm)))
		if trap != nil {
			return trap
		}
		wr(i.Rd, uint32(h))

	case zkir.OpSb:
		if trap := mem.WriteByte(mask30(rr(i.Rs1)+uint32(i.Imm)), uint8(rr(i.Rs2))); trap != nil {
			return trap
		}
	case zkir.OpSh:
		if trap := mem.WriteHalf(mask30(rr(i.Rs1)+uint32(i.Imm)), uint16(rr(i.Rs2))); trap != nil {
			return trap
		}
	case zkir.OpSw:
		if trap := mem.WriteWord(mask30(rr(i.Rs1)+uint32(i.Imm)), mask30(rr(i.Rs2))); trap != nil {
			return trap
		}

	case zkir.OpBeq, zkir.OpBne, zkir.OpBlt, zkir.OpBge, zkir.OpBltu, zkir.OpBgeu:
		var taken bool
		switch i.Op {
		case zkir.OpBeq:
			taken = rr(i.Rs1) == rr(i.Rs2)
		case zkir.OpBne:
			taken = rr(i.Rs1) != rr(i.Rs2)
		case zkir.OpBlt:
			taken = signExtend30(rr(i.Rs1)) < signExtend30(rr(i.Rs2))
		case zkir.OpBge:
			taken = signExtend30(rr(i.Rs1)) >= signExtend30(rr(i.Rs2))
		case zkir.OpBltu:
			taken = rr(i.Rs1) < rr(i.Rs2)
		case zkir.OpBgeu:
			taken = rr(i.Rs1) >= rr(i.Rs2)
		}
		if taken {
			st.PC = mask30(pc + uint32(i.Imm))
		} else {
			st.PC = pc + 4
		}
		return nil

	case zkir.OpLui:
		wr(i.Rd, mask30(uint32(i.Imm)<<12))
	case zkir.OpAuipc:
		wr(i.Rd, mask30(pc+uint32(i.Imm)<<12))
	case zkir.OpJal:
		wr(i.Rd, mask30(pc+4))
		st.PC = mask30(pc + uint32(i.Imm))
		return nil
	case zkir.OpJalr:
		target := mask30(rr(i.Rs1)+uint32(i.Imm)) &^ 1
		wr(i.Rd, mask30(pc+4))
		st.PC = target
		return nil

	case zkir.OpRead:
		v, trap := vm.io.ReadInput()
		if trap != nil {
			return trap
		}
		wr(i.Rd, v)
	case zkir.OpWrite:
		vm.io.AppendOutput(rr(i.Rs1))
	case zkir.OpHint:
		v, trap := vm.io.ReadHint()
		if trap != nil {
			return trap
		}
		wr(i.Rd, v)
	case zkir.OpCommit:
		vm.io.AppendCommitment(rr(i.Rs1))
	case zkir.OpAssertEq:
		a, b := rr(i.Rs1), rr(i.Rs2)
		if a != b {
			return &Trap{Cause: TrapAssertionFailed, PC: pc,
				Detail: fmt.Sprintf("assert_eq: %d != %d", a, b)}
		}
	case zkir.OpAssertNe:
		a, b := rr(i.Rs1), rr(i.Rs2)
		if a == b {
			return &Trap{Cause: TrapAssertionFailed, PC: pc,
				Detail: fmt.Sprintf("assert_ne: %d == %d", a, b)}
		}
	case zkir.OpAssertZero:
		if v := rr(i.Rs1); v != 0 {
			return &Trap{Cause: TrapAssertionFailed, PC: pc,
				Detail: fmt.Sprintf("assert_zero: %d", v)}
		}
	case zkir.OpRangeCheck:
		v := rr(i.Rs1)
		if max := uint32(1)<<i.Bits - 1; v > max {
			return &Trap{Cause: TrapRangeCheckFailed, PC: pc,
				Detail: fmt.Sprintf("%d exceeds %d bits", v, i.Bits)}
		}
	case zkir.OpDebug:
		vm.log.Debug("program debug value", "pc", HexU32(pc), "value", rr(i.Rs1))
	case zkir.OpHalt:
		st.Status = StatusHalted
		return nil

	case zkir.OpEcall:
		if trap := vm.syscalls.Invoke(rr(zkir.RegA3), st, vm.io); trap != nil {
			return trap
		}
	case zkir.OpEbreak:
		return &Trap{Cause: TrapBreakpoint, PC: pc}

	default:
		return &Trap{Cause: TrapInvalidInstruction, PC: pc}
	}

	st.PC = pc + 4
	return nil
}

func boolReg(cond bool) uint32 {
	if cond {
		return 1
	}
	return 0
}
