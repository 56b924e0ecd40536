package fast

import (
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"

	"github.com/zkir-project/zkir/zkgo/zkir"
)

// SyscallHandler implements one syscall. Arguments arrive in a0-a2, the
// syscall number in a3; results go back through a0 (and a1). A returned trap
// terminates the run.
type SyscallHandler func(st *VMState, io *IOChannel) *Trap

// SyscallTable maps syscall numbers to handlers. Tables are immutable after
// construction; With derives a modified copy, which tests use to stub
// individual entries.
type SyscallTable struct {
	handlers map[uint32]SyscallHandler
}

// NewSyscallTable copies the given handler set.
func NewSyscallTable(handlers map[uint32]SyscallHandler) *SyscallTable {
	t := &SyscallTable{handlers: make(map[uint32]SyscallHandler, len(handlers))}
	for num, h := range handlers {
		t.handlers[num] = h
	}
	return t
}

// DefaultSyscallTable builds the standard provider set.
func DefaultSyscallTable() *SyscallTable {
	return NewSyscallTable(map[uint32]SyscallHandler{
		zkir.SysExit:            sysExit,
		zkir.SysRead:            sysRead,
		zkir.SysWrite:           sysWrite,
		zkir.SysPoseidon2:       sysPoseidon2,
		zkir.SysSha256:          sysSha256,
		zkir.SysKeccak256:       sysKeccak256,
		zkir.SysBlake2b:         sysBlake2b,
		zkir.SysSecp256k1Verify: sysSecp256k1Verify,
		zkir.SysMemcpy:          sysMemcpy,
		zkir.SysMemset:          sysMemset,
	})
}

// With returns a copy of the table with one entry replaced or added.
func (t *SyscallTable) With(num uint32, h SyscallHandler) *SyscallTable {
	nt := NewSyscallTable(t.handlers)
	nt.handlers[num] = h
	return nt
}

// Invoke dispatches a syscall by number. Unknown numbers fault.
func (t *SyscallTable) Invoke(num uint32, st *VMState, io *IOChannel) *Trap {
	h, ok := t.handlers[num]
	if !ok {
		return &Trap{Cause: TrapUnknownSyscall, Detail: fmt.Sprintf("syscall 0x%02x", num)}
	}
	return h(st, io)
}

func sysExit(st *VMState, _ *IOChannel) *Trap {
	st.ExitCode = st.Reg(zkir.RegA0)
	st.Status = StatusHalted
	return nil
}

func sysRead(st *VMState, io *IOChannel) *Trap {
	v, trap := io.ReadInput()
	if trap != nil {
		return trap
	}
	st.SetReg(zkir.RegA0, v)
	return nil
}

func sysWrite(st *VMState, io *IOChannel) *Trap {
	io.AppendOutput(st.Reg(zkir.RegA0))
	return nil
}

func sysPoseidon2(st *VMState, _ *IOChannel) *Trap {
	ptr := st.Reg(zkir.RegA0)
	var words [zkir.Poseidon2Width]uint32
	for i := range words {
		v, trap := st.Memory.ReadWord((ptr + uint32(i)*4) & zkir.Mask30)
		if trap != nil {
			return trap
		}
		words[i] = v
	}
	poseidon2Permute(&words)
	for i, v := range words {
		if trap := st.Memory.WriteWord((ptr+uint32(i)*4)&zkir.Mask30, v); trap != nil {
			return trap
		}
	}
	return nil
}

// digestSyscall wires the shared (in ptr, byte len, out ptr) shape of the
// one-shot hash providers.
func digestSyscall(st *VMState, hash func([]byte) [32]byte) *Trap {
	inPtr := st.Reg(zkir.RegA0)
	inLen := st.Reg(zkir.RegA1)
	outPtr := st.Reg(zkir.RegA2)
	data, trap := readBytes(st.Memory, inPtr, inLen)
	if trap != nil {
		return trap
	}
	digest := hash(data)
	return writeBytes(st.Memory, outPtr, digest[:])
}

func sysSha256(st *VMState, _ *IOChannel) *Trap {
	return digestSyscall(st, sha256.Sum256)
}

func sysKeccak256(st *VMState, _ *IOChannel) *Trap {
	return digestSyscall(st, func(data []byte) [32]byte {
		var out [32]byte
		copy(out[:], crypto.Keccak256(data))
		return out
	})
}

func sysBlake2b(st *VMState, _ *IOChannel) *Trap {
	return digestSyscall(st, blake2b.Sum256)
}

// sysSecp256k1Verify checks a 64-byte r||s signature over a 32-byte message
// hash against a 64-byte uncompressed public key. Verification failure is an
// a0 result, not a fault.
func sysSecp256k1Verify(st *VMState, _ *IOChannel) *Trap {
	msgHash, trap := readBytes(st.Memory, st.Reg(zkir.RegA0), 32)
	if trap != nil {
		return trap
	}
	sig, trap := readBytes(st.Memory, st.Reg(zkir.RegA1), 64)
	if trap != nil {
		return trap
	}
	pubRaw, trap := readBytes(st.Memory, st.Reg(zkir.RegA2), 64)
	if trap != nil {
		return trap
	}
	pub := append([]byte{4}, pubRaw...)
	if crypto.VerifySignature(pub, msgHash, sig) {
		st.SetReg(zkir.RegA0, 1)
	} else {
		st.SetReg(zkir.RegA0, 0)
	}
	return nil
}

func sysMemcpy(st *VMState, _ *IOChannel) *Trap {
	dst := st.Reg(zkir.RegA0)
	src := st.Reg(zkir.RegA1)
	count := st.Reg(zkir.RegA2)
	if count > zkir.MaxBulkWords {
		count = zkir.MaxBulkWords
	}
	for i := uint32(0); i < count; i++ {
		v, trap := st.Memory.ReadWord((src + i*4) & zkir.Mask30)
		if trap != nil {
			return trap
		}
		if trap := st.Memory.WriteWord((dst+i*4)&zkir.Mask30, v); trap != nil {
			return trap
		}
	}
	st.SetReg(zkir.RegA0, dst)
	return nil
}

func sysMemset(st *VMState, _ *IOChannel) *Trap {
	dst := st.Reg(zkir.RegA0)
	value := st.Reg(zkir.RegA1) & zkir.Mask30
	count := st.Reg(zkir.RegA2)
	if count > zkir.MaxBulkWords {
		count = zkir.MaxBulkWords
	}
	for i := uint32(0); i < count; i++ {
		if trap := st.Memory.WriteWord((dst+i*4)&zkir.Mask30, value); trap != nil {
			return trap
		}
	}
	st.SetReg(zkir.RegA0, dst)
	return nil
}

func readBytes(m *Memory, ptr, n uint32) ([]byte, *Trap) {
	out := make([]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		b, trap := m.ReadByte((ptr + i) & zkir.Mask30)
		if trap != nil {
			return nil, trap
		}
		out = append(out, b)
	}
	return out, nil
}

func writeBytes(m *Memory, ptr uint32, data []byte) *Trap {
	for i, b := range data {
		if trap := m.WriteByte((ptr+uint32(i))&zkir.Mask30, b); trap != nil {
			return trap
		}
	}
	return nil
}

// Poseidon2 permutation over the field, width 12: 4 full rounds, 13 partial,
// 4 full. S-box x^7; derived round constants and mixing matrix.
func poseidon2Permute(state *[zkir.Poseidon2Width]uint32) {
	const fullRounds = 8
	const partialRounds = 13
	for r := 0; r < fullRounds/2; r++ {
		addRoundConstants(state)
		for i := range state {
			state[i] = fieldPow7(state[i])
		}
		mixState(state)
	}
	for r := 0; r < partialRounds; r++ {
		addRoundConstants(state)
		state[0] = fieldPow7(state[0])
		mixState(state)
	}
	for r := 0; r < fullRounds/2; r++ {
		addRoundConstants(state)
		for i := range state {
			state[i] = fieldPow7(state[i])
		}
		mixState(state)
	}
}

func addRoundConstants(state *[zkir.Poseidon2Width]uint32) {
	for i := range state {
		c := uint32(uint64(i) * 123456789 % uint64(zkir.Modulus))
		state[i] = fieldAdd(state[i], c)
	}
}

func mixState(state *[zkir.Poseidon2Width]uint32) {
	p := uint64(zkir.Modulus)
	var mixed [zkir.Poseidon2Width]uint32
	for i := range mixed {
		var sum uint64
		for j := range state {
			coeff := uint64(i+j+1) * 1000000007 % p
			sum += uint64(state[j]) * coeff % p
		}
		mixed[i] = uint32(sum % p)
	}
	*state = mixed
}
