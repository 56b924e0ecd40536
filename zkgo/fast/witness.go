package fast

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/zkir-project/zkir/zkgo/zkir"
)

// witness layout: status, pc, cycle, exit code, the register file, then one
// digest per IO stream (inputs, hints, outputs, commitments), each a 32-byte
// big-endian word.
const witnessWords = 4 + zkir.NumRegisters + 4

// EncodeWitness serializes the terminal state for the proof boundary.
// Identical runs produce identical witnesses.
func EncodeWitness(st *VMState, io *IOChannel) []byte {
	out := make([]byte, 0, witnessWords*32)
	appendWord := func(v uint64) {
		word := uint256.NewInt(v).Bytes32()
		out = append(out, word[:]...)
	}
	appendWord(uint64(st.Status))
	appendWord(uint64(st.PC))
	appendWord(st.Cycle)
	appendWord(uint64(st.ExitCode))
	for _, r := range st.Registers {
		appendWord(uint64(r))
	}
	for _, stream := range [][]uint32{io.inputs, io.hints, io.outputs, io.commits} {
		digest := streamDigest(stream)
		out = append(out, digest[:]...)
	}
	return out
}

// StateHash commits to the terminal state.
func StateHash(st *VMState, io *IOChannel) common.Hash {
	return common.BytesToHash(crypto.Keccak256(EncodeWitness(st, io)))
}

func streamDigest(vals []uint32) common.Hash {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return common.BytesToHash(crypto.Keccak256(buf))
}
