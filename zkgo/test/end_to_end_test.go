package test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zkir-project/zkir/zkgo/asm"
	"github.com/zkir-project/zkir/zkgo/fast"
	"github.com/zkir-project/zkir/zkgo/zkir"
)

const fibSource = `
# fibonacci: reads n, writes and commits fib(n)
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
	write a1
	commit a1
	halt
`

func assemble(t *testing.T, src string) *zkir.Program {
	t.Helper()
	prog, err := asm.Assemble(src)
	require.NoError(t, err)
	return prog
}

func execute(t *testing.T, prog *zkir.Program, cfg fast.VMConfig, inputs, hints []uint32) *fast.ExecutionResult {
	t.Helper()
	vm := fast.NewVM(prog, cfg, fast.NewIOChannel(inputs, hints), nil)
	vm.EnableTracing()
	res, err := vm.Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestFibonacci(t *testing.T) {
	prog := assemble(t, fibSource)
	res := execute(t, prog, fast.DefaultConfig(), []uint32{10}, nil)

	require.Equal(t, fast.StatusHalted, res.Status)
	require.Equal(t, []uint32{55}, res.Outputs)
	require.Equal(t, []uint32{55}, res.Commitments)
	require.Equal(t, uint64(67), res.Cycles)
}

func TestImageRoundTripExecution(t *testing.T) {
	prog := assemble(t, fibSource)

	var buf bytes.Buffer
	_, err := prog.WriteTo(&buf)
	require.NoError(t, err)
	loaded, err := zkir.LoadProgram(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	direct := execute(t, prog, fast.DefaultConfig(), []uint32{20}, nil)
	viaImage := execute(t, loaded, fast.DefaultConfig(), []uint32{20}, nil)

	require.Equal(t, fast.StatusHalted, viaImage.Status)
	require.Equal(t, []uint32{6765}, viaImage.Outputs)
	require.Equal(t, direct.StateHash, viaImage.StateHash)
	require.Equal(t, direct.Cycles, viaImage.Cycles)
}

func TestReplayIsDeterministic(t *testing.T) {
	prog := assemble(t, fibSource)

	a := execute(t, prog, fast.DefaultConfig(), []uint32{15}, nil)
	b := execute(t, prog, fast.DefaultConfig(), []uint32{15}, nil)

	require.Equal(t, a.StateHash, b.StateHash)
	require.Equal(t, a.Cycles, b.Cycles)
	require.Equal(t, a.Trace.Rows(), b.Trace.Rows())
}

func TestCycleLimitAborts(t *testing.T) {
	prog := assemble(t, fibSource)

	cfg := fast.DefaultConfig()
	cfg.CycleLimit = 20
	res := execute(t, prog, cfg, []uint32{1 << 29}, nil)

	require.Equal(t, fast.StatusTrapped, res.Status)
	require.Equal(t, fast.TrapCycleLimitExceeded, res.Trap.Cause)
	require.Equal(t, uint64(20), res.Cycles)
	require.Equal(t, 20, res.Trace.Len())
}

func TestExitSyscall(t *testing.T) {
	prog := assemble(t, `
	addi a0, zero, 7
	addi a3, zero, 1
	ecall
`)
	res := execute(t, prog, fast.DefaultConfig(), nil, nil)

	require.Equal(t, fast.StatusHalted, res.Status)
	require.Equal(t, uint32(7), res.ExitCode)
	require.Equal(t, uint64(3), res.Cycles)
}

func TestHintedSquareRoot(t *testing.T) {
	// The prover supplies the root as a hint; the program verifies it
	// against the public input and commits it.
	prog := assemble(t, `
	read a0
	hint a1
	mul a2, a1, a1
	assert_eq a2, a0
	commit a1
	halt
`)
	res := execute(t, prog, fast.DefaultConfig(), []uint32{144}, []uint32{12})

	require.Equal(t, fast.StatusHalted, res.Status)
	require.Equal(t, []uint32{12}, res.Commitments)

	bad := execute(t, prog, fast.DefaultConfig(), []uint32{144}, []uint32{13})
	require.Equal(t, fast.StatusTrapped, bad.Status)
	require.Equal(t, fast.TrapAssertionFailed, bad.Trap.Cause)
}

func TestTrapSurfacesInResult(t *testing.T) {
	prog := assemble(t, `
	addi a0, zero, 5
	divu a1, a0, zero
	halt
`)
	res := execute(t, prog, fast.DefaultConfig(), nil, nil)

	require.Equal(t, fast.StatusTrapped, res.Status)
	require.Equal(t, fast.TrapDivByZero, res.Trap.Cause)
	require.Equal(t, zkir.CodeBase+4, res.Trap.PC)
	require.Equal(t, uint64(2), res.Cycles)
}

func TestDisassembledListingReassembles(t *testing.T) {
	prog := assemble(t, fibSource)
	listing := asm.Disassemble(prog)

	again, err := asm.Assemble(listing)
	require.NoError(t, err)
	require.Equal(t, prog.Code, again.Code)
}
