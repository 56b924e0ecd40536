package fast

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// ExecutionResult is the complete outcome of one run. Every run produces one,
// trapped or not.
type ExecutionResult struct {
	Status      Status      `json:"status"`
	ExitCode    uint32      `json:"exitCode"`
	Trap        *Trap       `json:"trap,omitempty"`
	Cycles      uint64      `json:"cycles"`
	PC          uint32      `json:"pc"`
	Outputs     []uint32    `json:"outputs"`
	Commitments []uint32    `json:"commitments"`
	StateHash   common.Hash `json:"stateHash"`

	Trace *TraceRecorder `json:"-"`
}

// checkCancelEvery bounds how stale a context cancellation can go unnoticed.
const checkCancelEvery = 10_000

// Run steps the machine to a terminal status. Cancellation surfaces as a Go
// error since it is an operator decision, not a machine fault.
func (vm *VM) Run(ctx context.Context) (*ExecutionResult, error) {
	st := vm.state
	for st.Status == StatusRunning {
		if st.Cycle%checkCancelEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		vm.Step()
	}
	return vm.Result(), nil
}

// Result snapshots the terminal outcome. Call after the machine stopped.
func (vm *VM) Result() *ExecutionResult {
	st := vm.state
	return &ExecutionResult{
		Status:      st.Status,
		ExitCode:    st.ExitCode,
		Trap:        st.Trap,
		Cycles:      st.Cycle,
		PC:          st.PC,
		Outputs:     vm.io.Outputs(),
		Commitments: vm.io.Commitments(),
		StateHash:   StateHash(st, vm.io),
		Trace:       vm.trace,
	}
}
