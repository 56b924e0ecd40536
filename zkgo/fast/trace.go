package fast

import "github.com/zkir-project/zkir/zkgo/zkir"

// TraceRow captures one executed cycle for the prover: the fetched word, the
// register file around it, at most one data access, and the trap taken, if
// any. A trapped cycle has RegsBefore == RegsAfter.
type TraceRow struct {
	Cycle  uint64 `json:"cycle"`
	PC     uint32 `json:"pc"`
	Word   uint32 `json:"word"`
	Disasm string `json:"disasm,omitempty"`

	RegsBefore [zkir.NumRegisters]uint32 `json:"regsBefore"`
	RegsAfter  [zkir.NumRegisters]uint32 `json:"regsAfter"`

	Access MemAccess `json:"access"`
	Trap   *Trap     `json:"trap,omitempty"`
}

// TraceRecorder accumulates rows in execution order. A nil recorder discards
// everything, so tracing can be switched off without branching at call sites.
type TraceRecorder struct {
	rows []TraceRow
}

func NewTraceRecorder() *TraceRecorder {
	return &TraceRecorder{}
}

func (t *TraceRecorder) Append(row TraceRow) {
	if t == nil {
		return
	}
	t.rows = append(t.rows, row)
}

func (t *TraceRecorder) Rows() []TraceRow {
	if t == nil {
		return nil
	}
	return t.rows
}

func (t *TraceRecorder) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}
