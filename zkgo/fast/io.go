package fast

import "github.com/zkir-project/zkir/zkgo/zkir"

// IOChannel carries the four ordered value streams of a run: public inputs
// and private hints consumed by cursor, outputs and commitments appended by
// the program. All values are field elements.
type IOChannel struct {
	inputs    []uint32
	hints     []uint32
	inputPos  int
	hintPos   int
	outputs   []uint32
	commits   []uint32
}

// NewIOChannel copies the input sequences so the caller cannot mutate a run
// in flight. Values are reduced into the field.
func NewIOChannel(inputs, hints []uint32) *IOChannel {
	io := &IOChannel{
		inputs: make([]uint32, len(inputs)),
		hints:  make([]uint32, len(hints)),
	}
	for i, v := range inputs {
		io.inputs[i] = v % zkir.Modulus
	}
	for i, v := range hints {
		io.hints[i] = v % zkir.Modulus
	}
	return io
}

// ReadInput consumes the next public input. Exhaustion is a fault, not a
// default value.
func (io *IOChannel) ReadInput() (uint32, *Trap) {
	if io.inputPos >= len(io.inputs) {
		return 0, &Trap{Cause: TrapInputExhausted, Detail: "public input stream exhausted"}
	}
	v := io.inputs[io.inputPos]
	io.inputPos++
	return v, nil
}

// ReadHint consumes the next private hint.
func (io *IOChannel) ReadHint() (uint32, *Trap) {
	if io.hintPos >= len(io.hints) {
		return 0, &Trap{Cause: TrapInputExhausted, Detail: "hint stream exhausted"}
	}
	v := io.hints[io.hintPos]
	io.hintPos++
	return v, nil
}

func (io *IOChannel) AppendOutput(v uint32) {
	io.outputs = append(io.outputs, v)
}

func (io *IOChannel) AppendCommitment(v uint32) {
	io.commits = append(io.commits, v)
}

func (io *IOChannel) Outputs() []uint32     { return io.outputs }
func (io *IOChannel) Commitments() []uint32 { return io.commits }
