package asm

import (
	"fmt"
	"strings"

	"github.com/zkir-project/zkir/zkgo/zkir"
)

// Disassemble renders a program one instruction per line. Words that do not
// decode are kept as .word directives so a listing always round-trips.
func Disassemble(prog *zkir.Program) string {
	var b strings.Builder
	for idx, word := range prog.Code {
		addr := uint32(zkir.CodeBase) + uint32(idx)*zkir.InstrSize
		inst, err := zkir.Decode(word)
		if err != nil {
			fmt.Fprintf(&b, "%08x:  .word 0x%08x\n", addr, word)
			continue
		}
		fmt.Fprintf(&b, "%08x:  %s\n", addr, inst)
	}
	return b.String()
}
