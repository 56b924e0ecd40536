// Package asm translates between instruction words and a line-based
// assembly text form.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zkir-project/zkir/zkgo/zkir"
)

var registersByAlias = func() map[string]uint32 {
	m := make(map[string]uint32, 2*zkir.NumRegisters)
	for i := uint32(0); i < zkir.NumRegisters; i++ {
		m[zkir.RegName(i)] = i
		m[fmt.Sprintf("r%d", i)] = i
	}
	return m
}()

type statement struct {
	line int
	op   zkir.Op
	args []string
	raw  uint32 // .word payload
	word bool
}

// Assemble parses source text into a program image. Two passes: the first
// collects label addresses, the second encodes with branch and jump offsets
// resolved.
func Assemble(src string) (*zkir.Program, error) {
	labels := make(map[string]uint32)
	var stmts []statement

	addr := uint32(zkir.CodeBase)
	for lineNo, rawLine := range strings.Split(src, "\n") {
		line := rawLine
		if idx := strings.IndexAny(line, "#;"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if name, rest, found := strings.Cut(line, ":"); found && !strings.ContainsAny(name, " \t") {
			if _, dup := labels[name]; dup {
				return nil, fmt.Errorf("line %d: duplicate label %q", lineNo+1, name)
			}
			labels[name] = addr
			line = strings.TrimSpace(rest)
			if line == "" {
				continue
			}
		}
		mnemonic, rest, _ := strings.Cut(line, " ")
		args := splitArgs(rest)
		if mnemonic == ".word" {
			if len(args) != 1 {
				return nil, fmt.Errorf("line %d: .word takes one value", lineNo+1)
			}
			v, err := strconv.ParseUint(args[0], 0, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad .word value %q", lineNo+1, args[0])
			}
			stmts = append(stmts, statement{line: lineNo + 1, raw: uint32(v), word: true})
			addr += zkir.InstrSize
			continue
		}
		op, ok := zkir.OpByName(mnemonic)
		if !ok {
			return nil, fmt.Errorf("line %d: unknown mnemonic %q", lineNo+1, mnemonic)
		}
		stmts = append(stmts, statement{line: lineNo + 1, op: op, args: args})
		addr += zkir.InstrSize
	}

	code := make([]uint32, 0, len(stmts))
	addr = zkir.CodeBase
	for _, st := range stmts {
		if st.word {
			code = append(code, st.raw)
			addr += zkir.InstrSize
			continue
		}
		inst, err := encodeStatement(st, addr, labels)
		if err != nil {
			return nil, err
		}
		code = append(code, zkir.Encode(inst))
		addr += zkir.InstrSize
	}
	// assembled programs get a scratch data segment
	return zkir.NewProgram(code, nil, defaultBSS)
}

const defaultBSS = 4096

func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func encodeStatement(st statement, addr uint32, labels map[string]uint32) (zkir.Instruction, error) {
	fail := func(format string, args ...any) (zkir.Instruction, error) {
		return zkir.Instruction{}, fmt.Errorf("line %d: %s: %s", st.line, st.op, fmt.Sprintf(format, args...))
	}
	want := func(n int) error {
		if len(st.args) != n {
			return fmt.Errorf("line %d: %s: expected %d operands, got %d", st.line, st.op, n, len(st.args))
		}
		return nil
	}
	reg := func(s string) (uint32, error) {
		if r, ok := registersByAlias[s]; ok {
			return r, nil
		}
		return 0, fmt.Errorf("line %d: unknown register %q", st.line, s)
	}
	imm := func(s string) (int32, error) {
		v, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("line %d: bad immediate %q", st.line, s)
		}
		return int32(v), nil
	}
	// label references resolve to a byte offset from the referencing
	// instruction
	offset := func(s string) (int32, error) {
		if target, ok := labels[s]; ok {
			return int32(target) - int32(addr), nil
		}
		return imm(s)
	}

	inst := zkir.Instruction{Op: st.op}
	var err error
	switch st.op {
	case zkir.OpClz, zkir.OpCtz, zkir.OpCpop, zkir.OpRev8, zkir.OpFneg, zkir.OpFinv:
		if err = want(2); err != nil {
			return inst, err
		}
		if inst.Rd, err = reg(st.args[0]); err != nil {
			return inst, err
		}
		inst.Rs1, err = reg(st.args[1])
		return inst, err

	case zkir.OpAddi, zkir.OpSlti, zkir.OpSltiu, zkir.OpXori, zkir.OpOri, zkir.OpAndi,
		zkir.OpSlli, zkir.OpSrli, zkir.OpSrai, zkir.OpJalr:
		if err = want(3); err != nil {
			return inst, err
		}
		if inst.Rd, err = reg(st.args[0]); err != nil {
			return inst, err
		}
		if inst.Rs1, err = reg(st.args[1]); err != nil {
			return inst, err
		}
		inst.Imm, err = imm(st.args[2])
		return inst, err

	case zkir.OpLb, zkir.OpLh, zkir.OpLw, zkir.OpLbu, zkir.OpLhu:
		if err = want(2); err != nil {
			return inst, err
		}
		if inst.Rd, err = reg(st.args[0]); err != nil {
			return inst, err
		}
		inst.Imm, inst.Rs1, err = parseAddress(st.args[1], reg, imm)
		return inst, err

	case zkir.OpSb, zkir.OpSh, zkir.OpSw:
		if err = want(2); err != nil {
			return inst, err
		}
		if inst.Rs2, err = reg(st.args[0]); err != nil {
			return inst, err
		}
		inst.Imm, inst.Rs1, err = parseAddress(st.args[1], reg, imm)
		return inst, err

	case zkir.OpBeq, zkir.OpBne, zkir.OpBlt, zkir.OpBge, zkir.OpBltu, zkir.OpBgeu:
		if err = want(3); err != nil {
			return inst, err
		}
		if inst.Rs1, err = reg(st.args[0]); err != nil {
			return inst, err
		}
		if inst.Rs2, err = reg(st.args[1]); err != nil {
			return inst, err
		}
		inst.Imm, err = offset(st.args[2])
		return inst, err

	case zkir.OpLui, zkir.OpAuipc:
		if err = want(2); err != nil {
			return inst, err
		}
		if inst.Rd, err = reg(st.args[0]); err != nil {
			return inst, err
		}
		inst.Imm, err = imm(st.args[1])
		return inst, err

	case zkir.OpJal:
		if err = want(2); err != nil {
			return inst, err
		}
		if inst.Rd, err = reg(st.args[0]); err != nil {
			return inst, err
		}
		inst.Imm, err = offset(st.args[1])
		return inst, err

	case zkir.OpRead, zkir.OpHint:
		if err = want(1); err != nil {
			return inst, err
		}
		inst.Rd, err = reg(st.args[0])
		return inst, err

	case zkir.OpWrite, zkir.OpCommit, zkir.OpAssertZero, zkir.OpDebug:
		if err = want(1); err != nil {
			return inst, err
		}
		inst.Rs1, err = reg(st.args[0])
		return inst, err

	case zkir.OpAssertEq, zkir.OpAssertNe:
		if err = want(2); err != nil {
			return inst, err
		}
		if inst.Rs1, err = reg(st.args[0]); err != nil {
			return inst, err
		}
		inst.Rs2, err = reg(st.args[1])
		return inst, err

	case zkir.OpRangeCheck:
		if err = want(2); err != nil {
			return inst, err
		}
		if inst.Rs1, err = reg(st.args[0]); err != nil {
			return inst, err
		}
		bits, err := imm(st.args[1])
		if err != nil {
			return inst, err
		}
		if bits < 1 || bits > zkir.IntBits {
			return fail("width %d outside 1..%d", bits, zkir.IntBits)
		}
		inst.Bits = uint32(bits)
		return inst, nil

	case zkir.OpHalt, zkir.OpEcall, zkir.OpEbreak:
		return inst, want(0)

	default: // three-register ALU, cmov and field forms
		if err = want(3); err != nil {
			return inst, err
		}
		if inst.Rd, err = reg(st.args[0]); err != nil {
			return inst, err
		}
		if inst.Rs1, err = reg(st.args[1]); err != nil {
			return inst, err
		}
		inst.Rs2, err = reg(st.args[2])
		return inst, err
	}
}

// parseAddress handles the `imm(reg)` operand of loads and stores.
func parseAddress(s string, reg func(string) (uint32, error), imm func(string) (int32, error)) (int32, uint32, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return 0, 0, fmt.Errorf("bad address operand %q, expected imm(reg)", s)
	}
	offsetStr := strings.TrimSpace(s[:open])
	if offsetStr == "" {
		offsetStr = "0"
	}
	off, err := imm(offsetStr)
	if err != nil {
		return 0, 0, err
	}
	base, err := reg(strings.TrimSpace(s[open+1 : len(s)-1]))
	if err != nil {
		return 0, 0, err
	}
	return off, base, nil
}
