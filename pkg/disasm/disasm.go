// Package disasm adapts golang.org/x/arch/x86/x86asm into the debugger's
// disassemble(n, addr?) operation, grounded on go-delve/delve's
// pkg/proc/x86_disasm.go: decode with x86asm.Decode, render with one of its
// three syntax flavors.
package disasm

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/go-mdb/mdb/pkg/dbgerr"
)

// Syntax selects the assembly text flavor an Instruction is rendered in.
type Syntax int

const (
	Intel Syntax = iota
	GNU
	Go
)

// MemoryReader is the slice of native.Process the disassembler needs: raw
// code bytes with breakpoint patches removed, per spec's
// read_memory_without_traps.
type MemoryReader interface {
	ReadMemoryWithoutTraps(addr uint64, size int) ([]byte, error)
}

// Instruction is one decoded instruction: its address, its rendered text,
// and its length in bytes so callers can advance to the next instruction
// without redecoding.
type Instruction struct {
	Address uint64
	Text    string
	Size    int
}

// maxInstructionLen is the longest possible x86-64 instruction encoding.
const maxInstructionLen = 15

// Decode disassembles up to count instructions starting at addr, reading
// code through mem. It stops early, returning what it has decoded so far
// plus the decode error, if a byte sequence fails to decode as a valid
// instruction.
func Decode(mem MemoryReader, addr uint64, count int, syntax Syntax) ([]Instruction, error) {
	out := make([]Instruction, 0, count)
	pc := addr
	for i := 0; i < count; i++ {
		buf, err := mem.ReadMemoryWithoutTraps(pc, maxInstructionLen)
		if err != nil {
			return out, err
		}
		inst, err := x86asm.Decode(buf, 64)
		if err != nil {
			return out, dbgerr.Format("disassemble at %#x: %v", pc, err)
		}
		patchPCRelative(pc, &inst)
		out = append(out, Instruction{
			Address: pc,
			Text:    render(syntax, inst, pc),
			Size:    inst.Len,
		})
		pc += uint64(inst.Len)
	}
	return out, nil
}

// patchPCRelative rewrites relative-branch arguments (Rel) into absolute
// addresses before rendering, the same transform delve's x86AsmDecode
// applies, so a JMP/CALL's text shows where it actually goes rather than a
// signed byte offset.
func patchPCRelative(pc uint64, inst *x86asm.Inst) {
	for i := range inst.Args {
		rel, ok := inst.Args[i].(x86asm.Rel)
		if ok {
			inst.Args[i] = x86asm.Imm(int64(pc) + int64(rel) + int64(inst.Len))
		}
	}
}

func render(syntax Syntax, inst x86asm.Inst, pc uint64) string {
	switch syntax {
	case GNU:
		return x86asm.GNUSyntax(inst, pc, nil)
	case Go:
		return x86asm.GoSyntax(inst, pc, nil)
	default:
		return x86asm.IntelSyntax(inst, pc, nil)
	}
}
