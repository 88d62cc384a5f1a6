// Package regs is the register file: a named, DWARF-numbered view over the
// tracee's general purpose registers, built on top of unix.PtraceRegs
// (golang.org/x/sys/unix) the same way delve's pkg/proc register code is.
package regs

import (
	"golang.org/x/sys/unix"

	"github.com/go-mdb/mdb/pkg/dbgerr"
)

// Info describes one addressable register: its display name and its DWARF
// register number per the System V AMD64 ABI, used to resolve
// DW_OP_regN/DW_OP_bregN location expressions.
type Info struct {
	Name     string
	DwarfNum int
}

// Table lists every general purpose register this debugger exposes, in
// System V AMD64 ABI DWARF register number order.
var Table = []Info{
	{"rax", 0}, {"rdx", 1}, {"rcx", 2}, {"rbx", 3},
	{"rsi", 4}, {"rdi", 5}, {"rbp", 6}, {"rsp", 7},
	{"r8", 8}, {"r9", 9}, {"r10", 10}, {"r11", 11},
	{"r12", 12}, {"r13", 13}, {"r14", 14}, {"r15", 15},
	{"rip", 16},
}

func byName(name string) (Info, bool) {
	for _, r := range Table {
		if r.Name == name {
			return r, true
		}
	}
	return Info{}, false
}

func byDwarfNum(n int) (Info, bool) {
	for _, r := range Table {
		if r.DwarfNum == n {
			return r, true
		}
	}
	return Info{}, false
}

// Registers is a snapshot of one thread's general purpose registers,
// obtained via PTRACE_GETREGS and written back via PTRACE_SETREGS.
type Registers struct {
	raw unix.PtraceRegs
}

// FromPtrace wraps an already-fetched unix.PtraceRegs.
func FromPtrace(raw unix.PtraceRegs) *Registers { return &Registers{raw: raw} }

// Raw returns the underlying unix.PtraceRegs, e.g. to pass to PTRACE_SETREGS.
func (r *Registers) Raw() *unix.PtraceRegs { return &r.raw }

// PC is the value of RIP.
func (r *Registers) PC() uint64 { return r.raw.Rip }

// SetPC overwrites RIP, e.g. after stepping back over a software breakpoint.
func (r *Registers) SetPC(pc uint64) { r.raw.Rip = pc }

// SP is the value of RSP.
func (r *Registers) SP() uint64 { return r.raw.Rsp }

// BP is the value of RBP, used as the default CFA when a function has no
// frame-base location expression.
func (r *Registers) BP() uint64 { return r.raw.Rbp }

// ByName reads a register by its display name (see Table).
func (r *Registers) ByName(name string) (uint64, error) {
	info, ok := byName(name)
	if !ok {
		return 0, dbgerr.Unknown("no such register %q", name)
	}
	return r.byInfo(info), nil
}

// ByDwarfNum reads a register by its DWARF register number, the form
// location expressions like DW_OP_reg5/DW_OP_breg5 refer to registers by.
func (r *Registers) ByDwarfNum(n int) (uint64, error) {
	info, ok := byDwarfNum(n)
	if !ok {
		return 0, dbgerr.Unknown("no register with DWARF number %d", n)
	}
	return r.byInfo(info), nil
}

func (r *Registers) byInfo(info Info) uint64 {
	switch info.Name {
	case "rax":
		return r.raw.Rax
	case "rdx":
		return r.raw.Rdx
	case "rcx":
		return r.raw.Rcx
	case "rbx":
		return r.raw.Rbx
	case "rsi":
		return r.raw.Rsi
	case "rdi":
		return r.raw.Rdi
	case "rbp":
		return r.raw.Rbp
	case "rsp":
		return r.raw.Rsp
	case "r8":
		return r.raw.R8
	case "r9":
		return r.raw.R9
	case "r10":
		return r.raw.R10
	case "r11":
		return r.raw.R11
	case "r12":
		return r.raw.R12
	case "r13":
		return r.raw.R13
	case "r14":
		return r.raw.R14
	case "r15":
		return r.raw.R15
	case "rip":
		return r.raw.Rip
	}
	return 0
}

// SetByName writes a register by its display name.
func (r *Registers) SetByName(name string, v uint64) error {
	p := r.fieldPointer(name)
	if p == nil {
		return dbgerr.Unknown("no such register %q", name)
	}
	*p = v
	return nil
}

func (r *Registers) fieldPointer(name string) *uint64 {
	switch name {
	case "rax":
		return &r.raw.Rax
	case "rdx":
		return &r.raw.Rdx
	case "rcx":
		return &r.raw.Rcx
	case "rbx":
		return &r.raw.Rbx
	case "rsi":
		return &r.raw.Rsi
	case "rdi":
		return &r.raw.Rdi
	case "rbp":
		return &r.raw.Rbp
	case "rsp":
		return &r.raw.Rsp
	case "r8":
		return &r.raw.R8
	case "r9":
		return &r.raw.R9
	case "r10":
		return &r.raw.R10
	case "r11":
		return &r.raw.R11
	case "r12":
		return &r.raw.R12
	case "r13":
		return &r.raw.R13
	case "r14":
		return &r.raw.R14
	case "r15":
		return &r.raw.R15
	case "rip":
		return &r.raw.Rip
	}
	return nil
}
