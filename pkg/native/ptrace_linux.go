// Package native is the process engine: it owns the single tracee's
// ptrace lifecycle (launch/attach/resume/wait), its memory and register
// access, and hardware debug-register allocation for stop-points.
//
// Grounded on go-delve/delve/pkg/proc/native's proc_linux.go and
// ptrace_linux*.go, collapsed to the single-threaded, amd64-only, Linux-only
// state machine this debugger needs: one tracee, no thread groups, no
// PTRACE_O_TRACECLONE bookkeeping.
package native

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/go-mdb/mdb/pkg/dbgerr"
	"github.com/go-mdb/mdb/pkg/regs"
)

// debugRegUserOffset is the byte offset of u_debugreg[0] inside struct
// user on x86-64 Linux (see arch/x86/kernel/ptrace.c in the kernel source).
const debugRegUserOffset = 848

func ptracePeekUser(pid int, offset uintptr) (uint64, error) {
	var out uint64
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_PEEKUSR, uintptr(pid), offset, uintptr(unsafe.Pointer(&out)), 0, 0)
	if errno != 0 {
		return 0, dbgerr.Sys("ptrace(PEEKUSER)", errno)
	}
	return out, nil
}

func ptracePokeUser(pid int, offset uintptr, val uint64) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_POKEUSR, uintptr(pid), offset, uintptr(val), 0, 0)
	if errno != 0 {
		return dbgerr.Sys("ptrace(POKEUSER)", errno)
	}
	return nil
}

// ptraceGetFpRegs/ptraceSetFpRegs use pkg/regs.FPRegs rather than a
// golang.org/x/sys/unix type: unlike PtraceRegs, x/sys/unix has no
// linux/amd64 FXSAVE-layout struct (only the 32-bit x86 ptrace helpers in
// zptrace_x86_linux.go carry one), so the kernel's user_fpregs_struct is
// modeled directly in pkg/regs instead.
func ptraceGetFpRegs(pid int, out *regs.FPRegs) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_GETFPREGS, uintptr(pid), 0, uintptr(unsafe.Pointer(out)), 0, 0)
	if errno != 0 {
		return dbgerr.Sys("ptrace(GETFPREGS)", errno)
	}
	return nil
}

func ptraceSetFpRegs(pid int, in *regs.FPRegs) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_SETFPREGS, uintptr(pid), 0, uintptr(unsafe.Pointer(in)), 0, 0)
	if errno != 0 {
		return dbgerr.Sys("ptrace(SETFPREGS)", errno)
	}
	return nil
}

const ptraceSyscallOpt = unix.PTRACE_SYSCALL

func ptraceCont(pid int, sig int) error {
	if err := unix.PtraceCont(pid, sig); err != nil {
		return dbgerr.Sys("ptrace(CONT)", err)
	}
	return nil
}

func ptraceSyscall(pid int, sig int) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, ptraceSyscallOpt, uintptr(pid), 0, uintptr(sig), 0, 0)
	if errno != 0 {
		return dbgerr.Sys("ptrace(SYSCALL)", errno)
	}
	return nil
}

func ptraceSingleStep(pid int) error {
	if err := unix.PtraceSingleStep(pid); err != nil {
		return dbgerr.Sys("ptrace(SINGLESTEP)", err)
	}
	return nil
}

func ptraceAttach(pid int) error {
	if err := unix.PtraceAttach(pid); err != nil {
		return dbgerr.Sys("ptrace(ATTACH)", err)
	}
	return nil
}

func ptraceDetach(pid int) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_DETACH, uintptr(pid), 0, 0, 0, 0)
	if errno != 0 {
		return dbgerr.Sys("ptrace(DETACH)", errno)
	}
	return nil
}

func ptraceGetRegs(pid int, regs *unix.PtraceRegs) error {
	if err := unix.PtraceGetRegs(pid, regs); err != nil {
		return dbgerr.Sys("ptrace(GETREGS)", err)
	}
	return nil
}

func ptraceSetRegs(pid int, regs *unix.PtraceRegs) error {
	if err := unix.PtraceSetRegs(pid, regs); err != nil {
		return dbgerr.Sys("ptrace(SETREGS)", err)
	}
	return nil
}
