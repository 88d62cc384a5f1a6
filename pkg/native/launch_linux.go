package native

import (
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/go-mdb/mdb/pkg/dbgerr"
)

// addrNoRandomize is Linux's ADDR_NO_RANDOMIZE personality flag
// (include/uapi/linux/personality.h), which disables ASLR for the calling
// task and every task it forks from that point on; the flag is preserved
// across execve, which is what lets a parent set it once and have it
// apply to a child it's about to exec.
const addrNoRandomize = 0x0040000

// queryPersonality is the Linux personality() convention for reading the
// current persona without changing it: pass 0xffffffff.
const queryPersonality = 0xffffffff

// Launch starts argv[0] with argv as its arguments, stops it at the
// execve that replaces the fork's image (delivered as the traceme child's
// first SIGTRAP), and returns a Process ready to be resumed.
//
// Ptrace requires the attaching call and the traced syscalls to happen on
// the same OS thread, so the fork/exec and the initial wait are performed
// with the calling goroutine locked to its thread for the duration of
// exec.Cmd.Start, mirroring how delve's native launcher pins itself around
// SysProcAttr.Ptrace.
func Launch(argv []string, wd string) (*Process, error) {
	return LaunchWithOptions(argv, wd, false)
}

// LaunchWithOptions is Launch with disableASLR controlling whether the
// tracee starts with a fixed (non-randomized) address space layout, useful
// when breakpoint addresses were computed against a previous run of the
// same binary. Disabling ASLR only works if the personality flag is set on
// this goroutine's OS thread immediately before the fork underlying
// cmd.Start, since the flag is a per-task attribute inherited by children
// at fork time; LaunchWithOptions keeps the goroutine locked to its OS
// thread from before that call until it returns.
func LaunchWithOptions(argv []string, wd string, disableASLR bool) (*Process, error) {
	cmd := exec.Command(argv[0])
	cmd.Args = argv
	cmd.Dir = wd
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Ptrace:     true,
		Setpgid:    true,
		Foreground: false,
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if disableASLR {
		if err := disableASLRForNextFork(); err != nil {
			return nil, err
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, dbgerr.Sys("fork/exec", err)
	}

	pid := cmd.Process.Pid
	p := newProcess(pid)
	p.terminal = true

	if _, err := p.Wait(); err != nil {
		_ = p.Kill()
		return nil, err
	}
	if err := setTraceOptions(pid); err != nil {
		_ = p.Kill()
		return nil, err
	}
	return p, nil
}

// disableASLRForNextFork ORs ADDR_NO_RANDOMIZE into the calling thread's
// personality so a fork from this exact OS thread inherits it.
func disableASLRForNextFork() error {
	current, _, errno := unix.Syscall(unix.SYS_PERSONALITY, queryPersonality, 0, 0)
	if errno != 0 {
		return dbgerr.Sys("personality(query)", errno)
	}
	_, _, errno = unix.Syscall(unix.SYS_PERSONALITY, current|addrNoRandomize, 0, 0)
	if errno != 0 {
		return dbgerr.Sys("personality(ADDR_NO_RANDOMIZE)", errno)
	}
	return nil
}

// Attach begins tracing an already-running process by pid, stopping it at
// the resulting group-stop.
func Attach(pid int) (*Process, error) {
	if err := ptraceAttach(pid); err != nil {
		return nil, err
	}
	p := newProcess(pid)
	if _, err := p.Wait(); err != nil {
		return nil, err
	}
	if err := setTraceOptions(pid); err != nil {
		return nil, err
	}
	return p, nil
}

// setTraceOptions asks the kernel to tag syscall-stop SIGTRAPs with the
// high bit set (PTRACE_O_TRACESYSGOOD), so Process.Wait can tell a
// PTRACE_SYSCALL trap apart from a breakpoint's plain SIGTRAP.
func setTraceOptions(pid int) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_SETOPTIONS, uintptr(pid), 0, uintptr(unix.PTRACE_O_TRACESYSGOOD), 0, 0)
	if errno != 0 {
		return dbgerr.Sys("ptrace(SETOPTIONS)", errno)
	}
	return nil
}
