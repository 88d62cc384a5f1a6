package native

import (
	"golang.org/x/sys/unix"

	"github.com/go-mdb/mdb/pkg/dbgerr"
	"github.com/go-mdb/mdb/pkg/regs"
	"github.com/go-mdb/mdb/pkg/stoppoint"
)

// State is the tracee's coarse-grained lifecycle state.
type State int

const (
	// StateNotStarted is the zero value: no tracee has been launched or
	// attached yet.
	StateNotStarted State = iota
	StateRunning
	StateStopped
	StateExited
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateExited:
		return "exited"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// SyscallInfo describes one syscall-entry or syscall-exit stop, decoded
// from the tracee's registers when StopReason.IsSyscall is true.
type SyscallInfo struct {
	ID    uint64    // syscall number (orig_rax)
	Entry bool      // true on the entry stop, false on the paired exit stop
	Args  [6]uint64 // argument registers, valid on entry
	Ret   uint64    // return value (rax), valid on exit
}

// StopReason describes why Wait returned with the tracee stopped or dead.
type StopReason struct {
	State     State
	ExitCode  int  // valid when State == StateExited
	Signal    int  // valid when State == StateStopped or StateTerminated
	IsSyscall bool // true when the stop was a PTRACE_SYSCALL trap

	// SyscallInfo is populated when IsSyscall is true.
	SyscallInfo *SyscallInfo

	// Watchpoint is the watchpoint whose debug register fired, or nil if
	// this stop wasn't a hardware watchpoint trap.
	Watchpoint *stoppoint.Watchpoint
	// HardwareBreakpoint is the breakpoint site whose debug register fired,
	// or nil if this stop wasn't a hardware breakpoint trap. Mutually
	// exclusive with Watchpoint: DR6 names a single slot, and a slot is
	// occupied by either a stoppoint.NewHardware breakpoint or a
	// stoppoint.Watchpoint, never both.
	HardwareBreakpoint *stoppoint.BreakpointSite
	// SingleStep is true when this stop was reached by PTRACE_SINGLESTEP
	// rather than by a trapped breakpoint or watchpoint, per spec.md §4's
	// trap=single_step case.
	SingleStep bool
	// SoftwareBreakpoint is the breakpoint site whose int3 fired, with PC
	// already rewound to its address, or nil if this stop wasn't a
	// software breakpoint trap. Per spec.md §4's trap=software_break case.
	SoftwareBreakpoint *stoppoint.BreakpointSite
	// Diagnostic carries a non-fatal problem noticed while handling the
	// stop, such as a watchpoint whose watched address is no longer
	// mapped. The stop is still reported; this just explains why
	// Watchpoint.Data could not be refreshed.
	Diagnostic *dbgerr.Error
}

// Process is a single ptrace-controlled tracee. It is not safe for
// concurrent use: every operation blocks the calling goroutine until the
// tracee reaches its next well-defined suspension point, and the caller is
// expected to serialize its own calls rather than rely on internal locks.
type Process struct {
	pid           int
	state         State
	terminal      bool // process was launched by us and owns the controlling terminal
	Breakpoints   *stoppoint.Collection[*stoppoint.BreakpointSite]
	Watchpoints   *stoppoint.Collection[*stoppoint.Watchpoint]
	SyscallPolicy stoppoint.Policy

	expectingSyscallExit bool  // toggles entry/exit pairing of PTRACE_SYSCALL stops
	hardwareSlotCap      uint8 // configured cap on concurrently-armed DR0-DR3 slots, 0 means "use the default"
}

// defaultHardwareSlots is the number of debug address registers the amd64
// architecture provides; SetMaxHardwareStopPoints can only lower this cap,
// never raise it.
const defaultHardwareSlots = 4

// SetMaxHardwareStopPoints caps how many hardware breakpoints/watchpoints
// this process will allow armed at once, e.g. from config.Config.Clamped.
// A value of 0 or above the CPU's real 4-slot pool is clamped back to 4.
func (p *Process) SetMaxHardwareStopPoints(n int) {
	if n <= 0 || n > defaultHardwareSlots {
		n = defaultHardwareSlots
	}
	p.hardwareSlotCap = uint8(n)
}

func (p *Process) maxHardwareSlots() uint8 {
	if p.hardwareSlotCap == 0 {
		return defaultHardwareSlots
	}
	return p.hardwareSlotCap
}

func newProcess(pid int) *Process {
	return &Process{
		pid:           pid,
		state:         StateStopped,
		Breakpoints:   stoppoint.NewCollection[*stoppoint.BreakpointSite](),
		Watchpoints:   stoppoint.NewCollection[*stoppoint.Watchpoint](),
		SyscallPolicy: stoppoint.NewCatchNonePolicy(),
	}
}

// Pid returns the tracee's process id.
func (p *Process) Pid() int { return p.pid }

// State reports the tracee's current lifecycle state.
func (p *Process) State() State { return p.state }

func (p *Process) requireStopped() error {
	if p.state != StateStopped {
		return dbgerr.Precondition("operation requires a stopped tracee, current state is %s", p.state)
	}
	return nil
}

// Resume lets the tracee run until its next signal-delivery stop, exit, or
// (if SyscallPolicy.Mode is not CatchNone) syscall-entry/exit stop.
func (p *Process) Resume() error {
	if err := p.requireStopped(); err != nil {
		return err
	}
	if _, _, err := p.stepOverBreakpointAtPC(); err != nil {
		return err
	}
	return p.continueTracee()
}

// continueTracee issues PTRACE_CONT or PTRACE_SYSCALL depending on whether
// a syscall catch policy is installed, without re-checking preconditions or
// stepping over a breakpoint — used both by Resume and by Wait's internal
// transparent-resume loop, which is already mid-stop-handling when it needs
// to let an uninteresting syscall stop run on.
func (p *Process) continueTracee() error {
	var err error
	if p.SyscallPolicy.Mode == stoppoint.CatchNone {
		err = ptraceCont(p.pid, 0)
	} else {
		err = ptraceSyscall(p.pid, 0)
	}
	if err != nil {
		return err
	}
	p.state = StateRunning
	return nil
}

// SingleStep executes exactly one machine instruction in the tracee. Per
// spec.md's single-step rule: if PC starts at an enabled software
// breakpoint, the disable-step-wait-reenable sequence stepOverBreakpointAtPC
// performs *is* the single step, and nothing further is issued; otherwise a
// plain PTRACE_SINGLESTEP is the whole of it.
func (p *Process) SingleStep() (StopReason, error) {
	if err := p.requireStopped(); err != nil {
		return StopReason{}, err
	}
	stepped, reason, err := p.stepOverBreakpointAtPC()
	if err != nil {
		return StopReason{}, err
	}
	if stepped {
		return reason, nil
	}
	if err := ptraceSingleStep(p.pid); err != nil {
		return StopReason{}, err
	}
	p.state = StateRunning
	return p.Wait()
}

// stepOverBreakpointAtPC temporarily removes a software breakpoint sitting
// on the current instruction pointer, single-steps past it, and re-arms it,
// so that Resume/SingleStep never immediately re-trap on a breakpoint the
// caller just stopped at. stepped reports whether PC was actually at such a
// breakpoint; when it is, reason is the fully decoded StopReason for that
// step and the caller must not step again.
func (p *Process) stepOverBreakpointAtPC() (stepped bool, reason StopReason, err error) {
	r, err := p.ReadAllRegisters()
	if err != nil {
		return false, StopReason{}, err
	}
	pc := r.PC()
	site, ok := p.Breakpoints.GetByAddress(pc)
	if !ok || site.IsHardware() || !site.IsEnabled() {
		return false, StopReason{}, nil
	}
	if err := site.Disable(); err != nil {
		return false, StopReason{}, err
	}
	if err := ptraceSingleStep(p.pid); err != nil {
		return false, StopReason{}, err
	}
	p.state = StateRunning
	reason, err = p.waitOnce()
	if err != nil {
		return false, StopReason{}, err
	}
	if reason.State == StateStopped {
		if err := site.Enable(); err != nil {
			return false, StopReason{}, err
		}
	}
	return true, reason, nil
}

// Wait blocks until the tracee changes state (stops, exits, or is killed by
// a signal) and updates Process accordingly. A syscall stop whose id falls
// outside the installed SyscallPolicy is resumed transparently and waited
// on again, so the outward-visible sequence of stops this returns never
// includes an uninteresting syscall, per spec.md §4.1.
func (p *Process) Wait() (StopReason, error) {
	for {
		reason, err := p.waitOnce()
		if err != nil {
			return StopReason{}, err
		}
		if reason.State == StateStopped && reason.IsSyscall && reason.SyscallInfo != nil &&
			!p.SyscallPolicy.Matches(int(reason.SyscallInfo.ID)) {
			if err := p.continueTracee(); err != nil {
				return StopReason{}, err
			}
			continue
		}
		return reason, nil
	}
}

func (p *Process) waitOnce() (StopReason, error) {
	var status unix.WaitStatus
	_, err := unix.Wait4(p.pid, &status, 0, nil)
	if err != nil {
		return StopReason{}, dbgerr.Sys("wait4", err)
	}

	switch {
	case status.Exited():
		p.state = StateExited
		return StopReason{State: StateExited, ExitCode: status.ExitStatus()}, nil
	case status.Signaled():
		p.state = StateTerminated
		return StopReason{State: StateTerminated, Signal: int(status.Signal())}, nil
	case status.Stopped():
		p.state = StateStopped
		sig := status.StopSignal()
		// With PTRACE_O_TRACESYSGOOD set at launch/attach time, syscall-entry
		// and syscall-exit stops deliver SIGTRAP with the high bit set,
		// distinguishing them from a breakpoint's plain SIGTRAP.
		isSyscall := sig == (unix.SIGTRAP | 0x80)
		swSite, err := p.adjustPCAfterBreakpointTrap()
		if err != nil {
			return StopReason{}, err
		}
		reason := StopReason{State: StateStopped, Signal: int(sig), IsSyscall: isSyscall, SoftwareBreakpoint: swSite}
		if isSyscall {
			info, err := p.decodeSyscallStop()
			if err != nil {
				return StopReason{}, err
			}
			reason.SyscallInfo = info
		}
		if sig == unix.SIGTRAP && !isSyscall {
			if err := p.fillHardwareStopHit(&reason); err != nil {
				return StopReason{}, err
			}
		}
		return reason, nil
	default:
		return StopReason{}, dbgerr.Sys("wait4", unix.EINVAL)
	}
}

// decodeSyscallStop reads the tracee's registers to identify which syscall
// trapped and whether this is its entry or exit stop, toggling
// expectingSyscallExit so the next PTRACE_SYSCALL stop for this syscall
// pairs correctly.
func (p *Process) decodeSyscallStop() (*SyscallInfo, error) {
	r, err := p.ReadAllRegisters()
	if err != nil {
		return nil, err
	}
	raw := r.Raw()
	entry := !p.expectingSyscallExit
	p.expectingSyscallExit = entry
	return &SyscallInfo{
		ID:    raw.Orig_rax,
		Entry: entry,
		Args:  [6]uint64{raw.Rdi, raw.Rsi, raw.Rdx, raw.R10, raw.R8, raw.R9},
		Ret:   raw.Rax,
	}, nil
}

// adjustPCAfterBreakpointTrap rewinds rip by one byte when the tracee
// stopped because it executed a software breakpoint's int3, so that the
// reported PC is the breakpoint's address rather than the instruction
// following it. Returns the site that fired, or nil if this trap wasn't a
// software breakpoint.
func (p *Process) adjustPCAfterBreakpointTrap() (*stoppoint.BreakpointSite, error) {
	r, err := p.ReadAllRegisters()
	if err != nil {
		return nil, err
	}
	trapAddr := r.PC() - 1
	site, ok := p.Breakpoints.GetByAddress(trapAddr)
	if !ok || site.IsHardware() || !site.IsEnabled() {
		return nil, nil
	}
	r.SetPC(trapAddr)
	if err := p.WriteAllRegisters(r); err != nil {
		return nil, err
	}
	return site, nil
}

// fillHardwareStopHit disambiguates a plain (non-syscall) SIGTRAP by
// consulting DR6: a single-step trap, a tripped hardware breakpoint (from
// p.Breakpoints), or a tripped watchpoint (from p.Watchpoints) are mutually
// exclusive outcomes of the same debug-register slot. It is called
// unconditionally, regardless of whether either collection is empty, since
// an armed slot from either one can be the cause. A watchpoint refresh
// failure (the watched address has since been unmapped) is recorded as a
// diagnostic rather than failing the stop.
func (p *Process) fillHardwareStopHit(reason *StopReason) error {
	singleStep, ok, idx, err := p.hardwareTrapKind()
	if err != nil {
		return err
	}
	reason.SingleStep = singleStep
	if !ok {
		return nil
	}

	p.Breakpoints.Each(func(b *stoppoint.BreakpointSite) {
		if reason.HardwareBreakpoint != nil || !b.IsHardware() {
			return
		}
		hwIdx, err := b.HardwareIndex()
		if err != nil || hwIdx != idx {
			return
		}
		reason.HardwareBreakpoint = b
	})
	if reason.HardwareBreakpoint != nil {
		return nil
	}

	p.Watchpoints.Each(func(w *stoppoint.Watchpoint) {
		if reason.Watchpoint != nil {
			return
		}
		hwIdx, err := w.HardwareIndex()
		if err != nil || hwIdx != idx {
			return
		}
		reason.Watchpoint = w
		if err := w.UpdateValue(); err != nil {
			if e, ok := err.(*dbgerr.Error); ok {
				reason.Diagnostic = e
			}
		}
	})
	return nil
}

// ReadAllRegisters reads the tracee's general purpose registers.
func (p *Process) ReadAllRegisters() (*regs.Registers, error) {
	var raw unix.PtraceRegs
	if err := ptraceGetRegs(p.pid, &raw); err != nil {
		return nil, err
	}
	return regs.FromPtrace(raw), nil
}

// WriteAllRegisters writes back a full general purpose register set.
func (p *Process) WriteAllRegisters(r *regs.Registers) error {
	return ptraceSetRegs(p.pid, r.Raw())
}

// ReadFPRegisters reads the tracee's x87/MMX/SSE register file.
func (p *Process) ReadFPRegisters() (*regs.FPRegisters, error) {
	var raw regs.FPRegs
	if err := ptraceGetFpRegs(p.pid, &raw); err != nil {
		return nil, err
	}
	return regs.FPRegistersFromRaw(raw), nil
}

// WriteFPRegisters writes back a full x87/MMX/SSE register file through
// PTRACE_SETFPREGS, the dedicated floating-point set-registers call
// spec.md's user-area write rule requires in place of a raw user-area
// poke for this register bank.
func (p *Process) WriteFPRegisters(r *regs.FPRegisters) error {
	return ptraceSetFpRegs(p.pid, r.Raw())
}

// Detach stops tracing the tracee, leaving it running.
func (p *Process) Detach() error {
	return ptraceDetach(p.pid)
}

// Kill sends SIGKILL to the tracee and reaps it.
func (p *Process) Kill() error {
	if err := unix.Kill(p.pid, unix.SIGKILL); err != nil {
		return dbgerr.Sys("kill", err)
	}
	var status unix.WaitStatus
	if _, err := unix.Wait4(p.pid, &status, 0, nil); err != nil {
		return dbgerr.Sys("wait4", err)
	}
	p.state = StateTerminated
	return nil
}
