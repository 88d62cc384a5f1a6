package native

import (
	"github.com/go-mdb/mdb/pkg/amd64util"
	"github.com/go-mdb/mdb/pkg/dbgerr"
	"github.com/go-mdb/mdb/pkg/logflags"
	"github.com/go-mdb/mdb/pkg/stoppoint"
)

// withDebugRegisters loads DR0-DR3, DR6 and DR7 from the tracee's user
// area via PTRACE_PEEKUSER, hands them to fn as an amd64util.DebugRegisters,
// and writes back whichever of them fn marked Dirty. Indices 4 and 5 have
// no corresponding hardware register on x86-64 and PTRACE_PEEKUSER/POKEUSER
// return EIO for them, so they're skipped entirely.
func withDebugRegisters(pid int, fn func(*amd64util.DebugRegisters) error) error {
	var regs [8]uint64
	for i := range regs {
		if i == 4 || i == 5 {
			continue
		}
		v, err := ptracePeekUser(pid, debugRegUserOffset+uintptr(i)*8)
		if err != nil {
			return err
		}
		regs[i] = v
	}

	drs := amd64util.NewDebugRegisters(&regs[0], &regs[1], &regs[2], &regs[3], &regs[6], &regs[7])
	if err := fn(drs); err != nil {
		return err
	}
	if !drs.Dirty {
		return nil
	}

	for i := range regs {
		if i == 4 || i == 5 {
			continue
		}
		if err := ptracePokeUser(pid, debugRegUserOffset+uintptr(i)*8, regs[i]); err != nil {
			return err
		}
	}
	return nil
}

// SetHardwareStopPoint programs the first free debug-register slot to
// trap on addr according to mode and size, and returns the slot index.
// It implements stoppoint.HardwareAllocator.
func (p *Process) SetHardwareStopPoint(addr uint64, mode stoppoint.Mode, size int) (uint8, error) {
	var idx uint8
	err := withDebugRegisters(p.pid, func(drs *amd64util.DebugRegisters) error {
		free, ok := freeSlot(drs, p.maxHardwareSlots())
		if !ok {
			return dbgerr.Precondition("no free hardware debug register slots")
		}
		read := mode == stoppoint.ModeReadWrite
		write := mode == stoppoint.ModeWrite || mode == stoppoint.ModeReadWrite
		if err := drs.SetBreakpoint(free, addr, read, write, size); err != nil {
			return err
		}
		idx = free
		return nil
	})
	if err == nil {
		logflags.HWBreakLogger().Debugf("armed DR%d at %#x (mode %v, size %d)", idx, addr, mode, size)
	}
	return idx, err
}

// ClearHardwareStopPoint disables the debug register slot at idx. It
// implements stoppoint.HardwareAllocator.
func (p *Process) ClearHardwareStopPoint(idx uint8) error {
	err := withDebugRegisters(p.pid, func(drs *amd64util.DebugRegisters) error {
		drs.ClearBreakpoint(idx)
		return nil
	})
	if err == nil {
		logflags.HWBreakLogger().Debugf("cleared DR%d", idx)
	}
	return err
}

// hardwareTrapKind inspects DR6 once to classify a SIGTRAP that wasn't a
// syscall stop: singleStep is true when the trap was EFLAGS.TF-driven, and
// (ok, idx) names the lowest-indexed armed DR0-DR3 slot that tripped,
// which may be either a hardware breakpoint or a watchpoint depending on
// which collection owns that index. DR6's condition bits are cleared as a
// side effect so the next trap isn't misattributed to this one.
func (p *Process) hardwareTrapKind() (singleStep bool, ok bool, idx uint8, err error) {
	err = withDebugRegisters(p.pid, func(drs *amd64util.DebugRegisters) error {
		singleStep = drs.SingleStepTrap()
		ok, idx = drs.GetActiveBreakpoint()
		return nil
	})
	return singleStep, ok, idx, err
}

// ReadDebugRegisterValues reads DR0-DR3, DR6 and DR7 without arming or
// disarming anything, for read-only inspection through pkg/regs.File; DR4
// and DR5 have no hardware register on x86-64 and are left zero.
func (p *Process) ReadDebugRegisterValues() ([8]uint64, error) {
	var out [8]uint64
	for i := range out {
		if i == 4 || i == 5 {
			continue
		}
		v, err := ptracePeekUser(p.pid, debugRegUserOffset+uintptr(i)*8)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// freeSlot returns the lowest-indexed unarmed debug register below limit
// (the process's configured cap, itself clamped to the CPU's real 4-slot
// pool by config.Config.Clamped before it ever reaches here).
func freeSlot(drs *amd64util.DebugRegisters, limit uint8) (uint8, bool) {
	for i := uint8(0); i < limit; i++ {
		if !drs.IsArmed(i) {
			return i, true
		}
	}
	return 0, false
}
