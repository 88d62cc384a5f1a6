// Package amd64util bit-twiddles the x86-64 debug register set (DR0-DR7)
// described in the Intel 64 and IA-32 Architectures Software Developer's
// Manual, Vol. 3B, section 17.2. It knows nothing about ptrace: callers pass
// in pointers to wherever they keep the tracee's register values (typically
// fields of a PTRACE_PEEKUSER/POKEUSER-backed struct) and this package only
// computes the bits.
package amd64util

import (
	"github.com/go-mdb/mdb/pkg/dbgerr"
)

// DebugRegisters is a view over one tracee's DR0-DR7. It holds pointers
// rather than values so that writes back through SetBreakpoint/ClearBreakpoint
// are visible to whatever owns the backing storage.
type DebugRegisters struct {
	pAddrs     [4]*uint64
	pDR6, pDR7 *uint64
	Dirty      bool
}

// NewDebugRegisters wraps the four address registers plus status (DR6) and
// control (DR7).
func NewDebugRegisters(pDR0, pDR1, pDR2, pDR3, pDR6, pDR7 *uint64) *DebugRegisters {
	return &DebugRegisters{
		pAddrs: [4]*uint64{pDR0, pDR1, pDR2, pDR3},
		pDR6:   pDR6,
		pDR7:   pDR7,
	}
}

func lenrwBitsOffset(idx uint8) uint8 { return 16 + idx*4 }
func enableBitOffset(idx uint8) uint8 { return idx * 2 }

func (drs *DebugRegisters) breakpoint(idx uint8) (addr uint64, read, write bool, sz int) {
	enable := *drs.pDR7 & (1 << enableBitOffset(idx))
	if enable == 0 {
		return 0, false, false, 0
	}

	addr = *drs.pAddrs[idx]
	lenrw := (*drs.pDR7 >> lenrwBitsOffset(idx)) & 0xf
	write = lenrw&0x1 != 0
	read = lenrw&0x2 != 0
	switch lenrw >> 2 {
	case 0x0:
		sz = 1
	case 0x1:
		sz = 2
	case 0x2:
		sz = 8 // sic: DR7's length encoding puts 8 between 2 and 4
	case 0x3:
		sz = 4
	}
	return addr, read, write, sz
}

// IsArmed reports whether hardware breakpoint idx is currently enabled.
func (drs *DebugRegisters) IsArmed(idx uint8) bool {
	return *drs.pDR7&(1<<enableBitOffset(idx)) != 0
}

// SetBreakpoint arms hardware breakpoint idx (0-3) to watch addr for the
// given access and size. If idx is already armed with the same parameters
// this is a no-op; if armed with different parameters it fails rather than
// silently stealing the slot.
func (drs *DebugRegisters) SetBreakpoint(idx uint8, addr uint64, read, write bool, sz int) error {
	if int(idx) >= len(drs.pAddrs) {
		return dbgerr.Precondition("hardware breakpoint index %d out of range", idx)
	}
	curaddr, curread, curwrite, cursz := drs.breakpoint(idx)
	if curaddr != 0 {
		if curaddr != addr || curread != read || curwrite != write || cursz != sz {
			return dbgerr.Precondition("hardware breakpoint %d already in use at %#x", idx, curaddr)
		}
		return nil
	}

	if read && !write {
		return dbgerr.Precondition("break-on-read-only is not supported")
	}

	*drs.pAddrs[idx] = addr
	var lenrw uint64
	if write {
		lenrw |= 0x1
	}
	if read {
		lenrw |= 0x2
	}
	switch sz {
	case 1:
		// 0x0, no bits to set
	case 2:
		lenrw |= 0x1 << 2
	case 4:
		lenrw |= 0x3 << 2
	case 8:
		lenrw |= 0x2 << 2
	default:
		return dbgerr.Precondition("watchpoint size %d is not supported", sz)
	}
	*drs.pDR7 &^= 0xf << lenrwBitsOffset(idx)
	*drs.pDR7 |= lenrw << lenrwBitsOffset(idx)
	*drs.pDR7 |= 1 << enableBitOffset(idx)
	drs.Dirty = true
	return nil
}

// ClearBreakpoint disables hardware breakpoint idx. Disabling an
// already-disabled slot is a no-op.
func (drs *DebugRegisters) ClearBreakpoint(idx uint8) {
	if *drs.pDR7&(1<<enableBitOffset(idx)) == 0 {
		return
	}
	*drs.pDR7 &^= 1 << enableBitOffset(idx)
	drs.Dirty = true
}

// GetActiveBreakpoint returns the lowest-indexed armed breakpoint whose
// DR6 condition bit is set, and clears DR6's condition bits: the kernel
// does not do this on our behalf, and the next trap would otherwise look
// like it hit every previously-tripped watchpoint again.
func (drs *DebugRegisters) GetActiveBreakpoint() (ok bool, idx uint8) {
	for i := uint8(0); i < uint8(len(drs.pAddrs)); i++ {
		if *drs.pDR7&(1<<enableBitOffset(i)) == 0 {
			continue
		}
		if *drs.pDR6&(1<<i) != 0 {
			*drs.pDR6 &^= 0xf
			drs.Dirty = true
			return true, i
		}
	}
	return false, 0
}

// dr6BSBit is DR6's BS (single step) condition flag, bit 14.
const dr6BSBit = 1 << 14

// SingleStepTrap reports whether DR6's BS flag is set, i.e. the trap was
// caused by the tracee running with EFLAGS.TF set rather than by a tripped
// address breakpoint, and clears the flag.
func (drs *DebugRegisters) SingleStepTrap() bool {
	if *drs.pDR6&dr6BSBit == 0 {
		return false
	}
	*drs.pDR6 &^= dr6BSBit
	drs.Dirty = true
	return true
}
