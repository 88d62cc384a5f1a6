package stoppoint

import "github.com/go-mdb/mdb/pkg/dbgerr"

// MemoryPoker is the slice of native.Process a software breakpoint needs:
// word-granularity peek/poke of tracee memory.
type MemoryPoker interface {
	PeekWord(addr uint64) (uint64, error)
	PokeWord(addr uint64, word uint64) error
}

// HardwareAllocator is the slice of native.Process a hardware breakpoint
// or watchpoint needs: DR0-DR3 slot allocation.
type HardwareAllocator interface {
	SetHardwareStopPoint(addr uint64, mode Mode, size int) (index uint8, err error)
	ClearHardwareStopPoint(index uint8) error
}

const int3Opcode = 0xCC

// BreakpointSite is one address a process should trap execution at, either
// by patching in an int3 or by arming a hardware execute breakpoint.
type BreakpointSite struct {
	id       int
	addr     uint64
	internal bool

	enabled  bool
	hardware bool

	// software state
	mem       MemoryPoker
	savedByte byte

	// hardware state
	hw      HardwareAllocator
	hwIndex uint8
}

// NewSoftware creates a software breakpoint site backed by int3 patching.
func NewSoftware(id int, addr uint64, mem MemoryPoker, internal bool) *BreakpointSite {
	return &BreakpointSite{id: id, addr: addr, mem: mem, internal: internal}
}

// NewHardware creates a hardware breakpoint site backed by a debug register.
func NewHardware(id int, addr uint64, hw HardwareAllocator, internal bool) *BreakpointSite {
	return &BreakpointSite{id: id, addr: addr, hw: hw, hardware: true, internal: internal}
}

func (s *BreakpointSite) ID() int          { return s.id }
func (s *BreakpointSite) Address() uint64  { return s.addr }
func (s *BreakpointSite) IsInternal() bool { return s.internal }
func (s *BreakpointSite) IsEnabled() bool  { return s.enabled }
func (s *BreakpointSite) IsHardware() bool { return s.hardware }

// Enable patches in the trap instruction (software) or arms a debug
// register (hardware). Enabling an already-enabled site is a no-op.
func (s *BreakpointSite) Enable() error {
	if s.enabled {
		return nil
	}
	if s.hardware {
		idx, err := s.hw.SetHardwareStopPoint(s.addr, ModeExecute, 1)
		if err != nil {
			return err
		}
		s.hwIndex = idx
		s.enabled = true
		return nil
	}

	word, err := s.mem.PeekWord(s.addr)
	if err != nil {
		return err
	}
	s.savedByte = byte(word & 0xff)
	patched := (word &^ 0xff) | int3Opcode
	if err := s.mem.PokeWord(s.addr, patched); err != nil {
		return err
	}
	s.enabled = true
	return nil
}

// Disable restores the original byte (software) or releases the debug
// register (hardware). Disabling an already-disabled site is a no-op.
func (s *BreakpointSite) Disable() error {
	if !s.enabled {
		return nil
	}
	if s.hardware {
		if err := s.hw.ClearHardwareStopPoint(s.hwIndex); err != nil {
			return err
		}
		s.enabled = false
		return nil
	}

	word, err := s.mem.PeekWord(s.addr)
	if err != nil {
		return err
	}
	restored := (word &^ 0xff) | uint64(s.savedByte)
	if err := s.mem.PokeWord(s.addr, restored); err != nil {
		return err
	}
	s.enabled = false
	return nil
}

// HardwareIndex returns the DRi slot this site occupies. Only meaningful
// while IsHardware() && IsEnabled().
func (s *BreakpointSite) HardwareIndex() (uint8, error) {
	if !s.hardware || !s.enabled {
		return 0, dbgerr.Precondition("breakpoint site %d has no active hardware slot", s.id)
	}
	return s.hwIndex, nil
}

// SavedByte returns the byte that was overwritten with int3, used by
// read_memory_without_traps to present unpatched memory to callers.
func (s *BreakpointSite) SavedByte() byte { return s.savedByte }
