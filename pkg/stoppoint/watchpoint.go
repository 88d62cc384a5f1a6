package stoppoint

import "github.com/go-mdb/mdb/pkg/dbgerr"

// MemoryReader is the slice of native.Process a watchpoint needs to
// capture the value at its address whenever it trips.
type MemoryReader interface {
	ReadMemory(addr uint64, size int) ([]byte, error)
}

// Watchpoint traps on a memory access of a given mode and size, always
// backed by a hardware debug register: there is no software equivalent
// for anything but execute.
type Watchpoint struct {
	id   int
	addr uint64
	mode Mode
	size int

	enabled bool
	hw      HardwareAllocator
	hwIndex uint8

	mem MemoryReader

	Data         uint64
	PreviousData uint64
}

// NewWatchpoint validates the alignment rule (addr must be a multiple of
// size) before constructing a watchpoint.
func NewWatchpoint(id int, addr uint64, mode Mode, size int, hw HardwareAllocator, mem MemoryReader) (*Watchpoint, error) {
	if addr%uint64(size) != 0 {
		return nil, dbgerr.Precondition("watchpoint address %#x is not a multiple of size %d", addr, size)
	}
	switch size {
	case 1, 2, 4, 8:
	default:
		return nil, dbgerr.Precondition("watchpoint size %d is not supported", size)
	}
	return &Watchpoint{id: id, addr: addr, mode: mode, size: size, hw: hw, mem: mem}, nil
}

func (w *Watchpoint) ID() int          { return w.id }
func (w *Watchpoint) Address() uint64  { return w.addr }
func (w *Watchpoint) Mode() Mode       { return w.mode }
func (w *Watchpoint) Size() int        { return w.size }
func (w *Watchpoint) IsEnabled() bool  { return w.enabled }
func (w *Watchpoint) HardwareIndex() (uint8, error) {
	if !w.enabled {
		return 0, dbgerr.Precondition("watchpoint %d is not enabled", w.id)
	}
	return w.hwIndex, nil
}

// Enable arms the debug register for this watchpoint's mode and size.
func (w *Watchpoint) Enable() error {
	if w.enabled {
		return nil
	}
	idx, err := w.hw.SetHardwareStopPoint(w.addr, w.mode, w.size)
	if err != nil {
		return err
	}
	w.hwIndex = idx
	w.enabled = true
	return nil
}

// Disable releases the debug register.
func (w *Watchpoint) Disable() error {
	if !w.enabled {
		return nil
	}
	if err := w.hw.ClearHardwareStopPoint(w.hwIndex); err != nil {
		return err
	}
	w.enabled = false
	return nil
}

// UpdateValue re-reads the watched memory, shifting the previous value
// into PreviousData. Call this whenever the engine reports a hardware
// watchpoint hit for this watchpoint's DRi.
func (w *Watchpoint) UpdateValue() error {
	w.PreviousData = w.Data
	raw, err := w.mem.ReadMemory(w.addr, w.size)
	if err != nil {
		w.Data = 0
		return err
	}
	var v uint64
	for i := w.size - 1; i >= 0; i-- {
		v = v<<8 | uint64(raw[i])
	}
	w.Data = v
	return nil
}
