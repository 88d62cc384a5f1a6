package native

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/go-mdb/mdb/pkg/dbgerr"
	"github.com/go-mdb/mdb/pkg/stoppoint"
)

const wordSize = 8

// PeekWord reads one machine word from the tracee's address space via
// PTRACE_PEEKDATA. It implements stoppoint.MemoryPoker.
func (p *Process) PeekWord(addr uint64) (uint64, error) {
	var out uint64
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_PEEKDATA, uintptr(p.pid), uintptr(addr), uintptr(unsafe.Pointer(&out)), 0, 0)
	if errno != 0 {
		return 0, dbgerr.Sys("ptrace(PEEKDATA)", errno)
	}
	return out, nil
}

// PokeWord writes one machine word to the tracee's address space via
// PTRACE_POKEDATA. It implements stoppoint.MemoryPoker.
func (p *Process) PokeWord(addr uint64, word uint64) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_POKEDATA, uintptr(p.pid), uintptr(addr), uintptr(word), 0, 0)
	if errno != 0 {
		return dbgerr.Sys("ptrace(POKEDATA)", errno)
	}
	return nil
}

// wordMemory is the word-granularity primitive readMemoryVia/writeMemoryVia
// build spans on top of; Process satisfies it with real ptrace calls, and
// tests satisfy it with a fake.
type wordMemory interface {
	PeekWord(addr uint64) (uint64, error)
	PokeWord(addr uint64, word uint64) error
}

// ReadMemory copies size bytes from the tracee starting at addr, built out
// of word-granularity PeekWord calls with head/tail masking for spans that
// don't start or end on a word boundary.
func (p *Process) ReadMemory(addr uint64, size int) ([]byte, error) {
	return readMemoryVia(p, addr, size)
}

func readMemoryVia(mem wordMemory, addr uint64, size int) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	out := make([]byte, size)

	start := addr &^ (wordSize - 1)
	end := (addr + uint64(size) + wordSize - 1) &^ (wordSize - 1)

	di := 0
	for w := start; w < end; w += wordSize {
		word, err := mem.PeekWord(w)
		if err != nil {
			return nil, err
		}
		var buf [wordSize]byte
		for i := 0; i < wordSize; i++ {
			buf[i] = byte(word >> (8 * i))
		}

		lo, hi := spanWithinWord(w, addr, size)
		n := copy(out[di:], buf[lo:hi])
		di += n
	}
	return out, nil
}

// WriteMemory writes data into the tracee starting at addr. Partial words
// at the head or tail are read-modify-written so bytes outside the
// requested span are left untouched.
func (p *Process) WriteMemory(addr uint64, data []byte) error {
	return writeMemoryVia(p, addr, data)
}

func writeMemoryVia(mem wordMemory, addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	size := len(data)
	start := addr &^ (wordSize - 1)
	end := (addr + uint64(size) + wordSize - 1) &^ (wordSize - 1)

	si := 0
	for w := start; w < end; w += wordSize {
		lo, hi := spanWithinWord(w, addr, size)

		var buf [wordSize]byte
		if lo != 0 || hi != wordSize {
			word, err := mem.PeekWord(w)
			if err != nil {
				return err
			}
			for i := 0; i < wordSize; i++ {
				buf[i] = byte(word >> (8 * i))
			}
		}
		n := copy(buf[lo:hi], data[si:])
		si += n

		var word uint64
		for i := 0; i < wordSize; i++ {
			word |= uint64(buf[i]) << (8 * i)
		}
		if err := mem.PokeWord(w, word); err != nil {
			return err
		}
	}
	return nil
}

// spanWithinWord returns the byte range [lo, hi) of the word starting at w
// that overlaps the requested [addr, addr+size) span.
func spanWithinWord(w, addr uint64, size int) (lo, hi uint64) {
	lo = 0
	if w < addr {
		lo = addr - w
	}
	hi = wordSize
	if w+wordSize > addr+uint64(size) {
		hi = addr + uint64(size) - w
	}
	return lo, hi
}

// ReadMemoryWithoutTraps behaves like ReadMemory but replaces any byte
// currently patched with a software breakpoint's int3 with the original
// instruction byte, so disassembly and instruction-stepping logic never
// see the debugger's own patches.
func (p *Process) ReadMemoryWithoutTraps(addr uint64, size int) ([]byte, error) {
	out, err := p.ReadMemory(addr, size)
	if err != nil {
		return nil, err
	}
	p.Breakpoints.Each(func(site *stoppoint.BreakpointSite) {
		if site.IsHardware() || !site.IsEnabled() {
			return
		}
		bpAddr := site.Address()
		if bpAddr < addr || bpAddr >= addr+uint64(size) {
			return
		}
		out[bpAddr-addr] = site.SavedByte()
	})
	return out, nil
}
