package native

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-mdb/mdb/pkg/dbgerr"
)

const (
	atNull  = 0
	atEntry = 9
)

// EntryPointFromAuxv scans an ELF auxiliary vector (as read from
// /proc/<pid>/auxv) for AT_ENTRY, the runtime entry point address the
// kernel handed the dynamic linker. Comparing this against the entry point
// recorded in the binary's own ELF header gives the load bias for
// position-independent executables.
func EntryPointFromAuxv(auxv []byte) uint64 {
	const wordSize = 8
	for off := 0; off+2*wordSize <= len(auxv); off += 2 * wordSize {
		tag := binary.LittleEndian.Uint64(auxv[off : off+wordSize])
		val := binary.LittleEndian.Uint64(auxv[off+wordSize : off+2*wordSize])
		switch tag {
		case atNull:
			return 0
		case atEntry:
			return val
		}
	}
	return 0
}

// ReadAuxv reads the tracee's auxiliary vector from procfs.
func (p *Process) ReadAuxv() ([]byte, error) {
	buf, err := os.ReadFile(fmt.Sprintf("/proc/%d/auxv", p.pid))
	if err != nil {
		return nil, dbgerr.Sys("read auxv", err)
	}
	return buf, nil
}

// LoadBias computes the runtime load address minus the static entry point
// recorded in the ELF header, for use with position-independent
// executables where every symbol and DWARF address needs the same offset
// applied before it can be compared against a live register value.
func (p *Process) LoadBias(staticEntry uint64) (uint64, error) {
	auxv, err := p.ReadAuxv()
	if err != nil {
		return 0, err
	}
	runtimeEntry := EntryPointFromAuxv(auxv)
	if runtimeEntry == 0 {
		return 0, dbgerr.Format("AT_ENTRY not found in auxiliary vector")
	}
	return runtimeEntry - staticEntry, nil
}
