// Package dwarfx is a from-scratch DWARF v4 reader over an already-mapped
// ELF image's debug sections. It intentionally does not build on
// debug/dwarf: this debugger needs offset-addressable DIEs (so a breakpoint
// on an address can jump straight to the enclosing subprogram's DIE without
// re-walking the compile unit) and lazily-decoded attribute values, neither
// of which the stdlib reader exposes.
package dwarfx

import (
	"encoding/binary"

	"github.com/go-mdb/mdb/pkg/dbgerr"
	"github.com/go-mdb/mdb/pkg/logflags"
)

// sectionProvider is the slice of elfimage.ElfImage this package depends on.
type sectionProvider interface {
	GetSectionContents(name string) ([]byte, error)
}

// Data holds the raw debug sections and memoizes decoded abbreviation
// tables, since the same table is reused by every DIE in a compile unit.
type Data struct {
	info   []byte
	abbrev []byte
	str    []byte

	abbrevCache map[uint64]abbrevTable
}

// Load reads .debug_info, .debug_abbrev and .debug_str out of img.
// .debug_str is optional: a binary built with -gsplit-dwarf or stripped of
// its string table can still resolve DIEs that only use inline DW_FORM_string.
func Load(img sectionProvider) (*Data, error) {
	info, err := img.GetSectionContents(".debug_info")
	if err != nil {
		return nil, dbgerr.Unknown("binary has no .debug_info section: %v", err)
	}
	abbrev, err := img.GetSectionContents(".debug_abbrev")
	if err != nil {
		return nil, dbgerr.Unknown("binary has no .debug_abbrev section: %v", err)
	}
	str, _ := img.GetSectionContents(".debug_str")

	logflags.DWARFLogger().Debugf("loaded .debug_info (%d bytes), .debug_abbrev (%d bytes), .debug_str (%d bytes)",
		len(info), len(abbrev), len(str))

	return &Data{
		info:        info,
		abbrev:      abbrev,
		str:         str,
		abbrevCache: make(map[uint64]abbrevTable),
	}, nil
}

func (d *Data) abbrevTableAt(off uint64) (abbrevTable, error) {
	if t, ok := d.abbrevCache[off]; ok {
		return t, nil
	}
	if off > uint64(len(d.abbrev)) {
		return nil, dbgerr.Format(".debug_abbrev offset 0x%x out of range", off)
	}
	t := decodeAbbrevTable(d.abbrev[off:])
	d.abbrevCache[off] = t
	return t, nil
}

// CompileUnitHeader is the 11-byte DWARF v4 32-bit-format compile unit
// header (unit_length, version, debug_abbrev_offset, address_size).
type CompileUnitHeader struct {
	Offset     uint64 // offset of unit_length, i.e. the start of this CU
	End        uint64 // offset one past the last byte of this CU
	Version    uint16
	AbbrevOff  uint64
	AddrSize   byte
	RootOffset uint64 // offset of the root DIE, immediately after the header
}

const cuHeaderSize = 11

// CompileUnits walks .debug_info top to bottom, decoding each CU header
// without descending into its DIE tree.
func (d *Data) CompileUnits() ([]CompileUnitHeader, error) {
	var cus []CompileUnitHeader
	off := uint64(0)
	for off < uint64(len(d.info)) {
		if off+cuHeaderSize > uint64(len(d.info)) {
			return nil, dbgerr.Format(".debug_info: truncated compile unit header at 0x%x", off)
		}
		length := uint64(binary.LittleEndian.Uint32(d.info[off:]))
		if length == 0xffffffff {
			return nil, dbgerr.Format(".debug_info: 64-bit DWARF format is not supported")
		}
		end := off + 4 + length
		if end > uint64(len(d.info)) {
			return nil, dbgerr.Format(".debug_info: compile unit at 0x%x overruns section", off)
		}
		version := binary.LittleEndian.Uint16(d.info[off+4:])
		addrSize := d.info[off+10]
		if version != 4 {
			logflags.DWARFLogger().Debugf("rejecting compile unit at 0x%x: DWARF v%d, only v4 is supported", off, version)
			return nil, dbgerr.Format(".debug_info: compile unit at 0x%x is DWARF v%d, only v4 is supported", off, version)
		}
		if addrSize != 8 {
			logflags.DWARFLogger().Debugf("rejecting compile unit at 0x%x: %d-byte addresses, only 8-byte is supported", off, addrSize)
			return nil, dbgerr.Format(".debug_info: compile unit at 0x%x has %d-byte addresses, only 8-byte is supported", off, addrSize)
		}
		cus = append(cus, CompileUnitHeader{
			Offset:     off,
			End:        end,
			Version:    version,
			AbbrevOff:  uint64(binary.LittleEndian.Uint32(d.info[off+6:])),
			AddrSize:   addrSize,
			RootOffset: off + cuHeaderSize,
		})
		off = end
	}
	return cus, nil
}

// RootDIE decodes just the compile unit's own DIE (DW_TAG_compile_unit),
// the common entry point for resolving AttrCompDir, AttrStmtList and so on.
func (d *Data) RootDIE(cu CompileUnitHeader) (*DIE, error) {
	die, _, err := d.DIEAt(cu.RootOffset, cu)
	return die, err
}
