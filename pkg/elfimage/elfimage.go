// Package elfimage memory-maps an ELF64 little-endian x86-64 executable
// and parses just enough of it — header, section headers, string tables,
// symbol tables — to resolve addresses to symbols and hand sections to the
// DWARF reader. It deliberately does not use debug/elf: spec.md calls for
// a hand-rolled parse (extended section-count numbering, TLS/zero-value
// exclusion when building the address map, .symtab-with-.dynsym-fallback)
// that the stdlib package does not expose in the shape this debugger needs.
package elfimage

import (
	"encoding/binary"
	"os"
	"sort"

	"golang.org/x/sys/unix"

	"github.com/go-mdb/mdb/pkg/addr"
	"github.com/go-mdb/mdb/pkg/dbgerr"
	"github.com/go-mdb/mdb/pkg/logflags"
)

const (
	ei_MAG0    = 0x7f
	ei_CLASS   = 4
	ei_DATA    = 5
	elfClass64 = 2
	elfDataLSB = 1

	ehdrSize = 64
	shdrSize = 64
	symSize  = 24

	sttTLS = 6
)

// Header is the subset of the ELF64 file header the debugger consults.
type Header struct {
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrNdx  uint16
}

// SectionHeader is one ELF64 section header.
type SectionHeader struct {
	Name      string
	NameOff   uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

// Symbol is one entry of .symtab or .dynsym.
type Symbol struct {
	Name  string
	Value uint64
	Size  uint64
	Info  byte
	Other byte
	Shndx uint16
}

func (s *Symbol) Type() byte { return s.Info & 0xf }

// ElfImage owns a memory-mapped ELF file for its entire lifetime.
type ElfImage struct {
	Path string
	data []byte // mmap'd file contents

	Header         Header
	SectionHeaders []SectionHeader
	sectionMap     map[string]*SectionHeader

	SymbolTable   []Symbol
	symbolNameMap map[string][]*Symbol
	symbolRanges  []symRange // sorted by Lo, half-open [Lo,Hi)

	loadBias uint64 // zero until NotifyLoaded is called
}

type symRange struct {
	lo, hi uint64
	sym    *Symbol
}

// Open mmaps path and parses its ELF64 structure.
func Open(path string) (*ElfImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dbgerr.Sys("open", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, dbgerr.Sys("fstat", err)
	}
	if st.Size() < ehdrSize {
		return nil, dbgerr.Format("%s: file too small to be an ELF image", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, dbgerr.Sys("mmap", err)
	}

	img := &ElfImage{Path: path, data: data}
	if err := img.parse(); err != nil {
		unix.Munmap(data)
		return nil, err
	}
	return img, nil
}

// Close unmaps the file. Errors are logged, not returned: destructors must
// release resources regardless of failure.
func (img *ElfImage) Close() {
	if img.data == nil {
		return
	}
	if err := unix.Munmap(img.data); err != nil {
		logflags.ELFLogger().Debugf("munmap %s: %v", img.Path, err)
	}
	img.data = nil
}

func (img *ElfImage) parse() error {
	d := img.data
	if len(d) < ehdrSize || d[0] != ei_MAG0 || d[1] != 'E' || d[2] != 'L' || d[3] != 'F' {
		return dbgerr.Format("%s: missing ELF magic", img.Path)
	}
	if d[ei_CLASS] != elfClass64 {
		return dbgerr.Format("%s: only ELF64 is supported", img.Path)
	}
	if d[ei_DATA] != elfDataLSB {
		return dbgerr.Format("%s: only little-endian images are supported", img.Path)
	}

	le := binary.LittleEndian
	h := Header{
		Type:      le.Uint16(d[16:18]),
		Machine:   le.Uint16(d[18:20]),
		Version:   le.Uint32(d[20:24]),
		Entry:     le.Uint64(d[24:32]),
		PhOff:     le.Uint64(d[32:40]),
		ShOff:     le.Uint64(d[40:48]),
		Flags:     le.Uint32(d[48:52]),
		EhSize:    le.Uint16(d[52:54]),
		PhEntSize: le.Uint16(d[54:56]),
		PhNum:     le.Uint16(d[56:58]),
		ShEntSize: le.Uint16(d[58:60]),
		ShNum:     le.Uint16(d[60:62]),
		ShStrNdx:  le.Uint16(d[62:64]),
	}
	img.Header = h

	if h.ShOff == 0 {
		return nil // no section headers, e.g. a stripped statically-linked image
	}

	n := int(h.ShNum)
	if n == 0 {
		// ELF extended numbering: the true count lives in sh_size of the
		// first ("null") section header.
		first, err := img.readShdrAt(h.ShOff)
		if err != nil {
			return err
		}
		n = int(first.Size)
	}

	shdrs := make([]SectionHeader, n)
	for i := 0; i < n; i++ {
		sh, err := img.readShdrAt(h.ShOff + uint64(i)*uint64(h.ShEntSize))
		if err != nil {
			return err
		}
		shdrs[i] = sh
	}

	if int(h.ShStrNdx) < len(shdrs) {
		strtab := shdrs[h.ShStrNdx]
		for i := range shdrs {
			name, err := img.cstrAt(strtab.Offset + uint64(shdrs[i].NameOff))
			if err == nil {
				shdrs[i].Name = name
			}
		}
	}

	img.SectionHeaders = shdrs
	img.sectionMap = make(map[string]*SectionHeader, len(shdrs))
	for i := range shdrs {
		if shdrs[i].Name != "" {
			img.sectionMap[shdrs[i].Name] = &shdrs[i]
		}
	}

	if err := img.loadSymbols(); err != nil {
		return err
	}
	return nil
}

func (img *ElfImage) readShdrAt(off uint64) (SectionHeader, error) {
	if off+shdrSize > uint64(len(img.data)) {
		return SectionHeader{}, dbgerr.Format("%s: section header at 0x%x truncated", img.Path, off)
	}
	d := img.data[off:]
	le := binary.LittleEndian
	return SectionHeader{
		NameOff:   le.Uint32(d[0:4]),
		Type:      le.Uint32(d[4:8]),
		Flags:     le.Uint64(d[8:16]),
		Addr:      le.Uint64(d[16:24]),
		Offset:    le.Uint64(d[24:32]),
		Size:      le.Uint64(d[32:40]),
		Link:      le.Uint32(d[40:44]),
		Info:      le.Uint32(d[44:48]),
		AddrAlign: le.Uint64(d[48:56]),
		EntSize:   le.Uint64(d[56:64]),
	}, nil
}

func (img *ElfImage) cstrAt(off uint64) (string, error) {
	if off >= uint64(len(img.data)) {
		return "", dbgerr.Format("%s: string offset 0x%x out of range", img.Path, off)
	}
	d := img.data[off:]
	i := 0
	for i < len(d) && d[i] != 0 {
		i++
	}
	return string(d[:i]), nil
}

func (img *ElfImage) loadSymbols() error {
	symtab := img.sectionMap[".symtab"]
	link := ".strtab"
	if symtab == nil {
		symtab = img.sectionMap[".dynsym"]
		link = ".dynstr"
	}
	if symtab == nil {
		return nil // no symbol table at all is not an error
	}
	strtab := img.sectionMap[link]
	if strtab == nil {
		return dbgerr.Format("%s: symbol table %s has no matching string table", img.Path, link)
	}

	if symtab.EntSize == 0 {
		return dbgerr.Format("%s: symbol table has zero entry size", img.Path)
	}
	count := int(symtab.Size / symtab.EntSize)
	syms := make([]Symbol, 0, count)

	le := binary.LittleEndian
	for i := 0; i < count; i++ {
		off := symtab.Offset + uint64(i)*symtab.EntSize
		if off+symSize > uint64(len(img.data)) {
			break
		}
		d := img.data[off:]
		nameOff := le.Uint32(d[0:4])
		info := d[4]
		other := d[5]
		shndx := le.Uint16(d[6:8])
		value := le.Uint64(d[8:16])
		size := le.Uint64(d[16:24])

		name, err := img.cstrAt(strtab.Offset + uint64(nameOff))
		if err != nil {
			continue
		}

		syms = append(syms, Symbol{
			Name: name, Value: value, Size: size,
			Info: info, Other: other, Shndx: shndx,
		})
	}
	img.SymbolTable = syms

	img.symbolNameMap = make(map[string][]*Symbol)
	var ranges []symRange
	for i := range img.SymbolTable {
		s := &img.SymbolTable[i]
		if s.Name == "" || s.Value == 0 || s.Type() == sttTLS {
			continue
		}
		img.symbolNameMap[s.Name] = append(img.symbolNameMap[s.Name], s)
		if demangled := Demangle(s.Name); demangled != s.Name {
			img.symbolNameMap[demangled] = append(img.symbolNameMap[demangled], s)
		}
		ranges = append(ranges, symRange{lo: s.Value, hi: s.Value + s.Size, sym: s})
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].lo < ranges[j].lo })
	img.symbolRanges = ranges
	return nil
}

// GetSection returns the named section header.
func (img *ElfImage) GetSection(name string) (*SectionHeader, bool) {
	sh, ok := img.sectionMap[name]
	return sh, ok
}

// GetSectionContents returns the raw bytes of the named section.
func (img *ElfImage) GetSectionContents(name string) ([]byte, error) {
	sh, ok := img.sectionMap[name]
	if !ok {
		return nil, dbgerr.Unknown("no section named %q", name)
	}
	if sh.Offset+sh.Size > uint64(len(img.data)) {
		return nil, dbgerr.Format("%s: section %s truncated", img.Path, name)
	}
	return img.data[sh.Offset : sh.Offset+sh.Size], nil
}

// GetString reads a NUL-terminated string at the given file offset,
// typically used against .debug_str or .strtab.
func (img *ElfImage) GetString(off uint64) (string, error) {
	return img.cstrAt(off)
}

// GetSymbolsByName returns every symbol (mangled name, or matching
// demangled name) equal to name.
func (img *ElfImage) GetSymbolsByName(name string) []*Symbol {
	return img.symbolNameMap[name]
}

// GetSymbolAtAddress returns the symbol whose value exactly equals addr.
func (img *ElfImage) GetSymbolAtAddress(addr uint64) (*Symbol, bool) {
	i := sort.Search(len(img.symbolRanges), func(i int) bool { return img.symbolRanges[i].lo >= addr })
	if i < len(img.symbolRanges) && img.symbolRanges[i].lo == addr {
		return img.symbolRanges[i].sym, true
	}
	return nil, false
}

// GetSymbolContainingAddress returns the symbol whose [lo,hi) range
// contains addr, choosing the lowest-lo symbol on overlap.
func (img *ElfImage) GetSymbolContainingAddress(addr uint64) (*Symbol, bool) {
	i := sort.Search(len(img.symbolRanges), func(i int) bool { return img.symbolRanges[i].lo > addr })
	// Every range before i starts at or below addr; scanning them from the
	// lowest lo upward returns the lowest-lo range that covers addr.
	for j := 0; j < i; j++ {
		r := img.symbolRanges[j]
		if addr >= r.lo && addr < r.hi {
			return r.sym, true
		}
	}
	return nil, false
}

// SectionForFileOffset implements addr.Image: it reports the [lo,hi) file
// range of the section (if any) that covers the given file offset.
func (img *ElfImage) SectionForFileOffset(off uint64) (lo, hi uint64, ok bool) {
	for i := range img.SectionHeaders {
		sh := &img.SectionHeaders[i]
		if sh.Flags&0x2 == 0 { // SHF_ALLOC
			continue
		}
		if off >= sh.Offset && off < sh.Offset+sh.Size {
			return sh.Offset, sh.Offset + sh.Size, true
		}
	}
	return 0, 0, false
}

// Sections returns every section header parsed from the file, in the
// order they appear in the section header table.
func (img *ElfImage) Sections() []SectionHeader { return img.SectionHeaders }

// SectionContainingFileAddr returns the allocated section that fa falls
// within, if any. Used by a disassembler or symbolizer that wants to know
// whether a raw file address is even mapped before doing anything with it.
func (img *ElfImage) SectionContainingFileAddr(fa addr.FileAddr) (*SectionHeader, bool) {
	for i := range img.SectionHeaders {
		sh := &img.SectionHeaders[i]
		if sh.Flags&0x2 == 0 { // SHF_ALLOC
			continue
		}
		if fa.Off >= sh.Offset && fa.Off < sh.Offset+sh.Size {
			return sh, true
		}
	}
	return nil, false
}

// LoadBias implements addr.Image.
func (img *ElfImage) LoadBias() uint64 { return img.loadBias }

// NotifyLoaded records the load bias once the process engine has computed
// it from the tracee's auxiliary vector. It is set exactly once per image.
func (img *ElfImage) NotifyLoaded(entryVirt uint64) {
	img.loadBias = entryVirt - img.Header.Entry
}
