package regs

import "github.com/go-mdb/mdb/pkg/dbgerr"

// Kind is spec.md's RegisterInfo.type: which register bank a register
// lives in and how File resolves it.
type Kind int

const (
	KindGPR Kind = iota
	KindSubGPR
	KindFPR
	KindDR
)

// RegisterInfo is spec.md's RegisterInfo: everything Read/Write needs to
// locate a named register's bits and know how to interpret them, a richer
// sibling of Info that also covers sub general-purpose registers,
// MMX/SSE registers and debug address registers rather than only the 17
// full-width GPRs Info/Table describe.
type RegisterInfo struct {
	Name     string
	DwarfNum int // per the SysV x86-64 psABI register numbering; -1 where none is assigned
	Kind     Kind
	Format   Format
	Size     int // bytes
	Parent   string
	SubByte  int // byte offset of this register within Parent, for KindSubGPR
	Index    int // slot index within its bank, for KindFPR/KindDR
}

// gprSub describes one sub-register view of a 64-bit GPR.
type gprSub struct {
	name    string
	parent  string
	size    int
	subByte int
}

var subGPRs = buildSubGPRs()

func buildSubGPRs() []gprSub {
	var out []gprSub
	legacy := []string{"rax", "rbx", "rcx", "rdx"}
	legacyLetter := []string{"a", "b", "c", "d"}
	for i, r := range legacy {
		l := legacyLetter[i]
		out = append(out,
			gprSub{"e" + l + "x", r, 4, 0},
			gprSub{l + "x", r, 2, 0},
			gprSub{l + "l", r, 1, 0},
			gprSub{l + "h", r, 1, 1},
		)
	}
	wide := map[string]string{"rsi": "si", "rdi": "di", "rbp": "bp", "rsp": "sp"}
	for parent, base := range wide {
		out = append(out,
			gprSub{"e" + base, parent, 4, 0},
			gprSub{base, parent, 2, 0},
			gprSub{base + "l", parent, 1, 0},
		)
	}
	for n := 8; n <= 15; n++ {
		parent := regName(n)
		out = append(out,
			gprSub{parent + "d", parent, 4, 0},
			gprSub{parent + "w", parent, 2, 0},
			gprSub{parent + "b", parent, 1, 0},
		)
	}
	return out
}

func regName(n int) string {
	switch n {
	case 8:
		return "r8"
	case 9:
		return "r9"
	case 10:
		return "r10"
	case 11:
		return "r11"
	case 12:
		return "r12"
	case 13:
		return "r13"
	case 14:
		return "r14"
	case 15:
		return "r15"
	}
	return ""
}

// InfoTable lists every register name Read/Write resolves: the 17 full
// GPRs (delegating to Table for their DWARF numbers), their sub-register
// views, the 8 MMX and 16 SSE registers, and DR0-DR7.
var InfoTable = buildInfoTable()

func buildInfoTable() []RegisterInfo {
	var out []RegisterInfo
	for _, g := range Table {
		out = append(out, RegisterInfo{Name: g.Name, DwarfNum: g.DwarfNum, Kind: KindGPR, Format: FormatUint, Size: 8})
	}
	for _, s := range subGPRs {
		out = append(out, RegisterInfo{Name: s.name, DwarfNum: -1, Kind: KindSubGPR, Format: FormatUint, Size: s.size, Parent: s.parent, SubByte: s.subByte})
	}
	for i := 0; i < 8; i++ {
		out = append(out, RegisterInfo{Name: mmName(i), DwarfNum: 41 + i, Kind: KindFPR, Format: FormatUint, Size: 8, Index: i})
	}
	for i := 0; i < 16; i++ {
		out = append(out, RegisterInfo{Name: xmmName(i), DwarfNum: 17 + i, Kind: KindFPR, Format: FormatVector, Size: 16, Index: i})
	}
	for i := 0; i < 8; i++ {
		out = append(out, RegisterInfo{Name: drName(i), DwarfNum: -1, Kind: KindDR, Format: FormatUint, Size: 8, Index: i})
	}
	return out
}

func mmName(i int) string  { return "mm" + itoa(i) }
func xmmName(i int) string { return "xmm" + itoa(i) }
func drName(i int) string  { return "dr" + itoa(i) }

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return string(rune('0'+i/10)) + string(rune('0'+i%10))
}

// LookupInfo finds a register by name in InfoTable.
func LookupInfo(name string) (RegisterInfo, bool) {
	for _, info := range InfoTable {
		if info.Name == name {
			return info, true
		}
	}
	return RegisterInfo{}, false
}

// File is a live view over a tracee's full register set spanning the
// general-purpose, floating-point/vector and debug-register banks,
// grounded on spec.md's user-area read/write model: reads and writes are
// resolved against whichever in-memory snapshot (GPR/FPR/DR) the caller
// supplied, and File tracks which banks were modified so the caller
// flushes only those back through the right ptrace call (the set-regs
// call, PTRACE_SETREGS, for the general-purpose bank; the dedicated
// set-fpregs call for floating-point state).
type File struct {
	GPR *Registers
	FPR *FPRegisters
	DR  [8]uint64

	dirtyGPR, dirtyFPR bool
}

// NewFile builds a File over already-fetched register snapshots. fpr may
// be nil if the caller knows only GPR/DR registers will be touched.
func NewFile(gpr *Registers, fpr *FPRegisters, dr [8]uint64) *File {
	return &File{GPR: gpr, FPR: fpr, DR: dr}
}

// DirtyGPR reports whether Write modified the general-purpose bank.
func (f *File) DirtyGPR() bool { return f.dirtyGPR }

// DirtyFPR reports whether Write modified the floating-point/vector bank.
func (f *File) DirtyFPR() bool { return f.dirtyFPR }

// Read resolves name to its current value.
func (f *File) Read(name string) (Value, error) {
	info, ok := LookupInfo(name)
	if !ok {
		return Value{}, dbgerr.Unknown("no such register %q", name)
	}
	switch info.Kind {
	case KindGPR:
		v, err := f.GPR.ByName(info.Name)
		if err != nil {
			return Value{}, err
		}
		return UintValue(v, info.Size), nil
	case KindSubGPR:
		full, err := f.GPR.ByName(info.Parent)
		if err != nil {
			return Value{}, err
		}
		return UintValue(maskSub(full, info), info.Size), nil
	case KindFPR:
		if f.FPR == nil {
			return Value{}, dbgerr.Precondition("floating point registers not loaded for %q", name)
		}
		if info.Format == FormatVector {
			b := f.FPR.XMM(info.Index)
			return VectorValue(b[:]), nil
		}
		return UintValue(f.FPR.MM(info.Index), info.Size), nil
	case KindDR:
		return UintValue(f.DR[info.Index], info.Size), nil
	}
	return Value{}, dbgerr.Unknown("unsupported register kind for %q", name)
}

// Write splices v into name's slot, widening it to the register's natural
// size first. A value wider than the register's slot is a programmer error
// per spec.md's user-area write rule, not something to silently truncate,
// so it's rejected before any widening happens. Writing a DR register is
// rejected outright: debug registers are managed exclusively through
// stoppoint hardware allocation (pkg/native's
// SetHardwareStopPoint/ClearHardwareStopPoint), never as a free-form user
// write, so a caller reaching this through the general register-write path
// gets a clear precondition error instead of silently racing the hardware
// breakpoint allocator.
func (f *File) Write(name string, v Value) error {
	info, ok := LookupInfo(name)
	if !ok {
		return dbgerr.Unknown("no such register %q", name)
	}
	if len(v.Bytes) > info.Size {
		return dbgerr.Precondition("value is %d bytes, too wide for register %q's %d-byte slot", len(v.Bytes), name, info.Size)
	}
	wide := v.widenTo(info.Size)
	switch info.Kind {
	case KindGPR:
		if err := f.GPR.SetByName(info.Name, bytesToUint64(wide)); err != nil {
			return err
		}
		f.dirtyGPR = true
	case KindSubGPR:
		full, err := f.GPR.ByName(info.Parent)
		if err != nil {
			return err
		}
		if err := f.GPR.SetByName(info.Parent, spliceSub(full, info, bytesToUint64(wide))); err != nil {
			return err
		}
		f.dirtyGPR = true
	case KindFPR:
		if f.FPR == nil {
			return dbgerr.Precondition("floating point registers not loaded for %q", name)
		}
		if info.Format == FormatVector {
			var b [16]byte
			copy(b[:], wide)
			f.FPR.SetXMM(info.Index, b)
		} else {
			f.FPR.SetMM(info.Index, bytesToUint64(wide))
		}
		f.dirtyFPR = true
	case KindDR:
		return dbgerr.Precondition("register %q is managed through hardware stop-point allocation, not a direct write", name)
	}
	return nil
}

func maskSub(full uint64, info RegisterInfo) uint64 {
	shift := uint(info.SubByte) * 8
	mask := uint64(1)<<(uint(info.Size)*8) - 1
	return (full >> shift) & mask
}

func spliceSub(full uint64, info RegisterInfo, v uint64) uint64 {
	shift := uint(info.SubByte) * 8
	mask := (uint64(1)<<(uint(info.Size)*8) - 1) << shift
	return (full &^ mask) | ((v << shift) & mask)
}

func bytesToUint64(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
