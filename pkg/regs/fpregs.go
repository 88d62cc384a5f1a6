package regs

// FPRegs mirrors the kernel's struct user_fpregs_struct for x86-64
// (arch/x86/include/asm/user_64.h): the 512-byte FXSAVE-format layout
// PTRACE_GETFPREGS/PTRACE_SETFPREGS read and write whole. golang.org/x/sys/unix
// has no linux/amd64 type for this (only the 32-bit x86 ptrace helpers in
// zptrace_x86_linux.go carry one), so this debugger defines its own,
// grounded on delve's registers_linux_amd64.go PtraceFpRegs of the same shape.
type FPRegs struct {
	Cwd      uint16
	Swd      uint16
	Ftw      uint16
	Fop      uint16
	Rip      uint64
	Rdp      uint64
	Mxcsr    uint32
	MxcrMask uint32
	StSpace  [32]uint32 // ST0-7 / MM0-7, 16 bytes (4 uint32) per slot
	XmmSpace [256]byte  // XMM0-15, 16 bytes per register
	Padding  [24]uint32
}

// FPRegisters is a snapshot of one thread's x87/MMX/SSE register file.
type FPRegisters struct {
	raw FPRegs
}

// FPRegistersFromRaw wraps an already-fetched FPRegs.
func FPRegistersFromRaw(raw FPRegs) *FPRegisters { return &FPRegisters{raw: raw} }

// Raw returns the underlying FPRegs, e.g. to pass to PTRACE_SETFPREGS.
func (f *FPRegisters) Raw() *FPRegs { return &f.raw }

// MM reads the 64-bit MMX register at index i (0-7): the low 8 bytes of
// the i'th 16-byte ST slot, the two representations sharing storage the
// way the FPU's tag word aliases them in hardware.
func (f *FPRegisters) MM(i int) uint64 {
	lo := uint64(f.raw.StSpace[i*4])
	hi := uint64(f.raw.StSpace[i*4+1])
	return lo | hi<<32
}

// SetMM writes the low 8 bytes of ST slot i, leaving its upper (exponent/
// tag) bytes untouched.
func (f *FPRegisters) SetMM(i int, v uint64) {
	f.raw.StSpace[i*4] = uint32(v)
	f.raw.StSpace[i*4+1] = uint32(v >> 32)
}

// XMM reads the 16 bytes of XMM register i (0-15).
func (f *FPRegisters) XMM(i int) [16]byte {
	var out [16]byte
	copy(out[:], f.raw.XmmSpace[i*16:i*16+16])
	return out
}

// SetXMM overwrites the 16 bytes of XMM register i.
func (f *FPRegisters) SetXMM(i int, v [16]byte) {
	copy(f.raw.XmmSpace[i*16:i*16+16], v[:])
}
