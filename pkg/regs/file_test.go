package regs

import (
	"testing"

	"golang.org/x/sys/unix"
)

func newTestFile() *File {
	return NewFile(FromPtrace(unix.PtraceRegs{}), FPRegistersFromRaw(FPRegs{}), [8]uint64{})
}

func TestWriteSubGPRLeavesRestOfParentUntouched(t *testing.T) {
	f := newTestFile()
	if err := f.Write("r13", UintValue(0xcafecafedeadbeef, 8)); err != nil {
		t.Fatalf("Write(r13): %v", err)
	}
	if err := f.Write("r13b", UintValue(42, 1)); err != nil {
		t.Fatalf("Write(r13b): %v", err)
	}
	full, err := f.GPR.ByName("r13")
	if err != nil {
		t.Fatalf("ByName(r13): %v", err)
	}
	if full != 0xcafecafedeadbe2a {
		t.Fatalf("r13 after writing r13b = %#x, want low byte replaced by 0x2a", full)
	}
	v, err := f.Read("r13b")
	if err != nil {
		t.Fatalf("Read(r13b): %v", err)
	}
	if v.AsUint64() != 42 {
		t.Fatalf("r13b = %d, want 42", v.AsUint64())
	}
}

func TestReadR13AfterWrite(t *testing.T) {
	f := newTestFile()
	if err := f.Write("r13", UintValue(0xcafecafe, 8)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	v, err := f.Read("r13")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v.AsUint64() != 0xcafecafe {
		t.Fatalf("r13 = %#x, want 0xcafecafe", v.AsUint64())
	}
}

func TestWriteMM0ThenReadBack(t *testing.T) {
	f := newTestFile()
	if err := f.Write("mm0", UintValue(0xba5eba11, 8)); err != nil {
		t.Fatalf("Write(mm0): %v", err)
	}
	v, err := f.Read("mm0")
	if err != nil {
		t.Fatalf("Read(mm0): %v", err)
	}
	if v.AsUint64() != 0xba5eba11 {
		t.Fatalf("mm0 = %#x, want 0xba5eba11", v.AsUint64())
	}
}

func TestWriteXMM0AsDoubleOccupiesLow8Bytes(t *testing.T) {
	f := newTestFile()
	if err := f.Write("xmm0", Float64Value(42.24)); err != nil {
		t.Fatalf("Write(xmm0): %v", err)
	}
	v, err := f.Read("xmm0")
	if err != nil {
		t.Fatalf("Read(xmm0): %v", err)
	}
	if len(v.Bytes) != 16 {
		t.Fatalf("xmm0 value width = %d, want 16", len(v.Bytes))
	}
	if got := (Value{Format: FormatDouble, Bytes: v.Bytes[:8]}).AsFloat64(); got != 42.24 {
		t.Fatalf("xmm0 low 8 bytes as float64 = %v, want 42.24", got)
	}
	for _, b := range v.Bytes[8:] {
		if b != 0 {
			t.Fatalf("xmm0 upper 8 bytes = %v, want all zero", v.Bytes[8:])
		}
	}
}

func TestReadFPRWithoutFPRegistersLoadedFails(t *testing.T) {
	f := NewFile(FromPtrace(unix.PtraceRegs{}), nil, [8]uint64{})
	if _, err := f.Read("mm0"); err == nil {
		t.Fatal("expected an error reading mm0 with no FPRegisters loaded")
	}
}

func TestWriteDebugRegisterRejected(t *testing.T) {
	f := newTestFile()
	if err := f.Write("dr0", UintValue(0x1000, 8)); err == nil {
		t.Fatal("expected writing dr0 through File to be rejected")
	}
}

func TestReadDebugRegisterReturnsSuppliedValue(t *testing.T) {
	f := NewFile(FromPtrace(unix.PtraceRegs{}), nil, [8]uint64{0: 0x1000})
	v, err := f.Read("dr0")
	if err != nil {
		t.Fatalf("Read(dr0): %v", err)
	}
	if v.AsUint64() != 0x1000 {
		t.Fatalf("dr0 = %#x, want 0x1000", v.AsUint64())
	}
}

func TestWriteRejectsValueWiderThanRegisterSlot(t *testing.T) {
	f := newTestFile()
	if err := f.Write("r13b", UintValue(0x1122, 2)); err == nil {
		t.Fatal("expected writing a 2-byte value into a 1-byte register to be rejected")
	}
}

func TestLookupInfoUnknownName(t *testing.T) {
	if _, ok := LookupInfo("not_a_register"); ok {
		t.Fatal("expected LookupInfo to report unknown for a made-up name")
	}
}
