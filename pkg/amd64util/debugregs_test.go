package amd64util

import "testing"

func newTestRegs() (*DebugRegisters, *[4]uint64, *uint64, *uint64) {
	addrs := &[4]uint64{}
	var dr6, dr7 uint64
	drs := NewDebugRegisters(&addrs[0], &addrs[1], &addrs[2], &addrs[3], &dr6, &dr7)
	return drs, addrs, &dr6, &dr7
}

func TestSetBreakpointArmsSlot(t *testing.T) {
	drs, addrs, _, dr7 := newTestRegs()
	if err := drs.SetBreakpoint(0, 0x1000, false, true, 4); err != nil {
		t.Fatalf("SetBreakpoint: %v", err)
	}
	if addrs[0] != 0x1000 {
		t.Errorf("DR0 = %#x, want 0x1000", addrs[0])
	}
	if *dr7&1 == 0 {
		t.Error("expected enable bit 0 to be set")
	}
	if !drs.Dirty {
		t.Error("expected Dirty to be true after SetBreakpoint")
	}
}

func TestSetBreakpointIdempotentWithSameParams(t *testing.T) {
	drs, _, _, _ := newTestRegs()
	if err := drs.SetBreakpoint(1, 0x2000, true, true, 8); err != nil {
		t.Fatal(err)
	}
	drs.Dirty = false
	if err := drs.SetBreakpoint(1, 0x2000, true, true, 8); err != nil {
		t.Fatalf("second SetBreakpoint with same params should succeed: %v", err)
	}
	if drs.Dirty {
		t.Error("expected Dirty to remain false when re-arming with identical params")
	}
}

func TestSetBreakpointConflictsOnMismatch(t *testing.T) {
	drs, _, _, _ := newTestRegs()
	if err := drs.SetBreakpoint(2, 0x3000, false, true, 4); err != nil {
		t.Fatal(err)
	}
	if err := drs.SetBreakpoint(2, 0x3000, false, true, 8); err == nil {
		t.Fatal("expected a conflict error when re-arming a slot with different params")
	}
}

func TestSetBreakpointRejectsReadOnly(t *testing.T) {
	drs, _, _, _ := newTestRegs()
	if err := drs.SetBreakpoint(0, 0x1000, true, false, 4); err == nil {
		t.Fatal("expected break-on-read-only to be rejected")
	}
}

func TestClearBreakpointDisablesSlot(t *testing.T) {
	drs, _, _, dr7 := newTestRegs()
	if err := drs.SetBreakpoint(3, 0x4000, false, true, 1); err != nil {
		t.Fatal(err)
	}
	drs.ClearBreakpoint(3)
	if *dr7&(1<<6) != 0 {
		t.Error("expected enable bit for slot 3 to be cleared")
	}
}

func TestGetActiveBreakpointClearsConditionBits(t *testing.T) {
	drs, _, dr6, _ := newTestRegs()
	if err := drs.SetBreakpoint(3, 0x4000, false, true, 1); err != nil {
		t.Fatal(err)
	}
	*dr6 = 1 << 3

	ok, idx := drs.GetActiveBreakpoint()
	if !ok || idx != 3 {
		t.Fatalf("GetActiveBreakpoint() = (%v, %d), want (true, 3)", ok, idx)
	}
	if *dr6 != 0 {
		t.Errorf("DR6 = %#x after GetActiveBreakpoint, want cleared condition bits", *dr6)
	}
}
