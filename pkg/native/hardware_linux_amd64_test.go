package native

import (
	"testing"

	"github.com/go-mdb/mdb/pkg/amd64util"
)

func newTestDebugRegs() (*amd64util.DebugRegisters, *[8]uint64) {
	var regs [8]uint64
	return amd64util.NewDebugRegisters(&regs[0], &regs[1], &regs[2], &regs[3], &regs[6], &regs[7]), &regs
}

func TestFreeSlotFindsFirstUnarmed(t *testing.T) {
	drs, _ := newTestDebugRegs()
	if err := drs.SetBreakpoint(0, 0x1000, false, true, 4); err != nil {
		t.Fatalf("SetBreakpoint: %v", err)
	}
	idx, ok := freeSlot(drs, 4)
	if !ok || idx != 1 {
		t.Fatalf("freeSlot() = (%d, %v), want (1, true)", idx, ok)
	}
}

func TestFreeSlotAllArmedReportsFalse(t *testing.T) {
	drs, _ := newTestDebugRegs()
	for i := uint8(0); i < 4; i++ {
		if err := drs.SetBreakpoint(i, 0x1000+uint64(i)*8, false, true, 4); err != nil {
			t.Fatalf("SetBreakpoint(%d): %v", i, err)
		}
	}
	if _, ok := freeSlot(drs, 4); ok {
		t.Fatal("expected freeSlot to report no free slots")
	}
}
