package stoppoint

import "testing"

func TestNewWatchpointRejectsMisalignedAddress(t *testing.T) {
	hw := &fakeHW{}
	mem := newFakeMemory()
	if _, err := NewWatchpoint(1, 0x1003, ModeWrite, 4, hw, mem); err == nil {
		t.Fatal("expected an error for a misaligned watchpoint address")
	}
}

func TestNewWatchpointRejectsBadSize(t *testing.T) {
	hw := &fakeHW{}
	mem := newFakeMemory()
	if _, err := NewWatchpoint(1, 0x1000, ModeWrite, 3, hw, mem); err == nil {
		t.Fatal("expected an error for an unsupported watchpoint size")
	}
}

func TestWatchpointUpdateValueShiftsPrevious(t *testing.T) {
	hw := &fakeHW{}
	mem := newFakeMemory()
	mem.words[0x2000] = 0x11
	wp, err := NewWatchpoint(1, 0x2000, ModeWrite, 4, hw, mem)
	if err != nil {
		t.Fatalf("NewWatchpoint: %v", err)
	}
	if err := wp.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	if err := wp.UpdateValue(); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if wp.Data != 0x11 {
		t.Fatalf("Data = %#x, want 0x11", wp.Data)
	}

	mem.words[0x2000] = 0x22
	if err := wp.UpdateValue(); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if wp.Data != 0x22 || wp.PreviousData != 0x11 {
		t.Fatalf("Data=%#x PreviousData=%#x, want Data=0x22 PreviousData=0x11", wp.Data, wp.PreviousData)
	}
}
