package disasm

import (
	"strings"
	"testing"
)

type fakeCode struct {
	base uint64
	code []byte
}

func (f *fakeCode) ReadMemoryWithoutTraps(addr uint64, size int) ([]byte, error) {
	off := int(addr - f.base)
	end := off + size
	if end > len(f.code) {
		end = len(f.code)
	}
	buf := make([]byte, size)
	if off < len(f.code) {
		copy(buf, f.code[off:end])
	}
	return buf, nil
}

func TestDecodeSimpleInstructions(t *testing.T) {
	// nop; ret
	mem := &fakeCode{base: 0x1000, code: []byte{0x90, 0xc3}}
	insts, err := Decode(mem, 0x1000, 2, Intel)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(insts) != 2 {
		t.Fatalf("got %d instructions, want 2", len(insts))
	}
	if insts[0].Address != 0x1000 || insts[0].Size != 1 {
		t.Fatalf("insts[0] = %+v", insts[0])
	}
	if insts[1].Address != 0x1001 || insts[1].Size != 1 {
		t.Fatalf("insts[1] = %+v", insts[1])
	}
	if !strings.Contains(strings.ToUpper(insts[0].Text), "NOP") {
		t.Fatalf("insts[0].Text = %q, want a NOP mnemonic", insts[0].Text)
	}
	if !strings.Contains(strings.ToUpper(insts[1].Text), "RET") {
		t.Fatalf("insts[1].Text = %q, want a RET mnemonic", insts[1].Text)
	}
}

func TestDecodeRewritesRelativeCallToAbsoluteTarget(t *testing.T) {
	// call rel32 to a target 5 bytes past the call itself: e8 00 00 00 00
	mem := &fakeCode{base: 0x2000, code: []byte{0xe8, 0x00, 0x00, 0x00, 0x00}}
	insts, err := Decode(mem, 0x2000, 1, Intel)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !strings.Contains(insts[0].Text, "2005") {
		t.Fatalf("insts[0].Text = %q, want the absolute target 0x2005", insts[0].Text)
	}
}

func TestDecodeStopsOnInvalidEncoding(t *testing.T) {
	mem := &fakeCode{base: 0x3000, code: []byte{0xd6}} // SALC, invalid in 64-bit mode
	insts, err := Decode(mem, 0x3000, 1, Intel)
	if err == nil {
		t.Fatal("expected a decode error for an invalid opcode")
	}
	if len(insts) != 0 {
		t.Fatalf("expected no instructions decoded, got %d", len(insts))
	}
}
