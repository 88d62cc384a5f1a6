package addr_test

import (
	"testing"

	"github.com/go-mdb/mdb/pkg/addr"
)

type fakeImage struct {
	bias    uint64
	lo, hi  uint64
	present bool
}

func (f *fakeImage) SectionForFileOffset(off uint64) (uint64, uint64, bool) {
	if !f.present || off < f.lo || off >= f.hi {
		return 0, 0, false
	}
	return f.lo, f.hi, true
}

func (f *fakeImage) LoadBias() uint64 { return f.bias }

func TestFileToVirtRoundTrip(t *testing.T) {
	img := &fakeImage{bias: 0x400000, lo: 0x1000, hi: 0x2000, present: true}
	fa := addr.FileAddr{Img: img, Off: 0x1234}

	va := fa.ToVirt()
	if va.IsNull() {
		t.Fatal("expected a non-null virtual address")
	}

	back, ok := va.ToFile(img)
	if !ok {
		t.Fatal("expected ToFile to succeed")
	}
	if back.Off != fa.Off {
		t.Fatalf("round trip mismatch: got 0x%x, want 0x%x", back.Off, fa.Off)
	}
}

func TestFileToVirtOutsideSectionIsNull(t *testing.T) {
	img := &fakeImage{bias: 0x400000, lo: 0x1000, hi: 0x2000, present: true}
	fa := addr.FileAddr{Img: img, Off: 0x5000}

	if va := fa.ToVirt(); !va.IsNull() {
		t.Fatalf("expected null virtual address, got %s", va)
	}
}

func TestVirtToFileBeforeBias(t *testing.T) {
	img := &fakeImage{bias: 0x400000, lo: 0x1000, hi: 0x2000, present: true}
	va := addr.VirtAddr{Addr: 0x100}

	if _, ok := va.ToFile(img); ok {
		t.Fatal("expected ToFile to fail for an address below the load bias")
	}
}

func TestSameImage(t *testing.T) {
	imgA := &fakeImage{present: true, hi: 10}
	imgB := &fakeImage{present: true, hi: 10}

	a := addr.FileAddr{Img: imgA, Off: 1}
	b := addr.FileAddr{Img: imgA, Off: 2}
	c := addr.FileAddr{Img: imgB, Off: 1}

	if !a.SameImage(b) {
		t.Fatal("expected addresses in the same image to compare equal")
	}
	if a.SameImage(c) {
		t.Fatal("expected addresses in different images to not compare equal")
	}
}
