package native

import (
	"encoding/binary"
	"testing"
)

func buildAuxv(entries [][2]uint64) []byte {
	buf := make([]byte, 0, len(entries)*16)
	for _, e := range entries {
		var word [8]byte
		binary.LittleEndian.PutUint64(word[:], e[0])
		buf = append(buf, word[:]...)
		binary.LittleEndian.PutUint64(word[:], e[1])
		buf = append(buf, word[:]...)
	}
	return buf
}

func TestEntryPointFromAuxvFindsATEntry(t *testing.T) {
	auxv := buildAuxv([][2]uint64{
		{3 /* AT_PHDR */, 0x400040},
		{atEntry, 0x555000401000},
		{atNull, 0},
	})
	got := EntryPointFromAuxv(auxv)
	if got != 0x555000401000 {
		t.Fatalf("EntryPointFromAuxv() = %#x, want 0x555000401000", got)
	}
}

func TestEntryPointFromAuxvMissingReturnsZero(t *testing.T) {
	auxv := buildAuxv([][2]uint64{
		{3, 0x400040},
		{atNull, 0},
	})
	if got := EntryPointFromAuxv(auxv); got != 0 {
		t.Fatalf("EntryPointFromAuxv() = %#x, want 0", got)
	}
}
