package dwarfx

import "testing"

func TestDecodeULEB128(t *testing.T) {
	cases := []struct {
		data []byte
		want uint64
		n    int
	}{
		{[]byte{0x00}, 0, 1},
		{[]byte{0x7f}, 127, 1},
		{[]byte{0xe5, 0x8e, 0x26}, 624485, 3},
	}
	for _, c := range cases {
		got, n := DecodeULEB128(c.data, 0)
		if got != c.want || n != c.n {
			t.Errorf("DecodeULEB128(%v) = (%d, %d), want (%d, %d)", c.data, got, n, c.want, c.n)
		}
	}
}

func TestDecodeSLEB128(t *testing.T) {
	cases := []struct {
		data []byte
		want int64
		n    int
	}{
		{[]byte{0x02}, 2, 1},
		{[]byte{0x7e}, -2, 1},
		{[]byte{0xff, 0x00}, 127, 2},
		{[]byte{0x81, 0x7f}, -127, 2},
	}
	for _, c := range cases {
		got, n := DecodeSLEB128(c.data, 0)
		if got != c.want || n != c.n {
			t.Errorf("DecodeSLEB128(%v) = (%d, %d), want (%d, %d)", c.data, got, n, c.want, c.n)
		}
	}
}
