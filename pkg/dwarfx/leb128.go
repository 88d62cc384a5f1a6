package dwarfx

// DecodeULEB128 decodes an unsigned Little Endian Base 128 number starting
// at data[off] and returns the value along with the offset immediately
// following it. Unlike delve's leb128 package this operates on a byte slice
// plus cursor rather than a bytes.Buffer, since DIE attributes are decoded
// lazily at arbitrary offsets into .debug_info rather than streamed in order.
func DecodeULEB128(data []byte, off int) (uint64, int) {
	var result uint64
	var shift uint
	for {
		b := data[off]
		off++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, off
}

// DecodeSLEB128 decodes a signed Little Endian Base 128 number the same way.
func DecodeSLEB128(data []byte, off int) (int64, int) {
	var result int64
	var shift uint
	var b byte
	for {
		b = data[off]
		off++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, off
}
