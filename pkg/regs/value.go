package regs

import (
	"encoding/binary"
	"math"
)

// Format is spec.md's RegisterInfo.format: how a register's raw bytes are
// interpreted for display and how a written value is widened to fit it.
type Format int

const (
	FormatUint Format = iota
	FormatDouble
	FormatLongDouble
	FormatVector
)

func (f Format) String() string {
	switch f {
	case FormatUint:
		return "uint"
	case FormatDouble:
		return "double"
	case FormatLongDouble:
		return "long_double"
	case FormatVector:
		return "vector"
	default:
		return "unknown"
	}
}

// Value is spec.md's RegisterValue: a tagged union over the little-endian
// bytes of an unsigned/signed integer, an IEEE-754 float, or a raw byte
// vector, held as raw bytes rather than as a Go union so Read/Write can
// splice it into a register's user-area slot uniformly regardless of which
// variant produced it.
type Value struct {
	Format Format
	Signed bool   // only meaningful when Format == FormatUint
	Bytes  []byte // little-endian
}

// UintValue builds an unsigned integer value size bytes wide.
func UintValue(v uint64, size int) Value {
	return Value{Format: FormatUint, Bytes: leBytes(v, size)}
}

// IntValue builds a signed integer value size bytes wide.
func IntValue(v int64, size int) Value {
	return Value{Format: FormatUint, Signed: true, Bytes: leBytes(uint64(v), size)}
}

// Float32Value builds a single-precision float value.
func Float32Value(v float32) Value {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return Value{Format: FormatDouble, Bytes: b}
}

// Float64Value builds a double-precision float value.
func Float64Value(v float64) Value {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return Value{Format: FormatDouble, Bytes: b}
}

// VectorValue builds a raw byte-vector value (an XMM/YMM lane's contents).
func VectorValue(b []byte) Value {
	return Value{Format: FormatVector, Bytes: append([]byte(nil), b...)}
}

func leBytes(v uint64, size int) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	if size > 8 {
		size = 8
	}
	return b[:size]
}

// AsUint64 reinterprets the low up-to-8 bytes as an unsigned integer.
func (v Value) AsUint64() uint64 {
	var b [8]byte
	copy(b[:], v.Bytes)
	return binary.LittleEndian.Uint64(b[:])
}

// AsFloat64 reinterprets the low 8 bytes as an IEEE-754 double.
func (v Value) AsFloat64() float64 { return math.Float64frombits(v.AsUint64()) }

// widenTo pads v's bytes up to exactly size bytes: unsigned values
// zero-extend, signed values sign-extend, everything else (doubles, long
// doubles, vectors) zero-pad, matching spec.md's user-area write rule
// ("widen the value to 16 bytes... then splice the first size bytes into
// the user-area mirror"). Callers are expected to reject len(v.Bytes) >
// size themselves (File.Write does); widenTo assumes it never has to
// truncate.
func (v Value) widenTo(size int) []byte {
	out := make([]byte, size)
	n := len(v.Bytes)
	if n >= size {
		copy(out, v.Bytes[:size])
		return out
	}
	copy(out, v.Bytes)
	if v.Format == FormatUint && v.Signed && n > 0 && v.Bytes[n-1]&0x80 != 0 {
		for i := n; i < size; i++ {
			out[i] = 0xff
		}
	}
	return out
}
