package dimension

import "math"

// EncodeInt64 encodes a signed value at dt's native width.
func EncodeInt64(dt Datatype, v int64) []byte {
	return encodeRaw(uint64(v)&maskU64(dt.ByteWidth()), dt.ByteWidth())
}

// DecodeInt64 decodes a signed value encoded at dt's native width.
func DecodeInt64(dt Datatype, b []byte) int64 {
	return signExtend(decodeRaw(b, dt.ByteWidth()), dt.ByteWidth())
}

// EncodeUint64 encodes an unsigned value at dt's native width.
func EncodeUint64(dt Datatype, v uint64) []byte {
	return encodeRaw(v&maskU64(dt.ByteWidth()), dt.ByteWidth())
}

// DecodeUint64 decodes an unsigned value encoded at dt's native width.
func DecodeUint64(dt Datatype, b []byte) uint64 {
	return decodeRaw(b, dt.ByteWidth())
}

// EncodeFloat64 encodes a float value at dt's native width (32 or 64 bit).
func EncodeFloat64(dt Datatype, v float64) []byte {
	if dt.ByteWidth() == 4 {
		return encodeRaw(uint64(math.Float32bits(float32(v))), 4)
	}
	return encodeRaw(math.Float64bits(v), 8)
}

// DecodeFloat64 decodes a float value encoded at dt's native width.
func DecodeFloat64(dt Datatype, b []byte) float64 {
	if dt.ByteWidth() == 4 {
		return float64(math.Float32frombits(uint32(decodeRaw(b, 4))))
	}
	return math.Float64frombits(decodeRaw(b, 8))
}

// NewIntRange builds a fixed Range for an integer dimension from Go int64
// bounds (works for any signed or unsigned width; unsigned callers pass
// non-negative values).
func NewIntRange(dt Datatype, low, high int64) Range {
	return NewFixedRange(EncodeInt64(dt, low), EncodeInt64(dt, high))
}

// NewUintRange builds a fixed Range for an unsigned integer dimension.
func NewUintRange(dt Datatype, low, high uint64) Range {
	return NewFixedRange(EncodeUint64(dt, low), EncodeUint64(dt, high))
}

// NewFloatRange builds a fixed Range for a floating dimension.
func NewFloatRange(dt Datatype, low, high float64) Range {
	return NewFixedRange(EncodeFloat64(dt, low), EncodeFloat64(dt, high))
}

// NewStringRange builds a variable-length Range from Go strings.
func NewStringRange(low, high string) Range {
	return NewVarRange([]byte(low), []byte(high))
}
