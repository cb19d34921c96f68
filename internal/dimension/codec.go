package dimension

import "encoding/binary"

// decodeRaw reads a little-endian unsigned integer of the given byte width
// out of b, zero-extended into a uint64.
func decodeRaw(b []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		return 0
	}
}

// encodeRaw writes the low `width` bytes of v in little-endian order.
func encodeRaw(v uint64, width int) []byte {
	switch width {
	case 1:
		return []byte{byte(v)}
	case 2:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v))
		return b
	case 4:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		return b
	case 8:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		return b
	default:
		return nil
	}
}

// signExtend reinterprets the low `width` bytes of raw as a two's-complement
// signed integer, sign-extended into int64.
func signExtend(raw uint64, width int) int64 {
	switch width {
	case 1:
		return int64(int8(raw))
	case 2:
		return int64(int16(raw))
	case 4:
		return int64(int32(raw))
	case 8:
		return int64(raw)
	default:
		return 0
	}
}

func maskU64(width int) uint64 {
	if width >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (8 * width)) - 1
}
