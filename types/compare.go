package types

import (
	"encoding/binary"
	"math"
)

// CompareField compares two fixed-width field encodings of the same ColType
// and byte length. Integer and float fields are compared by value after
// decoding; string fields are compared over min(len(a), len(b)) bytes with
// shorter-is-less on a tie
func CompareField(a, b []byte, typ ColType, length int) int {
	switch typ {
	case ColTypeInt32:
		va := int32(binary.LittleEndian.Uint32(a[:4]))
		vb := int32(binary.LittleEndian.Uint32(b[:4]))
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		default:
			return 0
		}
	case ColTypeFloat32:
		va := math.Float32frombits(binary.LittleEndian.Uint32(a[:4]))
		vb := math.Float32frombits(binary.LittleEndian.Uint32(b[:4]))
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		default:
			return 0
		}
	default: // ColTypeString
		n := length
		if len(a) < n {
			n = len(a)
		}
		if len(b) < n {
			n = len(b)
		}
		for i := 0; i < n; i++ {
			if a[i] != b[i] {
				if a[i] < b[i] {
					return -1
				}
				return 1
			}
		}
		if len(a) == len(b) {
			return 0
		}
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
}

// CompareKey compares two composite keys component by component in declared
// column order cols gives the type and byte
// width of each component in order; a and b must both be exactly
// sum(cols[i].Len) bytes.
func CompareKey(a, b []byte, cols []ColMeta) int {
	off := 0
	for _, c := range cols {
		if c.Type == ColTypeString {
			if r := CompareField(a[off:off+c.Len], b[off:off+c.Len], c.Type, c.Len); r != 0 {
				return r
			}
		} else {
			if r := CompareField(a[off:off+4], b[off:off+4], c.Type, c.Len); r != 0 {
				return r
			}
		}
		off += c.Len
	}
	return 0
}

// EncodeInt32 packs a signed 32-bit integer into its 4-byte little-endian key
// encoding.
func EncodeInt32(v int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf
}

// EncodeFloat32 packs a 32-bit float into its 4-byte little-endian key
// encoding.
func EncodeFloat32(v float32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	return buf
}

// EncodeString packs s into a fixed-width, zero-padded (or truncated) field
// of width n.
func EncodeString(s string, n int) []byte {
	buf := make([]byte, n)
	copy(buf, s)
	return buf
}

// DecodeInt32 unpacks a 4-byte little-endian field written by EncodeInt32.
func DecodeInt32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b[:4]))
}

// DecodeFloat32 unpacks a 4-byte little-endian field written by EncodeFloat32.
func DecodeFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[:4]))
}

// DecodeString unpacks a fixed-width field written by EncodeString, trimming
// the trailing zero padding.
func DecodeString(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}
