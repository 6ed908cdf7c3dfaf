package safedbx

import "encoding/binary"

// Helpers for IntegerKey and IntegerDup tables. The engine compares such
// keys as native-endian unsigned integers, so keys built here sort
// numerically on every architecture.

// U32Key encodes v as a 4-byte native-endian key.
func U32Key(v uint32) []byte {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, v)
	return b
}

// U64Key encodes v as an 8-byte native-endian key.
func U64Key(v uint64) []byte {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, v)
	return b
}

// ParseU32Key decodes a 4-byte native-endian key.
func ParseU32Key(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, &Error{Kind: KindCustom, Message: "integer key must be 4 bytes"}
	}
	return binary.NativeEndian.Uint32(b), nil
}

// ParseU64Key decodes an 8-byte native-endian key.
func ParseU64Key(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, &Error{Kind: KindCustom, Message: "integer key must be 8 bytes"}
	}
	return binary.NativeEndian.Uint64(b), nil
}
