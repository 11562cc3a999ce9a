package game

import "encoding/binary"

// PutAddr appends a 32-bit little-endian address to the end of buf and
// returns the (possibly reallocated) slice. Addresses in .mes are little-endian byte offsets,
// unlike the big-endian words the format this package's tables were first
// modeled on used.
func PutAddr(buf []byte, addr uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], addr)
	return append(buf, b[:]...)
}

// GetAddr reads a 32-bit little-endian address from the start of b.
func GetAddr(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}
