// Package bitstream implements the little-endian, bit-addressable encoder and
// decoder used for every payload exchanged between the client and the service.
//
// A BitStream keeps a write pointer and a read pointer, both measured in bits.
// Booleans occupy a single bit; all other values are written as whole bytes in
// little-endian order, starting at the current bit position. Callers that need
// byte alignment (e.g. before appending an opaque payload) use
// AlignWriteToByteBoundary and AlignReadToByteBoundary.
//
// Wire Format:
//
//   - uint8/int8:        1 byte
//   - uint16/int16:      2 bytes, little endian
//   - uint32/int32:      4 bytes, little endian
//   - uint64/int64:      8 bytes, little endian
//   - float32/float64:   IEEE 754 bits, little endian
//   - bool:              1 bit (most significant bit first within a byte)
//   - string:            uint32 length prefix followed by the UTF-8 bytes
//
// Every Read method checks the number of unread bits first and returns
// ErrUnderflow instead of reading past the end, so a short or malformed reply
// can always be detected by the caller.
//
// Thread Safety:
//
//	A BitStream is not safe for concurrent use. It is created, filled and
//	consumed by one goroutine at a time.
package bitstream
