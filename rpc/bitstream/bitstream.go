package bitstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnderflow is returned when a read needs more bits than are left unread
var ErrUnderflow = errors.New("bitstream: not enough unread data")

// BitStream is a growable bit buffer with independent read and write pointers.
// The invariant len(data) == NumberOfBytesUsed() always holds.
type BitStream struct {
	data       []byte
	bitsUsed   int
	readOffset int
}

// --------------------------------------------------------------------------
// Factory Methods
// --------------------------------------------------------------------------

// New creates an empty BitStream
func New() *BitStream {
	return &BitStream{}
}

// NewFromBytes creates a BitStream holding data, ready to be read.
// If copyData is false the stream aliases data and must not outlive it.
func NewFromBytes(data []byte, copyData bool) *BitStream {
	if copyData {
		data = append([]byte(nil), data...)
	}
	return &BitStream{
		data:     data,
		bitsUsed: len(data) * 8,
	}
}

// --------------------------------------------------------------------------
// Pointer Handling
// --------------------------------------------------------------------------

// Reset empties the stream. The underlying buffer is reused.
func (b *BitStream) Reset() {
	b.data = b.data[:0]
	b.bitsUsed = 0
	b.readOffset = 0
}

// ResetReadPointer rewinds the read pointer to the start of the stream
func (b *BitStream) ResetReadPointer() {
	b.readOffset = 0
}

// NumberOfBitsUsed returns the number of bits written
func (b *BitStream) NumberOfBitsUsed() int {
	return b.bitsUsed
}

// NumberOfBytesUsed returns the number of bytes touched by writes
func (b *BitStream) NumberOfBytesUsed() int {
	return (b.bitsUsed + 7) >> 3
}

// ReadOffset returns the read pointer in bits
func (b *BitStream) ReadOffset() int {
	return b.readOffset
}

// UnreadBits returns the number of bits that have not been read yet
func (b *BitStream) UnreadBits() int {
	if b.readOffset >= b.bitsUsed {
		return 0
	}
	return b.bitsUsed - b.readOffset
}

// Bytes returns the written data. The slice aliases the stream buffer.
func (b *BitStream) Bytes() []byte {
	return b.data[:b.NumberOfBytesUsed()]
}

// UnreadBytes returns the whole unread bytes starting at the read pointer,
// which must be byte aligned. The slice aliases the stream buffer.
func (b *BitStream) UnreadBytes() []byte {
	if b.readOffset&7 != 0 {
		return nil
	}
	start := b.readOffset >> 3
	end := start + b.UnreadBits()>>3
	if start >= len(b.data) {
		return nil
	}
	return b.data[start:end]
}

// AlignWriteToByteBoundary pads the write pointer to the next whole byte
func (b *BitStream) AlignWriteToByteBoundary() {
	b.bitsUsed = (b.bitsUsed + 7) &^ 7
}

// AlignReadToByteBoundary advances the read pointer to the next whole byte
func (b *BitStream) AlignReadToByteBoundary() {
	b.readOffset = (b.readOffset + 7) &^ 7
}

// IgnoreBits advances the read pointer by n bits
func (b *BitStream) IgnoreBits(n int) {
	b.readOffset += n
}

// IgnoreBytes advances the read pointer by n bytes
func (b *BitStream) IgnoreBytes(n int) {
	b.readOffset += n * 8
}

// --------------------------------------------------------------------------
// Write Methods
// --------------------------------------------------------------------------

// WriteBit appends a single bit
func (b *BitStream) WriteBit(v bool) {
	if b.bitsUsed&7 == 0 {
		b.data = append(b.data, 0)
	}
	if v {
		b.data[len(b.data)-1] |= 0x80 >> (b.bitsUsed & 7)
	}
	b.bitsUsed++
}

// WriteBits appends the first numBits bits of src (most significant bit first)
func (b *BitStream) WriteBits(src []byte, numBits int) {
	if numBits > len(src)*8 {
		numBits = len(src) * 8
	}
	if b.bitsUsed&7 == 0 && numBits&7 == 0 {
		b.data = append(b.data, src[:numBits>>3]...)
		b.bitsUsed += numBits
		return
	}
	for i := 0; i < numBits; i++ {
		b.WriteBit(src[i>>3]&(0x80>>(i&7)) != 0)
	}
}

// WriteBytes appends raw bytes without a length prefix
func (b *BitStream) WriteBytes(p []byte) {
	b.WriteBits(p, len(p)*8)
}

func (b *BitStream) WriteBool(v bool) {
	b.WriteBit(v)
}

func (b *BitStream) WriteUint8(v uint8) {
	b.WriteBytes([]byte{v})
}

func (b *BitStream) WriteInt8(v int8) {
	b.WriteUint8(uint8(v))
}

func (b *BitStream) WriteUint16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	b.WriteBytes(buf[:])
}

func (b *BitStream) WriteInt16(v int16) {
	b.WriteUint16(uint16(v))
}

func (b *BitStream) WriteUint32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	b.WriteBytes(buf[:])
}

func (b *BitStream) WriteInt32(v int32) {
	b.WriteUint32(uint32(v))
}

func (b *BitStream) WriteUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	b.WriteBytes(buf[:])
}

func (b *BitStream) WriteInt64(v int64) {
	b.WriteUint64(uint64(v))
}

func (b *BitStream) WriteFloat32(v float32) {
	b.WriteUint32(math.Float32bits(v))
}

func (b *BitStream) WriteFloat64(v float64) {
	b.WriteUint64(math.Float64bits(v))
}

// WriteString writes a uint32 length prefix followed by the string bytes
func (b *BitStream) WriteString(s string) {
	b.WriteUint32(uint32(len(s)))
	b.WriteBytes([]byte(s))
}

// WriteStream appends all unread bits of src and consumes them
func (b *BitStream) WriteStream(src *BitStream) {
	if src == nil {
		return
	}
	n := src.UnreadBits()
	if n == 0 {
		return
	}
	if src.readOffset&7 == 0 && b.bitsUsed&7 == 0 {
		start := src.readOffset >> 3
		whole := n >> 3
		b.data = append(b.data, src.data[start:start+whole]...)
		b.bitsUsed += whole * 8
		src.readOffset += whole * 8
		n -= whole * 8
	}
	for ; n > 0; n-- {
		bit, _ := src.ReadBit()
		b.WriteBit(bit)
	}
}

// --------------------------------------------------------------------------
// Read Methods
// --------------------------------------------------------------------------

// ReadBit reads a single bit
func (b *BitStream) ReadBit() (bool, error) {
	if b.UnreadBits() < 1 {
		return false, ErrUnderflow
	}
	v := b.data[b.readOffset>>3]&(0x80>>(b.readOffset&7)) != 0
	b.readOffset++
	return v, nil
}

// ReadBits reads numBits bits, packed most significant bit first
func (b *BitStream) ReadBits(numBits int) ([]byte, error) {
	if numBits < 0 || b.UnreadBits() < numBits {
		return nil, ErrUnderflow
	}
	out := make([]byte, (numBits+7)>>3)
	for i := 0; i < numBits; i++ {
		bit, _ := b.ReadBit()
		if bit {
			out[i>>3] |= 0x80 >> (i & 7)
		}
	}
	return out, nil
}

// readInto fills p from the read pointer
func (b *BitStream) readInto(p []byte) error {
	if b.UnreadBits() < len(p)*8 {
		return ErrUnderflow
	}
	if b.readOffset&7 == 0 {
		start := b.readOffset >> 3
		copy(p, b.data[start:start+len(p)])
		b.readOffset += len(p) * 8
		return nil
	}
	for i := range p {
		var v byte
		for j := 0; j < 8; j++ {
			v <<= 1
			if b.data[b.readOffset>>3]&(0x80>>(b.readOffset&7)) != 0 {
				v |= 1
			}
			b.readOffset++
		}
		p[i] = v
	}
	return nil
}

// ReadBytes reads n raw bytes
func (b *BitStream) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrUnderflow
	}
	p := make([]byte, n)
	if err := b.readInto(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *BitStream) ReadBool() (bool, error) {
	return b.ReadBit()
}

func (b *BitStream) ReadUint8() (uint8, error) {
	var buf [1]byte
	if err := b.readInto(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (b *BitStream) ReadInt8() (int8, error) {
	v, err := b.ReadUint8()
	return int8(v), err
}

func (b *BitStream) ReadUint16() (uint16, error) {
	var buf [2]byte
	if err := b.readInto(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (b *BitStream) ReadInt16() (int16, error) {
	v, err := b.ReadUint16()
	return int16(v), err
}

func (b *BitStream) ReadUint32() (uint32, error) {
	var buf [4]byte
	if err := b.readInto(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (b *BitStream) ReadInt32() (int32, error) {
	v, err := b.ReadUint32()
	return int32(v), err
}

func (b *BitStream) ReadUint64() (uint64, error) {
	var buf [8]byte
	if err := b.readInto(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (b *BitStream) ReadInt64() (int64, error) {
	v, err := b.ReadUint64()
	return int64(v), err
}

func (b *BitStream) ReadFloat32() (float32, error) {
	v, err := b.ReadUint32()
	return math.Float32frombits(v), err
}

func (b *BitStream) ReadFloat64() (float64, error) {
	v, err := b.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadString reads a string written by WriteString.
// The read pointer is left unchanged on failure.
func (b *BitStream) ReadString() (string, error) {
	start := b.readOffset
	n, err := b.ReadUint32()
	if err != nil {
		return "", err
	}
	if uint64(n)*8 > uint64(b.UnreadBits()) {
		b.readOffset = start
		return "", fmt.Errorf("string of %d bytes: %w", n, ErrUnderflow)
	}
	p := make([]byte, n)
	_ = b.readInto(p)
	return string(p), nil
}
