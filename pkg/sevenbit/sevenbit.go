// Package sevenbit packs 8-bit values into MIDI data bytes (bit 7 clear) and back.
//
// Source bytes are taken in groups of 7. Each group is written as one carry byte
// followed by the low 7 bits of every byte in the group. Bit 7 of the k-th byte of
// a group is stored in bit (6-k) of the group's carry byte, so the first byte's high
// bit lands in bit 6. A short trailing group still gets its own carry byte; the
// carry bits that have no data byte stay zero.
//
//	src:    b0 b1 b2 b3 b4 b5 b6 | b7 ...
//	packed: C0 b0' b1' b2' b3' b4' b5' b6' | C1 b7' ...
package sevenbit

import (
	"errors"
	"fmt"
)

// GroupSize is the number of source bytes covered by one carry byte.
const GroupSize = 7

// ErrMalformedPacket is returned when a packed stream cannot have been produced by Encode.
var ErrMalformedPacket = errors.New("malformed packet")

// PackedLen returns the packed length of n source bytes: n + ceil(n/7).
func PackedLen(n int) int {
	if n <= 0 {
		return 0
	}
	return n + (n+GroupSize-1)/GroupSize
}

// Encode packs src into a new slice of PackedLen(len(src)) bytes.
func Encode(src []byte) []byte {
	packed := make([]byte, PackedLen(len(src)))
	EncodeInto(packed, src)
	return packed
}

// EncodeInto packs src into dst, which must hold at least PackedLen(len(src)) bytes.
// It returns the number of bytes written.
func EncodeInto(dst, src []byte) int {
	n := PackedLen(len(src))
	if len(dst) < n {
		panic(fmt.Sprintf("sevenbit: destination too small: %d < %d", len(dst), n))
	}

	for i, b := range src {
		group, pos := i/GroupSize, i%GroupSize
		carryIdx := group * (GroupSize + 1)

		if pos == 0 {
			// reserve the carry slot, filled in as the group's bytes arrive
			dst[carryIdx] = 0
		}

		dst[carryIdx+1+pos] = b & 0x7F
		dst[carryIdx] |= (b >> 7) << (GroupSize - 1 - pos)
	}

	return n
}

// Decode unpacks a stream produced by Encode for n source bytes.
// It never returns partial output: any length mismatch, byte with bit 7 set,
// or carry bit without a matching data byte yields ErrMalformedPacket.
func Decode(packed []byte, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative source length %d", ErrMalformedPacket, n)
	}
	if want := PackedLen(n); len(packed) != want {
		return nil, fmt.Errorf("%w: length %d, want %d for %d bytes", ErrMalformedPacket, len(packed), want, n)
	}
	for i, b := range packed {
		if b&0x80 != 0 {
			return nil, fmt.Errorf("%w: byte %d is 0x%02X (bit 7 set)", ErrMalformedPacket, i, b)
		}
	}

	out := make([]byte, n)
	for i := range out {
		group, pos := i/GroupSize, i%GroupSize
		carryIdx := group * (GroupSize + 1)

		carry := packed[carryIdx]
		data := packed[carryIdx+1+pos]
		out[i] = data&0x7F | ((carry>>(GroupSize-1-pos))&0x01)<<7
	}

	// a short final group leaves the low carry bits unused
	if rem := n % GroupSize; rem != 0 {
		carryIdx := (n / GroupSize) * (GroupSize + 1)
		unused := byte(1)<<(GroupSize-rem) - 1
		if packed[carryIdx]&unused != 0 {
			return nil, fmt.Errorf("%w: carry byte %d has unused bits set (0x%02X)", ErrMalformedPacket, carryIdx, packed[carryIdx])
		}
	}

	return out, nil
}
