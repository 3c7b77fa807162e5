// Package bitset provides bit-group operations over a raw byte slice,
// generalizing github.com/diskfs/go-diskfs/util/bitmap's single-bit
// Bitmap to the variable bit-group granularity the SATT allocation bitmap
// needs (a "cluster" of the bitmap may be 1, 2, 4, ... bits wide depending
// on the ratio between an allocation unit and the pack cluster size).
//
// Unlike bitmap.Bitmap, which owns a private copy of its bytes, the
// functions here operate directly on a caller-supplied []byte so that the
// bitmap can live inside a cache-owned cluster buffer and participate in
// its dirty tracking.
package bitset

import "fmt"

// bcTable is a lookup-table popcount over a single byte, holding the same
// values as the source's satt.py bctable: entry i is the count for i>>1
// plus i's low bit.
var bcTable = func() [256]byte {
	var t [256]byte
	for i := 1; i < 256; i++ {
		t[i] = t[i>>1] + byte(i&1)
	}
	return t
}()

// PopcountByte returns the number of set bits in b.
func PopcountByte(b byte) int {
	return int(bcTable[b])
}

// Popcount returns the number of set bits across the whole slice.
func Popcount(b []byte) int {
	n := 0
	for _, v := range b {
		n += int(bcTable[v])
	}
	return n
}

// IsFreeGroup reports whether the bitcnt-wide group of bits starting at bit
// index pos is entirely clear (free). bitcnt must be a power of two <= 8
// when the group may span only part of a byte; for bitcnt >= 8 the group is
// always byte-aligned (the caller is responsible for that alignment, as the
// SATT allocation policy guarantees).
func IsFreeGroup(b []byte, pos, bitcnt int) (bool, error) {
	if bitcnt <= 0 {
		return false, fmt.Errorf("bitset: illegal bit group width %d", bitcnt)
	}
	if bitcnt < 8 {
		byteOff, bitOff := pos/8, pos%8
		if byteOff >= len(b) {
			return false, fmt.Errorf("bitset: position %d out of range", pos)
		}
		mask := byte((1<<uint(bitcnt) - 1) << uint(bitOff))
		return b[byteOff]&mask == 0, nil
	}
	byteOff := pos / 8
	byteCnt := bitcnt / 8
	if byteOff+byteCnt > len(b) {
		return false, fmt.Errorf("bitset: group at %d/%d out of range", pos, bitcnt)
	}
	for _, v := range b[byteOff : byteOff+byteCnt] {
		if v != 0 {
			return false, nil
		}
	}
	return true, nil
}

// MarkGroup sets the bitcnt-wide group of bits starting at bit index pos.
// It returns an Internal-flavored error (via the returned bool) if any bit
// in the group was already set, matching the source's "Marking in-use but
// cluster is not free" invariant check; callers translate that into
// rstserr.Internal.
func MarkGroup(b []byte, pos, bitcnt int) (ok bool, err error) {
	return setGroup(b, pos, bitcnt, true)
}

// ClearGroup frees the bitcnt-wide group of bits starting at bit index pos.
// ok is false if any bit in the group was already clear.
func ClearGroup(b []byte, pos, bitcnt int) (ok bool, err error) {
	return setGroup(b, pos, bitcnt, false)
}

func setGroup(b []byte, pos, bitcnt int, setTo bool) (bool, error) {
	if bitcnt <= 0 {
		return false, fmt.Errorf("bitset: illegal bit group width %d", bitcnt)
	}
	if bitcnt < 8 {
		byteOff, bitOff := pos/8, pos%8
		if byteOff >= len(b) {
			return false, fmt.Errorf("bitset: position %d out of range", pos)
		}
		mask := byte((1<<uint(bitcnt) - 1) << uint(bitOff))
		cur := b[byteOff] & mask
		if setTo {
			if cur != 0 {
				return false, nil
			}
			b[byteOff] |= mask
		} else {
			if cur != mask {
				return false, nil
			}
			b[byteOff] &^= mask
		}
		return true, nil
	}
	byteOff := pos / 8
	byteCnt := bitcnt / 8
	if byteOff+byteCnt > len(b) {
		return false, fmt.Errorf("bitset: group at %d/%d out of range", pos, bitcnt)
	}
	group := b[byteOff : byteOff+byteCnt]
	for _, v := range group {
		if setTo && v != 0 {
			return false, nil
		}
		if !setTo && v != 0xff {
			return false, nil
		}
	}
	fill := byte(0x00)
	if setTo {
		fill = 0xff
	}
	for i := range group {
		group[i] = fill
	}
	return true, nil
}
