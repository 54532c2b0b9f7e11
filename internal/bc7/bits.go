// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package bc7

// bitWriter packs fields LSB-first into a 128-bit block.
type bitWriter struct {
	lo, hi uint64
	pos    int
}

func (w *bitWriter) write(v uint64, n int) {
	v &= (1 << n) - 1
	switch {
	case w.pos >= 64:
		w.hi |= v << (w.pos - 64)
	case w.pos+n <= 64:
		w.lo |= v << w.pos
	default:
		w.lo |= v << w.pos
		w.hi |= v >> (64 - w.pos)
	}
	w.pos += n
}

func (w *bitWriter) bytes() [BlockBytes]byte {
	var out [BlockBytes]byte
	for i := 0; i < 8; i++ {
		out[i] = byte(w.lo >> (8 * i))
		out[8+i] = byte(w.hi >> (8 * i))
	}
	return out
}

// bitReader unpacks LSB-first fields from a 16-byte block.
type bitReader struct {
	data []byte
	pos  int
}

func (r *bitReader) read(n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		bit := (r.data[r.pos>>3] >> (r.pos & 7)) & 1
		v |= uint64(bit) << i
		r.pos++
	}
	return v
}
