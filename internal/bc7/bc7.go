// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

/*
Package bc7 encodes and decodes BC7 (BPTC UNORM) blocks.

The encoder emits mode 6 only: one subset, 7-bit RGBA endpoints with a
per-endpoint parity bit and 4-bit indices. Endpoints are fitted along the
principal axis of the block. Two profiles mirror the usual opaque/alpha
presets: ProfileOpaque ignores source alpha and stores 255, ProfileAlpha
fits all four channels.
*/
package bc7

import (
	"errors"
	"fmt"
	"math"
)

const (
	// BlockBytes is the size of one encoded block.
	BlockBytes = 16
	// BlockDim is the block width and height in texels.
	BlockDim = 4
)

var (
	// ErrInvalidSurface indicates surface dimensions or buffer length are unusable.
	ErrInvalidSurface = errors.New("bc7: invalid surface")
	// ErrUnsupportedMode indicates a block mode the decoder does not implement.
	ErrUnsupportedMode = errors.New("bc7: unsupported block mode")
)

// Profile selects endpoint fitting behavior.
type Profile uint8

const (
	// ProfileOpaque fits RGB and forces alpha to 255.
	ProfileOpaque Profile = iota
	// ProfileAlpha fits RGBA.
	ProfileAlpha
)

// mode 6 interpolation weights for 4-bit indices.
var weights4 = [16]int{0, 4, 9, 13, 17, 21, 26, 30, 34, 38, 43, 47, 51, 55, 60, 64}

// Encode compresses an RGBA8 surface whose width and height are multiples
// of 4. Rows are stride bytes apart.
func Encode(pix []byte, width, height, stride int, profile Profile) ([]byte, error) {
	if width <= 0 || height <= 0 || width%BlockDim != 0 || height%BlockDim != 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSurface, width, height)
	}
	if stride < width*4 || len(pix) < (height-1)*stride+width*4 {
		return nil, fmt.Errorf("%w: buffer %d bytes, stride %d", ErrInvalidSurface, len(pix), stride)
	}

	bw := width / BlockDim
	bh := height / BlockDim
	out := make([]byte, bw*bh*BlockBytes)

	var texels [16][4]uint8
	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			for py := 0; py < BlockDim; py++ {
				row := (by*BlockDim+py)*stride + bx*BlockDim*4
				for px := 0; px < BlockDim; px++ {
					copy(texels[py*BlockDim+px][:], pix[row+px*4:row+px*4+4])
				}
			}
			block := EncodeBlock(&texels, profile)
			copy(out[(by*bw+bx)*BlockBytes:], block[:])
		}
	}

	return out, nil
}

// EncodeBlock compresses 16 row-major RGBA8 texels into a mode 6 block.
func EncodeBlock(texels *[16][4]uint8, profile Profile) [BlockBytes]byte {
	cw := [4]float64{1, 1, 1, 1}
	if profile == ProfileOpaque {
		cw[3] = 0
	}

	lo, hi := fitEndpoints(texels, cw)
	if profile == ProfileOpaque {
		lo[3], hi[3] = 255, 255
	}

	q0, p0 := quantizeEndpoint(lo, cw, profile)
	q1, p1 := quantizeEndpoint(hi, cw, profile)
	e0 := expand(q0, p0)
	e1 := expand(q1, p1)

	var palette [16][4]int
	for i, w := range weights4 {
		for c := 0; c < 4; c++ {
			palette[i][c] = interpolate(e0[c], e1[c], w)
		}
	}

	var indices [16]int
	for t := range texels {
		best := math.MaxFloat64
		for i := range palette {
			var d float64
			for c := 0; c < 4; c++ {
				v := float64(int(texels[t][c]) - palette[i][c])
				d += cw[c] * v * v
			}
			if d < best {
				best = d
				indices[t] = i
			}
		}
	}

	// Index 0 is the anchor and is stored without its top bit.
	if indices[0] >= 8 {
		q0, q1 = q1, q0
		p0, p1 = p1, p0
		for t := range indices {
			indices[t] = 15 - indices[t]
		}
	}

	var bw bitWriter
	bw.write(1<<6, 7)
	for c := 0; c < 4; c++ {
		bw.write(uint64(q0[c]), 7)
		bw.write(uint64(q1[c]), 7)
	}
	bw.write(uint64(p0), 1)
	bw.write(uint64(p1), 1)
	bw.write(uint64(indices[0]), 3)
	for t := 1; t < 16; t++ {
		bw.write(uint64(indices[t]), 4)
	}

	return bw.bytes()
}

// fitEndpoints returns the extreme points of the texels projected on their
// principal axis, weighted per channel.
func fitEndpoints(texels *[16][4]uint8, cw [4]float64) ([4]float64, [4]float64) {
	var mean [4]float64
	for _, t := range texels {
		for c := 0; c < 4; c++ {
			mean[c] += float64(t[c])
		}
	}
	for c := range mean {
		mean[c] /= 16
	}

	var cov [4][4]float64
	for _, t := range texels {
		var d [4]float64
		for c := 0; c < 4; c++ {
			d[c] = (float64(t[c]) - mean[c]) * cw[c]
		}
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				cov[i][j] += d[i] * d[j]
			}
		}
	}

	axis := [4]float64{1, 1, 1, 1}
	for iter := 0; iter < 8; iter++ {
		var next [4]float64
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				next[i] += cov[i][j] * axis[j]
			}
		}
		n := math.Sqrt(next[0]*next[0] + next[1]*next[1] + next[2]*next[2] + next[3]*next[3])
		if n < 1e-9 {
			return mean, mean
		}
		for i := range next {
			next[i] /= n
		}
		axis = next
	}

	tmin, tmax := math.MaxFloat64, -math.MaxFloat64
	for _, t := range texels {
		var p float64
		for c := 0; c < 4; c++ {
			p += (float64(t[c]) - mean[c]) * cw[c] * axis[c]
		}
		tmin = math.Min(tmin, p)
		tmax = math.Max(tmax, p)
	}

	var lo, hi [4]float64
	for c := 0; c < 4; c++ {
		lo[c] = clamp255(mean[c] + tmin*axis[c])
		hi[c] = clamp255(mean[c] + tmax*axis[c])
	}

	return lo, hi
}

// quantizeEndpoint picks 7-bit components and the shared parity bit that
// best reproduce v.
func quantizeEndpoint(v [4]float64, cw [4]float64, profile Profile) ([4]int, int) {
	var best [4]int
	bestP := 1
	bestErr := math.MaxFloat64

	for p := 0; p <= 1; p++ {
		if profile == ProfileOpaque && p == 0 {
			// 255 alpha needs the parity bit set.
			continue
		}
		var q [4]int
		var e float64
		for c := 0; c < 4; c++ {
			q[c] = clampInt(int(math.Round((v[c]-float64(p))/2)), 0, 127)
			d := float64((q[c]<<1|p)) - v[c]
			w := cw[c]
			if w == 0 {
				w = 1
			}
			e += w * d * d
		}
		if e < bestErr {
			bestErr = e
			best = q
			bestP = p
		}
	}

	return best, bestP
}

func expand(q [4]int, p int) [4]int {
	var e [4]int
	for c := 0; c < 4; c++ {
		e[c] = q[c]<<1 | p
	}
	return e
}

func interpolate(e0, e1, w int) int {
	return ((64-w)*e0 + w*e1 + 32) >> 6
}

func clamp255(v float64) float64 {
	return math.Max(0, math.Min(255, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DecodeBlock expands a mode 6 block into 16 row-major RGBA8 texels.
func DecodeBlock(block []byte) ([16][4]uint8, error) {
	var texels [16][4]uint8
	if len(block) < BlockBytes {
		return texels, fmt.Errorf("%w: block is %d bytes", ErrInvalidSurface, len(block))
	}
	if block[0]&0x7f != 0x40 {
		return texels, fmt.Errorf("%w: mode byte 0x%02x", ErrUnsupportedMode, block[0])
	}

	br := bitReader{data: block[:BlockBytes]}
	br.read(7)
	var q0, q1 [4]int
	for c := 0; c < 4; c++ {
		q0[c] = int(br.read(7))
		q1[c] = int(br.read(7))
	}
	e0 := expand(q0, int(br.read(1)))
	e1 := expand(q1, int(br.read(1)))

	for t := 0; t < 16; t++ {
		n := 4
		if t == 0 {
			n = 3
		}
		w := weights4[br.read(n)]
		for c := 0; c < 4; c++ {
			texels[t][c] = uint8(interpolate(e0[c], e1[c], w))
		}
	}

	return texels, nil
}

// Decode expands blocks of a width x height surface (multiples of 4) into a
// tightly packed RGBA8 buffer.
func Decode(data []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 || width%BlockDim != 0 || height%BlockDim != 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSurface, width, height)
	}
	bw := width / BlockDim
	bh := height / BlockDim
	if len(data) != bw*bh*BlockBytes {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrInvalidSurface, len(data), width, height)
	}

	pix := make([]byte, width*height*4)
	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			off := (by*bw + bx) * BlockBytes
			texels, err := DecodeBlock(data[off : off+BlockBytes])
			if err != nil {
				return nil, fmt.Errorf("block %d,%d: %w", bx, by, err)
			}
			for py := 0; py < BlockDim; py++ {
				row := (by*BlockDim+py)*width*4 + bx*BlockDim*4
				for px := 0; px < BlockDim; px++ {
					copy(pix[row+px*4:row+px*4+4], texels[py*BlockDim+px][:])
				}
			}
		}
	}

	return pix, nil
}
