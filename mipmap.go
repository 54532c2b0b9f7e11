// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package ktx

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// channels is the texel size of every working buffer; all backends take RGBA8.
const channels = 4

// MipLevel is one padded RGBA8 mip level. Texels occupy the top-left
// Width x Height region; the remaining padding is zero.
type MipLevel struct {
	Width        int
	Height       int
	PaddedWidth  int
	PaddedHeight int
	Pix          []byte
}

// Stride returns the byte length of one padded row.
func (m *MipLevel) Stride() int {
	return m.PaddedWidth * channels
}

// surface returns the whole padded level as an NRGBA view sharing Pix.
func (m *MipLevel) surface() *image.NRGBA {
	return &image.NRGBA{
		Pix:    m.Pix,
		Stride: m.Stride(),
		Rect:   image.Rect(0, 0, m.PaddedWidth, m.PaddedHeight),
	}
}

// MipCount returns the length of a full mip chain for the given base size:
// one plus the number of floor-halvings needed to bring both sides to 1.
func MipCount(width, height int) int {
	count := 1
	for width > 1 || height > 1 {
		count++
		width = max(1, width/2)
		height = max(1, height/2)
	}

	return count
}

// mipDimension calculates the dimension of a mipmap level.
func mipDimension(base, level int) int {
	result := base >> level
	if result < 1 {
		return 1
	}

	return result
}

// newMipLevel allocates a zeroed level padded to the format block size.
func newMipLevel(width, height int, f Format) MipLevel {
	pw, ph := f.PaddedSize(width, height)
	return MipLevel{
		Width:        width,
		Height:       height,
		PaddedWidth:  pw,
		PaddedHeight: ph,
		Pix:          make([]byte, pw*ph*channels),
	}
}

// place copies a tightly packed or strided RGBA8 image into the top-left
// corner of the level.
func (m *MipLevel) place(src []byte, srcStride int) {
	rowBytes := m.Width * channels
	dstStride := m.Stride()
	for y := 0; y < m.Height; y++ {
		copy(m.Pix[y*dstStride:y*dstStride+rowBytes], src[y*srcStride:y*srcStride+rowBytes])
	}
}

// Resizer resamples the width x height region of src (rows srcStride bytes
// apart) into a tightly packed dstWidth x dstHeight RGBA8 buffer.
type Resizer interface {
	Resize(src []byte, width, height, srcStride, dstWidth, dstHeight int) ([]byte, error)
}

// ImagingResizer resamples with a fixed imaging filter.
type ImagingResizer struct {
	Filter imaging.ResampleFilter
}

// Box is the resizer used for mip halving.
var Box Resizer = ImagingResizer{Filter: imaging.Box}

// Triangle is the resizer used for base-level resizing.
var Triangle Resizer = ImagingResizer{Filter: imaging.Linear}

// Resize implements Resizer.
func (r ImagingResizer) Resize(src []byte, width, height, srcStride, dstWidth, dstHeight int) ([]byte, error) {
	if width < 1 || height < 1 || dstWidth < 1 || dstHeight < 1 {
		return nil, fmt.Errorf("%w: %dx%d -> %dx%d", ErrInvalidDimensions, width, height, dstWidth, dstHeight)
	}
	if srcStride < width*channels || len(src) < (height-1)*srcStride+width*channels {
		return nil, fmt.Errorf("%w: source buffer too small for %dx%d stride %d", ErrResize, width, height, srcStride)
	}

	in := &image.NRGBA{Pix: src, Stride: srcStride, Rect: image.Rect(0, 0, width, height)}
	out := imaging.Resize(in, dstWidth, dstHeight, r.Filter)
	if out.Stride == dstWidth*channels {
		return out.Pix[:dstWidth*dstHeight*channels], nil
	}

	packed := make([]byte, dstWidth*dstHeight*channels)
	for y := 0; y < dstHeight; y++ {
		copy(packed[y*dstWidth*channels:(y+1)*dstWidth*channels], out.Pix[y*out.Stride:])
	}

	return packed, nil
}

// buildMipChain builds count padded levels from a tightly packed RGBA8
// source. Level 0 is a padded copy; each following level halves the
// previous one's logical region.
func buildMipChain(src []byte, width, height, count int, f Format, resizer Resizer) ([]MipLevel, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if len(src) != width*height*channels {
		return nil, fmt.Errorf("%w: source is %d bytes, want %d", ErrInvalidDimensions, len(src), width*height*channels)
	}
	if count < 1 {
		count = 1
	}

	mips := make([]MipLevel, count)
	mips[0] = newMipLevel(width, height, f)
	mips[0].place(src, width*channels)

	for i := 1; i < count; i++ {
		prev := &mips[i-1]
		w := max(1, prev.Width/2)
		h := max(1, prev.Height/2)

		resized, err := resizer.Resize(prev.Pix, prev.Width, prev.Height, prev.Stride(), w, h)
		if err != nil {
			return nil, fmt.Errorf("%w: mipmap %d: %v", ErrResize, i, err)
		}

		mips[i] = newMipLevel(w, h, f)
		mips[i].place(resized, w*channels)
	}

	return mips, nil
}
