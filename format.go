// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package ktx

import (
	"fmt"
	"strings"

	"github.com/woozymasta/bcn"
)

// OpenGL enums written to the KTX header that bcn does not define.
const (
	glCompressedRGBABPTC      = 0x8E8C
	glCompressedRGBAASTC4x4   = 0x93B0
	glCompressedRGBAASTC5x4   = 0x93B1
	glCompressedRGBAASTC5x5   = 0x93B2
	glCompressedRGBAASTC6x5   = 0x93B3
	glCompressedRGBAASTC6x6   = 0x93B4
	glCompressedRGBAASTC8x5   = 0x93B5
	glCompressedRGBAASTC8x6   = 0x93B6
	glCompressedRGBAASTC8x8   = 0x93B7
	glCompressedRGBAASTC10x5  = 0x93B8
	glCompressedRGBAASTC10x6  = 0x93B9
	glCompressedRGBAASTC10x8  = 0x93BA
	glCompressedRGBAASTC10x10 = 0x93BB
	glCompressedRGBAASTC12x10 = 0x93BC
	glCompressedRGBAASTC12x12 = 0x93BD
)

// Codec selects the compression backend family for a format.
type Codec uint8

const (
	// CodecPassThrough stores padded RGBA8 texels unchanged.
	CodecPassThrough Codec = iota
	// CodecFixed uses one encoder entry point with no tuning.
	CodecFixed
	// CodecAlphaAware shares one encoder between opaque and alpha variants
	// that differ only in the declared GL format.
	CodecAlphaAware
	// CodecProfile picks an encoder profile from the source channel count.
	CodecProfile
	// CodecBlockSize parameterizes the encoder by block footprint.
	CodecBlockSize
)

// String returns the codec family name.
func (c Codec) String() string {
	switch c {
	case CodecPassThrough:
		return "pass-through"
	case CodecFixed:
		return "fixed"
	case CodecAlphaAware:
		return "alpha-aware"
	case CodecProfile:
		return "profile"
	case CodecBlockSize:
		return "block-size"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// Format describes an output texel format: block geometry and the GL enums
// recorded in the KTX header.
type Format struct {
	Name  string
	Codec Codec

	BlockWidth    int
	BlockHeight   int
	BytesPerBlock int

	GLType               uint32
	GLTypeSize           uint32
	GLFormat             uint32
	GLInternalFormat     uint32
	GLBaseInternalFormat uint32
}

func compressedFormat(name string, codec Codec, bw, bh, bytes int, internal, base uint32) Format {
	return Format{
		Name:                 name,
		Codec:                codec,
		BlockWidth:           bw,
		BlockHeight:          bh,
		BytesPerBlock:        bytes,
		GLTypeSize:           1,
		GLInternalFormat:     internal,
		GLBaseInternalFormat: base,
	}
}

func astcFormat(bw, bh int, internal uint32) Format {
	return compressedFormat(fmt.Sprintf("ASTC%dx%d", bw, bh), CodecBlockSize, bw, bh, 16, internal, bcn.KTXGLRGBA)
}

var formats = []Format{
	{
		Name:                 "RGBA",
		Codec:                CodecPassThrough,
		BlockWidth:           1,
		BlockHeight:          1,
		BytesPerBlock:        4,
		GLType:               bcn.KTXGLUnsignedByte,
		GLTypeSize:           1,
		GLFormat:             bcn.KTXGLRGBA,
		GLInternalFormat:     bcn.KTXGLRGBA8,
		GLBaseInternalFormat: bcn.KTXGLRGBA,
	},
	compressedFormat("BC1", CodecAlphaAware, 4, 4, 8, bcn.KTXGLCompressedRGBS3TCDXT1, bcn.KTXGLRGB),
	compressedFormat("BC1a", CodecAlphaAware, 4, 4, 8, bcn.KTXGLCompressedRGBAS3TCDXT1, bcn.KTXGLRGBA),
	compressedFormat("BC3", CodecFixed, 4, 4, 16, bcn.KTXGLCompressedRGBAS3TCDXT5, bcn.KTXGLRGBA),
	compressedFormat("BC7", CodecProfile, 4, 4, 16, glCompressedRGBABPTC, bcn.KTXGLRGBA),
	astcFormat(4, 4, glCompressedRGBAASTC4x4),
	astcFormat(5, 4, glCompressedRGBAASTC5x4),
	astcFormat(5, 5, glCompressedRGBAASTC5x5),
	astcFormat(6, 5, glCompressedRGBAASTC6x5),
	astcFormat(6, 6, glCompressedRGBAASTC6x6),
	astcFormat(8, 5, glCompressedRGBAASTC8x5),
	astcFormat(8, 6, glCompressedRGBAASTC8x6),
	astcFormat(8, 8, glCompressedRGBAASTC8x8),
	astcFormat(10, 5, glCompressedRGBAASTC10x5),
	astcFormat(10, 6, glCompressedRGBAASTC10x6),
	astcFormat(10, 8, glCompressedRGBAASTC10x8),
	astcFormat(10, 10, glCompressedRGBAASTC10x10),
	astcFormat(12, 10, glCompressedRGBAASTC12x10),
	astcFormat(12, 12, glCompressedRGBAASTC12x12),
}

// Lookup returns the format with the given name. Matching is exact and
// case-sensitive.
func Lookup(name string) (Format, error) {
	for _, f := range formats {
		if f.Name == name {
			return f, nil
		}
	}

	return Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Formats returns all supported formats in table order.
func Formats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

// FormatNames returns the supported format names joined by sep.
func FormatNames(sep string) string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.Name
	}

	return strings.Join(names, sep)
}

// formatByInternal finds a format by its glInternalFormat enum.
func formatByInternal(internal uint32) (Format, bool) {
	for _, f := range formats {
		if f.GLInternalFormat == internal {
			return f, true
		}
	}

	return Format{}, false
}

// Compressed reports whether the format uses block compression.
func (f Format) Compressed() bool {
	return f.Codec != CodecPassThrough
}

// PaddedSize rounds width and height up to the block footprint.
func (f Format) PaddedSize(width, height int) (int, int) {
	return roundUp(width, f.BlockWidth), roundUp(height, f.BlockHeight)
}

// CompressedSize returns the payload length of one image of the given
// logical size.
func (f Format) CompressedSize(width, height int) int {
	pw, ph := f.PaddedSize(width, height)
	return (pw / f.BlockWidth) * (ph / f.BlockHeight) * f.BytesPerBlock
}

// String returns the format name.
func (f Format) String() string {
	return f.Name
}
