// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package ktx

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/arm-software/astc-encoder/astc"
	"github.com/woozymasta/bcn"

	"github.com/woozymasta/ktx/internal/bc7"
)

// ASTC search presets, matching the astcenc quality scale.
const (
	ASTCQualityFastest  float32 = 0
	ASTCQualityFast     float32 = 10
	ASTCQualityMedium   float32 = 60
	ASTCQualityThorough float32 = 98
)

// Compressor turns padded RGBA8 mip levels into block-compressed payloads.
type Compressor struct {
	// EncodeOptions are passed to the BCn encoder (e.g. QualityLevel).
	EncodeOptions *bcn.EncodeOptions
	// ASTCQuality is the astcenc search preset (0..100).
	ASTCQuality float32
}

// DefaultCompressor uses library defaults for BCn and the fast ASTC preset.
var DefaultCompressor = &Compressor{ASTCQuality: ASTCQualityFast}

// settings appends every encoder setting that changes the output for f, with
// library defaults resolved, so equal settings give equal bytes.
func (c *Compressor) settings(dst []byte, f Format) []byte {
	switch f.Codec {
	case CodecFixed, CodecAlphaAware:
		var o bcn.EncodeOptions
		if c.EncodeOptions != nil {
			o = *c.EncodeOptions
		}
		quality := o.QualityLevel
		if quality == 0 {
			quality = bcn.QualityLevelBalanced
		}
		threshold := o.AlphaThreshold
		if threshold == 0 {
			threshold = 128
		}
		dst = binary.LittleEndian.AppendUint32(dst, uint32(min(max(quality, 1), 10))) // #nosec G115 -- clamped
		dst = append(dst, threshold)

		if w := o.RGBWeights; w != nil {
			dst = append(dst, 1)
			for _, v := range []float64{w.R, w.G, w.B} {
				dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
			}
		} else {
			dst = append(dst, 0)
		}

		if r := o.Refinement; r != nil {
			dst = append(dst, 1)
			dst = appendOptBool(dst, r.UsePCA)
			for _, p := range []*int{r.ColorTries, r.AlphaTries, r.ColorStep} {
				dst = appendOptInt(dst, p)
			}
		} else {
			dst = append(dst, 0)
		}
	case CodecBlockSize:
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(c.ASTCQuality))
	}

	return dst
}

func appendOptBool(dst []byte, p *bool) []byte {
	switch {
	case p == nil:
		return append(dst, 0)
	case *p:
		return append(dst, 2)
	default:
		return append(dst, 1)
	}
}

func appendOptInt(dst []byte, p *int) []byte {
	if p == nil {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	return binary.LittleEndian.AppendUint64(dst, uint64(*p)) // #nosec G115 -- hashed, not interpreted
}

// hasAlpha reports whether a source with the given original channel count
// should be compressed with an alpha-aware profile.
func hasAlpha(srcChannels int) bool {
	return srcChannels == 2 || srcChannels == 4
}

// Compress encodes one padded level into f. srcChannels is the channel count
// of the decoded source before expansion to RGBA and selects quality profiles.
// The returned length always equals f.CompressedSize(level.Width, level.Height).
func (c *Compressor) Compress(level *MipLevel, f Format, srcChannels int) ([]byte, error) {
	if level.PaddedWidth%f.BlockWidth != 0 || level.PaddedHeight%f.BlockHeight != 0 {
		return nil, fmt.Errorf("%w: %dx%d not padded to %dx%d blocks",
			ErrCompressedSizeMismatch, level.PaddedWidth, level.PaddedHeight, f.BlockWidth, f.BlockHeight)
	}
	want := f.CompressedSize(level.Width, level.Height)

	var (
		data []byte
		err  error
	)
	switch f.Codec {
	case CodecPassThrough:
		data = make([]byte, len(level.Pix))
		copy(data, level.Pix)
	case CodecFixed:
		data, err = c.compressBCn(level, bcn.FormatDXT5)
	case CodecAlphaAware:
		// BC1 and BC1a share the encoder; only the header enums differ.
		data, err = c.compressBCn(level, bcn.FormatDXT1)
	case CodecProfile:
		profile := bc7.ProfileOpaque
		if hasAlpha(srcChannels) {
			profile = bc7.ProfileAlpha
		}
		data, err = bc7.Encode(level.Pix, level.PaddedWidth, level.PaddedHeight, level.Stride(), profile)
	case CodecBlockSize:
		data, err = c.compressASTC(level, f, hasAlpha(srcChannels))
	default:
		return nil, fmt.Errorf("%w: %s has codec %s", ErrUnsupportedFormat, f.Name, f.Codec)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompress, f.Name, err)
	}

	if len(data) != want {
		return nil, fmt.Errorf("%w: %s %dx%d: expected %d, got %d",
			ErrCompressedSizeMismatch, f.Name, level.PaddedWidth, level.PaddedHeight, want, len(data))
	}

	return data, nil
}

func (c *Compressor) compressBCn(level *MipLevel, format bcn.Format) ([]byte, error) {
	data, _, _, err := bcn.EncodeImageWithOptions(level.surface(), format, c.EncodeOptions)
	if err != nil {
		return nil, err
	}

	return data, nil
}

func (c *Compressor) compressASTC(level *MipLevel, f Format, alpha bool) ([]byte, error) {
	var (
		flags   astc.Flags
		swizzle = astc.Swizzle{R: astc.SwzR, G: astc.SwzG, B: astc.SwzB, A: astc.Swz1}
	)
	if alpha {
		flags = astc.FlagUseAlphaWeight
		swizzle = astc.SwizzleRGBA
	}

	cfg, err := astc.ConfigInit(astc.ProfileLDR, f.BlockWidth, f.BlockHeight, 1, c.ASTCQuality, flags)
	if err != nil {
		return nil, err
	}
	ctx, err := astc.ContextAlloc(&cfg, 1)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ctx.Close() }()

	img := &astc.Image{
		DimX:     level.PaddedWidth,
		DimY:     level.PaddedHeight,
		DimZ:     1,
		DataType: astc.TypeU8,
		DataU8:   level.Pix,
	}
	out := make([]byte, f.CompressedSize(level.Width, level.Height))
	if err := ctx.CompressImage(img, swizzle, out, 0); err != nil {
		return nil, err
	}

	return out, nil
}
