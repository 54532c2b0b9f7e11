// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package ktx

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/woozymasta/bcn"
)

// Layer is one image slot of the container: one face of one array element.
type Layer struct {
	Source     string
	Channels   int
	Mips       []MipLevel // padded RGBA8 input levels
	Compressed [][]byte   // encoded payload per level
}

// TextureSet is everything written to one container.
type TextureSet struct {
	Format   Format
	Width    int
	Height   int
	MipCount int
	Cubemap  bool
	Elements int // array elements; layers per element is Faces()
	Layers   []*Layer
}

// Faces returns 6 for cubemaps, 1 otherwise.
func (ts *TextureSet) Faces() int {
	if ts.Cubemap {
		return CubeFaces
	}
	return 1
}

// Header builds the KTX header for the set.
func (ts *TextureSet) Header() (*Header, error) {
	return NewHeader(ts.Format, ts.Width, ts.Height, ts.MipCount, len(ts.Layers), ts.Cubemap)
}

// faceSizes returns the per-face payload size of every mip level.
func (ts *TextureSet) faceSizes() []int {
	sizes := make([]int, ts.MipCount)
	for i := range sizes {
		sizes[i] = ts.Format.CompressedSize(mipDimension(ts.Width, i), mipDimension(ts.Height, i))
	}
	return sizes
}

// validate checks the set against its own geometry before any byte is written.
func (ts *TextureSet) validate() error {
	if len(ts.Layers) != ts.Elements*ts.Faces() {
		return fmt.Errorf("%w: %d layers for %d elements x %d faces",
			ErrCubemapCount, len(ts.Layers), ts.Elements, ts.Faces())
	}

	sizes := ts.faceSizes()
	for li, layer := range ts.Layers {
		if len(layer.Compressed) != ts.MipCount {
			return fmt.Errorf("%w: layer %d has %d mipmaps, want %d",
				ErrCompressedSizeMismatch, li, len(layer.Compressed), ts.MipCount)
		}
		for mip, data := range layer.Compressed {
			if len(data) != sizes[mip] {
				return fmt.Errorf("%w: layer %d mipmap %d: expected %d, got %d",
					ErrCompressedSizeMismatch, li, mip, sizes[mip], len(data))
			}
		}
	}

	return nil
}

// Layout plans the container body for the set.
func (ts *TextureSet) Layout() (*Header, *Layout, error) {
	header, err := ts.Header()
	if err != nil {
		return nil, nil, err
	}
	layout, err := PlanLayout(header, ts.faceSizes())
	if err != nil {
		return nil, nil, err
	}

	return header, layout, nil
}

// WriteTo serializes the container. It implements io.WriterTo.
func (ts *TextureSet) WriteTo(w io.Writer) (int64, error) {
	if err := ts.validate(); err != nil {
		return 0, err
	}
	header, layout, err := ts.Layout()
	if err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}
	if err := writeContainer(cw, header, layout, ts); err != nil {
		return cw.n, err
	}

	return cw.n, nil
}

// WriteFile creates or truncates path and writes the container to it.
// A failed write leaves a truncated file behind.
func (ts *TextureSet) WriteFile(path string) (int64, error) {
	if err := ts.validate(); err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrCreateFile, path, err)
	}
	defer func() { _ = f.Close() }()

	bw := bufio.NewWriter(f)
	n, err := ts.WriteTo(bw)
	if err != nil {
		return n, err
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("%w: %q: %v", ErrFlush, path, err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("%w: %q: %v", ErrFlush, path, err)
	}

	return n, nil
}

var zeroPadding [rowAlignment]byte

func writeContainer(w io.Writer, header *Header, layout *Layout, ts *TextureSet) error {
	if err := bcn.WriteKTXHeader(w, &header.KTXHeader); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteHeader, err)
	}

	faces := header.Faces()
	for _, mip := range layout.Mips {
		if err := binary.Write(w, binary.LittleEndian, mip.ImageSize); err != nil {
			return fmt.Errorf("%w: mipmap %d: %v", ErrWriteImageSize, mip.Level, err)
		}

		for _, img := range mip.Images {
			layer := ts.Layers[layerIndex(img.Element, img.Face, faces)]
			if _, err := w.Write(layer.Compressed[mip.Level]); err != nil {
				return fmt.Errorf("%w: mipmap %d element %d face %d: %v",
					ErrWritePayload, mip.Level, img.Element, img.Face, err)
			}
			if img.Padding > 0 {
				if _, err := w.Write(zeroPadding[:img.Padding]); err != nil {
					return fmt.Errorf("%w: mipmap %d face %d: %v", ErrWritePadding, mip.Level, img.Face, err)
				}
			}
		}

		if mip.Padding > 0 {
			if _, err := w.Write(zeroPadding[:mip.Padding]); err != nil {
				return fmt.Errorf("%w: mipmap %d: %v", ErrWritePadding, mip.Level, err)
			}
		}
	}

	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
