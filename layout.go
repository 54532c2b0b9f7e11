// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package ktx

import (
	"fmt"

	"github.com/woozymasta/bcn"
)

const (
	// HeaderSize is the size of the fixed KTX header in bytes.
	HeaderSize = 64
	// endiannessSwapped is bcn.KTXEndianness as seen from the opposite byte order.
	endiannessSwapped = 0x01020304

	// CubeFaces is the face count of a cubemap: +X -X +Y -Y +Z -Z.
	CubeFaces = 6

	// MaxLayers caps elements x faces of a container.
	MaxLayers = 1 << 16
)

// Header is the fixed KTX 1.1 header with geometry helpers.
type Header struct {
	bcn.KTXHeader
}

// NewHeader builds the header for layers images of the given base size.
// layers counts every face of every array element.
func NewHeader(f Format, width, height, mipCount, layers int, cubemap bool) (*Header, error) {
	faces := 1
	if cubemap {
		faces = CubeFaces
	}
	if layers < 1 {
		return nil, ErrNoInputs
	}
	if layers > MaxLayers {
		return nil, fmt.Errorf("%w: %d layers exceeds %d", ErrInvalidHeader, layers, MaxLayers)
	}
	if layers%faces != 0 {
		return nil, fmt.Errorf("%w: %d layers", ErrCubemapCount, layers)
	}

	w32, err := u32FromInt(width)
	if err != nil {
		return nil, err
	}
	h32, err := u32FromInt(height)
	if err != nil {
		return nil, err
	}
	mip32, err := u32FromInt(mipCount)
	if err != nil {
		return nil, err
	}
	elements, err := u32FromInt(layers / faces)
	if err != nil {
		return nil, err
	}
	// Non-array textures must declare zero elements.
	if elements <= 1 {
		elements = 0
	}

	return &Header{KTXHeader: bcn.KTXHeader{
		Identifier:            bcn.KTXIdentifier,
		Endianness:            bcn.KTXEndianness,
		GlType:                f.GLType,
		GlTypeSize:            f.GLTypeSize,
		GlFormat:              f.GLFormat,
		GlInternalFormat:      f.GLInternalFormat,
		GlBaseInternalFormat:  f.GLBaseInternalFormat,
		PixelWidth:            w32,
		PixelHeight:           h32,
		NumberOfArrayElements: elements,
		NumberOfFaces:         uint32(faces),
		NumberOfMipmapLevels:  mip32,
	}}, nil
}

// Elements returns the number of array elements actually stored, at least 1.
func (h *Header) Elements() int {
	return max(1, int(h.NumberOfArrayElements))
}

// Faces returns the number of faces per element.
func (h *Header) Faces() int {
	return max(1, int(h.NumberOfFaces))
}

// Mips returns the number of mip levels stored, at least 1.
func (h *Header) Mips() int {
	return max(1, int(h.NumberOfMipmapLevels))
}

// Cubemap reports whether the header describes a cubemap.
func (h *Header) Cubemap() bool {
	return h.NumberOfFaces == CubeFaces
}

// singleCube reports whether faces are stored and sized individually: a
// cubemap that is not an array texture.
func (h *Header) singleCube() bool {
	return h.Cubemap() && h.NumberOfArrayElements == 0
}

// ImageRecord locates one face of one array element within a mip.
type ImageRecord struct {
	Element int
	Face    int
	Offset  int64
	Size    int
	Padding int // cube padding after this face
}

// MipRecord locates one mip level: its imageSize field, the images that
// follow it and the alignment padding after them.
type MipRecord struct {
	Level      int
	SizeOffset int64
	ImageSize  uint32
	Images     []ImageRecord
	Padding    int
}

// Layout is the ordered list of mip records after the header.
type Layout struct {
	Mips []MipRecord
	Size int64 // total file size
}

// PlanLayout computes every record of the file body. faceSizes holds the
// compressed size of a single face for each mip level.
func PlanLayout(h *Header, faceSizes []int) (*Layout, error) {
	if len(faceSizes) != h.Mips() {
		return nil, fmt.Errorf("%w: %d mip sizes for %d levels", ErrInvalidHeader, len(faceSizes), h.Mips())
	}

	elements := h.Elements()
	faces := h.Faces()
	if elements*faces > MaxLayers {
		return nil, fmt.Errorf("%w: %d elements x %d faces exceeds %d layers",
			ErrInvalidHeader, elements, faces, MaxLayers)
	}
	offset := int64(HeaderSize) + int64(h.BytesOfKeyValueData)
	layout := &Layout{Mips: make([]MipRecord, len(faceSizes))}

	for level, faceSize := range faceSizes {
		imageSize := faceSize
		if !h.singleCube() {
			imageSize = faceSize * elements * faces
		}
		size32, err := u32FromInt(imageSize)
		if err != nil {
			return nil, err
		}

		rec := MipRecord{
			Level:      level,
			SizeOffset: offset,
			ImageSize:  size32,
			Images:     make([]ImageRecord, 0, elements*faces),
		}
		offset += 4

		for element := 0; element < elements; element++ {
			for face := 0; face < faces; face++ {
				img := ImageRecord{Element: element, Face: face, Offset: offset, Size: faceSize}
				offset += int64(faceSize)
				if h.singleCube() {
					img.Padding = alignPadding(offset)
					offset += int64(img.Padding)
				}
				rec.Images = append(rec.Images, img)
			}
		}

		rec.Padding = alignPadding(offset)
		offset += int64(rec.Padding)
		layout.Mips[level] = rec
	}
	layout.Size = offset

	return layout, nil
}

// layerIndex maps an (element, face) pair to the input layer order.
func layerIndex(element, face, faces int) int {
	return element*faces + face
}
