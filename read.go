// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package ktx

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/arm-software/astc-encoder/astc"
	"github.com/disintegration/imaging"
	"github.com/woozymasta/bcn"

	"github.com/woozymasta/ktx/internal/bc7"
)

// ReadOptions configures KTX decoding.
type ReadOptions struct {
	// DecodeOptions are passed to the BCn decoder (e.g. Workers).
	DecodeOptions *bcn.DecodeOptions
	// Layer selects the image to decode: element*faces + face.
	Layer int
	// Mip selects the mip level to decode.
	Mip int
}

// Container is a parsed KTX file with payloads split per image.
type Container struct {
	Header *Header
	Format Format
	Layout *Layout
	// ByteOrder is the order the file was written in.
	ByteOrder binary.ByteOrder

	images [][][]byte // [mip][layer]
}

// ReadHeader reads and validates the fixed header. Files written with the
// opposite byte order are accepted and returned with native field values.
func ReadHeader(r io.Reader) (*Header, binary.ByteOrder, error) {
	var raw [HeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrReadHeader, err)
	}
	if !bytes.Equal(raw[:len(bcn.KTXIdentifier)], bcn.KTXIdentifier[:]) {
		return nil, nil, fmt.Errorf("%w: % x", ErrInvalidMagic, raw[:len(bcn.KTXIdentifier)])
	}

	h := &Header{}
	var order binary.ByteOrder
	switch marker := binary.LittleEndian.Uint32(raw[12:16]); marker {
	case bcn.KTXEndianness:
		order = binary.LittleEndian
		kh, err := bcn.ReadKTXHeader(bytes.NewReader(raw[:]))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
		}
		h.KTXHeader = *kh
	case endiannessSwapped:
		// bcn reads little-endian only.
		order = binary.BigEndian
		if err := binary.Read(bytes.NewReader(raw[:]), order, &h.KTXHeader); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrReadHeader, err)
		}
		h.Endianness = bcn.KTXEndianness
	default:
		return nil, nil, fmt.Errorf("%w: 0x%08x", ErrInvalidEndianness, marker)
	}

	if err := validateHeader(h); err != nil {
		return nil, nil, err
	}

	return h, order, nil
}

func validateHeader(h *Header) error {
	switch {
	case h.PixelWidth == 0 || h.PixelHeight == 0:
		return fmt.Errorf("%w: %dx%d texels", ErrInvalidHeader, h.PixelWidth, h.PixelHeight)
	case h.PixelDepth != 0:
		return fmt.Errorf("%w: 3D textures are not supported (depth %d)", ErrInvalidHeader, h.PixelDepth)
	case h.NumberOfFaces != 1 && h.NumberOfFaces != CubeFaces:
		return fmt.Errorf("%w: %d faces", ErrInvalidHeader, h.NumberOfFaces)
	case h.Cubemap() && h.PixelWidth != h.PixelHeight:
		return fmt.Errorf("%w: %dx%d", ErrCubemapNotSquare, h.PixelWidth, h.PixelHeight)
	case uint64(h.Elements())*uint64(h.Faces()) > MaxLayers:
		return fmt.Errorf("%w: %d elements x %d faces exceeds %d layers",
			ErrInvalidHeader, h.NumberOfArrayElements, h.NumberOfFaces, MaxLayers)
	}
	if full := MipCount(int(h.PixelWidth), int(h.PixelHeight)); h.Mips() > full {
		return fmt.Errorf("%w: %d mipmaps for %dx%d", ErrInvalidHeader, h.Mips(), h.PixelWidth, h.PixelHeight)
	}

	return nil
}

// ReadConfig reads the base dimensions of a KTX file without reading payloads.
func ReadConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, fmt.Errorf("%w: %q: %v", ErrOpenFile, path, err)
	}
	defer func() { _ = f.Close() }()

	header, _, err := ReadHeader(f)
	if err != nil {
		return image.Config{}, err
	}

	return image.Config{
		Width:      int(header.PixelWidth),
		Height:     int(header.PixelHeight),
		ColorModel: color.NRGBAModel,
	}, nil
}

// Open reads a whole KTX file.
func Open(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrOpenFile, path, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrOpenFile, path, err)
	}

	return decode(bufio.NewReader(f), st.Size())
}

// Decode parses a KTX stream. Every imageSize field is checked against the
// geometry implied by the header. Readers with a Len method, such as
// bytes.Reader and bytes.Buffer, are checked against the planned file size
// before any payload is read.
func Decode(r io.Reader) (*Container, error) {
	size := int64(-1)
	if l, ok := r.(interface{ Len() int }); ok {
		size = int64(l.Len())
	}

	return decode(r, size)
}

// decode parses a KTX stream of size bytes; a negative size is unknown.
func decode(r io.Reader, size int64) (*Container, error) {
	header, order, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	f, ok := formatByInternal(header.GlInternalFormat)
	if !ok {
		return nil, fmt.Errorf("%w: glInternalFormat 0x%04x", ErrUnsupportedFormat, header.GlInternalFormat)
	}

	if _, err := io.CopyN(io.Discard, r, int64(header.BytesOfKeyValueData)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSkipKeyValueData, err)
	}

	sizes := make([]int, header.Mips())
	for i := range sizes {
		sizes[i] = f.CompressedSize(mipDimension(int(header.PixelWidth), i), mipDimension(int(header.PixelHeight), i))
	}
	layout, err := PlanLayout(header, sizes)
	if err != nil {
		return nil, err
	}
	// The final mip padding may be missing.
	if size >= 0 && layout.Size-int64(layout.Mips[len(layout.Mips)-1].Padding) > size {
		return nil, fmt.Errorf("%w: header describes %d bytes, input has %d", ErrTruncated, layout.Size, size)
	}

	c := &Container{
		Header:    header,
		Format:    f,
		Layout:    layout,
		ByteOrder: order,
		images:    make([][][]byte, len(layout.Mips)),
	}
	faces := header.Faces()

	for mi, mip := range layout.Mips {
		var imageSize uint32
		if err := binary.Read(r, order, &imageSize); err != nil {
			return nil, fmt.Errorf("%w: mipmap %d: %v", ErrReadImageSize, mi, err)
		}
		if imageSize != mip.ImageSize {
			return nil, fmt.Errorf("%w: mipmap %d: expected %d, got %d", ErrImageSizeMismatch, mi, mip.ImageSize, imageSize)
		}

		c.images[mi] = make([][]byte, len(mip.Images))
		for _, img := range mip.Images {
			data, err := readPayload(r, img.Size)
			if err != nil {
				return nil, fmt.Errorf("%w: mipmap %d element %d face %d: %v",
					ErrReadPayload, mi, img.Element, img.Face, err)
			}
			c.images[mi][layerIndex(img.Element, img.Face, faces)] = data

			if err := skipPadding(r, img.Padding, false); err != nil {
				return nil, fmt.Errorf("%w: mipmap %d face %d: %v", ErrReadPayload, mi, img.Face, err)
			}
		}

		// Some writers drop the padding after the final level.
		if err := skipPadding(r, mip.Padding, mi == len(layout.Mips)-1); err != nil {
			return nil, fmt.Errorf("%w: mipmap %d: %v", ErrReadPayload, mi, err)
		}
	}

	return c, nil
}

// readPayload reads exactly n bytes, growing the buffer as data arrives
// instead of trusting n up front.
func readPayload(r io.Reader, n int) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: got %d of %d bytes", io.ErrUnexpectedEOF, len(data), n)
	}

	return data, nil
}

func skipPadding(r io.Reader, n int, allowEOF bool) error {
	if n == 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, int64(n))
	if err != nil && allowEOF && errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

// Layers returns the number of images per mip level.
func (c *Container) Layers() int {
	return c.Header.Elements() * c.Header.Faces()
}

// Image returns the raw payload of one image.
func (c *Container) Image(mip, layer int) ([]byte, error) {
	if mip < 0 || mip >= len(c.images) {
		return nil, fmt.Errorf("%w: mipmap %d of %d", ErrLayerOutOfRange, mip, len(c.images))
	}
	if layer < 0 || layer >= len(c.images[mip]) {
		return nil, fmt.Errorf("%w: layer %d of %d", ErrLayerOutOfRange, layer, len(c.images[mip]))
	}

	return c.images[mip][layer], nil
}

// DecodeImage decodes one image to NRGBA at its logical size.
func (c *Container) DecodeImage(mip, layer int, opts *ReadOptions) (*image.NRGBA, error) {
	data, err := c.Image(mip, layer)
	if err != nil {
		return nil, err
	}

	w := mipDimension(int(c.Header.PixelWidth), mip)
	h := mipDimension(int(c.Header.PixelHeight), mip)
	pw, ph := c.Format.PaddedSize(w, h)

	var decoded image.Image
	switch c.Format.Codec {
	case CodecPassThrough:
		pix := make([]byte, len(data))
		copy(pix, data)
		decoded = &image.NRGBA{Pix: pix, Stride: pw * channels, Rect: image.Rect(0, 0, pw, ph)}
	case CodecFixed, CodecAlphaAware:
		format := bcn.FormatDXT1
		if c.Format.Codec == CodecFixed {
			format = bcn.FormatDXT5
		}
		var decOpts *bcn.DecodeOptions
		if opts != nil {
			decOpts = opts.DecodeOptions
		}
		decoded, err = bcn.DecodeImageWithOptions(data, pw, ph, format, decOpts)
	case CodecProfile:
		var pix []byte
		pix, err = bc7.Decode(data, pw, ph)
		decoded = &image.NRGBA{Pix: pix, Stride: pw * channels, Rect: image.Rect(0, 0, pw, ph)}
	case CodecBlockSize:
		decoded, err = decodeASTC(data, c.Format, w, h)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, c.Format.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s mipmap %d layer %d: %v", ErrDecodeBlocks, c.Format.Name, mip, layer, err)
	}

	return imaging.Crop(decoded, image.Rect(0, 0, w, h)), nil
}

// decodeASTC wraps raw blocks in an .astc file header for the decoder.
func decodeASTC(data []byte, f Format, width, height int) (image.Image, error) {
	w32, err := u32FromInt(width)
	if err != nil {
		return nil, err
	}
	h32, err := u32FromInt(height)
	if err != nil {
		return nil, err
	}

	hdr, err := astc.MarshalHeader(astc.Header{
		BlockX: uint8(f.BlockWidth),  // #nosec G115 -- block sizes are at most 12
		BlockY: uint8(f.BlockHeight), // #nosec G115
		BlockZ: 1,
		SizeX:  w32,
		SizeY:  h32,
		SizeZ:  1,
	})
	if err != nil {
		return nil, err
	}

	file := make([]byte, 0, astc.HeaderSize+len(data))
	file = append(file, hdr[:]...)
	file = append(file, data...)

	pix, dw, dh, err := astc.DecodeRGBA8(file)
	if err != nil {
		return nil, err
	}

	return &image.NRGBA{Pix: pix, Stride: dw * channels, Rect: image.Rect(0, 0, dw, dh)}, nil
}

// Read decodes the base level of the first image of a KTX file.
func Read(path string) (image.Image, error) {
	return ReadWithOptions(path, nil)
}

// ReadWithOptions decodes the image selected by opts. Nil opts decodes
// mip 0 of layer 0.
func ReadWithOptions(path string, opts *ReadOptions) (image.Image, error) {
	c, err := Open(path)
	if err != nil {
		return nil, err
	}

	mip, layer := 0, 0
	if opts != nil {
		mip, layer = opts.Mip, opts.Layer
	}

	return c.DecodeImage(mip, layer, opts)
}
