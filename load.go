// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package ktx

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	// Extra decoders beyond the jpeg/png/gif/bmp/tiff set imaging registers.
	_ "golang.org/x/image/webp"
)

// Source is a decoded input image expanded to tightly packed RGBA8.
type Source struct {
	Path     string
	Width    int
	Height   int
	Channels int // channel count of the decoded file before RGBA expansion
	Pix      []byte
}

// LoadImage opens and decodes one image file.
func LoadImage(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrOpenImage, path, err)
	}
	defer func() { _ = f.Close() }()

	src, err := DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	src.Path = path

	return src, nil
}

// DecodeImage decodes an image stream into a Source.
func DecodeImage(r io.Reader) (*Source, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeImage, err)
	}

	return SourceFromImage(img)
}

// SourceFromImage converts an in-memory image into a Source.
func SourceFromImage(img image.Image) (*Source, error) {
	b := img.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, b.Dx(), b.Dy())
	}

	nrgba := imaging.Clone(img)
	return &Source{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Channels: channelCount(img),
		Pix:      nrgba.Pix,
	}, nil
}

// channelCount reports the channel count of the decoded file layout, the
// way an 8-bit decoder returns it: 1 for gray, 3 for color without an alpha
// channel, 4 for color with one. Alpha values themselves are not inspected
// for file types; an RGBA PNG that is fully opaque still has 4 channels.
func channelCount(img image.Image) int {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.NRGBA, *image.NRGBA64, *image.NYCbCrA:
		return 4
	case *image.YCbCr, *image.CMYK:
		return 3
	case *image.Paletted:
		// tRNS entries decode as translucent palette colors.
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return 4
			}
		}
		return 3
	}

	// Premultiplied and other in-memory images carry no layout hint.
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return 3
	}

	return 4
}

// LoadLayers decodes every input in order. All inputs must share the
// dimensions of the first one. With cubemap set, a non-square first input
// fails before the rest are loaded.
func LoadLayers(paths []string, cubemap bool, log logrus.FieldLogger) ([]*Source, error) {
	if len(paths) == 0 {
		return nil, ErrNoInputs
	}
	if log == nil {
		log = discardLogger()
	}

	sources := make([]*Source, 0, len(paths))
	for i, path := range paths {
		src, err := LoadImage(path)
		if err != nil {
			return nil, err
		}
		if i == 0 && cubemap && src.Width != src.Height {
			return nil, fmt.Errorf("%w: %q is %dx%d", ErrCubemapNotSquare, path, src.Width, src.Height)
		}
		if i > 0 && (src.Width != sources[0].Width || src.Height != sources[0].Height) {
			return nil, fmt.Errorf("%w: %q is %dx%d, %q is %dx%d", ErrDimensionMismatch,
				sources[0].Path, sources[0].Width, sources[0].Height, path, src.Width, src.Height)
		}

		log.WithFields(logrus.Fields{
			"path":     path,
			"width":    src.Width,
			"height":   src.Height,
			"channels": src.Channels,
		}).Info("loaded")

		sources = append(sources, src)
	}

	return sources, nil
}

// resizeSources resamples every source to width x height in place.
func resizeSources(sources []*Source, width, height int, resizer Resizer) error {
	for _, src := range sources {
		if src.Width == width && src.Height == height {
			continue
		}
		pix, err := resizer.Resize(src.Pix, src.Width, src.Height, src.Width*channels, width, height)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrResize, src.Path, err)
		}
		src.Pix = pix
		src.Width = width
		src.Height = height
	}

	return nil
}
