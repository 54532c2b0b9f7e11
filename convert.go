// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package ktx

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/woozymasta/bcn"
)

// Options configures a conversion.
type Options struct {
	// Format is the output format name, see FormatNames.
	Format string
	// Mipmaps generates the full mip chain.
	Mipmaps bool
	// Cubemap groups every six inputs into one cube: +X -X +Y -Y +Z -Z.
	Cubemap bool
	// ResizeWidth and ResizeHeight resample every input before mip
	// generation. Zero for both disables resizing.
	ResizeWidth  int
	ResizeHeight int
	// MaxMipLevels caps the chain length. 0 means no cap.
	MaxMipLevels int
	// Workers bounds concurrent mip and compression jobs. 0 uses NumCPU.
	Workers int
	// CacheDir enables the on-disk block cache.
	CacheDir string
	// EncodeOptions are passed to the BCn encoder (e.g. QualityLevel).
	EncodeOptions *bcn.EncodeOptions
	// ASTCQuality is the astcenc search preset; 0 is the fastest search.
	ASTCQuality float32
	// Logger receives progress; nil is silent.
	Logger logrus.FieldLogger
}

// Result summarizes a written container.
type Result struct {
	Output    string
	Format    Format
	Width     int
	Height    int
	MipCount  int
	Elements  int
	Faces     int
	Bytes     int64
	CacheHits int
}

func (o *Options) resize() bool {
	return o.ResizeWidth != 0 || o.ResizeHeight != 0
}

func (o *Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return discardLogger()
	}
	return o.Logger
}

func (o *Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// validate checks everything that can be checked without touching the
// filesystem and resolves the output format.
func (o *Options) validate(layers int) (Format, error) {
	if layers == 0 {
		return Format{}, ErrNoInputs
	}
	if o.Cubemap && layers%CubeFaces != 0 {
		return Format{}, fmt.Errorf("%w: got %d images", ErrCubemapCount, layers)
	}
	if o.resize() && (o.ResizeWidth < 1 || o.ResizeHeight < 1) {
		return Format{}, fmt.Errorf("%w: %dx%d", ErrInvalidResize, o.ResizeWidth, o.ResizeHeight)
	}

	return Lookup(o.Format)
}

// Convert loads inputs, builds the texture set and writes it to output.
// Nothing is created on disk unless every input loads and compresses.
func Convert(output string, inputs []string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	if output == "" {
		return nil, ErrMissingOutput
	}
	if _, err := opts.validate(len(inputs)); err != nil {
		return nil, err
	}

	sources, err := LoadLayers(inputs, opts.Cubemap, opts.logger())
	if err != nil {
		return nil, err
	}

	ts, hits, err := build(sources, opts)
	if err != nil {
		return nil, err
	}

	n, err := ts.WriteFile(output)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Output:    output,
		Format:    ts.Format,
		Width:     ts.Width,
		Height:    ts.Height,
		MipCount:  ts.MipCount,
		Elements:  ts.Elements,
		Faces:     ts.Faces(),
		Bytes:     n,
		CacheHits: hits,
	}
	opts.logger().WithFields(logrus.Fields{
		"path":     output,
		"format":   ts.Format.Name,
		"size":     fmt.Sprintf("%dx%d", ts.Width, ts.Height),
		"mipmaps":  ts.MipCount,
		"elements": ts.Elements,
		"faces":    res.Faces,
		"bytes":    n,
	}).Info("written")

	return res, nil
}

// Build turns decoded sources into a compressed texture set without any
// file output. Sources are resized in place when opts requests it.
func Build(sources []*Source, opts *Options) (*TextureSet, error) {
	if opts == nil {
		opts = &Options{}
	}

	ts, _, err := build(sources, opts)
	return ts, err
}

func build(sources []*Source, opts *Options) (*TextureSet, int, error) {
	f, err := opts.validate(len(sources))
	if err != nil {
		return nil, 0, err
	}
	log := opts.logger()

	width, height := sources[0].Width, sources[0].Height
	for _, src := range sources[1:] {
		if src.Width != width || src.Height != height {
			return nil, 0, fmt.Errorf("%w: %q is %dx%d, %q is %dx%d", ErrDimensionMismatch,
				sources[0].Path, width, height, src.Path, src.Width, src.Height)
		}
	}
	if opts.Cubemap && width != height {
		return nil, 0, fmt.Errorf("%w: %dx%d", ErrCubemapNotSquare, width, height)
	}

	if opts.resize() {
		if opts.Cubemap && opts.ResizeWidth != opts.ResizeHeight {
			return nil, 0, fmt.Errorf("%w: resize to %dx%d", ErrCubemapNotSquare, opts.ResizeWidth, opts.ResizeHeight)
		}
		if err := resizeSources(sources, opts.ResizeWidth, opts.ResizeHeight, Triangle); err != nil {
			return nil, 0, err
		}
		width, height = opts.ResizeWidth, opts.ResizeHeight
	}

	mipCount := 1
	if opts.Mipmaps {
		mipCount = MipCount(width, height)
	}
	if opts.MaxMipLevels > 0 {
		mipCount = min(mipCount, opts.MaxMipLevels)
	}

	ts := &TextureSet{
		Format:   f,
		Width:    width,
		Height:   height,
		MipCount: mipCount,
		Cubemap:  opts.Cubemap,
		Layers:   make([]*Layer, len(sources)),
	}
	ts.Elements = len(sources) / ts.Faces()

	workers := opts.workers()
	err = runParallel(len(sources), workers, func(i int) error {
		src := sources[i]
		mips, err := buildMipChain(src.Pix, src.Width, src.Height, mipCount, f, Box)
		if err != nil {
			return fmt.Errorf("layer %d %q: %w", i, src.Path, err)
		}
		ts.Layers[i] = &Layer{
			Source:     src.Path,
			Channels:   src.Channels,
			Mips:       mips,
			Compressed: make([][]byte, mipCount),
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	hits, err := compressLayers(ts, opts, log)
	if err != nil {
		return nil, 0, err
	}

	return ts, hits, nil
}

// compressLayers encodes every (layer, mip) unit of ts and returns the
// number of cache hits.
func compressLayers(ts *TextureSet, opts *Options, log logrus.FieldLogger) (int, error) {
	var cache *BlockCache
	if opts.CacheDir != "" {
		c, err := OpenCache(opts.CacheDir)
		if err != nil {
			log.WithError(err).Warn("block cache disabled")
		} else {
			cache = c
			log.WithField("dir", c.Dir()).Debug("block cache enabled")
		}
	}

	comp := &Compressor{EncodeOptions: opts.EncodeOptions, ASTCQuality: opts.ASTCQuality}
	units := len(ts.Layers) * ts.MipCount
	hit := make([]bool, units)

	err := runParallel(units, opts.workers(), func(i int) error {
		li, mi := i/ts.MipCount, i%ts.MipCount
		layer := ts.Layers[li]
		level := &layer.Mips[mi]
		fields := logrus.Fields{"layer": li, "mip": mi, "size": fmt.Sprintf("%dx%d", level.Width, level.Height)}

		var key uint64
		if cache != nil {
			key = Key(ts.Format, layer.Channels, level, comp)
			if data, ok := cache.Get(key, ts.Format.CompressedSize(level.Width, level.Height)); ok {
				layer.Compressed[mi] = data
				hit[i] = true
				log.WithFields(fields).Debug("cache hit")
				return nil
			}
		}

		data, err := comp.Compress(level, ts.Format, layer.Channels)
		if err != nil {
			return fmt.Errorf("layer %d %q mipmap %d: %w", li, layer.Source, mi, err)
		}
		layer.Compressed[mi] = data
		log.WithFields(fields).Debug("compressed")

		if cache != nil {
			if err := cache.Put(key, data); err != nil {
				log.WithFields(fields).WithError(err).Warn("cache store failed")
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	hits := 0
	for _, h := range hit {
		if h {
			hits++
		}
	}

	return hits, nil
}

// runParallel runs fn for 0..n-1 with at most workers in flight and
// returns the error of the lowest failing index.
func runParallel(n, workers int, fn func(i int) error) error {
	if workers < 1 {
		workers = 1
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			errs[idx] = fn(idx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}
