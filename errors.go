// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package ktx

import "errors"

// Input validation errors.
var (
	// ErrMissingOutput indicates no output path was given.
	ErrMissingOutput = errors.New("missing output path")
	// ErrNoInputs indicates no input images were given.
	ErrNoInputs = errors.New("no input images")
	// ErrUnsupportedFormat indicates an unknown output format name.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrCubemapCount indicates a cubemap input count not divisible by six.
	ErrCubemapCount = errors.New("cubemap requires six images per cube")
	// ErrCubemapNotSquare indicates non-square cubemap faces.
	ErrCubemapNotSquare = errors.New("cubemap faces must be square")
	// ErrInvalidResize indicates a resize dimension below one.
	ErrInvalidResize = errors.New("invalid resize dimensions")
	// ErrDimensionMismatch indicates inputs of different sizes.
	ErrDimensionMismatch = errors.New("input image dimensions do not match")
	// ErrInvalidDimensions indicates an empty image or mip level.
	ErrInvalidDimensions = errors.New("invalid image dimensions")
)

// Input and output errors.
var (
	// ErrOpenImage indicates an input image could not be opened.
	ErrOpenImage = errors.New("open image failed")
	// ErrDecodeImage indicates an input image could not be decoded.
	ErrDecodeImage = errors.New("decode image failed")
	// ErrResize indicates resampling failed.
	ErrResize = errors.New("resize failed")
	// ErrCompress indicates a block compression backend failed.
	ErrCompress = errors.New("compress mipmap failed")
	// ErrCreateFile indicates the output file could not be created.
	ErrCreateFile = errors.New("create file failed")
	// ErrWriteHeader indicates the KTX header write failed.
	ErrWriteHeader = errors.New("writing KTX header failed")
	// ErrWriteImageSize indicates an imageSize field write failed.
	ErrWriteImageSize = errors.New("writing image size failed")
	// ErrWritePayload indicates a mip payload write failed.
	ErrWritePayload = errors.New("writing mip payload failed")
	// ErrWritePadding indicates an alignment padding write failed.
	ErrWritePadding = errors.New("writing padding failed")
	// ErrFlush indicates flushing buffered output failed.
	ErrFlush = errors.New("flushing output failed")
	// ErrOpenFile indicates a KTX file open failed.
	ErrOpenFile = errors.New("open file failed")
	// ErrReadHeader indicates the KTX header read failed.
	ErrReadHeader = errors.New("reading KTX header failed")
	// ErrInvalidMagic indicates the file does not start with the KTX 1.1 identifier.
	ErrInvalidMagic = errors.New("invalid KTX identifier")
	// ErrInvalidEndianness indicates an unknown endianness marker.
	ErrInvalidEndianness = errors.New("invalid endianness marker")
	// ErrInvalidHeader indicates header fields outside the supported subset.
	ErrInvalidHeader = errors.New("invalid KTX header")
	// ErrSkipKeyValueData indicates skipping key/value data failed.
	ErrSkipKeyValueData = errors.New("skipping key/value data failed")
	// ErrReadImageSize indicates an imageSize field read failed.
	ErrReadImageSize = errors.New("reading image size failed")
	// ErrReadPayload indicates a mip payload read failed.
	ErrReadPayload = errors.New("reading mip payload failed")
	// ErrTruncated indicates the input is shorter than the header describes.
	ErrTruncated = errors.New("truncated KTX file")
	// ErrImageSizeMismatch indicates an imageSize field disagrees with the format geometry.
	ErrImageSizeMismatch = errors.New("image size mismatch")
	// ErrDecodeBlocks indicates decoding compressed blocks failed.
	ErrDecodeBlocks = errors.New("decode blocks failed")
	// ErrLayerOutOfRange indicates a requested layer does not exist.
	ErrLayerOutOfRange = errors.New("layer out of range")
)

// Block cache errors.
var (
	// ErrCacheDir indicates the cache directory could not be prepared.
	ErrCacheDir = errors.New("prepare cache directory failed")
	// ErrCacheWrite indicates a cache entry write failed.
	ErrCacheWrite = errors.New("writing cache entry failed")
	// ErrLZ4Compress indicates LZ4 compression failed.
	ErrLZ4Compress = errors.New("LZ4 compression failed")
	// ErrLZ4Decode indicates LZ4 decode failed.
	ErrLZ4Decode = errors.New("LZ4 decode failed")
	// ErrChunkTooLarge indicates a compressed chunk exceeds allowed size.
	ErrChunkTooLarge = errors.New("compressed chunk too large")
	// ErrUnknownBlockMagic indicates an unknown cache block magic.
	ErrUnknownBlockMagic = errors.New("unknown block magic")
	// ErrChunkStreamTruncated indicates an LZ4 chunk stream is truncated.
	ErrChunkStreamTruncated = errors.New("LZ4 chunk-stream truncated")
	// ErrUnknownLZ4Flags indicates unknown LZ4 chunk flags.
	ErrUnknownLZ4Flags = errors.New("unknown LZ4 flags")
	// ErrInvalidChunkSize indicates an invalid LZ4 chunk size.
	ErrInvalidChunkSize = errors.New("invalid compressed chunk size")
	// ErrDecodeOverrun indicates decoded data overruns the target buffer.
	ErrDecodeOverrun = errors.New("decoded LZ4 overruns target buffer")
	// ErrDecodedSizeMismatch indicates a decoded size mismatch.
	ErrDecodedSizeMismatch = errors.New("LZ4 decoded size mismatch")
)

// Internal invariant errors. These indicate a defect, not bad input.
var (
	// ErrSizeOverflow indicates a size or dimension exceeds supported limits.
	ErrSizeOverflow = errors.New("size overflow")
	// ErrCompressedSizeMismatch indicates a backend produced a payload of unexpected length.
	ErrCompressedSizeMismatch = errors.New("compressed size mismatch")
)

// IsUserError reports whether err was caused by invalid input rather than
// I/O or an internal defect.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrMissingOutput, ErrNoInputs, ErrUnsupportedFormat, ErrCubemapCount,
		ErrCubemapNotSquare, ErrInvalidResize, ErrDimensionMismatch, ErrInvalidDimensions,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// IsInternalError reports whether err is an internal invariant violation.
func IsInternalError(err error) bool {
	return errors.Is(err, ErrCompressedSizeMismatch) || errors.Is(err, ErrSizeOverflow)
}
