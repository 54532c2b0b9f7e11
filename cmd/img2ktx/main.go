// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

// Command img2ktx converts images into KTX 1.1 textures.
package main

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/woozymasta/ktx"
)

// Process exit codes.
const (
	exitOK = iota
	exitUsage
	exitDecode
	exitDimensions
	exitOutput
	exitFormat
	exitGeometry
	exitInternal
)

// usageError marks bad or missing command line arguments.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// exitCode maps an error returned by a command to the process exit status.
func exitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usage),
		errors.Is(err, ktx.ErrMissingOutput),
		errors.Is(err, ktx.ErrNoInputs),
		errors.Is(err, ktx.ErrInvalidResize):
		return exitUsage
	case errors.Is(err, ktx.ErrUnsupportedFormat):
		return exitFormat
	case errors.Is(err, ktx.ErrDimensionMismatch):
		return exitDimensions
	case errors.Is(err, ktx.ErrCubemapCount),
		errors.Is(err, ktx.ErrCubemapNotSquare),
		errors.Is(err, ktx.ErrInvalidDimensions):
		return exitGeometry
	case errors.Is(err, ktx.ErrOpenImage),
		errors.Is(err, ktx.ErrDecodeImage),
		errors.Is(err, ktx.ErrOpenFile),
		errors.Is(err, ktx.ErrReadHeader),
		errors.Is(err, ktx.ErrInvalidMagic),
		errors.Is(err, ktx.ErrInvalidEndianness),
		errors.Is(err, ktx.ErrInvalidHeader),
		errors.Is(err, ktx.ErrReadImageSize),
		errors.Is(err, ktx.ErrReadPayload),
		errors.Is(err, ktx.ErrTruncated),
		errors.Is(err, ktx.ErrImageSizeMismatch):
		return exitDecode
	case errors.Is(err, ktx.ErrCreateFile),
		errors.Is(err, ktx.ErrWriteHeader),
		errors.Is(err, ktx.ErrWriteImageSize),
		errors.Is(err, ktx.ErrWritePayload),
		errors.Is(err, ktx.ErrWritePadding),
		errors.Is(err, ktx.ErrFlush):
		return exitOutput
	default:
		return exitInternal
	}
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if ktx.IsInternalError(err) {
			logrus.WithError(err).Error("internal error, please report")
		} else {
			logrus.Error(err)
		}
		os.Exit(exitCode(err))
	}
}
