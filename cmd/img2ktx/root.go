// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/woozymasta/bcn"

	"github.com/woozymasta/ktx"
)

var version = "0.1.0"

var astcPresets = map[string]float32{
	"fastest":  ktx.ASTCQualityFastest,
	"fast":     ktx.ASTCQualityFast,
	"medium":   ktx.ASTCQualityMedium,
	"thorough": ktx.ASTCQualityThorough,
}

type convertFlags struct {
	output      string
	format      string
	resize      string
	mipmaps     bool
	cubemap     bool
	quiet       bool
	workers     int
	cacheDir    string
	maxMips     int
	astcQuality string
	bcnQuality  int
}

func newRootCmd() *cobra.Command {
	var flags convertFlags

	cmd := &cobra.Command{
		Use:   "img2ktx -o <output.ktx> -f <format> [flags] <image>...",
		Short: "Convert images into KTX 1.1 textures",
		Long: `img2ktx packs one or more images into a KTX 1.1 container.

Every input becomes one array element, or one cube face with --cubemap
(faces in +X -X +Y -Y +Z -Z order, six per cube). All inputs must have
the same dimensions.

Formats: ` + ktx.FormatNames(", "),
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging(flags.quiet)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			_, err = ktx.Convert(flags.output, args, opts)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.output, "output", "o", "", "output KTX file (required)")
	f.StringVarP(&flags.format, "format", "f", "", "output format (required): "+ktx.FormatNames(", "))
	f.StringVarP(&flags.resize, "resize", "r", "", "resize inputs to WxH before encoding")
	f.BoolVarP(&flags.mipmaps, "mipmaps", "m", false, "generate the full mip chain")
	f.BoolVarP(&flags.cubemap, "cubemap", "c", false, "treat every six inputs as cube faces")
	cmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "only report warnings and errors")
	f.IntVarP(&flags.workers, "workers", "j", 0, "parallel encoders (0 = NumCPU)")
	f.StringVar(&flags.cacheDir, "cache", "", "directory for the encoded block cache")
	f.IntVar(&flags.maxMips, "max-mips", 0, "cap on mip levels (0 = no cap)")
	f.StringVar(&flags.astcQuality, "astc-quality", "fast", "ASTC search preset: fastest, fast, medium, thorough")
	f.IntVar(&flags.bcnQuality, "bcn-quality", 0, "BCn encoder quality level (0 = library default)")

	cmd.SetVersionTemplate(fmt.Sprintf(
		"img2ktx %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	cmd.AddCommand(newInfoCmd())

	return cmd
}

func setupLogging(quiet bool) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if quiet {
		logrus.SetLevel(logrus.WarnLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// options turns parsed flags into conversion options.
func (c *convertFlags) options() (*ktx.Options, error) {
	if c.output == "" {
		return nil, ktx.ErrMissingOutput
	}
	if c.format == "" {
		return nil, &usageError{err: errors.New("missing format (-f)")}
	}

	opts := &ktx.Options{
		Format:       c.format,
		Mipmaps:      c.mipmaps,
		Cubemap:      c.cubemap,
		MaxMipLevels: c.maxMips,
		Workers:      c.workers,
		CacheDir:     c.cacheDir,
		Logger:       logrus.StandardLogger(),
	}

	if c.resize != "" {
		w, h, err := parseSize(c.resize)
		if err != nil {
			return nil, err
		}
		opts.ResizeWidth, opts.ResizeHeight = w, h
	}

	quality, ok := astcPresets[strings.ToLower(c.astcQuality)]
	if !ok {
		return nil, &usageError{err: fmt.Errorf("unknown ASTC preset %q", c.astcQuality)}
	}
	opts.ASTCQuality = quality

	if c.maxMips < 0 || c.workers < 0 {
		return nil, &usageError{err: errors.New("--max-mips and --workers must not be negative")}
	}
	if c.bcnQuality < 0 || c.bcnQuality > 10 {
		return nil, &usageError{err: fmt.Errorf("--bcn-quality %d out of range 0..10", c.bcnQuality)}
	}
	if c.bcnQuality > 0 {
		opts.EncodeOptions = &bcn.EncodeOptions{QualityLevel: c.bcnQuality}
	}

	return opts, nil
}

// parseSize parses WxH. Values below one are rejected by the converter.
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, &usageError{err: fmt.Errorf("invalid size %q, want WxH", s)}
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, &usageError{err: fmt.Errorf("invalid width in %q: %v", s, err)}
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, &usageError{err: fmt.Errorf("invalid height in %q: %v", s, err)}
	}
	if w < 1 || h < 1 {
		return 0, 0, fmt.Errorf("%w: %dx%d", ktx.ErrInvalidResize, w, h)
	}

	return w, h, nil
}
