// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/woozymasta/ktx"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.ktx>",
		Short: "Print the header and mip records of a KTX file",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &usageError{err: fmt.Errorf("info takes exactly one file, got %d", len(args))}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ktx.Open(args[0])
			if err != nil {
				return err
			}
			return printInfo(cmd.OutOrStdout(), args[0], c)
		},
	}
}

func printInfo(w io.Writer, path string, c *ktx.Container) error {
	h := c.Header
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "file:\t%s\n", path)
	fmt.Fprintf(tw, "format:\t%s (glInternalFormat 0x%04X, glBaseInternalFormat 0x%04X)\n",
		c.Format.Name, h.GlInternalFormat, h.GlBaseInternalFormat)
	fmt.Fprintf(tw, "byte order:\t%s\n", c.ByteOrder)
	fmt.Fprintf(tw, "size:\t%dx%d\n", h.PixelWidth, h.PixelHeight)
	fmt.Fprintf(tw, "array elements:\t%d\n", h.NumberOfArrayElements)
	fmt.Fprintf(tw, "faces:\t%d\n", h.NumberOfFaces)
	fmt.Fprintf(tw, "mipmaps:\t%d\n", h.NumberOfMipmapLevels)
	fmt.Fprintf(tw, "key/value bytes:\t%d\n", h.BytesOfKeyValueData)
	fmt.Fprintf(tw, "file size:\t%d\n", c.Layout.Size)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "mip\tsize\toffset\timageSize\timages\tpadding\t")
	for _, mip := range c.Layout.Mips {
		width := max(1, int(h.PixelWidth)>>mip.Level)
		height := max(1, int(h.PixelHeight)>>mip.Level)
		fmt.Fprintf(tw, "%d\t%dx%d\t%d\t%d\t%d\t%d\t\n",
			mip.Level, width, height, mip.SizeOffset, mip.ImageSize, len(mip.Images), mip.Padding)
	}

	return tw.Flush()
}
