// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package ktx

const (
	maxInt32  = int(^uint32(0) >> 1)
	maxUint32 = uint64(^uint32(0))

	// rowAlignment is the KTX 1.1 alignment for image size fields and faces.
	rowAlignment = 4
)

// i32FromInt converts an int to an int32.
func i32FromInt(n int) (int32, error) {
	if n < 0 || n > maxInt32 {
		return 0, ErrSizeOverflow
	}

	return int32(n), nil
}

// u32FromInt converts an int to a uint32.
func u32FromInt(n int) (uint32, error) {
	if n < 0 || uint64(n) > maxUint32 {
		return 0, ErrSizeOverflow
	}

	// #nosec G115 -- bounds checked above.
	return uint32(n), nil
}

// alignPadding returns the number of zero bytes needed after offset to
// reach the next 4-byte boundary.
func alignPadding(offset int64) int {
	return int((rowAlignment - offset%rowAlignment) % rowAlignment)
}

// roundUp rounds n up to the next multiple of m.
func roundUp(n, m int) int {
	return ((n + m - 1) / m) * m
}
