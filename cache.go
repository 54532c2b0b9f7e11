// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ktx

package ktx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4/v4"
)

const (
	// BlockMagicCOPY marks an uncompressed cache entry.
	BlockMagicCOPY = "COPY"
	// BlockMagicLZ4 marks an LZ4 chunk-stream cache entry.
	BlockMagicLZ4 = "LZ4 "

	// ChunkSize is the uncompressed size of one LZ4 chunk.
	ChunkSize = 64 * 1024

	chunkLast    = 0x80
	maxChunkSize = 0x7FFFFF

	// entries below this size are always stored as COPY
	minCompressSize = 1024
	// LZ4 output above this ratio of the input falls back to COPY
	maxCompressRatio = 0.85

	cacheExt = ".blk"
)

// Block is one cache entry body.
type Block struct {
	Magic string
	Size  int32 // uncompressed payload size
	Data  []byte
}

// BlockCache stores compressed mip payloads on disk, addressed by a hash of
// everything that determines the encoder output.
type BlockCache struct {
	dir string
}

// OpenCache prepares dir for use as a block cache.
func OpenCache(dir string) (*BlockCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty path", ErrCacheDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCacheDir, dir, err)
	}

	return &BlockCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *BlockCache) Dir() string {
	return c.dir
}

// Key hashes the format, alpha profile, encoder settings, padded geometry
// and pixels of a level. A nil comp stands for DefaultCompressor.
func Key(f Format, srcChannels int, level *MipLevel, comp *Compressor) uint64 {
	if comp == nil {
		comp = DefaultCompressor
	}

	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(level.PaddedWidth))  // #nosec G115
	binary.LittleEndian.PutUint32(hdr[4:], uint32(level.PaddedHeight)) // #nosec G115
	binary.LittleEndian.PutUint32(hdr[8:], uint32(level.Width))        // #nosec G115
	binary.LittleEndian.PutUint32(hdr[12:], uint32(level.Height))      // #nosec G115

	d := xxhash.New()
	_, _ = d.WriteString(f.Name)
	if hasAlpha(srcChannels) {
		_, _ = d.WriteString("/alpha/")
	} else {
		_, _ = d.WriteString("/opaque/")
	}
	_, _ = d.Write(comp.settings(nil, f))
	_, _ = d.Write(hdr[:])
	_, _ = d.Write(level.Pix)

	return d.Sum64()
}

func (c *BlockCache) path(key uint64) string {
	name := strconv.FormatUint(key, 16)
	return filepath.Join(c.dir, name[:min(2, len(name))], name+cacheExt)
}

// Get returns the cached payload for key. A missing, corrupt or wrongly
// sized entry is a miss.
func (c *BlockCache) Get(key uint64, size int) ([]byte, bool) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}

	block, err := readBlock(bytes.NewReader(raw))
	if err != nil {
		return nil, false
	}
	data, err := decompressBlock(block, size)
	if err != nil {
		return nil, false
	}

	return data, true
}

// Put stores data under key. The entry appears atomically.
func (c *BlockCache) Put(key uint64, data []byte) error {
	block, err := compressBlock(data)
	if err != nil {
		return err
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := writeBlock(tmp, block); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}

	return nil
}

func writeBlock(w io.Writer, block *Block) error {
	if _, err := io.WriteString(w, block.Magic); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	if err := binary.Write(w, binary.LittleEndian, block.Size); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	if _, err := w.Write(block.Data); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}

	return nil
}

func readBlock(r *bytes.Reader) (*Block, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChunkStreamTruncated, err)
	}
	block := &Block{Magic: string(magic)}
	if block.Magic != BlockMagicCOPY && block.Magic != BlockMagicLZ4 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlockMagic, block.Magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &block.Size); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChunkStreamTruncated, err)
	}
	block.Data = make([]byte, r.Len())
	_, _ = r.Read(block.Data)

	return block, nil
}

// compressBlock packs data into an LZ4 chunk stream, or COPY when it does
// not shrink enough.
func compressBlock(data []byte) (*Block, error) {
	size, err := i32FromInt(len(data))
	if err != nil {
		return nil, err
	}
	copyBlock := &Block{Magic: BlockMagicCOPY, Size: size, Data: data}
	if len(data) < minCompressSize {
		return copyBlock, nil
	}

	var stream bytes.Buffer
	buf := make([]byte, lz4.CompressBlockBound(ChunkSize))

	for i := 0; i < len(data); i += ChunkSize {
		end := min(i+ChunkSize, len(data))
		chunk := data[i:end]

		n, err := lz4.CompressBlockHC(chunk, buf, 0, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLZ4Compress, err)
		}
		// incompressible
		if n == 0 || float64(n) > float64(len(chunk))*maxCompressRatio {
			return copyBlock, nil
		}
		if n > maxChunkSize {
			return nil, fmt.Errorf("%w: %d", ErrChunkTooLarge, n)
		}

		flags := byte(0)
		if end == len(data) {
			flags = chunkLast
		}
		stream.Write([]byte{byte(n), byte(n >> 8), byte(n >> 16), flags})
		stream.Write(buf[:n])
	}

	if float64(stream.Len()) > float64(len(data))*maxCompressRatio {
		return copyBlock, nil
	}

	return &Block{Magic: BlockMagicLZ4, Size: size, Data: stream.Bytes()}, nil
}

// decompressBlock inflates a cache entry and checks it against size.
func decompressBlock(block *Block, size int) ([]byte, error) {
	if int(block.Size) != size {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDecodedSizeMismatch, size, block.Size)
	}

	switch block.Magic {
	case BlockMagicCOPY:
		if len(block.Data) != size {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrDecodedSizeMismatch, size, len(block.Data))
		}
		out := make([]byte, size)
		copy(out, block.Data)
		return out, nil
	case BlockMagicLZ4:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlockMagic, block.Magic)
	}

	out := make([]byte, size)
	data := block.Data
	pos := 0

	for {
		if len(data) < 4 {
			return nil, fmt.Errorf("%w: need 4 bytes header, have %d", ErrChunkStreamTruncated, len(data))
		}
		n := int(data[0]) | int(data[1])<<8 | int(data[2])<<16
		flags := data[3]
		data = data[4:]
		if flags&^chunkLast != 0 {
			return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownLZ4Flags, flags)
		}
		if n <= 0 || n > len(data) {
			return nil, fmt.Errorf("%w: %d (remaining %d)", ErrInvalidChunkSize, n, len(data))
		}
		if pos >= size {
			return nil, ErrDecodeOverrun
		}

		dst := out[pos:min(pos+ChunkSize, size)]
		written, err := lz4.UncompressBlock(data[:n], dst)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLZ4Decode, err)
		}
		pos += written
		data = data[n:]

		if flags&chunkLast != 0 {
			break
		}
	}

	if pos != size || len(data) != 0 {
		return nil, fmt.Errorf("%w: expected %d, got %d (%d bytes left)", ErrDecodedSizeMismatch, size, pos, len(data))
	}

	return out, nil
}
