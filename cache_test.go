package ktx

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/woozymasta/bcn"
)

func TestCompressBlockRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		data      []byte
		wantMagic string
	}{
		{name: "small", data: bytes.Repeat([]byte{1, 2, 3}, 100), wantMagic: BlockMagicCOPY},
		{name: "repetitive", data: bytes.Repeat([]byte("ktxblock"), 40*1024), wantMagic: BlockMagicLZ4},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			block, err := compressBlock(tc.data)
			if err != nil {
				t.Fatalf("compressBlock: %v", err)
			}
			if block.Magic != tc.wantMagic {
				t.Fatalf("magic = %q, want %q", block.Magic, tc.wantMagic)
			}

			out, err := decompressBlock(block, len(tc.data))
			if err != nil {
				t.Fatalf("decompressBlock: %v", err)
			}
			if !bytes.Equal(out, tc.data) {
				t.Fatalf("round-trip mismatch")
			}
		})
	}
}

func TestDecompressBlockErrors(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("abcd"), 64*1024)
	block, err := compressBlock(data)
	if err != nil {
		t.Fatalf("compressBlock: %v", err)
	}

	truncated := *block
	truncated.Data = block.Data[:len(block.Data)-10]
	badFlags := *block
	badFlags.Data = append([]byte(nil), block.Data...)
	badFlags.Data[3] = 0x41

	tests := []struct {
		name    string
		block   *Block
		size    int
		wantErr error
	}{
		{name: "magic", block: &Block{Magic: "ABCD", Size: 4, Data: make([]byte, 4)}, size: 4, wantErr: ErrUnknownBlockMagic},
		{name: "size", block: block, size: len(data) - 1, wantErr: ErrDecodedSizeMismatch},
		{name: "truncated", block: &truncated, size: len(data), wantErr: ErrInvalidChunkSize},
		{name: "flags", block: &badFlags, size: len(data), wantErr: ErrUnknownLZ4Flags},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := decompressBlock(tc.block, tc.size); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestKeyEncoderSettings(t *testing.T) {
	t.Parallel()

	bc3 := formatByName(t, "BC3")
	astc4 := formatByName(t, "ASTC4x4")
	level := newMipLevel(8, 8, bc3)
	level.place(testImage(8, 8, true).Pix, 8*channels)

	quality := func(q int) *Compressor {
		return &Compressor{EncodeOptions: &bcn.EncodeOptions{QualityLevel: q}, ASTCQuality: ASTCQualityFast}
	}
	tries := 4

	tests := []struct {
		name  string
		f     Format
		a, b  *Compressor
		equal bool
	}{
		{name: "nil is default", f: bc3, a: nil, b: DefaultCompressor, equal: true},
		{name: "zero quality is balanced", f: bc3, a: quality(0), b: quality(bcn.QualityLevelBalanced), equal: true},
		{name: "worker count ignored", f: bc3, a: quality(3), b: &Compressor{EncodeOptions: &bcn.EncodeOptions{QualityLevel: 3, Workers: 7}, ASTCQuality: ASTCQualityFast}, equal: true},
		{name: "bcn quality", f: bc3, a: quality(bcn.QualityLevelFast), b: quality(bcn.QualityLevelBest)},
		{name: "bcn refinement", f: bc3, a: quality(3), b: &Compressor{EncodeOptions: &bcn.EncodeOptions{QualityLevel: 3, Refinement: &bcn.RefinementOptions{ColorTries: &tries}}}},
		{name: "astc preset ignored by bcn", f: bc3, a: &Compressor{ASTCQuality: ASTCQualityFast}, b: &Compressor{ASTCQuality: ASTCQualityThorough}, equal: true},
		{name: "astc preset", f: astc4, a: &Compressor{ASTCQuality: ASTCQualityFast}, b: &Compressor{ASTCQuality: ASTCQualityThorough}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Key(tc.f, 4, &level, tc.a) == Key(tc.f, 4, &level, tc.b); got != tc.equal {
				t.Fatalf("keys equal = %v, want %v", got, tc.equal)
			}
		})
	}
}

func TestBlockCache(t *testing.T) {
	t.Parallel()

	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}

	f := formatByName(t, "BC3")
	level := newMipLevel(16, 16, f)
	level.place(testImage(16, 16, true).Pix, 16*channels)

	key := Key(f, 4, &level, nil)
	if key == Key(f, 3, &level, nil) {
		t.Fatalf("alpha profile does not change the key")
	}
	if key == Key(formatByName(t, "BC7"), 4, &level, nil) {
		t.Fatalf("format does not change the key")
	}

	if _, ok := cache.Get(key, 256); ok {
		t.Fatalf("hit on empty cache")
	}

	payload := bytes.Repeat([]byte{7, 7, 7, 9}, 64)
	if err := cache.Put(key, payload); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := cache.Get(key, len(payload))
	if !ok || !bytes.Equal(got, payload) {
		t.Fatalf("Get after Put: ok=%v", ok)
	}

	if _, ok := cache.Get(key, len(payload)+16); ok {
		t.Fatalf("hit with wrong size")
	}

	if err := os.WriteFile(cache.path(key), []byte("LZ4 garbage"), 0o644); err != nil {
		t.Fatalf("corrupt entry: %v", err)
	}
	if _, ok := cache.Get(key, len(payload)); ok {
		t.Fatalf("corrupt entry reported as hit")
	}
}
