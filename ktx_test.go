package ktx

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/woozymasta/bcn"
)

// testImage builds a deterministic gradient. Alpha varies when alpha is set.
func testImage(width, height int, alpha bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			a := uint8(255)
			if alpha {
				a = uint8((x*37 + y*11) & 0xff) //nolint:gosec // bounded by mask
			}
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 255) / max(1, width-1)),  //nolint:gosec // bounded
				G: uint8((y * 255) / max(1, height-1)), //nolint:gosec // bounded
				B: 90,
				A: a,
			})
		}
	}

	return img
}

func solidImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	return img
}

func mustSource(t testing.TB, img image.Image) *Source {
	t.Helper()

	src, err := SourceFromImage(img)
	if err != nil {
		t.Fatalf("SourceFromImage: %v", err)
	}

	return src
}

func writePNG(t testing.TB, dir, name string, img image.Image) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer func() { _ = f.Close() }()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}

	return path
}

func TestWriteReadRGBA(t *testing.T) {
	t.Parallel()

	img := testImage(8, 8, true)
	ts, err := Build([]*Source{mustSource(t, img)}, &Options{Format: "RGBA"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	path := filepath.Join(t.TempDir(), "rgba.ktx")
	if _, err := ts.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	gotImg, ok := got.(*image.NRGBA)
	if !ok {
		t.Fatalf("expected *image.NRGBA, got %T", got)
	}
	if gotImg.Bounds().Dx() != 8 || gotImg.Bounds().Dy() != 8 {
		t.Fatalf("unexpected size: %dx%d", gotImg.Bounds().Dx(), gotImg.Bounds().Dy())
	}
	if !bytes.Equal(gotImg.Pix, img.Pix) {
		t.Fatalf("pixel mismatch")
	}

	cfg, err := ReadConfig(path)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 8 {
		t.Fatalf("unexpected config size: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestWriteRGBA4x4FileSize(t *testing.T) {
	t.Parallel()

	ts, err := Build([]*Source{mustSource(t, testImage(4, 4, false))}, &Options{Format: "RGBA"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var buf bytes.Buffer
	n, err := ts.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if n != 132 || buf.Len() != 132 {
		t.Fatalf("size = %d (reported %d), want 132", buf.Len(), n)
	}

	raw := buf.Bytes()
	if !bytes.Equal(raw[:12], bcn.KTXIdentifier[:]) {
		t.Fatalf("bad identifier: % x", raw[:12])
	}
	if got := binary.LittleEndian.Uint32(raw[12:]); got != bcn.KTXEndianness {
		t.Fatalf("endianness = 0x%08x", got)
	}
	if got := binary.LittleEndian.Uint32(raw[HeaderSize:]); got != 64 {
		t.Fatalf("imageSize = %d, want 64", got)
	}

	kh, err := bcn.ReadKTXHeader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("bcn.ReadKTXHeader: %v", err)
	}
	if kh.GlInternalFormat != bcn.KTXGLRGBA8 || kh.GlFormat != bcn.KTXGLRGBA || kh.GlType != bcn.KTXGLUnsignedByte {
		t.Fatalf("unexpected GL enums: %+v", kh)
	}
	if kh.PixelWidth != 4 || kh.NumberOfFaces != 1 || kh.NumberOfArrayElements != 0 || kh.NumberOfMipmapLevels != 1 {
		t.Fatalf("unexpected geometry: %+v", kh)
	}
}

func TestWriteCubemap(t *testing.T) {
	t.Parallel()

	sources := make([]*Source, CubeFaces)
	for i := range sources {
		sources[i] = mustSource(t, solidImage(8, 8, color.NRGBA{R: uint8(i * 40), G: 10, B: 200, A: 255})) //nolint:gosec // bounded
	}

	ts, err := Build(sources, &Options{Format: "BC1", Cubemap: true, Mipmaps: true, Workers: 2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var buf bytes.Buffer
	if _, err := ts.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	c, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	h := c.Header
	if h.NumberOfFaces != CubeFaces || h.NumberOfArrayElements != 0 || h.NumberOfMipmapLevels != 4 {
		t.Fatalf("header faces=%d elements=%d mips=%d", h.NumberOfFaces, h.NumberOfArrayElements, h.NumberOfMipmapLevels)
	}
	// one face of 8x8 BC1
	if c.Layout.Mips[0].ImageSize != 32 {
		t.Fatalf("imageSize = %d, want 32", c.Layout.Mips[0].ImageSize)
	}
	if c.Layers() != CubeFaces {
		t.Fatalf("layers = %d", c.Layers())
	}
	if int64(buf.Len()) != c.Layout.Size {
		t.Fatalf("file is %d bytes, layout says %d", buf.Len(), c.Layout.Size)
	}

	k, err := bcn.ReadKTX(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("bcn.ReadKTX: %v", err)
	}
	if !k.IsCubemap() || k.Format != bcn.FormatDXT1 || len(k.Faces[0].Mipmaps) != 4 {
		t.Fatalf("bcn sees cubemap=%v format=%v mips=%d", k.IsCubemap(), k.Format, len(k.Faces[0].Mipmaps))
	}
	for face := range k.Faces {
		for mip, data := range k.Faces[face].Mipmaps {
			if !bytes.Equal(data, ts.Layers[face].Compressed[mip]) {
				t.Fatalf("bcn face %d mip %d payload differs", face, mip)
			}
		}
	}

	for face := 0; face < CubeFaces; face++ {
		img, err := c.DecodeImage(0, face, nil)
		if err != nil {
			t.Fatalf("DecodeImage face %d: %v", face, err)
		}
		want := sources[face].Pix[:4]
		got := img.Pix[:4]
		if absDiff(got[0], want[0]) > 8 || absDiff(got[2], want[2]) > 8 {
			t.Fatalf("face %d: got %v, want about %v", face, got, want)
		}
	}
}

func TestWriteArray(t *testing.T) {
	t.Parallel()

	sources := []*Source{
		mustSource(t, testImage(5, 3, false)),
		mustSource(t, testImage(5, 3, true)),
		mustSource(t, testImage(5, 3, false)),
	}

	ts, err := Build(sources, &Options{Format: "RGBA", Mipmaps: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var buf bytes.Buffer
	if _, err := ts.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	c, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Header.NumberOfArrayElements != 3 || c.Header.NumberOfFaces != 1 {
		t.Fatalf("elements=%d faces=%d", c.Header.NumberOfArrayElements, c.Header.NumberOfFaces)
	}

	wantSizes := []uint32{5 * 3 * 4 * 3, 2 * 1 * 4 * 3, 1 * 1 * 4 * 3}
	if len(c.Layout.Mips) != len(wantSizes) {
		t.Fatalf("mips = %d, want %d", len(c.Layout.Mips), len(wantSizes))
	}
	for i, want := range wantSizes {
		if c.Layout.Mips[i].ImageSize != want {
			t.Fatalf("mip %d imageSize = %d, want %d", i, c.Layout.Mips[i].ImageSize, want)
		}
	}

	second, err := c.DecodeImage(0, 1, nil)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if !bytes.Equal(second.Pix, testImage(5, 3, true).Pix) {
		t.Fatalf("layer 1 pixel mismatch")
	}
}

func TestReadFormats(t *testing.T) {
	t.Parallel()

	want := color.NRGBA{R: 255, G: 0, B: 0, A: 255}
	tests := []struct {
		format string
		tol    int
	}{
		{format: "BC1", tol: 4},
		{format: "BC1a", tol: 4},
		{format: "BC3", tol: 4},
		{format: "BC7", tol: 1},
		{format: "ASTC4x4", tol: 2},
		{format: "ASTC6x5", tol: 2},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.format, func(t *testing.T) {
			t.Parallel()

			ts, err := Build([]*Source{mustSource(t, solidImage(7, 5, want))}, &Options{Format: tc.format, Mipmaps: true})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}

			var buf bytes.Buffer
			if _, err := ts.WriteTo(&buf); err != nil {
				t.Fatalf("WriteTo: %v", err)
			}
			c, err := Decode(&buf)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if c.Format.Name != tc.format {
				t.Fatalf("format = %s", c.Format.Name)
			}

			img, err := c.DecodeImage(0, 0, nil)
			if err != nil {
				t.Fatalf("DecodeImage: %v", err)
			}
			if img.Bounds().Dx() != 7 || img.Bounds().Dy() != 5 {
				t.Fatalf("size %v", img.Bounds())
			}
			// (1,1) lies in the first block, which holds no padding.
			got := img.NRGBAAt(1, 1)
			if absDiff(got.R, want.R) > tc.tol || absDiff(got.G, want.G) > tc.tol ||
				absDiff(got.B, want.B) > tc.tol || absDiff(got.A, want.A) > tc.tol {
				t.Fatalf("interior texel = %v, want %v", got, want)
			}
			// Edge blocks share endpoints with zeroed padding.
			if edge := img.NRGBAAt(6, 4); edge.R < 128 || edge.G > 64 || edge.B > 64 {
				t.Fatalf("edge texel = %v, want close to %v", edge, want)
			}
		})
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestReadHeaderErrors(t *testing.T) {
	t.Parallel()

	valid, err := NewHeader(formatByName(t, "RGBA"), 4, 4, 1, 1, false)
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}

	encode := func(h Header) []byte {
		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.LittleEndian, h)
		return buf.Bytes()
	}

	badMagic := *valid
	badMagic.Identifier[1] = 'X'
	badEndian := *valid
	badEndian.Endianness = 0xdeadbeef
	volume := *valid
	volume.PixelDepth = 4
	faces := *valid
	faces.NumberOfFaces = 3

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "short", data: encode(*valid)[:20], wantErr: ErrReadHeader},
		{name: "magic", data: encode(badMagic), wantErr: ErrInvalidMagic},
		{name: "endianness", data: encode(badEndian), wantErr: ErrInvalidEndianness},
		{name: "depth", data: encode(volume), wantErr: ErrInvalidHeader},
		{name: "faces", data: encode(faces), wantErr: ErrInvalidHeader},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := ReadHeader(bytes.NewReader(tc.data))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestReadSwappedByteOrder(t *testing.T) {
	t.Parallel()

	f := formatByName(t, "RGBA")
	h, err := NewHeader(f, 2, 1, 1, 1, false)
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, h)
	_ = binary.Write(&buf, binary.BigEndian, uint32(8))
	buf.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})

	c, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.ByteOrder != binary.BigEndian {
		t.Fatalf("byte order = %v", c.ByteOrder)
	}
	if c.Header.PixelWidth != 2 || c.Header.GlInternalFormat != f.GLInternalFormat {
		t.Fatalf("unexpected header: %+v", c.Header)
	}
}

func TestReadImageSizeMismatch(t *testing.T) {
	t.Parallel()

	h, err := NewHeader(formatByName(t, "BC3"), 4, 4, 1, 1, false)
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, h)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(8))
	buf.Write(make([]byte, 16))

	if _, err := Decode(&buf); !errors.Is(err, ErrImageSizeMismatch) {
		t.Fatalf("expected ErrImageSizeMismatch, got %v", err)
	}
}

func TestReadRejectsOversizedGeometry(t *testing.T) {
	t.Parallel()

	header := func(width, height, elements int) *Header {
		h, err := NewHeader(formatByName(t, "RGBA"), width, height, 1, 1, false)
		if err != nil {
			t.Fatalf("NewHeader: %v", err)
		}
		h.NumberOfArrayElements = uint32(elements) //nolint:gosec // test constants
		return h
	}
	file := func(h *Header, imageSize uint32, payload int) []byte {
		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.LittleEndian, h)
		_ = binary.Write(&buf, binary.LittleEndian, imageSize)
		buf.Write(make([]byte, payload))
		return buf.Bytes()
	}

	tests := []struct {
		name    string
		r       io.Reader
		wantErr error
	}{
		{
			name:    "elements",
			r:       bytes.NewReader(file(header(1, 1, 1<<29), 1<<31, 0)),
			wantErr: ErrInvalidHeader,
		},
		{
			name:    "short input",
			r:       bytes.NewReader(file(header(64, 64, 4096), 64*64*4*4096, 4)),
			wantErr: ErrTruncated,
		},
		{
			name:    "short stream",
			r:       struct{ io.Reader }{bytes.NewReader(file(header(1024, 1024, 0), 1024*1024*4, 32))},
			wantErr: ErrReadPayload,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := Decode(tc.r); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestWriteRejectsWrongPayloadSize(t *testing.T) {
	t.Parallel()

	ts := &TextureSet{
		Format:   formatByName(t, "BC1"),
		Width:    4,
		Height:   4,
		MipCount: 1,
		Elements: 1,
		Layers:   []*Layer{{Compressed: [][]byte{make([]byte, 7)}}},
	}

	path := filepath.Join(t.TempDir(), "out.ktx")
	if _, err := ts.WriteFile(path); !errors.Is(err, ErrCompressedSizeMismatch) {
		t.Fatalf("expected ErrCompressedSizeMismatch, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("output file should not exist, stat err = %v", err)
	}
}

func formatByName(t testing.TB, name string) Format {
	t.Helper()

	f, err := Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", name, err)
	}

	return f
}
