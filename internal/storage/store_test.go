package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func TestSafeName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"abc123", "abc123"},
		{"a-b_c", "a-b_c"},
		{"../../etc/passwd", "etcpasswd"},
		{"!!!", "item"},
		{"", "item"},
	}
	for _, c := range cases {
		if got := SafeName(c.in); got != c.want {
			t.Errorf("SafeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSaveSelfie_ExtensionAllowlist(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rel, err := s.SaveSelfie("q1", "photo.png", []byte("data"))
	if err != nil {
		t.Fatalf("SaveSelfie: %v", err)
	}
	if rel != "selfies/q1.png" {
		t.Errorf("expected selfies/q1.png, got %s", rel)
	}

	rel2, err := s.SaveSelfie("q2", "photo.tiff", []byte("data"))
	if err != nil {
		t.Fatalf("SaveSelfie: %v", err)
	}
	if rel2 != "selfies/q2.jpg" {
		t.Errorf("expected disallowed extension to fall back to .jpg, got %s", rel2)
	}
}

func TestSaveThumbnail_ResizeAndQuality(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 400; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	rel, err := s.SaveThumbnail("evt1", "file1", buf.Bytes(), 100)
	if err != nil {
		t.Fatalf("SaveThumbnail: %v", err)
	}
	if rel != "thumbnails/evt1/file1.jpg" {
		t.Errorf("unexpected relative path %s", rel)
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("reading thumbnail: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding thumbnail: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("expected 100x50 thumbnail preserving aspect ratio, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestSaveThumbnail_NeverUpscales(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	rel, err := s.SaveThumbnail("evt1", "file2", buf.Bytes(), 1200)
	if err != nil {
		t.Fatalf("SaveThumbnail: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	decoded, _ := jpeg.Decode(bytes.NewReader(data))
	b := decoded.Bounds()
	if b.Dx() != 50 || b.Dy() != 50 {
		t.Errorf("expected source size preserved (no upscale), got %dx%d", b.Dx(), b.Dy())
	}
}

func TestSaveThumbnail_DecodesGIFAndBMP(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 80, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 10, A: 255})
		}
	}

	var gifBuf bytes.Buffer
	if err := gif.Encode(&gifBuf, img, nil); err != nil {
		t.Fatalf("encode gif fixture: %v", err)
	}
	if _, err := s.SaveThumbnail("evt1", "file-gif", gifBuf.Bytes(), 100); err != nil {
		t.Errorf("SaveThumbnail on GIF source: %v", err)
	}

	var bmpBuf bytes.Buffer
	if err := bmp.Encode(&bmpBuf, img); err != nil {
		t.Fatalf("encode bmp fixture: %v", err)
	}
	if _, err := s.SaveThumbnail("evt1", "file-bmp", bmpBuf.Bytes(), 100); err != nil {
		t.Errorf("SaveThumbnail on BMP source: %v", err)
	}
}

func TestToAbsolute_StripsSlashesAndBackslashes(t *testing.T) {
	s := &Store{Root: "/data"}
	got := s.ToAbsolute("/thumbnails\\evt\\file.jpg/")
	want := filepath.Join("/data", filepath.FromSlash("thumbnails/evt/file.jpg"))
	if got != want {
		t.Errorf("ToAbsolute = %q, want %q", got, want)
	}
}

func TestDeleteIfExists_SwallowsMissingFile(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)
	s.DeleteIfExists("selfies/does-not-exist.jpg")
}
