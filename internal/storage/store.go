// Package storage implements the Storage & Thumbnail Store (spec §4.A):
// a process-local filesystem rooted at a configurable path, with
// selfies/ and thumbnails/<event_id>/ as its only two writable
// subdirectories.
package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// allowedSelfieExt is the extension allowlist for persisted selfie
// blobs; anything else falls back to .jpg.
var allowedSelfieExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

const thumbnailQuality = 84

// Store is the sole writer of the selfies/ and thumbnails/ directories
// under Root.
type Store struct {
	Root string
}

// New returns a Store rooted at root, creating selfies/ and
// thumbnails/ if they don't yet exist.
func New(root string) (*Store, error) {
	s := &Store{Root: root}
	for _, dir := range []string{"selfies", "thumbnails"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("creating storage dir %s: %w", dir, err)
		}
	}
	return s, nil
}

// SafeName keeps only alphanumerics, '-' and '_' from value, defaulting
// to "item" when nothing survives (spec §4.A input sanitization).
func SafeName(value string) string {
	var b strings.Builder
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "item"
	}
	return b.String()
}

// SaveSelfie persists payload under selfies/<safe-query-id>.<ext>, the
// extension taken from fileName and restricted to the allowlist, and
// returns a POSIX-relative path rooted at Root.
func (s *Store) SaveSelfie(queryID, fileName string, payload []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedSelfieExt[ext] {
		ext = ".jpg"
	}
	rel := "selfies/" + SafeName(queryID) + ext
	abs := filepath.Join(s.Root, filepath.FromSlash(rel))
	if err := os.WriteFile(abs, payload, 0o644); err != nil {
		return "", fmt.Errorf("writing selfie: %w", err)
	}
	return rel, nil
}

// SaveThumbnail decodes imageBytes, resizes it so its longest side is
// at most maxSize (never upscaling), and writes it as a quality-84 JPEG
// under thumbnails/<eventID>/<safe-remote-id>.jpg, returning a
// POSIX-relative path rooted at Root.
func (s *Store) SaveThumbnail(eventID, remoteFileID string, imageBytes []byte, maxSize int) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return "", fmt.Errorf("decoding thumbnail source: %w", err)
	}

	resized := resizeToFit(src, maxSize)

	dir := filepath.Join(s.Root, "thumbnails", eventID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating thumbnail dir: %w", err)
	}

	rel := "thumbnails/" + eventID + "/" + SafeName(remoteFileID) + ".jpg"
	abs := filepath.Join(s.Root, filepath.FromSlash(rel))

	f, err := os.Create(abs)
	if err != nil {
		return "", fmt.Errorf("creating thumbnail file: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, resized, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return "", fmt.Errorf("encoding thumbnail: %w", err)
	}
	return rel, nil
}

// resizeToFit scales src so its longest side is at most maxSize,
// preserving aspect ratio. Images already within bounds are returned
// unchanged, matching PIL's Image.thumbnail semantics (never upscale).
func resizeToFit(src image.Image, maxSize int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || maxSize <= 0 {
		return src
	}
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxSize {
		return src
	}
	scale := float64(maxSize) / float64(longest)
	dw := int(float64(w)*scale + 0.5)
	dh := int(float64(h)*scale + 0.5)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// ToAbsolute resolves a POSIX-relative path to an absolute filesystem
// path rooted at Root, stripping leading/trailing slashes and
// normalizing backslashes first.
func (s *Store) ToAbsolute(relativePath string) string {
	clean := strings.Trim(strings.ReplaceAll(relativePath, "\\", "/"), "/")
	return filepath.Join(s.Root, filepath.FromSlash(clean))
}

// DeleteIfExists removes the file at relativePath, swallowing every
// filesystem error (spec §4.A: "Delete-if-exists swallows all
// filesystem errors").
func (s *Store) DeleteIfExists(relativePath string) {
	if relativePath == "" {
		return
	}
	_ = os.Remove(s.ToAbsolute(relativePath))
}
