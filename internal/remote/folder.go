// Package remote implements the Remote Folder Client (spec §4.B): folder
// id extraction, recursive breadth-first image listing, content
// fingerprinting and resilient image download.
package remote

import (
	"net/url"
	"strings"
)

// ExtractFolderID pulls a folder identifier out of any of: a raw id
// (alphanumeric + '-'/'_', length >= 10), a "/folders/<id>" URL segment,
// or an "?id=" query parameter. Returns "" if none match.
func ExtractFolderID(input string) string {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return ""
	}
	if looksLikeID(raw) {
		return raw
	}

	const marker = "/folders/"
	if idx := strings.Index(raw, marker); idx >= 0 {
		rest := raw[idx+len(marker):]
		rest = strings.SplitN(rest, "?", 2)[0]
		rest = strings.SplitN(rest, "/", 2)[0]
		if looksLikeID(rest) {
			return rest
		}
	}

	if parsed, err := url.Parse(raw); err == nil {
		if id := parsed.Query().Get("id"); looksLikeID(id) {
			return id
		}
	}
	return ""
}

func looksLikeID(value string) bool {
	v := strings.TrimSpace(value)
	if len(v) < 10 {
		return false
	}
	for _, r := range v {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// FileInfo is one listed remote file, matching the consumed listing API
// contract in spec §6.
type FileInfo struct {
	ID           string
	Name         string
	MimeType     string
	WebViewLink  string
	ModifiedTime string
	Size         string
}

// ContentStamp builds the opaque equality key used for incremental sync
// caching: exactly "<modifiedTime>|<size>|<name>" with missing fields
// empty (spec §4.B, §6).
func ContentStamp(f FileInfo) string {
	return f.ModifiedTime + "|" + f.Size + "|" + f.Name
}

const folderMimeType = "application/vnd.google-apps.folder"

// IsFolder reports whether a listed item is a folder rather than a file.
func IsFolder(mimeType string) bool {
	return mimeType == folderMimeType
}

// IsImage reports whether a listed item's mime type names an image.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
