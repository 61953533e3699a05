package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/grabpic/pipeline/internal/domain"
)

// Download tries a sequence of candidate URLs for fileID until one
// returns bytes that are not an HTML challenge page and whose
// content-type or magic prefix matches a known image format (spec §4.B).
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	for _, candidate := range candidateURLs(fileID, c.apiKey) {
		content, contentType, err := c.fetch(ctx, candidate)
		if err != nil {
			continue
		}
		if looksLikeHTML(content, contentType) {
			continue
		}
		if looksLikeImageBytes(content, contentType) {
			return content, nil
		}
	}
	return nil, domain.NewPipelineError(domain.ErrRemoteFetchFailed,
		fmt.Sprintf("could not download image for file %s", fileID), nil)
}

func candidateURLs(fileID, apiKey string) []string {
	id := url.QueryEscape(fileID)
	key := url.QueryEscape(apiKey)
	return []string{
		fmt.Sprintf(mediaURL, id) + "?alt=media&key=" + key,
		fmt.Sprintf("https://drive.usercontent.google.com/download?id=%s&export=download&confirm=t", id),
		fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", id),
		fmt.Sprintf("https://drive.google.com/thumbnail?id=%s&sz=w2200", id),
		fmt.Sprintf("https://lh3.googleusercontent.com/d/%s=w2200", id),
	}
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", "GrabPic/1.0")
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("candidate returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func looksLikeHTML(content []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	n := len(content)
	if n > 320 {
		n = 320
	}
	prefix := bytes.ToLower(content[:n])
	return bytes.Contains(prefix, []byte("<html")) ||
		bytes.Contains(prefix, []byte("<!doctype html")) ||
		bytes.Contains(prefix, []byte("<head"))
}

// imageMagic is a magic byte prefix identifying a known image format,
// checked in order; webp additionally requires "WEBP" at offset 8.
type imageMagic struct {
	prefix []byte
}

var imageMagics = []imageMagic{
	{[]byte{0xFF, 0xD8, 0xFF}},             // JPEG
	{[]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}}, // PNG
	{[]byte("RIFF")},                       // WEBP (RIFF container)
	{[]byte("GIF87a")},
	{[]byte("GIF89a")},
	{[]byte("BM")},
}

func looksLikeImageBytes(content []byte, contentType string) bool {
	if len(content) < 12 {
		return false
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return true
	}
	for _, m := range imageMagics {
		if !bytes.HasPrefix(content, m.prefix) {
			continue
		}
		if bytes.Equal(m.prefix, []byte("RIFF")) {
			if len(content) < 12 || !bytes.Equal(content[8:12], []byte("WEBP")) {
				continue
			}
		}
		return true
	}
	return false
}
