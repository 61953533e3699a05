package faceengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// sidecarClient posts images to a local detector+recognizer service and
// parses its raw per-face detections. It mirrors the multipart-upload
// pattern used by the embedding client for the similarity pipeline.
type sidecarClient struct {
	base   *url.URL
	client *http.Client
}

func newSidecarClient(baseURL string) (*sidecarClient, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid face engine URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid face engine URL %q", baseURL)
	}
	return &sidecarClient{
		base:   parsed,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type rawDetection struct {
	Embedding    []float32 `json:"embedding"`
	BBox         []float64 `json:"bbox"` // x, y, w, h
	DetConfidence float64  `json:"det_confidence"`
}

type rawDetectResponse struct {
	Faces []rawDetection `json:"faces"`
}

func (c *sidecarClient) detect(ctx context.Context, imageBytes []byte, maxFaces int) ([]rawDetection, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageBytes))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating form part: %w", err)
	}
	if _, err := part.Write(imageBytes); err != nil {
		return nil, fmt.Errorf("writing image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	reqURL := c.base.JoinPath("/detect/faces")
	q := reqURL.Query()
	q.Set("max_faces", fmt.Sprintf("%d", maxFaces))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), &buf)
	if err != nil {
		return nil, fmt.Errorf("building detect request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading detect response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detect API error (status %d): %s", resp.StatusCode, string(body))
	}

	var out rawDetectResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing detect response: %w", err)
	}
	return out.Faces, nil
}

type magicSignature struct {
	magic    []byte
	mimeType string
}

var magicSignatures = []magicSignature{
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{[]byte{0x89, 0x50, 0x4E, 0x47}, "image/png"},
	{[]byte{0x47, 0x49, 0x46, 0x38}, "image/gif"},
	{[]byte{0x52, 0x49, 0x46, 0x46}, "image/webp"}, // checked with extra WebP bytes below
}

func detectMIMEType(data []byte) string {
	for _, sig := range magicSignatures {
		if len(data) < len(sig.magic) {
			continue
		}
		if !bytes.Equal(data[:len(sig.magic)], sig.magic) {
			continue
		}
		if sig.mimeType == "image/webp" {
			if len(data) < 12 || !bytes.Equal(data[8:12], []byte("WEBP")) {
				continue
			}
		}
		return sig.mimeType
	}
	return "application/octet-stream"
}
