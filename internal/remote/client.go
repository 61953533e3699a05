package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/grabpic/pipeline/internal/domain"
	"github.com/grabpic/pipeline/internal/pageconst"
)

const (
	listURL  = "https://www.googleapis.com/drive/v3/files"
	mediaURL = "https://www.googleapis.com/drive/v3/files/%s"
)

// Client lists and downloads images from the remote folder API.
type Client struct {
	apiKey string
	http   *http.Client
}

// NewClient returns a Client authenticating with apiKey.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		http:   &http.Client{Timeout: 60 * time.Second},
	}
}

type listResponse struct {
	Files         []driveFile `json:"files"`
	NextPageToken string      `json:"nextPageToken"`
}

type driveFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	WebViewLink  string `json:"webViewLink"`
	ModifiedTime string `json:"modifiedTime"`
	Size         string `json:"size"`
}

// ListImages performs a cycle-safe breadth-first traversal of folderID's
// subtree, returning up to maxImages image files (0 means unlimited).
// Nested folders are queued as they're discovered; a visited set
// prevents revisiting a folder id twice.
func (c *Client) ListImages(ctx context.Context, folderID string, maxImages int) ([]FileInfo, error) {
	unlimited := maxImages <= 0
	var out []FileInfo
	visited := map[string]bool{}
	pending := []string{folderID}

	for len(pending) > 0 && (unlimited || len(out) < maxImages) {
		current := pending[0]
		pending = pending[1:]
		if current == "" || visited[current] {
			continue
		}
		visited[current] = true

		var nextPageToken string
		for unlimited || len(out) < maxImages {
			pageSize := pageconst.RemoteListPageSize
			if !unlimited {
				remaining := maxImages - len(out)
				if remaining < pageSize {
					pageSize = remaining
				}
				if pageSize < 20 {
					pageSize = 20
				}
				if pageSize > pageconst.RemoteListPageSize {
					pageSize = pageconst.RemoteListPageSize
				}
			}

			payload, err := c.listPage(ctx, current, pageSize, nextPageToken)
			if err != nil {
				return nil, domain.NewPipelineError(domain.ErrRemoteListingFailed, "listing remote folder", err)
			}

			for _, item := range payload.Files {
				if item.ID == "" {
					continue
				}
				if IsFolder(item.MimeType) {
					if !visited[item.ID] {
						pending = append(pending, item.ID)
					}
					continue
				}
				if IsImage(item.MimeType) {
					out = append(out, FileInfo{
						ID:           item.ID,
						Name:         item.Name,
						MimeType:     item.MimeType,
						WebViewLink:  item.WebViewLink,
						ModifiedTime: item.ModifiedTime,
						Size:         item.Size,
					})
					if !unlimited && len(out) >= maxImages {
						break
					}
				}
			}

			nextPageToken = payload.NextPageToken
			if nextPageToken == "" {
				break
			}
		}
	}

	if !unlimited && len(out) > maxImages {
		out = out[:maxImages]
	}
	return out, nil
}

func (c *Client) listPage(ctx context.Context, folderID string, pageSize int, pageToken string) (*listResponse, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf(
		"'%s' in parents and trashed = false and (mimeType contains 'image/' or mimeType = '%s')",
		folderID, folderMimeType,
	))
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("fields", "nextPageToken, files(id,name,mimeType,webViewLink,modifiedTime,size)")
	q.Set("supportsAllDrives", "true")
	q.Set("includeItemsFromAllDrives", "true")
	q.Set("key", c.apiKey)
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building list request: %w", err)
	}
	req.Header.Set("User-Agent", "GrabPic/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading list response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list API returned %d: %s", resp.StatusCode, truncate(body, 220))
	}

	var out listResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing list response: %w", err)
	}
	return &out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
