package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound means the scan record references an image that is no longer
// retrievable. Callers treat this as an unprocessed image, not a failure of
// the whole scan.
var ErrNotFound = errors.New("image not found")

// Resolver turns the relative path stored on a scan record into image bytes.
type Resolver interface {
	Resolve(ctx context.Context, relPath string) ([]byte, error)
}

// FileResolver reads images from a mounted file share.
type FileResolver struct {
	root string
}

// NewFileResolver creates a resolver rooted at the share mount point.
func NewFileResolver(root string) *FileResolver {
	return &FileResolver{root: root}
}

// Resolve reads the image below the root. Paths on scan records come from
// the Windows-side terminal and may use backslashes and drive prefixes.
func (r *FileResolver) Resolve(ctx context.Context, relPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full := filepath.Join(r.root, normalizePath(relPath))
	if !strings.HasPrefix(filepath.Clean(full), filepath.Clean(r.root)) {
		return nil, fmt.Errorf("image path escapes share root: %s", relPath)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, relPath)
		}
		return nil, fmt.Errorf("failed to read image %s: %w", relPath, err)
	}
	return data, nil
}

// HTTPResolver fetches images from a file share exported over HTTP.
type HTTPResolver struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPResolver creates a resolver against the given base URL.
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Resolve fetches the image. A 404 maps to ErrNotFound; other failures are
// infrastructure errors and abort the scan they belong to.
func (r *HTTPResolver) Resolve(ctx context.Context, relPath string) ([]byte, error) {
	u := r.baseURL + "/" + normalizePath(relPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, relPath)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	return data, nil
}

// normalizePath converts terminal-side paths ("D:\Image\2024\x.jpg" or
// "Image/2024/x.jpg") into a clean relative path.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	// Strip a Windows drive prefix if present.
	if len(p) >= 2 && p[1] == ':' {
		p = p[2:]
	}
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}
