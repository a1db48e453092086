package mvtoverlay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TileFetcher retrieves raw tile bytes for a grid cell. Implementations
// must be safe for concurrent use; the engine fetches tiles from multiple
// goroutines.
type TileFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// expandTileURL substitutes {z}, {x}, {y} into a URL template.
func expandTileURL(template string, k TileKey) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(k.Z),
		"{x}", strconv.Itoa(k.X),
		"{y}", strconv.Itoa(k.Y),
	)
	return r.Replace(template)
}

// HTTPTileFetcher fetches tiles over HTTP GET with configurable headers.
type HTTPTileFetcher struct {
	// Client is the HTTP client; nil uses a client with a 30 s timeout.
	Client *http.Client
	// Headers are set on every request.
	Headers map[string]string
}

// NewHTTPTileFetcher creates a fetcher with the given request headers.
func NewHTTPTileFetcher(headers map[string]string) *HTTPTileFetcher {
	return &HTTPTileFetcher{
		Client:  &http.Client{Timeout: 30 * time.Second},
		Headers: headers,
	}
}

// Fetch performs the GET. Non-200 statuses are errors; the engine treats
// them as transport failures and renders the tile debug-only.
func (f *HTTPTileFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("mvtoverlay: build request: %w", err)
	}
	for k, v := range f.Headers {
		req.Header.Set(k, v)
	}

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mvtoverlay: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mvtoverlay: fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mvtoverlay: read %s: %w", url, err)
	}
	return data, nil
}
