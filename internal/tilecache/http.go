package tilecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

const userAgent = "gpxreel/1.0"

// HTTPFetcher pulls tiles from the source's public tile server. It is
// deliberately dumb: retries and deduplication belong to the Cache.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{}}
}

func (f *HTTPFetcher) FetchTile(ctx context.Context, key Key) ([]byte, error) {
	uri := key.Source.URI()
	if uri == "" {
		return nil, fmt.Errorf("map source %d has no tile repository", key.Source)
	}
	url := fmt.Sprintf(uri, key.Zoom, key.X, key.Y)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile server returned %s for %s", resp.Status, url)
	}
	return io.ReadAll(resp.Body)
}
