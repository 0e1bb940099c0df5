package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/photon-run/photon/internal/photonerr"
)

// Fetcher retrieves manifests and source files from a marketplace source's
// origin. The HTTP implementation treats origin as a base URL; other
// origin schemes (a git coordinate, a local path) would implement the same
// interface without touching the Manager.
type Fetcher interface {
	FetchManifest(ctx context.Context, origin string) ([]ManifestEntry, error)
	FetchSource(ctx context.Context, origin, sourcePath string) ([]byte, error)
}

// manifestDocument is the wire shape of a source's manifest.json.
type manifestDocument struct {
	Photons []ManifestEntry `json:"photons"`
}

// HTTPFetcher fetches manifests and source files over plain HTTP(S),
// rate-limited per origin so a misbehaving or slow source cannot starve
// fetches against the others.
type HTTPFetcher struct {
	client *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	// RequestsPerSecond bounds fetch throughput per distinct origin.
	RequestsPerSecond rate.Limit
	Burst             int
}

// NewHTTPFetcher constructs an HTTPFetcher with a conservative default
// rate limit, adjustable via the RequestsPerSecond/Burst fields.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, limiters: map[string]*rate.Limiter{}, RequestsPerSecond: 2, Burst: 4}
}

func (f *HTTPFetcher) limiterFor(origin string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[origin]
	if !ok {
		l = rate.NewLimiter(f.RequestsPerSecond, f.Burst)
		f.limiters[origin] = l
	}
	return l
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, photonerr.Wrap(photonerr.UpstreamUnavailable, err, "build request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, photonerr.Wrap(photonerr.UpstreamUnavailable, err, "request failed")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, photonerr.Wrap(photonerr.UpstreamUnavailable, err, "read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, photonerr.Newf(photonerr.UpstreamUnavailable, "unexpected status %d fetching %s", resp.StatusCode, url)
	}
	return body, nil
}

// FetchManifest retrieves and parses origin's manifest.json.
func (f *HTTPFetcher) FetchManifest(ctx context.Context, origin string) ([]ManifestEntry, error) {
	if err := f.limiterFor(origin).Wait(ctx); err != nil {
		return nil, photonerr.Wrap(photonerr.UpstreamUnavailable, err, "rate limit wait")
	}
	body, err := f.get(ctx, joinURL(origin, "manifest.json"))
	if err != nil {
		return nil, err
	}
	var doc manifestDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, photonerr.Wrap(photonerr.UpstreamUnavailable, err, "parse manifest")
	}
	return doc.Photons, nil
}

// FetchSource retrieves the raw bytes at sourcePath relative to origin.
func (f *HTTPFetcher) FetchSource(ctx context.Context, origin, sourcePath string) ([]byte, error) {
	if err := f.limiterFor(origin).Wait(ctx); err != nil {
		return nil, photonerr.Wrap(photonerr.UpstreamUnavailable, err, "rate limit wait")
	}
	return f.get(ctx, joinURL(origin, sourcePath))
}

func joinURL(base, rel string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(base, "/"), strings.TrimPrefix(rel, "/"))
}
