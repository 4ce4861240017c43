package himawari

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"himawari-desktop/internal/common"
	"himawari-desktop/internal/ratelimit"
)

const (
	// UserAgent sent with every request
	UserAgent = "himawari-desktop/1.0"

	// DefaultTimeout bounds each individual request
	DefaultTimeout = 10 * time.Second

	maxMetadataBytes = 1 << 20
	maxTileBytes     = 32 << 20
)

// Options configures a Client
type Options struct {
	MetadataURL string
	TileBaseURL string

	// Timeout applies to every request separately, never to the run as a whole
	Timeout time.Duration

	// RateLimit, when set, is told about every throttled response
	RateLimit *ratelimit.Handler

	// HTTPClient overrides the default transport (tests)
	HTTPClient *http.Client
}

// Client talks to the Himawari imagery service
type Client struct {
	httpClient  *http.Client
	metadataURL string
	tileBaseURL string
	timeout     time.Duration
	rateLimit   *ratelimit.Handler
}

// NewClient creates a new client with system proxy support
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Deadlines come from per-request contexts, so no client-wide Timeout here.
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 16,
			},
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	metadataURL := opts.MetadataURL
	if metadataURL == "" {
		metadataURL = common.DefaultMetadataURL
	}
	tileBaseURL := opts.TileBaseURL
	if tileBaseURL == "" {
		tileBaseURL = common.DefaultTileBaseURL
	}

	return &Client{
		httpClient:  httpClient,
		metadataURL: metadataURL,
		tileBaseURL: tileBaseURL,
		timeout:     timeout,
		rateLimit:   opts.RateLimit,
	}
}

// latestResponse is the metadata document published next to the tiles
type latestResponse struct {
	Date string `json:"date"`
	File string `json:"file,omitempty"`
}

// LatestTimestamp resolves the timestamp of the newest full-disk snapshot
func (c *Client) LatestTimestamp(ctx context.Context) (time.Time, error) {
	data, err := c.get(ctx, c.metadataURL, maxMetadataBytes)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch metadata: %w", err)
	}

	var latest latestResponse
	if err := json.Unmarshal(data, &latest); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", common.ErrParse, err)
	}
	if latest.Date == "" {
		return time.Time{}, fmt.Errorf("%w: missing \"date\" field", common.ErrParse)
	}

	ts, err := common.ParseISO(latest.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", common.ErrParse, latest.Date, err)
	}
	return ts, nil
}

// TileURL returns the address this client fetches coord from
func (c *Client) TileURL(spec common.GridSpec, ts time.Time, coord common.TileCoordinate) string {
	return TileURL(c.tileBaseURL, spec, ts, coord)
}

// FetchTile downloads the encoded bytes of one tile. Decoding is left to the caller.
func (c *Client) FetchTile(ctx context.Context, spec common.GridSpec, ts time.Time, coord common.TileCoordinate) ([]byte, error) {
	if err := spec.ValidateCoordinate(coord); err != nil {
		return nil, err
	}
	data, err := c.get(ctx, c.TileURL(spec, ts, coord), maxTileBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile: %w", err)
	}
	return data, nil
}

// get performs one GET bounded by the per-request timeout, including the body read
func (c *Client) get(ctx context.Context, url string, limit int64) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", common.ErrNetwork, err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, common.ClassifyTransport(err, ctx)
	}
	defer resp.Body.Close()

	if c.rateLimit.CheckResponse(common.ProviderHimawari, resp) {
		return nil, fmt.Errorf("%w: %w: HTTP %d", common.ErrNetwork, common.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: request failed with status: %d", common.ErrNetwork, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, common.ClassifyTransport(err, ctx)
	}
	return data, nil
}
