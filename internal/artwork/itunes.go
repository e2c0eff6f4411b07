// Package artwork fetches album cover art from the iTunes Search API, with a
// fallback to artwork URLs the manager already knows about. Lookups are
// best-effort: a miss is reported as ErrNoArtwork and never escalates.
package artwork

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoArtwork is returned when no cover image could be located.
var ErrNoArtwork = errors.New("no artwork found")

const searchURL = "https://itunes.apple.com/search"

// Client looks up cover art.
type Client struct {
	httpClient *http.Client
	searchURL  string
	log        *slog.Logger
}

// New creates an artwork client.
func New(log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		searchURL:  searchURL,
		log:        log.With("component", "artwork"),
	}
}

// Lookup finds the highest-resolution album cover for artist+album.
func (c *Client) Lookup(ctx context.Context, artist, album string) ([]byte, error) {
	params := url.Values{
		"term":   {artist + " " + album},
		"entity": {"album"},
		"limit":  {"1"},
	}

	searchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(searchCtx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrNoArtwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result struct {
		ResultCount int `json:"resultCount"`
		Results     []struct {
			ArtworkURL100 string `json:"artworkUrl100"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode search: %v", ErrNoArtwork, err)
	}
	if result.ResultCount == 0 || len(result.Results) == 0 || result.Results[0].ArtworkURL100 == "" {
		return nil, fmt.Errorf("%w: %s - %s", ErrNoArtwork, artist, album)
	}

	// The 100x100 thumbnail URL serves full resolution when rewritten.
	full := strings.Replace(result.Results[0].ArtworkURL100, "100x100", "3000x3000", 1)
	return c.FetchURL(ctx, full)
}

// FetchURL downloads image bytes from a known artwork URL, e.g. the cover
// URL the manager reports for an album.
func (c *Client) FetchURL(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch image: %v", ErrNoArtwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: image returned %d", ErrNoArtwork, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read image: %v", ErrNoArtwork, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image body", ErrNoArtwork)
	}
	return data, nil
}
