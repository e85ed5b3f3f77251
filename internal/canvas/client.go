// Package canvas fetches courses, assignments and calendar events from the
// Canvas LMS REST API.
package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tomnomnom/linkheader"

	"github.com/starford/coursevault/internal/apperr"
)

const (
	// DefaultBaseURL is the Canvas instance used when none is configured.
	DefaultBaseURL = "https://canvas.illinois.edu"

	perPage  = "100"
	maxPages = 100
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	PastDays   int // calendar window before now
	FutureDays int // calendar window after now
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client talks to one Canvas instance with a bearer token.
type Client struct {
	base       *url.URL
	token      string
	http       *http.Client
	pastDays   int
	futureDays int
	now        func() time.Time
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("canvas: invalid base url %q", raw)
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("canvas: api token is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	c := &Client{
		base:       base,
		token:      opts.Token,
		http:       hc,
		pastDays:   opts.PastDays,
		futureDays: opts.FutureDays,
		now:        opts.Now,
	}
	if c.pastDays <= 0 {
		c.pastDays = 30
	}
	if c.futureDays <= 0 {
		c.futureDays = 365
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// endpoint builds an absolute API URL for path with query.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", perPage)
	u.RawQuery = query.Encode()
	return u.String()
}

// getAll follows Link rel="next" pagination, decoding every page into a
// slice of T.
func getAll[T any](ctx context.Context, c *Client, first string) ([]T, error) {
	var out []T
	next := first
	for page := 0; next != "" && page < maxPages; page++ {
		var batch []T
		link, err := c.getJSON(ctx, next, &batch)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		next = link
	}
	return out, nil
}

// getJSON performs one GET and returns the next-page URL, if any.
func (c *Client) getJSON(ctx context.Context, rawURL string, target any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("canvas: build request: %w: %w", apperr.ErrPermanentSource, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", newAPIError(resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("canvas: decode %s: %w: %w", req.URL.Path, apperr.ErrPermanentSource, err)
	}
	return nextLink(resp.Header.Values("Link")...), nil
}

// nextLink returns the rel="next" target of the Link headers, if any.
// A rel may list several space-separated relation types.
func nextLink(headers ...string) string {
	for _, l := range linkheader.ParseMultiple(headers) {
		for _, rel := range strings.Fields(l.Rel) {
			if strings.EqualFold(rel, "next") {
				return l.URL
			}
		}
	}
	return ""
}
