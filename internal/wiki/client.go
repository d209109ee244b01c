// Package wiki searches Wikipedia for articles related to a story.
package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"
	"github.com/cenkalti/backoff/v4"
)

const articleBase = "https://en.wikipedia.org/wiki/"

// Client calls the MediaWiki search API.
type Client struct {
	endpoint   string
	httpClient *http.Client
	attempts   int
	newBackOff func() backoff.BackOff
	logg       *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackOff overrides the delay policy between attempts.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = fn }
}

// NewClient creates a search client for the api.php at endpoint.
func NewClient(endpoint string, attempts int, logg *logger.Logger, opts ...Option) *Client {
	if attempts < 1 {
		attempts = 1
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		attempts:   attempts,
		logg:       logg.WithFields("component", "wikipedia"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// Search returns up to limit articles matching query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.Reference, error) {
	params := url.Values{
		"action":   {"query"},
		"format":   {"json"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(limit)},
		"srprop":   {"snippet"},
	}
	target := c.endpoint + "?" + params.Encode()

	var body searchResponse
	operation := func() error {
		return c.get(ctx, target, &body)
	}
	notify := func(err error, wait time.Duration) {
		c.logg.Warn("wikipedia search failed, retrying", "error", err, "wait", wait)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.attempts-1)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, domain.Unavailable("wiki.Search", err)
	}

	refs := make([]domain.Reference, 0, len(body.Query.Search))
	for _, item := range body.Query.Search {
		refs = append(refs, domain.Reference{
			Title:   item.Title,
			Snippet: item.Snippet,
			URL:     articleBase + url.PathEscape(strings.ReplaceAll(item.Title, " ", "_")),
		})
	}
	return refs, nil
}

func (c *Client) get(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "storytopia-api/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("wikipedia returned %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode search response: %w", err))
	}
	return nil
}
