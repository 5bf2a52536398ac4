package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// MaxContentBytes caps the body read by GetContent.
const MaxContentBytes int64 = 5 << 20

var (
	ErrorURLNotFound   = errors.New("URL not found")
	ErrContentTooLarge = errors.New("content too large")
)

// Content is a fetched document body.
type Content struct {
	URL         string
	ContentType string
	Body        []byte
}

// IsHTML reports whether the server labeled the content as HTML.
func (c *Content) IsHTML() bool {
	return c != nil && strings.Contains(strings.ToLower(c.ContentType), "html")
}

// GetContent fetches rawURL with client (the default client when nil).
// Only http and https are allowed and at most MaxContentBytes are read.
func GetContent(ctx context.Context, client *http.Client, rawURL string) (*Content, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q: %s", u.Scheme, rawURL)
	}

	if client == nil {
		if client, err = GetHTTPClient(); err != nil {
			return nil, fmt.Errorf("error creating HTTP client: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP Get request: %w", err)
	}
	req.Header.Set("User-Agent", clientAgent)
	req.Header.Set("Accept", "text/html, text/plain;q=0.9, */*;q=0.5")

	resp, err := client.Do(req) //nolint:gosec // URL scheme checked above
	if err != nil {
		return nil, fmt.Errorf("error fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrorURLNotFound
	}

	if resp.StatusCode != http.StatusOK {
		PrintHTTPResponse(resp)
		return nil, fmt.Errorf("error fetching content (status: %d - %s): %s", resp.StatusCode, resp.Status, rawURL)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading content from %s: %w", rawURL, err)
	}
	if int64(len(b)) > MaxContentBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrContentTooLarge, rawURL, MaxContentBytes)
	}

	return &Content{
		URL:         rawURL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        b,
	}, nil
}
