package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"shelly-exporter/internal/jsonval"
)

const maxBodyBytes = 1 << 20

// StatusError is returned for a non-2xx device response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Client issues bounded GETs against device endpoints and decodes the JSON body.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

func NewClient(httpClient *http.Client, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{http: httpClient, timeout: timeout}
}

func (c *Client) GetJSON(ctx context.Context, url string) (jsonval.Value, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	v, err := jsonval.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("read %s: %w", url, reqCtx.Err())
		}
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return v, nil
}
