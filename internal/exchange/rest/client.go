package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// HTTPError carries the status and a bounded slice of the body for
// non-2xx responses so adapters can classify the failure.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// DecodeError marks a success response whose body could not be decoded
// as the expected JSON. The exchange answered, so this is a schema
// problem, not a transport one.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Client is a thin JSON GET client shared by all exchange adapters.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	log       *zap.Logger
}

func New(baseURL string, timeout time.Duration, userAgent string, log *zap.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// GetJSON issues a GET and decodes the body into out. Numbers are kept
// as json.Number so prices never pass through float64. Transport
// failures return the raw error; non-2xx responses return *HTTPError.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if c.log != nil {
			c.log.Debug("request failed",
				zap.String("url", u),
				zap.Int("status", resp.StatusCode))
		}
		return &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}
