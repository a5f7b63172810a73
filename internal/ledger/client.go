// Package ledger is the HTTP/JSON client for the remote CRM and billing ledger.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"psync/internal/logger"
	"psync/pkg/services"
)

const (
	DefaultBaseURL    = "https://services.leadconnectorhq.com"
	DefaultAPIVersion = "2021-07-28"

	defaultTimeout = 30 * time.Second
	slowTimeout    = 60 * time.Second
)

// Config holds the ledger connection settings.
type Config struct {
	BaseURL    string
	APIKey     string
	LocationID string
	Version    string
	// Timeout bounds simple reads; creates, searches and payment posts get SlowTimeout.
	Timeout     time.Duration
	SlowTimeout time.Duration
	HTTPClient  *http.Client
}

var _ services.Ledger = (*Client)(nil)

// Client talks to the ledger API.
type Client struct {
	baseURL     string
	apiKey      string
	locationID  string
	version     string
	timeout     time.Duration
	slowTimeout time.Duration
	http        *http.Client
	log         zerolog.Logger
}

// NewClient validates cfg and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	const op = "NewClient"

	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: ledger api key is empty", op)
	}
	if strings.TrimSpace(cfg.LocationID) == "" {
		return nil, fmt.Errorf("%s: ledger location id is empty", op)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%s: invalid base url: %w", op, err)
	}
	if cfg.Version == "" {
		cfg.Version = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.SlowTimeout <= 0 {
		cfg.SlowTimeout = slowTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		locationID:  cfg.LocationID,
		version:     cfg.Version,
		timeout:     cfg.Timeout,
		slowTimeout: cfg.SlowTimeout,
		http:        hc,
		log:         logger.WithComponent("ledger"),
	}, nil
}

// LocationID returns the ledger location the client is scoped to.
func (c *Client) LocationID() string {
	return c.locationID
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	out    any
	slow   bool
}

// do performs one request under its own timeout and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, cl call) error {
	timeout := c.timeout
	if cl.slow {
		timeout = c.slowTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := c.baseURL + cl.path
	if len(cl.query) > 0 {
		endpoint += "?" + cl.query.Encode()
	}

	var reader io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", cl.op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", cl.op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Version", c.version)
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug().
		Str("op", cl.op).
		Str("method", cl.method).
		Str("path", cl.path).
		Msg("Calling ledger")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &APIError{Op: cl.op, Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Op: cl.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: reading body: %v", ErrNetwork, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(cl.op, resp.StatusCode, body)
		c.log.Debug().
			Str("op", cl.op).
			Int("status", resp.StatusCode).
			Str("body", apiErr.Body).
			Msg("Ledger call failed")
		return apiErr
	}

	if cl.out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, cl.out); err != nil {
		return &APIError{Op: cl.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: decoding body: %v", ErrUnexpectedStatus, err)}
	}
	return nil
}

func (c *Client) locationQuery() url.Values {
	return url.Values{
		"altId":   {c.locationID},
		"altType": {"location"},
	}
}
