//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/oshokin/nursery-speaker/internal/config"
	"github.com/oshokin/nursery-speaker/internal/domain/nursery"
)

// maxBodySize caps the response body read from the command source.
const maxBodySize = 64 << 10

var (
	// errAddressRequired is returned when the command source URL is missing.
	errAddressRequired = errors.New("address must be provided")
	// errUnexpectedStatus is returned for responses other than 200 and 404.
	errUnexpectedStatus = errors.New("unexpected status")
	// errMissingCreateDate is returned for payloads without a creation timestamp.
	errMissingCreateDate = errors.New("create_date is missing")
)

// Client fetches the latest unacknowledged command from the command source.
type Client struct {
	// address is the command endpoint.
	address string
	// user and password authenticate every request with HTTP basic auth.
	user, password string
	// userAgent identifies this device to the command source.
	userAgent string

	// httpClient performs the requests.
	httpClient *http.Client
	// callTimeout is the default timeout for individual requests.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for requests.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithCredentials sets the basic auth credentials.
func WithCredentials(user, password string) Option {
	return func(c *Client) {
		c.user = user
		c.password = password
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// commandPayload is the JSON body returned by the command source.
type commandPayload struct {
	// Mode is the requested mode name.
	Mode string `json:"mode"`
	// Level is the optional ambient level.
	Level *int `json:"level"`
	// CreateDate is the creation time in epoch seconds, possibly fractional.
	CreateDate *float64 `json:"create_date"`
}

// NewClient creates a client for the command endpoint at address.
func NewClient(address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		address:     address,
		httpClient:  new(http.Client),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// FetchCommand asks the command source for the latest unacknowledged command.
// A nil command with a nil error means there is nothing new.
func (c *Client) FetchCommand(ctx context.Context) (*nursery.Command, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.address, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	if c.user != "" || c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNoContent:
		return nil, nil //nolint:nilnil // Nothing pending is not an error.
	default:
		return nil, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	var payload commandPayload
	if err = json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if payload.CreateDate == nil {
		return nil, errMissingCreateDate
	}

	cmd, err := nursery.ParseCommand(payload.Mode, payload.Level, epochToTime(*payload.CreateDate))
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}

	return &cmd, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// epochToTime converts fractional epoch seconds to a time.
func epochToTime(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)

	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}
