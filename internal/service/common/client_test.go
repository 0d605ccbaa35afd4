//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/nursery-speaker/internal/domain/nursery"
)

// newCommandServer serves body with status to requests carrying the expected credentials and User-Agent.
func newCommandServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "nanny" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if r.Header.Get("User-Agent") != "speaker/test" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

// newTestClient creates a client for srv with test credentials.
func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()

	opts = append([]Option{
		WithCredentials("nanny", "secret"),
		WithUserAgent("speaker/test"),
		WithHTTPClient(srv.Client()),
	}, opts...)

	c, err := NewClient(srv.URL, opts...)
	require.NoError(t, err)

	return c
}

// TestNewClient_ValidatesAddress verifies that NewClient rejects empty addresses.
func TestNewClient_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := NewClient("")
	require.ErrorIs(t, err, errAddressRequired)
	require.Nil(t, c)
}

// TestFetchCommand_Parses verifies decoding of the supported payloads.
func TestFetchCommand_Parses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		body  string
		kind  nursery.Kind
		level nursery.Level
		at    time.Time
	}{
		{
			name: "song",
			body: `{"mode":"SONG","create_date":1700000000}`,
			kind: nursery.KindSong,
			at:   time.Unix(1700000000, 0),
		},
		{
			name:  "whitenoise level 2",
			body:  `{"mode":"WHITENOISE","level":2,"create_date":1700000000.5}`,
			kind:  nursery.KindWhitenoise,
			level: nursery.Level2,
			at:    time.Unix(1700000000, int64(500*time.Millisecond)),
		},
		{
			name:  "whitenoise null level",
			body:  `{"mode":"whitenoise","level":null,"create_date":1700000000}`,
			kind:  nursery.KindWhitenoise,
			level: nursery.Level1,
			at:    time.Unix(1700000000, 0),
		},
		{
			name: "extra fields",
			body: `{"id":7,"mode":"END","acked":true,"create_date":1700000000}`,
			kind: nursery.KindEnd,
			at:   time.Unix(1700000000, 0),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, newCommandServer(t, http.StatusOK, tc.body))

			cmd, err := c.FetchCommand(context.Background())
			require.NoError(t, err)
			require.NotNil(t, cmd)
			require.Equal(t, tc.kind, cmd.Kind)
			require.Equal(t, tc.level, cmd.Level)
			require.True(t, tc.at.Equal(cmd.CreatedAt), "got %s", cmd.CreatedAt)
		})
	}
}

// TestFetchCommand_NothingPending verifies that 404 and 204 mean no command.
func TestFetchCommand_NothingPending(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusNotFound, http.StatusNoContent} {
		c := newTestClient(t, newCommandServer(t, status, ""))

		cmd, err := c.FetchCommand(context.Background())
		require.NoError(t, err)
		require.Nil(t, cmd)
	}
}

// TestFetchCommand_Errors verifies failures that contribute no command.
func TestFetchCommand_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		status int
		body   string
	}{
		"server error":      {http.StatusInternalServerError, ""},
		"malformed json":    {http.StatusOK, `{"mode":`},
		"unknown mode":      {http.StatusOK, `{"mode":"RESTART","create_date":1700000000}`},
		"invalid level":     {http.StatusOK, `{"mode":"WHITENOISE","level":3,"create_date":1700000000}`},
		"missing timestamp": {http.StatusOK, `{"mode":"SONG"}`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, newCommandServer(t, tc.status, tc.body))

			cmd, err := c.FetchCommand(context.Background())
			require.Error(t, err)
			require.Nil(t, cmd)
		})
	}
}

// TestFetchCommand_Unauthorized verifies that wrong credentials surface as a status error.
func TestFetchCommand_Unauthorized(t *testing.T) {
	t.Parallel()

	srv := newCommandServer(t, http.StatusOK, `{}`)
	c := newTestClient(t, srv, WithCredentials("nanny", "wrong"))

	_, err := c.FetchCommand(context.Background())
	require.ErrorIs(t, err, errUnexpectedStatus)
}

// TestFetchCommand_Timeout verifies that a hung source is abandoned after the call timeout.
func TestFetchCommand_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithCallTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = c.FetchCommand(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}
