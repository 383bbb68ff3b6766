package tado

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func newAuthServer(t *testing.T, resp tokenResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, apiHandler http.Handler, opts ...Option) *Client {
	t.Helper()
	authSrv := newAuthServer(t, tokenResponse{AccessToken: "token-1", ExpiresIn: 600})
	apiSrv := httptest.NewServer(apiHandler)
	t.Cleanup(apiSrv.Close)

	opts = append([]Option{WithBaseURLs(apiSrv.URL, authSrv.URL)}, opts...)
	return NewClient("initial-refresh", opts...)
}

func TestInitResolvesHomeID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.Write([]byte(`{"homes":[{"id":1234,"name":"Test Home"}]}`))
	}))

	require.NoError(t, c.Init(context.Background()))
	assert.Equal(t, "/homes/1234/zones", c.homePath("zones"))
}

func TestInitFailsWithoutHomes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"homes":[]}`))
	}))

	err := c.Init(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestRateLimitHeadersCapturedOnEveryResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("RateLimit-Policy", `"hour";q=100;w=3600`)
		w.Header().Set("RateLimit", `"hour";r=73`)
		w.Write([]byte(`{"presence":"HOME","presenceLocked":false}`))
	}))

	_, err := c.HomeState(context.Background())
	require.NoError(t, err)

	rl := c.RateLimit()
	assert.Equal(t, 100, rl.Limit)
	assert.Equal(t, 73, rl.Remaining)
}

func TestRateLimitCapturedEvenOnErrorResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("RateLimit", `"hour";r=0`)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.HomeState(context.Background())
	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 0, c.RateLimit().Remaining)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "401 maps to auth error",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				assert.ErrorAs(t, err, &authErr)
			},
		},
		{
			name:   "403 maps to auth error",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				assert.ErrorAs(t, err, &authErr)
			},
		},
		{
			name:   "429 maps to rate limit error",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				var rateErr *RateLimitError
				assert.ErrorAs(t, err, &rateErr)
			},
		},
		{
			name:   "500 maps to communication error",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var commErr *CommunicationError
				assert.ErrorAs(t, err, &commErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := c.Zones(context.Background())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestMalformedZoneStateIsSkipped(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"zoneStates":{
			"1": {"setting":{"type":"HEATING","power":"ON","temperature":{"celsius":21.5}}},
			"2": {"setting":"not-an-object"},
			"oops": {}
		}}`))
	}))

	states, err := c.ZoneStates(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, 21.5, states[1].Setting.Temperature.Celsius)
}

func TestTokenRotationFiresCallback(t *testing.T) {
	authSrv := newAuthServer(t, tokenResponse{
		AccessToken:  "token-2",
		RefreshToken: "rotated-refresh",
		ExpiresIn:    600,
	})
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"presence":"HOME"}`))
	}))
	t.Cleanup(apiSrv.Close)

	var rotated string
	c := NewClient("initial-refresh",
		WithBaseURLs(apiSrv.URL, authSrv.URL),
		WithTokenRotationCallback(func(token string) { rotated = token }),
	)

	_, err := c.HomeState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotated-refresh", rotated)
}

func TestAuthRejectionMapsToAuthError(t *testing.T) {
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(authSrv.Close)

	c := NewClient("expired-refresh", WithBaseURLs("http://unused.invalid", authSrv.URL))

	_, err := c.HomeState(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}
