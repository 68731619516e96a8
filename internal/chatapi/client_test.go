// ABOUTME: Tests for the REST client against an httptest server
// ABOUTME: Covers auth headers, gateway discovery, replies, and error mapping

package chatapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetGatewayBot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/gateway/bot", r.URL.Path)
		assert.Equal(t, "Bot tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(GatewayInfo{URL: "wss://gw.test", Shards: 2})
	}))
	defer srv.Close()

	c := New("tok-123", WithBaseURL(srv.URL))
	info, err := c.GetGatewayBot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wss://gw.test", info.URL)
	assert.Equal(t, 2, info.Shards)
}

func TestGetGatewayBotDefaultsShards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GatewayInfo{URL: "wss://gw.test"})
	}))
	defer srv.Close()

	info, err := New("t", WithBaseURL(srv.URL)).GetGatewayBot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, info.Shards)
}

func TestSay(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/channels/chan-9/messages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(Message{ID: "m1", ChannelID: "chan-9", Content: gotBody["content"]})
	}))
	defer srv.Close()

	c := New("t", WithBaseURL(srv.URL))
	require.NoError(t, c.Say(context.Background(), "chan-9", "hello there"))
	assert.Equal(t, "hello there", gotBody["content"])
}

func TestWhisperOpensDMChannel(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/users/@me/channels":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "user-4", body["recipient_id"])
			json.NewEncoder(w).Encode(map[string]string{"id": "dm-1"})
		case "/channels/dm-1/messages":
			json.NewEncoder(w).Encode(Message{ID: "m2"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New("t", WithBaseURL(srv.URL))
	require.NoError(t, c.Whisper(context.Background(), "user-4", "psst"))
	assert.Equal(t, []string{"/users/@me/channels", "/channels/dm-1/messages"}, paths)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUnauthorized)
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUnauthorized)
			},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrRateLimited)
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := New("t", WithBaseURL(srv.URL)).Say(context.Background(), "c", "m")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := New("t", WithBaseURL(srv.URL)).Say(context.Background(), "c", "m")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "3s")
}
