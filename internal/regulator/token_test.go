package regulator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ssoServer(t *testing.T, hits *atomic.Int64, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.FormValue("grant_type"))
		assert.Equal(t, "client-api-diariodebordo", r.FormValue("client_id"))
		body := map[string]any{"access_token": "tok-1"}
		if expiresIn > 0 {
			body["expires_in"] = expiresIn
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestTokenIsCachedUntilRefreshMargin(t *testing.T) {
	var hits atomic.Int64
	srv := ssoServer(t, &hits, 1800)
	defer srv.Close()

	p := NewSSOTokenProvider(srv.Client(), srv.URL, "client-api-diariodebordo", "u", "p", slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Now()
	p.now = func() time.Time { return now }

	ctx := context.Background()
	tok, err := p.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	_, err = p.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load(), "second call must hit the cache")

	// Just inside the 60s refresh margin: the cache no longer counts.
	now = now.Add(1800*time.Second - 30*time.Second)
	_, err = p.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestTokenDefaultsExpiryWhenAbsent(t *testing.T) {
	var hits atomic.Int64
	srv := ssoServer(t, &hits, 0)
	defer srv.Close()

	p := NewSSOTokenProvider(srv.Client(), srv.URL, "client-api-diariodebordo", "u", "p", slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Now()
	p.now = func() time.Time { return now }

	_, err := p.Token(context.Background())
	require.NoError(t, err)

	// Still comfortably before the 1800s default minus margin.
	now = now.Add(1500 * time.Second)
	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(20 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 1800})
	}))
	defer srv.Close()

	p := NewSSOTokenProvider(srv.Client(), srv.URL, "client-api-diariodebordo", "u", "p", slog.New(slog.NewTextHandler(io.Discard, nil)))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := p.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok-1", tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), hits.Load(), "singleflight must collapse concurrent refreshes")
}

func TestTokenExhaustionReturnsRemoteSync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewSSOTokenProvider(srv.Client(), srv.URL, "client-api-diariodebordo", "u", "p", slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := p.Token(context.Background())
	require.Error(t, err)
}
