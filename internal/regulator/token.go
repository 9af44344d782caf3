package regulator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	pkgerrors "aeroledger/pkg/domain-errors"
)

// TokenProvider hands out a valid bearer token for regulator calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// refreshMargin is how long before expiry the cached token is refreshed.
const refreshMargin = 60 * time.Second

// defaultExpirySeconds applies when the SSO response omits expires_in and
// the access token carries no readable exp claim.
const defaultExpirySeconds = 1800

// SSOTokenProvider obtains password-grant tokens from the regulator's SSO
// and caches them process-wide. Concurrent callers hitting an expired cache
// share one refresh via singleflight instead of stampeding the SSO.
type SSOTokenProvider struct {
	http     *http.Client
	tokenURL string
	clientID string
	username string
	password string
	log      *slog.Logger

	group singleflight.Group
	mu    sync.Mutex
	token string
	until time.Time

	now func() time.Time
}

func NewSSOTokenProvider(httpClient *http.Client, tokenURL, clientID, username, password string, log *slog.Logger) *SSOTokenProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &SSOTokenProvider{
		http:     httpClient,
		tokenURL: tokenURL,
		clientID: clientID,
		username: username,
		password: password,
		log:      log,
		now:      time.Now,
	}
}

func (p *SSOTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.token != "" && p.now().Before(p.until.Add(-refreshMargin)) {
		token := p.token
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	result, err, _ := p.group.Do("token", func() (any, error) {
		return p.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (p *SSOTokenProvider) refresh(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("client_id", p.clientID)
	form.Set("username", p.username)
	form.Set("password", p.password)
	form.Set("grant_type", "password")

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return "", fmt.Errorf("build token request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		start := p.now()
		res, err := p.http.Do(req)
		if err != nil {
			lastErr = err
			p.log.Warn("sso token attempt failed", "attempt", attempt, "error", err)
		} else {
			body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
			res.Body.Close()
			if res.StatusCode >= 200 && res.StatusCode < 300 {
				token, ttl, err := parseTokenResponse(body)
				if err != nil {
					return "", err
				}
				p.mu.Lock()
				p.token = token
				p.until = p.now().Add(ttl)
				p.mu.Unlock()
				p.log.Info("sso token obtained",
					"attempt", attempt,
					"duration_ms", p.now().Sub(start).Milliseconds(),
					"expires_in_s", int(ttl.Seconds()))
				return token, nil
			}
			lastErr = fmt.Errorf("sso status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
			p.log.Warn("sso token attempt failed",
				"attempt", attempt,
				"status", res.StatusCode,
				"duration_ms", p.now().Sub(start).Milliseconds())
		}
		if attempt < maxAttempts {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return "", err
			}
		}
	}
	return "", pkgerrors.Wrap(lastErr, pkgerrors.CodeRemoteSync, "sso token retries exhausted")
}

// parseTokenResponse extracts the access token and its lifetime. The
// lifetime comes from expires_in when present, else from the token's own
// exp claim (read without signature verification, the value only schedules
// our refresh), else the documented default.
func parseTokenResponse(body []byte) (string, time.Duration, error) {
	var payload struct {
		AccessToken string      `json:"access_token"`
		ExpiresIn   json.Number `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", 0, fmt.Errorf("decode sso response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", 0, fmt.Errorf("sso response without access_token")
	}
	if seconds, err := payload.ExpiresIn.Int64(); err == nil && seconds > 0 {
		return payload.AccessToken, time.Duration(seconds) * time.Second, nil
	}
	if ttl, ok := expiryFromJWT(payload.AccessToken); ok {
		return payload.AccessToken, ttl, nil
	}
	return payload.AccessToken, defaultExpirySeconds * time.Second, nil
}

func expiryFromJWT(token string) (time.Duration, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	ttl := time.Until(exp.Time)
	if ttl <= 0 {
		return 0, false
	}
	return ttl, true
}
