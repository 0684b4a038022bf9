package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/apierr"
)

const refreshURL = "https://mysmob.api.connect.skoda-auto.cz/api/v1/authentication/refresh-token?tokenType=CONNECT"

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(ServiceMySkoda, User{Username: "user@example.com", Password: "secret"}, zap.NewNop())
	httpmock.ActivateNonDefault(s.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return s
}

func TestRefreshUpdatesAccessToken(t *testing.T) {
	s := newTestSession(t)
	s.SetToken(&TokenBundle{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
	})

	fresh := signedTestToken(t, time.Now().Add(time.Hour))
	httpmock.RegisterResponder("POST", refreshURL,
		httpmock.NewStringResponder(200, `{"accessToken":"`+fresh+`"}`))

	require.NoError(t, s.Refresh(context.Background()))

	assert.Equal(t, fresh, s.AccessToken())
	assert.False(t, s.Expired())
	// 刷新响应没有新的刷新令牌时保留旧的
	assert.Equal(t, "refresh-1", s.TokenSnapshot().RefreshToken)
}

func TestRefreshServerErrorIsTemporary(t *testing.T) {
	s := newTestSession(t)
	s.SetToken(&TokenBundle{AccessToken: "stale", RefreshToken: "refresh-1"})

	httpmock.RegisterResponder("POST", refreshURL, httpmock.NewStringResponder(500, ""))

	err := s.Refresh(context.Background())
	var tempErr *apierr.TemporaryAuthenticationError
	assert.True(t, errors.As(err, &tempErr))
}

func TestRefreshRejectedFallsBackToLogin(t *testing.T) {
	s := newTestSession(t)
	s.SetToken(&TokenBundle{AccessToken: "stale", RefreshToken: "refresh-1"})

	httpmock.RegisterResponder("POST", refreshURL, httpmock.NewStringResponder(401, ""))
	httpmock.RegisterResponder("GET", "https://identity.vwgroup.io/oidc/v1/authorize",
		httpmock.NewStringResponder(500, ""))

	err := s.Refresh(context.Background())
	var retrievalErr *apierr.RetrievalError
	assert.True(t, errors.As(err, &retrievalErr))

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["POST "+refreshURL])
	assert.Equal(t, 1, info["GET https://identity.vwgroup.io/oidc/v1/authorize"])
}

func TestRefreshWithoutRefreshTokenLogsIn(t *testing.T) {
	s := newTestSession(t)
	s.SetToken(&TokenBundle{AccessToken: "stale"})

	httpmock.RegisterResponder("GET", "https://identity.vwgroup.io/oidc/v1/authorize",
		httpmock.NewStringResponder(500, ""))

	err := s.Refresh(context.Background())
	assert.Error(t, err)

	// 没有刷新令牌就不应该碰刷新端点
	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 0, info["POST "+refreshURL])
	assert.Equal(t, 1, info["GET https://identity.vwgroup.io/oidc/v1/authorize"])
}

func TestTokenSourceRefreshesExpired(t *testing.T) {
	s := newTestSession(t)
	s.SetToken(&TokenBundle{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
	})

	fresh := signedTestToken(t, time.Now().Add(time.Hour))
	httpmock.RegisterResponder("POST", refreshURL,
		httpmock.NewStringResponder(200, `{"accessToken":"`+fresh+`"}`))

	token, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, fresh, token.AccessToken)
}

func TestTokenSourceReturnsValidTokenWithoutNetwork(t *testing.T) {
	s := newTestSession(t)
	s.SetToken(&TokenBundle{AccessToken: "valid", Expiry: time.Now().Add(time.Hour)})

	token, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "valid", token.AccessToken)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestResponseCache(t *testing.T) {
	s := NewSession(ServiceMySkoda, User{Username: "u", Password: "p"}, zap.NewNop())

	_, ok := s.CachedResponse("https://example.com/a")
	assert.False(t, ok)

	s.StoreResponse("https://example.com/a", []byte(`{"x":1}`))
	entry, ok := s.CachedResponse("https://example.com/a")
	require.True(t, ok)
	assert.JSONEq(t, `{"x":1}`, string(entry.Payload))
	assert.WithinDuration(t, time.Now(), entry.CachedAt, time.Second)

	s.InvalidateResponse("https://example.com/a")
	_, ok = s.CachedResponse("https://example.com/a")
	assert.False(t, ok)
}

func TestIdentifierStableAcrossSessions(t *testing.T) {
	user := User{Username: "user@example.com", Password: "secret"}

	assert.Equal(t, Identifier(ServiceMySkoda, user), Identifier(ServiceMySkoda, user))
	assert.NotEqual(t, Identifier(ServiceMySkoda, user), Identifier(ServiceMySkoda2, user))
	assert.NotEqual(t, Identifier(ServiceMySkoda, user),
		Identifier(ServiceMySkoda, User{Username: "other@example.com", Password: "secret"}))
}

func TestTokenEndpointsRequireHTTPS(t *testing.T) {
	s := newTestSession(t)

	s.config.RefreshURL = "http://mysmob.api.connect.skoda-auto.cz/api/v1/authentication/refresh-token"
	s.SetToken(&TokenBundle{AccessToken: "t", RefreshToken: "r"})
	err := s.Refresh(context.Background())
	var authErr *apierr.AuthenticationError
	require.True(t, errors.As(err, &authErr))

	s.config.ExchangeURL = "http://mysmob.api.connect.skoda-auto.cz/api/v1/authentication/exchange-authorization-code"
	_, err = s.fetchTokens(context.Background(), "authcode-1", "verifier-1")
	require.True(t, errors.As(err, &authErr))

	// 明文端点在发出请求之前就要被拒绝
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}
