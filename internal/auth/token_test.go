package auth

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTestToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": expiry.Unix(),
		"sub": "user-123",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestNormalizeTokenKeys(t *testing.T) {
	raw := map[string]json.RawMessage{
		"accessToken":  json.RawMessage(`"a"`),
		"idToken":      json.RawMessage(`"i"`),
		"refreshToken": json.RawMessage(`"r"`),
		"expires_in":   json.RawMessage(`3600`),
	}

	fixed := NormalizeTokenKeys(raw)

	assert.Contains(t, fixed, "access_token")
	assert.Contains(t, fixed, "id_token")
	assert.Contains(t, fixed, "refresh_token")
	assert.Contains(t, fixed, "expires_in")
	assert.NotContains(t, fixed, "accessToken")
	assert.NotContains(t, fixed, "idToken")
	assert.NotContains(t, fixed, "refreshToken")
}

func TestParseTokenResponseVendorKeys(t *testing.T) {
	body := []byte(`{"accessToken":"a","refreshToken":"r","idToken":"i"}`)

	bundle, err := ParseTokenResponse(body)
	require.NoError(t, err)

	assert.Equal(t, "a", bundle.AccessToken)
	assert.Equal(t, "r", bundle.RefreshToken)
	assert.Equal(t, "i", bundle.IDToken)
}

func TestParseTokenResponseExpiresIn(t *testing.T) {
	body := []byte(`{"access_token":"a","expires_in":3600}`)

	bundle, err := ParseTokenResponse(body)
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().Add(time.Hour), bundle.Expiry, 5*time.Second)
}

func TestParseTokenResponseJWTExpiry(t *testing.T) {
	expiry := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	body, err := json.Marshal(map[string]string{"accessToken": signedTestToken(t, expiry)})
	require.NoError(t, err)

	bundle, err := ParseTokenResponse(body)
	require.NoError(t, err)

	assert.WithinDuration(t, expiry, bundle.Expiry, time.Second)
}

func TestParseTokenResponseInvalidJSON(t *testing.T) {
	_, err := ParseTokenResponse([]byte("not json"))
	assert.Error(t, err)
}

func TestTokenBundleExpired(t *testing.T) {
	var nilBundle *TokenBundle
	assert.True(t, nilBundle.Expired())

	assert.True(t, (&TokenBundle{}).Expired())

	// 没有过期时间的令牌视为有效
	assert.False(t, (&TokenBundle{AccessToken: "a"}).Expired())

	assert.False(t, (&TokenBundle{AccessToken: "a", Expiry: time.Now().Add(time.Hour)}).Expired())
	assert.True(t, (&TokenBundle{AccessToken: "a", Expiry: time.Now().Add(-time.Hour)}).Expired())

	// 一分钟内到期的令牌提前视为过期
	assert.True(t, (&TokenBundle{AccessToken: "a", Expiry: time.Now().Add(30 * time.Second)}).Expired())
}
