package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/apierr"
)

// TokenBundle 一次认证得到的令牌集合
// 字段名统一为 snake_case，厂商不同代际端点的命名差异在解析时归一
type TokenBundle struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Code         string    `json:"code,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Expired 访问令牌是否已过期（提前一分钟视为过期）
func (t *TokenBundle) Expired() bool {
	if t == nil || t.AccessToken == "" {
		return true
	}
	if t.Expiry.IsZero() {
		return false
	}
	return time.Until(t.Expiry) < time.Minute
}

// 厂商驼峰命名到规范命名的映射
var tokenKeyFixes = map[string]string{
	"accessToken":  "access_token",
	"idToken":      "id_token",
	"refreshToken": "refresh_token",
}

// NormalizeTokenKeys 把厂商风格的令牌字段名归一为 snake_case
// 归一后不残留任何驼峰命名的键
func NormalizeTokenKeys(raw map[string]json.RawMessage) map[string]json.RawMessage {
	fixed := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		if canonical, ok := tokenKeyFixes[key]; ok {
			key = canonical
		}
		fixed[key] = value
	}
	return fixed
}

// ParseTokenResponse 解析令牌响应体
// 先做字段名归一，再补全过期时间（优先 expires_in，否则取访问令牌 JWT 的 exp）
func ParseTokenResponse(body []byte) (*TokenBundle, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apierr.NewTemporaryAuthenticationError(
			"token could not be parsed due to temporary server failure: json could not be decoded")
	}
	raw = NormalizeTokenKeys(raw)

	fixed, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encode token response: %w", err)
	}

	var bundle TokenBundle
	if err := json.Unmarshal(fixed, &bundle); err != nil {
		return nil, apierr.NewTemporaryAuthenticationError(
			"token could not be parsed due to temporary server failure: unexpected token shape")
	}

	if expiresIn, ok := raw["expires_in"]; ok {
		var seconds int64
		if err := json.Unmarshal(expiresIn, &seconds); err == nil && seconds > 0 {
			bundle.Expiry = time.Now().Add(time.Duration(seconds) * time.Second)
		}
	}
	if bundle.Expiry.IsZero() && bundle.AccessToken != "" {
		if exp, ok := jwtExpiry(bundle.AccessToken); ok {
			bundle.Expiry = exp
		}
	}

	return &bundle, nil
}

// jwtExpiry 从 JWT 的 exp 声明提取过期时间，不校验签名
func jwtExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
