package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/apierr"
)

// CacheEntry 单个 URL 的缓存响应
type CacheEntry struct {
	Payload  json.RawMessage `json:"payload"`
	CachedAt time.Time       `json:"cached_at"`
}

// Session 单个服务的认证会话
// 持有令牌、cookie 会话和按 URL 的响应缓存
// 实现 oauth2.TokenSource，REST 客户端通过 oauth2.Transport 复用
type Session struct {
	service Service
	user    User
	config  ServiceConfig
	logger  *zap.Logger

	client *http.Client

	mu     chan struct{} // 容量 1，串行化登录和刷新
	token  *TokenBundle
	userID string
	cache  map[string]CacheEntry
}

// UserID 返回登录流程中得到的用户标识，未登录过则为空
func (s *Session) UserID() string {
	return s.userID
}

// NewSession 创建认证会话
func NewSession(service Service, user User, logger *zap.Logger) *Session {
	jar, _ := cookiejar.New(nil)
	s := &Session{
		service: service,
		user:    user,
		config:  service.Config(),
		logger:  logger,
		client: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		mu:    make(chan struct{}, 1),
		cache: make(map[string]CacheEntry),
	}
	return s
}

// Service 返回会话所属服务
func (s *Session) Service() Service {
	return s.service
}

// User 返回会话用户
func (s *Session) User() User {
	return s.user
}

// HTTPClient 返回会话底层 HTTP 客户端
// 测试时可替换 Transport
func (s *Session) HTTPClient() *http.Client {
	return s.client
}

func (s *Session) lock() {
	s.mu <- struct{}{}
}

func (s *Session) unlock() {
	<-s.mu
}

// Token 实现 oauth2.TokenSource
// 令牌过期时先刷新再返回
func (s *Session) Token() (*oauth2.Token, error) {
	s.lock()
	defer s.unlock()

	if s.token == nil || s.token.Expired() {
		if err := s.refreshLocked(context.Background()); err != nil {
			return nil, err
		}
	}
	return &oauth2.Token{
		AccessToken:  s.token.AccessToken,
		RefreshToken: s.token.RefreshToken,
		Expiry:       s.token.Expiry,
	}, nil
}

// AccessToken 返回当前访问令牌，可能为空
func (s *Session) AccessToken() string {
	s.lock()
	defer s.unlock()
	if s.token == nil {
		return ""
	}
	return s.token.AccessToken
}

// Expired 当前令牌是否过期
func (s *Session) Expired() bool {
	s.lock()
	defer s.unlock()
	return s.token.Expired()
}

// SetToken 恢复持久化的令牌
func (s *Session) SetToken(token *TokenBundle) {
	s.lock()
	defer s.unlock()
	s.token = token
}

// TokenSnapshot 返回令牌副本用于持久化
func (s *Session) TokenSnapshot() *TokenBundle {
	s.lock()
	defer s.unlock()
	if s.token == nil {
		return nil
	}
	copied := *s.token
	return &copied
}

// Login 完整登录，获取全新令牌
func (s *Session) Login(ctx context.Context) error {
	s.lock()
	defer s.unlock()
	return s.loginLocked(ctx)
}

// Refresh 刷新访问令牌
func (s *Session) Refresh(ctx context.Context) error {
	s.lock()
	defer s.unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) loginLocked(ctx context.Context) error {
	verifier := randomVerifier()
	challenge := codeChallenge(verifier)

	authURL, err := url.Parse(s.config.AuthURL)
	if err != nil {
		return fmt.Errorf("parse authorization url: %w", err)
	}
	query := url.Values{}
	query.Set("redirect_uri", s.config.RedirectURI)
	query.Set("nonce", strings.ReplaceAll(time.Now().UTC().Format("20060102150405.000000"), ".", ""))
	query.Set("response_type", "code id_token")
	query.Set("code_challenge", challenge)
	query.Set("code_challenge_method", "s256")
	query.Set("scope", s.config.Scope)
	query.Set("client_id", s.config.ClientID)
	query.Set("prompt", "login")
	authURL.RawQuery = query.Encode()

	s.logger.Info("performing web login", zap.String("service", s.service.String()))

	terminal, err := s.webAuth(ctx, authURL.String())
	if err != nil {
		return err
	}

	params := terminal.Query()
	bundle := &TokenBundle{
		Code:        params.Get("code"),
		IDToken:     params.Get("id_token"),
		AccessToken: params.Get("access_token"),
	}
	if bundle.Code == "" {
		return apierr.NewTemporaryAuthenticationError(
			"token could not be fetched due to temporary server failure: no authorization code in response")
	}

	token, err := s.fetchTokens(ctx, bundle.Code, verifier)
	if err != nil {
		return err
	}
	s.token = token
	s.logger.Info("web login successful", zap.String("service", s.service.String()))
	return nil
}

// refreshLocked 刷新访问令牌
// 刷新端点拒绝或不可用时回退到完整登录
func (s *Session) refreshLocked(ctx context.Context) error {
	if s.config.RefreshURL == "" {
		return apierr.NewAuthenticationError("refresh endpoint not configured for service %s", s.service)
	}
	if !strings.HasPrefix(s.config.RefreshURL, "https://") {
		return apierr.NewAuthenticationError("refresh endpoint %s is not using https", s.config.RefreshURL)
	}
	if s.token == nil || s.token.RefreshToken == "" {
		s.logger.Info("no refresh token available, performing full login")
		return s.loginLocked(ctx)
	}

	body, err := json.Marshal(map[string]string{"token": s.token.RefreshToken})
	if err != nil {
		return fmt.Errorf("encode refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.RefreshURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("refresh request failed, performing full login", zap.Error(err))
		return s.loginLocked(ctx)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return apierr.NewTemporaryAuthenticationError(
				"token could not be refreshed due to temporary server failure: %v", err)
		}
		token, err := ParseTokenResponse(payload)
		if err != nil {
			return err
		}
		if token.RefreshToken == "" {
			token.RefreshToken = s.token.RefreshToken
		}
		s.token = token
		s.logger.Debug("access token refreshed", zap.String("service", s.service.String()),
			zap.Time("expiry", token.Expiry))
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		s.logger.Info("refresh token rejected, performing full login")
		return s.loginLocked(ctx)
	default:
		return apierr.NewTemporaryAuthenticationError(
			"token could not be refreshed due to temporary server failure: status %d", resp.StatusCode)
	}
}

// fetchTokens 用授权码换取令牌
func (s *Session) fetchTokens(ctx context.Context, code, verifier string) (*TokenBundle, error) {
	if s.config.ExchangeURL == "" {
		return nil, apierr.NewAuthenticationError("exchange endpoint not configured for service %s", s.service)
	}
	if !strings.HasPrefix(s.config.ExchangeURL, "https://") {
		return nil, apierr.NewAuthenticationError("exchange endpoint %s is not using https", s.config.ExchangeURL)
	}

	body, err := json.Marshal(map[string]string{
		"redirectUri": s.config.RedirectURI,
		"code":        code,
		"verifier":    verifier,
	})
	if err != nil {
		return nil, fmt.Errorf("encode exchange request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.ExchangeURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apierr.NewTemporaryAuthenticationError(
			"token could not be fetched due to temporary server failure: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.NewTemporaryAuthenticationError(
			"token could not be fetched due to temporary server failure: status %d", resp.StatusCode)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.NewTemporaryAuthenticationError(
			"token could not be fetched due to temporary server failure: %v", err)
	}
	return ParseTokenResponse(payload)
}

// CachedResponse 读取 URL 的缓存响应
func (s *Session) CachedResponse(rawURL string) (CacheEntry, bool) {
	s.lock()
	defer s.unlock()
	entry, ok := s.cache[rawURL]
	return entry, ok
}

// StoreResponse 缓存 URL 的响应
func (s *Session) StoreResponse(rawURL string, payload json.RawMessage) {
	s.lock()
	defer s.unlock()
	s.cache[rawURL] = CacheEntry{Payload: payload, CachedAt: time.Now()}
}

// InvalidateResponse 移除 URL 的缓存响应
func (s *Session) InvalidateResponse(rawURL string) {
	s.lock()
	defer s.unlock()
	delete(s.cache, rawURL)
}

// CacheSnapshot 返回缓存副本用于持久化
func (s *Session) CacheSnapshot() map[string]CacheEntry {
	s.lock()
	defer s.unlock()
	snapshot := make(map[string]CacheEntry, len(s.cache))
	for key, entry := range s.cache {
		snapshot[key] = entry
	}
	return snapshot
}

// RestoreCache 恢复持久化的缓存
func (s *Session) RestoreCache(entries map[string]CacheEntry) {
	s.lock()
	defer s.unlock()
	for key, entry := range entries {
		s.cache[key] = entry
	}
}

// randomVerifier 生成 16 位大写字母和数字的 PKCE verifier
func randomVerifier() string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}

// codeChallenge 计算 PKCE S256 challenge
func codeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// IsAuthenticationError 是否为不可重试的认证错误
func IsAuthenticationError(err error) bool {
	var authErr *apierr.AuthenticationError
	return errors.As(err, &authErr)
}
