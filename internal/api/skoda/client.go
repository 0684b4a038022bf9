package skoda

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/apierr"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/auth"
)

// BaseURL 厂商 REST API 根地址
const BaseURL = "https://mysmob.api.connect.skoda-auto.cz"

// 轮询端点
const (
	EndpointGarage          = "/api/v4/garage"
	EndpointVehicle         = "/api/v2/garage/vehicles/%s"
	EndpointVehicleStatus   = "/api/v2/vehicle-status/%s"
	EndpointDrivingRange    = "/api/v2/vehicle-status/%s/driving-range"
	EndpointCharging        = "/api/v1/charging/%s"
	EndpointAirConditioning = "/api/v2/air-conditioning/%s"
	EndpointPositions       = "/api/v1/maps/positions?vin=%s"
	EndpointMaintenance     = "/api/v3/vehicle-maintenance/vehicles/%s"
	EndpointUsers           = "/api/v1/users"
)

// 指令端点
const (
	EndpointLock               = "/api/v1/vehicle-access/%s/lock"
	EndpointUnlock             = "/api/v1/vehicle-access/%s/unlock"
	EndpointHonkAndFlash       = "/api/v1/vehicle-access/%s/honk-and-flash"
	EndpointWakeup             = "/api/v1/vehicle-wakeup/%s?applyRequestLimiter=true"
	EndpointClimateStart       = "/api/v2/air-conditioning/%s/start"
	EndpointClimateStop        = "/api/v2/air-conditioning/%s/stop"
	EndpointTargetTemperature  = "/api/v2/air-conditioning/%s/settings/target-temperature"
	EndpointWindowHeatingStart = "/api/v2/air-conditioning/%s/start-window-heating"
	EndpointWindowHeatingStop  = "/api/v2/air-conditioning/%s/stop-window-heating"
	EndpointChargingStart      = "/api/v1/charging/%s/start"
	EndpointChargingStop       = "/api/v1/charging/%s/stop"
	EndpointChargeLimit        = "/api/v1/charging/%s/set-charge-limit"
	EndpointChargingCurrent    = "/api/v1/charging/%s/set-charging-current"
	EndpointAutoUnlockPlug     = "/api/v1/charging/%s/set-auto-unlock-plug"
	EndpointSpinVerify         = "/api/v1/spin/verify"
)

// FetchOptions 单次数据拉取的控制项
type FetchOptions struct {
	// NoCache 为真时忽略缓存，总是发起网络请求
	NoCache bool
	// AllowEmpty 为真时响应体解码失败不视为错误
	AllowEmpty bool
	// AllowedErrors 不视为失败的状态码
	AllowedErrors []int
}

// Client 厂商 REST API 客户端
// 认证通过 oauth2.Transport 注入，缓存挂在会话上随令牌一起持久化
type Client struct {
	baseURL string
	session *auth.Session
	http    *http.Client
	logger  *zap.Logger
	maxAge  time.Duration
}

// NewClient 创建 REST 客户端
func NewClient(session *auth.Session, maxAge time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: BaseURL,
		session: session,
		http: &http.Client{
			Transport: &oauth2.Transport{Source: session},
			Timeout:   30 * time.Second,
		},
		logger: logger,
		maxAge: maxAge,
	}
}

// SetBaseURL 覆盖 API 根地址，测试用
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Session 返回客户端绑定的会话
func (c *Client) Session() *auth.Session {
	return c.session
}

// Fetch 拉取一个端点的 JSON 负载
// 缓存命中且未过期时不发起网络请求
// 401 重新登录并重试一次，429 映射为限流错误
func (c *Client) Fetch(ctx context.Context, path string, opts FetchOptions) (json.RawMessage, error) {
	rawURL := c.baseURL + path

	if !opts.NoCache && c.maxAge > 0 {
		if entry, ok := c.session.CachedResponse(rawURL); ok {
			if time.Since(entry.CachedAt) < c.maxAge {
				c.logger.Debug("cache hit", zap.String("url", rawURL),
					zap.Duration("age", time.Since(entry.CachedAt)))
				return entry.Payload, nil
			}
		}
	}

	payload, status, err := c.doGet(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		// 重新登录后只重试一次，仍失败则交给下个轮询周期
		c.logger.Info("request unauthorized, performing login and retrying once", zap.String("url", rawURL))
		if err := c.session.Login(ctx); err != nil {
			// 凭据被拒需要人工处理，不掩盖成可重试错误
			var authErr *apierr.AuthenticationError
			if errors.As(err, &authErr) {
				return nil, err
			}
			return nil, apierr.WrapRetrievalError("could not re-authenticate after unauthorized response", err)
		}
		payload, status, err = c.doGet(ctx, rawURL)
		if err != nil {
			return nil, err
		}
	}

	return c.classify(rawURL, payload, status, opts)
}

func (c *Client) doGet(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, 0, apierr.WrapRetrievalError(fmt.Sprintf("retrieving data from %s failed", rawURL), err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request", zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode), zap.Duration("elapsed", elapsed))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, apierr.WrapRetrievalError(fmt.Sprintf("reading response from %s failed", rawURL), err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) classify(rawURL string, payload []byte, status int, opts FetchOptions) (json.RawMessage, error) {
	switch {
	case status == http.StatusOK || status == http.StatusMultiStatus:
		if !json.Valid(payload) {
			if opts.AllowEmpty {
				return nil, nil
			}
			return nil, apierr.NewRetrievalError("response from %s could not be decoded as json", rawURL)
		}
		c.session.StoreResponse(rawURL, json.RawMessage(payload))
		return json.RawMessage(payload), nil
	case status == http.StatusTooManyRequests:
		return nil, apierr.NewTooManyRequestsError(
			"could not fetch data due to too many requests from your account, retrying again after a longer cooldown")
	default:
		for _, allowed := range opts.AllowedErrors {
			if status == allowed {
				return nil, nil
			}
		}
		return nil, apierr.NewRetrievalError("could not fetch data from %s, status code %d", rawURL, status)
	}
}

// FetchInto 拉取并解码到目标结构
func (c *Client) FetchInto(ctx context.Context, path string, opts FetchOptions, out interface{}) (json.RawMessage, error) {
	payload, err := c.Fetch(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		if opts.AllowEmpty {
			return nil, nil
		}
		return nil, apierr.NewRetrievalError("response from %s had unexpected shape: %v", path, err)
	}
	return payload, nil
}

// SendCommand 发送远程指令
// 传输层故障和重建请求失败都映射为指令错误
func (c *Client) SendCommand(ctx context.Context, method, path string, body interface{}) (*OperationResponse, error) {
	rawURL := c.baseURL + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, apierr.NewCommandError("command body could not be encoded: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, apierr.NewCommandError("command request could not be created: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierr.NewCommandError("command request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, apierr.NewCommandStatusError("command was not accepted", resp.StatusCode, string(respBody))
	}

	result := &OperationResponse{Status: "accepted"}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			// 受理响应没有规范的响应体，保留默认状态
			result.Status = "accepted"
		}
		if result.Status == "" {
			result.Status = "accepted"
		}
	}
	return result, nil
}

// 编译期确认会话满足 oauth2 的令牌源契约
var _ oauth2.TokenSource = (*auth.Session)(nil)
