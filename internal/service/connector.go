package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/api/skoda"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/apierr"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/auth"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/config"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/garage"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/mqtt"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/state"
)

// rateLimitCooldown 账号被限流后的冷却时间
const rateLimitCooldown = 900 * time.Second

// Connector 厂商云端连接器
// 后台轮询 REST 端点，事件流推送触发定向重取，两者都写入共享车库
type Connector struct {
	cfg     *config.Config
	logger  *zap.Logger
	garage  *garage.Garage
	manager *auth.Manager

	// 主会话拉取大部分端点，第二会话只用于车辆状态端点
	client       *skoda.Client
	statusClient *skoda.Client
	feed         *mqtt.Client
	machine      *state.Machine

	// 对外通知回调，须在 Startup 之前设置
	onStateChange   func(from, to string)
	onVehicleUpdate func(vin string)

	// fetchMu 串行化所有写车库的 REST 拉取
	// 后台循环、事件重取和延迟重取共用，车库的 map 不支持并发写
	fetchMu sync.Mutex

	mu         sync.RWMutex
	stopCh     chan struct{}
	wg         sync.WaitGroup
	running    bool
	healthy    bool
	lastUpdate time.Time
	userID     string

	// 每辆车一个可重启的延迟重取定时器
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer
}

// NewConnector 创建连接器
func NewConnector(cfg *config.Config, g *garage.Garage, manager *auth.Manager, logger *zap.Logger) *Connector {
	user := auth.User{Username: cfg.Username, Password: cfg.Password}
	session := manager.GetSession(auth.ServiceMySkoda, user)
	statusSession := manager.GetSession(auth.ServiceMySkoda2, user)

	c := &Connector{
		cfg:            cfg,
		logger:         logger,
		garage:         g,
		manager:        manager,
		client:         skoda.NewClient(session, cfg.MaxAge, logger),
		statusClient:   skoda.NewClient(statusSession, cfg.MaxAge, logger),
		debounceTimers: make(map[string]*time.Timer),
	}

	c.machine = state.NewMachine(func(from, to string) {
		logger.Info("connection state changed", zap.String("from", from), zap.String("to", to))
		if c.onStateChange != nil {
			c.onStateChange(from, to)
		}
	})

	c.feed = mqtt.NewClient(session, logger)
	c.feed.SetCallbacks(mqtt.Callbacks{
		OnEvent: c.handleEvent,
		OnConnect: func() {
			c.machine.SetFeedHealthy(true)
		},
		OnDisconnect: func(err error) {
			c.machine.SetFeedHealthy(false)
		},
	})
	g.AddObserver(mqtt.NewGarageObserver(c.feed))

	return c
}

// SetOnStateChange 设置连接状态变化回调
func (c *Connector) SetOnStateChange(fn func(from, to string)) {
	c.onStateChange = fn
}

// SetOnVehicleUpdate 设置车辆数据更新回调
func (c *Connector) SetOnVehicleUpdate(fn func(vin string)) {
	c.onVehicleUpdate = fn
}

func (c *Connector) notifyVehicleUpdate(vin string) {
	if c.onVehicleUpdate != nil {
		c.onVehicleUpdate(vin)
	}
}

// Startup 启动后台轮询和事件流
func (c *Connector) Startup(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("connector already running")
	}
	c.stopCh = make(chan struct{})
	c.running = true
	c.healthy = true
	c.mu.Unlock()

	c.logger.Info("starting connector",
		zap.Duration("interval", c.cfg.Interval), zap.Duration("max_age", c.cfg.MaxAge))
	c.machine.MarkConnecting()

	c.wg.Add(1)
	go c.loop(ctx)

	if err := c.feed.Start(ctx); err != nil {
		c.logger.Warn("event feed could not be started", zap.Error(err))
	}

	return nil
}

// Shutdown 停止事件流和轮询循环，随后持久化会话
func (c *Connector) Shutdown() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()

	c.logger.Info("stopping connector")

	c.feed.Stop()
	c.cancelDebounceTimers()
	c.wg.Wait()
	c.machine.ForceDisconnected()

	if err := c.Persist(); err != nil {
		c.logger.Error("session persistence on shutdown failed", zap.Error(err))
	}
	c.logger.Info("connector stopped")
}

// Persist 持久化令牌和响应缓存
func (c *Connector) Persist() error {
	return c.manager.Persist()
}

// State 当前连接状态
func (c *Connector) State() string {
	return c.machine.Current()
}

// Interval 配置的轮询间隔
func (c *Connector) Interval() time.Duration {
	return c.cfg.Interval
}

// LastUpdate 最近一次成功轮询的时间
func (c *Connector) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// Healthy 连接器是否健康，遇到未分类错误后变为假
func (c *Connector) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

// loop 后台监督循环
// 首轮做完整发现，之后按周期增量更新，按错误类别退避
func (c *Connector) loop(ctx context.Context) {
	defer c.wg.Done()

	first := true
	for {
		var err error
		if first {
			err = c.FetchAll(ctx)
		} else {
			err = c.UpdateVehicles(ctx)
		}

		wait := c.cfg.Interval
		switch {
		case err == nil:
			first = false
			c.mu.Lock()
			c.lastUpdate = time.Now()
			c.mu.Unlock()
			c.machine.SetRESTHealthy(true)
		case isTooManyRequests(err):
			c.logger.Error("account is rate limited, backing off",
				zap.Error(err), zap.Duration("cooldown", rateLimitCooldown))
			c.machine.MarkError()
			wait = rateLimitCooldown
		case isTerminalAuth(err):
			// 凭据失效重试只会触发 IdP 限流，停下等人工处理
			c.logger.Error("credentials rejected, terminating loop", zap.Error(err))
			c.machine.MarkError()
			c.mu.Lock()
			c.healthy = false
			c.mu.Unlock()
			return
		case isRecoverable(err):
			c.logger.Error("fetch cycle failed, retrying next interval", zap.Error(err))
			c.machine.MarkError()
		default:
			// 未知错误宁可停下也不要无限循环
			c.logger.Error("unexpected error in fetch cycle, terminating loop", zap.Error(err))
			c.machine.MarkError()
			c.mu.Lock()
			c.healthy = false
			c.mu.Unlock()
			return
		}

		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// isTooManyRequests 是否为限流错误
func isTooManyRequests(err error) bool {
	var tooMany *apierr.TooManyRequestsError
	return errors.As(err, &tooMany)
}

// isTerminalAuth 凭据被拒，重试无意义
// 传输层包装过的认证错误也要识别出来
func isTerminalAuth(err error) bool {
	var auth *apierr.AuthenticationError
	return errors.As(err, &auth)
}

// isRecoverable 下个周期重试即可的错误类别
func isRecoverable(err error) bool {
	var (
		retrieval *apierr.RetrievalError
		apiErr    *apierr.APIError
		compat    *apierr.CompatibilityError
		tempAuth  *apierr.TemporaryAuthenticationError
	)
	return errors.As(err, &retrieval) || errors.As(err, &apiErr) ||
		errors.As(err, &compat) || errors.As(err, &tempAuth)
}

func (c *Connector) cancelDebounceTimers() {
	c.debounceMu.Lock()
	defer c.debounceMu.Unlock()
	for vin, timer := range c.debounceTimers {
		timer.Stop()
		delete(c.debounceTimers, vin)
	}
}
