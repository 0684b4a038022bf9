package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/garage"
)

// BrokerURL 厂商事件代理地址
const BrokerURL = "tls://mqtt.messagehub.de:8883"

// brokerUsername 事件代理固定用户名，密码是当前访问令牌
const brokerUsername = "android-app"

// 每辆车订阅的事件名
var (
	accountEvents = []string{
		"privacy",
	}
	operationRequests = []string{
		"air-conditioning/set-air-conditioning-at-unlock",
		"air-conditioning/set-air-conditioning-seats-heating",
		"air-conditioning/set-air-conditioning-timers",
		"air-conditioning/set-air-conditioning-without-external-power",
		"air-conditioning/set-target-temperature",
		"air-conditioning/start-stop-air-conditioning",
		"auxiliary-heating/start-stop-auxiliary-heating",
		"air-conditioning/start-stop-window-heating",
		"air-conditioning/windows-heating",
		"charging/start-stop-charging",
		"charging/update-battery-support",
		"charging/update-auto-unlock-plug",
		"charging/update-care-mode",
		"charging/update-charge-limit",
		"charging/update-charge-mode",
		"charging/update-charging-profiles",
		"charging/update-charging-current",
		"departure/update-departure-timers",
		"departure/update-minimal-soc",
		"vehicle-access/honk-and-flash",
		"vehicle-access/lock-vehicle",
		"vehicle-services-backup/apply-backup",
		"vehicle-wakeup/wakeup",
	}
	serviceEvents = []string{
		"air-conditioning",
		"charging",
		"departure",
		"vehicle-status/access",
		"vehicle-status/lights",
	}
)

// Event 从事件代理收到的单条消息
type Event struct {
	UserID   string
	VIN      string
	Category string
	Name     string
	Payload  []byte
}

// Callbacks 事件流回调函数
type Callbacks struct {
	OnEvent      func(event Event) // 收到事件
	OnConnect    func()            // 连接建立
	OnDisconnect func(err error)   // 连接断开
}

// CredentialSource 事件代理的凭据来源
// 每次连接尝试前刷新令牌，密码始终是有效的访问令牌
type CredentialSource interface {
	AccessToken() string
	Expired() bool
	Refresh(ctx context.Context) error
}

// Client 事件流客户端
// 订阅按车辆维度展开的主题集合，断开时全部重建
type Client struct {
	logger    *zap.Logger
	creds     CredentialSource
	broker    string
	callbacks Callbacks

	mu         sync.Mutex
	client     pahomqtt.Client
	userID     string
	subscribed map[string]struct{}
	vins       map[string]struct{}
	running    bool
	stopCh     chan struct{}
	wg         sync.WaitGroup

	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
}

// NewClient 创建事件流客户端
func NewClient(creds CredentialSource, logger *zap.Logger) *Client {
	return &Client{
		logger:            logger,
		creds:             creds,
		broker:            BrokerURL,
		subscribed:        make(map[string]struct{}),
		vins:              make(map[string]struct{}),
		reconnectDelay:    5 * time.Second,
		maxReconnectDelay: 60 * time.Second,
	}
}

// SetCallbacks 设置回调函数
func (c *Client) SetCallbacks(callbacks Callbacks) {
	c.callbacks = callbacks
}

// SetBroker 覆盖代理地址，测试用
func (c *Client) SetBroker(broker string) {
	c.broker = broker
}

// SetUserID 设置账号标识，订阅主题的第一段
func (c *Client) SetUserID(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

// Start 启动事件流
// 连接在后台带退避重试，直到成功或 Stop
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("event feed already running")
	}
	c.running = true
	c.stopCh = make(chan struct{})

	clientID := "Id" + uuid.New().String() + "#" + uuid.New().String()
	opts := pahomqtt.NewClientOptions().
		AddBroker(c.broker).
		SetClientID(clientID).
		SetUsername(brokerUsername).
		SetCredentialsProvider(c.credentials).
		SetTLSConfig(&tls.Config{InsecureSkipVerify: true}).
		SetProtocolVersion(4).
		SetCleanSession(true).
		SetKeepAlive(60 * time.Second).
		SetAutoReconnect(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetDefaultPublishHandler(c.onMessage)

	c.client = pahomqtt.NewClient(opts)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.connectLoop(ctx)
	return nil
}

// Stop 停止事件流并断开连接
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	client := c.client
	c.subscribed = make(map[string]struct{})
	c.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
	c.wg.Wait()
	c.logger.Info("event feed stopped")
}

// connectLoop 带退避的连接重试
func (c *Client) connectLoop(ctx context.Context) {
	defer c.wg.Done()

	delay := c.reconnectDelay
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		token := c.client.Connect()
		token.Wait()
		err := token.Error()
		if err == nil {
			return
		}
		c.logger.Warn("event feed connect failed, retrying",
			zap.Error(err), zap.Duration("delay", delay))

		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.maxReconnectDelay {
			delay = c.maxReconnectDelay
		}
	}
}

// credentials 连接前的凭据钩子
// 令牌过期或缺失时先刷新，刷新失败时仍用旧令牌尝试
func (c *Client) credentials() (string, string) {
	if c.creds.Expired() || c.creds.AccessToken() == "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.creds.Refresh(ctx); err != nil {
			c.logger.Warn("token refresh before feed connect failed", zap.Error(err))
		}
	}
	return brokerUsername, c.creds.AccessToken()
}

func (c *Client) onConnect(_ pahomqtt.Client) {
	c.logger.Info("connected to event feed broker")

	c.mu.Lock()
	vins := make([]string, 0, len(c.vins))
	for vin := range c.vins {
		vins = append(vins, vin)
	}
	c.mu.Unlock()

	for _, vin := range vins {
		c.subscribeVehicle(vin)
	}
	if c.callbacks.OnConnect != nil {
		c.callbacks.OnConnect()
	}
}

func (c *Client) onConnectionLost(_ pahomqtt.Client, err error) {
	c.logger.Warn("event feed connection lost", zap.Error(err))

	c.mu.Lock()
	c.subscribed = make(map[string]struct{})
	running := c.running
	c.mu.Unlock()

	if c.callbacks.OnDisconnect != nil {
		c.callbacks.OnDisconnect(err)
	}
	if running {
		c.wg.Add(1)
		go c.connectLoop(context.Background())
	}
}

// onMessage 按主题结构路由消息
// 任何解析失败只记日志，事件流不因坏消息崩溃
func (c *Client) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	parts := strings.SplitN(msg.Topic(), "/", 4)
	if len(parts) != 4 {
		c.logger.Debug("unrecognized event topic", zap.String("topic", msg.Topic()))
		return
	}

	event := Event{
		UserID:   parts[0],
		VIN:      parts[1],
		Category: parts[2],
		Name:     parts[3],
		Payload:  msg.Payload(),
	}
	c.logger.Debug("event received", zap.String("topic", msg.Topic()),
		zap.Int("bytes", len(event.Payload)))

	if c.callbacks.OnEvent != nil {
		c.callbacks.OnEvent(event)
	}
}

// AddVehicle 纳入一辆车并在已连接时立即订阅
func (c *Client) AddVehicle(vin string) {
	c.mu.Lock()
	c.vins[vin] = struct{}{}
	client := c.client
	c.mu.Unlock()

	if client != nil && client.IsConnected() {
		c.subscribeVehicle(vin)
	}
}

// RemoveVehicle 移除一辆车并退订其全部主题
func (c *Client) RemoveVehicle(vin string) {
	c.mu.Lock()
	delete(c.vins, vin)
	client := c.client
	var topics []string
	for topic := range c.subscribed {
		if strings.Contains(topic, vin) {
			topics = append(topics, topic)
			delete(c.subscribed, topic)
		}
	}
	c.mu.Unlock()

	if client == nil || !client.IsConnected() || len(topics) == 0 {
		return
	}
	if token := client.Unsubscribe(topics...); token.Wait() && token.Error() != nil {
		c.logger.Error("unsubscribe failed", zap.Error(token.Error()))
	}
	c.logger.Debug("unsubscribed vehicle topics", zap.String("vin", vin), zap.Int("topics", len(topics)))
}

// subscribeVehicle 订阅一辆车的全部主题，跳过已订阅的
func (c *Client) subscribeVehicle(vin string) {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()
	if userID == "" {
		c.logger.Warn("could not subscribe to vehicle without user id", zap.String("vin", vin))
		return
	}

	for _, topic := range VehicleTopics(userID, vin) {
		c.mu.Lock()
		if _, ok := c.subscribed[topic]; ok {
			c.mu.Unlock()
			continue
		}
		c.mu.Unlock()

		if token := c.client.Subscribe(topic, 0, nil); token.Wait() && token.Error() != nil {
			c.logger.Error("could not subscribe to topic",
				zap.String("topic", topic), zap.Error(token.Error()))
			continue
		}
		c.mu.Lock()
		c.subscribed[topic] = struct{}{}
		c.mu.Unlock()
		c.logger.Debug("subscribed to topic", zap.String("topic", topic))
	}
}

// VehicleTopics 一辆车的完整主题集合
func VehicleTopics(userID, vin string) []string {
	topics := make([]string, 0, len(accountEvents)+len(operationRequests)+len(serviceEvents))
	for _, event := range accountEvents {
		topics = append(topics, fmt.Sprintf("%s/%s/account-event/%s", userID, vin, event))
	}
	for _, event := range operationRequests {
		topics = append(topics, fmt.Sprintf("%s/%s/operation-request/%s", userID, vin, event))
	}
	for _, event := range serviceEvents {
		topics = append(topics, fmt.Sprintf("%s/%s/service-event/%s", userID, vin, event))
	}
	return topics
}

// GarageObserver 把车库的增删镜像到订阅上
type GarageObserver struct {
	client *Client
}

// NewGarageObserver 创建车库观察者
func NewGarageObserver(client *Client) *GarageObserver {
	return &GarageObserver{client: client}
}

// VehicleAdded 实现 garage.Observer
func (o *GarageObserver) VehicleAdded(v *garage.Vehicle) {
	o.client.AddVehicle(v.VIN)
}

// VehicleRemoved 实现 garage.Observer
func (o *GarageObserver) VehicleRemoved(v *garage.Vehicle) {
	o.client.RemoveVehicle(v.VIN)
}
