package state

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 连接状态常量
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
	StateError        = "error"
)

// 事件常量
const (
	EventConnect    = "connect"
	EventEstablish  = "establish"
	EventDegrade    = "degrade"
	EventFail       = "fail"
	EventDisconnect = "disconnect"
)

// Machine 连接状态机
// CONNECTED 要求 REST 轮询和事件流同时健康，任一侧掉线回到 connecting
type Machine struct {
	mu            sync.RWMutex
	fsm           *fsm.FSM
	since         time.Time
	restHealthy   bool
	feedHealthy   bool
	onStateChange func(from, to string)
}

// NewMachine 创建连接状态机
func NewMachine(onStateChange func(from, to string)) *Machine {
	m := &Machine{
		since:         time.Now(),
		onStateChange: onStateChange,
	}

	m.fsm = fsm.NewFSM(
		StateDisconnected,
		fsm.Events{
			{Name: EventConnect, Src: []string{StateDisconnected, StateError}, Dst: StateConnecting},
			{Name: EventEstablish, Src: []string{StateConnecting, StateError}, Dst: StateConnected},
			{Name: EventDegrade, Src: []string{StateConnected, StateError}, Dst: StateConnecting},
			{Name: EventFail, Src: []string{StateConnecting, StateConnected, StateError}, Dst: StateError},
			{Name: EventDisconnect, Src: []string{StateDisconnected, StateConnecting, StateConnected, StateError}, Dst: StateDisconnected},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// Current 获取当前状态
func (m *Machine) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// Since 当前状态的进入时间
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// MarkConnecting 进入连接中状态
func (m *Machine) MarkConnecting() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trigger(EventConnect)
}

// MarkError 标记连接异常
func (m *Machine) MarkError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trigger(EventFail)
}

// ForceDisconnected 强制回到断开状态，停止时调用
func (m *Machine) ForceDisconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restHealthy = false
	m.feedHealthy = false
	m.trigger(EventDisconnect)
}

// SetRESTHealthy 记录 REST 轮询健康状况并推进状态
func (m *Machine) SetRESTHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restHealthy = healthy
	m.reconcile()
}

// SetFeedHealthy 记录事件流健康状况并推进状态
func (m *Machine) SetFeedHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedHealthy = healthy
	m.reconcile()
}

// RESTHealthy REST 侧是否健康
func (m *Machine) RESTHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restHealthy
}

// FeedHealthy 事件流侧是否健康
func (m *Machine) FeedHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.feedHealthy
}

func (m *Machine) reconcile() {
	if m.restHealthy && m.feedHealthy {
		m.trigger(EventEstablish)
		return
	}
	if m.fsm.Current() == StateConnected {
		m.trigger(EventDegrade)
	}
}

func (m *Machine) trigger(event string) {
	if !m.fsm.Can(event) {
		return
	}
	if err := m.fsm.Event(context.Background(), event); err != nil {
		return
	}
	m.since = time.Now()
}
