package auth

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// StoredSession 单个会话的持久化形态
type StoredSession struct {
	Token *TokenBundle          `json:"token,omitempty"`
	Cache map[string]CacheEntry `json:"cache,omitempty"`
}

// Manager 按服务和用户管理认证会话
// 会话状态可持久化到本地文件，重启后继续使用旧令牌
type Manager struct {
	logger    *zap.Logger
	storeFile string
	sessions  map[string]*Session
	stored    map[string]StoredSession
}

// NewManager 创建会话管理器
// storeFile 为空时不做持久化
func NewManager(storeFile string, logger *zap.Logger) *Manager {
	m := &Manager{
		logger:    logger,
		storeFile: storeFile,
		sessions:  make(map[string]*Session),
		stored:    make(map[string]StoredSession),
	}
	m.load()
	return m
}

// GetSession 返回服务和用户对应的会话，必要时创建并恢复持久化状态
func (m *Manager) GetSession(service Service, user User) *Session {
	id := Identifier(service, user)
	if session, ok := m.sessions[id]; ok {
		return session
	}

	session := NewSession(service, user, m.logger)
	if stored, ok := m.stored[id]; ok {
		if stored.Token != nil {
			session.SetToken(stored.Token)
			m.logger.Info("restored persisted tokens", zap.String("service", service.String()))
		}
		if len(stored.Cache) > 0 {
			session.RestoreCache(stored.Cache)
			m.logger.Debug("restored persisted cache", zap.String("service", service.String()),
				zap.Int("entries", len(stored.Cache)))
		}
	}
	m.sessions[id] = session
	return session
}

// Persist 把所有会话的令牌和缓存写入存储文件
func (m *Manager) Persist() error {
	if m.storeFile == "" {
		return nil
	}
	for id, session := range m.sessions {
		m.stored[id] = StoredSession{
			Token: session.TokenSnapshot(),
			Cache: session.CacheSnapshot(),
		}
	}
	data, err := json.MarshalIndent(m.stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session store: %w", err)
	}
	if err := os.WriteFile(m.storeFile, data, 0600); err != nil {
		return fmt.Errorf("write session store: %w", err)
	}
	m.logger.Debug("session store persisted", zap.String("file", m.storeFile),
		zap.Int("sessions", len(m.stored)))
	return nil
}

func (m *Manager) load() {
	if m.storeFile == "" {
		return
	}
	data, err := os.ReadFile(m.storeFile)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("session store could not be read", zap.String("file", m.storeFile), zap.Error(err))
		}
		return
	}
	if err := json.Unmarshal(data, &m.stored); err != nil {
		m.logger.Warn("session store is corrupt, starting fresh", zap.String("file", m.storeFile), zap.Error(err))
		m.stored = make(map[string]StoredSession)
	}
}
