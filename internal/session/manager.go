package session

import (
	"sync"

	"onboardbridge/internal/logger"
	"onboardbridge/pkg/model"
)

// Manager 全局会话管理器
type Manager struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*Controller
	log      logger.Logger
}

// NewManager 创建会话管理器
func NewManager(l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		sessions: make(map[model.SessionID]*Controller),
		log:      l,
	}
}

// Add 注册会话控制器
func (m *Manager) Add(c *Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[c.ID()] = c
	m.log.Info("创建业务会话", "sessionID", string(c.ID()))
}

// Get 获取会话
func (m *Manager) Get(id model.SessionID) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[id]
	return c, ok
}

// Delete 移除会话
func (m *Manager) Delete(id model.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return
	}
	delete(m.sessions, id)
	m.log.Info("销毁业务会话", "sessionID", string(id))
}

// List 返回所有活动会话
func (m *Manager) List() []*Controller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		list = append(list, c)
	}
	return list
}
