package alert

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Level 告警级别
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Alert 告警信息。Key 决定限流粒度，同一个 Key 在限流窗口内只发一次。
type Alert struct {
	Level     Level          `json:"level"`
	Key       string         `json:"key"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Channel 告警通道接口
type Channel interface {
	Send(alert Alert) error
	Name() string
}

// Manager 告警管理器：限流后分发到所有通道
type Manager struct {
	channels []Channel
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewManager 创建告警管理器
func NewManager(interval time.Duration, channels ...Channel) *Manager {
	return &Manager{
		channels: channels,
		interval: interval,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

func (m *Manager) allow(key string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastSent[key]
	if ok && now.Sub(last) < m.interval {
		return false
	}
	m.lastSent[key] = now
	return true
}

// Send 发送告警；被限流时返回 (false, nil)。
// 只有所有通道都失败才返回错误。
func (m *Manager) Send(a Alert) (bool, error) {
	if m == nil {
		return false, nil
	}
	now := m.now()
	if a.Timestamp.IsZero() {
		a.Timestamp = now
	}
	key := a.Key
	if key == "" {
		key = fmt.Sprintf("%s:%s", a.Level, a.Message)
	}
	if !m.allow(key, now) {
		return false, nil
	}

	var errs []error
	for _, ch := range m.channels {
		if err := ch.Send(a); err != nil {
			errs = append(errs, fmt.Errorf("channel %s failed: %w", ch.Name(), err))
		}
	}
	if len(m.channels) > 0 && len(errs) == len(m.channels) {
		return true, errors.Join(errs...)
	}
	return true, nil
}

// Warn 发送 WARNING 告警
func (m *Manager) Warn(key, message string, fields map[string]any) {
	_, _ = m.Send(Alert{Level: LevelWarning, Key: key, Message: message, Fields: fields})
}

// Critical 发送 CRITICAL 告警
func (m *Manager) Critical(key, message string, fields map[string]any) {
	_, _ = m.Send(Alert{Level: LevelCritical, Key: key, Message: message, Fields: fields})
}

// Channels 获取所有通道名
func (m *Manager) Channels() []string {
	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}
