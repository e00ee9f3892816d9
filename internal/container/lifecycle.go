package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hedge-maker-go/internal/engine"
	"hedge-maker-go/internal/status"
)

// stopTimeout 单个组件停止的最长时间（包含撤单重试）
const stopTimeout = 30 * time.Second

// Lifecycle 生命周期接口
type Lifecycle interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

// LifecycleManager 生命周期管理器
type LifecycleManager struct {
	components []Lifecycle
	mu         sync.RWMutex
}

// NewLifecycleManager 创建新的生命周期管理器
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		components: make([]Lifecycle, 0),
	}
}

// Register 注册组件
func (m *LifecycleManager) Register(component Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component)
}

// StartAll 按顺序启动所有组件，失败时逆序停止已启动的组件
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Start(ctx); err != nil {
			errs := []error{fmt.Errorf("start %s failed: %w", component.Name(), err)}
			for j := i - 1; j >= 0; j-- {
				if serr := m.components[j].Stop(); serr != nil {
					errs = append(errs, fmt.Errorf("rollback %s: %w", m.components[j].Name(), serr))
				}
			}
			return errors.Join(errs...)
		}
	}
	return nil
}

// StopAll 逆序停止所有组件
func (m *LifecycleManager) StopAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for i := len(m.components) - 1; i >= 0; i-- {
		if err := m.components[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", m.components[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// CheckHealth 检查所有组件健康状态
func (m *LifecycleManager) CheckHealth() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, component := range m.components {
		if err := component.Health(); err != nil {
			return fmt.Errorf("%s unhealthy: %w", component.Name(), err)
		}
	}
	return nil
}

// statusComponent 状态 HTTP 服务
type statusComponent struct {
	server *status.Server
	addr   string
}

func (s *statusComponent) Name() string { return "status_server" }

func (s *statusComponent) Start(context.Context) error {
	return s.server.Start(s.addr)
}

func (s *statusComponent) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *statusComponent) Health() error { return nil }

// makerComponent 做市引擎；停止时撤掉两个场所的挂单
type makerComponent struct {
	maker *engine.Maker
	stale time.Duration
}

func (m *makerComponent) Name() string { return "maker" }

func (m *makerComponent) Start(ctx context.Context) error {
	return m.maker.Start(ctx)
}

func (m *makerComponent) Stop() error {
	if m.maker.State() != engine.StateRunning {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return m.maker.Stop(ctx)
}

func (m *makerComponent) Health() error {
	if state := m.maker.State(); state != engine.StateRunning {
		return fmt.Errorf("state %s", state)
	}
	if stale := m.maker.StaleAssets(time.Now()); len(stale) > 0 {
		return fmt.Errorf("theo older than %s for %d asset(s), first %s (age %s)",
			m.stale, len(stale), stale[0].Asset, stale[0].Age)
	}
	return nil
}
