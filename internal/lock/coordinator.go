// Package lock 按资源名串行化“计算→下单”这类复合动作，并在两次执行之间施加冷却。
package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"hedge-maker-go/market"
)

// ErrUnknownResource 资源名不在构造时给出的集合里，属于编程错误。
var ErrUnknownResource = errors.New("unknown lock resource")

// Policy 资源仍在冷却期时的处理方式。
type Policy int

const (
	// Wait 排队并等到冷却结束再执行，用于周期性补偿任务。
	Wait Policy = iota
	// Reject 资源被占用或仍在冷却则直接放弃，用于高频事件触发。
	Reject
	// Proceed 忽略冷却立即执行（仍然互斥）。
	Proceed
)

func (p Policy) String() string {
	switch p {
	case Wait:
		return "wait"
	case Reject:
		return "reject"
	case Proceed:
		return "proceed"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// 结果标签，供 Observer 统计。
const (
	OutcomeRan      = "ran"
	OutcomeBusy     = "rejected_busy"
	OutcomeCooldown = "rejected_cooldown"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// Observer 接收每次调用的结果与等待时长。
type Observer interface {
	LockOutcome(resource, outcome string, waited time.Duration)
}

// QuoteResource 资产报价动作的资源名。
func QuoteResource(asset market.Asset) string { return "quote:" + string(asset) }

// PositionResource 资产仓位刷新与对冲动作的资源名。
func PositionResource(asset market.Asset) string { return "position:" + string(asset) }

type resource struct {
	sem *semaphore.Weighted

	mu      sync.Mutex
	lastRun time.Time
}

func (r *resource) last() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun
}

func (r *resource) markRun(t time.Time) {
	r.mu.Lock()
	r.lastRun = t
	r.mu.Unlock()
}

// Coordinator 每个资源一把 FIFO 互斥锁加一个“上次成功完成时间”。
// 同一资源任意时刻至多一个操作在执行；不同资源之间完全并发。
type Coordinator struct {
	minInterval time.Duration
	resources   map[string]*resource

	logger   *zap.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	observer Observer
}

// Option 构造选项
type Option func(*Coordinator)

// WithLogger 注入 logger。开发模式 logger 下未知资源名会直接 panic。
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock 替换时钟（测试用）。
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithSleeper 替换等待函数（测试用）。
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) { c.sleep = sleep }
}

// WithObserver 注入指标观察者。
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// New 创建协调器。资源集合在构造后固定。
func New(minInterval time.Duration, names []string, opts ...Option) *Coordinator {
	c := &Coordinator{
		minInterval: minInterval,
		resources:   make(map[string]*resource, len(names)),
		logger:      zap.NewNop(),
		now:         time.Now,
		sleep:       sleepCtx,
	}
	for _, n := range names {
		c.resources[n] = &resource{sem: semaphore.NewWeighted(1)}
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("lock")
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunExclusive 在资源 name 上按 policy 执行 fn。
// ran 表示 fn 是否执行并成功完成；被拒绝时返回 (false, nil)。
// fn 返回错误时不记录完成时间，返回 (false, err)。
func (c *Coordinator) RunExclusive(ctx context.Context, name string, policy Policy, fn func(context.Context) error) (ran bool, err error) {
	r, ok := c.resources[name]
	if !ok {
		c.logger.DPanic("unknown lock resource", zap.String("resource", name), zap.Stringer("policy", policy))
		return false, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}

	start := c.now()
	if policy == Reject {
		// 被占用时直接放弃，不排队
		if !r.sem.TryAcquire(1) {
			c.logger.Debug("rejected, resource busy", zap.String("resource", name))
			c.observe(name, OutcomeBusy, 0)
			return false, nil
		}
	} else if err := r.sem.Acquire(ctx, 1); err != nil {
		c.observe(name, OutcomeCanceled, c.now().Sub(start))
		return false, err
	}
	defer r.sem.Release(1)

	if last := r.last(); !last.IsZero() {
		if delay := last.Add(c.minInterval).Sub(c.now()); delay > 0 {
			switch policy {
			case Wait:
				c.logger.Debug("waiting for cooldown", zap.String("resource", name), zap.Duration("delay", delay))
				if err := c.sleep(ctx, delay); err != nil {
					c.observe(name, OutcomeCanceled, c.now().Sub(start))
					return false, err
				}
			case Reject:
				c.logger.Debug("rejected, cooling down", zap.String("resource", name), zap.Duration("delay", delay))
				c.observe(name, OutcomeCooldown, 0)
				return false, nil
			case Proceed:
				c.logger.Debug("proceeding despite cooldown", zap.String("resource", name), zap.Duration("delay", delay))
			}
		}
	}

	waited := c.now().Sub(start)
	if err := fn(ctx); err != nil {
		c.observe(name, OutcomeFailed, waited)
		return false, err
	}
	r.markRun(c.now())
	c.observe(name, OutcomeRan, waited)
	return true, nil
}

func (c *Coordinator) observe(name, outcome string, waited time.Duration) {
	if c.observer != nil {
		c.observer.LockOutcome(name, outcome, waited)
	}
}

// Run RunExclusive 的带返回值版本。
func Run[T any](ctx context.Context, c *Coordinator, name string, policy Policy, fn func(context.Context) (T, error)) (T, bool, error) {
	var out T
	ran, err := c.RunExclusive(ctx, name, policy, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, ran, err
}

// Names 已注册的资源名，按字典序。
func (c *Coordinator) Names() []string {
	names := make([]string, 0, len(c.resources))
	for n := range c.resources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LastRun 资源最近一次成功完成的时间。
func (c *Coordinator) LastRun(name string) (time.Time, bool) {
	r, ok := c.resources[name]
	if !ok {
		return time.Time{}, false
	}
	return r.last(), true
}
