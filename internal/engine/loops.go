package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"hedge-maker-go/internal/lock"
	"hedge-maker-go/market"
)

// schedule 立即执行一次，之后每个 interval 执行一次，直到 ctx 结束。
func schedule(ctx context.Context, interval time.Duration, fn func()) {
	if ctx.Err() != nil {
		return
	}
	fn()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

// backoff base·2^attempt，上限 max。
func backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		return base
	}
	if attempt > 30 {
		return max
	}
	d := base * time.Duration(1<<attempt)
	if d > max || d <= 0 {
		return max
	}
	return d
}

// runFeed 受监督的行情循环：出错后按指数退避重连，持续运行超过退避上限则重置退避。
// 只有 ctx 结束才会返回。
func (m *Maker) runFeed(ctx context.Context, asset market.Asset) error {
	log := m.logger.With(zap.String("asset", string(asset)))
	attempt := 0
	for {
		started := m.now()
		err := m.feed.Watch(ctx, asset, func(tob market.TopOfBook) {
			m.onTick(ctx, tob)
		})
		if ctx.Err() != nil {
			return nil
		}
		if m.now().Sub(started) > m.config.BackoffMax {
			attempt = 0
		}
		delay := backoff(attempt, m.config.BackoffBase, m.config.BackoffMax)
		attempt++

		m.stats.feedRestarts.Add(1)
		m.metrics.RecordFeedRestart(string(asset))
		log.Warn("price feed exited, restarting", zap.Error(err), zap.Int("attempt", attempt), zap.Duration("backoff", delay))
		m.alerts.Warn("feed:"+string(asset), "price feed restarting", map[string]any{
			"asset": string(asset), "error": errString(err), "attempt": attempt,
		})

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// runEvents 分发报价场所事件；仓位刷新各自独立运行，退出前等待它们结束。
func (m *Maker) runEvents(ctx context.Context, events <-chan VenueEvent) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	refresh := func(asset market.Asset) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.refreshPositions(ctx, asset, lock.Reject)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			switch ev.Kind {
			case EventFill:
				if _, ok := m.store.Params(ev.Asset); ok {
					refresh(ev.Asset)
				}
			case EventUser:
				for _, asset := range m.assets {
					refresh(asset)
				}
			case EventFunding:
				// 单期费率年化为百分比
				m.store.RecordFundingUpdate(ev.Asset, ev.FundingRate*365*100)
			default:
				m.logger.Debug("ignored venue event", zap.String("kind", string(ev.Kind)))
			}
		}
	}
}

func errString(err error) string {
	if err == nil {
		return "feed returned without error"
	}
	return err.Error()
}
