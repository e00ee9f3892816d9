package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher 监听配置文件变化。变化后的配置会先完整校验，通过后才回调；
// 资产参数在引擎生命周期内只读，调用方通常据此触发平滑重启。
type Watcher struct {
	Path     string
	Debounce time.Duration // 编辑器常常连续写多次，合并为一次回调
	Logger   *zap.Logger
}

// Start 阻塞直到 ctx 结束；onUpdate 收到新的已校验配置。
func (w Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	log := w.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if w.Debounce <= 0 {
		w.Debounce = 500 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	// 监听目录而不是文件本身：原子替换(rename)后文件句柄会失效
	target := filepath.Clean(w.Path)
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Reset(w.Debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			cfg, err := LoadWithEnvOverrides(w.Path)
			if err != nil {
				log.Warn("config change ignored", zap.String("path", w.Path), zap.Error(err))
				continue
			}
			log.Info("config changed", zap.String("path", w.Path))
			if onUpdate != nil {
				onUpdate(cfg)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", zap.Error(err))
		}
	}
}
