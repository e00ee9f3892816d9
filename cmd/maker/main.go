package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"hedge-maker-go/config"
	"hedge-maker-go/internal/container"
)

// 退出码：非 0 时由 systemd 重启
const (
	exitOK            = 0
	exitStartup       = 1
	exitStale         = 2
	exitConfigChanged = 3
)

func main() {
	cfgPath := flag.String("config", "configs/maker.yaml", "配置文件路径")
	dryRun := flag.Bool("dryRun", false, "仅日志输出，不真正下单")
	flag.Parse()

	os.Exit(run(*cfgPath, *dryRun))
}

func run(cfgPath string, dryRun bool) int {
	c, err := container.New(cfgPath, container.Options{DryRun: dryRun})
	if err != nil {
		log.Printf("加载配置失败: %v", err)
		return exitStartup
	}
	if err := c.Build(); err != nil {
		log.Printf("构建失败: %v", err)
		return exitStartup
	}
	lg := c.Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		lg.Error("start failed", zap.Error(err))
		_ = c.Stop()
		return exitStartup
	}
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		lg.Warn("sd_notify ready failed", zap.Error(err))
	}

	// 资产参数在引擎生命周期内只读，配置变化通过重启生效
	changed := make(chan struct{}, 1)
	watcher := config.Watcher{Path: cfgPath, Logger: lg.Logger}
	go func() {
		_ = watcher.Start(ctx, func(config.AppConfig) {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	check := c.Config().MarkPriceStaleInterval()
	if wd, _ := daemon.SdWatchdogEnabled(false); wd > 0 && wd/2 < check {
		check = wd / 2
	}
	ticker := time.NewTicker(check)
	defer ticker.Stop()

	code := exitOK
loop:
	for {
		select {
		case <-ctx.Done():
			lg.Info("shutting down due to signal")
			break loop
		case <-changed:
			lg.Warn("config changed, restarting", zap.String("path", cfgPath))
			code = exitConfigChanged
			break loop
		case <-ticker.C:
			if err := c.HealthCheck(); err != nil {
				lg.Error("shutting down due to stale mark prices", zap.Error(err))
				code = exitStale
				break loop
			}
			lg.Debug("stale mark price check success")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err := c.Stop(); err != nil && code == exitOK {
		code = exitStartup
	}
	return code
}
