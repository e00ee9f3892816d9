package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"hedge-maker-go/config"
	"hedge-maker-go/gateway"
	"hedge-maker-go/infrastructure/logger"
)

// 撤掉两个场所的全部挂单，然后打印对冲场所仓位。不做平仓。
func main() {
	cfgPath := flag.String("config", "configs/maker.yaml", "配置文件路径")
	attempts := flag.Int("attempts", 10, "报价场所撤单最大重试次数")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	lg, err := logger.New(logger.DefaultConfig())
	if err != nil {
		log.Fatalf("创建日志失败: %v", err)
	}
	defer lg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Println("🔸 取消报价场所所有挂单...")
	nc, err := nats.Connect(cfg.Primary.NatsURL, nats.Name("hedge-maker-cleanup"))
	if err != nil {
		lg.Error("connect nats failed", zap.Error(err))
	} else {
		defer nc.Close()
		primary := gateway.NewNATSPrimary(nc, cfg.Primary.SubjectPrefix,
			time.Duration(cfg.Primary.RequestTimeMs)*time.Millisecond, lg.Logger)
		cleared := false
		for i := 1; i <= *attempts && !cleared; i++ {
			remaining, err := primary.CancelAll(ctx)
			if err == nil && remaining == 0 {
				cleared = true
				break
			}
			fmt.Printf("第 %d 次撤单后仍有 %d 个挂单 (err=%v)\n", i, remaining, err)
		}
		if cleared {
			fmt.Println("✅ 报价场所挂单已全部取消")
		} else {
			fmt.Println("❌ 报价场所挂单未能全部取消")
		}
	}

	fmt.Println("\n🔸 取消对冲场所所有挂单...")
	hedge, _ := gateway.BuildHedgeGateway(cfg.Hedge, lg.Logger, nil)
	for _, asset := range cfg.AssetList() {
		if err := hedge.CancelAll(ctx, asset); err != nil {
			fmt.Printf("❌ %s 撤单失败: %v\n", asset, err)
			continue
		}
		fmt.Printf("✅ %s 挂单已取消\n", asset)
	}

	positions, err := hedge.Positions(ctx)
	if err != nil {
		log.Fatalf("查询仓位失败: %v", err)
	}
	fmt.Println("\n对冲场所仓位:")
	for _, asset := range cfg.AssetList() {
		fmt.Printf("  %s: %.6f\n", asset, positions[asset])
	}
}
