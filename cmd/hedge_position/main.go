package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"hedge-maker-go/config"
	"hedge-maker-go/gateway"
	"hedge-maker-go/market"
)

type row struct {
	Asset  market.Asset `json:"asset"`
	Symbol string       `json:"symbol"`
	Base   float64      `json:"base"`
}

// 以 JSON 打印对冲场所各资产的仓位
func main() {
	cfgPath := flag.String("config", "configs/maker.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hedge, _ := gateway.BuildHedgeGateway(cfg.Hedge, nil, nil)
	positions, err := hedge.Positions(ctx)
	if err != nil {
		log.Fatalf("查询仓位失败: %v", err)
	}
	rows := make([]row, 0, len(positions))
	for _, asset := range cfg.AssetList() {
		rows = append(rows, row{Asset: asset, Symbol: cfg.Hedge.Symbols[asset].Symbol, Base: positions[asset]})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		log.Fatalf("输出失败: %v", err)
	}
}
