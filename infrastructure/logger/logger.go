package logger

import (
	"fmt"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hedge-maker-go/order"
)

// Logger 封装zap日志器，附带做市事件的结构化记录方法
type Logger struct {
	*zap.Logger
	config Config
}

// Config 日志配置
type Config struct {
	Level      string   `yaml:"level"`       // debug, info, warn, error
	Outputs    []string `yaml:"outputs"`     // stdout, file
	OutputFile string   `yaml:"output_file"` // 日志文件路径
	ErrorFile  string   `yaml:"error_file"`  // 错误日志单独文件
	Format     string   `yaml:"format"`      // json 或 console
	// Development 为 true 时 DPanic 会真正 panic，用于尽早暴露编程错误
	Development bool `yaml:"development"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Outputs: []string{"stdout"},
		Format:  "json",
	}
}

// New 创建新的Logger实例
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}

	var encCfg zapcore.EncoderConfig
	if cfg.Format == "console" {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encCfg = zap.NewProductionEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if slices.Contains(cfg.Outputs, "stdout") {
		enc := zapcore.NewJSONEncoder(encCfg)
		if cfg.Format == "console" {
			enc = zapcore.NewConsoleEncoder(encCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level))
	}

	// 文件始终为 JSON，便于事后检索
	fileEncCfg := zap.NewProductionEncoderConfig()
	fileEncCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if slices.Contains(cfg.Outputs, "file") && cfg.OutputFile != "" {
		w, err := openAppend(cfg.OutputFile)
		if err != nil {
			return nil, fmt.Errorf("open log file failed: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncCfg), w, level))
	}
	if cfg.ErrorFile != "" {
		w, err := openAppend(cfg.ErrorFile)
		if err != nil {
			return nil, fmt.Errorf("open error log file failed: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncCfg), w, zapcore.ErrorLevel))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return &Logger{
		Logger: zap.New(zapcore.NewTee(cores...), opts...),
		config: cfg,
	}, nil
}

// Wrap 用已有的 zap.Logger 构造，测试中配合 zaptest 使用
func Wrap(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{Logger: l, config: DefaultConfig()}
}

func openAppend(path string) (zapcore.WriteSyncer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(f), nil
}

// Named 返回带组件名的子 logger，供各组件注入
func (l *Logger) Named(component string) *zap.Logger {
	return l.Logger.Named(component)
}

// LogQuotes 记录一次下发的报价梯度
func (l *Logger) LogQuotes(asset string, quotes []order.Quote) {
	var bids, asks int
	var zeroed int
	for _, q := range quotes {
		if q.Side == order.QuoteBid {
			bids++
		} else {
			asks++
		}
		if q.Size == 0 {
			zeroed++
		}
	}
	fields := []zap.Field{
		zap.String("event", "quotes_issued"),
		zap.String("asset", asset),
		zap.Int("bids", bids),
		zap.Int("asks", asks),
		zap.Int("zeroed", zeroed),
	}
	if len(quotes) > 0 {
		fields = append(fields,
			zap.Uint64("first_client_id", quotes[0].ClientOrderID),
			zap.Float64("top_price", quotes[0].Price),
		)
	}
	l.Info("quote_event", append(fields, ts())...)
}

// LogHedge 记录对冲指令；err 非空表示发送失败
func (l *Logger) LogHedge(h order.HedgeOrder, err error) {
	fields := []zap.Field{
		zap.String("event", "hedge_order"),
		zap.String("asset", string(h.Asset)),
		zap.String("side", string(h.Side)),
		zap.Float64("price", h.Price),
		zap.Float64("base_amount", h.BaseAmount),
		zap.Uint64("client_id", h.ClientOrderID),
		ts(),
	}
	if err != nil {
		l.Error("hedge_event", append(fields, zap.Error(err))...)
		return
	}
	l.Info("hedge_event", fields...)
}

// LogBreach 记录风控限额触发
func (l *Logger) LogBreach(asset, scope string, instrument int, cash, limit float64, rejected string) {
	l.Warn("risk_event",
		zap.String("event", "quote_breach"),
		zap.String("asset", asset),
		zap.String("scope", scope),
		zap.Int("instrument", instrument),
		zap.Float64("cash", cash),
		zap.Float64("limit", limit),
		zap.String("rejected_side", rejected),
		ts(),
	)
}

// LogError 记录错误并附带上下文
func (l *Logger) LogError(err error, context map[string]interface{}) {
	fields := make([]zap.Field, 0, len(context)+2)
	for k, v := range context {
		fields = append(fields, zap.Any(k, v))
	}
	l.Error("error_event", append(fields, zap.Error(err), ts())...)
}

func ts() zap.Field {
	return zap.String("ts", time.Now().UTC().Format(time.RFC3339Nano))
}

// Close 关闭日志器
func (l *Logger) Close() error {
	return l.Sync()
}
