package alert

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ZapChannel 写入结构化日志
type ZapChannel struct {
	logger *zap.Logger
}

// NewZapChannel 创建日志告警通道
func NewZapChannel(logger *zap.Logger) *ZapChannel {
	return &ZapChannel{logger: logger.Named("alert")}
}

// Send 按级别写日志
func (c *ZapChannel) Send(a Alert) error {
	fields := make([]zap.Field, 0, len(a.Fields)+2)
	fields = append(fields, zap.String("key", a.Key), zap.Time("at", a.Timestamp))
	for k, v := range a.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch a.Level {
	case LevelCritical:
		c.logger.Error(a.Message, fields...)
	case LevelWarning:
		c.logger.Warn(a.Message, fields...)
	default:
		c.logger.Info(a.Message, fields...)
	}
	return nil
}

// Name 返回通道名称
func (c *ZapChannel) Name() string { return "zap" }

// NATSChannel 把告警以 JSON 发布到 NATS 主题，供外部值班系统订阅
type NATSChannel struct {
	conn    *nats.Conn
	subject string
}

// NewNATSChannel 创建 NATS 告警通道
func NewNATSChannel(conn *nats.Conn, subject string) *NATSChannel {
	return &NATSChannel{conn: conn, subject: subject}
}

// Send 发布告警
func (c *NATSChannel) Send(a Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return c.conn.Publish(c.subject, data)
}

// Name 返回通道名称
func (c *NATSChannel) Name() string { return "nats:" + c.subject }
