package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"hedge-maker-go/internal/engine"
	"hedge-maker-go/internal/store"
	"hedge-maker-go/market"
	"hedge-maker-go/order"
)

// NATSConn NATSPrimary 用到的连接方法，*nats.Conn 满足该接口。
type NATSConn interface {
	Publish(subj string, data []byte) error
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// ErrPrimaryRejected 签名进程返回了错误
var ErrPrimaryRejected = errors.New("primary venue rejected request")

// NATSPrimary 报价场所桥接：签名与上链由外部进程完成，双方通过 NATS 通信。
//
//	<prefix>.quotes.<asset>    发布报价梯度（第 0 档在前，先撤后挂）
//	<prefix>.snapshot.<asset>  请求挂单 client id 与仓位
//	<prefix>.cancel_all        请求撤掉全部挂单
//	<prefix>.risk              请求账户余额、保证金与盈亏
//	<prefix>.events.<kind>     订阅 fill/user/funding 事件
type NATSPrimary struct {
	conn    NATSConn
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewNATSPrimary 创建桥接
func NewNATSPrimary(conn NATSConn, prefix string, timeout time.Duration, logger *zap.Logger) *NATSPrimary {
	if prefix == "" {
		prefix = "primary"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPrimary{
		conn:    conn,
		prefix:  strings.TrimSuffix(prefix, "."),
		timeout: timeout,
		logger:  logger.Named("primary"),
		now:     time.Now,
	}
}

func (p *NATSPrimary) subject(parts ...string) string {
	return p.prefix + "." + strings.Join(parts, ".")
}

type wireQuote struct {
	MarketIndex   int     `json:"marketIndex"`
	Level         int     `json:"level"`
	Side          string  `json:"side"`
	Price         float64 `json:"price"`
	Size          float64 `json:"size"`
	ClientOrderID uint64  `json:"clientOrderId"`
	CancelReplace bool    `json:"cancelReplace"`
}

type quoteBatch struct {
	Asset  market.Asset `json:"asset"`
	SentAt int64        `json:"sentAt"`
	Quotes []wireQuote  `json:"quotes"`
}

// encodeQuotes 第 0 档排在最前，同档位保持原顺序。
func encodeQuotes(asset market.Asset, quotes []order.Quote, now time.Time) ([]byte, error) {
	sorted := slices.Clone(quotes)
	slices.SortStableFunc(sorted, func(a, b order.Quote) int {
		switch {
		case a.Level == 0 && b.Level != 0:
			return -1
		case a.Level != 0 && b.Level == 0:
			return 1
		}
		return 0
	})
	batch := quoteBatch{Asset: asset, SentAt: now.UnixMilli(), Quotes: make([]wireQuote, 0, len(sorted))}
	for _, q := range sorted {
		batch.Quotes = append(batch.Quotes, wireQuote{
			MarketIndex:   q.Instrument,
			Level:         q.Level,
			Side:          string(q.Side),
			Price:         q.Price,
			Size:          q.Size,
			ClientOrderID: q.ClientOrderID,
			CancelReplace: q.CancelReplace(),
		})
	}
	return json.Marshal(batch)
}

// SendQuotes 发布一个资产的报价梯度
func (p *NATSPrimary) SendQuotes(_ context.Context, asset market.Asset, quotes []order.Quote) error {
	data, err := encodeQuotes(asset, quotes, p.now())
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject("quotes", string(asset)), data); err != nil {
		return fmt.Errorf("publish quotes %s: %w", asset, err)
	}
	return nil
}

type assetRequest struct {
	Asset market.Asset `json:"asset"`
}

type snapshotReply struct {
	engine.PrimarySnapshot
	Error string `json:"error,omitempty"`
}

type riskReply struct {
	store.RiskStats
	Error string `json:"error,omitempty"`
}

type cancelAllReply struct {
	Remaining int    `json:"remaining"`
	Error     string `json:"error,omitempty"`
}

func (p *NATSPrimary) request(ctx context.Context, subj string, req, reply any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	msg, err := p.conn.RequestWithContext(ctx, subj, data)
	if err != nil {
		return fmt.Errorf("request %s: %w", subj, err)
	}
	if err := json.Unmarshal(msg.Data, reply); err != nil {
		return fmt.Errorf("decode %s reply: %w", subj, err)
	}
	return nil
}

// Snapshot 查询挂单与仓位
func (p *NATSPrimary) Snapshot(ctx context.Context, asset market.Asset) (engine.PrimarySnapshot, error) {
	var reply snapshotReply
	if err := p.request(ctx, p.subject("snapshot", string(asset)), assetRequest{Asset: asset}, &reply); err != nil {
		return engine.PrimarySnapshot{}, err
	}
	if reply.Error != "" {
		return engine.PrimarySnapshot{}, fmt.Errorf("%w: snapshot %s: %s", ErrPrimaryRejected, asset, reply.Error)
	}
	return reply.PrimarySnapshot, nil
}

// CancelAll 撤掉全部挂单，返回仍存在的挂单数
func (p *NATSPrimary) CancelAll(ctx context.Context) (int, error) {
	var reply cancelAllReply
	if err := p.request(ctx, p.subject("cancel_all"), struct{}{}, &reply); err != nil {
		return -1, err
	}
	if reply.Error != "" {
		return reply.Remaining, fmt.Errorf("%w: cancel all: %s", ErrPrimaryRejected, reply.Error)
	}
	return reply.Remaining, nil
}

// RiskStats 查询账户汇总
func (p *NATSPrimary) RiskStats(ctx context.Context) (store.RiskStats, error) {
	var reply riskReply
	if err := p.request(ctx, p.subject("risk"), struct{}{}, &reply); err != nil {
		return store.RiskStats{}, err
	}
	if reply.Error != "" {
		return store.RiskStats{}, fmt.Errorf("%w: risk: %s", ErrPrimaryRejected, reply.Error)
	}
	return reply.RiskStats, nil
}

// decodeEvent 事件类型优先取消息体，缺省时取主题最后一段。
func decodeEvent(subject string, data []byte) (engine.VenueEvent, error) {
	var ev engine.VenueEvent
	if len(data) > 0 {
		if err := json.Unmarshal(data, &ev); err != nil {
			return engine.VenueEvent{}, err
		}
	}
	if ev.Kind == "" {
		ev.Kind = engine.EventKind(subject[strings.LastIndex(subject, ".")+1:])
	}
	switch ev.Kind {
	case engine.EventFill, engine.EventFunding:
		if ev.Asset == "" {
			return engine.VenueEvent{}, fmt.Errorf("%s event without asset", ev.Kind)
		}
	case engine.EventUser:
	default:
		return engine.VenueEvent{}, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return ev, nil
}

// Events 订阅 <prefix>.events.*
func (p *NATSPrimary) Events(handler func(engine.VenueEvent)) (func(), error) {
	subj := p.subject("events", "*")
	sub, err := p.conn.Subscribe(subj, func(msg *nats.Msg) {
		ev, err := decodeEvent(msg.Subject, msg.Data)
		if err != nil {
			p.logger.Warn("bad venue event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		handler(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subj, err)
	}
	return func() {
		if sub != nil {
			_ = sub.Unsubscribe()
		}
	}, nil
}
