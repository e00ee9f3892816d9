package order

import (
	"sync/atomic"
	"time"
)

// IDSource 客户端订单号来源。报价与对冲单共用同一个计数器，保证进程内全局唯一。
type IDSource interface {
	Next() uint64
}

// IDGenerator 单调递增的原子计数器。
type IDGenerator struct {
	next atomic.Uint64
}

// NewIDGenerator 以 seed 作为第一个返回值。
func NewIDGenerator(seed uint64) *IDGenerator {
	g := &IDGenerator{}
	g.next.Store(seed)
	return g
}

// NewClockSeededIDGenerator 以启动时刻的毫秒时间戳为种子；
// 只要重启间隔内的发号速率低于 1/ms，跨进程重启也不会重复。
func NewClockSeededIDGenerator() *IDGenerator {
	return NewIDGenerator(uint64(time.Now().UnixMilli()))
}

// Next 返回下一个订单号。
func (g *IDGenerator) Next() uint64 {
	return g.next.Add(1) - 1
}
