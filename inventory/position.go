package inventory

import (
	"sort"
	"sync"
)

// Entry 一条仓位记录，Size 为带符号的基础资产数量。
type Entry struct {
	Key  Key     `json:"key"`
	Size float64 `json:"size"`
}

// Agg 稀疏的多维仓位表，按 (venue, asset, instrument) 存储。
// 只存完整 key；零仓位也会保留，不做删除。
type Agg struct {
	mu        sync.RWMutex
	positions map[Key]float64
}

// NewAgg 创建空仓位表。
func NewAgg() *Agg {
	return &Agg{positions: make(map[Key]float64)}
}

// Set 写入仓位，返回值是否发生变化；首次写入视为变化。
func (a *Agg) Set(k Key, size float64) (bool, error) {
	if err := k.Validate(); err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cur, ok := a.positions[k]
	if ok && cur == size {
		return false, nil
	}
	a.positions[k] = size
	return true, nil
}

// Lookup 精确读取。
func (a *Agg) Lookup(k Key) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.positions[k]
	return v, ok
}

// Get 返回所有匹配 p 的记录，不保证顺序。
func (a *Agg) Get(p Pattern) []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var res []Entry
	for k, v := range a.positions {
		if p.Matches(k) {
			res = append(res, Entry{Key: k, Size: v})
		}
	}
	return res
}

// First 返回任意一条匹配记录的值。
func (a *Agg) First(p Pattern) (float64, bool) {
	if k, ok := p.Full(); ok {
		return a.Lookup(k)
	}
	entries := a.Get(p)
	if len(entries) == 0 {
		return 0, false
	}
	SortEntries(entries)
	return entries[0].Size, true
}

// Sum 匹配记录求和；没有任何匹配时 ok=false，调用方需区分“无数据”与“零”。
func (a *Agg) Sum(p Pattern) (sum float64, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for k, v := range a.positions {
		if p.Matches(k) {
			sum += v
			ok = true
		}
	}
	return sum, ok
}

// Len 已记录的 key 数量。
func (a *Agg) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.positions)
}

// Clone 时点快照，与原表互不影响。
func (a *Agg) Clone() *Agg {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cp := make(map[Key]float64, len(a.positions))
	for k, v := range a.positions {
		cp[k] = v
	}
	return &Agg{positions: cp}
}

// SortEntries 按 venue、asset、instrument 排序，便于展示与测试。
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Key, entries[j].Key
		if a.Venue != b.Venue {
			return a.Venue < b.Venue
		}
		if a.Asset != b.Asset {
			return a.Asset < b.Asset
		}
		return a.Instrument < b.Instrument
	})
}
