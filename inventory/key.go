package inventory

import (
	"errors"
	"fmt"

	"hedge-maker-go/market"
)

// Venue 仓位所在场所：报价场所(primary)或对冲场所(hedge)。
type Venue string

const (
	VenuePrimary Venue = "primary"
	VenueHedge   Venue = "hedge"
)

// ErrIncompleteKey Set 只接受完整的 key。
var ErrIncompleteKey = errors.New("incomplete position key")

// ErrUnknownVenue 场所不在 primary/hedge 之内。
var ErrUnknownVenue = errors.New("unknown venue")

// ParseVenue 解析场所名称。
func ParseVenue(s string) (Venue, error) {
	switch v := Venue(s); v {
	case VenuePrimary, VenueHedge:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVenue, s)
	}
}

// Key 完整的仓位键 (venue, asset, instrument)。
type Key struct {
	Venue      Venue        `json:"venue"`
	Asset      market.Asset `json:"asset"`
	Instrument int          `json:"marketIndex"`
}

// Validate 检查 key 是否完整。
func (k Key) Validate() error {
	if _, err := ParseVenue(string(k.Venue)); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompleteKey, err)
	}
	if k.Asset == "" {
		return fmt.Errorf("%w: empty asset", ErrIncompleteKey)
	}
	return nil
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%s-%d", k.Venue, k.Asset, k.Instrument)
}

// Pattern 查询模式，任一字段都可以是通配；只用于查询，不会被存储。
type Pattern struct {
	venue      *Venue
	asset      *market.Asset
	instrument *int
}

// Any 全通配模式。
func Any() Pattern { return Pattern{} }

// WithVenue 限定场所。
func (p Pattern) WithVenue(v Venue) Pattern {
	p.venue = &v
	return p
}

// WithAsset 限定资产。
func (p Pattern) WithAsset(a market.Asset) Pattern {
	p.asset = &a
	return p
}

// WithInstrument 限定品种。
func (p Pattern) WithInstrument(i int) Pattern {
	p.instrument = &i
	return p
}

// Pattern 返回只匹配 k 本身的模式。
func (k Key) Pattern() Pattern {
	return Any().WithVenue(k.Venue).WithAsset(k.Asset).WithInstrument(k.Instrument)
}

// Matches 模式匹配谓词。
func (p Pattern) Matches(k Key) bool {
	if p.venue != nil && *p.venue != k.Venue {
		return false
	}
	if p.asset != nil && *p.asset != k.Asset {
		return false
	}
	if p.instrument != nil && *p.instrument != k.Instrument {
		return false
	}
	return true
}

// Full 模式无通配时返回对应的 key。
func (p Pattern) Full() (Key, bool) {
	if p.venue == nil || p.asset == nil || p.instrument == nil {
		return Key{}, false
	}
	return Key{Venue: *p.venue, Asset: *p.asset, Instrument: *p.instrument}, true
}

func (p Pattern) String() string {
	v, a, i := "*", "*", "*"
	if p.venue != nil {
		v = string(*p.venue)
	}
	if p.asset != nil {
		a = string(*p.asset)
	}
	if p.instrument != nil {
		i = fmt.Sprint(*p.instrument)
	}
	return v + "-" + a + "-" + i
}
