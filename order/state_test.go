package order

import "testing"

func TestQuoteSideMapping(t *testing.T) {
	if QuoteBid.Side() != SideBuy {
		t.Fatalf("bid should map to BUY")
	}
	if QuoteAsk.Side() != SideSell {
		t.Fatalf("ask should map to SELL")
	}
}

func TestQuoteCancelReplaceOnlyLevelZero(t *testing.T) {
	q := Quote{Level: 0}
	if !q.CancelReplace() {
		t.Fatalf("level 0 must cancel-then-replace")
	}
	q.Level = 2
	if q.CancelReplace() {
		t.Fatalf("higher levels are additive")
	}
}
