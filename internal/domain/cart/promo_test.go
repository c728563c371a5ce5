package cart

import "testing"

func TestNormalizePromo(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"HEALTH10", "HEALTH10", true},
		{" health10 ", "HEALTH10", true},
		{"First20", "FIRST20", true},
		{"SAVE50", "SAVE50", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizePromo(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizePromo(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDiscount(t *testing.T) {
	tests := []struct {
		subtotal int64
		code     string
		want     int64
	}{
		{1000, "HEALTH10", 100},
		{1000, "FIRST20", 200},
		{999, "HEALTH10", 99},
		{3298, "FIRST20", 659},
		{1000, "BOGUS", 0},
		{0, "HEALTH10", 0},
	}
	for _, tt := range tests {
		if got := Discount(tt.subtotal, tt.code); got != tt.want {
			t.Errorf("Discount(%d, %s) = %d, want %d", tt.subtotal, tt.code, got, tt.want)
		}
	}
}

func TestNewQuote(t *testing.T) {
	q := NewQuote(Totals{Subtotal: 3298, Savings: 2100}, "HEALTH10")
	if q.Discount != 329 || q.Total != 2969 || q.Savings != 2100 || q.PromoCode != "HEALTH10" {
		t.Errorf("unexpected quote %+v", q)
	}

	q = NewQuote(Totals{Subtotal: 500}, "")
	if q.Discount != 0 || q.Total != 500 {
		t.Errorf("expected no discount without a code, got %+v", q)
	}
}
