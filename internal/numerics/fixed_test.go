package numerics

import "testing"

func TestPriceFromFloatRoundTrip(t *testing.T) {
	p := PriceFromFloat(100.25)
	if p.Float() != 100.25 {
		t.Fatalf("expected 100.25, got %v", p.Float())
	}
}

func TestWeightedAvgBuyIntoPosition(t *testing.T) {
	// Size 10 at 100.00, add 10 at 110.00 -> avg 105.00
	avg := WeightedAvg(PriceFromFloat(100), QtyFromFloat(10), PriceFromFloat(110), QtyFromFloat(10))
	if got := avg.Float(); got != 105.0 {
		t.Fatalf("expected 105.0, got %v", got)
	}
}

func TestWeightedAvgZeroQty(t *testing.T) {
	avg := WeightedAvg(PriceFromFloat(100), 0, PriceFromFloat(110), 0)
	if avg != 0 {
		t.Fatalf("expected 0, got %v", avg)
	}
}

func TestRoundedDivBankersRounding(t *testing.T) {
	cases := []struct {
		num, denom, want int64
	}{
		{5, 2, 2},  // 2.5 -> 2 (even)
		{7, 2, 4},  // 3.5 -> 4 (even)
		{-5, 2, -2},
		{9, 2, 4}, // 4.5 -> 4 (even)
	}
	for _, c := range cases {
		if got := roundedDiv(c.num, c.denom); got != c.want {
			t.Errorf("roundedDiv(%d,%d) = %d, want %d", c.num, c.denom, got, c.want)
		}
	}
}

func TestSequenceMonotonic(t *testing.T) {
	var s Sequence
	a := s.Next()
	b := s.Next()
	if b != a+1 {
		t.Fatalf("expected strictly increasing sequence, got %d then %d", a, b)
	}
}
