package config

import "testing"

func TestSetDefaultsPopulatesEveryComponent(t *testing.T) {
	config = &Config{}
	setDefaults()

	if config.Gateway.Port == 0 {
		t.Fatal("expected gateway port default")
	}
	if len(config.MarketData.Symbols) == 0 {
		t.Fatal("expected default symbols")
	}
	if config.Matching.SelfTradePolicy != "allow" {
		t.Fatalf("expected default self-trade policy allow, got %q", config.Matching.SelfTradePolicy)
	}
	if config.Venue.StalenessWindowMillis != 5000 {
		t.Fatalf("expected 5000ms staleness window default, got %d", config.Venue.StalenessWindowMillis)
	}
	if config.Router.POVParticipationBps == 0 {
		t.Fatal("expected default POV participation")
	}
}
