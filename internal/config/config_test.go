package config

import "testing"

func TestValidateRequiresPowerOfTwoRingLength(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Feed:    FeedConfig{MulticastAddr: "239.1.1.1:12345"},
		Symbols: SymbolsConfig{MaxSymbols: 1024},
		Ring:    RingConfig{Length: 10},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-power-of-two ring length")
	}
}

func TestValidateRequiresMulticastAddr(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Symbols: SymbolsConfig{MaxSymbols: 1024},
		Ring:    RingConfig{Length: 4096},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing feed.multicast_addr")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Feed:    FeedConfig{MulticastAddr: "239.1.1.1:12345"},
		Symbols: SymbolsConfig{MaxSymbols: 1024},
		Ring:    RingConfig{Length: 4096},
		Risk:    RiskConfig{PriceBandBps: 500, TokenBucketMax: 100},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
