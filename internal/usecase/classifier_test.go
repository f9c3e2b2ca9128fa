package usecase

import (
	"testing"

	"SigFuse/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func TestClassifierTiers(t *testing.T) {
	c := NewClassifier(testConfig())

	cases := []struct {
		source   string
		exchange string
		tier     string
		base     float64
	}{
		{"binance_announcement", "binance", models.TierS, 90}, // allow-listed beats heuristics
		{"tg_alpha_intel", "", models.TierS, 90},
		{"okx_announcement", "okx", models.TierB, 55},
		{"coinbase_api", "coinbase", models.TierA, 70},
		{"bybit_ws", "bybit", models.TierB, 45},
		{"tw_whale_watch", "", models.TierC, 30},
		{"discord_degens", "", models.TierC, 30},
		{"random_scraper", "", models.TierC, 15},
		{"", "", models.TierC, 15},
	}

	for _, tc := range cases {
		ev := rawEvent(tc.source, tc.exchange, "BTC")
		got := c.Classify(ev)
		assert.Equal(t, tc.tier, got.Tier, "source %q", tc.source)
		assert.Equal(t, tc.base, got.BaseScore, "source %q", tc.source)
	}
}

func TestClassifierExchangeWeight(t *testing.T) {
	cfg := testConfig()
	c := NewClassifier(cfg)

	assert.Equal(t, 100.0, c.ExchangeWeight("binance"))
	assert.Equal(t, 100.0, c.ExchangeWeight("Binance"))
	assert.Equal(t, 40.0, c.ExchangeWeight("mexc"))
	assert.Equal(t, cfg.Exchanges.DefaultWeight, c.ExchangeWeight("nobody-heard-of-it"))
}

func TestClassifierTier1Exchange(t *testing.T) {
	c := NewClassifier(testConfig())

	assert.True(t, c.IsTier1Exchange("binance"))
	assert.True(t, c.IsTier1Exchange("UPBIT"))
	assert.False(t, c.IsTier1Exchange("mexc"))
	assert.False(t, c.IsTier1Exchange(""))
}
