package usecase

import (
	"strings"

	"SigFuse/internal/domain/models"
	"SigFuse/pkg/config"
)

// Classifier maps raw event metadata to a canonical source identity and
// exchange trust weight. Pure and total: every input classifies, unknown
// origins land in the lowest tier.
type Classifier struct {
	tierS         map[string]bool
	tierA         map[string]bool
	weights       map[string]float64
	defaultWeight float64
	tier1         map[string]bool
}

// NewClassifier builds the classifier from the static config tables.
func NewClassifier(cfg *config.Config) *Classifier {
	c := &Classifier{
		tierS:         make(map[string]bool, len(cfg.Sources.TierS)),
		tierA:         make(map[string]bool, len(cfg.Sources.TierA)),
		weights:       make(map[string]float64, len(cfg.Exchanges.Weights)),
		defaultWeight: cfg.Exchanges.DefaultWeight,
		tier1:         make(map[string]bool, len(cfg.Exchanges.Tier1)),
	}
	for _, s := range cfg.Sources.TierS {
		c.tierS[strings.ToLower(s)] = true
	}
	for _, s := range cfg.Sources.TierA {
		c.tierA[strings.ToLower(s)] = true
	}
	for ex, w := range cfg.Exchanges.Weights {
		c.weights[strings.ToLower(ex)] = w
	}
	for _, ex := range cfg.Exchanges.Tier1 {
		c.tier1[strings.ToLower(ex)] = true
	}
	return c
}

// Classify resolves an event origin. Priority: explicit allow-lists, then
// protocol heuristics from the source name, then the unknown fallback.
func (c *Classifier) Classify(ev *models.RawEvent) models.ClassifiedSource {
	name := strings.ToLower(strings.TrimSpace(ev.Source))
	if name == "" {
		name = "unknown"
	}

	switch {
	case c.tierS[name]:
		return models.ClassifiedSource{Name: name, Tier: models.TierS, BaseScore: 90}
	case c.tierA[name]:
		return models.ClassifiedSource{Name: name, Tier: models.TierA, BaseScore: 75}
	case strings.HasSuffix(name, "_announcement") || strings.HasSuffix(name, "_api"):
		// REST-polled exchange announcement endpoints
		if c.tier1[strings.ToLower(ev.Exchange)] {
			return models.ClassifiedSource{Name: name, Tier: models.TierA, BaseScore: 70}
		}
		return models.ClassifiedSource{Name: name, Tier: models.TierB, BaseScore: 55}
	case strings.HasSuffix(name, "_ws") || strings.Contains(name, "websocket"):
		return models.ClassifiedSource{Name: name, Tier: models.TierB, BaseScore: 45}
	case strings.HasPrefix(name, "tg_") || strings.HasPrefix(name, "tw_") || strings.HasPrefix(name, "discord_"):
		return models.ClassifiedSource{Name: name, Tier: models.TierC, BaseScore: 30}
	default:
		return models.ClassifiedSource{Name: "unknown", Tier: models.TierC, BaseScore: 15}
	}
}

// ExchangeWeight returns the 0-100 trust weight of an exchange,
// falling back to the configured default for unknown venues.
func (c *Classifier) ExchangeWeight(exchange string) float64 {
	if w, ok := c.weights[strings.ToLower(exchange)]; ok {
		return w
	}
	return c.defaultWeight
}

// IsTier1Exchange reports whether the exchange qualifies for the instant lane.
func (c *Classifier) IsTier1Exchange(exchange string) bool {
	return c.tier1[strings.ToLower(exchange)]
}
