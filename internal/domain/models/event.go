package models

import "time"

// RawEvent is a single observation emitted by a collector. Required fields
// are statically typed; collector-specific extras ride in Meta untouched.
type RawEvent struct {
	Source          string            `json:"source" validate:"required"`
	Exchange        string            `json:"exchange,omitempty"`
	Symbols         []string          `json:"symbols" validate:"required,min=1"`
	RawText         string            `json:"raw_text"`
	URL             string            `json:"url,omitempty"`
	ContractAddress string            `json:"contract_address,omitempty"`
	Chain           string            `json:"chain,omitempty"`
	EventType       string            `json:"event_type,omitempty"`                 // listing, futures_listing, delisting
	DetectedAt      int64             `json:"detected_at" validate:"required,gt=0"` // ms epoch
	Meta            map[string]string `json:"meta,omitempty"`
}

// Symbol returns the primary symbol of the event.
func (e *RawEvent) Symbol() string {
	if len(e.Symbols) == 0 {
		return ""
	}
	return e.Symbols[0]
}

// DetectedTime converts the ms epoch into a time.Time.
func (e *RawEvent) DetectedTime() time.Time {
	return time.UnixMilli(e.DetectedAt)
}

// Source tiers, highest trust first.
const (
	TierS = "S"
	TierA = "A"
	TierB = "B"
	TierC = "C"
)

// Event types understood by the scorer.
const (
	EventListing        = "listing"
	EventFuturesListing = "futures_listing"
	EventDelisting      = "delisting"
	EventUnknown        = "unknown"
)

// ClassifiedSource is the canonical identity the classifier assigns to an
// event origin.
type ClassifiedSource struct {
	Name      string  // canonical source name, e.g. "tg_alpha_intel"
	Tier      string  // TierS..TierC
	BaseScore float64 // 0-100 trust score for this source
}

// ScoreInfo is the derived, non-persisted scoring verdict for one event.
type ScoreInfo struct {
	Event              *RawEvent
	Source             ClassifiedSource
	BaseScore          float64
	EventTypeScore     float64
	ExchangeMultiplier float64
	FreshnessMult      float64
	MultiSourceBonus   float64
	TotalScore         float64
	ShouldTrigger      bool
	TriggerReason      string
	Symbols            []string
	IsFirst            bool // first sighting of the primary symbol
}

// SuperEvent is the time-windowed merge of all observations of one symbol.
// It lives only between the first observation and finalization.
type SuperEvent struct {
	Symbol        string          `json:"symbol"`
	Sources       map[string]bool `json:"sources"`
	Exchanges     map[string]bool `json:"exchanges"`
	Best          *ScoreInfo      `json:"-"` // max-scoring representative
	MaxScore      float64         `json:"max_score"`
	MultiBonus    float64         `json:"multi_bonus"`
	FinalScore    float64         `json:"final_score"`
	ShouldTrigger bool            `json:"should_trigger"`
	FirstSeen     time.Time       `json:"first_seen"`
	LastUpdate    time.Time       `json:"last_update"`
	Instant       bool            `json:"instant"` // bypassed the aggregation window
}

// SourceCount reports the number of distinct corroborating sources.
func (s *SuperEvent) SourceCount() int { return len(s.Sources) }

// ExchangeCount reports the number of distinct exchanges seen for the symbol.
func (s *SuperEvent) ExchangeCount() int { return len(s.Exchanges) }
