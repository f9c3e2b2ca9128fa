package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/pkg/logger"
	"SigFuse/pkg/util"

	"github.com/go-resty/resty/v2"
)

// RestDirectory implements SymbolDirectory from snapshots pulled off the
// listings service. Lookups read the in-memory snapshot only; Refresh is
// the single network path and swaps the snapshot atomically. A failed
// refresh keeps the previous snapshot so routing degrades to stale data,
// not to empty data.
type RestDirectory struct {
	client  *resty.Client
	metrics domrepo.Metrics
	logger  *logger.Logger

	mu   sync.RWMutex
	spot map[string]map[string]bool // exchange -> symbol set
	perp map[string]bool
}

type spotSnapshot struct {
	Exchanges map[string][]string `json:"exchanges"`
}

type perpSnapshot struct {
	Symbols []string `json:"symbols"`
}

// NewRestDirectory creates the directory client. An empty baseURL yields a
// directory that never refreshes and answers negatively, which pushes
// routing toward the speculative and no_route branches.
func NewRestDirectory(baseURL string, timeout time.Duration, metrics domrepo.Metrics, lgr *logger.Logger) *RestDirectory {
	var client *resty.Client
	if baseURL != "" {
		client = resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetTimeout(timeout).
			SetRetryCount(2).
			SetRetryWaitTime(200 * time.Millisecond)
	}
	return &RestDirectory{
		client:  client,
		metrics: metrics,
		logger:  lgr,
		spot:    make(map[string]map[string]bool),
		perp:    make(map[string]bool),
	}
}

func (d *RestDirectory) ListedOnSpot(exchange, symbol string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	set, ok := d.spot[strings.ToLower(exchange)]
	return ok && set[util.NormalizeSymbol(symbol)]
}

func (d *RestDirectory) SpotExchanges(symbol string) []string {
	sym := util.NormalizeSymbol(symbol)
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []string
	for ex, set := range d.spot {
		if set[sym] {
			out = append(out, ex)
		}
	}
	return out
}

func (d *RestDirectory) ListedOnPerp(symbol string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.perp[util.NormalizeSymbol(symbol)]
}

// Refresh pulls fresh spot and perp snapshots.
func (d *RestDirectory) Refresh(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	start := time.Now()

	var spot spotSnapshot
	resp, err := d.client.R().SetContext(ctx).SetResult(&spot).Get("/v1/listings/spot")
	if err != nil {
		return fmt.Errorf("fetch spot listings: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fetch spot listings: status %d", resp.StatusCode())
	}

	var perp perpSnapshot
	resp, err = d.client.R().SetContext(ctx).SetResult(&perp).Get("/v1/listings/perp")
	if err != nil {
		return fmt.Errorf("fetch perp listings: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fetch perp listings: status %d", resp.StatusCode())
	}

	newSpot := make(map[string]map[string]bool, len(spot.Exchanges))
	for ex, symbols := range spot.Exchanges {
		set := make(map[string]bool, len(symbols))
		for _, s := range symbols {
			set[util.NormalizeSymbol(s)] = true
		}
		newSpot[strings.ToLower(ex)] = set
	}
	newPerp := make(map[string]bool, len(perp.Symbols))
	for _, s := range perp.Symbols {
		newPerp[util.NormalizeSymbol(s)] = true
	}

	d.mu.Lock()
	d.spot = newSpot
	d.perp = newPerp
	d.mu.Unlock()

	d.metrics.RecordLatency("directory_refresh", time.Since(start).Seconds())
	d.logger.Debug("directory refreshed",
		logger.Int("exchanges", len(newSpot)),
		logger.Int("perp_symbols", len(newPerp)))
	return nil
}

var _ domrepo.SymbolDirectory = (*RestDirectory)(nil)

// MemoryDirectory is a fixed in-memory SymbolDirectory for tests and
// offline runs.
type MemoryDirectory struct {
	Spot     map[string][]string // exchange -> symbols
	PerpList []string
}

func (m *MemoryDirectory) ListedOnSpot(exchange, symbol string) bool {
	for _, s := range m.Spot[strings.ToLower(exchange)] {
		if util.NormalizeSymbol(s) == util.NormalizeSymbol(symbol) {
			return true
		}
	}
	return false
}

func (m *MemoryDirectory) SpotExchanges(symbol string) []string {
	var out []string
	for ex := range m.Spot {
		if m.ListedOnSpot(ex, symbol) {
			out = append(out, ex)
		}
	}
	return out
}

func (m *MemoryDirectory) ListedOnPerp(symbol string) bool {
	for _, s := range m.PerpList {
		if util.NormalizeSymbol(s) == util.NormalizeSymbol(symbol) {
			return true
		}
	}
	return false
}

func (m *MemoryDirectory) Refresh(ctx context.Context) error { return nil }

var _ domrepo.SymbolDirectory = (*MemoryDirectory)(nil)
