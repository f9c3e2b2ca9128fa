package ops

import (
	"context"
	"time"

	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/internal/usecase"
	"SigFuse/pkg/config"
	pkghttp "SigFuse/pkg/http"

	"github.com/labstack/echo/v4"
)

// StatusHandler exposes pipeline health and depth over the ops API.
type StatusHandler struct {
	cfg        *config.Config
	dedup      *usecase.Deduplicator
	dispatcher *usecase.Dispatcher
	aggregator *usecase.Aggregator
	risk       *usecase.RiskManager
	tradeLog   domrepo.TradeLog
	startedAt  time.Time
}

func NewStatusHandler(
	cfg *config.Config,
	dedup *usecase.Deduplicator,
	dispatcher *usecase.Dispatcher,
	aggregator *usecase.Aggregator,
	risk *usecase.RiskManager,
	tradeLog domrepo.TradeLog,
) *StatusHandler {
	return &StatusHandler{
		cfg:        cfg,
		dedup:      dedup,
		dispatcher: dispatcher,
		aggregator: aggregator,
		risk:       risk,
		tradeLog:   tradeLog,
		startedAt:  time.Now(),
	}
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/api/status", h.Status)
	e.GET("/api/positions/:symbol", h.Position)
}

// Health reports liveness plus audit store reachability when configured.
func (h *StatusHandler) Health(c echo.Context) error {
	out := map[string]interface{}{"status": "ok"}
	if h.tradeLog != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.tradeLog.Health(ctx); err != nil {
			out["status"] = "degraded"
			out["audit_store"] = err.Error()
			return pkghttp.ServiceUnavailableResponse(c, out)
		}
		out["audit_store"] = "ok"
	}
	return pkghttp.SuccessResponse(c, out)
}

// Status reports pipeline depths and mode.
func (h *StatusHandler) Status(c echo.Context) error {
	instant, windowed := h.dispatcher.Depth()
	return pkghttp.SuccessResponse(c, map[string]interface{}{
		"uptime_seconds":  int(time.Since(h.startedAt).Seconds()),
		"dry_run":         h.cfg.Execution.DryRun,
		"dedup_entries":   h.dedup.Len(),
		"queue_instant":   instant,
		"queue_windowed":  windowed,
		"pending_windows": h.aggregator.PendingCount(),
		"open_positions":  h.risk.OpenPositions(),
	})
}

// Position returns the held position for a symbol.
func (h *StatusHandler) Position(c echo.Context) error {
	pos, ok := h.risk.Position(c.Param("symbol"))
	if !ok {
		return pkghttp.NotFoundResponse(c, "no open position")
	}
	return pkghttp.SuccessResponse(c, pos)
}
