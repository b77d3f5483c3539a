package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

// MetricsReader is the read side of the metrics table.
type MetricsReader interface {
	Selected() domain.Symbol
	Snapshot(symbol domain.Symbol) map[domain.DataSource]domain.CurrentPriceMetrics
}

// MetricsHandler serves per-source metrics snapshots for the selected
// instrument.
type MetricsHandler struct {
	store  MetricsReader
	logger *slog.Logger
}

// NewMetricsHandler creates a MetricsHandler.
func NewMetricsHandler(store MetricsReader, logger *slog.Logger) *MetricsHandler {
	return &MetricsHandler{store: store, logger: logger.With(slog.String("handler", "metrics"))}
}

// GetMetrics returns the latest metrics row per source for a symbol. A
// symbol other than the current selection yields 404: the table only ever
// holds the selected instrument.
// GET /api/metrics/{symbol}
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	symbol := domain.Symbol(r.PathValue("symbol"))
	if !domain.KnownSymbol(symbol) {
		writeError(w, http.StatusBadRequest, "unknown symbol")
		return
	}
	if symbol != h.store.Selected() {
		writeError(w, http.StatusNotFound, "symbol is not selected")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"metrics": h.store.Snapshot(symbol),
	})
}
