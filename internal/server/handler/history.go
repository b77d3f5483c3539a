package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

// historyMaxLimit caps one history page regardless of the requested limit.
const historyMaxLimit = 1000

// HistoryHandler serves the historical query contract: recorded ticks for
// a symbol at or after a starting moment, ascending, paginated.
type HistoryHandler struct {
	store  domain.TickStore
	logger *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(store domain.TickStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger.With(slog.String("handler", "history"))}
}

// GetHistory returns one page of recorded ticks. The symbol may carry the
// replay marker; ticks are recorded under the live symbol, so the marker
// is stripped before querying.
// GET /history/{symbol}?startAt=<RFC3339|unix-ms>&datasources[]=<source>&limit=<n>
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := domain.Symbol(r.PathValue("symbol"))
	if !domain.KnownSymbol(symbol) {
		writeError(w, http.StatusBadRequest, "unknown symbol")
		return
	}

	q := r.URL.Query()

	startAtRaw := q.Get("startAt")
	if startAtRaw == "" {
		writeError(w, http.StatusBadRequest, "startAt required")
		return
	}
	startAt, err := parseStartAt(startAtRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid startAt")
		return
	}

	limit := historyMaxLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n < limit {
			limit = n
		}
	}

	var sources []domain.DataSource
	for _, raw := range q["datasources[]"] {
		src := domain.DataSource(raw)
		if !domain.KnownSource(src) {
			writeError(w, http.StatusBadRequest, "unknown datasource "+raw)
			return
		}
		sources = append(sources, src)
	}

	batch, err := h.store.Query(r.Context(), domain.TickQuery{
		Symbol:  symbol.TrimReplaySuffix(),
		StartAt: startAt,
		Limit:   limit,
		Sources: sources,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "history query failed",
			slog.String("symbol", string(symbol)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if batch.Data == nil {
		batch.Data = []domain.SourcedPoint{}
	}

	writeJSON(w, http.StatusOK, batch)
}
