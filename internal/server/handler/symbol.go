package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

// SymbolController is the slice of the application the symbol endpoints
// drive: reading the current selection and switching instruments.
type SymbolController interface {
	Selected() domain.Symbol
	SetSymbol(ctx context.Context, symbol domain.Symbol) error
}

// SymbolHandler serves the instrument catalogue and selection endpoints.
type SymbolHandler struct {
	app    SymbolController
	logger *slog.Logger
}

// NewSymbolHandler creates a SymbolHandler.
func NewSymbolHandler(app SymbolController, logger *slog.Logger) *SymbolHandler {
	return &SymbolHandler{app: app, logger: logger.With(slog.String("handler", "symbol"))}
}

// ListSymbols returns the instrument catalogue with each symbol's asset
// class and the sources that can serve it.
// GET /api/symbols
func (h *SymbolHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Symbol  domain.Symbol       `json:"symbol"`
		Class   string              `json:"class"`
		Sources []domain.DataSource `json:"sources"`
	}

	catalogue := domain.Catalogue()
	sort.Slice(catalogue, func(i, j int) bool { return catalogue[i] < catalogue[j] })

	out := make([]entry, 0, len(catalogue))
	for _, sym := range catalogue {
		out = append(out, entry{
			Symbol:  sym,
			Class:   domain.ClassOf(sym).String(),
			Sources: domain.SourcesFor(sym),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": out})
}

// GetSelected returns the currently selected instrument, which may be
// empty when nothing is selected.
// GET /api/symbol
func (h *SymbolHandler) GetSelected(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"symbol": h.app.Selected()})
}

// SetSymbol switches the selected instrument. Live connections for the
// previous instrument are torn down before the new set is opened.
// PUT /api/symbol
func (h *SymbolHandler) SetSymbol(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol domain.Symbol `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.app.SetSymbol(r.Context(), req.Symbol); err != nil {
		if errors.Is(err, domain.ErrUnknownSymbol) {
			writeError(w, http.StatusBadRequest, "unknown symbol")
			return
		}
		h.logger.ErrorContext(r.Context(), "symbol switch failed",
			slog.String("symbol", string(req.Symbol)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "symbol switch failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"symbol": req.Symbol})
}
