package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

// ReplayController is the slice of the application the replay endpoint
// drives: repositioning the cursor and adjusting playback speed.
type ReplayController interface {
	Selected() domain.Symbol
	SetReplayCursor(ctx context.Context, startAt int64, speed float64) error
	SetReplaySpeed(speed float64)
	ReplayState() string
}

// LastTickSource reports the newest recorded tick time for a symbol, zero
// when nothing has been recorded.
type LastTickSource interface {
	LastTimestamp(ctx context.Context, symbol domain.Symbol) (time.Time, error)
}

// ReplayHandler serves playback control for the selected replay
// instrument.
type ReplayHandler struct {
	app    ReplayController
	ticks  LastTickSource
	logger *slog.Logger
}

// NewReplayHandler creates a ReplayHandler.
func NewReplayHandler(app ReplayController, ticks LastTickSource, logger *slog.Logger) *ReplayHandler {
	return &ReplayHandler{
		app:    app,
		ticks:  ticks,
		logger: logger.With(slog.String("handler", "replay")),
	}
}

// GetReplay reports the replay engine's state.
// GET /api/replay
func (h *ReplayHandler) GetReplay(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"state": h.app.ReplayState()})
}

// SetReplay repositions the replay cursor and/or changes speed. A request
// carrying startAt restarts playback from that moment; the literal value
// "latest" starts from the newest recorded tick of the selected instrument.
// A request carrying only speed adjusts pacing without moving the cursor.
// PUT /api/replay
func (h *ReplayHandler) SetReplay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartAt *string  `json:"startAt"`
		Speed   *float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StartAt == nil && req.Speed == nil {
		writeError(w, http.StatusBadRequest, "startAt or speed required")
		return
	}
	if req.Speed != nil && *req.Speed <= 0 {
		writeError(w, http.StatusBadRequest, "speed must be positive")
		return
	}

	if req.StartAt != nil {
		var startAt int64
		if *req.StartAt == "latest" {
			last, err := h.ticks.LastTimestamp(r.Context(), h.app.Selected().TrimReplaySuffix())
			if err != nil {
				h.logger.ErrorContext(r.Context(), "last tick lookup failed",
					slog.String("error", err.Error()),
				)
				writeError(w, http.StatusInternalServerError, "history lookup failed")
				return
			}
			if last.IsZero() {
				writeError(w, http.StatusConflict, "no recorded history")
				return
			}
			startAt = last.UnixMilli()
		} else {
			var err error
			startAt, err = parseStartAt(*req.StartAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid startAt")
				return
			}
		}
		speed := 1.0
		if req.Speed != nil {
			speed = *req.Speed
		}
		if err := h.app.SetReplayCursor(r.Context(), startAt, speed); err != nil {
			h.logger.ErrorContext(r.Context(), "replay cursor reset failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusConflict, err.Error())
			return
		}
	} else {
		h.app.SetReplaySpeed(*req.Speed)
	}

	writeJSON(w, http.StatusOK, map[string]any{"state": h.app.ReplayState()})
}
