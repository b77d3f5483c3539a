package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeApp implements SymbolController and ReplayController.
type fakeApp struct {
	selected    domain.Symbol
	setErr      error
	setCalls    []domain.Symbol
	cursorAt    int64
	cursorSpeed float64
	cursorErr   error
	speedCalls  []float64
	state       string
}

func (f *fakeApp) Selected() domain.Symbol { return f.selected }

func (f *fakeApp) SetSymbol(_ context.Context, symbol domain.Symbol) error {
	f.setCalls = append(f.setCalls, symbol)
	if f.setErr != nil {
		return f.setErr
	}
	f.selected = symbol
	return nil
}

func (f *fakeApp) SetReplayCursor(_ context.Context, startAt int64, speed float64) error {
	f.cursorAt = startAt
	f.cursorSpeed = speed
	return f.cursorErr
}

func (f *fakeApp) SetReplaySpeed(speed float64) { f.speedCalls = append(f.speedCalls, speed) }

func (f *fakeApp) ReplayState() string {
	if f.state == "" {
		return "idle"
	}
	return f.state
}

// fakeMetrics implements MetricsReader.
type fakeMetrics struct {
	selected domain.Symbol
	rows     map[domain.DataSource]domain.CurrentPriceMetrics
}

func (f *fakeMetrics) Selected() domain.Symbol { return f.selected }

func (f *fakeMetrics) Snapshot(domain.Symbol) map[domain.DataSource]domain.CurrentPriceMetrics {
	return f.rows
}

// fakeTickStore implements domain.TickStore; only Query and LastTimestamp
// matter here.
type fakeTickStore struct {
	lastQuery domain.TickQuery
	batch     domain.HistoryBatch
	err       error

	lastTick   time.Time
	lastSymbol domain.Symbol
}

func (f *fakeTickStore) InsertBatch(context.Context, []domain.SourcedPoint) error { return nil }

func (f *fakeTickStore) Query(_ context.Context, q domain.TickQuery) (domain.HistoryBatch, error) {
	f.lastQuery = q
	return f.batch, f.err
}

func (f *fakeTickStore) LastTimestamp(_ context.Context, symbol domain.Symbol) (time.Time, error) {
	f.lastSymbol = symbol
	return f.lastTick, nil
}

func (f *fakeTickStore) ListBefore(context.Context, time.Time, int) ([]domain.SourcedPoint, error) {
	return nil, nil
}

func (f *fakeTickStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestListSymbolsIncludesReplayVariants(t *testing.T) {
	h := NewSymbolHandler(&fakeApp{}, discardLogger())

	rec := httptest.NewRecorder()
	h.ListSymbols(rec, httptest.NewRequest(http.MethodGet, "/api/symbols", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Symbols []struct {
			Symbol  domain.Symbol `json:"symbol"`
			Class   string        `json:"class"`
			Sources []string      `json:"sources"`
		} `json:"symbols"`
	}
	decodeBody(t, rec, &body)

	seen := make(map[domain.Symbol]bool)
	for _, e := range body.Symbols {
		seen[e.Symbol] = true
		if len(e.Sources) == 0 {
			t.Errorf("symbol %s has no sources", e.Symbol)
		}
	}
	if !seen["BTC"] || !seen[domain.Symbol("BTC").AddReplaySuffix()] {
		t.Error("catalogue should list both BTC and its replay variant")
	}
}

func TestSetSymbolRoundTrip(t *testing.T) {
	app := &fakeApp{}
	h := NewSymbolHandler(app, discardLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/symbol", strings.NewReader(`{"symbol":"ETH"}`))
	rec := httptest.NewRecorder()
	h.SetSymbol(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(app.setCalls) != 1 || app.setCalls[0] != "ETH" {
		t.Fatalf("SetSymbol calls = %v", app.setCalls)
	}

	rec = httptest.NewRecorder()
	h.GetSelected(rec, httptest.NewRequest(http.MethodGet, "/api/symbol", nil))
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["symbol"] != "ETH" {
		t.Errorf("selected = %q, want ETH", body["symbol"])
	}
}

func TestSetSymbolRejectsUnknown(t *testing.T) {
	app := &fakeApp{setErr: domain.ErrUnknownSymbol}
	h := NewSymbolHandler(app, discardLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/symbol", strings.NewReader(`{"symbol":"DOGE"}`))
	rec := httptest.NewRecorder()
	h.SetSymbol(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetMetricsForSelectedSymbol(t *testing.T) {
	store := &fakeMetrics{
		selected: "BTC",
		rows: map[domain.DataSource]domain.CurrentPriceMetrics{
			domain.SourceBinance: {Price: 50000, Change: 120.5, ChangePercent: 0.24},
		},
	}
	h := NewMetricsHandler(store, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/BTC", nil)
	req.SetPathValue("symbol", "BTC")
	rec := httptest.NewRecorder()
	h.GetMetrics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Symbol  string                                `json:"symbol"`
		Metrics map[string]domain.CurrentPriceMetrics `json:"metrics"`
	}
	decodeBody(t, rec, &body)
	if body.Metrics["binance"].Price != 50000 {
		t.Errorf("binance price = %v", body.Metrics["binance"].Price)
	}
}

func TestGetMetricsNotSelected(t *testing.T) {
	h := NewMetricsHandler(&fakeMetrics{selected: "BTC"}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/ETH", nil)
	req.SetPathValue("symbol", "ETH")
	rec := httptest.NewRecorder()
	h.GetMetrics(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetMetricsUnknownSymbol(t *testing.T) {
	h := NewMetricsHandler(&fakeMetrics{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/DOGE", nil)
	req.SetPathValue("symbol", "DOGE")
	rec := httptest.NewRecorder()
	h.GetMetrics(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSetReplayCursorDefaultsSpeed(t *testing.T) {
	app := &fakeApp{}
	h := NewReplayHandler(app, &fakeTickStore{}, discardLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/replay", strings.NewReader(`{"startAt":"1700000000000"}`))
	rec := httptest.NewRecorder()
	h.SetReplay(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if app.cursorAt != 1700000000000 {
		t.Errorf("cursorAt = %d", app.cursorAt)
	}
	if app.cursorSpeed != 1.0 {
		t.Errorf("cursorSpeed = %v, want default 1", app.cursorSpeed)
	}
}

func TestSetReplayAcceptsRFC3339StartAt(t *testing.T) {
	app := &fakeApp{}
	h := NewReplayHandler(app, &fakeTickStore{}, discardLogger())

	body := `{"startAt":"2023-11-14T22:13:20Z","speed":4}`
	req := httptest.NewRequest(http.MethodPut, "/api/replay", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.SetReplay(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if app.cursorAt != 1700000000000 {
		t.Errorf("cursorAt = %d, want 1700000000000", app.cursorAt)
	}
	if app.cursorSpeed != 4 {
		t.Errorf("cursorSpeed = %v", app.cursorSpeed)
	}
}

func TestSetReplaySpeedOnly(t *testing.T) {
	app := &fakeApp{}
	h := NewReplayHandler(app, &fakeTickStore{}, discardLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/replay", strings.NewReader(`{"speed":2.5}`))
	rec := httptest.NewRecorder()
	h.SetReplay(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(app.speedCalls) != 1 || app.speedCalls[0] != 2.5 {
		t.Errorf("speed calls = %v", app.speedCalls)
	}
	if app.cursorAt != 0 {
		t.Error("speed-only request must not move the cursor")
	}
}

func TestSetReplayRejectsBadRequests(t *testing.T) {
	h := NewReplayHandler(&fakeApp{}, &fakeTickStore{}, discardLogger())

	for _, body := range []string{`{}`, `{"speed":0}`, `{"speed":-1}`, `{"startAt":"not-a-time"}`} {
		rec := httptest.NewRecorder()
		h.SetReplay(rec, httptest.NewRequest(http.MethodPut, "/api/replay", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestSetReplayLatestStartsFromLastRecordedTick(t *testing.T) {
	app := &fakeApp{selected: domain.Symbol("BTC").AddReplaySuffix()}
	store := &fakeTickStore{lastTick: time.UnixMilli(1700000000000)}
	h := NewReplayHandler(app, store, discardLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/replay", strings.NewReader(`{"startAt":"latest","speed":2}`))
	rec := httptest.NewRecorder()
	h.SetReplay(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if store.lastSymbol != "BTC" {
		t.Errorf("looked up %q, want the live symbol", store.lastSymbol)
	}
	if app.cursorAt != 1700000000000 {
		t.Errorf("cursorAt = %d, want last recorded tick", app.cursorAt)
	}
	if app.cursorSpeed != 2 {
		t.Errorf("cursorSpeed = %v", app.cursorSpeed)
	}
}

func TestSetReplayLatestWithoutHistory(t *testing.T) {
	app := &fakeApp{selected: domain.Symbol("BTC").AddReplaySuffix()}
	h := NewReplayHandler(app, &fakeTickStore{}, discardLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/replay", strings.NewReader(`{"startAt":"latest"}`))
	rec := httptest.NewRecorder()
	h.SetReplay(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if app.cursorAt != 0 {
		t.Error("cursor must not move when no history exists")
	}
}

func TestSetReplayConflictWhenNotReplaySymbol(t *testing.T) {
	app := &fakeApp{cursorErr: domain.ErrReplayClosed}
	h := NewReplayHandler(app, &fakeTickStore{}, discardLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/replay", strings.NewReader(`{"startAt":"0"}`))
	rec := httptest.NewRecorder()
	h.SetReplay(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestGetHistoryTrimsReplayMarker(t *testing.T) {
	store := &fakeTickStore{
		batch: domain.HistoryBatch{
			Data: []domain.SourcedPoint{
				{Source: domain.SourceBinance, Symbol: "BTC", Price: 50000, Timestamp: 1700000000000},
			},
			HasNext: true,
		},
	}
	h := NewHistoryHandler(store, discardLogger())

	req := httptest.NewRequest(http.MethodGet,
		"/history/BTC.hist?startAt=1700000000000&datasources[]=binance&limit=10", nil)
	req.SetPathValue("symbol", "BTC.hist")
	rec := httptest.NewRecorder()
	h.GetHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if store.lastQuery.Symbol != "BTC" {
		t.Errorf("query symbol = %q, want BTC", store.lastQuery.Symbol)
	}
	if store.lastQuery.StartAt != 1700000000000 || store.lastQuery.Limit != 10 {
		t.Errorf("query = %+v", store.lastQuery)
	}

	var body domain.HistoryBatch
	decodeBody(t, rec, &body)
	if len(body.Data) != 1 || !body.HasNext {
		t.Errorf("batch = %+v", body)
	}
}

func TestGetHistoryValidation(t *testing.T) {
	h := NewHistoryHandler(&fakeTickStore{}, discardLogger())

	cases := []struct {
		name   string
		symbol string
		query  string
	}{
		{"unknown symbol", "DOGE", "?startAt=0"},
		{"missing startAt", "BTC", ""},
		{"bad startAt", "BTC", "?startAt=yesterday"},
		{"bad limit", "BTC", "?startAt=0&limit=-5"},
		{"unknown datasource", "BTC", "?startAt=0&datasources[]=nasdaq"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/history/"+tc.symbol+tc.query, nil)
		req.SetPathValue("symbol", tc.symbol)
		rec := httptest.NewRecorder()
		h.GetHistory(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestGetHistoryEmptyPageHasDataArray(t *testing.T) {
	h := NewHistoryHandler(&fakeTickStore{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/history/BTC?startAt=0", nil)
	req.SetPathValue("symbol", "BTC")
	rec := httptest.NewRecorder()
	h.GetHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("empty page should encode data as [], got %s", rec.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(discardLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
}
