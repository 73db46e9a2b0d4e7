package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagmibets/predictfolio/internal/chain"
	"github.com/wagmibets/predictfolio/internal/markets"
	"github.com/wagmibets/predictfolio/internal/positions"
)

type fakeEngine struct {
	book  *positions.Book
	stats *positions.Stats
	err   error
}

func (f *fakeEngine) GetPositions(_ context.Context, _ string) (*positions.Book, error) {
	return f.book, f.err
}

func (f *fakeEngine) GetPositionStats(_ context.Context, _ string) (*positions.Stats, error) {
	return f.stats, f.err
}

func get(t *testing.T, engine Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	New(engine).Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandlePositions(t *testing.T) {
	qty := decimal.RequireFromString("1000")
	engine := &fakeEngine{book: &positions.Book{
		Active: []positions.Position{{
			MarketTicker: "ABC-1",
			Side:         markets.SideYes,
			CurrentQty:   qty,
		}},
		Previous:     []positions.Position{},
		DroppedMints: 1,
	}}

	rec := get(t, engine, "/api/v1/accounts/some-address/positions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Active []struct {
			MarketTicker string `json:"market_ticker"`
			Side         string `json:"side"`
		} `json:"active"`
		Previous     []any `json:"previous"`
		DroppedMints int   `json:"dropped_mints"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Len(t, body.Active, 1)
	assert.Equal(t, "ABC-1", body.Active[0].MarketTicker)
	assert.Equal(t, "yes", body.Active[0].Side)
	assert.Equal(t, 1, body.DroppedMints)
}

func TestHandleStats(t *testing.T) {
	engine := &fakeEngine{stats: &positions.Stats{
		TotalPositions:  3,
		ActivePositions: 1,
	}}

	rec := get(t, engine, "/api/v1/accounts/some-address/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		TotalPositions int `json:"total_positions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.TotalPositions)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("scan: %w", chain.ErrInvalidAddress), http.StatusBadRequest},
		{fmt.Errorf("resolve: %w", markets.ErrUpstreamUnavailable), http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := get(t, &fakeEngine{err: tt.err}, "/api/v1/accounts/x/positions")
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
	}
}

func TestHealth(t *testing.T) {
	rec := get(t, &fakeEngine{}, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}
