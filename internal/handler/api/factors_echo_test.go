package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoFactors/internal/domain/models"
	"CryptoFactors/internal/repository"
	"CryptoFactors/internal/usecase"
	"CryptoFactors/pkg/cache"
	xhttp "CryptoFactors/pkg/http"
	applogger "CryptoFactors/pkg/logger"
)

func newTestServer(t *testing.T, store *repository.MemoryAggregateStore) *echo.Echo {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })

	windows := usecase.NewWindowAggregator(store, testMetrics{}, applogger.Nop())
	factors := usecase.NewFactorService(store, windows, c, testMetrics{}, applogger.Nop())
	h := NewFactorsEchoHandler(applogger.Nop(), factors, []string{"BTC", "ETH", "DOGE"})

	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

type testMetrics struct{}

func (testMetrics) RecordPass(string, string)      {}
func (testMetrics) RecordError(string)             {}
func (testMetrics) RecordLatency(string, float64)  {}
func (testMetrics) RecordTicksIngested(string, int) {}
func (testMetrics) SetQueueDepth(int)              {}

func seedRow(t *testing.T, store *repository.MemoryAggregateStore, symbol string, date models.Date, factor string) {
	t.Helper()
	f := decimal.RequireFromString(factor)
	min, max := decimal.RequireFromString("100"), decimal.RequireFromString("120")
	require.NoError(t, store.Insert(context.Background(), []*models.DailyAggregate{{
		Key:         models.AggregateKey{Symbol: symbol, ReferenceDate: date},
		MinPrice:    &min,
		MaxPrice:    &max,
		DailyFactor: &f,
	}}))
}

func doGet(e *echo.Echo, path string) (*httptest.ResponseRecorder, xhttp.APIResponse) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body xhttp.APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestRankingEndpoint(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	date := models.Date("2022-01-05")
	seedRow(t, store, "BTC", date, "0.04")
	seedRow(t, store, "ETH", date, "0.09")
	e := newTestServer(t, store)

	rec, body := doGet(e, "/api/cryptos/ranking/2022-01-05/DAY")
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	var entries []RankingEntry
	require.NoError(t, json.Unmarshal(raw, &entries))
	assert.Equal(t, []RankingEntry{{Rank: 1, Symbol: "ETH"}, {Rank: 2, Symbol: "BTC"}}, entries)
}

func TestRankingEndpointLimit(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	date := models.Date("2022-01-05")
	seedRow(t, store, "BTC", date, "0.04")
	seedRow(t, store, "ETH", date, "0.09")
	seedRow(t, store, "DOGE", date, "0.01")
	e := newTestServer(t, store)

	rec, body := doGet(e, "/api/cryptos/ranking/2022-01-05/DAY?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	var entries []RankingEntry
	require.NoError(t, json.Unmarshal(raw, &entries))
	assert.Equal(t, []RankingEntry{{Rank: 1, Symbol: "ETH"}}, entries)
}

func TestRankingEndpointBadDate(t *testing.T) {
	e := newTestServer(t, repository.NewMemoryAggregateStore())

	rec, body := doGet(e, "/api/cryptos/ranking/05-01-2022")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "date must be formatted as yyyy-mm-dd", body.Data)
}

func TestBestEndpoint(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	date := models.Date("2022-01-05")
	seedRow(t, store, "BTC", date, "0.04")
	seedRow(t, store, "ETH", date, "0.09")
	e := newTestServer(t, store)

	rec, body := doGet(e, "/api/cryptos/best/2022-01-05")
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	var best BestDto
	require.NoError(t, json.Unmarshal(raw, &best))
	assert.Equal(t, BestDto{Date: "2022-01-05", Period: "DAY", Symbol: "ETH"}, best)
}

func TestBestEndpointEmpty(t *testing.T) {
	e := newTestServer(t, repository.NewMemoryAggregateStore())

	rec, _ := doGet(e, "/api/cryptos/best/2022-01-05")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFactorsEndpoint(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	seedRow(t, store, "BTC", models.Date("2022-01-05"), "0.2")
	e := newTestServer(t, store)

	rec, body := doGet(e, "/api/cryptos/BTC/factors/2022-01-05/DAY")
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	var dto FactorsDto
	require.NoError(t, json.Unmarshal(raw, &dto))
	assert.Equal(t, "BTC", dto.Symbol)
	require.NotNil(t, dto.MinPrice)
	assert.Equal(t, "100", *dto.MinPrice)
	require.NotNil(t, dto.Factor)
	assert.Equal(t, "0.2", *dto.Factor)
	assert.Nil(t, dto.OldestPrice)
}

func TestFactorsEndpointLowercaseSymbol(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	seedRow(t, store, "BTC", models.Date("2022-01-05"), "0.2")
	e := newTestServer(t, store)

	rec, _ := doGet(e, "/api/cryptos/btc/factors/2022-01-05")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFactorsEndpointBadSymbol(t *testing.T) {
	e := newTestServer(t, repository.NewMemoryAggregateStore())

	rec, _ := doGet(e, "/api/cryptos/B!C/factors")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFactorsEndpointUnsupportedSymbol(t *testing.T) {
	e := newTestServer(t, repository.NewMemoryAggregateStore())

	rec, body := doGet(e, "/api/cryptos/XMR/factors")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported currency XMR", body.Data)
}

func TestFactorsEndpointNotFound(t *testing.T) {
	e := newTestServer(t, repository.NewMemoryAggregateStore())

	rec, _ := doGet(e, "/api/cryptos/BTC/factors/2022-01-05")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFactorsEndpointBadPeriod(t *testing.T) {
	e := newTestServer(t, repository.NewMemoryAggregateStore())

	rec, body := doGet(e, "/api/cryptos/BTC/factors/2022-01-05/YEAR")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "period must be one of DAY, WEEK, MONTH", body.Data)
}
