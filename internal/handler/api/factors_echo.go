package api

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"CryptoFactors/internal/domain/models"
	"CryptoFactors/internal/usecase"
	xhttp "CryptoFactors/pkg/http"
	xlogger "CryptoFactors/pkg/logger"
	"CryptoFactors/pkg/util"
)

var symbolPattern = regexp.MustCompile(`^[A-Z]{3,6}$`)

// FactorsEchoHandler exposes ranking and factor queries over Echo.
type FactorsEchoHandler struct {
	logger    *xlogger.Logger
	factors   *usecase.FactorService
	supported map[string]bool
}

// NewFactorsEchoHandler creates the handler. supported lists the currency
// symbols the service accepts; queries for anything else get a 400.
func NewFactorsEchoHandler(logger *xlogger.Logger, factors *usecase.FactorService, supported []string) *FactorsEchoHandler {
	set := make(map[string]bool, len(supported))
	for _, s := range supported {
		set[strings.ToUpper(s)] = true
	}
	return &FactorsEchoHandler{logger: logger, factors: factors, supported: set}
}

func (h *FactorsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/cryptos")

	g.GET("/ranking", h.Ranking)
	g.GET("/ranking/:date", h.Ranking)
	g.GET("/ranking/:date/:period", h.Ranking)

	g.GET("/best", h.Best)
	g.GET("/best/:date", h.Best)
	g.GET("/best/:date/:period", h.Best)

	g.GET("/:symbol/factors", h.Factors)
	g.GET("/:symbol/factors/:date", h.Factors)
	g.GET("/:symbol/factors/:date/:period", h.Factors)
}

// RankingEntry is one row of the ranking response.
type RankingEntry struct {
	Rank   int    `json:"rank"`
	Symbol string `json:"symbol"`
}

// BestDto is the best-symbol response.
type BestDto struct {
	Date   string `json:"date"`
	Period string `json:"period"`
	Symbol string `json:"symbol"`
}

// FactorsDto is the per-symbol factors response. Prices travel as strings to
// keep decimal precision on the wire.
type FactorsDto struct {
	Symbol string `json:"symbol"`
	Date   string `json:"date"`
	Period string `json:"period"`

	MinPrice   *string    `json:"minPrice,omitempty"`
	MinPriceAt *time.Time `json:"minPriceAt,omitempty"`
	MaxPrice   *string    `json:"maxPrice,omitempty"`
	MaxPriceAt *time.Time `json:"maxPriceAt,omitempty"`

	OldestPrice   *string    `json:"oldestPrice,omitempty"`
	OldestPriceAt *time.Time `json:"oldestPriceAt,omitempty"`
	NewestPrice   *string    `json:"newestPrice,omitempty"`
	NewestPriceAt *time.Time `json:"newestPriceAt,omitempty"`

	Factor *string `json:"factor,omitempty"`
}

func (h *FactorsEchoHandler) Ranking(c echo.Context) error {
	date, period, verr := h.dateAndPeriod(c)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	limit := util.ParseIntDefault(c.QueryParam("limit"), 0)
	symbols, err := h.factors.Rank(c.Request().Context(), date, period, limit)
	if err != nil {
		h.logger.Error("ranking usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	entries := make([]RankingEntry, len(symbols))
	for i, s := range symbols {
		entries[i] = RankingEntry{Rank: i + 1, Symbol: s}
	}
	return xhttp.SuccessResponse(c, entries)
}

func (h *FactorsEchoHandler) Best(c echo.Context) error {
	date, period, verr := h.dateAndPeriod(c)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	symbol, err := h.factors.Best(c.Request().Context(), date, period)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return xhttp.NotFoundResponse(c, "no factors for "+date.String())
		}
		h.logger.Error("best usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	return xhttp.SuccessResponse(c, BestDto{
		Date:   date.String(),
		Period: string(period),
		Symbol: symbol,
	})
}

func (h *FactorsEchoHandler) Factors(c echo.Context) error {
	symbol := strings.ToUpper(c.Param("symbol"))
	if !symbolPattern.MatchString(symbol) {
		return xhttp.BadRequestResponse(c, "symbol must match [A-Z]{3,6}")
	}
	if !h.supported[symbol] {
		return xhttp.BadRequestResponse(c, "unsupported currency "+symbol)
	}

	date, period, verr := h.dateAndPeriod(c)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	row, err := h.factors.Factors(c.Request().Context(), symbol, date, period)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrEmptyWindow) {
			return xhttp.NotFoundResponse(c, "no factors for "+symbol+" at "+date.String())
		}
		h.logger.Error("factors usecase error",
			xlogger.String("symbol", symbol),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}

	return xhttp.SuccessResponse(c, toFactorsDto(symbol, date, period, row))
}

// dateAndPeriod parses the optional :date and :period path params. Missing
// date means today; missing period means DAY.
func (h *FactorsEchoHandler) dateAndPeriod(c echo.Context) (models.Date, models.FactorPeriod, interface{}) {
	date := models.Today()
	if raw := c.Param("date"); raw != "" {
		parsed, err := models.ParseDate(raw)
		if err != nil {
			return "", "", "date must be formatted as yyyy-mm-dd"
		}
		date = parsed
	}

	period := models.DefaultPeriod()
	if raw := c.Param("period"); raw != "" {
		period = models.FactorPeriod(strings.ToUpper(raw))
		if !models.IsValidPeriod(period) {
			return "", "", "period must be one of DAY, WEEK, MONTH"
		}
	}
	return date, period, nil
}

func toFactorsDto(symbol string, date models.Date, period models.FactorPeriod, row *models.DailyAggregate) FactorsDto {
	return FactorsDto{
		Symbol:        symbol,
		Date:          date.String(),
		Period:        string(period),
		MinPrice:      decStr(row.MinPrice),
		MinPriceAt:    row.MinPriceAt,
		MaxPrice:      decStr(row.MaxPrice),
		MaxPriceAt:    row.MaxPriceAt,
		OldestPrice:   decStr(row.OldestPrice),
		OldestPriceAt: row.OldestPriceAt,
		NewestPrice:   decStr(row.NewestPrice),
		NewestPriceAt: row.NewestPriceAt,
		Factor:        decStr(row.Factor(period)),
	}
}

func decStr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
