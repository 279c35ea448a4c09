package api

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"CryptoFactors/internal/domain/models"
	"CryptoFactors/internal/usecase"
	xhttp "CryptoFactors/pkg/http"
	xlogger "CryptoFactors/pkg/logger"
)

// TicksEchoHandler accepts tick batches over HTTP, feeding the same ingest
// path as the Kafka consumer and the CSV loader.
type TicksEchoHandler struct {
	logger   *xlogger.Logger
	ingestor *usecase.TickIngestor
}

func NewTicksEchoHandler(logger *xlogger.Logger, ingestor *usecase.TickIngestor) *TicksEchoHandler {
	return &TicksEchoHandler{logger: logger, ingestor: ingestor}
}

func (h *TicksEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/ticks", h.Ingest)
}

// TickInput is one tick in an ingest request. Timestamp is epoch millis.
type TickInput struct {
	Symbol    string `json:"symbol" validate:"required,uppercase,min=3,max=6"`
	Timestamp int64  `json:"ts" validate:"required,gte=1"`
	Price     string `json:"price" validate:"required"`
}

// TickIngestRequest is a batch of ticks.
type TickIngestRequest struct {
	Ticks []TickInput `json:"ticks" validate:"required,min=1,max=10000,dive"`
}

// TickIngestResult reports how many ticks were accepted.
type TickIngestResult struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

func (h *TicksEchoHandler) Ingest(c echo.Context) error {
	req := &TickIngestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ticks := make([]models.PriceTick, 0, len(req.Ticks))
	rejected := 0
	for _, in := range req.Ticks {
		price, err := decimal.NewFromString(in.Price)
		if err != nil || price.IsNegative() {
			rejected++
			continue
		}
		ticks = append(ticks, models.PriceTick{
			Timestamp: time.UnixMilli(in.Timestamp).UTC(),
			Symbol:    in.Symbol,
			Price:     price,
		})
	}

	if err := h.ingestor.IngestBatch(c.Request().Context(), ticks); err != nil {
		h.logger.Error("tick ingest error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("tick ingest failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, TickIngestResult{Accepted: len(ticks), Rejected: rejected})
}
