package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	domrepo "CryptoFactors/internal/domain/repository"
	xhttp "CryptoFactors/pkg/http"
	xlogger "CryptoFactors/pkg/logger"
)

// HealthEchoHandler reports liveness and tick-store reachability.
type HealthEchoHandler struct {
	logger *xlogger.Logger
	ticks  domrepo.TickStore
}

func NewHealthEchoHandler(logger *xlogger.Logger, ticks domrepo.TickStore) *HealthEchoHandler {
	return &HealthEchoHandler{logger: logger, ticks: ticks}
}

func (h *HealthEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
}

// HealthDto is the health response.
type HealthDto struct {
	Status string `json:"status"`
}

func (h *HealthEchoHandler) Health(c echo.Context) error {
	if err := h.ticks.Health(c.Request().Context()); err != nil {
		h.logger.Error("health check failed", xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, HealthDto{Status: "unavailable"})
	}
	return xhttp.SuccessResponse(c, HealthDto{Status: "ok"})
}
