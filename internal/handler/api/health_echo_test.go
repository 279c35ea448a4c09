package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"CryptoFactors/internal/domain/models"
	"CryptoFactors/internal/repository"
	applogger "CryptoFactors/pkg/logger"
)

type downTickStore struct{}

func (downTickStore) SaveBatch(context.Context, []models.PriceTick) error { return nil }
func (downTickStore) FetchTicks(context.Context, models.Date) ([]models.PriceTick, error) {
	return nil, nil
}
func (downTickStore) Health(context.Context) error { return errors.New("connection refused") }
func (downTickStore) Close() error                 { return nil }

func TestHealthEndpoint(t *testing.T) {
	e := echo.New()
	NewHealthEchoHandler(applogger.Nop(), repository.NewMemoryTickStore()).RegisterRoutes(e)

	rec, body := doGet(e, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"status": "ok"}, body.Data)
}

func TestHealthEndpointUnavailable(t *testing.T) {
	e := echo.New()
	NewHealthEchoHandler(applogger.Nop(), downTickStore{}).RegisterRoutes(e)

	rec, _ := doGet(e, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
