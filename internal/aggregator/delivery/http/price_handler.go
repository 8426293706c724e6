package http

import (
	"net/http"
	"strings"
	"time"

	"market-pulse/internal/aggregator/dto"
	"market-pulse/internal/aggregator/repository"
	"market-pulse/internal/entity"
	ingestordto "market-pulse/internal/ingestor/dto"
	"market-pulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PriceHandler handles HTTP requests for price bars.
type PriceHandler struct {
	priceBarRepo repository.PriceBarRepository
	logger       *logger.Logger
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(priceBarRepo repository.PriceBarRepository, logger *logger.Logger) *PriceHandler {
	return &PriceHandler{priceBarRepo: priceBarRepo, logger: logger}
}

// RegisterRoutes registers the price routes to the Echo group.
func (h *PriceHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:ticker", h.GetPriceBars)
	g.POST("/:ticker", h.AppendBars)
	g.DELETE("/:ticker", h.DeleteBar)
}

// GetPriceBars returns OHLCV bars for a ticker, oldest first. Optional
// query params: from, to (RFC 3339) and timeframe (defaults to 1d).
func (h *PriceHandler) GetPriceBars(c echo.Context) error {
	ticker := strings.ToUpper(c.Param("ticker"))
	if !ingestordto.ValidateTicker(ticker) {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ticker symbol"})
	}

	timeframe := c.QueryParam("timeframe")
	if timeframe == "" {
		timeframe = entity.Timeframe1d
	}
	if !entity.ValidTimeframe(timeframe) {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid timeframe"})
	}

	from, to, err := parseTimeRange(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	bars, err := h.priceBarRepo.GetPriceBars(c.Request().Context(), ticker, from, to, timeframe)
	if err != nil {
		h.logger.Error("Failed to get price bars", logger.ErrorField(err), logger.StringField("ticker", ticker))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get price bars"})
	}

	resp := make([]dto.PriceBarResponse, 0, len(bars))
	for i := range bars {
		resp = append(resp, dto.NewPriceBarResponse(&bars[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

// AppendBars uploads OHLCV bars for a ticker. Observations that already
// exist for a (ts, timeframe) key are left untouched.
func (h *PriceHandler) AppendBars(c echo.Context) error {
	ticker := strings.ToUpper(c.Param("ticker"))
	if !ingestordto.ValidateTicker(ticker) {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ticker symbol"})
	}

	var req dto.AppendBarsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}
	if !entity.ValidTimeframe(req.Timeframe) {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid timeframe"})
	}
	if len(req.Bars) == 0 {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "No bars provided"})
	}

	bars := make([]entity.PriceBar, 0, len(req.Bars))
	for _, b := range req.Bars {
		bars = append(bars, entity.PriceBar{
			Ticker:    ticker,
			Ts:        b.Ts.UTC(),
			Timeframe: req.Timeframe,
			O:         b.Open,
			H:         b.High,
			L:         b.Low,
			C:         b.Close,
			V:         b.Volume,
		})
	}

	if err := h.priceBarRepo.AppendBars(c.Request().Context(), bars); err != nil {
		h.logger.Error("Failed to append price bars", logger.ErrorField(err), logger.StringField("ticker", ticker))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to append price bars"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"appended": len(bars)})
}

// DeleteBar removes a single observation as an explicit correction. Query
// params: ts (RFC 3339, required) and timeframe (defaults to 1d).
func (h *PriceHandler) DeleteBar(c echo.Context) error {
	ticker := strings.ToUpper(c.Param("ticker"))
	if !ingestordto.ValidateTicker(ticker) {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ticker symbol"})
	}

	ts, err := time.Parse(time.RFC3339, c.QueryParam("ts"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ts timestamp"})
	}

	timeframe := c.QueryParam("timeframe")
	if timeframe == "" {
		timeframe = entity.Timeframe1d
	}
	if !entity.ValidTimeframe(timeframe) {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid timeframe"})
	}

	if err := h.priceBarRepo.DeleteBar(c.Request().Context(), ticker, ts.UTC(), timeframe); err != nil {
		h.logger.Error("Failed to delete price bar", logger.ErrorField(err), logger.StringField("ticker", ticker))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete price bar"})
	}

	return c.NoContent(http.StatusNoContent)
}
