package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"market-pulse/internal/aggregator/dto"
	"market-pulse/internal/aggregator/repository"
	ingestordto "market-pulse/internal/ingestor/dto"
	"market-pulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SignalHandler handles HTTP requests for aggregated signals.
type SignalHandler struct {
	signalRepo repository.SignalRepository
	logger     *logger.Logger
}

// NewSignalHandler creates a new SignalHandler.
func NewSignalHandler(signalRepo repository.SignalRepository, logger *logger.Logger) *SignalHandler {
	return &SignalHandler{signalRepo: signalRepo, logger: logger}
}

// RegisterRoutes registers the signal routes to the Echo group.
func (h *SignalHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:ticker", h.GetSignals)
	g.GET("/:ticker/latest", h.GetLatestSignal)
}

// GetSignals returns signal points for a ticker, newest first. Optional
// query params: from, to (RFC 3339) and limit.
func (h *SignalHandler) GetSignals(c echo.Context) error {
	ticker := strings.ToUpper(c.Param("ticker"))
	if !ingestordto.ValidateTicker(ticker) {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ticker symbol"})
	}

	from, to, err := parseTimeRange(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid limit"})
		}
	}

	signals, err := h.signalRepo.GetSignals(c.Request().Context(), ticker, from, to, limit)
	if err != nil {
		h.logger.Error("Failed to get signals", logger.ErrorField(err), logger.StringField("ticker", ticker))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get signals"})
	}

	resp := make([]dto.SignalResponse, 0, len(signals))
	for i := range signals {
		resp = append(resp, dto.NewSignalResponse(&signals[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

// GetLatestSignal returns the most recent signal point for a ticker,
// including its ranked article contributions.
func (h *SignalHandler) GetLatestSignal(c echo.Context) error {
	ticker := strings.ToUpper(c.Param("ticker"))
	if !ingestordto.ValidateTicker(ticker) {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ticker symbol"})
	}

	signal, err := h.signalRepo.GetLatestSignal(c.Request().Context(), ticker)
	if err != nil {
		h.logger.Error("Failed to get latest signal", logger.ErrorField(err), logger.StringField("ticker", ticker))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get latest signal"})
	}
	if signal == nil {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "No signal found for ticker"})
	}

	contribs, err := h.signalRepo.GetContributions(c.Request().Context(), signal.ID)
	if err != nil {
		h.logger.Error("Failed to get signal contributions", logger.ErrorField(err), logger.StringField("ticker", ticker))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get signal contributions"})
	}
	signal.Contributions = contribs

	return c.JSON(http.StatusOK, dto.NewSignalResponse(signal))
}

func parseTimeRange(c echo.Context) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error

	if raw := c.QueryParam("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, errors.New("Invalid from timestamp")
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, errors.New("Invalid to timestamp")
		}
	}
	return from, to, nil
}
