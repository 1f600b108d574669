package api

import (
	"github.com/labstack/echo/v4"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/eventbus"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/usecase"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"
)

// PipelineHandler exposes the classification pipeline over HTTP.
type PipelineHandler struct {
	logger  *xlogger.Logger
	bus     *eventbus.Bus
	filter  *usecase.FilterEngine
	regime  *usecase.RegimeEngine
	limiter *ratelimit.Limiter
	feed    *EventFeed
}

func NewPipelineHandler(logger *xlogger.Logger, bus *eventbus.Bus, filter *usecase.FilterEngine, regime *usecase.RegimeEngine, limiter *ratelimit.Limiter, feed *EventFeed) *PipelineHandler {
	return &PipelineHandler{
		logger:  logger,
		bus:     bus,
		filter:  filter,
		regime:  regime,
		limiter: limiter,
		feed:    feed,
	}
}

func (h *PipelineHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/regime", h.Regime)
	g.GET("/regime/history", h.RegimeHistory)
	g.GET("/symbols/top", h.TopSymbols)
	g.GET("/symbols/:symbol", h.Symbol)
	g.GET("/criteria", h.Criteria)
	g.PATCH("/criteria", h.PatchCriteria)
	g.GET("/events", h.Events)
	g.GET("/stats", h.Stats)

	if h.feed != nil {
		e.GET("/ws", h.feed.Serve)
	}
}

func (h *PipelineHandler) Regime(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.regime.CurrentRegime())
}

func (h *PipelineHandler) RegimeHistory(c echo.Context) error {
	req := &models.RegimeHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	history := h.regime.RegimeHistory(req.Limit)
	return xhttp.ListResponse(c, history, int64(len(history)))
}

func (h *PipelineHandler) TopSymbols(c echo.Context) error {
	req := &models.TopSymbolsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	top := h.filter.TopSymbols(req.Limit)
	return xhttp.ListResponse(c, top, int64(len(top)))
}

func (h *PipelineHandler) Symbol(c echo.Context) error {
	symbol := c.Param("symbol")
	fs := h.filter.Symbol(symbol)
	if fs == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("symbol %s is not tracked", symbol))
	}
	return xhttp.SuccessResponse(c, fs)
}

func (h *PipelineHandler) Criteria(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.filter.Criteria())
}

func (h *PipelineHandler) PatchCriteria(c echo.Context) error {
	req := &models.CriteriaPatch{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	updated := h.filter.ApplyCriteriaPatch(*req)
	h.logger.Info("filter criteria patched")
	return xhttp.SuccessResponse(c, updated)
}

func (h *PipelineHandler) Events(c echo.Context) error {
	req := &models.EventsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	events := h.bus.History(models.EventType(req.Type), req.Limit)
	return xhttp.ListResponse(c, events, int64(len(events)))
}

// Stats aggregates the diagnostic views of every pipeline stage.
func (h *PipelineHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"bus":       h.bus.Stats(),
		"filter":    h.filter.Stats(),
		"regime":    h.regime.Metrics(),
		"rateLimit": h.limiter.Stats(),
	})
}
