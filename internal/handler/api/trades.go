package api

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
	domservice "CashBreakout/internal/domain/service"
	xhttp "CashBreakout/pkg/http"
	xlogger "CashBreakout/pkg/logger"
)

// TradesHandler serves read-only views over the trade ledger. It never
// writes: all mutation belongs to the engine loop.
type TradesHandler struct {
	logger *xlogger.Logger
	ledger domrepo.Ledger
	user   string
}

func NewTradesHandler(logger *xlogger.Logger, ledger domrepo.Ledger, user string) *TradesHandler {
	return &TradesHandler{logger: logger, ledger: ledger, user: user}
}

func (h *TradesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/trades", h.List)
	g.GET("/trades/:id", h.Get)
	g.GET("/summary", h.Summary)
}

func (h *TradesHandler) List(c echo.Context) error {
	req := &models.TradeListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	trades, err := h.listByFilter(c, req)
	if err != nil {
		h.logger.Error("trades list error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("ledger query failed").WithError(err))
	}

	rows := make([]models.TradeResponse, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, models.NewTradeResponse(t))
	}
	return xhttp.ListResponse(c, rows, len(rows))
}

func (h *TradesHandler) listByFilter(c echo.Context, req *models.TradeListRequest) ([]*models.Trade, error) {
	ctx := c.Request().Context()
	switch strings.ToLower(req.Status) {
	case "all":
		return h.ledger.ListRecent(ctx, h.user, req.Limit)
	case "active":
		return h.ledger.ListByStatus(ctx, h.user, models.ActiveStatuses...)
	default:
		return h.ledger.ListByStatus(ctx, h.user, models.TradeStatus(req.Status))
	}
}

func (h *TradesHandler) Get(c echo.Context) error {
	req := &models.TradeGetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	t, err := h.ledger.Get(c.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("trade not found").WithError(err))
		}
		h.logger.Error("trade get error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("ledger query failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, models.NewTradeResponse(t))
}

func (h *TradesHandler) Summary(c echo.Context) error {
	trades, err := h.ledger.ListRecent(c.Request().Context(), h.user, 500)
	if err != nil {
		h.logger.Error("trades summary error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("ledger query failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, domservice.Summarize(trades))
}
