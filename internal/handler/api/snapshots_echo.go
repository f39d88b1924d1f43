package api

import (
	"encoding/json"
	"errors"

	"github.com/labstack/echo/v4"

	"AutoEye/internal/domain"
	"AutoEye/internal/domain/models"
	"AutoEye/internal/usecase"
	xhttp "AutoEye/pkg/http"
	xlogger "AutoEye/pkg/logger"
)

// SnapshotsEchoHandler exposes the persisted documents read-only.
type SnapshotsEchoHandler struct {
	logger *xlogger.Logger
	query  *usecase.SnapshotQuery
}

func NewSnapshotsEchoHandler(logger *xlogger.Logger, query *usecase.SnapshotQuery) *SnapshotsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &SnapshotsEchoHandler{logger: logger, query: query}
}

func (h *SnapshotsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/state/:symbol", h.State)
	g.GET("/trend/:symbol", h.Trend)
	g.GET("/scenarios/:symbol", h.Scenarios)
	g.GET("/elements/:symbol", h.Elements)
}

func (h *SnapshotsEchoHandler) State(c echo.Context) error {
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.query.State(c.Request().Context(), req.Symbol)
	return h.respond(c, "state", res, err)
}

func (h *SnapshotsEchoHandler) Trend(c echo.Context) error {
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.query.Trend(c.Request().Context(), req.Symbol, req.Status)
	return h.respond(c, "trend", res, err)
}

func (h *SnapshotsEchoHandler) Scenarios(c echo.Context) error {
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.query.Scenarios(c.Request().Context(), req.Symbol, req.Status)
	return h.respond(c, "scenarios", res, err)
}

func (h *SnapshotsEchoHandler) Elements(c echo.Context) error {
	req := &models.ElementsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.query.Elements(c.Request().Context(), req.Symbol, req.Timeframe, req.Kind, req.IncludeTerminal)
	return h.respond(c, "elements", res, err)
}

func (h *SnapshotsEchoHandler) respond(c echo.Context, doc string, res json.RawMessage, err error) error {
	switch {
	case err == nil:
		return xhttp.SuccessResponse(c, res)
	case errors.Is(err, domain.ErrNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("%s not found for %s", doc, c.Param("symbol")))
	case errors.Is(err, domain.ErrConfiguration):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err))
	default:
		h.logger.Error("snapshot query failed",
			xlogger.String("document", doc),
			xlogger.String("symbol", c.Param("symbol")),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}
}
