package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"plotbook/internal/plots/service"
	apperrors "plotbook/pkg/errors"
	httputil "plotbook/pkg/http"
	"plotbook/pkg/logger"
	"plotbook/pkg/model"
)

type PlotHandler struct {
	service service.PlotService
	log     *logger.Logger
}

func NewPlotHandler(service service.PlotService, log *logger.Logger) *PlotHandler {
	return &PlotHandler{
		service: service,
		log:     log,
	}
}

func (h *PlotHandler) Create(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var plot model.Plot
	if err := json.NewDecoder(r.Body).Decode(&plot); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}
	plot.ProjectID = ps.ByName("id")

	if err := h.service.Create(r.Context(), &plot); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, plot); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *PlotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	plot, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, plot); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PlotHandler) ListByProject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	projectID := ps.ByName("id")

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListByProject", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	filter, err := parsePlotFilter(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListByProject", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	plots, total, err := h.service.ListByProject(r.Context(), projectID, filter, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListByProject", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, plots, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListByProject", "operation", "WritePaginated", "error", err)
	}
}

func (h *PlotHandler) Archive(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	if err := h.service.Archive(r.Context(), id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Archive", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func parsePlotFilter(r *http.Request) (*model.PlotFilter, error) {
	query := r.URL.Query()
	filter := &model.PlotFilter{
		Status: model.AllocationStatus(query.Get("status")),
		Facing: query.Get("facing"),
	}

	if s := query.Get("min_price"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, apperrors.InvalidInput("invalid min_price parameter: " + s)
		}
		filter.MinPrice = v
	}
	if s := query.Get("max_price"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, apperrors.InvalidInput("invalid max_price parameter: " + s)
		}
		filter.MaxPrice = v
	}

	return filter, nil
}

func (h *PlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/projects/id/:id/plots", h.Create)
	router.GET("/api/v1/projects/id/:id/plots", h.ListByProject)
	router.GET("/api/v1/plots/id/:id", h.GetByID)
	router.DELETE("/api/v1/plots/id/:id", h.Archive)
}
