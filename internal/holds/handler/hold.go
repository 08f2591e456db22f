package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"plotbook/internal/holds/service"
	apperrors "plotbook/pkg/errors"
	httputil "plotbook/pkg/http"
	"plotbook/pkg/logger"
)

type HoldHandler struct {
	service service.HoldService
	log     *logger.Logger
}

func NewHoldHandler(service service.HoldService, log *logger.Logger) *HoldHandler {
	return &HoldHandler{
		service: service,
		log:     log,
	}
}

// Place creates a hold on the plot for the calling broker. The broker
// identity comes from the gateway header, not the body; the request carries
// no payload.
func (h *HoldHandler) Place(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	plotID := ps.ByName("id")
	brokerID := httputil.BrokerID(r)

	if brokerID == "" {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Missing broker identity")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Place", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	hold, err := h.service.Place(r.Context(), plotID, brokerID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Place", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, hold); err != nil {
		h.log.Error("failed to write created response", "handler", "Place", "operation", "WriteCreated", "error", err)
	}
}

func (h *HoldHandler) Release(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	plotID := ps.ByName("id")

	hold, err := h.service.Release(r.Context(), plotID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Release", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, hold); err != nil {
		h.log.Error("failed to write success response", "handler", "Release", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HoldHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	hold, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, hold); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HoldHandler) ListActiveByProject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	projectID := ps.ByName("id")

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListActiveByProject", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	holds, total, err := h.service.ListActiveByProject(r.Context(), projectID, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListActiveByProject", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, holds, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListActiveByProject", "operation", "WritePaginated", "error", err)
	}
}

func (h *HoldHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/plots/id/:id/hold", h.Place)
	router.DELETE("/api/v1/plots/id/:id/hold", h.Release)
	router.GET("/api/v1/holds/id/:id", h.GetByID)
	router.GET("/api/v1/projects/id/:id/holds", h.ListActiveByProject)
}
