package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"plotbook/internal/projects/service"
	httputil "plotbook/pkg/http"
	"plotbook/pkg/logger"
	"plotbook/pkg/model"
)

type ProjectHandler struct {
	service service.ProjectService
	log     *logger.Logger
}

func NewProjectHandler(service service.ProjectService, log *logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		service: service,
		log:     log,
	}
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var project model.Project
	if err := json.NewDecoder(r.Body).Decode(&project); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), &project); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, project); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ProjectHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	project, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, project); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ProjectHandler) UpdateSettings(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var updates model.ProjectSettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "UpdateSettings", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.UpdateSettings(r.Context(), id, &updates); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "UpdateSettings", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ProjectHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/projects", h.Create)
	router.GET("/api/v1/projects/id/:id", h.GetByID)
	router.PATCH("/api/v1/projects/id/:id/settings", h.UpdateSettings)
}
