package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/logx"
)

// CourierHandler serves HTTP endpoints for the courier pool.
type CourierHandler struct {
	uc     courierUsecase
	logger logx.Logger
}

// NewCourierHandler wires a courier pool into HTTP handlers.
func NewCourierHandler(logger logx.Logger, uc courierUsecase) *CourierHandler {
	return &CourierHandler{uc: uc, logger: logx.OrNop(logger)}
}

// GetByID handles GET /couriers/{id}.
func (h *CourierHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	c, err := h.uc.Get(ctx, id)
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, modelToResponse(*c))
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "not found")
	default:
		writeDomainError(h.logger, w, r, err)
	}
}

// Create handles POST /couriers.
func (h *CourierHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCourierRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	c := req.toModel()
	if c.Name == "" || !c.Status.Valid() || !c.TransportType.Valid() {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid input")
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	id, err := h.uc.Create(ctx, c)
	switch {
	case err == nil:
		c.ID = id
		w.Header().Set("Location", "/couriers/"+strconv.FormatInt(id, 10))
		writeJSON(h.logger, w, r, http.StatusCreated, modelToResponse(*c))
	case errors.Is(err, apperr.ErrConflict):
		writeError(h.logger, w, r, http.StatusConflict, "courier already exists")
	default:
		writeDomainError(h.logger, w, r, err)
	}
}

// UpdateStatus handles PUT /couriers/{id}/status.
func (h *CourierHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req updateCourierStatusRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if !req.Status.Valid() {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid status")
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	switch err := h.uc.UpdateStatus(ctx, id, req.Status); {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "not found")
	default:
		writeDomainError(h.logger, w, r, err)
	}
}
