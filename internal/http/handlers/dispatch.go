package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// DispatchHandler serves the dispatch lifecycle endpoints.
type DispatchHandler struct {
	uc      dispatchUsecase
	archive outcomeReader
	logger  logx.Logger
}

// NewDispatchHandler creates a DispatchHandler. archive may be nil.
func NewDispatchHandler(logger logx.Logger, uc dispatchUsecase, archive outcomeReader) *DispatchHandler {
	return &DispatchHandler{uc: uc, archive: archive, logger: logx.OrNop(logger)}
}

// Start handles POST /dispatch.
func (h *DispatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startDispatchRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	rec, err := h.uc.StartDispatch(r.Context(), strings.TrimSpace(req.OrderID), req.CourierIDs)
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/dispatch/"+rec.OrderID)
	writeJSON(h.logger, w, r, http.StatusAccepted, recordToResponse(rec))
}

// Get handles GET /dispatch/{orderID}. Finished dispatches that were
// already purged from memory are served from the archive.
func (h *DispatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFromURL(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid order id")
		return
	}

	rec, err := h.uc.Get(r.Context(), orderID)
	if err == nil {
		writeJSON(h.logger, w, r, http.StatusOK, recordToResponse(rec))
		return
	}
	if !errors.Is(err, apperr.ErrNotFound) || h.archive == nil {
		writeDomainError(h.logger, w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()
	out, err := h.archive.Outcome(ctx, orderID)
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, outcomeToResponse(out))
}

// Accept handles POST /dispatch/{orderID}/accept.
func (h *DispatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.uc.Accept)
}

// Reject handles POST /dispatch/{orderID}/reject.
func (h *DispatchHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.uc.Reject)
}

type courierAction func(ctx context.Context, orderID string, courierID int64) (*domain.AssignmentRecord, error)

func (h *DispatchHandler) respond(w http.ResponseWriter, r *http.Request, action courierAction) {
	orderID, ok := orderIDFromURL(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid order id")
		return
	}
	var req courierActionRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.CourierID <= 0 {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid courier_id")
		return
	}

	rec, err := action(r.Context(), orderID, req.CourierID)
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, recordToResponse(rec))
}

// Cancel handles POST /dispatch/{orderID}/cancel. An empty body cancels on
// behalf of an operator.
func (h *DispatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFromURL(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid order id")
		return
	}
	var req cancelDispatchRequest
	if r.ContentLength != 0 {
		if ok := decodeJSON(h.logger, w, r, &req); !ok {
			return
		}
	}

	rec, err := h.uc.CancelDispatch(r.Context(), orderID, req.Reason)
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, recordToResponse(rec))
}
