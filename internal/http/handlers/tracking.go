package handlers

import (
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/transport/ws"
)

// TrackingHandler serves live courier locations and order statuses.
type TrackingHandler struct {
	uc           trackingUsecase
	mirror       locationReader
	archive      outcomeReader
	logger       logx.Logger
	writeTimeout time.Duration
}

// NewTrackingHandler creates a TrackingHandler. mirror and archive may be nil.
func NewTrackingHandler(logger logx.Logger, uc trackingUsecase, mirror locationReader, archive outcomeReader, writeTimeout time.Duration) *TrackingHandler {
	return &TrackingHandler{
		uc:           uc,
		mirror:       mirror,
		archive:      archive,
		logger:       logx.OrNop(logger),
		writeTimeout: writeTimeout,
	}
}

// PublishLocation handles POST /tracking/{orderID}/location.
func (h *TrackingHandler) PublishLocation(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFromURL(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid order id")
		return
	}
	var req locationRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	sample, ok := req.toModel(orderID)
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	if err := h.uc.PublishLocation(r.Context(), sample); err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// PublishStatus handles POST /tracking/{orderID}/status.
func (h *TrackingHandler) PublishStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFromURL(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid order id")
		return
	}
	var req statusRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	if err := h.uc.PublishStatus(r.Context(), req.toModel(orderID)); err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Locations handles GET /tracking/{orderID}/location.
func (h *TrackingHandler) Locations(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFromURL(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid order id")
		return
	}

	list, err := h.uc.LatestLocations(orderID)
	if errors.Is(err, apperr.ErrNotFound) && h.mirror != nil {
		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		list, err = h.mirror.Latest(ctx, orderID)
	}
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, list)
}

// History handles GET /tracking/{orderID}/history.
func (h *TrackingHandler) History(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFromURL(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid order id")
		return
	}

	list, err := h.uc.History(orderID)
	if errors.Is(err, apperr.ErrNotFound) && h.archive != nil {
		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		list, err = h.archive.StatusHistory(ctx, orderID)
		if err == nil && len(list) == 0 {
			err = apperr.ErrOrderNotFound
		}
	}
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, list)
}

// Stream handles GET /tracking/{orderID}/ws: the connection is upgraded and
// receives the replay followed by live events until the order finishes or
// the client leaves.
func (h *TrackingHandler) Stream(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFromURL(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid order id")
		return
	}
	if _, err := h.uc.History(orderID); err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}

	sink, err := ws.Upgrade(w, r, h.writeTimeout)
	if err != nil {
		// the upgrader already answered the client
		h.logger.Debug("websocket upgrade failed", logx.String("order_id", orderID), logx.Err(err))
		return
	}

	sub, err := h.uc.Subscribe(r.Context(), orderID, sink)
	if err != nil {
		h.logger.Warn("tracking subscribe failed", logx.String("order_id", orderID), logx.Err(err))
		_ = sink.Close()
		return
	}
	defer sub.Unsubscribe()

	log := h.logger.With(logx.String("order_id", orderID), logx.String("subscription_id", sub.ID()))
	log.Info("tracking stream opened")
	if err := sink.ReadLoop(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		log.Debug("tracking stream read ended", logx.Err(err))
	}
	log.Info("tracking stream closed")
}
