package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/http/handlers"
	"courier-dispatch/internal/service/tracking"
)

type stubTracking struct {
	locationFn func(ctx context.Context, s domain.LocationSample) error
	statusFn   func(ctx context.Context, ev domain.StatusEvent) error
	latestFn   func(orderID string) ([]domain.LocationSample, error)
	historyFn  func(orderID string) ([]domain.StatusEvent, error)
}

func (s *stubTracking) PublishLocation(ctx context.Context, sample domain.LocationSample) error {
	return s.locationFn(ctx, sample)
}

func (s *stubTracking) PublishStatus(ctx context.Context, ev domain.StatusEvent) error {
	return s.statusFn(ctx, ev)
}

func (s *stubTracking) LatestLocations(orderID string) ([]domain.LocationSample, error) {
	return s.latestFn(orderID)
}

func (s *stubTracking) History(orderID string) ([]domain.StatusEvent, error) {
	return s.historyFn(orderID)
}

func (s *stubTracking) Subscribe(context.Context, string, tracking.Sink) (*tracking.Subscription, error) {
	panic("Subscribe not expected in this test")
}

type stubMirror struct {
	latestFn func(ctx context.Context, orderID string) ([]domain.LocationSample, error)
}

func (s *stubMirror) Latest(ctx context.Context, orderID string) ([]domain.LocationSample, error) {
	return s.latestFn(ctx, orderID)
}

func trackingRouter(h *handlers.TrackingHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/tracking/{orderID}/location", h.PublishLocation)
	r.Post("/tracking/{orderID}/status", h.PublishStatus)
	r.Get("/tracking/{orderID}/location", h.Locations)
	r.Get("/tracking/{orderID}/history", h.History)
	r.Get("/tracking/{orderID}/ws", h.Stream)
	return r
}

func TestTrackingHandler_PublishLocation(t *testing.T) {
	t.Parallel()

	var got domain.LocationSample
	uc := &stubTracking{
		locationFn: func(_ context.Context, s domain.LocationSample) error {
			got = s
			return nil
		},
	}
	rr := do(trackingRouter(handlers.NewTrackingHandler(nil, uc, nil, nil, 0)), http.MethodPost, "/tracking/order-1/location",
		`{"courier_id":7,"latitude":55.75,"longitude":37.61,"speed":4.5,"timestamp":"2026-05-06T10:08:09+03:00"}`)

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "order-1", got.OrderID)
	assert.Equal(t, int64(7), got.CourierID)
	assert.InDelta(t, 55.75, got.Latitude, 1e-9)
	require.NotNil(t, got.Speed)
	assert.InDelta(t, 4.5, *got.Speed, 1e-9)
	assert.Nil(t, got.Heading)
	assert.Equal(t, t0, got.Timestamp)
}

func TestTrackingHandler_PublishLocation_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		body string
		err  error
		code int
	}{
		"missing longitude":   {body: `{"courier_id":7,"latitude":1}`, code: http.StatusBadRequest},
		"invalid coordinates": {body: `{"courier_id":7,"latitude":91,"longitude":0}`, err: apperr.ErrInvalidCoordinates, code: http.StatusUnprocessableEntity},
		"unknown order":       {body: `{"courier_id":7,"latitude":1,"longitude":1}`, err: apperr.ErrOrderNotFound, code: http.StatusNotFound},
		"finished order":      {body: `{"courier_id":7,"latitude":1,"longitude":1}`, err: apperr.ErrAlreadyTerminal, code: http.StatusConflict},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			uc := &stubTracking{
				locationFn: func(context.Context, domain.LocationSample) error { return tc.err },
			}
			rr := do(trackingRouter(handlers.NewTrackingHandler(nil, uc, nil, nil, 0)), http.MethodPost, "/tracking/order-1/location", tc.body)
			assert.Equal(t, tc.code, rr.Code)
		})
	}
}

func TestTrackingHandler_PublishStatus(t *testing.T) {
	t.Parallel()

	var got domain.StatusEvent
	uc := &stubTracking{
		statusFn: func(_ context.Context, ev domain.StatusEvent) error {
			got = ev
			return nil
		},
	}
	rr := do(trackingRouter(handlers.NewTrackingHandler(nil, uc, nil, nil, 0)), http.MethodPost, "/tracking/order-1/status",
		`{"status":" Out_For_Delivery ","note":" on the way ","courier_id":3}`)

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, domain.StatusEvent{
		OrderID:   "order-1",
		Status:    domain.OrderOutForDelivery,
		Note:      "on the way",
		CourierID: 3,
	}, got)
}

func TestTrackingHandler_PublishStatus_InvalidTransition(t *testing.T) {
	t.Parallel()

	uc := &stubTracking{
		statusFn: func(context.Context, domain.StatusEvent) error { return apperr.ErrInvalidTransition },
	}
	rr := do(trackingRouter(handlers.NewTrackingHandler(nil, uc, nil, nil, 0)), http.MethodPost, "/tracking/order-1/status", `{"status":"preparing"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestTrackingHandler_Locations_MirrorFallback(t *testing.T) {
	t.Parallel()

	uc := &stubTracking{
		latestFn: func(string) ([]domain.LocationSample, error) { return nil, apperr.ErrOrderNotFound },
	}
	mirror := &stubMirror{
		latestFn: func(_ context.Context, orderID string) ([]domain.LocationSample, error) {
			return []domain.LocationSample{{OrderID: orderID, CourierID: 2, Latitude: 1, Longitude: 2, Timestamp: t0}}, nil
		},
	}

	rr := do(trackingRouter(handlers.NewTrackingHandler(nil, uc, mirror, nil, 0)), http.MethodGet, "/tracking/order-1/location", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var got []domain.LocationSample
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].CourierID)

	rr = do(trackingRouter(handlers.NewTrackingHandler(nil, uc, nil, nil, 0)), http.MethodGet, "/tracking/order-1/location", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTrackingHandler_History_ArchiveFallback(t *testing.T) {
	t.Parallel()

	uc := &stubTracking{
		historyFn: func(string) ([]domain.StatusEvent, error) { return nil, apperr.ErrOrderNotFound },
	}
	archive := &stubArchive{
		historyFn: func(_ context.Context, orderID string) ([]domain.StatusEvent, error) {
			if orderID == "gone" {
				return nil, nil
			}
			return []domain.StatusEvent{
				{OrderID: orderID, Status: domain.OrderSearchingCourier, Timestamp: t0},
				{OrderID: orderID, Status: domain.OrderCourierAssigned, Timestamp: t0.Add(time.Second)},
			}, nil
		},
	}
	router := trackingRouter(handlers.NewTrackingHandler(nil, uc, nil, archive, 0))

	rr := do(router, http.MethodGet, "/tracking/order-1/history", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"courier_assigned"`)

	rr = do(router, http.MethodGet, "/tracking/gone/history", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTrackingHandler_Stream_UnknownOrder(t *testing.T) {
	t.Parallel()

	b := tracking.New(nil, nil, 0, tracking.Metrics{})
	rr := do(trackingRouter(handlers.NewTrackingHandler(nil, b, nil, nil, 0)), http.MethodGet, "/tracking/nope/ws", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTrackingHandler_Stream_ReplayAndLive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := tracking.New(nil, nil, 0, tracking.Metrics{})
	require.NoError(t, b.PublishStatus(ctx, domain.StatusEvent{OrderID: "order-1", Status: domain.OrderSearchingCourier}))
	require.NoError(t, b.PublishStatus(ctx, domain.StatusEvent{OrderID: "order-1", Status: domain.OrderCourierAssigned, CourierID: 4}))

	srv := httptest.NewServer(trackingRouter(handlers.NewTrackingHandler(nil, b, nil, nil, time.Second)))
	t.Cleanup(srv.Close)

	dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	conn, br, _, err := ws.Dial(dialCtx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/tracking/order-1/ws")
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	// replay frames sent with the handshake response land in br
	var src io.Reader = conn
	if br != nil {
		src = br
		defer ws.PutReader(br)
	}
	rw := struct {
		io.Reader
		io.Writer
	}{src, conn}

	read := func() domain.TrackingEvent {
		data, err := wsutil.ReadServerText(rw)
		require.NoError(t, err)
		var ev domain.TrackingEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	}

	first, second := read(), read()
	assert.Equal(t, domain.OrderSearchingCourier, first.Status.Status)
	assert.Equal(t, domain.OrderCourierAssigned, second.Status.Status)

	require.NoError(t, b.PublishLocation(ctx, domain.LocationSample{OrderID: "order-1", CourierID: 4, Latitude: 10, Longitude: 20}))
	live := read()
	require.Equal(t, domain.TrackingLocation, live.Kind)
	assert.InDelta(t, 10, live.Location.Latitude, 1e-9)

	require.NoError(t, b.PublishStatus(ctx, domain.StatusEvent{OrderID: "order-1", Status: domain.OrderOutForDelivery}))
	require.NoError(t, b.PublishStatus(ctx, domain.StatusEvent{OrderID: "order-1", Status: domain.OrderDelivered}))
	assert.Equal(t, domain.OrderOutForDelivery, read().Status.Status)
	assert.Equal(t, domain.OrderDelivered, read().Status.Status)

	// terminal status closes the stream
	frame, err := ws.ReadFrame(src)
	require.NoError(t, err)
	assert.Equal(t, ws.OpClose, frame.Header.OpCode)

	require.Eventually(t, func() bool { return b.Stats().Subscriptions == 0 }, 2*time.Second, 10*time.Millisecond)
}
