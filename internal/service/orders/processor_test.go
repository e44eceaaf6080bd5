package orders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/orders"
	testlog "courier-dispatch/internal/testutil"
)

type mocks struct {
	dispatch *MockDispatchPort
	tracking *MockTrackingPort
	couriers *MockCourierSource
}

func newProcessor(t *testing.T) (*orders.Processor, mocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := mocks{
		dispatch: NewMockDispatchPort(ctrl),
		tracking: NewMockTrackingPort(ctrl),
		couriers: NewMockCourierSource(ctrl),
	}
	return orders.NewProcessor(m.dispatch, m.tracking, m.couriers, nil, 3), m
}

func TestProcessor_Handle_Ready_UsesEventCandidates(t *testing.T) {
	t.Parallel()

	p, m := newProcessor(t)

	m.dispatch.EXPECT().
		StartDispatch(gomock.Any(), "order-1", []int64{7, 8}).
		Return(&domain.AssignmentRecord{OrderID: "order-1"}, nil)

	err := p.Handle(context.Background(), orders.Event{
		OrderID:    "order-1",
		Status:     "  READY_FOR_DISPATCH  ",
		CourierIDs: []int64{7, 8},
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)
}

func TestProcessor_Handle_Ready_FallsBackToPool(t *testing.T) {
	t.Parallel()

	p, m := newProcessor(t)

	gomock.InOrder(
		m.couriers.EXPECT().
			ListAvailable(gomock.Any(), 3).
			Return([]domain.Courier{{ID: 4}, {ID: 2}, {ID: 9}}, nil),
		m.dispatch.EXPECT().
			StartDispatch(gomock.Any(), "order-1", []int64{4, 2, 9}).
			Return(&domain.AssignmentRecord{}, nil),
	)

	err := p.Handle(context.Background(), orders.Event{OrderID: "order-1", Status: "ready_for_dispatch"})
	require.NoError(t, err)
}

func TestProcessor_Handle_Ready_PoolError(t *testing.T) {
	t.Parallel()

	p, m := newProcessor(t)

	wantErr := errors.New("db down")
	m.couriers.EXPECT().ListAvailable(gomock.Any(), 3).Return(nil, wantErr)

	err := p.Handle(context.Background(), orders.Event{OrderID: "order-1", Status: "ready_for_dispatch"})
	require.ErrorIs(t, err, wantErr)
	require.False(t, apperr.IsPermanent(err))
}

func TestProcessor_Handle_Ready_ConflictIsIgnored(t *testing.T) {
	t.Parallel()

	p, m := newProcessor(t)

	m.dispatch.EXPECT().
		StartDispatch(gomock.Any(), "order-1", []int64{1}).
		Return(nil, apperr.ErrConflict)

	err := p.Handle(context.Background(), orders.Event{OrderID: "order-1", Status: "ready_for_dispatch", CourierIDs: []int64{1}})
	require.NoError(t, err)
}

func TestProcessor_Handle_Ready_NoCouriersIsPermanent(t *testing.T) {
	t.Parallel()

	p, m := newProcessor(t)

	m.couriers.EXPECT().ListAvailable(gomock.Any(), 3).Return(nil, nil)
	m.dispatch.EXPECT().
		StartDispatch(gomock.Any(), "order-1", []int64{}).
		Return(nil, apperr.ErrNoEligibleCouriers)

	err := p.Handle(context.Background(), orders.Event{OrderID: "order-1", Status: "ready_for_dispatch"})
	require.ErrorIs(t, err, apperr.ErrNoEligibleCouriers)
	require.True(t, apperr.IsPermanent(err))
}

func TestProcessor_Handle_Ready_OtherErrorReturned(t *testing.T) {
	t.Parallel()

	p, m := newProcessor(t)

	wantErr := errors.New("boom")
	m.dispatch.EXPECT().
		StartDispatch(gomock.Any(), "order-1", []int64{1}).
		Return(nil, wantErr)

	err := p.Handle(context.Background(), orders.Event{OrderID: "order-1", Status: "ready_for_dispatch", CourierIDs: []int64{1}})
	require.ErrorIs(t, err, wantErr)
}

func TestProcessor_Handle_Ready_NilPool(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	d := NewMockDispatchPort(ctrl)
	p := orders.NewProcessor(d, NewMockTrackingPort(ctrl), nil, nil, 0)

	d.EXPECT().
		StartDispatch(gomock.Any(), "order-1", nil).
		Return(nil, apperr.ErrNoEligibleCouriers)

	err := p.Handle(context.Background(), orders.Event{OrderID: "order-1", Status: "ready_for_dispatch"})
	require.True(t, apperr.IsPermanent(err))
}

func TestProcessor_Handle_Cancelled_DispatchRunning(t *testing.T) {
	t.Parallel()

	p, m := newProcessor(t)

	m.dispatch.EXPECT().
		CancelDispatch(gomock.Any(), "order-2", domain.ReasonCustomerCancelled).
		Return(&domain.AssignmentRecord{}, nil)

	err := p.Handle(context.Background(), orders.Event{OrderID: "order-2", Status: "cancelled"})
	require.NoError(t, err)
}

func TestProcessor_Handle_Cancelled_NoDispatchPublishesStatus(t *testing.T) {
	t.Parallel()

	for _, status := range []string{"cancelled", "canceled", "deleted"} {
		t.Run(status, func(t *testing.T) {
			t.Parallel()

			p, m := newProcessor(t)
			at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

			m.dispatch.EXPECT().
				CancelDispatch(gomock.Any(), "order-2", domain.ReasonCustomerCancelled).
				Return(nil, apperr.ErrOrderNotFound)
			m.tracking.EXPECT().
				PublishStatus(gomock.Any(), domain.StatusEvent{
					OrderID:   "order-2",
					Status:    domain.OrderCancelled,
					Timestamp: at,
					Note:      "changed my mind",
				}).
				Return(nil)

			err := p.Handle(context.Background(), orders.Event{
				OrderID:   "order-2",
				Status:    status,
				Note:      "changed my mind",
				CreatedAt: at,
			})
			require.NoError(t, err)
		})
	}
}

func TestProcessor_Handle_Cancelled_AfterAcceptPublishesStatus(t *testing.T) {
	t.Parallel()

	p, m := newProcessor(t)

	m.dispatch.EXPECT().
		CancelDispatch(gomock.Any(), "order-2", domain.ReasonCustomerCancelled).
		Return(nil, apperr.ErrAlreadyTerminal)
	m.tracking.EXPECT().PublishStatus(gomock.Any(), gomock.Any()).Return(apperr.ErrAlreadyTerminal)

	err := p.Handle(context.Background(), orders.Event{OrderID: "order-2", Status: "cancelled"})
	require.NoError(t, err)
}

func TestProcessor_Handle_Cancelled_UnknownEverywhere(t *testing.T) {
	t.Parallel()

	p, m := newProcessor(t)

	m.dispatch.EXPECT().CancelDispatch(gomock.Any(), "order-2", gomock.Any()).Return(nil, apperr.ErrOrderNotFound)
	m.tracking.EXPECT().PublishStatus(gomock.Any(), gomock.Any()).Return(apperr.ErrOrderNotFound)

	err := p.Handle(context.Background(), orders.Event{OrderID: "order-2", Status: "deleted"})
	require.NoError(t, err)
}

func TestProcessor_Handle_Cancelled_OtherErrorReturned(t *testing.T) {
	t.Parallel()

	p, m := newProcessor(t)

	wantErr := context.DeadlineExceeded
	m.dispatch.EXPECT().CancelDispatch(gomock.Any(), "order-2", gomock.Any()).Return(nil, wantErr)

	err := p.Handle(context.Background(), orders.Event{OrderID: "order-2", Status: "canceled"})
	require.ErrorIs(t, err, wantErr)
}

func TestProcessor_Handle_Progress(t *testing.T) {
	t.Parallel()

	cases := map[string]domain.OrderStatus{
		"confirmed":        domain.OrderConfirmed,
		"Preparing":        domain.OrderPreparing,
		"out_for_delivery": domain.OrderOutForDelivery,
		"delivered":        domain.OrderDelivered,
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			t.Parallel()

			p, m := newProcessor(t)
			m.tracking.EXPECT().
				PublishStatus(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, ev domain.StatusEvent) error {
					require.Equal(t, "order-3", ev.OrderID)
					require.Equal(t, want, ev.Status)
					return nil
				})

			require.NoError(t, p.Handle(context.Background(), orders.Event{OrderID: "order-3", Status: in}))
		})
	}
}

func TestProcessor_Handle_Progress_IgnoresOutOfOrder(t *testing.T) {
	t.Parallel()

	p, m := newProcessor(t)

	m.tracking.EXPECT().PublishStatus(gomock.Any(), gomock.Any()).Return(apperr.ErrInvalidTransition)
	m.tracking.EXPECT().PublishStatus(gomock.Any(), gomock.Any()).Return(apperr.ErrAlreadyTerminal)

	require.NoError(t, p.Handle(context.Background(), orders.Event{OrderID: "order-3", Status: "preparing"}))
	require.NoError(t, p.Handle(context.Background(), orders.Event{OrderID: "order-3", Status: "delivered"}))
}

func TestProcessor_Handle_Progress_OtherErrorReturned(t *testing.T) {
	t.Parallel()

	p, m := newProcessor(t)

	m.tracking.EXPECT().PublishStatus(gomock.Any(), gomock.Any()).Return(apperr.ErrOrderNotFound)

	err := p.Handle(context.Background(), orders.Event{OrderID: "order-3", Status: "delivered"})
	require.ErrorIs(t, err, apperr.ErrOrderNotFound)
}

func TestProcessor_Handle_UnknownStatus_NoOps(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	rec := testlog.New()
	p := orders.NewProcessor(NewMockDispatchPort(ctrl), NewMockTrackingPort(ctrl), NewMockCourierSource(ctrl), rec.Logger(), 0)

	err := p.Handle(context.Background(), orders.Event{OrderID: "order-5", Status: "refunded"})
	require.NoError(t, err)
	require.True(t, rec.Has("debug", "order event ignored"))
}

func TestProcessor_Handle_BlankOrderIsPermanent(t *testing.T) {
	t.Parallel()

	p, _ := newProcessor(t)

	err := p.Handle(context.Background(), orders.Event{OrderID: "  ", Status: "delivered"})
	require.ErrorIs(t, err, apperr.ErrInvalid)
	require.True(t, apperr.IsPermanent(err))
}
