package orders

import (
	"context"
	"strings"

	"courier-dispatch/internal/domain"
)

type actionFunc func(context.Context, Event) error

type actionFactory struct {
	byStatus map[string]actionFunc
}

func newActionFactory(onReady, onCancelled actionFunc, onProgress func(domain.OrderStatus) actionFunc) *actionFactory {
	return &actionFactory{
		byStatus: map[string]actionFunc{
			"ready_for_dispatch": onReady,
			"cancelled":          onCancelled,
			"canceled":           onCancelled,
			"deleted":            onCancelled,
			"confirmed":          onProgress(domain.OrderConfirmed),
			"preparing":          onProgress(domain.OrderPreparing),
			"out_for_delivery":   onProgress(domain.OrderOutForDelivery),
			"delivered":          onProgress(domain.OrderDelivered),
		},
	}
}

func (f *actionFactory) get(status string) (actionFunc, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	fn, ok := f.byStatus[status]
	return fn, ok
}
