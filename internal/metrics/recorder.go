package metrics

import (
	"context"

	"github.com/bareeqalyusr/bnpl-backend/internal/core/events"
)

// SubscribeToBus keeps the ledger counters in sync with domain events so
// services never import prometheus directly.
func SubscribeToBus(bus *events.EventBus) {
	bus.Subscribe(events.EventPurchaseAccepted, func(ctx context.Context, ev events.Event) error {
		PurchaseRequestsTotal.WithLabelValues("accepted").Inc()
		return nil
	})
	bus.Subscribe(events.EventPaymentRecorded, func(ctx context.Context, ev events.Event) error {
		PaymentsTotal.Inc()
		return nil
	})
	bus.Subscribe(events.EventSettlementCreated, func(ctx context.Context, ev events.Event) error {
		settlementType := "income"
		if data, ok := ev.Payload().(map[string]interface{}); ok {
			if t, ok := data["settlement_type"].(string); ok && t != "" {
				settlementType = t
			}
		}
		SettlementsTotal.WithLabelValues(settlementType).Inc()
		return nil
	})
}
