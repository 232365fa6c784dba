package app

import (
	"github.com/enaema/budget-ledger/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

// subscribeAuditLog writes one structured log line per ledger change.
func subscribeAuditLog(bus *event_bus.EventBus) {
	for _, eventType := range []event_bus.EventType{
		event_bus.LedgerEntryUpserted,
		event_bus.LedgerEntryUpdated,
		event_bus.LedgerEntryDeleted,
	} {
		event_bus.SubscribeTyped(bus, eventType, func(e event_bus.EventT[event_bus.LedgerEntryChanged]) error {
			log.WithFields(log.Fields{
				"event":      e.Type,
				"id":         e.Data.ID,
				"day":        e.Data.DayKey,
				"created":    e.Data.Created,
				"categories": e.Data.Categories,
			}).Info("ledger changed")
			return nil
		})
	}
}
