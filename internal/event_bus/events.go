package event_bus

const (
	LedgerEntryUpserted EventType = "ledger.entry.upserted"
	LedgerEntryUpdated  EventType = "ledger.entry.updated"
	LedgerEntryDeleted  EventType = "ledger.entry.deleted"
)

type LedgerEntryChanged struct {
	ID     string
	DayKey string
	// Created is true when the change inserted a new day record.
	Created bool
	// Categories lists the categories written by the change.
	Categories []string
}
