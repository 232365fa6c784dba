package app

import (
	"fmt"
	"time"

	"github.com/enaema/budget-ledger/internal/config"
	"github.com/enaema/budget-ledger/internal/event_bus"
	"github.com/enaema/budget-ledger/internal/utils"
	"github.com/enaema/budget-ledger/pkg/docstore"
	"github.com/enaema/budget-ledger/pkg/ledger"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus
	Store    docstore.Store

	LedgerService      *ledger.ServiceImpl
	CsvSummaryRenderer *ledger.CsvSummaryRendererImpl
	LedgerHandler      *ledger.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(store docstore.Store, cfg config.Application) (*Dependencies, error) {
	location, err := time.LoadLocation(cfg.Ledger.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger.timezone %q: %w", cfg.Ledger.Timezone, err)
	}
	formatter, err := ledger.NewAmountFormatter(cfg.Ledger.Locale)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{}
	deps.Clock = &utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()
	deps.Store = store

	subscribeAuditLog(deps.EventBus)

	deps.LedgerService = ledger.NewService(
		deps.Store,
		ledger.NewDateKeyResolver(location),
		deps.Clock,
		deps.EventBus,
		ledger.Options{RetroactiveLimits: cfg.Ledger.RetroactiveLimits},
	)
	deps.CsvSummaryRenderer = ledger.NewCsvSummaryRenderer()
	deps.LedgerHandler = ledger.NewHandler(deps.LedgerService, deps.CsvSummaryRenderer, formatter)

	return deps, nil
}
