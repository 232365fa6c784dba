package app

import (
	"context"
	"fmt"

	"github.com/enaema/budget-ledger/internal/config"
	"github.com/enaema/budget-ledger/internal/database"
	"github.com/enaema/budget-ledger/pkg/docstore"
	"github.com/enaema/budget-ledger/pkg/docstore/memory"
	"github.com/enaema/budget-ledger/pkg/docstore/mongo"
	"github.com/enaema/budget-ledger/pkg/docstore/postgres"
	log "github.com/sirupsen/logrus"
)

// OpenStore builds the document store selected by cfg.Backend. The caller owns
// the returned store and must Close it on shutdown.
func OpenStore(ctx context.Context, cfg config.Store) (docstore.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		log.Warn("Using in-memory store, entries are lost on restart")
		return memory.NewStore(), nil
	case config.BackendPostgres:
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("store.postgres.url is required for the postgres backend")
		}
		if err := database.Migrate(cfg.Postgres.URL); err != nil {
			return nil, err
		}
		pool, err := database.Open(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		log.Info("Using postgres document store")
		return postgres.NewStore(pool), nil
	case config.BackendMongo:
		store, err := mongo.Open(ctx, mongo.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
