package app

import (
	"context"
	"testing"

	"github.com/enaema/budget-ledger/internal/config"
	"github.com/enaema/budget-ledger/pkg/docstore/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore_Memory(t *testing.T) {
	store, err := OpenStore(context.Background(), config.Store{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, err := OpenStore(context.Background(), config.Store{Backend: "redis"})
	assert.ErrorContains(t, err, `unknown store backend "redis"`)
}

func TestOpenStore_PostgresRequiresURL(t *testing.T) {
	_, err := OpenStore(context.Background(), config.Store{Backend: config.BackendPostgres})
	assert.ErrorContains(t, err, "store.postgres.url")
}
