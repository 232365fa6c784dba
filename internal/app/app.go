package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/enaema/budget-ledger/internal/config"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Application wires configuration, document store, router, and server lifecycle.
type Application struct {
	cfg    config.Application
	deps   *Dependencies
	router *mux.Router
	srv    *http.Server
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load("./config/application.yaml")
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	deps, err := BuildDependencies(store, cfg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	r := NewRouter(deps, cfg)

	srv := &http.Server{
		Handler:      WithCORS(r, cfg),
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, deps: deps, router: r, srv: srv}, nil
}

// NewRouter builds the mux router with middleware and routes, without CORS.
func NewRouter(deps *Dependencies, cfg config.Application) *mux.Router {
	r := mux.NewRouter()
	SetupMiddleware(r, cfg)
	RegisterRoutes(r, deps)
	return r
}

// Run serves until ctx is cancelled, then drains connections and closes the store.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		_ = a.deps.Store.Close(context.Background())
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.srv.Shutdown(shutdownCtx)
	if closeErr := a.deps.Store.Close(shutdownCtx); closeErr != nil {
		log.Errorf("failed to close store: %v", closeErr)
	}
	return err
}
