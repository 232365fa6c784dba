package app

import (
	"github.com/enaema/budget-ledger/internal/rest"
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Liveness
	r.HandleFunc("/", rest.NewLivenessHandler(deps.Clock)).Methods("GET")

	// Ledger
	r.HandleFunc("/api/tasks", deps.LedgerHandler.CreateEntry).Methods("POST")
	r.HandleFunc("/api/tasks", deps.LedgerHandler.ListEntries).Methods("GET")
	r.HandleFunc("/api/tasks/{id}", deps.LedgerHandler.UpdateExpenses).Methods("PUT")
	r.HandleFunc("/api/tasks/{id}", deps.LedgerHandler.DeleteEntry).Methods("DELETE")
	r.HandleFunc("/api/aggregated-tasks", deps.LedgerHandler.GetAggregated).Methods("GET")
}
