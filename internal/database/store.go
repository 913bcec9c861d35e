package database

import (
	"github.com/patrolworks/inspection-service/internal/store"
)

// Store adapts the shared connection pool to the persistence contracts in
// internal/store. It is stateless; every method goes through Pool().
type Store struct{}

// NewStore returns the Postgres-backed store. Connect and EnsureSchema must
// have been called first.
func NewStore() *Store {
	return &Store{}
}

var (
	_ store.TaskQueue       = (*Store)(nil)
	_ store.RecordStore     = (*Store)(nil)
	_ store.AlertStore      = (*Store)(nil)
	_ store.CartStatusStore = (*Store)(nil)
)
