// Package handlers exposes the HTTP API. Every response uses the envelope
// {status, data | error{code, message}, timestamp}.
package handlers

import (
	"context"

	"github.com/patrolworks/inspection-service/internal/broadcast"
	"github.com/patrolworks/inspection-service/internal/cartstate"
	"github.com/patrolworks/inspection-service/internal/dispatch"
	"github.com/patrolworks/inspection-service/internal/ingest"
	"github.com/patrolworks/inspection-service/internal/lock"
	"github.com/patrolworks/inspection-service/internal/store"
)

// Handler bundles the components the HTTP API fronts.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	ingestor   *ingest.Ingestor
	records    store.RecordStore
	alerts     store.AlertStore
	cart       *cartstate.Register
	lock       *lock.Controller
	hub        *broadcast.Hub

	// dbStatus reports backing-store health; nil when the memory driver is
	// active.
	dbStatus func(context.Context) error
}

// New creates the handler set.
func New(
	dispatcher *dispatch.Dispatcher,
	ingestor *ingest.Ingestor,
	records store.RecordStore,
	alerts store.AlertStore,
	cart *cartstate.Register,
	lockCtrl *lock.Controller,
	hub *broadcast.Hub,
	dbStatus func(context.Context) error,
) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		ingestor:   ingestor,
		records:    records,
		alerts:     alerts,
		cart:       cart,
		lock:       lockCtrl,
		hub:        hub,
		dbStatus:   dbStatus,
	}
}
