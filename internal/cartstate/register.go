// Package cartstate maintains the singleton cart status snapshot and pushes
// every change to subscribers.
package cartstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/patrolworks/inspection-service/internal/broadcast"
	"github.com/patrolworks/inspection-service/internal/store"
	"github.com/patrolworks/inspection-service/internal/types"
)

// Update carries the fields a status report may set. Nil pointers mean the
// field was absent from the report and keeps its previous value.
type Update struct {
	Online         *bool
	CurrentStation *int
	Mode           types.CartMode
	BatteryLevel   *int
	LastActivity   string
}

// Register is the cart status store facade.
type Register struct {
	store  store.CartStatusStore
	hub    *broadcast.Hub
	logger zerolog.Logger
}

// New creates a register.
func New(st store.CartStatusStore, hub *broadcast.Hub, logger zerolog.Logger) *Register {
	return &Register{
		store:  st,
		hub:    hub,
		logger: logger.With().Str("component", "cartstate").Logger(),
	}
}

// Apply merges an update into the current snapshot, persists it, and
// publishes a cart_status event. Unset fields keep their previous value.
func (r *Register) Apply(ctx context.Context, upd Update) (*types.CartStatus, error) {
	if upd.Mode != "" && !types.ValidCartMode(upd.Mode) {
		return nil, store.NewValidationError("mode", fmt.Sprintf("unknown cart mode %q", upd.Mode))
	}
	if upd.BatteryLevel != nil && (*upd.BatteryLevel < 0 || *upd.BatteryLevel > 100) {
		return nil, store.NewValidationError("battery_level", "must be between 0 and 100")
	}
	if upd.CurrentStation != nil && *upd.CurrentStation <= 0 {
		return nil, store.NewValidationError("current_station", "must be a positive integer")
	}

	cur, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}

	if upd.Online != nil {
		cur.Online = *upd.Online
	}
	if upd.CurrentStation != nil {
		cur.CurrentStation = upd.CurrentStation
	}
	if upd.Mode != "" {
		cur.Mode = upd.Mode
	}
	if upd.BatteryLevel != nil {
		cur.BatteryLevel = upd.BatteryLevel
	}
	if upd.LastActivity != "" {
		cur.LastActivity = upd.LastActivity
	}
	cur.Timestamp = time.Now().UTC()

	if err := r.store.SetCartStatus(ctx, cur); err != nil {
		return nil, store.Persistence("set cart status", err)
	}

	r.logger.Debug().
		Bool("online", cur.Online).
		Str("mode", string(cur.Mode)).
		Msg("Cart status updated")

	r.hub.Publish(broadcast.KindCartStatus, cur)
	return cur, nil
}

// Get returns the current snapshot. Before any report has arrived the
// default offline/idle snapshot is returned instead of an error.
func (r *Register) Get(ctx context.Context) (*types.CartStatus, error) {
	cur, err := r.store.CartStatus(ctx)
	switch {
	case err == nil:
		return cur, nil
	case errors.Is(err, store.ErrNotFound):
		return types.DefaultCartStatus(), nil
	default:
		return nil, store.Persistence("get cart status", err)
	}
}
