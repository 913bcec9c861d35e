// Package lock implements the auto-requeue session. While armed, every
// completion of a locked task type schedules a debounced re-enqueue of the
// same type/station pairing, sustaining a complete/requeue cycle until the
// session is disarmed.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/patrolworks/inspection-service/internal/broadcast"
	"github.com/patrolworks/inspection-service/internal/types"
)

// DefaultDebounce gives the task_queue_update for the completion time to
// settle before the requeued task appears.
const DefaultDebounce = 500 * time.Millisecond

// Enqueuer is the dispatcher surface the controller calls back into.
type Enqueuer interface {
	Enqueue(ctx context.Context, stationID int, taskType types.TaskType, params map[string]any) (string, error)
}

// Status is the session snapshot reported to clients.
type Status struct {
	Enabled     bool             `json:"enabled"`
	LockedTypes []types.TaskType `json:"locked_types"`
}

type timerKey struct {
	taskType  types.TaskType
	stationID int
}

// Controller is the lock session. One instance serves the whole service;
// arming replaces the locked set.
type Controller struct {
	enqueuer Enqueuer
	hub      *broadcast.Hub
	debounce time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	enabled bool
	locked  map[types.TaskType]struct{}
	timers  map[timerKey]*time.Timer

	sub  *broadcast.Subscription
	done chan struct{}
}

// New creates a controller. A non-positive debounce falls back to the
// default.
func New(enqueuer Enqueuer, hub *broadcast.Hub, debounce time.Duration, logger zerolog.Logger) *Controller {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Controller{
		enqueuer: enqueuer,
		hub:      hub,
		debounce: debounce,
		logger:   logger.With().Str("component", "lock").Logger(),
		locked:   map[types.TaskType]struct{}{},
		timers:   map[timerKey]*time.Timer{},
	}
}

// Start subscribes the controller to the hub. Events are ignored until the
// session is armed. Call Stop to release the subscription.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.sub != nil {
		c.mu.Unlock()
		return
	}
	c.sub = c.hub.Subscribe()
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.loop(ctx, c.sub, c.done)
}

// Stop disarms the session and releases the hub subscription.
func (c *Controller) Stop() {
	c.Disarm()

	c.mu.Lock()
	sub, done := c.sub, c.done
	c.sub, c.done = nil, nil
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
		<-done
	}
}

// Arm enables the session with the given locked set. The set is typically
// seeded from the task types currently pending. Arming an already-armed
// session replaces the set.
func (c *Controller) Arm(lockedTypes []types.TaskType) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = true
	c.locked = make(map[types.TaskType]struct{}, len(lockedTypes))
	for _, tt := range lockedTypes {
		if tt.Valid() {
			c.locked[tt] = struct{}{}
		}
	}

	c.logger.Info().Int("locked_types", len(c.locked)).Msg("Lock session armed")
	return c.statusLocked()
}

// Disarm disables the session and cancels every pending requeue timer. A
// timer that has already fired delivers at most one extra requeue; the
// locked set is kept but inert.
func (c *Controller) Disarm() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.enabled {
		c.logger.Info().Msg("Lock session disarmed")
	}
	c.enabled = false
	for key, timer := range c.timers {
		timer.Stop()
		delete(c.timers, key)
	}
	return c.statusLocked()
}

// Status returns the session snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	out := Status{Enabled: c.enabled, LockedTypes: make([]types.TaskType, 0, len(c.locked))}
	for tt := range c.locked {
		out.LockedTypes = append(out.LockedTypes, tt)
	}
	return out
}

func (c *Controller) loop(ctx context.Context, sub *broadcast.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.Kind != broadcast.KindTaskResult {
				continue
			}
			if res, ok := ev.Payload.(types.TaskResultEvent); ok {
				c.onResult(ctx, res)
			}
		}
	}
}

// onResult schedules a debounced requeue for a locked completion. Timers
// are keyed by type/station so a burst of completions coalesces into one
// requeue per pairing.
func (c *Controller) onResult(ctx context.Context, ev types.TaskResultEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}
	if _, ok := c.locked[ev.TaskType]; !ok {
		return
	}

	key := timerKey{taskType: ev.TaskType, stationID: ev.StationID}
	if timer, ok := c.timers[key]; ok {
		timer.Stop()
	}
	c.timers[key] = time.AfterFunc(c.debounce, func() {
		c.requeue(ctx, key)
	})
}

func (c *Controller) requeue(ctx context.Context, key timerKey) {
	c.mu.Lock()
	delete(c.timers, key)
	enabled := c.enabled
	c.mu.Unlock()
	if !enabled {
		return
	}

	taskID, err := c.enqueuer.Enqueue(ctx, key.stationID, key.taskType, nil)
	if err != nil {
		c.logger.Warn().
			Stringer("task_type", key.taskType).
			Int("station_id", key.stationID).
			Err(err).
			Msg("Lock requeue failed")
		return
	}
	c.logger.Debug().
		Str("task_id", taskID).
		Stringer("task_type", key.taskType).
		Int("station_id", key.stationID).
		Msg("Lock requeue enqueued")
}
