package cartstate

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrolworks/inspection-service/internal/broadcast"
	"github.com/patrolworks/inspection-service/internal/memstore"
	"github.com/patrolworks/inspection-service/internal/store"
	"github.com/patrolworks/inspection-service/internal/types"
)

func ptr[T any](v T) *T { return &v }

func newTestRegister(t *testing.T) (*Register, *broadcast.Hub) {
	t.Helper()
	hub := broadcast.New(64, zerolog.Nop())
	return New(memstore.New(), hub, zerolog.Nop()), hub
}

func TestGetBeforeAnyReport(t *testing.T) {
	reg, _ := newTestRegister(t)

	status, err := reg.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Online)
	assert.Equal(t, types.ModeIdle, status.Mode)
	assert.Nil(t, status.CurrentStation)
}

func TestApplyPersistsAndPublishes(t *testing.T) {
	reg, hub := newTestRegister(t)
	ctx := context.Background()

	sub := hub.Subscribe()
	defer sub.Close()

	status, err := reg.Apply(ctx, Update{
		Online:         ptr(true),
		CurrentStation: ptr(4),
		Mode:           types.ModeWorking,
		BatteryLevel:   ptr(82),
		LastActivity:   "inspecting station 4",
	})
	require.NoError(t, err)
	assert.True(t, status.Online)
	assert.Equal(t, types.ModeWorking, status.Mode)
	assert.False(t, status.Timestamp.IsZero())

	got, err := reg.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, status, got)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, broadcast.KindCartStatus, ev.Kind)
		payload, ok := ev.Payload.(*types.CartStatus)
		require.True(t, ok)
		assert.True(t, payload.Online)
	case <-time.After(time.Second):
		t.Fatal("no cart_status event")
	}
}

func TestApplyMergesPartialUpdate(t *testing.T) {
	reg, _ := newTestRegister(t)
	ctx := context.Background()

	_, err := reg.Apply(ctx, Update{
		Online:       ptr(true),
		Mode:         types.ModeLoop,
		BatteryLevel: ptr(90),
	})
	require.NoError(t, err)

	// Only the battery changes; online and mode carry over.
	status, err := reg.Apply(ctx, Update{BatteryLevel: ptr(55)})
	require.NoError(t, err)
	assert.True(t, status.Online)
	assert.Equal(t, types.ModeLoop, status.Mode)
	require.NotNil(t, status.BatteryLevel)
	assert.Equal(t, 55, *status.BatteryLevel)
}

func TestApplyValidation(t *testing.T) {
	reg, _ := newTestRegister(t)
	ctx := context.Background()

	tests := []struct {
		name string
		upd  Update
	}{
		{"unknown mode", Update{Mode: "sideways"}},
		{"battery below range", Update{BatteryLevel: ptr(-1)}},
		{"battery above range", Update{BatteryLevel: ptr(101)}},
		{"zero station", Update{CurrentStation: ptr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Apply(ctx, tt.upd)
			assert.True(t, store.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}
