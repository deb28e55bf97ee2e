package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/abetube/internal/app/engine"
	"github.com/osa030/abetube/internal/app/engine/enginetest"
)

func nextEvent(t *testing.T, e *engine.Engine) engine.Event {
	t.Helper()
	select {
	case ev := <-e.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for engine event")
		return engine.Event{}
	}
}

func TestEngine_LoadIsIdempotentButRetags(t *testing.T) {
	surface := enginetest.NewSurface()
	e := engine.New(engine.RolePrimary, surface)
	defer e.Close()
	ctx := context.Background()

	require.NoError(t, e.Load(ctx, "https://media/a", 1))
	require.NoError(t, e.Load(ctx, "https://media/a", 2))

	assert.Equal(t, []string{"https://media/a"}, surface.Loads())
	assert.Equal(t, uint64(2), e.Generation())
	assert.Equal(t, "https://media/a", e.LoadedURL())
	assert.True(t, e.HasSource())

	surface.Emit(engine.SurfaceEvent{Kind: engine.KindTimeUpdate, Current: 3, Duration: 10})
	ev := nextEvent(t, e)
	assert.Equal(t, uint64(2), ev.Generation)
	assert.Equal(t, engine.RolePrimary, ev.Role)
	assert.Equal(t, engine.KindTimeUpdate, ev.Kind)
	assert.Equal(t, 3.0, ev.Current)
	assert.Equal(t, 10.0, ev.Duration)
}

func TestEngine_LoadFailureIsPlaybackError(t *testing.T) {
	surface := enginetest.NewSurface()
	surface.FailLoad("https://media/bad", errors.New("unsupported"))
	e := engine.New(engine.RoleSecondary, surface)
	defer e.Close()

	err := e.Load(context.Background(), "https://media/bad", 1)

	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrPlayback)
	assert.Contains(t, err.Error(), "secondary engine: load")
	assert.False(t, e.HasSource())
}

func TestEngine_OperationsRequireSource(t *testing.T) {
	surface := enginetest.NewSurface()
	e := engine.New(engine.RolePrimary, surface)
	defer e.Close()
	ctx := context.Background()

	_, err := e.Play(ctx)
	assert.ErrorIs(t, err, engine.ErrNothingLoaded)
	assert.ErrorIs(t, err, engine.ErrPlayback)
	assert.ErrorIs(t, e.Pause(ctx), engine.ErrNothingLoaded)
	assert.ErrorIs(t, e.Seek(ctx, 5), engine.ErrNothingLoaded)
	assert.Empty(t, surface.Calls())
}

func TestEngine_Play(t *testing.T) {
	tests := []struct {
		name     string
		confirm  engine.Confirmation
		rejectBy error
		want     engine.Confirmation
		wantErr  bool
	}{
		{name: "confirmed playing", confirm: engine.ConfirmedPlaying, want: engine.ConfirmedPlaying},
		{name: "confirmed paused", confirm: engine.ConfirmedPaused, want: engine.ConfirmedPaused},
		{name: "rejected", rejectBy: errors.New("autoplay blocked"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := enginetest.NewSurface()
			surface.ConfirmWith(tt.confirm)
			if tt.rejectBy != nil {
				surface.RejectPlay("https://media/a", tt.rejectBy)
			}
			e := engine.New(engine.RolePrimary, surface)
			defer e.Close()
			ctx := context.Background()
			require.NoError(t, e.Load(ctx, "https://media/a", 1))

			got, err := e.Play(ctx)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, engine.ErrPlayback)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_ErrorEventsAreMarked(t *testing.T) {
	surface := enginetest.NewSurface()
	e := engine.New(engine.RolePrimary, surface)
	defer e.Close()
	require.NoError(t, e.Load(context.Background(), "https://media/a", 7))

	surface.Emit(engine.SurfaceEvent{Kind: engine.KindError})
	ev := nextEvent(t, e)

	assert.Equal(t, engine.KindError, ev.Kind)
	assert.Equal(t, uint64(7), ev.Generation)
	assert.ErrorIs(t, ev.Err, engine.ErrPlayback)
}

func TestEngine_Unload(t *testing.T) {
	surface := enginetest.NewSurface()
	e := engine.New(engine.RoleSecondary, surface)
	defer e.Close()
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, "https://media/a", 1))

	e.Unload(ctx)

	assert.False(t, e.HasSource())
	assert.Empty(t, e.LoadedURL())
	assert.Equal(t, 1, surface.Count(enginetest.OpPause))

	// reloading the same URL after unload reaches the surface again
	require.NoError(t, e.Load(ctx, "https://media/a", 2))
	assert.Len(t, surface.Loads(), 2)
}

func TestEngine_CloseClosesEvents(t *testing.T) {
	e := engine.New(engine.RolePrimary, engine.NewNullSurface())
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-e.Events():
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "primary", engine.RolePrimary.String())
	assert.Equal(t, "secondary", engine.RoleSecondary.String())
	assert.Equal(t, "unknown", engine.Role(9).String())
	assert.Equal(t, "paused", engine.ConfirmedPaused.String())
	assert.Equal(t, "ended", engine.KindEnded.String())
}
