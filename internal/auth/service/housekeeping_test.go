package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHousekeepingCleanup(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.register(t, "h@x.com", "pw123")

	_, err := env.gateway.LoginWithPassword(ctx, "h@x.com", "pw123", false)
	require.NoError(t, err)
	require.NoError(t, env.gateway.RequestOTP(ctx, "h@x.com"))
	require.NoError(t, env.gateway.ForgotPassword(ctx, "h@x.com"))

	hk := NewHousekeepingService(env.store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute)
	hk.Now = env.clock.Now

	require.Zero(t, hk.Cleanup(ctx), "nothing has expired yet")

	env.clock.Advance(DefaultSessionTTL)
	require.Equal(t, int64(3), hk.Cleanup(ctx))
}

func TestHousekeepingStartStop(t *testing.T) {
	env := newTestEnv(t)

	hk := NewHousekeepingService(env.store, env.store.Challenges(), slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	require.Equal(t, time.Hour, hk.Interval)

	hk.Start()
	hk.Stop()
}
