package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerService_Register(t *testing.T) {
	s := NewSchedulerService(testLogger(), time.Minute)
	noop := func(ctx context.Context) error { return nil }

	assert.NoError(t, s.Register("*/5 * * * *", "prayer", noop))
	assert.NoError(t, s.Register("@daily", "maintenance", noop))
	assert.Error(t, s.Register("every five minutes", "nafl", noop))
	assert.Len(t, s.jobs, 2)
}

func TestSchedulerService_StartStop(t *testing.T) {
	s := NewSchedulerService(testLogger(), 0)
	require.NoError(t, s.Register("*/5 * * * *", "prayer", func(ctx context.Context) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.running)

	s.Stop()
	s.Stop()
	assert.False(t, s.running)
}

func TestSchedulerService_Wrap(t *testing.T) {
	s := NewSchedulerService(testLogger(), time.Second)

	var deadline bool
	job := scheduledJob{name: "prayer", run: func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return errors.New("mosque list unavailable")
	}}

	assert.NotPanics(t, s.wrap(context.Background(), job))
	assert.True(t, deadline)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	skipped := scheduledJob{name: "prayer", run: func(ctx context.Context) error {
		called = true
		return nil
	}}
	s.wrap(ctx, skipped)()
	assert.False(t, called)
}
