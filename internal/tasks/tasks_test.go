package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
)

func TestRunReportsProgressAndOutcome(t *testing.T) {
	registry := NewRegistry(time.Minute, time.Minute, zap.NewNop())

	task := registry.Run("create jsmith", func(ctx context.Context, report func(string)) (*domain.CreationOutcome, error) {
		report("step one")
		report("step two")
		return &domain.CreationOutcome{Status: domain.StatusCreated}, nil
	})

	outcome, err := task.Wait(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, domain.StatusCreated, outcome.Status)

	lines := task.Status()
	require.Len(t, lines, 2)
	assert.Equal(t, "step one", lines[0].Line)
	assert.Equal(t, "step two", lines[1].Line)
}

func TestResultBeforeCompletion(t *testing.T) {
	registry := NewRegistry(time.Minute, time.Minute, zap.NewNop())
	release := make(chan struct{})

	task := registry.Run("slow", func(ctx context.Context, report func(string)) (*domain.CreationOutcome, error) {
		<-release
		return &domain.CreationOutcome{Status: domain.StatusCreated}, nil
	})

	_, done, _ := task.Result()
	assert.False(t, done)

	close(release)
	_, err := task.Wait(context.Background())
	require.NoError(t, err)

	outcome, done, err := task.Result()
	assert.True(t, done)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, outcome.Status)
}

func TestRunSurfacesFailure(t *testing.T) {
	registry := NewRegistry(time.Minute, time.Minute, zap.NewNop())
	boom := errors.New("backend exploded")

	task := registry.Run("failing", func(ctx context.Context, report func(string)) (*domain.CreationOutcome, error) {
		return nil, boom
	})

	_, err := task.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestGetFindsRunningTask(t *testing.T) {
	registry := NewRegistry(time.Minute, time.Minute, zap.NewNop())

	task := registry.Run("lookup", func(ctx context.Context, report func(string)) (*domain.CreationOutcome, error) {
		return &domain.CreationOutcome{Status: domain.StatusCreated}, nil
	})

	found, ok := registry.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, task.ID, found.ID)

	_, ok = registry.Get("no-such-task")
	assert.False(t, ok)
}

func TestWaitHonorsContext(t *testing.T) {
	registry := NewRegistry(time.Minute, time.Minute, zap.NewNop())
	release := make(chan struct{})
	defer close(release)

	task := registry.Run("stuck", func(ctx context.Context, report func(string)) (*domain.CreationOutcome, error) {
		<-release
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := task.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTaskBodyGetsDeadline(t *testing.T) {
	registry := NewRegistry(30*time.Millisecond, time.Minute, zap.NewNop())

	task := registry.Run("deadline", func(ctx context.Context, report func(string)) (*domain.CreationOutcome, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := task.Wait(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
