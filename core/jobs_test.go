package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStoreSuccess(t *testing.T) {
	store := NewJobStore()
	release := make(chan struct{})

	job := store.Submit(context.Background(), map[string]any{"reference": "P1"}, func(_ context.Context, progress ProgressFunc) (*schema.AnalysisResult, error) {
		progress(schema.StageCompositing, 0.2, "building composites")
		<-release
		progress(schema.StageDetecting, 0.7, "detecting change")
		return &schema.AnalysisResult{Reference: "P1"}, nil
	})
	assert.Len(t, job.ID, 8)
	assert.Equal(t, schema.JobPending, job.Status)
	assert.Equal(t, "P1", job.Params["reference"])

	assert.Eventually(t, func() bool {
		j, err := store.Get(job.ID)
		return err == nil && j.Status == schema.JobRunning && j.Stage == schema.StageCompositing
	}, time.Second, 5*time.Millisecond)

	close(release)
	store.Wait()

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.JobCompleted, got.Status)
	assert.Equal(t, schema.StageDone, got.Stage)
	assert.Equal(t, 1.0, got.Progress)
	require.NotNil(t, got.Result)
	assert.Equal(t, job.ID, got.Result.ID)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestJobStoreFailure(t *testing.T) {
	store := NewJobStore()
	job := store.Submit(context.Background(), nil, func(_ context.Context, progress ProgressFunc) (*schema.AnalysisResult, error) {
		progress(schema.StageCompositing, 0.3, "building composites")
		progress(schema.StageFailed, 0.3, "failed")
		return nil, &contract.EmptyCollectionError{Period: "P2"}
	})
	store.Wait()

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.JobFailed, got.Status)
	assert.Equal(t, schema.StageFailed, got.Stage)
	assert.Contains(t, got.Error, "P2")
	assert.Nil(t, got.Result)
	assert.InDelta(t, 0.3, got.Progress, 1e-9)
}

func TestJobStoreOutlivesRequestContext(t *testing.T) {
	store := NewJobStore()
	ctx, cancel := context.WithCancel(context.Background())
	job := store.Enqueue(nil)
	require.NoError(t, store.Start(ctx, job.ID, func(ctx context.Context, _ ProgressFunc) (*schema.AnalysisResult, error) {
		cancel()
		return &schema.AnalysisResult{}, ctx.Err()
	}))
	store.Wait()

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.JobCompleted, got.Status)
}

func TestJobStoreCancel(t *testing.T) {
	store := NewJobStore()
	job := store.Enqueue(nil)

	cancelled, err := store.Cancel(job.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.JobCancelled, cancelled.Status)

	// A cancelled job never runs.
	ran := false
	err = store.Start(context.Background(), job.ID, func(context.Context, ProgressFunc) (*schema.AnalysisResult, error) {
		ran = true
		return nil, nil
	})
	require.Error(t, err)
	store.Wait()
	assert.False(t, ran)

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.JobCancelled, got.Status)
}

func TestJobStoreCancelRejectsStartedJob(t *testing.T) {
	store := NewJobStore()
	job := store.Submit(context.Background(), nil, func(context.Context, ProgressFunc) (*schema.AnalysisResult, error) {
		return &schema.AnalysisResult{}, nil
	})
	store.Wait()

	got, err := store.Cancel(job.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only pending jobs")
	assert.Equal(t, schema.JobCompleted, got.Status)
}

func TestJobStoreUnknownID(t *testing.T) {
	store := NewJobStore()

	_, err := store.Get("nope")
	assert.True(t, errors.Is(err, contract.ErrJobNotFound))
	_, err = store.Cancel("nope")
	assert.True(t, errors.Is(err, contract.ErrJobNotFound))
	err = store.Start(context.Background(), "nope", nil)
	assert.True(t, errors.Is(err, contract.ErrJobNotFound))
}

func TestJobStoreList(t *testing.T) {
	store := NewJobStore()
	var ids []string
	for i := range 5 {
		ids = append(ids, store.Enqueue(map[string]any{"n": i}).ID)
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"newest first", 0, []string{ids[4], ids[3], ids[2], ids[1], ids[0]}},
		{"limited", 2, []string{ids[4], ids[3]}},
		{"limit above size", 10, []string{ids[4], ids[3], ids[2], ids[1], ids[0]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, j := range store.List(tt.limit) {
				got = append(got, j.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobStoreEvictsOldestFinishedJob(t *testing.T) {
	store := NewJobStore()
	first := store.Enqueue(nil)
	finished := store.Enqueue(nil)
	_, err := store.Cancel(finished.ID)
	require.NoError(t, err)

	for i := 2; i < MaxJobs; i++ {
		store.Enqueue(map[string]any{"n": fmt.Sprint(i)})
	}
	require.Len(t, store.List(MaxJobs), MaxJobs)

	store.Enqueue(nil)
	assert.Len(t, store.List(MaxJobs+1), MaxJobs)
	_, err = store.Get(finished.ID)
	assert.ErrorIs(t, err, contract.ErrJobNotFound)
	_, err = store.Get(first.ID)
	assert.NoError(t, err, "pending jobs outlive finished ones")

	// With no finished jobs left the oldest job goes.
	store.Enqueue(nil)
	_, err = store.Get(first.ID)
	assert.ErrorIs(t, err, contract.ErrJobNotFound)
}
