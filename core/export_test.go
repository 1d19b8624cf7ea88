package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/engine"
	"github.com/huangsam/vegchange/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func analysedEngine(t *testing.T, indices ...string) (*engine.MemoryEngine, *schema.AnalysisResult) {
	t.Helper()
	reg := registry.New()
	eng := uniformEngine(t, reg, map[string]float64{"P1": 0.5, "P2": 0.3})
	cfg := testConfig()
	if len(indices) > 0 {
		cfg.Indices = indices
	}
	result, err := NewOrchestrator(cfg, eng, reg, nil).Run(context.Background(), testArea(t))
	require.NoError(t, err)
	return eng, result
}

func TestSubmitExports(t *testing.T) {
	eng, result := analysedEngine(t, "ndvi", "nbr")

	handles, err := SubmitExports(context.Background(), eng, result, testArea(t).Ref(), "bucket", 30)
	require.NoError(t, err)
	require.Len(t, handles, 2)
	assert.Equal(t, "vegchange_P1_to_P2_nbr", handles[0].Description)
	assert.Equal(t, "vegchange_P1_to_P2_ndvi", handles[1].Description)
	for _, h := range handles {
		assert.NotEmpty(t, h.ID)
		assert.Equal(t, "bucket", h.Destination)
	}
	// Submission never waits on the tasks.
	assert.Zero(t, eng.Calls("export_status"))
}

func TestSubmitExportsStopsOnError(t *testing.T) {
	boom := errors.New("quota exceeded")
	eng := &engine.MockEngine{}
	eng.On("Export", mock.Anything, mock.Anything).Return(schema.ExportHandle{}, boom)

	result := &schema.AnalysisResult{Deltas: map[string]map[string]schema.DeltaResult{
		"P1_to_P2": {"ndvi": {Image: "img", DeltaBand: "dndvi", ClassBand: "dndvi_class"}},
	}}
	handles, err := SubmitExports(context.Background(), eng, result, schema.AreaRef{}, "drive", 30)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, handles)
}

func TestPollExport(t *testing.T) {
	tests := []struct {
		name      string
		polls     int
		fail      bool
		wantState schema.ExportState
		wantErr   error
	}{
		{"completes", 2, false, schema.ExportCompleted, nil},
		{"fails", 2, true, schema.ExportFailed, nil},
		{"times out", -1, false, schema.ExportRunning, contract.ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, result := analysedEngine(t)
			eng.ExportPollsToComplete = tt.polls
			handles, err := SubmitExports(context.Background(), eng, result, testArea(t).Ref(), "drive", 30)
			require.NoError(t, err)
			require.Len(t, handles, 1)
			if tt.fail {
				eng.FailExport(handles[0].ID)
			}

			status, err := PollExport(context.Background(), eng, handles[0], time.Millisecond, 50*time.Millisecond)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var timeout *contract.TimeoutError
				require.ErrorAs(t, err, &timeout)
				assert.Equal(t, 50*time.Millisecond, timeout.Limit)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, status.State)
			if tt.wantState == schema.ExportCompleted {
				assert.Contains(t, status.URI, handles[0].Description)
			}
		})
	}
}

func TestPollExportUnknownHandle(t *testing.T) {
	eng := engine.NewMemoryEngine()
	_, err := PollExport(context.Background(), eng, schema.ExportHandle{ID: "missing"}, time.Millisecond, time.Second)
	var remote *contract.RemoteComputeError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, 404, remote.StatusCode)
}
