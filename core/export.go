package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
)

// SubmitExports asks the engine to write every classified map of result to destination.
// It returns the handles as soon as the tasks are accepted and never waits for completion.
func SubmitExports(ctx context.Context, engine contract.ComputeEngine, result *schema.AnalysisResult, area schema.AreaRef, destination string, scale float64) ([]schema.ExportHandle, error) {
	var handles []schema.ExportHandle
	for _, pair := range schema.SortedKeys(result.Deltas) {
		byIndex := result.Deltas[pair]
		for _, index := range schema.SortedKeys(byIndex) {
			d := byIndex[index]
			handle, err := engine.Export(ctx, contract.ExportRequest{
				Image:       d.Image,
				Bands:       []string{d.ClassBand, d.DeltaBand},
				Description: fmt.Sprintf("vegchange_%s_%s", pair, index),
				Destination: destination,
				Area:        area,
				Scale:       scale,
			})
			if err != nil {
				return handles, fmt.Errorf("export %s %s: %w", pair, index, err)
			}
			handles = append(handles, handle)
		}
	}
	return handles, nil
}

// PollExport checks the status of handle every interval until it is completed or failed.
// It returns a TimeoutError when timeout elapses first. A failed export is returned with
// its status and no error; deciding what to do about it is up to the caller.
func PollExport(ctx context.Context, engine contract.ComputeEngine, handle schema.ExportHandle, interval, timeout time.Duration) (schema.ExportStatus, error) {
	if interval <= 0 {
		interval = contract.DefaultExportPollInterval
	}
	if timeout <= 0 {
		timeout = contract.DefaultExportTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := engine.ExportStatus(ctx, handle)
		switch {
		case err == nil && status.State.Terminal():
			return status, nil
		case err != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded):
			return status, err
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return status, &contract.TimeoutError{Operation: fmt.Sprintf("export '%s'", handle.ID), Limit: timeout}
			}
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}
