package engine

import (
	"context"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
	"github.com/stretchr/testify/mock"
)

// MockEngine is a mock implementation of contract.ComputeEngine.
type MockEngine struct {
	mock.Mock
}

var _ contract.ComputeEngine = (*MockEngine)(nil)

// Namespace mocks the Namespace method.
func (m *MockEngine) Namespace() string {
	args := m.Called()
	return args.String(0)
}

// ListScenes mocks the ListScenes method.
func (m *MockEngine) ListScenes(ctx context.Context, q contract.SceneQuery) ([]schema.Scene, error) {
	args := m.Called(ctx, q)
	scenes, _ := args.Get(0).([]schema.Scene)
	return scenes, args.Error(1)
}

// Reduce mocks the Reduce method.
func (m *MockEngine) Reduce(ctx context.Context, req contract.ReduceRequest) (schema.ImageRef, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(schema.ImageRef), args.Error(1)
}

// Evaluate mocks the Evaluate method.
func (m *MockEngine) Evaluate(ctx context.Context, req contract.EvaluateRequest) (schema.ImageRef, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(schema.ImageRef), args.Error(1)
}

// Histogram mocks the Histogram method.
func (m *MockEngine) Histogram(ctx context.Context, req contract.HistogramRequest) (schema.Histogram, error) {
	args := m.Called(ctx, req)
	hist, _ := args.Get(0).(schema.Histogram)
	return hist, args.Error(1)
}

// QuickLook mocks the QuickLook method.
func (m *MockEngine) QuickLook(ctx context.Context, img schema.ImageRef, vis schema.VisParams) (string, error) {
	args := m.Called(ctx, img, vis)
	return args.String(0), args.Error(1)
}

// Export mocks the Export method.
func (m *MockEngine) Export(ctx context.Context, req contract.ExportRequest) (schema.ExportHandle, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(schema.ExportHandle), args.Error(1)
}

// ExportStatus mocks the ExportStatus method.
func (m *MockEngine) ExportStatus(ctx context.Context, handle schema.ExportHandle) (schema.ExportStatus, error) {
	args := m.Called(ctx, handle)
	return args.Get(0).(schema.ExportStatus), args.Error(1)
}
