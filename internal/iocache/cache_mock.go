package iocache

import (
	"context"
	"time"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
	"github.com/stretchr/testify/mock"
)

// MockCacheManager is a mock implementation of CacheManager for testing.
type MockCacheManager struct {
	mock.Mock
}

var _ contract.CacheManager = &MockCacheManager{} // Compile-time check

// GetDurableTier implements the CacheManager interface.
func (m *MockCacheManager) GetDurableTier() contract.Tier {
	ret := m.Called()
	tier, _ := ret.Get(0).(contract.Tier)
	return tier
}

// GetEphemeralTier implements the CacheManager interface.
func (m *MockCacheManager) GetEphemeralTier() contract.Tier {
	ret := m.Called()
	tier, _ := ret.Get(0).(contract.Tier)
	return tier
}

// GetCacheStore implements the CacheManager interface.
func (m *MockCacheManager) GetCacheStore() contract.CacheStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.CacheStore)
	return store
}

// GetEphemeralStore implements the CacheManager interface.
func (m *MockCacheManager) GetEphemeralStore() contract.EphemeralStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.EphemeralStore)
	return store
}

// GetAnalysisStore implements the CacheManager interface.
func (m *MockCacheManager) GetAnalysisStore() contract.AnalysisStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.AnalysisStore)
	return store
}

// MockCacheStore is a mock implementation of CacheStore for testing.
type MockCacheStore struct {
	mock.Mock
}

var _ contract.CacheStore = &MockCacheStore{} // Compile-time check

// Get implements the CacheStore interface.
func (m *MockCacheStore) Get(key string) ([]byte, int, int64, error) {
	args := m.Called(key)
	data, _ := args.Get(0).([]byte)
	return data, args.Int(1), args.Get(2).(int64), args.Error(3)
}

// Set implements the CacheStore interface.
func (m *MockCacheStore) Set(key string, data []byte, version int, ts int64) error {
	args := m.Called(key, data, version, ts)
	return args.Error(0)
}

// Close implements the CacheStore interface.
func (m *MockCacheStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// GetStatus implements the CacheStore interface.
func (m *MockCacheStore) GetStatus() (schema.CacheStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.CacheStatus), args.Error(1)
}

// MockEphemeralStore is a mock implementation of EphemeralStore for testing.
type MockEphemeralStore struct {
	mock.Mock
}

var _ contract.EphemeralStore = &MockEphemeralStore{} // Compile-time check

// Get implements the EphemeralStore interface.
func (m *MockEphemeralStore) Get(ctx context.Context, key string) ([]byte, int64, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Get(1).(int64), args.Error(2)
}

// Set implements the EphemeralStore interface.
func (m *MockEphemeralStore) Set(ctx context.Context, key string, value []byte, timestamp int64) error {
	args := m.Called(ctx, key, value, timestamp)
	return args.Error(0)
}

// GetStatus implements the EphemeralStore interface.
func (m *MockEphemeralStore) GetStatus(ctx context.Context) (schema.EphemeralStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.EphemeralStatus), args.Error(1)
}

// Clear implements the EphemeralStore interface.
func (m *MockEphemeralStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close implements the EphemeralStore interface.
func (m *MockEphemeralStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockAnalysisStore is a mock implementation of AnalysisStore for testing.
type MockAnalysisStore struct {
	mock.Mock
}

var _ contract.AnalysisStore = &MockAnalysisStore{} // Compile-time check

// BeginAnalysis implements the AnalysisStore interface.
func (m *MockAnalysisStore) BeginAnalysis(startTime time.Time, configParams map[string]any) (int64, error) {
	args := m.Called(startTime, configParams)
	return args.Get(0).(int64), args.Error(1)
}

// EndAnalysis implements the AnalysisStore interface.
func (m *MockAnalysisStore) EndAnalysis(analysisID int64, endTime time.Time, totalPairs int, status string) error {
	args := m.Called(analysisID, endTime, totalPairs, status)
	return args.Error(0)
}

// RecordStatistics implements the AnalysisStore interface.
func (m *MockAnalysisStore) RecordStatistics(analysisID int64, rows []schema.StatisticsRow) error {
	args := m.Called(analysisID, rows)
	return args.Error(0)
}

// GetStatus implements the AnalysisStore interface.
func (m *MockAnalysisStore) GetStatus() (schema.AnalysisStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.AnalysisStatus), args.Error(1)
}

// GetAllAnalysisRuns implements the AnalysisStore interface.
func (m *MockAnalysisStore) GetAllAnalysisRuns() ([]schema.AnalysisRunRecord, error) {
	args := m.Called()
	runs, _ := args.Get(0).([]schema.AnalysisRunRecord)
	return runs, args.Error(1)
}

// GetAllClassStatistics implements the AnalysisStore interface.
func (m *MockAnalysisStore) GetAllClassStatistics() ([]schema.ClassStatisticsRecord, error) {
	args := m.Called()
	rows, _ := args.Get(0).([]schema.ClassStatisticsRecord)
	return rows, args.Error(1)
}

// Close implements the AnalysisStore interface.
func (m *MockAnalysisStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
