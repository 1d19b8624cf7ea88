package iocache

import (
	"testing"
	"time"

	"github.com/huangsam/vegchange/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		wantErr bool
	}{
		{"plain", "vegchange_durable_cache", false},
		{"leading underscore", "_cache", false},
		{"digits after first", "cache2", false},
		{"empty", "", true},
		{"leading digit", "2cache", true},
		{"space", "durable cache", true},
		{"injection", "cache; DROP TABLE users", true},
		{"dash", "durable-cache", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTableName(tt.table)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuoteTableName(t *testing.T) {
	assert.Equal(t, "`runs`", quoteTableName("runs", schema.MySQLBackend))
	assert.Equal(t, `"runs"`, quoteTableName("runs", schema.PostgreSQLBackend))
	assert.Equal(t, `"runs"`, quoteTableName("runs", schema.SQLiteBackend))
}

func TestDriverFor(t *testing.T) {
	tests := []struct {
		backend schema.DatabaseBackend
		driver  string
	}{
		{schema.SQLiteBackend, "sqlite"},
		{schema.MySQLBackend, "mysql"},
		{schema.PostgreSQLBackend, "pgx"},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			got, err := driverFor(tt.backend)
			require.NoError(t, err)
			assert.Equal(t, tt.driver, got)
		})
	}

	_, err := driverFor(schema.NoneBackend)
	assert.Error(t, err)
}

func TestScanTime(t *testing.T) {
	want := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	tests := []struct {
		name string
		src  any
	}{
		{"native", want},
		{"rfc3339 text", want.Format(time.RFC3339Nano)},
		{"datetime bytes", []byte(want.Format(time.DateTime))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got time.Time
			require.NoError(t, scanTime{value: &got}.Scan(tt.src))
			assert.True(t, want.Equal(got), "got %v", got)
		})
	}

	var untouched time.Time
	require.NoError(t, scanTime{value: &untouched}.Scan(nil))
	assert.True(t, untouched.IsZero())

	assert.Error(t, scanTime{value: &untouched}.Scan("yesterday"))
	assert.Error(t, scanTime{value: &untouched}.Scan(42))
}
