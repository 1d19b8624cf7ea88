package contract

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/huangsam/vegchange/schema"
)

// Sentinel error kinds. Typed errors below match them through errors.Is.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrEmptyCollection = errors.New("empty collection")
	ErrRemoteCompute   = errors.New("remote compute error")
	ErrTimeout         = errors.New("timeout")
	ErrCacheMiss       = errors.New("cache miss")
	ErrJobNotFound     = errors.New("job not found")
)

// ConfigurationError reports an invalid analysis configuration. It is raised before any
// remote call and is never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

// NewConfigurationError builds a ConfigurationError with a formatted reason.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// UnknownSensorError reports a sensor identifier with no registered schema.
type UnknownSensorError struct {
	Sensor string
}

func (e *UnknownSensorError) Error() string {
	return fmt.Sprintf("unknown sensor '%s'", e.Sensor)
}

// Is matches ErrConfiguration.
func (e *UnknownSensorError) Is(target error) bool { return target == ErrConfiguration }

// UnknownIndexError reports an index name with no registered formula.
type UnknownIndexError struct {
	Index string
}

func (e *UnknownIndexError) Error() string {
	return fmt.Sprintf("unknown index '%s'", e.Index)
}

// Is matches ErrConfiguration.
func (e *UnknownIndexError) Is(target error) bool { return target == ErrConfiguration }

// EmptyCollectionError reports that no scene passed the filters for a period.
// Retrying with the same parameters cannot succeed.
type EmptyCollectionError struct {
	Period         string
	Sensors        []string
	CloudThreshold float64
}

func (e *EmptyCollectionError) Error() string {
	return fmt.Sprintf("no scenes for period '%s' (sensors %s, cloud threshold %g%%): raise the cloud threshold, widen the date window or check sensor coverage",
		e.Period, strings.Join(e.Sensors, ", "), e.CloudThreshold)
}

// Is matches ErrEmptyCollection.
func (e *EmptyCollectionError) Is(target error) bool { return target == ErrEmptyCollection }

// RemoteComputeError reports a failure of the compute platform.
type RemoteComputeError struct {
	Operation  string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *RemoteComputeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed with status %d: %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

func (e *RemoteComputeError) Unwrap() error { return e.Err }

// Is matches ErrRemoteCompute.
func (e *RemoteComputeError) Is(target error) bool { return target == ErrRemoteCompute }

// TimeoutError reports an operation that did not resolve within its limit.
type TimeoutError struct {
	Operation string
	Limit     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Limit)
}

// Is matches ErrTimeout and context.DeadlineExceeded.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout || target == context.DeadlineExceeded
}

// StageError attaches pipeline position to the originating error.
type StageError struct {
	Stage      schema.Stage
	Period     string
	Comparison string
	Index      string
	Err        error
}

func (e *StageError) Error() string {
	var where []string
	if e.Period != "" {
		where = append(where, "period="+e.Period)
	}
	if e.Comparison != "" {
		where = append(where, "comparison="+e.Comparison)
	}
	if e.Index != "" {
		where = append(where, "index="+e.Index)
	}
	if len(where) == 0 {
		return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, strings.Join(where, " "), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err is a configuration problem.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsTransient reports whether retrying err may succeed: timeouts, rate limits and
// transient platform faults. Authentication, permission and validation faults are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var rce *RemoteComputeError
	if errors.As(err, &rce) {
		return rce.Transient
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// TransientStatus reports whether an HTTP status code from the platform is worth retrying.
func TransientStatus(code int) bool {
	switch code {
	case 408, 429, 502, 503, 504:
		return true
	default:
		return false
	}
}
