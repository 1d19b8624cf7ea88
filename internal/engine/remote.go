package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
)

// maxErrorBody bounds how much of an error response is kept in the error message.
const maxErrorBody = 4 << 10

// RemoteConfig configures the HTTP client for the compute platform.
type RemoteConfig struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
	MaxRetries     int

	// InitialBackoff is the first retry delay. Zero uses the backoff library default.
	InitialBackoff time.Duration
	HTTPClient     *http.Client
}

// RemoteEngine talks JSON over HTTP to the compute platform. Transient faults
// (timeouts, rate limits, gateway errors) are retried with exponential backoff; any other
// fault is returned at once.
type RemoteEngine struct {
	cfg    RemoteConfig
	client *http.Client
}

var _ contract.ComputeEngine = (*RemoteEngine)(nil)

// NewRemoteEngine builds a client. BaseURL is required.
func NewRemoteEngine(cfg RemoteConfig) (*RemoteEngine, error) {
	if cfg.BaseURL == "" {
		return nil, contract.NewConfigurationError("engine-url", "is required for the remote engine")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, contract.NewConfigurationError("engine-url", "%v", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = contract.DefaultRequestTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &RemoteEngine{cfg: cfg, client: client}, nil
}

// Namespace implements contract.ComputeEngine. Image references are valid for anyone
// talking to the same platform, so the namespace is the endpoint.
func (r *RemoteEngine) Namespace() string { return "remote:" + r.cfg.BaseURL }

// ListScenes implements contract.ComputeEngine.
func (r *RemoteEngine) ListScenes(ctx context.Context, q contract.SceneQuery) ([]schema.Scene, error) {
	var resp struct {
		Scenes []schema.Scene `json:"scenes"`
	}
	if err := r.do(ctx, "list scenes", http.MethodPost, "/v1/scenes:list", q, &resp); err != nil {
		return nil, err
	}
	return resp.Scenes, nil
}

// Reduce implements contract.ComputeEngine.
func (r *RemoteEngine) Reduce(ctx context.Context, req contract.ReduceRequest) (schema.ImageRef, error) {
	return r.image(ctx, "reduce", "/v1/images:reduce", req)
}

// Evaluate implements contract.ComputeEngine.
func (r *RemoteEngine) Evaluate(ctx context.Context, req contract.EvaluateRequest) (schema.ImageRef, error) {
	return r.image(ctx, "evaluate", "/v1/images:evaluate", req)
}

// Histogram implements contract.ComputeEngine.
func (r *RemoteEngine) Histogram(ctx context.Context, req contract.HistogramRequest) (schema.Histogram, error) {
	var resp struct {
		Histogram schema.Histogram `json:"histogram"`
	}
	if err := r.do(ctx, "histogram", http.MethodPost, "/v1/images:histogram", req, &resp); err != nil {
		return nil, err
	}
	if resp.Histogram == nil {
		resp.Histogram = schema.Histogram{}
	}
	return resp.Histogram, nil
}

// QuickLook implements contract.ComputeEngine.
func (r *RemoteEngine) QuickLook(ctx context.Context, img schema.ImageRef, vis schema.VisParams) (string, error) {
	req := struct {
		Image schema.ImageRef  `json:"image"`
		Vis   schema.VisParams `json:"vis"`
	}{img, vis}
	var resp struct {
		URL string `json:"url"`
	}
	if err := r.do(ctx, "quicklook", http.MethodPost, "/v1/images:quicklook", req, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// Export implements contract.ComputeEngine. It returns as soon as the task is accepted.
func (r *RemoteEngine) Export(ctx context.Context, req contract.ExportRequest) (schema.ExportHandle, error) {
	var handle schema.ExportHandle
	if err := r.do(ctx, "export", http.MethodPost, "/v1/exports", req, &handle); err != nil {
		return schema.ExportHandle{}, err
	}
	if handle.ID == "" {
		return schema.ExportHandle{}, &contract.RemoteComputeError{Operation: "export", Err: errors.New("platform returned no task id")}
	}
	return handle, nil
}

// ExportStatus implements contract.ComputeEngine.
func (r *RemoteEngine) ExportStatus(ctx context.Context, handle schema.ExportHandle) (schema.ExportStatus, error) {
	var status schema.ExportStatus
	path := "/v1/exports/" + url.PathEscape(handle.ID)
	if err := r.do(ctx, "export status", http.MethodGet, path, nil, &status); err != nil {
		return schema.ExportStatus{}, err
	}
	if status.Handle.ID == "" {
		status.Handle = handle
	}
	return status, nil
}

func (r *RemoteEngine) image(ctx context.Context, op, path string, req any) (schema.ImageRef, error) {
	var resp struct {
		Image schema.ImageRef `json:"image"`
	}
	if err := r.do(ctx, op, http.MethodPost, path, req, &resp); err != nil {
		return "", err
	}
	if resp.Image == "" {
		return "", &contract.RemoteComputeError{Operation: op, Err: errors.New("platform returned no image")}
	}
	return resp.Image, nil
}

// do sends one request with bounded retries for transient faults.
func (r *RemoteEngine) do(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	if r.cfg.InitialBackoff > 0 {
		policy.InitialInterval = r.cfg.InitialBackoff
	}
	retries := uint64(max(r.cfg.MaxRetries, 0))

	var lastErr error
	operation := func() error {
		err := r.attempt(ctx, op, method, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !contract.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx))
	if err != nil && lastErr != nil && errors.Is(err, ctx.Err()) {
		// Retry returns the context error when cancelled during a wait; keep the cause.
		return fmt.Errorf("%w (last attempt: %v)", err, lastErr)
	}
	return err
}

// attempt performs a single HTTP exchange with its own timeout.
func (r *RemoteEngine) attempt(ctx context.Context, op, method, path string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		transient := contract.IsTransient(err) || errors.Is(ctx.Err(), context.DeadlineExceeded)
		return &contract.RemoteComputeError{Operation: op, Transient: transient, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &contract.RemoteComputeError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Transient:  contract.TransientStatus(resp.StatusCode),
			Err:        errors.New(errorMessage(msg, resp.Status)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &contract.RemoteComputeError{Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorMessage extracts {"error":{"message":...}} or falls back to the raw body.
func errorMessage(body []byte, status string) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return status
}
