package core

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
)

// Job store limits.
const (
	MaxJobs             = 100
	DefaultJobListLimit = 50
	jobIDLength         = 8
)

// Job is a snapshot of an asynchronous analysis.
type Job struct {
	ID        string                 `json:"id"`
	Status    schema.JobStatus       `json:"status"`
	Stage     schema.Stage           `json:"stage,omitempty"`
	Progress  float64                `json:"progress"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Params    map[string]any         `json:"params,omitempty"`
	Result    *schema.AnalysisResult `json:"result,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// JobRunner performs the work of a job and reports progress through the given callback.
type JobRunner func(ctx context.Context, progress ProgressFunc) (*schema.AnalysisResult, error)

type jobEntry struct {
	job    Job
	seq    uint64
	cancel context.CancelFunc
}

// JobStore keeps a bounded set of jobs in memory. It is safe for concurrent use.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*jobEntry
	seq  uint64
	wg   sync.WaitGroup
}

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*jobEntry)}
}

// Submit registers a pending job and starts run in the background.
func (s *JobStore) Submit(ctx context.Context, params map[string]any, run JobRunner) Job {
	job := s.Enqueue(params)
	_ = s.Start(ctx, job.ID, run)
	return job
}

// Enqueue registers a pending job without starting it.
func (s *JobStore) Enqueue(params map[string]any) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(params).snapshot()
}

// Start runs a pending job in the background. The job context drops the cancellation of
// ctx, so a job outlives the request that created it.
func (s *JobStore) Start(ctx context.Context, id string, run JobRunner) error {
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	e, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("%w: '%s'", contract.ErrJobNotFound, id)
	}
	if e.job.Status != schema.JobPending {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("job '%s' is %s", id, e.job.Status)
	}
	e.cancel = cancel
	s.mu.Unlock()

	s.wg.Go(func() {
		defer cancel()
		s.execute(jobCtx, id, run)
	})
	return nil
}

// Wait blocks until every started job has returned. Tests and shutdown use it.
func (s *JobStore) Wait() { s.wg.Wait() }

// create adds a pending job. Callers hold s.mu.
func (s *JobStore) create(params map[string]any) *jobEntry {
	s.evict()
	id := newJobID()
	for s.jobs[id] != nil {
		id = newJobID()
	}
	now := time.Now()
	s.seq++
	entry := &jobEntry{
		job: Job{
			ID:        id,
			Status:    schema.JobPending,
			Params:    maps.Clone(params),
			CreatedAt: now,
			UpdatedAt: now,
		},
		seq: s.seq,
	}
	s.jobs[id] = entry
	return entry
}

// evict makes room for one job, dropping the oldest finished job first. Callers hold s.mu.
func (s *JobStore) evict() {
	if len(s.jobs) < MaxJobs {
		return
	}
	var victim *jobEntry
	for _, e := range s.jobs {
		if !e.job.Status.Terminal() {
			continue
		}
		if victim == nil || e.seq < victim.seq {
			victim = e
		}
	}
	if victim == nil {
		for _, e := range s.jobs {
			if victim == nil || e.seq < victim.seq {
				victim = e
			}
		}
	}
	if victim.cancel != nil {
		victim.cancel()
	}
	delete(s.jobs, victim.job.ID)
}

func (s *JobStore) execute(ctx context.Context, id string, run JobRunner) {
	if !s.transition(id, schema.JobPending, schema.JobRunning) {
		return // cancelled before it started
	}

	progress := func(stage schema.Stage, fraction float64, message string) {
		s.update(id, func(j *Job) {
			if stage != schema.StageFailed {
				j.Stage = stage
			}
			j.Progress = max(j.Progress, fraction)
			j.Message = message
		})
	}

	result, err := run(ctx, progress)
	s.update(id, func(j *Job) {
		if err != nil {
			j.Status = schema.JobFailed
			j.Stage = schema.StageFailed
			j.Error = err.Error()
			return
		}
		if result != nil {
			result.ID = j.ID
		}
		j.Status = schema.JobCompleted
		j.Stage = schema.StageDone
		j.Progress = 1
		j.Result = result
	})
}

// transition moves a job from one status to another when it is still in from.
func (s *JobStore) transition(id string, from, to schema.JobStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok || e.job.Status != from {
		return false
	}
	e.job.Status = to
	e.job.UpdatedAt = time.Now()
	return true
}

// update applies fn to a live job. Terminal jobs are left untouched.
func (s *JobStore) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok || e.job.Status.Terminal() {
		return
	}
	fn(&e.job)
	e.job.UpdatedAt = time.Now()
}

// Get returns a snapshot of one job.
func (s *JobStore) Get(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: '%s'", contract.ErrJobNotFound, id)
	}
	return e.snapshot(), nil
}

// List returns up to limit jobs, newest first. A non-positive limit uses the default.
func (s *JobStore) List(limit int) []Job {
	if limit <= 0 {
		limit = DefaultJobListLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := slices.Collect(maps.Values(s.jobs))
	slices.SortFunc(entries, func(a, b *jobEntry) int { return cmp.Compare(b.seq, a.seq) })
	out := make([]Job, 0, min(limit, len(entries)))
	for _, e := range entries[:min(limit, len(entries))] {
		out = append(out, e.snapshot())
	}
	return out
}

// Cancel cancels a job that has not started yet.
func (s *JobStore) Cancel(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: '%s'", contract.ErrJobNotFound, id)
	}
	if e.job.Status != schema.JobPending {
		return e.snapshot(), fmt.Errorf("job '%s' is %s; only pending jobs can be cancelled", id, e.job.Status)
	}
	e.job.Status = schema.JobCancelled
	e.job.UpdatedAt = time.Now()
	if e.cancel != nil {
		e.cancel()
	}
	return e.snapshot(), nil
}

func (e *jobEntry) snapshot() Job {
	j := e.job
	j.Params = maps.Clone(e.job.Params)
	return j
}

func newJobID() string {
	return uuid.NewString()[:jobIDLength]
}
