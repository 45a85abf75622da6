package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Static errors.
var (
	// ErrNotFound indicates the job id is unknown or already evicted.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidTransition indicates an illegal status transition.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is a thread-safe in-memory mapping from job id to job state. It is
// shared between the request path and the worker lane; every operation is
// atomic under one mutex so no reader observes a partially-updated job.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*Job),
	}
}

// Create registers a new pending job for the given input snapshot and returns
// a copy of the stored job. IDs are generated, never caller-supplied.
func (s *Store) Create(input Input) Job {
	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Input:     input,
		Output:    nil,
		Error:     "",
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = job

	return *job
}

// Get returns a copy of the job, or ErrNotFound.
func (s *Store) Get(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return *job, nil
}

// UpdateStatus advances a job through its lifecycle. Output is recorded only
// on completion and the error message only on failure. Illegal transitions,
// including any transition out of a terminal state, return
// ErrInvalidTransition.
func (s *Store) UpdateStatus(id string, status Status, output *Output, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if !validTransition(job.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, status)
	}

	job.Status = status

	switch status {
	case StatusCompleted:
		job.Output = output
	case StatusFailed:
		job.Error = errMsg
	case StatusPending, StatusProcessing:
	}

	return nil
}

// Evict removes a job from the store.
func (s *Store) Evict(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	delete(s.jobs, id)

	return nil
}

// Collect returns a copy of the job and, when the job is terminal, evicts it
// in the same critical section. A terminal job is therefore readable exactly
// once: the second Collect for the same id returns ErrNotFound.
func (s *Store) Collect(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	snapshot := *job

	if job.Status.Terminal() {
		delete(s.jobs, id)
	}

	return snapshot, nil
}

// Len reports the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.jobs)
}

func validTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	case StatusCompleted, StatusFailed:
		return false
	default:
		return false
	}
}
