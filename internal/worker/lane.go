// Package worker provides the single-concurrency execution lane that drains
// submitted jobs and records their terminal state.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/core"
	"github.com/book-expert/musicgen-service/internal/jobs"
	"github.com/book-expert/musicgen-service/internal/wav"
)

const (
	// DefaultQueueCapacity bounds the submission backlog when the config
	// does not say otherwise.
	DefaultQueueCapacity = 32

	contentTypeWAV = "audio/wav"
	formatWAV      = "wav"
)

// ErrQueueFull indicates submissions are outpacing the single-slot lane and
// the bounded queue cannot absorb more work.
var ErrQueueFull = errors.New("job queue is full")

// Config holds the lane parameters.
type Config struct {
	// QueueCapacity is the bounded backlog of submitted job ids.
	QueueCapacity int
	// AlternateSampleRate is the one recognized non-native rate that
	// triggers resampling of the encoded result.
	AlternateSampleRate int
}

// Lane is one logical lane of execution serialized onto a single slot: at
// most one generation runs at a time regardless of submission rate, in either
// the queued or the synchronous path. Jobs start in FIFO submission order.
type Lane struct {
	store     *jobs.Store
	generator core.Generator
	delivery  core.Delivery
	log       *logger.Logger
	queue     chan string
	slot      chan struct{}
	altRate   int
}

// NewLane creates a lane over the given store, generator and delivery.
func NewLane(
	store *jobs.Store,
	generator core.Generator,
	delivery core.Delivery,
	log *logger.Logger,
	cfg Config,
) *Lane {
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	return &Lane{
		store:     store,
		generator: generator,
		delivery:  delivery,
		log:       log,
		queue:     make(chan string, capacity),
		slot:      make(chan struct{}, 1),
		altRate:   cfg.AlternateSampleRate,
	}
}

// Enqueue hands a pending job to the lane. It never blocks: when the bounded
// queue is full the submission is rejected with ErrQueueFull and the caller
// decides what to do with the store entry.
func (l *Lane) Enqueue(id string) error {
	select {
	case l.queue <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run drains the queue until the context is canceled. A failed job never
// stops the lane; its error is contained in the job's own record.
func (l *Lane) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case id := <-l.queue:
			l.runJob(ctx, id)
		}
	}
}

// Produce runs the full generation pipeline for one input while holding the
// lane's single slot. It is the shared path for queued jobs and the
// synchronous variant.
func (l *Lane) Produce(ctx context.Context, input jobs.Input) (*jobs.Output, error) {
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for generation slot: %w", ctx.Err())
	}

	defer func() { <-l.slot }()

	clip, err := l.generator.Generate(ctx, input.Prompt, input.DurationSeconds)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	wavBytes := wav.Encode(clip)

	// Only the recognized alternate rate triggers resampling; anything else
	// passes through at the model's native rate. Resampling itself is
	// best-effort and falls back to the native-rate bytes.
	if l.altRate > 0 && input.SampleRate == l.altRate && clip.SampleRate != l.altRate {
		wavBytes = wav.Resample(wavBytes, l.altRate)
	}

	return &jobs.Output{
		WAV:        wavBytes,
		SampleRate: input.SampleRate,
		Format:     formatWAV,
	}, nil
}

func (l *Lane) runJob(ctx context.Context, id string) {
	job, err := l.store.Get(id)
	if err != nil {
		l.log.Warn("Dequeued job %s is gone: %v", id, err)

		return
	}

	err = l.store.UpdateStatus(id, jobs.StatusProcessing, nil, "")
	if err != nil {
		l.log.Error("Job %s could not enter processing: %v", id, err)

		return
	}

	output, produceErr := l.Produce(ctx, job.Input)
	if produceErr != nil {
		l.failJob(ctx, id, job.Input, produceErr)

		return
	}

	err = l.store.UpdateStatus(id, jobs.StatusCompleted, output, "")
	if err != nil {
		l.log.Error("Job %s could not be marked completed: %v", id, err)

		return
	}

	l.deliverCompleted(ctx, id, job.Input, output)
}

// failJob records the terminal failed state with the full diagnostic text.
// The verbosity is deliberate: this is a service-to-service boundary.
func (l *Lane) failJob(ctx context.Context, id string, input jobs.Input, produceErr error) {
	diagnostic := produceErr.Error()

	err := l.store.UpdateStatus(id, jobs.StatusFailed, nil, diagnostic)
	if err != nil {
		l.log.Error("Job %s could not be marked failed: %v", id, err)
	}

	l.log.Error("Job %s failed: %s", id, diagnostic)

	if input.CallbackURL != "" {
		delivered := l.delivery.NotifyStatus(ctx, input.CallbackURL, string(jobs.StatusFailed), diagnostic)
		if !delivered {
			l.log.Warn("Failure webhook for job %s was not delivered", id)
		}
	}
}

func (l *Lane) deliverCompleted(ctx context.Context, id string, input jobs.Input, output *jobs.Output) {
	if input.WAVUploadURL != "" {
		uploaded := l.delivery.UploadResult(ctx, input.WAVUploadURL, output.WAV, contentTypeWAV)
		if !uploaded {
			l.log.Warn("Result upload for job %s was not delivered", id)
		}
	}

	if input.CallbackURL != "" {
		delivered := l.delivery.NotifyStatus(ctx, input.CallbackURL, string(jobs.StatusCompleted), "")
		if !delivered {
			l.log.Warn("Completion webhook for job %s was not delivered", id)
		}
	}
}
