// Package worker_test tests the single-slot execution lane.
package worker_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/core"
	"github.com/book-expert/musicgen-service/internal/jobs"
	"github.com/book-expert/musicgen-service/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockGenerate = errors.New("mock generation error")

// recordingGenerator is an instrumented generation capability that records
// invocation order and fails on request.
type recordingGenerator struct {
	mu          sync.Mutex
	prompts     []string
	failPrompts map[string]bool
	sampleRate  int
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string, seconds int) (core.Clip, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	shouldFail := g.failPrompts[prompt]
	g.mu.Unlock()

	if shouldFail {
		return core.Clip{}, errMockGenerate
	}

	return core.Clip{
		SampleRate: g.sampleRate,
		Samples:    make([]int16, g.sampleRate*seconds),
	}, nil
}

func (g *recordingGenerator) recorded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]string(nil), g.prompts...)
}

// recordingDelivery captures webhook and upload calls.
type recordingDelivery struct {
	mu           sync.Mutex
	uploads      []string
	statuses     []string
	uploadFails  bool
	webhookFails bool
}

func (d *recordingDelivery) UploadResult(_ context.Context, destination string, _ []byte, _ string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.uploads = append(d.uploads, destination)

	return !d.uploadFails
}

func (d *recordingDelivery) NotifyStatus(_ context.Context, callbackURL, status, errorMessage string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.statuses = append(d.statuses, callbackURL+"|"+status+"|"+errorMessage)

	return !d.webhookFails
}

func setupLane(t *testing.T, gen core.Generator, delivery core.Delivery) (*jobs.Store, *worker.Lane) {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "lane-test.log")
	require.NoError(t, err)

	store := jobs.NewStore()
	lane := worker.NewLane(store, gen, delivery, testLogger, worker.Config{
		QueueCapacity:       8,
		AlternateSampleRate: 48000,
	})

	return store, lane
}

func waitTerminal(t *testing.T, store *jobs.Store, id string) jobs.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(id)
		require.NoError(t, err)

		if job.Status.Terminal() {
			return job
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("job %s never reached a terminal state", id)

	return jobs.Job{}
}

func TestLaneProcessesJobsFIFO(t *testing.T) {
	t.Parallel()

	gen := &recordingGenerator{failPrompts: nil, sampleRate: 32000}
	store, lane := setupLane(t, gen, &recordingDelivery{})

	const n = 5

	ids := make([]string, 0, n)

	for i := range n {
		job := store.Create(jobs.Input{
			Prompt:          "prompt-" + strconv.Itoa(i),
			DurationSeconds: 1,
			SampleRate:      32000,
		})
		require.NoError(t, lane.Enqueue(job.ID))
		ids = append(ids, job.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = lane.Run(ctx) }()

	for _, id := range ids {
		job := waitTerminal(t, store, id)
		assert.Equal(t, jobs.StatusCompleted, job.Status)
		require.NotNil(t, job.Output)
		assert.Equal(t, "wav", job.Output.Format)
	}

	want := make([]string, 0, n)
	for i := range n {
		want = append(want, "prompt-"+strconv.Itoa(i))
	}

	assert.Equal(t, want, gen.recorded(), "generation must start in submission order")
}

func TestLaneFailureIsContained(t *testing.T) {
	t.Parallel()

	gen := &recordingGenerator{
		failPrompts: map[string]bool{"broken": true},
		sampleRate:  32000,
	}
	delivery := &recordingDelivery{}
	store, lane := setupLane(t, gen, delivery)

	bad := store.Create(jobs.Input{
		Prompt:          "broken",
		DurationSeconds: 1,
		SampleRate:      32000,
		CallbackURL:     "https://x/y?foo=1",
	})
	good := store.Create(jobs.Input{
		Prompt:          "fine",
		DurationSeconds: 1,
		SampleRate:      32000,
	})

	require.NoError(t, lane.Enqueue(bad.ID))
	require.NoError(t, lane.Enqueue(good.ID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = lane.Run(ctx) }()

	failed := waitTerminal(t, store, bad.ID)
	assert.Equal(t, jobs.StatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "mock generation error")

	// The lane keeps accepting work after a failure.
	succeeded := waitTerminal(t, store, good.ID)
	assert.Equal(t, jobs.StatusCompleted, succeeded.Status)

	delivery.mu.Lock()
	defer delivery.mu.Unlock()

	require.Len(t, delivery.statuses, 1)
	assert.Contains(t, delivery.statuses[0], "https://x/y?foo=1|failed|")
	assert.Contains(t, delivery.statuses[0], "mock generation error")
}

func TestLaneUploadsAndNotifiesOnCompletion(t *testing.T) {
	t.Parallel()

	gen := &recordingGenerator{failPrompts: nil, sampleRate: 32000}
	delivery := &recordingDelivery{}
	store, lane := setupLane(t, gen, delivery)

	job := store.Create(jobs.Input{
		Prompt:          "drum loop",
		DurationSeconds: 1,
		SampleRate:      32000,
		CallbackURL:     "https://hooks.example/done",
		WAVUploadURL:    "https://bucket.example/presigned",
	})
	require.NoError(t, lane.Enqueue(job.ID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = lane.Run(ctx) }()

	done := waitTerminal(t, store, job.ID)
	assert.Equal(t, jobs.StatusCompleted, done.Status)

	delivery.mu.Lock()
	defer delivery.mu.Unlock()

	assert.Equal(t, []string{"https://bucket.example/presigned"}, delivery.uploads)
	require.Len(t, delivery.statuses, 1)
	assert.Equal(t, "https://hooks.example/done|completed|", delivery.statuses[0])
}

func TestLaneResamplesAlternateRate(t *testing.T) {
	t.Parallel()

	gen := &recordingGenerator{failPrompts: nil, sampleRate: 32000}
	store, lane := setupLane(t, gen, &recordingDelivery{})

	job := store.Create(jobs.Input{
		Prompt:          "hi-res pad",
		DurationSeconds: 1,
		SampleRate:      48000,
	})
	require.NoError(t, lane.Enqueue(job.ID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = lane.Run(ctx) }()

	done := waitTerminal(t, store, job.ID)
	require.NotNil(t, done.Output)
	assert.Equal(t, 48000, done.Output.SampleRate)

	// 1s at 32000 native resampled to 48000 -> 48000 frames of int16 plus
	// the 44-byte container header.
	assert.Equal(t, 48000*2+44, len(done.Output.WAV))
}

func TestEnqueueBackpressure(t *testing.T) {
	t.Parallel()

	gen := &recordingGenerator{failPrompts: nil, sampleRate: 32000}

	testLogger, err := logger.New(t.TempDir(), "lane-test.log")
	require.NoError(t, err)

	store := jobs.NewStore()
	lane := worker.NewLane(store, gen, &recordingDelivery{}, testLogger, worker.Config{
		QueueCapacity:       1,
		AlternateSampleRate: 48000,
	})

	// The lane is not running, so the second enqueue must be rejected.
	first := store.Create(jobs.Input{Prompt: "a", DurationSeconds: 1, SampleRate: 32000})
	second := store.Create(jobs.Input{Prompt: "b", DurationSeconds: 1, SampleRate: 32000})

	require.NoError(t, lane.Enqueue(first.ID))
	require.ErrorIs(t, lane.Enqueue(second.ID), worker.ErrQueueFull)
}
