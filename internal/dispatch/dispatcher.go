package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/core"
	"github.com/book-expert/musicgen-service/internal/jobs"
	"github.com/book-expert/musicgen-service/internal/sentinel"
	"github.com/book-expert/musicgen-service/internal/worker"
)

// User-facing diagnostic messages. Wording is part of the service contract.
const (
	msgNoPrompt     = "No text prompt provided."
	msgTaskNotFound = "Task not found."
	msgQueueFull    = "Server is at capacity. Retry later."
	msgInitPrefix   = "Worker initialization failed: "
)

const contentTypeWAV = "audio/wav"

// Dispatcher is the single entry point for both transports. It owns routing,
// validation, and response shaping; generation itself happens in the lane.
type Dispatcher struct {
	store    *jobs.Store
	lane     *worker.Lane
	delivery core.Delivery
	marker   *sentinel.File
	log      *logger.Logger
}

// New creates a Dispatcher.
func New(
	store *jobs.Store,
	lane *worker.Lane,
	delivery core.Delivery,
	marker *sentinel.File,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:    store,
		lane:     lane,
		delivery: delivery,
		marker:   marker,
		log:      log,
	}
}

// Handle routes one asynchronous-variant request: poll when a task id is
// present, submit otherwise. It never blocks on generation.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	if resp, gated := d.initGate(); gated {
		return resp
	}

	if req.Kind == KindPoll {
		return d.poll(req.TaskID)
	}

	return d.submit(ctx, req.Input)
}

// HandleSync runs the synchronous variant: generation happens inline on the
// calling path, delivery channels fire, and the payload is also returned
// inline. An upload failure is fatal to the request; a webhook failure is not.
func (d *Dispatcher) HandleSync(ctx context.Context, req Request) Response {
	if resp, gated := d.initGate(); gated {
		return resp
	}

	input := req.Input
	if !validPrompt(input.Prompt) {
		return d.rejectPrompt(ctx, input.CallbackURL)
	}

	output, err := d.lane.Produce(ctx, input)
	if err != nil {
		d.log.Error("Synchronous generation failed: %v", err)

		if input.CallbackURL != "" {
			d.delivery.NotifyStatus(ctx, input.CallbackURL, string(jobs.StatusFailed), err.Error())
		}

		return Response{Status: string(jobs.StatusFailed), Error: err.Error()}
	}

	if input.WAVUploadURL != "" {
		uploaded := d.delivery.UploadResult(ctx, input.WAVUploadURL, output.WAV, contentTypeWAV)
		if !uploaded {
			message := "failed to upload result to " + input.WAVUploadURL

			if input.CallbackURL != "" {
				d.delivery.NotifyStatus(ctx, input.CallbackURL, string(jobs.StatusFailed), message)
			}

			return Response{Status: string(jobs.StatusFailed), Error: message}
		}
	}

	if input.CallbackURL != "" {
		delivered := d.delivery.NotifyStatus(ctx, input.CallbackURL, string(jobs.StatusCompleted), "")
		if !delivered {
			d.log.Warn("Completion webhook to %s was not delivered", input.CallbackURL)
		}
	}

	return Response{
		AudioBase64: base64.StdEncoding.EncodeToString(output.WAV),
		SampleRate:  output.SampleRate,
		Format:      output.Format,
		Status:      string(jobs.StatusCompleted),
	}
}

// initGate short-circuits every request while the initialization-failure
// sentinel is set. There is no self-healing retry; only a restart clears it.
func (d *Dispatcher) initGate() (Response, bool) {
	diagnostic, set := d.marker.Check()
	if !set {
		return Response{}, false
	}

	return Response{Error: msgInitPrefix + diagnostic}, true
}

func (d *Dispatcher) submit(ctx context.Context, input jobs.Input) Response {
	if !validPrompt(input.Prompt) {
		return d.rejectPrompt(ctx, input.CallbackURL)
	}

	job := d.store.Create(input)

	err := d.lane.Enqueue(job.ID)
	if err != nil {
		// The entry must not linger: a rejected submission leaves no trace.
		evictErr := d.store.Evict(job.ID)
		if evictErr != nil {
			d.log.Error("Failed to evict rejected job %s: %v", job.ID, evictErr)
		}

		if errors.Is(err, worker.ErrQueueFull) {
			return Response{Status: string(jobs.StatusFailed), Error: msgQueueFull}
		}

		return Response{Status: string(jobs.StatusFailed), Error: err.Error()}
	}

	return Response{TaskID: job.ID, Status: string(jobs.StatusPending)}
}

func (d *Dispatcher) poll(taskID string) Response {
	job, err := d.store.Collect(taskID)
	if err != nil {
		return Response{Error: msgTaskNotFound}
	}

	switch job.Status {
	case jobs.StatusCompleted:
		return Response{
			TaskID: job.ID,
			Status: string(job.Status),
			Output: &Output{
				AudioBase64: base64.StdEncoding.EncodeToString(job.Output.WAV),
				SampleRate:  job.Output.SampleRate,
				Format:      job.Output.Format,
			},
		}
	case jobs.StatusFailed:
		return Response{TaskID: job.ID, Status: string(job.Status), Error: job.Error}
	case jobs.StatusPending, jobs.StatusProcessing:
		return Response{TaskID: job.ID, Status: string(job.Status)}
	default:
		return Response{TaskID: job.ID, Status: string(job.Status)}
	}
}

// rejectPrompt reports the validation error and, when a callback is present,
// notifies it of the failure before returning. No job entry is created.
func (d *Dispatcher) rejectPrompt(ctx context.Context, callbackURL string) Response {
	if callbackURL != "" {
		delivered := d.delivery.NotifyStatus(ctx, callbackURL, string(jobs.StatusFailed), msgNoPrompt)
		if !delivered {
			d.log.Warn("Validation-failure webhook to %s was not delivered", callbackURL)
		}
	}

	return Response{Status: string(jobs.StatusFailed), Error: msgNoPrompt}
}

func validPrompt(prompt string) bool {
	return strings.TrimSpace(prompt) != ""
}
