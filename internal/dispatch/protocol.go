// Package dispatch routes incoming request envelopes to submission, status
// polling, or synchronous execution, and shapes every outcome as a structured
// response.
package dispatch

import (
	"strings"

	"github.com/book-expert/musicgen-service/internal/jobs"
)

// Submission defaults, part of the compatibility contract with existing
// callers.
const (
	DefaultDurationSeconds = 120
	DefaultSampleRate      = 32000
)

// Envelope is the wire-level request. The same envelope carries fresh
// submissions and status checks; the presence of task_id selects the latter.
type Envelope struct {
	Text        string      `json:"text,omitempty"`
	Duration    int         `json:"duration,omitempty"`
	SampleRate  int         `json:"sample_rate,omitempty"`
	CallbackURL string      `json:"callback_url,omitempty"`
	UploadURLs  *UploadURLs `json:"upload_urls,omitempty"`
	TaskID      string      `json:"task_id,omitempty"`
}

// UploadURLs carries pre-signed destinations for result delivery.
type UploadURLs struct {
	WAVURL string `json:"wav_url,omitempty"`
}

// Kind tags the parsed request variant.
type Kind int

// Request variants.
const (
	KindSubmit Kind = iota
	KindPoll
)

// Request is the tagged, unambiguous form of an envelope.
type Request struct {
	Kind   Kind
	TaskID string
	Input  jobs.Input
}

// Parse classifies an envelope. A non-empty task_id always selects Poll, even
// when text is also present; submissions get defaults applied and the input
// snapshot captured.
func Parse(env Envelope) Request {
	if strings.TrimSpace(env.TaskID) != "" {
		return Request{
			Kind:   KindPoll,
			TaskID: strings.TrimSpace(env.TaskID),
			Input:  jobs.Input{},
		}
	}

	duration := env.Duration
	if duration <= 0 {
		duration = DefaultDurationSeconds
	}

	sampleRate := env.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	var uploadURL string
	if env.UploadURLs != nil {
		uploadURL = env.UploadURLs.WAVURL
	}

	return Request{
		Kind:   KindSubmit,
		TaskID: "",
		Input: jobs.Input{
			Prompt:          env.Text,
			DurationSeconds: duration,
			SampleRate:      sampleRate,
			CallbackURL:     env.CallbackURL,
			WAVUploadURL:    uploadURL,
		},
	}
}

// Output is the result payload nested in terminal poll responses.
type Output struct {
	AudioBase64 string `json:"audio_base64"`
	SampleRate  int    `json:"sample_rate"`
	Format      string `json:"format"`
}

// Response is the wire-level reply. Exactly the fields relevant to the
// outcome are populated; callers always receive either a status or an error,
// never an unstructured crash.
type Response struct {
	TaskID      string  `json:"task_id,omitempty"`
	Status      string  `json:"status,omitempty"`
	Output      *Output `json:"output,omitempty"`
	AudioBase64 string  `json:"audio_base64,omitempty"`
	SampleRate  int     `json:"sample_rate,omitempty"`
	Format      string  `json:"format,omitempty"`
	Error       string  `json:"error,omitempty"`
}
