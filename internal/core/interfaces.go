// Package core defines the core business logic and interfaces for the music
// generation service.
package core

import "context"

// Clip is a mono audio buffer of 16-bit signed PCM samples.
type Clip struct {
	SampleRate int
	Samples    []int16
}

// Generator defines the interface for a text-to-music generation engine. A
// single call may take minutes; implementations must honor the context for
// process shutdown but are not expected to support mid-generation cancel.
type Generator interface {
	Generate(ctx context.Context, prompt string, seconds int) (Clip, error)
}

// Delivery defines the best-effort outbound signaling surface. Both methods
// report success as a boolean and must never propagate transport errors to
// the caller; failures are logged inside the implementation.
type Delivery interface {
	UploadResult(ctx context.Context, destination string, data []byte, contentType string) bool
	NotifyStatus(ctx context.Context, callbackURL, status, errorMessage string) bool
}
