// Package engine provides the subprocess-backed implementation of the
// core.Generator interface. It shells out to a standalone inference binary
// that renders a prompt to a WAV file at the model's native rate.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/core"
	"github.com/book-expert/musicgen-service/internal/wav"
)

// Static errors.
var (
	// ErrBinaryPathEmpty indicates that the inference binary path is empty.
	ErrBinaryPathEmpty = errors.New("inference binary path cannot be empty")
	// ErrModelPathEmpty indicates that the model path is empty.
	ErrModelPathEmpty = errors.New("model path cannot be empty")
	// ErrEmptyAudio indicates the binary produced no audio data.
	ErrEmptyAudio = errors.New("inference produced empty audio")
)

// Config holds the engine parameters.
type Config struct {
	BinaryPath string
	ModelPath  string
}

// Engine generates music by invoking an external inference binary. The scarce
// accelerator behind the binary is not guarded here; the worker lane
// serializes access.
type Engine struct {
	config Config
	log    *logger.Logger
}

// New validates the configuration and probes the model weights. A failure
// here is the process-wide initialization failure the dispatcher reports
// until restart.
func New(cfg Config, log *logger.Logger) (*Engine, error) {
	if cfg.BinaryPath == "" {
		return nil, ErrBinaryPathEmpty
	}

	if cfg.ModelPath == "" {
		return nil, ErrModelPathEmpty
	}

	_, err := os.Stat(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("model weights not usable at %s: %w", cfg.ModelPath, err)
	}

	return &Engine{
		config: cfg,
		log:    log,
	}, nil
}

// Generate renders the prompt to a mono PCM clip at the model's native rate.
func (e *Engine) Generate(ctx context.Context, prompt string, seconds int) (core.Clip, error) {
	tempFile, err := os.CreateTemp("", "musicgen-output-*.wav")
	if err != nil {
		return core.Clip{}, fmt.Errorf("failed to create temp file for inference output: %w", err)
	}

	defer func() {
		removeErr := os.Remove(tempFile.Name())
		if removeErr != nil {
			e.log.Warn("Failed to remove temp file '%s': %v", tempFile.Name(), removeErr)
		}
	}()

	args := []string{
		"-m", e.config.ModelPath,
		"-p", prompt,
		"--duration", strconv.Itoa(seconds),
		"--export", tempFile.Name(),
	}

	// #nosec G204 -- the binary path comes from validated service config
	cmd := exec.CommandContext(ctx, e.config.BinaryPath, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return core.Clip{}, fmt.Errorf(
			"inference binary execution failed: %w - output: %s", err, string(output),
		)
	}

	audioData, err := os.ReadFile(tempFile.Name())
	if err != nil {
		return core.Clip{}, fmt.Errorf("failed to read audio data from temp file: %w", err)
	}

	if len(audioData) == 0 {
		return core.Clip{}, ErrEmptyAudio
	}

	clip, err := wav.Decode(audioData)
	if err != nil {
		return core.Clip{}, fmt.Errorf("failed to decode inference output: %w", err)
	}

	return clip, nil
}
