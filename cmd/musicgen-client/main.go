// Command musicgen-client submits a prompt to a running musicgen-service over
// HTTP and polls until the job reaches a terminal state, writing the WAV
// result to disk.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/book-expert/musicgen-service/internal/dispatch"
)

// Flag descriptions.
const (
	flagURLDesc      = "Base URL of the musicgen-service HTTP gateway"
	flagTextDesc     = "Text prompt to generate music from"
	flagDurationDesc = "Requested duration in seconds"
	flagRateDesc     = "Requested sample rate (48000 triggers resampling)"
	flagOutputDesc   = "Output file path (.wav)"
	flagSyncDesc     = "Use the synchronous endpoint instead of submit+poll"
	flagIntervalDesc = "Polling interval"
)

const (
	defaultPollInterval = 2 * time.Second
	requestTimeout      = 15 * time.Minute
	filePermissions     = 0o600
)

// Static errors.
var (
	ErrTextRequired = errors.New("--text is required")
	ErrJobFailed    = errors.New("job failed")
	ErrNoTaskID     = errors.New("submission returned no task id")
)

type appFlags struct {
	url      string
	text     string
	duration int
	rate     int
	output   string
	sync     bool
	interval time.Duration
}

func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.url, "url", "http://localhost:8080", flagURLDesc)
	flag.StringVar(&flags.text, "text", "", flagTextDesc)
	flag.IntVar(&flags.duration, "duration", dispatch.DefaultDurationSeconds, flagDurationDesc)
	flag.IntVar(&flags.rate, "sample-rate", dispatch.DefaultSampleRate, flagRateDesc)
	flag.StringVar(&flags.output, "output", "output.wav", flagOutputDesc)
	flag.BoolVar(&flags.sync, "sync", false, flagSyncDesc)
	flag.DurationVar(&flags.interval, "poll-interval", defaultPollInterval, flagIntervalDesc)
	flag.Parse()

	return flags
}

func post(client *http.Client, url string, env dispatch.Envelope) (dispatch.Response, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return dispatch.Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return dispatch.Response{}, fmt.Errorf("request to %s failed: %w", url, err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	var decoded dispatch.Response

	err = json.NewDecoder(resp.Body).Decode(&decoded)
	if err != nil {
		return dispatch.Response{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return decoded, nil
}

func runSync(client *http.Client, flags appFlags) (string, error) {
	resp, err := post(client, flags.url+"/runsync", dispatch.Envelope{
		Text:       flags.text,
		Duration:   flags.duration,
		SampleRate: flags.rate,
	})
	if err != nil {
		return "", err
	}

	if resp.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrJobFailed, resp.Error)
	}

	return resp.AudioBase64, nil
}

func runAsync(client *http.Client, flags appFlags) (string, error) {
	submitted, err := post(client, flags.url+"/run", dispatch.Envelope{
		Text:       flags.text,
		Duration:   flags.duration,
		SampleRate: flags.rate,
	})
	if err != nil {
		return "", err
	}

	if submitted.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrJobFailed, submitted.Error)
	}

	if submitted.TaskID == "" {
		return "", ErrNoTaskID
	}

	log.Printf("Submitted task %s, polling every %s", submitted.TaskID, flags.interval)

	for {
		time.Sleep(flags.interval)

		status, err := post(client, flags.url+"/run", dispatch.Envelope{TaskID: submitted.TaskID})
		if err != nil {
			return "", err
		}

		switch {
		case status.Error != "":
			return "", fmt.Errorf("%w: %s", ErrJobFailed, status.Error)
		case status.Output != nil:
			return status.Output.AudioBase64, nil
		default:
			log.Printf("Task %s: %s", submitted.TaskID, status.Status)
		}
	}
}

func run() error {
	flags := parseFlags()
	if flags.text == "" {
		return ErrTextRequired
	}

	client := &http.Client{Timeout: requestTimeout}

	var (
		audioBase64 string
		err         error
	)

	if flags.sync {
		audioBase64, err = runSync(client, flags)
	} else {
		audioBase64, err = runAsync(client, flags)
	}

	if err != nil {
		return err
	}

	audio, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return fmt.Errorf("failed to decode audio payload: %w", err)
	}

	err = os.WriteFile(flags.output, audio, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", flags.output, err)
	}

	log.Printf("Wrote %d bytes to %s", len(audio), flags.output)

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "musicgen-client: %v\n", err)
		os.Exit(1)
	}
}
