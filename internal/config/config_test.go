// Package config_test tests the configuration loading for the
// musicgen-service.
package config_test

import (
	"testing"

	"github.com/book-expert/musicgen-service/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[nats]
url = "nats://127.0.0.1:4222"
generate_subject = "music.generate"

[service]
inference_binary_path = "/usr/local/bin/musicgen-infer"
model_path = "models/musicgen-large.bin"
alternate_sample_rate = 48000
queue_capacity = 16
sync_mode = false
generate_timeout_seconds = 600
upload_timeout_seconds = 300
webhook_timeout_seconds = 30

[http]
listen_address = ":8080"

[paths]
base_logs_dir = "/var/log/musicgen-service"
init_error_file = "/tmp/init_error.log"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "music.generate", cfg.NATS.GenerateSubject)
	assert.Equal(t, "/usr/local/bin/musicgen-infer", cfg.Service.InferenceBinaryPath)
	assert.Equal(t, "models/musicgen-large.bin", cfg.Service.ModelPath)
	assert.Equal(t, 48000, cfg.Service.AlternateSampleRate)
	assert.Equal(t, 16, cfg.Service.QueueCapacity)
	assert.False(t, cfg.Service.SyncMode)
	assert.Equal(t, 600, cfg.Service.GenerateTimeoutSeconds)
	assert.Equal(t, 300, cfg.Service.UploadTimeoutSeconds)
	assert.Equal(t, 30, cfg.Service.WebhookTimeoutSeconds)
	assert.Equal(t, ":8080", cfg.HTTP.ListenAddress)
	assert.Equal(t, "/var/log/musicgen-service", cfg.Paths.BaseLogsDir)
	assert.Equal(t, "/tmp/init_error.log", cfg.Paths.InitErrorFile)
}
