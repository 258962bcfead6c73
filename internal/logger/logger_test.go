package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/keyseek/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.LoggingConfig
		wantErr bool
		check   func(t *testing.T, logger *logrus.Logger)
	}{
		{
			name:   "json format stdout",
			config: &config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			check: func(t *testing.T, logger *logrus.Logger) {
				assert.Equal(t, logrus.InfoLevel, logger.Level)
				assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
				assert.Equal(t, os.Stdout, logger.Out)
			},
		},
		{
			name:   "text format stderr",
			config: &config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"},
			check: func(t *testing.T, logger *logrus.Logger) {
				assert.Equal(t, logrus.DebugLevel, logger.Level)
				assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
				assert.Equal(t, os.Stderr, logger.Out)
			},
		},
		{
			name: "rotated file output",
			config: &config.LoggingConfig{
				Level:      "warn",
				Format:     "json",
				Output:     filepath.Join(t.TempDir(), "logs", "keyseek.log"),
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     7,
			},
			check: func(t *testing.T, logger *logrus.Logger) {
				assert.Equal(t, logrus.WarnLevel, logger.Level)
			},
		},
		{
			name:    "invalid log level",
			config:  &config.LoggingConfig{Level: "invalid", Format: "json", Output: "stdout"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			tt.check(t, logger)
		})
	}
}

func TestNew_DefaultFields(t *testing.T) {
	logger, err := New(&config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	WithComponent(logger, "session").WithField("service", "override").Info("opened")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "opened", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "timestamp")
	assert.Equal(t, "session", entry["component"])
	assert.Equal(t, "override", entry["service"])
	assert.Contains(t, entry["version"], "Keyseek")
}

func TestNew_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "keyseek.log")

	logger, err := New(&config.LoggingConfig{
		Level:      "info",
		Format:     "text",
		Output:     logFile,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	})
	require.NoError(t, err)

	logger.Info("index built")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "index built")
	assert.Contains(t, string(data), "service=keyseek")
}

func TestNew_Levels(t *testing.T) {
	for _, level := range logrus.AllLevels {
		t.Run(level.String(), func(t *testing.T) {
			logger, err := New(&config.LoggingConfig{Level: level.String(), Format: "json", Output: "stdout"})
			require.NoError(t, err)
			assert.Equal(t, level, logger.Level)
		})
	}
}

func TestHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	t.Run("WithComponent", func(t *testing.T) {
		assert.Equal(t, "api", WithComponent(logger, "api").Data["component"])
	})

	t.Run("WithSession", func(t *testing.T) {
		entry := WithSession(logger, "session-456")
		assert.Equal(t, "session-456", entry.Data["session_id"])
	})

	t.Run("WithError", func(t *testing.T) {
		entry := WithError(logger, assert.AnError)
		assert.Equal(t, assert.AnError, entry.Data[logrus.ErrorKey])
	})

	t.Run("chained", func(t *testing.T) {
		buf.Reset()
		WithSession(logger, "s-1").WithField("component", "scrub").WithError(assert.AnError).Error("write failed")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "s-1", entry["session_id"])
		assert.Equal(t, "scrub", entry["component"])
		assert.Equal(t, assert.AnError.Error(), entry["error"])
	})

	t.Run("request id", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-123")
		assert.Equal(t, "req-123", GetRequestID(ctx))
	})
}
