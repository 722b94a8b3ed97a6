package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveLogger(t *testing.T) {
	original := logger
	t.Cleanup(func() { logger = original })
}

func TestInit(t *testing.T) {
	saveLogger(t)

	t.Run("TextToStdout", func(t *testing.T) {
		err := Init(Config{Level: "info", Format: "text", Output: "stdout"})
		require.NoError(t, err)
		assert.Equal(t, logrus.InfoLevel, logger.Level)
		_, ok := logger.Formatter.(*logrus.TextFormatter)
		assert.True(t, ok)
	})

	t.Run("JSONFormatter", func(t *testing.T) {
		err := Init(Config{Level: "debug", Format: "json", Output: "stdout"})
		require.NoError(t, err)
		_, ok := logger.Formatter.(*logrus.JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("RotatedFileOutput", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "autobook.log")

		err := Init(Config{
			Level:      "error",
			Format:     "json",
			Output:     "file",
			Filename:   logFile,
			MaxSize:    10,
			MaxAge:     7,
			MaxBackups: 3,
			Compress:   true,
		})
		require.NoError(t, err)

		Error("refund failed")

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("UnknownLevelFallsBackToInfo", func(t *testing.T) {
		err := Init(Config{Level: "chatty", Format: "text", Output: "stdout"})
		require.NoError(t, err)
		assert.Equal(t, logrus.InfoLevel, logger.Level)
	})
}

func TestLevelHelpers(t *testing.T) {
	saveLogger(t)

	var buf bytes.Buffer
	logger = logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetOutput(&buf)

	buf.Reset()
	Debug("probing provider")
	assert.Contains(t, buf.String(), "level=debug")

	buf.Reset()
	Infof("charge %s captured", "pi_1")
	assert.Contains(t, buf.String(), "charge pi_1 captured")

	buf.Reset()
	Warnf("campaign %d paused", 7)
	assert.Contains(t, buf.String(), "level=warning")
	assert.Contains(t, buf.String(), "campaign 7 paused")

	buf.Reset()
	Errorf("booking request %d stranded", 100)
	assert.Contains(t, buf.String(), "level=error")
}

func TestStructuredFields(t *testing.T) {
	saveLogger(t)

	var buf bytes.Buffer
	logger = logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(&buf)

	t.Run("WithField", func(t *testing.T) {
		buf.Reset()
		WithField("campaign_id", 7).Info("charge attempt")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "charge attempt", entry["msg"])
		assert.Equal(t, float64(7), entry["campaign_id"])
	})

	t.Run("WithFields", func(t *testing.T) {
		buf.Reset()
		WithFields(logrus.Fields{
			"booking_request_id": 100,
			"provider":           "stripe",
		}).Info("intent captured")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "intent captured", entry["msg"])
		assert.Equal(t, float64(100), entry["booking_request_id"])
		assert.Equal(t, "stripe", entry["provider"])
	})

	t.Run("WithError", func(t *testing.T) {
		buf.Reset()
		WithError(assert.AnError).Error("refund failed")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "refund failed", entry["msg"])
		assert.Equal(t, assert.AnError.Error(), entry["error"])
	})
}

func TestGetLogger(t *testing.T) {
	saveLogger(t)

	logger = nil
	assert.NotNil(t, GetLogger(), "uninitialized package still hands out a logger")

	require.NoError(t, Init(Config{Level: "debug", Format: "json", Output: "stdout"}))
	assert.Same(t, logger, GetLogger())
}

func TestFileOutputWritesThrough(t *testing.T) {
	saveLogger(t)

	logFile := filepath.Join(t.TempDir(), "out.log")
	require.NoError(t, Init(Config{Level: "info", Format: "text", Output: "file", Filename: logFile}))

	Info("fulfillment consumer started")

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "fulfillment consumer started")
}

func TestLevelFiltering(t *testing.T) {
	saveLogger(t)

	var buf bytes.Buffer

	require.NoError(t, Init(Config{Level: "error", Format: "text", Output: "stdout"}))
	logger.SetOutput(&buf)

	Debug("suppressed")
	Info("suppressed")
	Warn("suppressed")
	assert.Empty(t, strings.TrimSpace(buf.String()))

	Error("surfaced")
	assert.Contains(t, buf.String(), "surfaced")
}
