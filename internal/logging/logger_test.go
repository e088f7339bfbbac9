package logging

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("Development", func(t *testing.T) {
		logger := New("meal-swiper", "development", "")
		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
		assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	})

	t.Run("Production", func(t *testing.T) {
		logger := New("meal-swiper", "production", "")
		assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
		assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	})

	t.Run("LevelOverride", func(t *testing.T) {
		logger := New("meal-swiper", "production", "warn")
		assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	})
}

func TestError(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	Error(logger, "fetch failed", errors.New("boom"), logrus.Fields{"path": "/get-meal-batch"})

	out := buf.String()
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"path":"/get-meal-batch"`)
	assert.Contains(t, out, `"msg":"fetch failed"`)
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.Equal(t, io.Discard, logger.Out)
	logger.Error("dropped")
}
