package generation

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itemforge/imagegen/internal/config"
)

func validEngineConfig(t *testing.T) config.GenerationConfig {
	t.Helper()
	return config.GenerationConfig{
		GeminiAPIKey:  "test-key",
		Model:         "imagen-3.0-generate-002",
		ImagesDir:     filepath.Join(t.TempDir(), "images"),
		PublicBaseURL: "http://localhost:8080/images",
	}
}

func TestNewGenaiEngineRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.GenerationConfig)
	}{
		{"missing api key", func(c *config.GenerationConfig) { c.GeminiAPIKey = "" }},
		{"missing model", func(c *config.GenerationConfig) { c.Model = "" }},
		{"missing images dir", func(c *config.GenerationConfig) { c.ImagesDir = "" }},
		{"missing public base url", func(c *config.GenerationConfig) { c.PublicBaseURL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validEngineConfig(t)
			tt.mutate(&cfg)

			_, err := NewGenaiEngine(context.Background(), slog.Default(), cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewGenaiEngineRejectsNilLogger(t *testing.T) {
	_, err := NewGenaiEngine(context.Background(), nil, validEngineConfig(t))
	assert.Error(t, err)
}
