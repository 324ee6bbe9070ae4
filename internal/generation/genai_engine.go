package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/itemforge/imagegen/internal/config"
	"github.com/itemforge/imagegen/internal/domain"
)

// GenaiEngine implements the Engine interface against the Gemini API's
// image generation models. Generated images are written to a local
// directory and referenced through a configured public base URL.
type GenaiEngine struct {
	logger        *slog.Logger
	client        *genai.Client
	model         string
	imagesDir     string
	publicBaseURL string
}

// NewGenaiEngine creates a new instance of GenaiEngine with the provided
// configuration. It validates the configuration, initializes the API
// client, and ensures the image output directory exists.
func NewGenaiEngine(ctx context.Context, log *slog.Logger, cfg config.GenerationConfig) (*GenaiEngine, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}
	if cfg.ImagesDir == "" {
		return nil, fmt.Errorf("%w: images directory cannot be empty", ErrInvalidConfig)
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("%w: public base URL cannot be empty", ErrInvalidConfig)
	}

	if err := os.MkdirAll(cfg.ImagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create images directory: %v", ErrInvalidConfig, err)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create genai client: %v", ErrInvalidConfig, err)
	}

	return &GenaiEngine{
		logger:        log.With(slog.String("component", "genai_engine")),
		client:        client,
		model:         cfg.Model,
		imagesDir:     cfg.ImagesDir,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Ensure GenaiEngine implements the Engine interface
var _ Engine = (*GenaiEngine)(nil)

// GenerateImage implements Engine.GenerateImage. The num_inference_steps
// parameter is accepted but not forwarded; the Imagen backend does not
// expose step control.
func (e *GenaiEngine) GenerateImage(ctx context.Context, requestID uuid.UUID, params domain.GenerationParams) (string, error) {
	e.logger.Info("generating image",
		"request_id", requestID.String(),
		"model", e.model,
		"seed", params.Seed)

	genCfg := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		NegativePrompt: params.NegativePrompt,
		GuidanceScale:  genai.Ptr(float32(params.GuidanceScale)),
		Seed:           genai.Ptr(int32(params.Seed)),
	}

	resp, err := e.client.Models.GenerateImages(ctx, e.model, params.Prompt, genCfg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if resp == nil || len(resp.GeneratedImages) == 0 ||
		resp.GeneratedImages[0].Image == nil ||
		len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return "", ErrEmptyArtifact
	}

	filename := requestID.String() + ".png"
	localPath := filepath.Join(e.imagesDir, filename)
	if err := os.WriteFile(localPath, resp.GeneratedImages[0].Image.ImageBytes, 0o644); err != nil {
		return "", fmt.Errorf("%w: failed to write image: %v", ErrGenerationFailed, err)
	}

	url := e.publicBaseURL + "/" + filename
	e.logger.Info("image generated",
		"request_id", requestID.String(),
		"path", localPath,
		"url", url)
	return url, nil
}
