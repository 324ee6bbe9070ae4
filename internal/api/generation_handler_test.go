package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemforge/imagegen/internal/domain"
	"github.com/itemforge/imagegen/internal/service"
	"github.com/itemforge/imagegen/internal/store"
)

// stubService implements GenerationService for handler tests.
type stubService struct {
	dispatched  []domain.GenerationParams
	dispatchReq *domain.GenerationRequest
	dispatchErr error
	statusReq   *domain.GenerationRequest
	statusErr   error
}

func (s *stubService) Dispatch(ctx context.Context, params domain.GenerationParams) (*domain.GenerationRequest, error) {
	s.dispatched = append(s.dispatched, params)
	if s.dispatchErr != nil {
		return nil, s.dispatchErr
	}
	return s.dispatchReq, nil
}

func (s *stubService) GetStatus(ctx context.Context, id uuid.UUID) (*domain.GenerationRequest, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.statusReq, nil
}

func newTestRouter(svc GenerationService) http.Handler {
	h := NewGenerationHandler(svc)
	r := chi.NewRouter()
	r.Post("/api/v1/generate", h.Generate)
	r.Get("/api/v1/status/{request_id}", h.GetStatus)
	return r
}

func postGenerate(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGenerateAccepted(t *testing.T) {
	queued, err := domain.NewGenerationRequest(domain.GenerationParams{
		Prompt:            "a bronze shield",
		NumInferenceSteps: domain.DefaultSteps,
		GuidanceScale:     domain.DefaultGuidanceScale,
		Seed:              domain.DefaultSeed,
	})
	require.NoError(t, err)

	svc := &stubService{dispatchReq: queued}
	router := newTestRouter(svc)

	rec := postGenerate(t, router, `{"prompt": "a bronze shield"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp GenerateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, queued.ID.String(), resp.RequestID)
	assert.Equal(t, string(domain.StatusQueued), resp.Status)
}

func TestGenerateAppliesDefaults(t *testing.T) {
	queued, err := domain.NewGenerationRequest(domain.GenerationParams{
		Prompt:            "a bronze shield",
		NumInferenceSteps: domain.DefaultSteps,
		GuidanceScale:     domain.DefaultGuidanceScale,
		Seed:              domain.DefaultSeed,
	})
	require.NoError(t, err)

	svc := &stubService{dispatchReq: queued}
	router := newTestRouter(svc)

	rec := postGenerate(t, router, `{"prompt": "a bronze shield"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, svc.dispatched, 1)
	params := svc.dispatched[0]
	assert.Equal(t, domain.DefaultSteps, params.NumInferenceSteps)
	assert.Equal(t, domain.DefaultGuidanceScale, params.GuidanceScale)
	assert.Equal(t, int64(domain.DefaultSeed), params.Seed)
}

func TestGenerateRespectsExplicitParams(t *testing.T) {
	queued, err := domain.NewGenerationRequest(domain.GenerationParams{
		Prompt:            "a bronze shield",
		NumInferenceSteps: 30,
		GuidanceScale:     9.0,
		Seed:              7,
	})
	require.NoError(t, err)

	svc := &stubService{dispatchReq: queued}
	router := newTestRouter(svc)

	body := `{
		"prompt": "a bronze shield",
		"negative_prompt": "blurry",
		"num_inference_steps": 30,
		"guidance_scale": 9.0,
		"seed": 7
	}`
	rec := postGenerate(t, router, body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, svc.dispatched, 1)
	params := svc.dispatched[0]
	assert.Equal(t, "blurry", params.NegativePrompt)
	assert.Equal(t, 30, params.NumInferenceSteps)
	assert.Equal(t, 9.0, params.GuidanceScale)
	assert.Equal(t, int64(7), params.Seed)
}

func TestGenerateMalformedBody(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)

	rec := postGenerate(t, router, `{"prompt": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.dispatched)
}

func TestGenerateMissingPrompt(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)

	rec := postGenerate(t, router, `{"negative_prompt": "blurry"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, svc.dispatched)
}

func TestGenerateInvalidSteps(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)

	rec := postGenerate(t, router, `{"prompt": "x", "num_inference_steps": 0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, svc.dispatched)
}

func TestGenerateSeedBeyondBackendRangeRejected(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)

	// the inference backend takes a 32-bit seed; larger values would
	// silently truncate
	rec := postGenerate(t, router, `{"prompt": "x", "seed": 2147483648}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, svc.dispatched)
}

func TestGenerateMaxSeedAccepted(t *testing.T) {
	queued, err := domain.NewGenerationRequest(domain.GenerationParams{
		Prompt:            "x",
		NumInferenceSteps: domain.DefaultSteps,
		GuidanceScale:     domain.DefaultGuidanceScale,
		Seed:              2147483647,
	})
	require.NoError(t, err)

	svc := &stubService{dispatchReq: queued}
	router := newTestRouter(svc)

	rec := postGenerate(t, router, `{"prompt": "x", "seed": 2147483647}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, svc.dispatched, 1)
	assert.Equal(t, int64(2147483647), svc.dispatched[0].Seed)
}

func TestGenerateDispatchFailure(t *testing.T) {
	svc := &stubService{dispatchErr: service.ErrDispatchFailed}
	router := newTestRouter(svc)

	rec := postGenerate(t, router, `{"prompt": "a bronze shield"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Failed to queue generation request", resp["error"])
}

func getStatus(t *testing.T, router http.Handler, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/"+id, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetStatusCompletedIncludesImageURL(t *testing.T) {
	record, err := domain.NewGenerationRequest(domain.GenerationParams{
		Prompt:            "a bronze shield",
		NumInferenceSteps: domain.DefaultSteps,
		GuidanceScale:     domain.DefaultGuidanceScale,
		Seed:              domain.DefaultSeed,
	})
	require.NoError(t, err)
	record.Status = domain.StatusCompleted
	record.ImageURL = "https://images.example.com/x.png"

	router := newTestRouter(&stubService{statusReq: record})

	rec := getStatus(t, router, record.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, record.ID.String(), resp.RequestID)
	assert.Equal(t, string(domain.StatusCompleted), resp.Status)
	assert.Equal(t, "https://images.example.com/x.png", resp.ImageURL)
}

func TestGetStatusPendingOmitsImageURL(t *testing.T) {
	record, err := domain.NewGenerationRequest(domain.GenerationParams{
		Prompt:            "a bronze shield",
		NumInferenceSteps: domain.DefaultSteps,
		GuidanceScale:     domain.DefaultGuidanceScale,
		Seed:              domain.DefaultSeed,
	})
	require.NoError(t, err)

	router := newTestRouter(&stubService{statusReq: record})

	rec := getStatus(t, router, record.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.Equal(t, string(domain.StatusQueued), raw["status"])
	assert.NotContains(t, raw, "image_url")
}

func TestGetStatusMalformedID(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := getStatus(t, router, "not-a-uuid")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Invalid request identifier", resp["error"])
}

func TestGetStatusNotFound(t *testing.T) {
	router := newTestRouter(&stubService{statusErr: store.ErrRequestNotFound})

	rec := getStatus(t, router, uuid.New().String())
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Generation request not found", resp["error"])
}
