package broker

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemforge/imagegen/internal/domain"
)

func TestDecodeTaskMessage(t *testing.T) {
	id := uuid.New()
	body := []byte(`{
		"request_id": "` + id.String() + `",
		"params": {
			"prompt": "a sword forged from starlight",
			"negative_prompt": "",
			"num_inference_steps": 50,
			"guidance_scale": 7.5,
			"seed": 50
		}
	}`)

	msg, err := DecodeTaskMessage(body)
	require.NoError(t, err)

	assert.Equal(t, id, msg.RequestID)
	assert.Equal(t, "a sword forged from starlight", msg.Params.Prompt)
	assert.Equal(t, 50, msg.Params.NumInferenceSteps)
	assert.Equal(t, 7.5, msg.Params.GuidanceScale)
}

func TestDecodeTaskMessageRejectsBadPayloads(t *testing.T) {
	id := uuid.New().String()

	tests := []struct {
		name string
		body string
	}{
		{"not JSON", `{{{`},
		{"unknown field", `{"request_id": "` + id + `", "params": {"prompt": "x"}, "extra": 1}`},
		{"missing request_id", `{"params": {"prompt": "x"}}`},
		{"non-uuid request_id", `{"request_id": "not-a-uuid", "params": {"prompt": "x"}}`},
		{"missing prompt", `{"request_id": "` + id + `", "params": {"seed": 1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeTaskMessage([]byte(tt.body))
			assert.Nil(t, msg)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestDecodeResultMessage(t *testing.T) {
	id := uuid.New()
	body := []byte(`{"request_id": "` + id.String() + `", "status": "Completed", "image_url": "https://images.example.com/` + id.String() + `.png"}`)

	msg, err := DecodeResultMessage(body)
	require.NoError(t, err)

	assert.Equal(t, id, msg.RequestID)
	assert.Equal(t, domain.StatusCompleted, msg.Status)
	require.NotNil(t, msg.ImageURL)
	assert.Contains(t, *msg.ImageURL, id.String())
}

func TestDecodeResultMessageFailedWithNullURL(t *testing.T) {
	id := uuid.New()
	body := []byte(`{"request_id": "` + id.String() + `", "status": "Failed", "image_url": null}`)

	msg, err := DecodeResultMessage(body)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, msg.Status)
	assert.Nil(t, msg.ImageURL)
}

func TestDecodeResultMessageRejectsBadPayloads(t *testing.T) {
	id := uuid.New().String()

	tests := []struct {
		name string
		body string
	}{
		{"non-uuid request_id", `{"request_id": "not-a-uuid", "status": "Completed", "image_url": "u"}`},
		{"non-terminal status", `{"request_id": "` + id + `", "status": "Processing", "image_url": null}`},
		{"unknown status", `{"request_id": "` + id + `", "status": "Done", "image_url": "u"}`},
		{"completed without url", `{"request_id": "` + id + `", "status": "Completed", "image_url": null}`},
		{"failed with url", `{"request_id": "` + id + `", "status": "Failed", "image_url": "u"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeResultMessage([]byte(tt.body))
			assert.Nil(t, msg)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestResultConstructors(t *testing.T) {
	id := uuid.New()

	completed := NewCompletedResult(id, "https://images.example.com/x.png")
	require.NoError(t, completed.Validate())
	assert.Equal(t, domain.StatusCompleted, completed.Status)

	failed := NewFailedResult(id)
	require.NoError(t, failed.Validate())
	assert.Nil(t, failed.ImageURL)

	// wire round trip keeps the null image_url for failed results
	raw, err := json.Marshal(failed)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"image_url":null`)
}
