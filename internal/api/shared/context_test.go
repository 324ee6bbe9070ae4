package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetTraceIDGeneratesUniqueIDs(t *testing.T) {
	ctx1 := SetTraceID(context.Background())
	ctx2 := SetTraceID(context.Background())

	id1 := GetTraceID(ctx1)
	id2 := GetTraceID(ctx2)

	assert.Len(t, id1, TraceIDLength*2)
	assert.NotEqual(t, id1, id2)
}

func TestGetTraceIDEmptyWhenUnset(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}
