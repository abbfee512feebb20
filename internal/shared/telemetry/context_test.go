package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackgroundWithRequestIDDropsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(WithRequestID(context.Background(), "req-1"))
	cancel()

	bg := BackgroundWithRequestID(ctx)
	assert.NoError(t, bg.Err())
	assert.Equal(t, "req-1", RequestIDFromContext(bg))
	assert.Equal(t, "", RequestIDFromContext(BackgroundWithRequestID(context.Background())))
}
