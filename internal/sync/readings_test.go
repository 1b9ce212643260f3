package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundToWindowNearestBoundary(t *testing.T) {
	assert.Equal(t, int64(600), roundToWindow(600))
	assert.Equal(t, int64(600), roundToWindow(650))
	assert.Equal(t, int64(600), roundToWindow(899))
	assert.Equal(t, int64(1200), roundToWindow(900))
	assert.Equal(t, int64(600), roundToWindow(300))
	assert.Equal(t, int64(0), roundToWindow(299))
}
