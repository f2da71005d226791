package signals

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleSignalShape(t *testing.T) {
	s := NewSeededSample(7)
	for i := 0; i < 20; i++ {
		text, err := s.Signal(context.Background())
		require.NoError(t, err)

		lines := strings.Split(text, "\n")
		require.Len(t, lines, 5)
		assert.Contains(t, pairs, lines[0])
		assert.Regexp(t, `^Direction: (UP|DOWN)$`, lines[1])
		assert.Regexp(t, `^Confidence: [345]/5$`, lines[2])
		assert.True(t, strings.HasPrefix(lines[3], "Reason: "))
		if strings.HasSuffix(lines[1], "UP") {
			assert.NotContains(t, lines[3], "bearish")
		}
	}
}

func TestSampleIsReproducible(t *testing.T) {
	a, err := NewSeededSample(42).Signal(context.Background())
	require.NoError(t, err)
	b, err := NewSeededSample(42).Signal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSampleHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSample().Signal(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
