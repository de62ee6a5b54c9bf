package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Background(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 1})

	require.NoError(t, c.AcquireBackground(context.Background()))
	assert.False(t, c.TryAcquireBackground(), "single slot is taken")

	c.ReleaseBackground()
	assert.True(t, c.TryAcquireBackground())
	c.ReleaseBackground()
}

func TestController_BackgroundBlocksUntilRelease(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 1})
	require.NoError(t, c.AcquireBackground(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.AcquireBackground(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.ReleaseBackground()
}

func TestController_IO(t *testing.T) {
	t.Run("unlimited", func(t *testing.T) {
		c := NewController(Config{})
		assert.NoError(t, c.AcquireIO(context.Background(), 1<<30))
	})

	t.Run("large request split across bursts", func(t *testing.T) {
		c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
		assert.NoError(t, c.AcquireIO(context.Background(), (1<<20)+64))
	})
}

func TestController_NilSafe(t *testing.T) {
	var c *Controller

	assert.NoError(t, c.AcquireBackground(context.Background()))
	assert.True(t, c.TryAcquireBackground())
	c.ReleaseBackground()
	assert.NoError(t, c.AcquireIO(context.Background(), 1024))
}
