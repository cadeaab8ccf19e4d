package connectivity

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeProber struct {
	healthy atomic.Bool
}

func (f *fakeProber) Health(ctx context.Context) error {
	if f.healthy.Load() {
		return nil
	}
	return fmt.Errorf("unreachable")
}

func TestEdgeTriggeredCallbacks(t *testing.T) {
	m := New(&fakeProber{}, time.Minute)

	var fired atomic.Int64
	m.OnOnline(func() { fired.Add(1) })

	assert.False(t, m.Online())

	m.MarkOnline()
	assert.True(t, m.Online())
	assert.Equal(t, int64(1), fired.Load())

	// Same state again: no edge, no callback.
	m.MarkOnline()
	assert.Equal(t, int64(1), fired.Load())

	m.MarkOffline()
	assert.False(t, m.Online())
	assert.Equal(t, int64(1), fired.Load(), "going offline fires nothing")

	m.MarkOnline()
	assert.Equal(t, int64(2), fired.Load())
}

func TestProbeLoopFlipsState(t *testing.T) {
	prober := &fakeProber{}
	prober.healthy.Store(true)

	m := New(prober, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	defer m.Stop()

	assert.Eventually(t, m.Online, time.Second, 5*time.Millisecond)

	prober.healthy.Store(false)
	assert.Eventually(t, func() bool { return !m.Online() }, time.Second, 5*time.Millisecond)
}
