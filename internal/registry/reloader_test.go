package registry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vizlab-service/internal/metrics"
	fixtures "vizlab-service/internal/testutil"
)

func TestReloader(t *testing.T) {
	t.Run("rate limits bursts", func(t *testing.T) {
		reg := New(fixtures.SampleRoot(t), zap.NewNop())
		rl := NewReloader(reg, 0.001, 1, zap.NewNop())

		limitedBefore := testutil.ToFloat64(metrics.RegistryReloads.WithLabelValues(metrics.ReloadRateLimited))

		snap, err := rl.Reload(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, snap.Len())

		_, err = rl.Reload(context.Background())
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Equal(t, limitedBefore+1,
			testutil.ToFloat64(metrics.RegistryReloads.WithLabelValues(metrics.ReloadRateLimited)))
	})

	t.Run("unlimited when rate is zero", func(t *testing.T) {
		reg := New(fixtures.SampleRoot(t), zap.NewNop())
		rl := NewReloader(reg, 0, 0, zap.NewNop())
		for i := 0; i < 5; i++ {
			_, err := rl.Reload(context.Background())
			require.NoError(t, err)
		}
	})

	t.Run("notifies listeners and updates gauges", func(t *testing.T) {
		reg := New(fixtures.SampleRoot(t), zap.NewNop())
		rl := NewReloader(reg, 0, 0, zap.NewNop())

		var got *Snapshot
		rl.OnReload(func(s *Snapshot) { got = s })

		snap, err := rl.Reload(context.Background())
		require.NoError(t, err)
		assert.Same(t, snap, got)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RegistryDevices))
	})

	t.Run("failure keeps registry empty", func(t *testing.T) {
		reg := New(t.TempDir(), zap.NewNop())
		rl := NewReloader(reg, 0, 0, zap.NewNop())

		_, err := rl.Reload(context.Background())
		require.Error(t, err)
		assert.Empty(t, reg.ListDevices())
	})
}

func TestWatcher_ReloadsOnNewDevice(t *testing.T) {
	root := fixtures.SampleRoot(t)
	reg := New(root, zap.NewNop())
	rl := NewReloader(reg, 0, 0, zap.NewNop())
	_, err := rl.Reload(context.Background())
	require.NoError(t, err)

	w, err := NewWatcher(rl, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	fixtures.WriteDevice(t, root, fixtures.Device{Name: "jetson", Config: minimalConfig(`"cycles"`)})

	assert.Eventually(t, func() bool {
		return len(reg.ListDevices()) == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_RetriesThrottledReload(t *testing.T) {
	root := fixtures.SampleRoot(t)
	reg := New(root, zap.NewNop())
	rl := NewReloader(reg, 2, 1, zap.NewNop())
	// единственный токен израсходован до появления изменения
	_, err := rl.Reload(context.Background())
	require.NoError(t, err)

	w, err := NewWatcher(rl, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	fixtures.WriteDevice(t, root, fixtures.Device{Name: "jetson", Config: minimalConfig(`"cycles"`)})

	assert.Eventually(t, func() bool {
		return len(reg.ListDevices()) == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestReloader_Delay(t *testing.T) {
	reg := New(fixtures.SampleRoot(t), zap.NewNop())

	unlimited := NewReloader(reg, 0, 0, zap.NewNop())
	assert.Zero(t, unlimited.Delay())

	rl := NewReloader(reg, 0.5, 1, zap.NewNop())
	assert.Zero(t, rl.Delay(), "token available")
	_, err := rl.Reload(context.Background())
	require.NoError(t, err)
	assert.Greater(t, rl.Delay(), time.Second)

	// Delay не расходует токен
	assert.Greater(t, rl.Delay(), time.Second)
	assert.LessOrEqual(t, rl.Delay(), 2*time.Second)
}
