package registry

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vizlab-service/internal/models"
	"vizlab-service/internal/testutil"
)

func minimalConfig(metrics string) string {
	return `{"batches": {"default": {"probe_prefix": "probe_", "probes": [], "metrics": [` + metrics + `]}}}`
}

func TestBuild(t *testing.T) {
	root := testutil.SampleRoot(t)

	reg, err := Build(context.Background(), root, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []string{"rpi4"}, reg.ListDevices())

	workloads, err := reg.ListWorkloads("rpi4")
	require.NoError(t, err)
	assert.Equal(t, []string{"aes", "idle"}, workloads)

	runs, err := reg.ListRuns("rpi4", "aes")
	require.NoError(t, err)
	assert.Equal(t, []string{"run_01", "run_02"}, runs, "master log must not be listed as a run")

	runs, err = reg.ListRuns("rpi4", "idle")
	require.NoError(t, err)
	assert.Empty(t, runs)

	metrics, err := reg.ListMetrics("rpi4")
	require.NoError(t, err)
	assert.Equal(t, []string{"cycles", "instructions", "cache_misses", "branch_misses"}, metrics)
}

func TestBuild_UnknownIdentifiers(t *testing.T) {
	reg, err := Build(context.Background(), testutil.SampleRoot(t), zap.NewNop())
	require.NoError(t, err)

	_, err = reg.ListWorkloads("nope")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = reg.ListRuns("rpi4", "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = reg.ListMetrics("nope")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = reg.Locate("rpi4", "aes", "run_99")
	assert.ErrorIs(t, err, models.ErrNotFound)

	path, err := reg.Locate("rpi4", "aes", "run_01")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(reg.Root(), "rpi4", "aes", "run_01.csv"), path)
}

func TestBuild_PartialFailure(t *testing.T) {
	root := testutil.SampleRoot(t)
	testutil.WriteDevice(t, root, testutil.Device{Name: "broken", Config: `{"batches": 42}`})
	testutil.WriteDevice(t, root, testutil.Device{Name: "noconfig"})
	testutil.WriteDevice(t, root, testutil.Device{Name: "jetson", Config: minimalConfig(`"cycles"`)})
	testutil.WriteDevice(t, root, testutil.Device{Name: "__pycache__"})

	reg, err := Build(context.Background(), root, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []string{"jetson", "rpi4"}, reg.ListDevices())

	warnings := reg.Warnings()
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.ErrorIs(t, w, models.ErrConfig)
	}
}

func TestBuild_EmptyRegistry(t *testing.T) {
	t.Run("no device dirs", func(t *testing.T) {
		_, err := Build(context.Background(), t.TempDir(), zap.NewNop())
		assert.ErrorIs(t, err, models.ErrEmptyRegistry)
	})

	t.Run("all devices broken", func(t *testing.T) {
		root := t.TempDir()
		testutil.WriteDevice(t, root, testutil.Device{Name: "a", Config: "not json"})
		_, err := Build(context.Background(), root, zap.NewNop())
		assert.ErrorIs(t, err, models.ErrEmptyRegistry)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := Build(context.Background(), filepath.Join(t.TempDir(), "missing"), zap.NewNop())
		assert.ErrorIs(t, err, models.ErrConfig)
	})
}

func TestReload(t *testing.T) {
	root := testutil.SampleRoot(t)
	reg, err := Build(context.Background(), root, zap.NewNop())
	require.NoError(t, err)

	t.Run("picks up new devices", func(t *testing.T) {
		testutil.WriteDevice(t, root, testutil.Device{Name: "jetson", Config: minimalConfig(`"cycles"`)})

		snap, err := reg.Reload(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, snap.Len())
		assert.Equal(t, []string{"jetson", "rpi4"}, reg.ListDevices())
	})

	t.Run("failed reload keeps previous snapshot", func(t *testing.T) {
		before := reg.Snapshot()
		require.NoError(t, os.RemoveAll(filepath.Join(root, "jetson")))
		require.NoError(t, os.WriteFile(filepath.Join(root, "rpi4", ConfigFileName), []byte("{"), 0o644))

		_, err := reg.Reload(context.Background())
		assert.ErrorIs(t, err, models.ErrEmptyRegistry)
		assert.Same(t, before, reg.Snapshot())
		assert.Equal(t, []string{"jetson", "rpi4"}, reg.ListDevices())
	})
}

func TestReload_Atomicity(t *testing.T) {
	root := t.TempDir()
	oldSet := []string{"a1", "a2", "a3"}
	newSet := []string{"b1", "b2", "b3", "b4"}
	for _, name := range oldSet {
		testutil.WriteDevice(t, root, testutil.Device{Name: name, Config: minimalConfig(`"m"`)})
	}

	reg, err := Build(context.Background(), root, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, oldSet, reg.ListDevices())

	for _, name := range oldSet {
		require.NoError(t, os.RemoveAll(filepath.Join(root, name)))
	}
	for _, name := range newSet {
		testutil.WriteDevice(t, root, testutil.Device{Name: name, Config: minimalConfig(`"m"`)})
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	mixed := make(chan []string, 1)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got := reg.ListDevices()
				if !equal(got, oldSet) && !equal(got, newSet) {
					select {
					case mixed <- got:
					default:
					}
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		_, err := reg.Reload(context.Background())
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	select {
	case got := <-mixed:
		t.Fatalf("reader observed a mixed device set: %v", got)
	default:
	}
	assert.Equal(t, newSet, reg.ListDevices())
}

func TestNew_EmptyBeforeBuild(t *testing.T) {
	reg := New(t.TempDir(), zap.NewNop())
	assert.Empty(t, reg.ListDevices())
	_, err := reg.ListMetrics("any")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
