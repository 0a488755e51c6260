package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vizlab-service/internal/models"
)

// fakeSource отдает заранее заданные сигналы и считает обращения
type fakeSource struct {
	signals map[models.SignalKey]*models.Signal
	fetches atomic.Int64
}

func (f *fakeSource) GetSignal(key models.SignalKey) (*models.Signal, error) {
	f.fetches.Add(1)
	s, ok := f.signals[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, key.ID())
	}
	return s, nil
}

func signal(values []float64, lbls []int) *models.Signal {
	x := make([]int, len(values))
	for i := range x {
		x[i] = i
	}
	return &models.Signal{
		Values: values,
		Time:   models.SignalTime{Type: models.TimeTypeIndex, Values: x},
		Labels: models.SignalLabels{Type: models.LabelTypeAttack, Values: lbls},
	}
}

func sk(metric string) models.SignalKey {
	return models.SignalKey{Device: "rpi4", Workload: "aes", Run: "run_01", Metric: metric}
}

func rr(num, den string) models.RatioRequest {
	return models.RatioRequest{Device: "rpi4", Workload: "aes", Run: "run_01", Numerator: num, Denominator: den}
}

func newFakeSource() *fakeSource {
	return &fakeSource{signals: map[models.SignalKey]*models.Signal{
		sk("a"):     signal([]float64{4, 6, 8, 10, 12}, []int{0, 1, 0, 0, 0}),
		sk("b"):     signal([]float64{2, 0, 4}, []int{0, 0, 1}),
		sk("c"):     signal([]float64{1, 2, 4, 5, 6}, []int{0, 0, 0, 0, 0}),
		sk("empty"): signal([]float64{}, []int{}),
	}}
}

func TestDivide(t *testing.T) {
	got := Divide([]float64{4, 6}, []float64{2, 0})
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0])
	assert.True(t, math.IsNaN(got[1]), "division by zero must produce NaN")

	got = Divide([]float64{0, math.Inf(1)}, []float64{0, 1})
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]), "non-finite result is normalised to NaN")
}

func TestBuildRatio(t *testing.T) {
	key := rr("a", "b").Key()
	src := newFakeSource()
	num, den := src.signals[sk("a")], src.signals[sk("b")]

	r := BuildRatio(key, num, den)

	require.Equal(t, 3, r.Len(), "truncated to the shorter signal")
	assert.Equal(t, []int{0, 1, 2}, r.X)
	assert.Equal(t, 2.0, r.Values[0])
	assert.True(t, math.IsNaN(r.Values[1]))
	assert.Equal(t, 2.0, r.Values[2])
	assert.Equal(t, []int{0, 1, 1}, r.Labels, "labels are merged with OR")
	assert.Equal(t, "a / b", r.Name)
	assert.Equal(t, "rpi4 | aes | run_01 | a / b", r.DisplayName)
	assert.Equal(t, 1, r.Summary.NonFinite)
	assert.Len(t, r.Labels, len(r.Values))
}

func TestBuildRatio_LargeValuesEncode(t *testing.T) {
	num := signal([]float64{1e200, 2e200}, []int{0, 1})
	den := signal([]float64{1, 1}, []int{0, 0})

	r := BuildRatio(rr("a", "b").Key(), num, den)
	assert.InDelta(t, 1.5, r.Summary.Mean/1e200, 1e-9)
	assert.False(t, math.IsNaN(r.Summary.StdDev))

	_, err := json.Marshal(r)
	assert.NoError(t, err)
}

func TestBuildRatio_Empty(t *testing.T) {
	src := newFakeSource()
	r := BuildRatio(rr("empty", "a").Key(), src.signals[sk("empty")], src.signals[sk("a")])
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Labels)
}

func TestEngine_ComputeRatio_Cache(t *testing.T) {
	src := newFakeSource()
	engine := NewEngine(src, zap.NewNop())
	var computed atomic.Int64
	engine.OnCompute(func(models.RatioKey) { computed.Add(1) })
	sess := NewSession("s1")

	first, cached, err := engine.ComputeRatio(sess, rr("a", "c"))
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, int64(2), src.fetches.Load())

	second, cached, err := engine.ComputeRatio(sess, rr("a", "c"))
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Same(t, first, second, "second request must be served from the session cache")
	assert.Equal(t, int64(2), src.fetches.Load(), "no signal fetch on cache hit")
	assert.Equal(t, int64(1), computed.Load())

	t.Run("force recomputes", func(t *testing.T) {
		req := rr("a", "c")
		req.Force = true
		third, cached, err := engine.ComputeRatio(sess, req)
		require.NoError(t, err)
		assert.False(t, cached)
		assert.NotSame(t, first, third)
		assert.Equal(t, first.Values, third.Values)
		assert.Equal(t, int64(4), src.fetches.Load())
	})

	t.Run("sessions do not share cache", func(t *testing.T) {
		before := src.fetches.Load()
		_, cached, err := engine.ComputeRatio(NewSession("s2"), rr("a", "c"))
		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, before+2, src.fetches.Load())
	})
}

func TestEngine_ComputeRatio_Concurrent(t *testing.T) {
	src := newFakeSource()
	engine := NewEngine(src, zap.NewNop())
	sess := NewSession("s1")

	var wg sync.WaitGroup
	results := make([]*models.RatioSignal, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, _, err := engine.ComputeRatio(sess, rr("c", "a"))
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0].Values, r.Values)
	}
	assert.Equal(t, 1, sess.CacheLen())
}

func TestEngine_ComputeRatio_Errors(t *testing.T) {
	engine := NewEngine(newFakeSource(), zap.NewNop())
	sess := NewSession("s1")

	cases := []struct {
		name string
		req  models.RatioRequest
		want error
	}{
		{"incomplete", models.RatioRequest{Device: "rpi4", Numerator: "a", Denominator: "b"}, models.ErrInvalidRequest},
		{"same metric", rr("a", "a"), models.ErrInvalidRequest},
		{"unknown numerator", rr("x", "a"), models.ErrNotFound},
		{"unknown denominator", rr("a", "x"), models.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := engine.ComputeRatio(sess, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, 0, sess.CacheLen(), "failures are not cached")
}

func TestEngine_ComputeAll(t *testing.T) {
	engine := NewEngine(newFakeSource(), zap.NewNop())
	sess := NewSession("s1")
	sess.PutResult("stale", &models.RatioSignal{})

	resp := engine.ComputeAll(sess, []models.RatioRequest{
		{EntryID: "one", Device: "rpi4", Workload: "aes", Run: "run_01", Numerator: "a", Denominator: "b"},
		{Device: "rpi4", Workload: "aes", Numerator: "a"},
		{EntryID: "bad", Device: "rpi4", Workload: "aes", Run: "run_01", Numerator: "a", Denominator: "x"},
		{Device: "rpi4", Workload: "aes", Run: "run_01", Numerator: "c", Denominator: "a"},
	})

	require.Len(t, resp.Ratios, 2)
	assert.Equal(t, "one", resp.Ratios[0].EntryID)
	assert.Equal(t, "3", resp.Ratios[1].EntryID)
	assert.Equal(t, []string{"1"}, resp.Skipped)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "bad", resp.Errors[0].EntryID)

	results := sess.Results()
	require.Len(t, results, 2, "collection is replaced, not merged")
	assert.Equal(t, "one", results[0].EntryID)
	_, ok := sess.Result("stale")
	assert.False(t, ok)
}

func TestEngine_ComputeAll_DuplicateEntryIDs(t *testing.T) {
	engine := NewEngine(newFakeSource(), zap.NewNop())
	sess := NewSession("s1")

	resp := engine.ComputeAll(sess, []models.RatioRequest{
		{EntryID: "1", Device: "rpi4", Workload: "aes", Run: "run_01", Numerator: "a", Denominator: "b"},
		{Device: "rpi4", Workload: "aes", Run: "run_01", Numerator: "c", Denominator: "a"},
		{EntryID: "1", Device: "rpi4", Workload: "aes", Run: "run_01", Numerator: "a", Denominator: "c"},
	})

	require.Len(t, resp.Ratios, 1)
	assert.Equal(t, "a / b", resp.Ratios[0].Ratio.Name)
	require.Len(t, resp.Errors, 2)
	for _, e := range resp.Errors {
		assert.Equal(t, "1", e.EntryID)
		assert.Contains(t, e.Error, "duplicate entry_id")
	}

	results := sess.Results()
	require.Len(t, results, 1)
	r, ok := sess.Result("1")
	require.True(t, ok)
	assert.Equal(t, "a / b", r.Name)
}
