package dataset

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vizlab-service/internal/models"
	"vizlab-service/internal/testutil"
)

func TestReadFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	testutil.WriteFile(t, path, testutil.SampleRun)

	fr, err := ReadFrame(path)
	require.NoError(t, err)

	assert.Equal(t, 5, fr.Len())
	assert.True(t, fr.Has("cycles"))
	assert.False(t, fr.Has("missing"))

	cycles, err := fr.Column("cycles")
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 200, 300, 400, 500}, cycles, "row order must be preserved")

	assert.Equal(t, []int{0, 1, 2, 3, 4}, fr.Index())
}

func TestReadFrame_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadFrame(filepath.Join(t.TempDir(), "nope.csv"))
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := parseFrame("empty.csv", strings.NewReader(""))
		assert.ErrorIs(t, err, models.ErrMalformedData)
	})

	t.Run("ragged rows", func(t *testing.T) {
		_, err := parseFrame("ragged.csv", strings.NewReader("a,b\n1,2\n3\n"))
		assert.ErrorIs(t, err, models.ErrMalformedData)
	})
}

func TestFrame_Column(t *testing.T) {
	fr, err := parseFrame("mixed.csv", strings.NewReader(
		"index,good,gaps,text\n0,1.5,,x\n1,2.5,nan,y\n2,-3e2,NaN,z\n"))
	require.NoError(t, err)

	good, err := fr.Column("good")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5, -300}, good)

	gaps, err := fr.Column("gaps")
	require.NoError(t, err)
	require.Len(t, gaps, 3)
	for _, v := range gaps {
		assert.True(t, math.IsNaN(v))
	}

	_, err = fr.Column("text")
	assert.ErrorIs(t, err, models.ErrMalformedData, "non-numeric column must be malformed")

	_, err = fr.Column("absent")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFrame_Index(t *testing.T) {
	t.Run("uses index column", func(t *testing.T) {
		fr, err := parseFrame("x.csv", strings.NewReader("index,v\n10,1\n11,2\n"))
		require.NoError(t, err)
		assert.Equal(t, []int{10, 11}, fr.Index())
	})

	t.Run("falls back to row numbers", func(t *testing.T) {
		fr, err := parseFrame("x.csv", strings.NewReader("v\n1\n2\n3\n"))
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2}, fr.Index())
	})

	t.Run("fractional index falls back", func(t *testing.T) {
		fr, err := parseFrame("x.csv", strings.NewReader("index,v\n0.5,1\n1.5,2\n"))
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, fr.Index())
	})
}

type staticLocator map[string]string

func (s staticLocator) Locate(device, workload, run string) (string, error) {
	path, ok := s[device+"/"+workload+"/"+run]
	if !ok {
		return "", models.ErrNotFound
	}
	return path, nil
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run_01.csv")
	testutil.WriteFile(t, path, testutil.SampleRun)

	loader := NewLoader(staticLocator{"rpi4/aes/run_01": path})

	values, err := loader.Load("rpi4", "aes", "run_01", "instructions")
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 0, 100, 200, 250}, values)

	_, err = loader.Load("rpi4", "aes", "run_01", "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = loader.Load("rpi4", "aes", "run_02", "cycles")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
