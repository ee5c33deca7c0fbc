// internal/cyton/goertzel_test.go
package cyton

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoertzel_BlockCompletesAfterBlockSize(t *testing.T) {
	g := NewGoertzel(2, SampleRate250, 31.5)
	assert.Equal(t, 2, g.Channels())

	binHz := 8.0 * SampleRate250 / GoertzelBlockSize
	var (
		mags []float64
		ok   bool
	)
	for i := 0; i <= GoertzelBlockSize; i++ {
		x := math.Sin(2 * math.Pi * binHz * float64(i) / SampleRate250)
		mags, ok = g.Process([]float64{x, 0})
		if i < GoertzelBlockSize {
			require.False(t, ok, "sample %d", i)
		}
	}
	require.True(t, ok)
	require.Len(t, mags, 2)
	assert.InEpsilon(t, GoertzelBlockSize/2.0, mags[0], 0.1)
	assert.Zero(t, mags[1])

	// the next block starts from scratch
	_, ok = g.Process([]float64{1, 1})
	assert.False(t, ok)
}

func TestGoertzel_MissingChannelsReadAsZero(t *testing.T) {
	g := NewGoertzel(3, SampleRate250, 31.5)
	var mags []float64
	for i := 0; i <= GoertzelBlockSize; i++ {
		mags, _ = g.Process([]float64{1})
	}
	require.Len(t, mags, 3)
	assert.Zero(t, mags[2])
}
