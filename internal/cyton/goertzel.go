// internal/cyton/goertzel.go
package cyton

import "math"

// GoertzelBlockSize is N in the Goertzel recurrence.
const GoertzelBlockSize = 62

// Goertzel tracks the magnitude of a single frequency bin on every channel.
// A block completes on the sample after BlockSize samples have been added.
type Goertzel struct {
	coeff float64
	q1    []float64
	q2    []float64
	index int
}

func NewGoertzel(channels int, sampleRate, targetHz float64) *Goertzel {
	k := math.Floor(0.5 + GoertzelBlockSize*targetHz/sampleRate)
	w := 2 * math.Pi * k / GoertzelBlockSize
	return &Goertzel{
		coeff: 2 * math.Cos(w),
		q1:    make([]float64, channels),
		q2:    make([]float64, channels),
	}
}

// Process adds one sample. When a block completes it returns the voltage
// magnitude of every channel and resets.
func (g *Goertzel) Process(values []float64) ([]float64, bool) {
	for i := range g.q1 {
		var x float64
		if i < len(values) {
			x = values[i]
		}
		q0 := g.coeff*g.q1[i] - g.q2[i] + x
		g.q2[i] = g.q1[i]
		g.q1[i] = q0
	}
	g.index++
	if g.index <= GoertzelBlockSize {
		return nil, false
	}

	out := make([]float64, len(g.q1))
	for i := range g.q1 {
		q1, q2 := g.q1[i], g.q2[i]
		out[i] = math.Sqrt(q1*q1 + q2*q2 - q1*q2*g.coeff)
	}
	g.Reset()
	return out, true
}

func (g *Goertzel) Reset() {
	for i := range g.q1 {
		g.q1[i], g.q2[i] = 0, 0
	}
	g.index = 0
}

// Channels returns the number of tracked channels.
func (g *Goertzel) Channels() int { return len(g.q1) }
