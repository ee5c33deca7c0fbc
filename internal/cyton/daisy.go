// internal/cyton/daisy.go
package cyton

// DaisyMerger pairs lower-board (odd) and upper-board (even) samples into
// 16-channel samples.
type DaisyMerger struct {
	pending *Sample
	missed  int
}

func NewDaisyMerger() *DaisyMerger {
	return &DaisyMerger{}
}

// Observe consumes one board half. It returns the merged sample and true when
// an even sample completes a pending odd one.
func (d *DaisyMerger) Observe(s Sample) (Sample, bool) {
	if s.SampleNumber%2 == 1 {
		if d.pending != nil {
			d.missed++
		}
		lower := s
		d.pending = &lower
		return Sample{}, false
	}

	if d.pending == nil {
		d.missed++
		return Sample{}, false
	}
	lower := *d.pending
	d.pending = nil
	return merge(lower, s), true
}

// Missed returns how many halves could not be paired.
func (d *DaisyMerger) Missed() int { return d.missed }

func (d *DaisyMerger) Reset() {
	d.pending = nil
	d.missed = 0
}

func merge(lower, upper Sample) Sample {
	channels := make([]float64, 0, len(lower.Channels)+len(upper.Channels))
	channels = append(channels, lower.Channels...)
	channels = append(channels, upper.Channels...)

	out := Sample{
		SampleNumber: upper.SampleNumber / 2,
		Type:         upper.Type,
		Channels:     channels,
		Aux:          lower.Aux,
		UpperAux:     upper.Aux,
		BoardTime:    upper.BoardTime,
		Timestamp:    (lower.Timestamp + upper.Timestamp) / 2,
		Count:        upper.Count,
		StopByte:     upper.StopByte,
		Daisy:        true,
	}
	switch {
	case lower.HasAccel():
		out.Accel = lower.Accel
	case upper.Accel != nil:
		out.Accel = upper.Accel
	}
	return out
}
