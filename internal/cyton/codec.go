// internal/cyton/codec.go
package cyton

import (
	"fmt"
	"time"
)

// ValidGains lists the programmable amplifier gains and their command codes.
var ValidGains = map[int]byte{1: '0', 2: '1', 4: '2', 6: '3', 8: '4', 12: '5', 24: '6'}

// ScaleFactor converts raw ADC counts to volts for a given gain.
func ScaleFactor(gain int) float64 {
	return ADSVref / float64(gain) / adsMaxCount
}

// Codec decodes packets into samples. It keeps the per-channel scale factors,
// the accelerometer axis memory of time-synced packets and the clock offset.
type Codec struct {
	scales [ChannelsDaisy]float64
	daisy  bool
	axes   [3]float64
	offset int64
	last   int64
	count  uint64
	now    func() time.Time
	router *Router
}

// NewCodec builds a codec. Missing or zero gains default to DefaultGain.
func NewCodec(gains []int, daisy bool, now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	c := &Codec{daisy: daisy, now: now}
	for i := range c.scales {
		g := DefaultGain
		if i < len(gains) && gains[i] > 0 {
			g = gains[i]
		}
		c.scales[i] = ScaleFactor(g)
	}

	c.router = NewRouter()
	c.router.Handle(PacketStandardAccel, c.decodeStandardAccel)
	c.router.Handle(PacketStandardRawAux, c.decodeStandardRawAux)
	c.router.Handle(PacketUserDefined, c.decodeUserDefined)
	c.router.Handle(PacketTimeSyncSet, c.decodeTimeSyncedAccel)
	c.router.Handle(PacketTimeSyncedAccel, c.decodeTimeSyncedAccel)
	c.router.Handle(PacketTimeSyncedRawAux, c.decodeTimeSyncedRawAux)
	return c
}

// SetGain updates the scale factor of a 1-based channel.
func (c *Codec) SetGain(channel, gain int) error {
	if channel < 1 || channel > ChannelsDaisy {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	if _, ok := ValidGains[gain]; !ok {
		return fmt.Errorf("%w: gain %d", ErrInvalidArgument, gain)
	}
	c.scales[channel-1] = ScaleFactor(gain)
	return nil
}

// Scale returns the scale factor of a 1-based channel.
func (c *Codec) Scale(channel int) float64 {
	if channel < 1 || channel > ChannelsDaisy {
		return 0
	}
	return c.scales[channel-1]
}

func (c *Codec) SetDaisy(daisy bool) { c.daisy = daisy }

// SetTimeOffset sets the master offset added to board time.
func (c *Codec) SetTimeOffset(ms int64) { c.offset = ms }

// Decode validates the start byte then routes the packet by type.
func (c *Codec) Decode(p Packet) (Sample, error) {
	if !p.HasStartByte() {
		return Sample{}, fmt.Errorf("%w: 0x%02X", ErrBadStartByte, p[0])
	}
	s, err := c.router.Route(p)
	if err != nil {
		return Sample{}, err
	}
	c.count++
	s.Count = c.count
	return s, nil
}

// Now returns the host time in milliseconds, never going backwards.
func (c *Codec) Now() int64 {
	ms := c.now().UnixMilli()
	if ms < c.last {
		ms = c.last
	}
	c.last = ms
	return ms
}

func (c *Codec) channels(p Packet) []float64 {
	scales := c.scales[:ChannelsPerBoard]
	if c.daisy && p.SampleNumber()%2 == 0 {
		scales = c.scales[ChannelsPerBoard:]
	}
	counts := p.Counts()
	out := make([]float64, ChannelsPerBoard)
	for i, v := range counts {
		out[i] = float64(v) * scales[i]
	}
	return out
}

func (c *Codec) base(p Packet) Sample {
	return Sample{
		SampleNumber: p.SampleNumber(),
		Type:         p.Type(),
		Channels:     c.channels(p),
		StopByte:     p.StopByte(),
	}
}

func (c *Codec) decodeStandardAccel(p Packet) (Sample, error) {
	s := c.base(p)
	s.Accel = make([]float64, 3)
	for i := range s.Accel {
		s.Accel[i] = float64(interpret16(p[offsetAux+i*2:])) * AccelScale
	}
	s.Timestamp = c.Now()
	return s, nil
}

func (c *Codec) decodeStandardRawAux(p Packet) (Sample, error) {
	s := c.base(p)
	s.Aux = p.Aux()
	s.Timestamp = c.Now()
	return s, nil
}

func (c *Codec) decodeUserDefined(p Packet) (Sample, error) {
	s := c.base(p)
	s.Aux = p.Aux()
	s.Timestamp = c.Now()
	return s, nil
}

// Time-synced accel packets carry one axis each, chosen by sample number.
// The full reading is emitted with the Z packet.
func (c *Codec) decodeTimeSyncedAccel(p Packet) (Sample, error) {
	s := c.base(p)
	s.BoardTime = p.BoardTime()
	s.Timestamp = int64(s.BoardTime) + c.offset
	v := float64(interpret16(p[offsetAux:])) * AccelScale
	switch s.SampleNumber % 10 {
	case 0:
		c.axes[0] = v
	case 1:
		c.axes[1] = v
	case 2:
		c.axes[2] = v
		s.Accel = []float64{c.axes[0], c.axes[1], c.axes[2]}
	}
	return s, nil
}

func (c *Codec) decodeTimeSyncedRawAux(p Packet) (Sample, error) {
	s := c.base(p)
	s.BoardTime = p.BoardTime()
	s.Timestamp = int64(s.BoardTime) + c.offset
	s.Aux = append([]byte(nil), p[offsetAux:offsetAux+2]...)
	return s, nil
}
