// internal/cyton/codec_test.go
package cyton

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestInterpret24(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want int32
	}{
		{"zero", []byte{0x00, 0x00, 0x00}, 0},
		{"one", []byte{0x00, 0x00, 0x01}, 1},
		{"max positive", []byte{0x7F, 0xFF, 0xFF}, 8388607},
		{"minus one", []byte{0xFF, 0xFF, 0xFF}, -1},
		{"min negative", []byte{0x80, 0x00, 0x00}, -8388608},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, interpret24(tt.in))

			buf := make([]byte, 3)
			putInt24(buf, tt.want)
			assert.Equal(t, tt.in, buf)
		})
	}
}

func TestPacket_Fields(t *testing.T) {
	counts := [ChannelsPerBoard]int32{1, -1, 2, -2, 3, -3, 8388607, -8388608}
	p := NewTimeSyncedPacket(42, PacketTimeSyncedRawAux, counts, [2]byte{0xAB, 0xCD}, 123456)

	assert.True(t, p.HasStartByte())
	assert.True(t, p.HasStopByte())
	assert.Equal(t, 42, p.SampleNumber())
	assert.Equal(t, PacketTimeSyncedRawAux, p.Type())
	assert.Equal(t, byte(0xC5), p.StopByte())
	assert.Equal(t, counts, p.Counts())
	assert.Equal(t, uint32(123456), p.BoardTime())
	assert.Equal(t, []byte{0xAB, 0xCD}, p.Aux()[:2])
}

func TestCodec_StandardAccel(t *testing.T) {
	c := NewCodec(nil, false, fixedClock(1000))
	counts := [ChannelsPerBoard]int32{1000, -1000}
	aux := [auxSize]byte{0x00, 0x10, 0xFF, 0xF0, 0x1F, 0x40}

	s, err := c.Decode(NewPacket(3, PacketStandardAccel, counts, aux))
	require.NoError(t, err)

	scale := ScaleFactor(DefaultGain)
	assert.Equal(t, 3, s.SampleNumber)
	assert.InDelta(t, 1000*scale, s.Channels[0], 1e-12)
	assert.InDelta(t, -1000*scale, s.Channels[1], 1e-12)
	require.Len(t, s.Accel, 3)
	assert.InDelta(t, 16*AccelScale, s.Accel[0], 1e-12)
	assert.InDelta(t, -16*AccelScale, s.Accel[1], 1e-12)
	assert.InDelta(t, 1.0, s.Accel[2], 1e-12)
	assert.Equal(t, int64(1000), s.Timestamp)
	assert.Equal(t, uint64(1), s.Count)
}

func TestCodec_RawAux(t *testing.T) {
	c := NewCodec(nil, false, fixedClock(1))
	aux := [auxSize]byte{1, 2, 3, 4, 5, 6}

	for _, typ := range []PacketType{PacketStandardRawAux, PacketUserDefined} {
		s, err := c.Decode(NewPacket(1, typ, [ChannelsPerBoard]int32{}, aux))
		require.NoError(t, err)
		assert.Equal(t, aux[:], s.Aux)
		assert.Nil(t, s.Accel)
	}
}

func TestCodec_Gain(t *testing.T) {
	c := NewCodec([]int{1}, false, nil)
	assert.InDelta(t, ADSVref/adsMaxCount, c.Scale(1), 1e-15)
	assert.Equal(t, ScaleFactor(DefaultGain), c.Scale(2))

	require.NoError(t, c.SetGain(2, 8))
	assert.Equal(t, ScaleFactor(8), c.Scale(2))

	assert.ErrorIs(t, c.SetGain(0, 8), ErrInvalidChannel)
	assert.ErrorIs(t, c.SetGain(17, 8), ErrInvalidChannel)
	assert.ErrorIs(t, c.SetGain(1, 3), ErrInvalidArgument)
}

func TestCodec_DaisyUsesUpperScales(t *testing.T) {
	gains := make([]int, ChannelsDaisy)
	for i := range gains {
		gains[i] = 24
		if i >= ChannelsPerBoard {
			gains[i] = 1
		}
	}
	c := NewCodec(gains, true, nil)
	counts := [ChannelsPerBoard]int32{100}

	lower, err := c.Decode(NewPacket(1, PacketStandardAccel, counts, [auxSize]byte{}))
	require.NoError(t, err)
	upper, err := c.Decode(NewPacket(2, PacketStandardAccel, counts, [auxSize]byte{}))
	require.NoError(t, err)

	assert.InDelta(t, 100*ScaleFactor(24), lower.Channels[0], 1e-12)
	assert.InDelta(t, 100*ScaleFactor(1), upper.Channels[0], 1e-12)
}

func TestCodec_TimeSyncedAccelAxes(t *testing.T) {
	c := NewCodec(nil, false, nil)
	c.SetTimeOffset(500)
	var counts [ChannelsPerBoard]int32

	axis := func(v int16) [2]byte { return [2]byte{byte(uint16(v) >> 8), byte(uint16(v))} }

	x, err := c.Decode(NewTimeSyncedPacket(10, PacketTimeSyncedAccel, counts, axis(8), 1000))
	require.NoError(t, err)
	assert.Nil(t, x.Accel)
	assert.Equal(t, int64(1500), x.Timestamp)

	_, err = c.Decode(NewTimeSyncedPacket(11, PacketTimeSyncedAccel, counts, axis(-8), 1004))
	require.NoError(t, err)

	z, err := c.Decode(NewTimeSyncedPacket(12, PacketTimeSyncedAccel, counts, axis(8000), 1008))
	require.NoError(t, err)
	require.Len(t, z.Accel, 3)
	assert.InDelta(t, 8*AccelScale, z.Accel[0], 1e-12)
	assert.InDelta(t, -8*AccelScale, z.Accel[1], 1e-12)
	assert.InDelta(t, 1.0, z.Accel[2], 1e-12)
	assert.Equal(t, uint32(1008), z.BoardTime)
}

func TestCodec_Rejects(t *testing.T) {
	c := NewCodec(nil, false, nil)

	bad := testPacket(1)
	bad[0] = 0x00
	_, err := c.Decode(bad)
	assert.ErrorIs(t, err, ErrBadStartByte)

	bad = testPacket(1)
	bad[offsetStop] = 0xB0
	_, err = c.Decode(bad)
	assert.ErrorIs(t, err, ErrBadStopByte)

	bad = testPacket(1)
	bad[offsetStop] = StopByte | 0x0A
	_, err = c.Decode(bad)
	assert.ErrorIs(t, err, ErrUnknownPacketType)
}

func TestRouter_UnknownTypeNeverDecodes(t *testing.T) {
	r := NewRouter()
	called := false
	r.Handle(PacketStandardAccel, func(p Packet) (Sample, error) {
		called = true
		return Sample{}, nil
	})

	p := NewPacket(1, PacketUserDefined, [ChannelsPerBoard]int32{}, [auxSize]byte{})
	_, err := r.Route(p)
	assert.ErrorIs(t, err, ErrUnknownPacketType)
	assert.False(t, called)

	_, err = r.Route(testPacket(1))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestRouter_DispatchesToMatchingDecoderOnly(t *testing.T) {
	types := []PacketType{
		PacketStandardAccel, PacketStandardRawAux, PacketUserDefined,
		PacketTimeSyncSet, PacketTimeSyncedAccel, PacketTimeSyncedRawAux,
	}
	r := NewRouter()
	calls := make(map[PacketType]int)
	for _, typ := range types {
		typ := typ
		r.Handle(typ, func(p Packet) (Sample, error) {
			calls[typ]++
			return Sample{SampleNumber: p.SampleNumber()}, nil
		})
	}

	p := NewTimeSyncedPacket(9, PacketTimeSyncedAccel, [ChannelsPerBoard]int32{}, [2]byte{}, 1234)
	s, err := r.Route(p)
	require.NoError(t, err)
	assert.Equal(t, 9, s.SampleNumber)
	assert.Equal(t, map[PacketType]int{PacketTimeSyncedAccel: 1}, calls)
}

func TestCodec_NowNeverGoesBack(t *testing.T) {
	ms := int64(2000)
	c := NewCodec(nil, false, func() time.Time { return time.UnixMilli(ms) })

	assert.Equal(t, int64(2000), c.Now())
	ms = 1000
	assert.Equal(t, int64(2000), c.Now())
	ms = 3000
	assert.Equal(t, int64(3000), c.Now())
}

func TestDroppedBetween(t *testing.T) {
	tests := []struct {
		name     string
		previous int
		current  int
		want     []int
	}{
		{"first packet", -1, 5, nil},
		{"consecutive", 4, 5, nil},
		{"repeat", 5, 5, nil},
		{"wrap", 255, 0, nil},
		{"gap", 4, 7, []int{5, 6}},
		{"gap across wrap", 254, 1, []int{255, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DroppedBetween(tt.previous, tt.current))
		})
	}
}
