// internal/cyton/ringbuffer_test.go
package cyton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPacket(sn byte) Packet {
	var counts [ChannelsPerBoard]int32
	for i := range counts {
		counts[i] = int32(sn)*100 + int32(i)
	}
	return NewPacket(sn, PacketStandardAccel, counts, [auxSize]byte{})
}

func TestRingBuffer_SplitPacket(t *testing.T) {
	r := NewRingBuffer(DefaultBufferSize)
	p := testPacket(7)

	_, err := r.Merge(p[:10])
	require.NoError(t, err)
	assert.Equal(t, 0, r.PacketsIn())
	assert.Equal(t, 10, r.LooseBytes())

	_, ok := r.Strip()
	assert.False(t, ok)
	assert.Equal(t, 10, r.Len(), "a failed strip leaves the buffer untouched")

	_, err = r.Merge(p[10:])
	require.NoError(t, err)
	assert.Equal(t, 1, r.PacketsIn())
	assert.Equal(t, 0, r.LooseBytes())

	got, ok := r.Strip()
	require.True(t, ok)
	assert.Equal(t, p, got)

	_, ok = r.Strip()
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRingBuffer_AnySplitCountsPackets(t *testing.T) {
	const capacity = 5 * PacketSize
	tests := []struct {
		name     string
		start    int
		packets  int
		loose    int
		chunkLen int
	}{
		{"byte at a time", 0, 3, 10, 1},
		{"odd chunks", 0, 3, 10, 7},
		{"packet sized chunks", 0, 2, 0, PacketSize},
		{"single chunk", 0, 4, 32, 4*PacketSize + 32},
		{"mid buffer start", 20, 3, 5, 50},
		{"start near the end wraps", capacity - 3, 3, 10, 13},
		{"start at the last byte", capacity - 1, 1, 1, 2},
		{"loose bytes only", 40, 0, 17, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRingBuffer(capacity)
			r.writePos, r.readPos = tt.start, tt.start

			var stream []byte
			want := make([]Packet, 0, tt.packets)
			for i := 0; i < tt.packets; i++ {
				p := testPacket(byte(i + 1))
				want = append(want, p)
				stream = append(stream, p[:]...)
			}
			tail := testPacket(99)
			stream = append(stream, tail[:tt.loose]...)

			for off := 0; off < len(stream); off += tt.chunkLen {
				end := off + tt.chunkLen
				if end > len(stream) {
					end = len(stream)
				}
				_, err := r.Merge(stream[off:end])
				require.NoError(t, err)
			}

			assert.Equal(t, tt.packets, r.PacketsIn())
			assert.Equal(t, tt.loose, r.LooseBytes())
			for i, p := range want {
				got, ok := r.Strip()
				require.True(t, ok)
				assert.Equal(t, p, got, "packet %d", i)
			}
			_, ok := r.Strip()
			assert.False(t, ok)
			assert.Equal(t, tt.loose, r.Len())
		})
	}
}

func TestRingBuffer_EmptyStripKeepsPositions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(r *RingBuffer)
	}{
		{"fresh", func(r *RingBuffer) {}},
		{"after draining", func(r *RingBuffer) {
			p := testPacket(1)
			_, _ = r.Merge(p[:])
			_, _ = r.Strip()
		}},
		{"with loose bytes", func(r *RingBuffer) {
			p := testPacket(2)
			_, _ = r.Merge(p[:PacketSize-1])
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRingBuffer(3 * PacketSize)
			tt.prepare(r)
			readPos, writePos, loose := r.readPos, r.writePos, r.looseBytes

			for i := 0; i < 3; i++ {
				_, ok := r.Strip()
				assert.False(t, ok)
			}
			assert.Equal(t, readPos, r.readPos)
			assert.Equal(t, writePos, r.writePos)
			assert.Equal(t, loose, r.looseBytes)
			assert.Equal(t, 0, r.packetsIn)
		})
	}
}

func TestRingBuffer_Wraps(t *testing.T) {
	r := NewRingBuffer(50)

	for sn := byte(1); sn <= 5; sn++ {
		p := testPacket(sn)
		_, err := r.Merge(p[:])
		require.NoError(t, err)

		got, ok := r.Strip()
		require.True(t, ok)
		assert.Equal(t, p, got, "packet %d", sn)
	}
}

func TestRingBuffer_OverrunDropsOldestPackets(t *testing.T) {
	r := NewRingBuffer(2 * PacketSize)
	p1, p2, p3 := testPacket(1), testPacket(2), testPacket(3)

	_, err := r.Merge(append(p1[:], p2[:]...))
	require.NoError(t, err)

	dropped, err := r.Merge(p3[:])
	assert.ErrorIs(t, err, ErrOverrun)
	assert.Equal(t, PacketSize, dropped)
	assert.Equal(t, 2, r.PacketsIn())

	got, ok := r.Strip()
	require.True(t, ok)
	assert.Equal(t, p2, got)
	got, ok = r.Strip()
	require.True(t, ok)
	assert.Equal(t, p3, got)
}

func TestRingBuffer_ChunkTooLarge(t *testing.T) {
	r := NewRingBuffer(PacketSize)

	_, err := r.Merge(make([]byte, PacketSize+1))
	assert.ErrorIs(t, err, ErrChunkTooLarge)
	assert.Equal(t, 0, r.Len())
}

func TestRingBuffer_PeekAndDiscard(t *testing.T) {
	r := NewRingBuffer(40)
	_, err := r.Merge([]byte{1, 2, 3})
	require.NoError(t, err)

	b, ok := r.Peek(2)
	require.True(t, ok)
	assert.Equal(t, byte(3), b)
	_, ok = r.Peek(3)
	assert.False(t, ok)

	r.Discard(2)
	b, ok = r.Peek(0)
	require.True(t, ok)
	assert.Equal(t, byte(3), b)

	r.Discard(10)
	assert.Equal(t, 0, r.Len())
}

func TestRingBuffer_Reset(t *testing.T) {
	r := NewRingBuffer(0)
	assert.Equal(t, DefaultBufferSize, r.Cap())

	p := testPacket(1)
	_, err := r.Merge(p[:])
	require.NoError(t, err)
	r.Reset()
	assert.Equal(t, 0, r.Len())
	_, ok := r.Strip()
	assert.False(t, ok)
}
