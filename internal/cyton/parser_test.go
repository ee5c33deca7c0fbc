// internal/cyton/parser_test.go
package cyton

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const daisyBanner = "OpenBCI V3 8-16 channel\nOn Board ADS1299 Device ID: 0x3E\nOn Daisy ADS1299 Device ID: 0x3E\nLIS3DH Device ID: 0x33\nFirmware: v2.0.0\n$$$"

type recordingSink struct {
	ready   []BoardInfo
	samples []Sample
	texts   []string
	syncs   []SyncResult
	dropped [][]int
	bad     []error
}

func (r *recordingSink) OnReady(info BoardInfo) { r.ready = append(r.ready, info) }
func (r *recordingSink) OnSample(s Sample) { r.samples = append(r.samples, s) }
func (r *recordingSink) OnEndOfText(text string) { r.texts = append(r.texts, text) }
func (r *recordingSink) OnSynced(res SyncResult) { r.syncs = append(r.syncs, res) }
func (r *recordingSink) OnDroppedPackets(missed []int) { r.dropped = append(r.dropped, missed) }
func (r *recordingSink) OnBadPacket(err error) { r.bad = append(r.bad, err) }

type manualClock struct{ ms int64 }

func (c *manualClock) now() time.Time { return time.UnixMilli(c.ms) }

func newTestParser(t *testing.T) (*StreamParser, *recordingSink, *manualClock) {
	t.Helper()
	sink := &recordingSink{}
	clock := &manualClock{ms: 1000}
	p := NewStreamParser(ParserConfig{Now: clock.now}, sink)
	return p, sink, clock
}

func packets(pkts ...Packet) []byte {
	var out []byte
	for _, p := range pkts {
		out = append(out, p[:]...)
	}
	return out
}

func TestStreamParser_ResetBanner(t *testing.T) {
	p, sink, _ := newTestParser(t)
	require.Equal(t, ModeReset, p.Mode())

	require.NoError(t, p.Feed([]byte(daisyBanner[:20])))
	assert.Empty(t, sink.ready)
	require.NoError(t, p.Feed([]byte(daisyBanner[20:])))

	require.Len(t, sink.ready, 1)
	info := sink.ready[0]
	assert.Equal(t, BoardDaisy, info.Board)
	assert.Equal(t, FirmwareV2, info.Firmware)
	assert.Equal(t, ChannelsDaisy, info.Channels)
	assert.Equal(t, float64(SampleRate125), info.SampleRate)
	assert.Equal(t, ModeNormal, p.Mode())
	assert.Equal(t, info.Board, p.Info().Board)
}

func TestStreamParser_BannerThenPacketsInOneChunk(t *testing.T) {
	p, sink, _ := newTestParser(t)

	chunk := append([]byte("OpenBCI V3 8-16 channel\nFirmware: v2.0.0\n$$$"), packets(testPacket(1), testPacket(2))...)
	require.NoError(t, p.Feed(chunk))

	require.Len(t, sink.ready, 1)
	assert.Equal(t, BoardDefault, sink.ready[0].Board)
	require.Len(t, sink.samples, 2)
	assert.Equal(t, 1, sink.samples[0].SampleNumber)
	assert.Equal(t, 2, sink.samples[1].SampleNumber)
}

func TestStreamParser_EndOfText(t *testing.T) {
	p, sink, _ := newTestParser(t)
	p.SetMode(ModeEndOfText)

	require.NoError(t, p.Feed([]byte("Success: Channel set to ")))
	require.NoError(t, p.Feed([]byte{5, '$', '$'}))
	assert.Empty(t, sink.texts)
	require.NoError(t, p.Feed([]byte("$")))

	require.Len(t, sink.texts, 1)
	assert.Equal(t, "Success: Channel set to \x05", sink.texts[0])
	assert.Equal(t, ModeNormal, p.Mode())
	assert.Empty(t, sink.ready)
}

func TestStreamParser_Realigns(t *testing.T) {
	p, sink, _ := newTestParser(t)
	p.SetMode(ModeNormal)

	chunk := append([]byte{0x01, StartByte, 0x02}, packets(testPacket(1), testPacket(2))...)
	require.NoError(t, p.Feed(chunk))

	require.Len(t, sink.samples, 2)
	require.Len(t, sink.bad, 1)
	assert.ErrorIs(t, sink.bad[0], ErrBadStartByte)
	assert.Equal(t, uint64(1), p.Stats().BadPackets)
}

func TestStreamParser_LoneCommaIsSkippedSilently(t *testing.T) {
	p, sink, _ := newTestParser(t)
	p.SetMode(ModeNormal)

	require.NoError(t, p.Feed(append([]byte{CmdSyncConfirmation}, packets(testPacket(1))...)))

	assert.Len(t, sink.samples, 1)
	assert.Empty(t, sink.bad)
}

func TestStreamParser_PacketSplitAcrossChunks(t *testing.T) {
	p, sink, _ := newTestParser(t)
	p.SetMode(ModeNormal)
	data := packets(testPacket(1), testPacket(2), testPacket(3))

	for i := 0; i < len(data); i += 7 {
		end := i + 7
		if end > len(data) {
			end = len(data)
		}
		require.NoError(t, p.Feed(data[i:end]))
	}

	require.Len(t, sink.samples, 3)
	assert.Empty(t, sink.bad)
	assert.Equal(t, uint64(len(data)), p.Stats().BytesIn)
}

func TestStreamParser_DroppedPackets(t *testing.T) {
	p, sink, _ := newTestParser(t)
	p.SetMode(ModeNormal)

	require.NoError(t, p.Feed(packets(testPacket(1), testPacket(4))))

	require.Len(t, sink.dropped, 1)
	assert.Equal(t, []int{2, 3}, sink.dropped[0])
	assert.Equal(t, uint64(2), p.Stats().MissedPackets)
}

func TestStreamParser_DaisyMerge(t *testing.T) {
	p, sink, _ := newTestParser(t)
	p.SetMode(ModeNormal)
	p.SetBoardInfo(newBoardInfo(BoardDaisy, FirmwareV2))

	require.NoError(t, p.Feed(packets(testPacket(1), testPacket(2), testPacket(3), testPacket(4))))

	require.Len(t, sink.samples, 2)
	assert.Len(t, sink.samples[0].Channels, ChannelsDaisy)
	assert.Equal(t, 1, sink.samples[0].SampleNumber)
	assert.Equal(t, 2, sink.samples[1].SampleNumber)
	assert.True(t, sink.samples[0].Daisy)
	assert.Equal(t, uint64(2), p.Stats().Samples)
}

func TestStreamParser_TimeSync(t *testing.T) {
	var counts [ChannelsPerBoard]int32
	setPacket := NewTimeSyncedPacket(1, PacketTimeSyncSet, counts, [2]byte{}, 500)

	t.Run("confirmed", func(t *testing.T) {
		p, sink, clock := newTestParser(t)
		p.SetMode(ModeNormal)

		p.BeginSync()
		assert.Equal(t, ModeTimeSyncSent, p.Mode())

		clock.ms = 1020
		require.NoError(t, p.Feed([]byte{CmdSyncConfirmation}))
		assert.Equal(t, ModeNormal, p.Mode())
		assert.Empty(t, sink.bad)

		clock.ms = 1040
		require.NoError(t, p.Feed(setPacket[:]))

		require.Len(t, sink.syncs, 1)
		res := sink.syncs[0]
		require.True(t, res.Valid)
		assert.Equal(t, int64(40), res.RoundTrip)
		assert.Equal(t, int64(20), res.Transmission)
		assert.Equal(t, int64(520), res.Offset)
		assert.Equal(t, int64(520), res.OffsetMaster)
		assert.False(t, res.CorrectedTransmission)
		assert.Equal(t, int64(520), p.TimeSync().Master())
	})

	t.Run("two commas do not confirm", func(t *testing.T) {
		p, sink, _ := newTestParser(t)
		p.SetMode(ModeNormal)
		p.BeginSync()

		require.NoError(t, p.Feed([]byte{CmdSyncConfirmation, CmdSyncConfirmation}))
		assert.Equal(t, ModeTimeSyncSent, p.Mode())

		require.NoError(t, p.Feed(setPacket[:]))
		require.Len(t, sink.syncs, 1)
		assert.False(t, sink.syncs[0].Valid)
		assert.ErrorIs(t, sink.syncs[0].Err, ErrSyncNoComma)
	})

	t.Run("not started", func(t *testing.T) {
		p, sink, _ := newTestParser(t)
		p.SetMode(ModeNormal)

		require.NoError(t, p.Feed(setPacket[:]))
		require.Len(t, sink.syncs, 1)
		assert.ErrorIs(t, sink.syncs[0].Err, ErrSyncNotStarted)
		assert.Len(t, sink.samples, 1, "the set packet still carries a sample")
	})
}

func TestStreamParser_ChunkTooLarge(t *testing.T) {
	sink := &recordingSink{}
	p := NewStreamParser(ParserConfig{BufferSize: PacketSize}, sink)
	p.SetMode(ModeNormal)

	err := p.Feed(make([]byte, PacketSize+1))
	assert.ErrorIs(t, err, ErrChunkTooLarge)
}

func TestStreamParser_ResetClearsBufferedBytes(t *testing.T) {
	p, sink, _ := newTestParser(t)
	p.SetMode(ModeNormal)
	pkt := testPacket(1)

	require.NoError(t, p.Feed(pkt[:20]))
	p.SetMode(ModeReset)
	p.SetMode(ModeNormal)
	require.NoError(t, p.Feed(packets(testPacket(2))))

	require.Len(t, sink.samples, 1)
	assert.Equal(t, 2, sink.samples[0].SampleNumber)
	assert.Empty(t, sink.dropped)
}
