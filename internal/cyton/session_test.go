// internal/cyton/session_test.go
package cyton_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cyton-service/internal/cyton"
	"cyton-service/internal/simulator"
)

// flakyBoard lets a test break the read side of a simulated board.
type flakyBoard struct {
	*simulator.Board
	failRead atomic.Bool
}

func (f *flakyBoard) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	if f.failRead.Load() {
		return nil, errors.New("device unplugged")
	}
	return f.Board.Read(ctx, maxBytes)
}

type sessionFixture struct {
	session *cyton.Session
	board   *flakyBoard
	events  chan cyton.Event
}

func newSessionFixture(t *testing.T, cfg simulator.Config) *sessionFixture {
	t.Helper()
	logger := zap.NewNop()
	f := &sessionFixture{
		board:  &flakyBoard{Board: simulator.NewBoard(cfg, logger)},
		events: make(chan cyton.Event, 4096),
	}
	opts := cyton.DefaultOptions()
	opts.ReadyTimeout = 2 * time.Second
	f.session = cyton.NewSession(f.board, opts, logger, func(e cyton.Event) {
		select {
		case f.events <- e:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.session.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return f
}

func (f *sessionFixture) waitFor(t *testing.T, typ cyton.EventType) cyton.Event {
	t.Helper()
	return f.waitUntil(t, typ, func(cyton.Event) bool { return true })
}

func (f *sessionFixture) waitUntil(t *testing.T, typ cyton.EventType, match func(cyton.Event) bool) cyton.Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case e := <-f.events:
			if e.Type == typ && match(e) {
				return e
			}
		case <-timeout:
			t.Fatalf("no %s event", typ)
			return cyton.Event{}
		}
	}
}

func quietBoard() simulator.Config {
	cfg := simulator.DefaultConfig()
	cfg.AlphaMicroV = 0
	cfg.NoiseMicroV = 0.05
	return cfg
}

func TestSession_CommandsRequireConnection(t *testing.T) {
	f := newSessionFixture(t, quietBoard())
	ctx := context.Background()

	assert.ErrorIs(t, f.session.StreamStart(ctx), cyton.ErrNotConnected)
	assert.ErrorIs(t, f.session.ChannelOff(ctx, 1), cyton.ErrNotConnected)
	assert.ErrorIs(t, f.session.Disconnect(ctx), cyton.ErrNotConnected)
	_, err := f.session.ImpedanceTestChannel(ctx, 1)
	assert.ErrorIs(t, err, cyton.ErrNotConnected)

	st, err := f.session.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Connected)
	assert.Equal(t, f.session.ID(), st.SessionID)
}

func TestSession_ConnectAndStream(t *testing.T) {
	cfg := quietBoard()
	cfg.Daisy = true
	f := newSessionFixture(t, cfg)
	ctx := context.Background()

	info, err := f.session.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, cyton.BoardDaisy, info.Board)
	assert.Equal(t, cyton.FirmwareV2, info.Firmware)
	assert.Equal(t, cyton.ChannelsDaisy, info.Channels)

	_, err = f.session.Connect(ctx)
	assert.ErrorIs(t, err, cyton.ErrAlreadyConnected)

	require.NoError(t, f.session.StreamStart(ctx))
	assert.ErrorIs(t, f.session.StreamStart(ctx), cyton.ErrAlreadyStreaming)

	e := f.waitFor(t, cyton.EventSample)
	require.NotNil(t, e.Sample)
	assert.Len(t, e.Sample.Channels, cyton.ChannelsDaisy)
	assert.True(t, e.Sample.Daisy)

	_, err = f.session.PrintRegisterSettings(ctx)
	assert.ErrorIs(t, err, cyton.ErrStreaming)

	require.NoError(t, f.session.StreamStop(ctx))
	st, err := f.session.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Streaming)
	assert.NotZero(t, st.Stats.Samples)
	assert.Zero(t, st.Stats.MissedPackets)

	require.NoError(t, f.session.Disconnect(ctx))
	f.waitFor(t, cyton.EventDisconnected)
}

func TestSession_TextCommands(t *testing.T) {
	f := newSessionFixture(t, quietBoard())
	ctx := context.Background()
	_, err := f.session.Connect(ctx)
	require.NoError(t, err)

	regs, err := f.session.PrintRegisterSettings(ctx)
	require.NoError(t, err)
	assert.Contains(t, regs, "CH1SET")

	ch, err := f.session.RadioChannelGet(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, ch)

	ch, err = f.session.RadioChannelSet(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, ch)

	_, err = f.session.RadioChannelSet(ctx, 40)
	assert.ErrorIs(t, err, cyton.ErrInvalidArgument)

	up, err := f.session.RadioSystemStatusGet(ctx)
	require.NoError(t, err)
	assert.True(t, up)

	baud, err := f.session.RadioBaudRateSet(ctx, "fast")
	require.NoError(t, err)
	assert.Equal(t, cyton.RadioBaudFast, baud)

	_, err = f.session.SetMaxChannels(ctx, 16)
	assert.ErrorIs(t, err, cyton.ErrDeviceFailure)

	info, err := f.session.SetMaxChannels(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, cyton.ChannelsPerBoard, info.Channels)

	text, err := f.session.SDStart(ctx, "5min")
	require.NoError(t, err)
	assert.True(t, strings.Contains(text, "OBCI"))

	info, err = f.session.SoftReset(ctx)
	require.NoError(t, err)
	assert.Equal(t, cyton.BoardDefault, info.Board)
}

func TestSession_SyncClocks(t *testing.T) {
	f := newSessionFixture(t, quietBoard())
	ctx := context.Background()
	_, err := f.session.Connect(ctx)
	require.NoError(t, err)

	_, err = f.session.SyncClocksFull(ctx)
	assert.ErrorIs(t, err, cyton.ErrNotStreaming)

	require.NoError(t, f.session.StreamStart(ctx))
	f.waitFor(t, cyton.EventSample)

	res, err := f.session.SyncClocksFull(ctx)
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Error)
	assert.Equal(t, res.Offset, res.OffsetMaster)

	e := f.waitUntil(t, cyton.EventSample, func(e cyton.Event) bool { return e.Sample.BoardTime != 0 })
	assert.Equal(t, int64(e.Sample.BoardTime)+res.OffsetMaster, e.Sample.Timestamp)
}

func TestSession_Impedance(t *testing.T) {
	f := newSessionFixture(t, quietBoard())
	ctx := context.Background()
	_, err := f.session.Connect(ctx)
	require.NoError(t, err)

	_, err = f.session.ImpedanceTestChannel(ctx, 1)
	assert.ErrorIs(t, err, cyton.ErrNotStreaming)

	require.NoError(t, f.session.StreamStart(ctx))
	_, err = f.session.ImpedanceTestChannel(ctx, 9)
	assert.ErrorIs(t, err, cyton.ErrInvalidChannel)

	got, err := f.session.ImpedanceTestChannel(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Channel)
	assert.InDelta(t, 4000, got.P.Raw, 1500)
	assert.InDelta(t, 4000, got.N.Raw, 1500)
	assert.Equal(t, cyton.ImpedanceGood, got.P.Text)

	st, err := f.session.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Impedance)
	assert.Equal(t, got, st.Impedances[2])
}

func TestSession_StreamStopCancelsImpedance(t *testing.T) {
	f := newSessionFixture(t, quietBoard())
	ctx := context.Background()
	_, err := f.session.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, f.session.StreamStart(ctx))

	errc := make(chan error, 1)
	go func() {
		_, err := f.session.ImpedanceTestAllChannels(ctx)
		errc <- err
	}()
	f.waitFor(t, cyton.EventImpedance)
	require.NoError(t, f.session.StreamStop(ctx))

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, cyton.ErrImpedanceCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("impedance request not cancelled")
	}
}

func TestSession_ReadFailureKeepsSessionUsable(t *testing.T) {
	f := newSessionFixture(t, quietBoard())
	ctx := context.Background()
	_, err := f.session.Connect(ctx)
	require.NoError(t, err)

	f.board.failRead.Store(true)
	e := f.waitFor(t, cyton.EventError)
	assert.ErrorContains(t, e.Err, "device unplugged")

	st, err := f.session.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Connected)

	f.board.failRead.Store(false)
	info, err := f.session.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, cyton.BoardDefault, info.Board)
}
