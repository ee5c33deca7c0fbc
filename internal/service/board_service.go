// internal/service/board_service.go
package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cyton-service/internal/cyton"
	"cyton-service/internal/protocol"
	"cyton-service/internal/utils"
)

// DefaultHealthInterval is how often stream counters are logged while
// streaming.
const DefaultHealthInterval = 30 * time.Second

// BoardService owns the board session and logs every control operation
type BoardService struct {
	session   *cyton.Session
	transport protocol.Transport
	logger    *utils.ServiceLogger
	board     *utils.BoardLogger

	healthInterval time.Duration
	startedAt      time.Time
	running        atomic.Bool
}

// NewBoardService creates the session on top of transport. Every session
// event goes to the service first and then to the given handlers in order.
func NewBoardService(
	transport protocol.Transport,
	opts cyton.Options,
	logger *zap.Logger,
	handlers ...cyton.EventHandler,
) *BoardService {
	bs := &BoardService{
		transport:      transport,
		logger:         utils.NewServiceLogger(logger, "board-service"),
		healthInterval: DefaultHealthInterval,
		startedAt:      time.Now(),
	}
	bs.session = cyton.NewSession(transport, opts, logger, cyton.Handlers(append([]cyton.EventHandler{bs.onEvent}, handlers...)...))
	bs.board = utils.NewBoardLogger(logger, bs.session.ID(), transport.Name())
	return bs
}

// SetHealthInterval changes the stream health log period. Zero disables it.
func (bs *BoardService) SetHealthInterval(d time.Duration) { bs.healthInterval = d }

func (bs *BoardService) SessionID() string { return bs.session.ID() }

func (bs *BoardService) TransportName() string { return bs.transport.Name() }

// Running reports whether Run is active
func (bs *BoardService) Running() bool { return bs.running.Load() }

func (bs *BoardService) Uptime() time.Duration { return time.Since(bs.startedAt) }

// Run drives the session until ctx is cancelled
func (bs *BoardService) Run(ctx context.Context) error {
	bs.running.Store(true)
	defer bs.running.Store(false)

	if bs.healthInterval > 0 {
		go bs.healthLoop(ctx)
	}
	bs.logger.Info("Board session started", zap.String("session_id", bs.session.ID()))
	return bs.session.Run(ctx)
}

func (bs *BoardService) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(bs.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, err := bs.session.Status(ctx)
			if err != nil || !st.Streaming {
				continue
			}
			bs.board.LogHealth(st.Stats)
		}
	}
}

// onEvent runs on the session goroutine and only logs
func (bs *BoardService) onEvent(e cyton.Event) {
	switch e.Type {
	case cyton.EventReady:
		bs.board.LogConnection("ready", e.Info, nil)
	case cyton.EventDisconnected:
		bs.board.LogConnection("disconnected", nil, nil)
	case cyton.EventError:
		bs.board.LogConnection("lost", nil, e.Err)
	case cyton.EventDroppedPackets:
		bs.board.Warn("Dropped packets", zap.Ints("sample_numbers", e.Missed))
	case cyton.EventSynced:
		if e.Sync != nil && !e.Sync.Valid {
			bs.board.Warn("Time sync failed", zap.String("error", e.Sync.Error))
		}
	}
}

// track runs one operation and logs its outcome with a fresh operation id
func track[T any](bs *BoardService, ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := fn(ctx)
	bs.board.LogOperation(op, uuid.New().String(), time.Since(start), err)
	return v, err
}

func trackErr(bs *BoardService, ctx context.Context, op string, fn func(context.Context) error) error {
	_, err := track(bs, ctx, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (bs *BoardService) Status(ctx context.Context) (cyton.Status, error) {
	return bs.session.Status(ctx)
}

func (bs *BoardService) Connect(ctx context.Context) (cyton.BoardInfo, error) {
	return track(bs, ctx, "connect", bs.session.Connect)
}

func (bs *BoardService) Disconnect(ctx context.Context) error {
	return trackErr(bs, ctx, "disconnect", bs.session.Disconnect)
}

func (bs *BoardService) StreamStart(ctx context.Context) error {
	return trackErr(bs, ctx, "stream_start", bs.session.StreamStart)
}

func (bs *BoardService) StreamStop(ctx context.Context) error {
	return trackErr(bs, ctx, "stream_stop", bs.session.StreamStop)
}

func (bs *BoardService) SoftReset(ctx context.Context) (cyton.BoardInfo, error) {
	return track(bs, ctx, "soft_reset", bs.session.SoftReset)
}

func (bs *BoardService) RegisterSettings(ctx context.Context) (string, error) {
	return track(bs, ctx, "register_settings", bs.session.PrintRegisterSettings)
}

func (bs *BoardService) ChannelOff(ctx context.Context, channel int) error {
	return trackErr(bs, ctx, "channel_off", func(ctx context.Context) error {
		return bs.session.ChannelOff(ctx, channel)
	})
}

func (bs *BoardService) ChannelOn(ctx context.Context, channel int) error {
	return trackErr(bs, ctx, "channel_on", func(ctx context.Context) error {
		return bs.session.ChannelOn(ctx, channel)
	})
}

func (bs *BoardService) ChannelSet(ctx context.Context, settings cyton.ChannelSettings) error {
	return trackErr(bs, ctx, "channel_set", func(ctx context.Context) error {
		return bs.session.ChannelSet(ctx, settings)
	})
}

func (bs *BoardService) DefaultChannelSettings(ctx context.Context) error {
	return trackErr(bs, ctx, "channel_defaults", bs.session.DefaultChannelSettings)
}

func (bs *BoardService) TestSignal(ctx context.Context, sig cyton.TestSignal) error {
	return trackErr(bs, ctx, "test_signal", func(ctx context.Context) error {
		return bs.session.TestSignal(ctx, sig)
	})
}

func (bs *BoardService) SetMaxChannels(ctx context.Context, n int) (cyton.BoardInfo, error) {
	return track(bs, ctx, "max_channels", func(ctx context.Context) (cyton.BoardInfo, error) {
		return bs.session.SetMaxChannels(ctx, n)
	})
}

func (bs *BoardService) SDStart(ctx context.Context, d cyton.SDDuration) (string, error) {
	return track(bs, ctx, "sd_start", func(ctx context.Context) (string, error) {
		return bs.session.SDStart(ctx, d)
	})
}

func (bs *BoardService) SDStop(ctx context.Context) (string, error) {
	return track(bs, ctx, "sd_stop", bs.session.SDStop)
}

func (bs *BoardService) RadioChannelGet(ctx context.Context) (int, error) {
	return track(bs, ctx, "radio_channel_get", bs.session.RadioChannelGet)
}

// RadioChannelSet changes the radio channel. With override only the dongle
// is moved, used to find a board that is on another channel.
func (bs *BoardService) RadioChannelSet(ctx context.Context, channel int, override bool) (int, error) {
	if override {
		return track(bs, ctx, "radio_channel_override", func(ctx context.Context) (int, error) {
			return bs.session.RadioChannelSetHostOverride(ctx, channel)
		})
	}
	return track(bs, ctx, "radio_channel_set", func(ctx context.Context) (int, error) {
		return bs.session.RadioChannelSet(ctx, channel)
	})
}

func (bs *BoardService) RadioPollTimeGet(ctx context.Context) (int, error) {
	return track(bs, ctx, "radio_poll_get", bs.session.RadioPollTimeGet)
}

func (bs *BoardService) RadioPollTimeSet(ctx context.Context, pollTime int) (int, error) {
	return track(bs, ctx, "radio_poll_set", func(ctx context.Context) (int, error) {
		return bs.session.RadioPollTimeSet(ctx, pollTime)
	})
}

func (bs *BoardService) RadioBaudRateSet(ctx context.Context, speed string) (int, error) {
	return track(bs, ctx, "radio_baud_set", func(ctx context.Context) (int, error) {
		return bs.session.RadioBaudRateSet(ctx, speed)
	})
}

func (bs *BoardService) RadioSystemStatus(ctx context.Context) (bool, error) {
	return track(bs, ctx, "radio_status", bs.session.RadioSystemStatusGet)
}

func (bs *BoardService) SyncClocks(ctx context.Context) (cyton.SyncResult, error) {
	return track(bs, ctx, "sync_clocks", bs.session.SyncClocksFull)
}

// ImpedanceTestChannel measures one channel. input selects "p", "n" or
// both when empty.
func (bs *BoardService) ImpedanceTestChannel(ctx context.Context, channel int, input string) (cyton.ChannelImpedance, error) {
	return track(bs, ctx, "impedance_channel", func(ctx context.Context) (cyton.ChannelImpedance, error) {
		switch input {
		case "p", "P":
			return bs.session.ImpedanceTestInputP(ctx, channel)
		case "n", "N":
			return bs.session.ImpedanceTestInputN(ctx, channel)
		default:
			return bs.session.ImpedanceTestChannel(ctx, channel)
		}
	})
}

func (bs *BoardService) ImpedanceTestChannels(ctx context.Context, layout string) ([]cyton.ChannelImpedance, error) {
	return track(bs, ctx, "impedance_channels", func(ctx context.Context) ([]cyton.ChannelImpedance, error) {
		return bs.session.ImpedanceTestChannels(ctx, layout)
	})
}

func (bs *BoardService) ImpedanceTestAll(ctx context.Context) ([]cyton.ChannelImpedance, error) {
	return track(bs, ctx, "impedance_all", bs.session.ImpedanceTestAllChannels)
}

func (bs *BoardService) ImpedanceContinuousStart(ctx context.Context) error {
	return trackErr(bs, ctx, "impedance_continuous_start", bs.session.ImpedanceContinuousStart)
}

func (bs *BoardService) ImpedanceContinuousStop(ctx context.Context) error {
	return trackErr(bs, ctx, "impedance_continuous_stop", bs.session.ImpedanceContinuousStop)
}
