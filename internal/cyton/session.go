// internal/cyton/session.go
package cyton

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cyton-service/internal/protocol"
)

// ErrCommandPending is returned when another command is still waiting for
// the board's reply.
var ErrCommandPending = errors.New("another command is awaiting a reply")

// Options configures a Session.
type Options struct {
	Parser         ParserConfig
	Impedance      ImpedanceConfig
	ReadSize       int
	QueueSize      int
	ReadyTimeout   time.Duration
	CommandTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Impedance:      DefaultImpedanceConfig(),
		ReadSize:       1024,
		QueueSize:      256,
		ReadyTimeout:   5 * time.Second,
		CommandTimeout: CommandTimeout,
	}
}

// Status is a snapshot of the session state.
type Status struct {
	SessionID    string             `json:"session_id"`
	Transport    string             `json:"transport"`
	Connected    bool               `json:"connected"`
	Streaming    bool               `json:"streaming"`
	Mode         string             `json:"parsing_mode"`
	Info         BoardInfo          `json:"info"`
	Stats        ParserStats        `json:"stats"`
	Impedance    bool               `json:"impedance_active"`
	Continuous   bool               `json:"impedance_continuous"`
	TimeOffset   int64              `json:"time_offset_ms"`
	Impedances   []ChannelImpedance `json:"impedances"`
	PendingWrite int                `json:"pending_writes"`
}

type waitSlot int

const (
	slotReady waitSlot = iota
	slotText
	slotSync
	slotImpedance
	slotCount
)

type reply struct {
	text     string
	info     BoardInfo
	sync     SyncResult
	channels []ChannelImpedance
	err      error
}

type waiter struct {
	ch chan reply
}

// Session drives one board. All state is owned by the goroutine running Run;
// public methods post closures into it and wait for the result.
type Session struct {
	id        string
	transport protocol.Transport
	opts      Options
	logger    *zap.Logger
	handler   EventHandler

	actions chan func()
	chunks  chan []byte
	closed  chan struct{}

	// owned by the Run goroutine
	parser     *StreamParser
	impedance  *ImpedanceController
	writer     *protocol.RateLimitedWriter
	connected  bool
	streaming  bool
	waiters    [slotCount]*waiter
	stopReader context.CancelFunc
	readerDone chan struct{}
}

func NewSession(t protocol.Transport, opts Options, logger *zap.Logger, handler EventHandler) *Session {
	if opts.ReadSize <= 0 {
		opts.ReadSize = 1024
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 5 * time.Second
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = CommandTimeout
	}
	if handler == nil {
		handler = func(Event) {}
	}
	id := uuid.New().String()
	s := &Session{
		id:        id,
		transport: t,
		opts:      opts,
		logger:    logger.With(zap.String("component", "session"), zap.String("session_id", id), zap.String("transport", t.Name())),
		handler:   handler,
		actions:   make(chan func(), 64),
		chunks:    make(chan []byte, 64),
		closed:    make(chan struct{}),
	}
	hooks := sessionHooks{s}
	s.parser = NewStreamParser(opts.Parser, hooks)
	s.impedance = NewImpedanceController(opts.Impedance, s.parser.Info(), hooks, hooks, hooks, s.onImpedance)
	return s
}

func (s *Session) ID() string { return s.id }

// Run processes chunks, requests and timers until ctx is cancelled. Fatal
// errors tear the connection down and are reported as EventError; the loop
// keeps running so the board can be reconnected.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.closed)
	defer s.teardown(ErrSessionClosed, false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk := <-s.chunks:
			if !s.connected {
				continue
			}
			if err := s.parser.Feed(chunk); err != nil {
				s.fatal(err)
			}
		case fn := <-s.actions:
			fn()
		}
	}
}

// post queues fn for the Run goroutine. It reports false once Run has exited.
func (s *Session) post(fn func()) bool {
	select {
	case s.actions <- fn:
		return true
	case <-s.closed:
		return false
	}
}

func (s *Session) do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	select {
	case s.actions <- func() { res <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return ErrSessionClosed
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return ErrSessionClosed
	}
}

// request registers a waiter for slot, runs fn on the loop and waits for the
// reply. A zero timeout waits until ctx is done.
func (s *Session) request(ctx context.Context, slot waitSlot, timeout time.Duration, fn func() error) (reply, error) {
	w := &waiter{ch: make(chan reply, 1)}
	err := s.do(ctx, func() error {
		if s.waiters[slot] != nil {
			return ErrCommandPending
		}
		s.waiters[slot] = w
		if err := fn(); err != nil {
			if s.waiters[slot] == w {
				s.waiters[slot] = nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return reply{}, err
	}

	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}
	select {
	case r := <-w.ch:
		return r, r.err
	case <-timeoutC:
		s.abandon(slot, w)
		return reply{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case <-ctx.Done():
		s.abandon(slot, w)
		return reply{}, ctx.Err()
	case <-s.closed:
		return reply{}, ErrSessionClosed
	}
}

func (s *Session) abandon(slot waitSlot, w *waiter) {
	s.post(func() {
		if s.waiters[slot] != w {
			return
		}
		s.waiters[slot] = nil
		switch slot {
		case slotText:
			if s.parser.Mode() == ModeEndOfText {
				s.parser.SetMode(ModeNormal)
			}
		case slotImpedance:
			s.impedance.Cancel(ErrImpedanceCancelled)
		}
	})
}

func (s *Session) resolve(slot waitSlot, r reply) {
	if w := s.waiters[slot]; w != nil {
		s.waiters[slot] = nil
		w.ch <- r
	}
}

func (s *Session) rejectAll(err error) {
	for slot := range s.waiters {
		s.resolve(waitSlot(slot), reply{err: err})
	}
}

// after runs fn on the Run goroutine once d has elapsed. The call is dropped
// if stop runs first.
func (s *Session) after(d time.Duration, fn func()) func() {
	cancelled := false
	t := time.AfterFunc(d, func() {
		s.post(func() {
			if !cancelled {
				fn()
			}
		})
	})
	return func() {
		cancelled = true
		t.Stop()
	}
}

func (s *Session) write(cmd []byte) error {
	if !s.connected || s.writer == nil {
		return ErrNotConnected
	}
	s.logger.Debug("Queue command", zap.ByteString("command", cmd))
	return s.writer.Write(cmd)
}

func (s *Session) emit(e Event) {
	e.SessionID = s.id
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.handler(e)
}

func (s *Session) log(msg string, fields ...zap.Field) {
	s.logger.Debug(msg, fields...)
	s.emit(Event{Type: EventLog, Text: msg})
}

func (s *Session) fatal(err error) {
	s.logger.Error("Session fatal error", zap.Error(err))
	s.teardown(err, false)
	s.emit(Event{Type: EventError, Err: err})
}

// teardown closes the transport and rejects every pending request. When
// graceful is set queued commands are flushed first.
func (s *Session) teardown(reason error, graceful bool) {
	if !s.connected {
		return
	}
	s.impedance.Cancel(ErrImpedanceCancelled)
	s.connected = false
	s.streaming = false

	if s.writer != nil {
		if graceful {
			s.writer.Close()
		}
		s.writer = nil
	}
	if s.stopReader != nil {
		s.stopReader()
		s.stopReader = nil
	}
	if err := s.transport.Close(); err != nil {
		s.logger.Warn("Transport close failed", zap.Error(err))
	}
	s.parser.SetMode(ModeReset)
	s.rejectAll(reason)
	s.emit(Event{Type: EventDisconnected, Err: reason})
}

// ---- Parser events ----

func (s *Session) onReady(info BoardInfo) {
	s.logger.Info("Board ready",
		zap.String("board", string(info.Board)),
		zap.String("firmware", info.Firmware.String()),
		zap.Int("channels", info.Channels),
		zap.Float64("sample_rate", info.SampleRate),
	)
	s.applyInfo(info)
	s.resolve(slotReady, reply{info: info})
	s.emit(Event{Type: EventReady, Info: &info})
}

func (s *Session) onSample(sample Sample) {
	if s.impedance.OnSample(sample) {
		return
	}
	s.emit(Event{Type: EventSample, Sample: &sample})
}

func (s *Session) onEndOfText(text string) {
	s.log("End of text received", zap.Int("length", len(text)))
	s.resolve(slotText, reply{text: text})
	s.emit(Event{Type: EventEndOfText, Text: text})
}

func (s *Session) onSynced(res SyncResult) {
	if res.Valid {
		s.logger.Info("Clocks synced",
			zap.Int64("offset_ms", res.Offset),
			zap.Int64("master_offset_ms", res.OffsetMaster),
			zap.Bool("corrected", res.CorrectedTransmission),
		)
	} else {
		s.logger.Warn("Clock sync failed", zap.Error(res.Err))
	}
	s.resolve(slotSync, reply{sync: res})
	s.emit(Event{Type: EventSynced, Sync: &res})
}

func (s *Session) onDroppedPackets(missed []int) {
	s.logger.Debug("Dropped packets", zap.Ints("sample_numbers", missed))
	s.emit(Event{Type: EventDroppedPackets, Missed: missed})
}

func (s *Session) onBadPacket(err error) {
	s.logger.Debug("Bad packet", zap.Error(err))
	s.emit(Event{Type: EventBadPacket, Err: err})
}

func (s *Session) onImpedance(res ImpedanceResult) {
	s.emit(Event{Type: EventImpedance, Impedance: &res})
}

func (s *Session) applyInfo(info BoardInfo) {
	s.parser.SetBoardInfo(info)
	s.impedance.SetBoard(info)
	if s.writer != nil {
		s.writer.SetDelay(info.WriteDelay)
	}
}

// ---- Lifecycle ----

// Connect opens the transport, soft resets the board and waits for the
// reset banner.
func (s *Session) Connect(ctx context.Context) (BoardInfo, error) {
	r, err := s.request(ctx, slotReady, s.opts.ReadyTimeout, func() error {
		if s.connected {
			return ErrAlreadyConnected
		}
		if err := s.transport.Open(ctx); err != nil {
			return fmt.Errorf("failed to open transport: %w", err)
		}

		readCtx, cancel := context.WithCancel(context.Background())
		s.stopReader = cancel
		s.readerDone = make(chan struct{})
		s.writer = protocol.NewRateLimitedWriter(s.transport, s.parser.Info().WriteDelay, s.opts.QueueSize, s.onWriteError, s.logger)
		s.writer.Start(readCtx)
		go s.readLoop(readCtx, s.readerDone)

		s.connected = true
		s.parser.SetMode(ModeReset)
		s.emit(Event{Type: EventConnected})
		s.log("Connected, sending soft reset")
		return s.write([]byte{CmdSoftReset})
	})
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			_ = s.Disconnect(context.Background())
		}
		return BoardInfo{}, err
	}
	return r.info, nil
}

// Disconnect stops streaming, flushes queued commands and closes the
// transport.
func (s *Session) Disconnect(ctx context.Context) error {
	return s.do(ctx, func() error {
		if !s.connected {
			return ErrNotConnected
		}
		s.impedance.Cancel(ErrImpedanceCancelled)
		if s.streaming {
			if err := s.write([]byte{CmdStreamStop}); err != nil {
				s.logger.Warn("Failed to queue stream stop", zap.Error(err))
			}
			s.streaming = false
		}
		s.teardown(ErrNotConnected, true)
		s.logger.Info("Disconnected")
		return nil
	})
}

func (s *Session) readLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		data, err := s.transport.Read(ctx, s.opts.ReadSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.post(func() {
				if s.readerDone == done {
					s.fatal(fmt.Errorf("transport read failed: %w", err))
				}
			})
			return
		}
		if len(data) == 0 {
			continue
		}
		select {
		case s.chunks <- data:
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		}
	}
}

func (s *Session) onWriteError(err error) {
	s.post(func() {
		if s.connected {
			s.fatal(fmt.Errorf("transport write failed: %w", err))
		}
	})
}

func (s *Session) requireConnected() error {
	if !s.connected {
		return ErrNotConnected
	}
	return nil
}

func (s *Session) requireIdle() error {
	if !s.connected {
		return ErrNotConnected
	}
	if s.streaming {
		return ErrStreaming
	}
	return nil
}

// Status returns a snapshot taken on the Run goroutine.
func (s *Session) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.do(ctx, func() error {
		st = Status{
			SessionID:  s.id,
			Transport:  s.transport.Name(),
			Connected:  s.connected,
			Streaming:  s.streaming,
			Mode:       s.parser.Mode().String(),
			Info:       s.parser.Info(),
			Stats:      s.parser.Stats(),
			Impedance:  s.impedance.Active(),
			Continuous: s.impedance.Continuous(),
			TimeOffset: s.parser.TimeSync().Master(),
			Impedances: s.impedance.Results(),
		}
		if s.writer != nil {
			st.PendingWrite = s.writer.Pending()
		}
		return nil
	})
	return st, err
}

// ---- Streaming ----

func (s *Session) StreamStart(ctx context.Context) error {
	return s.do(ctx, func() error {
		if err := s.requireConnected(); err != nil {
			return err
		}
		if s.streaming {
			return ErrAlreadyStreaming
		}
		if err := s.write([]byte{CmdStreamStart}); err != nil {
			return err
		}
		s.streaming = true
		s.parser.SetMode(ModeNormal)
		s.emit(Event{Type: EventStreamStarted})
		return nil
	})
}

func (s *Session) StreamStop(ctx context.Context) error {
	return s.do(ctx, func() error {
		if err := s.requireConnected(); err != nil {
			return err
		}
		if !s.streaming {
			return ErrNotStreaming
		}
		s.impedance.Cancel(ErrImpedanceCancelled)
		if err := s.write([]byte{CmdStreamStop}); err != nil {
			return err
		}
		s.streaming = false
		s.emit(Event{Type: EventStreamStopped})
		return nil
	})
}

// SoftReset resets the board and waits for the new banner.
func (s *Session) SoftReset(ctx context.Context) (BoardInfo, error) {
	r, err := s.request(ctx, slotReady, s.opts.ReadyTimeout, func() error {
		if err := s.requireConnected(); err != nil {
			return err
		}
		s.impedance.Cancel(ErrImpedanceCancelled)
		s.streaming = false
		s.parser.SetMode(ModeReset)
		return s.write([]byte{CmdSoftReset})
	})
	return r.info, err
}

// textCommand writes cmd in EndOfText mode and returns the reply.
func (s *Session) textCommand(ctx context.Context, name string, cmd []byte, timeout time.Duration, check func() error) (string, error) {
	r, err := s.request(ctx, slotText, timeout, func() error {
		if err := check(); err != nil {
			return err
		}
		s.parser.SetMode(ModeEndOfText)
		return s.write(cmd)
	})
	if err != nil {
		return "", err
	}
	if IsFailure(r.text) {
		return r.text, &DeviceError{Command: name, Response: r.text}
	}
	return r.text, nil
}

// PrintRegisterSettings returns the register dump printed by '?'.
func (s *Session) PrintRegisterSettings(ctx context.Context) (string, error) {
	return s.textCommand(ctx, "printRegisterSettings", []byte{CmdQueryRegisters}, s.opts.CommandTimeout, s.requireIdle)
}

// ---- Channels ----

func (s *Session) ChannelOff(ctx context.Context, channel int) error {
	return s.do(ctx, func() error {
		if err := s.requireConnected(); err != nil {
			return err
		}
		cmd, err := ChannelOffCommand(channel, s.parser.Info().Channels)
		if err != nil {
			return err
		}
		return s.write(cmd)
	})
}

func (s *Session) ChannelOn(ctx context.Context, channel int) error {
	return s.do(ctx, func() error {
		if err := s.requireConnected(); err != nil {
			return err
		}
		cmd, err := ChannelOnCommand(channel, s.parser.Info().Channels)
		if err != nil {
			return err
		}
		return s.write(cmd)
	})
}

// ChannelSet writes a full channel configuration and updates the scale
// factor used to decode that channel.
func (s *Session) ChannelSet(ctx context.Context, settings ChannelSettings) error {
	return s.do(ctx, func() error {
		if err := s.requireConnected(); err != nil {
			return err
		}
		cmd, err := ChannelSetCommand(settings, s.parser.Info().Channels)
		if err != nil {
			return err
		}
		if err := s.write(cmd); err != nil {
			return err
		}
		return s.parser.Codec().SetGain(settings.Channel, settings.Gain)
	})
}

// DefaultChannelSettings restores the board defaults on every channel.
func (s *Session) DefaultChannelSettings(ctx context.Context) error {
	return s.do(ctx, func() error {
		if err := s.requireConnected(); err != nil {
			return err
		}
		for ch := 1; ch <= ChannelsDaisy; ch++ {
			if err := s.parser.Codec().SetGain(ch, DefaultGain); err != nil {
				return err
			}
		}
		return s.write([]byte{CmdDefaultSettings})
	})
}

func (s *Session) TestSignal(ctx context.Context, sig TestSignal) error {
	return s.do(ctx, func() error {
		if err := s.requireConnected(); err != nil {
			return err
		}
		cmd, err := TestSignalCommand(sig)
		if err != nil {
			return err
		}
		return s.write(cmd)
	})
}

// SetMaxChannels asks the board to run with 8 or 16 channels and follows the
// reply.
func (s *Session) SetMaxChannels(ctx context.Context, n int) (BoardInfo, error) {
	var cmd byte
	switch n {
	case ChannelsPerBoard:
		cmd = CmdMaxChannels8
	case ChannelsDaisy:
		cmd = CmdMaxChannels16
	default:
		return BoardInfo{}, fmt.Errorf("%w: channel count %d, want 8 or 16", ErrInvalidArgument, n)
	}
	text, err := s.textCommand(ctx, "setMaxChannels", []byte{cmd}, s.opts.CommandTimeout, s.requireIdle)
	if err != nil {
		return BoardInfo{}, err
	}
	if n == ChannelsDaisy && strings.Contains(strings.ToLower(text), "no daisy") {
		return BoardInfo{}, &DeviceError{Command: "setMaxChannels", Response: text}
	}

	var info BoardInfo
	err = s.do(ctx, func() error {
		board := BoardDefault
		if n == ChannelsDaisy {
			board = BoardDaisy
		}
		info = newBoardInfo(board, s.parser.Info().Firmware)
		s.applyInfo(info)
		return nil
	})
	return info, err
}

// ---- SD card ----

// SDStart starts logging to the SD card. The board only answers when it is
// not streaming.
func (s *Session) SDStart(ctx context.Context, d SDDuration) (string, error) {
	cmd, err := SDStartCommand(d)
	if err != nil {
		return "", err
	}
	return s.sdCommand(ctx, "sdStart", cmd)
}

func (s *Session) SDStop(ctx context.Context) (string, error) {
	return s.sdCommand(ctx, "sdStop", []byte{CmdSDStop})
}

func (s *Session) sdCommand(ctx context.Context, name string, cmd []byte) (string, error) {
	var streaming bool
	err := s.do(ctx, func() error {
		if err := s.requireConnected(); err != nil {
			return err
		}
		streaming = s.streaming
		if !streaming {
			return nil
		}
		return s.write(cmd)
	})
	if err != nil || streaming {
		return "", err
	}
	return s.textCommand(ctx, name, cmd, s.opts.CommandTimeout, s.requireIdle)
}

// ---- Radio ----

func (s *Session) radio(ctx context.Context, cmd RadioCommand) (string, error) {
	r, err := s.request(ctx, slotText, cmd.Timeout, func() error {
		if err := s.requireIdle(); err != nil {
			return err
		}
		if !cmd.SkipFirmwareCheck && s.parser.Info().Firmware != FirmwareV2 {
			return ErrFirmwareV1
		}
		s.parser.SetMode(ModeEndOfText)
		return s.write(cmd.Payload)
	})
	return r.text, err
}

func (s *Session) radioValue(ctx context.Context, cmd RadioCommand) (int, error) {
	text, err := s.radio(ctx, cmd)
	if err != nil {
		return 0, err
	}
	return RadioValue(cmd, text)
}

func (s *Session) RadioChannelGet(ctx context.Context) (int, error) {
	return s.radioValue(ctx, RadioChannelGet())
}

func (s *Session) RadioChannelSet(ctx context.Context, channel int) (int, error) {
	cmd, err := RadioChannelSet(channel)
	if err != nil {
		return 0, err
	}
	return s.radioValue(ctx, cmd)
}

func (s *Session) RadioChannelSetHostOverride(ctx context.Context, channel int) (int, error) {
	cmd, err := RadioChannelSetHostOverride(channel)
	if err != nil {
		return 0, err
	}
	return s.radioValue(ctx, cmd)
}

func (s *Session) RadioPollTimeGet(ctx context.Context) (int, error) {
	return s.radioValue(ctx, RadioPollTimeGet())
}

func (s *Session) RadioPollTimeSet(ctx context.Context, pollTime int) (int, error) {
	cmd, err := RadioPollTimeSet(pollTime)
	if err != nil {
		return 0, err
	}
	return s.radioValue(ctx, cmd)
}

// RadioBaudRateSet switches the radio link speed and reconfigures the serial
// port to match.
func (s *Session) RadioBaudRateSet(ctx context.Context, speed string) (int, error) {
	cmd, err := RadioBaudRateSet(speed)
	if err != nil {
		return 0, err
	}
	text, err := s.radio(ctx, cmd)
	if err != nil {
		return 0, err
	}
	baud, err := RadioBaudRate(cmd, text)
	if err != nil {
		return 0, err
	}
	err = s.do(ctx, func() error {
		if err := s.requireConnected(); err != nil {
			return fmt.Errorf("lost connection during baud change: %w", err)
		}
		if setter, ok := s.transport.(protocol.BaudRateSetter); ok {
			return setter.SetBaudRate(baud)
		}
		return nil
	})
	return baud, err
}

func (s *Session) RadioSystemStatusGet(ctx context.Context) (bool, error) {
	text, err := s.radio(ctx, RadioSystemStatusGet())
	if err != nil {
		return false, err
	}
	return IsSuccess(text), nil
}

// ---- Time sync ----

func (s *Session) beginSync() error {
	if err := s.requireConnected(); err != nil {
		return err
	}
	if !s.streaming {
		return ErrNotStreaming
	}
	if s.parser.Info().Firmware != FirmwareV2 {
		return ErrFirmwareV1
	}
	s.parser.BeginSync()
	return s.write([]byte{CmdSyncClocks})
}

// SyncClocks starts a sync exchange; the result arrives as EventSynced.
func (s *Session) SyncClocks(ctx context.Context) error {
	return s.do(ctx, s.beginSync)
}

// SyncClocksFull starts a sync exchange and waits for its result.
func (s *Session) SyncClocksFull(ctx context.Context) (SyncResult, error) {
	r, err := s.request(ctx, slotSync, SyncFullTimeout, s.beginSync)
	return r.sync, err
}

// ---- Impedance ----

func (s *Session) impedanceRequest(ctx context.Context, start func(done ImpedanceDone) error) ([]ChannelImpedance, error) {
	r, err := s.request(ctx, slotImpedance, 0, func() error {
		return start(func(out []ChannelImpedance, err error) {
			s.resolve(slotImpedance, reply{channels: out, err: err})
		})
	})
	return r.channels, err
}

func firstChannel(out []ChannelImpedance, err error) (ChannelImpedance, error) {
	if err != nil {
		return ChannelImpedance{}, err
	}
	if len(out) == 0 {
		return ChannelImpedance{}, fmt.Errorf("%w: no impedance measured", ErrImpedanceCancelled)
	}
	return out[0], nil
}

func (s *Session) ImpedanceTestInputP(ctx context.Context, channel int) (ChannelImpedance, error) {
	return firstChannel(s.impedanceRequest(ctx, func(done ImpedanceDone) error {
		return s.impedance.TestInputP(channel, done)
	}))
}

func (s *Session) ImpedanceTestInputN(ctx context.Context, channel int) (ChannelImpedance, error) {
	return firstChannel(s.impedanceRequest(ctx, func(done ImpedanceDone) error {
		return s.impedance.TestInputN(channel, done)
	}))
}

func (s *Session) ImpedanceTestChannel(ctx context.Context, channel int) (ChannelImpedance, error) {
	return firstChannel(s.impedanceRequest(ctx, func(done ImpedanceDone) error {
		return s.impedance.TestChannel(channel, done)
	}))
}

func (s *Session) ImpedanceTestChannels(ctx context.Context, layout string) ([]ChannelImpedance, error) {
	return s.impedanceRequest(ctx, func(done ImpedanceDone) error {
		return s.impedance.TestChannels(layout, done)
	})
}

func (s *Session) ImpedanceTestAllChannels(ctx context.Context) ([]ChannelImpedance, error) {
	return s.impedanceRequest(ctx, s.impedance.TestAllChannels)
}

func (s *Session) ImpedanceContinuousStart(ctx context.Context) error {
	return s.do(ctx, s.impedance.ContinuousStart)
}

func (s *Session) ImpedanceContinuousStop(ctx context.Context) error {
	return s.do(ctx, s.impedance.ContinuousStop)
}

// sessionHooks exposes the loop-only parts of a Session to the parser and the
// impedance controller.
type sessionHooks struct{ s *Session }

func (h sessionHooks) Write(cmd []byte) error { return h.s.write(cmd) }
func (h sessionHooks) After(d time.Duration, fn func()) func() { return h.s.after(d, fn) }
func (h sessionHooks) IsConnected() bool { return h.s.connected }
func (h sessionHooks) IsStreaming() bool { return h.s.streaming }
func (h sessionHooks) OnReady(info BoardInfo) { h.s.onReady(info) }
func (h sessionHooks) OnSample(sample Sample) { h.s.onSample(sample) }
func (h sessionHooks) OnEndOfText(text string) { h.s.onEndOfText(text) }
func (h sessionHooks) OnSynced(res SyncResult) { h.s.onSynced(res) }
func (h sessionHooks) OnDroppedPackets(missed []int) { h.s.onDroppedPackets(missed) }
func (h sessionHooks) OnBadPacket(err error) { h.s.onBadPacket(err) }
