// internal/cyton/impedance.go
package cyton

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Impedance classification labels.
const (
	ImpedanceInit = "init"
	ImpedanceGood = "good"
	ImpedanceOK   = "ok"
	ImpedanceBad  = "bad"
	ImpedanceNone = "none"
)

// ImpedanceConfig holds the injection and classification constants. They are
// calibration values and come from configuration.
type ImpedanceConfig struct {
	DriveAmps      float64
	LeadOffHz      float64
	SeriesResistor float64
	GoodMax        float64
	OKMax          float64
	BadMax         float64
	Settle         time.Duration
	Watchdog       time.Duration
}

func DefaultImpedanceConfig() ImpedanceConfig {
	return ImpedanceConfig{
		DriveAmps:      6e-9,
		LeadOffHz:      31.5,
		SeriesResistor: 2200,
		GoodMax:        5000,
		OKMax:          10000,
		BadMax:         1000000,
		Settle:         50 * time.Millisecond,
		Watchdog:       2 * time.Second,
	}
}

// Classify maps a raw ohm value onto a label.
func (c ImpedanceConfig) Classify(raw float64) string {
	switch {
	case raw < 0:
		return ImpedanceInit
	case raw <= c.GoodMax:
		return ImpedanceGood
	case raw <= c.OKMax:
		return ImpedanceOK
	case raw <= c.BadMax:
		return ImpedanceBad
	default:
		return ImpedanceNone
	}
}

// Ohms converts a Goertzel voltage magnitude into electrode impedance.
func (c ImpedanceConfig) Ohms(magnitude float64) float64 {
	return math.Max(0, magnitude/c.DriveAmps-c.SeriesResistor)
}

type InputValue struct {
	Raw  float64 `json:"raw"`
	Text string  `json:"text"`
}

type ChannelImpedance struct {
	Channel int        `json:"channel"`
	P       InputValue `json:"P"`
	N       InputValue `json:"N"`
}

func newChannelImpedance(ch int) ChannelImpedance {
	return ChannelImpedance{
		Channel: ch,
		P:       InputValue{Raw: -1, Text: ImpedanceInit},
		N:       InputValue{Raw: -1, Text: ImpedanceInit},
	}
}

// ImpedanceKind tells which level of the sweep a result belongs to.
type ImpedanceKind string

const (
	ImpedanceKindInput   ImpedanceKind = "input"
	ImpedanceKindChannel ImpedanceKind = "channel"
	ImpedanceKindArray   ImpedanceKind = "array"
)

type ImpedanceResult struct {
	Kind     ImpedanceKind      `json:"kind"`
	Channel  int                `json:"channel,omitempty"`
	Input    string             `json:"input,omitempty"`
	Value    InputValue         `json:"value"`
	Channels []ChannelImpedance `json:"channels"`
}

// Commander queues a command for the board.
type Commander interface {
	Write(cmd []byte) error
}

// Scheduler runs fn after d on the controller's goroutine. The returned
// function cancels a pending call.
type Scheduler interface {
	After(d time.Duration, fn func()) (stop func())
}

// SessionState reports the preconditions every impedance request checks.
type SessionState interface {
	IsConnected() bool
	IsStreaming() bool
}

// ImpedanceDone completes a request with the channels it measured.
type ImpedanceDone func(channels []ChannelImpedance, err error)

type impedanceStep int

const (
	stepIdle impedanceStep = iota
	stepMeasure
	stepSettle
	stepContinuous
)

type impedanceTask struct {
	channel int
	input   byte // 'P' or 'N'
}

// ImpedanceController sequences impedance measurements one channel input at
// a time: set, measure one Goertzel block, finalize, settle, unset.
type ImpedanceController struct {
	cfg      ImpedanceConfig
	channels int
	goertzel *Goertzel
	results  []ChannelImpedance

	step    impedanceStep
	plan    []impedanceTask
	cur     impedanceTask
	touched []int
	sweep   bool
	done    ImpedanceDone
	stop    func()

	cmd   Commander
	sched Scheduler
	state SessionState
	emit  func(ImpedanceResult)
}

func NewImpedanceController(cfg ImpedanceConfig, info BoardInfo, cmd Commander, sched Scheduler, state SessionState, emit func(ImpedanceResult)) *ImpedanceController {
	c := &ImpedanceController{cfg: cfg, cmd: cmd, sched: sched, state: state, emit: emit}
	c.SetBoard(info)
	return c
}

// SetBoard resizes the controller for a newly detected board. Any running
// test is cancelled.
func (c *ImpedanceController) SetBoard(info BoardInfo) {
	if c.Active() {
		c.Cancel(ErrImpedanceCancelled)
	}
	c.channels = info.Channels
	c.goertzel = NewGoertzel(info.Channels, info.SampleRate, c.cfg.LeadOffHz)
	c.results = make([]ChannelImpedance, info.Channels)
	for i := range c.results {
		c.results[i] = newChannelImpedance(i + 1)
	}
}

// Active reports whether any test, including continuous mode, is running.
func (c *ImpedanceController) Active() bool { return c.step != stepIdle }

func (c *ImpedanceController) Continuous() bool { return c.step == stepContinuous }

// Results returns a copy of the latest value of every channel.
func (c *ImpedanceController) Results() []ChannelImpedance {
	return append([]ChannelImpedance(nil), c.results...)
}

func (c *ImpedanceController) validateChannel(ch int) error {
	if ch < 1 || ch > c.channels {
		return fmt.Errorf("%w: %d, board has %d channels", ErrInvalidChannel, ch, c.channels)
	}
	return nil
}

func (c *ImpedanceController) checkSession() error {
	if !c.state.IsConnected() {
		return ErrNotConnected
	}
	if !c.state.IsStreaming() {
		return ErrNotStreaming
	}
	if c.Active() {
		return ErrImpedanceActive
	}
	return nil
}

func (c *ImpedanceController) TestInputP(ch int, done ImpedanceDone) error {
	if err := c.validateChannel(ch); err != nil {
		return err
	}
	return c.start([]impedanceTask{{ch, 'P'}}, false, done)
}

func (c *ImpedanceController) TestInputN(ch int, done ImpedanceDone) error {
	if err := c.validateChannel(ch); err != nil {
		return err
	}
	return c.start([]impedanceTask{{ch, 'N'}}, false, done)
}

func (c *ImpedanceController) TestChannel(ch int, done ImpedanceDone) error {
	if err := c.validateChannel(ch); err != nil {
		return err
	}
	return c.start([]impedanceTask{{ch, 'P'}, {ch, 'N'}}, false, done)
}

func (c *ImpedanceController) TestAllChannels(done ImpedanceDone) error {
	plan := make([]impedanceTask, 0, 2*c.channels)
	for ch := 1; ch <= c.channels; ch++ {
		plan = append(plan, impedanceTask{ch, 'P'}, impedanceTask{ch, 'N'})
	}
	return c.start(plan, true, done)
}

// TestChannels runs a sweep described by one character per channel:
// 'p' tests P, 'n' tests N, 'b' tests both and '-' skips the channel.
func (c *ImpedanceController) TestChannels(layout string, done ImpedanceDone) error {
	if len(layout) != c.channels {
		return fmt.Errorf("%w: channel plan has %d entries, board has %d channels", ErrInvalidArgument, len(layout), c.channels)
	}
	var plan []impedanceTask
	for i, r := range strings.ToLower(layout) {
		ch := i + 1
		switch r {
		case 'p':
			plan = append(plan, impedanceTask{ch, 'P'})
		case 'n':
			plan = append(plan, impedanceTask{ch, 'N'})
		case 'b':
			plan = append(plan, impedanceTask{ch, 'P'}, impedanceTask{ch, 'N'})
		case '-':
		default:
			return fmt.Errorf("%w: channel plan entry %q", ErrInvalidArgument, r)
		}
	}
	return c.start(plan, true, done)
}

// ContinuousStart injects the test signal on every N input and emits a full
// array after every Goertzel block until ContinuousStop.
func (c *ImpedanceController) ContinuousStart() error {
	if err := c.checkSession(); err != nil {
		return err
	}
	for ch := 1; ch <= c.channels; ch++ {
		if err := c.setInputs(ch, false, true); err != nil {
			// channels already injecting must not stay on while idle
			return errors.Join(err, c.unsetChannels(ch-1))
		}
	}
	c.goertzel.Reset()
	c.step = stepContinuous
	return nil
}

func (c *ImpedanceController) ContinuousStop() error {
	if c.step != stepContinuous {
		return ErrNotContinuous
	}
	c.goertzel.Reset()
	c.step = stepIdle
	return c.unsetChannels(c.channels)
}

// unsetChannels turns injection off on channels 1..n. A failed write does
// not stop the remaining channels.
func (c *ImpedanceController) unsetChannels(n int) error {
	var errs []error
	for ch := 1; ch <= n; ch++ {
		if err := c.setInputs(ch, false, false); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}

// Cancel abandons the running test without further writes. The partial
// window is discarded and the pending request fails with err.
func (c *ImpedanceController) Cancel(err error) {
	if c.step == stepIdle {
		return
	}
	c.stopTimer()
	c.goertzel.Reset()
	c.step = stepIdle
	c.plan = nil
	c.finish(nil, err)
}

// OnSample feeds one sample. It reports whether the sample was consumed by a
// running test.
func (c *ImpedanceController) OnSample(s Sample) bool {
	switch c.step {
	case stepContinuous:
		mags, ok := c.goertzel.Process(s.Channels)
		if ok {
			for i, m := range mags {
				raw := c.cfg.Ohms(m)
				c.results[i].N = InputValue{Raw: raw, Text: c.cfg.Classify(raw)}
			}
			c.emit(ImpedanceResult{Kind: ImpedanceKindArray, Channels: c.Results()})
		}
		return true
	case stepMeasure:
		mags, ok := c.goertzel.Process(s.Channels)
		if ok {
			c.finalize(mags[c.cur.channel-1])
		}
		return true
	case stepSettle:
		return true
	default:
		return false
	}
}

func (c *ImpedanceController) start(plan []impedanceTask, sweep bool, done ImpedanceDone) error {
	if err := c.checkSession(); err != nil {
		return err
	}
	c.plan = plan
	c.sweep = sweep
	c.done = done
	c.touched = c.touched[:0]
	c.next()
	return nil
}

func (c *ImpedanceController) next() {
	if len(c.plan) == 0 {
		c.step = stepIdle
		if c.sweep {
			c.emit(ImpedanceResult{Kind: ImpedanceKindArray, Channels: c.Results()})
		}
		out := make([]ChannelImpedance, 0, len(c.touched))
		for _, ch := range c.touched {
			out = append(out, c.results[ch-1])
		}
		c.finish(out, nil)
		return
	}

	c.cur, c.plan = c.plan[0], c.plan[1:]
	if len(c.touched) == 0 || c.touched[len(c.touched)-1] != c.cur.channel {
		c.touched = append(c.touched, c.cur.channel)
		c.results[c.cur.channel-1] = newChannelImpedance(c.cur.channel)
	}
	c.step = stepMeasure
	if err := c.setInputs(c.cur.channel, c.cur.input == 'P', c.cur.input == 'N'); err != nil {
		c.Cancel(err)
		return
	}
	c.goertzel.Reset()
	if c.cfg.Watchdog > 0 {
		ch := c.cur.channel
		c.arm(c.cfg.Watchdog, func() {
			c.Cancel(fmt.Errorf("%w: no impedance block for channel %d", ErrTimeout, ch))
		})
	}
}

func (c *ImpedanceController) finalize(magnitude float64) {
	c.stopTimer()
	raw := c.cfg.Ohms(magnitude)
	v := InputValue{Raw: raw, Text: c.cfg.Classify(raw)}
	r := &c.results[c.cur.channel-1]
	input := string(c.cur.input)
	if c.cur.input == 'P' {
		r.P = v
	} else {
		r.N = v
	}
	c.emit(ImpedanceResult{Kind: ImpedanceKindInput, Channel: c.cur.channel, Input: input, Value: v, Channels: []ChannelImpedance{*r}})

	c.step = stepSettle
	c.arm(c.cfg.Settle, c.unset)
}

func (c *ImpedanceController) unset() {
	c.stop = nil
	if err := c.setInputs(c.cur.channel, false, false); err != nil {
		c.Cancel(err)
		return
	}
	if len(c.plan) == 0 || c.plan[0].channel != c.cur.channel {
		c.emit(ImpedanceResult{Kind: ImpedanceKindChannel, Channel: c.cur.channel, Channels: []ChannelImpedance{c.results[c.cur.channel-1]}})
	}
	c.next()
}

func (c *ImpedanceController) setInputs(ch int, p, n bool) error {
	cmd, err := ImpedanceSetCommand(ch, c.channels, p, n)
	if err != nil {
		return err
	}
	return c.cmd.Write(cmd)
}

func (c *ImpedanceController) arm(d time.Duration, fn func()) {
	c.stopTimer()
	c.stop = c.sched.After(d, fn)
}

func (c *ImpedanceController) stopTimer() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}

func (c *ImpedanceController) finish(out []ChannelImpedance, err error) {
	done := c.done
	c.done = nil
	if done != nil {
		done(out, err)
	}
}
