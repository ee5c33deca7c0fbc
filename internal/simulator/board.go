// internal/simulator/board.go
package simulator

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"cyton-service/internal/cyton"
	"cyton-service/internal/protocol"
)

// TransportName is the transport.type that selects the simulator
const TransportName = "simulator"

// Config describes the simulated hardware
type Config struct {
	Daisy         bool          `json:"daisy"`
	Firmware      string        `json:"firmware"`
	PacketRate    float64       `json:"packet_rate"`
	ElectrodeOhms float64       `json:"electrode_ohms"`
	AlphaMicroV   float64       `json:"alpha_uv"`
	NoiseMicroV   float64       `json:"noise_uv"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	Seed          int64         `json:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Firmware:      "v2",
		PacketRate:    cyton.SampleRate250,
		ElectrodeOhms: 4000,
		AlphaMicroV:   10,
		NoiseMicroV:   1,
		ReadTimeout:   50 * time.Millisecond,
		Seed:          1,
	}
}

// Board is an in-process Cyton that implements protocol.Transport
type Board struct {
	cfg    Config
	logger *zap.Logger
	drive  cyton.ImpedanceConfig

	mutex        sync.Mutex
	open         bool
	streaming    bool
	timeSynced   bool
	syncPending  bool
	sampleNumber byte
	injecting    map[int]bool
	started      time.Time
	stopStream   chan struct{}
	rng          *rand.Rand

	out     chan []byte
	pending []byte
}

func NewBoard(cfg Config, logger *zap.Logger) *Board {
	if cfg.PacketRate <= 0 {
		cfg.PacketRate = cyton.SampleRate250
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 50 * time.Millisecond
	}
	return &Board{
		cfg:       cfg,
		logger:    logger.With(zap.String("protocol", "simulator")),
		drive:     cyton.DefaultImpedanceConfig(),
		injecting: make(map[int]bool),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		out:       make(chan []byte, 1024),
	}
}

func (b *Board) Name() string { return TransportName }

func (b *Board) Open(ctx context.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	b.open = true
	b.logger.Info("Simulated board opened", zap.Bool("daisy", b.cfg.Daisy), zap.String("firmware", b.cfg.Firmware))
	return nil
}

func (b *Board) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.haltStream()
	b.open = false
	return nil
}

func (b *Board) IsOpen() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.open
}

// Read returns queued board output, waiting at most the read timeout
func (b *Board) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	if !b.IsOpen() {
		return nil, protocol.ErrPortNotOpen
	}
	if len(b.pending) == 0 {
		timer := time.NewTimer(b.cfg.ReadTimeout)
		defer timer.Stop()
		select {
		case data := <-b.out:
			b.pending = data
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	n := len(b.pending)
	if n > maxBytes {
		n = maxBytes
	}
	data := b.pending[:n]
	b.pending = b.pending[n:]
	return data, nil
}

// Write interprets one command
func (b *Board) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if !b.open {
		return protocol.ErrPortNotOpen
	}
	if len(data) == 0 {
		return nil
	}

	switch c := data[0]; {
	case c == cyton.CmdStreamStart:
		b.startStream()
	case c == cyton.CmdStreamStop:
		b.haltStream()
	case c == cyton.CmdSoftReset:
		b.haltStream()
		b.timeSynced = false
		b.injecting = make(map[int]bool)
		b.emit([]byte(b.banner()))
	case c == cyton.CmdQueryRegisters:
		b.reply(registerDump)
	case c == cyton.CmdMaxChannels8:
		b.reply("daisy removed")
	case c == cyton.CmdMaxChannels16:
		if b.cfg.Daisy {
			b.reply("daisy attached16")
		} else {
			b.reply("no daisy to attach!8")
		}
	case c == cyton.CmdSyncClocks:
		if b.streaming && b.cfg.Firmware == "v2" {
			b.emit([]byte{cyton.CmdSyncConfirmation})
			b.syncPending = true
		}
	case c == cyton.CmdImpedanceStart && len(data) >= 5:
		b.setImpedance(data[1], data[2] == '1' || data[3] == '1')
	case c == cyton.RadioKey && len(data) >= 2:
		b.radio(data[1:])
	case c == cyton.CmdSDStop:
		b.reply("Total Elapsed Time: 0 ms")
	case bytes.IndexByte([]byte("aASFGHJKL"), c) >= 0:
		b.reply("Wiper\nCorresponding SD file OBCI_01.TXT")
	}
	return nil
}

func (b *Board) banner() string {
	var sb bytes.Buffer
	sb.WriteString("OpenBCI V3 8-16 channel\n")
	sb.WriteString("On Board ADS1299 Device ID: 0x3E\n")
	if b.cfg.Daisy {
		sb.WriteString("On Daisy ADS1299 Device ID: 0x3E\n")
	}
	sb.WriteString("LIS3DH Device ID: 0x33\n")
	if b.cfg.Firmware == "v2" {
		sb.WriteString("Firmware: v2.0.0\n")
	}
	sb.WriteString("$$$")
	return sb.String()
}

// reply emits a text answer; the board stays silent while streaming.
func (b *Board) reply(text string) {
	if b.streaming {
		return
	}
	b.emit([]byte(text + "$$$"))
}

func (b *Board) radio(cmd []byte) {
	if b.cfg.Firmware != "v2" {
		return
	}
	value := byte(0)
	if len(cmd) > 1 {
		value = cmd[1]
	}
	switch cmd[0] {
	case cyton.RadioCmdChannelGet:
		b.reply("Success: Host and Device on Channel Number " + string([]byte{7}))
	case cyton.RadioCmdChannelSet, cyton.RadioCmdChannelSetOverride:
		b.reply("Success: Channel set to " + string([]byte{value}))
	case cyton.RadioCmdPollTimeGet:
		b.reply("Success: Poll time " + string([]byte{80}))
	case cyton.RadioCmdPollTimeSet:
		b.reply("Success: Poll time set to " + string([]byte{value}))
	case cyton.RadioCmdBaudRateDefault:
		b.reply(fmt.Sprintf("Success: Switch your baud rate to %d", cyton.RadioBaudDefault))
	case cyton.RadioCmdBaudRateFast:
		b.reply(fmt.Sprintf("Success: Switch your baud rate to %d", cyton.RadioBaudFast))
	case cyton.RadioCmdSystemStatus:
		b.reply("Success: System is Up")
	}
}

func (b *Board) setImpedance(channel byte, on bool) {
	idx := bytes.IndexByte([]byte("12345678QWERTYUI"), channel)
	if idx < 0 {
		return
	}
	b.injecting[idx+1] = on
}

func (b *Board) emit(data []byte) {
	select {
	case b.out <- data:
	default:
		b.logger.Warn("Simulator output full, dropping data", zap.Int("bytes", len(data)))
	}
}

func (b *Board) startStream() {
	if b.streaming {
		return
	}
	b.streaming = true
	b.started = time.Now()
	b.stopStream = make(chan struct{})
	go b.streamLoop(b.stopStream)
}

func (b *Board) haltStream() {
	if !b.streaming {
		return
	}
	b.streaming = false
	close(b.stopStream)
}

func (b *Board) streamLoop(stop chan struct{}) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var sent int64
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			b.mutex.Lock()
			due := int64(now.Sub(b.started).Seconds() * b.cfg.PacketRate)
			var chunk []byte
			for ; sent < due; sent++ {
				p := b.nextPacket(now)
				chunk = append(chunk, p[:]...)
			}
			if len(chunk) > 0 {
				b.emit(chunk)
			}
			b.mutex.Unlock()
		}
	}
}

// nextPacket builds one packet. With a daisy attached odd sample numbers
// carry the lower board and even ones the upper board.
func (b *Board) nextPacket(now time.Time) cyton.Packet {
	b.sampleNumber++
	sn := b.sampleNumber
	offset := 0
	if b.cfg.Daisy && sn%2 == 0 {
		offset = cyton.ChannelsPerBoard
	}

	t := float64(sn) / b.cfg.PacketRate
	if b.cfg.Daisy {
		t = float64(sn/2) / (b.cfg.PacketRate / 2)
	}
	scale := cyton.ScaleFactor(cyton.DefaultGain)

	var counts [cyton.ChannelsPerBoard]int32
	for i := range counts {
		v := b.cfg.AlphaMicroV*1e-6*math.Sin(2*math.Pi*10*t) + b.cfg.NoiseMicroV*1e-6*b.rng.NormFloat64()
		if b.injecting[offset+i+1] {
			v += b.leadOffAmplitude() * math.Sin(2*math.Pi*b.leadOffHz()*t)
		}
		counts[i] = int32(v / scale)
	}

	boardTime := uint32(now.Sub(b.started).Milliseconds())
	switch {
	case b.syncPending:
		b.syncPending = false
		b.timeSynced = true
		return cyton.NewTimeSyncedPacket(sn, cyton.PacketTimeSyncSet, counts, [2]byte{}, boardTime)
	case b.timeSynced:
		return cyton.NewTimeSyncedPacket(sn, cyton.PacketTimeSyncedAccel, counts, accelAxis(sn), boardTime)
	default:
		var aux [6]byte
		if sn%10 == 0 {
			aux[4], aux[5] = byte(oneG >> 8), byte(oneG & 0xFF)
		}
		return cyton.NewPacket(sn, cyton.PacketStandardAccel, counts, aux)
	}
}

// oneG is 1 g in accelerometer counts.
const oneG = int16(1 / cyton.AccelScale)

func accelAxis(sn byte) [2]byte {
	if sn%10 == 2 {
		return [2]byte{byte(oneG >> 8), byte(oneG & 0xFF)}
	}
	return [2]byte{}
}

// leadOffHz snaps the drive frequency onto the nearest Goertzel bin.
func (b *Board) leadOffHz() float64 {
	rate := b.cfg.PacketRate
	if b.cfg.Daisy {
		rate /= 2
	}
	k := math.Floor(0.5 + cyton.GoertzelBlockSize*b.drive.LeadOffHz/rate)
	return k * rate / cyton.GoertzelBlockSize
}

// leadOffAmplitude is the sine amplitude for which a Goertzel block reports
// ElectrodeOhms once the series resistor is subtracted.
func (b *Board) leadOffAmplitude() float64 {
	magnitude := (b.cfg.ElectrodeOhms + b.drive.SeriesResistor) * b.drive.DriveAmps
	return 2 * magnitude / cyton.GoertzelBlockSize
}

const registerDump = `
Board ADS Registers
ADS_ID, 00, 3E, 0, 0, 1, 1, 1, 1, 1, 0
CONFIG1, 01, 96, 1, 0, 0, 1, 0, 1, 1, 0
CONFIG2, 02, C0, 1, 1, 0, 0, 0, 0, 0, 0
CONFIG3, 03, EC, 1, 1, 1, 0, 1, 1, 0, 0
LOFF, 04, 02, 0, 0, 0, 0, 0, 0, 1, 0
CH1SET, 05, 68, 0, 1, 1, 0, 1, 0, 0, 0
CH2SET, 06, 68, 0, 1, 1, 0, 1, 0, 0, 0
CH3SET, 07, 68, 0, 1, 1, 0, 1, 0, 0, 0
CH4SET, 08, 68, 0, 1, 1, 0, 1, 0, 0, 0
CH5SET, 09, 68, 0, 1, 1, 0, 1, 0, 0, 0
CH6SET, 0A, 68, 0, 1, 1, 0, 1, 0, 0, 0
CH7SET, 0B, 68, 0, 1, 1, 0, 1, 0, 0, 0
CH8SET, 0C, 68, 0, 1, 1, 0, 1, 0, 0, 0
`
