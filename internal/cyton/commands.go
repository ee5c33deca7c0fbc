// internal/cyton/commands.go
package cyton

import "fmt"

// Single byte board commands.
const (
	CmdStreamStart      byte = 'b'
	CmdStreamStop       byte = 's'
	CmdSoftReset        byte = 'v'
	CmdQueryRegisters   byte = '?'
	CmdDefaultSettings  byte = 'd'
	CmdMaxChannels8     byte = 'c'
	CmdMaxChannels16    byte = 'C'
	CmdSyncClocks       byte = '<'
	CmdSyncConfirmation byte = ','
	CmdSDStop           byte = 'j'

	CmdChannelSetStart byte = 'x'
	CmdChannelSetEnd   byte = 'X'
	CmdImpedanceStart  byte = 'z'
	CmdImpedanceEnd    byte = 'Z'
)

var (
	channelSelect = []byte("12345678QWERTYUI")
	channelOff    = []byte("12345678qwertyui")
	channelOn     = []byte("!@#$%^&*QWERTYUI")
)

// InputType selects the ADS1299 channel input multiplexer setting.
type InputType string

const (
	InputNormal     InputType = "normal"
	InputShorted    InputType = "shorted"
	InputBiasMethod InputType = "biasMethod"
	InputMVDD       InputType = "mvdd"
	InputTemp       InputType = "temp"
	InputTestSig    InputType = "testsig"
	InputBiasDRP    InputType = "biasDrp"
	InputBiasDRN    InputType = "biasDrn"
)

var inputCodes = map[InputType]byte{
	InputNormal: '0', InputShorted: '1', InputBiasMethod: '2', InputMVDD: '3',
	InputTemp: '4', InputTestSig: '5', InputBiasDRP: '6', InputBiasDRN: '7',
}

// TestSignal names the internal test signal generators.
type TestSignal string

const (
	TestSignalDC          TestSignal = "dc"
	TestSignalGround      TestSignal = "ground"
	TestSignalPulse1xFast TestSignal = "pulse1xFast"
	TestSignalPulse1xSlow TestSignal = "pulse1xSlow"
	TestSignalPulse2xFast TestSignal = "pulse2xFast"
	TestSignalPulse2xSlow TestSignal = "pulse2xSlow"
	TestSignalNone        TestSignal = "none"
)

var testSignalCodes = map[TestSignal]byte{
	TestSignalDC: 'p', TestSignalGround: '0', TestSignalPulse1xFast: '=',
	TestSignalPulse1xSlow: '-', TestSignalPulse2xFast: ']', TestSignalPulse2xSlow: '[',
	TestSignalNone: 'd',
}

// SDDuration names the on-board SD logging durations.
type SDDuration string

var sdCodes = map[SDDuration]byte{
	"14sec": 'a', "5min": 'A', "15min": 'S', "30min": 'F',
	"1hour": 'G', "2hour": 'H', "4hour": 'J', "12hour": 'K', "24hour": 'L',
}

// ChannelSettings is the full per-channel register configuration.
type ChannelSettings struct {
	Channel   int       `json:"channel" binding:"required"`
	PowerDown bool      `json:"powerDown"`
	Gain      int       `json:"gain" binding:"required"`
	Input     InputType `json:"inputType" binding:"required"`
	Bias      bool      `json:"bias"`
	SRB2      bool      `json:"srb2"`
	SRB1      bool      `json:"srb1"`
}

func channelByte(table []byte, channel, max int) (byte, error) {
	if channel < 1 || channel > max || channel > len(table) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	return table[channel-1], nil
}

func flag(b bool) byte {
	if b {
		return '1'
	}
	return '0'
}

// ChannelOffCommand turns a channel off.
func ChannelOffCommand(channel, channels int) ([]byte, error) {
	b, err := channelByte(channelOff, channel, channels)
	if err != nil {
		return nil, err
	}
	return []byte{b}, nil
}

// ChannelOnCommand turns a channel on.
func ChannelOnCommand(channel, channels int) ([]byte, error) {
	b, err := channelByte(channelOn, channel, channels)
	if err != nil {
		return nil, err
	}
	return []byte{b}, nil
}

// ChannelSetCommand encodes "x <ch> <pd> <gain> <input> <bias> <srb2> <srb1> X".
func ChannelSetCommand(s ChannelSettings, channels int) ([]byte, error) {
	ch, err := channelByte(channelSelect, s.Channel, channels)
	if err != nil {
		return nil, err
	}
	gain, ok := ValidGains[s.Gain]
	if !ok {
		return nil, fmt.Errorf("%w: gain %d", ErrInvalidArgument, s.Gain)
	}
	input, ok := inputCodes[s.Input]
	if !ok {
		return nil, fmt.Errorf("%w: input type %q", ErrInvalidArgument, s.Input)
	}
	return []byte{
		CmdChannelSetStart, ch, flag(s.PowerDown), gain, input,
		flag(s.Bias), flag(s.SRB2), flag(s.SRB1), CmdChannelSetEnd,
	}, nil
}

// ImpedanceSetCommand encodes "z <ch> <P> <N> Z".
func ImpedanceSetCommand(channel, channels int, pInput, nInput bool) ([]byte, error) {
	ch, err := channelByte(channelSelect, channel, channels)
	if err != nil {
		return nil, err
	}
	return []byte{CmdImpedanceStart, ch, flag(pInput), flag(nInput), CmdImpedanceEnd}, nil
}

// TestSignalCommand selects an internal test signal.
func TestSignalCommand(sig TestSignal) ([]byte, error) {
	b, ok := testSignalCodes[sig]
	if !ok {
		return nil, fmt.Errorf("%w: test signal %q", ErrInvalidArgument, sig)
	}
	return []byte{b}, nil
}

// SDStartCommand starts SD logging for one of the fixed durations.
func SDStartCommand(d SDDuration) ([]byte, error) {
	b, ok := sdCodes[d]
	if !ok {
		return nil, fmt.Errorf("%w: sd duration %q", ErrInvalidArgument, d)
	}
	return []byte{b}, nil
}
