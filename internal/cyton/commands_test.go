// internal/cyton/commands_test.go
package cyton

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelCommands(t *testing.T) {
	tests := []struct {
		name    string
		build   func() ([]byte, error)
		want    []byte
		wantErr error
	}{
		{"off 1", func() ([]byte, error) { return ChannelOffCommand(1, 8) }, []byte("1"), nil},
		{"off 16", func() ([]byte, error) { return ChannelOffCommand(16, 16) }, []byte("i"), nil},
		{"on 2", func() ([]byte, error) { return ChannelOnCommand(2, 8) }, []byte("@"), nil},
		{"on 9", func() ([]byte, error) { return ChannelOnCommand(9, 16) }, []byte("Q"), nil},
		{"off beyond board", func() ([]byte, error) { return ChannelOffCommand(9, 8) }, nil, ErrInvalidChannel},
		{"on zero", func() ([]byte, error) { return ChannelOnCommand(0, 8) }, nil, ErrInvalidChannel},
		{"impedance 3 P", func() ([]byte, error) { return ImpedanceSetCommand(3, 8, true, false) }, []byte("z310Z"), nil},
		{"impedance 10 off", func() ([]byte, error) { return ImpedanceSetCommand(10, 16, false, false) }, []byte("zW00Z"), nil},
		{"test signal pulse", func() ([]byte, error) { return TestSignalCommand(TestSignalPulse2xSlow) }, []byte("["), nil},
		{"test signal unknown", func() ([]byte, error) { return TestSignalCommand("square") }, nil, ErrInvalidArgument},
		{"sd 1 hour", func() ([]byte, error) { return SDStartCommand("1hour") }, []byte("G"), nil},
		{"sd unknown", func() ([]byte, error) { return SDStartCommand("3days") }, nil, ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.build()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannelSetCommand(t *testing.T) {
	cmd, err := ChannelSetCommand(ChannelSettings{
		Channel: 5, PowerDown: false, Gain: 24, Input: InputNormal, Bias: true, SRB2: true, SRB1: false,
	}, 8)
	require.NoError(t, err)
	assert.Equal(t, "x5060110X", string(cmd))

	_, err = ChannelSetCommand(ChannelSettings{Channel: 1, Gain: 5, Input: InputNormal}, 8)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ChannelSetCommand(ChannelSettings{Channel: 1, Gain: 24, Input: "bogus"}, 8)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ChannelSetCommand(ChannelSettings{Channel: 9, Gain: 24, Input: InputNormal}, 8)
	assert.ErrorIs(t, err, ErrInvalidChannel)
}

func TestRadioCommands(t *testing.T) {
	cmd, err := RadioChannelSet(25)
	require.NoError(t, err)
	assert.Equal(t, []byte{RadioKey, RadioCmdChannelSet, 25}, cmd.Payload)
	assert.False(t, cmd.SkipFirmwareCheck)

	_, err = RadioChannelSet(26)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	override, err := RadioChannelSetHostOverride(3)
	require.NoError(t, err)
	assert.True(t, override.SkipFirmwareCheck)

	_, err = RadioPollTimeSet(256)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = RadioBaudRateSet("turbo")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, RadioShortTimeout, RadioChannelGet().Timeout)
	assert.Equal(t, []byte{RadioKey, RadioCmdSystemStatus}, RadioSystemStatusGet().Payload)
}

func TestRadioReplies(t *testing.T) {
	cmd := RadioChannelGet()

	v, err := RadioValue(cmd, "Success: Host and Device on Channel Number \x0b")
	require.NoError(t, err)
	assert.Equal(t, 11, v)

	_, err = RadioValue(cmd, "Failure: Host on Channel Number 3")
	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.ErrorIs(t, err, ErrDeviceFailure)
	assert.Equal(t, "radioChannelGet", devErr.Command)

	baudCmd, err := RadioBaudRateSet("fast")
	require.NoError(t, err)
	baud, err := RadioBaudRate(baudCmd, "Success: Switch your baud rate to 230400")
	require.NoError(t, err)
	assert.Equal(t, RadioBaudFast, baud)

	_, err = RadioBaudRate(baudCmd, "Success: Switch your baud rate to 9600")
	assert.ErrorIs(t, err, ErrDeviceFailure)
}

func TestParseBanner(t *testing.T) {
	tests := []struct {
		name     string
		banner   string
		board    BoardType
		firmware Firmware
		delay    time.Duration
	}{
		{"v1 single", "OpenBCI V3 8bit Board\nSetting ADS1299 Channel Values\nLIS3DH Device ID: 0x33", BoardDefault, FirmwareV1, WriteDelayV1},
		{"v2 daisy", daisyBanner, BoardDaisy, FirmwareV2, WriteDelayNone},
		{"ganglion", "OpenBCI Ganglion v2.0.0", BoardGanglion, FirmwareV2, WriteDelayNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseBanner(tt.banner)
			assert.Equal(t, tt.board, info.Board)
			assert.Equal(t, tt.firmware, info.Firmware)
			assert.Equal(t, tt.delay, info.WriteDelay)
			assert.Equal(t, tt.board.Channels(), info.Channels)
		})
	}
}
