// internal/cyton/radio.go
package cyton

import (
	"fmt"
	"strconv"
	"time"
)

// Radio command framing. Every radio command starts with RadioKey.
const (
	RadioKey byte = 0xF0

	RadioCmdChannelGet         byte = 0x00
	RadioCmdChannelSet         byte = 0x01
	RadioCmdChannelSetOverride byte = 0x02
	RadioCmdPollTimeGet        byte = 0x03
	RadioCmdPollTimeSet        byte = 0x04
	RadioCmdBaudRateDefault    byte = 0x05
	RadioCmdBaudRateFast       byte = 0x06
	RadioCmdSystemStatus       byte = 0x07

	RadioChannelMin  = 0
	RadioChannelMax  = 25
	RadioPollTimeMax = 255

	RadioBaudDefault = 115200
	RadioBaudFast    = 230400

	RadioShortTimeout = 500 * time.Millisecond
	RadioTimeout      = 1000 * time.Millisecond
)

// RadioCommand is a request for the dongle or board radio.
type RadioCommand struct {
	Name    string
	Payload []byte
	// Firmware v2 is required unless SkipFirmwareCheck is set.
	SkipFirmwareCheck bool
	Timeout           time.Duration
}

func radioCommand(name string, cmd byte, timeout time.Duration, value ...byte) RadioCommand {
	return RadioCommand{
		Name:    name,
		Payload: append([]byte{RadioKey, cmd}, value...),
		Timeout: timeout,
	}
}

func RadioChannelGet() RadioCommand {
	return radioCommand("radioChannelGet", RadioCmdChannelGet, RadioShortTimeout)
}

func RadioChannelSet(channel int) (RadioCommand, error) {
	if channel < RadioChannelMin || channel > RadioChannelMax {
		return RadioCommand{}, fmt.Errorf("%w: radio channel %d outside %d..%d", ErrInvalidArgument, channel, RadioChannelMin, RadioChannelMax)
	}
	return radioCommand("radioChannelSet", RadioCmdChannelSet, RadioTimeout, byte(channel)), nil
}

// RadioChannelSetHostOverride moves only the dongle, used to recover a board
// that is already on another channel.
func RadioChannelSetHostOverride(channel int) (RadioCommand, error) {
	if channel < RadioChannelMin || channel > RadioChannelMax {
		return RadioCommand{}, fmt.Errorf("%w: radio channel %d outside %d..%d", ErrInvalidArgument, channel, RadioChannelMin, RadioChannelMax)
	}
	cmd := radioCommand("radioChannelSetHostOverride", RadioCmdChannelSetOverride, RadioTimeout, byte(channel))
	cmd.SkipFirmwareCheck = true
	return cmd, nil
}

func RadioPollTimeGet() RadioCommand {
	return radioCommand("radioPollTimeGet", RadioCmdPollTimeGet, RadioTimeout)
}

func RadioPollTimeSet(pollTime int) (RadioCommand, error) {
	if pollTime < 0 || pollTime > RadioPollTimeMax {
		return RadioCommand{}, fmt.Errorf("%w: poll time %d outside 0..%d", ErrInvalidArgument, pollTime, RadioPollTimeMax)
	}
	return radioCommand("radioPollTimeSet", RadioCmdPollTimeSet, RadioTimeout, byte(pollTime)), nil
}

func RadioBaudRateSet(speed string) (RadioCommand, error) {
	switch speed {
	case "default":
		return radioCommand("radioBaudRateSet", RadioCmdBaudRateDefault, RadioTimeout), nil
	case "fast":
		return radioCommand("radioBaudRateSet", RadioCmdBaudRateFast, RadioTimeout), nil
	default:
		return RadioCommand{}, fmt.Errorf("%w: baud speed %q, want default or fast", ErrInvalidArgument, speed)
	}
}

func RadioSystemStatusGet() RadioCommand {
	return radioCommand("radioSystemStatusGet", RadioCmdSystemStatus, RadioTimeout)
}

// RadioValue extracts the single byte value a successful radio reply carries
// just before the terminator.
func RadioValue(cmd RadioCommand, reply string) (int, error) {
	if !IsSuccess(reply) || len(reply) == 0 {
		return 0, &DeviceError{Command: cmd.Name, Response: reply}
	}
	return int(reply[len(reply)-1]), nil
}

// RadioBaudRate parses the six digit baud rate a baud change reply ends with.
func RadioBaudRate(cmd RadioCommand, reply string) (int, error) {
	if len(reply) < 6 {
		return 0, fmt.Errorf("%w: short baud rate reply %q", ErrDeviceFailure, reply)
	}
	baud, err := strconv.Atoi(reply[len(reply)-6:])
	if err != nil || (baud != RadioBaudDefault && baud != RadioBaudFast) {
		return 0, fmt.Errorf("%w: baud rate parse mismatch in %q", ErrDeviceFailure, reply)
	}
	if !IsSuccess(reply) {
		return 0, &DeviceError{Command: cmd.Name, Response: reply}
	}
	return baud, nil
}
