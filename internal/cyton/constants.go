// internal/cyton/constants.go
package cyton

import (
	"fmt"
	"time"
)

// Packet framing
const (
	PacketSize       = 33
	StartByte   byte = 0xA0
	StopByte    byte = 0xC0
	StopMask    byte = 0xF0
	TypeMask    byte = 0x0F
	MaxSampleNo      = 255

	ChannelsPerBoard  = 8
	ChannelsDaisy     = 16
	ChannelsGanglion  = 4
	DefaultBufferSize = 4096
	DefaultGain       = 24
)

// Offsets inside a packet
const (
	offsetSampleNumber = 1
	offsetChannels     = 2
	offsetAux          = 26
	offsetBoardTime    = 28
	offsetStop         = 32
	auxSize            = 6
)

// Scaling
const (
	ADSVref       = 4.5
	adsMaxCount   = 8388607 // 2^23 - 1
	AccelScale    = 0.002 / 16
	SampleRate250 = 250
	SampleRate125 = 125
	SampleRate200 = 200
)

// Write pacing between commands
const (
	WriteDelayNone  = 0
	WriteDelayV1    = 10 * time.Millisecond
	WriteDelayLong  = 50 * time.Millisecond
	CommandTimeout  = 1000 * time.Millisecond
	SyncFullTimeout = 500 * time.Millisecond
)

// PacketType is the low nibble of the stop byte.
type PacketType byte

const (
	PacketStandardAccel PacketType = iota
	PacketStandardRawAux
	PacketUserDefined
	PacketTimeSyncSet
	PacketTimeSyncedAccel
	PacketTimeSyncedRawAux
)

func (t PacketType) String() string {
	switch t {
	case PacketStandardAccel:
		return "standard_accel"
	case PacketStandardRawAux:
		return "standard_raw_aux"
	case PacketUserDefined:
		return "user_defined"
	case PacketTimeSyncSet:
		return "time_sync_set"
	case PacketTimeSyncedAccel:
		return "time_synced_accel"
	case PacketTimeSyncedRawAux:
		return "time_synced_raw_aux"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// BoardType identifies the attached hardware.
type BoardType string

const (
	BoardDefault  BoardType = "default"
	BoardDaisy    BoardType = "daisy"
	BoardGanglion BoardType = "ganglion"
)

// Channels returns the number of EEG channels the board exposes.
func (b BoardType) Channels() int {
	switch b {
	case BoardDaisy:
		return ChannelsDaisy
	case BoardGanglion:
		return ChannelsGanglion
	default:
		return ChannelsPerBoard
	}
}

// SampleRate returns the per-sample rate in Hz after daisy merging.
func (b BoardType) SampleRate() float64 {
	switch b {
	case BoardDaisy:
		return SampleRate125
	case BoardGanglion:
		return SampleRate200
	default:
		return SampleRate250
	}
}

// ParsingMode selects how incoming bytes are interpreted.
type ParsingMode int

const (
	ModeReset ParsingMode = iota
	ModeNormal
	ModeTimeSyncSent
	ModeEndOfText
)

func (m ParsingMode) String() string {
	switch m {
	case ModeReset:
		return "reset"
	case ModeNormal:
		return "normal"
	case ModeTimeSyncSent:
		return "time_sync_sent"
	case ModeEndOfText:
		return "end_of_text"
	default:
		return "unknown"
	}
}

// Firmware is the major firmware version reported in the reset banner.
type Firmware int

const (
	FirmwareUnknown Firmware = iota
	FirmwareV1
	FirmwareV2
)

func (f Firmware) String() string {
	switch f {
	case FirmwareV1:
		return "v1"
	case FirmwareV2:
		return "v2"
	default:
		return "unknown"
	}
}

// WriteDelay is the minimum gap between consecutive command writes.
func (f Firmware) WriteDelay() time.Duration {
	if f == FirmwareV2 {
		return WriteDelayNone
	}
	return WriteDelayV1
}

var endOfTransmission = []byte("$$$")
