// internal/cyton/errors.go
package cyton

import (
	"errors"
	"fmt"
)

// Decode errors. These are counted and skipped.
var (
	ErrBadStartByte      = errors.New("bad start byte")
	ErrBadStopByte       = errors.New("bad stop byte")
	ErrUnknownPacketType = errors.New("unknown packet type")
)

// Buffer errors. ErrChunkTooLarge ends the session, ErrOverrun does not.
var (
	ErrChunkTooLarge = errors.New("chunk larger than ring buffer")
	ErrOverrun       = errors.New("ring buffer overrun, oldest packets dropped")
)

// Command errors, returned to the caller of the command.
var (
	ErrInvalidChannel     = errors.New("invalid channel number")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotConnected       = errors.New("board not connected")
	ErrAlreadyConnected   = errors.New("board already connected")
	ErrNotStreaming       = errors.New("board not streaming")
	ErrAlreadyStreaming   = errors.New("board already streaming")
	ErrStreaming          = errors.New("command not allowed while streaming")
	ErrFirmwareV1         = errors.New("command requires firmware v2")
	ErrImpedanceActive    = errors.New("impedance test already active")
	ErrImpedanceCancelled = errors.New("impedance test cancelled")
	ErrNotContinuous      = errors.New("impedance test not in continuous mode")
	ErrDeviceFailure      = errors.New("device reported failure")
	ErrTimeout            = errors.New("timed out waiting for board")
	ErrSessionClosed      = errors.New("session closed")
)

// Time sync errors carried on SyncResult.
var (
	ErrSyncNotStarted = errors.New("sync object null")
	ErrSyncNoComma    = errors.New("no comma")
)

// DeviceError wraps a failure text returned by the board.
type DeviceError struct {
	Command  string
	Response string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("command %q failed: %s", e.Command, e.Response)
}

func (e *DeviceError) Is(target error) bool {
	return target == ErrDeviceFailure
}
