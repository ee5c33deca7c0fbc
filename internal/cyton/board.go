// internal/cyton/board.go
package cyton

import (
	"strings"
	"time"
)

// BoardInfo describes the hardware as reported by the reset banner.
type BoardInfo struct {
	Board      BoardType     `json:"boardType"`
	Firmware   Firmware      `json:"firmware"`
	Channels   int           `json:"numberOfChannels"`
	SampleRate float64       `json:"sampleRate"`
	WriteDelay time.Duration `json:"writeDelay"`
	Banner     string        `json:"banner,omitempty"`
}

// DefaultBoardInfo is assumed until a banner has been parsed.
func DefaultBoardInfo() BoardInfo {
	return newBoardInfo(BoardDefault, FirmwareV1)
}

func newBoardInfo(board BoardType, fw Firmware) BoardInfo {
	return BoardInfo{
		Board:      board,
		Firmware:   fw,
		Channels:   board.Channels(),
		SampleRate: board.SampleRate(),
		WriteDelay: fw.WriteDelay(),
	}
}

// ParseBanner inspects the text printed after a soft reset.
func ParseBanner(text string) BoardInfo {
	board := BoardDefault
	switch {
	case strings.Count(text, "ADS1299") >= 2:
		board = BoardDaisy
	case strings.Contains(text, "Ganglion"):
		board = BoardGanglion
	}
	fw := FirmwareV1
	if strings.Contains(text, "v2") {
		fw = FirmwareV2
	}
	info := newBoardInfo(board, fw)
	info.Banner = text
	return info
}

// IsFailure reports whether an end-of-text reply signals a failed command.
func IsFailure(text string) bool {
	return strings.Contains(text, "Failure")
}

// IsSuccess reports whether an end-of-text reply signals success.
func IsSuccess(text string) bool {
	return strings.Contains(text, "Success")
}
