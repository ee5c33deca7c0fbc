// internal/protocol/protocol.go
package protocol

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPortNotOpen  = errors.New("port not open")
	ErrWriterClosed = errors.New("write queue closed")
	ErrQueueFull    = errors.New("write queue full")
)

// Transport is a byte pipe to a board
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data communication
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// Name identifies the transport in logs
	Name() string
}

// BaudRateSetter is implemented by transports that can change line speed
// while open.
type BaudRateSetter interface {
	SetBaudRate(baud int) error
}

// TransportStats provides transport-level statistics
type TransportStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}

// updateAverageLatency keeps a running average of write latency
func (s *TransportStats) updateAverageLatency(newLatency time.Duration) {
	if s.AverageLatency == 0 {
		s.AverageLatency = newLatency
	} else {
		s.AverageLatency = (s.AverageLatency + newLatency) / 2
	}
}
