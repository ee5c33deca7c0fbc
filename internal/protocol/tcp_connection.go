// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TCPConnection implements Transport for a dongle exposed by a serial-to-TCP
// bridge such as ser2net.
type TCPConnection struct {
	config TCPConfig
	conn   net.Conn
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool

	statsMu sync.Mutex
	stats   TransportStats
}

// NewTCPConnection creates a new TCP connection
func NewTCPConnection(config TCPConfig, logger *zap.Logger) *TCPConnection {
	return &TCPConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "tcp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
	}
}

func (tc *TCPConnection) Name() string { return "tcp:" + tc.address() }

func (tc *TCPConnection) address() string {
	return net.JoinHostPort(tc.config.Host, fmt.Sprint(tc.config.Port))
}

// Open dials the bridge
func (tc *TCPConnection) Open(ctx context.Context) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.isOpen {
		return nil
	}
	if tc.config.Host == "" {
		return fmt.Errorf("tcp host is required")
	}

	tc.logger.Info("Opening TCP connection")

	dialer := &net.Dialer{
		Timeout:   tc.config.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	conn, err := dialer.DialContext(ctx, "tcp", tc.address())
	if err != nil {
		tc.logger.Error("Failed to open TCP connection", zap.Error(err))
		return fmt.Errorf("failed to connect to %s: %w", tc.address(), err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	tc.conn = conn
	tc.isOpen = true
	tc.updateStats(func(s *TransportStats) {
		s.IsConnected = true
		s.LastActivity = time.Now()
	})

	tc.logger.Info("TCP connection opened successfully")
	return nil
}

// Close closes the TCP connection
func (tc *TCPConnection) Close() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return nil
	}

	err := tc.conn.Close()
	tc.conn = nil
	tc.isOpen = false
	tc.updateStats(func(s *TransportStats) { s.IsConnected = false })

	if err != nil {
		tc.logger.Error("Failed to close TCP connection", zap.Error(err))
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}
	tc.logger.Info("TCP connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (tc *TCPConnection) IsOpen() bool {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.isOpen && tc.conn != nil
}

// Write writes data to the TCP connection
func (tc *TCPConnection) Write(ctx context.Context, data []byte) error {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	if !tc.isOpen || tc.conn == nil {
		return ErrPortNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if tc.config.WriteTimeout > 0 {
		_ = tc.conn.SetWriteDeadline(time.Now().Add(tc.config.WriteTimeout))
	}

	startTime := time.Now()
	n, err := tc.conn.Write(data)
	if err != nil {
		tc.updateStats(func(s *TransportStats) { s.ErrorCount++ })
		tc.logger.Error("TCP write failed", zap.Error(err))
		return fmt.Errorf("failed to write to TCP connection: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	duration := time.Since(startTime)
	tc.updateStats(func(s *TransportStats) {
		s.BytesWritten += int64(n)
		s.OperationCount++
		s.LastActivity = time.Now()
		s.updateAverageLatency(duration)
	})

	tc.logger.Debug("TCP write completed", zap.Int("bytes", n))
	return nil
}

// Read waits at most the read timeout for data. An expired deadline is not
// an error and yields an empty result, like a serial read timeout.
func (tc *TCPConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	if !tc.isOpen || tc.conn == nil {
		return nil, ErrPortNotOpen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if tc.config.ReadTimeout > 0 {
		_ = tc.conn.SetReadDeadline(time.Now().Add(tc.config.ReadTimeout))
	}

	buffer := make([]byte, maxBytes)
	n, err := tc.conn.Read(buffer)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return buffer[:n], nil
		}
		tc.updateStats(func(s *TransportStats) { s.ErrorCount++ })
		return nil, fmt.Errorf("failed to read from TCP connection: %w", err)
	}

	tc.updateStats(func(s *TransportStats) {
		s.BytesRead += int64(n)
		s.OperationCount++
		s.LastActivity = time.Now()
	})
	return buffer[:n], nil
}

// Stats returns a copy of the connection statistics
func (tc *TCPConnection) Stats() TransportStats {
	tc.statsMu.Lock()
	defer tc.statsMu.Unlock()
	return tc.stats
}

func (tc *TCPConnection) updateStats(fn func(*TransportStats)) {
	tc.statsMu.Lock()
	fn(&tc.stats)
	tc.statsMu.Unlock()
}
