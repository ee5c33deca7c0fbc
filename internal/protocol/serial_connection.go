// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// SerialConnection implements Transport over a USB serial dongle
type SerialConnection struct {
	config SerialConfig
	port   serial.Port
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool

	statsMu sync.Mutex
	stats   TransportStats
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config SerialConfig, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
	}
}

func (sc *SerialConnection) Name() string { return "serial:" + sc.config.Port }

// Open opens the serial connection
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if sc.config.Port == "" {
		return fmt.Errorf("serial port is required")
	}

	sc.logger.Info("Opening serial port",
		zap.Int("baud_rate", sc.config.BaudRate),
	)

	port, err := serial.Open(sc.config.Port, sc.mode(sc.config.BaudRate))
	if err != nil {
		sc.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := port.SetReadTimeout(sc.config.Timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		sc.logger.Warn("Failed to flush serial input", zap.Error(err))
	}

	sc.port = port
	sc.isOpen = true
	sc.updateStats(func(s *TransportStats) {
		s.IsConnected = true
		s.LastActivity = time.Now()
	})

	sc.logger.Info("Serial port opened successfully")
	return nil
}

func (sc *SerialConnection) mode(baud int) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: sc.config.DataBits,
	}

	switch sc.config.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	switch sc.config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode
}

// SetBaudRate reconfigures an open port, used after a radio baud change
func (sc *SerialConnection) SetBaudRate(baud int) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return ErrPortNotOpen
	}
	if err := sc.port.SetMode(sc.mode(baud)); err != nil {
		return fmt.Errorf("failed to set baud rate %d: %w", baud, err)
	}
	sc.config.BaudRate = baud
	sc.logger.Info("Serial baud rate changed", zap.Int("baud_rate", baud))
	return nil
}

// Close closes the serial connection
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	err := sc.port.Close()
	sc.port = nil
	sc.isOpen = false
	sc.updateStats(func(s *TransportStats) { s.IsConnected = false })

	if err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	sc.logger.Info("Serial port closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.isOpen && sc.port != nil
}

// Write writes data to the serial port
func (sc *SerialConnection) Write(ctx context.Context, data []byte) error {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	if !sc.isOpen || sc.port == nil {
		return ErrPortNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	startTime := time.Now()
	n, err := sc.port.Write(data)
	if err != nil {
		sc.updateStats(func(s *TransportStats) { s.ErrorCount++ })
		sc.logger.Error("Serial write failed", zap.Error(err))
		return fmt.Errorf("failed to write to serial port: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	duration := time.Since(startTime)
	sc.updateStats(func(s *TransportStats) {
		s.BytesWritten += int64(n)
		s.OperationCount++
		s.LastActivity = time.Now()
		s.updateAverageLatency(duration)
	})

	sc.logger.Debug("Serial write completed", zap.ByteString("data", data))
	return nil
}

// Read reads whatever is available, waiting at most the configured read
// timeout. An empty result means the timeout expired.
func (sc *SerialConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	if !sc.isOpen || sc.port == nil {
		return nil, ErrPortNotOpen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buffer := make([]byte, maxBytes)
	n, err := sc.port.Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		sc.updateStats(func(s *TransportStats) { s.ErrorCount++ })
		return nil, fmt.Errorf("failed to read from serial port: %w", err)
	}

	if n > 0 {
		sc.updateStats(func(s *TransportStats) {
			s.BytesRead += int64(n)
			s.OperationCount++
			s.LastActivity = time.Now()
		})
	}
	return buffer[:n], nil
}

// Stats returns a copy of the connection statistics
func (sc *SerialConnection) Stats() TransportStats {
	sc.statsMu.Lock()
	defer sc.statsMu.Unlock()
	return sc.stats
}

func (sc *SerialConnection) updateStats(fn func(*TransportStats)) {
	sc.statsMu.Lock()
	fn(&sc.stats)
	sc.statsMu.Unlock()
}
