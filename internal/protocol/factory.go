// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Transport kinds known out of the box.
const (
	TransportSerial = "serial"
	TransportTCP    = "tcp"
)

// TransportConfig selects and configures one transport
type TransportConfig struct {
	Type   string       `json:"type"`
	Serial SerialConfig `json:"serial"`
	TCP    TCPConfig    `json:"tcp"`
}

// Constructor builds a transport from configuration
type Constructor func(cfg TransportConfig, logger *zap.Logger) (Transport, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{
		TransportSerial: createSerialTransport,
		TransportTCP:    createTCPTransport,
	}
)

// Register adds or replaces the constructor for a transport kind
func Register(kind string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = c
}

// Kinds lists the registered transport kinds
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// NewTransport creates a transport based on the configured type
func NewTransport(cfg TransportConfig, logger *zap.Logger) (Transport, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	registryMu.RLock()
	c, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported transport type: %q", cfg.Type)
	}
	return c(cfg, logger)
}

// ValidateConfig validates configuration for the selected transport type
func ValidateConfig(cfg TransportConfig) error {
	switch cfg.Type {
	case TransportSerial:
		return validateSerialConfig(cfg.Serial)
	case TransportTCP:
		return validateTCPConfig(cfg.TCP)
	default:
		return nil
	}
}

func validateSerialConfig(c SerialConfig) error {
	if c.Port == "" {
		return fmt.Errorf("serial port is required")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("invalid data bits: %d", c.DataBits)
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return fmt.Errorf("invalid stop bits: %d", c.StopBits)
	}
	switch c.Parity {
	case "none", "odd", "even":
	default:
		return fmt.Errorf("invalid parity: %q", c.Parity)
	}
	return nil
}

func validateTCPConfig(c TCPConfig) error {
	if c.Host == "" {
		return fmt.Errorf("tcp host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid tcp port: %d", c.Port)
	}
	return nil
}

func createSerialTransport(cfg TransportConfig, logger *zap.Logger) (Transport, error) {
	logger.Info("Creating serial transport",
		zap.String("port", cfg.Serial.Port),
		zap.Int("baud_rate", cfg.Serial.BaudRate),
	)
	return NewSerialConnection(cfg.Serial, logger), nil
}

func createTCPTransport(cfg TransportConfig, logger *zap.Logger) (Transport, error) {
	logger.Info("Creating TCP transport",
		zap.String("host", cfg.TCP.Host),
		zap.Int("port", cfg.TCP.Port),
	)
	return NewTCPConnection(cfg.TCP, logger), nil
}
