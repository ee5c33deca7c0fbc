// internal/protocol/connection.go
package protocol

import "time"

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	DataBits int           `json:"data_bits"`
	StopBits int           `json:"stop_bits"`
	Parity   string        `json:"parity"`
	Timeout  time.Duration `json:"timeout"`
}

// DefaultSerialConfig matches the RFduino dongle: 115200 8N1.
func DefaultSerialConfig(port string) SerialConfig {
	return SerialConfig{
		Port:     port,
		BaudRate: 115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
		Timeout:  100 * time.Millisecond,
	}
}

// TCPConfig addresses a serial-to-TCP bridge
type TCPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

func DefaultTCPConfig(host string, port int) TCPConfig {
	return TCPConfig{
		Host:         host,
		Port:         port,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  100 * time.Millisecond,
		WriteTimeout: time.Second,
	}
}
