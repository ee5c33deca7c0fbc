// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"cyton-service/internal/cyton"
	"cyton-service/internal/protocol"
	"cyton-service/internal/simulator"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Transport TransportConfig `mapstructure:"transport"`
	Serial    SerialConfig    `mapstructure:"serial"`
	TCP       TCPConfig       `mapstructure:"tcp"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Board     BoardConfig     `mapstructure:"board"`
	Impedance ImpedanceConfig `mapstructure:"impedance"`
	Sync      SyncConfig      `mapstructure:"sync"`
	App       AppConfig       `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	StreamSamples  bool          `mapstructure:"stream_samples"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// TransportConfig selects how the service reaches the board
type TransportConfig struct {
	Type string `mapstructure:"type"`
}

// SerialConfig represents the dongle's serial line
type SerialConfig struct {
	Port     string        `mapstructure:"port"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	StopBits int           `mapstructure:"stop_bits"`
	Parity   string        `mapstructure:"parity"`
	Timeout  time.Duration `mapstructure:"timeout"`
	ReadSize int           `mapstructure:"read_size"`
}

// TCPConfig addresses a serial-to-TCP bridge
type TCPConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// SimulatorConfig drives the built-in simulated board
type SimulatorConfig struct {
	Firmware      string  `mapstructure:"firmware"`
	ElectrodeOhms float64 `mapstructure:"electrode_ohms"`
	AlphaMicroV   float64 `mapstructure:"alpha_microvolts"`
	NoiseMicroV   float64 `mapstructure:"noise_microvolts"`
	Seed          int64   `mapstructure:"seed"`
}

// BoardConfig holds parser and command settings
type BoardConfig struct {
	Daisy          bool          `mapstructure:"daisy"`
	Gains          []int         `mapstructure:"gains"`
	BufferSize     int           `mapstructure:"buffer_size"`
	WriteQueue     int           `mapstructure:"write_queue"`
	ReadyTimeout   time.Duration `mapstructure:"ready_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// ImpedanceConfig holds lead-off measurement constants
type ImpedanceConfig struct {
	DriveAmps      float64       `mapstructure:"drive_amps"`
	LeadOffHz      float64       `mapstructure:"lead_off_hz"`
	SeriesResistor float64       `mapstructure:"series_resistor"`
	GoodMax        float64       `mapstructure:"good_max"`
	OKMax          float64       `mapstructure:"ok_max"`
	BadMax         float64       `mapstructure:"bad_max"`
	Settle         time.Duration `mapstructure:"settle"`
	Window         time.Duration `mapstructure:"window"`
}

// SyncConfig holds clock synchronisation constants
type SyncConfig struct {
	ArraySize              int           `mapstructure:"array_size"`
	Threshold              time.Duration `mapstructure:"threshold"`
	TransmissionMultiplier float64       `mapstructure:"transmission_multiplier"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// Load reads configuration from the given file (or ./config.yaml when path
// is empty) and the CYTON_SERVICE_* environment. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("CYTON_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.stream_samples", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	v.SetDefault("transport.type", protocol.TransportSerial)

	// Serial defaults match the dongle
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud_rate", cyton.RadioBaudDefault)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.timeout", "100ms")
	v.SetDefault("serial.read_size", 1024)

	v.SetDefault("tcp.host", "localhost")
	v.SetDefault("tcp.port", 2000)
	v.SetDefault("tcp.connect_timeout", "5s")
	v.SetDefault("tcp.read_timeout", "100ms")
	v.SetDefault("tcp.write_timeout", "1s")

	v.SetDefault("simulator.firmware", "v2")
	v.SetDefault("simulator.electrode_ohms", 4000)
	v.SetDefault("simulator.alpha_microvolts", 10)
	v.SetDefault("simulator.noise_microvolts", 1)
	v.SetDefault("simulator.seed", 1)

	// Board defaults
	v.SetDefault("board.daisy", false)
	v.SetDefault("board.gains", []int{})
	v.SetDefault("board.buffer_size", cyton.DefaultBufferSize)
	v.SetDefault("board.write_queue", 256)
	v.SetDefault("board.ready_timeout", "5s")
	v.SetDefault("board.command_timeout", cyton.CommandTimeout.String())

	imp := cyton.DefaultImpedanceConfig()
	v.SetDefault("impedance.drive_amps", imp.DriveAmps)
	v.SetDefault("impedance.lead_off_hz", imp.LeadOffHz)
	v.SetDefault("impedance.series_resistor", imp.SeriesResistor)
	v.SetDefault("impedance.good_max", imp.GoodMax)
	v.SetDefault("impedance.ok_max", imp.OKMax)
	v.SetDefault("impedance.bad_max", imp.BadMax)
	v.SetDefault("impedance.settle", imp.Settle.String())
	v.SetDefault("impedance.window", imp.Watchdog.String())

	v.SetDefault("sync.array_size", cyton.DefaultSyncArraySize)
	v.SetDefault("sync.threshold", cyton.DefaultSyncThreshold.String())
	v.SetDefault("sync.transmission_multiplier", cyton.DefaultTransmissionMultiplier)

	// App defaults
	v.SetDefault("app.name", "cyton-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
}

var (
	validEnvs      = []string{"development", "staging", "production", "test"}
	validLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validFirmwares = []string{"v1", "v2"}
)

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if !slices.Contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}
	if !slices.Contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}
	if !slices.Contains(validFirmwares, config.Simulator.Firmware) {
		return fmt.Errorf("simulator.firmware must be one of: %v", validFirmwares)
	}

	n := cyton.ChannelsPerBoard
	if config.Board.Daisy {
		n = cyton.ChannelsDaisy
	}
	if len(config.Board.Gains) > n {
		return fmt.Errorf("board.gains has %d entries, at most %d allowed", len(config.Board.Gains), n)
	}
	for i, g := range config.Board.Gains {
		if _, ok := cyton.ValidGains[g]; !ok {
			return fmt.Errorf("board.gains[%d]: invalid gain %d", i, g)
		}
	}
	if config.Board.BufferSize < cyton.PacketSize*2 {
		return fmt.Errorf("board.buffer_size must hold at least two packets")
	}
	if config.Sync.ArraySize <= 0 {
		return fmt.Errorf("sync.array_size must be positive")
	}
	if config.Impedance.GoodMax > config.Impedance.OKMax || config.Impedance.OKMax > config.Impedance.BadMax {
		return fmt.Errorf("impedance thresholds must be ascending")
	}

	return nil
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// TransportConfig converts the transport sections for the protocol factory
func (c *Config) TransportConfig() protocol.TransportConfig {
	return protocol.TransportConfig{
		Type: c.Transport.Type,
		Serial: protocol.SerialConfig{
			Port:     c.Serial.Port,
			BaudRate: c.Serial.BaudRate,
			DataBits: c.Serial.DataBits,
			StopBits: c.Serial.StopBits,
			Parity:   c.Serial.Parity,
			Timeout:  c.Serial.Timeout,
		},
		TCP: protocol.TCPConfig{
			Host:         c.TCP.Host,
			Port:         c.TCP.Port,
			DialTimeout:  c.TCP.ConnectTimeout,
			ReadTimeout:  c.TCP.ReadTimeout,
			WriteTimeout: c.TCP.WriteTimeout,
		},
	}
}

// SessionOptions converts board, impedance and sync sections into session options
func (c *Config) SessionOptions() cyton.Options {
	opts := cyton.DefaultOptions()
	opts.Parser = cyton.ParserConfig{
		BufferSize:     c.Board.BufferSize,
		Gains:          c.Board.Gains,
		SyncArraySize:  c.Sync.ArraySize,
		SyncThreshold:  c.Sync.Threshold,
		SyncMultiplier: c.Sync.TransmissionMultiplier,
	}
	opts.Impedance = cyton.ImpedanceConfig{
		DriveAmps:      c.Impedance.DriveAmps,
		LeadOffHz:      c.Impedance.LeadOffHz,
		SeriesResistor: c.Impedance.SeriesResistor,
		GoodMax:        c.Impedance.GoodMax,
		OKMax:          c.Impedance.OKMax,
		BadMax:         c.Impedance.BadMax,
		Settle:         c.Impedance.Settle,
		Watchdog:       c.Impedance.Window,
	}
	if c.Serial.ReadSize > 0 {
		opts.ReadSize = c.Serial.ReadSize
	}
	if c.Board.WriteQueue > 0 {
		opts.QueueSize = c.Board.WriteQueue
	}
	if c.Board.ReadyTimeout > 0 {
		opts.ReadyTimeout = c.Board.ReadyTimeout
	}
	if c.Board.CommandTimeout > 0 {
		opts.CommandTimeout = c.Board.CommandTimeout
	}
	return opts
}

// SimulatorConfig converts the simulator section
func (c *Config) SimulatorConfig() simulator.Config {
	sim := simulator.DefaultConfig()
	sim.Daisy = c.Board.Daisy
	sim.Firmware = c.Simulator.Firmware
	sim.ElectrodeOhms = c.Simulator.ElectrodeOhms
	sim.AlphaMicroV = c.Simulator.AlphaMicroV
	sim.NoiseMicroV = c.Simulator.NoiseMicroV
	sim.Seed = c.Simulator.Seed
	return sim
}
