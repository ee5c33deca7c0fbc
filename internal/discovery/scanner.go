// internal/discovery/scanner.go
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

// FTDIVendorID is the vendor of the FT231X chip on the radio dongle.
const FTDIVendorID = "0403"

var ErrNoDongle = errors.New("no dongle found")

// adapterInfo identifies a USB-serial bridge by product id
type adapterInfo struct {
	Model      string
	Confidence float64
}

// knownAdapters holds FTDI products that can carry the radio dongle. The
// FT231X is what ships on the dongle itself.
var knownAdapters = map[string]adapterInfo{
	"6015": {Model: "FT231X (OpenBCI dongle)", Confidence: 0.95},
	"6001": {Model: "FT232R", Confidence: 0.5},
	"6014": {Model: "FT232H", Confidence: 0.4},
}

// Port describes one serial port found on the host
type Port struct {
	Name         string  `json:"name"`
	IsUSB        bool    `json:"is_usb"`
	VendorID     string  `json:"vendor_id,omitempty"`
	ProductID    string  `json:"product_id,omitempty"`
	SerialNumber string  `json:"serial_number,omitempty"`
	Product      string  `json:"product,omitempty"`
	Model        string  `json:"model,omitempty"`
	Confidence   float64 `json:"confidence"`
	IsDongle     bool    `json:"is_dongle"`
}

// Scanner lists serial ports and picks out the board dongle
type Scanner struct {
	logger   *zap.Logger
	detailed func() ([]*enumerator.PortDetails, error)
	names    func() ([]string, error)
}

// NewScanner creates a scanner backed by the OS port enumerator
func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{
		logger:   logger.With(zap.String("scanner", "serial")),
		detailed: enumerator.GetDetailedPortsList,
		names:    serial.GetPortsList,
	}
}

// Scan returns every port, dongles first. When detailed enumeration is not
// supported on the platform it falls back to bare port names.
func (s *Scanner) Scan(ctx context.Context) ([]Port, error) {
	s.logger.Debug("Starting serial port scan")

	details, err := s.detailed()
	if err != nil {
		s.logger.Warn("Detailed port enumeration failed, falling back to names", zap.Error(err))
		names, nerr := s.names()
		if nerr != nil {
			return nil, fmt.Errorf("failed to get serial ports: %w", nerr)
		}
		ports := make([]Port, 0, len(names))
		for _, n := range names {
			ports = append(ports, Port{Name: n})
		}
		return ports, nil
	}

	ports := make([]Port, 0, len(details))
	for _, d := range details {
		if err := ctx.Err(); err != nil {
			return ports, err
		}
		ports = append(ports, identify(d))
	}
	sort.SliceStable(ports, func(i, j int) bool {
		return ports[i].Confidence > ports[j].Confidence
	})

	s.logger.Info("Serial scan completed", zap.Int("ports_found", len(ports)))
	return ports, nil
}

// FindDongle returns the name of the first port that looks like the radio
// dongle.
func (s *Scanner) FindDongle(ctx context.Context) (string, error) {
	ports, err := s.Scan(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		if p.IsDongle {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("%w among %d serial ports", ErrNoDongle, len(ports))
}

func identify(d *enumerator.PortDetails) Port {
	p := Port{
		Name:         d.Name,
		IsUSB:        d.IsUSB,
		VendorID:     strings.ToLower(d.VID),
		ProductID:    strings.ToLower(d.PID),
		SerialNumber: d.SerialNumber,
		Product:      d.Product,
	}
	if !d.IsUSB || p.VendorID != FTDIVendorID {
		return p
	}
	p.IsDongle = true
	if info, ok := knownAdapters[p.ProductID]; ok {
		p.Model = info.Model
		p.Confidence = info.Confidence
	} else {
		// unknown FTDI product
		p.Confidence = 0.2
	}
	return p
}
