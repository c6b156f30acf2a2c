package gps

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("gps: not connected")

// NMEAReceiver reads standard NMEA 0183 sentences from a UART GPS.
// Compatible with u-blox NEO-M8N and any standard NMEA GPS.
type NMEAReceiver struct {
	portPath string
	baudRate int
	logger   *zap.Logger

	mu      sync.Mutex
	port    io.Closer
	scanner *bufio.Scanner
	last    Data
}

// NMEAConfig holds configuration for the NMEA receiver.
type NMEAConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// NewNMEA creates a receiver for a serial port. Call Connect before Read.
func NewNMEA(cfg NMEAConfig, logger *zap.Logger) *NMEAReceiver {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600 // Standard NMEA default
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NMEAReceiver{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
		logger:   logger,
	}
}

// NewNMEAReader reads sentences from r instead of a serial port, e.g. a
// recorded log or gpsd's raw output.
func NewNMEAReader(r io.Reader, logger *zap.Logger) *NMEAReceiver {
	n := NewNMEA(NMEAConfig{}, logger)
	n.scanner = bufio.NewScanner(r)
	if c, ok := r.(io.Closer); ok {
		n.port = c
	}
	return n
}

func (n *NMEAReceiver) Name() string { return "NMEA GPS" }

func (n *NMEAReceiver) Connect() error {
	mode := &serial.Mode{
		BaudRate: n.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(n.portPath, mode)
	if err != nil {
		return fmt.Errorf("gps: failed to open %s: %w", n.portPath, err)
	}
	if err := port.SetReadTimeout(200 * time.Millisecond); err != nil {
		port.Close()
		return fmt.Errorf("gps: set read timeout: %w", err)
	}

	n.mu.Lock()
	n.port = port
	n.scanner = bufio.NewScanner(port)
	n.mu.Unlock()

	n.logger.Info("gps connected", zap.String("port", n.portPath), zap.Int("baud", n.baudRate))
	return nil
}

func (n *NMEAReceiver) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scanner = nil
	if n.port != nil {
		err := n.port.Close()
		n.port = nil
		return err
	}
	return nil
}

// Read reads NMEA sentences until we have a complete fix update, or timeout.
func (n *NMEAReceiver) Read() (*Data, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.scanner == nil {
		out := n.last
		return &out, ErrNotConnected
	}

	// Read up to 20 lines to find RMC + GGA
	gotRMC := false
	gotGGA := false
	for i := 0; i < 20 && !(gotRMC && gotGGA); i++ {
		if !n.scanner.Scan() {
			if err := n.scanner.Err(); err != nil {
				n.logger.Debug("gps read failed", zap.Error(err))
			}
			break
		}
		line := strings.TrimSpace(n.scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		if !validateNMEAChecksum(line) {
			n.logger.Debug("dropping sentence with bad checksum", zap.String("line", line))
			continue
		}

		switch {
		case strings.HasPrefix(line, "$GPRMC"), strings.HasPrefix(line, "$GNRMC"):
			parseRMC(&n.last, line)
			gotRMC = true
		case strings.HasPrefix(line, "$GPGGA"), strings.HasPrefix(line, "$GNGGA"):
			parseGGA(&n.last, line)
			gotGGA = true
		}
	}

	out := n.last
	return &out, nil
}

func parseRMC(d *Data, line string) {
	// $GPRMC,hhmmss.ss,A,llll.ll,a,yyyyy.yy,a,x.x,x.x,ddmmyy,x.x,a*hh
	parts := splitNMEA(line)
	if len(parts) < 10 {
		return
	}

	d.Valid = parts[2] == "A"
	if ts, err := time.Parse("020106150405", parts[9]+parts[1]); err == nil {
		d.Time = ts
	}
	if !d.Valid {
		return
	}

	d.Latitude = parseNMEACoord(parts[3], parts[4])
	d.Longitude = parseNMEACoord(parts[5], parts[6])
	if spd, err := strconv.ParseFloat(parts[7], 64); err == nil {
		d.Speed = spd * 1.852 // Knots to km/h
	}
	if hdg, err := strconv.ParseFloat(parts[8], 64); err == nil {
		d.Heading = hdg
	}
}

func parseGGA(d *Data, line string) {
	// $GPGGA,hhmmss.ss,llll.ll,a,yyyyy.yy,a,x,xx,x.x,x.x,M,x.x,M,x.x,xxxx*hh
	parts := splitNMEA(line)
	if len(parts) < 11 {
		return
	}

	if fix, err := strconv.Atoi(parts[6]); err == nil {
		d.FixQuality = fix
	}
	if sats, err := strconv.Atoi(parts[7]); err == nil {
		d.Satellites = sats
	}
	if hdop, err := strconv.ParseFloat(parts[8], 64); err == nil {
		d.HDOP = hdop
	}
	if alt, err := strconv.ParseFloat(parts[9], 64); err == nil {
		d.Altitude = alt
	}
}

// splitNMEA splits a sentence and strips the checksum suffix.
func splitNMEA(line string) []string {
	if idx := strings.Index(line, "*"); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimPrefix(line, "$")
	return strings.Split(line, ",")
}

// parseNMEACoord converts NMEA ddmm.mmmm format to decimal degrees.
func parseNMEACoord(raw, dir string) float64 {
	if raw == "" || dir == "" {
		return 0
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	deg := math.Floor(val / 100)
	min := val - deg*100
	result := deg + min/60

	if dir == "S" || dir == "W" {
		result = -result
	}
	return result
}

// validateNMEAChecksum checks the XOR checksum after *.
func validateNMEAChecksum(line string) bool {
	idx := strings.Index(line, "*")
	if idx < 1 || idx+3 > len(line) {
		return false
	}
	body := line[1:idx] // Between $ and *
	var calc byte
	for i := 0; i < len(body); i++ {
		calc ^= body[i]
	}
	expected, err := strconv.ParseUint(line[idx+1:idx+3], 16, 8)
	if err != nil {
		return false
	}
	return byte(expected) == calc
}
