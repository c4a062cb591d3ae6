package sensors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
)

// accelSentence is the proprietary sentence emitted by the serial
// accelerometer board: $PGACC,<x>,<y>,<z>*<checksum>, values in g.
const accelSentence = "PGACC"

// SerialSource keeps the most recent frame received from a serial
// accelerometer. Run must be started for the frame to update.
type SerialSource struct {
	port io.ReadCloser

	mu    sync.Mutex
	frame [3]float64
	seen  bool
}

// NewSerialSource opens portName at baud.
func NewSerialSource(portName string, baud uint) (*SerialSource, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serial accel: open %s: %w", portName, err)
	}
	log.Infof("serial accel: port opened on %s at %d baud", portName, baud)
	return &SerialSource{port: port}, nil
}

// newSerialSourceFrom wraps an already open stream.
func newSerialSourceFrom(r io.ReadCloser) *SerialSource {
	return &SerialSource{port: r}
}

// Run reads sentences until the stream ends or ctx is cancelled.
func (s *SerialSource) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.port.Close() })
	defer stop()

	reader := bufio.NewReader(s.port)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			if frame, perr := parseAccelSentence(line); perr != nil {
				log.Debugf("serial accel: %v (line: %q)", perr, line)
			} else {
				s.mu.Lock()
				s.frame, s.seen = frame, true
				s.mu.Unlock()
			}
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("serial accel: read: %w", err)
		}
	}
}

// ReadAxis returns the latest value for axis, zero before the first frame.
func (s *SerialSource) ReadAxis(axis gesture.Axis) float64 {
	if axis < 0 || int(axis) >= len(s.frame) {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame[axis]
}

// Ready reports whether at least one frame was received.
func (s *SerialSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen
}

// Close closes the port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}

// GACC is the accelerometer frame sentence, values in g.
type GACC struct {
	nmea.BaseSentence
	X, Y, Z float64
}

// accelParser frames and checksums lines with go-nmea. Proprietary
// sentences are split into talker "P" and type "GACC".
var accelParser = nmea.SentenceParser{
	CustomParsers: map[string]nmea.ParserFunc{
		"GACC": parseGACC,
	},
}

func parseGACC(s nmea.BaseSentence) (nmea.Sentence, error) {
	if len(s.Fields) != 3 {
		return nil, fmt.Errorf("%s: want 3 values, got %d", accelSentence, len(s.Fields))
	}
	p := nmea.NewParser(s)
	m := GACC{
		BaseSentence: s,
		X:            p.Float64(0, "x"),
		Y:            p.Float64(1, "y"),
		Z:            p.Float64(2, "z"),
	}
	return m, p.Err()
}

func parseAccelSentence(line string) ([3]float64, error) {
	sentence, err := accelParser.Parse(line)
	if err != nil {
		return [3]float64{}, err
	}
	m, ok := sentence.(GACC)
	if !ok {
		return [3]float64{}, fmt.Errorf("unexpected sentence %s", sentence.Prefix())
	}
	return [3]float64{m.X, m.Y, m.Z}, nil
}
