// Package bridge writes controller outputs to the crossing interface
// board.
//
// The board speaks a line protocol of short numeric frames:
//
//	1 <channel> <angle>   servo position in degrees
//	2 <channel> <0|1>     lamp off or on
//
// The control loop pushes every output once per tick. Drivers cache the
// last value written per channel and skip frames that would repeat it,
// so a crossing at rest produces no serial traffic.
package bridge

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/railsignals/crossing-controller/internal/logging"
	"github.com/railsignals/crossing-controller/model"
	"github.com/tarm/serial"
)

// DefaultBaud is used when SerialConfig leaves Baud unset.
const DefaultBaud = 115200

// SerialConfig identifies the serial device for the interface board.
type SerialConfig struct {
	Port string
	Baud int
}

// OpenPort opens the configured serial device. The returned stream
// carries outbound frames and may also carry inbound command lines,
// so callers typically hand the write half to NewSerialDriver and the
// read half to a host-link source.
func OpenPort(cfg SerialConfig) (io.ReadWriteCloser, error) {
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name: cfg.Port,
		Baud: cfg.Baud,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	return port, nil
}

// SerialDriver emits board frames on an output stream.
type SerialDriver struct {
	mu  sync.Mutex
	w   io.Writer
	log logging.Logger

	angles  map[model.Actuator]model.Angle
	lamps   map[model.Lamp]bool
	failing bool
}

// NewSerialDriver wraps an output stream, usually a port from OpenPort.
func NewSerialDriver(w io.Writer, log logging.Logger) *SerialDriver {
	if log == nil {
		log = logging.Noop()
	}
	return &SerialDriver{
		w:      w,
		log:    log,
		angles: make(map[model.Actuator]model.Angle),
		lamps:  make(map[model.Lamp]bool),
	}
}

// SetActuatorAngle writes a servo frame when the angle differs from the
// last one written for that channel.
func (d *SerialDriver) SetActuatorAngle(actuator model.Actuator, angle model.Angle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.angles[actuator]; ok && prev == angle {
		return
	}
	if d.send("1 %d %d\n", actuatorChannel(actuator), int(angle)) {
		d.angles[actuator] = angle
	}
}

// SetLamp writes a lamp frame when the state differs from the last one
// written for that channel.
func (d *SerialDriver) SetLamp(lamp model.Lamp, on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.lamps[lamp]; ok && prev == on {
		return
	}
	if d.send("2 %d %d\n", lampChannel(lamp), bit(on)) {
		d.lamps[lamp] = on
	}
}

// send writes one frame. The cache is only updated on success, so a
// failed frame is retried on the next push of the same value.
func (d *SerialDriver) send(format string, args ...any) bool {
	if _, err := fmt.Fprintf(d.w, format, args...); err != nil {
		if !d.failing {
			d.log.Warn(context.Background(), "serial write failed", logging.Err(err))
			d.failing = true
		}
		return false
	}
	d.failing = false
	return true
}

// Board channel assignments. Kept explicit so reordering the enums can
// never silently rewire the hardware.
func actuatorChannel(a model.Actuator) int {
	if a == model.ActuatorSecondary {
		return 1
	}
	return 0
}

func lampChannel(l model.Lamp) int {
	if l == model.LampB {
		return 1
	}
	return 0
}

func bit(on bool) int {
	if on {
		return 1
	}
	return 0
}
