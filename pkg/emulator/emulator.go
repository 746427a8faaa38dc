// Package emulator implements the device side of the configuration protocol.
// It answers the same frames a MIDI 1-8 answers and can stand in for the hardware
// through an in-process link.
package emulator

import (
	"errors"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/routing"
)

// ErrClosed is returned by a link after Close.
var ErrClosed = errors.New("emulator link closed")

// Device is an emulated router unit.
type Device struct {
	mu     sync.Mutex
	addr   protocol.Address
	table  routing.Table
	writes int
	logger *log.Logger
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger used for received and answered frames.
func WithLogger(l *log.Logger) Option {
	return func(d *Device) {
		d.logger = l
	}
}

// WithTable sets the routing table the device starts with.
func WithTable(t routing.Table) Option {
	return func(d *Device) {
		d.table = t
	}
}

// New creates a unit listening at addr.
func New(addr protocol.Address, opts ...Option) *Device {
	d := &Device{
		addr:   addr,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Address returns the unit's current address.
func (d *Device) Address() protocol.Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Table returns a copy of the stored routing table.
func (d *Device) Table() routing.Table {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.table
}

// SetTable replaces the stored routing table, as the front panel would.
func (d *Device) SetTable(t routing.Table) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.table = t
}

// Writes counts the WRITE_CONFIG requests applied so far.
func (d *Device) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// Handle processes one request frame and returns the answer frame, or nil when
// the request is not answered or is addressed to another unit.
func (d *Device) Handle(frame []byte) ([]byte, error) {
	msg, err := protocol.ParseRequest(frame)
	if err != nil {
		d.logger.Warn("rejected frame", "frame", hex(frame), "err", err)
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.accepts(msg) {
		d.logger.Debug("ignored frame for another unit", "to", msg.Address, "self", d.addr)
		return nil, nil
	}
	d.logger.Debug("request", "command", msg.Command, "frame", hex(frame))

	var resp []byte
	switch msg.Command {
	case protocol.CommandPing:
		resp, err = protocol.BuildResponse(protocol.CommandPing, d.addr, nil)

	case protocol.CommandReadConfig:
		resp, err = protocol.BuildResponse(protocol.CommandReadConfig, d.addr, protocol.EncodeRoutingTable(d.table))

	case protocol.CommandWriteConfig:
		var t routing.Table
		if t, err = msg.Table(); err != nil {
			d.logger.Warn("bad routing payload", "err", err)
			return nil, err
		}
		d.table = t
		d.writes++
		d.logger.Info("routing table stored", "writes", d.writes)
		return nil, nil

	case protocol.CommandChangeDeviceID:
		var id byte
		if id, err = msg.NewDeviceID(); err != nil {
			return nil, err
		}
		d.logger.Info("device id changed", "from", d.addr.DeviceID, "to", id)
		d.addr = d.addr.WithDeviceID(id)
		resp, err = protocol.BuildResponse(protocol.CommandChangeDeviceID, d.addr, []byte{id})
	}
	if err != nil {
		return nil, err
	}

	d.logger.Debug("response", "frame", hex(resp))
	return resp, nil
}

func (d *Device) accepts(msg protocol.Message) bool {
	if msg.Address.Manufacturer != d.addr.Manufacturer || msg.Address.Model != d.addr.Model {
		return false
	}
	return msg.Address.DeviceID == d.addr.DeviceID || msg.Address.DeviceID == protocol.AnyDevice
}
