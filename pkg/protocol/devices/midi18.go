// Package devices provides the router models speaking the configuration protocol
package devices

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/routing"
)

// MIDI18 implements the Device interface for the MIDI 1-8 router
type MIDI18 struct {
	deviceID byte
}

// NewMIDI18 creates a MIDI 1-8 profile at the factory device ID
func NewMIDI18() *MIDI18 {
	return &MIDI18{deviceID: protocol.DefaultDeviceID}
}

// WithDeviceID returns a profile addressing another unit on the same bus
func (m *MIDI18) WithDeviceID(id byte) *MIDI18 {
	return &MIDI18{deviceID: id}
}

// Name returns the device name
func (m *MIDI18) Name() string {
	return "MIDI 1-8"
}

// ID returns the short name used on the command line
func (m *MIDI18) ID() string {
	return "midi18"
}

// Address returns the SysEx address of the unit
func (m *MIDI18) Address() protocol.Address {
	return protocol.DefaultAddress().WithDeviceID(m.deviceID)
}

// Outputs returns the number of physical outputs
func (m *MIDI18) Outputs() int {
	return routing.Outputs
}

// Destinations returns the number of routable destinations (16 channels + RT)
func (m *MIDI18) Destinations() int {
	return routing.Destinations
}

// ErrUnknownDevice is returned by Lookup for an unregistered name
var ErrUnknownDevice = errors.New("unknown device")

var registry = map[string]func() protocol.Device{
	"midi18":   func() protocol.Device { return NewMIDI18() },
	"midi-1-8": func() protocol.Device { return NewMIDI18() },
	"midi1-8":  func() protocol.Device { return NewMIDI18() },
}

// Lookup returns the device registered under name
func Lookup(name string) (protocol.Device, error) {
	newDevice, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownDevice, name, strings.Join(Names(), ", "))
	}
	return newDevice(), nil
}

// Names lists the registered device names
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns one instance of every supported model
func All() []protocol.Device {
	return []protocol.Device{NewMIDI18()}
}
