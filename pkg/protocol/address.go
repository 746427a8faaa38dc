package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Defaults of the MIDI 1-8
const (
	// ManufacturerDIY is the non-commercial manufacturer ID reserved for experiments.
	ManufacturerDIY = 0x7D
	// ModelMIDI18 identifies the MIDI 1-8 model.
	ModelMIDI18 = 0x18
	// DefaultDeviceID is the factory address of a unit.
	DefaultDeviceID = 0x01
	// AnyDevice matches every device ID when filtering frames.
	AnyDevice = 0x7F
)

// ErrInvalidAddress is returned for an address byte with bit 7 set.
var ErrInvalidAddress = errors.New("invalid address")

// Address identifies one unit on a shared MIDI bus.
type Address struct {
	Manufacturer byte `json:"manufacturer"`
	Model        byte `json:"model"`
	DeviceID     byte `json:"device_id"`
}

// DefaultAddress is the address of a factory-fresh MIDI 1-8.
func DefaultAddress() Address {
	return Address{Manufacturer: ManufacturerDIY, Model: ModelMIDI18, DeviceID: DefaultDeviceID}
}

// WithDeviceID returns a copy of a addressed to another unit of the same model.
func (a Address) WithDeviceID(id byte) Address {
	a.DeviceID = id
	return a
}

// Validate checks that every address byte fits in a MIDI data byte.
func (a Address) Validate() error {
	fields := []struct {
		name string
		b    byte
	}{
		{"manufacturer", a.Manufacturer},
		{"model", a.Model},
		{"device id", a.DeviceID},
	}
	for _, f := range fields {
		if f.b > 0x7F {
			return fmt.Errorf("%w: %s 0x%02X", ErrInvalidAddress, f.name, f.b)
		}
	}
	return nil
}

// Matches reports whether m was sent by (or to) the unit at a.
// A DeviceID of AnyDevice accepts every unit of the model.
func (a Address) Matches(m Message) bool {
	if a.Manufacturer != m.Address.Manufacturer || a.Model != m.Address.Model {
		return false
	}
	return a.DeviceID == AnyDevice || a.DeviceID == m.Address.DeviceID
}

// String formats the address as "7D:18:01".
func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X", a.Manufacturer, a.Model, a.DeviceID)
}

// ParseDeviceID parses a device ID given as decimal ("5") or hex ("0x05").
func ParseDeviceID(s string) (byte, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: device id %q", ErrInvalidAddress, s)
	}
	if v > 0x7F {
		return 0, fmt.Errorf("%w: device id %d > 127", ErrInvalidAddress, v)
	}
	return byte(v), nil
}
