// Package converter stores routing configurations as .syx, Standard MIDI File and JSON dumps
package converter

import (
	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/routing"
)

// Dump is a routing configuration addressed to one unit
type Dump struct {
	Address protocol.Address `json:"address"`
	Table   routing.Table    `json:"table"`
}

// ConversionResult holds the result of a conversion
type ConversionResult struct {
	Data     []byte
	Filename string
	Format   Format
}

// Converter handles format conversions for one device model
type Converter struct {
	device protocol.Device
}

// New creates a new Converter with the specified device
func New(device protocol.Device) *Converter {
	return &Converter{device: device}
}

// GetDevice returns the current device
func (c *Converter) GetDevice() protocol.Device {
	return c.device
}

// SetDevice sets the device for conversion
func (c *Converter) SetDevice(device protocol.Device) {
	c.device = device
}

// NewDump creates a dump of t addressed to the converter's device
func (c *Converter) NewDump(t routing.Table) Dump {
	return Dump{Address: c.device.Address(), Table: t}
}
