package converter

import (
	"errors"
	"fmt"
	"os"

	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/sysex"
)

// SysEx constants
const (
	SysExStart = sysex.Start
	SysExEnd   = sysex.End
)

// ErrNoRoutingFrame is returned when a dump holds no routing table frame
var ErrNoRoutingFrame = errors.New("no routing table frame found")

// SyxConverter handles .syx file parsing and generation
type SyxConverter struct {
	device protocol.Device
}

// NewSyxConverter creates a new .syx converter
func NewSyxConverter(device protocol.Device) *SyxConverter {
	return &SyxConverter{device: device}
}

// ParseSyxFile reads a .syx file and returns its dump
func (s *SyxConverter) ParseSyxFile(filename string) (Dump, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Dump{}, fmt.Errorf("failed to read syx file: %w", err)
	}
	return s.ParseSyx(data)
}

// ParseSyx returns the first routing table frame found in data.
// Frames for other devices are skipped.
func (s *SyxConverter) ParseSyx(data []byte) (Dump, error) {
	frames, err := SplitFrames(data)
	if err != nil {
		return Dump{}, err
	}

	for _, frame := range frames {
		if d, ok := s.routingFrame(frame); ok {
			return d, nil
		}
	}
	return Dump{}, ErrNoRoutingFrame
}

func (s *SyxConverter) routingFrame(frame []byte) (Dump, bool) {
	msg, err := sysex.Parse(frame)
	if err != nil {
		return Dump{}, false
	}

	addr := protocol.Address{Manufacturer: msg.Manufacturer, Model: msg.Model, DeviceID: msg.DeviceID}
	if s.device != nil {
		want := s.device.Address()
		if addr.Manufacturer != want.Manufacturer || addr.Model != want.Model {
			return Dump{}, false
		}
	}

	// a WRITE_CONFIG request and a READ_CONFIG answer carry the same payload
	cmd := protocol.Command(msg.Command)
	if cmd != protocol.CommandWriteConfig && cmd != protocol.CommandReadConfig {
		return Dump{}, false
	}

	t, err := protocol.DecodeRoutingTable(msg.Payload)
	if err != nil {
		return Dump{}, false
	}
	return Dump{Address: addr, Table: t}, true
}

// GenerateSyx creates a single WRITE_CONFIG frame from a dump
func (s *SyxConverter) GenerateSyx(d Dump) ([]byte, error) {
	return d.Address.WriteConfig(d.Table)
}

// WriteSyxFile writes .syx data to a file
func (s *SyxConverter) WriteSyxFile(d Dump, filename string) error {
	data, err := s.GenerateSyx(d)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// ValidateSyx validates .syx data structure
func (s *SyxConverter) ValidateSyx(data []byte) error {
	_, err := SplitFrames(data)
	return err
}

// SplitFrames splits a .syx file holding one or more concatenated frames.
// Frames of any manufacturer are returned.
func SplitFrames(data []byte) ([][]byte, error) {
	var frames [][]byte
	for start := 0; start < len(data); {
		if data[start] != SysExStart {
			return nil, fmt.Errorf("%w: expected start byte 0x%02X at offset %d, got 0x%02X", sysex.ErrFrame, SysExStart, start, data[start])
		}

		end := start + 1
		for end < len(data) && data[end] != SysExEnd {
			end++
		}
		if end == len(data) {
			return nil, fmt.Errorf("%w: frame at offset %d has no end byte 0x%02X", sysex.ErrFrame, start, SysExEnd)
		}

		frame := data[start : end+1]
		for i := 1; i < len(frame)-1; i++ {
			if frame[i] > 127 {
				return nil, fmt.Errorf("%w: byte at position %d is > 127 (0x%02X)", sysex.ErrFrame, start+i, frame[i])
			}
		}
		frames = append(frames, frame)
		start = end + 1
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: syx data too short", sysex.ErrFrame)
	}
	return frames, nil
}
