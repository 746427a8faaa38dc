package converter

import (
	"bytes"
	"fmt"
	"os"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/midi18/pkg/protocol"
)

// MIDIConverter stores a routing dump as a SysEx event in a Standard MIDI File
type MIDIConverter struct {
	device          protocol.Device
	ticksPerQuarter uint16
	tempo           float64
}

// NewMIDIConverter creates a new MIDI converter
func NewMIDIConverter(device protocol.Device) *MIDIConverter {
	return &MIDIConverter{
		device:          device,
		ticksPerQuarter: 480,
		tempo:           120.0,
	}
}

// ParseMIDIFile reads a MIDI file and extracts the routing dump
func (m *MIDIConverter) ParseMIDIFile(filename string) (Dump, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Dump{}, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return m.ParseMIDI(data)
}

// ParseMIDI returns the first routing table frame stored in any track
func (m *MIDIConverter) ParseMIDI(data []byte) (Dump, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return Dump{}, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	syx := NewSyxConverter(m.device)
	for _, track := range s.Tracks {
		for _, ev := range track {
			msg := ev.Message

			// SysEx event: F0 data... [F7]
			if len(msg) < 2 || msg[0] != SysExStart {
				continue
			}

			frame := append([]byte(nil), msg...)
			if frame[len(frame)-1] != SysExEnd {
				frame = append(frame, SysExEnd)
			}
			if d, ok := syx.routingFrame(frame); ok {
				return d, nil
			}
		}
	}

	return Dump{}, ErrNoRoutingFrame
}

// GenerateMIDI creates a single-track MIDI file holding the WRITE_CONFIG frame
func (m *MIDIConverter) GenerateMIDI(d Dump) ([]byte, error) {
	frame, err := d.Address.WriteConfig(d.Table)
	if err != nil {
		return nil, err
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(m.ticksPerQuarter)

	var track smf.Track

	// Track name meta event (FF 03 len text)
	name := "Routing"
	if m.device != nil {
		name = m.device.Name() + " routing"
	}
	track.Add(0, smf.Message(append([]byte{0xFF, 0x03, byte(len(name))}, name...)))

	// Add tempo meta event
	microsecondsPerBeat := uint32(60000000.0 / m.tempo)
	track.Add(0, smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(microsecondsPerBeat >> 16),
		byte(microsecondsPerBeat >> 8),
		byte(microsecondsPerBeat),
	}))

	track.Add(0, midi.SysEx(frame[1:len(frame)-1]))
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteMIDIFile writes MIDI data to a file
func (m *MIDIConverter) WriteMIDIFile(d Dump, filename string) error {
	data, err := m.GenerateMIDI(d)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
