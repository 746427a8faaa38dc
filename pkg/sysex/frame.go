// Package sysex builds and parses the SysEx envelope used by the MIDI 1-8:
//
//	F0 <manufacturer> <model> <device> <command> <payload...> F7
package sysex

import (
	"errors"
	"fmt"
)

// SysEx constants
const (
	Start = 0xF0
	End   = 0xF7

	// HeaderLen counts F0 plus the manufacturer, model, device and command bytes.
	HeaderLen = 5
	// MinLen is the shortest valid frame: a header and F7, no payload.
	MinLen = HeaderLen + 1
)

// ErrFrame is returned for streams that are not a well-formed envelope.
var ErrFrame = errors.New("frame error")

// Message is a parsed envelope.
type Message struct {
	Manufacturer byte
	Model        byte
	DeviceID     byte
	Command      byte
	Payload      []byte
}

// Build assembles a frame from m.
// Header and payload bytes must already be 7-bit clean; a byte with bit 7 set is a
// programming error and panics.
func Build(m Message) []byte {
	frame := make([]byte, 0, MinLen+len(m.Payload))
	frame = append(frame, Start, m.Manufacturer, m.Model, m.DeviceID, m.Command)
	frame = append(frame, m.Payload...)
	frame = append(frame, End)

	for i := 1; i < len(frame)-1; i++ {
		if frame[i] > 0x7F {
			panic(fmt.Sprintf("sysex: byte %d is 0x%02X, not a data byte", i, frame[i]))
		}
	}

	return frame
}

// Parse validates data and splits it into its fields. The payload is a copy.
func Parse(data []byte) (Message, error) {
	if err := Validate(data); err != nil {
		return Message{}, err
	}

	payload := make([]byte, len(data)-MinLen)
	copy(payload, data[HeaderLen:len(data)-1])

	return Message{
		Manufacturer: data[1],
		Model:        data[2],
		DeviceID:     data[3],
		Command:      data[4],
		Payload:      payload,
	}, nil
}

// Validate checks the envelope without allocating.
func Validate(data []byte) error {
	if len(data) < MinLen {
		return fmt.Errorf("%w: %d bytes, need at least %d", ErrFrame, len(data), MinLen)
	}

	if data[0] != Start {
		return fmt.Errorf("%w: expected start byte 0x%02X, got 0x%02X", ErrFrame, Start, data[0])
	}

	if data[len(data)-1] != End {
		return fmt.Errorf("%w: expected end byte 0x%02X, got 0x%02X", ErrFrame, End, data[len(data)-1])
	}

	// Check all data bytes are 7-bit (valid MIDI data)
	for i := 1; i < len(data)-1; i++ {
		if data[i] > 0x7F {
			return fmt.Errorf("%w: byte at position %d is > 127 (0x%02X)", ErrFrame, i, data[i])
		}
	}

	return nil
}

// IsFrame reports whether data looks like a SysEx message (F0 ... F7).
func IsFrame(data []byte) bool {
	return len(data) >= 2 && data[0] == Start && data[len(data)-1] == End
}

// String renders the message as hex, the way it goes out on the wire.
func (m Message) String() string {
	return fmt.Sprintf("% X", Build(m))
}
