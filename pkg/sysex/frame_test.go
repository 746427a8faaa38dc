package sysex

import (
	"bytes"
	"errors"
	"testing"
	"testing/quick"
)

func TestBuild(t *testing.T) {
	frame := Build(Message{
		Manufacturer: 0x7D,
		Model:        0x18,
		DeviceID:     0x01,
		Command:      0x02,
	})

	want := []byte{0xF0, 0x7D, 0x18, 0x01, 0x02, 0xF7}
	if !bytes.Equal(frame, want) {
		t.Errorf("Build() = % X, want % X", frame, want)
	}
}

func TestBuildPanicsOnHighBit(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"payload", Message{Payload: []byte{0x01, 0x80}}},
		{"device", Message{DeviceID: 0x90}},
		{"command", Message{Command: 0xF7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Build() should panic")
				}
			}()
			Build(tt.msg)
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	f := func(mfg, model, dev, cmd byte, payload []byte) bool {
		m := Message{
			Manufacturer: mfg & 0x7F,
			Model:        model & 0x7F,
			DeviceID:     dev & 0x7F,
			Command:      cmd & 0x7F,
			Payload:      make([]byte, len(payload)),
		}
		for i, b := range payload {
			m.Payload[i] = b & 0x7F
		}

		parsed, err := Parse(Build(m))
		if err != nil {
			return false
		}
		return parsed.Manufacturer == m.Manufacturer &&
			parsed.Model == m.Model &&
			parsed.DeviceID == m.DeviceID &&
			parsed.Command == m.Command &&
			bytes.Equal(parsed.Payload, m.Payload)
	}

	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestParsePayloadIsCopy(t *testing.T) {
	frame := []byte{0xF0, 0x7D, 0x18, 0x01, 0x04, 0x05, 0xF7}
	m, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	frame[5] = 0x06
	if m.Payload[0] != 0x05 {
		t.Error("Parse() payload should not alias the input")
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"too short", []byte{0xF0, 0x7D, 0x18, 0x01, 0xF7}},
		{"no start byte", []byte{0x00, 0x7D, 0x18, 0x01, 0x01, 0xF7}},
		{"no end byte", []byte{0xF0, 0x7D, 0x18, 0x01, 0x01, 0x00}},
		{"missing end byte", []byte{0xF0, 0x7D, 0x18, 0x01, 0x03, 0x7F, 0x7F}},
		{"high bit in payload", []byte{0xF0, 0x7D, 0x18, 0x01, 0x03, 0x80, 0xF7}},
		{"status byte in header", []byte{0xF0, 0x7D, 0x98, 0x01, 0x03, 0xF7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			if !errors.Is(err, ErrFrame) {
				t.Errorf("Parse() error = %v, want ErrFrame", err)
			}
		})
	}
}

func TestIsFrame(t *testing.T) {
	if !IsFrame([]byte{0xF0, 0xF7}) {
		t.Error("IsFrame(F0 F7) = false")
	}
	if IsFrame([]byte{0xF0}) {
		t.Error("IsFrame(F0) = true")
	}
	if IsFrame([]byte("MThd")) {
		t.Error("IsFrame(MThd) = true")
	}
}

func TestMessageString(t *testing.T) {
	m := Message{Manufacturer: 0x7D, Model: 0x18, DeviceID: 0x01, Command: 0x01}
	if got := m.String(); got != "F0 7D 18 01 01 F7" {
		t.Errorf("String() = %q", got)
	}
}
