package converter

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/protocol/devices"
	"github.com/james-see/midi18/pkg/routing"
	"github.com/james-see/midi18/pkg/sysex"
)

func sampleDump() Dump {
	var t routing.Table
	t.Set(0, 0, true)
	t.Set(2, 9, true)
	t.Set(7, routing.RealTime, true)
	return Dump{Address: protocol.DefaultAddress().WithDeviceID(0x03), Table: t}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		expected Format
	}{
		{"test.mid", FormatMIDI},
		{"test.midi", FormatMIDI},
		{"test.syx", FormatSyx},
		{"TEST.SYX", FormatSyx},
		{"test.json", FormatJSON},
		{"test.seq", FormatUnknown},
		{"test", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			result := DetectFormat(tt.filename)
			if result != tt.expected {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, result, tt.expected)
			}
		})
	}
}

func TestDetectFormatFromContent(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected Format
	}{
		{"MIDI file", []byte("MThd\x00\x00\x00\x06"), FormatMIDI},
		{"SysEx message", []byte{0xF0, 0x7D, 0x18, 0x01, 0x01, 0xF7}, FormatSyx},
		{"JSON", []byte("\n  {\"table\":{}}"), FormatJSON},
		{"Short data", []byte{0x00, 0x01}, FormatUnknown},
		{"Other binary", []byte{0x3C, 0x01, 0x3E, 0x02, 0x40, 0x03}, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectFormatFromContent(tt.data)
			if result != tt.expected {
				t.Errorf("DetectFormatFromContent() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestConverterNew(t *testing.T) {
	device := devices.NewMIDI18()
	conv := New(device)

	if conv == nil {
		t.Fatal("New() returned nil")
	}

	if conv.GetDevice() != device {
		t.Error("GetDevice() did not return the expected device")
	}

	other := device.WithDeviceID(0x09)
	conv.SetDevice(other)
	if conv.GetDevice() != other {
		t.Error("GetDevice() should return the new device after SetDevice")
	}

	d := conv.NewDump(routing.Table{})
	if d.Address.DeviceID != 0x09 {
		t.Errorf("NewDump() device id = 0x%02X, want 0x09", d.Address.DeviceID)
	}
}

func TestRoundTrip(t *testing.T) {
	conv := New(devices.NewMIDI18())
	want := sampleDump()

	for _, format := range Formats() {
		t.Run(string(format), func(t *testing.T) {
			data, err := conv.Encode(want, format)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			if got := DetectFormatFromContent(data); got != format {
				t.Errorf("DetectFormatFromContent() = %v, want %v", got, format)
			}

			got, err := conv.Decode(data, format)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.Address != want.Address {
				t.Errorf("address = %v, want %v", got.Address, want.Address)
			}
			if !got.Table.Equal(want.Table) {
				t.Errorf("table =\n%s\nwant\n%s", got.Table, want.Table)
			}
		})
	}
}

func TestConvertAllPaths(t *testing.T) {
	conv := New(devices.NewMIDI18())
	want := sampleDump()

	for _, from := range Formats() {
		src, err := conv.Encode(want, from)
		if err != nil {
			t.Fatalf("Encode(%s) error = %v", from, err)
		}
		for _, to := range Formats() {
			out, err := conv.Convert(src, FormatUnknown, to)
			if err != nil {
				t.Errorf("Convert(%s -> %s) error = %v", from, to, err)
				continue
			}
			got, err := conv.Decode(out, to)
			if err != nil {
				t.Errorf("Decode(%s) error = %v", to, err)
				continue
			}
			if !got.Table.Equal(want.Table) {
				t.Errorf("%s -> %s lost routing", from, to)
			}
		}
	}
}

func TestGenerateSyxIsOneWriteFrame(t *testing.T) {
	data, err := NewSyxConverter(devices.NewMIDI18()).GenerateSyx(sampleDump())
	if err != nil {
		t.Fatalf("GenerateSyx() error = %v", err)
	}

	if len(data) != 26 {
		t.Errorf("len = %d, want 26", len(data))
	}

	msg, err := protocol.ParseRequest(data)
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if msg.Command != protocol.CommandWriteConfig {
		t.Errorf("command = %v, want WRITE_CONFIG", msg.Command)
	}
}

func TestParseSyxSkipsOtherFrames(t *testing.T) {
	want := sampleDump()
	write, _ := want.Address.WriteConfig(want.Table)
	ping, _ := want.Address.Ping()

	var data []byte
	data = append(data, 0xF0, 0x43, 0x10, 0x4C, 0x00, 0x00, 0x7E, 0x00, 0xF7) // another manufacturer
	data = append(data, ping...)
	data = append(data, write...)

	got, err := NewSyxConverter(devices.NewMIDI18()).ParseSyx(data)
	if err != nil {
		t.Fatalf("ParseSyx() error = %v", err)
	}
	if !got.Table.Equal(want.Table) {
		t.Error("ParseSyx() returned the wrong table")
	}
}

func TestParseSyxReadConfigAnswer(t *testing.T) {
	want := sampleDump()
	resp, err := protocol.BuildResponse(protocol.CommandReadConfig, want.Address, protocol.EncodeRoutingTable(want.Table))
	if err != nil {
		t.Fatal(err)
	}

	got, err := NewSyxConverter(nil).ParseSyx(resp)
	if err != nil {
		t.Fatalf("ParseSyx() error = %v", err)
	}
	if !got.Table.Equal(want.Table) {
		t.Error("ParseSyx() returned the wrong table")
	}
}

func TestParseSyxErrors(t *testing.T) {
	ping, _ := protocol.DefaultAddress().Ping()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, sysex.ErrFrame},
		{"no start", []byte{0x00, 0xF7}, sysex.ErrFrame},
		{"no end", []byte{0xF0, 0x7D, 0x18}, sysex.ErrFrame},
		{"high byte", []byte{0xF0, 0x7D, 0x98, 0x01, 0x03, 0xF7}, sysex.ErrFrame},
		{"no routing frame", ping, ErrNoRoutingFrame},
	}

	s := NewSyxConverter(devices.NewMIDI18())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ParseSyx(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseSyx() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSplitFrames(t *testing.T) {
	data := []byte{0xF0, 0x01, 0xF7, 0xF0, 0x02, 0x03, 0xF7}
	frames, err := SplitFrames(data)
	if err != nil {
		t.Fatalf("SplitFrames() error = %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("SplitFrames() returned %d frames, want 2", len(frames))
	}
	if !bytes.Equal(frames[1], []byte{0xF0, 0x02, 0x03, 0xF7}) {
		t.Errorf("frames[1] = % X", frames[1])
	}

	if err := NewSyxConverter(nil).ValidateSyx(data); err != nil {
		t.Errorf("ValidateSyx() error = %v", err)
	}
}

func TestParseJSON(t *testing.T) {
	doc := `{"table":{"routes":[{"output":2,"channels":[10,11]},{"output":8,"realtime":true}]}}`

	d, err := NewJSONConverter(devices.NewMIDI18()).ParseJSON([]byte(doc))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}

	if d.Address != protocol.DefaultAddress() {
		t.Errorf("address = %v, want default", d.Address)
	}
	if !d.Table.Enabled(1, 9) || !d.Table.Enabled(1, 10) || !d.Table.Enabled(7, routing.RealTime) {
		t.Errorf("table =\n%s", d.Table)
	}

	bad := []string{
		`not json`,
		`{"device":"midi18"}`,
		`{"table":{"routes":[{"output":9,"channels":[1]}]}}`,
		`{"address":{"manufacturer":128,"model":24,"device_id":1},"table":{"routes":[]}}`,
	}
	for _, b := range bad {
		if _, err := NewJSONConverter(nil).ParseJSON([]byte(b)); err == nil {
			t.Errorf("ParseJSON(%s) expected error", b)
		}
	}
}

func TestGenerateJSONNamesDevice(t *testing.T) {
	data, err := NewJSONConverter(devices.NewMIDI18()).GenerateJSON(sampleDump())
	if err != nil {
		t.Fatalf("GenerateJSON() error = %v", err)
	}
	if !strings.Contains(string(data), `"device": "midi18"`) {
		t.Errorf("GenerateJSON() = %s", data)
	}
}

func TestParseMIDIWithoutSysEx(t *testing.T) {
	if _, err := NewMIDIConverter(nil).ParseMIDI([]byte("not a midi file")); err == nil {
		t.Error("ParseMIDI() expected error for garbage input")
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	conv := New(devices.NewMIDI18())

	in := filepath.Join(dir, "routing.syx")
	if err := conv.WriteFile(in, sampleDump()); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out := filepath.Join(dir, "routing.json")
	if err := conv.ConvertFile(in, out); err != nil {
		t.Fatalf("ConvertFile() error = %v", err)
	}

	d, err := conv.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !d.Table.Equal(sampleDump().Table) {
		t.Error("ConvertFile() lost routing")
	}

	// unknown extension falls back to content sniffing
	noExt := filepath.Join(dir, "routing")
	data, _ := os.ReadFile(in)
	if err := os.WriteFile(noExt, data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := conv.ReadFile(noExt); err != nil {
		t.Errorf("ReadFile(no extension) error = %v", err)
	}

	if err := conv.ConvertFile(in, filepath.Join(dir, "routing.txt")); err == nil {
		t.Error("ConvertFile() expected error for unknown output format")
	}
}

func TestGetSupportedConversions(t *testing.T) {
	conversions := GetSupportedConversions()

	if len(conversions) != 6 {
		t.Errorf("GetSupportedConversions() returned %d conversions, want 6", len(conversions))
	}

	expected := []string{
		"syx -> midi",
		"syx -> json",
		"midi -> syx",
		"midi -> json",
		"json -> syx",
		"json -> midi",
	}

	for i, exp := range expected {
		if conversions[i] != exp {
			t.Errorf("conversions[%d] = %q, want %q", i, conversions[i], exp)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"syx":   FormatSyx,
		".MID":  FormatMIDI,
		"smf":   FormatMIDI,
		"json":  FormatJSON,
		"seq":   FormatUnknown,
		"":      FormatUnknown,
		"sysex": FormatSyx,
	}
	for in, want := range tests {
		if got := ParseFormat(in); got != want {
			t.Errorf("ParseFormat(%q) = %v, want %v", in, got, want)
		}
	}

	if FormatMIDI.Extension() != ".mid" || FormatUnknown.Extension() != "" {
		t.Error("Extension() mismatch")
	}
}
