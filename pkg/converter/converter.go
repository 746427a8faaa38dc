package converter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format represents a file format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatSyx     Format = "syx"
	FormatJSON    Format = "json"
	FormatUnknown Format = "unknown"
)

// ErrUnsupported is returned for conversions between unknown formats
var ErrUnsupported = errors.New("unsupported format")

// Formats lists the known formats
func Formats() []Format {
	return []Format{FormatSyx, FormatMIDI, FormatJSON}
}

// ParseFormat maps a format name or file extension to a Format
func ParseFormat(s string) Format {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "mid", "midi", "smf":
		return FormatMIDI
	case "syx", "sysex":
		return FormatSyx
	case "json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// Extension returns the file extension written for f
func (f Format) Extension() string {
	switch f {
	case FormatMIDI:
		return ".mid"
	case FormatSyx:
		return ".syx"
	case FormatJSON:
		return ".json"
	default:
		return ""
	}
}

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := filepath.Ext(filename)
	if ext == "" {
		return FormatUnknown
	}
	return ParseFormat(ext)
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}

	if len(data) < 4 {
		return FormatUnknown
	}

	// Check for MIDI file signature "MThd"
	if string(data[:4]) == "MThd" {
		return FormatMIDI
	}

	// Check for SysEx (starts with F0)
	if data[0] == SysExStart {
		return FormatSyx
	}

	return FormatUnknown
}

// Decode reads a dump stored in format
func (c *Converter) Decode(data []byte, format Format) (Dump, error) {
	switch format {
	case FormatSyx:
		return NewSyxConverter(c.device).ParseSyx(data)
	case FormatMIDI:
		return NewMIDIConverter(c.device).ParseMIDI(data)
	case FormatJSON:
		return NewJSONConverter(c.device).ParseJSON(data)
	default:
		return Dump{}, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
}

// Encode writes a dump in format
func (c *Converter) Encode(d Dump, format Format) ([]byte, error) {
	switch format {
	case FormatSyx:
		return NewSyxConverter(c.device).GenerateSyx(d)
	case FormatMIDI:
		return NewMIDIConverter(c.device).GenerateMIDI(d)
	case FormatJSON:
		return NewJSONConverter(c.device).GenerateJSON(d)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
}

// Convert converts a dump from one format to another
func (c *Converter) Convert(data []byte, from, to Format) ([]byte, error) {
	if from == FormatUnknown {
		from = DetectFormatFromContent(data)
	}

	d, err := c.Decode(data, from)
	if err != nil {
		return nil, err
	}
	return c.Encode(d, to)
}

// ReadFile reads a dump, detecting the format from the extension or the content
func (c *Converter) ReadFile(path string) (Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dump{}, fmt.Errorf("failed to read input file: %w", err)
	}

	format := DetectFormat(path)
	if format == FormatUnknown {
		format = DetectFormatFromContent(data)
	}
	return c.Decode(data, format)
}

// WriteFile writes a dump in the format given by the file extension
func (c *Converter) WriteFile(path string, d Dump) error {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return errors.New("cannot determine output format from filename")
	}

	data, err := c.Encode(d, format)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// ConvertFile converts a file from one format to another
func (c *Converter) ConvertFile(inputPath, outputPath string) error {
	if DetectFormat(outputPath) == FormatUnknown {
		return errors.New("cannot determine output format from filename")
	}

	d, err := c.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	return c.WriteFile(outputPath, d)
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	var paths []string
	for _, from := range Formats() {
		for _, to := range Formats() {
			if from != to {
				paths = append(paths, fmt.Sprintf("%s -> %s", from, to))
			}
		}
	}
	return paths
}
