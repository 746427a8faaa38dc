package converter

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/james-see/midi18/pkg/protocol"
)

// JSONConverter handles the human-editable .json dump
type JSONConverter struct {
	device protocol.Device
}

type jsonDump struct {
	Device  string            `json:"device,omitempty"`
	Address *protocol.Address `json:"address,omitempty"`
	Table   json.RawMessage   `json:"table"`
}

// NewJSONConverter creates a new .json converter
func NewJSONConverter(device protocol.Device) *JSONConverter {
	return &JSONConverter{device: device}
}

// ParseJSONFile reads a .json dump
func (j *JSONConverter) ParseJSONFile(filename string) (Dump, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Dump{}, fmt.Errorf("failed to read json file: %w", err)
	}
	return j.ParseJSON(data)
}

// ParseJSON parses a .json dump. A missing address falls back to the
// converter's device.
func (j *JSONConverter) ParseJSON(data []byte) (Dump, error) {
	var raw jsonDump
	if err := json.Unmarshal(data, &raw); err != nil {
		return Dump{}, fmt.Errorf("failed to parse json dump: %w", err)
	}
	if len(raw.Table) == 0 {
		return Dump{}, ErrNoRoutingFrame
	}

	var d Dump
	if err := json.Unmarshal(raw.Table, &d.Table); err != nil {
		return Dump{}, fmt.Errorf("invalid table: %w", err)
	}

	switch {
	case raw.Address != nil:
		d.Address = *raw.Address
	case j.device != nil:
		d.Address = j.device.Address()
	default:
		d.Address = protocol.DefaultAddress()
	}
	if err := d.Address.Validate(); err != nil {
		return Dump{}, err
	}
	return d, nil
}

// GenerateJSON writes an indented .json dump
func (j *JSONConverter) GenerateJSON(d Dump) ([]byte, error) {
	table, err := json.Marshal(d.Table)
	if err != nil {
		return nil, err
	}

	raw := jsonDump{Address: &d.Address, Table: table}
	if j.device != nil {
		raw.Device = j.device.ID()
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteJSONFile writes a .json dump to a file
func (j *JSONConverter) WriteJSONFile(d Dump, filename string) error {
	data, err := j.GenerateJSON(d)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
