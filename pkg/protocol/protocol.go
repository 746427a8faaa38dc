package protocol

import (
	"fmt"

	"github.com/james-see/midi18/pkg/routing"
	"github.com/james-see/midi18/pkg/sevenbit"
	"github.com/james-see/midi18/pkg/sysex"
)

// Message is a frame of the configuration protocol.
type Message struct {
	Address Address
	Command Command
	Payload []byte
}

// EncodeRoutingTable packs the 17 destination masks of t into the 20-byte payload.
func EncodeRoutingTable(t routing.Table) []byte {
	masks := t.Masks()
	return sevenbit.Encode(masks[:])
}

// DecodeRoutingTable unpacks a 20-byte payload into a table.
func DecodeRoutingTable(payload []byte) (routing.Table, error) {
	raw, err := sevenbit.Decode(payload, routing.Destinations)
	if err != nil {
		return routing.Table{}, err
	}

	var masks routing.Masks
	copy(masks[:], raw)
	return routing.FromMasks(masks), nil
}

// BuildRequest frames a host-to-device request.
func BuildRequest(cmd Command, addr Address, payload []byte) ([]byte, error) {
	return build(cmd, addr, payload, false)
}

// BuildResponse frames a device-to-host answer.
func BuildResponse(cmd Command, addr Address, payload []byte) ([]byte, error) {
	return build(cmd, addr, payload, true)
}

func build(cmd Command, addr Address, payload []byte, response bool) ([]byte, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	if err := checkPayload(cmd, payload, response); err != nil {
		return nil, err
	}

	return sysex.Build(sysex.Message{
		Manufacturer: addr.Manufacturer,
		Model:        addr.Model,
		DeviceID:     addr.DeviceID,
		Command:      byte(cmd),
		Payload:      payload,
	}), nil
}

// ParseResponse parses a device-to-host frame and checks its payload shape.
func ParseResponse(frame []byte) (Message, error) {
	return parse(frame, true)
}

// ParseRequest parses a host-to-device frame and checks its payload shape.
func ParseRequest(frame []byte) (Message, error) {
	return parse(frame, false)
}

func parse(frame []byte, response bool) (Message, error) {
	raw, err := sysex.Parse(frame)
	if err != nil {
		return Message{}, err
	}

	cmd, err := ParseCommand(raw.Command)
	if err != nil {
		return Message{}, err
	}
	if err := checkPayload(cmd, raw.Payload, response); err != nil {
		return Message{}, err
	}

	return Message{
		Address: Address{
			Manufacturer: raw.Manufacturer,
			Model:        raw.Model,
			DeviceID:     raw.DeviceID,
		},
		Command: cmd,
		Payload: raw.Payload,
	}, nil
}

// Table decodes the routing payload of a WRITE_CONFIG request or READ_CONFIG response.
func (m Message) Table() (routing.Table, error) {
	if m.Command != CommandWriteConfig && m.Command != CommandReadConfig {
		return routing.Table{}, fmt.Errorf("%w: %s carries no routing table", ErrInvalidPayload, m.Command)
	}
	return DecodeRoutingTable(m.Payload)
}

// NewDeviceID returns the address carried by a CHANGE_DEVICE_ID frame.
func (m Message) NewDeviceID() (byte, error) {
	if m.Command != CommandChangeDeviceID || len(m.Payload) != 1 {
		return 0, fmt.Errorf("%w: %s carries no device id", ErrInvalidPayload, m.Command)
	}
	return m.Payload[0], nil
}

// Ping builds a presence request.
func (a Address) Ping() ([]byte, error) {
	return BuildRequest(CommandPing, a, nil)
}

// ReadConfig builds a request for the device's routing table.
func (a Address) ReadConfig() ([]byte, error) {
	return BuildRequest(CommandReadConfig, a, nil)
}

// WriteConfig builds a request storing t on the device.
func (a Address) WriteConfig(t routing.Table) ([]byte, error) {
	return BuildRequest(CommandWriteConfig, a, EncodeRoutingTable(t))
}

// ChangeDeviceID builds a request moving the device to a new address.
func (a Address) ChangeDeviceID(id byte) ([]byte, error) {
	if id > 0x7F {
		return nil, fmt.Errorf("%w: device id 0x%02X", ErrInvalidAddress, id)
	}
	return BuildRequest(CommandChangeDeviceID, a, []byte{id})
}
