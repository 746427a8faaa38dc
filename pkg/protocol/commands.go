// Package protocol implements the MIDI 1-8 configuration exchange: the command
// catalogue, the payload rules of each command and the packed routing payload.
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/james-see/midi18/pkg/routing"
)

// Command is the command byte of a frame.
type Command byte

// Command codes
const (
	CommandPing           Command = 0x01
	CommandReadConfig     Command = 0x02
	CommandWriteConfig    Command = 0x03
	CommandChangeDeviceID Command = 0x04
)

// ConfigPayloadLen is the packed size of the 17 destination masks.
const ConfigPayloadLen = routing.Destinations + (routing.Destinations+6)/7

var (
	// ErrUnknownCommand is returned for a command byte outside the catalogue.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidPayload is returned when a payload does not fit its command.
	ErrInvalidPayload = errors.New("invalid payload")
)

// noResponse marks a command the device does not answer.
const noResponse = -1

var catalogue = map[Command]struct {
	name        string
	requestLen  int
	responseLen int
}{
	CommandPing:           {"PING", 0, 0},
	CommandReadConfig:     {"READ_CONFIG", 0, ConfigPayloadLen},
	CommandWriteConfig:    {"WRITE_CONFIG", ConfigPayloadLen, noResponse},
	CommandChangeDeviceID: {"CHANGE_DEVICE_ID", 1, 1},
}

// Commands lists the catalogue in code order.
func Commands() []Command {
	return []Command{CommandPing, CommandReadConfig, CommandWriteConfig, CommandChangeDeviceID}
}

// ParseCommand maps a command byte to a Command.
func ParseCommand(b byte) (Command, error) {
	c := Command(b)
	if _, ok := catalogue[c]; !ok {
		return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, b)
	}
	return c, nil
}

// CommandByName accepts "ping", "read-config", "READ_CONFIG", "write", ...
func CommandByName(name string) (Command, error) {
	n := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	switch n {
	case "READ":
		n = "READ_CONFIG"
	case "WRITE":
		n = "WRITE_CONFIG"
	case "SET_ID", "CHANGE_ID":
		n = "CHANGE_DEVICE_ID"
	}
	for _, c := range Commands() {
		if catalogue[c].name == n {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// String returns the protocol name of the command.
func (c Command) String() string {
	if info, ok := catalogue[c]; ok {
		return info.name
	}
	return fmt.Sprintf("Command(0x%02X)", byte(c))
}

// Valid reports whether c is in the catalogue.
func (c Command) Valid() bool {
	_, ok := catalogue[c]
	return ok
}

// RequestPayloadLen is the payload size a request of c must carry.
func (c Command) RequestPayloadLen() int {
	return catalogue[c].requestLen
}

// HasResponse reports whether the device answers c.
func (c Command) HasResponse() bool {
	info, ok := catalogue[c]
	return ok && info.responseLen != noResponse
}

// ResponsePayloadLen is the payload size of the device's answer to c.
func (c Command) ResponsePayloadLen() int {
	return catalogue[c].responseLen
}

func checkPayload(c Command, payload []byte, response bool) error {
	info, ok := catalogue[c]
	if !ok {
		return fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, byte(c))
	}

	want, dir := info.requestLen, "request"
	if response {
		want, dir = info.responseLen, "response"
	}
	if want == noResponse {
		return fmt.Errorf("%w: %s has no %s", ErrInvalidPayload, c, dir)
	}
	if len(payload) != want {
		return fmt.Errorf("%w: %s %s carries %d bytes, want %d", ErrInvalidPayload, c, dir, len(payload), want)
	}
	for i, b := range payload {
		if b > 0x7F {
			return fmt.Errorf("%w: %s %s byte %d is 0x%02X", ErrInvalidPayload, c, dir, i, b)
		}
	}
	return nil
}
