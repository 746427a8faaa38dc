package transport

import (
	"fmt"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/james-see/midi18/pkg/sysex"
)

// sysExBuffer holds the largest frame the driver has to assemble.
const sysExBuffer = 1024

// Ports lists the MIDI ports known to the registered driver.
type Ports struct {
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// ListPorts returns the names of the available input and output ports.
func ListPorts() Ports {
	var p Ports
	for _, in := range midi.GetInPorts() {
		p.Inputs = append(p.Inputs, in.String())
	}
	for _, out := range midi.GetOutPorts() {
		p.Outputs = append(p.Outputs, out.String())
	}
	return p
}

// MIDILink sends frames on a driver output and receives them on an optional input.
type MIDILink struct {
	in   drivers.In
	out  drivers.Out
	send func(midi.Message) error

	mu    sync.Mutex
	stops []func()
}

// OpenPorts opens the named ports. An empty input name gives a write-only link.
func OpenPorts(inName, outName string) (*MIDILink, error) {
	out, err := midi.FindOutPort(outName)
	if err != nil {
		return nil, fault.Wrap(err,
			ftag.With(ftag.NotFound),
			fmsg.WithDesc(fmt.Sprintf("find output port %q", outName),
				fmt.Sprintf("No MIDI output named %q. Run `midi18 ports` to list them.", outName)))
	}

	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open output port"))
	}

	l := &MIDILink{out: out, send: send}
	if inName == "" {
		return l, nil
	}

	in, err := midi.FindInPort(inName)
	if err != nil {
		return nil, fault.Wrap(err,
			ftag.With(ftag.NotFound),
			fmsg.WithDesc(fmt.Sprintf("find input port %q", inName),
				fmt.Sprintf("No MIDI input named %q. Run `midi18 ports` to list them.", inName)))
	}
	l.in = in

	return l, nil
}

// Send writes one complete frame.
func (l *MIDILink) Send(frame []byte) error {
	if err := sysex.Validate(frame); err != nil {
		return err
	}
	return l.send(midi.Message(frame))
}

// Listen delivers every SysEx frame arriving on the input port to fn.
func (l *MIDILink) Listen(fn func(frame []byte)) (func(), error) {
	if l.in == nil {
		return nil, ErrNoInput
	}

	stop, err := midi.ListenTo(l.in, func(msg midi.Message, _ int32) {
		var data []byte
		if !msg.GetSysEx(&data) {
			return
		}
		fn(midi.SysEx(data))
	}, midi.UseSysEx(), midi.SysExBufferSize(sysExBuffer))
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("listen on input port"))
	}

	l.mu.Lock()
	l.stops = append(l.stops, stop)
	l.mu.Unlock()

	return stop, nil
}

// Close stops all listeners and closes the ports.
func (l *MIDILink) Close() error {
	l.mu.Lock()
	stops := l.stops
	l.stops = nil
	l.mu.Unlock()

	for _, stop := range stops {
		stop()
	}

	var err error
	if l.in != nil {
		err = l.in.Close()
	}
	if cerr := l.out.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// String names the link by its ports.
func (l *MIDILink) String() string {
	if l.in == nil {
		return fmt.Sprintf("out: %s", l.out)
	}
	return fmt.Sprintf("in: %s, out: %s", l.in, l.out)
}

// CloseDriver releases the MIDI driver.
func CloseDriver() {
	midi.CloseDriver()
}
