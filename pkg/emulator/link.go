package emulator

import (
	"fmt"
	"sync"
)

// Link connects a host directly to one or more emulated units, like a MIDI cable
// daisy-chaining devices on one bus. Every unit sees every frame.
type Link struct {
	mu        sync.Mutex
	devices   []*Device
	listeners map[int]func([]byte)
	nextID    int
	closed    bool
}

// NewLink creates a link to the given units.
func NewLink(devices ...*Device) *Link {
	return &Link{
		devices:   devices,
		listeners: make(map[int]func([]byte)),
	}
}

// Send delivers a frame to every unit and hands their answers to the listeners.
// Malformed frames are dropped by the units, as real hardware would.
func (l *Link) Send(frame []byte) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	devices := append([]*Device(nil), l.devices...)
	l.mu.Unlock()

	for _, d := range devices {
		resp, err := d.Handle(frame)
		if err != nil || resp == nil {
			continue
		}
		l.deliver(resp)
	}
	return nil
}

func (l *Link) deliver(frame []byte) {
	l.mu.Lock()
	fns := make([]func([]byte), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(append([]byte(nil), frame...))
	}
}

// Listen registers fn for every frame sent back by the units.
func (l *Link) Listen(fn func(frame []byte)) (stop func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	id := l.nextID
	l.nextID++
	l.listeners[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}, nil
}

// Close detaches every listener; later sends fail.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	l.listeners = make(map[int]func([]byte))
	return nil
}

// String names the link the way port names are printed.
func (l *Link) String() string {
	return fmt.Sprintf("emulator (%d unit(s))", len(l.devices))
}

func hex(b []byte) string {
	return fmt.Sprintf("% X", b)
}
