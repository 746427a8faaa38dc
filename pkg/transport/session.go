// Package transport exchanges configuration frames with a router over a MIDI link.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/log"

	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/routing"
	"github.com/james-see/midi18/pkg/sysex"
)

// DefaultTimeout bounds an exchange whose context has no earlier deadline.
const DefaultTimeout = 2 * time.Second

// Error kinds attached to session errors with ftag.
const (
	TagTimeout  ftag.Kind = "TIMEOUT"
	TagNoInput  ftag.Kind = "NO_INPUT"
	TagMismatch ftag.Kind = "VERIFY_MISMATCH"
)

var (
	// ErrTimeout is returned when the device does not answer in time.
	ErrTimeout = errors.New("no response from device")
	// ErrNoInput is returned by links that cannot receive.
	ErrNoInput = errors.New("no MIDI input")
	// ErrVerify is returned when a read-back differs from what was written.
	ErrVerify = errors.New("device table differs from written table")
)

// Link carries raw frames to and from the bus.
type Link interface {
	Send(frame []byte) error
	Listen(fn func(frame []byte)) (stop func(), err error)
	Close() error
}

// Session talks to one unit. Exchanges are serialised; a Session is safe for
// concurrent use.
type Session struct {
	link    Link
	timeout time.Duration
	retries int
	logger  *log.Logger

	mu        sync.Mutex
	addr      protocol.Address
	responses chan protocol.Message
	stop      func()
	listenErr error
}

// Option configures a Session.
type Option func(*Session)

// WithTimeout sets the per-attempt response timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetries resends a request n more times when it times out.
func WithRetries(n int) Option {
	return func(s *Session) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithLogger sets the logger; frames are logged at debug level.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession starts listening on link for answers from the unit at addr.
// A link without input still allows fire-and-forget writes.
func NewSession(link Link, addr protocol.Address, opts ...Option) (*Session, error) {
	if err := addr.Validate(); err != nil {
		return nil, fault.Wrap(err, ftag.With(ftag.InvalidArgument))
	}

	s := &Session{
		link:      link,
		addr:      addr,
		timeout:   DefaultTimeout,
		logger:    log.New(io.Discard),
		responses: make(chan protocol.Message, 16),
	}
	for _, opt := range opts {
		opt(s)
	}

	stop, err := link.Listen(s.receive)
	if err != nil {
		if !errors.Is(err, ErrNoInput) {
			return nil, fault.Wrap(err, fmsg.With("listen for device answers"))
		}
		s.listenErr = err
		stop = func() {}
	}
	s.stop = stop

	return s, nil
}

func (s *Session) receive(frame []byte) {
	msg, err := protocol.ParseResponse(frame)
	if err != nil {
		s.logger.Debug("dropped frame", "frame", sysex.Hex(frame), "err", err)
		return
	}
	s.logger.Debug("received", "command", msg.Command, "from", msg.Address, "frame", sysex.Hex(frame))

	select {
	case s.responses <- msg:
	default:
		s.logger.Warn("response queue full, dropping frame", "command", msg.Command)
	}
}

// Address returns the address of the unit the session talks to.
func (s *Session) Address() protocol.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Close stops listening and closes the link.
func (s *Session) Close() error {
	s.stop()
	return s.link.Close()
}

func (s *Session) send(frame []byte) error {
	s.logger.Debug("sending", "frame", sysex.Hex(frame))
	if err := s.link.Send(frame); err != nil {
		return fault.Wrap(err,
			fmsg.WithDesc("send frame", "Could not send to the MIDI output. Is the device still connected?"))
	}
	return nil
}

func (s *Session) drain() {
	for {
		select {
		case <-s.responses:
		default:
			return
		}
	}
}

// exchange sends frame and waits for the first answer accepted by match.
// Callers hold s.mu.
func (s *Session) exchange(ctx context.Context, frame []byte, match func(protocol.Message) bool) (protocol.Message, error) {
	if s.listenErr != nil {
		return protocol.Message{}, fault.Wrap(s.listenErr,
			ftag.With(TagNoInput),
			fmsg.WithDesc("cannot receive answers", "Select a MIDI input port to read from the device."))
	}

	s.drain()

	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			s.logger.Debug("retrying", "attempt", attempt+1)
		}
		if err := s.send(frame); err != nil {
			return protocol.Message{}, err
		}

		msg, err := s.await(ctx, match)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, ErrTimeout) {
			return protocol.Message{}, err
		}
	}

	return protocol.Message{}, fault.Wrap(ErrTimeout,
		ftag.With(TagTimeout),
		fmsg.WithDesc(fmt.Sprintf("no answer from %s after %d attempt(s)", s.addr, s.retries+1),
			"The device did not answer. Check the MIDI cables, the selected ports and the device ID."))
}

func (s *Session) await(ctx context.Context, match func(protocol.Message) bool) (protocol.Message, error) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		select {
		case msg := <-s.responses:
			if match(msg) {
				return msg, nil
			}
			s.logger.Debug("ignored answer", "command", msg.Command, "from", msg.Address)
		case <-timer.C:
			return protocol.Message{}, ErrTimeout
		case <-ctx.Done():
			return protocol.Message{}, fault.Wrap(ctx.Err(), ftag.With(ftag.Cancelled))
		}
	}
}

func (s *Session) answerTo(cmd protocol.Command) func(protocol.Message) bool {
	return func(m protocol.Message) bool {
		return m.Command == cmd && s.addr.Matches(m)
	}
}

// Ping checks that the unit answers and returns the round-trip time.
func (s *Session) Ping(ctx context.Context) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := s.addr.Ping()
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := s.exchange(ctx, frame, s.answerTo(protocol.CommandPing)); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Discover pings every unit of the model and collects the addresses that answer
// before ctx is done or the session timeout elapses.
func (s *Session) Discover(ctx context.Context) ([]protocol.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listenErr != nil {
		return nil, fault.Wrap(s.listenErr, ftag.With(TagNoInput))
	}

	frame, err := s.addr.WithDeviceID(protocol.AnyDevice).Ping()
	if err != nil {
		return nil, err
	}

	s.drain()
	if err := s.send(frame); err != nil {
		return nil, err
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	seen := make(map[protocol.Address]bool)
	var found []protocol.Address
	for {
		select {
		case msg := <-s.responses:
			if msg.Command != protocol.CommandPing || seen[msg.Address] {
				continue
			}
			seen[msg.Address] = true
			found = append(found, msg.Address)
		case <-timer.C:
			return found, nil
		case <-ctx.Done():
			return found, nil
		}
	}
}

// ReadConfig requests the unit's routing table.
func (s *Session) ReadConfig(ctx context.Context) (routing.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readConfig(ctx)
}

func (s *Session) readConfig(ctx context.Context) (routing.Table, error) {
	frame, err := s.addr.ReadConfig()
	if err != nil {
		return routing.Table{}, err
	}

	msg, err := s.exchange(ctx, frame, s.answerTo(protocol.CommandReadConfig))
	if err != nil {
		return routing.Table{}, err
	}
	return msg.Table()
}

// WriteConfig sends t to the unit. The device does not acknowledge writes.
func (s *Session) WriteConfig(ctx context.Context, t routing.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fault.Wrap(err, ftag.With(ftag.Cancelled))
	}

	frame, err := s.addr.WriteConfig(t)
	if err != nil {
		return err
	}
	return s.send(frame)
}

// WriteAndVerify sends t and reads it back.
func (s *Session) WriteAndVerify(ctx context.Context, t routing.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := s.addr.WriteConfig(t)
	if err != nil {
		return err
	}
	if err := s.send(frame); err != nil {
		return err
	}

	got, err := s.readConfig(ctx)
	if err != nil {
		return err
	}
	if !got.Equal(t) {
		return fault.Wrap(ErrVerify,
			ftag.With(TagMismatch),
			fmsg.WithDesc("verify write", "The device reports a different routing table than the one sent."))
	}
	return nil
}

// ChangeDeviceID moves the unit to a new address. On success the session
// follows the unit to its new address.
func (s *Session) ChangeDeviceID(ctx context.Context, id byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := s.addr.ChangeDeviceID(id)
	if err != nil {
		return fault.Wrap(err, ftag.With(ftag.InvalidArgument))
	}

	target := s.addr.WithDeviceID(id)
	_, err = s.exchange(ctx, frame, func(m protocol.Message) bool {
		newID, err := m.NewDeviceID()
		return err == nil && newID == id && target.Matches(m)
	})
	if err != nil {
		return err
	}

	s.logger.Info("device id changed", "from", s.addr.DeviceID, "to", id)
	s.addr = target
	return nil
}
