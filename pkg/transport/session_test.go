package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/midi18/pkg/emulator"
	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/routing"
)

const testTimeout = 50 * time.Millisecond

func sampleTable() routing.Table {
	var t routing.Table
	t.Set(0, 0, true)
	t.Set(0, 1, true)
	t.SetColumn(routing.RealTime, true)
	t.Set(5, 12, true)
	return t
}

func newSession(t *testing.T, link Link, addr protocol.Address, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithTimeout(testTimeout)}, opts...)
	s, err := NewSession(link, addr, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// silentLink swallows every frame and counts the sends.
type silentLink struct {
	mu    sync.Mutex
	sent  int
	input bool
}

func (l *silentLink) Send([]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent++
	return nil
}

func (l *silentLink) Listen(func([]byte)) (func(), error) {
	if !l.input {
		return nil, ErrNoInput
	}
	return func() {}, nil
}

func (l *silentLink) Close() error { return nil }

func (l *silentLink) sends() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

// scriptedLink answers every send with fixed frames.
type scriptedLink struct {
	answers [][]byte
	fn      func([]byte)
}

func (l *scriptedLink) Send([]byte) error {
	for _, a := range l.answers {
		l.fn(a)
	}
	return nil
}

func (l *scriptedLink) Listen(fn func([]byte)) (func(), error) {
	l.fn = fn
	return func() {}, nil
}

func (l *scriptedLink) Close() error { return nil }

func TestPing(t *testing.T) {
	dev := emulator.New(protocol.DefaultAddress())
	s := newSession(t, emulator.NewLink(dev), protocol.DefaultAddress())

	rtt, err := s.Ping(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rtt, time.Duration(0))
}

func TestWriteThenRead(t *testing.T) {
	dev := emulator.New(protocol.DefaultAddress())
	s := newSession(t, emulator.NewLink(dev), protocol.DefaultAddress())
	ctx := context.Background()

	table := sampleTable()
	require.NoError(t, s.WriteConfig(ctx, table))
	assert.Equal(t, 1, dev.Writes())

	got, err := s.ReadConfig(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(table), "read back:\n%s", got)
}

func TestWriteAndVerify(t *testing.T) {
	dev := emulator.New(protocol.DefaultAddress())
	s := newSession(t, emulator.NewLink(dev), protocol.DefaultAddress())

	require.NoError(t, s.WriteAndVerify(context.Background(), sampleTable()))
	assert.True(t, dev.Table().Equal(sampleTable()))
}

func TestWriteAndVerifyMismatch(t *testing.T) {
	stored := sampleTable()
	resp, err := protocol.BuildResponse(protocol.CommandReadConfig, protocol.DefaultAddress(), protocol.EncodeRoutingTable(stored))
	require.NoError(t, err)

	s := newSession(t, &scriptedLink{answers: [][]byte{resp}}, protocol.DefaultAddress())

	var other routing.Table
	other.Set(7, 15, true)

	err = s.WriteAndVerify(context.Background(), other)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerify)
	assert.Equal(t, TagMismatch, ftag.Get(err))
}

func TestReadConfigTimeout(t *testing.T) {
	link := &silentLink{input: true}
	s := newSession(t, link, protocol.DefaultAddress(), WithRetries(2))

	start := time.Now()
	_, err := s.ReadConfig(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, TagTimeout, ftag.Get(err))
	assert.Equal(t, 3, link.sends())
	assert.GreaterOrEqual(t, time.Since(start), 3*testTimeout)
}

func TestReadConfigCancelled(t *testing.T) {
	s := newSession(t, &silentLink{input: true}, protocol.DefaultAddress(), WithTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ReadConfig(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestIgnoresOtherUnits(t *testing.T) {
	other := emulator.New(protocol.DefaultAddress().WithDeviceID(0x02))
	s := newSession(t, emulator.NewLink(other), protocol.DefaultAddress())

	_, err := s.Ping(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestIgnoresForeignFrames(t *testing.T) {
	table := sampleTable()
	foreign, err := protocol.BuildResponse(protocol.CommandReadConfig, protocol.DefaultAddress().WithDeviceID(0x09), protocol.EncodeRoutingTable(routing.Table{}))
	require.NoError(t, err)
	ours, err := protocol.BuildResponse(protocol.CommandReadConfig, protocol.DefaultAddress(), protocol.EncodeRoutingTable(table))
	require.NoError(t, err)

	link := &scriptedLink{answers: [][]byte{
		{0xF0, 0x43, 0x10, 0x4C, 0x00, 0xF7},
		{0x90, 0x40, 0x7F},
		foreign,
		ours,
	}}
	s := newSession(t, link, protocol.DefaultAddress())

	got, err := s.ReadConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Equal(table))
}

func TestChangeDeviceID(t *testing.T) {
	dev := emulator.New(protocol.DefaultAddress())
	s := newSession(t, emulator.NewLink(dev), protocol.DefaultAddress())
	ctx := context.Background()

	require.NoError(t, s.ChangeDeviceID(ctx, 0x05))
	assert.Equal(t, byte(0x05), s.Address().DeviceID)
	assert.Equal(t, byte(0x05), dev.Address().DeviceID)

	_, err := s.Ping(ctx)
	assert.NoError(t, err, "session follows the unit to its new address")
}

func TestChangeDeviceIDInvalid(t *testing.T) {
	s := newSession(t, &silentLink{input: true}, protocol.DefaultAddress())

	err := s.ChangeDeviceID(context.Background(), 0x80)
	assert.ErrorIs(t, err, protocol.ErrInvalidAddress)
	assert.Equal(t, ftag.InvalidArgument, ftag.Get(err))
}

func TestDiscover(t *testing.T) {
	link := emulator.NewLink(
		emulator.New(protocol.DefaultAddress().WithDeviceID(0x01)),
		emulator.New(protocol.DefaultAddress().WithDeviceID(0x04)),
	)
	s := newSession(t, link, protocol.DefaultAddress())

	found, err := s.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, byte(0x01), found[0].DeviceID)
	assert.Equal(t, byte(0x04), found[1].DeviceID)
}

func TestWriteOnlyLink(t *testing.T) {
	link := &silentLink{}
	s := newSession(t, link, protocol.DefaultAddress())
	ctx := context.Background()

	require.NoError(t, s.WriteConfig(ctx, sampleTable()))
	assert.Equal(t, 1, link.sends())

	_, err := s.ReadConfig(ctx)
	assert.ErrorIs(t, err, ErrNoInput)
	assert.Equal(t, TagNoInput, ftag.Get(err))

	_, err = s.Discover(ctx)
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestNewSessionRejectsBadAddress(t *testing.T) {
	_, err := NewSession(&silentLink{}, protocol.Address{Manufacturer: 0x80, Model: 0x18, DeviceID: 1})
	assert.ErrorIs(t, err, protocol.ErrInvalidAddress)
}

func TestConcurrentExchanges(t *testing.T) {
	dev := emulator.New(protocol.DefaultAddress())
	s := newSession(t, emulator.NewLink(dev), protocol.DefaultAddress())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var table routing.Table
			table.Set(i, i, true)
			assert.NoError(t, s.WriteAndVerify(ctx, table))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, dev.Writes())
}
