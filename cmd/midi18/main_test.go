package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/midi18/pkg/config"
	"github.com/james-see/midi18/pkg/converter"
	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/protocol/devices"
	"github.com/james-see/midi18/pkg/routing"
	"github.com/james-see/midi18/pkg/sysex"
)

// reset restores the flag globals between tests.
func reset(t *testing.T) {
	t.Helper()
	deviceName = "midi18"
	deviceID = ""
	routes = nil
	tableFile = ""
	presetName = ""
	asJSON = false
	asResponse = false
	newDeviceID = ""
	cfg = config.DefaultConfig()
}

func output() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestBuildTableFromRoutes(t *testing.T) {
	reset(t)
	routes = []string{"1:1,2", "8:all", "3:rt"}

	table, err := buildTable()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, table.DestinationsFor(0))
	assert.Len(t, table.DestinationsFor(7), routing.Destinations)
	assert.Equal(t, []int{routing.RealTime}, table.DestinationsFor(2))
}

func TestBuildTableRouteReplacesRow(t *testing.T) {
	reset(t)
	var stored routing.Table
	stored.SetRow(0, true)
	stored.Set(1, 5, true)
	_, err := cfg.SavePreset("live", stored)
	require.NoError(t, err)

	presetName = "LIVE"
	routes = []string{"1:none", "2:16"}

	table, err := buildTable()
	require.NoError(t, err)
	assert.Empty(t, table.DestinationsFor(0))
	assert.Equal(t, []int{15}, table.DestinationsFor(1))
}

func TestBuildTableFromFile(t *testing.T) {
	reset(t)
	var stored routing.Table
	stored.Set(4, 9, true)

	path := filepath.Join(t.TempDir(), "dump.syx")
	conv := converter.New(devices.NewMIDI18())
	require.NoError(t, conv.WriteFile(path, conv.NewDump(stored)))

	tableFile = path
	table, err := buildTable()
	require.NoError(t, err)
	assert.True(t, table.Equal(stored))
}

func TestBuildTableErrors(t *testing.T) {
	reset(t)
	routes = []string{"9:1"}
	_, err := buildTable()
	assert.ErrorIs(t, err, routing.ErrInvalidIndex)

	reset(t)
	presetName = "missing"
	_, err = buildTable()
	assert.ErrorIs(t, err, config.ErrPresetNotFound)

	reset(t)
	presetName = "a"
	tableFile = "b.syx"
	_, err = buildTable()
	assert.Error(t, err)
}

func TestAddress(t *testing.T) {
	reset(t)
	addr, err := address()
	require.NoError(t, err)
	assert.Equal(t, protocol.DefaultAddress(), addr)

	deviceID = "0x05"
	addr, err = address()
	require.NoError(t, err)
	assert.Equal(t, byte(5), addr.DeviceID)

	deviceID = "200"
	_, err = address()
	assert.ErrorIs(t, err, protocol.ErrInvalidAddress)

	reset(t)
	deviceName = "td3"
	_, err = address()
	assert.ErrorIs(t, err, devices.ErrUnknownDevice)
}

func TestEncodePrintsFrame(t *testing.T) {
	reset(t)
	routes = []string{"1:1"}

	cmd, buf := output()
	require.NoError(t, runEncode(cmd, nil))

	var table routing.Table
	table.Set(0, 0, true)
	frame, err := protocol.DefaultAddress().WriteConfig(table)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Out 1")
	assert.Contains(t, out, sysex.Hex(frame))
	assert.Contains(t, out, "(26 bytes)")
}

func TestDecodeAcceptsPayloadAndFrame(t *testing.T) {
	reset(t)
	var table routing.Table
	table.Set(3, routing.RealTime, true)
	frame, err := protocol.DefaultAddress().WriteConfig(table)
	require.NoError(t, err)

	for _, in := range []string{
		sysex.Hex(protocol.EncodeRoutingTable(table)),
		sysex.Hex(frame),
	} {
		cmd, buf := output()
		require.NoError(t, runDecode(cmd, []string{in}))
		assert.Equal(t, table.String(), buf.String())
	}
}

func TestDecodeRejectsShortPayload(t *testing.T) {
	reset(t)
	cmd, _ := output()
	assert.Error(t, runDecode(cmd, []string{"00 01 02"}))
	assert.Error(t, runDecode(cmd, []string{"zz"}))
}

func TestFrameAndParse(t *testing.T) {
	reset(t)
	newDeviceID = "4"

	cmd, buf := output()
	require.NoError(t, runFrame(cmd, []string{"set-id"}))
	assert.Equal(t, "F0 7D 18 01 04 04 F7", strings.TrimSpace(buf.String()))

	cmd, buf = output()
	require.NoError(t, runParse(cmd, []string{"F0 7D 18 01 04 04 F7"}))
	assert.Contains(t, buf.String(), "Address: 7D:18:01")
	assert.Contains(t, buf.String(), "New device ID: 4")

	reset(t)
	cmd, _ = output()
	assert.Error(t, runFrame(cmd, []string{"set-id"}))
	assert.Error(t, runFrame(cmd, []string{"reboot"}))
}

func TestPrintTable(t *testing.T) {
	var table routing.Table
	table.Set(0, 0, true)

	var buf bytes.Buffer
	printTable(&buf, table)
	assert.Equal(t, table.String(), buf.String())
}
