package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/routing"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "config.json")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, byte(protocol.DefaultDeviceID), cfg.DeviceID)
	assert.Equal(t, 2*time.Second, cfg.TimeoutDuration(time.Second))
	assert.Equal(t, path, cfg.Path())
}

func TestConfigDirHonoursXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "midi18", "config.json"), got)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.OutputPort = "MIDI 1-8 Out"
	require.NoError(t, cfg.Save())

	again, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "MIDI 1-8 Out", again.OutputPort)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	var table routing.Table
	table.Set(4, 2, true)
	table.Set(4, routing.RealTime, true)

	cfg := DefaultConfig()
	cfg.InputPort = "USB MIDI In"
	cfg.DeviceID = 0x05
	cfg.Timeout = "500ms"
	p, err := cfg.SavePreset("Live", table)
	require.NoError(t, err)
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "USB MIDI In", loaded.InputPort)
	assert.Equal(t, protocol.DefaultAddress().WithDeviceID(0x05), loaded.Address())
	assert.Equal(t, 500*time.Millisecond, loaded.TimeoutDuration(time.Second))

	got, err := loaded.FindPreset(p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Live", got.Name)
	assert.True(t, got.Table.Equal(table))
	assert.WithinDuration(t, p.CreatedAt, got.CreatedAt, time.Second)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{"), 0644))
	_, err := LoadFrom(garbage)
	assert.Error(t, err)

	badID := filepath.Join(dir, "bad-id.json")
	require.NoError(t, os.WriteFile(badID, []byte(`{"device_id": 200}`), 0644))
	_, err = LoadFrom(badID)
	assert.ErrorIs(t, err, protocol.ErrInvalidAddress)
}

func TestTimeoutFallback(t *testing.T) {
	cfg := &Config{Timeout: "soon"}
	assert.Equal(t, time.Second, cfg.TimeoutDuration(time.Second))

	cfg.Timeout = "-1s"
	assert.Equal(t, time.Second, cfg.TimeoutDuration(time.Second))
}

func TestPresets(t *testing.T) {
	cfg := DefaultConfig()

	var a, b routing.Table
	a.Set(0, 0, true)
	b.Set(1, 1, true)

	first, err := cfg.SavePreset("studio", a)
	require.NoError(t, err)
	_, err = cfg.SavePreset("Live", b)
	require.NoError(t, err)

	// saving under an existing name keeps the id
	updated, err := cfg.SavePreset("Studio", b)
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)
	assert.Len(t, cfg.Presets, 2)

	assert.Equal(t, []string{"Live", "studio"}, cfg.PresetNames())

	got, err := cfg.FindPreset("STUDIO")
	require.NoError(t, err)
	assert.True(t, got.Table.Equal(b))

	_, err = cfg.SavePreset("  ", a)
	assert.Error(t, err)

	require.NoError(t, cfg.DeletePreset("live"))
	assert.Equal(t, []string{"studio"}, cfg.PresetNames())

	assert.ErrorIs(t, cfg.DeletePreset("live"), ErrPresetNotFound)
	_, err = cfg.FindPreset("nope")
	assert.ErrorIs(t, err, ErrPresetNotFound)
}
