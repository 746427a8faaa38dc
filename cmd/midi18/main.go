// Package main is the entry point for the midi18 CLI
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Southclaws/fault/fmsg"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/james-see/midi18/pkg/config"
	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/protocol/devices"
	"github.com/james-see/midi18/pkg/transport"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	deviceName string
	deviceID   string
	inPort     string
	outPort    string
	timeout    time.Duration
	retries    int
	emulate    bool
	verbose    bool
	configPath string

	logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "midi18"})
	cfg    = config.DefaultConfig()
)

func main() {
	defer transport.CloseDriver()

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func printError(err error) {
	if issue := fmsg.GetIssue(err); issue != "" {
		fmt.Fprintln(os.Stderr, issue)
		if verbose {
			fmt.Fprintln(os.Stderr, err)
		}
		return
	}
	fmt.Fprintln(os.Stderr, err)
}

var rootCmd = &cobra.Command{
	Use:   "midi18",
	Short: "Configure the routing of a MIDI 1-8 channel router",
	Long: `midi18 reads and writes the routing table of a MIDI 1-8 router over SysEx.

Each of the 8 outputs can pass any of the 16 MIDI channels plus real-time
messages (clock, start, stop). Routes are given as OUTPUT:CHANNELS.

Examples:
  midi18 ports
  midi18 ping --out "MIDI 1-8" --in "MIDI 1-8"
  midi18 write --out "MIDI 1-8" --route 1:1,2 --route 8:all --route 3:rt
  midi18 read --in "MIDI 1-8" --out "MIDI 1-8" --save routing.syx
  midi18 encode --route 1:1-4
  midi18 convert routing.syx -o routing.json
  midi18 tui --emulate
  midi18 serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&deviceName, "device", "d", "midi18", fmt.Sprintf("Router model (%v)", devices.Names()))
	pf.StringVar(&deviceID, "device-id", "", "Device ID, decimal or 0x hex (default from config, else 1)")
	pf.StringVar(&inPort, "in", "", "MIDI input port receiving the device's answers")
	pf.StringVar(&outPort, "out", "", "MIDI output port connected to the device")
	pf.DurationVar(&timeout, "timeout", transport.DefaultTimeout, "Time to wait for an answer")
	pf.IntVar(&retries, "retries", 0, "Resend a request this many times when it times out")
	pf.BoolVar(&emulate, "emulate", false, "Talk to an emulated device instead of MIDI ports")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log every frame sent and received")
	pf.StringVar(&configPath, "config", "", "Preferences file (default $XDG_CONFIG_HOME/midi18/config.json)")

	rootCmd.AddCommand(encodeCmd, decodeCmd, frameCmd, parseCmd)
	rootCmd.AddCommand(portsCmd, pingCmd, readCmd, writeCmd, setIDCmd, discoverCmd)
	rootCmd.AddCommand(convertCmd, presetCmd)
	rootCmd.AddCommand(tuiCmd, serveCmd)
}

// setup loads preferences and layers the command line flags over them
func setup(cmd *cobra.Command, _ []string) error {
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	logger.Debug("preferences", "path", cfg.Path())

	flags := cmd.Flags()
	if !flags.Changed("in") && cfg.InputPort != "" {
		inPort = cfg.InputPort
	}
	if !flags.Changed("out") && cfg.OutputPort != "" {
		outPort = cfg.OutputPort
	}
	if !flags.Changed("timeout") {
		timeout = cfg.TimeoutDuration(transport.DefaultTimeout)
	}
	if !flags.Changed("device-id") {
		deviceID = fmt.Sprintf("%d", cfg.DeviceID)
	}
	return nil
}

// address resolves the device model and id given on the command line
func address() (protocol.Address, error) {
	device, err := devices.Lookup(deviceName)
	if err != nil {
		return protocol.Address{}, err
	}

	addr := device.Address()
	if deviceID != "" {
		id, err := protocol.ParseDeviceID(deviceID)
		if err != nil {
			return protocol.Address{}, err
		}
		addr = addr.WithDeviceID(id)
	}
	return addr, nil
}

var errNoOutput = errors.New("no MIDI output selected")
