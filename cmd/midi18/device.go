package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/spf13/cobra"

	"github.com/james-see/midi18/pkg/converter"
	"github.com/james-see/midi18/pkg/emulator"
	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/protocol/devices"
	"github.com/james-see/midi18/pkg/transport"
)

var (
	savePath    string
	verifyWrite bool
	remember    bool
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI input and output ports",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the device answers",
	Args:  cobra.NoArgs,
	RunE:  runPing,
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read the routing table from the device",
	Args:  cobra.NoArgs,
	RunE:  runRead,
}

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write a routing table to the device",
	Long: `Write a routing table built from --file, --preset and --route flags.

The device does not acknowledge writes; use --verify to read the table back.`,
	Args: cobra.NoArgs,
	RunE: runWrite,
}

var setIDCmd = &cobra.Command{
	Use:   "set-id <new-id>",
	Short: "Move the device to a new device ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetID,
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find every unit answering on the bus",
	Args:  cobra.NoArgs,
	RunE:  runDiscover,
}

func init() {
	readCmd.Flags().StringVarP(&savePath, "save", "s", "", "Also save the table as a .syx, .mid or .json dump")
	writeCmd.Flags().BoolVar(&verifyWrite, "verify", false, "Read the table back after writing")
	addTableFlags(writeCmd)

	for _, c := range []*cobra.Command{pingCmd, readCmd, writeCmd, setIDCmd} {
		c.Flags().BoolVar(&remember, "remember", false, "Store the ports and device ID in the preferences file")
	}
}

// signalContext is cancelled on interrupt
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openSession connects to the device through MIDI ports, or to an emulated unit
func openSession() (*transport.Session, error) {
	addr, err := address()
	if err != nil {
		return nil, err
	}

	opts := []transport.Option{
		transport.WithTimeout(timeout),
		transport.WithRetries(retries),
		transport.WithLogger(logger),
	}

	if emulate {
		dev := emulator.New(addr.WithDeviceID(addrOrDefault(addr)), emulator.WithLogger(logger.WithPrefix("emulator")))
		logger.Debug("using emulated device", "address", dev.Address())
		return transport.NewSession(emulator.NewLink(dev), addr, opts...)
	}

	if outPort == "" {
		return nil, fault.Wrap(errNoOutput,
			fmsg.WithDesc("open session", "Select the MIDI output connected to the device with --out. Run `midi18 ports` to list them."))
	}

	link, err := transport.OpenPorts(inPort, outPort)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened ports", "link", link)

	s, err := transport.NewSession(link, addr, opts...)
	if err != nil {
		_ = link.Close()
		return nil, err
	}
	return s, nil
}

// addrOrDefault keeps broadcast requests usable against the emulator
func addrOrDefault(addr protocol.Address) byte {
	if addr.DeviceID == protocol.AnyDevice {
		return protocol.DefaultDeviceID
	}
	return addr.DeviceID
}

func rememberSession(addr protocol.Address) error {
	if !remember {
		return nil
	}
	if !emulate {
		cfg.InputPort = inPort
		cfg.OutputPort = outPort
	}
	cfg.DeviceID = addr.DeviceID
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	logger.Info("preferences saved", "path", cfg.Path())
	return nil
}

func runPorts(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ports := transport.ListPorts()

	fmt.Fprintln(out, "Inputs:")
	for i, name := range ports.Inputs {
		fmt.Fprintf(out, "  [%d] %s\n", i, name)
	}
	fmt.Fprintln(out, "Outputs:")
	for i, name := range ports.Outputs {
		fmt.Fprintf(out, "  [%d] %s\n", i, name)
	}
	if len(ports.Inputs) == 0 && len(ports.Outputs) == 0 {
		fmt.Fprintln(out, "  (no MIDI ports found)")
	}
	return nil
}

func runPing(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	rtt, err := s.Ping(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s answered in %s\n", s.Address(), rtt)
	return rememberSession(s.Address())
}

func runRead(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	t, err := s.ReadConfig(ctx)
	if err != nil {
		return err
	}

	printTable(cmd.OutOrStdout(), t)

	if savePath != "" {
		device, err := devices.Lookup(deviceName)
		if err != nil {
			return err
		}
		d := converter.Dump{Address: s.Address(), Table: t}
		if err := converter.New(device).WriteFile(savePath, d); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", savePath)
	}
	return rememberSession(s.Address())
}

func runWrite(cmd *cobra.Command, args []string) error {
	t, err := buildTable()
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	if verifyWrite {
		err = s.WriteAndVerify(ctx, t)
	} else {
		err = s.WriteConfig(ctx, t)
	}
	if err != nil {
		return err
	}

	printTable(cmd.OutOrStdout(), t)
	if verifyWrite {
		fmt.Fprintf(cmd.OutOrStdout(), "Written to %s and verified\n", s.Address())
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Written to %s\n", s.Address())
	}
	return rememberSession(s.Address())
}

func runSetID(cmd *cobra.Command, args []string) error {
	id, err := protocol.ParseDeviceID(args[0])
	if err != nil {
		return err
	}
	if id == protocol.AnyDevice {
		return fmt.Errorf("%w: 0x%02X is reserved for broadcast", protocol.ErrInvalidAddress, id)
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	old := s.Address()
	if err := s.ChangeDeviceID(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Device moved from %s to %s\n", old, s.Address())
	return rememberSession(s.Address())
}

func runDiscover(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	found, err := s.Discover(ctx)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No device answered")
		return nil
	}
	for _, addr := range found {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (device id %d)\n", addr, addr.DeviceID)
	}
	return nil
}
