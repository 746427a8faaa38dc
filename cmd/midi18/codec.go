package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/james-see/midi18/pkg/converter"
	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/protocol/devices"
	"github.com/james-see/midi18/pkg/routing"
	"github.com/james-see/midi18/pkg/sysex"
)

var (
	routes      []string
	tableFile   string
	presetName  string
	asJSON      bool
	newDeviceID string
	asResponse  bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Show the masks, payload and WRITE_CONFIG frame of a routing table",
	Args:  cobra.NoArgs,
	RunE:  runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a 20-byte routing payload or a whole frame",
	Long: `Decode a routing payload given as hex. A value starting with F0 is
parsed as a complete WRITE_CONFIG or READ_CONFIG frame.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

var frameCmd = &cobra.Command{
	Use:   "frame <command>",
	Short: "Build the frame of a command (ping, read, write, set-id)",
	Args:  cobra.ExactArgs(1),
	RunE:  runFrame,
}

var parseCmd = &cobra.Command{
	Use:   "parse <hex>",
	Short: "Parse and explain a frame",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runParse,
}

func init() {
	addTableFlags(encodeCmd)
	encodeCmd.Flags().BoolVar(&asJSON, "json", false, "Print the table as JSON")

	decodeCmd.Flags().BoolVar(&asJSON, "json", false, "Print the table as JSON")

	addTableFlags(frameCmd)
	frameCmd.Flags().StringVar(&newDeviceID, "new-id", "", "New device ID for set-id")
	frameCmd.Flags().BoolVar(&asResponse, "response", false, "Build the device's answer instead of the request")

	parseCmd.Flags().BoolVar(&asResponse, "response", false, "Parse as a device answer")
}

func addTableFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&routes, "route", "r", nil, "Route OUTPUT:CHANNELS, e.g. 3:1,2,rt or 8:all (repeatable)")
	cmd.Flags().StringVarP(&tableFile, "file", "f", "", "Start from a .syx, .mid or .json dump")
	cmd.Flags().StringVar(&presetName, "preset", "", "Start from a saved preset")
}

// buildTable starts from --file or --preset and applies every --route on top.
// A route replaces the whole row of its output.
func buildTable() (routing.Table, error) {
	var t routing.Table

	switch {
	case tableFile != "" && presetName != "":
		return t, fmt.Errorf("use either --file or --preset, not both")
	case tableFile != "":
		device, err := devices.Lookup(deviceName)
		if err != nil {
			return t, err
		}
		d, err := converter.New(device).ReadFile(tableFile)
		if err != nil {
			return t, err
		}
		t = d.Table
	case presetName != "":
		p, err := cfg.FindPreset(presetName)
		if err != nil {
			return t, err
		}
		t = p.Table
	}

	for _, r := range routes {
		output, dests, err := routing.ParseRoute(r)
		if err != nil {
			return t, err
		}
		t.SetRow(output, false)
		for _, d := range dests {
			t.Set(output, d, true)
		}
	}
	return t, nil
}

func printTable(w io.Writer, t routing.Table) {
	fmt.Fprint(w, t.String())
	if !strings.HasSuffix(t.String(), "\n") {
		fmt.Fprintln(w)
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printMasks(w io.Writer, t routing.Table) {
	masks := t.Masks()
	for d, m := range masks {
		fmt.Fprintf(w, "  %-3s %08b (0x%02X)\n", routing.DestinationName(d), m, m)
	}
}

func runEncode(cmd *cobra.Command, args []string) error {
	t, err := buildTable()
	if err != nil {
		return err
	}
	addr, err := address()
	if err != nil {
		return err
	}

	frame, err := addr.WriteConfig(t)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, map[string]any{
			"table":   t,
			"payload": sysex.Hex(protocol.EncodeRoutingTable(t)),
			"frame":   sysex.Hex(frame),
		})
	}

	printTable(out, t)
	fmt.Fprintln(out, "Masks (bit n = output n+1):")
	printMasks(out, t)
	fmt.Fprintf(out, "Payload: %s\n", sysex.Hex(protocol.EncodeRoutingTable(t)))
	fmt.Fprintf(out, "Frame:   %s (%d bytes)\n", sysex.Hex(frame), len(frame))
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	data, err := sysex.ParseHex(strings.Join(args, " "))
	if err != nil {
		return err
	}

	var t routing.Table
	if len(data) > 0 && data[0] == sysex.Start {
		msg, err := protocol.ParseRequest(data)
		if err != nil {
			if msg, err = protocol.ParseResponse(data); err != nil {
				return err
			}
		}
		if t, err = msg.Table(); err != nil {
			return err
		}
	} else if t, err = protocol.DecodeRoutingTable(data); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, t)
	}
	printTable(out, t)
	return nil
}

func runFrame(cmd *cobra.Command, args []string) error {
	c, err := protocol.CommandByName(args[0])
	if err != nil {
		return err
	}
	addr, err := address()
	if err != nil {
		return err
	}

	var payload []byte
	switch c {
	case protocol.CommandWriteConfig:
		t, err := buildTable()
		if err != nil {
			return err
		}
		payload = protocol.EncodeRoutingTable(t)
	case protocol.CommandReadConfig:
		if asResponse {
			t, err := buildTable()
			if err != nil {
				return err
			}
			payload = protocol.EncodeRoutingTable(t)
		}
	case protocol.CommandChangeDeviceID:
		if newDeviceID == "" {
			return fmt.Errorf("%s needs --new-id", c)
		}
		id, err := protocol.ParseDeviceID(newDeviceID)
		if err != nil {
			return err
		}
		payload = []byte{id}
	}

	build := protocol.BuildRequest
	if asResponse {
		build = protocol.BuildResponse
	}
	frame, err := build(c, addr, payload)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), sysex.Hex(frame))
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	frame, err := sysex.ParseHex(strings.Join(args, " "))
	if err != nil {
		return err
	}

	parse := protocol.ParseRequest
	if asResponse {
		parse = protocol.ParseResponse
	}
	msg, err := parse(frame)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Address: %s\n", msg.Address)
	fmt.Fprintf(out, "Command: %s (0x%02X)\n", msg.Command, byte(msg.Command))
	fmt.Fprintf(out, "Payload: %d bytes\n", len(msg.Payload))

	if t, err := msg.Table(); err == nil {
		printTable(out, t)
	}
	if id, err := msg.NewDeviceID(); err == nil {
		fmt.Fprintf(out, "New device ID: %d (0x%02X)\n", id, id)
	}
	return nil
}
