package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/james-see/midi18/pkg/api"
	"github.com/james-see/midi18/pkg/converter"
	"github.com/james-see/midi18/pkg/emulator"
	"github.com/james-see/midi18/pkg/protocol/devices"
	"github.com/james-see/midi18/pkg/transport"
	"github.com/james-see/midi18/pkg/tui"
)

var (
	outputFile string
	serverPort int
)

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Convert a routing dump between .syx, .mid and .json",
	Long:  `Detects the input format from the extension or content and writes the format given by the output extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage saved routing presets",
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved presets",
	Args:  cobra.NoArgs,
	RunE:  runPresetList,
}

var presetSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save a routing table built from --file and --route flags",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresetSave,
}

var presetShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a preset",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresetShow,
}

var presetDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a preset",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresetDelete,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive routing editor",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	_ = convertCmd.MarkFlagRequired("output")

	addTableFlags(presetSaveCmd)
	presetCmd.AddCommand(presetListCmd, presetSaveCmd, presetShowCmd, presetDeleteCmd)

	addTableFlags(tuiCmd)
	tuiCmd.Flags().StringVarP(&outputFile, "output", "o", "routing.syx", "File written by the save key")

	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")
}

func runConvert(cmd *cobra.Command, args []string) error {
	device, err := devices.Lookup(deviceName)
	if err != nil {
		return err
	}
	input := args[0]
	conv := converter.New(device)

	fmt.Fprintf(cmd.OutOrStdout(), "Converting %s -> %s\n", input, outputFile)
	if err := conv.ConvertFile(input, outputFile); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Conversion complete!")
	return nil
}

func runPresetList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(cfg.Presets) == 0 {
		fmt.Fprintln(out, "No presets saved")
		return nil
	}
	for _, name := range cfg.PresetNames() {
		p, err := cfg.FindPreset(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-20s %s  %d route(s)  %s\n", p.Name, p.ID, len(p.Table.Routes()), p.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runPresetSave(cmd *cobra.Command, args []string) error {
	t, err := buildTable()
	if err != nil {
		return err
	}
	p, err := cfg.SavePreset(args[0], t)
	if err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved preset %q (%s)\n", p.Name, p.ID)
	return nil
}

func runPresetShow(cmd *cobra.Command, args []string) error {
	p, err := cfg.FindPreset(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", p.Name, p.ID)
	printTable(cmd.OutOrStdout(), p.Table)
	return nil
}

func runPresetDelete(cmd *cobra.Command, args []string) error {
	if err := cfg.DeletePreset(args[0]); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted preset %q\n", args[0])
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	device, err := devices.Lookup(deviceName)
	if err != nil {
		return err
	}

	t, err := buildTable()
	if err != nil {
		return err
	}

	opts := []tui.Option{
		tui.WithTable(t),
		tui.WithConverter(converter.New(device)),
		tui.WithSavePath(outputFile),
	}

	// the editor works offline when no device is selected
	if emulate || outPort != "" {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		opts = append(opts, tui.WithSession(s))
	}

	if !verbose {
		logger.SetOutput(io.Discard)
	}
	return tui.Run(opts...)
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := []api.Option{
		api.WithLogger(logger),
		api.WithPorts(transport.ListPorts),
	}
	if emulate {
		addr, err := address()
		if err != nil {
			return err
		}
		opts = append(opts, api.WithEmulator(emulator.New(addr, emulator.WithLogger(logger.WithPrefix("emulator")))))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Starting API server on port %d...\n", serverPort)
	fmt.Fprintf(cmd.OutOrStdout(), "Swagger docs available at http://localhost:%d/swagger/index.html\n", serverPort)
	return api.StartServer(serverPort, opts...)
}
