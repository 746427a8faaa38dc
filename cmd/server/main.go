// Package main is the entry point for the midi18 API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/james-see/midi18/pkg/api"
	"github.com/james-see/midi18/pkg/emulator"
	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/transport"
)

func main() {
	port := flag.Int("port", 8080, "Server port")
	emulate := flag.Bool("emulate", false, "Attach an emulated MIDI 1-8 at the default address")
	debug := flag.Bool("debug", false, "Log every request")
	flag.Parse()

	defer transport.CloseDriver()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "midi18-server", ReportTimestamp: true})
	if *debug {
		logger.SetLevel(log.DebugLevel)
	}

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithPorts(transport.ListPorts),
	}
	if *emulate {
		dev := emulator.New(protocol.DefaultAddress(), emulator.WithLogger(logger.WithPrefix("emulator")))
		opts = append(opts, api.WithEmulator(dev))
		logger.Info("emulated device attached", "address", dev.Address())
	}

	fmt.Printf("Starting midi18 API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.StartServer(*port, opts...); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
