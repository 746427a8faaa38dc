// Package api provides the REST API server for midi18
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/midi18/pkg/converter"
	"github.com/james-see/midi18/pkg/emulator"
	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/protocol/devices"
	"github.com/james-see/midi18/pkg/routing"
	"github.com/james-see/midi18/pkg/sevenbit"
	"github.com/james-see/midi18/pkg/sysex"
	"github.com/james-see/midi18/pkg/transport"
)

// @title MIDI 1-8 Configurator API
// @version 1.0
// @description Encode, decode and exchange routing configuration frames for the MIDI 1-8 router
// @host localhost:8080
// @BasePath /api/v1

// Server serves the configurator API
type Server struct {
	emulator *emulator.Device
	ports    func() transport.Ports
	logger   *log.Logger
}

// Option configures a Server
type Option func(*Server)

// WithEmulator attaches an emulated unit, enabling the /emulator routes
func WithEmulator(d *emulator.Device) Option {
	return func(s *Server) {
		s.emulator = d
	}
}

// WithPorts sets the function listing MIDI ports
func WithPorts(fn func() transport.Ports) Option {
	return func(s *Server) {
		s.ports = fn
	}
}

// WithLogger sets the logger for server events
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a Server
func New(opts ...Option) *Server {
	s := &Server{
		ports:  func() transport.Ports { return transport.Ports{} },
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/commands", listCommands)
		v1.GET("/devices", listDevices)
		v1.GET("/formats", listFormats)
		v1.GET("/ports", s.listPorts)
		v1.POST("/encode", handleEncode)
		v1.POST("/decode", handleDecode)
		v1.POST("/frames/build", handleBuildFrame)
		v1.POST("/frames/parse", handleParseFrame)
		v1.POST("/convert/:from/:to", handleConversion)

		if s.emulator != nil {
			emu := v1.Group("/emulator")
			emu.GET("/config", s.getEmulatorConfig)
			emu.PUT("/config", s.putEmulatorConfig)
			emu.POST("/frames", s.postEmulatorFrame)
		}
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// Run serves the API on the specified port
func (s *Server) Run(port int) error {
	if s.emulator != nil {
		s.logger.Info("emulator attached", "address", s.emulator.Address())
	}
	return s.Router().Run(fmt.Sprintf(":%d", port))
}

// StartServer starts the API server on the specified port
func StartServer(port int, opts ...Option) error {
	return New(opts...).Run(port)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// statusFor maps an error to the HTTP status reported for it
func statusFor(err error) int {
	switch {
	case errors.Is(err, routing.ErrInvalidIndex),
		errors.Is(err, sevenbit.ErrMalformedPacket),
		errors.Is(err, sysex.ErrFrame),
		errors.Is(err, protocol.ErrUnknownCommand),
		errors.Is(err, protocol.ErrInvalidPayload),
		errors.Is(err, protocol.ErrInvalidAddress),
		errors.Is(err, converter.ErrUnsupported),
		errors.Is(err, converter.ErrNoRoutingFrame):
		return http.StatusBadRequest
	case errors.Is(err, devices.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, transport.ErrTimeout):
		return http.StatusGatewayTimeout
	}

	switch ftag.Get(err) {
	case ftag.InvalidArgument:
		return http.StatusBadRequest
	case ftag.NotFound:
		return http.StatusNotFound
	case transport.TagTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
