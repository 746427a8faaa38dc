package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/james-see/midi18/pkg/converter"
	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/protocol/devices"
	"github.com/james-see/midi18/pkg/routing"
	"github.com/james-see/midi18/pkg/sysex"
)

// TableRequest carries a routing table and an optional device id
type TableRequest struct {
	DeviceID *byte        `json:"device_id,omitempty"`
	Table    routing.Table `json:"table"`
}

// EncodeResponse is the packed form of a routing table
type EncodeResponse struct {
	Masks   []int  `json:"masks"`
	Payload string `json:"payload"`
	Frame   string `json:"frame"`
}

// DecodeRequest carries a packed routing payload
type DecodeRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// TableResponse is an unpacked routing table
type TableResponse struct {
	Masks []int         `json:"masks"`
	Table routing.Table `json:"table"`
	Grid  string        `json:"grid"`
}

// BuildFrameRequest describes a frame to build
type BuildFrameRequest struct {
	Command     string         `json:"command" binding:"required"`
	DeviceID    *byte          `json:"device_id,omitempty"`
	Response    bool           `json:"response,omitempty"`
	Table       *routing.Table `json:"table,omitempty"`
	NewDeviceID *byte          `json:"new_device_id,omitempty"`
}

// FrameRequest carries a raw frame
type FrameRequest struct {
	Frame    string `json:"frame" binding:"required"`
	Response bool   `json:"response,omitempty"`
}

// FrameResponse describes a parsed frame
type FrameResponse struct {
	Frame       string           `json:"frame"`
	Address     protocol.Address `json:"address"`
	Command     string           `json:"command"`
	CommandCode byte             `json:"command_code"`
	Payload     string           `json:"payload"`
	Table       *routing.Table   `json:"table,omitempty"`
	NewDeviceID *byte            `json:"new_device_id,omitempty"`
}

func masksOf(t routing.Table) []int {
	m := t.Masks()
	out := make([]int, len(m))
	for i, b := range m {
		out[i] = int(b)
	}
	return out
}

func addressFor(id *byte) protocol.Address {
	addr := protocol.DefaultAddress()
	if id != nil {
		addr = addr.WithDeviceID(*id)
	}
	return addr
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "midi18",
	})
}

// listCommands godoc
// @Summary List protocol commands
// @Description Returns the command catalogue with payload sizes
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]map[string]interface{}
// @Router /api/v1/commands [get]
func listCommands(c *gin.Context) {
	cmds := make([]gin.H, 0, len(protocol.Commands()))
	for _, cmd := range protocol.Commands() {
		entry := gin.H{
			"name":                cmd.String(),
			"code":                byte(cmd),
			"request_payload_len": cmd.RequestPayloadLen(),
			"has_response":        cmd.HasResponse(),
		}
		if cmd.HasResponse() {
			entry["response_payload_len"] = cmd.ResponsePayloadLen()
		}
		cmds = append(cmds, entry)
	}
	c.JSON(http.StatusOK, gin.H{"commands": cmds})
}

// listDevices godoc
// @Summary List supported devices
// @Description Returns the supported router models
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]map[string]interface{}
// @Router /api/v1/devices [get]
func listDevices(c *gin.Context) {
	var out []gin.H
	for _, d := range devices.All() {
		out = append(out, gin.H{
			"id":           d.ID(),
			"name":         d.Name(),
			"address":      d.Address(),
			"outputs":      d.Outputs(),
			"destinations": d.Destinations(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"devices": out})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns a list of supported dump formats
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":     converter.Formats(),
		"conversions": converter.GetSupportedConversions(),
	})
}

// listPorts godoc
// @Summary List MIDI ports
// @Description Returns the MIDI input and output ports of the host
// @Tags info
// @Produce json
// @Success 200 {object} transport.Ports
// @Router /api/v1/ports [get]
func (s *Server) listPorts(c *gin.Context) {
	c.JSON(http.StatusOK, s.ports())
}

// handleEncode godoc
// @Summary Encode a routing table
// @Description Packs a routing table into the 20-byte payload and a WRITE_CONFIG frame
// @Tags codec
// @Accept json
// @Produce json
// @Param request body TableRequest true "Routing table"
// @Success 200 {object} EncodeResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/encode [post]
func handleEncode(c *gin.Context) {
	var req TableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	frame, err := addressFor(req.DeviceID).WriteConfig(req.Table)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, EncodeResponse{
		Masks:   masksOf(req.Table),
		Payload: sysex.Hex(protocol.EncodeRoutingTable(req.Table)),
		Frame:   sysex.Hex(frame),
	})
}

// handleDecode godoc
// @Summary Decode a routing payload
// @Description Unpacks a 20-byte payload into a routing table
// @Tags codec
// @Accept json
// @Produce json
// @Param request body DecodeRequest true "Payload as hex"
// @Success 200 {object} TableResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/decode [post]
func handleDecode(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	payload, err := sysex.ParseHex(req.Payload)
	if err != nil {
		bindError(c, err)
		return
	}

	t, err := protocol.DecodeRoutingTable(payload)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, TableResponse{Masks: masksOf(t), Table: t, Grid: t.String()})
}

// handleBuildFrame godoc
// @Summary Build a protocol frame
// @Description Builds a request (or, with response=true, a device answer) for a command
// @Tags frames
// @Accept json
// @Produce json
// @Param request body BuildFrameRequest true "Frame description"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/frames/build [post]
func handleBuildFrame(c *gin.Context) {
	var req BuildFrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	cmd, err := protocol.CommandByName(req.Command)
	if err != nil {
		writeError(c, err)
		return
	}

	var payload []byte
	switch cmd {
	case protocol.CommandWriteConfig:
		var t routing.Table
		if req.Table != nil {
			t = *req.Table
		}
		payload = protocol.EncodeRoutingTable(t)
	case protocol.CommandReadConfig:
		if req.Response {
			var t routing.Table
			if req.Table != nil {
				t = *req.Table
			}
			payload = protocol.EncodeRoutingTable(t)
		}
	case protocol.CommandChangeDeviceID:
		if req.NewDeviceID == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "new_device_id is required for " + cmd.String()})
			return
		}
		payload = []byte{*req.NewDeviceID}
	}

	build := protocol.BuildRequest
	if req.Response {
		build = protocol.BuildResponse
	}

	frame, err := build(cmd, addressFor(req.DeviceID), payload)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"command": cmd.String(),
		"frame":   sysex.Hex(frame),
		"length":  len(frame),
	})
}

func describeFrame(frame []byte, msg protocol.Message) FrameResponse {
	out := FrameResponse{
		Frame:       sysex.Hex(frame),
		Address:     msg.Address,
		Command:     msg.Command.String(),
		CommandCode: byte(msg.Command),
		Payload:     sysex.Hex(msg.Payload),
	}
	if t, err := msg.Table(); err == nil {
		out.Table = &t
	}
	if msg.Command == protocol.CommandChangeDeviceID {
		if id, err := msg.NewDeviceID(); err == nil {
			out.NewDeviceID = &id
		}
	}
	return out
}

// handleParseFrame godoc
// @Summary Parse a protocol frame
// @Description Validates a request (or, with response=true, a device answer) and decodes it
// @Tags frames
// @Accept json
// @Produce json
// @Param request body FrameRequest true "Frame as hex"
// @Success 200 {object} FrameResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/frames/parse [post]
func handleParseFrame(c *gin.Context) {
	var req FrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	frame, err := sysex.ParseHex(req.Frame)
	if err != nil {
		bindError(c, err)
		return
	}

	parse := protocol.ParseRequest
	if req.Response {
		parse = protocol.ParseResponse
	}

	msg, err := parse(frame)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, describeFrame(frame, msg))
}

// handleConversion godoc
// @Summary Convert a routing dump
// @Description Upload a .syx, .mid or .json dump and receive it in another format
// @Tags convert
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param from path string true "Source format (syx, midi, json)"
// @Param to path string true "Target format (syx, midi, json)"
// @Param file formData file true "Dump to convert"
// @Param device query string false "Device (default: midi18)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/{from}/{to} [post]
func handleConversion(c *gin.Context) {
	from := converter.ParseFormat(c.Param("from"))
	to := converter.ParseFormat(c.Param("to"))
	if to == converter.FormatUnknown {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported conversion"})
		return
	}
	if c.Param("from") != "auto" && from == converter.FormatUnknown {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported conversion"})
		return
	}

	// Get uploaded file
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	// Read file content
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	device, err := devices.Lookup(c.DefaultQuery("device", "midi18"))
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := converter.New(device).Convert(data, from, to)
	if err != nil {
		writeError(c, err)
		return
	}

	// Generate output filename
	base := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	if base == "" || base == "." {
		base = "converted"
	}
	outputName := base + to.Extension()

	// Set content type and headers
	var contentType string
	switch to {
	case converter.FormatMIDI:
		contentType = "audio/midi"
	case converter.FormatJSON:
		contentType = "application/json"
	default:
		contentType = "application/octet-stream"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName))
	c.Data(http.StatusOK, contentType, result)
}

// EmulatorState is the stored state of the attached emulator
type EmulatorState struct {
	Address protocol.Address `json:"address"`
	Table   routing.Table    `json:"table"`
	Writes  int              `json:"writes"`
}

func (s *Server) emulatorState() EmulatorState {
	return EmulatorState{
		Address: s.emulator.Address(),
		Table:   s.emulator.Table(),
		Writes:  s.emulator.Writes(),
	}
}

// getEmulatorConfig godoc
// @Summary Read the emulator's routing table
// @Tags emulator
// @Produce json
// @Success 200 {object} EmulatorState
// @Router /api/v1/emulator/config [get]
func (s *Server) getEmulatorConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.emulatorState())
}

// putEmulatorConfig godoc
// @Summary Replace the emulator's routing table
// @Tags emulator
// @Accept json
// @Produce json
// @Param request body TableRequest true "Routing table"
// @Success 200 {object} EmulatorState
// @Failure 400 {object} map[string]string
// @Router /api/v1/emulator/config [put]
func (s *Server) putEmulatorConfig(c *gin.Context) {
	var req TableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	s.emulator.SetTable(req.Table)
	s.logger.Info("emulator table replaced", "routes", len(req.Table.Routes()))
	c.JSON(http.StatusOK, s.emulatorState())
}

// postEmulatorFrame godoc
// @Summary Send a frame to the emulator
// @Description Delivers a raw request frame and returns the emulator's answer, if any
// @Tags emulator
// @Accept json
// @Produce json
// @Param request body FrameRequest true "Request frame as hex"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/emulator/frames [post]
func (s *Server) postEmulatorFrame(c *gin.Context) {
	var req FrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	frame, err := sysex.ParseHex(req.Frame)
	if err != nil {
		bindError(c, err)
		return
	}

	resp, err := s.emulator.Handle(frame)
	if err != nil {
		writeError(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusOK, gin.H{"answered": false})
		return
	}

	msg, err := protocol.ParseResponse(resp)
	if err != nil {
		writeError(c, errors.Join(errors.New("emulator produced an invalid answer"), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"answered": true,
		"response": describeFrame(resp, msg),
	})
}
