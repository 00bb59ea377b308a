package plugins

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/linht/logiclk-manager/mmcm"
)

// ClockPlugin exposes the six logiCLK outputs as clocks
type ClockPlugin struct {
	config ClockConfig
	regs   RegisterWindow
	led    *LockLED
	device *mmcm.Device
	events *eventHub
	log    *slog.Logger

	tokenValidator TokenValidator
}

// ClockConfig holds the logiCLK core configuration
type ClockConfig struct {
	Name        string          `yaml:"name"`
	Registers   RegistersConfig `yaml:"registers"`
	LockLED     LockLEDConfig   `yaml:"lock_led"`
	mmcm.Config `yaml:",inline"`
}

// RegistersConfig selects the register window backend
type RegistersConfig struct {
	Backend     string `yaml:"backend"`
	Device      string `yaml:"device"`
	BaseAddress uint64 `yaml:"base_address"`
	Size        int    `yaml:"size"`
}

// LockLEDConfig is an optional GPIO line following the lock state
type LockLEDConfig struct {
	Chip string `yaml:"chip"`
	Line int    `yaml:"line"`
}

// NewClockPlugin opens the register window, validates the core
// configuration and applies it
func NewClockPlugin(cfg ClockConfig) (*ClockPlugin, error) {
	if cfg.Name == "" {
		cfg.Name = "logiclk"
	}

	log := slog.Default().With("device", cfg.Name)

	regs, err := OpenRegisterWindow(cfg.Registers)
	if err != nil {
		return nil, fmt.Errorf("failed to open registers: %w", err)
	}

	p := &ClockPlugin{
		config: cfg,
		regs:   regs,
		events: newEventHub(),
		log:    log,
	}

	if cfg.LockLED.Chip != "" {
		led, err := NewLockLED(cfg.LockLED.Chip, cfg.LockLED.Line)
		if err != nil {
			regs.Close()
			return nil, err
		}
		p.led = led
	}

	p.device, err = mmcm.New(cfg.Name, cfg.Config, regs, mmcm.WithLogger(log))
	if err != nil {
		p.Shutdown()
		return nil, err
	}

	log.Info("Clock plugin initializing",
		"registers", regs.Info(),
		"input_freq", mmcm.Hz(uint64(cfg.Input.Frequency)),
		"precise_output", cfg.PreciseOutput)

	err = p.device.Init()
	switch {
	case errors.Is(err, mmcm.ErrLockTimeout):
		// the core may be held in reset; rates can still be set later
		log.Warn("Initial configuration did not lock", "error", err)
		p.setLockLED(false)
	case err != nil:
		p.Shutdown()
		return nil, fmt.Errorf("failed to initialize %s: %w", cfg.Name, err)
	default:
		p.updateLockLED()
	}

	return p, nil
}

// SetTokenValidator sets the token validation function
func (p *ClockPlugin) SetTokenValidator(validator TokenValidator) {
	p.tokenValidator = validator
}

// Name returns the plugin identifier
func (p *ClockPlugin) Name() string {
	return "clock"
}

// RegisterRoutes adds the plugin's HTTP routes
func (p *ClockPlugin) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/clock")

	api.Get("/outputs", p.handleListOutputs)
	api.Get("/outputs/:id", p.handleRecalcRate)
	api.Post("/outputs/:id/round", p.handleRoundRate)
	api.Post("/outputs/:id/rate", p.handleSetRate)

	api.Get("/input", p.handleGetInput)
	api.Get("/registers", p.handleGetRegisters)
	api.Post("/program", p.handleProgram)
	api.Get("/status", p.handleStatus)

	api.Get("/events", p.upgradeEvents, websocket.New(p.events.serve))

	slog.Info("Clock plugin routes registered")
}

// Shutdown releases the register window and the lock line
func (p *ClockPlugin) Shutdown() error {
	var errs []error

	p.events.closeAll()

	if p.led != nil {
		if err := p.led.Close(); err != nil {
			errs = append(errs, err)
		}
		p.led = nil
	}

	// the device closes the window once the request holding it is done
	var err error
	if p.device != nil {
		err = p.device.Close()
	} else {
		err = p.regs.Close()
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to close registers: %w", err))
	}

	return errors.Join(errs...)
}

// upgradeEvents checks the query token before the socket upgrade
// (browsers cannot set headers on WebSocket requests)
func (p *ClockPlugin) upgradeEvents(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	token := c.Query("token")
	if p.tokenValidator != nil && !p.tokenValidator(token) {
		return SendErrorMessage(c, 401, "Unauthorized")
	}
	return c.Next()
}

func (p *ClockPlugin) setLockLED(locked bool) {
	if p.led == nil {
		return
	}
	if err := p.led.Set(locked); err != nil {
		p.log.Warn("Failed to update lock line", "error", err)
	}
}

func (p *ClockPlugin) updateLockLED() {
	if p.led == nil {
		return
	}
	locked, err := p.device.Locked()
	if err != nil {
		p.log.Warn("Failed to read lock status", "error", err)
	}
	p.setLockLED(locked)
}

func outputInfo(out mmcm.Output) map[string]interface{} {
	return map[string]interface{}{
		"id":                out.ID,
		"name":              out.Name(),
		"frequency":         out.Frequency,
		"frequency_display": mmcm.Hz(uint64(out.Frequency)).String(),
		"divide":            out.Divide,
		"duty":              out.Duty,
		"phase":             out.Phase,
		"precise":           out.Precise,
	}
}

// Output handlers

func (p *ClockPlugin) handleListOutputs(c *fiber.Ctx) error {
	outputs := p.device.Outputs()

	list := make([]map[string]interface{}, 0, len(outputs))
	for _, out := range outputs {
		list = append(list, outputInfo(out))
	}

	return SendSuccess(c, map[string]interface{}{
		"outputs": list,
		"count":   len(list),
	}, "")
}

func (p *ClockPlugin) handleRecalcRate(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return SendErrorMessage(c, 400, "Invalid output id")
	}

	out, err := p.device.RecalcRate(id)
	if err != nil {
		return SendMappedError(c, err)
	}

	return SendSuccess(c, outputInfo(out), "")
}

func (p *ClockPlugin) handleRoundRate(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return SendErrorMessage(c, 400, "Invalid output id")
	}

	var req struct {
		Frequency uint32 `json:"frequency"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	rate, err := p.device.RoundRate(id, req.Frequency)
	if err != nil {
		return SendMappedError(c, err)
	}

	return SendSuccess(c, map[string]interface{}{
		"requested":         req.Frequency,
		"frequency":         rate,
		"frequency_display": mmcm.Hz(uint64(rate)).String(),
	}, "")
}

func (p *ClockPlugin) handleSetRate(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return SendErrorMessage(c, 400, "Invalid output id")
	}

	var req struct {
		Frequency uint32 `json:"frequency"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	reqID := uuid.New().String()
	p.log.Info("Set rate requested", "request", reqID, "output", id, "frequency", mmcm.Hz(uint64(req.Frequency)))

	out, err := p.device.SetRate(id, req.Frequency)

	ev := ClockEvent{
		ID:     reqID,
		Time:   time.Now(),
		Type:   EventRate,
		Output: id,
	}
	if err != nil {
		p.log.Error("Failed to set rate", "request", reqID, "output", id, "error", err)
		if errors.Is(err, mmcm.ErrLockTimeout) {
			p.setLockLED(false)
		}
		ev.Error = err.Error()
		p.events.publish(ev)
		return SendMappedError(c, err)
	}

	ev.Frequency = out.Frequency
	ev.Locked = true
	p.setLockLED(true)
	p.events.publish(ev)

	data := outputInfo(out)
	data["request"] = reqID
	return SendSuccess(c, data, "Rate set successfully")
}

// Core handlers

func (p *ClockPlugin) handleGetInput(c *fiber.Ctx) error {
	in := p.device.Input()
	vco := in.VCO()

	return SendSuccess(c, map[string]interface{}{
		"frequency":      in.Frequency,
		"multiply":       in.Multiply,
		"divide":         in.Divide,
		"phase":          in.Phase,
		"bandwidth_high": in.BandwidthHigh,
		"vco":            vco,
		"vco_display":    mmcm.Hz(vco).String(),
	}, "")
}

func (p *ClockPlugin) handleGetRegisters(c *fiber.Ctx) error {
	regs := p.device.Registers()

	list := make([]map[string]interface{}, 0, len(regs))
	for i, v := range regs {
		list = append(list, map[string]interface{}{
			"index":     i,
			"offset":    fmt.Sprintf("0x%02X", (i+mmcm.RegManualWord)*mmcm.RegStride),
			"value":     fmt.Sprintf("0x%04X", v),
			"value_dec": v,
		})
	}

	return SendSuccess(c, map[string]interface{}{
		"registers": list,
		"count":     len(list),
	}, "")
}

func (p *ClockPlugin) handleProgram(c *fiber.Ctx) error {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := c.BodyParser(&req); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}

	var software bool
	switch req.Mode {
	case "software", "":
		software = true
	case "hardware":
		software = false
	default:
		return SendErrorMessage(c, 400, "Invalid mode. Use: software or hardware")
	}

	err := p.device.Program(software)

	ev := ClockEvent{
		ID:     uuid.New().String(),
		Time:   time.Now(),
		Type:   EventProgram,
		Output: -1,
		Locked: err == nil,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	p.setLockLED(err == nil)
	p.events.publish(ev)

	if err != nil {
		p.log.Error("Failed to program", "mode", req.Mode, "error", err)
		return SendMappedError(c, err)
	}

	slog.Info("Clock programmed", "mode", req.Mode)
	return SendSuccess(c, map[string]interface{}{
		"software": software,
		"locked":   true,
	}, "Configuration latched")
}

func (p *ClockPlugin) handleStatus(c *fiber.Ctx) error {
	locked, err := p.device.Locked()
	if err != nil {
		return SendMappedError(c, err)
	}

	info := map[string]interface{}{
		"name":      p.device.Name(),
		"locked":    locked,
		"registers": p.regs.Info(),
	}
	if p.led != nil {
		info["lock_led"] = p.led.Info()
	}

	return SendSuccess(c, info, "")
}

// Register the plugin
func init() {
	Register("clock", func(config interface{}) (Plugin, error) {
		cfg, ok := config.(ClockConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config for clock plugin: expected ClockConfig")
		}
		return NewClockPlugin(cfg)
	})
}
