package plugins

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/linht/logiclk-manager/mmcm"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func testClockConfig() ClockConfig {
	outputs := make([]mmcm.OutputConfig, mmcm.Outputs)
	for i := range outputs {
		outputs[i] = mmcm.OutputConfig{Divide: uint32(2 + i), Duty: 50000}
	}
	return ClockConfig{
		Registers: RegistersConfig{Backend: BackendSim},
		Config: mmcm.Config{
			Input:   mmcm.InputConfig{Frequency: 100000000, Divide: 1, Multiply: 10},
			Outputs: outputs,
		},
	}
}

func newTestClock(t *testing.T) (*fiber.App, *ClockPlugin, *mmcm.SimRegisters) {
	t.Helper()

	p, err := NewClockPlugin(testClockConfig())
	assert.NilError(t, err)
	t.Cleanup(func() { p.Shutdown() })

	app := fiber.New()
	p.RegisterRoutes(app)

	sim := p.regs.(*simWindow).SimRegisters
	return app, p, sim
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, APIResponse) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	assert.NilError(t, err)
	defer resp.Body.Close()

	var out APIResponse
	data, err := io.ReadAll(resp.Body)
	assert.NilError(t, err)
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		assert.NilError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func dataMap(t *testing.T, res APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := res.Data.(map[string]interface{})
	assert.Assert(t, ok, "data is %T", res.Data)
	return m
}

func TestClockListOutputs(t *testing.T) {
	app, _, _ := newTestClock(t)

	status, res := doRequest(t, app, "GET", "/api/clock/outputs", "")
	assert.Equal(t, status, 200)
	assert.Assert(t, res.Success)

	data := dataMap(t, res)
	assert.Equal(t, data["count"], float64(mmcm.Outputs))

	outputs := data["outputs"].([]interface{})
	first := outputs[0].(map[string]interface{})
	assert.Equal(t, first["name"], "clkout_0")
	assert.Equal(t, first["frequency"], float64(500000000))
	assert.Equal(t, first["frequency_display"], mmcm.Hz(500000000).String())
	assert.Equal(t, first["precise"], true)

	last := outputs[5].(map[string]interface{})
	assert.Equal(t, last["frequency"], float64(142857142))
	assert.Equal(t, last["divide"], float64(7))
}

func TestClockRecalcRate(t *testing.T) {
	app, _, _ := newTestClock(t)

	status, res := doRequest(t, app, "GET", "/api/clock/outputs/2", "")
	assert.Equal(t, status, 200)
	assert.Equal(t, dataMap(t, res)["frequency"], float64(250000000))

	status, _ = doRequest(t, app, "GET", "/api/clock/outputs/6", "")
	assert.Equal(t, status, 400)

	status, res = doRequest(t, app, "GET", "/api/clock/outputs/abc", "")
	assert.Equal(t, status, 400)
	assert.Equal(t, res.Error, "Invalid output id")
}

func TestClockRoundRateLeavesStateAlone(t *testing.T) {
	app, p, sim := newTestClock(t)
	before := p.device.Registers()

	status, res := doRequest(t, app, "POST", "/api/clock/outputs/0/round", `{"frequency": 50000000}`)
	assert.Equal(t, status, 200)
	assert.Equal(t, dataMap(t, res)["frequency"], float64(50000000))

	assert.Equal(t, p.device.Registers(), before)
	assert.Equal(t, p.device.Input().Multiply, uint32(10))
	assert.Equal(t, len(sim.ControlWrites()), 0)
}

func TestClockSetRate(t *testing.T) {
	app, p, sim := newTestClock(t)

	status, res := doRequest(t, app, "POST", "/api/clock/outputs/0/rate", `{"frequency": 50000000}`)
	assert.Equal(t, status, 200, res.Error)
	assert.Equal(t, res.Message, "Rate set successfully")

	data := dataMap(t, res)
	assert.Equal(t, data["frequency"], float64(50000000))
	assert.Equal(t, data["divide"], float64(12))
	assert.Check(t, data["request"] != "")

	assert.Equal(t, p.device.Input().Multiply, uint32(6))
	assert.DeepEqual(t, sim.ControlWrites(), []uint32{mmcm.ControlConfig | mmcm.ControlConfigSW})
	assert.Equal(t, sim.Manual(), p.device.Registers())
}

func TestClockSetRateErrors(t *testing.T) {
	app, p, sim := newTestClock(t)

	status, res := doRequest(t, app, "POST", "/api/clock/outputs/1/rate", `{"frequency": 1000}`)
	assert.Equal(t, status, 400)
	assert.Check(t, is.Contains(res.Error, "invalid output frequency"))

	status, _ = doRequest(t, app, "POST", "/api/clock/outputs/9/rate", `{"frequency": 50000000}`)
	assert.Equal(t, status, 400)

	status, res = doRequest(t, app, "POST", "/api/clock/outputs/1/rate", `not json`)
	assert.Equal(t, status, 400)
	assert.Equal(t, res.Error, "Invalid request body")

	assert.Equal(t, len(sim.ControlWrites()), 0)

	sim.LockAfter = -1
	status, res = doRequest(t, app, "POST", "/api/clock/outputs/1/rate", `{"frequency": 100000000}`)
	assert.Equal(t, status, 504)
	assert.Check(t, is.Contains(res.Error, "PLL failed to lock"))
	assert.Equal(t, sim.StatusReads(), mmcm.LockPollAttempts)
	assert.Equal(t, len(sim.ControlWrites()), 0)

	// the new rate stays in the image even though the core did not lock
	assert.Equal(t, p.device.Outputs()[1].Frequency, uint32(100000000))
}

func TestClockProgram(t *testing.T) {
	app, _, sim := newTestClock(t)

	status, res := doRequest(t, app, "POST", "/api/clock/program", `{"mode": "hardware"}`)
	assert.Equal(t, status, 200, res.Error)
	assert.Equal(t, dataMap(t, res)["software"], false)
	assert.DeepEqual(t, sim.ControlWrites(), []uint32{mmcm.ControlConfig})
	assert.Equal(t, sim.Manual(), mmcm.Registers{})

	sim.Reset()
	status, _ = doRequest(t, app, "POST", "/api/clock/program", `{"mode": "software"}`)
	assert.Equal(t, status, 200)
	assert.DeepEqual(t, sim.ControlWrites(), []uint32{mmcm.ControlConfig | mmcm.ControlConfigSW})

	// the image built at start-up reaches the core
	manual := sim.Manual()
	assert.Equal(t, manual[mmcm.ManEnable], uint32(mmcm.ManEnableMask))
	assert.Equal(t, manual[mmcm.ManDivclk], uint32(0x1041))
	assert.Equal(t, manual[mmcm.ManFilter2], uint32(0x0890))

	status, res = doRequest(t, app, "POST", "/api/clock/program", `{"mode": "flash"}`)
	assert.Equal(t, status, 400)
	assert.Check(t, is.Contains(res.Error, "Invalid mode"))
}

func TestClockInputRegistersStatus(t *testing.T) {
	app, _, _ := newTestClock(t)

	status, res := doRequest(t, app, "GET", "/api/clock/input", "")
	assert.Equal(t, status, 200)
	data := dataMap(t, res)
	assert.Equal(t, data["vco"], float64(1000000000))
	assert.Equal(t, data["vco_display"], mmcm.Hz(1000000000).String())
	assert.Equal(t, data["bandwidth_high"], false)

	// recalc refreshes the feedback words
	doRequest(t, app, "GET", "/api/clock/outputs/0", "")

	status, res = doRequest(t, app, "GET", "/api/clock/registers", "")
	assert.Equal(t, status, 200)
	data = dataMap(t, res)
	assert.Equal(t, data["count"], float64(mmcm.ManualRegs))
	regs := data["registers"].([]interface{})
	first := regs[0].(map[string]interface{})
	assert.Equal(t, first["offset"], "0x0C")
	assert.Equal(t, first["value"], "0xFFFF")
	last := regs[mmcm.ManFilter2].(map[string]interface{})
	assert.Equal(t, last["offset"], "0x5C")

	status, res = doRequest(t, app, "GET", "/api/clock/status", "")
	assert.Equal(t, status, 200)
	data = dataMap(t, res)
	assert.Equal(t, data["name"], "logiclk")
	assert.Equal(t, data["locked"], true)
	assert.Equal(t, data["registers"], "sim")
}

func TestClockEventsRequireUpgrade(t *testing.T) {
	app, p, _ := newTestClock(t)
	p.SetTokenValidator(func(token string) bool { return token == "secret" })

	status, _ := doRequest(t, app, "GET", "/api/clock/events?token=secret", "")
	assert.Equal(t, status, fiber.StatusUpgradeRequired)
}

func TestClockFactory(t *testing.T) {
	factory, ok := Get("clock")
	assert.Assert(t, ok)

	_, err := factory("not a config")
	assert.ErrorContains(t, err, "expected ClockConfig")

	cfg := testClockConfig()
	cfg.Registers.Backend = "spi"
	_, err = factory(cfg)
	assert.ErrorContains(t, err, "unknown register backend")

	cfg = testClockConfig()
	cfg.Input.Multiply = 1
	_, err = factory(cfg)
	assert.ErrorIs(t, err, mmcm.ErrInvalidConfig)

	plugin, err := factory(testClockConfig())
	assert.NilError(t, err)
	assert.Equal(t, plugin.Name(), "clock")
	assert.NilError(t, plugin.Shutdown())
}

func TestSendMappedError(t *testing.T) {
	app := fiber.New()
	app.Get("/:kind", func(c *fiber.Ctx) error {
		switch c.Params("kind") {
		case "params":
			return SendMappedError(c, mmcm.ErrInvalidParameters)
		case "config":
			return SendMappedError(c, fmt.Errorf("clk: %w", mmcm.ErrInvalidConfig))
		case "lock":
			return SendMappedError(c, mmcm.ErrLockTimeout)
		case "closed":
			return SendMappedError(c, mmcm.ErrClosed)
		default:
			return SendMappedError(c, io.ErrUnexpectedEOF)
		}
	})

	for kind, want := range map[string]int{"params": 400, "config": 400, "lock": 504, "closed": 503, "io": 500} {
		status, res := doRequest(t, app, "GET", "/"+kind, "")
		assert.Equal(t, status, want, kind)
		assert.Assert(t, !res.Success)
	}
}

func TestPluginNames(t *testing.T) {
	assert.Check(t, is.Contains(Names(), "clock"))
	assert.Assert(t, is.Panics(func() { Register("clock", nil) }))
}

func TestClockRateReplyMatchesDevice(t *testing.T) {
	app, p, _ := newTestClock(t)

	status, res := doRequest(t, app, "POST", "/api/clock/outputs/3/rate", `{"frequency": 125000000}`)
	assert.Equal(t, status, 200, res.Error)
	data := dataMap(t, res)
	out := p.device.Outputs()[3]
	assert.Equal(t, data["frequency"], float64(out.Frequency))
	assert.Equal(t, data["divide"], float64(out.Divide))
	assert.Equal(t, out.Divide, uint32(8))

	status, res = doRequest(t, app, "GET", "/api/clock/outputs/3", "")
	assert.Equal(t, status, 200)
	assert.Equal(t, dataMap(t, res)["frequency"], float64(125000000))
}

func TestClockShutdownClosesDevice(t *testing.T) {
	app, p, sim := newTestClock(t)

	assert.NilError(t, p.Shutdown())
	assert.NilError(t, p.Shutdown())

	status, _ := doRequest(t, app, "GET", "/api/clock/status", "")
	assert.Equal(t, status, 503)

	status, _ = doRequest(t, app, "POST", "/api/clock/outputs/1/rate", `{"frequency": 100000000}`)
	assert.Equal(t, status, 503)
	assert.Equal(t, sim.StatusReads(), 0)
}
