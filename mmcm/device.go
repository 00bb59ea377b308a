package mmcm

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Device is one logiCLK core with its six outputs. All methods serialise on
// a single lock, since every output shares the feedback path.
type Device struct {
	mu      sync.Mutex
	name    string
	st      state
	tx      stack
	setFreq bool
	closed  bool
	regs    RegisterBlock
	seq     *Sequencer
	log     *slog.Logger
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger used by the device and its sequencer.
func WithLogger(log *slog.Logger) Option {
	return func(d *Device) {
		d.log = log
		d.seq.log = log
	}
}

// WithSleep replaces the delay used between lock polls.
func WithSleep(sleep func(time.Duration)) Option {
	return func(d *Device) {
		d.seq.sleep = sleep
	}
}

// New validates cfg and creates a device driving regs. Nothing is written
// to the hardware until Init, SetRate or Program.
func New(name string, cfg Config, regs RegisterBlock, opts ...Option) (*Device, error) {
	d := &Device{
		name: name,
		regs: regs,
		log:  slog.Default(),
	}
	d.seq = NewSequencer(regs, d.log)
	for _, opt := range opts {
		opt(d)
	}

	st, setFreq, err := cfg.validate(d.log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	d.st = st
	d.setFreq = setFreq

	return d, nil
}

// Hz converts a frequency in hertz for logging and display.
func Hz(f uint64) physic.Frequency {
	return physic.Frequency(f) * physic.Hertz
}

// Init fills in the frequency of outputs configured by divider only and
// builds the full register image from the configuration. When any output
// was given an explicit frequency, the precise output is compiled and the
// core programmed in software mode.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	vco := d.st.input.VCO()
	for i := range d.st.outputs {
		out := &d.st.outputs[i]
		if out.Frequency == 0 {
			out.Frequency = uint32(vco / uint64(out.Divide))
		}
	}

	p := d.st.precise()
	d.log.Info("precise output frequency",
		"device", d.name,
		"output", d.st.outputs[p].Name(),
		"frequency", Hz(vco/uint64(d.st.outputs[p].Divide)))

	d.st.encodeFeedback(&d.st.outputs[p])
	for i := range d.st.outputs {
		d.st.encodeOutput(i)
	}

	if !d.setFreq {
		return nil
	}

	if err := d.st.compile(p, d.st.outputs[p].Frequency); err != nil {
		d.log.Error("failed parameters calculation", "device", d.name, "error", err)
		return err
	}
	return d.seq.Program(&d.st.regs, true)
}

func (d *Device) output(id int) (*Output, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if id < 0 || id >= Outputs {
		return nil, fmt.Errorf("output %d: %w", id, ErrInvalidOutput)
	}
	return &d.st.outputs[id], nil
}

// RecalcRate returns output id with its current frequency. An output
// without a frequency takes VCO/divide. The feedback words and the
// output's counter pair are refreshed in the register image.
func (d *Device) RecalcRate(id int) (Output, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out, err := d.output(id)
	if err != nil {
		return Output{}, err
	}

	if out.Frequency == 0 {
		out.Frequency = uint32(d.st.input.VCO() / uint64(out.Divide))
	}

	d.st.encodeFeedback(out)
	d.st.encodeOutput(id)

	return *out, nil
}

// RoundRate returns the frequency output id would run at if rate were
// requested. The configuration is left as it was, whether or not the
// computation succeeds.
func (d *Device) RoundRate(id int, rate uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.output(id); err != nil {
		return 0, err
	}

	d.tx.save(&d.st)
	err := d.st.compile(id, rate)
	achieved := d.st.outputs[id].Frequency
	d.tx.restore(&d.st)

	if err != nil {
		d.log.Error("failed parameters calculation", "device", d.name, "output", id, "rate", rate, "error", err)
		return 0, err
	}
	return achieved, nil
}

// SetRate recompiles output id for rate, programs the core in software
// mode and returns the output as compiled. A failed compilation restores
// the previous configuration before anything is written. A lock timeout
// leaves the new image in hardware and still returns the compiled output.
func (d *Device) SetRate(id int, rate uint32) (Output, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out, err := d.output(id)
	if err != nil {
		return Output{}, err
	}

	if rate != out.Frequency {
		d.tx.save(&d.st)
		if err := d.st.compile(id, rate); err != nil {
			d.log.Error("failed parameters calculation", "device", d.name, "output", id, "rate", rate, "error", err)
			d.tx.restore(&d.st)
			return Output{}, err
		}
		d.tx.discard()
		d.log.Info("output rate changed",
			"device", d.name,
			"output", out.Name(),
			"requested", Hz(uint64(rate)),
			"achieved", Hz(uint64(out.Frequency)),
			"multiply", d.st.input.Multiply,
			"divide", d.st.input.Divide)
	}

	compiled := *out
	return compiled, d.seq.Program(&d.st.regs, true)
}

// Program writes the current register image (software) or latches the
// strapped configuration (hardware) and waits for lock.
func (d *Device) Program(software bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	return d.seq.Program(&d.st.regs, software)
}

// Locked reads the PLL lock bit.
func (d *Device) Locked() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false, ErrClosed
	}
	return d.seq.Locked()
}

// Close waits for the operation in progress, then closes the register
// block if it is an io.Closer. Later hardware operations fail with
// ErrClosed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if c, ok := d.regs.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.name
}

// Input returns a copy of the input configuration.
func (d *Device) Input() Input {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.st.input
}

// Outputs returns a copy of the output configurations.
func (d *Device) Outputs() [Outputs]Output {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.st.outputs
}

// Registers returns a copy of the manual register image.
func (d *Device) Registers() Registers {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.st.regs
}
