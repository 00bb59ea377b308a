package mmcm

import "fmt"

// Input holds the input clock and the feedback path shared by all outputs.
type Input struct {
	Frequency     uint32 // Hz
	Multiply      uint32 // CLKFBOUT_MULT
	Phase         int32  // CLKFBOUT_PHASE, millidegrees
	Divide        uint32 // DIVCLK_DIVIDE
	BandwidthHigh bool
}

// VCO returns the VCO frequency in Hz.
func (in Input) VCO() uint64 {
	return uint64(in.Frequency) * uint64(in.Multiply) / uint64(in.Divide)
}

// Output holds the configuration of one of the six clock outputs.
type Output struct {
	ID        int
	Frequency uint32 // Hz, 0 when taken from Divide
	Divide    uint32 // CLKOUT_DIVIDE
	Duty      uint32 // thousandths of a percent
	Phase     int32  // millidegrees
	Precise   bool
}

// Name returns the clock name of the output.
func (o Output) Name() string {
	return fmt.Sprintf("clkout_%d", o.ID)
}

// state is everything a parameter compilation reads or writes.
type state struct {
	input   Input
	outputs [Outputs]Output
	regs    Registers
}

// compile sets output id to rate and recomputes its parameters. For the
// precise output the feedback path is searched again and every output is
// recompiled against it.
func (s *state) compile(id int, rate uint32) error {
	out := &s.outputs[id]
	out.Frequency = rate

	if out.Frequency < OutputFreqMin || out.Frequency > OutputFreqMax {
		return fmt.Errorf("%s: %d Hz: %w", out.Name(), out.Frequency, ErrInvalidFrequency)
	}

	if !out.Precise {
		s.encodeOutput(id)
		return nil
	}

	res, err := SearchInput(s.input.Frequency, out.Frequency)
	if err != nil {
		return fmt.Errorf("%s: %w", out.Name(), err)
	}
	s.input.Multiply = res.Multiply
	s.input.Divide = res.Divide

	s.encodeFeedback(out)
	for i := range s.outputs {
		s.encodeOutput(i)
	}
	return nil
}

// encodeFeedback fills the enable, input divider, feedback, lock and filter
// words. The divider counters take duty (and divclk the phase) from out.
func (s *state) encodeFeedback(out *Output) {
	in := &s.input

	clkfbout := uint64(EncodeCounter(in.Multiply, out.Duty, in.Phase))
	divclk := uint64(EncodeCounter(in.Divide, out.Duty, out.Phase))
	filter := uint64(Filter(in.Multiply-1, in.BandwidthHigh))
	lock := Lock(in.Multiply - 1)

	s.regs[ManEnable] = ManEnableMask

	s.regs[ManDivclk] = getBits(divclk, 23, 22)<<12 | getBits(divclk, 11, 0)
	s.regs[ManClkfboutLow] = getBits(clkfbout, 15, 0)
	s.regs[ManClkfboutHi] = getBits(clkfbout, 31, 16)
	s.regs[ManLock1] = getBits(lock, 29, 20)
	s.regs[ManLock2] = getBits(lock, 34, 30)<<10 | getBits(lock, 9, 0)
	s.regs[ManLock3] = getBits(lock, 39, 35)<<10 | getBits(lock, 19, 10)
	s.regs[ManFilter1] = getBits(filter, 6, 6)<<8 |
		getBits(filter, 8, 7)<<11 |
		getBits(filter, 9, 9)<<15
	s.regs[ManFilter2] = getBits(filter, 0, 0)<<4 |
		getBits(filter, 2, 1)<<7 |
		getBits(filter, 4, 3)<<11 |
		getBits(filter, 5, 5)<<15
}

// encodeOutput picks the output divider closest to the output frequency,
// writes its counter pair and stores the achieved frequency.
func (s *state) encodeOutput(id int) {
	out := &s.outputs[id]
	vco := s.input.VCO()

	out.Divide = SearchOutputDivide(vco, out.Frequency)

	counter := uint64(EncodeCounter(out.Divide, out.Duty, out.Phase))
	s.regs[ManOutputBase+id*2] = getBits(counter, 15, 0)
	s.regs[ManOutputBase+1+id*2] = getBits(counter, 31, 16)

	out.Frequency = uint32(vco / uint64(out.Divide))
}

// precise returns the index of the precise output.
func (s *state) precise() int {
	for i := range s.outputs {
		if s.outputs[i].Precise {
			return i
		}
	}
	return 0
}
