package mmcm

import (
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func newTestSequencer(regs RegisterBlock) (*Sequencer, *int) {
	s := NewSequencer(regs, testLogger)
	sleeps := new(int)
	s.sleep = func(d time.Duration) {
		if d != LockPollInterval {
			panic("unexpected poll interval")
		}
		*sleeps++
	}
	return s, sleeps
}

func testImage() *Registers {
	var image Registers
	for i := range image {
		image[i] = uint32(0x100 + i)
	}
	return &image
}

func TestProgramLocksAfterPolls(t *testing.T) {
	for _, n := range []int{0, 1, 10, LockPollAttempts - 1} {
		sim := NewSimRegisters(n)
		s, sleeps := newTestSequencer(sim)

		assert.NilError(t, s.Program(testImage(), true), "lock after %d", n)
		assert.Equal(t, sim.StatusReads(), n+1)
		assert.Equal(t, *sleeps, n)
		assert.DeepEqual(t, sim.ControlWrites(), []uint32{ControlConfig | ControlConfigSW})
		assert.Equal(t, sim.Manual(), *testImage())
	}
}

func TestProgramTimeout(t *testing.T) {
	sim := NewSimRegisters(-1)
	s, sleeps := newTestSequencer(sim)

	err := s.Program(testImage(), true)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Equal(t, sim.StatusReads(), LockPollAttempts)
	assert.Equal(t, *sleeps, LockPollAttempts-1)
	assert.Equal(t, len(sim.ControlWrites()), 0)
	// registers are not rolled back
	assert.Equal(t, sim.Manual(), *testImage())
}

func TestProgramLockOnLastPoll(t *testing.T) {
	sim := NewSimRegisters(LockPollAttempts)
	s, _ := newTestSequencer(sim)

	err := s.Program(testImage(), false)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Equal(t, sim.StatusReads(), LockPollAttempts)
}

func TestProgramHardwareStrapped(t *testing.T) {
	sim := NewSimRegisters(0)
	s, _ := newTestSequencer(sim)

	assert.NilError(t, s.Program(testImage(), false))
	assert.DeepEqual(t, sim.ControlWrites(), []uint32{ControlConfig})
	assert.Equal(t, sim.Manual(), Registers{})
}

// failingRegisters fails every access after a number of successful writes.
type failingRegisters struct {
	writes int
	err    error
}

func (f *failingRegisters) ReadRegister(offset uint32) (uint32, error) {
	return 0, f.err
}

func (f *failingRegisters) WriteRegister(offset uint32, value uint32) error {
	if f.writes == 0 {
		return f.err
	}
	f.writes--
	return nil
}

func TestProgramBackendErrors(t *testing.T) {
	busErr := errors.New("bus error")

	s, _ := newTestSequencer(&failingRegisters{writes: 3, err: busErr})
	err := s.Program(testImage(), true)
	assert.ErrorIs(t, err, busErr)
	assert.ErrorContains(t, err, "manual register 3")

	s, _ = newTestSequencer(&failingRegisters{writes: ManualRegs, err: busErr})
	err = s.Program(testImage(), true)
	assert.ErrorIs(t, err, busErr)
	assert.Assert(t, !errors.Is(err, ErrLockTimeout))

	_, err = s.Locked()
	assert.ErrorIs(t, err, busErr)
}

func TestStackSaveRestore(t *testing.T) {
	var tx stack
	s := state{input: Input{Frequency: 1, Multiply: 2, Divide: 3}}
	s.regs[7] = 7

	assert.Assert(t, !tx.restore(&s), "restore without save")

	tx.save(&s)
	s.input.Multiply = 20
	s.regs[7] = 70
	s.outputs[4].Frequency = 4

	// a second save overwrites the first
	tx.save(&s)
	s.regs[7] = 700

	assert.Assert(t, tx.restore(&s))
	assert.Equal(t, s.input.Multiply, uint32(20))
	assert.Equal(t, s.regs[7], uint32(70))
	assert.Equal(t, s.outputs[4].Frequency, uint32(4))

	assert.Assert(t, !tx.restore(&s), "slot is emptied by restore")

	tx.save(&s)
	tx.discard()
	s.regs[7] = 1
	assert.Assert(t, !tx.restore(&s))
	assert.Equal(t, s.regs[7], uint32(1))
}
