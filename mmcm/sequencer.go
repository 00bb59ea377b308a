package mmcm

import (
	"fmt"
	"log/slog"
	"time"
)

// Lock polling
const (
	LockPollInterval = 1 * time.Millisecond
	LockPollAttempts = 50
)

// Sequencer writes a register image to the core and waits for the PLL to
// lock. Only one sequencer may drive a register block at a time.
type Sequencer struct {
	regs     RegisterBlock
	log      *slog.Logger
	interval time.Duration
	attempts int
	sleep    func(time.Duration)
}

// NewSequencer creates a sequencer using the default lock polling budget.
func NewSequencer(regs RegisterBlock, log *slog.Logger) *Sequencer {
	if log == nil {
		log = slog.Default()
	}
	return &Sequencer{
		regs:     regs,
		log:      log,
		interval: LockPollInterval,
		attempts: LockPollAttempts,
		sleep:    time.Sleep,
	}
}

// Program configures the core. In software mode the manual register image
// is written first and the core is switched to it; otherwise the strapped
// configuration is latched. The control word is written once the PLL
// reports lock.
//
// On ErrLockTimeout the registers stay written; nothing is rolled back.
func (s *Sequencer) Program(image *Registers, software bool) error {
	cfg := uint32(ControlConfig)

	if software {
		for i, v := range image {
			off := uint32(i+RegManualWord) * RegStride
			if err := s.regs.WriteRegister(off, v); err != nil {
				return fmt.Errorf("failed to write manual register %d: %w", i, err)
			}
		}
		cfg |= ControlConfigSW
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		val, err := s.regs.ReadRegister(StatusOffset)
		if err != nil {
			return fmt.Errorf("failed to read PLL status: %w", err)
		}
		if val&StatusLock != 0 {
			if err := s.regs.WriteRegister(ControlOffset, cfg); err != nil {
				return fmt.Errorf("failed to write PLL control: %w", err)
			}
			s.log.Debug("PLL locked", "polls", attempt, "software", software)
			return nil
		}
		if attempt < s.attempts {
			s.sleep(s.interval)
		}
	}

	s.log.Error("failed pll lock", "polls", s.attempts)
	return fmt.Errorf("after %d polls: %w", s.attempts, ErrLockTimeout)
}

// Locked reads the PLL lock bit.
func (s *Sequencer) Locked() (bool, error) {
	val, err := s.regs.ReadRegister(StatusOffset)
	if err != nil {
		return false, fmt.Errorf("failed to read PLL status: %w", err)
	}
	return val&StatusLock != 0, nil
}
