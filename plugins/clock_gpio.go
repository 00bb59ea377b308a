package plugins

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// LockLED drives a GPIO line that follows the PLL lock state
type LockLED struct {
	chip     *gpiocdev.Chip
	line     *gpiocdev.Line
	chipPath string
	offset   int
}

// NewLockLED requests offset on chipPath as an output, initially off
func NewLockLED(chipPath string, offset int) (*LockLED, error) {
	chip, err := gpiocdev.NewChip(chipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipPath, err)
	}

	line, err := chip.RequestLine(
		offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("logiclk-lock"),
	)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("failed to request lock line %d: %w", offset, err)
	}

	return &LockLED{
		chip:     chip,
		line:     line,
		chipPath: chipPath,
		offset:   offset,
	}, nil
}

// Set drives the line high when locked
func (l *LockLED) Set(locked bool) error {
	if l.line == nil {
		return fmt.Errorf("lock line not initialized")
	}

	value := 0
	if locked {
		value = 1
	}

	if err := l.line.SetValue(value); err != nil {
		return fmt.Errorf("failed to set lock line to %v: %w", locked, err)
	}
	return nil
}

// Close releases the line and the chip
func (l *LockLED) Close() error {
	var errs []error

	if l.line != nil {
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close lock line: %w", err))
		}
		l.line = nil
	}

	if l.chip != nil {
		if err := l.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close GPIO chip: %w", err))
		}
		l.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing GPIO: %v", errs)
	}
	return nil
}

// Info describes the line
func (l *LockLED) Info() string {
	if l.chip == nil {
		return fmt.Sprintf("GPIO: %s (closed)", l.chipPath)
	}
	return fmt.Sprintf("GPIO: %s (%s, %s), Lock Line: %d", l.chipPath, l.chip.Name, l.chip.Label, l.offset)
}
