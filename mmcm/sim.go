package mmcm

import "sync"

// SimRegisters is an in-memory register block. The lock bit reads as set
// once LockAfter status reads have returned it clear; a negative LockAfter
// never locks.
type SimRegisters struct {
	mu sync.Mutex

	LockAfter int

	words         map[uint32]uint32
	statusReads   int
	controlWrites []uint32
}

// NewSimRegisters returns a block that locks after lockAfter status reads.
func NewSimRegisters(lockAfter int) *SimRegisters {
	return &SimRegisters{
		LockAfter: lockAfter,
		words:     make(map[uint32]uint32),
	}
}

// ReadRegister implements RegisterBlock.
func (r *SimRegisters) ReadRegister(offset uint32) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if offset == StatusOffset {
		r.statusReads++
		if r.LockAfter >= 0 && r.statusReads > r.LockAfter {
			return StatusLock, nil
		}
		return 0, nil
	}
	return r.words[offset], nil
}

// WriteRegister implements RegisterBlock. Control writes are recorded
// separately and do not change the status word.
func (r *SimRegisters) WriteRegister(offset uint32, value uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if offset == ControlOffset {
		r.controlWrites = append(r.controlWrites, value)
		return nil
	}
	r.words[offset] = value
	return nil
}

// Manual returns the manual register words as last written.
func (r *SimRegisters) Manual() Registers {
	r.mu.Lock()
	defer r.mu.Unlock()

	var regs Registers
	for i := range regs {
		regs[i] = r.words[uint32(i+RegManualWord)*RegStride]
	}
	return regs
}

// StatusReads returns the number of status register reads so far.
func (r *SimRegisters) StatusReads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusReads
}

// ControlWrites returns the control words written so far.
func (r *SimRegisters) ControlWrites() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint32(nil), r.controlWrites...)
}

// Reset clears the poll and control history.
func (r *SimRegisters) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusReads = 0
	r.controlWrites = nil
}
