package mmcm

import "errors"

// logiCLK register block layout (byte offsets, 32-bit words)
const (
	RegStride     = 4 // Bytes per register word
	RegPLLWord    = 1 // PLL status (read) / control (write) word
	RegManualWord = 3 // First manual configuration word

	ManualRegs = 21 // Words in the manual register image

	StatusOffset  = RegPLLWord * RegStride // Lock status register
	ControlOffset = RegPLLWord * RegStride // Configuration control register
)

// PLL status and control bits
const (
	StatusLock = 1 << 0 // PLL locked

	ControlConfig   = 1 << 0 // Latch configuration
	ControlConfigSW = 1 << 1 // Select software (manual register) configuration
)

// Manual register image words
const (
	ManEnable      = 0  // Static enable mask
	ManOutputBase  = 1  // First output counter pair, output N at 1+2N and 2+2N
	ManDivclk      = 13 // Input divider counter
	ManClkfboutLow = 14 // Feedback counter bits 15:0
	ManClkfboutHi  = 15 // Feedback counter bits 31:16
	ManLock1       = 16 // Lock bits 29:20
	ManLock2       = 17 // Lock bits 34:30 and 9:0
	ManLock3       = 18 // Lock bits 39:35 and 19:10
	ManFilter1     = 19 // Loop filter bits 9:6
	ManFilter2     = 20 // Loop filter bits 5:0

	ManEnableMask = 0xFFFF
)

// 7 series MMCM limits
const (
	InputFreqMin  = 10000000  // Hz
	InputFreqMax  = 800000000 // Hz
	OutputFreqMin = 4690000   // Hz
	OutputFreqMax = 800000000 // Hz
	VCOFreqMin    = 600000000
	VCOFreqMax    = 1600000000

	PhaseMin = -360000 // millidegrees
	PhaseMax = 360000  // millidegrees

	ClkoutDivideMin = 1
	ClkoutDivideMax = 128
	ClkoutDutyMin   = 100   // 0.1 %
	ClkoutDutyMax   = 99900 // 99.9 %
	DivclkDivideMin = 1
	DivclkDivideMax = 56
	FboutMultMin    = 2
	FboutMultMax    = 64

	Outputs = 6
)

// Errors
var (
	ErrInvalidFrequency  = errors.New("invalid output frequency")
	ErrInvalidParameters = errors.New("no multiplier/divider satisfies the VCO range")
	ErrLockTimeout       = errors.New("PLL failed to lock")
	ErrInvalidOutput     = errors.New("invalid output id")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrClosed            = errors.New("register block closed")
)

// RegisterBlock is a 32-bit register window of one logiCLK core.
// Offsets are in bytes from the start of the window.
type RegisterBlock interface {
	ReadRegister(offset uint32) (uint32, error)
	WriteRegister(offset uint32, value uint32) error
}

// Registers is the manual register image latched by the core in software mode.
type Registers [ManualRegs]uint32
