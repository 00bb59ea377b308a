package mmcm

// Fixed-point precision of the duty and phase fractions
const fractionPrecision = 10

// getBits returns bits msb..lsb (inclusive) of v.
func getBits(v uint64, msb, lsb uint) uint32 {
	return uint32((v >> lsb) & ((1 << (msb - lsb + 1)) - 1))
}

// roundFraction rounds a fixed-point value to precision fractional bits
// by adding back the bit just below that precision.
func roundFraction(v uint32, precision uint) uint32 {
	prec := uint32(1) << (fractionPrecision - precision - 1)
	if v&prec != 0 {
		return v + prec
	}
	return v
}

// encodeDivideDuty packs the high/low time counter for divide and duty
// (thousandths of a percent). Layout: low 5:0, high 11:6, no count 12, edge 13.
//
// A high time that rounds to 0 or to divide is clamped, which shifts the
// resulting duty cycle away from the requested one.
func encodeDivideDuty(divide, duty uint32) uint32 {
	var edge, highTime, lowTime, noCount uint32

	if divide == 1 {
		edge = 0
		highTime = 1
		lowTime = 1
		noCount = 1
	} else {
		dutyFix := (duty << fractionPrecision) / 100000
		temp := uint64(roundFraction(dutyFix*divide, 1))

		edge = getBits(temp, fractionPrecision-1, fractionPrecision-1)
		highTime = getBits(temp, fractionPrecision+6, fractionPrecision)

		if highTime == 0 {
			edge = 0
			highTime = 1
		}
		if highTime == divide {
			edge = 1
			highTime = divide - 1
		}
		lowTime = divide - highTime
		noCount = 0
	}

	return (lowTime & 0x3F) |
		((highTime & 0x3F) << 6) |
		((noCount & 0x1) << 12) |
		((edge & 0x1) << 13)
}

// encodePhase packs the phase (millidegrees) of a counter dividing by divide.
// Layout: delay time 5:0, phase mux 8:6.
func encodePhase(divide uint32, phase int32) uint32 {
	var phaseFixed uint32
	if phase < 0 {
		phaseFixed = uint32((phase+PhaseMax)<<fractionPrecision) / 1000
	} else {
		phaseFixed = uint32(phase<<fractionPrecision) / 1000
	}

	phaseCycles := (phaseFixed * divide) / (PhaseMax / 1000)
	temp := uint64(roundFraction(phaseCycles, 3))

	delayTime := getBits(temp, fractionPrecision+5, fractionPrecision)
	phaseMux := getBits(temp, fractionPrecision-1, fractionPrecision-3)

	return (delayTime & 0x3F) | ((phaseMux & 0x7) << 6)
}

// EncodeCounter returns the 26-bit counter word for the given divide,
// duty and phase, in the layout the core latches as two 16-bit halves.
func EncodeCounter(divide, duty uint32, phase int32) uint32 {
	div := uint64(encodeDivideDuty(divide, duty))
	ph := uint64(encodePhase(divide, phase))

	return getBits(div, 11, 0) |
		getBits(ph, 8, 6)<<13 |
		getBits(ph, 5, 0)<<16 |
		getBits(div, 13, 12)<<22 |
		getBits(ph, 10, 9)<<24
}
