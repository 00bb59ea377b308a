package mmcm

import "math"

// InputSearchResult is the best feedback multiplier / input divider found
// for a target output frequency.
type InputSearchResult struct {
	Multiply     uint32
	Divide       uint32
	OutputDivide uint32
	Frequency    uint64 // achieved output frequency
	Error        uint64 // absolute error from the target
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// SearchInput scans every input divider, feedback multiplier and output
// divider for the combination closest to target whose VCO lies in
// [VCOFreqMin, VCOFreqMax]. Ties keep the first candidate found, in the
// order divider, multiplier, output divider. An exact match returns at once.
func SearchInput(inputFreq, target uint32) (InputSearchResult, error) {
	var best InputSearchResult
	bestErr := uint64(math.MaxUint64)

	for div := uint32(DivclkDivideMin); div <= DivclkDivideMax; div++ {
		for mult := uint32(FboutMultMin); mult <= FboutMultMax; mult++ {
			vco := uint64(inputFreq) * uint64(mult) / uint64(div)
			if vco < VCOFreqMin || vco > VCOFreqMax {
				continue
			}

			for out := uint32(ClkoutDivideMin); out <= ClkoutDivideMax; out++ {
				freq := vco / uint64(out)
				freqErr := absDiff(freq, uint64(target))
				if freqErr >= bestErr {
					continue
				}

				best = InputSearchResult{
					Multiply:     mult,
					Divide:       div,
					OutputDivide: out,
					Frequency:    freq,
					Error:        freqErr,
				}
				if freqErr == 0 {
					return best, nil
				}
				bestErr = freqErr
			}
		}
	}

	if best.Multiply == 0 || best.Divide == 0 {
		return InputSearchResult{}, ErrInvalidParameters
	}
	return best, nil
}

// SearchOutputDivide returns the output divider whose output frequency,
// derived from vco, is closest to target. Ties keep the smallest divider.
func SearchOutputDivide(vco uint64, target uint32) uint32 {
	var best uint32
	bestErr := uint64(math.MaxUint64)

	for out := uint32(ClkoutDivideMin); out <= ClkoutDivideMax; out++ {
		freqErr := absDiff(vco/uint64(out), uint64(target))
		if freqErr < bestErr {
			best = out
			if freqErr == 0 {
				return best
			}
			bestErr = freqErr
		}
	}

	return best
}
