package mmcm

// Loop filter settings for high bandwidth, indexed by multiplier-1
var filterHigh = [FboutMultMax]uint16{
	0x17C, 0x3FC, 0x3F4, 0x3E4, 0x3F8, 0x3C4, 0x3C4, 0x3D8,
	0x3E8, 0x3E8, 0x3E8, 0x3B0, 0x3F0, 0x3F0, 0x3F0, 0x3F0,
	0x3F0, 0x3F0, 0x3F0, 0x3F0, 0x3B0, 0x3B0, 0x3B0, 0x3E8,
	0x370, 0x308, 0x370, 0x370, 0x3E8, 0x3E8, 0x3E8, 0x1C8,
	0x330, 0x330, 0x3A8, 0x188, 0x188, 0x188, 0x1F0, 0x188,
	0x110, 0x110, 0x110, 0x110, 0x110, 0x110, 0x0E0, 0x0E0,
	0x0E0, 0x0E0, 0x0E0, 0x0E0, 0x0E0, 0x0E0, 0x0E0, 0x0E0,
	0x0E0, 0x0E0, 0x0E0, 0x0E0, 0x0E0, 0x0E0, 0x0E0, 0x0E0,
}

// Loop filter settings for low bandwidth, indexed by multiplier-1
var filterLow = [FboutMultMax]uint16{
	0x5F, 0x57, 0x7B, 0x5B, 0x6B, 0x73, 0x73, 0x73,
	0x73, 0x4B, 0x4B, 0x4B, 0xB3, 0x53, 0x53, 0x53,
	0x53, 0x53, 0x53, 0x53, 0x53, 0x53, 0x53, 0x63,
	0x63, 0x63, 0x63, 0x63, 0x63, 0x63, 0x63, 0x63,
	0x63, 0x63, 0x63, 0x63, 0x63, 0x93, 0x93, 0x93,
	0x93, 0x93, 0x93, 0x93, 0x93, 0x93, 0x93, 0xA3,
	0xA3, 0xA3, 0xA3, 0xA3, 0xA3, 0xA3, 0xA3, 0xA3,
	0xA3, 0xA3, 0xA3, 0xA3, 0xA3, 0xA3, 0xA3, 0xA3,
}

// Lock detector settings (40 bits), indexed by multiplier-1
var lockTable = [FboutMultMax]uint64{
	0x31BE8FA401, 0x31BE8FA401, 0x423E8FA401, 0x5AFE8FA401,
	0x73BE8FA401, 0x8C7E8FA401, 0x9CFE8FA401, 0xB5BE8FA401,
	0xCE7E8FA401, 0xE73E8FA401, 0xFFF84FA401, 0xFFF39FA401,
	0xFFEEEFA401, 0xFFEBCFA401, 0xFFE8AFA401, 0xFFE71FA401,
	0xFFE3FFA401, 0xFFE26FA401, 0xFFE0DFA401, 0xFFDF4FA401,
	0xFFDDBFA401, 0xFFDC2FA401, 0xFFDA9FA401, 0xFFD90FA401,
	0xFFD90FA401, 0xFFD77FA401, 0xFFD5EFA401, 0xFFD5EFA401,
	0xFFD45FA401, 0xFFD45FA401, 0xFFD2CFA401, 0xFFD2CFA401,
	0xFFD2CFA401, 0xFFD13FA401, 0xFFD13FA401, 0xFFD13FA401,
	0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401,
	0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401,
	0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401,
	0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401,
	0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401,
	0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401,
	0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401, 0xFFCFAFA401,
}

// Filter returns the loop filter bits for index mult-1. The index must be
// below FboutMultMax.
func Filter(multMinusOne uint32, bandwidthHigh bool) uint32 {
	if bandwidthHigh {
		return uint32(filterHigh[multMinusOne])
	}
	return uint32(filterLow[multMinusOne])
}

// Lock returns the lock detector bits for index mult-1.
func Lock(multMinusOne uint32) uint64 {
	return lockTable[multMinusOne]
}
