package pixel

// Gamma tables map a 5-bit perceptual brightness to a duty code. Entry 0 is
// DutyOff; codes then fall as brightness rises because the drive encoding is
// inverted. The curve was tuned by eye on real tiles so that equal
// perceptual steps look equal.
//
// The three channels currently share the same curve. They stay as separate
// tables because the red, green and blue diodes have different efficiencies
// and will want per-channel calibration.
//
// TODO: measure per-channel luminance and split the curves.

var gammaR = [32]uint8{
	255, 254, 253, 251, 250, 248, 245, 242,
	238, 234, 230, 224, 218, 211, 204, 195,
	186, 176, 165, 153, 140, 126, 111, 95,
	78, 59, 40, 19, 13, 9, 3, 1,
}

var gammaG = [32]uint8{
	255, 254, 253, 251, 250, 248, 245, 242,
	238, 234, 230, 224, 218, 211, 204, 195,
	186, 176, 165, 153, 140, 126, 111, 95,
	78, 59, 40, 19, 13, 9, 3, 1,
}

var gammaB = [32]uint8{
	255, 254, 253, 251, 250, 248, 245, 242,
	238, 234, 230, 224, 218, 211, 204, 195,
	186, 176, 165, 153, 140, 126, 111, 95,
	78, 59, 40, 19, 13, 9, 3, 1,
}

// MapColor applies the gamma tables to a perceptual color. Exported for
// callers that interpolate in duty space, such as fades.
func MapColor(c Color) Slot {
	return Slot{
		R: gammaR[c.R&0x1F],
		G: gammaG[c.G&0x1F],
		B: gammaB[c.B&0x1F],
	}
}
