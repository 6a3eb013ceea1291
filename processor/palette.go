package processor

import (
	"fmt"
	"image/color"

	"github.com/balintalfoldy/lcs/utils"
)

// InterpolateUint8 interpolates the value of a
// byte between two numbers 'a' and 'b' by
// especifying a length and a position 'i'
// along that length.
func InterpolateUint8(a, b uint8, i, sectionLength int) uint8 {
	return a + uint8((i * (int(b) - int(a)) / sectionLength))
}

// InterpolateColor returns an RGBA color where
// the R, G, B, and A components have been
// interpolated from the 'a' and 'b' colors
func InterpolateColor(a, b color.RGBA, i, sectionLength int) color.RGBA {
	return color.RGBA{InterpolateUint8(a.R, b.R, i, sectionLength),
		InterpolateUint8(a.G, b.G, i, sectionLength),
		InterpolateUint8(a.B, b.B, i, sectionLength),
		255}
}

// GradientRGBAPalette returns a palette of 256 colours
// from the colours configured for a layer, either as a
// continuous interpolated ramp or as discrete bins.
func GradientRGBAPalette(palette *utils.Palette) ([]color.RGBA, error) {
	if palette == nil {
		return nil, nil
	}

	if len(palette.Colours) < 2 {
		return nil, fmt.Errorf("palette must contain at least 2 colours")
	}

	ramp := make([]color.RGBA, 256)

	if palette.Interpolate {
		bins := len(palette.Colours) - 1
		sectionLength := 256 / bins
		bonus := 256 - (sectionLength * bins)
		bonusArr := make([]int, bins)
		for i := 0; i < bonus; i++ {
			bonusArr[i] = 1
		}

		index := 0
		for section, upperColour := range palette.Colours[1:] {
			for i := 0; i < sectionLength+bonusArr[section]; i++ {
				ramp[index] = InterpolateColor(palette.Colours[section], upperColour, i, sectionLength)
				index++
			}
		}
	} else {
		bins := len(palette.Colours)
		sectionLength := 256 / bins
		bonus := 256 - (sectionLength * bins)
		bonusArr := make([]int, bins)
		for i := 0; i < bonus; i++ {
			bonusArr[i] = 1
		}

		index := 0
		for section, colour := range palette.Colours {
			for i := 0; i < sectionLength+bonusArr[section]; i++ {
				ramp[index] = colour
				index++
			}
		}
	}

	return ramp, nil
}

// NormalizeTable scales a colour table of 8 bit channel
// values into float triplets on the unit range, preserving
// order and relative magnitude.
func NormalizeTable(table []color.RGBA) [][3]float64 {
	norm := make([][3]float64, len(table))
	for i, c := range table {
		norm[i] = [3]float64{float64(c.R) / 255.0, float64(c.G) / 255.0, float64(c.B) / 255.0}
	}
	return norm
}

// LookupClass resolves a class value against a colour table
// with nearest neighbour semantics: a pixel either displays
// the exact table entry for its class or opaque black when
// the value lies past the defined entries. Colours are never
// blended across table boundaries.
func LookupClass(table []color.RGBA, value int) color.RGBA {
	if value < 0 || value >= len(table) {
		return color.RGBA{0, 0, 0, 255}
	}
	return table[value]
}
