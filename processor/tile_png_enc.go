package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"

	"github.com/balintalfoldy/lcs/utils"
)

// PNGEncoder renders the merged canvas to PNG. With a colour
// table or configured palette present the canvas is rendered
// as a discrete colour map with nearest neighbour lookup; in
// grey scale mode pixel values are drawn on a continuous
// grey ramp instead.
type PNGEncoder struct {
	In    chan *FlexRaster
	Out   chan []byte
	Error chan error
}

func NewPNGEncoder(errChan chan error) *PNGEncoder {
	return &PNGEncoder{
		In:    make(chan *FlexRaster, 100),
		Out:   make(chan []byte, 100),
		Error: errChan,
	}
}

func (enc *PNGEncoder) Run(width, height int, verbose bool) {
	if verbose {
		defer log.Printf("png encoder done")
	}
	defer close(enc.Out)

	var canvas *FlexRaster
	for raster := range enc.In {
		canvas = raster
	}

	if canvas == nil {
		empty, err := utils.GetEmptyTile(height, width)
		if err != nil {
			enc.Error <- err
			return
		}
		enc.Out <- empty
		return
	}

	// a canvas built purely from empty granules carries no
	// colour table; it still has to render as the empty tile
	if !canvas.GreyScale && canvas.ColourTable == nil && canvas.Palette == nil && allNoData(canvas) {
		empty, err := utils.GetEmptyTile(height, width)
		if err != nil {
			enc.Error <- err
			return
		}
		enc.Out <- empty
		return
	}

	var out []byte
	var err error
	if canvas.GreyScale {
		out, err = EncodeGreyPNG(canvas)
	} else {
		out, err = EncodeColourPNG(canvas)
	}
	if err != nil {
		enc.Error <- err
		return
	}
	enc.Out <- out
}

// EncodeGreyPNG renders the raster without a colour map:
// byte classes map straight onto the grey ramp, wider types
// are stretched linearly between their observed extremes.
func EncodeGreyPNG(canvas *FlexRaster) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, canvas.Width, canvas.Height))

	switch canvas.Type {
	case "Byte":
		copy(img.Pix, canvas.Data)
	case "UInt16":
		stretchGrey(img.Pix, uint16View(canvas.Data), uint16(canvas.NoData))
	case "Int16":
		stretchGrey(img.Pix, int16View(canvas.Data), int16(canvas.NoData))
	case "Float32":
		stretchGrey(img.Pix, float32View(canvas.Data), float32(canvas.NoData))
	default:
		return nil, fmt.Errorf("Raster type %s not implemented", canvas.Type)
	}

	buf := new(bytes.Buffer)
	err := png.Encode(buf, img)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeColourPNG renders the raster through its embedded
// colour table, falling back to the configured layer palette.
// Every emitted colour is an exact entry of the table; values
// past the end of the table render opaque black and nodata
// renders transparent.
func EncodeColourPNG(canvas *FlexRaster) ([]byte, error) {
	if canvas.Type != "Byte" {
		return nil, fmt.Errorf("colour table rendering requires Byte rasters, got %s", canvas.Type)
	}

	table := canvas.ColourTable
	if table == nil {
		var err error
		table, err = GradientRGBAPalette(canvas.Palette)
		if err != nil {
			return nil, err
		}
	}
	if table == nil {
		return nil, fmt.Errorf("raster carries no colour table and no palette is configured")
	}

	nodata := uint8(canvas.NoData)
	img := image.NewRGBA(image.Rect(0, 0, canvas.Width, canvas.Height))
	for i, val := range canvas.Data {
		if val == nodata {
			continue
		}
		c := LookupClass(table, int(val))
		img.Pix[i*4] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = 0xFF
	}

	buf := new(bytes.Buffer)
	err := png.Encode(buf, img)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func allNoData(canvas *FlexRaster) bool {
	switch canvas.Type {
	case "Byte":
		nodata := uint8(canvas.NoData)
		for _, v := range canvas.Data {
			if v != nodata {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func stretchGrey(pix []uint8, data interface{}, nodata interface{}) {
	switch d := data.(type) {
	case []uint16:
		nd := nodata.(uint16)
		min, max := uint16(math.MaxUint16), uint16(0)
		for _, v := range d {
			if v == nd {
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		if max <= min {
			return
		}
		for i, v := range d {
			if v != nd {
				pix[i] = uint8(float64(v-min) * 255.0 / float64(max-min))
			}
		}
	case []int16:
		nd := nodata.(int16)
		min, max := int16(math.MaxInt16), int16(math.MinInt16)
		for _, v := range d {
			if v == nd {
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		if max <= min {
			return
		}
		for i, v := range d {
			if v != nd {
				pix[i] = uint8(float64(v-min) * 255.0 / float64(max-min))
			}
		}
	case []float32:
		nd := nodata.(float32)
		min, max := float32(math.MaxFloat32), float32(-math.MaxFloat32)
		for _, v := range d {
			if v == nd {
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		if max <= min {
			return
		}
		for i, v := range d {
			if v != nd {
				pix[i] = uint8(float64(v-min) * 255.0 / float64(max-min))
			}
		}
	}
}
