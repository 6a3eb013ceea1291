package processor

import (
	"fmt"
	"log"
	"reflect"
	"sort"
	"unsafe"
)

// RasterMerger composes the granule windows read for one
// request onto a single canvas. Granules are applied oldest
// first so the most recent acquisition wins wherever two
// items overlap; nodata pixels never overwrite data.
type RasterMerger struct {
	In    chan *FlexRaster
	Out   chan *FlexRaster
	Error chan error
}

func NewRasterMerger(errChan chan error) *RasterMerger {
	return &RasterMerger{
		In:    make(chan *FlexRaster, 100),
		Out:   make(chan *FlexRaster, 100),
		Error: errChan,
	}
}

func typeSize(rType string) (int, error) {
	switch rType {
	case "Byte":
		return 1, nil
	case "UInt16":
		return SizeofUint16, nil
	case "Int16":
		return SizeofInt16, nil
	case "Float32":
		return SizeofFloat32, nil
	default:
		return 0, fmt.Errorf("Raster type %s not implemented", rType)
	}
}

func newCanvas(template *FlexRaster, width, height int) (*FlexRaster, error) {
	tSize, err := typeSize(template.Type)
	if err != nil {
		return nil, err
	}

	canvas := &FlexRaster{
		ConfigPayLoad: template.ConfigPayLoad,
		Data:          make([]byte, width*height*tSize),
		Height:        height,
		Width:         width,
		Type:          template.Type,
		NoData:        template.NoData,
		ColourTable:   template.ColourTable,
	}
	fillNoData(canvas)
	return canvas, nil
}

func fillNoData(canvas *FlexRaster) {
	switch canvas.Type {
	case "Byte":
		fill := uint8(canvas.NoData)
		for i := range canvas.Data {
			canvas.Data[i] = fill
		}
	case "UInt16":
		data := uint16View(canvas.Data)
		fill := uint16(canvas.NoData)
		for i := range data {
			data[i] = fill
		}
	case "Int16":
		data := int16View(canvas.Data)
		fill := int16(canvas.NoData)
		for i := range data {
			data[i] = fill
		}
	case "Float32":
		data := float32View(canvas.Data)
		fill := float32(canvas.NoData)
		for i := range data {
			data[i] = fill
		}
	}
}

func uint16View(b []byte) []uint16 {
	headr := *(*reflect.SliceHeader)(unsafe.Pointer(&b))
	headr.Len /= SizeofUint16
	headr.Cap /= SizeofUint16
	return *(*[]uint16)(unsafe.Pointer(&headr))
}

func int16View(b []byte) []int16 {
	headr := *(*reflect.SliceHeader)(unsafe.Pointer(&b))
	headr.Len /= SizeofInt16
	headr.Cap /= SizeofInt16
	return *(*[]int16)(unsafe.Pointer(&headr))
}

func float32View(b []byte) []float32 {
	headr := *(*reflect.SliceHeader)(unsafe.Pointer(&b))
	headr.Len /= SizeofFloat32
	headr.Cap /= SizeofFloat32
	return *(*[]float32)(unsafe.Pointer(&headr))
}

func mergeGranule(canvas, r *FlexRaster) error {
	if r.Type != canvas.Type {
		return fmt.Errorf("Inconsistent raster types on one canvas: %s vs %s", canvas.Type, r.Type)
	}

	switch r.Type {
	case "Byte":
		nodata := uint8(r.NoData)
		for y := 0; y < r.Height; y++ {
			srcOff := y * r.Width
			dstOff := (r.OffY+y)*canvas.Width + r.OffX
			for x := 0; x < r.Width; x++ {
				if val := r.Data[srcOff+x]; val != nodata {
					canvas.Data[dstOff+x] = val
				}
			}
		}
	case "UInt16":
		data := uint16View(r.Data)
		dst := uint16View(canvas.Data)
		nodata := uint16(r.NoData)
		for y := 0; y < r.Height; y++ {
			srcOff := y * r.Width
			dstOff := (r.OffY+y)*canvas.Width + r.OffX
			for x := 0; x < r.Width; x++ {
				if val := data[srcOff+x]; val != nodata {
					dst[dstOff+x] = val
				}
			}
		}
	case "Int16":
		data := int16View(r.Data)
		dst := int16View(canvas.Data)
		nodata := int16(r.NoData)
		for y := 0; y < r.Height; y++ {
			srcOff := y * r.Width
			dstOff := (r.OffY+y)*canvas.Width + r.OffX
			for x := 0; x < r.Width; x++ {
				if val := data[srcOff+x]; val != nodata {
					dst[dstOff+x] = val
				}
			}
		}
	case "Float32":
		data := float32View(r.Data)
		dst := float32View(canvas.Data)
		nodata := float32(r.NoData)
		for y := 0; y < r.Height; y++ {
			srcOff := y * r.Width
			dstOff := (r.OffY+y)*canvas.Width + r.OffX
			for x := 0; x < r.Width; x++ {
				if val := data[srcOff+x]; val != nodata {
					dst[dstOff+x] = val
				}
			}
		}
	}
	return nil
}

func (m *RasterMerger) Run(width, height int, verbose bool) {
	if verbose {
		defer log.Printf("raster merger done")
	}
	defer close(m.Out)

	var rasters []*FlexRaster
	for r := range m.In {
		if r.OffX+r.Width > width || r.OffY+r.Height > height {
			m.Error <- fmt.Errorf("granule window (%d,%d %dx%d) exceeds canvas %dx%d", r.OffX, r.OffY, r.Width, r.Height, width, height)
			return
		}
		rasters = append(rasters, r)
	}

	if len(rasters) == 0 {
		return
	}

	sort.SliceStable(rasters, func(i, j int) bool {
		return rasters[i].TimeStamp.Before(rasters[j].TimeStamp)
	})

	// Any granule carrying an embedded colour table seeds the
	// canvas so the table survives merging with empty tiles.
	template := rasters[0]
	for _, r := range rasters {
		if r.ColourTable != nil {
			template = r
			break
		}
	}

	canvas, err := newCanvas(template, width, height)
	if err != nil {
		m.Error <- err
		return
	}

	for _, r := range rasters {
		err := mergeGranule(canvas, r)
		if err != nil {
			m.Error <- err
			return
		}
	}

	m.Out <- canvas
}
