package processor

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutsideExtent reports a bounding box that does not
// intersect the raster extent at all. Partial overlaps are
// clipped to the intersection instead.
var ErrOutsideExtent = errors.New("bounding box does not intersect the raster extent")

// Window is a rectangular pixel region of a raster, offsets
// from the top-left corner.
type Window struct {
	OffX, OffY    int
	Width, Height int
}

// ComputeWindow maps a geographic bounding box onto the pixel
// grid described by a 6 parameter affine geotransform
// [originX, xRes, 0, originY, 0, yRes] with yRes negative for
// north-up rasters. The window is clipped to the raster extent;
// an empty intersection is an error rather than an empty read.
func ComputeWindow(geot []float64, rasterXSize, rasterYSize int, bbox []float64) (Window, error) {
	if len(geot) != 6 {
		return Window{}, fmt.Errorf("geotransform must contain 6 values, got %d", len(geot))
	}
	if len(bbox) != 4 {
		return Window{}, fmt.Errorf("bbox must contain 4 values, got %d", len(bbox))
	}
	if geot[1] == 0 || geot[5] == 0 {
		return Window{}, fmt.Errorf("degenerate geotransform: zero pixel size")
	}
	if geot[2] != 0 || geot[4] != 0 {
		return Window{}, fmt.Errorf("rotated geotransforms are not supported")
	}

	// bbox is west, south, east, north. Columns grow eastwards,
	// rows grow southwards for a negative yRes.
	col0 := (bbox[0] - geot[0]) / geot[1]
	col1 := (bbox[2] - geot[0]) / geot[1]
	row0 := (bbox[3] - geot[3]) / geot[5]
	row1 := (bbox[1] - geot[3]) / geot[5]

	if col1 < col0 {
		col0, col1 = col1, col0
	}
	if row1 < row0 {
		row0, row1 = row1, row0
	}

	offX := int(math.Floor(col0))
	offY := int(math.Floor(row0))
	endX := int(math.Ceil(col1))
	endY := int(math.Ceil(row1))

	if offX < 0 {
		offX = 0
	}
	if offY < 0 {
		offY = 0
	}
	if endX > rasterXSize {
		endX = rasterXSize
	}
	if endY > rasterYSize {
		endY = rasterYSize
	}

	if endX-offX <= 0 || endY-offY <= 0 {
		return Window{}, ErrOutsideExtent
	}

	return Window{OffX: offX, OffY: offY, Width: endX - offX, Height: endY - offY}, nil
}

// WindowBBox is the inverse mapping: the geographic bounding
// box covered by a pixel window, west, south, east, north.
func WindowBBox(geot []float64, win Window) []float64 {
	west := geot[0] + float64(win.OffX)*geot[1]
	east := geot[0] + float64(win.OffX+win.Width)*geot[1]
	north := geot[3] + float64(win.OffY)*geot[5]
	south := geot[3] + float64(win.OffY+win.Height)*geot[5]
	return []float64{west, south, east, north}
}
