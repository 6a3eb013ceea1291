package utils

import (
	"bytes"
	"image"
	"image/png"
)

const EmptyTileNS = "EmptyTile"

// GetEmptyTile returns a fully transparent PNG of the
// requested size. It is served whenever the catalog has
// no data intersecting the requested bounding box.
func GetEmptyTile(height, width int) ([]byte, error) {
	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))

	buf := new(bytes.Buffer)
	err := png.Encode(buf, canvas)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), err
}
