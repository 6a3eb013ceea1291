package utils

import (
	"bytes"
	"image/png"
	"testing"
)

func TestGetEmptyTile(t *testing.T) {
	out, err := GetEmptyTile(256, 512)
	if err != nil {
		t.Errorf("failed to build empty tile: %v", err)
		return
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Errorf("failed to decode empty tile: %v", err)
		return
	}

	bounds := img.Bounds()
	if bounds.Dx() != 512 || bounds.Dy() != 256 {
		t.Errorf("unexpected empty tile size: %dx%d", bounds.Dx(), bounds.Dy())
		return
	}

	_, _, _, a := img.At(0, 0).RGBA()
	if a != 0 {
		t.Errorf("empty tile is not transparent: alpha %v", a)
	}
}
