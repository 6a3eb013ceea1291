package processor

import (
	"testing"
)

func TestParseClassFilter(t *testing.T) {
	expr, err := ParseClassFilter("")
	if expr != nil || err != nil {
		t.Errorf("empty filter should compile to nothing, got %v, %v", expr, err)
		return
	}

	expr, err = ParseClassFilter("class == 10 || class == 80")
	if err != nil {
		t.Errorf("failed to parse class filter: %v", err)
		return
	}
	if expr == nil {
		t.Errorf("expected a compiled expression")
		return
	}

	_, err = ParseClassFilter("band == 10")
	if err == nil {
		t.Errorf("expected error for unsupported variable")
	}
}

func TestApplyClassFilter(t *testing.T) {
	raster := &FlexRaster{
		Data:   []uint8{10, 20, 80, 0, 95},
		Width:  5,
		Height: 1,
		Type:   "Byte",
		NoData: 0,
	}

	err := ApplyClassFilter(raster, "class == 10 || class == 80")
	if err != nil {
		t.Errorf("failed to apply class filter: %v", err)
		return
	}

	expected := []uint8{10, 0, 80, 0, 0}
	for i := range expected {
		if raster.Data[i] != expected[i] {
			t.Errorf("unexpected filtered data: expected %v, actual %v", expected, raster.Data)
			return
		}
	}
}

func TestApplyClassFilterWrongType(t *testing.T) {
	raster := &FlexRaster{Data: make([]uint8, 8), Width: 2, Height: 2, Type: "UInt16"}

	err := ApplyClassFilter(raster, "class < 50")
	if err == nil {
		t.Errorf("expected error applying class filter to a UInt16 raster")
	}
}
