package processor

import (
	"image/color"
	"testing"
	"time"
)

func TestRasterMergerNewestWins(t *testing.T) {
	errChan := make(chan error, 10)
	merger := NewRasterMerger(errChan)

	older := &FlexRaster{
		Data: []uint8{
			1, 1,
			1, 1,
		},
		Width: 2, Height: 2, OffX: 0, OffY: 0,
		Type: "Byte", NoData: 0,
		TimeStamp: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := &FlexRaster{
		Data: []uint8{
			2, 0,
		},
		Width: 2, Height: 1, OffX: 0, OffY: 0,
		Type: "Byte", NoData: 0,
		TimeStamp: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	// feed newest first to exercise the sort
	merger.In <- newer
	merger.In <- older
	close(merger.In)

	merger.Run(2, 2, false)

	canvas := <-merger.Out
	if canvas == nil {
		t.Errorf("merger emitted no canvas")
		return
	}

	// pixel 0 overwritten by the newer granule, pixel 1 kept
	// because nodata never overwrites data
	expected := []uint8{2, 1, 1, 1}
	for i := range expected {
		if canvas.Data[i] != expected[i] {
			t.Errorf("unexpected canvas: expected %v, actual %v", expected, canvas.Data)
			return
		}
	}

	select {
	case err := <-errChan:
		t.Errorf("unexpected merger error: %v", err)
	default:
	}
}

func TestRasterMergerKeepsColourTable(t *testing.T) {
	errChan := make(chan error, 10)
	merger := NewRasterMerger(errChan)

	table := []color.RGBA{{0, 0, 0, 255}, {0, 100, 0, 255}}

	empty := &FlexRaster{Data: make([]uint8, 4), Width: 2, Height: 2, Type: "Byte", NoData: 0}
	granule := &FlexRaster{Data: []uint8{1, 1, 1, 1}, Width: 2, Height: 2, Type: "Byte", NoData: 0, ColourTable: table,
		TimeStamp: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)}

	merger.In <- empty
	merger.In <- granule
	close(merger.In)

	merger.Run(2, 2, false)

	canvas := <-merger.Out
	if canvas == nil {
		t.Errorf("merger emitted no canvas")
		return
	}
	if len(canvas.ColourTable) != len(table) {
		t.Errorf("canvas lost the granule colour table")
	}
}

func TestRasterMergerRejectsOversizedWindow(t *testing.T) {
	errChan := make(chan error, 10)
	merger := NewRasterMerger(errChan)

	granule := &FlexRaster{Data: make([]uint8, 9), Width: 3, Height: 3, OffX: 1, OffY: 1, Type: "Byte", NoData: 0}
	merger.In <- granule
	close(merger.In)

	merger.Run(2, 2, false)

	select {
	case <-errChan:
	default:
		t.Errorf("expected an error for a granule window exceeding the canvas")
	}
}

func TestRasterMergerNoDataFill(t *testing.T) {
	errChan := make(chan error, 10)
	merger := NewRasterMerger(errChan)

	granule := &FlexRaster{Data: []uint8{7}, Width: 1, Height: 1, OffX: 1, OffY: 1, Type: "Byte", NoData: 5}
	merger.In <- granule
	close(merger.In)

	merger.Run(2, 2, false)

	canvas := <-merger.Out
	if canvas == nil {
		t.Errorf("merger emitted no canvas")
		return
	}

	expected := []uint8{5, 5, 5, 7}
	for i := range expected {
		if canvas.Data[i] != expected[i] {
			t.Errorf("unexpected canvas fill: expected %v, actual %v", expected, canvas.Data)
			return
		}
	}
}
