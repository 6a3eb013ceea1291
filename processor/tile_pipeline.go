package processor

import (
	"golang.org/x/net/context"

	"github.com/balintalfoldy/lcs/stac"
)

// TilePipeline wires the processing stages of one tile
// request: catalog search, windowed raster reads and canvas
// merging. The caller consumes the merged canvas from the
// returned channel and watches the error channel it supplied.
type TilePipeline struct {
	Context       context.Context
	Error         chan error
	Client        *stac.Client
	TileConcLimit int
}

func InitTilePipeline(ctx context.Context, client *stac.Client, tileConcLimit int, errChan chan error) *TilePipeline {
	return &TilePipeline{
		Context:       ctx,
		Error:         errChan,
		Client:        client,
		TileConcLimit: tileConcLimit,
	}
}

func (dp *TilePipeline) Process(geoReq *GeoTileRequest, verbose bool) chan *FlexRaster {
	i := NewStacIndexer(dp.Context, dp.Client, dp.Error)
	go func() {
		i.In <- geoReq
		close(i.In)
	}()

	r := NewTileReader(dp.Context, dp.TileConcLimit, dp.Error)
	m := NewRasterMerger(dp.Error)

	r.In = i.Out
	m.In = r.Out

	go i.Run(verbose)
	go r.Run(verbose)
	go m.Run(geoReq.Width, geoReq.Height, verbose)

	return m.Out
}

// ProcessPNG additionally renders the merged canvas, applying
// the class filter of the request before encoding.
func (dp *TilePipeline) ProcessPNG(geoReq *GeoTileRequest, verbose bool) chan []byte {
	enc := NewPNGEncoder(dp.Error)

	merged := dp.Process(geoReq, verbose)
	go func() {
		defer close(enc.In)
		for canvas := range merged {
			if len(canvas.ClassFilter) > 0 {
				err := ApplyClassFilter(canvas, canvas.ClassFilter)
				if err != nil {
					dp.Error <- err
					continue
				}
			}
			enc.In <- canvas
		}
	}()

	go enc.Run(geoReq.Width, geoReq.Height, verbose)

	return enc.Out
}
