package processor

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/net/context"

	"github.com/balintalfoldy/lcs/stac"
	"github.com/balintalfoldy/lcs/utils"
)

// StacIndexer turns a tile request into the granules that
// intersect it by searching the configured STAC catalog.
// One granule is emitted per matching item. A search that
// matches nothing emits an empty granule so the downstream
// encoder serves a transparent tile; the empty granule is
// the no data signal, nothing goes on the error channel.
type StacIndexer struct {
	Context context.Context
	In      chan *GeoTileRequest
	Out     chan *GeoTileGranule
	Error   chan error
	Client  *stac.Client
}

func NewStacIndexer(ctx context.Context, client *stac.Client, errChan chan error) *StacIndexer {
	return &StacIndexer{
		Context: ctx,
		In:      make(chan *GeoTileRequest, 100),
		Out:     make(chan *GeoTileGranule, 100),
		Error:   errChan,
		Client:  client,
	}
}

func (p *StacIndexer) emitEmpty(geoReq *GeoTileRequest) {
	p.Out <- &GeoTileGranule{ConfigPayLoad: geoReq.ConfigPayLoad, URL: "NULL", ItemID: utils.EmptyTileNS, CRS: geoReq.CRS, BBox: geoReq.BBox, Height: geoReq.Height, Width: geoReq.Width, Band: geoReq.Band, NoData: geoReq.NoData, MetricsCollector: geoReq.MetricsCollector}
}

func (p *StacIndexer) Run(verbose bool) {
	if verbose {
		defer log.Printf("stac indexer done")
	}
	defer close(p.Out)

	for geoReq := range p.In {
		select {
		case <-p.Context.Done():
			p.Error <- fmt.Errorf("Stac indexer context has been cancelled: %v", p.Context.Err())
			return
		default:
			xRes := (geoReq.BBox[2] - geoReq.BBox[0]) / float64(geoReq.Width)
			if geoReq.ZoomLimit != 0.0 && xRes > geoReq.ZoomLimit {
				p.emitEmpty(geoReq)
				continue
			}

			searchReq := stac.SearchRequest{
				Collections: []string{geoReq.Collection},
				BBox:        geoReq.BBox,
			}
			if geoReq.StartTime != nil {
				if geoReq.EndTime != nil {
					searchReq.Datetime = fmt.Sprintf("%s/%s", geoReq.StartTime.Format(utils.ISOFormat), geoReq.EndTime.Format(utils.ISOFormat))
				} else {
					searchReq.Datetime = geoReq.StartTime.Format(utils.ISOFormat)
				}
			}

			t0 := time.Now()
			items, err := p.Client.Search(p.Context, searchReq)
			if geoReq.MetricsCollector != nil {
				geoReq.MetricsCollector.Info.Indexer.Duration += time.Since(t0)
			}
			if err != nil {
				p.Error <- err
				p.emitEmpty(geoReq)
				continue
			}

			if geoReq.MetricsCollector != nil {
				geoReq.MetricsCollector.Info.Indexer.NumItems += len(items.Features)
			}

			if len(items.Features) == 0 {
				if verbose {
					log.Printf("collection %s: %v", geoReq.Collection, stac.ErrNoItems)
				}
				p.emitEmpty(geoReq)
				continue
			}

			for _, item := range items.Features {
				url, err := p.Client.SignedAssetURL(item, geoReq.AssetName)
				if err != nil {
					p.Error <- err
					continue
				}

				ts := time.Time{}
				if len(item.Properties.Datetime) > 0 {
					ts, _ = time.Parse(time.RFC3339, item.Properties.Datetime)
				}

				if geoReq.MetricsCollector != nil {
					geoReq.MetricsCollector.Info.Indexer.NumGranules++
				}
				p.Out <- &GeoTileGranule{ConfigPayLoad: geoReq.ConfigPayLoad, URL: url, ItemID: item.ID, CRS: geoReq.CRS, BBox: geoReq.BBox, Height: geoReq.Height, Width: geoReq.Width, Band: geoReq.Band, NoData: geoReq.NoData, TimeStamp: ts, MetricsCollector: geoReq.MetricsCollector}
			}
		}
	}
}
