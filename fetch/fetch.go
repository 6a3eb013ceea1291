package main

/* fetch performs a single shot of the land cover pipeline:
   search the catalog for the rasters covering a bounding box,
   read the matching pixel window and write the result twice,
   once on a grey ramp and once through the colour table
   embedded in the raster. */

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh/terminal"
	"golang.org/x/net/context"

	proc "github.com/balintalfoldy/lcs/processor"
	"github.com/balintalfoldy/lcs/stac"
)

var (
	endpoint   = flag.String("endpoint", "https://planetarycomputer.microsoft.com/api/stac/v1", "STAC search endpoint.")
	collection = flag.String("collection", "esa-worldcover", "Catalog collection identifier.")
	asset      = flag.String("asset", "map", "Item asset name to download.")
	bboxStr    = flag.String("bbox", "", "Bounding box as west,south,east,north in geographic coordinates.")
	band       = flag.Int("band", 1, "Raster band to read.")
	outPrefix  = flag.String("o", "landcover", "Output file prefix.")
	keyPrompt  = flag.Bool("key-prompt", false, "Prompt for the subscription key instead of reading LCS_SUBSCRIPTION_KEY.")
	timeoutSec = flag.Int("timeout", 120, "Network timeout in seconds.")
	verbose    = flag.Bool("v", false, "Verbose output.")
)

func ensure(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func parseBBox(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must contain 4 comma separated values, got %d", len(parts))
	}
	bbox := make([]float64, 4)
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed bbox value %q: %v", part, err)
		}
		bbox[i] = val
	}
	if bbox[2] <= bbox[0] || bbox[3] <= bbox[1] {
		return nil, fmt.Errorf("bbox describes an empty area")
	}
	return bbox, nil
}

func subscriptionKey() (string, error) {
	if *keyPrompt {
		fmt.Fprint(os.Stderr, "Subscription key: ")
		key, err := terminal.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(key)), nil
	}
	return os.Getenv("LCS_SUBSCRIPTION_KEY"), nil
}

func main() {
	flag.Parse()

	if len(*bboxStr) == 0 {
		log.Fatal("a bounding box is required, e.g. -bbox 33.984,0.788,34.902,1.533")
	}
	bbox, err := parseBBox(*bboxStr)
	ensure(err)

	key, err := subscriptionKey()
	ensure(err)

	client := stac.NewClient(stac.ClientConfig{
		Endpoint:        *endpoint,
		SubscriptionKey: key,
		Timeout:         time.Duration(*timeoutSec) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutSec)*time.Second)
	defer cancel()

	start := time.Now()

	items, err := client.Search(ctx, stac.SearchRequest{
		Collections: []string{*collection},
		BBox:        bbox,
	})
	ensure(err)

	item, err := items.First()
	ensure(err)

	if *verbose {
		log.Printf("catalog matched %d item(s), using %s", len(items.Features), item.ID)
	}

	url, err := client.SignedAssetURL(item, *asset)
	ensure(err)

	raster, err := proc.ReadWindow(url, *band, bbox, 0)
	ensure(err)

	if *verbose {
		log.Printf("read %dx%d window of type %s", raster.Width, raster.Height, raster.Type)
	}

	greyOut, err := proc.EncodeGreyPNG(raster)
	ensure(err)
	ensure(ioutil.WriteFile(fmt.Sprintf("%s_grey.png", *outPrefix), greyOut, 0644))

	colourOut, err := proc.EncodeColourPNG(raster)
	ensure(err)
	ensure(ioutil.WriteFile(fmt.Sprintf("%s_colour.png", *outPrefix), colourOut, 0644))

	fmt.Printf("Done. %s_grey.png and %s_colour.png written in %v\n", *outPrefix, *outPrefix, time.Since(start))
}
