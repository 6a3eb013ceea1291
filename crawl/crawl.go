package main

/* crawl pages through the items of a catalog collection and
   writes one JSON document per line to stdout, ready to be
   POSTed to an itemindex instance. An optional govaluate
   pattern filters items before they are emitted. */

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	goeval "github.com/edisonguo/govaluate"

	"github.com/balintalfoldy/lcs/stac"
)

var (
	endpoint   = flag.String("endpoint", "", "STAC API endpoint.")
	collection = flag.String("collection", "", "Collection identifier to crawl.")
	pattern    = flag.String("pattern", "", "govaluate filter over the 'id', 'datetime' and 'asset' variables.")
	pageLimit  = flag.Int("limit", 100, "Items per page.")
	maxItems   = flag.Int("max", 0, "Stop after this many items, 0 for all.")
	timeoutSec = flag.Int("timeout", 60, "Network timeout in seconds.")
)

// parsePatternExpression compiles the item filter and rejects
// variables the crawler does not bind.
func parsePatternExpression(pattern string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(pattern)) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(pattern)
	if err != nil {
		return nil, err
	}

	validVariables := map[string]struct{}{"id": struct{}{}, "datetime": struct{}{}, "asset": struct{}{}}
	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := validVariables[varName]; !found {
				return nil, fmt.Errorf("variable %v is not supported. Valid variables are %v", varName, validVariables)
			}
		}
	}
	return expr, nil
}

// MatchItem evaluates the compiled pattern against one item.
// The 'asset' variable holds the comma joined asset names so
// patterns such as asset =~ 'map' stay cheap.
func MatchItem(expr *goeval.EvaluableExpression, item *stac.Item) (bool, error) {
	if expr == nil {
		return true, nil
	}

	assetNames := make([]string, 0, len(item.Assets))
	for name := range item.Assets {
		assetNames = append(assetNames, name)
	}

	params := map[string]interface{}{
		"id":       item.ID,
		"datetime": item.Properties.Datetime,
		"asset":    strings.Join(assetNames, ","),
	}

	result, err := expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("pattern must evaluate to a boolean, got %v", result)
	}
	return val, nil
}

type itemsPage struct {
	stac.ItemCollection
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

func fetchPage(client *http.Client, pageURL string) (*itemsPage, error) {
	resp, err := client.Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("GET request to %s failed. Error: %v", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Error reading response body from %s. Error: %v", pageURL, err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("%s returned status %d", pageURL, resp.StatusCode)
	}

	page := &itemsPage{}
	err = json.Unmarshal(body, page)
	if err != nil {
		return nil, fmt.Errorf("Problem parsing JSON response from %s. Error: %v", pageURL, err)
	}
	return page, nil
}

func nextPageURL(page *itemsPage) string {
	for _, link := range page.Links {
		if link.Rel == "next" {
			return link.Href
		}
	}
	return ""
}

func main() {
	flag.Parse()

	if len(*endpoint) == 0 || len(*collection) == 0 {
		log.Fatal("both -endpoint and -collection are required")
	}

	expr, err := parsePatternExpression(*pattern)
	if err != nil {
		log.Fatal(err)
	}

	client := &http.Client{Timeout: time.Duration(*timeoutSec) * time.Second}
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	pageURL := fmt.Sprintf("%s/collections/%s/items?limit=%d", *endpoint, url.PathEscape(*collection), *pageLimit)
	emitted := 0

	for len(pageURL) > 0 {
		page, err := fetchPage(client, pageURL)
		if err != nil {
			log.Fatal(err)
		}

		for _, item := range page.Features {
			match, err := MatchItem(expr, item)
			if err != nil {
				log.Fatal(err)
			}
			if !match {
				continue
			}

			doc, err := json.Marshal(item)
			if err != nil {
				log.Fatal(err)
			}
			out.Write(doc)
			out.WriteByte('\n')

			emitted++
			if *maxItems > 0 && emitted >= *maxItems {
				return
			}
		}

		pageURL = nextPageURL(page)
	}
}
