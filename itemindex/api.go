// Local catalog item index.
//
// itemindex keeps a Postgres copy of the catalog items of one
// or more collections and answers STAC compatible /search
// requests against it. Pointing the tile server at an
// itemindex instead of the upstream catalog removes the
// upstream from the serving path. The items table is created
// with schema.sql next to this file.

package main

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"

	_ "github.com/lib/pq"
	"github.com/nci/gomemcache/memcache"

	"github.com/balintalfoldy/lcs/stac"
)

var (
	db       *sql.DB
	mc       *memcache.Client
	dbName   = flag.String("database", "itemindex", "database name")
	dbUser   = flag.String("user", "api", "database user name")
	dbPool   = flag.Int("pool", 8, "database pool size")
	httpPort = flag.Int("port", 8081, "http port")
	mcURI    = flag.String("memcache", "", "memcache uri host:port")
)

// Spit out a simple JSON-formatted error message for Content-Type: application/json
func httpJSONError(response http.ResponseWriter, err error, status int) {
	http.Error(response, fmt.Sprintf(`{ "error": %q }`, err.Error()), status)
}

func searchHandler(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "application/json")

	body, err := ioutil.ReadAll(request.Body)
	if err != nil {
		httpJSONError(response, err, 400)
		return
	}

	var hash string
	if mc != nil {
		buff := md5.Sum(body)
		hash = hex.EncodeToString(buff[:])

		if cached, ok := mc.Get(hash); ok == nil {
			response.Write(cached.Value)
			return
		}
	}

	var searchReq stac.SearchRequest
	err = json.Unmarshal(body, &searchReq)
	if err != nil {
		httpJSONError(response, err, 400)
		return
	}

	if len(searchReq.Collections) != 1 {
		httpJSONError(response, fmt.Errorf("search must name exactly one collection"), 400)
		return
	}
	if len(searchReq.BBox) != 0 && len(searchReq.BBox) != 4 {
		httpJSONError(response, fmt.Errorf("search bbox must contain 4 values"), 400)
		return
	}

	limit := searchReq.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	// Use Postgres prepared statements and placeholders for input
	// checks. The bbox columns hold the item footprint envelope so
	// the intersection test stays plain SQL without PostGIS.
	var rows *sql.Rows
	if len(searchReq.BBox) == 4 {
		rows, err = db.Query(
			`select doc
			from items
			where collection = $1
			and minx <= $4 and maxx >= $2
			and miny <= $5 and maxy >= $3
			order by datetime desc
			limit $6`,
			searchReq.Collections[0],
			searchReq.BBox[0], searchReq.BBox[1], searchReq.BBox[2], searchReq.BBox[3],
			limit,
		)
	} else {
		rows, err = db.Query(
			`select doc
			from items
			where collection = $1
			order by datetime desc
			limit $2`,
			searchReq.Collections[0],
			limit,
		)
	}
	if err != nil {
		httpJSONError(response, err, 400)
		return
	}
	defer rows.Close()

	items := &stac.ItemCollection{Type: "FeatureCollection", Features: []*stac.Item{}}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			httpJSONError(response, err, 500)
			return
		}
		item := &stac.Item{}
		if err := json.Unmarshal(doc, item); err != nil {
			httpJSONError(response, err, 500)
			return
		}
		items.Features = append(items.Features, item)
	}
	if err := rows.Err(); err != nil {
		httpJSONError(response, err, 500)
		return
	}

	payload, err := json.Marshal(items)
	if err != nil {
		httpJSONError(response, err, 500)
		return
	}

	response.Write(payload)

	if mc != nil {
		// don't care about errors; memcache may not necessarily retain this anyway
		mc.Set(&memcache.Item{Key: hash, Value: payload})
	}
}

func ingestHandler(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "application/json")

	if request.Method != "POST" {
		httpJSONError(response, fmt.Errorf("item ingestion requires POST"), 405)
		return
	}

	body, err := ioutil.ReadAll(request.Body)
	if err != nil {
		httpJSONError(response, err, 400)
		return
	}

	item := &stac.Item{}
	err = json.Unmarshal(body, item)
	if err != nil {
		httpJSONError(response, err, 400)
		return
	}

	if len(item.ID) == 0 || len(item.Collection) == 0 {
		httpJSONError(response, fmt.Errorf("item must carry id and collection"), 400)
		return
	}
	if len(item.BBox) != 4 {
		httpJSONError(response, fmt.Errorf("item must carry a 4 value bbox"), 400)
		return
	}
	if _, err := item.Footprint(); err != nil {
		httpJSONError(response, err, 400)
		return
	}

	_, err = db.Exec(
		`insert into items (id, collection, minx, miny, maxx, maxy, datetime, doc)
		values ($1, $2, $3, $4, $5, $6, nullif($7,'')::timestamptz, $8)
		on conflict (id, collection) do update
		set minx = excluded.minx, miny = excluded.miny,
		    maxx = excluded.maxx, maxy = excluded.maxy,
		    datetime = excluded.datetime, doc = excluded.doc`,
		item.ID, item.Collection,
		item.BBox[0], item.BBox[1], item.BBox[2], item.BBox[3],
		item.Properties.Datetime, body,
	)
	if err != nil {
		httpJSONError(response, err, 500)
		return
	}

	response.Write([]byte(`{ "status": "ok" }`))
}

func main() {
	flag.Parse()

	var err error
	db, err = sql.Open("postgres", fmt.Sprintf("user=%s dbname=%s sslmode=disable", *dbUser, *dbName))
	if err != nil {
		log.Fatal(err)
	}
	db.SetMaxOpenConns(*dbPool)

	if len(*mcURI) > 0 {
		mc = memcache.New(*mcURI)
	}

	http.HandleFunc("/search", searchHandler)
	http.HandleFunc("/items", ingestHandler)

	log.Printf("itemindex listening on %d", *httpPort)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", *httpPort), nil))
}
