package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/crypto/ssh/terminal"

	proc "github.com/balintalfoldy/lcs/processor"
)

var wms_caps string = "http://%s/ows?service=WMS&version=1.3.0&request=GetCapabilities"
var wms_legend string = "http://%s/ows?service=WMS&version=1.3.0&request=GetLegendGraphic&layers=landcover&format=image/png"
var passed string = "Passed"
var failed string = "Failed"

func Capabilities(host, req string) bool {
	resp, err := http.Get(fmt.Sprintf(req, host))
	if err != nil {
		log.Fatal(err)
	}
	if resp.StatusCode != 200 {
		return false
	}

	return true
}

func WMS(host, urlList string, concLevel int) (bool, time.Duration) {
	start := time.Now()
	f, err := os.Open(urlList)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	conc := proc.NewConcLimiter(concLevel)
	results := make(chan int, 4096)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		conc.Increase()
		go func(url string) {
			resp, err := http.Get(fmt.Sprintf(url, host))
			if err != nil {
				log.Fatal(err)
			}
			results <- resp.StatusCode
			conc.Decrease()
		}(scanner.Text())
	}

	conc.Wait()
	close(results)

	out := true
	for res := range results {
		if res != 200 {
			out = false
		}
	}

	return out, time.Since(start)
}

func inRed(str string) string {
	return fmt.Sprintf("\x1b[31;1m%s\x1b[0m", str)
}

func inGreen(str string) string {
	return fmt.Sprintf("\x1b[32;1m%s\x1b[0m", str)
}

func main() {
	host := flag.String("h", "localhost:8080", "LCS host name or address")
	conc := flag.Int("n", 6, "Concurrency level for acceptance tests")
	flag.Parse()

	var t time.Duration
	var ok bool

	if terminal.IsTerminal(int(os.Stdout.Fd())) {
		passed = inGreen(passed)
		failed = inRed(failed)
	}

	fmt.Printf("Testing WMS GetCapabilities: ")
	if !Capabilities(*host, wms_caps) {
		fmt.Println(failed)
		os.Exit(1)
	}
	fmt.Println(passed)

	fmt.Printf("Testing WMS GetLegendGraphic: ")
	if !Capabilities(*host, wms_legend) {
		fmt.Println(failed)
		os.Exit(1)
	}
	fmt.Println(passed)

	fmt.Printf("Testing WMS GetMap: ")
	if ok, t = WMS(*host, "acpt_url.tpl", *conc); !ok {
		fmt.Println(failed)
		os.Exit(1)
	}
	fmt.Println(passed, t)
}
