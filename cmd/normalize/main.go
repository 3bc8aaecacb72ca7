// Command normalize runs one category's normalizer over a local payload and
// prints the resulting patches as JSON. It uses the same normalizers and
// reference data as the service, so the output matches what a live refresh
// would merge.
//
// Usage:
//
//	go run ./cmd/normalize -category prices -in data/redfin_zip.tsv
//	go run ./cmd/normalize -category parks -in overpass.json -as-of 2024-07-01
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/region-data-service/internal/domain"
	"github.com/couchcryptid/region-data-service/internal/normalize"
	"github.com/couchcryptid/region-data-service/internal/observability"
	"github.com/couchcryptid/region-data-service/internal/reference"
)

type patchJSON struct {
	ZIP      string               `json:"zip"`
	Category domain.Category      `json:"category"`
	Fields   map[domain.Field]any `json:"fields"`
	Sources  []string             `json:"sources,omitempty"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	category := fs.String("category", "", "category to normalize: prices, schools or parks")
	in := fs.String("in", "", "payload file (CSV/TSV or Overpass JSON)")
	refPath := fs.String("reference", "", "reference dataset YAML (default: embedded dataset)")
	asOf := fs.String("as-of", "", "fix the fallback freshness stamp to this date (YYYY-MM-DD)")
	verbose := fs.Bool("v", false, "log dropped rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *category == "" || *in == "" {
		fs.Usage()
		return fmt.Errorf("missing required flags: -category, -in")
	}

	c, err := domain.ParseCategory(*category)
	if err != nil {
		return err
	}

	if *asOf != "" {
		t, err := time.Parse(time.DateOnly, *asOf)
		if err != nil {
			return fmt.Errorf("parse -as-of: %w", err)
		}
		domain.SetClock(clockwork.NewFakeClockAt(t))
		defer domain.SetClock(nil)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := observability.NewLogger(level, "text")

	ds, err := reference.Load(*refPath)
	if err != nil {
		return err
	}
	ref := reference.NewProvider(ds)

	var n normalize.Normalizer
	switch c {
	case domain.CategoryPrices:
		n = normalize.NewPrices(ref, nil, logger)
	case domain.CategorySchools:
		n = normalize.NewSchools(ref, logger)
	case domain.CategoryParks:
		n = normalize.NewParks(ref, logger)
	}

	payload, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	patches, err := n.Normalize(payload)
	if err != nil {
		return fmt.Errorf("normalize %s: %w", c, err)
	}

	doc := make([]patchJSON, len(patches))
	for i, p := range patches {
		doc[i] = patchJSON{ZIP: p.ZIP, Category: p.Category, Fields: p.Fields, Sources: p.Sources}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write patches: %w", err)
	}
	log.Printf("%s: %d patches", c, len(patches))
	return nil
}
