package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completeDataset = `
zips:
  - zip: "75035"
    name: Frisco (East)
    lat: 33.1530
    lon: -96.7816
    land_area_sq_mi: 22.1
    district: Frisco ISD
    counties:
      - name: Collin
    lifestyle: { restaurants: 175, entertainment: 26, diversity_index: 0.60, convenience: 78 }
    schools: { math_proficiency: 0.80, reading_proficiency: 0.90, pct_rated_a: 50 }
    criteria: { commute: 48, safety: 88, tax: 42, tolls: 38 }
elections:
  presidential:
    year: 2020
    results:
      Collin: { dem: 230945, rep: 252318 }
  gubernatorial:
    year: 2022
    results:
      Collin: { dem: 166133, rep: 199017 }
`

const defaultBBox = "32.55,-97.45,33.45,-96.45"

func writeDataset(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reference.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestRun_CompleteDatasetPasses(t *testing.T) {
	var out bytes.Buffer
	code := run(writeDataset(t, completeDataset), defaultBBox, &out)
	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
}

func TestRun_ReportsGaps(t *testing.T) {
	doc := `
zips:
  - zip: "75087"
    lat: 32.9112
    lon: -95.9
    counties:
      - name: Rockwall
    criteria: { commute: 35 }
elections:
  presidential:
    results:
      Rockwall: { dem: 20358, rep: 40817 }
`
	var out bytes.Buffer
	code := run(writeDataset(t, doc), defaultBBox, &out)
	assert.Equal(t, 1, code)

	report := out.String()
	assert.Contains(t, report, "county Rockwall has no gubernatorial result")
	assert.Contains(t, report, "75087: no lifestyle inputs")
	assert.Contains(t, report, "missing criteria [safety tax tolls]")
	assert.Contains(t, report, "no land area")
	assert.Contains(t, report, "outside parks box")
	assert.Contains(t, report, "trend unavailable")
	assert.Contains(t, report, "Validation FAILED.")
}

func TestRun_EmbeddedDatasetFlagsMissingSchoolSummary(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 1, run("", defaultBBox, &out))
	assert.Contains(t, out.String(), "75201: no school summary")
}

func TestRun_Fatal(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 1, run(writeDataset(t, "zips: []"), defaultBBox, &out))
	assert.Contains(t, out.String(), "FATAL")

	out.Reset()
	assert.Equal(t, 1, run("", "nope", &out))
	assert.Contains(t, out.String(), "parse bbox")
}
