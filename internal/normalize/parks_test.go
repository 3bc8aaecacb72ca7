package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/region-data-service/internal/domain"
)

var parksRef = fakeRef{centroids: []Centroid{
	{ZIP: "75035", Lat: 33.15, Lon: -96.80, LandAreaSqMi: 2.0},
	{ZIP: "75024", Lat: 33.08, Lon: -96.80, LandAreaSqMi: 3.0},
	{ZIP: "75201", Lat: 32.79, Lon: -96.80},
}}

const overpassJSON = `{
  "version": 0.6,
  "elements": [
    {"type": "node", "id": 1, "lat": 33.151, "lon": -96.801},
    {"type": "way", "id": 2, "center": {"lat": 33.149, "lon": -96.800}},
    {"type": "relation", "id": 3, "center": {"lat": 33.081, "lon": -96.800}},
    {"type": "node", "id": 4, "lat": 35.0, "lon": -96.8},
    {"type": "way", "id": 5},
    {"type": "node", "id": 6, "lat": 32.79, "lon": -96.80}
  ]
}`

func TestParks_Normalize(t *testing.T) {
	freezeClock(t)
	patches, err := NewParks(parksRef, nil).Normalize([]byte(overpassJSON))
	require.NoError(t, err)
	require.Equal(t, []string{"75024", "75035"}, zips(patches), "75201 has no land area")

	assert.Equal(t, 0.3, patches[0].Fields[domain.FieldParksCountPerSqMi])
	assert.Equal(t, 1.0, patches[1].Fields[domain.FieldParksCountPerSqMi])
	assert.Equal(t, "2024-07", patches[1].Fields[domain.FieldParksUpdatedAt])
	assert.Equal(t, []string{SourceOSM}, patches[1].Sources)
	require.NoError(t, patches[1].Validate())
}

func TestParks_InvalidJSON(t *testing.T) {
	_, err := NewParks(parksRef, nil).Normalize([]byte("<html>rate limited</html>"))
	require.Error(t, err)
}

func TestParks_NoElements(t *testing.T) {
	patches, err := NewParks(parksRef, nil).Normalize([]byte(`{"elements":[]}`))
	require.NoError(t, err)
	assert.Empty(t, patches)
}

func TestOverpassQuery(t *testing.T) {
	b, err := ParseBBox("32.55,-97.45,33.45,-96.45")
	require.NoError(t, err)

	q := OverpassQuery(b)
	assert.Contains(t, q, "[out:json]")
	assert.Contains(t, q, `node["leisure"="park"](32.55,-97.45,33.45,-96.45);`)
	assert.Contains(t, q, `way["leisure"="park"]`)
	assert.Contains(t, q, `relation["leisure"="park"]`)
	assert.Contains(t, q, "out center;")
}

func TestParseBBox_Invalid(t *testing.T) {
	for _, s := range []string{"", "1,2,3", "a,b,c,d", "33,-96,32,-97"} {
		_, err := ParseBBox(s)
		assert.Error(t, err, s)
	}
}

func TestHaversineMiles(t *testing.T) {
	// Dallas to Fort Worth.
	assert.InDelta(t, 31, haversineMiles(32.7767, -96.7970, 32.7555, -97.3308), 1)
	assert.Zero(t, haversineMiles(33, -96, 33, -96))
}

func TestNearest_RejectsBeyondThreshold(t *testing.T) {
	_, ok := nearest(parksRef.centroids, 35.0, -96.8, MaxParkDistanceMiles)
	assert.False(t, ok)

	c, ok := nearest(parksRef.centroids, 33.12, -96.80, MaxParkDistanceMiles)
	require.True(t, ok)
	assert.Equal(t, "75035", c.ZIP)
}
