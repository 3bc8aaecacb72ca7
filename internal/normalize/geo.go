package normalize

import "math"

const earthRadiusMiles = 3958.8

// haversineMiles is the great-circle distance between two points.
func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(a)))
}

// nearest returns the centroid closest to (lat, lon) within maxMiles.
func nearest(centroids []Centroid, lat, lon, maxMiles float64) (Centroid, bool) {
	var best Centroid
	bestDist := math.Inf(1)
	for _, c := range centroids {
		d := haversineMiles(lat, lon, c.Lat, c.Lon)
		if d < bestDist || (d == bestDist && c.ZIP < best.ZIP) {
			best, bestDist = c, d
		}
	}
	if bestDist > maxMiles {
		return Centroid{}, false
	}
	return best, true
}
