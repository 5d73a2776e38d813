// internal/service/render/geo.go

package render

import (
	"math"

	"locale/internal/domain/event"
)

const earthRadiusKm = 6371.0

// Distance calculates the great-circle distance between two points in kilometers
func Distance(a, b event.Coordinates) float64 {
	// Convert latitude and longitude from degrees to radians
	lat1 := a.Lat * math.Pi / 180.0
	lon1 := a.Lon * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	lon2 := b.Lon * math.Pi / 180.0

	// Haversine formula
	dLat := lat2 - lat1
	dLon := lon2 - lon1

	hSin := math.Sin(dLat / 2)
	hSin *= hSin

	vSin := math.Sin(dLon / 2)
	vSin *= vSin

	h := hSin + math.Cos(lat1)*math.Cos(lat2)*vSin

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Centre returns the mean position of points. Longitudes are averaged on the
// unit circle so points either side of the antimeridian stay together.
func Centre(points []event.Coordinates) event.Coordinates {
	if len(points) == 0 {
		return event.Coordinates{}
	}

	var lat, x, y float64
	for _, p := range points {
		lat += p.Lat
		rad := p.Lon * math.Pi / 180.0
		x += math.Cos(rad)
		y += math.Sin(rad)
	}
	n := float64(len(points))
	return event.Coordinates{
		Lat: lat / n,
		Lon: math.Atan2(y/n, x/n) * 180.0 / math.Pi,
	}
}

// Radius returns the largest distance from centre to any point
func Radius(centre event.Coordinates, points []event.Coordinates) float64 {
	var r float64
	for _, p := range points {
		if d := Distance(centre, p); d > r {
			r = d
		}
	}
	return r
}

// Cluster groups point indexes lying within maxDistanceKm of the first point
// of each group
func Cluster(points []event.Coordinates, maxDistanceKm float64) [][]int {
	if len(points) == 0 {
		return nil
	}

	var clusters [][]int
	visited := make([]bool, len(points))

	for i, p := range points {
		if visited[i] {
			continue
		}

		// Start a new cluster with this point
		cluster := []int{i}
		visited[i] = true

		for j, other := range points {
			if i == j || visited[j] {
				continue
			}
			if Distance(p, other) <= maxDistanceKm {
				cluster = append(cluster, j)
				visited[j] = true
			}
		}

		clusters = append(clusters, cluster)
	}

	return clusters
}
