package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/mr1hm/pest-forecast/internal/models"
)

const (
	EarthRadiusKm = 6371.0
	KmPerDegree   = 111.0 // fixed degrees-per-km approximation used for bounds
)

var (
	ErrInvalidRadius = errors.New("radius must be > 0")
	// ErrOutOfRange means the area would cross a pole or the anti-meridian;
	// bounds are a flat rectangle and do not wrap.
	ErrOutOfRange = errors.New("area crosses a pole or the anti-meridian")
)

// Distance returns the great-circle distance in km (haversine).
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// CalculateBounds derives the rectangle enclosing a circle of radiusKm around
// the center. The center is strictly interior for any positive radius.
func CalculateBounds(centerLat, centerLon, radiusKm float64) (models.Bounds, error) {
	if !(radiusKm > 0) || math.IsInf(radiusKm, 0) {
		return models.Bounds{}, fmt.Errorf("%w: got %v", ErrInvalidRadius, radiusKm)
	}
	if err := models.ValidateCoordinates(centerLat, centerLon); err != nil {
		return models.Bounds{}, err
	}

	latDelta := radiusKm / KmPerDegree
	cosLat := math.Cos(toRad(centerLat))
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	lonDelta := radiusKm / (KmPerDegree * cosLat)

	b := models.Bounds{
		MinLat: centerLat - latDelta,
		MinLon: centerLon - lonDelta,
		MaxLat: centerLat + latDelta,
		MaxLon: centerLon + lonDelta,
	}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLon < -180 || b.MaxLon > 180 {
		return models.Bounds{}, fmt.Errorf("%w: %.1f km around (%v, %v)", ErrOutOfRange, radiusKm, centerLat, centerLon)
	}
	return b, nil
}

// Offset moves a point by east/north kilometres using the same flat
// approximation as CalculateBounds.
func Offset(lat, lon, eastKm, northKm float64) (float64, float64) {
	cosLat := math.Cos(toRad(lat))
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	return lat + northKm/KmPerDegree, lon + eastKm/(KmPerDegree*cosLat)
}

// SpanKm returns the north-south and east-west extent of b at its mid latitude.
func SpanKm(b models.Bounds) (latKm, lonKm float64) {
	mid := (b.MinLat + b.MaxLat) / 2
	latKm = (b.MaxLat - b.MinLat) * KmPerDegree
	lonKm = (b.MaxLon - b.MinLon) * KmPerDegree * math.Cos(toRad(mid))
	return latKm, lonKm
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
