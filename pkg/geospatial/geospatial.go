package geospatial

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var (
	ErrInvalidBoundary = errors.New("invalid GeoJSON boundary")
	ErrInvalidPoint    = errors.New("invalid GPS location")
)

// ParseBoundary parses a farm boundary given either as a GeoJSON Feature or a bare
// geometry. Only polygonal geometries are accepted.
func ParseBoundary(raw []byte) (orb.Geometry, error) {
	var geometry orb.Geometry

	if feature, err := geojson.UnmarshalFeature(raw); err == nil && feature.Geometry != nil {
		geometry = feature.Geometry
	} else if g, err := geojson.UnmarshalGeometry(raw); err == nil && g.Coordinates != nil {
		geometry = g.Coordinates
	} else {
		return nil, fmt.Errorf("%w: not a feature or geometry", ErrInvalidBoundary)
	}

	switch geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return geometry, nil
	default:
		return nil, fmt.Errorf("%w: expected Polygon or MultiPolygon, got %s", ErrInvalidBoundary, geometry.GeoJSONType())
	}
}

// AreaHectares returns the geodesic area of a geometry in hectares
func AreaHectares(geometry orb.Geometry) float64 {
	return ConvertToHectares(geo.Area(geometry))
}

// Centroid returns the planar centroid of a geometry
func Centroid(geometry orb.Geometry) orb.Point {
	centroid, _ := planar.CentroidArea(geometry)
	return centroid
}

// ValidatePoint checks that a point is a valid longitude/latitude pair
func ValidatePoint(p orb.Point) error {
	if p.Lon() < -180 || p.Lon() > 180 {
		return fmt.Errorf("%w: longitude %g out of range", ErrInvalidPoint, p.Lon())
	}
	if p.Lat() < -90 || p.Lat() > 90 {
		return fmt.Errorf("%w: latitude %g out of range", ErrInvalidPoint, p.Lat())
	}
	return nil
}

// ConvertToHectares converts square meters to hectares
func ConvertToHectares(sqMeters float64) float64 {
	return sqMeters / 10000
}
