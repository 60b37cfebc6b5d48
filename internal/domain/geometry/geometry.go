package geometry

import "encoding/json"

// SRIDWGS84 is the spatial reference for field-captured coordinates.
const SRIDWGS84 = 4326

// ValidationResult carries everything the spatial engine derives from one
// parsed geometry. GeometryType, AreaSquareMeters and GeoJSON are only set
// when Valid; Reason is only set when not.
type ValidationResult struct {
	Valid            bool
	Reason           *string
	GeometryType     *string
	AreaSquareMeters *float64
	GeoJSON          json.RawMessage
}

// Areal reports whether the validated geometry encloses a 2D region.
func (r *ValidationResult) Areal() bool {
	if r.GeometryType == nil {
		return false
	}
	switch *r.GeometryType {
	case "ST_Polygon", "ST_MultiPolygon":
		return true
	}
	return false
}

// HectaresFromSquareMeters converts a geodesic area to hectares.
func HectaresFromSquareMeters(m2 float64) float64 {
	return m2 / 10000
}
