package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/agromonitor/fincas-geom/internal/domain/geometry"
)

// validationQuerier is the slice of pgx.Tx the validator needs.
type validationQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// validateGeometry derives validity, diagnostic reason, geometry type,
// geodesic area and GeoJSON from one parsed geometry in a single statement,
// so the fields cannot diverge between each other. Area and GeoJSON are
// guarded on validity: an invalid geometry must reach the ST_IsValidReason
// row instead of erroring on a derived column.
func validateGeometry(ctx context.Context, q validationQuerier, wkt string, srid int) (*geometry.ValidationResult, error) {
	const stmt = `
		SELECT ST_IsValid(g),
		       ST_IsValidReason(g),
		       ST_GeometryType(g),
		       CASE WHEN ST_IsValid(g) THEN ST_Area(g::geography) END,
		       CASE WHEN ST_IsValid(g) THEN ST_AsGeoJSON(g) END
		FROM (SELECT ST_GeomFromText($1, $2) AS g) AS parsed
	`
	var (
		valid    bool
		reason   string
		geomType string
		area     *float64
		geoJSON  *string
	)
	if err := q.QueryRow(ctx, stmt, wkt, srid).Scan(&valid, &reason, &geomType, &area, &geoJSON); err != nil {
		return nil, err
	}
	if !valid {
		return &geometry.ValidationResult{Valid: false, Reason: &reason}, nil
	}
	res := &geometry.ValidationResult{
		Valid:            true,
		GeometryType:     &geomType,
		AreaSquareMeters: area,
	}
	if geoJSON != nil {
		res.GeoJSON = json.RawMessage(*geoJSON)
	}
	return res, nil
}

// geometryErrorReason extracts the engine diagnostic from a PostGIS parse
// failure. Unparseable WKT raises a statement error rather than returning
// false from ST_IsValid; those diagnostics are surfaced to operators verbatim.
func geometryErrorReason(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	switch pgErr.Code {
	// XX000: internal_error, raised by liblwgeom parse failures.
	// 22023: invalid_parameter_value. 22P02: invalid_text_representation.
	case "XX000", "22023", "22P02":
		return pgErr.Message, true
	}
	return "", false
}
