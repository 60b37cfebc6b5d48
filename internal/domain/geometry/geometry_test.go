package geometry

import "testing"

func TestHectaresFromSquareMeters(t *testing.T) {
	if got := HectaresFromSquareMeters(10000); got != 1.0 {
		t.Fatalf("expected 1.0 ha, got %f", got)
	}
	if got := HectaresFromSquareMeters(0); got != 0 {
		t.Fatalf("expected 0 ha, got %f", got)
	}
	if got := HectaresFromSquareMeters(2500); got != 0.25 {
		t.Fatalf("expected 0.25 ha, got %f", got)
	}
}

func TestAreal(t *testing.T) {
	areal := []string{"ST_Polygon", "ST_MultiPolygon"}
	for _, typ := range areal {
		typ := typ
		r := ValidationResult{Valid: true, GeometryType: &typ}
		if !r.Areal() {
			t.Fatalf("expected %s to be areal", typ)
		}
	}
	nonAreal := []string{"ST_Point", "ST_LineString", "ST_GeometryCollection"}
	for _, typ := range nonAreal {
		typ := typ
		r := ValidationResult{Valid: true, GeometryType: &typ}
		if r.Areal() {
			t.Fatalf("expected %s not to be areal", typ)
		}
	}
	empty := ValidationResult{Valid: false}
	if empty.Areal() {
		t.Fatal("expected result without geometry type not to be areal")
	}
}
