package geometry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ctessum/geom"
)

// GeoJSON containers for the subset of the format glacier outlines use:
// FeatureCollections of LineString, MultiLineString, and Polygon features.
// Coordinates beyond the first two (elevation) are dropped.

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string                     `json:"type"`
	Geometry   rawGeometry                `json:"geometry"`
	Properties map[string]json.RawMessage `json:"properties"`
}

type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ReadGeoJSON decodes a GeoJSON FeatureCollection into a segment collection.
// Each feature gets a boundary label: the integer "label" (or "side") property
// if present, otherwise the 1-based feature index.
func ReadGeoJSON(r io.Reader) (Collection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Collection{}, err
	}
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return Collection{}, fmt.Errorf("decoding GeoJSON: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return Collection{}, fmt.Errorf("expected FeatureCollection, got %q", fc.Type)
	}

	var c Collection
	for i, f := range fc.Features {
		label := featureLabel(f, i+1)
		segs, err := geometrySegments(f.Geometry, label)
		if err != nil {
			return Collection{}, fmt.Errorf("feature %d: %w", i, err)
		}
		c.Segments = append(c.Segments, segs...)
	}
	if len(c.Segments) == 0 {
		return Collection{}, fmt.Errorf("FeatureCollection has no usable features")
	}
	return c, nil
}

// LoadGeoJSON reads a glacier outline from a GeoJSON file.
func LoadGeoJSON(filename string) (Collection, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Collection{}, err
	}
	defer f.Close()
	c, err := ReadGeoJSON(f)
	if err != nil {
		return Collection{}, fmt.Errorf("%s: %w", filename, err)
	}
	return c, nil
}

// WriteGeoJSON encodes a collection as a FeatureCollection of LineString
// features, one per segment.
func WriteGeoJSON(w io.Writer, c Collection) error {
	fc := map[string]interface{}{"type": "FeatureCollection"}
	features := make([]map[string]interface{}, len(c.Segments))
	for i, s := range c.Segments {
		coords := make([][2]float64, len(s.Points))
		for j, p := range s.Points {
			coords[j] = [2]float64{p.X, p.Y}
		}
		features[i] = map[string]interface{}{
			"type":       "Feature",
			"properties": map[string]interface{}{"label": s.Label},
			"geometry": map[string]interface{}{
				"type":        "LineString",
				"coordinates": coords,
			},
		}
	}
	fc["features"] = features
	enc := json.NewEncoder(w)
	return enc.Encode(fc)
}

func featureLabel(f feature, fallback int) int {
	for _, key := range []string{"label", "side", "id"} {
		if raw, ok := f.Properties[key]; ok {
			var v int
			if err := json.Unmarshal(raw, &v); err == nil {
				return v
			}
		}
	}
	return fallback
}

func geometrySegments(g rawGeometry, label int) ([]Segment, error) {
	switch g.Type {
	case "LineString":
		var coords [][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, err
		}
		s, err := coordsToSegment(coords, label)
		if err != nil {
			return nil, err
		}
		return []Segment{s}, nil

	case "MultiLineString", "Polygon":
		// A polygon's rings are treated as pre-closed boundary segments.
		var coords [][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, err
		}
		segs := make([]Segment, 0, len(coords))
		for _, line := range coords {
			s, err := coordsToSegment(line, label)
			if err != nil {
				return nil, err
			}
			segs = append(segs, s)
		}
		return segs, nil

	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

func coordsToSegment(coords [][]float64, label int) (Segment, error) {
	if len(coords) < 2 {
		return Segment{}, fmt.Errorf("line with %d coordinates", len(coords))
	}
	pts := make([]geom.Point, len(coords))
	for i, c := range coords {
		if len(c) < 2 {
			return Segment{}, fmt.Errorf("coordinate %d has %d components", i, len(c))
		}
		pts[i] = geom.Point{X: c[0], Y: c[1]}
	}
	return Segment{Points: pts, Label: label}, nil
}
