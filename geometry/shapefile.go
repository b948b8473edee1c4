package geometry

import (
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

// FromShapefile reads the polygon whose attribute field matches value (for
// example the RGI "glac_name" column) and returns its rings as a segment
// collection. Matching is case-insensitive.
func FromShapefile(filename, field, value string) (Collection, error) {
	dec, err := shp.NewDecoder(filename)
	if err != nil {
		return Collection{}, fmt.Errorf("opening shapefile %s: %w", filename, err)
	}
	defer dec.Close()

	for {
		g, fields, more := dec.DecodeRowFields(field)
		if !more {
			break
		}
		if !strings.EqualFold(strings.TrimSpace(fields[field]), value) {
			continue
		}
		c, err := polygonSegments(g)
		if err != nil {
			return Collection{}, fmt.Errorf("%s row %q: %w", filename, value, err)
		}
		return c, nil
	}
	if err := dec.Error(); err != nil {
		return Collection{}, fmt.Errorf("reading shapefile %s: %w", filename, err)
	}
	return Collection{}, fmt.Errorf("no row in %s with %s = %q", filename, field, value)
}

func polygonSegments(g geom.Geom) (Collection, error) {
	var c Collection
	addRing := func(ring []geom.Point, label int) {
		pts := make([]geom.Point, len(ring))
		copy(pts, ring)
		// Rings must be explicitly closed segments for chaining.
		if pts[0] != pts[len(pts)-1] {
			pts = append(pts, pts[0])
		}
		c.Segments = append(c.Segments, Segment{Points: pts, Label: label})
	}

	switch p := g.(type) {
	case geom.Polygon:
		for i, ring := range p {
			addRing(ring, i+1)
		}
	case geom.MultiPolygon:
		label := 1
		for _, poly := range p {
			for _, ring := range poly {
				addRing(ring, label)
				label++
			}
		}
	default:
		return Collection{}, fmt.Errorf("unsupported shapefile geometry %T", g)
	}
	if len(c.Segments) == 0 {
		return Collection{}, fmt.Errorf("polygon has no rings")
	}
	return c, nil
}
