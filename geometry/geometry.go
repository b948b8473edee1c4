// Package geometry loads and normalizes glacier outlines.
//
// An outline arrives as a collection of boundary segments digitized in no
// particular order: GeoJSON LineString/MultiLineString features, or polygon
// rows from a shapefile. Normalize stitches the segments into closed loops
// suitable for mesh generation, with the exterior loop first and oriented
// counterclockwise.
package geometry

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// SnapTolerance is the relative endpoint-snapping distance used by Normalize,
// as a fraction of the collection's bounding-box diameter.
const SnapTolerance = 1e-6

// Segment is a digitized piece of a domain boundary. Label identifies the
// boundary condition zone the segment belongs to (e.g. inflow vs. calving
// terminus) and is carried through meshing onto boundary edges.
type Segment struct {
	Points []geom.Point
	Label  int
}

// Collection is an unordered set of boundary segments.
type Collection struct {
	Segments []Segment
}

// Loop is a closed chain of segments. Consecutive segments share endpoints
// and the last segment ends where the first begins.
type Loop struct {
	Segments []Segment
}

// Outline is a normalized domain boundary: Loops[0] is the exterior, oriented
// counterclockwise; the remaining loops are interior holes, oriented clockwise.
type Outline struct {
	Loops []Loop
}

// Ring returns the loop's vertices in order, without the closing repeat, and
// the per-edge labels (edge i runs from vertex i to vertex i+1 mod n).
func (l Loop) Ring() (pts []geom.Point, labels []int) {
	for _, s := range l.Segments {
		// Drop each segment's last point; it is the next segment's first.
		for i := 0; i < len(s.Points)-1; i++ {
			pts = append(pts, s.Points[i])
			labels = append(labels, s.Label)
		}
	}
	return pts, labels
}

// Area returns the signed area of the loop (positive for counterclockwise).
func (l Loop) Area() float64 {
	pts, _ := l.Ring()
	return signedArea(pts)
}

// Bounds returns the bounding box of all segments in the collection.
func (c Collection) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for _, s := range c.Segments {
		for _, p := range s.Points {
			b.Extend(p.Bounds())
		}
	}
	return b
}

// Bounds returns the bounding box of the outline.
func (o *Outline) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for _, l := range o.Loops {
		for _, s := range l.Segments {
			for _, p := range s.Points {
				b.Extend(p.Bounds())
			}
		}
	}
	return b
}

// Collection flattens the outline back into a segment collection, exterior
// loop first. The result is in normalized form.
func (o *Outline) Collection() Collection {
	var c Collection
	for _, l := range o.Loops {
		c.Segments = append(c.Segments, l.Segments...)
	}
	return c
}

func signedArea(pts []geom.Point) float64 {
	var a float64
	n := len(pts)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return a / 2
}

func diameter(b *geom.Bounds) float64 {
	dx := b.Max.X - b.Min.X
	dy := b.Max.Y - b.Min.Y
	return math.Hypot(dx, dy)
}

func validateSegment(s Segment) error {
	if len(s.Points) < 2 {
		return fmt.Errorf("segment with %d points; need at least 2", len(s.Points))
	}
	for _, p := range s.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("segment contains non-finite coordinate (%v, %v)", p.X, p.Y)
		}
	}
	return nil
}
