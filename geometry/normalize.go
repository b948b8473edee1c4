package geometry

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// Normalize rewrites a segment collection into canonical form:
//
//  1. Segment endpoints closer together than SnapTolerance times the
//     bounding-box diameter are snapped to a single point.
//  2. Segments are chained into closed loops; an endpoint that matches no
//     other segment is an error.
//  3. The exterior loop (largest absolute area) comes first and is oriented
//     counterclockwise; interior holes are oriented clockwise.
//
// Normalize is idempotent: applying it to its own output returns the same
// collection.
func Normalize(c Collection) (Collection, error) {
	if len(c.Segments) == 0 {
		return Collection{}, fmt.Errorf("empty segment collection")
	}
	for i, s := range c.Segments {
		if err := validateSegment(s); err != nil {
			return Collection{}, fmt.Errorf("segment %d: %w", i, err)
		}
	}

	segs := snapEndpoints(c.Segments, SnapTolerance*diameter(c.Bounds()))

	loops, err := chainLoops(segs)
	if err != nil {
		return Collection{}, err
	}
	orientLoops(loops)

	out := Collection{}
	for _, l := range loops {
		out.Segments = append(out.Segments, l.Segments...)
	}
	return out, nil
}

// BuildOutline normalizes a collection and assembles the result into an
// Outline ready for mesh generation.
func BuildOutline(c Collection) (*Outline, error) {
	nc, err := Normalize(c)
	if err != nil {
		return nil, err
	}
	loops, err := chainLoops(nc.Segments)
	if err != nil {
		return nil, err
	}
	return &Outline{Loops: loops}, nil
}

// snapEndpoints replaces segment endpoints that lie within tol of an earlier
// endpoint with that earlier point, so that chaining can use exact equality.
func snapEndpoints(segs []Segment, tol float64) []Segment {
	var anchors []geom.Point
	snap := func(p geom.Point) geom.Point {
		for _, a := range anchors {
			if math.Hypot(p.X-a.X, p.Y-a.Y) <= tol {
				return a
			}
		}
		anchors = append(anchors, p)
		return p
	}

	out := make([]Segment, len(segs))
	for i, s := range segs {
		pts := make([]geom.Point, len(s.Points))
		copy(pts, s.Points)
		pts[0] = snap(pts[0])
		pts[len(pts)-1] = snap(pts[len(pts)-1])
		out[i] = Segment{Points: pts, Label: s.Label}
	}
	return out
}

// chainLoops walks the segments endpoint-to-endpoint, reversing segments as
// needed, until every segment belongs to exactly one closed loop. Loops start
// at the lowest-index unused segment so that chaining is deterministic.
func chainLoops(segs []Segment) ([]Loop, error) {
	used := make([]bool, len(segs))
	var loops []Loop

	for start := 0; start < len(segs); start++ {
		if used[start] {
			continue
		}
		loop := Loop{Segments: []Segment{segs[start]}}
		used[start] = true
		first := segs[start].Points[0]
		cur := last(segs[start])

		for cur != first {
			next, reversed, found := findNext(segs, used, cur)
			if !found {
				return nil, fmt.Errorf("open boundary: no segment continues from (%g, %g)", cur.X, cur.Y)
			}
			s := segs[next]
			if reversed {
				s = reverseSegment(s)
			}
			used[next] = true
			loop.Segments = append(loop.Segments, s)
			cur = last(s)
		}
		loops = append(loops, loop)
	}
	return loops, nil
}

func findNext(segs []Segment, used []bool, from geom.Point) (idx int, reversed, found bool) {
	for i, s := range segs {
		if used[i] {
			continue
		}
		if s.Points[0] == from {
			return i, false, true
		}
		if last(s) == from {
			return i, true, true
		}
	}
	return 0, false, false
}

// orientLoops puts the exterior loop first, counterclockwise, and orients all
// interior loops clockwise.
func orientLoops(loops []Loop) {
	ext := 0
	maxArea := math.Abs(loops[0].Area())
	for i := 1; i < len(loops); i++ {
		if a := math.Abs(loops[i].Area()); a > maxArea {
			maxArea = a
			ext = i
		}
	}
	loops[0], loops[ext] = loops[ext], loops[0]

	if loops[0].Area() < 0 {
		reverseLoop(&loops[0])
	}
	for i := 1; i < len(loops); i++ {
		if loops[i].Area() > 0 {
			reverseLoop(&loops[i])
		}
	}
}

func reverseSegment(s Segment) Segment {
	pts := make([]geom.Point, len(s.Points))
	for i, p := range s.Points {
		pts[len(pts)-1-i] = p
	}
	return Segment{Points: pts, Label: s.Label}
}

// reverseLoop reverses the traversal direction of a closed loop while keeping
// its starting point, so reorientation is stable under repeated normalization.
func reverseLoop(l *Loop) {
	n := len(l.Segments)
	rev := make([]Segment, 0, n)
	for i := n - 1; i >= 0; i-- {
		rev = append(rev, reverseSegment(l.Segments[i]))
	}
	l.Segments = rev
}

func last(s Segment) geom.Point {
	return s.Points[len(s.Points)-1]
}
