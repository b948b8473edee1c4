package mesh

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/pradeep-pyro/triangle"

	"github.com/cryoflow/cryoflow/geometry"
)

// Generate triangulates a normalized outline at the requested resolution (the
// target edge length, in the outline's length units). Boundary loops are
// densified to the target length and a quasi-uniform lattice of interior
// points is seeded before handing the geometry to the Triangle library for
// conforming Delaunay triangulation.
func Generate(outline *geometry.Outline, resolution float64) (*Mesh, error) {
	if outline == nil || len(outline.Loops) == 0 {
		return nil, fmt.Errorf("empty outline")
	}
	if resolution <= 0 {
		return nil, fmt.Errorf("resolution must be positive, got %g", resolution)
	}

	var pts [][2]float64
	var segs [][2]int32

	for _, loop := range outline.Loops {
		ring, _ := loop.Ring()
		if len(ring) < 3 {
			return nil, fmt.Errorf("degenerate loop with %d vertices", len(ring))
		}
		dense := densifyRing(ring, resolution)
		base := int32(len(pts))
		n := int32(len(dense))
		for _, p := range dense {
			pts = append(pts, [2]float64{p.X, p.Y})
		}
		for i := int32(0); i < n; i++ {
			segs = append(segs, [2]int32{base + i, base + (i+1)%n})
		}
	}

	interior, err := seedInterior(outline, resolution, pts)
	if err != nil {
		return nil, err
	}
	pts = append(pts, interior...)

	holes := holeMarkers(outline)
	if len(holes) == 0 {
		// The binding dereferences the hole list unconditionally, so a
		// hole-free outline needs a placeholder marker. A point outside the
		// boundary lies in the exterior region the triangulator discards
		// anyway, making the marker a no-op.
		holes = [][2]float64{exteriorMarker(outline, resolution)}
	}

	verts, faces := triangle.ConformingDelaunay(pts, segs, holes)
	if len(faces) == 0 {
		return nil, fmt.Errorf("triangulation produced no cells; outline may be malformed")
	}

	m := &Mesh{
		Vertices:  make([]geom.Point, len(verts)),
		Triangles: make([][3]int, len(faces)),
	}
	for i, v := range verts {
		m.Vertices[i] = geom.Point{X: v[0], Y: v[1]}
	}
	for i, f := range faces {
		m.Triangles[i] = [3]int{int(f[0]), int(f[1]), int(f[2])}
		// Triangle output is usually counterclockwise; fix any stragglers.
		if m.SignedArea(i) < 0 {
			m.Triangles[i][1], m.Triangles[i][2] = m.Triangles[i][2], m.Triangles[i][1]
		}
	}

	unpaired, err := buildConnectivity(m)
	if err != nil {
		return nil, err
	}
	labelBoundary(m, outline, unpaired)

	if err := m.Verify(); err != nil {
		return nil, fmt.Errorf("generated mesh failed verification: %w", err)
	}
	return m, nil
}

// densifyRing splits every ring edge longer than the resolution into equal
// pieces so the boundary discretization matches the interior point spacing.
func densifyRing(ring []geom.Point, resolution float64) []geom.Point {
	var out []geom.Point
	n := len(ring)
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]
		out = append(out, a)
		length := math.Hypot(b.X-a.X, b.Y-a.Y)
		pieces := int(math.Ceil(length / resolution))
		for k := 1; k < pieces; k++ {
			f := float64(k) / float64(pieces)
			out = append(out, geom.Point{X: a.X + f*(b.X-a.X), Y: a.Y + f*(b.Y-a.Y)})
		}
	}
	return out
}

// seedInterior lays a triangular lattice of points with spacing equal to the
// resolution over the domain interior, skipping points too close to the
// boundary discretization to avoid sliver elements.
func seedInterior(outline *geometry.Outline, resolution float64, boundary [][2]float64) ([][2]float64, error) {
	poly, err := outlinePolygon(outline)
	if err != nil {
		return nil, err
	}
	b := outline.Bounds()

	clearance := 0.7 * resolution
	var seeds [][2]float64
	row := 0
	dy := resolution * math.Sqrt(3) / 2
	for y := b.Min.Y + dy; y < b.Max.Y; y += dy {
		xoff := 0.0
		if row%2 == 1 {
			xoff = resolution / 2
		}
		row++
		for x := b.Min.X + xoff; x < b.Max.X; x += resolution {
			p := geom.Point{X: x, Y: y}
			if p.Within(poly) != geom.Inside {
				continue
			}
			if nearAny(p, boundary, clearance) {
				continue
			}
			seeds = append(seeds, [2]float64{x, y})
		}
	}
	return seeds, nil
}

func nearAny(p geom.Point, pts [][2]float64, tol float64) bool {
	for _, q := range pts {
		if math.Hypot(p.X-q[0], p.Y-q[1]) < tol {
			return true
		}
	}
	return false
}

// outlinePolygon converts the outline loops into a geom.Polygon for
// point-in-domain queries.
func outlinePolygon(outline *geometry.Outline) (geom.Polygon, error) {
	poly := make(geom.Polygon, 0, len(outline.Loops))
	for _, loop := range outline.Loops {
		ring, _ := loop.Ring()
		if len(ring) < 3 {
			return nil, fmt.Errorf("degenerate loop with %d vertices", len(ring))
		}
		closed := make([]geom.Point, 0, len(ring)+1)
		closed = append(closed, ring...)
		closed = append(closed, ring[0])
		poly = append(poly, closed)
	}
	return poly, nil
}

// exteriorMarker returns a point strictly outside the outline's bounding box.
func exteriorMarker(outline *geometry.Outline, resolution float64) [2]float64 {
	b := outline.Bounds()
	return [2]float64{
		b.Max.X + (b.Max.X - b.Min.X) + resolution,
		b.Max.Y + (b.Max.Y - b.Min.Y) + resolution,
	}
}

// holeMarkers returns one marker point strictly inside each interior loop,
// which the Triangle library uses to carve holes out of the triangulation.
func holeMarkers(outline *geometry.Outline) [][2]float64 {
	var holes [][2]float64
	for _, loop := range outline.Loops[1:] {
		ring, _ := loop.Ring()
		p := interiorPoint(ring)
		holes = append(holes, [2]float64{p.X, p.Y})
	}
	return holes
}

// interiorPoint finds a point inside a simple ring: the centroid when it
// lands inside, otherwise a point offset inward from the midpoint of the
// ring's longest edge.
func interiorPoint(ring []geom.Point) geom.Point {
	var cx, cy float64
	for _, p := range ring {
		cx += p.X
		cy += p.Y
	}
	c := geom.Point{X: cx / float64(len(ring)), Y: cy / float64(len(ring))}

	poly := geom.Polygon{append(append([]geom.Point{}, ring...), ring[0])}
	if c.Within(poly) == geom.Inside {
		return c
	}

	longest, maxLen := 0, 0.0
	n := len(ring)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		if l := math.Hypot(b.X-a.X, b.Y-a.Y); l > maxLen {
			maxLen = l
			longest = i
		}
	}
	a, b := ring[longest], ring[(longest+1)%n]
	mid := geom.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	// Inward normal for a clockwise hole ring points left of the edge.
	nx, ny := -(b.Y-a.Y)/maxLen, (b.X-a.X)/maxLen
	for eps := maxLen / 100; eps > maxLen/1e6; eps /= 2 {
		p := geom.Point{X: mid.X + eps*nx, Y: mid.Y + eps*ny}
		if p.Within(poly) == geom.Inside {
			return p
		}
		p = geom.Point{X: mid.X - eps*nx, Y: mid.Y - eps*ny}
		if p.Within(poly) == geom.Inside {
			return p
		}
	}
	return c
}
