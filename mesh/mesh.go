// Package mesh builds and stores triangulated glacier domains.
//
// Triangulation itself is delegated to the Triangle library bindings; this
// package prepares the input geometry, recovers connectivity and boundary
// labels from the output, and exposes the per-element geometry (areas, shape
// function gradients) that the field and flow packages consume. A Mesh is
// immutable once generated.
package mesh

import (
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/geom"
)

// Mesh is a conforming triangulation of a glacier domain.
type Mesh struct {
	Vertices  []geom.Point
	Triangles [][3]int // vertex indices, counterclockwise

	// Neighbors[t][e] is the triangle sharing edge e of triangle t, or -1 on
	// the boundary. Edge e runs from vertex e to vertex (e+1)%3.
	Neighbors [][3]int

	// Boundary lists every boundary edge with the outline label it inherited.
	Boundary []BoundaryEdge
}

// BoundaryEdge is a mesh edge on the domain boundary.
type BoundaryEdge struct {
	V0, V1 int // vertex indices, in triangle orientation
	Tri    int // owning triangle
	Edge   int // local edge index within Tri
	Label  int // outline segment label
}

// New rebuilds a mesh from stored vertices and triangles, as when loading a
// checkpoint. Connectivity is recomputed; boundary labels are looked up in
// labels, keyed by sorted vertex pair, defaulting to zero for unknown edges.
func New(vertices []geom.Point, triangles [][3]int, labels map[[2]int]int) (*Mesh, error) {
	m := &Mesh{Vertices: vertices, Triangles: triangles}
	unpaired, err := buildConnectivity(m)
	if err != nil {
		return nil, err
	}
	m.Boundary = make([]BoundaryEdge, 0, len(unpaired))
	for _, eo := range unpaired {
		v0 := m.Triangles[eo.tri][eo.edge]
		v1 := m.Triangles[eo.tri][(eo.edge+1)%3]
		key := canonicalEdge(v0, v1)
		m.Boundary = append(m.Boundary, BoundaryEdge{
			V0: v0, V1: v1, Tri: eo.tri, Edge: eo.edge,
			Label: labels[[2]int{key.lo, key.hi}],
		})
	}
	if err := m.Verify(); err != nil {
		return nil, err
	}
	return m, nil
}

// NumVertices returns the number of mesh vertices.
func (m *Mesh) NumVertices() int { return len(m.Vertices) }

// NumCells returns the number of triangles.
func (m *Mesh) NumCells() int { return len(m.Triangles) }

// Area returns the (positive) area of triangle t.
func (m *Mesh) Area(t int) float64 {
	return m.SignedArea(t)
}

// SignedArea returns the signed area of triangle t; positive means the
// triangle is counterclockwise.
func (m *Mesh) SignedArea(t int) float64 {
	a := m.Vertices[m.Triangles[t][0]]
	b := m.Vertices[m.Triangles[t][1]]
	c := m.Vertices[m.Triangles[t][2]]
	return ((b.X-a.X)*(c.Y-a.Y) - (c.X-a.X)*(b.Y-a.Y)) / 2
}

// TotalArea returns the area of the whole domain.
func (m *Mesh) TotalArea() float64 {
	var sum float64
	for t := range m.Triangles {
		sum += m.Area(t)
	}
	return sum
}

// Centroid returns the centroid of triangle t.
func (m *Mesh) Centroid(t int) geom.Point {
	a := m.Vertices[m.Triangles[t][0]]
	b := m.Vertices[m.Triangles[t][1]]
	c := m.Vertices[m.Triangles[t][2]]
	return geom.Point{X: (a.X + b.X + c.X) / 3, Y: (a.Y + b.Y + c.Y) / 3}
}

// GradShape returns the gradients of the three linear shape functions on
// triangle t. dx[i], dy[i] are the components of grad(phi_i), constant over
// the triangle.
func (m *Mesh) GradShape(t int) (dx, dy [3]float64) {
	a := m.Vertices[m.Triangles[t][0]]
	b := m.Vertices[m.Triangles[t][1]]
	c := m.Vertices[m.Triangles[t][2]]
	twoA := 2 * m.SignedArea(t)
	dx[0] = (b.Y - c.Y) / twoA
	dx[1] = (c.Y - a.Y) / twoA
	dx[2] = (a.Y - b.Y) / twoA
	dy[0] = (c.X - b.X) / twoA
	dy[1] = (a.X - c.X) / twoA
	dy[2] = (b.X - a.X) / twoA
	return dx, dy
}

// Quality summarizes mesh quality statistics.
type Quality struct {
	MinAngle  float64 // degrees
	MinArea   float64
	MaxArea   float64
	NumCells  int
	NumVerts  int
	NumBEdges int
}

// QualityStats computes quality statistics over all triangles.
func (m *Mesh) QualityStats() Quality {
	q := Quality{
		MinAngle:  180,
		MinArea:   math.Inf(1),
		NumCells:  m.NumCells(),
		NumVerts:  m.NumVertices(),
		NumBEdges: len(m.Boundary),
	}
	for t := range m.Triangles {
		a := m.Area(t)
		q.MinArea = math.Min(q.MinArea, a)
		q.MaxArea = math.Max(q.MaxArea, a)
		for e := 0; e < 3; e++ {
			if ang := m.angle(t, e); ang < q.MinAngle {
				q.MinAngle = ang
			}
		}
	}
	return q
}

func (m *Mesh) angle(t, v int) float64 {
	p := m.Vertices[m.Triangles[t][v]]
	a := m.Vertices[m.Triangles[t][(v+1)%3]]
	b := m.Vertices[m.Triangles[t][(v+2)%3]]
	ux, uy := a.X-p.X, a.Y-p.Y
	vx, vy := b.X-p.X, b.Y-p.Y
	cos := (ux*vx + uy*vy) / (math.Hypot(ux, uy) * math.Hypot(vx, vy))
	return math.Acos(math.Max(-1, math.Min(1, cos))) * 180 / math.Pi
}

// Verify checks structural invariants: index bounds, positive orientation,
// neighbor symmetry, and that every edge is either shared by exactly two
// triangles or listed once as a boundary edge.
func (m *Mesh) Verify() error {
	nv := m.NumVertices()
	for t, tri := range m.Triangles {
		for _, v := range tri {
			if v < 0 || v >= nv {
				return fmt.Errorf("triangle %d references vertex %d (have %d vertices)", t, v, nv)
			}
		}
		if m.SignedArea(t) <= 0 {
			return fmt.Errorf("triangle %d has non-positive area %g", t, m.SignedArea(t))
		}
	}

	for t := range m.Triangles {
		for e := 0; e < 3; e++ {
			n := m.Neighbors[t][e]
			if n == -1 {
				continue
			}
			if n < 0 || n >= m.NumCells() {
				return fmt.Errorf("triangle %d edge %d has invalid neighbor %d", t, e, n)
			}
			// Symmetry: the neighbor must point back at us.
			back := false
			for f := 0; f < 3; f++ {
				if m.Neighbors[n][f] == t {
					back = true
				}
			}
			if !back {
				return fmt.Errorf("neighbor asymmetry between triangles %d and %d", t, n)
			}
		}
	}

	// Conservation: boundary edge count must equal the number of unpaired
	// triangle edges.
	unpaired := 0
	for t := range m.Triangles {
		for e := 0; e < 3; e++ {
			if m.Neighbors[t][e] == -1 {
				unpaired++
			}
		}
	}
	if unpaired != len(m.Boundary) {
		return fmt.Errorf("conservation error: %d unpaired edges but %d boundary edges",
			unpaired, len(m.Boundary))
	}
	return nil
}

// BoundaryVertices returns the set of vertices lying on boundary edges with
// one of the given labels. With no labels, all boundary vertices are returned.
func (m *Mesh) BoundaryVertices(labels ...int) []int {
	want := map[int]bool{}
	for _, l := range labels {
		want[l] = true
	}
	seen := map[int]bool{}
	for _, be := range m.Boundary {
		if len(labels) > 0 && !want[be.Label] {
			continue
		}
		seen[be.V0] = true
		seen[be.V1] = true
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	return out
}

// String returns a summary of the mesh.
func (m *Mesh) String() string {
	var sb strings.Builder
	q := m.QualityStats()
	sb.WriteString("=== Mesh Summary ===\n")
	sb.WriteString(fmt.Sprintf("  Vertices: %d\n", q.NumVerts))
	sb.WriteString(fmt.Sprintf("  Triangles: %d\n", q.NumCells))
	sb.WriteString(fmt.Sprintf("  Boundary edges: %d\n", q.NumBEdges))
	sb.WriteString(fmt.Sprintf("  Total area: %.6g\n", m.TotalArea()))
	sb.WriteString(fmt.Sprintf("  Triangle area range: [%.4g, %.4g]\n", q.MinArea, q.MaxArea))
	sb.WriteString(fmt.Sprintf("  Minimum angle: %.2f deg\n", q.MinAngle))
	return sb.String()
}
