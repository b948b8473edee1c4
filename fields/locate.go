package fields

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
)

// Locator finds the triangle containing a query point, using an R-tree over
// triangle bounding boxes. Build one per mesh and reuse it; construction
// walks every triangle.
type Locator struct {
	space *Space
	tree  *rtree.Rtree
}

type triEntry struct {
	bounds *geom.Bounds
	index  int
}

func (t *triEntry) Bounds() *geom.Bounds { return t.bounds }

func (t *triEntry) Len() int { return t.bounds.Len() }

func (t *triEntry) Points() func() geom.Point { return t.bounds.Points() }

func (t *triEntry) Similar(g geom.Geom, tol float64) bool { return t.bounds.Similar(g, tol) }

func (t *triEntry) Transform(tr proj.Transformer) (geom.Geom, error) {
	return t.bounds.Transform(tr)
}

// NewLocator indexes all triangles of the space's mesh.
func NewLocator(s *Space) *Locator {
	tree := rtree.NewTree(25, 50)
	m := s.Mesh
	for t, tri := range m.Triangles {
		b := geom.NewBounds()
		for _, v := range tri {
			b.Extend(m.Vertices[v].Bounds())
		}
		tree.Insert(&triEntry{bounds: b, index: t})
	}
	return &Locator{space: s, tree: tree}
}

// Locate returns the triangle containing (x, y) and the barycentric
// coordinates of the point within it.
func (l *Locator) Locate(x, y float64) (tri int, bary [3]float64, err error) {
	p := geom.Point{X: x, Y: y}
	for _, hit := range l.tree.SearchIntersect(p.Bounds()) {
		t := hit.(*triEntry).index
		if b, inside := l.barycentric(t, x, y); inside {
			return t, b, nil
		}
	}
	return 0, bary, fmt.Errorf("point (%g, %g) is outside the mesh", x, y)
}

// Eval interpolates a scalar function at an arbitrary point.
func (l *Locator) Eval(f *Function, x, y float64) (float64, error) {
	t, b, err := l.Locate(x, y)
	if err != nil {
		return 0, err
	}
	tri := l.space.Mesh.Triangles[t]
	return b[0]*f.Vals[tri[0]] + b[1]*f.Vals[tri[1]] + b[2]*f.Vals[tri[2]], nil
}

// EvalVector interpolates a vector function at an arbitrary point.
func (l *Locator) EvalVector(u *VectorFunction, x, y float64) (float64, float64, error) {
	t, b, err := l.Locate(x, y)
	if err != nil {
		return 0, 0, err
	}
	tri := l.space.Mesh.Triangles[t]
	ux := b[0]*u.X[tri[0]] + b[1]*u.X[tri[1]] + b[2]*u.X[tri[2]]
	uy := b[0]*u.Y[tri[0]] + b[1]*u.Y[tri[1]] + b[2]*u.Y[tri[2]]
	return ux, uy, nil
}

const baryTol = 1e-10

func (l *Locator) barycentric(t int, x, y float64) ([3]float64, bool) {
	m := l.space.Mesh
	a := m.Vertices[m.Triangles[t][0]]
	b := m.Vertices[m.Triangles[t][1]]
	c := m.Vertices[m.Triangles[t][2]]

	det := (b.X-a.X)*(c.Y-a.Y) - (c.X-a.X)*(b.Y-a.Y)
	l1 := ((b.X-x)*(c.Y-y) - (c.X-x)*(b.Y-y)) / det
	l2 := ((c.X-x)*(a.Y-y) - (a.X-x)*(c.Y-y)) / det
	l3 := 1 - l1 - l2

	if l1 < -baryTol || l2 < -baryTol || l3 < -baryTol {
		return [3]float64{}, false
	}
	return [3]float64{l1, l2, l3}, true
}
