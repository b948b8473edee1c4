package mesh

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"

	"github.com/cryoflow/cryoflow/geometry"
)

// edgeKey is a canonical (sorted) vertex pair identifying an undirected edge.
type edgeKey struct {
	lo, hi int
}

func canonicalEdge(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{lo: a, hi: b}
}

type edgeOwner struct {
	tri, edge int
}

// buildConnectivity fills in m.Neighbors by matching canonical edge
// signatures, and returns the unpaired (boundary) edges. An edge shared by
// more than two triangles is a topological defect and an error.
func buildConnectivity(m *Mesh) ([]edgeOwner, error) {
	m.Neighbors = make([][3]int, m.NumCells())
	for t := range m.Neighbors {
		m.Neighbors[t] = [3]int{-1, -1, -1}
	}

	owners := make(map[edgeKey]edgeOwner, 3*m.NumCells()/2)
	for t, tri := range m.Triangles {
		for e := 0; e < 3; e++ {
			key := canonicalEdge(tri[e], tri[(e+1)%3])
			if prev, ok := owners[key]; ok {
				if m.Neighbors[prev.tri][prev.edge] != -1 {
					return nil, fmt.Errorf("edge (%d,%d) shared by more than two triangles", key.lo, key.hi)
				}
				m.Neighbors[t][e] = prev.tri
				m.Neighbors[prev.tri][prev.edge] = t
			} else {
				owners[key] = edgeOwner{tri: t, edge: e}
			}
		}
	}

	var boundary []edgeOwner
	for t := range m.Triangles {
		for e := 0; e < 3; e++ {
			if m.Neighbors[t][e] == -1 {
				boundary = append(boundary, edgeOwner{tri: t, edge: e})
			}
		}
	}
	return boundary, nil
}

// labelBoundary assigns each unpaired mesh edge the label of the nearest
// outline edge. Conforming triangulation may split outline edges, so matching
// is by midpoint distance rather than by vertex identity.
func labelBoundary(m *Mesh, outline *geometry.Outline, unpaired []edgeOwner) {
	type outlineEdge struct {
		a, b  geom.Point
		label int
	}
	var edges []outlineEdge
	for _, loop := range outline.Loops {
		pts, labels := loop.Ring()
		for i := range pts {
			edges = append(edges, outlineEdge{
				a:     pts[i],
				b:     pts[(i+1)%len(pts)],
				label: labels[i],
			})
		}
	}

	m.Boundary = make([]BoundaryEdge, 0, len(unpaired))
	for _, eo := range unpaired {
		v0 := m.Triangles[eo.tri][eo.edge]
		v1 := m.Triangles[eo.tri][(eo.edge+1)%3]
		mid := geom.Point{
			X: (m.Vertices[v0].X + m.Vertices[v1].X) / 2,
			Y: (m.Vertices[v0].Y + m.Vertices[v1].Y) / 2,
		}
		best, bestDist := 0, math.Inf(1)
		for _, oe := range edges {
			if d := distPointSegment(mid, oe.a, oe.b); d < bestDist {
				bestDist = d
				best = oe.label
			}
		}
		m.Boundary = append(m.Boundary, BoundaryEdge{
			V0: v0, V1: v1, Tri: eo.tri, Edge: eo.edge, Label: best,
		})
	}
}

func distPointSegment(p, a, b geom.Point) float64 {
	abx, aby := b.X-a.X, b.Y-a.Y
	apx, apy := p.X-a.X, p.Y-a.Y
	den := abx*abx + aby*aby
	t := 0.0
	if den > 0 {
		t = math.Max(0, math.Min(1, (apx*abx+apy*aby)/den))
	}
	return math.Hypot(p.X-(a.X+t*abx), p.Y-(a.Y+t*aby))
}
