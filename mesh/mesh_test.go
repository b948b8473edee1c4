package mesh

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/require"

	"github.com/cryoflow/cryoflow/geometry"
)

// squareOutline builds a unit square with labeled sides:
// 1=bottom, 2=right, 3=top, 4=left.
func squareOutline(t *testing.T) *geometry.Outline {
	t.Helper()
	c := geometry.Collection{Segments: []geometry.Segment{
		{Points: []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}, Label: 1},
		{Points: []geom.Point{{X: 1, Y: 0}, {X: 1, Y: 1}}, Label: 2},
		{Points: []geom.Point{{X: 1, Y: 1}, {X: 0, Y: 1}}, Label: 3},
		{Points: []geom.Point{{X: 0, Y: 1}, {X: 0, Y: 0}}, Label: 4},
	}}
	outline, err := geometry.BuildOutline(c)
	require.NoError(t, err)
	return outline
}

func annulusOutline(t *testing.T) *geometry.Outline {
	t.Helper()
	square := geometry.Segment{Points: []geom.Point{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0},
	}, Label: 1}
	r := 0.2
	n := 32
	hole := geometry.Segment{Label: 2}
	for i := 0; i <= n; i++ {
		th := 2 * math.Pi * float64(i%n) / float64(n)
		hole.Points = append(hole.Points, geom.Point{
			X: 0.5 + r*math.Cos(th), Y: 0.5 + r*math.Sin(th),
		})
	}
	outline, err := geometry.BuildOutline(geometry.Collection{Segments: []geometry.Segment{square, hole}})
	require.NoError(t, err)
	return outline
}

func TestGenerateSquare(t *testing.T) {
	m, err := Generate(squareOutline(t), 0.1)
	require.NoError(t, err)

	if m.NumCells() == 0 {
		t.Fatal("mesh has no cells")
	}
	require.NoError(t, m.Verify())
	require.InDelta(t, 1.0, m.TotalArea(), 1e-9)

	q := m.QualityStats()
	if q.MinAngle < 15 {
		t.Errorf("minimum angle %.2f deg is too small", q.MinAngle)
	}
	if q.MaxArea > 5*0.1*0.1 {
		t.Errorf("largest triangle area %g exceeds resolution budget", q.MaxArea)
	}
}

func TestGenerateBoundaryLabels(t *testing.T) {
	m, err := Generate(squareOutline(t), 0.25)
	require.NoError(t, err)

	seen := map[int]int{}
	for _, be := range m.Boundary {
		seen[be.Label]++
		// Every labeled boundary edge must lie on the matching side of the square.
		mid := geom.Point{
			X: (m.Vertices[be.V0].X + m.Vertices[be.V1].X) / 2,
			Y: (m.Vertices[be.V0].Y + m.Vertices[be.V1].Y) / 2,
		}
		var ok bool
		switch be.Label {
		case 1:
			ok = math.Abs(mid.Y) < 1e-9
		case 2:
			ok = math.Abs(mid.X-1) < 1e-9
		case 3:
			ok = math.Abs(mid.Y-1) < 1e-9
		case 4:
			ok = math.Abs(mid.X) < 1e-9
		}
		if !ok {
			t.Errorf("boundary edge at (%g, %g) mislabeled %d", mid.X, mid.Y, be.Label)
		}
	}
	for label := 1; label <= 4; label++ {
		if seen[label] == 0 {
			t.Errorf("no boundary edges labeled %d", label)
		}
	}
}

func TestGenerateAnnulus(t *testing.T) {
	m, err := Generate(annulusOutline(t), 0.08)
	require.NoError(t, err)
	require.NoError(t, m.Verify())

	// Exact area of the polygonal annulus: square minus inscribed 32-gon.
	r := 0.2
	n := 32.0
	holeArea := 0.5 * n * r * r * math.Sin(2*math.Pi/n)
	require.InDelta(t, 1.0-holeArea, m.TotalArea(), 1e-9)

	// The hole boundary must carry its own label.
	if got := len(m.BoundaryVertices(2)); got == 0 {
		t.Error("no boundary vertices on the hole loop")
	}
}

// Outlines without interior loops are the common case; the triangulator
// bindings require a non-empty hole list, so Generate must supply a harmless
// placeholder rather than fail.
func TestGenerateWithoutHoles(t *testing.T) {
	// Non-convex L-shaped domain, single loop, no holes.
	c := geometry.Collection{Segments: []geometry.Segment{
		{Points: []geom.Point{
			{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 1},
			{X: 1, Y: 1}, {X: 1, Y: 2}, {X: 0, Y: 2}, {X: 0, Y: 0},
		}, Label: 1},
	}}
	outline, err := geometry.BuildOutline(c)
	require.NoError(t, err)

	for _, res := range []float64{0.5, 0.2, 0.1} {
		m, err := Generate(outline, res)
		require.NoError(t, err)
		require.NoError(t, m.Verify())
		if m.NumCells() == 0 {
			t.Fatalf("resolution %g: mesh has no cells", res)
		}
		require.InDelta(t, 3.0, m.TotalArea(), 1e-9)
	}
}

func TestGenerateErrors(t *testing.T) {
	t.Run("nilOutline", func(t *testing.T) {
		if _, err := Generate(nil, 0.1); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("badResolution", func(t *testing.T) {
		if _, err := Generate(squareOutline(t), -1); err == nil {
			t.Error("expected error")
		}
	})
}

func TestGradShapePartitionOfUnity(t *testing.T) {
	m, err := Generate(squareOutline(t), 0.2)
	require.NoError(t, err)

	for tr := range m.Triangles {
		dx, dy := m.GradShape(tr)
		sumX := dx[0] + dx[1] + dx[2]
		sumY := dy[0] + dy[1] + dy[2]
		if math.Abs(sumX) > 1e-10 || math.Abs(sumY) > 1e-10 {
			t.Fatalf("triangle %d: shape gradients do not sum to zero (%g, %g)", tr, sumX, sumY)
		}
	}
}

func TestGradShapeLinearExactness(t *testing.T) {
	m, err := Generate(squareOutline(t), 0.3)
	require.NoError(t, err)

	// The P1 gradient of f(x,y) = 3x - 2y must be exactly (3, -2) everywhere.
	f := make([]float64, m.NumVertices())
	for i, v := range m.Vertices {
		f[i] = 3*v.X - 2*v.Y
	}
	for tr, tri := range m.Triangles {
		dx, dy := m.GradShape(tr)
		var gx, gy float64
		for k := 0; k < 3; k++ {
			gx += dx[k] * f[tri[k]]
			gy += dy[k] * f[tri[k]]
		}
		if math.Abs(gx-3) > 1e-9 || math.Abs(gy+2) > 1e-9 {
			t.Fatalf("triangle %d: gradient (%g, %g), want (3, -2)", tr, gx, gy)
		}
	}
}
