package geometry

import (
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/stretchr/testify/require"
)

type glacierRow struct {
	Geometry geom.Polygon
	Name     string `shp:"glac_name"`
}

func square(x0, y0, side float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x0 + side, Y: y0},
		{X: x0 + side, Y: y0 + side},
		{X: x0, Y: y0 + side},
	}}
}

// writeGlacierFixture builds a two-record shapefile the way an RGI outline
// file is laid out: one polygon per glacier with a glac_name attribute.
func writeGlacierFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glaciers.shp")
	enc, err := shp.NewEncoder(path, glacierRow{})
	require.NoError(t, err)
	require.NoError(t, enc.Encode(glacierRow{
		Geometry: square(0, 0, 1000),
		Name:     "Helheim Gletscher",
	}))
	require.NoError(t, enc.Encode(glacierRow{
		Geometry: square(5000, 5000, 2000),
		Name:     "Jakobshavn Isbrae",
	}))
	enc.Close()
	return path
}

func TestFromShapefile(t *testing.T) {
	path := writeGlacierFixture(t)

	c, err := FromShapefile(path, "glac_name", "Jakobshavn Isbrae")
	require.NoError(t, err)
	require.Len(t, c.Segments, 1)
	require.Equal(t, 1, c.Segments[0].Label)

	// Rings come back explicitly closed for segment chaining.
	pts := c.Segments[0].Points
	require.Len(t, pts, 5)
	require.Equal(t, pts[0], pts[4])

	b := c.Bounds()
	require.Equal(t, 5000.0, b.Min.X)
	require.Equal(t, 5000.0, b.Min.Y)
	require.Equal(t, 7000.0, b.Max.X)
	require.Equal(t, 7000.0, b.Max.Y)
}

func TestFromShapefileCaseInsensitive(t *testing.T) {
	path := writeGlacierFixture(t)

	c, err := FromShapefile(path, "GLAC_NAME", "helheim gletscher")
	require.NoError(t, err)
	b := c.Bounds()
	require.Equal(t, 0.0, b.Min.X)
	require.Equal(t, 1000.0, b.Max.X)
}

func TestFromShapefileNoMatch(t *testing.T) {
	path := writeGlacierFixture(t)
	if _, err := FromShapefile(path, "glac_name", "Petermann Gletscher"); err == nil {
		t.Fatal("expected error for an unknown glacier name")
	}
}

func TestFromShapefileMissingField(t *testing.T) {
	path := writeGlacierFixture(t)
	if _, err := FromShapefile(path, "rgi_id", "RGI2000-v7.0-G-05-01234"); err == nil {
		t.Fatal("expected error for a missing attribute field")
	}
}

func TestFromShapefileMissingFile(t *testing.T) {
	if _, err := FromShapefile(filepath.Join(t.TempDir(), "nope.shp"), "glac_name", "x"); err == nil {
		t.Fatal("expected error for a missing file")
	}
}
