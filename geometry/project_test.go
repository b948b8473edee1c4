package geometry

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/require"
)

// lonLatBox builds a closed rectangular outline in degrees centered on
// (lon, lat) with the given half-widths.
func lonLatBox(lon, lat, dlon, dlat float64) Collection {
	return Collection{Segments: []Segment{{
		Points: []geom.Point{
			{X: lon - dlon, Y: lat - dlat},
			{X: lon + dlon, Y: lat - dlat},
			{X: lon + dlon, Y: lat + dlat},
			{X: lon - dlon, Y: lat + dlat},
			{X: lon - dlon, Y: lat - dlat},
		},
		Label: 1,
	}}}
}

func TestEstimateUTMZone(t *testing.T) {
	cases := []struct {
		name     string
		lon, lat float64
		zone     int
		south    bool
	}{
		{"dateLineWest", -177, 64, 1, false},
		{"jakobshavn", -49.6, 69.1, 22, false},
		{"amery", 71, -70, 42, true},
		{"greenwich", 0.5, 51, 31, false},
		{"dateLineEastClamped", 179.9, -45, 60, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			zone, south, err := EstimateUTMZone(lonLatBox(c.lon, c.lat, 0.05, 0.05))
			require.NoError(t, err)
			require.Equal(t, c.zone, zone)
			require.Equal(t, c.south, south)
		})
	}
}

func TestEstimateUTMZoneRejectsProjected(t *testing.T) {
	// Coordinates in meters cannot be mistaken for degrees.
	c := lonLatBox(500000, 7.66e6, 1000, 1000)
	if _, _, err := EstimateUTMZone(c); err == nil {
		t.Fatal("expected error for non-geographic coordinates")
	}
}

func TestProjectToUTMRoundTrip(t *testing.T) {
	const (
		lon  = -49.6
		lat  = 69.1
		dlon = 0.05
		dlat = 0.02
	)
	c := lonLatBox(lon, lat, dlon, dlat)

	utm, err := ProjectToUTM(c)
	require.NoError(t, err)
	require.Len(t, utm.Segments, 1)
	require.Equal(t, 1, utm.Segments[0].Label)

	// The projected box must have meter-scale extents: a degree of
	// longitude at 69 N spans about 40 km.
	b := utm.Bounds()
	width := b.Max.X - b.Min.X
	height := b.Max.Y - b.Min.Y
	expectWidth := 2 * dlon * 111320 * math.Cos(lat*math.Pi/180)
	expectHeight := 2 * dlat * 111320
	require.InDelta(t, expectWidth, width, 0.02*expectWidth)
	require.InDelta(t, expectHeight, height, 0.02*expectHeight)

	// Projecting back must recover the original coordinates.
	back, err := Reproject(utm, "+proj=utm +zone=22 +datum=WGS84 +units=m +no_defs", "+proj=longlat +datum=WGS84 +no_defs")
	require.NoError(t, err)
	for i, s := range back.Segments {
		for j, p := range s.Points {
			orig := c.Segments[i].Points[j]
			require.InDelta(t, orig.X, p.X, 1e-6)
			require.InDelta(t, orig.Y, p.Y, 1e-6)
		}
	}
}

func TestProjectToUTMSouthernHemisphere(t *testing.T) {
	utm, err := ProjectToUTM(lonLatBox(71, -70, 0.05, 0.02))
	require.NoError(t, err)

	// A +south zone uses a 10,000 km false northing, so northings stay
	// positive south of the equator.
	b := utm.Bounds()
	if b.Min.Y <= 0 {
		t.Errorf("southern-hemisphere northing %g is not positive", b.Min.Y)
	}
}

func TestReprojectBadProjection(t *testing.T) {
	c := lonLatBox(0, 0, 1, 1)
	if _, err := Reproject(c, "not a projection", lonLatProj); err == nil {
		t.Error("expected error for invalid source projection")
	}
	if _, err := Reproject(c, lonLatProj, "not a projection"); err == nil {
		t.Error("expected error for invalid destination projection")
	}
}
