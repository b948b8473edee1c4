package geometry

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

const lonLatProj = "+proj=longlat +datum=WGS84 +no_defs"

// EstimateUTMZone returns the UTM zone containing the collection's centroid
// and whether it lies in the southern hemisphere. The collection must be in
// longitude/latitude coordinates.
func EstimateUTMZone(c Collection) (zone int, south bool, err error) {
	b := c.Bounds()
	lon := (b.Min.X + b.Max.X) / 2
	lat := (b.Min.Y + b.Max.Y) / 2
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return 0, false, fmt.Errorf("coordinates (%g, %g) do not look like lon/lat", lon, lat)
	}
	zone = int(math.Floor((lon+180)/6)) + 1
	if zone > 60 {
		zone = 60
	}
	return zone, lat < 0, nil
}

// ProjectToUTM reprojects a lon/lat outline collection onto the estimated UTM
// zone so that meshing and physics operate in meters.
func ProjectToUTM(c Collection) (Collection, error) {
	zone, south, err := EstimateUTMZone(c)
	if err != nil {
		return Collection{}, err
	}
	utm := fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", zone)
	if south {
		utm += " +south"
	}
	return Reproject(c, lonLatProj, utm)
}

// Reproject transforms every segment point from the source to the destination
// spatial reference, both given in PROJ.4 format.
func Reproject(c Collection, srcProj, dstProj string) (Collection, error) {
	src, err := proj.Parse(srcProj)
	if err != nil {
		return Collection{}, fmt.Errorf("parsing source projection: %w", err)
	}
	dst, err := proj.Parse(dstProj)
	if err != nil {
		return Collection{}, fmt.Errorf("parsing destination projection: %w", err)
	}
	t, err := src.NewTransform(dst)
	if err != nil {
		return Collection{}, fmt.Errorf("building transform: %w", err)
	}

	out := Collection{Segments: make([]Segment, len(c.Segments))}
	for i, s := range c.Segments {
		pts := make([]geom.Point, len(s.Points))
		for j, p := range s.Points {
			g, err := p.Transform(t)
			if err != nil {
				return Collection{}, fmt.Errorf("transforming (%g, %g): %w", p.X, p.Y, err)
			}
			pts[j] = g.(geom.Point)
		}
		out.Segments[i] = Segment{Points: pts, Label: s.Label}
	}
	return out, nil
}
