// Package checkpoint saves and restores simulation state. A checkpoint is a
// single NetCDF file holding the mesh (vertices, triangles, labeled boundary
// edges) together with any number of named scalar and vector fields defined
// on it, so a long run can resume or a finished run can be inspected offline.
package checkpoint

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"

	"github.com/cryoflow/cryoflow/fields"
	"github.com/cryoflow/cryoflow/mesh"
)

// Reserved variable names describing the mesh itself; field names must not
// collide with them.
var meshVars = map[string]bool{
	"x": true, "y": true, "triangles": true,
	"boundary_v0": true, "boundary_v1": true, "boundary_label": true,
}

// Vector fields are stored as component pairs with these suffixes.
const (
	suffixX = "_x"
	suffixY = "_y"
)

// State is the content of a checkpoint: one mesh and the fields living on it.
type State struct {
	Space   *fields.Space
	Scalars map[string]*fields.Function
	Vectors map[string]*fields.VectorFunction
}

// NewState returns an empty state on the given function space.
func NewState(s *fields.Space) *State {
	return &State{
		Space:   s,
		Scalars: map[string]*fields.Function{},
		Vectors: map[string]*fields.VectorFunction{},
	}
}

func (st *State) validate() error {
	if st.Space == nil {
		return fmt.Errorf("checkpoint state has no function space")
	}
	for name, f := range st.Scalars {
		if err := validFieldName(name); err != nil {
			return err
		}
		if f.Space != st.Space {
			return fmt.Errorf("field %q lives on a different mesh", name)
		}
	}
	for name, v := range st.Vectors {
		if err := validFieldName(name); err != nil {
			return err
		}
		if v.Space != st.Space {
			return fmt.Errorf("field %q lives on a different mesh", name)
		}
	}
	return nil
}

func validFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("empty field name")
	}
	if meshVars[name] || meshVars[name+suffixX] {
		return fmt.Errorf("field name %q collides with a mesh variable", name)
	}
	// The component suffixes are reserved: a scalar named thickness_x next to
	// a thickness_y would read back as a vector.
	if strings.HasSuffix(name, suffixX) || strings.HasSuffix(name, suffixY) {
		return fmt.Errorf("field name %q ends with a reserved vector component suffix", name)
	}
	return nil
}

// Write saves the state to a NetCDF checkpoint file.
func Write(filename string, st *State) error {
	if err := st.validate(); err != nil {
		return err
	}
	m := st.Space.Mesh
	nv, nt, nb := m.NumVertices(), m.NumCells(), len(m.Boundary)

	h := cdf.NewHeader(
		[]string{"vertex", "triangle", "corner", "bedge"},
		[]int{nv, nt, 3, nb},
	)
	h.AddVariable("x", []string{"vertex"}, []float64{0})
	h.AddVariable("y", []string{"vertex"}, []float64{0})
	h.AddVariable("triangles", []string{"triangle", "corner"}, []int32{0})
	h.AddVariable("boundary_v0", []string{"bedge"}, []int32{0})
	h.AddVariable("boundary_v1", []string{"bedge"}, []int32{0})
	h.AddVariable("boundary_label", []string{"bedge"}, []int32{0})

	// Deterministic variable order keeps checkpoint files reproducible.
	for _, name := range sortedKeys(st.Scalars) {
		h.AddVariable(name, []string{"vertex"}, []float64{0})
	}
	for _, name := range sortedKeys(st.Vectors) {
		h.AddVariable(name+suffixX, []string{"vertex"}, []float64{0})
		h.AddVariable(name+suffixY, []string{"vertex"}, []float64{0})
	}
	h.Define()

	ff, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer ff.Close()

	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("creating checkpoint %s: %w", filename, err)
	}

	x := make([]float64, nv)
	y := make([]float64, nv)
	for i, v := range m.Vertices {
		x[i], y[i] = v.X, v.Y
	}
	tris := make([]int32, 3*nt)
	for t, tri := range m.Triangles {
		for k := 0; k < 3; k++ {
			tris[3*t+k] = int32(tri[k])
		}
	}
	bv0 := make([]int32, nb)
	bv1 := make([]int32, nb)
	blab := make([]int32, nb)
	for i, be := range m.Boundary {
		bv0[i], bv1[i], blab[i] = int32(be.V0), int32(be.V1), int32(be.Label)
	}

	write := func(name string, data interface{}) error {
		w := f.Writer(name, nil, nil)
		if _, werr := w.Write(data); werr != nil {
			return fmt.Errorf("writing %s to %s: %w", name, filename, werr)
		}
		return nil
	}
	if err := write("x", x); err != nil {
		return err
	}
	if err := write("y", y); err != nil {
		return err
	}
	if err := write("triangles", tris); err != nil {
		return err
	}
	if err := write("boundary_v0", bv0); err != nil {
		return err
	}
	if err := write("boundary_v1", bv1); err != nil {
		return err
	}
	if err := write("boundary_label", blab); err != nil {
		return err
	}
	for _, name := range sortedKeys(st.Scalars) {
		if err := write(name, st.Scalars[name].Vals); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(st.Vectors) {
		if err := write(name+suffixX, st.Vectors[name].X); err != nil {
			return err
		}
		if err := write(name+suffixY, st.Vectors[name].Y); err != nil {
			return err
		}
	}
	return cdf.UpdateNumRecs(ff)
}

// Read restores a checkpoint: the mesh is rebuilt with full connectivity, and
// every non-mesh variable comes back as a scalar field, with _x/_y component
// pairs reassembled into vector fields.
func Read(filename string) (*State, error) {
	ff, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer ff.Close()

	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint %s: %w", filename, err)
	}

	x, err := readFloats(f, "x")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	y, err := readFloats(f, "y")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%s: %d x coordinates but %d y", filename, len(x), len(y))
	}
	verts := make([]geom.Point, len(x))
	for i := range x {
		verts[i] = geom.Point{X: x[i], Y: y[i]}
	}

	tris, err := readInts(f, "triangles")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if len(tris)%3 != 0 {
		return nil, fmt.Errorf("%s: triangle array length %d not divisible by 3", filename, len(tris))
	}
	triangles := make([][3]int, len(tris)/3)
	for t := range triangles {
		triangles[t] = [3]int{int(tris[3*t]), int(tris[3*t+1]), int(tris[3*t+2])}
	}

	bv0, err := readInts(f, "boundary_v0")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	bv1, err := readInts(f, "boundary_v1")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	blab, err := readInts(f, "boundary_label")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if len(bv0) != len(bv1) || len(bv0) != len(blab) {
		return nil, fmt.Errorf("%s: inconsistent boundary arrays", filename)
	}
	labels := make(map[[2]int]int, len(bv0))
	for i := range bv0 {
		a, b := int(bv0[i]), int(bv1[i])
		if a > b {
			a, b = b, a
		}
		labels[[2]int{a, b}] = int(blab[i])
	}

	m, err := mesh.New(verts, triangles, labels)
	if err != nil {
		return nil, fmt.Errorf("%s: rebuilding mesh: %w", filename, err)
	}
	space, err := fields.NewSpace(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	st := NewState(space)
	names := map[string]bool{}
	for _, v := range f.Header.Variables() {
		if !meshVars[v] {
			names[v] = true
		}
	}
	for name := range names {
		// A _x variable with a matching _y partner is a vector component.
		if strings.HasSuffix(name, suffixX) {
			base := strings.TrimSuffix(name, suffixX)
			if names[base+suffixY] {
				continue
			}
		}
		if strings.HasSuffix(name, suffixY) {
			base := strings.TrimSuffix(name, suffixY)
			if names[base+suffixX] {
				vx, err := readFloats(f, base+suffixX)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", filename, err)
				}
				vy, err := readFloats(f, base+suffixY)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", filename, err)
				}
				if len(vx) != space.Dim() || len(vy) != space.Dim() {
					return nil, fmt.Errorf("%s: field %q has wrong length", filename, base)
				}
				v := fields.NewVectorFunction(space)
				copy(v.X, vx)
				copy(v.Y, vy)
				st.Vectors[base] = v
				continue
			}
		}
		vals, err := readFloats(f, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		if len(vals) != space.Dim() {
			return nil, fmt.Errorf("%s: field %q has %d values, mesh has %d vertices",
				filename, name, len(vals), space.Dim())
		}
		fn := fields.NewFunction(space)
		copy(fn.Vals, vals)
		st.Scalars[name] = fn
	}
	return st, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func readFloats(f *cdf.File, name string) ([]float64, error) {
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %q: %w", name, err)
	}
	v, ok := buf.([]float64)
	if !ok {
		return nil, fmt.Errorf("variable %q has type %T, want float64", name, buf)
	}
	return v, nil
}

func readInts(f *cdf.File, name string) ([]int32, error) {
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %q: %w", name, err)
	}
	v, ok := buf.([]int32)
	if !ok {
		return nil, fmt.Errorf("variable %q has type %T, want int32", name, buf)
	}
	return v, nil
}
