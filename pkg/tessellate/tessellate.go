// Package tessellate walks a design graph, builds a B-Rep shape for every
// placed primitive and keeps their meshes current with an incremental
// mesher. Re-tessellating an edited graph only re-meshes what changed.
package tessellate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chazu/brepmesh/pkg/graph"
	"github.com/chazu/brepmesh/pkg/kernel"
	"github.com/chazu/brepmesh/pkg/mesh"
	"github.com/chazu/brepmesh/pkg/meshadapt"
	"github.com/chazu/brepmesh/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Part is the mesh of one placed primitive.
type Part struct {
	// Name is the instance path, e.g. "stand/1a2b3c4d5e6f/post".
	Name  string
	Node  graph.NodeID
	Shape topo.ID
	Mesh  *kernel.Mesh
	// Report is the mesher's account of the last update of this shape.
	Report meshadapt.Report
	// Deviation is the largest distance from the implicit surface over mesh
	// nodes and triangle centroids. NaN without an oracle.
	Deviation float64
}

// Result is the outcome of one Tessellate call.
type Result struct {
	Parts []Part
	// Modified is set when any mesh changed or a part was dropped.
	Modified bool
	Duration time.Duration
}

// Failures counts the entities the mesher could not mesh across all parts.
func (r *Result) Failures() int {
	return lo.SumBy(r.Parts, func(p Part) int { return len(p.Report.Failures) })
}

// Option configures a Tessellator.
type Option func(*Tessellator)

// WithOracle checks every part against the implicit form of its primitive.
func WithOracle(o kernel.Implicit) Option {
	return func(t *Tessellator) { t.oracle = o }
}

func WithLogger(l zerolog.Logger) Option {
	return func(t *Tessellator) { t.log = l }
}

// Tessellator owns the mapping from graph instances to mesher shapes. It is
// not safe for concurrent use.
type Tessellator struct {
	kernel kernel.Kernel
	mesher *meshadapt.IncrementalMesh
	oracle kernel.Implicit
	log    zerolog.Logger
	base   meshadapt.Params
	live   map[topo.ID]bool
}

// New returns a Tessellator building shapes with k and meshing them with m.
// The mesher's current parameters are the baseline that script mesh
// settings override.
func New(k kernel.Kernel, m *meshadapt.IncrementalMesh, opts ...Option) *Tessellator {
	t := &Tessellator{
		kernel: k,
		mesher: m,
		log:    zerolog.Nop(),
		base:   m.Params(),
		live:   make(map[topo.ID]bool),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// instance is a primitive reached through a chain of transforms.
type instance struct {
	node       *graph.Node
	path       string
	transforms []graph.TransformData // outermost first
}

// collect walks the graph from its roots in order.
func collect(g *graph.DesignGraph) ([]instance, error) {
	var out []instance
	seen := make(map[string]int)

	var walk func(n *graph.Node, path []string, stack []graph.TransformData, depth int) error
	walk = func(n *graph.Node, path []string, stack []graph.TransformData, depth int) error {
		if depth > len(g.Nodes) {
			return errors.Errorf("tessellate: cycle through node %s", n.ID.Short())
		}
		path = append(path, n.Label())
		switch n.Kind {
		case graph.NodePrimitive:
			p := strings.Join(path, "/")
			seen[p]++
			if seen[p] > 1 {
				p = fmt.Sprintf("%s#%d", p, seen[p])
			}
			out = append(out, instance{
				node:       n,
				path:       p,
				transforms: append([]graph.TransformData(nil), stack...),
			})
			return nil
		case graph.NodeTransform:
			td, ok := n.Data.(graph.TransformData)
			if !ok {
				return errors.Errorf("tessellate: transform node %s has %T data", n.ID.Short(), n.Data)
			}
			stack = append(stack, td)
		case graph.NodeGroup:
		default:
			return errors.Errorf("tessellate: unknown node kind %v", n.Kind)
		}
		for _, c := range g.Children(n) {
			if err := walk(c, path, stack, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, rid := range g.Roots {
		if root := g.Get(rid); root != nil {
			if err := walk(root, nil, nil, 0); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// applySettings overlays the graph's mesh settings on the baseline.
func (t *Tessellator) applySettings(g *graph.DesignGraph) error {
	p := t.base
	if ms := g.Defaults.Mesh; ms != nil {
		if ms.Deflection > 0 {
			p.Deflection = ms.Deflection
		}
		if ms.Angle > 0 {
			p.Angle = ms.Angle
		}
		if ms.Ratio > 0 {
			p.Ratio = ms.Ratio
		}
		if ms.Relative != nil {
			p.Relative = *ms.Relative
		}
	}
	if err := t.mesher.SetDeflection(p.Deflection); err != nil {
		return err
	}
	if err := t.mesher.SetAngle(p.Angle); err != nil {
		return err
	}
	if err := t.mesher.SetRatio(p.Ratio); err != nil {
		return err
	}
	t.mesher.SetRelative(p.Relative)
	return nil
}

// Tessellate brings the mesh of every placed primitive in g up to date.
// Shapes of instances that are no longer in g are forgotten. A part whose
// mesher update was cancelled aborts the call; a part with failed faces or
// edges is still returned, with the failures in its report.
func (t *Tessellator) Tessellate(ctx context.Context, g *graph.DesignGraph) (*Result, error) {
	start := time.Now()
	res := &Result{}
	if g == nil {
		return res, nil
	}
	if err := t.applySettings(g); err != nil {
		return nil, errors.Wrap(err, "tessellate: mesh settings")
	}

	instances, err := collect(g)
	if err != nil {
		return nil, err
	}

	live := make(map[topo.ID]bool, len(instances))
	for _, inst := range instances {
		part, err := t.part(ctx, inst)
		if err != nil {
			return nil, err
		}
		live[part.Shape] = true
		res.Modified = res.Modified || t.mesher.IsModified()
		res.Parts = append(res.Parts, part)
	}

	for id := range t.live {
		if !live[id] {
			t.mesher.Forget(id)
			res.Modified = true
			t.log.Debug().Stringer("shape", id).Msg("forgot shape")
		}
	}
	t.live = live

	res.Duration = time.Since(start)
	t.log.Debug().
		Int("parts", len(res.Parts)).
		Bool("modified", res.Modified).
		Dur("took", res.Duration).
		Msg("tessellated")
	return res, nil
}

func (t *Tessellator) part(ctx context.Context, inst instance) (Part, error) {
	n := inst.node
	shape, err := t.build(inst)
	if err != nil {
		return Part{}, errors.Wrapf(err, "tessellate: part %q", inst.path)
	}
	if err := t.mesher.Update(ctx, shape); err != nil {
		return Part{}, errors.Wrapf(err, "tessellate: part %q", inst.path)
	}
	sm, _ := t.mesher.Mesh(shape.ID())

	part := Part{
		Name:      inst.path,
		Node:      n.ID,
		Shape:     shape.ID(),
		Mesh:      kernel.FromShapeMesh(sm, inst.path),
		Report:    t.mesher.Report(),
		Deviation: math.NaN(),
	}
	if t.oracle != nil {
		solid, err := t.implicit(inst)
		if err != nil {
			return Part{}, errors.Wrapf(err, "tessellate: oracle for %q", inst.path)
		}
		part.Deviation = kernel.Deviation(solid, samples(sm))
	}

	ev := t.log.Debug()
	if !part.Report.OK() {
		ev = t.log.Warn().Int("failures", len(part.Report.Failures))
	}
	ev.Str("part", inst.path).
		Int("triangles", part.Mesh.TriangleCount()).
		Int("edges_updated", part.Report.EdgesUpdated).
		Int("faces_updated", part.Report.FacesUpdated).
		Msg("part meshed")
	return part, nil
}

// build creates the B-Rep for inst and places it, innermost transform
// first. Within one transform, rotation precedes translation.
func (t *Tessellator) build(inst instance) (*topo.Shape, error) {
	d, ok := inst.node.Data.(graph.PrimitiveData)
	if !ok {
		return nil, errors.Errorf("primitive node has %T data", inst.node.Data)
	}

	var (
		shape *topo.Shape
		err   error
	)
	switch d.Prim {
	case graph.PrimBox:
		shape, err = t.kernel.Box(inst.path, d.Size.X, d.Size.Y, d.Size.Z)
	case graph.PrimCylinder:
		shape, err = t.kernel.Cylinder(inst.path, d.Height, d.Radius)
	case graph.PrimSphere:
		shape, err = t.kernel.Sphere(inst.path, d.Radius)
	case graph.PrimTube:
		shape, err = t.kernel.Tube(inst.path, d.Height, d.Radius, d.Inner)
	default:
		err = errors.Errorf("unsupported primitive %v", d.Prim)
	}
	if err != nil {
		return nil, err
	}

	for i := len(inst.transforms) - 1; i >= 0; i-- {
		td := inst.transforms[i]
		if r := td.Rotation; r != nil && !r.IsZero() {
			shape = t.kernel.Rotate(shape, r.X, r.Y, r.Z)
		}
		if v := td.Translation; v != nil && !v.IsZero() {
			shape = t.kernel.Translate(shape, v.X, v.Y, v.Z)
		}
	}
	return shape, nil
}

// implicit mirrors build on the oracle.
func (t *Tessellator) implicit(inst instance) (kernel.Solid, error) {
	d := inst.node.Data.(graph.PrimitiveData)
	var (
		s   kernel.Solid
		err error
	)
	switch d.Prim {
	case graph.PrimBox:
		s, err = t.oracle.Box(d.Size.X, d.Size.Y, d.Size.Z)
	case graph.PrimCylinder:
		s, err = t.oracle.Cylinder(d.Height, d.Radius)
	case graph.PrimSphere:
		s, err = t.oracle.Sphere(d.Radius)
	case graph.PrimTube:
		s, err = t.oracle.Tube(d.Height, d.Radius, d.Inner)
	default:
		err = errors.Errorf("unsupported primitive %v", d.Prim)
	}
	if err != nil {
		return nil, err
	}

	for i := len(inst.transforms) - 1; i >= 0; i-- {
		td := inst.transforms[i]
		if r := td.Rotation; r != nil && !r.IsZero() {
			s = t.oracle.Rotate(s, r.X, r.Y, r.Z)
		}
		if v := td.Translation; v != nil && !v.IsZero() {
			s = t.oracle.Translate(s, v.X, v.Y, v.Z)
		}
	}
	return s, nil
}

// samples returns the mesh nodes and triangle centroids of sm.
func samples(sm *mesh.ShapeMesh) []v3.Vec {
	var pts []v3.Vec
	used := make(map[int]bool)
	for _, f := range sm.Faces() {
		for _, tri := range sm.FaceTriangles(f) {
			a, b, c := sm.Point(tri[0]), sm.Point(tri[1]), sm.Point(tri[2])
			pts = append(pts, a.Add(b).Add(c).MulScalar(1.0 / 3))
			for _, n := range tri {
				if !used[n] {
					used[n] = true
					pts = append(pts, sm.Point(n))
				}
			}
		}
	}
	return pts
}
