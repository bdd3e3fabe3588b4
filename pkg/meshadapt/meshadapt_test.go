package meshadapt

import (
	"context"
	"math"
	"testing"

	"github.com/chazu/brepmesh/pkg/kernel"
	"github.com/chazu/brepmesh/pkg/kernel/brep"
	"github.com/chazu/brepmesh/pkg/kernel/sdfx"
	"github.com/chazu/brepmesh/pkg/mesh"
	"github.com/chazu/brepmesh/pkg/topo"
	"github.com/chazu/brepmesh/pkg/triangulate"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(t *testing.T, m *IncrementalMesh, s *topo.Shape) *mesh.ShapeMesh {
	t.Helper()
	require.NoError(t, m.Update(context.Background(), s))
	sm, ok := m.Mesh(s.ID())
	require.True(t, ok)
	return sm
}

func cube(t *testing.T) *topo.Shape {
	s, err := brep.New().Box("cube", 1, 1, 1)
	require.NoError(t, err)
	return s
}

func cylinder(t *testing.T) *topo.Shape {
	s, err := brep.New().Cylinder("cyl", 10, 5)
	require.NoError(t, err)
	return s
}

// directedEdges counts every directed triangle edge over all faces.
func directedEdges(sm *mesh.ShapeMesh) map[[2]int]int {
	out := map[[2]int]int{}
	for _, f := range sm.Faces() {
		for _, tri := range sm.FaceTriangles(f) {
			for k := 0; k < 3; k++ {
				out[[2]int{tri[k], tri[(k+1)%3]}]++
			}
		}
	}
	return out
}

// requireWatertight checks that every triangle edge is matched by exactly
// one edge running the other way.
func requireWatertight(t *testing.T, sm *mesh.ShapeMesh) {
	t.Helper()
	directed := directedEdges(sm)
	require.NotEmpty(t, directed)
	for e, n := range directed {
		require.Equal(t, 1, n, "edge %v used %d times", e, n)
		require.Equal(t, 1, directed[[2]int{e[1], e[0]}], "edge %v has no twin", e)
	}
}

func triangleCount(sm *mesh.ShapeMesh, face topo.ID) int {
	return len(sm.FaceTriangles(face))
}

func TestCube(t *testing.T) {
	s := cube(t)
	m := New()
	sm := update(t, m, s)

	r := m.Report()
	assert.True(t, r.OK())
	assert.Equal(t, mesh.Clean, r.Status)
	assert.Equal(t, 12, r.Edges)
	assert.Equal(t, 6, r.Faces)
	assert.Equal(t, 12, r.EdgesUpdated)
	assert.Equal(t, 6, r.FacesUpdated)
	assert.Equal(t, 12, r.Stats.Triangles)
	assert.Equal(t, 8, r.Stats.Nodes)
	assert.True(t, m.IsModified())
	requireWatertight(t, sm)

	center := v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	for _, f := range sm.Faces() {
		for _, tri := range sm.FaceTriangles(f) {
			a, b, c := sm.Point(tri[0]), sm.Point(tri[1]), sm.Point(tri[2])
			n := b.Sub(a).Cross(c.Sub(a))
			centroid := a.Add(b).Add(c).MulScalar(1.0 / 3)
			assert.Greater(t, n.Dot(centroid.Sub(center)), 0.0, "face %s triangle %v faces inward", f, tri)
		}
	}
}

func TestVertexNodesAreShared(t *testing.T) {
	s := cube(t)
	sm := update(t, New(), s)
	for _, v := range s.Vertices() {
		n := sm.VertexNode(v)
		assert.Equal(t, v.Point, sm.Point(n))
	}
	assert.Equal(t, 8, sm.Stats().Nodes)
}

// TestSharedEdgesUseOnePolygon checks that both faces adjacent to an edge
// are built on the same polygon nodes, in opposite directions.
func TestSharedEdgesUseOnePolygon(t *testing.T) {
	for _, tc := range []struct {
		name  string
		shape func(t *testing.T) *topo.Shape
	}{
		{"cube", cube},
		{"cylinder", cylinder},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.shape(t)
			m := New()
			require.NoError(t, m.SetDeflection(0.05))
			sm := update(t, m, s)

			for id, faces := range s.EdgeFaces() {
				if len(faces) != 2 || faces[0] == faces[1] {
					continue
				}
				poly, ok := sm.Polygon(id)
				require.True(t, ok)
				for i := 1; i < len(poly.Nodes); i++ {
					a, b := poly.Nodes[i-1], poly.Nodes[i]
					var uses int
					for _, f := range faces {
						for _, tri := range sm.FaceTriangles(f.ID()) {
							for k := 0; k < 3; k++ {
								x, y := tri[k], tri[(k+1)%3]
								if (x == a && y == b) || (x == b && y == a) {
									uses++
								}
							}
						}
					}
					assert.Equal(t, 2, uses, "edge %s segment %d", id, i)
				}
			}
		})
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	s := cylinder(t)
	m := New()
	update(t, m, s)
	require.True(t, m.IsModified())
	before := m.Report().Stats

	sm := update(t, m, s)
	assert.False(t, m.IsModified())
	r := m.Report()
	assert.Zero(t, r.EdgesUpdated)
	assert.Zero(t, r.FacesUpdated)
	assert.Equal(t, before, sm.Stats())
	assert.Equal(t, mesh.Clean, r.Status)
}

func TestRefineThenCoarsen(t *testing.T) {
	s := cylinder(t)
	wall := s.Faces[0].ID()
	m := New()

	require.NoError(t, m.SetDeflection(0.5))
	sm := update(t, m, s)
	require.True(t, m.IsModified())
	coarse := triangleCount(sm, wall)

	require.NoError(t, m.SetDeflection(0.05))
	update(t, m, s)
	require.True(t, m.IsModified())
	fine := triangleCount(sm, wall)
	assert.Greater(t, fine, coarse)
	for _, e := range s.Edges() {
		poly, ok := sm.Polygon(e.ID())
		require.True(t, ok)
		assert.InDelta(t, 0.05, poly.Deflection, 1e-12, "edge %s", e.ID())
	}

	require.NoError(t, m.SetDeflection(0.5))
	update(t, m, s)
	assert.False(t, m.IsModified())
	assert.Equal(t, fine, triangleCount(sm, wall))
}

func TestTighterAngleRemeshes(t *testing.T) {
	s := cylinder(t)
	m := New()
	require.NoError(t, m.SetDeflection(1))
	sm := update(t, m, s)
	before := triangleCount(sm, s.Faces[0].ID())

	require.NoError(t, m.SetAngle(0.1))
	update(t, m, s)
	assert.True(t, m.IsModified())
	assert.Greater(t, triangleCount(sm, s.Faces[0].ID()), before)
}

func TestFaceDeflectionOverride(t *testing.T) {
	s := cylinder(t)
	wall, bottom, top := s.Faces[0], s.Faces[1], s.Faces[2]
	m := New()
	require.NoError(t, m.SetDeflection(0.5))
	require.NoError(t, m.SetFaceDeflection(top.ID(), 0.01))
	sm := update(t, m, s)

	ring := func(f *topo.Face) *mesh.Polygon {
		p, ok := sm.Polygon(f.Outer.Coedges[0].Edge.ID())
		require.True(t, ok)
		return p
	}
	assert.InDelta(t, 0.01, ring(top).Deflection, 1e-12)
	assert.InDelta(t, 0.5, ring(bottom).Deflection, 1e-12)
	assert.Greater(t, len(ring(top).Nodes), len(ring(bottom).Nodes))

	d, ok := sm.Domain(wall.ID())
	require.True(t, ok)
	assert.InDelta(t, 0.5, d.Deflection, 1e-12)
	requireWatertight(t, sm)

	m.ClearFaceDeflection(top.ID())
	update(t, m, s)
	assert.False(t, m.IsModified())
}

func TestRelativeDeflection(t *testing.T) {
	s, err := brep.New().Box("slab", 2, 1, 1)
	require.NoError(t, err)

	deflections := func(m *IncrementalMesh) map[float64]float64 {
		sm := update(t, m, s)
		out := map[float64]float64{}
		for _, e := range s.Edges() {
			p, ok := sm.Polygon(e.ID())
			require.True(t, ok)
			out[math.Round(e.Last-e.First)] = p.Deflection
		}
		return out
	}

	m := New()
	m.SetRelative(true)
	require.NoError(t, m.SetDeflection(0.01))
	got := deflections(m)
	assert.InDelta(t, 0.02, got[2], 1e-9)
	assert.InDelta(t, 0.01, got[1], 1e-9)

	capped := New()
	capped.SetRelative(true)
	require.NoError(t, capped.SetDeflection(0.01))
	require.NoError(t, capped.SetRatio(0.25))
	got = deflections(capped)
	assert.InDelta(t, 0.005, got[2], 1e-9)
	assert.InDelta(t, 0.005, got[1], 1e-9)
}

func TestDegenerateEdges(t *testing.T) {
	s, err := brep.New().Sphere("ball", 1)
	require.NoError(t, err)
	m := New()
	require.NoError(t, m.SetDeflection(0.05))
	sm := update(t, m, s)
	require.True(t, m.Report().OK())

	var poles int
	for _, e := range s.Edges() {
		if !e.Degenerate {
			continue
		}
		poles++
		p, ok := sm.Polygon(e.ID())
		require.True(t, ok)
		assert.Len(t, p.Nodes, 1)
		assert.Equal(t, sm.VertexNode(e.Start), p.Nodes[0])
	}
	assert.Equal(t, 2, poles)
	assert.NotZero(t, triangleCount(sm, s.Faces[0].ID()))
}

func TestInvalidParametersFailEarly(t *testing.T) {
	m := New()
	for _, d := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		err := m.SetDeflection(d)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "deflection %g", d)
	}
	assert.True(t, errors.Is(m.SetAngle(0), ErrInvalidArgument))
	assert.True(t, errors.Is(m.SetAngle(4), ErrInvalidArgument))
	assert.True(t, errors.Is(m.SetRatio(-1), ErrInvalidArgument))
	assert.True(t, errors.Is(m.SetFaceDeflection(1, 0), ErrInvalidArgument))
	assert.Equal(t, DefaultParams().Deflection, m.Params().Deflection)

	s := cube(t)
	bad := New(WithParams(Params{Deflection: -0.1, Angle: 0.5}))
	err := bad.Update(context.Background(), s)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	_, ok := bad.Mesh(s.ID())
	assert.False(t, ok)
	assert.False(t, bad.IsModified())

	assert.True(t, errors.Is(m.Update(context.Background(), nil), ErrInvalidArgument))
}

func TestOpenWireFaceIsSkipped(t *testing.T) {
	s := cube(t)
	a := topo.NewVertex(topo.HashID("open", "a"), v3.Vec{X: 3})
	b := topo.NewVertex(topo.HashID("open", "b"), v3.Vec{X: 4})
	line, l := topo.NewSegmentLine(a.Point, b.Point)
	e := topo.NewEdge(topo.HashID("open", "edge"), line, 0, l, a, b)
	plane := topo.Plane{Frame: topo.WorldFrame}
	open := topo.NewFace(topo.HashID("open", "face"), plane, topo.Wire{Coedges: []topo.Coedge{
		{Edge: e, PCurve: topo.PlanarPCurve{Curve: line, Plane: plane}},
	}})
	s.Faces = append(s.Faces, open)

	m := New()
	sm := update(t, m, s)
	r := m.Report()
	require.Len(t, r.Failures, 1)
	assert.Equal(t, open.ID(), r.Failures[0].Entity)
	assert.Equal(t, topo.KindFace, r.Failures[0].Kind)
	assert.True(t, errors.Is(r.Failures[0].Err, triangulate.ErrOpenWire))
	assert.Equal(t, []topo.ID{open.ID()}, r.FailedFaces())
	assert.Equal(t, mesh.FacesTriangulated, r.Status)

	assert.Len(t, sm.Faces(), 6)
	assert.Equal(t, 12, r.Stats.Triangles)
	_, ok := sm.Polygon(e.ID())
	assert.True(t, ok)

	// Unchanged inputs are not retried, but the failure is still reported.
	update(t, m, s)
	assert.False(t, m.IsModified())
	assert.Equal(t, []topo.ID{open.ID()}, m.Report().FailedFaces())
}

func TestEvaluationFailureSkipsOnlyThatEdge(t *testing.T) {
	s := cube(t)
	broken := topo.FuncCurve{Name: "broken", Fn: func(u float64) (topo.CurvePoint, error) {
		if u > 0.5 {
			return topo.CurvePoint{}, errors.New("out of domain")
		}
		return topo.CurvePoint{P: v3.Vec{X: 5 + u}, D1: v3.Vec{X: 1}}, nil
	}}
	e := topo.NewEdge(topo.HashID("broken", "edge"),
		broken, 0, 1,
		topo.NewVertex(topo.HashID("broken", "a"), v3.Vec{X: 5}),
		topo.NewVertex(topo.HashID("broken", "b"), v3.Vec{X: 6}))
	s.FreeEdges = append(s.FreeEdges, e)

	m := New()
	sm := update(t, m, s)
	r := m.Report()
	assert.Equal(t, []topo.ID{e.ID()}, r.FailedEdges())
	assert.Empty(t, r.FailedFaces())
	_, ok := sm.Polygon(e.ID())
	assert.False(t, ok)
	assert.Len(t, sm.Edges(), 12)
	assert.Equal(t, 12, r.Stats.Triangles)
	requireWatertight(t, sm)

	update(t, m, s)
	assert.False(t, m.IsModified())
	assert.Equal(t, []topo.ID{e.ID()}, m.Report().FailedEdges())

	// Removing the edge clears the failure.
	s.FreeEdges = nil
	update(t, m, s)
	assert.True(t, m.Report().OK())
	assert.Equal(t, mesh.Clean, m.Report().Status)
}

func TestTubeIsWatertight(t *testing.T) {
	s, err := brep.New().Tube("pipe", 10, 5, 3)
	require.NoError(t, err)
	m := New()
	require.NoError(t, m.SetDeflection(0.1))
	sm := update(t, m, s)
	require.True(t, m.Report().OK())
	assert.Len(t, sm.Faces(), 4)
	requireWatertight(t, sm)
}

func TestSphereIsMeshedAcrossSeamAndPoles(t *testing.T) {
	s, err := brep.New().Sphere("ball", 1)
	require.NoError(t, err)
	solid, err := sdfx.New().Sphere(1)
	require.NoError(t, err)

	for _, defl := range []float64{0.5, 0.1, 0.05} {
		m := New()
		require.NoError(t, m.SetDeflection(defl))
		sm := update(t, m, s)
		r := m.Report()
		require.True(t, r.OK(), "deflection %g", defl)
		assert.Equal(t, mesh.Clean, r.Status)

		face := s.Faces[0].ID()
		require.Positive(t, triangleCount(sm, face), "deflection %g", defl)
		requireWatertight(t, sm)

		d, ok := sm.Domain(face)
		require.True(t, ok)
		var centroids []v3.Vec
		for _, tri := range sm.FaceTriangles(face) {
			a, b, c := sm.Point(tri[0]), sm.Point(tri[1]), sm.Point(tri[2])
			assert.Less(t, kernel.Deviation(solid, []v3.Vec{a, b, c}), 1e-9)
			centroids = append(centroids, a.Add(b).Add(c).MulScalar(1.0/3))
		}
		if !d.Truncated {
			assert.LessOrEqual(t, kernel.Deviation(solid, centroids), defl)
		}
	}
}

func TestFaceWithoutTrianglesIsReported(t *testing.T) {
	s := cube(t)
	m := New()
	sm := update(t, m, s)
	face := s.Faces[0]
	vs := s.Vertices()
	a, b := sm.VertexNode(vs[0]), sm.VertexNode(vs[1])

	// Every triangle repeats a node, so nothing survives the commit.
	p := &pass{
		log:    zerolog.Nop(),
		params: m.Params(),
		shape:  s,
		state:  m.state(s.ID()),
		mesh:   sm,
	}
	p.commitFace(&faceJob{
		face:       face,
		deflection: m.Params().Deflection,
		result: &triangulate.Result{
			Nodes:     []int{a, a, b},
			Triangles: [][3]int{{0, 1, 2}},
		},
	})

	require.Equal(t, []topo.ID{face.ID()}, p.report.FailedFaces())
	assert.True(t, errors.Is(p.report.Failures[0].Err, triangulate.ErrTriangulation))
	assert.Zero(t, p.report.FacesUpdated)
	assert.True(t, p.modified)
	_, ok := sm.Domain(face.ID())
	assert.False(t, ok)
	assert.Empty(t, sm.FaceTriangles(face.ID()))
}

func TestMeshFollowsImplicitSurface(t *testing.T) {
	oracle := sdfx.New()
	k := brep.New()
	ball, err := k.Sphere("ball", 2)
	require.NoError(t, err)
	solidBall, err := oracle.Sphere(2)
	require.NoError(t, err)
	can, err := k.Cylinder("can", 10, 5)
	require.NoError(t, err)
	solidCan, err := oracle.Cylinder(10, 5)
	require.NoError(t, err)

	const defl = 0.05
	for _, tc := range []struct {
		name  string
		shape *topo.Shape
		solid kernel.Solid
	}{
		{"sphere", ball, solidBall},
		{"cylinder", can, solidCan},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := New()
			require.NoError(t, m.SetDeflection(defl))
			sm := update(t, m, tc.shape)
			require.True(t, m.Report().OK())

			var nodes, centroids []v3.Vec
			for _, f := range sm.Faces() {
				d, _ := sm.Domain(f)
				for _, tri := range sm.FaceTriangles(f) {
					a, b, c := sm.Point(tri[0]), sm.Point(tri[1]), sm.Point(tri[2])
					nodes = append(nodes, a, b, c)
					if !d.Truncated {
						centroids = append(centroids, a.Add(b).Add(c).MulScalar(1.0/3))
					}
				}
			}
			require.NotEmpty(t, nodes)
			assert.Less(t, kernel.Deviation(tc.solid, nodes), 1e-9)
			assert.LessOrEqual(t, kernel.Deviation(tc.solid, centroids), defl)
		})
	}
}

func TestTranslatedShapeIsRemeshed(t *testing.T) {
	k := brep.New()
	s := cube(t)
	m := New()
	update(t, m, s)

	moved := k.Translate(s, 10, 0, 0)
	require.Equal(t, s.ID(), moved.ID())
	sm := update(t, m, moved)
	assert.True(t, m.IsModified())
	r := m.Report()
	assert.Equal(t, 12, r.EdgesUpdated)
	assert.Equal(t, 6, r.FacesUpdated)
	assert.Equal(t, 12, r.Stats.Triangles)
	assert.False(t, r.Compacted)
	for _, f := range sm.Faces() {
		for _, tri := range sm.FaceTriangles(f) {
			for _, n := range tri {
				assert.GreaterOrEqual(t, sm.Point(n).X, 10-1e-9)
			}
		}
	}
	requireWatertight(t, sm)
}

func TestCompactionKeepsFaces(t *testing.T) {
	k := brep.New()
	s := cube(t)
	m := New()
	update(t, m, s)
	update(t, m, k.Translate(s, 1, 0, 0))
	assert.False(t, m.Report().Compacted)

	sm := update(t, m, k.Translate(s, 2, 0, 0))
	r := m.Report()
	assert.True(t, r.Compacted)
	assert.Zero(t, r.Stats.Deleted)
	assert.Equal(t, 12, r.Stats.Triangles)
	assert.Equal(t, 8, r.Stats.Nodes)
	assert.Len(t, sm.Faces(), 6)
	requireWatertight(t, sm)

	update(t, m, k.Translate(s, 2, 0, 0))
	assert.False(t, m.IsModified())
}

func TestRemovedFacesAreDropped(t *testing.T) {
	s := cube(t)
	m := New()
	update(t, m, s)

	s.Faces = s.Faces[:5]
	sm := update(t, m, s)
	assert.True(t, m.IsModified())
	assert.Len(t, sm.Faces(), 5)
	assert.Equal(t, 10, m.Report().Stats.Triangles)
}

func TestResultsDoNotDependOnWorkers(t *testing.T) {
	s := cylinder(t)
	one := update(t, New(WithWorkers(1)), s)
	many := update(t, New(WithWorkers(8)), s)
	require.Equal(t, one.Faces(), many.Faces())
	for _, f := range one.Faces() {
		assert.Equal(t, one.FaceTriangles(f), many.FaceTriangles(f))
	}
	assert.Equal(t, one.Stats(), many.Stats())
}

func TestCancelledUpdate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := cube(t)
	m := New()
	err := m.Update(ctx, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	_, ok := m.Mesh(s.ID())
	assert.False(t, ok)
}

func TestForget(t *testing.T) {
	s := cube(t)
	m := New()
	update(t, m, s)
	m.Forget(s.ID())
	_, ok := m.Mesh(s.ID())
	assert.False(t, ok)

	update(t, m, s)
	assert.True(t, m.IsModified())
	assert.Equal(t, 12, m.Report().EdgesUpdated)
}
