package tessellate_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/chazu/brepmesh/pkg/graph"
	"github.com/chazu/brepmesh/pkg/kernel/brep"
	"github.com/chazu/brepmesh/pkg/kernel/sdfx"
	"github.com/chazu/brepmesh/pkg/meshadapt"
	"github.com/chazu/brepmesh/pkg/tessellate"
)

func newTessellator(opts ...tessellate.Option) *tessellate.Tessellator {
	m := meshadapt.New(meshadapt.WithParams(meshadapt.Params{
		Deflection: 0.1,
		Angle:      0.5,
		Workers:    2,
	}))
	return tessellate.New(brep.New(), m, opts...)
}

func makePrimitive(name string, d graph.PrimitiveData) *graph.Node {
	return &graph.Node{
		ID:   graph.NewNodeID("defpart/" + name),
		Kind: graph.NodePrimitive,
		Name: name,
		Data: d,
	}
}

func makeBox(name string, x, y, z float64) *graph.Node {
	return makePrimitive(name, graph.PrimitiveData{Prim: graph.PrimBox, Size: graph.Vec3{X: x, Y: y, Z: z}})
}

func makePlace(name string, at, rot *graph.Vec3, children ...graph.NodeID) *graph.Node {
	return &graph.Node{
		ID:       graph.NewNodeID("place/" + name),
		Kind:     graph.NodeTransform,
		Children: children,
		Data:     graph.TransformData{Translation: at, Rotation: rot},
	}
}

func makeGroup(name string, children ...graph.NodeID) *graph.Node {
	return &graph.Node{
		ID:       graph.NewNodeID("group/" + name),
		Kind:     graph.NodeGroup,
		Name:     name,
		Children: children,
		Data:     graph.GroupData{Description: name},
	}
}

func tessellateOK(t *testing.T, ts *tessellate.Tessellator, g *graph.DesignGraph) *tessellate.Result {
	t.Helper()
	res, err := ts.Tessellate(context.Background(), g)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	return res
}

// bounds returns the min and max corners of all vertices of a part.
func bounds(p tessellate.Part) (lo, hi [3]float64) {
	for i := range lo {
		lo[i], hi[i] = math.Inf(1), math.Inf(-1)
	}
	v := p.Mesh.Vertices
	for i := 0; i+2 < len(v); i += 3 {
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], float64(v[i+k]))
			hi[k] = math.Max(hi[k], float64(v[i+k]))
		}
	}
	return lo, hi
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

func TestSingleBox(t *testing.T) {
	g := graph.New()
	box := makeBox("plate", 40, 20, 2)
	g.AddNode(box)
	g.AddRoot(box.ID)

	res := tessellateOK(t, newTessellator(), g)
	if len(res.Parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(res.Parts))
	}
	p := res.Parts[0]
	if p.Name != "plate" || p.Mesh.PartName != "plate" {
		t.Errorf("part name = %q, mesh name = %q", p.Name, p.Mesh.PartName)
	}
	if p.Mesh.TriangleCount() != 12 {
		t.Errorf("box should mesh to 12 triangles, got %d", p.Mesh.TriangleCount())
	}
	if !res.Modified {
		t.Error("first tessellation should modify the mesh")
	}
	if !p.Report.OK() || res.Failures() != 0 {
		t.Errorf("unexpected failures: %v", p.Report.Failures)
	}
	if !math.IsNaN(p.Deviation) {
		t.Errorf("deviation without oracle should be NaN, got %g", p.Deviation)
	}
}

func TestPartWithTransform(t *testing.T) {
	g := graph.New()
	box := makeBox("shelf", 100, 50, 10)
	place := makePlace("shelf", &graph.Vec3{X: 200, Y: 100, Z: 50}, nil, box.ID)
	g.AddNode(box)
	g.AddNode(place)
	g.AddRoot(place.ID)

	res := tessellateOK(t, newTessellator(), g)
	if len(res.Parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(res.Parts))
	}
	lo, hi := bounds(res.Parts[0])
	want := [2][3]float64{{200, 100, 50}, {300, 150, 60}}
	for k := 0; k < 3; k++ {
		if !near(lo[k], want[0][k]) || !near(hi[k], want[1][k]) {
			t.Errorf("axis %d spans [%g, %g], want [%g, %g]", k, lo[k], hi[k], want[0][k], want[1][k])
		}
	}
	if !strings.HasSuffix(res.Parts[0].Name, "/shelf") {
		t.Errorf("placed part name %q should end with the part name", res.Parts[0].Name)
	}
}

func TestNestedTransformsComposeInnermostFirst(t *testing.T) {
	// Rotate a 10x1x1 bar 90 degrees about Z, then move the whole thing.
	g := graph.New()
	bar := makeBox("bar", 10, 1, 1)
	inner := makePlace("inner", nil, &graph.Vec3{Z: 90}, bar.ID)
	outer := makePlace("outer", &graph.Vec3{X: 5}, nil, inner.ID)
	for _, n := range []*graph.Node{bar, inner, outer} {
		g.AddNode(n)
	}
	g.AddRoot(outer.ID)

	res := tessellateOK(t, newTessellator(), g)
	lo, hi := bounds(res.Parts[0])
	// After rotation the bar spans x in [-1, 0], y in [0, 10]; then +5 in x.
	if !near(lo[0], 4) || !near(hi[0], 5) {
		t.Errorf("x spans [%g, %g], want [4, 5]", lo[0], hi[0])
	}
	if !near(lo[1], 0) || !near(hi[1], 10) {
		t.Errorf("y spans [%g, %g], want [0, 10]", lo[1], hi[1])
	}
}

func TestInstancesGetDistinctShapes(t *testing.T) {
	g := graph.New()
	leg := makePrimitive("leg", graph.PrimitiveData{Prim: graph.PrimCylinder, Height: 40, Radius: 2})
	a := makePlace("a", &graph.Vec3{}, nil, leg.ID)
	b := makePlace("b", &graph.Vec3{X: 30}, nil, leg.ID)
	table := makeGroup("table", a.ID, b.ID, leg.ID, leg.ID)
	for _, n := range []*graph.Node{leg, a, b, table} {
		g.AddNode(n)
	}
	g.AddRoot(table.ID)

	res := tessellateOK(t, newTessellator(), g)
	if len(res.Parts) != 4 {
		t.Fatalf("expected 4 parts, got %d", len(res.Parts))
	}
	shapes := map[string]bool{}
	for _, p := range res.Parts {
		if shapes[p.Shape.String()] {
			t.Errorf("shape %s used by two parts", p.Shape)
		}
		shapes[p.Shape.String()] = true
		if p.Node != leg.ID {
			t.Errorf("part %q should point at the leg node", p.Name)
		}
	}
}

func TestEmptyGraph(t *testing.T) {
	res := tessellateOK(t, newTessellator(), graph.New())
	if len(res.Parts) != 0 {
		t.Fatalf("expected 0 parts, got %d", len(res.Parts))
	}

	res, err := newTessellator().Tessellate(context.Background(), nil)
	if err != nil || len(res.Parts) != 0 {
		t.Fatalf("nil graph: parts=%d err=%v", len(res.Parts), err)
	}
}

func TestRetessellateIsIncremental(t *testing.T) {
	ts := newTessellator()
	build := func(z float64) *graph.DesignGraph {
		g := graph.New()
		plate := makeBox("plate", 10, 10, 1)
		ball := makePrimitive("ball", graph.PrimitiveData{Prim: graph.PrimSphere, Radius: 2})
		place := makePlace("ball", &graph.Vec3{Z: z}, nil, ball.ID)
		for _, n := range []*graph.Node{plate, ball, place} {
			g.AddNode(n)
		}
		g.AddRoot(plate.ID)
		g.AddRoot(place.ID)
		return g
	}

	tessellateOK(t, ts, build(3))

	res := tessellateOK(t, ts, build(3))
	if res.Modified {
		t.Error("unchanged graph should not modify any mesh")
	}
	for _, p := range res.Parts {
		if p.Report.EdgesUpdated != 0 || p.Report.FacesUpdated != 0 {
			t.Errorf("%s: expected no work, got %d edges %d faces", p.Name, p.Report.EdgesUpdated, p.Report.FacesUpdated)
		}
	}

	res = tessellateOK(t, ts, build(5))
	if !res.Modified {
		t.Error("moving the ball should modify its mesh")
	}
	for _, p := range res.Parts {
		moved := strings.HasSuffix(p.Name, "/ball")
		if worked := p.Report.FacesUpdated > 0; worked != moved {
			t.Errorf("%s: faces updated = %d", p.Name, p.Report.FacesUpdated)
		}
	}
}

func TestRemovedPartIsForgotten(t *testing.T) {
	ts := newTessellator()
	g := graph.New()
	a, b := makeBox("a", 1, 1, 1), makeBox("b", 2, 2, 2)
	g.AddNode(a)
	g.AddNode(b)
	g.AddRoot(a.ID)
	g.AddRoot(b.ID)
	tessellateOK(t, ts, g)

	g2 := graph.New()
	g2.AddNode(a)
	g2.AddRoot(a.ID)
	res := tessellateOK(t, ts, g2)
	if !res.Modified {
		t.Error("dropping a part should count as a modification")
	}
	if len(res.Parts) != 1 || res.Parts[0].Name != "a" {
		t.Fatalf("expected only part a, got %d parts", len(res.Parts))
	}
}

func TestMeshSettingsFromGraph(t *testing.T) {
	ball := makePrimitive("ball", graph.PrimitiveData{Prim: graph.PrimSphere, Radius: 5})
	build := func(ms *graph.MeshSettings) *graph.DesignGraph {
		g := graph.New()
		g.AddNode(ball)
		g.AddRoot(ball.ID)
		g.Defaults.Mesh = ms
		return g
	}

	ts := newTessellator()
	coarse := tessellateOK(t, ts, build(nil)).Parts[0].Mesh.TriangleCount()
	fine := tessellateOK(t, ts, build(&graph.MeshSettings{Deflection: 0.01})).Parts[0].Mesh.TriangleCount()
	if fine <= coarse {
		t.Errorf("tighter script deflection should add triangles: %d <= %d", fine, coarse)
	}

	// Dropping the settings restores the baseline without another re-mesh
	// of the finer result.
	tessellateOK(t, ts, build(nil))
	res := tessellateOK(t, ts, build(nil))
	if res.Modified {
		t.Error("coarser request should not re-mesh")
	}
}

func TestInvalidMeshSettings(t *testing.T) {
	g := graph.New()
	ball := makePrimitive("ball", graph.PrimitiveData{Prim: graph.PrimSphere, Radius: 1})
	g.AddNode(ball)
	g.AddRoot(ball.ID)
	g.Defaults.Mesh = &graph.MeshSettings{Angle: 4}

	if _, err := newTessellator().Tessellate(context.Background(), g); err == nil {
		t.Fatal("expected an error for an angle above pi")
	}
}

func TestOracleDeviation(t *testing.T) {
	g := graph.New()
	tube := makePrimitive("sleeve", graph.PrimitiveData{Prim: graph.PrimTube, Height: 10, Radius: 5, Inner: 4})
	place := makePlace("sleeve", &graph.Vec3{X: 3, Y: -2, Z: 1}, &graph.Vec3{X: 30, Y: 45}, tube.ID)
	g.AddNode(tube)
	g.AddNode(place)
	g.AddRoot(place.ID)

	res := tessellateOK(t, newTessellator(tessellate.WithOracle(sdfx.New())), g)
	p := res.Parts[0]
	if math.IsNaN(p.Deviation) {
		t.Fatal("expected a deviation with an oracle")
	}
	if p.Deviation > 0.1+1e-6 {
		t.Errorf("deviation %g exceeds the deflection", p.Deviation)
	}
}

func TestCancelled(t *testing.T) {
	g := graph.New()
	box := makeBox("plate", 1, 1, 1)
	g.AddNode(box)
	g.AddRoot(box.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTessellator().Tessellate(ctx, g); err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}
