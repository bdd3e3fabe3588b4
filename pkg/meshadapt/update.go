package meshadapt

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
	"time"

	"github.com/chazu/brepmesh/pkg/discretize"
	"github.com/chazu/brepmesh/pkg/mesh"
	"github.com/chazu/brepmesh/pkg/topo"
	"github.com/chazu/brepmesh/pkg/triangulate"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// tighter reports whether the requested tolerance is meaningfully smaller
// than the one an entity was meshed with.
func tighter(requested, have float64) bool {
	return requested < have*(1-1e-9)
}

func cancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// pass is the state of one Update of one shape.
type pass struct {
	log      zerolog.Logger
	params   Params
	override map[topo.ID]float64
	shape    *topo.Shape
	state    *shapeState
	mesh     *mesh.ShapeMesh
	size     float64
	modified bool
	report   Report
}

// Update brings the mesh of shape in line with its geometry and the current
// parameters. Invalid parameters and a nil shape fail before any work is
// done. Entities that cannot be meshed are listed in Report and do not make
// Update fail; a cancelled ctx does, leaving already committed entities in
// place.
func (m *IncrementalMesh) Update(ctx context.Context, shape *topo.Shape) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.modified = false
	if shape == nil {
		return errors.Wrap(ErrInvalidArgument, "nil shape")
	}
	if err := m.params.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "meshadapt: update cancelled")
	}

	start := time.Now()
	st := m.state(shape.ID())
	bbox := shape.BoundingBox()
	st.mesh.SetBoundingBox(bbox)

	p := &pass{
		log:      m.log.With().Stringer("shape", shape.ID()).Str("name", shape.Name).Logger(),
		params:   m.params,
		override: m.faceDeflection,
		shape:    shape,
		state:    st,
		mesh:     st.mesh,
		size:     topo.MaxDimension(bbox),
		report: Report{
			Shape: shape.ID(),
			Edges: len(shape.Edges()),
			Faces: len(shape.Faces),
		},
	}

	err := p.run(ctx)
	m.modified = p.modified
	p.report.Status = st.mesh.Status()
	p.report.Stats = st.mesh.Stats()
	p.report.Duration = time.Since(start)
	m.report = p.report
	if err != nil {
		p.log.Warn().Err(err).Msg("update interrupted")
		return errors.Wrap(err, "meshadapt: update cancelled")
	}

	p.log.Debug().
		Int("edges_updated", p.report.EdgesUpdated).
		Int("faces_updated", p.report.FacesUpdated).
		Int("failures", len(p.report.Failures)).
		Int("triangles", p.report.Stats.Triangles).
		Dur("took", p.report.Duration).
		Msg("mesh updated")
	return nil
}

func (p *pass) run(ctx context.Context) error {
	if err := p.edgePhase(ctx); err != nil {
		return err
	}
	p.mesh.SetStatus(mesh.EdgesDiscretized)

	if err := p.facePhase(ctx); err != nil {
		return err
	}
	p.mesh.SetStatus(mesh.FacesTriangulated)

	p.removeStale()
	if g := p.mesh.Garbage(); g > compactThreshold {
		p.log.Debug().Float64("garbage", g).Msg("compacting")
		p.mesh.Compact()
		p.report.Compacted = true
	}
	if len(p.report.Failures) == 0 {
		p.mesh.SetStatus(mesh.Clean)
	}
	return nil
}

func (p *pass) fail(id topo.ID, kind topo.Kind, err error) {
	p.report.Failures = append(p.report.Failures, Failure{Entity: id, Kind: kind, Err: err})
	p.log.Warn().Stringer(kind.String(), id).Err(err).Msgf("%s not meshed", kind)
}

func (p *pass) truncated(id topo.ID, kind topo.Kind) {
	p.report.Truncated = append(p.report.Truncated, id)
	p.log.Info().Stringer(kind.String(), id).Msgf("%s refinement truncated", kind)
}

// faceBase is the deflection requested for a face before relative scaling.
func (p *pass) faceBase(f *topo.Face) float64 {
	if d, ok := p.override[f.ID()]; ok {
		return d
	}
	return p.params.Deflection
}

// faceDeflection is the deflection a face is triangulated with.
func (p *pass) faceDeflection(f *topo.Face) float64 {
	d := p.faceBase(f)
	if p.params.Relative && p.size > 0 {
		return d * p.size
	}
	return d
}

type edgeRequest struct {
	edge       *topo.Edge
	deflection float64
	err        error
}

// edgeRequests computes the deflection of every edge: the tightest request
// of the faces sharing it, scaled by the edge length in relative mode.
func (p *pass) edgeRequests() []edgeRequest {
	adjacent := p.shape.EdgeFaces()
	edges := p.shape.Edges()
	out := make([]edgeRequest, 0, len(edges))
	for _, e := range edges {
		d := p.params.Deflection
		if faces := adjacent[e.ID()]; len(faces) > 0 {
			d = lo.Min(lo.Map(faces, func(f *topo.Face, _ int) float64 { return p.faceBase(f) }))
		}
		r := edgeRequest{edge: e, deflection: d}
		if p.params.Relative && !e.Degenerate {
			length, err := discretize.ArcLength(e.Curve, e.First, e.Last)
			if err != nil {
				r.err = err
			} else if scaled := d * length; scaled > 0 {
				r.deflection = scaled
				if p.params.Ratio > 0 && p.size > 0 {
					r.deflection = math.Min(scaled, p.params.Ratio*d*p.size)
				}
			}
		}
		out = append(out, r)
	}
	return out
}

func (p *pass) edgeAttempt(r edgeRequest) attempt {
	return attempt{
		fingerprint: r.edge.Fingerprint(),
		deflection:  r.deflection,
		angle:       p.params.Angle,
	}
}

// edgeNeedsWork reports whether an edge must be rediscretized. An edge that
// failed with the same inputs before is reported again without a retry.
func (p *pass) edgeNeedsWork(r edgeRequest) bool {
	id := r.edge.ID()
	a := p.edgeAttempt(r)
	if poly, ok := p.mesh.Polygon(id); ok && poly.Fingerprint == a.fingerprint &&
		!tighter(r.deflection, poly.Deflection) && !tighter(a.angle, poly.Angle) {
		return false
	}
	if prev, ok := p.state.edgeFailures[id]; ok && prev.same(a) {
		p.fail(id, topo.KindEdge, prev.err)
		return false
	}
	return true
}

func (p *pass) updateEdge(r edgeRequest) (*discretize.Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	return discretize.Edge(r.edge, discretize.Params{
		Deflection: r.deflection,
		Angle:      p.params.Angle,
		MaxPoints:  p.params.MaxEdgePoints,
	})
}

func (p *pass) commitEdge(r edgeRequest, res *discretize.Result, err error) {
	id := r.edge.ID()
	a := p.edgeAttempt(r)
	if err != nil {
		a.err = err
		p.state.edgeFailures[id] = a
		if _, ok := p.mesh.Polygon(id); ok {
			p.mesh.RemovePolygon(id)
			p.modified = true
		}
		p.fail(id, topo.KindEdge, err)
		return
	}
	delete(p.state.edgeFailures, id)

	samples := lo.Map(res.Points, func(pt v3.Vec, i int) mesh.EdgeSample {
		return mesh.EdgeSample{Param: res.Params[i], P: pt}
	})
	p.mesh.SetPolygon(r.edge, samples, mesh.Polygon{
		Deflection:  r.deflection,
		Angle:       a.angle,
		Fingerprint: a.fingerprint,
		Truncated:   res.Truncated,
	})
	p.modified = true
	p.report.EdgesUpdated++
	if res.Truncated {
		p.truncated(id, topo.KindEdge)
	}
}

// edgePhase discretizes the edges that need it in parallel and commits the
// results in edge order.
func (p *pass) edgePhase(ctx context.Context) error {
	todo := lo.Filter(p.edgeRequests(), func(r edgeRequest, _ int) bool {
		return p.edgeNeedsWork(r)
	})
	if len(todo) == 0 {
		return nil
	}

	cache := newEdgeCache()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.params.workers())
	for _, r := range todo {
		entry, writer := cache.claim(r.edge.ID())
		if !writer {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				entry.publish(nil, err)
				return err
			}
			res, err := p.updateEdge(r)
			entry.publish(res, err)
			return nil
		})
	}

	for _, r := range todo {
		entry, _ := cache.get(r.edge.ID())
		res, err := entry.wait(ctx)
		if err != nil && cancelled(err) {
			g.Wait()
			return err
		}
		p.commitEdge(r, res, err)
	}
	return g.Wait()
}

// boundaryKey identifies the polygons a face is bounded by, so a face is
// retriangulated whenever one of its edges is rediscretized.
func (p *pass) boundaryKey(f *topo.Face) uint64 {
	h := fnv.New64a()
	var buf [16]byte
	for _, e := range f.Edges() {
		var version uint64
		if poly, ok := p.mesh.Polygon(e.ID()); ok {
			version = poly.Version
		}
		binary.LittleEndian.PutUint64(buf[:8], uint64(e.ID()))
		binary.LittleEndian.PutUint64(buf[8:], version)
		h.Write(buf[:])
	}
	return h.Sum64()
}

type faceJob struct {
	face       *topo.Face
	deflection float64
	boundary   uint64
	result     *triangulate.Result
	err        error
}

func (p *pass) faceAttempt(j *faceJob) attempt {
	return attempt{
		fingerprint: j.face.Fingerprint(),
		boundary:    j.boundary,
		deflection:  j.deflection,
		angle:       p.params.Angle,
	}
}

func (p *pass) faceNeedsWork(j *faceJob) bool {
	id := j.face.ID()
	a := p.faceAttempt(j)
	if d, ok := p.mesh.Domain(id); ok && d.Fingerprint == a.fingerprint && d.Boundary == a.boundary &&
		!tighter(j.deflection, d.Deflection) && !tighter(a.angle, d.Angle) {
		return false
	}
	if prev, ok := p.state.faceFailures[id]; ok && prev.same(a) {
		p.fail(id, topo.KindFace, prev.err)
		return false
	}
	return true
}

// updateFace triangulates one face from the committed edge polygons.
func (p *pass) updateFace(j *faceJob) (*triangulate.Result, error) {
	outer, err := triangulate.BuildLoop(j.face.Outer, p.mesh)
	if err != nil {
		return nil, err
	}
	inner := make([]triangulate.Loop, 0, len(j.face.Inner))
	for _, w := range j.face.Inner {
		l, err := triangulate.BuildLoop(w, p.mesh)
		if err != nil {
			return nil, err
		}
		inner = append(inner, l)
	}
	return triangulate.Triangulate(triangulate.Input{
		Surface:    j.face.Surface,
		Outer:      outer,
		Inner:      inner,
		Deflection: j.deflection,
		Angle:      p.params.Angle,
		MaxPoints:  p.params.MaxFacePoints,
	})
}

func (p *pass) commitFace(j *faceJob) {
	id := j.face.ID()
	a := p.faceAttempt(j)
	err := j.err
	if err == nil {
		tris := j.result.Triangles
		if j.face.Reversed {
			tris = lo.Map(tris, func(t [3]int, _ int) [3]int { return [3]int{t[0], t[2], t[1]} })
		}
		var n int
		n, err = p.mesh.ReplaceDomain(id, mesh.DomainInput{
			Boundary:  j.result.Nodes,
			Interior:  lo.Map(j.result.Interior, func(pt triangulate.Point, _ int) v3.Vec { return pt.P }),
			Triangles: tris,
		}, mesh.Domain{
			Deflection:  j.deflection,
			Angle:       a.angle,
			Fingerprint: a.fingerprint,
			Boundary:    a.boundary,
			Truncated:   j.result.Truncated,
		})
		if err == nil && n == 0 {
			err = errors.Wrapf(triangulate.ErrTriangulation, "face %s has no triangles left after dropping collapsed ones", id)
		}
	}
	if err != nil {
		a.err = err
		p.state.faceFailures[id] = a
		if _, ok := p.mesh.Domain(id); ok {
			p.mesh.RemoveDomain(id)
			p.modified = true
		}
		p.fail(id, topo.KindFace, err)
		return
	}
	delete(p.state.faceFailures, id)
	p.modified = true
	p.report.FacesUpdated++
	if j.result.Truncated {
		p.truncated(id, topo.KindFace)
	}
}

// facePhase triangulates the faces that need it in parallel and commits
// them in face order.
func (p *pass) facePhase(ctx context.Context) error {
	var jobs []*faceJob
	for _, f := range p.shape.Faces {
		j := &faceJob{face: f, deflection: p.faceDeflection(f), boundary: p.boundaryKey(f)}
		if p.faceNeedsWork(j) {
			jobs = append(jobs, j)
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.params.workers())
	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			j.result, j.err = p.updateFace(j)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, j := range jobs {
		p.commitFace(j)
	}
	return nil
}

// removeStale drops the polygons and domains of entities the shape no
// longer has.
func (p *pass) removeStale() {
	edges := lo.SliceToMap(p.shape.Edges(), func(e *topo.Edge) (topo.ID, bool) { return e.ID(), true })
	faces := lo.SliceToMap(p.shape.Faces, func(f *topo.Face) (topo.ID, bool) { return f.ID(), true })
	for _, id := range p.mesh.Edges() {
		if !edges[id] {
			p.mesh.RemovePolygon(id)
			p.modified = true
		}
	}
	for _, id := range p.mesh.Faces() {
		if !faces[id] {
			p.mesh.RemoveDomain(id)
			p.modified = true
		}
	}
	for id := range p.state.edgeFailures {
		if !edges[id] {
			delete(p.state.edgeFailures, id)
		}
	}
	for id := range p.state.faceFailures {
		if !faces[id] {
			delete(p.state.faceFailures, id)
		}
	}
}
