package meshadapt

import (
	"time"

	"github.com/chazu/brepmesh/pkg/mesh"
	"github.com/chazu/brepmesh/pkg/topo"
	"github.com/samber/lo"
)

// Failure is an entity that could not be meshed. Its neighbours are meshed
// regardless.
type Failure struct {
	Entity topo.ID
	Kind   topo.Kind
	Err    error
}

// Report summarizes the most recent Update.
type Report struct {
	Shape  topo.ID
	Status mesh.Status
	// Edges and Faces count the shape's entities.
	Edges int
	Faces int
	// EdgesUpdated and FacesUpdated count the entities rewritten by the pass.
	EdgesUpdated int
	FacesUpdated int
	Failures     []Failure
	// Truncated lists entities whose refinement hit a resource bound.
	Truncated []topo.ID
	Stats     mesh.Stats
	Compacted bool
	Duration  time.Duration
}

// OK reports whether every entity was meshed.
func (r Report) OK() bool {
	return len(r.Failures) == 0
}

// FailedEdges returns the IDs of the edges that could not be discretized.
func (r Report) FailedEdges() []topo.ID {
	return r.failed(topo.KindEdge)
}

// FailedFaces returns the IDs of the faces that could not be triangulated.
func (r Report) FailedFaces() []topo.ID {
	return r.failed(topo.KindFace)
}

func (r Report) failed(k topo.Kind) []topo.ID {
	return lo.FilterMap(r.Failures, func(f Failure, _ int) (topo.ID, bool) {
		return f.Entity, f.Kind == k
	})
}
