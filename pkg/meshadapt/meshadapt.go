// Package meshadapt keeps triangle meshes of B-Rep shapes up to date with
// their geometry and with the requested tolerances.
//
// An IncrementalMesh owns one mesh.ShapeMesh per shape ID. Each Update
// discretizes the edges that need it, then triangulates the faces whose
// boundary, geometry or tolerance changed, and leaves every other entity as
// it was. Edges shared by several faces are discretized once, with the
// tightest deflection any of those faces asks for, so adjacent faces always
// meet on the same nodes.
package meshadapt

import (
	"sync"

	"github.com/chazu/brepmesh/pkg/mesh"
	"github.com/chazu/brepmesh/pkg/topo"
	"github.com/rs/zerolog"
)

// compactThreshold is the tombstone ratio above which Update compacts a
// shape mesh.
const compactThreshold = 0.5

// Option configures an IncrementalMesh.
type Option func(*IncrementalMesh)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(m *IncrementalMesh) { m.log = l }
}

// WithParams replaces the default parameters. They are validated by Update.
func WithParams(p Params) Option {
	return func(m *IncrementalMesh) { m.params = p }
}

// WithWorkers bounds the goroutines used per phase.
func WithWorkers(n int) Option {
	return func(m *IncrementalMesh) { m.params.Workers = n }
}

// IncrementalMesh meshes shapes and remeshes only what changed. Methods may
// be called from several goroutines; Updates are serialized.
type IncrementalMesh struct {
	mu             sync.Mutex
	log            zerolog.Logger
	params         Params
	faceDeflection map[topo.ID]float64
	shapes         map[topo.ID]*shapeState
	modified       bool
	report         Report
}

// shapeState is the mesh of one shape plus the attempts that failed, so
// they are only retried once their inputs change.
type shapeState struct {
	mesh         *mesh.ShapeMesh
	edgeFailures map[topo.ID]attempt
	faceFailures map[topo.ID]attempt
}

type attempt struct {
	fingerprint uint64
	boundary    uint64
	deflection  float64
	angle       float64
	err         error
}

func (a attempt) same(b attempt) bool {
	return a.fingerprint == b.fingerprint && a.boundary == b.boundary &&
		a.deflection == b.deflection && a.angle == b.angle
}

// New returns an IncrementalMesh with DefaultParams.
func New(opts ...Option) *IncrementalMesh {
	m := &IncrementalMesh{
		log:            zerolog.Nop(),
		params:         DefaultParams(),
		faceDeflection: make(map[topo.ID]float64),
		shapes:         make(map[topo.ID]*shapeState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Params returns the current parameters.
func (m *IncrementalMesh) Params() Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params
}

// SetDeflection sets the linear deflection used by the next Update.
func (m *IncrementalMesh) SetDeflection(d float64) error {
	if err := checkDeflection(d); err != nil {
		return err
	}
	m.mu.Lock()
	m.params.Deflection = d
	m.mu.Unlock()
	return nil
}

// SetAngle sets the angular deflection in radians.
func (m *IncrementalMesh) SetAngle(a float64) error {
	if err := checkAngle(a); err != nil {
		return err
	}
	m.mu.Lock()
	m.params.Angle = a
	m.mu.Unlock()
	return nil
}

// SetRatio sets the cap applied to relative edge deflections.
func (m *IncrementalMesh) SetRatio(r float64) error {
	if err := checkRatio(r); err != nil {
		return err
	}
	m.mu.Lock()
	m.params.Ratio = r
	m.mu.Unlock()
	return nil
}

// SetRelative switches between absolute and relative deflection.
func (m *IncrementalMesh) SetRelative(relative bool) {
	m.mu.Lock()
	m.params.Relative = relative
	m.mu.Unlock()
}

// SetFaceDeflection overrides the deflection of one face. Edges the face
// shares with others use the tighter of the two requests.
func (m *IncrementalMesh) SetFaceDeflection(face topo.ID, d float64) error {
	if err := checkDeflection(d); err != nil {
		return err
	}
	m.mu.Lock()
	m.faceDeflection[face] = d
	m.mu.Unlock()
	return nil
}

// ClearFaceDeflection removes the override of one face.
func (m *IncrementalMesh) ClearFaceDeflection(face topo.ID) {
	m.mu.Lock()
	delete(m.faceDeflection, face)
	m.mu.Unlock()
}

// IsModified reports whether the most recent Update wrote any edge
// discretization or face triangulation.
func (m *IncrementalMesh) IsModified() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modified
}

// Mesh returns the mesh of a shape.
func (m *IncrementalMesh) Mesh(shape topo.ID) (*mesh.ShapeMesh, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.shapes[shape]
	if !ok {
		return nil, false
	}
	return st.mesh, true
}

// Report returns the summary of the most recent Update.
func (m *IncrementalMesh) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.report
	r.Failures = append([]Failure(nil), r.Failures...)
	r.Truncated = append([]topo.ID(nil), r.Truncated...)
	return r
}

// Forget drops the mesh of a shape. The next Update of that shape starts
// from scratch.
func (m *IncrementalMesh) Forget(shape topo.ID) {
	m.mu.Lock()
	delete(m.shapes, shape)
	m.mu.Unlock()
}

func (m *IncrementalMesh) state(shape topo.ID) *shapeState {
	st, ok := m.shapes[shape]
	if !ok {
		st = &shapeState{
			mesh:         mesh.NewShapeMesh(shape),
			edgeFailures: make(map[topo.ID]attempt),
			faceFailures: make(map[topo.ID]attempt),
		}
		m.shapes[shape] = st
	}
	return st
}
