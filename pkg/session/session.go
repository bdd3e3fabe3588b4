// Package session runs the full pipeline: script source is evaluated into a
// design graph, and the graph is tessellated incrementally. A Session keeps
// its mesher between runs, so editing a script re-meshes only what changed.
package session

import (
	"context"
	"time"

	"github.com/chazu/brepmesh/pkg/engine"
	"github.com/chazu/brepmesh/pkg/kernel"
	"github.com/chazu/brepmesh/pkg/meshadapt"
	"github.com/chazu/brepmesh/pkg/tessellate"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Result is the outcome of one Run.
type Result struct {
	Parts    []tessellate.Part
	Errors   []engine.EvalError
	Warnings []engine.EvalWarning
	// Modified is set when any part mesh changed since the previous run.
	Modified bool
	Duration time.Duration
}

// OK reports whether the script evaluated and every part meshed cleanly.
func (r *Result) OK() bool {
	return len(r.Errors) == 0 && lo.EveryBy(r.Parts, func(p tessellate.Part) bool { return p.Report.OK() })
}

// Meshes returns the non-empty part meshes in part order.
func (r *Result) Meshes() []*kernel.Mesh {
	return lo.FilterMap(r.Parts, func(p tessellate.Part, _ int) (*kernel.Mesh, bool) {
		return p.Mesh, p.Mesh != nil && !p.Mesh.IsEmpty()
	})
}

// Triangles counts the triangles across all parts.
func (r *Result) Triangles() int {
	return lo.SumBy(r.Parts, func(p tessellate.Part) int { return p.Mesh.TriangleCount() })
}

// Session is not safe for concurrent use.
type Session struct {
	engine *engine.Engine
	tess   *tessellate.Tessellator
	log    zerolog.Logger
}

// Option configures a Session.
type Option func(*config)

type config struct {
	log    zerolog.Logger
	oracle kernel.Implicit
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithOracle measures every part against the implicit form of its
// primitive.
func WithOracle(o kernel.Implicit) Option {
	return func(c *config) { c.oracle = o }
}

// New returns a Session that builds shapes with k and meshes them with m.
func New(k kernel.Kernel, m *meshadapt.IncrementalMesh, opts ...Option) *Session {
	c := config{log: zerolog.Nop()}
	for _, o := range opts {
		o(&c)
	}
	topts := []tessellate.Option{tessellate.WithLogger(c.log)}
	if c.oracle != nil {
		topts = append(topts, tessellate.WithOracle(c.oracle))
	}
	return &Session{
		engine: engine.NewEngine(),
		tess:   tessellate.New(k, m, topts...),
		log:    c.log,
	}
}

// Run evaluates source and tessellates the resulting graph. Script errors
// are returned in the Result and leave the previous meshes in place. The
// error return is reserved for failures outside the script: timeouts,
// cancellation and tessellation errors.
func (s *Session) Run(ctx context.Context, source string) (*Result, error) {
	start := time.Now()

	ev, err := s.engine.Run(ctx, source)
	if err != nil {
		return nil, errors.Wrap(err, "session: evaluate")
	}
	res := &Result{Errors: ev.Errors, Warnings: ev.Warnings}
	for _, w := range ev.Warnings {
		s.log.Warn().Str("node", w.NodeID.Short()).Msg(w.Message)
	}
	if len(ev.Errors) > 0 {
		for _, e := range ev.Errors {
			s.log.Error().Int("line", e.Line).Msg(e.Message)
		}
		res.Duration = time.Since(start)
		return res, nil
	}

	tr, err := s.tess.Tessellate(ctx, ev.Graph)
	if err != nil {
		return nil, errors.Wrap(err, "session: tessellate")
	}
	res.Parts = tr.Parts
	res.Modified = tr.Modified
	res.Duration = time.Since(start)

	s.log.Info().
		Int("parts", len(res.Parts)).
		Int("triangles", res.Triangles()).
		Int("failures", tr.Failures()).
		Bool("modified", res.Modified).
		Dur("took", res.Duration).
		Msg("session run")
	return res, nil
}
