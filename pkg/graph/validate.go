package graph

import (
	"fmt"
	"math"
)

// ValidationSeverity indicates whether a finding blocks tessellation.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks tessellation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID // zero if graph-level
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID.Short(), e.Message)
}

// Validate runs the structural and dimensional checks on g. An empty slice
// means the graph is valid. It never mutates the graph.
func Validate(g *DesignGraph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(g)...)
	errs = append(errs, validateReferences(g)...)
	errs = append(errs, validateNames(g)...)
	errs = append(errs, validateRoots(g)...)
	errs = append(errs, validatePrimitives(g)...)
	errs = append(errs, validateMesh(g)...)
	return errs
}

// HasErrors reports whether any finding is error-severity.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// validateDAG looks for cycles with a three-color DFS.
func validateDAG(g *DesignGraph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected through node %s", id.Short()),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray
		node, ok := g.Nodes[id]
		if !ok {
			// Dangling; reported by validateReferences.
			color[id] = black
			return false
		}
		for _, childID := range node.Children {
			if visit(childID) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for id := range g.Nodes {
		if color[id] == white && visit(id) {
			break
		}
	}
	return errs
}

// validateReferences checks that children exist and that payloads match
// their node kind.
func validateReferences(g *DesignGraph) []ValidationError {
	var errs []ValidationError
	for _, node := range g.Nodes {
		for _, childID := range node.Children {
			if _, ok := g.Nodes[childID]; !ok {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("child reference %s does not exist", childID.Short()),
					Severity: SeverityError,
				})
			}
		}

		var ok bool
		switch node.Kind {
		case NodePrimitive:
			_, ok = node.Data.(PrimitiveData)
			if ok && len(node.Children) > 0 {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  "primitive nodes cannot have children",
					Severity: SeverityError,
				})
			}
		case NodeTransform:
			_, ok = node.Data.(TransformData)
		case NodeGroup:
			_, ok = node.Data.(GroupData)
		}
		if !ok {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("%s node carries %T data", node.Kind, node.Data),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateNames checks that every name index entry exists and that no two
// nodes share a name.
func validateNames(g *DesignGraph) []ValidationError {
	var errs []ValidationError
	for name, id := range g.NameIndex {
		if _, ok := g.Nodes[id]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, id.Short()),
				Severity: SeverityError,
			})
		}
	}

	counts := make(map[string]int)
	for _, node := range g.Nodes {
		if node.Name != "" {
			counts[node.Name]++
		}
	}
	for name, n := range counts {
		if n > 1 {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("duplicate name %q assigned to %d nodes", name, n),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateRoots checks that roots exist and warns about nodes no root
// reaches; those are never tessellated.
func validateRoots(g *DesignGraph) []ValidationError {
	var errs []ValidationError
	reachable := make(map[NodeID]bool)
	queue := make([]NodeID, 0, len(g.Roots))
	for _, rid := range g.Roots {
		if _, ok := g.Nodes[rid]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("root reference %s does not exist", rid.Short()),
				Severity: SeverityError,
			})
			continue
		}
		if !reachable[rid] {
			reachable[rid] = true
			queue = append(queue, rid)
		}
	}

	for len(queue) > 0 {
		node := g.Nodes[queue[0]]
		queue = queue[1:]
		if node == nil {
			continue
		}
		for _, childID := range node.Children {
			if !reachable[childID] {
				reachable[childID] = true
				queue = append(queue, childID)
			}
		}
	}

	for id, node := range g.Nodes {
		if !reachable[id] {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("node %q is not reachable from any root (orphan)", node.Label()),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// validatePrimitives checks that every primitive can be built.
func validatePrimitives(g *DesignGraph) []ValidationError {
	var errs []ValidationError
	bad := func(n *Node, format string, args ...any) {
		errs = append(errs, ValidationError{
			NodeID:   n.ID,
			Message:  fmt.Sprintf("%s %q: ", n.Data.(PrimitiveData).Prim, n.Label()) + fmt.Sprintf(format, args...),
			Severity: SeverityError,
		})
	}

	for _, n := range g.Nodes {
		d, ok := n.Data.(PrimitiveData)
		if !ok {
			continue
		}
		switch d.Prim {
		case PrimBox:
			if !positive(d.Size.X) || !positive(d.Size.Y) || !positive(d.Size.Z) {
				bad(n, "dimensions must be positive, got %gx%gx%g", d.Size.X, d.Size.Y, d.Size.Z)
			}
		case PrimCylinder:
			if !positive(d.Height) || !positive(d.Radius) {
				bad(n, "height and radius must be positive, got %g and %g", d.Height, d.Radius)
			}
		case PrimSphere:
			if !positive(d.Radius) {
				bad(n, "radius must be positive, got %g", d.Radius)
			}
		case PrimTube:
			switch {
			case !positive(d.Height) || !positive(d.Radius) || !positive(d.Inner):
				bad(n, "height and radii must be positive, got %g, %g and %g", d.Height, d.Radius, d.Inner)
			case d.Inner >= d.Radius:
				bad(n, "inner radius %g must be smaller than outer radius %g", d.Inner, d.Radius)
			}
		default:
			bad(n, "unknown primitive kind %d", int(d.Prim))
		}
	}
	return errs
}

// validateMesh checks script-supplied tessellation settings.
func validateMesh(g *DesignGraph) []ValidationError {
	m := g.Defaults.Mesh
	if m == nil {
		return nil
	}
	var errs []ValidationError
	check := func(name string, v float64) {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("mesh %s must be a finite non-negative number, got %g", name, v),
				Severity: SeverityError,
			})
		}
	}
	check("deflection", m.Deflection)
	check("angle", m.Angle)
	check("ratio", m.Ratio)
	return errs
}
