package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/brepmesh/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites scene source before passing it to zygomys. It
// performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: mesh-params -> mesh_params
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Values passed between builtins
// ---------------------------------------------------------------------------

// sexpPrimitive is returned by the solid constructors and consumed by
// defpart.
type sexpPrimitive struct {
	data graph.PrimitiveData
}

func (p *sexpPrimitive) SexpString(ps *zygo.PrintState) string {
	d := p.data
	switch d.Prim {
	case graph.PrimBox:
		return fmt.Sprintf("(box %g %g %g)", d.Size.X, d.Size.Y, d.Size.Z)
	case graph.PrimCylinder:
		return fmt.Sprintf("(cylinder :height %g :radius %g)", d.Height, d.Radius)
	case graph.PrimSphere:
		return fmt.Sprintf("(sphere :radius %g)", d.Radius)
	case graph.PrimTube:
		return fmt.Sprintf("(tube :height %g :outer %g :inner %g)", d.Height, d.Radius, d.Inner)
	}
	return "(primitive)"
}
func (p *sexpPrimitive) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef wraps a graph.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   graph.NodeID
	name string // for error messages
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(noderef %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id.Short())
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

type sexpVec3 struct {
	vec graph.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW returns the keyword name of a preprocessed keyword string.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates keyword arguments from positional ones. A trailing
// keyword with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// number reads a numeric argument given either by keyword or at a
// positional index. It reports whether the argument was present.
func (a kwArgs) number(key string, pos int) (float64, bool, error) {
	v, ok := a.kw[key]
	if !ok {
		if pos < 0 || pos >= len(a.positional) {
			return 0, false, nil
		}
		v = a.positional[pos]
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return f, true, nil
}

// require is number for mandatory arguments.
func (a kwArgs) require(key string, pos int) (float64, error) {
	f, ok, err := a.number(key, pos)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("missing :%s", key)
	}
	return f, nil
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toBool accepts true/false and numbers, where zero is false.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpInt:
		return v.Val != 0, nil
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

func toNodeRef(s zygo.Sexp) (graph.NodeID, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.id, nil
	}
	return graph.ZeroID, fmt.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (graph.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return graph.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a list or array to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Scene builder
// ---------------------------------------------------------------------------

// builder accumulates one evaluation's graph. Anonymous node paths are
// numbered per evaluation so that re-evaluating the same source yields the
// same IDs.
type builder struct {
	g       *graph.DesignGraph
	order   []graph.NodeID
	counter map[string]int
}

func newBuilder() *builder {
	return &builder{g: graph.New(), counter: make(map[string]int)}
}

func (b *builder) add(n *graph.Node) {
	if _, dup := b.g.Nodes[n.ID]; !dup {
		b.order = append(b.order, n.ID)
	}
	b.g.AddNode(n)
}

// anonPath returns prefix/label/N with N counting from 1 per prefix/label.
func (b *builder) anonPath(prefix, label string) string {
	key := prefix + "/" + label
	b.counter[key]++
	return fmt.Sprintf("%s/%d", key, b.counter[key])
}

// children reads node references, flattening lists.
func (b *builder) children(form string, args []zygo.Sexp) ([]graph.NodeID, error) {
	var ids []graph.NodeID
	for i, arg := range args {
		if ref, ok := arg.(*sexpNodeRef); ok {
			ids = append(ids, ref.id)
			continue
		}
		items, err := sexpListToSlice(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: child %d: expected node reference, got %T (%s)",
				form, i+1, arg, arg.SexpString(nil))
		}
		nested, err := b.children(form, items)
		if err != nil {
			return nil, err
		}
		ids = append(ids, nested...)
	}
	return ids, nil
}

// finish makes every node without a parent a root, in creation order.
func (b *builder) finish() *graph.DesignGraph {
	parented := make(map[graph.NodeID]bool)
	for _, n := range b.g.Nodes {
		for _, c := range n.Children {
			parented[c] = true
		}
	}
	for _, id := range b.order {
		if !parented[id] {
			b.g.AddRoot(id)
		}
	}
	return b.g
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the scene builtins into a zygomys environment.
// Source must be preprocessed with preprocessSource first so that :keyword
// tokens arrive as recognizable strings.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// (box 40 20 5) or (box :x 40 :y 20 :z 5)
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var size [3]float64
		for i, key := range []string{"x", "y", "z"} {
			f, err := pa.require(key, i)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: %w", err)
			}
			size[i] = f
		}
		return &sexpPrimitive{data: graph.PrimitiveData{
			Prim: graph.PrimBox,
			Size: graph.Vec3{X: size[0], Y: size[1], Z: size[2]},
		}}, nil
	})

	// (cylinder :height 10 :radius 5)
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		h, err := pa.require("height", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		r, err := pa.require("radius", 1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		return &sexpPrimitive{data: graph.PrimitiveData{Prim: graph.PrimCylinder, Height: h, Radius: r}}, nil
	})

	// (sphere :radius 3)
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		r, err := parseArgs(args).require("radius", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: %w", err)
		}
		return &sexpPrimitive{data: graph.PrimitiveData{Prim: graph.PrimSphere, Radius: r}}, nil
	})

	// (tube :height 10 :outer 5 :inner 4)
	env.AddFunction("tube", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		d := graph.PrimitiveData{Prim: graph.PrimTube}
		var err error
		if d.Height, err = pa.require("height", 0); err != nil {
			return zygo.SexpNull, fmt.Errorf("tube: %w", err)
		}
		if d.Radius, err = pa.require("outer", 1); err != nil {
			return zygo.SexpNull, fmt.Errorf("tube: %w", err)
		}
		if d.Inner, err = pa.require("inner", 2); err != nil {
			return zygo.SexpNull, fmt.Errorf("tube: %w", err)
		}
		return &sexpPrimitive{data: d}, nil
	})

	// (defpart "name" (box ...))
	env.AddFunction("defpart", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("defpart requires a name and a body expression")
		}
		partName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart: name: %w", err)
		}
		if partName == "" {
			return zygo.SexpNull, fmt.Errorf("defpart: name must not be empty")
		}
		if b.g.Lookup(partName) != nil {
			return zygo.SexpNull, fmt.Errorf("defpart: %q is already defined", partName)
		}
		body, ok := args[1].(*sexpPrimitive)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("defpart: expected a solid (box, cylinder, sphere, tube), got %T", args[1])
		}

		id := graph.NewNodeID("defpart/" + partName)
		b.add(&graph.Node{ID: id, Kind: graph.NodePrimitive, Name: partName, Data: body.data})
		return &sexpNodeRef{id: id, name: partName}, nil
	})

	// (part "name")
	env.AddFunction("part", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("part requires a name argument")
		}
		partName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part: name: %w", err)
		}
		n := b.g.Lookup(partName)
		if n == nil {
			return zygo.SexpNull, fmt.Errorf("part: no part named %q", partName)
		}
		return &sexpNodeRef{id: n.ID, name: partName}, nil
	})

	// (vec3 1 2 3)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: graph.Vec3{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// (place (part "leg") :at (vec3 0 0 19) :rotate (vec3 0 90 0))
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("place requires a node reference as first argument")
		}
		childID, err := toNodeRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}

		td := graph.TransformData{}
		if v, ok := pa.kw["at"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: at: %w", err)
			}
			td.Translation = &vec
		}
		if v, ok := pa.kw["rotate"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: rotate: %w", err)
			}
			td.Rotation = &vec
		}

		label := childID.Short()
		if child := b.g.Get(childID); child != nil {
			label = child.Label()
		}
		id := graph.NewNodeID(b.anonPath("place", label))
		b.add(&graph.Node{
			ID:       id,
			Kind:     graph.NodeTransform,
			Children: []graph.NodeID{childID},
			Data:     td,
		})
		return &sexpNodeRef{id: id}, nil
	})

	// (group "name" (place ...) (part "x") ...)
	group := func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("%s requires a name argument", name)
		}
		groupName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: name: %w", name, err)
		}
		if b.g.Lookup(groupName) != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %q is already defined", name, groupName)
		}
		children, err := b.children(name, args[1:])
		if err != nil {
			return zygo.SexpNull, err
		}

		id := graph.NewNodeID("group/" + groupName)
		b.add(&graph.Node{
			ID:       id,
			Kind:     graph.NodeGroup,
			Name:     groupName,
			Children: children,
			Data:     graph.GroupData{},
		})
		return &sexpNodeRef{id: id, name: groupName}, nil
	}
	env.AddFunction("group", group)
	env.AddFunction("assembly", group)

	// (mesh-params :deflection 0.05 :angle 0.3 :relative true :ratio 0.1)
	env.AddFunction("mesh_params", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		ms := graph.MeshSettings{}
		if prev := b.g.Defaults.Mesh; prev != nil {
			ms = *prev
		}
		for key, dst := range map[string]*float64{
			"deflection": &ms.Deflection,
			"angle":      &ms.Angle,
			"ratio":      &ms.Ratio,
		} {
			f, ok, err := pa.number(key, -1)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("mesh-params: %w", err)
			}
			if ok {
				*dst = f
			}
		}
		if v, ok := pa.kw["relative"]; ok {
			rel, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("mesh-params: relative: %w", err)
			}
			ms.Relative = &rel
		}
		b.g.Defaults.Mesh = &ms
		return zygo.SexpNull, nil
	})
}
