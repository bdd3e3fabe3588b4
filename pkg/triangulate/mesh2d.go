package triangulate

import (
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// tri is a counter-clockwise triangle. n[i] is the triangle across the edge
// v[i] -> v[i+1], or -1 on the boundary.
type tri struct {
	v [3]int
	n [3]int
}

type edgeKey [2]int

func undirected(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

type edgeRef struct {
	t, a, b int
}

// triangulation is the working state of one face.
type triangulation struct {
	in        Input
	uv        []v2.Vec
	p         []v3.Vec
	nodes     []int
	boundary  int
	fixed     map[edgeKey]bool
	fixedList [][2]int
	tris      []tri
	touched   map[int]bool
	truncated bool
	flips     int
}

func newTriangulation(in Input) *triangulation {
	return &triangulation{
		in:    in,
		fixed: make(map[edgeKey]bool),
	}
}

func (t *triangulation) addBoundary(s Sample) int {
	t.uv = append(t.uv, s.UV)
	t.p = append(t.p, s.P)
	t.nodes = append(t.nodes, s.Node)
	t.boundary = len(t.uv)
	return len(t.uv) - 1
}

func (t *triangulation) addInterior(uv v2.Vec, p v3.Vec) int {
	t.uv = append(t.uv, uv)
	t.p = append(t.p, p)
	return len(t.uv) - 1
}

// node identifies the mesh node behind a local vertex. Interior vertices get
// distinct negative keys.
func (t *triangulation) node(i int) int {
	if i < t.boundary {
		return t.nodes[i]
	}
	return -1 - i
}

func (t *triangulation) fix(a, b int) {
	k := undirected(a, b)
	if !t.fixed[k] {
		t.fixed[k] = true
		t.fixedList = append(t.fixedList, [2]int{a, b})
	}
}

func (t *triangulation) isFixed(a, b int) bool {
	return t.fixed[undirected(a, b)]
}

// orient is twice the signed area of a, b, c; positive when counter-clockwise.
func orient(a, b, c v2.Vec) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// inCircle is positive when d lies inside the circumcircle of the
// counter-clockwise triangle a, b, c. The second result is the magnitude
// below which the sign is not trusted.
func inCircle(a, b, c, d v2.Vec) (float64, float64) {
	adx, ady := a.X-d.X, a.Y-d.Y
	bdx, bdy := b.X-d.X, b.Y-d.Y
	cdx, cdy := c.X-d.X, c.Y-d.Y
	al := adx*adx + ady*ady
	bl := bdx*bdx + bdy*bdy
	cl := cdx*cdx + cdy*cdy
	det := adx*(bdy*cl-cdy*bl) - ady*(bdx*cl-cdx*bl) + al*(bdx*cdy-bdy*cdx)
	s := al + bl + cl
	return det, 1e-10 * s * s
}

func slotOf(tr tri, a, b int) int {
	for s := 0; s < 3; s++ {
		if tr.v[s] == a && tr.v[(s+1)%3] == b {
			return s
		}
	}
	return -1
}

// setNeighbor points the edge a -> b of triangle k at nb.
func (t *triangulation) setNeighbor(k, a, b, nb int) {
	if k < 0 {
		return
	}
	if s := slotOf(t.tris[k], a, b); s >= 0 {
		t.tris[k].n[s] = nb
	}
}

func (t *triangulation) touch(ks ...int) {
	if t.touched == nil {
		return
	}
	for _, k := range ks {
		t.touched[k] = true
	}
}

// link derives adjacency from shared directed edges.
func (t *triangulation) link() {
	owner := make(map[edgeKey]int, 3*len(t.tris))
	for i, tr := range t.tris {
		for s := 0; s < 3; s++ {
			owner[edgeKey{tr.v[s], tr.v[(s+1)%3]}] = i
		}
	}
	for i := range t.tris {
		tr := &t.tris[i]
		for s := 0; s < 3; s++ {
			tr.n[s] = -1
			if k, ok := owner[edgeKey{tr.v[(s+1)%3], tr.v[s]}]; ok {
				tr.n[s] = k
			}
		}
	}
}

// flip replaces the pair (a, b, c), (b, a, d) sharing edge a-b with
// (c, a, d), (d, b, c).
func (t *triangulation) flip(ti, i int) (int, [4]edgeRef) {
	tr := t.tris[ti]
	a, b, c := tr.v[i], tr.v[(i+1)%3], tr.v[(i+2)%3]
	ui := tr.n[i]
	u := t.tris[ui]
	j := slotOf(u, b, a)
	d := u.v[(j+2)%3]
	nBC, nCA := tr.n[(i+1)%3], tr.n[(i+2)%3]
	nAD, nDB := u.n[(j+1)%3], u.n[(j+2)%3]

	t.tris[ti] = tri{v: [3]int{c, a, d}, n: [3]int{nCA, nAD, ui}}
	t.tris[ui] = tri{v: [3]int{d, b, c}, n: [3]int{nDB, nBC, ti}}
	t.setNeighbor(nAD, d, a, ti)
	t.setNeighbor(nBC, c, b, ui)
	t.touch(ti, ui)
	t.flips++
	return ui, [4]edgeRef{{ti, c, a}, {ti, a, d}, {ui, d, b}, {ui, b, c}}
}

func (t *triangulation) maxFlips() int {
	n := len(t.uv)
	return 50*n*n + 1000
}

// legalize flips non-fixed edges until every queued edge satisfies the
// empty circumcircle criterion.
func (t *triangulation) legalize(queue []edgeRef) {
	for len(queue) > 0 && t.flips < t.maxFlips() {
		e := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		tr := t.tris[e.t]
		s := slotOf(tr, e.a, e.b)
		if s < 0 || t.isFixed(e.a, e.b) {
			continue
		}
		ui := tr.n[s]
		if ui < 0 {
			continue
		}
		j := slotOf(t.tris[ui], e.b, e.a)
		if j < 0 {
			continue
		}
		a, b, c := t.uv[e.a], t.uv[e.b], t.uv[tr.v[(s+2)%3]]
		d := t.uv[t.tris[ui].v[(j+2)%3]]
		det, eps := inCircle(a, b, c, d)
		if det <= eps {
			continue
		}
		if orient(c, a, d) <= 0 || orient(d, b, c) <= 0 {
			continue
		}
		_, next := t.flip(e.t, s)
		queue = append(queue, next[:]...)
	}
}

func (t *triangulation) legalizeAll() {
	var queue []edgeRef
	for i, tr := range t.tris {
		for s := 0; s < 3; s++ {
			queue = append(queue, edgeRef{i, tr.v[s], tr.v[(s+1)%3]})
		}
	}
	t.legalize(queue)
}

// splitCentroid inserts p inside triangle ti.
func (t *triangulation) splitCentroid(ti, p int) {
	tr := t.tris[ti]
	a, b, c := tr.v[0], tr.v[1], tr.v[2]
	nAB, nBC, nCA := tr.n[0], tr.n[1], tr.n[2]
	t1, t2 := len(t.tris), len(t.tris)+1

	t.tris[ti] = tri{v: [3]int{a, b, p}, n: [3]int{nAB, t1, t2}}
	t.tris = append(t.tris,
		tri{v: [3]int{b, c, p}, n: [3]int{nBC, t2, ti}},
		tri{v: [3]int{c, a, p}, n: [3]int{nCA, ti, t1}},
	)
	t.setNeighbor(nBC, c, b, t1)
	t.setNeighbor(nCA, a, c, t2)
	t.touch(ti, t1, t2)
	t.legalize([]edgeRef{{ti, a, b}, {t1, b, c}, {t2, c, a}})
}

// splitEdge inserts m on the interior edge at slot s of triangle ti,
// turning the two triangles sharing it into four.
func (t *triangulation) splitEdge(ti, s, m int) {
	tr := t.tris[ti]
	a, b, c := tr.v[s], tr.v[(s+1)%3], tr.v[(s+2)%3]
	ui := tr.n[s]
	u := t.tris[ui]
	j := slotOf(u, b, a)
	d := u.v[(j+2)%3]
	nBC, nCA := tr.n[(s+1)%3], tr.n[(s+2)%3]
	nAD, nDB := u.n[(j+1)%3], u.n[(j+2)%3]
	t2, u2 := len(t.tris), len(t.tris)+1

	t.tris[ti] = tri{v: [3]int{a, m, c}, n: [3]int{u2, t2, nCA}}
	t.tris[ui] = tri{v: [3]int{b, m, d}, n: [3]int{t2, u2, nDB}}
	t.tris = append(t.tris,
		tri{v: [3]int{m, b, c}, n: [3]int{ui, nBC, ti}},
		tri{v: [3]int{m, a, d}, n: [3]int{ti, nAD, ui}},
	)
	t.setNeighbor(nBC, c, b, t2)
	t.setNeighbor(nAD, d, a, u2)
	t.touch(ti, ui, t2, u2)
	t.legalize([]edgeRef{{ti, c, a}, {t2, b, c}, {ui, d, b}, {u2, a, d}})
}

func (t *triangulation) extent() float64 {
	if len(t.uv) == 0 {
		return 0
	}
	lo, hi := t.uv[0], t.uv[0]
	for _, q := range t.uv[1:] {
		lo = v2.Vec{X: math.Min(lo.X, q.X), Y: math.Min(lo.Y, q.Y)}
		hi = v2.Vec{X: math.Max(hi.X, q.X), Y: math.Max(hi.Y, q.Y)}
	}
	return math.Max(hi.X-lo.X, hi.Y-lo.Y)
}

func (t *triangulation) result() *Result {
	r := &Result{
		Nodes:     append([]int(nil), t.nodes...),
		Fixed:     append([][2]int(nil), t.fixedList...),
		Truncated: t.truncated,
	}
	for _, tr := range t.tris {
		r.Triangles = append(r.Triangles, tr.v)
	}
	for i := t.boundary; i < len(t.uv); i++ {
		r.Interior = append(r.Interior, Point{UV: t.uv[i], P: t.p[i]})
	}
	return r
}
