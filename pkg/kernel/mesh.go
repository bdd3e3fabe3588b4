package kernel

import (
	"github.com/chazu/brepmesh/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mesh is a triangle mesh suitable for rendering and export.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	PartName string    `json:"partName"` // which scene part this came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Triangle returns the corners of triangle i.
func (m *Mesh) Triangle(i int) [3]v3.Vec {
	var out [3]v3.Vec
	for k := 0; k < 3; k++ {
		j := int(m.Indices[3*i+k]) * 3
		out[k] = v3.Vec{X: float64(m.Vertices[j]), Y: float64(m.Vertices[j+1]), Z: float64(m.Vertices[j+2])}
	}
	return out
}

// FromShapeMesh flattens the live face triangles of sm. Nodes used by
// several triangles become shared vertices whose normal is the area
// weighted average of the adjacent triangle normals.
func FromShapeMesh(sm *mesh.ShapeMesh, partName string) *Mesh {
	out := &Mesh{PartName: partName}
	remap := make(map[int]uint32)
	var points []v3.Vec
	var normals []v3.Vec

	vertex := func(n int) uint32 {
		if i, ok := remap[n]; ok {
			return i
		}
		i := uint32(len(points))
		remap[n] = i
		points = append(points, sm.Point(n))
		normals = append(normals, v3.Vec{})
		return i
	}

	for _, face := range sm.Faces() {
		for _, tri := range sm.FaceTriangles(face) {
			a, b, c := vertex(tri[0]), vertex(tri[1]), vertex(tri[2])
			n := points[b].Sub(points[a]).Cross(points[c].Sub(points[a]))
			for _, i := range []uint32{a, b, c} {
				normals[i] = normals[i].Add(n)
			}
			out.Indices = append(out.Indices, a, b, c)
		}
	}

	out.Vertices = make([]float32, 0, 3*len(points))
	out.Normals = make([]float32, 0, 3*len(points))
	for i, p := range points {
		n := normals[i]
		if l := n.Length(); l > 0 {
			n = n.MulScalar(1 / l)
		}
		out.Vertices = append(out.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
		out.Normals = append(out.Normals, float32(n.X), float32(n.Y), float32(n.Z))
	}
	return out
}
