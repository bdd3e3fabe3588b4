package kernel

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// WriteSTL writes meshes as one binary STL: an 80-byte header, a
// little-endian triangle count, then per triangle a facet normal, three
// vertices and a zero attribute count.
func WriteSTL(w io.Writer, name string, meshes ...*Mesh) error {
	var count uint32
	for _, m := range meshes {
		count += uint32(m.TriangleCount())
	}

	header := make([]byte, 80)
	copy(header, name)
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(header); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	if err := binary.Write(bw, binary.LittleEndian, count); err != nil {
		return errors.Wrap(err, "failed to write triangle count")
	}

	for _, m := range meshes {
		for i := 0; i < m.TriangleCount(); i++ {
			t := m.Triangle(i)
			n := t[1].Sub(t[0]).Cross(t[2].Sub(t[0]))
			if l := n.Length(); l > 0 {
				n = n.MulScalar(1 / l)
			}
			facet := [12]float32{float32(n.X), float32(n.Y), float32(n.Z)}
			for k, p := range t {
				facet[3+3*k] = float32(p.X)
				facet[4+3*k] = float32(p.Y)
				facet[5+3*k] = float32(p.Z)
			}
			if err := binary.Write(bw, binary.LittleEndian, facet); err != nil {
				return errors.Wrapf(err, "failed to write triangle %d of %q", i, m.PartName)
			}
			if err := binary.Write(bw, binary.LittleEndian, uint16(0)); err != nil {
				return errors.Wrapf(err, "failed to write triangle %d of %q", i, m.PartName)
			}
		}
	}
	return bw.Flush()
}

// SaveSTL writes meshes to a binary STL file at path.
func SaveSTL(path string, meshes ...*Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := WriteSTL(f, "brepmesh", meshes...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
