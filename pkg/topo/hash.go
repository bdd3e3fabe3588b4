package topo

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// hasher accumulates geometry parameters into an FNV-1a fingerprint.
type hasher struct {
	h   hash.Hash64
	buf [8]byte
}

func newHasher() *hasher {
	return &hasher{h: fnv.New64a()}
}

func (h *hasher) u64(xs ...uint64) *hasher {
	for _, x := range xs {
		binary.LittleEndian.PutUint64(h.buf[:], x)
		_, _ = h.h.Write(h.buf[:]) // fnv.Write never returns an error
	}
	return h
}

func (h *hasher) float(fs ...float64) *hasher {
	for _, f := range fs {
		h.u64(math.Float64bits(f))
	}
	return h
}

func (h *hasher) vec(vs ...v3.Vec) *hasher {
	for _, v := range vs {
		h.float(v.X, v.Y, v.Z)
	}
	return h
}

func (h *hasher) vec2(vs ...v2.Vec) *hasher {
	for _, v := range vs {
		h.float(v.X, v.Y)
	}
	return h
}

func (h *hasher) str(s string) *hasher {
	_, _ = h.h.Write([]byte(s))
	_, _ = h.h.Write([]byte{0})
	return h
}

func (h *hasher) boolean(b bool) *hasher {
	if b {
		return h.u64(1)
	}
	return h.u64(0)
}

func (h *hasher) sum() uint64 {
	return h.h.Sum64()
}
