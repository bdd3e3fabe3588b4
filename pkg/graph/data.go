package graph

// PrimitiveKind distinguishes between primitive solids.
type PrimitiveKind int

const (
	PrimBox PrimitiveKind = iota
	PrimCylinder
	PrimSphere
	PrimTube
)

func (k PrimitiveKind) String() string {
	switch k {
	case PrimBox:
		return "box"
	case PrimCylinder:
		return "cylinder"
	case PrimSphere:
		return "sphere"
	case PrimTube:
		return "tube"
	default:
		return "unknown"
	}
}

// PrimitiveData describes one solid. Which fields apply depends on Prim:
// a box uses Size, a cylinder Height and Radius, a sphere Radius, a tube
// Height, Radius and Inner.
type PrimitiveData struct {
	Prim   PrimitiveKind `json:"prim"`
	Size   Vec3          `json:"size,omitempty"`
	Height float64       `json:"height,omitempty"`
	Radius float64       `json:"radius,omitempty"`
	Inner  float64       `json:"inner,omitempty"`
}

func (PrimitiveData) nodeData() {}

// TransformData places its children. Rotation is applied before
// translation. Created by the (place ...) form.
type TransformData struct {
	Translation *Vec3 `json:"translation,omitempty"`
	Rotation    *Vec3 `json:"rotation,omitempty"` // Euler angles in degrees
}

func (TransformData) nodeData() {}

// GroupData is a named collection. Created by the (group ...) form.
type GroupData struct {
	Description string `json:"description,omitempty"`
}

func (GroupData) nodeData() {}

// MeshSettings are tessellation tolerances requested by a script with
// (mesh-params ...). Zero fields keep the caller's settings.
type MeshSettings struct {
	Deflection float64 `json:"deflection,omitempty"`
	Angle      float64 `json:"angle,omitempty"`
	Ratio      float64 `json:"ratio,omitempty"`
	Relative   *bool   `json:"relative,omitempty"`
}
