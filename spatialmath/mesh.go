package spatialmath

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Face is a polygon given as indices into a mesh's vertex slice. The reconstruction stage emits
// triangles, but nothing prevents a collaborator from handing back other polygon sizes.
type Face []int

// IsTriangle returns whether the face has exactly three corners.
func (f Face) IsTriangle() bool {
	return len(f) == 3
}

// IsDegenerate returns whether any vertex index appears more than once in the face.
func (f Face) IsDegenerate() bool {
	for i := 0; i < len(f); i++ {
		for j := i + 1; j < len(f); j++ {
			if f[i] == f[j] {
				return true
			}
		}
	}
	return false
}

// Mesh is a vertex arena plus a face index array. Cleanup stages build a new Mesh rather than
// editing one in place, so a Mesh handed to a stage is never aliased by that stage's output.
type Mesh struct {
	vertices []r3.Vector
	faces    []Face
}

// NewMesh creates a mesh that takes ownership of the given slices.
func NewMesh(vertices []r3.Vector, faces []Face) *Mesh {
	return &Mesh{
		vertices: vertices,
		faces:    faces,
	}
}

// Vertices returns the vertex arena. Callers must not modify it.
func (m *Mesh) Vertices() []r3.Vector {
	return m.vertices
}

// Faces returns the faces. Callers must not modify them.
func (m *Mesh) Faces() []Face {
	return m.faces
}

// NumVertices returns the number of vertices.
func (m *Mesh) NumVertices() int {
	return len(m.vertices)
}

// NumFaces returns the number of faces.
func (m *Mesh) NumFaces() int {
	return len(m.faces)
}

// Triangle returns face i as a Triangle. The face must be a triangle with in-range indices.
func (m *Mesh) Triangle(i int) (*Triangle, error) {
	if i < 0 || i >= len(m.faces) {
		return nil, errors.Errorf("face index %d out of range [0, %d)", i, len(m.faces))
	}
	f := m.faces[i]
	if !f.IsTriangle() {
		return nil, errors.Errorf("face %d has %d vertices, not 3", i, len(f))
	}
	for _, idx := range f {
		if idx < 0 || idx >= len(m.vertices) {
			return nil, errors.Errorf("face %d references vertex %d out of range [0, %d)", i, idx, len(m.vertices))
		}
	}
	return NewTriangle(m.vertices[f[0]], m.vertices[f[1]], m.vertices[f[2]]), nil
}

// Validate checks that every face index addresses a vertex.
func (m *Mesh) Validate() error {
	for i, f := range m.faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(m.vertices) {
				return errors.Errorf("face %d references vertex %d out of range [0, %d)", i, idx, len(m.vertices))
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	vertices := make([]r3.Vector, len(m.vertices))
	copy(vertices, m.vertices)
	faces := make([]Face, len(m.faces))
	for i, f := range m.faces {
		faces[i] = append(Face(nil), f...)
	}
	return NewMesh(vertices, faces)
}

// Transform returns a copy of the mesh with every vertex moved by pose.
func (m *Mesh) Transform(pose Pose) *Mesh {
	out := m.Clone()
	for i, v := range out.vertices {
		out.vertices[i] = pose.Transform(v)
	}
	return out
}
