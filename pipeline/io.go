package pipeline

import (
	"context"

	"go.viam.com/meshfuse/pointcloud"
	"go.viam.com/meshfuse/spatialmath"
)

// MeshFileName is the name of the mesh written to the output directory.
const MeshFileName = "mesh.ply"

// MeshEncoding selects how a mesh file is written.
type MeshEncoding int

const (
	// EncodingBinary writes little-endian binary values.
	EncodingBinary MeshEncoding = iota
	// EncodingASCII writes human readable text.
	EncodingASCII
)

func (enc MeshEncoding) String() string {
	switch enc {
	case EncodingBinary:
		return "binary"
	case EncodingASCII:
		return "ascii"
	default:
		return "unknown"
	}
}

// A CloudLoader reads the point cloud of one frame.
type CloudLoader interface {
	LoadPointCloud(ctx context.Context, path string) (pointcloud.PointCloud, error)
}

// A MeshSaver writes the reconstructed mesh.
type MeshSaver interface {
	SaveMesh(ctx context.Context, path string, mesh *spatialmath.Mesh, enc MeshEncoding) error
}

// CloudLoaderFunc adapts a function to a CloudLoader.
type CloudLoaderFunc func(ctx context.Context, path string) (pointcloud.PointCloud, error)

// LoadPointCloud calls f.
func (f CloudLoaderFunc) LoadPointCloud(ctx context.Context, path string) (pointcloud.PointCloud, error) {
	return f(ctx, path)
}

// MeshSaverFunc adapts a function to a MeshSaver.
type MeshSaverFunc func(ctx context.Context, path string, mesh *spatialmath.Mesh, enc MeshEncoding) error

// SaveMesh calls f.
func (f MeshSaverFunc) SaveMesh(ctx context.Context, path string, mesh *spatialmath.Mesh, enc MeshEncoding) error {
	return f(ctx, path, mesh, enc)
}
