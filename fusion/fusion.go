// Package fusion defines the volumetric fusion engine that posed organized frames are integrated
// into and that a surface mesh is extracted from. Engines are registered by name so that a
// pipeline can be configured to use one without importing it.
package fusion

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/meshfuse/pointcloud"
	"go.viam.com/meshfuse/rimage/transform"
	"go.viam.com/meshfuse/spatialmath"
)

const (
	// DefaultVolumeSize is the default edge length of the cubic volume in meters.
	DefaultVolumeSize = 12.
	// DefaultCellSize is the default edge length of a cell in meters.
	DefaultCellSize = 0.006
	// DefaultNumRandomSplits is the default number of samples taken around each surface reading.
	DefaultNumRandomSplits = 1
)

// Engine accumulates posed depth frames into a signed distance volume and extracts a mesh from
// it. Calls are made from a single goroutine, in frame order.
type Engine interface {
	// Integrate adds one frame seen from pose. normals may be nil.
	Integrate(ctx context.Context, frame *pointcloud.OrganizedFrame, normals []r3.Vector, pose spatialmath.Pose) error
	// Reconstruct extracts the current isosurface.
	Reconstruct(ctx context.Context) (*spatialmath.Mesh, error)
	// Close releases the engine.
	Close(ctx context.Context) error
}

// Params configures an engine's volume and the camera frames are taken with.
type Params struct {
	VolumeSize      float64
	CellSize        float64
	NumRandomSplits int
	Intrinsics      *transform.PinholeCameraIntrinsics
}

// DefaultParams returns the default volume for the given camera.
func DefaultParams(intrinsics *transform.PinholeCameraIntrinsics) Params {
	return Params{
		VolumeSize:      DefaultVolumeSize,
		CellSize:        DefaultCellSize,
		NumRandomSplits: DefaultNumRandomSplits,
		Intrinsics:      intrinsics,
	}
}

// Resolution returns the number of cells along each edge of the volume: VolumeSize/CellSize,
// truncated, then rounded up to a power of two.
func (p Params) Resolution() int {
	desired := int(p.VolumeSize / p.CellSize)
	n := 1
	for n < desired {
		n *= 2
	}
	return n
}

// Validate ensures all parts of the params are valid.
func (p Params) Validate() error {
	if !(p.VolumeSize > 0) || math.IsInf(p.VolumeSize, 0) {
		return errors.Errorf("volume size must be a positive number, got %v", p.VolumeSize)
	}
	if !(p.CellSize > 0) || p.CellSize > p.VolumeSize {
		return errors.Errorf("cell size must be positive and at most the volume size, got %v", p.CellSize)
	}
	if p.NumRandomSplits < 1 {
		return errors.Errorf("number of random splits must be at least 1, got %d", p.NumRandomSplits)
	}
	if err := p.Intrinsics.CheckValid(); err != nil {
		return errors.Wrap(err, "fusion engine needs a camera model")
	}
	return nil
}
