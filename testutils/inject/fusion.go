// Package inject provides fakes whose behavior is set per test through function fields.
package inject

import (
	"context"

	"github.com/golang/geo/r3"
	"go.viam.com/utils"

	"go.viam.com/meshfuse/fusion"
	"go.viam.com/meshfuse/pointcloud"
	"go.viam.com/meshfuse/spatialmath"
)

// FusionEngine is an injected fusion engine.
type FusionEngine struct {
	fusion.Engine
	IntegrateFunc func(
		ctx context.Context,
		frame *pointcloud.OrganizedFrame,
		normals []r3.Vector,
		pose spatialmath.Pose,
	) error
	ReconstructFunc func(ctx context.Context) (*spatialmath.Mesh, error)
	CloseFunc       func(ctx context.Context) error
}

// Integrate calls the injected Integrate or the real version.
func (e *FusionEngine) Integrate(
	ctx context.Context,
	frame *pointcloud.OrganizedFrame,
	normals []r3.Vector,
	pose spatialmath.Pose,
) error {
	if e.IntegrateFunc == nil {
		return e.Engine.Integrate(ctx, frame, normals, pose)
	}
	return e.IntegrateFunc(ctx, frame, normals, pose)
}

// Reconstruct calls the injected Reconstruct or the real version.
func (e *FusionEngine) Reconstruct(ctx context.Context) (*spatialmath.Mesh, error) {
	if e.ReconstructFunc == nil {
		return e.Engine.Reconstruct(ctx)
	}
	return e.ReconstructFunc(ctx)
}

// Close calls the injected Close or the real version.
func (e *FusionEngine) Close(ctx context.Context) error {
	if e.CloseFunc == nil {
		return utils.TryClose(ctx, e.Engine)
	}
	return e.CloseFunc(ctx)
}
