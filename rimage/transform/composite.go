package transform

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/meshfuse/pointcloud"
)

// CompositeOrganized reprojects every point of cloud into an organized frame shaped like the
// camera and keeps, per pixel, the point nearest to the camera. A point replaces the current
// occupant only when its depth is strictly smaller, so among equal depths the first point in
// iteration order wins. Points that do not reproject are dropped.
//
// When organized is true the cloud is assumed to already be laid out row-major with one point
// per pixel and is copied across unchanged; its size must then equal width*height.
func CompositeOrganized(
	ctx context.Context,
	cloud pointcloud.PointCloud,
	params *PinholeCameraIntrinsics,
	organized bool,
) (*pointcloud.OrganizedFrame, error) {
	ctx, span := trace.StartSpan(ctx, "transform::CompositeOrganized")
	defer span.End()

	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	if cloud == nil {
		return nil, errors.New("cannot composite a nil point cloud")
	}
	if organized && cloud.Size() != params.Width*params.Height {
		return nil, errors.Errorf(
			"organized cloud has %d points but the camera is %dx%d",
			cloud.Size(), params.Width, params.Height,
		)
	}

	frame, err := pointcloud.NewOrganizedFrame(ctx, params.Width, params.Height)
	if err != nil {
		return nil, err
	}

	i := 0
	cloud.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		if organized {
			err = frame.Set(i%params.Width, i/params.Width, p, d)
			i++
			return err == nil
		}
		u, v, ok := params.ReprojectPoint(p)
		if !ok {
			return true
		}
		var current float64
		current, err = frame.Depth(u, v)
		if err != nil {
			return false
		}
		if math.IsNaN(current) || p.Z < current {
			err = frame.Set(u, v, p, d)
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return frame, nil
}
