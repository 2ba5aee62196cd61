package transform

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"go.viam.com/meshfuse/pointcloud"
	"go.viam.com/meshfuse/utils"
)

// how many points a worker handles between checks for cancellation.
const cancelCheckInterval = 4096

// CompositeOrganizedParallel produces the same frame as the unorganized CompositeOrganized but
// spreads the source points over workers. Each pixel holds a winner slot that workers update
// with compare-and-swap; a point takes the slot when it is nearer than the occupant, or equally
// near and earlier in iteration order. The result does not depend on scheduling.
func CompositeOrganizedParallel(
	ctx context.Context,
	cloud pointcloud.PointCloud,
	params *PinholeCameraIntrinsics,
) (*pointcloud.OrganizedFrame, error) {
	ctx, span := trace.StartSpan(ctx, "transform::CompositeOrganizedParallel")
	defer span.End()

	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	if cloud == nil {
		return nil, errors.New("cannot composite a nil point cloud")
	}

	points := make([]pointcloud.PointAndData, 0, cloud.Size())
	cloud.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		points = append(points, pointcloud.PointAndData{P: p, D: d})
		return true
	})

	// zero is an empty pixel, otherwise the arrival index of the winner plus one
	slots := make([]atomic.Int64, params.Width*params.Height)
	nearer := func(a, b int) bool {
		za, zb := points[a].P.Z, points[b].P.Z
		return za < zb || (za == zb && a < b)
	}

	chunk := (len(points) + utils.ParallelFactor - 1) / utils.ParallelFactor
	g, gctx := errgroup.WithContext(ctx)
	for from := 0; from < len(points); from += chunk {
		to := min(from+chunk, len(points))
		g.Go(func() error {
			for i := from; i < to; i++ {
				if (i-from)%cancelCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				u, v, ok := params.ReprojectPoint(points[i].P)
				if !ok {
					continue
				}
				slot := &slots[v*params.Width+u]
				for {
					cur := slot.Load()
					if cur != 0 && !nearer(i, int(cur-1)) {
						break
					}
					if slot.CompareAndSwap(cur, int64(i+1)) {
						break
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	frame, err := pointcloud.NewOrganizedFrame(ctx, params.Width, params.Height)
	if err != nil {
		return nil, err
	}
	for idx := range slots {
		winner := slots[idx].Load()
		if winner == 0 {
			continue
		}
		pd := points[winner-1]
		if err := frame.Set(idx%params.Width, idx/params.Width, pd.P, pd.D); err != nil {
			return nil, err
		}
	}
	return frame, nil
}
