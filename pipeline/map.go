package pipeline

import (
	"github.com/pkg/errors"

	"go.viam.com/meshfuse/pointcloud"
	"go.viam.com/meshfuse/spatialmath"
)

// MapAccumulator collects every composited frame, moved by its pose, into one cloud for
// visualization. Observations are concatenated, so overlapping frames keep all their points.
type MapAccumulator struct {
	cloud  pointcloud.PointCloud
	frames int
}

// NewMapAccumulator returns an empty accumulator.
func NewMapAccumulator() *MapAccumulator {
	return &MapAccumulator{cloud: pointcloud.NewOrdered(0)}
}

// Add moves the occupied cells of frame by pose and appends them to the map.
func (m *MapAccumulator) Add(frame *pointcloud.OrganizedFrame, pose spatialmath.Pose) error {
	moved := pointcloud.ApplyPose(frame.ToPointCloud(), pose)
	if _, err := pointcloud.MergePointClouds(m.cloud, moved); err != nil {
		return errors.Wrap(err, "cannot add frame to map")
	}
	m.frames++
	return nil
}

// Cloud returns the accumulated map.
func (m *MapAccumulator) Cloud() pointcloud.PointCloud {
	return m.cloud
}

// Frames returns how many frames were added.
func (m *MapAccumulator) Frames() int {
	return m.frames
}
