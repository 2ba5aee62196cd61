// Package pointcloud defines a point cloud, the organized camera-aligned frame produced by
// depth compositing, and a kd-tree spatial index over point positions.
//
// Two cloud implementations exist. The basic cloud is keyed by position, so setting a point
// twice overwrites it. The ordered cloud keeps every point in arrival order, including repeated
// and missing (NaN) positions, which is what a raw sensor frame looks like.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/meshfuse/spatialmath"
)

// MetaData is data about what's stored in the point cloud. Missing or non-finite positions do
// not contribute to the bounds.
type MetaData struct {
	HasColor bool
	HasValue bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	// Missing counts points whose position was not finite.
	Missing int
}

// PointCloud is a general purpose container of points. It does not
// dictate whether or not the cloud is sparse or dense.
type PointCloud interface {
	// Size returns the number of points in the cloud.
	Size() int

	// MetaData returns meta data
	MetaData() MetaData

	// Set places the given point in the cloud.
	Set(p r3.Vector, d Data) error

	// At returns the point in the cloud at the given position.
	// The 2nd return is if the point exists, the first is data if any.
	At(x, y, z float64) (Data, bool)

	// Iterate iterates over all points in the cloud and calls the given
	// function for each point. If the supplied function returns false,
	// iteration will stop after the function returns.
	// numBatches lets you divide up he work. 0 means don't divide
	// myBatch is used iff numBatches > 0 and is which batch you want
	Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool)
}

// NewMetaData creates a new MetaData with bounds that any finite point will tighten.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.Inf(1),
		MaxX: math.Inf(-1),
		MinY: math.Inf(1),
		MaxY: math.Inf(-1),
		MinZ: math.Inf(1),
		MaxZ: math.Inf(-1),
	}
}

// Merge updates the meta data with the new point.
func (meta *MetaData) Merge(v r3.Vector, data Data) {
	if data != nil {
		if data.HasColor() {
			meta.HasColor = true
		}
		if data.HasValue() {
			meta.HasValue = true
		}
	}
	if !spatialmath.IsFinite(v) {
		meta.Missing++
		return
	}

	meta.MaxX = math.Max(meta.MaxX, v.X)
	meta.MaxY = math.Max(meta.MaxY, v.Y)
	meta.MaxZ = math.Max(meta.MaxZ, v.Z)

	meta.MinX = math.Min(meta.MinX, v.X)
	meta.MinY = math.Min(meta.MinY, v.Y)
	meta.MinZ = math.Min(meta.MinZ, v.Z)
}

// CloudContains is a silly helper method.
func CloudContains(cloud PointCloud, x, y, z float64) bool {
	_, got := cloud.At(x, y, z)
	return got
}

// CloudCentroid returns the centroid of the finite points in a pointcloud as a vector.
func CloudCentroid(pc PointCloud) r3.Vector {
	var sum r3.Vector
	n := 0
	pc.Iterate(0, 0, func(pt r3.Vector, d Data) bool {
		if spatialmath.IsFinite(pt) {
			sum = sum.Add(pt)
			n++
		}
		return true
	})
	if n == 0 {
		return r3.Vector{}
	}
	return sum.Mul(1 / float64(n))
}

// ZeroAsMissing returns an ordered copy of cloud in which every point at exactly (0, 0, 0) is
// replaced by a missing (NaN) position. Many depth sensors report the origin for pixels they
// could not measure.
func ZeroAsMissing(cloud PointCloud) PointCloud {
	out := NewOrdered(cloud.Size())
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		if p == (r3.Vector{}) {
			p = NaNVector()
		}
		// ordered clouds accept every position
		//nolint:errcheck
		out.Set(p, d)
		return true
	})
	return out
}

// ApplyPose returns an ordered copy of cloud with every position moved by pose. Missing
// positions stay missing.
func ApplyPose(cloud PointCloud, pose spatialmath.Pose) PointCloud {
	out := NewOrdered(cloud.Size())
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		if IsMissing(p) {
			p = NaNVector()
		} else {
			p = pose.Transform(p)
		}
		//nolint:errcheck
		out.Set(p, d)
		return true
	})
	return out
}

// MergePointClouds sets every finite point of each source cloud into dst, in order. It returns
// the number of points set.
func MergePointClouds(dst PointCloud, srcs ...PointCloud) (int, error) {
	added := 0
	var err error
	for _, src := range srcs {
		src.Iterate(0, 0, func(p r3.Vector, d Data) bool {
			if !spatialmath.IsFinite(p) {
				return true
			}
			if err = dst.Set(p, d); err != nil {
				return false
			}
			added++
			return true
		})
		if err != nil {
			return added, err
		}
	}
	return added, nil
}
