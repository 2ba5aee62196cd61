package pointcloud

import (
	"github.com/golang/geo/r3"
)

// basicPointCloud is the basic implementation of the PointCloud interface.
type basicPointCloud struct {
	points storage
	meta   MetaData
}

// New returns an empty PointCloud keyed by position.
func New() PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated PointCloud keyed by position.
func NewWithPrealloc(size int) PointCloud {
	return &basicPointCloud{
		points: newMatrixStorage(size, false),
		meta:   NewMetaData(),
	}
}

// NewOrdered returns an empty PointCloud that keeps every point it is given in arrival order,
// including repeated and missing positions. At finds the first point set at a position.
func NewOrdered(size int) PointCloud {
	return &basicPointCloud{
		points: newMatrixStorage(size, true),
		meta:   NewMetaData(),
	}
}

func (cloud *basicPointCloud) Size() int {
	return cloud.points.Size()
}

func (cloud *basicPointCloud) MetaData() MetaData {
	return cloud.meta
}

func (cloud *basicPointCloud) At(x, y, z float64) (Data, bool) {
	return cloud.points.At(x, y, z)
}

func (cloud *basicPointCloud) Set(p r3.Vector, d Data) error {
	before := cloud.points.Size()
	if err := cloud.points.Set(p, d); err != nil {
		return err
	}
	if cloud.points.Size() > before {
		cloud.meta.Merge(p, d)
	}
	return nil
}

func (cloud *basicPointCloud) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	cloud.points.Iterate(numBatches, myBatch, fn)
}
