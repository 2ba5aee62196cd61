package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// PointAndData is a tiny struct to facilitate returning nearest neighbors in a neat way.
type PointAndData struct {
	P r3.Vector
	D Data
}

// storage is the backing store of a cloud.
type storage interface {
	Size() int
	Set(p r3.Vector, d Data) error
	At(x, y, z float64) (Data, bool)
	Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool)
}

// matrixStorage is a slice of points plus an index keyed by position. When keepDuplicates is
// false a point set at an existing position overwrites it; otherwise every Set appends and the
// index remembers the first point at a position.
type matrixStorage struct {
	points         []PointAndData
	indexMap       map[r3.Vector]uint
	keepDuplicates bool
}

func newMatrixStorage(size int, keepDuplicates bool) *matrixStorage {
	return &matrixStorage{
		points:         make([]PointAndData, 0, size),
		indexMap:       make(map[r3.Vector]uint, size),
		keepDuplicates: keepDuplicates,
	}
}

func (ms *matrixStorage) Size() int {
	return len(ms.points)
}

func (ms *matrixStorage) Set(p r3.Vector, d Data) error {
	if i, found := ms.indexMap[p]; found {
		if !ms.keepDuplicates {
			ms.points[i].D = d
			return nil
		}
	} else if !hasNaN(p) {
		// NaN keys never compare equal and could never be looked up.
		ms.indexMap[p] = uint(len(ms.points))
	}
	ms.points = append(ms.points, PointAndData{P: p, D: d})
	return nil
}

func (ms *matrixStorage) At(x, y, z float64) (Data, bool) {
	i, found := ms.indexMap[r3.Vector{X: x, Y: y, Z: z}]
	if !found {
		return nil, false
	}
	return ms.points[i].D, true
}

func (ms *matrixStorage) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	lowerBound := 0
	upperBound := ms.Size()
	if numBatches > 0 {
		batchSize := (ms.Size() + numBatches - 1) / numBatches
		lowerBound = myBatch * batchSize
		upperBound = (myBatch + 1) * batchSize
	}
	if upperBound > ms.Size() {
		upperBound = ms.Size()
	}
	for i := lowerBound; i < upperBound; i++ {
		if cont := fn(ms.points[i].P, ms.points[i].D); !cont {
			return
		}
	}
}

func hasNaN(p r3.Vector) bool {
	return math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z)
}
