package pointcloud

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/meshfuse/utils"
)

// OrganizedFrame is a width x height grid of cells aligned with a camera's pixels. A cell is
// either empty or holds one point and its data. Empty cells store a NaN position.
type OrganizedFrame struct {
	width, height int
	points        []r3.Vector
	data          []Data
}

// NewOrganizedFrame allocates a frame with every cell empty. Cells are cleared in parallel.
func NewOrganizedFrame(ctx context.Context, width, height int) (*OrganizedFrame, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("organized frame dimensions must be positive, got %dx%d", width, height)
	}
	frame := &OrganizedFrame{
		width:  width,
		height: height,
		points: make([]r3.Vector, width*height),
		data:   make([]Data, width*height),
	}
	missing := NaNVector()
	if err := utils.GroupWorkParallel(
		ctx,
		len(frame.points),
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return func(memberNum, workNum int) {
				frame.points[workNum] = missing
			}, nil
		},
	); err != nil {
		return nil, err
	}
	return frame, nil
}

// Width returns the number of columns.
func (f *OrganizedFrame) Width() int {
	return f.width
}

// Height returns the number of rows.
func (f *OrganizedFrame) Height() int {
	return f.height
}

// Size returns the number of cells.
func (f *OrganizedFrame) Size() int {
	return len(f.points)
}

func (f *OrganizedFrame) index(u, v int) (int, error) {
	if u < 0 || u >= f.width {
		return 0, utils.NewIndexOutOfRangeError("column", u, f.width)
	}
	if v < 0 || v >= f.height {
		return 0, utils.NewIndexOutOfRangeError("row", v, f.height)
	}
	return v*f.width + u, nil
}

// At returns the point held by cell (u, v). The last return is false for an empty or
// out-of-range cell.
func (f *OrganizedFrame) At(u, v int) (r3.Vector, Data, bool) {
	i, err := f.index(u, v)
	if err != nil || IsMissing(f.points[i]) {
		return r3.Vector{}, nil, false
	}
	return f.points[i], f.data[i], true
}

// Depth returns the z of cell (u, v), NaN when the cell is empty.
func (f *OrganizedFrame) Depth(u, v int) (float64, error) {
	i, err := f.index(u, v)
	if err != nil {
		return 0, err
	}
	return f.points[i].Z, nil
}

// Set stores a point in cell (u, v), replacing whatever was there. A point with a NaN depth
// leaves the cell empty.
func (f *OrganizedFrame) Set(u, v int, p r3.Vector, d Data) error {
	i, err := f.index(u, v)
	if err != nil {
		return err
	}
	if IsMissing(p) {
		f.points[i] = NaNVector()
		f.data[i] = nil
		return nil
	}
	f.points[i] = p
	f.data[i] = d
	return nil
}

// Occupied returns the number of non-empty cells.
func (f *OrganizedFrame) Occupied() int {
	n := 0
	for _, p := range f.points {
		if !IsMissing(p) {
			n++
		}
	}
	return n
}

// Iterate calls fn for every non-empty cell in row-major order until fn returns false.
func (f *OrganizedFrame) Iterate(fn func(u, v int, p r3.Vector, d Data) bool) {
	for i, p := range f.points {
		if IsMissing(p) {
			continue
		}
		if !fn(i%f.width, i/f.width, p, f.data[i]) {
			return
		}
	}
}

// ToPointCloud returns an ordered cloud holding every cell in row-major order, with empty cells
// as missing positions, so the result stays organized.
func (f *OrganizedFrame) ToPointCloud() PointCloud {
	pc := NewOrdered(len(f.points))
	for i, p := range f.points {
		//nolint:errcheck
		pc.Set(p, f.data[i])
	}
	return pc
}
