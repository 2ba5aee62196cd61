package pointcloud

import (
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/meshfuse/spatialmath"
)

func TestPointCloudBasic(t *testing.T) {
	pc := New()

	p0 := NewVector(0, 0, 0)
	d0 := NewValueData(5)

	test.That(t, pc.Set(p0, d0), test.ShouldBeNil)
	d, got := pc.At(0, 0, 0)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, d, test.ShouldResemble, d0)

	_, got = pc.At(1, 0, 1)
	test.That(t, got, test.ShouldBeFalse)

	p1 := NewVector(1, 0, 1)
	d1 := NewValueData(17)
	test.That(t, pc.Set(p1, d1), test.ShouldBeNil)

	d, got = pc.At(1, 0, 1)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, d, test.ShouldResemble, d1)
	test.That(t, d, test.ShouldNotResemble, d0)

	p2 := NewVector(-1, -2, 1)
	d2 := NewColoredData(color.NRGBA{255, 0, 0, 255})
	test.That(t, pc.Set(p2, d2), test.ShouldBeNil)

	count := 0
	pc.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		switch p.X {
		case 0:
			test.That(t, p, test.ShouldResemble, p0)
		case 1:
			test.That(t, p, test.ShouldResemble, p1)
		case -1:
			test.That(t, p, test.ShouldResemble, p2)
		}
		count++
		return true
	})
	test.That(t, count, test.ShouldEqual, 3)
	test.That(t, CloudContains(pc, 1, 1, 1), test.ShouldBeFalse)

	// setting an existing position overwrites it
	test.That(t, pc.Set(p1, NewValueData(3)), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 3)
	d, _ = pc.At(1, 0, 1)
	test.That(t, d.Value(), test.ShouldEqual, 3)

	meta := pc.MetaData()
	test.That(t, meta.HasColor, test.ShouldBeTrue)
	test.That(t, meta.HasValue, test.ShouldBeTrue)
	test.That(t, meta.MinX, test.ShouldEqual, -1)
	test.That(t, meta.MaxX, test.ShouldEqual, 1)
	test.That(t, meta.MinY, test.ShouldEqual, -2)
	test.That(t, meta.MaxZ, test.ShouldEqual, 1)
}

func TestPointCloudOrdered(t *testing.T) {
	pc := NewOrdered(4)
	test.That(t, pc.Set(r3.Vector{}, NewValueData(0)), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{}, NewValueData(1)), test.ShouldBeNil)
	test.That(t, pc.Set(NaNVector(), nil), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{X: 1, Y: 2, Z: 3}, NewValueData(3)), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 4)

	// first point at a position wins a lookup
	d, got := pc.At(0, 0, 0)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, d.Value(), test.ShouldEqual, 0)

	var order []int
	missing := 0
	pc.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		if IsMissing(p) {
			missing++
			return true
		}
		order = append(order, d.Value())
		return true
	})
	test.That(t, order, test.ShouldResemble, []int{0, 1, 3})
	test.That(t, missing, test.ShouldEqual, 1)
	test.That(t, pc.MetaData().Missing, test.ShouldEqual, 1)
	test.That(t, pc.MetaData().MaxZ, test.ShouldEqual, 3)

	t.Run("batches", func(t *testing.T) {
		seen := 0
		for batch := 0; batch < 3; batch++ {
			pc.Iterate(3, batch, func(p r3.Vector, d Data) bool {
				seen++
				return true
			})
		}
		test.That(t, seen, test.ShouldEqual, 4)
	})
}

func TestStorageSkipsIndexForMissing(t *testing.T) {
	for _, keepDuplicates := range []bool{false, true} {
		ms := newMatrixStorage(4, keepDuplicates)
		test.That(t, ms.Set(NaNVector(), nil), test.ShouldBeNil)
		test.That(t, ms.Set(r3.Vector{X: math.NaN(), Z: 1}, nil), test.ShouldBeNil)
		test.That(t, ms.Set(NaNVector(), nil), test.ShouldBeNil)
		test.That(t, ms.Set(r3.Vector{X: 1, Y: 2, Z: 3}, NewValueData(7)), test.ShouldBeNil)
		test.That(t, ms.Size(), test.ShouldEqual, 4)
		test.That(t, len(ms.indexMap), test.ShouldEqual, 1)

		d, got := ms.At(1, 2, 3)
		test.That(t, got, test.ShouldBeTrue)
		test.That(t, d.Value(), test.ShouldEqual, 7)
	}
}

func TestZeroAsMissing(t *testing.T) {
	pc := NewOrdered(3)
	test.That(t, pc.Set(r3.Vector{}, NewValueData(0)), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{X: 0, Y: 0, Z: 1e-9}, NewValueData(1)), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{}, NewValueData(2)), test.ShouldBeNil)

	out := ZeroAsMissing(pc)
	test.That(t, out.Size(), test.ShouldEqual, 3)
	var pts []r3.Vector
	out.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		pts = append(pts, p)
		return true
	})
	test.That(t, math.IsNaN(pts[0].Z), test.ShouldBeTrue)
	test.That(t, pts[1], test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: 1e-9})
	test.That(t, math.IsNaN(pts[2].Z), test.ShouldBeTrue)
	// input untouched
	test.That(t, CloudContains(pc, 0, 0, 0), test.ShouldBeTrue)
}

func TestApplyPoseAndMerge(t *testing.T) {
	pc := NewOrdered(3)
	test.That(t, pc.Set(r3.Vector{X: 1, Y: 0, Z: 0}, NewColoredData(color.NRGBA{255, 0, 0, 255})), test.ShouldBeNil)
	test.That(t, pc.Set(NaNVector(), nil), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{X: 1, Y: 1, Z: 1}, NewColoredData(color.NRGBA{0, 0, 255, 255})), test.ShouldBeNil)

	moved := ApplyPose(pc, spatialmath.NewPoseFromPoint(r3.Vector{X: 0, Y: 99, Z: 0}))
	test.That(t, moved.Size(), test.ShouldEqual, 3)
	test.That(t, CloudContains(moved, 1, 99, 0), test.ShouldBeTrue)
	test.That(t, CloudContains(moved, 1, 100, 1), test.ShouldBeTrue)

	dst := New()
	added, err := MergePointClouds(dst, pc, moved)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, added, test.ShouldEqual, 4)
	test.That(t, dst.Size(), test.ShouldEqual, 4)
	test.That(t, dst.MetaData().Missing, test.ShouldEqual, 0)

	// merging the same points again overwrites rather than grows
	added, err = MergePointClouds(dst, pc)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, added, test.ShouldEqual, 2)
	test.That(t, dst.Size(), test.ShouldEqual, 4)

	test.That(t, CloudCentroid(pc), test.ShouldResemble, r3.Vector{X: 1, Y: 0.5, Z: 0.5})
}
