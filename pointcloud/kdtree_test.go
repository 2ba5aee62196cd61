package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func makeLinePoints() []r3.Vector {
	return []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 2, Y: 0, Z: 0},
		{X: 0.5, Y: 0, Z: 0},
		NaNVector(),
		{X: 0.5, Y: 0, Z: 0},
		{X: 0, Y: 0, Z: 10},
	}
}

func indices(ns []Neighbor) []int {
	out := make([]int, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Index)
	}
	return out
}

func TestKDTreeRadius(t *testing.T) {
	points := makeLinePoints()
	kd := NewKDTree(points)
	test.That(t, kd.Len(), test.ShouldEqual, len(points))

	ns := kd.RadiusNearestNeighbors(r3.Vector{}, 0.75)
	test.That(t, indices(ns), test.ShouldResemble, []int{0, 3, 5})
	test.That(t, ns[1].Distance, test.ShouldAlmostEqual, 0.5)
	test.That(t, ns[1].Point, test.ShouldResemble, r3.Vector{X: 0.5, Y: 0, Z: 0})

	ns = kd.RadiusNearestNeighbors(r3.Vector{X: 1.9, Y: 0, Z: 0}, 1.6)
	test.That(t, indices(ns), test.ShouldResemble, []int{2, 1, 3, 5})

	t.Run("of excludes self", func(t *testing.T) {
		ns, err := kd.RadiusNearestNeighborsOf(3, 0.75)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, indices(ns), test.ShouldResemble, []int{5, 0, 1})

		_, err = kd.RadiusNearestNeighborsOf(len(points), 1)
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("empty radius", func(t *testing.T) {
		test.That(t, kd.RadiusNearestNeighbors(r3.Vector{}, 0), test.ShouldBeEmpty)
		test.That(t, kd.RadiusNearestNeighbors(r3.Vector{}, -1), test.ShouldBeEmpty)
		test.That(t, kd.RadiusNearestNeighbors(r3.Vector{X: 100, Y: 100, Z: 100}, 1), test.ShouldBeEmpty)
	})

	t.Run("caller slice untouched", func(t *testing.T) {
		test.That(t, points[:4], test.ShouldResemble, makeLinePoints()[:4])
	})
}

func TestKDTreeNearest(t *testing.T) {
	kd := NewKDTree(makeLinePoints())
	n, ok := kd.NearestNeighbor(r3.Vector{X: 0, Y: 0, Z: 8})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, n.Index, test.ShouldEqual, 6)
	test.That(t, n.Distance, test.ShouldAlmostEqual, 2)

	empty := NewKDTree(nil)
	_, ok = empty.NearestNeighbor(r3.Vector{})
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, empty.RadiusNearestNeighbors(r3.Vector{}, 1), test.ShouldBeEmpty)

	allMissing := NewKDTree([]r3.Vector{NaNVector()})
	test.That(t, allMissing.RadiusNearestNeighbors(r3.Vector{}, 1), test.ShouldBeEmpty)
}

func TestToKDTree(t *testing.T) {
	pc := NewOrdered(3)
	test.That(t, pc.Set(r3.Vector{X: 0, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{X: 0, Y: 0, Z: 1}, nil), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{X: 0, Y: 0, Z: 0}, nil), test.ShouldBeNil)
	kd := ToKDTree(pc)
	ns := kd.RadiusNearestNeighbors(r3.Vector{X: 0, Y: 0, Z: 0.1}, 0.5)
	test.That(t, indices(ns), test.ShouldResemble, []int{0, 2})
}
