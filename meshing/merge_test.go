package meshing

import (
	"context"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/meshfuse/logging"
	"go.viam.com/meshfuse/spatialmath"
)

func TestMergeVertices(t *testing.T) {
	t.Run("two near points", func(t *testing.T) {
		remap, merged := MergeVertices([]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 5e-5, Y: 0, Z: 0}}, DefaultFlattenDistance)
		test.That(t, remap, test.ShouldResemble, []int{0, 0})
		test.That(t, merged, test.ShouldResemble, []r3.Vector{{X: 0, Y: 0, Z: 0}})
	})

	t.Run("three near points", func(t *testing.T) {
		remap, merged := MergeVertices([]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 3e-5, Y: 0, Z: 0}, {X: 0, Y: 6e-5, Z: 0}}, DefaultFlattenDistance)
		test.That(t, remap, test.ShouldResemble, []int{0, 0, 0})
		test.That(t, len(merged), test.ShouldEqual, 1)
	})

	t.Run("distance is strict", func(t *testing.T) {
		remap, merged := MergeVertices([]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 0.5, Y: 0, Z: 0}}, 0.5)
		test.That(t, remap, test.ShouldResemble, []int{0, 1})
		test.That(t, len(merged), test.ShouldEqual, 2)
	})

	t.Run("chain is not transitive", func(t *testing.T) {
		// b is within eps of both a and c, but a and c are not within eps of each other.
		a, b, c := r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 0.75, Y: 0, Z: 0}, r3.Vector{X: 1.5, Y: 0, Z: 0}
		remap, merged := MergeVertices([]r3.Vector{a, b, c}, 1)
		test.That(t, remap, test.ShouldResemble, []int{0, 0, 1})
		test.That(t, merged, test.ShouldResemble, []r3.Vector{a, c})

		// spaced just over eps from the first point, the middle one pairs with the last
		b = r3.Vector{X: 1.25, Y: 0, Z: 0}
		c = r3.Vector{X: 2, Y: 0, Z: 0}
		remap, merged = MergeVertices([]r3.Vector{a, b, c}, 1)
		test.That(t, remap, test.ShouldResemble, []int{0, 1, 1})
		test.That(t, merged, test.ShouldResemble, []r3.Vector{a, b})

		// scanning the middle point first pulls both ends in
		remap, _ = MergeVertices([]r3.Vector{{X: 0.75, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 0}, {X: 1.5, Y: 0, Z: 0}}, 1)
		test.That(t, remap, test.ShouldResemble, []int{0, 0, 0})
	})

	t.Run("assigned vertices keep their id", func(t *testing.T) {
		// c is taken by a; b is then scanned and may not take c back.
		remap, _ := MergeVertices([]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1.5, Y: 0, Z: 0}, {X: 0.8, Y: 0, Z: 0}}, 1)
		test.That(t, remap, test.ShouldResemble, []int{0, 1, 0})
	})

	t.Run("non-positive eps", func(t *testing.T) {
		pts := []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 0}}
		remap, merged := MergeVertices(pts, 0)
		test.That(t, remap, test.ShouldResemble, []int{0, 1})
		test.That(t, merged, test.ShouldResemble, pts)
	})

	t.Run("idempotent", func(t *testing.T) {
		//nolint:gosec
		r := rand.New(rand.NewSource(3))
		pts := make([]r3.Vector, 500)
		for i := range pts {
			pts[i] = r3.Vector{X: r.Float64(), Y: r.Float64(), Z: r.Float64()}.Mul(0.2)
		}
		_, merged := MergeVertices(pts, 0.02)
		test.That(t, len(merged), test.ShouldBeLessThan, len(pts))
		remap, again := MergeVertices(merged, 0.02)
		test.That(t, again, test.ShouldResemble, merged)
		for i, id := range remap {
			test.That(t, id, test.ShouldEqual, i)
		}
	})
}

// twoTrianglesWithSeam is a square split into two triangles whose shared edge was emitted twice
// with a small amount of noise, as an independent reconstruction of each triangle would.
func twoTrianglesWithSeam() *spatialmath.Mesh {
	return spatialmath.NewMesh(
		[]r3.Vector{
			{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 1},
			{X: 1, Y: 0, Z: 1 + 1e-6}, {X: 1, Y: 1, Z: 1}, {X: 1e-6, Y: 1, Z: 1},
		},
		[]spatialmath.Face{{0, 1, 2}, {3, 4, 5}},
	)
}

func TestFlattenVertices(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)

	t.Run("seam", func(t *testing.T) {
		out, stats, err := FlattenVertices(ctx, twoTrianglesWithSeam(), DefaultFlattenDistance, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out.NumVertices(), test.ShouldEqual, 4)
		test.That(t, out.NumFaces(), test.ShouldEqual, 2)
		test.That(t, stats.DegenerateFaces, test.ShouldEqual, 0)
		test.That(t, out.Faces()[1], test.ShouldResemble, spatialmath.Face{1, 3, 2})
		for _, f := range out.Faces() {
			test.That(t, f.IsDegenerate(), test.ShouldBeFalse)
		}
		test.That(t, out.Validate(), test.ShouldBeNil)

		again, stats, err := FlattenVertices(ctx, out, DefaultFlattenDistance, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, again.Vertices(), test.ShouldResemble, out.Vertices())
		test.That(t, again.Faces(), test.ShouldResemble, out.Faces())
		test.That(t, stats.VerticesBefore, test.ShouldEqual, stats.VerticesAfter)
	})

	t.Run("degenerate faces are dropped", func(t *testing.T) {
		mesh := spatialmath.NewMesh(
			[]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1e-5, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 5, Y: 5, Z: 5}},
			[]spatialmath.Face{{0, 1, 2}, {0, 2, 3}},
		)
		out, stats, err := FlattenVertices(ctx, mesh, DefaultFlattenDistance, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, stats.DegenerateFaces, test.ShouldEqual, 1)
		test.That(t, stats.FacesAfter, test.ShouldEqual, 1)
		// the unreferenced far vertex and the merged one are gone
		test.That(t, out.NumVertices(), test.ShouldEqual, 3)
		test.That(t, out.Faces(), test.ShouldResemble, []spatialmath.Face{{0, 1, 2}})
		test.That(t, logs.FilterMessage("dropping degenerate face").Len(), test.ShouldEqual, 1)
		// input untouched
		test.That(t, mesh.NumVertices(), test.ShouldEqual, 5)
		test.That(t, mesh.Faces()[0], test.ShouldResemble, spatialmath.Face{0, 1, 2})
	})

	t.Run("non-triangle faces are dropped", func(t *testing.T) {
		mesh := spatialmath.NewMesh(
			[]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0}},
			[]spatialmath.Face{{0, 1, 2, 3}, {0, 1, 2}},
		)
		out, stats, err := FlattenVertices(ctx, mesh, DefaultFlattenDistance, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, stats.NonTriangleFaces, test.ShouldEqual, 1)
		test.That(t, stats.DegenerateFaces, test.ShouldEqual, 0)
		test.That(t, out.Faces(), test.ShouldResemble, []spatialmath.Face{{0, 1, 2}})
		test.That(t, out.NumVertices(), test.ShouldEqual, 3)
		test.That(t, logs.FilterMessage("dropping non-triangle face").Len(), test.ShouldEqual, 1)

		out, stats, err = FlattenVertices(ctx, spatialmath.NewMesh(mesh.Vertices(), mesh.Faces()[:1]), DefaultFlattenDistance, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, stats.NonTriangleFaces, test.ShouldEqual, 1)
		test.That(t, out.NumFaces(), test.ShouldEqual, 0)
		test.That(t, out.NumVertices(), test.ShouldEqual, 0)
	})

	t.Run("invalid mesh", func(t *testing.T) {
		_, _, err := FlattenVertices(ctx, spatialmath.NewMesh(nil, []spatialmath.Face{{0, 1, 2}}), 1, logger)
		test.That(t, err, test.ShouldNotBeNil)
	})
}
