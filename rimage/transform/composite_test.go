package transform

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/meshfuse/pointcloud"
)

func unitCamera() *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{Width: 2, Height: 2, Fx: 1, Fy: 1}
}

func cloudOf(t *testing.T, pts ...r3.Vector) pointcloud.PointCloud {
	t.Helper()
	pc := pointcloud.NewOrdered(len(pts))
	for i, p := range pts {
		test.That(t, pc.Set(p, pointcloud.NewValueData(i)), test.ShouldBeNil)
	}
	return pc
}

type compositor func(ctx context.Context, pc pointcloud.PointCloud, intr *PinholeCameraIntrinsics) (*pointcloud.OrganizedFrame, error)

func compositors() map[string]compositor {
	return map[string]compositor{
		"sequential": func(ctx context.Context, pc pointcloud.PointCloud, intr *PinholeCameraIntrinsics) (*pointcloud.OrganizedFrame, error) {
			return CompositeOrganized(ctx, pc, intr, false)
		},
		"parallel": CompositeOrganizedParallel,
	}
}

func TestCompositeNearestWins(t *testing.T) {
	ctx := context.Background()
	for name, composite := range compositors() {
		t.Run(name, func(t *testing.T) {
			// both orders of arrival
			near, far := r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 0, Y: 0, Z: 2}
			for _, pts := range [][]r3.Vector{{near, far}, {far, near}} {
				frame, err := composite(ctx, cloudOf(t, pts...), unitCamera())
				test.That(t, err, test.ShouldBeNil)
				p, _, ok := frame.At(0, 0)
				test.That(t, ok, test.ShouldBeTrue)
				test.That(t, p, test.ShouldResemble, near)
				test.That(t, frame.Occupied(), test.ShouldEqual, 1)
			}

			// equal depth keeps the first arrival
			frame, err := composite(ctx, cloudOf(t, r3.Vector{X: 0.1, Y: 0, Z: 1}, r3.Vector{X: -0.1, Y: 0, Z: 1}), unitCamera())
			test.That(t, err, test.ShouldBeNil)
			p, d, ok := frame.At(0, 0)
			test.That(t, ok, test.ShouldBeTrue)
			test.That(t, p, test.ShouldResemble, r3.Vector{X: 0.1, Y: 0, Z: 1})
			test.That(t, d.Value(), test.ShouldEqual, 0)
		})
	}
}

func TestCompositeDropsInvalidDepth(t *testing.T) {
	ctx := context.Background()
	for name, composite := range compositors() {
		t.Run(name, func(t *testing.T) {
			var pts []r3.Vector
			for _, x := range []float64{0, 0.5, 1} {
				for _, y := range []float64{0, 1} {
					pts = append(pts,
						r3.Vector{X: x, Y: y, Z: 0},
						r3.Vector{X: x, Y: y, Z: -1},
						r3.Vector{X: x, Y: y, Z: math.NaN()},
						r3.Vector{X: x, Y: y, Z: math.Inf(1)},
						r3.Vector{X: x, Y: y, Z: math.Inf(-1)},
					)
				}
			}
			frame, err := composite(ctx, cloudOf(t, pts...), unitCamera())
			test.That(t, err, test.ShouldBeNil)
			test.That(t, frame.Occupied(), test.ShouldEqual, 0)
		})
	}
}

func TestCompositeGrid(t *testing.T) {
	ctx := context.Background()
	grid := []r3.Vector{{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}}
	var pts []r3.Vector
	for i := 0; i < 3; i++ {
		pts = append(pts, grid...)
	}
	for name, composite := range compositors() {
		t.Run(name, func(t *testing.T) {
			frame, err := composite(ctx, cloudOf(t, pts...), unitCamera())
			test.That(t, err, test.ShouldBeNil)
			test.That(t, frame.Occupied(), test.ShouldEqual, 4)
			for _, g := range grid {
				p, d, ok := frame.At(int(g.X), int(g.Y))
				test.That(t, ok, test.ShouldBeTrue)
				test.That(t, p, test.ShouldResemble, g)
				// the first of the three identical clouds wins every pixel
				test.That(t, d.Value(), test.ShouldBeLessThan, 4)
			}
		})
	}
}

func TestCompositeParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()
	intr := NewPinholeCameraIntrinsicsForResolution(32, 24)
	//nolint:gosec
	r := rand.New(rand.NewSource(7))
	pts := make([]r3.Vector, 0, 20000)
	for i := 0; i < cap(pts); i++ {
		// coarse depths so that ties are common
		z := float64(1+r.Intn(4)) * 0.5
		pts = append(pts, r3.Vector{X: (r.Float64() - 0.5) * z, Y: (r.Float64() - 0.5) * z, Z: z})
	}
	pc := cloudOf(t, pts...)

	seq, err := CompositeOrganized(ctx, pc, intr, false)
	test.That(t, err, test.ShouldBeNil)
	par, err := CompositeOrganizedParallel(ctx, pc, intr)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, par.Occupied(), test.ShouldEqual, seq.Occupied())
	for v := 0; v < intr.Height; v++ {
		for u := 0; u < intr.Width; u++ {
			sp, sd, sok := seq.At(u, v)
			pp, pd, pok := par.At(u, v)
			test.That(t, pok, test.ShouldEqual, sok)
			if sok {
				test.That(t, pp, test.ShouldResemble, sp)
				test.That(t, pd.Value(), test.ShouldEqual, sd.Value())
			}
		}
	}
}

func TestCompositeOrganizedCopy(t *testing.T) {
	ctx := context.Background()
	pts := []r3.Vector{{X: 5, Y: 5, Z: 3}, pointcloud.NaNVector(), {X: 0, Y: 0, Z: 1}, {X: 9, Y: 9, Z: 9}}
	frame, err := CompositeOrganized(ctx, cloudOf(t, pts...), unitCamera(), true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Occupied(), test.ShouldEqual, 3)
	p, _, ok := frame.At(0, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p, test.ShouldResemble, r3.Vector{X: 5, Y: 5, Z: 3})
	_, _, ok = frame.At(1, 0)
	test.That(t, ok, test.ShouldBeFalse)
	p, _, _ = frame.At(1, 1)
	test.That(t, p, test.ShouldResemble, r3.Vector{X: 9, Y: 9, Z: 9})

	_, err = CompositeOrganized(ctx, cloudOf(t, pts[:3]...), unitCamera(), true)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCompositeErrors(t *testing.T) {
	ctx := context.Background()
	_, err := CompositeOrganized(ctx, cloudOf(t), nil, false)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = CompositeOrganizedParallel(ctx, nil, unitCamera())
	test.That(t, err, test.ShouldNotBeNil)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = CompositeOrganizedParallel(cctx, cloudOf(t, r3.Vector{X: 0, Y: 0, Z: 1}), unitCamera())
	test.That(t, err, test.ShouldNotBeNil)
	_, err = CompositeOrganized(cctx, cloudOf(t, r3.Vector{X: 0, Y: 0, Z: 1}), unitCamera(), false)
	test.That(t, err, test.ShouldNotBeNil)
}
