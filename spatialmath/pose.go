package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Pose is an affine transform from one frame to another, stored as a row-major 4x4 matrix
// whose bottom row is [0 0 0 1]. Poses are immutable once constructed.
type Pose interface {
	// Point returns the translation component.
	Point() r3.Vector
	// Matrix returns a copy of the 4x4 matrix.
	Matrix() *mat.Dense
	// Transform applies the pose to a point.
	Transform(pt r3.Vector) r3.Vector
}

type affinePose struct {
	m *mat.Dense
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return &affinePose{m: m}
}

// NewPoseFromPoint returns a pure translation.
func NewPoseFromPoint(pt r3.Vector) Pose {
	p := NewZeroPose().(*affinePose)
	p.m.Set(0, 3, pt.X)
	p.m.Set(1, 3, pt.Y)
	p.m.Set(2, 3, pt.Z)
	return p
}

// NewPoseFromMatrix validates and copies a 4x4 affine matrix into a Pose.
func NewPoseFromMatrix(m mat.Matrix) (Pose, error) {
	if m == nil {
		return nil, errors.New("pose matrix is nil")
	}
	if r, c := m.Dims(); r != 4 || c != 4 {
		return nil, errors.Errorf("pose matrix must be 4x4, got %dx%d", r, c)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Errorf("pose matrix element (%d, %d) is not finite", i, j)
			}
		}
	}
	for j, want := range []float64{0, 0, 0, 1} {
		if math.Abs(m.At(3, j)-want) > floatEpsilon {
			return nil, errors.Errorf("pose matrix bottom row must be [0 0 0 1], got %v", mat.Row(nil, 3, m))
		}
	}
	return &affinePose{m: mat.DenseCopyOf(m)}, nil
}

// NewPoseFromRowMajor builds a Pose from 16 row-major values.
func NewPoseFromRowMajor(vals []float64) (Pose, error) {
	if len(vals) != 16 {
		return nil, errors.Errorf("pose needs 16 values, got %d", len(vals))
	}
	return NewPoseFromMatrix(mat.NewDense(4, 4, append([]float64(nil), vals...)))
}

func (p *affinePose) Point() r3.Vector {
	return r3.Vector{X: p.m.At(0, 3), Y: p.m.At(1, 3), Z: p.m.At(2, 3)}
}

func (p *affinePose) Matrix() *mat.Dense {
	return mat.DenseCopyOf(p.m)
}

func (p *affinePose) Transform(pt r3.Vector) r3.Vector {
	m := p.m
	return r3.Vector{
		X: m.At(0, 0)*pt.X + m.At(0, 1)*pt.Y + m.At(0, 2)*pt.Z + m.At(0, 3),
		Y: m.At(1, 0)*pt.X + m.At(1, 1)*pt.Y + m.At(1, 2)*pt.Z + m.At(1, 3),
		Z: m.At(2, 0)*pt.X + m.At(2, 1)*pt.Y + m.At(2, 2)*pt.Z + m.At(2, 3),
	}
}

func (p *affinePose) String() string {
	return fmt.Sprintf("%v", mat.Formatted(p.m, mat.Squeeze()))
}

// PoseInverse returns the inverse transform. Singular matrices cannot be inverted.
func PoseInverse(p Pose) (Pose, error) {
	var inv mat.Dense
	if err := inv.Inverse(p.Matrix()); err != nil {
		return nil, errors.Wrap(err, "pose is not invertible")
	}
	// The inverse of an affine matrix is affine; clean up rounding in the bottom row.
	inv.SetRow(3, []float64{0, 0, 0, 1})
	return &affinePose{m: &inv}, nil
}

// Compose returns the pose that applies b first, then a.
func Compose(a, b Pose) Pose {
	var out mat.Dense
	out.Mul(a.Matrix(), b.Matrix())
	return &affinePose{m: &out}
}

// PoseAlmostEqual returns whether every matrix element of a and b is within floatEpsilon.
func PoseAlmostEqual(a, b Pose) bool {
	return mat.EqualApprox(a.Matrix(), b.Matrix(), floatEpsilon)
}
