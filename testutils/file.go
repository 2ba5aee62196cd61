// Package testutils provides helpers shared by package tests.
package testutils

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/meshfuse/spatialmath"
)

// TempDir creates a temporary directory and fails the test if it cannot.
func TempDir(t *testing.T, dir, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp(dir, pattern)
	test.That(t, err, test.ShouldBeNil)
	return dir
}

// WriteFile writes data to name inside dir and returns the full path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	test.That(t, os.WriteFile(path, data, 0o600), test.ShouldBeNil)
	return path
}

// WritePoseFile writes pose to name inside dir in the encoding its extension selects.
func WritePoseFile(t *testing.T, dir, name string, pose spatialmath.Pose) string {
	t.Helper()
	enc, err := spatialmath.PoseEncodingFromPath(name)
	test.That(t, err, test.ShouldBeNil)
	m := pose.Matrix()

	switch enc {
	case spatialmath.PoseEncodingBinary:
		data := make([]byte, 0, 16*4)
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				data = binary.LittleEndian.AppendUint32(data, math.Float32bits(float32(m.At(i, j))))
			}
		}
		return WriteFile(t, dir, name, data)
	default:
		var sb strings.Builder
		for i := 0; i < 4; i++ {
			fmt.Fprintf(&sb, "%v %v %v %v\n", m.At(i, 0), m.At(i, 1), m.At(i, 2), m.At(i, 3))
		}
		return WriteFile(t, dir, name, []byte(sb.String()))
	}
}
