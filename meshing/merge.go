package meshing

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"go.opencensus.io/trace"

	"go.viam.com/meshfuse/logging"
	"go.viam.com/meshfuse/pointcloud"
	"go.viam.com/meshfuse/spatialmath"
)

// MergeVertices assigns every vertex a compact id, giving vertices closer than eps to each other
// the same id. Vertices are scanned in order; an unassigned vertex takes the next id and hands
// it to every still-unassigned vertex strictly within eps of it. Assignment is a single hop: two
// vertices more than eps apart never share an id through a vertex between them unless that
// vertex was scanned first. The first vertex of each id is its representative in merged.
//
// A non-positive eps leaves every vertex on its own.
func MergeVertices(vertices []r3.Vector, eps float64) ([]int, []r3.Vector) {
	remap := make([]int, len(vertices))
	merged := make([]r3.Vector, 0, len(vertices))
	if math.IsNaN(eps) || eps <= 0 {
		for i, v := range vertices {
			remap[i] = i
			merged = append(merged, v)
		}
		return remap, merged
	}

	for i := range remap {
		remap[i] = -1
	}
	kd := pointcloud.NewKDTree(vertices)
	for i, v := range vertices {
		if remap[i] >= 0 {
			continue
		}
		id := len(merged)
		remap[i] = id
		for _, n := range kd.RadiusNearestNeighbors(v, eps) {
			if n.Distance < eps && remap[n.Index] < 0 {
				remap[n.Index] = id
			}
		}
		merged = append(merged, v)
	}
	return remap, merged
}

// FlattenStats describes what FlattenVertices changed.
type FlattenStats struct {
	VerticesBefore  int
	VerticesAfter   int
	FacesBefore     int
	FacesAfter      int
	DegenerateFaces  int
	NonTriangleFaces int
}

// FlattenVertices merges vertices closer than eps, rewrites faces to use the merged vertices and
// drops the faces that lost a corner in the process, along with any face that is not a triangle.
// Vertices no face uses are pruned. Running it
// again on its own output changes nothing.
func FlattenVertices(
	ctx context.Context,
	mesh *spatialmath.Mesh,
	eps float64,
	logger logging.Logger,
) (*spatialmath.Mesh, FlattenStats, error) {
	_, span := trace.StartSpan(ctx, "meshing::FlattenVertices")
	defer span.End()

	stats := FlattenStats{VerticesBefore: mesh.NumVertices(), FacesBefore: mesh.NumFaces()}
	if err := mesh.Validate(); err != nil {
		return nil, stats, err
	}

	remap, merged := MergeVertices(mesh.Vertices(), eps)
	faces := make([]spatialmath.Face, 0, mesh.NumFaces())
	for i, f := range mesh.Faces() {
		if !f.IsTriangle() {
			stats.NonTriangleFaces++
			logger.Debugw("dropping non-triangle face", "face", i, "corners", len(f))
			continue
		}
		nf := make(spatialmath.Face, len(f))
		for j, idx := range f {
			nf[j] = remap[idx]
		}
		if nf.IsDegenerate() {
			stats.DegenerateFaces++
			logger.Debugw("dropping degenerate face", "face", i, "vertices", []int(nf))
			continue
		}
		faces = append(faces, nf)
	}

	out, err := RemoveFaces(spatialmath.NewMesh(merged, faces), nil)
	if err != nil {
		return nil, stats, err
	}
	stats.VerticesAfter = out.NumVertices()
	stats.FacesAfter = out.NumFaces()
	logger.Debugf("flattened %d vertices to %d, dropped %d degenerate and %d non-triangle faces",
		stats.VerticesBefore, stats.VerticesAfter, stats.DegenerateFaces, stats.NonTriangleFaces)
	return out, stats, nil
}
