package meshing

import (
	"context"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"go.viam.com/meshfuse/logging"
	"go.viam.com/meshfuse/spatialmath"
	"go.viam.com/meshfuse/utils"
)

// RemoveFaces returns a copy of mesh without the faces listed in remove and without the
// vertices that no remaining face uses. Surviving vertices keep their relative order and
// surviving faces are rewritten to the compacted indices. Duplicate entries in remove are
// ignored; an index outside the face list is an error. A nil remove only prunes vertices.
func RemoveFaces(mesh *spatialmath.Mesh, remove []int) (*spatialmath.Mesh, error) {
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	faces := mesh.Faces()
	toRemove := lo.Uniq(remove)
	sort.Sort(sort.Reverse(sort.IntSlice(toRemove)))

	// erase from the highest index down so earlier indices stay valid
	removed := make([]bool, len(faces))
	for _, idx := range toRemove {
		if idx < 0 || idx >= len(faces) {
			return nil, utils.NewIndexOutOfRangeError("face", idx, len(faces))
		}
		removed[idx] = true
	}

	vertices := mesh.Vertices()
	hasFace := make([]bool, len(vertices))
	for i, f := range faces {
		if removed[i] {
			continue
		}
		for _, idx := range f {
			hasFace[idx] = true
		}
	}

	newIdx := make([]int, len(vertices))
	newVertices := make([]r3.Vector, 0, len(vertices))
	for i, v := range vertices {
		if hasFace[i] {
			newIdx[i] = len(newVertices)
			newVertices = append(newVertices, v)
		}
	}

	newFaces := make([]spatialmath.Face, 0, len(faces)-len(toRemove))
	for i, f := range faces {
		if removed[i] {
			continue
		}
		nf := make(spatialmath.Face, len(f))
		for j, idx := range f {
			nf[j] = newIdx[idx]
		}
		newFaces = append(newFaces, nf)
	}
	return spatialmath.NewMesh(newVertices, newFaces), nil
}

// CleanupStats describes what CleanupSmallClusters changed.
type CleanupStats struct {
	Clusters        int
	SmallClusters   int
	Skipped         int
	SizeMedian      float64
	FacesRemoved    int
	VerticesRemoved int
}

// CleanupSmallClusters removes every small cluster of faces found by FindSmallClusters, every face
// that is not a proper triangle, and the vertices left unused.
func CleanupSmallClusters(
	ctx context.Context,
	mesh *spatialmath.Mesh,
	conf ClusteringConfig,
	logger logging.Logger,
) (*spatialmath.Mesh, CleanupStats, error) {
	clusters, err := FindSmallClusters(ctx, mesh, conf, logger)
	if err != nil {
		return nil, CleanupStats{}, err
	}
	out, err := RemoveFaces(mesh, append(append([]int(nil), clusters.Remove...), clusters.Skipped...))
	if err != nil {
		return nil, CleanupStats{}, err
	}
	stats := CleanupStats{
		Clusters:        clusters.Clusters,
		SmallClusters:   clusters.SmallClusters,
		Skipped:         len(clusters.Skipped),
		SizeMedian:      clusters.SizeMedian,
		FacesRemoved:    mesh.NumFaces() - out.NumFaces(),
		VerticesRemoved: mesh.NumVertices() - out.NumVertices(),
	}
	logger.Infow("removed small clusters",
		"clusters", stats.Clusters,
		"small_clusters", stats.SmallClusters,
		"bad_faces", stats.Skipped,
		"faces_removed", stats.FacesRemoved,
		"vertices_removed", stats.VerticesRemoved,
	)
	return out, stats, nil
}
