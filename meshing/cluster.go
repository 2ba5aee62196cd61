package meshing

import (
	"container/list"
	"context"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
	"go.opencensus.io/trace"

	"go.viam.com/meshfuse/logging"
	"go.viam.com/meshfuse/pointcloud"
	"go.viam.com/meshfuse/spatialmath"
	"go.viam.com/meshfuse/utils"
)

// FaceRecord is the clustering view of one triangle.
type FaceRecord struct {
	Centroid r3.Vector
	Normal   r3.Vector
	// Face is the index of the triangle in the mesh it came from.
	Face int
}

// FaceRecords returns one record per triangle whose three vertex indices are distinct, in face
// order, and the ascending indices of the faces skipped because they were not such a triangle.
func FaceRecords(mesh *spatialmath.Mesh) ([]FaceRecord, []int) {
	records := make([]FaceRecord, 0, mesh.NumFaces())
	var skipped []int
	for i, f := range mesh.Faces() {
		if !f.IsTriangle() || f.IsDegenerate() {
			skipped = append(skipped, i)
			continue
		}
		tri, err := mesh.Triangle(i)
		if err != nil {
			skipped = append(skipped, i)
			continue
		}
		records = append(records, FaceRecord{Centroid: tri.Centroid(), Normal: tri.Normal(), Face: i})
	}
	return records, skipped
}

// ClusterResult is the outcome of FindSmallClusters.
type ClusterResult struct {
	// Remove holds the face indices of every small cluster, ascending.
	Remove []int
	// Clusters is the number of connected components found.
	Clusters int
	// SmallClusters is how many of them were at or under the size limit.
	SmallClusters int
	// Skipped holds the faces that were not proper triangles and so were never clustered,
	// ascending.
	Skipped []int
	// SizeMedian is the median component size.
	SizeMedian float64
}

// FindSmallClusters groups triangles into connected components, where two triangles are
// connected when their centroids are closer than conf.FaceDistance, and returns the faces of
// every component with at most conf.MaxClusterSize triangles.
func FindSmallClusters(
	ctx context.Context,
	mesh *spatialmath.Mesh,
	conf ClusteringConfig,
	logger logging.Logger,
) (ClusterResult, error) {
	ctx, span := trace.StartSpan(ctx, "meshing::FindSmallClusters")
	defer span.End()

	if err := conf.CheckValid(); err != nil {
		return ClusterResult{}, err
	}
	if err := mesh.Validate(); err != nil {
		return ClusterResult{}, err
	}

	records, skipped := FaceRecords(mesh)
	if len(skipped) > 0 {
		logger.Debugw("skipped faces that are not proper triangles", "count", len(skipped))
	}
	kd := pointcloud.NewKDTree(lo.Map(records, func(r FaceRecord, _ int) r3.Vector {
		return r.Centroid
	}))

	result := ClusterResult{Skipped: skipped}
	visited := make([]bool, len(records))
	sizes := make([]float64, 0)
	for i := range records {
		if visited[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return ClusterResult{}, err
		}
		members := componentBFS(kd, i, conf.FaceDistance, visited)
		result.Clusters++
		sizes = append(sizes, float64(len(members)))
		if len(members) > conf.MaxClusterSize {
			continue
		}
		result.SmallClusters++
		for _, m := range members {
			result.Remove = append(result.Remove, records[m].Face)
		}
	}
	sort.Ints(result.Remove)

	if len(sizes) > 0 {
		median, err := stats.Median(sizes)
		if err != nil {
			return ClusterResult{}, err
		}
		result.SizeMedian = median
	}
	logger.Debugf("found %d clusters (median size %.1f), %d of at most %d faces",
		result.Clusters, result.SizeMedian, result.SmallClusters, conf.MaxClusterSize)
	return result, nil
}

// componentBFS returns the record indices reachable from start, marking them visited.
func componentBFS(kd *pointcloud.KDTree, start int, dist float64, visited []bool) []int {
	members := []int{}
	queue := list.New()
	queue.PushBack(start)
	visited[start] = true
	for queue.Len() > 0 {
		e := queue.Front()
		cur, ok := e.Value.(int)
		if !ok {
			panic(utils.NewUnexpectedTypeError(cur, e.Value))
		}
		queue.Remove(e)
		members = append(members, cur)

		// non-finite centroids are not indexed and so have no neighbors
		neighbors, err := kd.RadiusNearestNeighborsOf(cur, dist)
		if err != nil {
			continue
		}
		for _, n := range neighbors {
			if n.Distance < dist && !visited[n.Index] {
				visited[n.Index] = true
				queue.PushBack(n.Index)
			}
		}
	}
	return members
}
