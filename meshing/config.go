// Package meshing cleans up reconstructed triangle meshes. It merges near-coincident vertices,
// finds small disconnected clusters of faces and removes faces while compacting the vertex
// arena.
package meshing

import (
	"math"

	"github.com/pkg/errors"
)

const (
	// DefaultFlattenDistance is the default vertex merge distance in meters.
	DefaultFlattenDistance = 1e-4
	// DefaultFaceDistance is the default distance in meters under which two face centroids are
	// connected, about two marching cube widths at the default cell size.
	DefaultFaceDistance = 0.02
	// DefaultMaxClusterSize is the default face count at or under which a cluster is removed.
	DefaultMaxClusterSize = 5
)

// ClusteringConfig specifies the parameters for small cluster removal.
type ClusteringConfig struct {
	FaceDistance   float64 `json:"face_distance_m"`
	MaxClusterSize int     `json:"max_cluster_size"`
}

// DefaultClusteringConfig returns the default clustering parameters.
func DefaultClusteringConfig() ClusteringConfig {
	return ClusteringConfig{
		FaceDistance:   DefaultFaceDistance,
		MaxClusterSize: DefaultMaxClusterSize,
	}
}

// CheckValid checks to see in the input values are valid.
func (cfg *ClusteringConfig) CheckValid() error {
	if cfg == nil {
		return errors.New("clustering config cannot be nil")
	}
	if math.IsNaN(cfg.FaceDistance) || math.IsInf(cfg.FaceDistance, 0) || cfg.FaceDistance < 0 {
		return errors.Errorf("face_distance_m must be a finite number not less than 0, got %v", cfg.FaceDistance)
	}
	if cfg.MaxClusterSize < 0 {
		return errors.Errorf("max_cluster_size cannot be less than 0, got %d", cfg.MaxClusterSize)
	}
	return nil
}
