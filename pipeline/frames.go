package pipeline

import (
	"sort"

	"github.com/pkg/errors"

	"go.viam.com/meshfuse/logging"
	"go.viam.com/meshfuse/spatialmath"
)

// ErrFramePoseMismatch is returned when the number of clouds and poses differ.
var ErrFramePoseMismatch = errors.New("number of point clouds and poses differ")

// FramePaths names the files one frame is read from.
type FramePaths struct {
	CloudPath string
	PosePath  string
}

// Frame is one cloud to integrate and the pose of the camera that captured it.
type Frame struct {
	CloudPath string
	Pose      spatialmath.Pose
}

// PairFrames sorts the cloud and pose paths independently and pairs them by position.
func PairFrames(cloudPaths, posePaths []string) ([]FramePaths, error) {
	if len(cloudPaths) != len(posePaths) {
		return nil, errors.Wrapf(ErrFramePoseMismatch, "%d clouds, %d poses", len(cloudPaths), len(posePaths))
	}
	clouds := append([]string(nil), cloudPaths...)
	poses := append([]string(nil), posePaths...)
	sort.Strings(clouds)
	sort.Strings(poses)

	pairs := make([]FramePaths, len(clouds))
	for i := range clouds {
		pairs[i] = FramePaths{CloudPath: clouds[i], PosePath: poses[i]}
	}
	return pairs, nil
}

// LoadPoses reads each pose file, inverting the pose when invert is set. The encoding of each
// file follows its extension.
func LoadPoses(paths []string, invert bool, logger logging.Logger) ([]spatialmath.Pose, error) {
	poses := make([]spatialmath.Pose, 0, len(paths))
	for i, path := range paths {
		pose, err := spatialmath.ReadPoseFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "pose %d", i)
		}
		if invert {
			if pose, err = spatialmath.PoseInverse(pose); err != nil {
				return nil, errors.Wrapf(err, "pose %d from %s", i, path)
			}
		}
		logger.Debugf("pose %d from %s:\n%v", i, path, pose)
		poses = append(poses, pose)
	}
	return poses, nil
}

// LoadFrames pairs cloud and pose paths and reads the poses.
func LoadFrames(cloudPaths, posePaths []string, invert bool, logger logging.Logger) ([]Frame, error) {
	pairs, err := PairFrames(cloudPaths, posePaths)
	if err != nil {
		return nil, err
	}
	posePaths = make([]string, len(pairs))
	for i, pair := range pairs {
		posePaths[i] = pair.PosePath
	}
	logger.Infof("reading %d pose files", len(posePaths))
	poses, err := LoadPoses(posePaths, invert, logger)
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, len(pairs))
	for i, pair := range pairs {
		frames[i] = Frame{CloudPath: pair.CloudPath, Pose: poses[i]}
	}
	return frames, nil
}
