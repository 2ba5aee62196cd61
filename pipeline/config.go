package pipeline

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/a8m/envsubst"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/meshfuse/fusion"
	"go.viam.com/meshfuse/logging"
	"go.viam.com/meshfuse/meshing"
	"go.viam.com/meshfuse/rimage/transform"
	"go.viam.com/meshfuse/utils"
)

// Config describes a fusion run: the camera, the volume handed to the engine, how each frame is
// preprocessed and composited, how the mesh is cleaned up and where it is saved.
type Config struct {
	Engine string `json:"engine"`

	Width  int `json:"width_px"`
	Height int `json:"height_px"`
	// Optional overrides of the default camera model derived from the resolution.
	Fx  *float64 `json:"fx,omitempty"`
	Fy  *float64 `json:"fy,omitempty"`
	Ppx *float64 `json:"ppx,omitempty"`
	Ppy *float64 `json:"ppy,omitempty"`
	// IntrinsicsPath, if set, names a JSON camera model used instead of the resolution.
	IntrinsicsPath string `json:"intrinsics_path,omitempty"`

	VolumeSize      float64 `json:"volume_size_m"`
	CellSize        float64 `json:"cell_size_m"`
	NumRandomSplits int     `json:"num_random_splits"`

	InvertPose        bool `json:"invert_pose"`
	WorldFrame        bool `json:"world_frame"`
	Organized         bool `json:"organized"`
	ZeroAsMissing     bool `json:"zero_as_missing"`
	ParallelComposite bool `json:"parallel_composite"`

	Flatten         bool                      `json:"flatten"`
	FlattenDistance float64                   `json:"flatten_distance_m"`
	Cleanup         bool                      `json:"cleanup"`
	Clustering      *meshing.ClusteringConfig `json:"clustering,omitempty"`

	Visualize  bool   `json:"visualize"`
	SaveASCII  bool   `json:"save_ascii"`
	OutputPath string `json:"output_path"`
	// LogFile, if set, also writes the run's logs to a rotated file.
	LogFile string `json:"log_file,omitempty"`
	// LogLevel, if set, is one of debug, info, warn or error and applies to the pipeline's loggers.
	LogLevel string `json:"log_level,omitempty"`
}

// ConfigSchema describes the JSON form of Config.
var ConfigSchema = jsonschema.Reflect(&Config{})

// DefaultConfig returns a config with every optional field at its default. Engine and
// OutputPath still need to be set.
func DefaultConfig() Config {
	clustering := meshing.DefaultClusteringConfig()
	return Config{
		Width:           640,
		Height:          480,
		VolumeSize:      fusion.DefaultVolumeSize,
		CellSize:        fusion.DefaultCellSize,
		NumRandomSplits: fusion.DefaultNumRandomSplits,
		FlattenDistance: meshing.DefaultFlattenDistance,
		Clustering:      &clustering,
	}
}

// NewConfigFromAttributes decodes attributes over DefaultConfig. Unknown keys are an error.
func NewConfigFromAttributes(attributes utils.AttributeMap) (*Config, error) {
	conf := DefaultConfig()
	attrs, err := utils.TransformAttributeMapToStruct(&conf, attributes)
	if err != nil {
		return nil, err
	}
	result, ok := attrs.(*Config)
	if !ok {
		return nil, utils.NewUnexpectedTypeError(result, attrs)
	}
	return result, nil
}

// ReadConfigFile reads a JSON object from path, expanding environment variables such as
// ${OUT_DIR} first, and decodes it with NewConfigFromAttributes.
func ReadConfigFile(path string) (*Config, error) {
	data, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}
	var attributes utils.AttributeMap
	if err := json.Unmarshal(data, &attributes); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}
	return NewConfigFromAttributes(attributes)
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if config.Engine == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "engine")
	}
	if config.OutputPath == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "output_path")
	}
	if config.IntrinsicsPath == "" && (config.Width <= 0 || config.Height <= 0) {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("width_px and height_px must be positive, got %dx%d", config.Width, config.Height))
	}
	if config.FlattenDistance < 0 || math.IsNaN(config.FlattenDistance) {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("flatten_distance_m cannot be less than 0, got %v", config.FlattenDistance))
	}
	if config.LogLevel != "" {
		if _, err := logging.LevelFromString(config.LogLevel); err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
	}
	if config.Clustering != nil {
		if err := config.Clustering.CheckValid(); err != nil {
			return goutils.NewConfigValidationError(fmt.Sprintf("%s.%s", path, "clustering"), err)
		}
	}
	params, err := config.FusionParams()
	if err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if err := params.Validate(); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// Intrinsics returns the camera model: the JSON file when one is named, otherwise the default
// model for the resolution, with any explicit focal length or principal point applied on top.
func (config *Config) Intrinsics() (*transform.PinholeCameraIntrinsics, error) {
	var intrinsics *transform.PinholeCameraIntrinsics
	if config.IntrinsicsPath != "" {
		var err error
		intrinsics, err = transform.NewPinholeCameraIntrinsicsFromJSONFile(config.IntrinsicsPath)
		if err != nil {
			return nil, err
		}
	} else {
		intrinsics = transform.NewPinholeCameraIntrinsicsForResolution(config.Width, config.Height)
	}
	if config.Fx != nil {
		intrinsics.Fx = *config.Fx
	}
	if config.Fy != nil {
		intrinsics.Fy = *config.Fy
	}
	if config.Ppx != nil {
		intrinsics.Ppx = *config.Ppx
	}
	if config.Ppy != nil {
		intrinsics.Ppy = *config.Ppy
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return intrinsics, nil
}

// FusionParams returns the parameters the fusion engine is created with.
func (config *Config) FusionParams() (fusion.Params, error) {
	intrinsics, err := config.Intrinsics()
	if err != nil {
		return fusion.Params{}, err
	}
	return fusion.Params{
		VolumeSize:      config.VolumeSize,
		CellSize:        config.CellSize,
		NumRandomSplits: config.NumRandomSplits,
		Intrinsics:      intrinsics,
	}, nil
}

// ClusteringConfig returns the small cluster removal parameters, falling back to the defaults.
func (config *Config) ClusteringConfig() meshing.ClusteringConfig {
	if config.Clustering == nil {
		return meshing.DefaultClusteringConfig()
	}
	return *config.Clustering
}

// MeshEncoding returns the encoding the mesh is saved with.
func (config *Config) MeshEncoding() MeshEncoding {
	if config.SaveASCII {
		return EncodingASCII
	}
	return EncodingBinary
}
