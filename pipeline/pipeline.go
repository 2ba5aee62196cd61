// Package pipeline integrates a sequence of posed point clouds into a fusion engine and turns
// the reconstructed surface into a cleaned up mesh on disk.
//
// A run moves through a fixed set of states. Each frame is loaded, preprocessed, composited into
// an organized frame and integrated; once every frame is in, the mesh is reconstructed, cleaned
// up and saved. Any error aborts the run.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/meshfuse/fusion"
	"go.viam.com/meshfuse/logging"
	"go.viam.com/meshfuse/meshing"
	"go.viam.com/meshfuse/pointcloud"
	"go.viam.com/meshfuse/rimage/transform"
	"go.viam.com/meshfuse/spatialmath"
	"go.viam.com/meshfuse/utils"
)

// State is a step of a pipeline run.
type State int

// The states a run moves through, in order. StateLoadFrame through StateIntegrate repeat once
// per frame.
const (
	StateLoadFrame State = iota
	StatePreprocess
	StateComposite
	StateIntegrate
	StateReconstruct
	StateCleanup
	StateSave
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoadFrame:
		return "load_frame"
	case StatePreprocess:
		return "preprocess"
	case StateComposite:
		return "composite"
	case StateIntegrate:
		return "integrate"
	case StateReconstruct:
		return "reconstruct"
	case StateCleanup:
		return "cleanup"
	case StateSave:
		return "save"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// perFrame returns whether the state works on a single frame.
func (s State) perFrame() bool {
	return s <= StateIntegrate
}

// Stats summarizes a run.
type Stats struct {
	Frames         int
	PointsLoaded   int
	PixelsOccupied int
	Flatten        *meshing.FlattenStats
	Cleanup        *meshing.CleanupStats
	Elapsed        time.Duration
}

// Result is what a successful run produces.
type Result struct {
	RunID      uuid.UUID
	Mesh       *spatialmath.Mesh
	OutputPath string
	// Map holds every composited frame in the world frame. It is nil unless visualize is set.
	Map   *MapAccumulator
	Stats Stats
	State State
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock the run is timed with.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// WithEngine uses engine instead of creating one from the config's engine name.
func WithEngine(engine fusion.Engine) Option {
	return func(p *Pipeline) {
		p.engine = engine
	}
}

// Pipeline runs a fusion job. A Pipeline runs once; the engine is closed when the run ends.
type Pipeline struct {
	conf       Config
	intrinsics *transform.PinholeCameraIntrinsics
	engine     fusion.Engine
	loader     CloudLoader
	saver      MeshSaver
	clock      clock.Clock
	logger     logging.Logger
	logFile    *logging.FileAppender
	ran        atomic.Bool
}

// New validates conf and creates the fusion engine it names.
func New(
	ctx context.Context,
	conf *Config,
	loader CloudLoader,
	saver MeshSaver,
	logger logging.Logger,
	opts ...Option,
) (*Pipeline, error) {
	if conf == nil {
		return nil, errors.New("pipeline needs a config")
	}
	if err := conf.Validate("pipeline"); err != nil {
		return nil, err
	}
	if loader == nil || saver == nil {
		return nil, errors.New("pipeline needs a cloud loader and a mesh saver")
	}
	intrinsics, err := conf.Intrinsics()
	if err != nil {
		return nil, err
	}
	logger = logger.Sublogger("pipeline")
	if conf.LogLevel != "" {
		level, err := logging.LevelFromString(conf.LogLevel)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	}
	p := &Pipeline{
		conf:       *conf,
		intrinsics: intrinsics,
		loader:     loader,
		saver:      saver,
		clock:      clock.New(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if conf.LogFile != "" {
		p.logFile = logging.NewFileAppender(conf.LogFile)
		logger.AddAppender(p.logFile)
	}
	if p.engine == nil {
		params, err := conf.FusionParams()
		if err != nil {
			return nil, p.closeLogFile(err)
		}
		if p.engine, err = fusion.NewEngine(ctx, conf.Engine, params, logger.Sublogger("fusion")); err != nil {
			return nil, p.closeLogFile(err)
		}
	}
	logger.Debugf("camera matrix:\n%v", intrinsics.GetCameraMatrix())
	return p, nil
}

// closeLogFile closes the log file, if any, and combines the result with err.
func (p *Pipeline) closeLogFile(err error) error {
	if p.logFile == nil {
		return err
	}
	return multierr.Combine(err, errors.Wrap(p.logFile.Close(), "cannot close log file"))
}

// runState is carried from one state to the next.
type runState struct {
	frames   []Frame
	frameIdx int
	cloud    pointcloud.PointCloud
	frame    *pointcloud.OrganizedFrame
	mapAcc   *MapAccumulator
	mesh     *spatialmath.Mesh
	outPath  string
	stats    Stats
}

// Run integrates frames in order, then reconstructs, cleans up and saves the mesh. The engine is
// closed before Run returns; an error closing it is combined with any run error.
func (p *Pipeline) Run(ctx context.Context, frames []Frame) (res *Result, err error) {
	if !p.ran.CompareAndSwap(false, true) {
		return nil, errors.New("pipeline has already run")
	}
	defer func() {
		if closeErr := p.engine.Close(ctx); closeErr != nil {
			err = multierr.Combine(err, errors.Wrap(closeErr, "cannot close fusion engine"))
		}
		if err = p.closeLogFile(err); err != nil {
			res = nil
		}
	}()
	if len(frames) == 0 {
		return nil, utils.NewPreconditionError("no frames to integrate")
	}

	runID := uuid.New()
	ctx, span := trace.StartSpan(ctx, "pipeline::Run")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("run_id", runID.String()), trace.Int64Attribute("frames", int64(len(frames))))
	p.logger.Infow("starting run", "run_id", runID.String(), "frames", len(frames))

	start := p.clock.Now()
	rs := &runState{frames: frames}
	if p.conf.Visualize {
		rs.mapAcc = NewMapAccumulator()
	}

	state := StateLoadFrame
	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return nil, p.wrapFailure(err, state, rs)
		}
		next, err := p.step(ctx, state, rs)
		if err != nil {
			return nil, p.wrapFailure(err, state, rs)
		}
		state = next
	}

	rs.stats.Elapsed = p.clock.Since(start)
	p.logger.Infof("integrated %d frames and saved %s in %v", rs.stats.Frames, rs.outPath, rs.stats.Elapsed)
	return &Result{
		RunID:      runID,
		Mesh:       rs.mesh,
		OutputPath: rs.outPath,
		Map:        rs.mapAcc,
		Stats:      rs.stats,
		State:      StateDone,
	}, nil
}

func (p *Pipeline) wrapFailure(err error, state State, rs *runState) error {
	p.logger.Errorw("pipeline failed", "state", state.String(), "frame", rs.frameIdx+1, "error", err)
	if state.perFrame() {
		return errors.Wrapf(err, "%s failed on frame %d of %d", state, rs.frameIdx+1, len(rs.frames))
	}
	return errors.Wrapf(err, "%s failed", state)
}

// step runs one state and returns the next.
func (p *Pipeline) step(ctx context.Context, state State, rs *runState) (State, error) {
	ctx, span := trace.StartSpan(ctx, "pipeline::"+state.String())
	defer span.End()

	switch state {
	case StateLoadFrame:
		return p.loadFrame(ctx, rs)
	case StatePreprocess:
		return p.preprocess(rs)
	case StateComposite:
		return p.composite(ctx, rs)
	case StateIntegrate:
		return p.integrate(ctx, rs)
	case StateReconstruct:
		return p.reconstruct(ctx, rs)
	case StateCleanup:
		return p.cleanup(ctx, rs)
	case StateSave:
		return p.save(ctx, rs)
	case StateDone, StateFailed:
		return state, errors.Errorf("no step for state %s", state)
	default:
		return StateFailed, errors.Errorf("unknown state %d", state)
	}
}

func (p *Pipeline) loadFrame(ctx context.Context, rs *runState) (State, error) {
	f := rs.frames[rs.frameIdx]
	p.logger.Infof("On frame %d / %d: %s", rs.frameIdx+1, len(rs.frames), f.CloudPath)
	if f.Pose == nil {
		return StateFailed, errors.Errorf("frame %s has no pose", f.CloudPath)
	}
	cloud, err := p.loader.LoadPointCloud(ctx, f.CloudPath)
	if err != nil {
		return StateFailed, err
	}
	if cloud == nil {
		return StateFailed, errors.Errorf("loader returned no cloud for %s", f.CloudPath)
	}
	rs.cloud = cloud
	rs.stats.PointsLoaded += cloud.Size()
	return StatePreprocess, nil
}

func (p *Pipeline) preprocess(rs *runState) (State, error) {
	if p.conf.ZeroAsMissing {
		rs.cloud = pointcloud.ZeroAsMissing(rs.cloud)
	}
	if p.conf.WorldFrame {
		inv, err := spatialmath.PoseInverse(rs.frames[rs.frameIdx].Pose)
		if err != nil {
			return StateFailed, err
		}
		rs.cloud = pointcloud.ApplyPose(rs.cloud, inv)
	}
	return StateComposite, nil
}

func (p *Pipeline) composite(ctx context.Context, rs *runState) (State, error) {
	var err error
	if p.conf.ParallelComposite && !p.conf.Organized {
		rs.frame, err = transform.CompositeOrganizedParallel(ctx, rs.cloud, p.intrinsics)
	} else {
		rs.frame, err = transform.CompositeOrganized(ctx, rs.cloud, p.intrinsics, p.conf.Organized)
	}
	if err != nil {
		return StateFailed, err
	}
	occupied := rs.frame.Occupied()
	rs.stats.PixelsOccupied += occupied
	p.logger.CDebugw(ctx, "composited frame",
		"frame", rs.frameIdx+1,
		"points", rs.cloud.Size(),
		"pixels_occupied", occupied,
	)
	if rs.mapAcc != nil {
		if err := rs.mapAcc.Add(rs.frame, rs.frames[rs.frameIdx].Pose); err != nil {
			return StateFailed, err
		}
	}
	return StateIntegrate, nil
}

func (p *Pipeline) integrate(ctx context.Context, rs *runState) (State, error) {
	if err := p.engine.Integrate(ctx, rs.frame, nil, rs.frames[rs.frameIdx].Pose); err != nil {
		return StateFailed, err
	}
	rs.cloud, rs.frame = nil, nil
	rs.stats.Frames++
	rs.frameIdx++
	if rs.frameIdx < len(rs.frames) {
		return StateLoadFrame, nil
	}
	return StateReconstruct, nil
}

func (p *Pipeline) reconstruct(ctx context.Context, rs *runState) (State, error) {
	p.logger.Info("reconstructing mesh")
	mesh, err := p.engine.Reconstruct(ctx)
	if err != nil {
		return StateFailed, err
	}
	if mesh == nil {
		return StateFailed, errors.New("fusion engine returned no mesh")
	}
	if err := mesh.Validate(); err != nil {
		return StateFailed, errors.Wrap(err, "fusion engine returned an invalid mesh")
	}
	p.logger.Infof("reconstructed mesh has %d vertices and %d faces", mesh.NumVertices(), mesh.NumFaces())
	rs.mesh = mesh
	return StateCleanup, nil
}

func (p *Pipeline) cleanup(ctx context.Context, rs *runState) (State, error) {
	if p.conf.Flatten {
		mesh, stats, err := meshing.FlattenVertices(ctx, rs.mesh, p.conf.FlattenDistance, p.logger.Sublogger("flatten"))
		if err != nil {
			return StateFailed, err
		}
		rs.mesh, rs.stats.Flatten = mesh, &stats
	}
	if p.conf.Cleanup {
		mesh, stats, err := meshing.CleanupSmallClusters(ctx, rs.mesh, p.conf.ClusteringConfig(), p.logger.Sublogger("cleanup"))
		if err != nil {
			return StateFailed, err
		}
		rs.mesh, rs.stats.Cleanup = mesh, &stats
	}
	return StateSave, nil
}

func (p *Pipeline) save(ctx context.Context, rs *runState) (State, error) {
	if err := os.MkdirAll(p.conf.OutputPath, 0o750); err != nil {
		return StateFailed, errors.Wrapf(err, "cannot create output directory %s", p.conf.OutputPath)
	}
	rs.outPath = filepath.Join(p.conf.OutputPath, MeshFileName)
	enc := p.conf.MeshEncoding()
	p.logger.Infof("saving %s mesh to %s", enc, rs.outPath)
	if err := p.saver.SaveMesh(ctx, rs.outPath, rs.mesh, enc); err != nil {
		return StateFailed, err
	}
	return StateDone, nil
}
