package fusion

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/meshfuse/logging"
)

// A Constructor creates an engine from validated params.
type Constructor func(ctx context.Context, params Params, logger logging.Logger) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// RegisterEngine registers an engine constructor under name. Registering a name twice panics.
func RegisterEngine(name string, constructor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, old := registry[name]; old {
		panic(errors.Errorf("trying to register two fusion engines with same name %s", name))
	}
	if constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for fusion engine %s", name))
	}
	registry[name] = constructor
}

// DeregisterEngine removes a registration. It exists for tests.
func DeregisterEngine(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, name)
}

// LookupEngine returns the constructor registered under name.
func LookupEngine(name string) (Constructor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[name]
	return c, ok
}

// RegisteredEngines returns the registered names in sorted order.
func RegisteredEngines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := lo.Keys(registry)
	sort.Strings(names)
	return names
}

// NewEngine validates params and constructs the engine registered under name.
func NewEngine(ctx context.Context, name string, params Params, logger logging.Logger) (Engine, error) {
	constructor, ok := LookupEngine(name)
	if !ok {
		return nil, errors.Errorf("no fusion engine registered with name %q (have %v)", name, RegisteredEngines())
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	logger.Debugw("creating fusion engine",
		"engine", name,
		"volume_size_m", params.VolumeSize,
		"cell_size_m", params.CellSize,
		"resolution", params.Resolution(),
		"num_random_splits", params.NumRandomSplits,
	)
	return constructor(ctx, params, logger)
}
