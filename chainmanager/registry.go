package chainmanager

import (
	"context"
	"sort"
	"sync"

	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ChainCreator constructs connected chains from their configuration.
type ChainCreator interface {
	CreateChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.Chain, error)
}

// Registry holds the connected chains of a run, keyed by name.
type Registry struct {
	logger       *logrus.Logger
	chains       map[types.ChainName]types.Chain
	chainsMutex  sync.RWMutex
	factory      ChainCreator
	factoryMutex sync.RWMutex
}

// NewChainRegistry creates a registry that builds chains through the given factory.
//
// Parameters:
// - factory: the chain constructor.
// - logger: the logger handed to every created chain.
//
// Returns:
// - *Registry: the registry, satisfying types.ChainRegistry.
func NewChainRegistry(factory ChainCreator, logger *logrus.Logger) *Registry {
	return &Registry{
		chains:  make(map[types.ChainName]types.Chain),
		factory: factory,
		logger:  logger,
	}
}

func (r *Registry) Add(ctx context.Context, config *types.ChainConfig) error {
	if config == nil || config.Name == "" {
		return commonerrors.ErrInvalidConfig
	}
	if r.factory == nil {
		return commonerrors.ErrFactoryNotProvided
	}

	r.chainsMutex.RLock()
	_, exists := r.chains[config.Name]
	r.chainsMutex.RUnlock()
	if exists {
		return errors.Wrapf(commonerrors.ErrChainExists, "chain %s", config.Name)
	}

	// Lock factory for reading to prevent changes during chain creation.
	r.factoryMutex.RLock()
	chain, err := r.factory.CreateChain(ctx, config, r.logger)
	r.factoryMutex.RUnlock()

	if err != nil {
		return errors.Wrapf(err, "failed to create chain %s", config.Name)
	}

	// Lock chains map for writing
	r.chainsMutex.Lock()
	r.chains[config.Name] = chain
	r.chainsMutex.Unlock()

	return nil
}

func (r *Registry) Get(name types.ChainName) (types.Chain, error) {
	r.chainsMutex.RLock()
	chain, ok := r.chains[name]
	r.chainsMutex.RUnlock()

	if !ok {
		return nil, errors.Wrapf(commonerrors.ErrChainNotFound, "chain %s", name)
	}
	return chain, nil
}

func (r *Registry) Remove(name types.ChainName) {
	r.chainsMutex.Lock()
	chain, ok := r.chains[name]
	delete(r.chains, name)
	r.chainsMutex.Unlock()

	if ok {
		chain.Close()
	}
}

// Names returns the registered chains in alphabetical order.
func (r *Registry) Names() []types.ChainName {
	r.chainsMutex.RLock()
	names := make([]types.ChainName, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	r.chainsMutex.RUnlock()

	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// CloseAll closes and removes every registered chain.
func (r *Registry) CloseAll() {
	for _, name := range r.Names() {
		r.Remove(name)
	}
}

var _ types.ChainRegistry = (*Registry)(nil)
