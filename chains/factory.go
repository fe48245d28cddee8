package chains

import (
	"context"
	"sync"

	"github.com/ClipFinance/stargate-bridger/chains/evm"
	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	commontypes "github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ChainConstructor represents a function that constructs a new chain instance.
//
// Parameters:
// - ctx: the context for managing the connection.
// - config: the configuration for the chain.
// - logger: the logger for logging purposes.
//
// Returns:
// - commontypes.Chain: the constructed chain instance.
// - error: an error if the chain construction fails.
type ChainConstructor func(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Chain, error)

// ChainFactory defines the interface for chain creation.
type ChainFactory interface {
	// RegisterConstructor registers a new chain constructor for a given chain type.
	//
	// Parameters:
	// - chainType: the type of the chain to register.
	// - constructor: the constructor function for the chain type.
	RegisterConstructor(chainType commontypes.ChainType, constructor ChainConstructor)

	// CreateChain creates a new chain instance based on the configuration.
	//
	// Parameters:
	// - ctx: the context for managing the connection.
	// - config: the configuration for the chain.
	// - logger: the logger for logging purposes.
	//
	// Returns:
	// - commontypes.Chain: the created chain instance.
	// - error: an error if the chain creation fails.
	CreateChain(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Chain, error)
}

type chainFactory struct {
	// constructors stores the mapping of chain types to their constructors.
	constructors map[commontypes.ChainType]ChainConstructor
	// constructorsMutex protects access to the constructors map.
	constructorsMutex sync.RWMutex
}

// NewChainFactory creates a new instance of the chain factory.
//
// Parameters:
// - opts: dependencies shared by every EVM chain.
//
// Returns:
// - ChainFactory: the new chain factory instance.
func NewChainFactory(opts evm.Options) ChainFactory {
	factory := &chainFactory{
		constructors: make(map[commontypes.ChainType]ChainConstructor),
	}

	// Initialize with default constructors.
	factory.RegisterConstructor(commontypes.EVM, func(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Chain, error) {
		return evm.NewEvmChain(ctx, config, logger, opts)
	})

	return factory
}

// RegisterConstructor registers a new chain constructor.
//
// Parameters:
// - chainType: the type of the chain to register.
// - constructor: the constructor function for the chain type.
func (f *chainFactory) RegisterConstructor(chainType commontypes.ChainType, constructor ChainConstructor) {
	f.constructorsMutex.Lock()
	defer f.constructorsMutex.Unlock()

	f.constructors[chainType] = constructor
}

// CreateChain creates a new chain instance based on the configuration.
//
// Parameters:
// - ctx: the context for managing the connection.
// - config: the configuration for the chain.
// - logger: the logger for logging purposes.
//
// Returns:
// - commontypes.Chain: the created chain instance.
// - error: an error if the chain creation fails.
func (f *chainFactory) CreateChain(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Chain, error) {
	f.constructorsMutex.RLock()
	constructor, exists := f.constructors[config.ChainType]
	f.constructorsMutex.RUnlock()

	if !exists {
		return nil, errors.Wrapf(commonerrors.ErrInvalidChainType, "%q", config.ChainType)
	}

	return constructor(ctx, config, logger)
}
