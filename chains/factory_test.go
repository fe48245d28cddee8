package chains

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ClipFinance/stargate-bridger/chainmanager"
	"github.com/ClipFinance/stargate-bridger/chains/evm"
	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	commontypes "github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/sirupsen/logrus"
)

func TestCreateChainDispatchesByType(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	factory := NewChainFactory(evm.Options{})

	var built *commontypes.ChainConfig
	factory.RegisterConstructor(commontypes.EVM, func(ctx context.Context, config *commontypes.ChainConfig, logger *logrus.Logger) (commontypes.Chain, error) {
		built = config
		return chainmanager.NewChainBuilder(config).Build(), nil
	})

	cfg := &commontypes.ChainConfig{Name: commontypes.BSC, ChainType: commontypes.EVM}
	chain, err := factory.CreateChain(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("CreateChain: %v", err)
	}
	if built != cfg || chain.GetConfig() != cfg {
		t.Error("constructor did not receive the configuration")
	}

	_, err = factory.CreateChain(context.Background(), &commontypes.ChainConfig{ChainType: commontypes.UNKNOWN}, logger)
	if !errors.Is(err, commonerrors.ErrInvalidChainType) {
		t.Errorf("error = %v, want ErrInvalidChainType", err)
	}
}
