package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridger.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Bridge.Slippage != 0.005 || cfg.Bridge.ApproveGasLimit != 150_000 || cfg.Bridge.SettleDelay != 30*time.Second {
		t.Errorf("bridge defaults = %+v", cfg.Bridge)
	}
	if cfg.Bridge.RecorderTimeout != 10*time.Second || cfg.SchedulerOptions().RecorderTimeout != 10*time.Second {
		t.Errorf("recorder timeout = %s", cfg.Bridge.RecorderTimeout)
	}
	if cfg.Bridge.StartJitterMin != time.Second || cfg.Bridge.StartJitterMax != 200*time.Second {
		t.Errorf("jitter defaults = %s..%s", cfg.Bridge.StartJitterMin, cfg.Bridge.StartJitterMax)
	}
	if cfg.Poller.Interval != 30*time.Second || cfg.Poller.LogEvery != 3 || cfg.Poller.Timeout != 0 {
		t.Errorf("poller defaults = %+v", cfg.Poller)
	}
	if cfg.Wallets.KeysFile != DefaultKeysFile {
		t.Errorf("keys file = %s", cfg.Wallets.KeysFile)
	}

	plan, err := cfg.RotationPlan()
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Steps) != 3 || plan.Steps[0].Route.Code != "pa" || plan.Steps[2].DelayAfter.Max != 300*time.Second {
		t.Errorf("rotation = %+v", plan.Steps)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
bridge:
  amount_min: 10
  amount_max: 12.5
  amount_precision: 2
  slippage: 0.01
  settle_delay: 5s
  repeat: 3
  recorder_timeout: 3s
poller:
  interval: 10s
  timeout: 1h
rotation:
  - route: pb
    delay_min: 1m
    delay_max: 2m
  - route: bp
chains:
  polygon:
    tx_type: 2
    swap_gas_limit: 700000
kafka:
  brokers: [a:9092]
`)
	t.Setenv(EnvKeysFile, "/secrets/keys.txt")
	t.Setenv(EnvRPCPrefix+"BSC", "https://bsc.example/rpc")
	t.Setenv(EnvKafkaBrokers, "k1:9092, k2:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Bridge.AmountMax != 12.5 || cfg.Bridge.SettleDelay != 5*time.Second || cfg.Bridge.Repeat != 3 || cfg.Bridge.RecorderTimeout != 3*time.Second {
		t.Errorf("bridge = %+v", cfg.Bridge)
	}
	if cfg.Poller.Timeout != time.Hour {
		t.Errorf("poller timeout = %s", cfg.Poller.Timeout)
	}
	if cfg.Wallets.KeysFile != "/secrets/keys.txt" {
		t.Errorf("keys file = %s", cfg.Wallets.KeysFile)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}

	defs, err := cfg.Definitions()
	if err != nil {
		t.Fatalf("Definitions: %v", err)
	}
	if defs.Chains[types.BSC].RpcUrl != "https://bsc.example/rpc" {
		t.Errorf("bsc rpc = %s", defs.Chains[types.BSC].RpcUrl)
	}
	polygon := defs.Chains[types.Polygon]
	if polygon.TxType != types.DynamicFeeTxType || polygon.SwapGasLimit != 700_000 {
		t.Errorf("polygon = %+v", polygon)
	}
	if polygon.RPC.MaxRetries != 3 || polygon.RPC.RateLimit != 10 {
		t.Errorf("rpc settings = %+v", polygon.RPC)
	}

	plan, _ := cfg.RotationPlan()
	if plan.Repeat != 3 || len(plan.Steps) != 2 || plan.Steps[0].DelayAfter.Min != time.Minute {
		t.Errorf("plan = %+v", plan)
	}

	opts := cfg.SchedulerOptions()
	if opts.Amount.Precision != 2 || opts.Amount.Min != 10 {
		t.Errorf("scheduler options = %+v", opts)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad slippage", "bridge:\n  slippage: 1.5\n"},
		{"inverted amounts", "bridge:\n  amount_min: 9\n  amount_max: 6\n"},
		{"precision", "bridge:\n  amount_precision: 9\n"},
		{"unknown route", "rotation:\n  - route: zz\n"},
		{"unknown chain", "chains:\n  solana:\n    rpc_url: x\n"},
		{"log format", "logging:\n  format: xml\n"},
		{"negative recorder timeout", "bridge:\n  recorder_timeout: -1s\n"},
		{"bad yaml", "bridge: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, commonerrors.ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestDefinitionsRejectsBadOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, "chains:\n  base:\n    router_address: not-an-address\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.Definitions(); !errors.Is(err, commonerrors.ErrInvalidConfig) {
		t.Errorf("error = %v", err)
	}
}
