package config

import (
	"os"
	"path/filepath"
	"testing"

	"tendercore/crypto"
)

const testKeystorePassphrase = "test-passphrase"

func TestLoadCreatesDefaultWithKeystore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path, WithKeystorePassphrase(testKeystorePassphrase))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.ListenAddress != ":6001" || cfg.RPCAddress != ":8080" {
		t.Fatalf("unexpected default addresses: %+v", cfg)
	}
	if cfg.Consensus != DefaultConsensusConfig() {
		t.Fatalf("unexpected consensus defaults: %+v", cfg.Consensus)
	}
	if cfg.ValidatorKeystorePath == "" {
		t.Fatalf("expected a validator keystore path to be set")
	}
	if _, err := os.Stat(cfg.ValidatorKeystorePath); err != nil {
		t.Fatalf("expected keystore file to exist: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}

	key, err := crypto.LoadFromKeystore(cfg.ValidatorKeystorePath, testKeystorePassphrase)
	if err != nil {
		t.Fatalf("decrypt keystore: %v", err)
	}
	if key == nil {
		t.Fatalf("expected decrypted key")
	}
}

func TestLoadWithoutPassphraseFailsToCreateDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error when no keystore passphrase is provided")
	}
}

func TestLoadParsesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `ListenAddress = "0.0.0.0:7000"
RPCAddress = "0.0.0.0:9000"
DataDir = "./data"
GenesisFile = "genesis.json"
BootstrapPeers = ["1.1.1.1:6001", "2.2.2.2:6001"]

[Consensus]
ProposeBaseMs = 1500
ProposeDeltaMs = 250
PrevoteBaseMs = 800
PrevoteDeltaMs = 200
PrecommitBaseMs = 800
PrecommitDeltaMs = 200
CommitTimeoutMs = 1200
MinEmptyBlockIntervalMs = 5000
AllowedFutureViewsGap = 3
BlockReward = 10
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, WithKeystorePassphrase(testKeystorePassphrase))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.ListenAddress != "0.0.0.0:7000" || cfg.RPCAddress != "0.0.0.0:9000" {
		t.Fatalf("unexpected addresses: %+v", cfg)
	}
	if len(cfg.BootstrapPeers) != 2 || cfg.BootstrapPeers[1] != "2.2.2.2:6001" {
		t.Fatalf("unexpected bootstrap peers: %v", cfg.BootstrapPeers)
	}
	if cfg.Consensus.ProposeBaseMs != 1500 || cfg.Consensus.AllowedFutureViewsGap != 3 {
		t.Fatalf("unexpected consensus overrides: %+v", cfg.Consensus)
	}
	if cfg.Consensus.BlockReward != 10 {
		t.Fatalf("unexpected block reward: %d", cfg.Consensus.BlockReward)
	}
	if cfg.ValidatorKeystorePath == "" {
		t.Fatalf("expected a keystore to be provisioned for a file missing one")
	}
}

func TestConsensusConfigToTimeoutConfig(t *testing.T) {
	tc := DefaultConsensusConfig().ToTimeoutConfig()
	if tc.ProposeBase.Milliseconds() != 3000 || tc.CommitTimeout.Milliseconds() != 2000 {
		t.Fatalf("unexpected converted timeouts: %+v", tc)
	}
	if tc.AllowedFutureViewsGap != 4 {
		t.Fatalf("unexpected future views gap: %d", tc.AllowedFutureViewsGap)
	}
}

func TestValidateConsensusRejectsZeroTimeouts(t *testing.T) {
	c := DefaultConsensusConfig()
	c.ProposeBaseMs = 0
	if err := ValidateConsensus(c); err == nil {
		t.Fatalf("expected an error for a zero propose timeout")
	}
}
