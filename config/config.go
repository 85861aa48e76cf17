// Package config loads tendercore's TOML configuration file, mirroring the
// teacher's Load/createDefault/keystore-passphrase shape.
package config

import (
	"fmt"
	"os"

	"tendercore/crypto"

	"github.com/BurntSushi/toml"
)

// Config is the full set of values a node reads at startup.
type Config struct {
	ListenAddress         string   `toml:"ListenAddress"`
	RPCAddress            string   `toml:"RPCAddress"`
	DataDir               string   `toml:"DataDir"`
	GenesisFile           string   `toml:"GenesisFile"`
	ValidatorKeystorePath string   `toml:"ValidatorKeystorePath"`
	BootstrapPeers        []string `toml:"BootstrapPeers"`
	SeedsRegistryFile     string   `toml:"SeedsRegistryFile"`

	Consensus ConsensusConfig `toml:"Consensus"`
}

// DefaultConsensusConfig mirrors the magnitude of
// consensus/worker.DefaultTimeoutConfig, expressed in the millisecond units
// TOML carries (spec.md §6 "Configuration").
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		ProposeBaseMs:           3000,
		ProposeDeltaMs:          500,
		PrevoteBaseMs:           1000,
		PrevoteDeltaMs:          500,
		PrecommitBaseMs:         1000,
		PrecommitDeltaMs:        500,
		CommitTimeoutMs:         2000,
		MinEmptyBlockIntervalMs: 10000,
		AllowedFutureViewsGap:   4,
		SortitionExpectation:    20.0,
	}
}

type options struct {
	keystorePassphrase string
}

// Option customizes Load; currently only the keystore passphrase is
// pluggable, mirroring the teacher's WithKeystorePassphraseSource.
type Option func(*options)

// WithKeystorePassphrase supplies the passphrase used to encrypt a freshly
// generated validator key, or decrypt an existing one.
func WithKeystorePassphrase(passphrase string) Option {
	return func(o *options) { o.keystorePassphrase = passphrase }
}

// Load reads path, filling in defaults for anything the file omits. If path
// does not exist, a default configuration (including a freshly generated,
// keystore-encrypted validator key) is created and saved there.
func Load(path string, opts ...Option) (*Config, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path, o)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if !meta.IsDefined("Consensus") {
		cfg.Consensus = DefaultConsensusConfig()
	}

	if cfg.ValidatorKeystorePath == "" {
		if err := provisionKeystore(cfg, path, o); err != nil {
			return nil, err
		}
		if err := save(cfg, path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string, o options) (*Config, error) {
	cfg := &Config{
		ListenAddress:  ":6001",
		RPCAddress:     ":8080",
		DataDir:        "./tendercore-data",
		GenesisFile:    "genesis.json",
		BootstrapPeers: []string{},
		Consensus:      DefaultConsensusConfig(),
	}
	if err := provisionKeystore(cfg, path, o); err != nil {
		return nil, err
	}
	if err := save(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// provisionKeystore generates a validator key and saves it alongside path,
// encrypted with the caller-supplied passphrase -- no passphrase, no
// keystore, since an unencrypted key on disk is not an option.
func provisionKeystore(cfg *Config, configPath string, o options) error {
	if o.keystorePassphrase == "" {
		return fmt.Errorf("config: a keystore passphrase is required to provision a validator key")
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	keystorePath := configPath + ".validator.keystore"
	if err := crypto.SaveToKeystore(keystorePath, key, o.keystorePassphrase); err != nil {
		return err
	}
	cfg.ValidatorKeystorePath = keystorePath
	return nil
}

func save(cfg *Config, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
