// core/genesis/spec_test.go
package genesis

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tendercore/crypto"
)

func TestLoadGenesisSpecParsesValidatorsAndChainID(t *testing.T) {
	addr := crypto.MustNewAddress(crypto.NHBPrefix, bytes.Repeat([]byte{0x01}, 20)).String()
	chainID := uint64(42)

	spec := GenesisSpec{
		GenesisTime: "2024-01-01T00:00:00Z",
		Validators: []ValidatorSpec{
			{Address: addr, Power: 10, Moniker: "validator-1", PubKey: "aabbcc"},
		},
		ChainID: &chainID,
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		t.Fatalf("marshal spec: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}

	loaded, err := LoadGenesisSpec(path)
	if err != nil {
		t.Fatalf("LoadGenesisSpec: %v", err)
	}

	if loaded.GenesisTime != spec.GenesisTime {
		t.Fatalf("genesisTime mismatch: got %q want %q", loaded.GenesisTime, spec.GenesisTime)
	}
	if len(loaded.Validators) != len(spec.Validators) {
		t.Fatalf("unexpected validator count: got %d want %d", len(loaded.Validators), len(spec.Validators))
	}
	if id, ok := loaded.ChainIDValue(); !ok || id != chainID {
		t.Fatalf("unexpected chain id: got %d (ok=%t) want %d", id, ok, chainID)
	}

	expectedTimestamp, err := time.Parse(time.RFC3339, spec.GenesisTime)
	if err != nil {
		t.Fatalf("parse genesisTime: %v", err)
	}
	if !loaded.GenesisTimestamp().Equal(expectedTimestamp) {
		t.Fatalf("genesis timestamp mismatch: got %v want %v", loaded.GenesisTimestamp(), expectedTimestamp)
	}
}

func TestLoadGenesisSpecRejectsMissingGenesisTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	data, err := json.Marshal(GenesisSpec{Validators: []ValidatorSpec{{Address: "x", Power: 1}}})
	if err != nil {
		t.Fatalf("marshal spec: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	if _, err := LoadGenesisSpec(path); err == nil {
		t.Fatalf("expected an error for missing genesisTime")
	}
}

func TestLoadGenesisSpecRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	raw := []byte(`{"genesisTime":"2024-01-01T00:00:00Z","validators":[],"unknownField":true}`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	if _, err := LoadGenesisSpec(path); err == nil {
		t.Fatalf("expected an error for unknown field")
	}
}

func TestGenesisSpecRejectsDuplicateValidatorAddress(t *testing.T) {
	addr := crypto.MustNewAddress(crypto.NHBPrefix, bytes.Repeat([]byte{0x02}, 20)).String()
	spec := &GenesisSpec{
		GenesisTime: "2024-01-01T00:00:00Z",
		Validators: []ValidatorSpec{
			{Address: addr, Power: 1},
			{Address: addr, Power: 2},
		},
	}
	if err := spec.validate(); err == nil {
		t.Fatalf("expected an error for duplicate validator address")
	}
}

func TestResolveValidatorAutoPopulateFillsAddress(t *testing.T) {
	addr := crypto.MustNewAddress(crypto.NHBPrefix, bytes.Repeat([]byte{0x03}, 20)).String()
	spec := &GenesisSpec{
		GenesisTime: "2024-01-01T00:00:00Z",
		Validators: []ValidatorSpec{
			{Power: 5, AutoPopulateLocal: true},
		},
	}

	resolved, err := spec.ResolveValidatorAutoPopulate(&ValidatorAutoPopulateInfo{Address: addr})
	if err != nil {
		t.Fatalf("ResolveValidatorAutoPopulate: %v", err)
	}
	if !resolved {
		t.Fatalf("expected a validator to be resolved")
	}
	if spec.Validators[0].Address != addr {
		t.Fatalf("unexpected resolved address: %q", spec.Validators[0].Address)
	}
	if spec.Validators[0].AutoPopulateLocal {
		t.Fatalf("expected AutoPopulateLocal cleared after resolution")
	}
}

func TestResolveValidatorAutoPopulateNoopWithoutFlag(t *testing.T) {
	addr := crypto.MustNewAddress(crypto.NHBPrefix, bytes.Repeat([]byte{0x04}, 20)).String()
	spec := &GenesisSpec{
		GenesisTime: "2024-01-01T00:00:00Z",
		Validators:  []ValidatorSpec{{Address: addr, Power: 1}},
	}

	resolved, err := spec.ResolveValidatorAutoPopulate(&ValidatorAutoPopulateInfo{Address: addr})
	if err != nil {
		t.Fatalf("ResolveValidatorAutoPopulate: %v", err)
	}
	if resolved {
		t.Fatalf("expected no-op when no validator requests auto-population")
	}
}
