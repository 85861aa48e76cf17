package genesis

import (
	"encoding/hex"
	"testing"

	"tendercore/crypto"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestInitialValidatorsConvertsSpec(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	pub := ethcrypto.FromECDSAPub(key.PubKey().PublicKey)

	spec := &GenesisSpec{
		Validators: []ValidatorSpec{
			{Address: addr.String(), Power: 7, PubKey: hex.EncodeToString(pub)},
		},
	}

	validators, err := spec.InitialValidators()
	if err != nil {
		t.Fatalf("initial validators: %v", err)
	}
	if len(validators) != 1 {
		t.Fatalf("expected one validator, got %d", len(validators))
	}
	if validators[0].Weight != 7 {
		t.Fatalf("unexpected weight: %d", validators[0].Weight)
	}
	if string(validators[0].Address[:]) != string(addr.Bytes()) {
		t.Fatalf("unexpected address bytes")
	}
}

func TestInitialValidatorsRejectsZeroPower(t *testing.T) {
	spec := &GenesisSpec{Validators: []ValidatorSpec{{Address: "x", Power: 0}}}
	if _, err := spec.InitialValidators(); err == nil {
		t.Fatalf("expected an error for zero power")
	}
}
