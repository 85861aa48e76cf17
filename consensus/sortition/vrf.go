package sortition

import (
	"crypto/rand"
	"fmt"

	coniksvrf "github.com/coniks-sys/coniks-go/crypto/vrf"
)

// Signer wraps a VRF keypair. Nothing in the example pack implements real
// VRF cryptography, so this wraps the one ecosystem library added for it
// (see DESIGN.md); everything outside this file deals only in the Prove/
// Verify shapes below, so a different VRF suite could be swapped in here
// without touching the sortition math.
type Signer struct {
	public  coniksvrf.PublicKey
	private coniksvrf.PrivateKey
}

// GenerateSigner creates a fresh VRF keypair.
func GenerateSigner() (*Signer, error) {
	pub, priv, err := coniksvrf.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("sortition: generate vrf key: %w", err)
	}
	return &Signer{public: pub, private: priv}, nil
}

// PublicKey returns the raw public key bytes, suitable for distribution via
// the validator registry.
func (s *Signer) PublicKey() []byte {
	return append([]byte(nil), []byte(s.public)...)
}

// prove computes vrf_hash <- VRF_prove(secret, seed) and returns the
// 32-byte output alongside its proof (spec.md §4.3 step 1).
func (s *Signer) prove(seed []byte) (hash [32]byte, proof []byte) {
	return s.private.Prove(seed)
}

// verifyHash checks the claimed vrf_hash against the proof for seed under
// pubKey, failing with an error if the proof does not validate. It does not
// recompute the hash from the proof.
func verifyHash(pubKey []byte, seed, proof []byte, claimed [32]byte) error {
	pub := coniksvrf.PublicKey(pubKey)
	if !pub.Verify(seed, claimed[:], proof) {
		return ErrInvalidProof
	}
	return nil
}
