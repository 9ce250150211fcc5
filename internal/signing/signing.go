// Package signing holds the two venue Signer implementations. Per
// SPEC_FULL.md §1/§9, the low-level signing of venue-specific order
// payloads is an external collaborator behind a pure-function boundary:
// ECDSA over the Starknet curve for venue A, Ed25519 over canonicalized
// JSON for venue B. This package defines that boundary's concrete shape;
// the actual cryptographic implementation is expected to be supplied by a
// sidecar process or a linked native library (SPEC_FULL.md §9), neither of
// which is part of this module's scope.
package signing

import (
	"errors"
)

// ErrNotImplemented marks the signing boundary as unimplemented in this
// module — wiring a real signer (sidecar call, cgo binding) is left to the
// deployment, per SPEC_FULL.md §1.
var ErrNotImplemented = errors.New("signing: no signer backend configured")

// StarkSigner implements the venue-A (extended) Signer interface.
type StarkSigner struct {
	privateKey string
	publicKey  string
	vaultID    string
}

// NewStarkSigner builds a StarkSigner from the credentials resolved by
// config.LoadCredentialsFromEnv. It does not itself perform any signing;
// Sign returns ErrNotImplemented until a backend is wired in.
func NewStarkSigner(privateKey, publicKey, vaultID string) *StarkSigner {
	return &StarkSigner{privateKey: privateKey, publicKey: publicKey, vaultID: vaultID}
}

// Sign satisfies extended.Signer.
func (s *StarkSigner) Sign(orderFields map[string]interface{}) (signature string, extra map[string]interface{}, err error) {
	return "", nil, ErrNotImplemented
}

// Ed25519Signer implements the venue-B (pacifica) Signer interface.
type Ed25519Signer struct {
	privateKey string
}

// NewEd25519Signer builds an Ed25519Signer from the credential resolved by
// config.LoadCredentialsFromEnv.
func NewEd25519Signer(privateKey string) *Ed25519Signer {
	return &Ed25519Signer{privateKey: privateKey}
}

// Sign satisfies pacifica.Signer.
func (s *Ed25519Signer) Sign(header, data map[string]interface{}) (signature string, err error) {
	return "", ErrNotImplemented
}
