// Package crypto holds the session identity: secp256k1 keys, BIP-340
// event signatures and NIP-04 payload encryption.
package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"

	"github.com/kasugamirai/nostr-crdt/protocol"
)

var (
	ErrBadKey       = errors.New("crypto: malformed key")
	ErrBadSignature = errors.New("crypto: signature check failed")
)

// Keys is a session keypair. The public key is the 32-byte x-only form,
// hex-encoded, as peers expect it in event envelopes.
type Keys struct {
	sk *secp256k1.PrivateKey
}

func Generate() (*Keys, error) {
	sk, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &Keys{sk: sk}, nil
}

func FromHex(secret string) (*Keys, error) {
	raw, err := hex.DecodeString(secret)
	if err != nil || len(raw) != 32 {
		return nil, ErrBadKey
	}
	return &Keys{sk: secp256k1.PrivKeyFromBytes(raw)}, nil
}

func (k *Keys) SecretHex() string {
	return hex.EncodeToString(k.sk.Serialize())
}

func (k *Keys) PublicKey() string {
	return hex.EncodeToString(k.sk.PubKey().SerializeCompressed()[1:])
}

// SignEvent stamps the event with this identity: fills in the pubkey,
// computes the canonical id and schnorr-signs it.
func (k *Keys) SignEvent(ev *protocol.Event) error {
	ev.PubKey = k.PublicKey()
	id, err := ev.ComputeID()
	if err != nil {
		return err
	}
	ev.ID = id
	digest, err := hex.DecodeString(id)
	if err != nil {
		return err
	}
	sig, err := schnorr.Sign(k.sk, digest)
	if err != nil {
		return err
	}
	ev.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// VerifyEvent checks the id and signature of a received event.
func VerifyEvent(ev *protocol.Event) error {
	if !ev.CheckID() {
		return fmt.Errorf("%w: id mismatch", ErrBadSignature)
	}
	pkraw, err := hex.DecodeString(ev.PubKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	pk, err := schnorr.ParsePubKey(pkraw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	sigraw, err := hex.DecodeString(ev.Sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	sig, err := schnorr.ParseSignature(sigraw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	digest, err := hex.DecodeString(ev.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !sig.Verify(digest, pk) {
		return ErrBadSignature
	}
	return nil
}
