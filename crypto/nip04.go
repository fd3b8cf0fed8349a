package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// NIP-04 payload encryption: AES-256-CBC keyed by the raw X coordinate
// of the ECDH point, ciphertext shipped as
// base64(ct) + "?iv=" + base64(iv).

const ivMarker = "?iv="

var ErrBadCiphertext = errors.New("crypto: bad ciphertext")

// IsEncrypted reports whether content looks like a NIP-04 payload.
func IsEncrypted(content string) bool {
	return strings.Contains(content, ivMarker)
}

// Encrypt seals plaintext for peerPub (hex x-only key). Encrypting to
// one's own public key is the usual self-addressed case.
func (k *Keys) Encrypt(peerPub, plaintext string) (string, error) {
	key, err := k.sharedSecret(peerPub)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	return base64.StdEncoding.EncodeToString(ct) + ivMarker +
		base64.StdEncoding.EncodeToString(iv), nil
}

// Decrypt opens a NIP-04 payload produced by peerPub's counterparty.
func (k *Keys) Decrypt(peerPub, content string) (string, error) {
	ctb64, ivb64, found := strings.Cut(content, ivMarker)
	if !found {
		return "", ErrBadCiphertext
	}
	ct, err := base64.StdEncoding.DecodeString(ctb64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadCiphertext, err)
	}
	iv, err := base64.StdEncoding.DecodeString(ivb64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadCiphertext, err)
	}
	if len(iv) != aes.BlockSize || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", ErrBadCiphertext
	}
	key, err := k.sharedSecret(peerPub)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)
	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// sharedSecret is the X coordinate of sk*P, P lifted from the x-only
// peer key with even Y.
func (k *Keys) sharedSecret(peerPub string) ([]byte, error) {
	raw, err := hex.DecodeString("02" + peerPub)
	if err != nil {
		return nil, ErrBadKey
	}
	pk, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	var point, result secp256k1.JacobianPoint
	pk.AsJacobian(&point)
	secp256k1.ScalarMultNonConst(&k.sk.Key, &point, &result)
	result.ToAffine()
	shared := result.X.Bytes()
	return shared[:], nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+pad)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrBadCiphertext
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, ErrBadCiphertext
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, ErrBadCiphertext
		}
	}
	return data[:len(data)-pad], nil
}
