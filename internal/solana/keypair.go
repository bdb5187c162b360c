package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"filippo.io/edwards25519"
	solana "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrInvalidKeypair is returned when keypair material cannot be used for signing.
var ErrInvalidKeypair = errors.New("invalid keypair")

// LoadKeypair reads a signing keypair from path.
// Accepts the solana-keygen JSON byte array or a base58 encoded 64-byte secret.
func LoadKeypair(path string) (solana.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair %s: %w", path, err)
	}
	key, err := ParseKeypair(raw)
	if err != nil {
		return nil, fmt.Errorf("parse keypair %s: %w", path, err)
	}
	return key, nil
}

// ParseKeypair decodes and validates keypair bytes.
func ParseKeypair(raw []byte) (solana.PrivateKey, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKeypair)
	}

	var secret []byte
	if strings.HasPrefix(text, "[") {
		var values []int
		if err := json.Unmarshal([]byte(text), &values); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidKeypair, err)
		}
		secret = make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: byte %d out of range: %d", ErrInvalidKeypair, i, v)
			}
			secret[i] = byte(v)
		}
	} else {
		decoded, err := base58.Decode(text)
		if err != nil {
			return nil, fmt.Errorf("%w: decode base58: %v", ErrInvalidKeypair, err)
		}
		secret = decoded
	}

	if len(secret) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeypair, ed25519.PrivateKeySize, len(secret))
	}

	public := secret[ed25519.SeedSize:]
	if !isOnCurve(public) {
		return nil, fmt.Errorf("%w: public key is not an ed25519 point", ErrInvalidKeypair)
	}

	derived := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
	if !bytes.Equal(derived.Public().(ed25519.PublicKey), public) {
		return nil, fmt.Errorf("%w: public key does not match secret", ErrInvalidKeypair)
	}

	return solana.PrivateKey(secret), nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
