package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	EnvPrivateKey  = "MOLTRADES_SOLANA_PRIVATE_KEY"
	EnvKeypairFile = "MOLTRADES_SOLANA_KEYPAIR_FILE"
)

type Keypair struct {
	private solanago.PrivateKey
}

// ParseKeypair accepts a base58 secret (64-byte keypair or 32-byte seed) or a
// solana-keygen JSON byte array.
func ParseKeypair(raw string) (*Keypair, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, clierr.New(clierr.CodeSigner, "empty solana secret key")
	}
	if strings.HasPrefix(raw, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(raw), &ints); err != nil {
			return nil, clierr.Wrap(clierr.CodeSigner, "parse solana keypair json", err)
		}
		secret := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, clierr.New(clierr.CodeSigner, fmt.Sprintf("solana keypair byte %d out of range", i))
			}
			secret[i] = byte(v)
		}
		return keypairFromSecret(secret)
	}
	if seed := base58.Decode(raw); len(seed) == ed25519.SeedSize {
		return keypairFromSecret(seed)
	}
	key, err := solanago.PrivateKeyFromBase58(raw)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "decode solana secret key", err)
	}
	return keypairFromSecret(key)
}

func keypairFromSecret(secret []byte) (*Keypair, error) {
	switch len(secret) {
	case ed25519.PrivateKeySize:
		derived := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
		if !derived.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(secret[ed25519.SeedSize:])) {
			return nil, clierr.New(clierr.CodeSigner, "solana keypair public key does not match secret")
		}
		return &Keypair{private: solanago.PrivateKey(derived)}, nil
	case ed25519.SeedSize:
		return &Keypair{private: solanago.PrivateKey(ed25519.NewKeyFromSeed(secret))}, nil
	}
	return nil, clierr.New(clierr.CodeSigner, fmt.Sprintf("solana secret must be 32 or 64 bytes, got %d", len(secret)))
}

// LoadKeypairFile reads a solana-keygen JSON file.
func LoadKeypairFile(path string) (*Keypair, error) {
	key, err := solanago.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "read solana keypair file", err)
	}
	return keypairFromSecret(key)
}

func KeypairFromEnv() (*Keypair, error) {
	if v := strings.TrimSpace(os.Getenv(EnvPrivateKey)); v != "" {
		return ParseKeypair(v)
	}
	if path := strings.TrimSpace(os.Getenv(EnvKeypairFile)); path != "" {
		return LoadKeypairFile(path)
	}
	return nil, clierr.New(clierr.CodeSigner, fmt.Sprintf("missing solana key: set %s or %s", EnvPrivateKey, EnvKeypairFile))
}

func (k *Keypair) PublicKey() solanago.PublicKey {
	return k.private.PublicKey()
}

// Address is the base58 public key.
func (k *Keypair) Address() string {
	return k.PublicKey().String()
}

func (k *Keypair) privateKey(key solanago.PublicKey) *solanago.PrivateKey {
	if key.Equals(k.PublicKey()) {
		return &k.private
	}
	return nil
}
