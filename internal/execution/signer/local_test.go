package signer

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
)

const testPrivateKey = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{EnvPrivateKey, EnvPrivateKeyFile, EnvKeystorePath, EnvKeystorePassword, EnvKeystorePasswordFile} {
		t.Setenv(key, "")
	}
}

func TestNewLocalSignerFromEnvSignsTransaction(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv(EnvPrivateKey, "0x"+testPrivateKey)

	s, err := NewLocalSignerFromEnv(KeySourceEnv)
	if err != nil {
		t.Fatalf("NewLocalSignerFromEnv failed: %v", err)
	}
	if s.Address() == (common.Address{}) {
		t.Fatal("expected non-zero signer address")
	}

	to := common.HexToAddress("0x4200000000000000000000000000000000000006")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(8453),
		Nonce:     3,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(1),
	})
	signed, err := s.SignTx(big.NewInt(8453), tx)
	if err != nil {
		t.Fatalf("SignTx failed: %v", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(8453)), signed)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if sender != s.Address() {
		t.Fatalf("recovered %s, want %s", sender.Hex(), s.Address().Hex())
	}
}

func TestNewLocalSignerFromKeyFile(t *testing.T) {
	clearKeyEnv(t)
	keyFile := filepath.Join(t.TempDir(), "key.hex")
	if err := os.WriteFile(keyFile, []byte(testPrivateKey+"\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	t.Setenv(EnvPrivateKeyFile, keyFile)

	if _, err := NewLocalSignerFromEnv(KeySourceFile); err != nil {
		t.Fatalf("expected key file to load: %v", err)
	}
}

func TestAutoSourceUsesDefaultKeyFile(t *testing.T) {
	clearKeyEnv(t)
	cfgDir := t.TempDir()
	keyDir := filepath.Join(cfgDir, "moltrades")
	if err := os.MkdirAll(keyDir, 0o755); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(keyDir, "key.hex"), []byte(testPrivateKey), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	t.Setenv("XDG_CONFIG_HOME", cfgDir)

	if _, err := NewLocalSignerFromEnv(KeySourceAuto); err != nil {
		t.Fatalf("expected auto source to use default key path: %v", err)
	}
}

func TestEnvSourceIgnoresKeyFile(t *testing.T) {
	clearKeyEnv(t)
	keyFile := filepath.Join(t.TempDir(), "key.hex")
	if err := os.WriteFile(keyFile, []byte(testPrivateKey), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	t.Setenv(EnvPrivateKeyFile, keyFile)

	_, err := NewLocalSignerFromEnv(KeySourceEnv)
	if !clierr.Is(err, clierr.CodeSigner) {
		t.Fatalf("expected signer error, got %v", err)
	}
}

func TestOverrideWinsOverSource(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv(EnvPrivateKeyFile, "/tmp/does-not-exist")

	cfg, err := ConfigFromEnv(KeySourceFile, testPrivateKey)
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if cfg.PrivateKeyFile != "" || cfg.PrivateKeyHex != testPrivateKey {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, err := NewLocalSigner(cfg); err != nil {
		t.Fatalf("NewLocalSigner failed: %v", err)
	}
}

func TestConfigFromEnvRejectsUnknownSource(t *testing.T) {
	clearKeyEnv(t)
	_, err := ConfigFromEnv("ledger", "")
	if !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestMissingKeyNamesEnvVariables(t *testing.T) {
	clearKeyEnv(t)
	_, err := NewLocalSignerFromEnv(KeySourceAuto)
	if !clierr.Is(err, clierr.CodeSigner) {
		t.Fatalf("expected signer error, got %v", err)
	}
	if !strings.Contains(err.Error(), EnvPrivateKey) {
		t.Fatalf("expected message to mention %s, got %s", EnvPrivateKey, err.Error())
	}
}

func TestKeystoreRequiresPassword(t *testing.T) {
	clearKeyEnv(t)
	_, err := NewLocalSigner(LocalSignerConfig{KeystorePath: filepath.Join(t.TempDir(), "ks.json")})
	if err == nil || !strings.Contains(err.Error(), "password") {
		t.Fatalf("expected password error, got %v", err)
	}
}
