package id

import (
	"regexp"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/google/uuid"
)

var (
	evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	evmTxHashPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	base58Pattern     = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

const executionIDPrefix = "exec_"

// NewExecutionID returns a journal id of the form exec_<uuid>.
func NewExecutionID() string {
	return executionIDPrefix + uuid.NewString()
}

func IsExecutionID(v string) bool {
	raw, ok := strings.CutPrefix(strings.TrimSpace(v), executionIDPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(raw)
	return err == nil
}

func IsEVMAddress(v string) bool {
	return evmAddressPattern.MatchString(strings.TrimSpace(v))
}

func IsEVMTxHash(v string) bool {
	return evmTxHashPattern.MatchString(strings.TrimSpace(v))
}

// IsSolanaAddress reports whether v is a base58 string decoding to a 32 byte
// public key.
func IsSolanaAddress(v string) bool {
	v = strings.TrimSpace(v)
	if !base58Pattern.MatchString(v) {
		return false
	}
	return len(base58.Decode(v)) == 32
}
