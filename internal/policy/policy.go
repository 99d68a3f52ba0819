package policy

import (
	"fmt"
	"strings"

	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
)

// signingCommands broadcast transactions with a local key.
var signingCommands = map[string]struct{}{
	"execute":    {},
	"solana run": {},
}

// CheckCommandAllowed enforces the --enable-commands allowlist. An entry
// allows the command path itself and every subcommand below it.
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	path := normalize(commandPath)
	for _, allowed := range allowlist {
		entry := normalize(allowed)
		if entry == "" {
			continue
		}
		if path == entry || strings.HasPrefix(path, entry+" ") {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, fmt.Sprintf("command %q blocked by --enable-commands policy", path))
}

func IsSigning(commandPath string) bool {
	_, ok := signingCommands[normalize(commandPath)]
	return ok
}

// CheckConfirmed refuses to run a signing command without explicit consent.
func CheckConfirmed(commandPath string, yes bool) error {
	if yes || !IsSigning(commandPath) {
		return nil
	}
	return clierr.New(clierr.CodeUsage, fmt.Sprintf("%s signs and broadcasts transactions; pass --yes to confirm", normalize(commandPath)))
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
