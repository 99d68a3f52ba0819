package solana

import (
	"context"
	"strings"

	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type RPC struct {
	client *rpc.Client
}

func NewRPC(url string) (*RPC, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, clierr.New(clierr.CodeUsage, "solana rpc url is required")
	}
	return &RPC{client: rpc.New(url)}, nil
}

func (r *RPC) Close() {
	if r != nil && r.client != nil {
		_ = r.client.Close()
	}
}

// SendTransaction submits a signed transaction and returns its signature.
func (r *RPC) SendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	return r.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
}

// SignatureStatus returns nil when the cluster has not seen the signature yet.
func (r *RPC) SignatureStatus(ctx context.Context, sig solanago.Signature) (*rpc.SignatureStatusesResult, error) {
	out, err := r.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "query solana signature status", err)
	}
	if out == nil || len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

func statusFailed(s *rpc.SignatureStatusesResult) bool {
	return s.Err != nil
}

func statusConfirmed(s *rpc.SignatureStatusesResult) bool {
	return s.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || s.ConfirmationStatus == rpc.ConfirmationStatusFinalized
}
