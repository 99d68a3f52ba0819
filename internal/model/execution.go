package model

import "strings"

type ExecutionStatus string

const (
	ExecutionDone    ExecutionStatus = "DONE"
	ExecutionPending ExecutionStatus = "PENDING"
	ExecutionFailed  ExecutionStatus = "FAILED"
)

func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionDone || s == ExecutionFailed
}

// Status service answers.
const (
	BridgeStatusNotFound = "NOT_FOUND"
	BridgeStatusInvalid  = "INVALID"
	BridgeStatusPending  = "PENDING"
	BridgeStatusDone     = "DONE"
	BridgeStatusFailed   = "FAILED"
	BridgeStatusTimeout  = "TIMEOUT"
)

const (
	SubstatusCompleted = "COMPLETED"
	SubstatusPartial   = "PARTIAL"
	SubstatusRefunded  = "REFUNDED"
)

type ExplorerLink struct {
	ChainID int64  `json:"chain_id"`
	TxHash  string `json:"tx_hash"`
	URL     string `json:"url"`
}

type ExecutionResult struct {
	Status                ExecutionStatus `json:"status"`
	SourceChain           int64           `json:"source_chain"`
	DestChain             int64           `json:"dest_chain"`
	Bridge                string          `json:"bridge,omitempty"`
	ApprovalTxHash        string          `json:"approval_tx_hash,omitempty"`
	SourceTxHash          string          `json:"source_tx_hash,omitempty"`
	DestinationTxHash     string          `json:"destination_tx_hash,omitempty"`
	ContractCallSucceeded bool            `json:"contract_call_succeeded"`
	ExplorerLinks         []ExplorerLink  `json:"explorer_links,omitempty"`
	DurationSeconds       float64         `json:"duration_seconds"`
	Error                 string          `json:"error,omitempty"`
}

// StatusKey identifies a bridge leg at the status service. Polling with the
// same key is idempotent, so a timed out poll can be resumed later.
type StatusKey struct {
	TxHash    string `json:"tx_hash"`
	Bridge    string `json:"bridge"`
	FromChain int64  `json:"from_chain"`
	ToChain   int64  `json:"to_chain"`
}

func (r ExecutionResult) StatusKey() StatusKey {
	return StatusKey{TxHash: r.SourceTxHash, Bridge: r.Bridge, FromChain: r.SourceChain, ToChain: r.DestChain}
}

type TransferInfo struct {
	TxHash  string `json:"tx_hash,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Token   Token  `json:"token"`
	ChainID int64  `json:"chain_id,omitempty"`
}

type StatusResponse struct {
	Status           string       `json:"status"`
	Substatus        string       `json:"substatus,omitempty"`
	SubstatusMessage string       `json:"substatus_message,omitempty"`
	Tool             string       `json:"tool,omitempty"`
	Sending          TransferInfo `json:"sending"`
	Receiving        TransferInfo `json:"receiving"`
}

type BridgeOutcome struct {
	Status            string  `json:"status"`
	Substatus         string  `json:"substatus,omitempty"`
	DestinationTxHash string  `json:"destination_tx_hash,omitempty"`
	Cycles            int     `json:"cycles"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
}

// ContractCallSucceeded reports whether the destination call ran. PARTIAL and
// REFUNDED mean the bridge delivered a fallback token instead.
func (o BridgeOutcome) ContractCallSucceeded() bool {
	if o.Status != BridgeStatusDone {
		return false
	}
	switch strings.ToUpper(o.Substatus) {
	case SubstatusPartial, SubstatusRefunded:
		return false
	}
	return true
}
