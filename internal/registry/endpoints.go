package registry

const (
	LiFiBaseURL = "https://li.quest/v1"

	// DefaultGenericRPCTemplate builds an RPC URL for chains that have no static
	// definition. The %d verb receives the chain id.
	DefaultGenericRPCTemplate = "https://%d.rpc.thirdweb.com"

	SolanaMainnetRPCURL = "https://api.mainnet-beta.solana.com"
)
