package solana

import "context"

// RPCClient defines Solana RPC HTTP interface.
type RPCClient interface {
	// GetTransaction retrieves a parsed transaction by signature.
	// Returns nil, nil if the node does not know the transaction.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetAccountInfo retrieves raw account data. Returns nil if account not found.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)
}
