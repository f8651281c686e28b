package solana

import "context"

// RPCClient defines the subset of the Solana JSON-RPC interface used by the watcher.
type RPCClient interface {
	// GetSignaturesForAddress returns signatures for an address, newest first.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetTransaction retrieves a confirmed transaction by signature.
	// Returns nil, nil if the node does not know the transaction.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetAccountInfo retrieves raw account data. Returns nil, nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}

// Transaction represents a Solana transaction fetched with json encoding.
type Transaction struct {
	Slot       int64
	BlockTime  *int64 // Unix timestamp (seconds), nullable
	Signatures []string
	Meta       *TransactionMeta
	Message    *TransactionMessage
}

// Signature returns the canonical transaction id (first signature), or "".
func (t *Transaction) Signature() string {
	if t == nil || len(t.Signatures) == 0 {
		return ""
	}
	return t.Signatures[0]
}

// BlockTimeOrZero returns the block time in seconds, or 0 when unknown.
func (t *Transaction) BlockTimeOrZero() int64 {
	if t == nil || t.BlockTime == nil {
		return 0
	}
	return *t.BlockTime
}

// TransactionMeta contains transaction status metadata.
type TransactionMeta struct {
	Err          interface{}
	Fee          uint64
	PreBalances  []uint64
	PostBalances []uint64
	LogMessages  []string
}

// TransactionMessage contains the decoded transaction message.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []Instruction
}

// Instruction is a compiled instruction. Data is base58 text as returned by json encoding.
type Instruction struct {
	ProgramIDIndex int
	Accounts       []int
	Data           string
}

// ProgramID resolves the instruction's program through the message account keys.
func (m *TransactionMessage) ProgramID(ix Instruction) string {
	if m == nil || ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(m.AccountKeys) {
		return ""
	}
	return m.AccountKeys[ix.ProgramIDIndex]
}
