package stub

import (
	"context"
	"sync"

	"launch-watch/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
// Scripted errors are consumed one per call before the stored value is returned.
type RPCClient struct {
	mu sync.Mutex

	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo
	Accounts     map[string]*solana.AccountInfo

	// SignaturesErr, when set, is returned by every GetSignaturesForAddress call.
	SignaturesErr error

	txErrors      map[string][]error
	accountErrors map[string][]error

	txCalls       map[string]int
	accountCalls  map[string]int
	signatureOpts []solana.SignaturesOpts
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions:  make(map[string]*solana.Transaction),
		Signatures:    make(map[string][]solana.SignatureInfo),
		Accounts:      make(map[string]*solana.AccountInfo),
		txErrors:      make(map[string][]error),
		accountErrors: make(map[string][]error),
		txCalls:       make(map[string]int),
		accountCalls:  make(map[string]int),
	}
}

// GetTransaction returns the stored transaction, or nil when unknown.
func (c *RPCClient) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.txCalls[signature]++
	if errs := c.txErrors[signature]; len(errs) > 0 {
		c.txErrors[signature] = errs[1:]
		return nil, errs[0]
	}
	return c.Transactions[signature], nil
}

// GetSignaturesForAddress returns stored signatures, honoring Limit.
func (c *RPCClient) GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if opts != nil {
		c.signatureOpts = append(c.signatureOpts, *opts)
	} else {
		c.signatureOpts = append(c.signatureOpts, solana.SignaturesOpts{})
	}
	if c.SignaturesErr != nil {
		return nil, c.SignaturesErr
	}

	sigs := c.Signatures[address]
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		sigs = sigs[:opts.Limit]
	}
	out := make([]solana.SignatureInfo, len(sigs))
	copy(out, sigs)
	return out, nil
}

// GetAccountInfo returns the stored account, or nil when unknown.
func (c *RPCClient) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.accountCalls[pubkey]++
	if errs := c.accountErrors[pubkey]; len(errs) > 0 {
		c.accountErrors[pubkey] = errs[1:]
		return nil, errs[0]
	}
	return c.Accounts[pubkey], nil
}

// AddTransaction adds a transaction keyed by its first signature.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature()] = tx
}

// AddSignatures sets the newest-first signature list for an address.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = sigs
}

// AddAccount stores account info for a public key.
func (c *RPCClient) AddAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = info
}

// FailTransaction queues errors returned by the next GetTransaction calls for signature.
func (c *RPCClient) FailTransaction(signature string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txErrors[signature] = append(c.txErrors[signature], errs...)
}

// FailAccount queues errors returned by the next GetAccountInfo calls for pubkey.
func (c *RPCClient) FailAccount(pubkey string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountErrors[pubkey] = append(c.accountErrors[pubkey], errs...)
}

// TransactionCalls returns how many times GetTransaction was called for signature.
func (c *RPCClient) TransactionCalls(signature string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txCalls[signature]
}

// TotalTransactionCalls returns the number of GetTransaction calls across all signatures.
func (c *RPCClient) TotalTransactionCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.txCalls {
		n += v
	}
	return n
}

// AccountCalls returns how many times GetAccountInfo was called for pubkey.
func (c *RPCClient) AccountCalls(pubkey string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountCalls[pubkey]
}

// SignatureRequests returns the options of every GetSignaturesForAddress call.
func (c *RPCClient) SignatureRequests() []solana.SignaturesOpts {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]solana.SignaturesOpts, len(c.signatureOpts))
	copy(out, c.signatureOpts)
	return out
}

var _ solana.RPCClient = (*RPCClient)(nil)
