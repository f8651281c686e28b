package discovery

import (
	"fmt"

	"launch-watch/internal/solana"
)

// launchTx builds a transaction that satisfies DefaultProfile.
func launchTx(sig string, blockTime int64) *solana.Transaction {
	keys := make([]string, 21)
	for i := range keys {
		keys[i] = fmt.Sprintf("acct%02d", i)
	}
	keys[5] = RaydiumAMMV4

	balances := make([]uint64, 23)
	balances[0] = 1_700_000_000_000

	bt := blockTime
	return &solana.Transaction{
		Slot:       blockTime,
		BlockTime:  &bt,
		Signatures: []string{sig},
		Meta:       &solana.TransactionMeta{PostBalances: balances},
		Message: &solana.TransactionMessage{
			AccountKeys: keys,
			Instructions: []solana.Instruction{
				{ProgramIDIndex: 0, Data: "11111"},
				{ProgramIDIndex: 5, Accounts: []int{1, 2}, Data: "3mimF1vf45ioAbCdEf"},
			},
		},
	}
}
