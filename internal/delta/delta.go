// Package delta computes a wallet's balance changes within one transaction.
package delta

import (
	"solana-wallet-tracker/internal/solana"
)

// Result holds the balance changes of one owner in one transaction.
type Result struct {
	TokenDeltas   map[string]float64  // mint -> signed UI amount change
	NativeDelta   float64             // SOL
	NewlyReceived map[string]struct{} // mints whose balance went from none/zero to positive
}

type balanceKey struct {
	index int
	mint  string
}

// Compute returns owner's balance changes in tx. Amounts are not rounded.
func Compute(tx *solana.Transaction, owner string) Result {
	res := Result{
		TokenDeltas:   make(map[string]float64),
		NewlyReceived: make(map[string]struct{}),
	}
	if tx == nil || tx.Meta == nil {
		return res
	}
	meta := tx.Meta

	if idx := ownerIndex(tx.Message, owner); idx >= 0 && idx < len(meta.PreBalances) && idx < len(meta.PostBalances) {
		lamports := int64(meta.PostBalances[idx]) - int64(meta.PreBalances[idx])
		res.NativeDelta = float64(lamports) / solana.LamportsPerSOL
	}

	pre := indexBalances(meta.PreTokenBalances)
	post := indexBalances(meta.PostTokenBalances)

	keys := make(map[balanceKey]struct{}, len(pre)+len(post))
	for k := range pre {
		keys[k] = struct{}{}
	}
	for k := range post {
		keys[k] = struct{}{}
	}

	for k := range keys {
		preBal, hasPre := pre[k]
		postBal, hasPost := post[k]
		if !(hasPre && preBal.Owner == owner) && !(hasPost && postBal.Owner == owner) {
			continue
		}

		var preAmt, postAmt float64
		if hasPre {
			preAmt = preBal.UITokenAmount.Float()
		}
		if hasPost {
			postAmt = postBal.UITokenAmount.Float()
		}

		if d := postAmt - preAmt; d != 0 {
			res.TokenDeltas[k.mint] += d
		}
		if postAmt > 0 && (!hasPre || preAmt <= 0) {
			res.NewlyReceived[k.mint] = struct{}{}
		}
	}

	return res
}

// ownerIndex returns the position of owner in the account keys, or -1.
func ownerIndex(msg *solana.TransactionMessage, owner string) int {
	if msg == nil {
		return -1
	}
	for i, k := range msg.AccountKeys {
		if k == owner {
			return i
		}
	}
	return -1
}

func indexBalances(list []solana.TokenBalance) map[balanceKey]solana.TokenBalance {
	m := make(map[balanceKey]solana.TokenBalance, len(list))
	for _, b := range list {
		m[balanceKey{index: b.AccountIndex, mint: b.Mint}] = b
	}
	return m
}
