// Package classifier turns a wallet's balance changes into a notification
// decision and renders its text.
package classifier

import (
	"fmt"
	"math"
	"sort"

	"solana-wallet-tracker/internal/delta"
	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/solana"
)

const (
	nativeEpsilon = 1e-12 // below this the native change is treated as none
	soldEpsilon   = 1e-9  // native spend threshold for "sold SOL"
)

// Decision is the classified activity of one owner in one transaction.
type Decision struct {
	Owner        string
	Signature    string
	Slot         int64
	Category     domain.Category
	NewForWallet bool
	TargetMint   string // empty when nothing was received
	BoughtMint   string
	BoughtAmount float64
	Sold         string // rendered sold description, empty if none
	NativeDelta  float64
}

// Classify inspects owner's balance changes in tx. It returns nil when the
// transaction holds nothing of interest for the wallet.
func Classify(owner string, tx *solana.Transaction, watch domain.WatchConfig) *Decision {
	d := delta.Compute(tx, owner)

	var (
		boughtMint string
		boughtAmt  float64
		soldMint   string
		soldAmt    float64
	)
	for _, mint := range sortedMints(d.TokenDeltas) {
		v := d.TokenDeltas[mint]
		switch {
		case v > 0 && v > boughtAmt:
			boughtMint, boughtAmt = mint, v
		case v < 0 && -v > soldAmt:
			soldMint, soldAmt = mint, -v
		}
	}

	if boughtMint == "" && math.Abs(d.NativeDelta) < nativeEpsilon && len(d.NewlyReceived) == 0 {
		return nil
	}

	dec := &Decision{
		Owner:        owner,
		Slot:         tx.Slot,
		Signature:    tx.Signature,
		BoughtMint:   boughtMint,
		BoughtAmount: boughtAmt,
		NativeDelta:  d.NativeDelta,
	}

	switch {
	case d.NativeDelta < -soldEpsilon:
		dec.Sold = fmt.Sprintf("%.6f SOL", math.Abs(d.NativeDelta))
	case soldMint != "":
		dec.Sold = fmt.Sprintf("%.6f (mint: %s)", soldAmt, soldMint)
	}

	dec.TargetMint = boughtMint
	if dec.TargetMint == "" && len(d.NewlyReceived) > 0 {
		received := make([]string, 0, len(d.NewlyReceived))
		for mint := range d.NewlyReceived {
			received = append(received, mint)
		}
		sort.Strings(received)
		dec.TargetMint = received[0]
	}

	dec.NewForWallet = dec.TargetMint != "" && !watch.HasSeen(dec.TargetMint)
	dec.Category = domain.CategorySwap
	if dec.NewForWallet {
		dec.Category = domain.CategoryNewPool
	}
	return dec
}

// sortedMints gives a deterministic tie-break for equal deltas.
func sortedMints(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
