package classifier

import (
	"math"

	"solana-wallet-tracker/internal/domain"
)

// Suppression reasons.
const (
	ReasonLaunchOnly = "launch_only"
	ReasonMinSpend   = "min_spend"
)

// Verdict is the outcome of Filter.
type Verdict struct {
	Send   bool
	Reason string // set when Send is false
}

// Filter applies the wallet's launch-only and minimum-spend settings.
// The minimum is exclusive: spending exactly the minimum is delivered.
func Filter(d *Decision, watch domain.WatchConfig) Verdict {
	if watch.LaunchOnly && !d.NewForWallet {
		return Verdict{Reason: ReasonLaunchOnly}
	}
	threshold := watch.MinNativeSpend
	if threshold > 0 && d.NativeDelta < 0 && math.Abs(d.NativeDelta) < threshold {
		return Verdict{Reason: ReasonMinSpend}
	}
	return Verdict{Send: true}
}
