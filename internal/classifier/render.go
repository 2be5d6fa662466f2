package classifier

import (
	"fmt"
	"strings"

	"solana-wallet-tracker/internal/domain"
)

const (
	titleSwap    = "⚡ <b>Swap detected</b>"
	titleNewPool = "🚀 <b>New pool detected</b>"
)

// Render builds the HTML notification text for d. meta describes the
// target mint and may be empty.
func Render(d *Decision, meta domain.TokenMetadata) string {
	title := titleSwap
	if d.NewForWallet {
		title = titleNewPool
	}

	lines := []string{
		title,
		fmt.Sprintf("Wallet: <code>%s</code>", d.Owner),
	}

	suffix := metaSuffix(d, meta)
	switch {
	case d.BoughtMint != "" && d.Sold != "":
		lines = append(lines, fmt.Sprintf(
			"SWAP | Bought: <code>%.6f</code> (mint/CA: <code>%s</code>) | Sold: <code>%s</code>%s",
			d.BoughtAmount, d.BoughtMint, d.Sold, suffix))
	case d.BoughtMint != "":
		lines = append(lines, fmt.Sprintf(
			"SWAP | Received: <code>%.6f</code> (mint/CA: <code>%s</code>)%s",
			d.BoughtAmount, d.BoughtMint, suffix))
	case d.NewForWallet && d.TargetMint != "":
		lines = append(lines, fmt.Sprintf(
			"NEW | Received: (mint/CA: <code>%s</code>)%s",
			d.TargetMint, suffix))
	}

	if d.Signature != "" {
		lines = append(lines, domain.ExplorerTxURL(d.Signature))
	}
	return strings.Join(lines, "\n")
}

// metaSuffix renders " | $SYM — Name" for the parts that are known.
func metaSuffix(d *Decision, meta domain.TokenMetadata) string {
	if d.TargetMint == "" {
		return ""
	}
	var parts []string
	if meta.Symbol != "" {
		parts = append(parts, "$"+meta.Symbol)
	}
	if meta.Name != "" {
		parts = append(parts, meta.Name)
	}
	if len(parts) == 0 {
		return ""
	}
	return " | " + strings.Join(parts, " — ")
}

// ImageURL returns the logo to attach, or "" when there is none.
func ImageURL(d *Decision, meta domain.TokenMetadata) string {
	if d.TargetMint == "" {
		return ""
	}
	return meta.LogoURL
}
