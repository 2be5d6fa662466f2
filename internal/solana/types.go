package solana

import (
	"encoding/json"
	"math"
	"strconv"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Transaction represents a Solana transaction fetched with jsonParsed encoding.
type Transaction struct {
	Slot      int64
	Signature string // primary signature
	BlockTime int64  // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction status and balance snapshots.
type TransactionMeta struct {
	Err               interface{}
	LogMessages       []string
	PreBalances       []uint64 // lamports, aligned with AccountKeys
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}

// TokenBalance is a token account balance entry from transaction meta.
type TokenBalance struct {
	AccountIndex  int           `json:"accountIndex"`
	Mint          string        `json:"mint"`
	Owner         string        `json:"owner"`
	UITokenAmount UITokenAmount `json:"uiTokenAmount"`
}

// UITokenAmount is a decimal-scaled token amount.
type UITokenAmount struct {
	UIAmount *float64 `json:"uiAmount"`
	Decimals int      `json:"decimals"`
	Amount   string   `json:"amount"`
}

// Float returns the UI amount, falling back to amount / 10^decimals when the
// node omitted uiAmount. Unparseable amounts yield 0.
func (a UITokenAmount) Float() float64 {
	if a.UIAmount != nil {
		return *a.UIAmount
	}
	if a.Amount == "" {
		return 0
	}
	raw, err := strconv.ParseFloat(a.Amount, 64)
	if err != nil {
		return 0
	}
	return raw / math.Pow10(a.Decimals)
}

// accountKey decodes an account key in either legacy string form or the
// jsonParsed {"pubkey": ...} object form.
type accountKey string

func (k *accountKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = accountKey(s)
		return nil
	}
	var obj struct {
		Pubkey string `json:"pubkey"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*k = accountKey(obj.Pubkey)
	return nil
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}
