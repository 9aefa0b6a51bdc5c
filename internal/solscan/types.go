package solscan

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// LamportsPerSOL is the number of lamports in one SOL
const LamportsPerSOL = 1_000_000_000

// transferKeys lists every field the explorer has been seen to put transfer
// records under. The shape differs by transaction type.
var transferKeys = []string{"nativeTransfers", "solTransfers", "transfers", "tokenTransfers", "sol_transfer"}

// TxSummary is one entry of the account transaction list
type TxSummary struct {
	TxHash    string `json:"txHash"`
	Signature string `json:"signature"`
	BlockTime int64  `json:"blockTime"`
}

// ID returns the transaction signature
func (t TxSummary) ID() string {
	if t.TxHash != "" {
		return t.TxHash
	}
	return t.Signature
}

// TxDetail is a transaction detail document. Fields are read leniently:
// anything missing or of an unexpected type counts as absent.
type TxDetail struct {
	Signature string

	raw    []byte
	fields map[string]any
}

// ParseDetail decodes a detail document. Valid JSON that is not an object
// yields an empty detail.
func ParseDetail(signature string, raw []byte) (*TxDetail, error) {
	d := &TxDetail{Signature: signature, raw: raw}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	d.fields, _ = v.(map[string]any)
	return d, nil
}

// Contains reports whether marker appears anywhere in the serialized detail
func (d *TxDetail) Contains(marker string) bool {
	return marker != "" && bytes.Contains(d.raw, []byte(marker))
}

// Failed reports whether the explorer marks the transaction as failed
func (d *TxDetail) Failed() bool {
	status, _ := d.fields["status"].(string)
	return strings.EqualFold(status, "fail") || strings.EqualFold(status, "failed")
}

// LamportsTo sums every transfer record addressed to address. Addresses are
// compared case-insensitively; unparseable amounts count as zero.
func (d *TxDetail) LamportsTo(address string) int64 {
	var total int64
	for _, key := range transferKeys {
		items, _ := d.fields[key].([]any)
		for _, it := range items {
			item, ok := it.(map[string]any)
			if !ok {
				continue
			}
			to := firstString(item, "to", "destination", "tokenAddress")
			if to == "" || !strings.EqualFold(to, address) {
				continue
			}
			total += firstAmount(item, "amount", "lamports", "value")
		}
	}
	return total
}

// Payer returns the fee payer, falling back to the signer and then the
// first account key of the message.
func (d *TxDetail) Payer() string {
	if s, _ := d.fields["feePayer"].(string); s != "" {
		return s
	}

	switch signer := d.fields["signer"].(type) {
	case string:
		if signer != "" {
			return signer
		}
	case []any:
		if len(signer) > 0 {
			if s, _ := signer[0].(string); s != "" {
				return s
			}
		}
	}

	tx, _ := d.fields["transaction"].(map[string]any)
	msg, _ := tx["message"].(map[string]any)
	keys, _ := msg["accountKeys"].([]any)
	if len(keys) == 0 {
		return ""
	}
	switch k := keys[0].(type) {
	case string:
		return k
	case map[string]any:
		s, _ := k["pubkey"].(string)
		return s
	}
	return ""
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, _ := m[k].(string); s != "" {
			return s
		}
	}
	return ""
}

// firstAmount returns the first non-zero amount among keys, so a zero or
// empty "amount" falls through to "lamports" and then "value".
func firstAmount(m map[string]any, keys ...string) int64 {
	for _, k := range keys {
		if n := toLamports(m[k]); n != 0 {
			return n
		}
	}
	return 0
}

// toLamports reads an integer amount as lamports and a fractional amount
// as SOL.
func toLamports(v any) int64 {
	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = strings.TrimSpace(n)
	case float64:
		s = strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return 0
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return SOLToLamports(f)
	}
	return 0
}

// SOLToLamports converts a SOL amount to lamports. Amounts outside the int64
// range and NaN yield 0.
func SOLToLamports(sol float64) int64 {
	l := math.Round(sol * LamportsPerSOL)
	if math.IsNaN(l) || l >= math.MaxInt64 || l < math.MinInt64 {
		return 0
	}
	return int64(l)
}

// LamportsToSOL converts lamports to SOL
func LamportsToSOL(lamports int64) float64 {
	return float64(lamports) / LamportsPerSOL
}
