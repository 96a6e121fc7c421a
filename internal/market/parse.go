package market

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ValidAddress reports whether s is a 0x-prefixed 40-hex-char address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// NormalizeAddress lowercases a valid hex address to its canonical form.
// Cache keys and room names depend on this being case-insensitive.
func NormalizeAddress(s string) string {
	return strings.ToLower(common.HexToAddress(s).Hex())
}

// FlexTime accepts the two timestamp encodings the ledger indexer emits:
// integer seconds or an RFC3339 string. Zero after unmarshal means the
// value was unparsable and the record should be dropped.
type FlexTime int64

// UnmarshalJSON normalises either encoding to epoch milliseconds.
func (t *FlexTime) UnmarshalJSON(b []byte) error {
	var secs int64
	if err := json.Unmarshal(b, &secs); err == nil {
		if secs <= 0 {
			*t = 0
			return nil
		}
		*t = FlexTime(secs * 1000)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = 0
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		*t = 0
		return nil
	}
	*t = FlexTime(parsed.UnixMilli())
	return nil
}

// Millis returns the normalised epoch-millisecond value.
func (t FlexTime) Millis() int64 { return int64(t) }

// ParseAmount parses a decimal-string token amount. Negative and
// malformed amounts are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative amount %q", s)
	}
	return d, nil
}
