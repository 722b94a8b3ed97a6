package charge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// IdempotencyKey derives the charge key for a campaign/offer pair. The key
// is a pure function of its inputs: a retry for the same offer under the
// same campaign always lands on the same key, no matter which instance or
// process issues it.
func IdempotencyKey(campaignID uint64, offerID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("charge:%d:%s", campaignID, offerID)))
	return hex.EncodeToString(sum[:])
}

// zeroDecimalCurrencies have no minor unit; their canonical amount is the
// major unit itself (ISO 4217).
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "ISK": {}, "JPY": {},
	"KMF": {}, "KRW": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// IsZeroDecimal reports whether the currency has no minor unit
func IsZeroDecimal(currency string) bool {
	_, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]
	return ok
}

// PriceToMinorUnits converts a decimal price to provider-ready minor units
func PriceToMinorUnits(price float64, currency string) int64 {
	if IsZeroDecimal(currency) {
		return int64(math.Round(price))
	}
	return int64(math.Round(price * 100))
}

// MinorUnitsToDecimal converts stored minor units back to a decimal price
func MinorUnitsToDecimal(amount int64, currency string) float64 {
	if IsZeroDecimal(currency) {
		return float64(amount)
	}
	return float64(amount) / 100
}
