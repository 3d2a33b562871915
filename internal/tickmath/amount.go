package tickmath

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrParse is returned when a hex amount cannot be decoded.
var ErrParse = errors.New("invalid hex amount")

// HexToDecimal parses a big-endian hex string, with or without the 0x prefix,
// into an arbitrary precision unsigned integer.
func HexToDecimal(s string) (*big.Int, error) {
	digits := strings.TrimSpace(s)
	if len(digits) >= 2 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		digits = digits[2:]
	}
	if digits == "" {
		return nil, fmt.Errorf("%w: %q", ErrParse, s)
	}
	for i := 0; i < len(digits); i++ {
		if !isHexDigit(digits[i]) {
			return nil, fmt.Errorf("%w: %q", ErrParse, s)
		}
	}

	n, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrParse, s)
	}
	return n, nil
}

// EncodeHex renders n as lowercase 0x-prefixed hex without zero padding.
// A nil value encodes as 0x0.
func EncodeHex(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}

// SumHexAmounts decodes every amount, adds them and re-encodes the total.
// Sums above 2^128-1 are kept exact; the wire range is not enforced here.
func SumHexAmounts(amounts []string) (string, error) {
	total := new(big.Int)
	for i, a := range amounts {
		n, err := HexToDecimal(a)
		if err != nil {
			return "", fmt.Errorf("amount at index %d: %w", i, err)
		}
		total.Add(total, n)
	}
	return EncodeHex(total), nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
