package tickmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexToDecimal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
		wantErr  bool
	}{
		{name: "Prefixed", input: "0x64", expected: 100},
		{name: "Unprefixed", input: "64", expected: 100},
		{name: "Upper case prefix", input: "0X2", expected: 2},
		{name: "Mixed case digits", input: "0xAbC", expected: 2748},
		{name: "Zero", input: "0x0", expected: 0},
		{name: "Leading zeros", input: "0x0001", expected: 1},
		{name: "Empty", input: "", wantErr: true},
		{name: "Prefix only", input: "0x", wantErr: true},
		{name: "Negative", input: "-0x1", wantErr: true},
		{name: "Sign after prefix", input: "0x-1", wantErr: true},
		{name: "Plus sign", input: "+1", wantErr: true},
		{name: "Not hex", input: "0xzz", wantErr: true},
		{name: "Underscore", input: "0x1_0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := HexToDecimal(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrParse)
				assert.Nil(t, n)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n.Int64())
		})
	}
}

func TestHexToDecimalWide(t *testing.T) {
	n, err := HexToDecimal("0xffffffffffffffffffffffffffffffff")
	require.NoError(t, err)

	max128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	assert.Equal(t, 0, n.Cmp(max128))
}

func TestEncodeHex(t *testing.T) {
	assert.Equal(t, "0x0", EncodeHex(nil))
	assert.Equal(t, "0x0", EncodeHex(new(big.Int)))
	assert.Equal(t, "0x5f5e100", EncodeHex(big.NewInt(100000000)))
}

func TestSumHexAmounts(t *testing.T) {
	tests := []struct {
		name     string
		amounts  []string
		expected string
	}{
		{name: "Empty list", amounts: nil, expected: "0x0"},
		{name: "Single", amounts: []string{"0x64"}, expected: "0x64"},
		{name: "Range boundary", amounts: []string{"0x142bd6ddc3906", "0x989680"}, expected: "0x142bd6e74cf86"},
		{name: "Limit levels", amounts: []string{"0x15ef3c0", "0x5f5e100"}, expected: "0x754d4c0"},
		{name: "Strips padding", amounts: []string{"0x0001", "0001"}, expected: "0x2"},
		{name: "Lower case output", amounts: []string{"0xA", "0x5"}, expected: "0xf"},
		{
			name:     "Beyond 128 bits",
			amounts:  []string{"0xffffffffffffffffffffffffffffffff", "0x1"},
			expected: "0x100000000000000000000000000000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := SumHexAmounts(tt.amounts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sum)
		})
	}
}

func TestSumHexAmountsMatchesDecodedSum(t *testing.T) {
	pairs := [][2]string{
		{"0x2", "0x64"},
		{"0x14420f0c7e9bf", "0x1c8d871ac5fd3"},
		{"0x1b27292ee102e24a", "0x7845a02cf8b98"},
	}
	for _, p := range pairs {
		a, err := HexToDecimal(p[0])
		require.NoError(t, err)
		b, err := HexToDecimal(p[1])
		require.NoError(t, err)

		sum, err := SumHexAmounts(p[:])
		require.NoError(t, err)
		decoded, err := HexToDecimal(sum)
		require.NoError(t, err)

		assert.Equal(t, 0, new(big.Int).Add(a, b).Cmp(decoded), "%s + %s", p[0], p[1])
	}
}

func TestSumHexAmountsRejectsMalformed(t *testing.T) {
	_, err := SumHexAmounts([]string{"0x1", "0xnope"})
	assert.ErrorIs(t, err, ErrParse)
	assert.Contains(t, err.Error(), "index 1")
}
