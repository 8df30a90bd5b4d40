package units

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSmallestUnits(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name   string
		symbol string
		input  string
		want   uint64
	}{
		{"one META", "META", "1", 1_000_000_000},
		{"fractional META", "META", "1.5", 1_500_000_000},
		{"one USDC", "USDC", "1", 1_000_000},
		{"USDC cents", "USDC", "0.01", 10_000},
		{"truncates beyond decimals", "USDC", "0.0000019", 1},
		{"exact decimal arithmetic", "META", "0.1", 100_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amt, err := ParseAmount(tt.input)
			require.NoError(t, err)
			got, err := table.ToSmallestUnits(tt.symbol, amt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToSmallestUnits_UnknownAsset(t *testing.T) {
	_, err := DefaultTable().ToSmallestUnits("DOGE", decimal.NewFromInt(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownAsset))

	var uae *UnknownAssetError
	require.ErrorAs(t, err, &uae)
	assert.Equal(t, "DOGE", uae.Symbol)
}

func TestToDisplayUnits(t *testing.T) {
	table := DefaultTable()

	got, err := table.ToDisplayUnits("META", 1_234_567_890)
	require.NoError(t, err)
	assert.Equal(t, 1.23, got)

	got, err = table.ToDisplayUnits("USDC", -2_505_000)
	require.NoError(t, err)
	assert.Equal(t, -2.51, got)

	got, err = table.ToDisplayUnitsU("USDC", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	_, err = table.ToDisplayUnits("DOGE", 1)
	assert.ErrorIs(t, err, ErrUnknownAsset)
}

func TestParseAmount(t *testing.T) {
	for _, in := range []string{"", "abc", "0", "-1", "1e", "  "} {
		_, err := ParseAmount(in)
		assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", in)
	}

	d, err := ParseAmount(" 2.75 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("2.75")))
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable("BONK:5, USDC:6")
	require.NoError(t, err)

	a, err := table.Lookup("BONK")
	require.NoError(t, err)
	assert.Equal(t, int32(5), a.Decimals)

	_, err = table.Lookup("META")
	assert.NoError(t, err, "defaults stay registered")
	assert.Len(t, table.Assets(), 3)

	_, err = ParseTable("BONK")
	assert.Error(t, err)
	_, err = ParseTable("BONK:x")
	assert.Error(t, err)
}

func TestLots(t *testing.T) {
	lots := Lots{BaseLotSize: 1_000_000_000, QuoteLotSize: 100}
	require.NoError(t, lots.Validate())

	base, err := lots.BaseLots(2_500_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), base)

	quote, err := lots.QuoteLots(1_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), quote)

	zero, err := lots.BaseLots(999)
	require.NoError(t, err)
	assert.Equal(t, int64(0), zero)

	_, err = Lots{}.BaseLots(1)
	assert.Error(t, err)
	assert.Error(t, Lots{BaseLotSize: 1}.Validate())
}
