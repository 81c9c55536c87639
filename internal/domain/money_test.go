package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDecimalAndFormat(t *testing.T) {
	assert.Equal(t, "10.5", ToDecimal(1050).String())
	assert.Equal(t, "10.50", FormatAmount(1050))
	assert.Equal(t, "0.07", FormatAmount(7))
}

func TestFromDecimal(t *testing.T) {
	d := decimal.NewFromFloat(10.50)
	assert.Equal(t, int64(1050), FromDecimal(d))
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		cents int64
		err   bool
	}{
		{name: "whole", raw: "100", cents: 10000},
		{name: "two_places", raw: "100.00", cents: 10000},
		{name: "one_place", raw: "0.5", cents: 50},
		{name: "trailing_zeroes", raw: "12.3400", cents: 1234},
		{name: "three_places", raw: "1.005", err: true},
		{name: "zero", raw: "0.00", err: true},
		{name: "negative", raw: "-5", err: true},
		{name: "garbage", raw: "abc", err: true},
		{name: "empty", raw: " ", err: true},
		{name: "max_int64_cents", raw: "92233720368547758.07", cents: 9223372036854775807},
		{name: "one_cent_past_int64", raw: "92233720368547758.08", err: true},
		{name: "wraps_to_one_dollar", raw: "184467440737095517.16", err: true},
		{name: "huge_exponent", raw: "1e30", err: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cents, err := ParseAmount(tc.raw)
			if tc.err {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidAmount))
				assert.Zero(t, cents)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.cents, cents)
		})
	}
}

func TestPlatformFee(t *testing.T) {
	cases := []struct {
		name    string
		amount  int64
		percent string
		fee     int64
	}{
		{name: "fifteen_percent_of_hundred", amount: 10000, percent: "15", fee: 1500},
		{name: "zero_percent", amount: 10000, percent: "0", fee: 0},
		{name: "rounds_half_up", amount: 333, percent: "2.5", fee: 8},
		{name: "fractional_percent", amount: 12345, percent: "7.25", fee: 895},
		{name: "capped_at_amount", amount: 100, percent: "150", fee: 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fee := PlatformFee(tc.amount, decimal.RequireFromString(tc.percent))
			assert.Equal(t, tc.fee, fee)
			assert.Equal(t, tc.amount-tc.fee, tc.amount-fee)
		})
	}
}

func TestValidateCurrency(t *testing.T) {
	c, err := ValidateCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, CurrencyUSD, c)

	c, err = ValidateCurrency("")
	require.NoError(t, err)
	assert.Equal(t, CurrencyUSD, c)

	_, err = ValidateCurrency("EUR")
	require.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestParseAmountOverflowMessage(t *testing.T) {
	for _, raw := range []string{"92233720368547758.08", "1e30"} {
		_, err := ParseAmount(raw)
		require.ErrorIs(t, err, ErrInvalidAmount)
		assert.Contains(t, err.Error(), "exceeds the largest representable amount", raw)
	}
}
