package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "integer", input: "25", want: "25.00"},
		{name: "dot decimal", input: "12.5", want: "12.50"},
		{name: "comma decimal", input: " 7,25 ", want: "7.25"},
		{name: "max", input: "99999999.99", want: "99999999.99"},
		{name: "blank", input: "  ", wantErr: true},
		{name: "too many decimals", input: "1.005", wantErr: true},
		{name: "overflow", input: "100000000", wantErr: true},
		{name: "garbage", input: "diez", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, Format(got))
		})
	}
}

func TestSumIsExact(t *testing.T) {
	amounts := make([]decimal.Decimal, 0, 10)
	for i := 0; i < 10; i++ {
		amounts = append(amounts, decimal.RequireFromString("0.10"))
	}
	assert.True(t, Sum(amounts...).Equal(decimal.NewFromInt(1)))
	assert.True(t, Sum().Equal(Zero))
}

func TestFromCents(t *testing.T) {
	assert.Equal(t, "15.00", Format(FromCents(1500)))
	assert.Equal(t, "-0.05", Format(FromCents(-5)))
}

func TestValidateNegativeBound(t *testing.T) {
	require.NoError(t, Validate(decimal.RequireFromString("-99999999.99")))
	require.Error(t, Validate(decimal.RequireFromString("-100000000.00")))
}
