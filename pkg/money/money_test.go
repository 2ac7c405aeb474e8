package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"100", 10000, false},
		{"49.99", 4999, false},
		{"0.5", 50, false},
		{"-12.25", -1225, false},
		{"  300 ", 30000, false},
		{"1.999", 0, true},
		{"", 0, true},
		{"abc", 0, true},
		{"12.", 1200, false},
	}

	for _, tc := range cases {
		got, err := ParseAmount(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		assert.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestParsePercent(t *testing.T) {
	got, err := ParsePercent("7.5")
	assert.NoError(t, err)
	assert.Equal(t, int64(750), got)

	got, err = ParsePercent("15")
	assert.NoError(t, err)
	assert.Equal(t, int64(1500), got)
}

func TestApplyPercent(t *testing.T) {
	// 7.5% of 850.00 is exactly 63.75
	assert.Equal(t, int64(6375), ApplyPercent(85000, 750))
	// 15% of 1000.00
	assert.Equal(t, int64(15000), ApplyPercent(100000, 1500))
	// rounding: 33.33% of 0.01
	assert.Equal(t, int64(0), ApplyPercent(1, 3333))
}

func TestInclusivePortion(t *testing.T) {
	// 10% inclusive of 110.00 embeds exactly 10.00
	assert.Equal(t, int64(1000), InclusivePortion(11000, 1000))
	assert.Equal(t, int64(0), InclusivePortion(11000, 0))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "100.00", FormatAmount(10000))
	assert.Equal(t, "-3.05", FormatAmount(-305))
}
