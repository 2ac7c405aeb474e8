package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentValueRejectsNegative(t *testing.T) {
	record := SettingRecord{
		SettingKey: "discount.tier_percent",
		Value:      "-10",
		DataType:   DataTypeNumber,
	}

	// The raw value is a valid number, so writes accept it.
	require.NoError(t, record.Validate())

	// Reading it as a percent must fail instead of inverting the
	// discount into a surcharge.
	_, err := record.PercentValue()
	assert.ErrorIs(t, err, ErrInvalidValue)

	record.Value = "7.5"
	bp, err := record.PercentValue()
	require.NoError(t, err)
	assert.Equal(t, int64(750), bp)
}
