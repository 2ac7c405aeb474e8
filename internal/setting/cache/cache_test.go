package cache

import (
	"testing"

	settingdomain "github.com/smallbiznis/tabung/internal/setting/domain"
	"github.com/stretchr/testify/assert"
)

func records(values ...string) []settingdomain.SettingRecord {
	out := make([]settingdomain.SettingRecord, 0, len(values))
	for _, v := range values {
		out = append(out, settingdomain.SettingRecord{
			SettingKey: "pricing.lease.daily_rate",
			Value:      v,
			DataType:   settingdomain.DataTypeNumber,
			IsActive:   true,
		})
	}
	return out
}

func TestSetAtCurrentGenerationIsServed(t *testing.T) {
	c := New()

	gen := c.Generation("pricing.lease.daily_rate")
	c.Set("pricing.lease.daily_rate", gen, records("100.00"))

	got, ok := c.Get("pricing.lease.daily_rate")
	assert.True(t, ok)
	assert.Equal(t, "100.00", got[0].Value)
}

func TestSetDiscardedAfterInvalidate(t *testing.T) {
	c := New()

	gen := c.Generation("pricing.lease.daily_rate")
	c.Invalidate("pricing.lease.daily_rate")
	c.Set("pricing.lease.daily_rate", gen, records("100.00"))

	_, ok := c.Get("pricing.lease.daily_rate")
	assert.False(t, ok)

	// A populate started after the invalidation lands normally.
	gen = c.Generation("pricing.lease.daily_rate")
	c.Set("pricing.lease.daily_rate", gen, records("140.00"))
	got, ok := c.Get("pricing.lease.daily_rate")
	assert.True(t, ok)
	assert.Equal(t, "140.00", got[0].Value)
}

func TestSetDiscardedAfterReset(t *testing.T) {
	c := New()

	// Reset must also void populates for keys it has never seen.
	gen := c.Generation("tax.rate")
	c.Reset()
	c.Set("tax.rate", gen, records("7.5"))

	_, ok := c.Get("tax.rate")
	assert.False(t, ok)
}

func TestInvalidateDropsSnapshot(t *testing.T) {
	c := New()

	gen := c.Generation("deposit.amount")
	c.Set("deposit.amount", gen, records("5000.00"))
	c.Invalidate("deposit.amount")

	_, ok := c.Get("deposit.amount")
	assert.False(t, ok)
}
