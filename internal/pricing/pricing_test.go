package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testBand() Band {
	return Band{
		MaxPrice:       d("58.90"),
		MinPrice:       d("42.50"),
		TotalAvailable: d("20000"),
		MinVolume:      d("1000"),
	}
}

func TestUnitPrice_MonotonicNonIncreasing(t *testing.T) {
	b := testBand()
	prev := UnitPrice(b.MinVolume, b.TotalAvailable, b.MaxPrice, b.MinPrice)
	step := d("250")
	for v := b.MinVolume.Add(step); v.LessThanOrEqual(b.TotalAvailable); v = v.Add(step) {
		p := UnitPrice(v, b.TotalAvailable, b.MaxPrice, b.MinPrice)
		assert.True(t, p.LessThanOrEqual(prev), "price rose from %s to %s at volume %s", prev, p, v)
		prev = p
	}
}

func TestUnitPrice_Endpoints(t *testing.T) {
	b := testBand()

	atTotal := UnitPrice(b.TotalAvailable, b.TotalAvailable, b.MaxPrice, b.MinPrice)
	assert.True(t, atTotal.Equal(b.MinPrice), "got %s", atTotal)

	// 58.90 - 16.40 * 0.05
	atMin := UnitPrice(b.MinVolume, b.TotalAvailable, b.MaxPrice, b.MinPrice)
	assert.True(t, atMin.Equal(d("58.08")), "got %s", atMin)
}

func TestUnitPrice_ClampsRatio(t *testing.T) {
	b := testBand()
	over := UnitPrice(d("50000"), b.TotalAvailable, b.MaxPrice, b.MinPrice)
	assert.True(t, over.Equal(b.MinPrice))

	noStock := UnitPrice(d("10"), decimal.Zero, b.MaxPrice, b.MinPrice)
	assert.True(t, noStock.Equal(b.MinPrice))
}

func TestBand_Quote(t *testing.T) {
	b := testBand()

	q, err := b.Quote(d("10000"))
	require.NoError(t, err)
	assert.Equal(t, "50.7", q.UnitPrice.String())
	assert.Equal(t, "507000", q.LineTotal.String())
	assert.Equal(t, "82000", q.Savings.String())
	assert.Equal(t, "0.5", q.Ratio.String())

	_, err = b.Quote(d("999"))
	assert.ErrorIs(t, err, ErrVolumeOutOfRange)
	_, err = b.Quote(d("20001"))
	assert.ErrorIs(t, err, ErrVolumeOutOfRange)
}

func TestBand_TierVolumes(t *testing.T) {
	b := testBand()
	b.MinVolume = d("6000")
	got := b.TierVolumes(DefaultTiers)
	require.Len(t, got, 3)
	assert.Equal(t, "6000", got[0].String()) // 5000 clamps up to the minimum
	assert.Equal(t, "10000", got[1].String())
	assert.Equal(t, "16000", got[2].String())
}

func TestBand_Validate(t *testing.T) {
	assert.NoError(t, testBand().Validate())

	inverted := testBand()
	inverted.MaxPrice = d("10")
	assert.Error(t, inverted.Validate())

	tooBigMin := testBand()
	tooBigMin.MinVolume = d("30000")
	assert.Error(t, tooBigMin.Validate())
}

func TestCommissionRate(t *testing.T) {
	b := testBand()
	maxRate, minRate := d("0.05"), d("0.01")

	assert.True(t, CommissionRate(b.MaxPrice, b, maxRate, minRate).Equal(maxRate))
	assert.True(t, CommissionRate(b.MinPrice, b, maxRate, minRate).Equal(minRate))
	assert.Equal(t, "0.03", CommissionRate(d("50.70"), b, maxRate, minRate).String())
	assert.True(t, CommissionRate(d("99"), b, maxRate, minRate).Equal(maxRate))
}
