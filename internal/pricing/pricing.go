// Package pricing computes volume-band prices for catalog products.
//
// A product is sold anywhere between its minimum volume and the total volume
// available. The unit price slides linearly from the band ceiling (MaxPrice)
// toward the band floor (MinPrice) as the purchased share of the available
// volume grows.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrVolumeOutOfRange is returned when a quote is requested outside the band.
var ErrVolumeOutOfRange = errors.New("volume out of range")

// DefaultTiers are the suggested purchase shares shown at checkout.
var DefaultTiers = []decimal.Decimal{
	decimal.RequireFromString("0.25"),
	decimal.RequireFromString("0.50"),
	decimal.RequireFromString("0.80"),
}

var one = decimal.NewFromInt(1)

// Ratio returns volume/totalAvailable clamped to [0, 1].
// A non-positive totalAvailable yields 1.
func Ratio(volume, totalAvailable decimal.Decimal) decimal.Decimal {
	if !totalAvailable.IsPositive() {
		return one
	}
	r := volume.Div(totalAvailable)
	if r.GreaterThan(one) {
		return one
	}
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// UnitPrice interpolates between maxPrice and minPrice by the purchased share.
// The result is not rounded.
func UnitPrice(volume, totalAvailable, maxPrice, minPrice decimal.Decimal) decimal.Decimal {
	ratio := Ratio(volume, totalAvailable)
	return maxPrice.Sub(maxPrice.Sub(minPrice).Mul(ratio))
}

// Savings is what the buyer saves against paying the band ceiling for volume.
func Savings(volume, price, maxPrice decimal.Decimal) decimal.Decimal {
	return maxPrice.Sub(price).Mul(volume)
}

// Band is the pricing envelope of a product.
type Band struct {
	MaxPrice       decimal.Decimal
	MinPrice       decimal.Decimal
	TotalAvailable decimal.Decimal
	MinVolume      decimal.Decimal
}

// Validate checks that the band is internally consistent.
func (b Band) Validate() error {
	if !b.MinPrice.IsPositive() {
		return fmt.Errorf("min price must be positive")
	}
	if b.MaxPrice.LessThan(b.MinPrice) {
		return fmt.Errorf("max price %s below min price %s", b.MaxPrice, b.MinPrice)
	}
	if !b.TotalAvailable.IsPositive() {
		return fmt.Errorf("total volume must be positive")
	}
	if b.MinVolume.IsNegative() || b.MinVolume.GreaterThan(b.TotalAvailable) {
		return fmt.Errorf("min volume %s outside [0, %s]", b.MinVolume, b.TotalAvailable)
	}
	return nil
}

// Quote is a priced volume, rounded for display.
type Quote struct {
	Volume    decimal.Decimal `json:"volume"`
	Ratio     decimal.Decimal `json:"ratio"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Savings   decimal.Decimal `json:"savings"`
}

// Quote prices volume inside the band.
func (b Band) Quote(volume decimal.Decimal) (Quote, error) {
	if volume.LessThan(b.MinVolume) || volume.GreaterThan(b.TotalAvailable) || !volume.IsPositive() {
		return Quote{}, fmt.Errorf("%w: %s not in [%s, %s]", ErrVolumeOutOfRange, volume, b.MinVolume, b.TotalAvailable)
	}
	price := UnitPrice(volume, b.TotalAvailable, b.MaxPrice, b.MinPrice).Round(2)
	return Quote{
		Volume:    volume,
		Ratio:     Ratio(volume, b.TotalAvailable).Round(4),
		UnitPrice: price,
		LineTotal: price.Mul(volume).Round(2),
		Savings:   Savings(volume, price, b.MaxPrice).Round(2),
	}, nil
}

// TierVolumes turns purchase shares into concrete volumes, never below MinVolume.
func (b Band) TierVolumes(tiers []decimal.Decimal) []decimal.Decimal {
	volumes := make([]decimal.Decimal, 0, len(tiers))
	for _, t := range tiers {
		v := b.TotalAvailable.Mul(t).Round(3)
		if v.LessThan(b.MinVolume) {
			v = b.MinVolume
		}
		volumes = append(volumes, v)
	}
	return volumes
}

// CommissionRate places price inside the band and maps it onto [minRate, maxRate].
// Selling at the ceiling earns maxRate; selling at the floor earns minRate.
func CommissionRate(price decimal.Decimal, b Band, maxRate, minRate decimal.Decimal) decimal.Decimal {
	span := b.MaxPrice.Sub(b.MinPrice)
	if !span.IsPositive() {
		return maxRate
	}
	pos := price.Sub(b.MinPrice).Div(span)
	if pos.GreaterThan(one) {
		pos = one
	}
	if pos.IsNegative() {
		pos = decimal.Zero
	}
	return minRate.Add(maxRate.Sub(minRate).Mul(pos)).Round(4)
}
