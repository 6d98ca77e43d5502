// Package pricing computes catering order prices.
//
// The calculator is pure: no I/O, no clock, no configuration. Every amount it
// returns is rounded to cents so callers can persist it as-is.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Volume discount rule: orders with at least minimum+DiscountGuestMargin
// guests get DiscountRate off the menu price.
const DiscountGuestMargin = 5

// Flat non-local delivery estimate. Addresses are never geocoded.
const DefaultDistanceKm = 20

var (
	// DiscountRate is the fraction removed from the base menu price.
	DiscountRate = decimal.RequireFromString("0.10")
	// DeliveryBaseFee is charged once for every non-local delivery.
	DeliveryBaseFee = decimal.RequireFromString("5.00")
	// DeliveryPerKm is multiplied by DefaultDistanceKm.
	DeliveryPerKm = decimal.RequireFromString("0.59")
)

// LocalMarkers are matched case-insensitively anywhere in the address.
// A match makes delivery free.
var LocalMarkers = []string{"bordeaux", "33000", "33100", "33200", "33300", "33800"}

// Input holds everything needed to quote an order.
type Input struct {
	PricePerPerson decimal.Decimal
	Guests         int
	MinimumGuests  int
	Address        string
}

// Quote is the priced breakdown of an order.
type Quote struct {
	MenuPrice       decimal.Decimal
	DeliveryPrice   decimal.Decimal
	DiscountApplied bool
}

// Total returns the menu price plus the delivery price.
func (q Quote) Total() decimal.Decimal {
	return q.MenuPrice.Add(q.DeliveryPrice)
}

// Calculator prices orders. The zero value is ready to use.
type Calculator struct{}

// Quote prices a whole order.
func (c Calculator) Quote(in Input) Quote {
	return Quote{
		MenuPrice:       c.MenuPrice(in.PricePerPerson, in.Guests, in.MinimumGuests),
		DeliveryPrice:   c.DeliveryPrice(in.Address),
		DiscountApplied: c.DiscountApplies(in.Guests, in.MinimumGuests),
	}
}

// DiscountApplies reports whether the volume discount applies.
func (Calculator) DiscountApplies(guests, minimumGuests int) bool {
	return guests >= minimumGuests+DiscountGuestMargin
}

// MenuPrice returns pricePerPerson × guests, discounted when eligible.
func (c Calculator) MenuPrice(pricePerPerson decimal.Decimal, guests, minimumGuests int) decimal.Decimal {
	base := pricePerPerson.Mul(decimal.NewFromInt(int64(guests)))
	if c.DiscountApplies(guests, minimumGuests) {
		base = base.Sub(base.Mul(DiscountRate))
	}
	return base.Round(2)
}

// IsLocal reports whether the address contains a local-area marker.
func (Calculator) IsLocal(address string) bool {
	lower := strings.ToLower(address)
	for _, m := range LocalMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// DeliveryPrice returns zero for local addresses and the flat rate otherwise.
func (c Calculator) DeliveryPrice(address string) decimal.Decimal {
	if c.IsLocal(address) {
		return decimal.Zero
	}
	return DeliveryBaseFee.Add(DeliveryPerKm.Mul(decimal.NewFromInt(DefaultDistanceKm))).Round(2)
}
