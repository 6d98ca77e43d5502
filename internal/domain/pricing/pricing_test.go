package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculator_MenuPrice(t *testing.T) {
	tests := []struct {
		name     string
		price    decimal.Decimal
		guests   int
		minimum  int
		want     decimal.Decimal
		discount bool
	}{
		{name: "at minimum", price: dec("65.00"), guests: 8, minimum: 8, want: dec("520.00")},
		{name: "one below threshold", price: dec("65.00"), guests: 12, minimum: 8, want: dec("780.00")},
		{name: "exactly at threshold", price: dec("65.00"), guests: 13, minimum: 8, want: dec("760.50"), discount: true},
		{name: "above threshold", price: dec("42.50"), guests: 20, minimum: 6, want: dec("765.00"), discount: true},
		{name: "rounds to cents", price: dec("10.33"), guests: 7, minimum: 1, want: dec("65.08"), discount: true},
		{name: "free menu", price: decimal.Zero, guests: 10, minimum: 1, want: decimal.Zero, discount: true},
	}

	var c Calculator
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.MenuPrice(tt.price, tt.guests, tt.minimum)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			assert.Equal(t, tt.discount, c.DiscountApplies(tt.guests, tt.minimum))
		})
	}
}

func TestCalculator_MenuPriceMatchesFormula(t *testing.T) {
	var c Calculator
	price := dec("19.99")
	for minimum := 1; minimum <= 10; minimum++ {
		for guests := minimum; guests <= minimum+10; guests++ {
			factor := decimal.NewFromInt(1)
			if guests >= minimum+5 {
				factor = dec("0.9")
			}
			want := price.Mul(decimal.NewFromInt(int64(guests))).Mul(factor).Round(2)
			got := c.MenuPrice(price, guests, minimum)
			assert.True(t, want.Equal(got), "guests=%d minimum=%d: want %s, got %s", guests, minimum, want, got)
		}
	}
}

func TestCalculator_DeliveryPrice(t *testing.T) {
	flat := dec("16.80")
	tests := []struct {
		address string
		want    decimal.Decimal
	}{
		{address: "12 cours de l'Intendance, Bordeaux", want: decimal.Zero},
		{address: "12 COURS VICTOR HUGO BORDEAUX", want: decimal.Zero},
		{address: "3 rue Sainte-Catherine 33000", want: decimal.Zero},
		{address: "Allee des Pins, 33800", want: decimal.Zero},
		{address: "Quai de Bacalan 33300 Bx", want: decimal.Zero},
		{address: "15 Rue X, 75000 Paris", want: flat},
		{address: "Merignac 33700", want: flat},
		{address: "", want: flat},
	}

	var c Calculator
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got := c.DeliveryPrice(tt.address)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			assert.Equal(t, tt.want.IsZero(), c.IsLocal(tt.address))
		})
	}
}

func TestCalculator_Quote(t *testing.T) {
	var c Calculator

	local := c.Quote(Input{PricePerPerson: dec("65.00"), Guests: 13, MinimumGuests: 8, Address: "Place de la Bourse, Bordeaux"})
	assert.True(t, dec("760.50").Equal(local.MenuPrice))
	assert.True(t, local.DeliveryPrice.IsZero())
	assert.True(t, dec("760.50").Equal(local.Total()))
	assert.True(t, local.DiscountApplied)

	remote := c.Quote(Input{PricePerPerson: dec("65.00"), Guests: 8, MinimumGuests: 8, Address: "15 Rue X, 75000 Paris"})
	assert.True(t, dec("520.00").Equal(remote.MenuPrice))
	assert.True(t, dec("16.80").Equal(remote.DeliveryPrice))
	assert.True(t, dec("536.80").Equal(remote.Total()))
	assert.False(t, remote.DiscountApplied)
}
