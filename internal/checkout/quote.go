package checkout

import "github.com/shopspring/decimal"

var (
	// Orders with a subtotal strictly above FreeShippingOver ship free.
	FreeShippingOver = decimal.NewFromInt(50)
	FlatShipping     = decimal.NewFromInt(10)
)

type Quote struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

func QuoteFor(subtotal decimal.Decimal) Quote {
	shipping := FlatShipping
	if subtotal.GreaterThan(FreeShippingOver) {
		shipping = decimal.Zero
	}
	return Quote{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal.Add(shipping),
	}
}
