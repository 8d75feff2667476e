package domain

// DefaultCurrency is the ISO currency code all amounts are quoted in.
const DefaultCurrency = "GBP"

// DeliveryFee is the flat pickup-and-return charge in pence applied to every order.
const DeliveryFee int64 = 700

// PricingBreakdown captures the aggregated monetary results of pricing a booking.
type PricingBreakdown struct {
	Currency    string
	Subtotal    int64
	DeliveryFee int64
	Total       int64
	Items       []ItemPricingBreakdown
}

// ItemPricingBreakdown stores the per-line pricing outputs.
type ItemPricingBreakdown struct {
	ServiceRef string
	Quantity   int
	UnitPrice  int64
	Total      int64
}

// PriceItems rolls lines up into a breakdown: line totals are unit price times
// quantity, the flat delivery fee is added once per booking.
func PriceItems(items []CartItem) PricingBreakdown {
	breakdown := PricingBreakdown{
		Currency:    DefaultCurrency,
		DeliveryFee: DeliveryFee,
		Items:       make([]ItemPricingBreakdown, 0, len(items)),
	}
	for _, item := range items {
		lineTotal := item.UnitPrice * int64(item.Quantity)
		breakdown.Subtotal += lineTotal
		breakdown.Items = append(breakdown.Items, ItemPricingBreakdown{
			ServiceRef: item.ServiceRef,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      lineTotal,
		})
	}
	breakdown.Total = breakdown.Subtotal + breakdown.DeliveryFee
	return breakdown
}
