package order

const (
	// Orders at or above the threshold ship free, everything else pays
	// the flat fee.
	FreeShippingThresholdCents int64 = 50000
	FlatShippingCents          int64 = 5000

	taxRateBasisPoints int64 = 1800
)

// ComputePricing derives shipping, tax and total from a subtotal. Tax is
// truncating integer division; the same rule applies everywhere money is
// computed.
func ComputePricing(subtotalCents int64) Pricing {
	shipping := FlatShippingCents
	if subtotalCents >= FreeShippingThresholdCents {
		shipping = 0
	}
	tax := subtotalCents * taxRateBasisPoints / 10000
	return Pricing{
		SubtotalCents: subtotalCents,
		ShippingCents: shipping,
		TaxCents:      tax,
		TotalCents:    subtotalCents + shipping + tax,
	}
}
