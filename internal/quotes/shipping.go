package quotes

// ShippingQuoter prices shipping for a quote. Carrier rate tables live outside
// this service; implementations wrap whatever lookup the deployment uses.
type ShippingQuoter interface {
	Quote(subtotalCents int64, itemCount int) int64
}

// FlatRateShipping charges a base rate plus a per-item surcharge, free above a
// subtotal threshold.
type FlatRateShipping struct {
	BaseCents      int64
	PerItemCents   int64
	FreeAboveCents int64
}

func (f FlatRateShipping) Quote(subtotalCents int64, itemCount int) int64 {
	if f.FreeAboveCents > 0 && subtotalCents >= f.FreeAboveCents {
		return 0
	}
	return f.BaseCents + f.PerItemCents*int64(itemCount)
}
