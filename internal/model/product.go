package model

import "time"

// UnlimitedRemaining is reported as the remaining count of a tier without a
// quantity limit.
const UnlimitedRemaining = 9999

// Product is a ticket tier of an event.  QuantityLimit 0 means unlimited;
// otherwise QuantitySold never exceeds QuantityLimit.  QuantitySold only
// changes through the ledger operations in the repository package.
type Product struct {
	ID            int64     // products.id
	EventID       int64     // products.event_id
	Name          string    // products.name
	Description   string    // products.description (nullable)
	Price         int       // products.price, whole currency units
	QuantityLimit int       // products.quantity_limit
	QuantitySold  int       // products.quantity_sold
	IsRefundable  bool      // products.is_refundable
	CreatedAt     time.Time // products.created_at
}

// Remaining returns the units left for sale, or UnlimitedRemaining.
func (p Product) Remaining() int {
	if p.QuantityLimit == 0 {
		return UnlimitedRemaining
	}
	if r := p.QuantityLimit - p.QuantitySold; r > 0 {
		return r
	}
	return 0
}

// ProductInfo is a tier joined with its event and organization, as needed
// by the purchase flow.
type ProductInfo struct {
	Product
	EventName string
	OrgID     int64
	OrgName   string
}
