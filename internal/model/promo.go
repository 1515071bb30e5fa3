package model

// PromoCode grants a percentage discount on one event.  UsageLimit 0 means
// unlimited; otherwise UsedCount never exceeds UsageLimit.
type PromoCode struct {
	Code            string // promocodes.code (stored upper-case)
	EventID         int64  // promocodes.event_id
	DiscountPercent int    // promocodes.discount_percent, 1..100
	UsageLimit      int    // promocodes.usage_limit
	UsedCount       int    // promocodes.used_count
	IsActive        bool   // promocodes.is_active
}

// Available reports whether the code can be redeemed once more.
func (p PromoCode) Available() bool {
	return p.IsActive && (p.UsageLimit == 0 || p.UsedCount < p.UsageLimit)
}
