package service

// ApplyDiscount returns floor(price * (100 - percent) / 100) using integer
// arithmetic.  Percent is clamped to 0..100.
func ApplyDiscount(price, percent int) int {
	if percent <= 0 {
		return price
	}
	if percent > 100 {
		percent = 100
	}
	return price * (100 - percent) / 100
}
