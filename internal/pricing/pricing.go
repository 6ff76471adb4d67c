// Package pricing computes line subtotals and totals for carts and orders.
// All functions are pure. Currency rounding is applied once, at total
// level, so per-line rounding drift cannot accumulate unseen.
package pricing

import "math"

// Line is one (unit price, quantity) pair to be priced.
type Line struct {
	UnitPrice float64
	Quantity  int
}

// Subtotal returns the unrounded subtotal for a single line.
func Subtotal(unitPrice float64, quantity int) float64 {
	return unitPrice * float64(quantity)
}

// Total sums the line subtotals and rounds the result to two decimals.
func Total(lines []Line) float64 {
	var total float64
	for _, l := range lines {
		total += Subtotal(l.UnitPrice, l.Quantity)
	}
	return Round(total)
}

// Round rounds an amount to two decimal places.
func Round(amount float64) float64 {
	return math.Round(amount*100) / 100
}
