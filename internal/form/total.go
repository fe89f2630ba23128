package form

import (
	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

// ComputeTotal returns quantity × unit price of the seat offering, rounded to
// cents.
func ComputeTotal(seat models.SeatOffering, quantity int) float64 {
	total := decimal.NewFromFloat(seat.Price).Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	f, _ := total.Float64()
	return f
}
