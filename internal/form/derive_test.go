package form

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

func storeWith(t *testing.T, rec models.Attributes) *Store {
	t.Helper()
	s := NewStore()
	for k, v := range rec {
		_, err := s.Set(k, v)
		require.NoError(t, err)
	}
	return s
}

func TestDeriveIsDeterministic(t *testing.T) {
	s := storeWith(t, models.Attributes{
		models.AttrCatalogType: models.CatalogMultipleCourses,
		models.AttrCouponType:  models.CouponDiscountCode,
		models.AttrVoucherType: models.VoucherOncePerCustomer,
		models.AttrQuantity:    3,
	})
	for _, attr := range syncOrder {
		in := Input{Changed: attr}
		assert.Equal(t, Derive(s, in), Derive(s, in), attr)
	}
}

func TestDeriveOnlyFiresTriggeredRules(t *testing.T) {
	s := storeWith(t, models.Attributes{models.AttrTitle: "Spring"})
	assert.True(t, Derive(s, Input{Changed: models.AttrTitle}).Empty())
	assert.False(t, Triggers(models.AttrTitle))
	assert.True(t, Triggers(models.AttrCatalogType))
	assert.True(t, Triggers(models.AttrCourseSeatTypes))
}

func TestDeriveScope(t *testing.T) {
	s := storeWith(t, models.Attributes{models.AttrCatalogType: models.CatalogProgram})
	p := Derive(s, Input{Changed: models.AttrCatalogType})

	assert.Equal(t, []FieldGroup{GroupProgram}, p.Shown())
	cleared := map[string]bool{}
	for _, r := range p.Resets {
		require.True(t, r.Unset)
		cleared[r.Attr] = true
	}
	for ct, attrs := range models.ScopeAttributes {
		for _, a := range attrs {
			assert.Equal(t, ct != models.CatalogProgram, cleared[a], a)
		}
	}
}

func TestDeriveSeatTotals(t *testing.T) {
	s := storeWith(t, models.Attributes{
		models.AttrCatalogType: models.CatalogSingleCourse,
		models.AttrQuantity:    3,
		models.AttrInvoiceType: models.InvoicePrepaid,
	})
	seat := models.SeatOffering{DisplayName: "Verified", Price: 19.99, StockRecordIDs: []int{2}}
	p := Derive(s, Input{Changed: models.AttrSeatType, Seat: &seat})

	assert.Equal(t, []Reset{
		{Attr: models.AttrStockRecordIDs, Value: []int{2}},
		{Attr: models.AttrTotalValue, Value: 59.97},
		{Attr: models.AttrPrice, Value: 59.97},
	}, p.Resets)
}

func TestLimitContains(t *testing.T) {
	pct := bounded(1, 100)
	assert.True(t, pct.Contains(1))
	assert.True(t, pct.Contains(100))
	assert.False(t, pct.Contains(0.5))
	assert.False(t, pct.Contains(100.01))
	assert.True(t, atLeast(2).Contains(1e9))
	assert.False(t, atLeast(1).Contains(math.NaN()))
	assert.False(t, pct.Contains(math.NaN()))
}
