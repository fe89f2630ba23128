package form

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

func editRecord() models.Attributes {
	return models.Attributes{
		models.AttrID:             int64(5),
		models.AttrTitle:          "Spring",
		models.AttrCategory:       "Marketing",
		models.AttrCatalogType:    models.CatalogSingleCourse,
		models.AttrCourseID:       "ABC",
		models.AttrSeatType:       "verified",
		models.AttrStockRecordIDs: []any{float64(1)},
		models.AttrCouponType:     models.CouponDiscountCode,
		models.AttrVoucherType:    models.VoucherMultiUse,
		models.AttrMaxUses:        float64(5),
		models.AttrCode:           "SPRING",
		models.AttrQuantity:       float64(1),
		models.AttrBenefitType:    models.BenefitPercentage,
		models.AttrBenefitValue:   float64(10),
		models.AttrInvoiceType:    models.InvoicePrepaid,
		models.AttrPrice:          float64(40),
		models.AttrTotalValue:     float64(40),
		models.AttrTaxDeduction:   models.TaxDeductionNo,
	}
}

func TestEditLoadEstablishesView(t *testing.T) {
	c := newEdit(t, editRecord(), Options{})

	assert.True(t, c.Store().Editing())
	assert.True(t, c.Visible(GroupCourse))
	assert.True(t, c.Visible(GroupBenefit))
	assert.True(t, c.Visible(GroupCode))
	assert.True(t, c.Visible(GroupMaxUses))
	assert.False(t, c.Visible(GroupQuantity), "quantity is hidden while a code is set")
	assert.Equal(t, "SPRING", c.Store().String(models.AttrCode))

	l, ok := c.Limit(models.AttrMaxUses)
	require.True(t, ok)
	assert.Equal(t, 5.0, l.Min, "multi use limit starts at the stored value")
	assert.NoError(t, c.CheckInvariants())
}

func TestEditNonDestruction(t *testing.T) {
	c := newEdit(t, editRecord(), Options{})

	mustSet(t, c, models.AttrBenefitType, models.BenefitAbsolute)

	n, _ := c.Store().Int(models.AttrMaxUses)
	assert.Equal(t, 5, n)
	assert.Equal(t, "SPRING", c.Store().String(models.AttrCode))
	assert.Equal(t, 40.0, number(t, c.Store(), models.AttrPrice))
}

func TestEditLocks(t *testing.T) {
	c := newEdit(t, editRecord(), Options{})

	for _, attr := range []string{models.AttrCouponType, models.AttrVoucherType, models.AttrCode, models.AttrQuantity} {
		t.Run(attr, func(t *testing.T) {
			assert.ErrorIs(t, c.Set(attr, "x"), ErrReadOnly)
		})
	}
	assert.Equal(t, "SPRING", c.Store().String(models.AttrCode))
}

func TestEditMaxUsesCannotShrink(t *testing.T) {
	c := newEdit(t, editRecord(), Options{})
	mustSet(t, c, models.AttrMaxUses, 3)

	errs := c.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "Ensure this value is greater than or equal to 5.", errs[0].Message())
}

func TestEditAutoSelectsSeat(t *testing.T) {
	cases := []struct {
		name   string
		stored string
		want   string
	}{
		{"capitalized match", "verified", "Verified"},
		{"case-insensitive match", "VERIFIED", "Verified"},
		{"no longer offered", "honor", "honor"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loop := &queueLoop{}
			rec := editRecord()
			rec[models.AttrSeatType] = tc.stored
			c := newEdit(t, rec, Options{
				Lookup: fixedSeats(map[string][]models.SeatOffering{"ABC": {verified}}),
				Loop:   loop,
				Runner: syncRunner{},
			})
			require.True(t, c.SeatsPending())

			loop.drain()

			assert.Equal(t, tc.want, c.Store().String(models.AttrSeatType))
			assert.Equal(t, []int{1}, c.Store().Ints(models.AttrStockRecordIDs))
			assert.Equal(t, 40.0, number(t, c.Store(), models.AttrPrice), "edit never reprices")
		})
	}
}

func TestRevert(t *testing.T) {
	newController := func(t *testing.T) (*Controller, *queueLoop) {
		loop := &queueLoop{}
		c := newEdit(t, editRecord(), Options{
			Lookup: fixedSeats(map[string][]models.SeatOffering{
				"ABC": {verified},
				"XYZ": {{DisplayName: "Professional", Price: 100, StockRecordIDs: []int{9}}},
			}),
			Loop:   loop,
			Runner: syncRunner{},
		})
		loop.drain()
		return c, loop
	}

	t.Run("same course", func(t *testing.T) {
		c, _ := newController(t)
		mustSet(t, c, models.AttrTitle, "Changed")
		mustSet(t, c, models.AttrBenefitValue, 99)

		require.NoError(t, c.Revert())
		assert.Equal(t, "Spring", c.Store().String(models.AttrTitle))
		assert.Equal(t, 10.0, number(t, c.Store(), models.AttrBenefitValue))
		assert.Equal(t, "Verified", c.Store().String(models.AttrSeatType))
		assert.False(t, c.SeatsPending())
	})

	t.Run("diverged course", func(t *testing.T) {
		c, loop := newController(t)
		mustSet(t, c, models.AttrTitle, "Changed")
		mustSet(t, c, models.AttrCourseID, "XYZ")
		loop.drain()
		assert.Equal(t, []string{"Professional"}, c.SeatOptions())

		require.NoError(t, c.Revert())
		assert.Equal(t, "Spring", c.Store().String(models.AttrTitle))
		assert.Equal(t, "ABC", c.Store().String(models.AttrCourseID))
		assert.False(t, c.Store().Has(models.AttrSeatType), "seat fields are re-derived, not restored")
		assert.True(t, c.SeatsPending())

		loop.drain()
		assert.Equal(t, "Verified", c.Store().String(models.AttrSeatType))
		assert.Equal(t, []int{1}, c.Store().Ints(models.AttrStockRecordIDs))
		assert.NoError(t, c.CheckInvariants())
	})
}

func TestSubmitEdit(t *testing.T) {
	var (
		gotID  int64
		gotRec models.Attributes
	)
	p := &stubPersister{updateFn: func(_ context.Context, id int64, rec models.Attributes) error {
		gotID, gotRec = id, rec
		return nil
	}}
	c := newEdit(t, editRecord(), Options{Persister: p})
	mustSet(t, c, models.AttrTitle, "Summer")

	res, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SubmitResult{CouponID: 5}, res)
	assert.EqualValues(t, 5, gotID)
	assert.NotContains(t, gotRec, models.AttrID)
	assert.Equal(t, "Summer", gotRec[models.AttrTitle])
}

func TestStaleLookupIsDiscarded(t *testing.T) {
	loop := &queueLoop{}
	runner := &heldRunner{}
	var seen outcomes
	c := newCreate(t, Options{
		Lookup: fixedSeats(map[string][]models.SeatOffering{
			"A": {{DisplayName: "Audit", StockRecordIDs: []int{3}}},
			"B": {verified},
		}),
		Loop:     loop,
		Runner:   runner,
		Observer: &seen,
	})

	mustSet(t, c, models.AttrCourseID, "A")
	mustSet(t, c, models.AttrCourseID, "B")
	require.Len(t, runner.tasks, 2)

	runner.run(0)
	loop.drain()
	assert.Empty(t, c.SeatOptions())
	assert.True(t, c.SeatsPending(), "the lookup for B is still in flight")

	runner.run(1)
	loop.drain()
	assert.Equal(t, []string{"Verified"}, c.SeatOptions())
	assert.False(t, c.SeatsPending())
	assert.Equal(t, outcomes{"stale", "ok"}, seen)
}

func TestLookupFailureLeavesOptionsEmpty(t *testing.T) {
	loop := &queueLoop{}
	var seen outcomes
	c := newCreate(t, Options{
		Lookup:   fixedSeats(nil),
		Loop:     loop,
		Runner:   syncRunner{},
		Observer: &seen,
	})
	mustSet(t, c, models.AttrCourseID, "GONE")
	loop.drain()

	assert.Empty(t, c.SeatOptions())
	assert.False(t, c.SeatsPending())
	assert.Equal(t, outcomes{"error"}, seen)

	mustSet(t, c, models.AttrCourseID, "GONE2")
	loop.drain()
	assert.Equal(t, outcomes{"error", "error"}, seen)
}

func TestCreditSeatIsNeverOffered(t *testing.T) {
	loop := &queueLoop{}
	c := newCreate(t, Options{
		Lookup: fixedSeats(map[string][]models.SeatOffering{"ABC": {
			{DisplayName: models.SeatTypeCredit, Price: 300, StockRecordIDs: []int{8}},
			verified,
		}}),
		Loop:   loop,
		Runner: syncRunner{},
	})
	mustSet(t, c, models.AttrCourseID, "ABC")
	loop.drain()
	assert.Equal(t, []string{"Verified"}, c.SeatOptions())
}

func TestLookupRequiresLoop(t *testing.T) {
	_, err := NewCreate(Options{Lookup: fixedSeats(nil)})
	assert.Error(t, err)
}
