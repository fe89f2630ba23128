package form

import (
	"github.com/samber/lo"

	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

// Input is what a derivation pass needs besides the store.
type Input struct {
	// Changed is the attribute whose change triggered the pass.
	Changed string
	// Previous is the value Changed held before the write, nil if unset.
	Previous any
	// Seat is the offering matching the current seat_type, if one is known.
	Seat *models.SeatOffering
}

// rule fires when its trigger attribute changed and its condition holds.
// Each rule only writes attributes outside the axis that triggered it, which
// keeps the reconciliation cascade finite.
type rule struct {
	name    string
	trigger string
	when    func(a Attributes) bool
	then    func(a Attributes, in Input, p *Plan)
}

func is(attr, value string) func(Attributes) bool {
	return func(a Attributes) bool { return a.String(attr) == value }
}

func discountCode(a Attributes) bool {
	return a.String(models.AttrCouponType) == models.CouponDiscountCode
}

var rules = buildRules()

func buildRules() []rule {
	var rs []rule
	for _, ct := range models.CatalogTypes {
		rs = append(rs, scopeRule(ct))
	}
	rs = append(rs, couponTypeRules...)
	rs = append(rs, voucherTypeRules...)
	rs = append(rs, codeQuantityRules...)
	rs = append(rs, seatRules...)
	rs = append(rs, invoiceRules...)
	rs = append(rs, limitRules...)
	return rs
}

// scopeRule shows the group owned by catalog_type value ct and unsets every
// attribute owned by the other values.
func scopeRule(ct string) rule {
	return rule{
		name:    "catalog_type=" + ct,
		trigger: models.AttrCatalogType,
		when:    is(models.AttrCatalogType, ct),
		then: func(a Attributes, in Input, p *Plan) {
			if ct != models.CatalogSingleCourse && in.Previous == models.CatalogSingleCourse && !a.Editing() {
				// Totals priced from a seat leave with the course.
				p.clear(models.AttrTotalValue)
				if a.String(models.AttrInvoiceType) == models.InvoicePrepaid {
					p.clear(models.AttrPrice)
				}
			}
			for _, other := range models.CatalogTypes {
				if other == ct {
					p.show(scopeGroups[other])
					continue
				}
				p.hide(scopeGroups[other])
				p.clear(models.ScopeAttributes[other]...)
			}
		},
	}
}

var couponTypeRules = []rule{
	{
		name:    "coupon_type=discount_code",
		trigger: models.AttrCouponType,
		when:    is(models.AttrCouponType, models.CouponDiscountCode),
		then: func(a Attributes, in Input, p *Plan) {
			p.show(GroupBenefit, GroupQuantity)
			if !a.Editing() {
				p.set(models.AttrCode, "")
			}
			setCodeVisibility(a, p)
		},
	},
	{
		name:    "coupon_type=enrollment_code",
		trigger: models.AttrCouponType,
		when:    is(models.AttrCouponType, models.CouponEnrollmentCode),
		then: func(a Attributes, in Input, p *Plan) {
			p.hide(GroupBenefit, GroupCode)
			p.show(GroupQuantity)
			p.clear(models.AttrBenefitValue)
			if !a.Editing() {
				p.set(models.AttrCode, "")
			}
		},
	},
}

var voucherTypeRules = []rule{
	{
		name:    "voucher_type=single_use",
		trigger: models.AttrVoucherType,
		when:    is(models.AttrVoucherType, models.VoucherSingleUse),
		then: func(a Attributes, in Input, p *Plan) {
			p.hide(GroupMaxUses)
			if !a.Editing() {
				p.clear(models.AttrMaxUses)
				p.set(models.AttrCode, "")
			}
		},
	},
	{
		name:    "voucher_type=once_per_customer",
		trigger: models.AttrVoucherType,
		when:    is(models.AttrVoucherType, models.VoucherOncePerCustomer),
		then: func(a Attributes, in Input, p *Plan) {
			p.show(GroupMaxUses)
			p.limit(models.AttrMaxUses, atLeast(1))
			if !a.Editing() {
				p.set(models.AttrMaxUses, 1)
				p.set(models.AttrCode, "")
			}
		},
	},
	{
		name:    "voucher_type=multi_use",
		trigger: models.AttrVoucherType,
		when:    is(models.AttrVoucherType, models.VoucherMultiUse),
		then: func(a Attributes, in Input, p *Plan) {
			p.show(GroupMaxUses)
			if !a.Editing() {
				p.clear(models.AttrMaxUses)
				p.limit(models.AttrMaxUses, atLeast(2))
				return
			}
			min := 2
			if n, ok := a.Int(models.AttrMaxUses); ok {
				min = n
			}
			p.limit(models.AttrMaxUses, atLeast(float64(min)))
		},
	},
	{
		name:    "voucher_type code visibility",
		trigger: models.AttrVoucherType,
		when:    discountCode,
		then: func(a Attributes, in Input, p *Plan) {
			setCodeVisibility(a, p)
		},
	},
}

// setCodeVisibility shows the code field iff quantity is 1 or the voucher can
// be redeemed more than once.
func setCodeVisibility(a Attributes, p *Plan) {
	q, _ := a.Int(models.AttrQuantity)
	if q == 1 || a.String(models.AttrVoucherType) != models.VoucherSingleUse {
		p.show(GroupCode)
		return
	}
	p.hide(GroupCode)
}

var codeQuantityRules = []rule{
	{
		name:    "code without discount",
		trigger: models.AttrCode,
		when: func(a Attributes) bool {
			return !a.Editing() && !discountCode(a) && a.String(models.AttrCode) != ""
		},
		then: func(a Attributes, in Input, p *Plan) {
			p.set(models.AttrCode, "")
		},
	},
	{
		name:    "code set",
		trigger: models.AttrCode,
		when: func(a Attributes) bool {
			return discountCode(a) && a.String(models.AttrCode) != ""
		},
		then: func(a Attributes, in Input, p *Plan) {
			p.hide(GroupQuantity)
			p.set(models.AttrQuantity, 1)
		},
	},
	{
		name:    "code cleared",
		trigger: models.AttrCode,
		when: func(a Attributes) bool {
			return discountCode(a) && a.String(models.AttrCode) == ""
		},
		then: func(a Attributes, in Input, p *Plan) {
			p.show(GroupQuantity)
		},
	},
	{
		name:    "quantity limit",
		trigger: models.AttrQuantity,
		then: func(a Attributes, in Input, p *Plan) {
			p.limit(models.AttrQuantity, atLeast(1))
		},
	},
	{
		name:    "quantity!=1",
		trigger: models.AttrQuantity,
		when: func(a Attributes) bool {
			q, _ := a.Int(models.AttrQuantity)
			return discountCode(a) && q != 1
		},
		then: func(a Attributes, in Input, p *Plan) {
			p.hide(GroupCode)
			if !a.Editing() {
				p.set(models.AttrCode, "")
			}
		},
	},
	{
		name:    "quantity=1",
		trigger: models.AttrQuantity,
		when: func(a Attributes) bool {
			q, _ := a.Int(models.AttrQuantity)
			return discountCode(a) && q == 1
		},
		then: func(a Attributes, in Input, p *Plan) {
			p.show(GroupCode)
		},
	},
	{
		name:    "quantity total",
		trigger: models.AttrQuantity,
		when:    pricedFromSeat,
		then: func(a Attributes, in Input, p *Plan) {
			if in.Seat != nil {
				setTotals(a, *in.Seat, p)
			}
		},
	},
}

// pricedFromSeat holds when price and total_value follow the selected seat:
// a single-course coupon being created.
func pricedFromSeat(a Attributes) bool {
	return !a.Editing() && a.String(models.AttrCatalogType) == models.CatalogSingleCourse
}

func setTotals(a Attributes, seat models.SeatOffering, p *Plan) {
	q, ok := a.Int(models.AttrQuantity)
	if !ok {
		return
	}
	total := ComputeTotal(seat, q)
	p.set(models.AttrTotalValue, total)
	switch a.String(models.AttrInvoiceType) {
	case models.InvoicePostpaid, models.InvoiceNotApplicable:
	default:
		p.set(models.AttrPrice, total)
	}
}

var seatRules = []rule{
	{
		name:    "course_id changed",
		trigger: models.AttrCourseID,
		then: func(a Attributes, in Input, p *Plan) {
			p.clear(models.AttrSeatType, models.AttrStockRecordIDs)
		},
	},
	{
		name:    "seat_type selected",
		trigger: models.AttrSeatType,
		then: func(a Attributes, in Input, p *Plan) {
			if in.Seat == nil {
				p.clear(models.AttrStockRecordIDs)
				return
			}
			p.set(models.AttrStockRecordIDs, append([]int(nil), in.Seat.StockRecordIDs...))
			if pricedFromSeat(a) {
				setTotals(a, *in.Seat, p)
			}
		},
	},
	{
		name:    "course_seat_types credit exclusivity",
		trigger: models.AttrCourseSeatTypes,
		when: func(a Attributes) bool {
			types := a.Strings(models.AttrCourseSeatTypes)
			return len(types) > 1 && lo.Contains(types, models.CourseSeatCredit)
		},
		then: func(a Attributes, in Input, p *Plan) {
			prev, _ := in.Previous.([]string)
			if lo.Contains(prev, models.CourseSeatCredit) {
				// A non-credit seat was ticked while credit was selected.
				p.set(models.AttrCourseSeatTypes, lo.Without(a.Strings(models.AttrCourseSeatTypes), models.CourseSeatCredit))
				return
			}
			p.set(models.AttrCourseSeatTypes, []string{models.CourseSeatCredit})
		},
	},
}

var invoiceRules = []rule{
	{
		name:    "invoice_type=postpaid",
		trigger: models.AttrInvoiceType,
		when:    is(models.AttrInvoiceType, models.InvoicePostpaid),
		then: func(a Attributes, in Input, p *Plan) {
			p.show(GroupInvoiceDiscount, GroupTaxDeduction)
			p.hide(GroupInvoiceNumber, GroupInvoicePaymentDate, GroupPrice)
			p.clear(models.AttrInvoiceNumber, models.AttrInvoicePaymentDate)
			p.set(models.AttrPrice, 0)
		},
	},
	{
		name:    "invoice_type=prepaid",
		trigger: models.AttrInvoiceType,
		when:    is(models.AttrInvoiceType, models.InvoicePrepaid),
		then: func(a Attributes, in Input, p *Plan) {
			p.show(GroupInvoiceNumber, GroupInvoicePaymentDate, GroupPrice, GroupTaxDeduction)
			p.hide(GroupInvoiceDiscount)
			p.clear(models.AttrInvoiceDiscountValue)
			if pricedFromSeat(a) && in.Seat != nil {
				setTotals(a, *in.Seat, p)
			}
		},
	},
	{
		name:    "invoice_type=not_applicable",
		trigger: models.AttrInvoiceType,
		when:    is(models.AttrInvoiceType, models.InvoiceNotApplicable),
		then: func(a Attributes, in Input, p *Plan) {
			p.hide(GroupInvoiceNumber, GroupInvoicePaymentDate, GroupInvoiceDiscount,
				GroupTaxDeductedSource, GroupTaxDeduction, GroupPrice)
			p.clear(models.AttrInvoiceNumber, models.AttrInvoicePaymentDate,
				models.AttrInvoiceDiscountValue, models.AttrTaxDeductedSourceValue)
			p.set(models.AttrTaxDeduction, models.TaxDeductionNo)
			p.set(models.AttrPrice, 0)
		},
	},
	{
		name:    "tax_deduction=yes",
		trigger: models.AttrTaxDeduction,
		when:    is(models.AttrTaxDeduction, models.TaxDeductionYes),
		then: func(a Attributes, in Input, p *Plan) {
			p.show(GroupTaxDeductedSource)
			p.limit(models.AttrTaxDeductedSourceValue, bounded(1, 100))
		},
	},
	{
		name:    "tax_deduction=no",
		trigger: models.AttrTaxDeduction,
		when:    is(models.AttrTaxDeduction, models.TaxDeductionNo),
		then: func(a Attributes, in Input, p *Plan) {
			p.hide(GroupTaxDeductedSource)
			p.clear(models.AttrTaxDeductedSourceValue)
		},
	},
}

// limitRules pair each kind selector with the magnitude field it bounds.
var limitRules = []rule{
	kindLimitRule(models.AttrBenefitType, models.AttrBenefitValue),
	kindLimitRule(models.AttrInvoiceDiscountType, models.AttrInvoiceDiscountValue),
}

func kindLimitRule(kindAttr, valueAttr string) rule {
	return rule{
		name:    kindAttr + " limits",
		trigger: kindAttr,
		then: func(a Attributes, in Input, p *Plan) {
			switch a.String(kindAttr) {
			case models.BenefitPercentage:
				p.limit(valueAttr, bounded(1, 100))
			case models.BenefitAbsolute:
				p.limit(valueAttr, atLeast(1))
			}
		},
	}
}
