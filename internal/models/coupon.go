package models

import "time"

// Attribute names carried by a coupon form. They double as the JSON keys of a
// persisted coupon record.
const (
	AttrID                     = "id"
	AttrTitle                  = "title"
	AttrCategory               = "category"
	AttrClient                 = "client"
	AttrStartDate              = "start_date"
	AttrEndDate                = "end_date"
	AttrNote                   = "note"
	AttrCatalogType            = "catalog_type"
	AttrCouponType             = "coupon_type"
	AttrVoucherType            = "voucher_type"
	AttrCode                   = "code"
	AttrQuantity               = "quantity"
	AttrMaxUses                = "max_uses"
	AttrBenefitType            = "benefit_type"
	AttrBenefitValue           = "benefit_value"
	AttrInvoiceType            = "invoice_type"
	AttrInvoiceNumber          = "invoice_number"
	AttrInvoicePaymentDate     = "invoice_payment_date"
	AttrInvoiceDiscountType    = "invoice_discount_type"
	AttrInvoiceDiscountValue   = "invoice_discount_value"
	AttrTaxDeduction           = "tax_deduction"
	AttrTaxDeductedSourceValue = "tax_deducted_source_value"
	AttrCourseID               = "course_id"
	AttrSeatType               = "seat_type"
	AttrStockRecordIDs         = "stock_record_ids"
	AttrCourseSeatTypes        = "course_seat_types"
	AttrCatalogQuery           = "catalog_query"
	AttrCourseCatalog          = "course_catalog"
	AttrEnterpriseCustomer     = "enterprise_customer"
	AttrProgramUUID            = "program_uuid"
	AttrEmailDomains           = "email_domains"
	AttrTotalValue             = "total_value"
	AttrPrice                  = "price"
)

// catalog_type values
const (
	CatalogSingleCourse    = "single_course"
	CatalogCatalog         = "catalog"
	CatalogMultipleCourses = "multiple_courses"
	CatalogProgram         = "program"
)

// coupon_type values
const (
	CouponEnrollmentCode = "enrollment_code"
	CouponDiscountCode   = "discount_code"
)

// voucher_type values
const (
	VoucherSingleUse       = "single_use"
	VoucherOncePerCustomer = "once_per_customer"
	VoucherMultiUse        = "multi_use"
)

// benefit_type and invoice_discount_type values
const (
	BenefitPercentage = "percentage"
	BenefitAbsolute   = "absolute"
)

// invoice_type values
const (
	InvoicePrepaid       = "prepaid"
	InvoicePostpaid      = "postpaid"
	InvoiceNotApplicable = "not_applicable"
)

// tax_deduction values
const (
	TaxDeductionYes = "yes"
	TaxDeductionNo  = "no"
)

// SeatTypeCredit is the reserved seat type that is only selectable through
// course_seat_types=[credit], never through the seat type dropdown.
const (
	SeatTypeCredit   = "Credit"
	CourseSeatCredit = "credit"
)

// CatalogTypes lists the scope axis values in a stable order.
var CatalogTypes = []string{
	CatalogSingleCourse,
	CatalogCatalog,
	CatalogMultipleCourses,
	CatalogProgram,
}

// ScopeAttributes maps every catalog_type value to the attributes it owns
// exclusively. When catalog_type takes one value, the attributes owned by the
// other values must be unset.
var ScopeAttributes = map[string][]string{
	CatalogSingleCourse:    {AttrCourseID, AttrSeatType, AttrStockRecordIDs},
	CatalogCatalog:         {AttrCourseCatalog, AttrEnterpriseCustomer},
	CatalogMultipleCourses: {AttrCatalogQuery, AttrCourseSeatTypes},
	CatalogProgram:         {AttrProgramUUID},
}

// RefItem is an {id, name} pair rehydrated from a reference collection.
type RefItem struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// SeatOffering is a purchasable variant of a course.
type SeatOffering struct {
	DisplayName    string  `json:"displayName"`
	Price          float64 `json:"price"`
	StockRecordIDs []int   `json:"stockRecordIds"`
}

// Attributes is the record handed to persistence: attribute name to value.
type Attributes map[string]any

// Clone returns a shallow copy with slice values copied.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		switch t := v.(type) {
		case []int:
			out[k] = append([]int(nil), t...)
		case []string:
			out[k] = append([]string(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}

// Coupon is a persisted coupon. The indexed columns are copied out of
// Attributes on every write.
type Coupon struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Code        string     `json:"code,omitempty"`
	CatalogType string     `json:"catalog_type"`
	CouponType  string     `json:"coupon_type"`
	Attributes  Attributes `json:"attributes"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Record returns the attributes with the id attribute filled in, the shape
// an edit form is seeded from.
func (c Coupon) Record() Attributes {
	rec := c.Attributes.Clone()
	rec[AttrID] = c.ID
	return rec
}

// CouponFilter narrows a coupon listing. Empty fields match everything.
type CouponFilter struct {
	Title       string
	Code        string
	CatalogType string
	CouponType  string
	Limit       int
	Offset      int
}
