package form

import (
	"math"
	"sort"

	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

// FieldGroup is a set of form fields shown, hidden and reset together.
type FieldGroup string

const (
	GroupCourse             FieldGroup = "course"         // course_id, seat_type
	GroupCourseCatalog      FieldGroup = "course_catalog" // course_catalog, enterprise_customer
	GroupCatalogQuery       FieldGroup = "catalog_query"  // catalog_query, course_seat_types
	GroupProgram            FieldGroup = "program"        // program_uuid
	GroupBenefit            FieldGroup = "benefit"        // benefit_type, benefit_value
	GroupCode               FieldGroup = "code"
	GroupQuantity           FieldGroup = "quantity"
	GroupMaxUses            FieldGroup = "max_uses"
	GroupInvoiceNumber      FieldGroup = "invoice_number"
	GroupInvoicePaymentDate FieldGroup = "invoice_payment_date"
	GroupPrice              FieldGroup = "price"
	GroupInvoiceDiscount    FieldGroup = "invoice_discount" // invoice_discount_type, invoice_discount_value
	GroupTaxDeduction       FieldGroup = "tax_deduction"
	GroupTaxDeductedSource  FieldGroup = "tax_deducted_source" // tax_deducted_source_value
)

// AllGroups lists every field group.
var AllGroups = []FieldGroup{
	GroupCourse, GroupCourseCatalog, GroupCatalogQuery, GroupProgram,
	GroupBenefit, GroupCode, GroupQuantity, GroupMaxUses,
	GroupInvoiceNumber, GroupInvoicePaymentDate, GroupPrice,
	GroupInvoiceDiscount, GroupTaxDeduction, GroupTaxDeductedSource,
}

// scopeGroups pairs every catalog_type value with the group it shows.
var scopeGroups = map[string]FieldGroup{
	models.CatalogSingleCourse:    GroupCourse,
	models.CatalogCatalog:         GroupCourseCatalog,
	models.CatalogMultipleCourses: GroupCatalogQuery,
	models.CatalogProgram:         GroupProgram,
}

// Limit bounds a numeric attribute. A nil Max is unbounded.
type Limit struct {
	Min float64  `json:"min"`
	Max *float64 `json:"max,omitempty"`
}

// Contains reports whether v lies within the limit.
func (l Limit) Contains(v float64) bool {
	if math.IsNaN(v) || v < l.Min {
		return false
	}
	return l.Max == nil || v <= *l.Max
}

func bounded(min, max float64) Limit { return Limit{Min: min, Max: &max} }

func atLeast(min float64) Limit { return Limit{Min: min} }

// Reset is one attribute write requested by a plan. Unset removes the
// attribute; otherwise Value is written.
type Reset struct {
	Attr  string
	Value any
	Unset bool
}

// Plan is the output of one derivation pass.
type Plan struct {
	Visible map[FieldGroup]bool
	Resets  []Reset
	Limits  map[string]Limit
}

func newPlan() *Plan {
	return &Plan{
		Visible: make(map[FieldGroup]bool),
		Limits:  make(map[string]Limit),
	}
}

func (p *Plan) show(groups ...FieldGroup) {
	for _, g := range groups {
		p.Visible[g] = true
	}
}

func (p *Plan) hide(groups ...FieldGroup) {
	for _, g := range groups {
		p.Visible[g] = false
	}
}

func (p *Plan) set(attr string, value any) {
	p.Resets = append(p.Resets, Reset{Attr: attr, Value: value})
}

func (p *Plan) clear(attrs ...string) {
	for _, a := range attrs {
		p.Resets = append(p.Resets, Reset{Attr: a, Unset: true})
	}
}

func (p *Plan) limit(attr string, l Limit) {
	p.Limits[attr] = l
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Visible) == 0 && len(p.Resets) == 0 && len(p.Limits) == 0
}

// Shown returns the groups the plan makes visible, sorted.
func (p Plan) Shown() []FieldGroup {
	out := make([]FieldGroup, 0, len(p.Visible))
	for g, v := range p.Visible {
		if v {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
