package form

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

// Kind is the storage type of an attribute.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindNumber
	KindStrings
	KindInts
	KindRef
)

var attributeKinds = map[string]Kind{
	models.AttrID:                     KindInt,
	models.AttrTitle:                  KindString,
	models.AttrCategory:               KindString,
	models.AttrClient:                 KindString,
	models.AttrStartDate:              KindString,
	models.AttrEndDate:                KindString,
	models.AttrNote:                   KindString,
	models.AttrCatalogType:            KindString,
	models.AttrCouponType:             KindString,
	models.AttrVoucherType:            KindString,
	models.AttrCode:                   KindString,
	models.AttrQuantity:               KindInt,
	models.AttrMaxUses:                KindInt,
	models.AttrBenefitType:            KindString,
	models.AttrBenefitValue:           KindNumber,
	models.AttrInvoiceType:            KindString,
	models.AttrInvoiceNumber:          KindString,
	models.AttrInvoicePaymentDate:     KindString,
	models.AttrInvoiceDiscountType:    KindString,
	models.AttrInvoiceDiscountValue:   KindNumber,
	models.AttrTaxDeduction:           KindString,
	models.AttrTaxDeductedSourceValue: KindNumber,
	models.AttrCourseID:               KindString,
	models.AttrSeatType:               KindString,
	models.AttrStockRecordIDs:         KindInts,
	models.AttrCourseSeatTypes:        KindStrings,
	models.AttrCatalogQuery:           KindString,
	models.AttrCourseCatalog:          KindRef,
	models.AttrEnterpriseCustomer:     KindRef,
	models.AttrProgramUUID:            KindString,
	models.AttrEmailDomains:           KindString,
	models.AttrTotalValue:             KindNumber,
	models.AttrPrice:                  KindNumber,
}

// enumValues restricts string attributes to a closed set.
var enumValues = map[string][]string{
	models.AttrCatalogType:         models.CatalogTypes,
	models.AttrCouponType:          {models.CouponEnrollmentCode, models.CouponDiscountCode},
	models.AttrVoucherType:         {models.VoucherSingleUse, models.VoucherOncePerCustomer, models.VoucherMultiUse},
	models.AttrBenefitType:         {models.BenefitPercentage, models.BenefitAbsolute},
	models.AttrInvoiceDiscountType: {models.BenefitPercentage, models.BenefitAbsolute},
	models.AttrInvoiceType:         {models.InvoicePrepaid, models.InvoicePostpaid, models.InvoiceNotApplicable},
	models.AttrTaxDeduction:        {models.TaxDeductionYes, models.TaxDeductionNo},
}

// KindOf reports the kind of a known attribute.
func KindOf(name string) (Kind, bool) {
	k, ok := attributeKinds[name]
	return k, ok
}

// Coerce converts a client-supplied value into the stored representation of
// attribute name. A nil result means the attribute should be unset.
func Coerce(name string, value any) (any, error) {
	kind, ok := attributeKinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	if value == nil {
		return nil, nil
	}

	var (
		out any
		err error
	)
	switch kind {
	case KindString:
		out, err = coerceString(value)
	case KindInt:
		out, err = coerceInt(value)
	case KindNumber:
		out, err = coerceNumber(value)
	case KindStrings:
		out, err = coerceStrings(value)
	case KindInts:
		out, err = coerceInts(value)
	case KindRef:
		out, err = coerceRef(value)
	}
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", name, err)
	}
	if out == nil {
		return nil, nil
	}

	switch name {
	case models.AttrEmailDomains:
		out = normalizeDomains(out.(string))
	case models.AttrCourseSeatTypes:
		out = lo.Map(out.([]string), func(s string, _ int) string { return strings.ToLower(s) })
	}

	if allowed, ok := enumValues[name]; ok {
		s := out.(string)
		if s == "" {
			return nil, nil
		}
		if !lo.Contains(allowed, s) {
			return nil, fmt.Errorf("attribute %s: %q is not one of %v", name, s, allowed)
		}
	}
	return out, nil
}

func coerceString(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case fmt.Stringer:
		return t.String(), nil
	}
	return nil, fmt.Errorf("expected a string, got %T", v)
}

func coerceInt(v any) (any, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return nil, fmt.Errorf("expected a whole number, got %v", t)
		}
		return int(t), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("expected a whole number, got %q", t)
		}
		return n, nil
	}
	return nil, fmt.Errorf("expected a whole number, got %T", v)
}

func coerceNumber(v any) (any, error) {
	f, err := parseNumber(v)
	if err != nil || f == nil {
		return f, err
	}
	if n := f.(float64); math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("expected a finite number, got %v", n)
	}
	return f, nil
}

func parseNumber(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", t)
		}
		return f, nil
	}
	return nil, fmt.Errorf("expected a number, got %T", v)
}

func coerceStrings(v any) (any, error) {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a list of strings, got element %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		parts := strings.Split(t, ",")
		return lo.Map(parts, func(s string, _ int) string { return strings.TrimSpace(s) }), nil
	}
	return nil, fmt.Errorf("expected a list of strings, got %T", v)
}

func coerceInts(v any) (any, error) {
	switch t := v.(type) {
	case []int:
		return append([]int(nil), t...), nil
	case []any:
		out := make([]int, 0, len(t))
		for _, item := range t {
			n, err := coerceInt(item)
			if err != nil {
				return nil, err
			}
			if n == nil {
				continue
			}
			out = append(out, n.(int))
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of integers, got %T", v)
}

// coerceRef accepts a bare id or an {id, name} object. A bare id produces a
// RefItem without a name; the controller rehydrates it.
func coerceRef(v any) (any, error) {
	switch t := v.(type) {
	case models.RefItem:
		return t, nil
	case map[string]any:
		id, ok := t["id"]
		if !ok {
			return nil, fmt.Errorf("reference is missing an id")
		}
		ref, err := coerceRef(id)
		if err != nil {
			return nil, err
		}
		item := ref.(models.RefItem)
		if name, ok := t["name"].(string); ok {
			item.Name = name
		}
		return item, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		return models.RefItem{ID: strings.TrimSpace(t)}, nil
	case float64, int:
		s, _ := coerceString(t)
		return models.RefItem{ID: s.(string)}, nil
	}
	return nil, fmt.Errorf("expected a reference id, got %T", v)
}

func normalizeDomains(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
