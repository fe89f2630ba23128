package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Cheertaboi/coupon-form-service/internal/cache"
	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

// CouponRepo is the storage the service writes through (use an interface to
// allow mocking).
type CouponRepo interface {
	Insert(ctx context.Context, c *models.Coupon) error
	Update(ctx context.Context, c *models.Coupon) error
	Get(ctx context.Context, id int64) (*models.Coupon, error)
	CodeExists(ctx context.Context, code string, exceptID int64) (bool, error)
	List(ctx context.Context, f models.CouponFilter) ([]*models.Coupon, error)
	Delete(ctx context.Context, id int64) error
}

// Categories reports whether a coupon category exists.
type Categories interface {
	HasCategory(name string) bool
}

// CouponService validates finished coupon records and persists them. It is
// the persistence collaborator of the form controller.
type CouponService struct {
	repo       CouponRepo
	categories Categories
	cache      *cache.Cache[*models.Coupon]
	log        *slog.Logger
}

func NewCouponService(repo CouponRepo, cacheTTL time.Duration, logger *slog.Logger) *CouponService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CouponService{
		repo:  repo,
		cache: cache.New[*models.Coupon](cacheTTL),
		log:   logger.With("component", "coupon_service"),
	}
}

// WithCategories makes validation reject categories missing from c.
func (s *CouponService) WithCategories(c Categories) *CouponService {
	s.categories = c
	return s
}

// Create validates rec and stores it as a new coupon.
func (s *CouponService) Create(ctx context.Context, rec models.Attributes) (int64, error) {
	rec = rec.Clone()
	if err := s.validate(ctx, rec, 0); err != nil {
		return 0, err
	}
	c := couponFrom(rec)
	if err := s.repo.Insert(ctx, c); err != nil {
		return 0, err
	}
	s.log.Info("coupon created", "coupon_id", c.ID, "title", c.Title, "coupon_type", c.CouponType)
	return c.ID, nil
}

// Update validates rec and overwrites coupon id.
func (s *CouponService) Update(ctx context.Context, id int64, rec models.Attributes) error {
	rec = rec.Clone()
	delete(rec, models.AttrID)
	if err := s.validate(ctx, rec, id); err != nil {
		return err
	}
	c := couponFrom(rec)
	c.ID = id
	if err := s.repo.Update(ctx, c); err != nil {
		return err
	}
	s.cache.Delete(cacheKey(id))
	s.log.Info("coupon updated", "coupon_id", id)
	return nil
}

// Get loads a stored coupon.
func (s *CouponService) Get(ctx context.Context, id int64) (*models.Coupon, error) {
	if c, ok := s.cache.Get(cacheKey(id)); ok {
		return c, nil
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey(id), c)
	return c, nil
}

// List returns the stored coupons matching f.
func (s *CouponService) List(ctx context.Context, f models.CouponFilter) ([]*models.Coupon, error) {
	return s.repo.List(ctx, f)
}

// Delete removes coupon id.
func (s *CouponService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Delete(cacheKey(id))
	s.log.Info("coupon deleted", "coupon_id", id)
	return nil
}

func cacheKey(id int64) string { return strconv.FormatInt(id, 10) }

func couponFrom(rec models.Attributes) *models.Coupon {
	return &models.Coupon{
		Title:       str(rec, models.AttrTitle),
		Code:        str(rec, models.AttrCode),
		CatalogType: str(rec, models.AttrCatalogType),
		CouponType:  str(rec, models.AttrCouponType),
		Attributes:  rec,
	}
}

// validate checks rec and normalizes enrollment codes in place. exceptID is
// the coupon being updated, 0 on create.
func (s *CouponService) validate(ctx context.Context, rec models.Attributes, exceptID int64) error {
	fe := models.FieldErrors{}

	for _, attr := range []string{models.AttrTitle, models.AttrCategory} {
		if strings.TrimSpace(str(rec, attr)) == "" {
			fe.Add(attr, "This field is required.")
		}
	}
	if category := strings.TrimSpace(str(rec, models.AttrCategory)); category != "" &&
		s.categories != nil && !s.categories.HasCategory(category) {
		fe.Add(models.AttrCategory, fmt.Sprintf("Category %q not found.", category))
	}

	code := str(rec, models.AttrCode)
	switch str(rec, models.AttrCouponType) {
	case models.CouponEnrollmentCode:
		if code != "" {
			fe.Add(models.AttrCode, "Enrollment codes cannot carry a custom code.")
		}
		rec[models.AttrBenefitType] = models.BenefitPercentage
		rec[models.AttrBenefitValue] = float64(100)
	case models.CouponDiscountCode:
		validateBenefit(rec, fe)
	default:
		fe.Add(models.AttrCouponType, "Select a valid coupon type.")
	}

	if code != "" {
		exists, err := s.repo.CodeExists(ctx, code, exceptID)
		if err != nil {
			return fmt.Errorf("validate coupon: %w", err)
		}
		if exists {
			fe.Add(models.AttrCode, fmt.Sprintf("A coupon with code %s already exists.", code))
		}
	}

	validateDates(rec, fe)

	if n, set := num(rec, models.AttrMaxUses); set {
		if str(rec, models.AttrVoucherType) == models.VoucherSingleUse {
			fe.Add(models.AttrMaxUses, fmt.Sprintf("max_uses cannot be set for voucher type [%s].", models.VoucherSingleUse))
		} else if n < 1 {
			fe.Add(models.AttrMaxUses, "max_uses field must be a positive number.")
		}
	}

	if str(rec, models.AttrCatalogType) == models.CatalogSingleCourse && !hasList(rec, models.AttrStockRecordIDs) {
		fe.Add(models.AttrSeatType, "Select a seat type for the course.")
	}

	return fe.Err()
}

func validateBenefit(rec models.Attributes, fe models.FieldErrors) {
	kind := str(rec, models.AttrBenefitType)
	switch kind {
	case models.BenefitPercentage, models.BenefitAbsolute:
	default:
		fe.Add(models.AttrBenefitType, fmt.Sprintf("Benefit type [%s] is not allowed", kind))
		return
	}
	v, ok := num(rec, models.AttrBenefitValue)
	switch {
	case !ok:
		fe.Add(models.AttrBenefitValue, "This field is required.")
	case kind == models.BenefitPercentage && (v < 1 || v > 100):
		fe.Add(models.AttrBenefitValue, "Ensure this value is between 1 and 100.")
	case v <= 0:
		fe.Add(models.AttrBenefitValue, "Ensure this value is greater than 0.")
	}
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func validateDates(rec models.Attributes, fe models.FieldErrors) {
	var start, end time.Time
	ok := true
	for _, d := range []struct {
		attr string
		dst  *time.Time
	}{
		{models.AttrStartDate, &start},
		{models.AttrEndDate, &end},
	} {
		raw := strings.TrimSpace(str(rec, d.attr))
		if raw == "" {
			fe.Add(d.attr, "This field is required.")
			ok = false
			continue
		}
		t, parsed := parseDate(raw)
		if !parsed {
			fe.Add(d.attr, "Enter a valid date.")
			ok = false
			continue
		}
		*d.dst = t
	}
	if ok && !start.Before(end) {
		fe.Add(models.AttrEndDate, "Must occur after start date.")
	}
}

func str(rec models.Attributes, attr string) string {
	s, _ := rec[attr].(string)
	return s
}

func num(rec models.Attributes, attr string) (float64, bool) {
	switch v := rec[attr].(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func hasList(rec models.Attributes, attr string) bool {
	switch v := rec[attr].(type) {
	case []int:
		return len(v) > 0
	case []any:
		return len(v) > 0
	}
	return false
}
