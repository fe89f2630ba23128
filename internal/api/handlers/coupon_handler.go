package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Cheertaboi/coupon-form-service/internal/form"
	"github.com/Cheertaboi/coupon-form-service/internal/models"
	"github.com/Cheertaboi/coupon-form-service/internal/repository"
	"github.com/Cheertaboi/coupon-form-service/internal/session"
)

// CouponReader loads stored coupons.
type CouponReader interface {
	Get(ctx context.Context, id int64) (*models.Coupon, error)
}

// CouponStore is the coupon collection behind the /coupons routes.
type CouponStore interface {
	CouponReader
	List(ctx context.Context, f models.CouponFilter) ([]*models.Coupon, error)
	Delete(ctx context.Context, id int64) error
}

// ReferenceLister lists the reference collections offered by the form.
type ReferenceLister interface {
	Catalogs() []models.RefItem
	EnterpriseCustomers() []models.RefItem
	Categories() []string
}

type CouponHandler struct {
	coupons CouponStore
	refs    ReferenceLister
	log     *slog.Logger
}

func NewCouponHandler(coupons CouponStore, refs ReferenceLister, logger *slog.Logger) *CouponHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CouponHandler{coupons: coupons, refs: refs, log: logger}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code. fallback is used for errors that
// are not recognised, typically 400 for input and 500 otherwise.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error, fallback int) {
	var fe models.FieldErrors
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"error": "validation_failed", "errors": fe})
		return
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrClosed):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session_not_found"})
		return
	case errors.Is(err, repository.ErrCouponNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "coupon_not_found"})
		return
	case errors.Is(err, form.ErrReadOnly), errors.Is(err, form.ErrNotEditing):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "conflict", "detail": err.Error()})
		return
	case errors.Is(err, form.ErrUnknownAttribute):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown_attribute", "detail": err.Error()})
		return
	case errors.Is(err, form.ErrAxisRequired), errors.Is(err, form.ErrSeatNotOffered):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_value", "detail": err.Error()})
		return
	case errors.Is(err, form.ErrCascadeDepth), errors.Is(err, form.ErrInconsistentAxis):
		fallback = http.StatusInternalServerError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fallback = http.StatusServiceUnavailable
	}

	if fallback >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		writeJSON(w, fallback, map[string]string{"error": "internal_error"})
		return
	}
	writeJSON(w, fallback, map[string]string{"error": "invalid_request", "detail": err.Error()})
}

func couponID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "couponID"), 10, 64)
}

// --- Handlers ---

// GetCoupon handles GET /coupons/{couponID}
func (h *CouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := couponID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid coupon id"})
		return
	}
	c, err := h.coupons.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListCoupons handles GET /coupons
func (h *CouponHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.CouponFilter{
		Title:       q.Get("title"),
		Code:        q.Get("code"),
		CatalogType: q.Get("catalog_type"),
		CouponType:  q.Get("coupon_type"),
	}
	for _, p := range []struct {
		key string
		dst *int
	}{
		{"limit", &f.Limit},
		{"offset", &f.Offset},
	} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + p.key})
			return
		}
		*p.dst = n
	}

	coupons, err := h.coupons.List(r.Context(), f)
	if err != nil {
		writeError(w, h.log, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, coupons)
}

// DeleteCoupon handles DELETE /coupons/{couponID}
func (h *CouponHandler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := couponID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid coupon id"})
		return
	}
	if err := h.coupons.Delete(r.Context(), id); err != nil {
		writeError(w, h.log, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCatalogs handles GET /reference/catalogs
func (h *CouponHandler) ListCatalogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.refs.Catalogs())
}

// ListEnterpriseCustomers handles GET /reference/enterprise-customers
func (h *CouponHandler) ListEnterpriseCustomers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.refs.EnterpriseCustomers())
}

// ListCategories handles GET /reference/categories
func (h *CouponHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.refs.Categories())
}
