package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Cheertaboi/coupon-form-service/internal/analytics"
	"github.com/Cheertaboi/coupon-form-service/internal/api/handlers"
	"github.com/Cheertaboi/coupon-form-service/internal/api/middleware"
	"github.com/Cheertaboi/coupon-form-service/internal/metrics"
	"github.com/Cheertaboi/coupon-form-service/internal/session"
)

// Deps are the collaborators the HTTP surface is built from. Metrics,
// RateLimiter, SeatCache and Tracker are optional.
type Deps struct {
	Sessions    *session.Manager
	Coupons     handlers.CouponStore
	References  handlers.ReferenceLister
	SeatCache   handlers.SeatCache
	Tracker     analytics.Tracker
	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger
}

// NewRouter builds the HTTP router for the coupon form service
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger(d.Logger))

	var submits handlers.SubmitObserver
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
		submits = d.Metrics
	}

	formHandler := handlers.NewFormHandler(d.Sessions, d.Coupons, d.Tracker, submits, d.Logger)
	couponHandler := handlers.NewCouponHandler(d.Coupons, d.References, d.Logger)

	// Form sessions
	r.Route("/forms", func(r chi.Router) {
		if d.RateLimiter != nil {
			r.Use(d.RateLimiter.Middleware)
		}
		r.Post("/", formHandler.OpenCreate)
		r.Post("/edit/{couponID}", formHandler.OpenEdit)
		r.Get("/{id}", formHandler.GetForm)
		r.Patch("/{id}", formHandler.PatchForm)
		r.Post("/{id}/revert", formHandler.Revert)
		r.Post("/{id}/submit", formHandler.Submit)
		r.Delete("/{id}", formHandler.Discard)
	})

	r.Route("/coupons", func(r chi.Router) {
		r.Get("/", couponHandler.ListCoupons)
		r.Get("/{couponID}", couponHandler.GetCoupon)
		r.Delete("/{couponID}", couponHandler.DeleteCoupon)
	})

	r.Route("/reference", func(r chi.Router) {
		r.Get("/catalogs", couponHandler.ListCatalogs)
		r.Get("/enterprise-customers", couponHandler.ListEnterpriseCustomers)
		r.Get("/categories", couponHandler.ListCategories)
	})

	if d.SeatCache != nil {
		catalogHandler := handlers.NewCatalogHandler(d.SeatCache, d.Logger)
		r.Delete("/catalog/courses/{courseID}/seats", catalogHandler.RefreshSeats)
	}

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	return r
}
