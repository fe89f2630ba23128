package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Cheertaboi/coupon-form-service/internal/analytics"
	"github.com/Cheertaboi/coupon-form-service/internal/form"
	"github.com/Cheertaboi/coupon-form-service/internal/models"
	"github.com/Cheertaboi/coupon-form-service/internal/session"
)

// SubmitObserver counts submit outcomes.
type SubmitObserver interface {
	SubmitResolved(mode, result string)
}

type FormHandler struct {
	sessions *session.Manager
	coupons  CouponReader
	tracker  analytics.Tracker
	submits  SubmitObserver
	log      *slog.Logger
}

func NewFormHandler(sessions *session.Manager, coupons CouponReader, tracker analytics.Tracker, submits SubmitObserver, logger *slog.Logger) *FormHandler {
	if tracker == nil {
		tracker = analytics.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FormHandler{
		sessions: sessions,
		coupons:  coupons,
		tracker:  tracker,
		submits:  submits,
		log:      logger,
	}
}

type openResponse struct {
	ID       string     `json:"id"`
	Mode     string     `json:"mode"`
	CouponID int64      `json:"coupon_id,omitempty"`
	State    form.State `json:"state"`
}

// OpenCreate handles POST /forms
func (h *FormHandler) OpenCreate(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.OpenCreate(r.Context())
	if err != nil {
		writeError(w, h.log, err, http.StatusInternalServerError)
		return
	}
	h.identify(r, s)
	h.tracker.Page("Coupon Create", map[string]any{"session": s.ID})
	h.writeOpened(w, r, s)
}

// OpenEdit handles POST /forms/edit/{couponID}
func (h *FormHandler) OpenEdit(w http.ResponseWriter, r *http.Request) {
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
	s, err := h.sessions.OpenEdit(r.Context(), *c)
	if err != nil {
		writeError(w, h.log, err, http.StatusInternalServerError)
		return
	}
	h.identify(r, s)
	h.tracker.Page("Coupon Edit", map[string]any{"session": s.ID, "coupon_id": id})
	h.writeOpened(w, r, s)
}

// identify attributes the session to the user named by the X-User-ID header,
// which the admin frontend's proxy sets.
func (h *FormHandler) identify(r *http.Request, s *session.Session) {
	user := r.Header.Get("X-User-ID")
	if user == "" {
		return
	}
	h.tracker.Identify(user, map[string]any{"session": s.ID, "mode": s.Mode})
}

func (h *FormHandler) writeOpened(w http.ResponseWriter, r *http.Request, s *session.Session) {
	st, err := s.State(r.Context())
	if err != nil {
		writeError(w, h.log, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, openResponse{ID: s.ID, Mode: s.Mode, CouponID: s.CouponID, State: st})
}

func (h *FormHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err, http.StatusNotFound)
		return nil, false
	}
	return s, true
}

// GetForm handles GET /forms/{id}
func (h *FormHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := s.State(r.Context())
	if err != nil {
		writeError(w, h.log, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PatchForm handles PATCH /forms/{id}. The writes are applied in order and
// the first failing one stops the batch; earlier writes stay applied.
func (h *FormHandler) PatchForm(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var writes []form.Write
	if err := json.NewDecoder(r.Body).Decode(&writes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return
	}

	var st form.State
	err := s.Do(r.Context(), func(c *form.Controller) error {
		if err := c.Apply(writes); err != nil {
			return err
		}
		st = c.State()
		return nil
	})
	if err != nil {
		writeError(w, h.log, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Revert handles POST /forms/{id}/revert
func (h *FormHandler) Revert(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var st form.State
	err := s.Do(r.Context(), func(c *form.Controller) error {
		if err := c.Revert(); err != nil {
			return err
		}
		st = c.State()
		return nil
	})
	if err != nil {
		writeError(w, h.log, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Submit handles POST /forms/{id}/submit. A successful submit closes the
// session; a rejected one leaves it open for correction.
func (h *FormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var res models.SubmitResult
	err := s.Do(r.Context(), func(c *form.Controller) error {
		var err error
		res, err = c.Submit(r.Context())
		return err
	})
	if err != nil {
		var fe models.FieldErrors
		if errors.As(err, &fe) {
			h.observeSubmit(s.Mode, "invalid")
		} else {
			h.observeSubmit(s.Mode, "error")
		}
		writeError(w, h.log, err, http.StatusInternalServerError)
		return
	}
	h.observeSubmit(s.Mode, "ok")
	h.tracker.Track("Coupon Submitted", map[string]any{
		"coupon_id": res.CouponID,
		"created":   res.Created,
	})
	if err := h.sessions.Discard(s.ID); err != nil {
		h.log.Debug("submitted session already gone", "session", s.ID, "error", err)
	}

	code := http.StatusOK
	if res.Created {
		code = http.StatusCreated
	}
	writeJSON(w, code, res)
}

func (h *FormHandler) observeSubmit(mode, result string) {
	if h.submits != nil {
		h.submits.SubmitResolved(mode, result)
	}
}

// Discard handles DELETE /forms/{id}
func (h *FormHandler) Discard(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Discard(chi.URLParam(r, "id")); err != nil {
		writeError(w, h.log, err, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
